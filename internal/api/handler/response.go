package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// apiResponse is the uniform success envelope for every endpoint.
type apiResponse struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data,omitempty"`
	Message    string `json:"message,omitempty"`
	Success    bool   `json:"success"`
}

func respond(c echo.Context, status int, data any, message string) error {
	return c.JSON(status, apiResponse{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    true,
	})
}

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

// setAuthCookies attaches both session tokens as httpOnly+secure cookies.
func setAuthCookies(c echo.Context, accessToken, refreshToken string) {
	c.SetCookie(authCookie(accessTokenCookie, accessToken, 0))
	c.SetCookie(authCookie(refreshTokenCookie, refreshToken, 0))
}

// clearAuthCookies expires both session cookies.
func clearAuthCookies(c echo.Context) {
	c.SetCookie(authCookie(accessTokenCookie, "", -1))
	c.SetCookie(authCookie(refreshTokenCookie, "", -1))
}

func authCookie(name, value string, maxAge int) *http.Cookie {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   maxAge,
	}
	if maxAge < 0 {
		cookie.Expires = time.Unix(0, 0)
	}
	return cookie
}
