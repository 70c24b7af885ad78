package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// AccessVerifier checks an access token and returns its subject user id.
type AccessVerifier interface {
	VerifyAccess(token string) (string, error)
}

// Auth validates the access token and injects the caller's user id into the
// request context under "user_id". The token is read from the accessToken
// cookie first, then from the Authorization bearer header.
func Auth(verifier AccessVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := tokenFromRequest(c)
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized request")
			}

			userID, err := verifier.VerifyAccess(token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
			}

			c.Set("user_id", userID)
			return next(c)
		}
	}
}

func tokenFromRequest(c echo.Context) string {
	if cookie, err := c.Cookie("accessToken"); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
