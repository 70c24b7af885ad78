package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/videotube/account-service/internal/api/metrics"
	"github.com/videotube/account-service/internal/core/domain"
	"github.com/videotube/account-service/internal/core/ports"
)

type UserHandler struct {
	userService ports.UserService
}

func NewUserHandler(userService ports.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// Register creates a new account from a multipart form.
//
// @Summary      Register a new user
// @Tags         users
// @Accept       multipart/form-data
// @Produce      json
// @Param        username   formData  string  true   "Unique username"
// @Param        fullName   formData  string  true   "Display name"
// @Param        email      formData  string  true   "Unique email"
// @Param        password   formData  string  true   "Password"
// @Param        avatar     formData  file    true   "Avatar image"
// @Param        coverImage formData  file    false  "Cover image"
// @Success      201  {object}  apiResponse
// @Failure      400  {object}  map[string]any
// @Failure      409  {object}  map[string]any
// @Router       /users/register [post]
func (h *UserHandler) Register(c echo.Context) error {
	in := ports.RegisterInput{
		Username: c.FormValue("username"),
		FullName: c.FormValue("fullName"),
		Email:    c.FormValue("email"),
		Password: c.FormValue("password"),
	}

	avatar, closeAvatar, err := formAsset(c, "avatar")
	if err != nil {
		return domain.ErrAssetRequired
	}
	defer closeAvatar()
	in.Avatar = avatar

	if cover, closeCover, err := formAsset(c, "coverImage"); err == nil {
		defer closeCover()
		in.Cover = cover
	}

	user, err := h.userService.Register(c.Request().Context(), in)
	if err != nil {
		return err
	}

	metrics.RegistrationsTotal.Inc()
	return respond(c, http.StatusCreated, user, "User created successfully!")
}

// Login authenticates credentials and starts a session.
//
// @Summary      Login
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  apiResponse
// @Failure      400   {object}  map[string]any
// @Failure      401   {object}  map[string]any
// @Router       /users/login [post]
func (h *UserHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.userService.Login(c.Request().Context(), req.Email, req.Username, req.Password)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues(loginResult(err)).Inc()
		return err
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	setAuthCookies(c, result.AccessToken, result.RefreshToken)
	return respond(c, http.StatusOK, result, "User logged in successfully")
}

// Logout terminates the caller's session.
//
// @Summary      Logout
// @Tags         users
// @Produce      json
// @Success      200  {object}  apiResponse
// @Failure      401  {object}  map[string]any
// @Router       /users/logout [post]
func (h *UserHandler) Logout(c echo.Context) error {
	userID, err := ctxUserID(c)
	if err != nil {
		return err
	}

	if err := h.userService.Logout(c.Request().Context(), userID); err != nil {
		return err
	}

	clearAuthCookies(c)
	return respond(c, http.StatusOK, nil, "user logged out")
}

// RefreshToken rotates the session's token pair.
//
// @Summary      Rotate the refresh token
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      refreshRequest  false  "Fallback for cookie-less clients"
// @Success      200   {object}  apiResponse
// @Failure      401   {object}  map[string]any
// @Failure      403   {object}  map[string]any
// @Router       /users/refresh-token [post]
func (h *UserHandler) RefreshToken(c echo.Context) error {
	incoming := refreshTokenFromRequest(c)

	pair, err := h.userService.Refresh(c.Request().Context(), incoming)
	if err != nil {
		metrics.TokenRefreshesTotal.WithLabelValues(refreshResult(err)).Inc()
		return err
	}

	metrics.TokenRefreshesTotal.WithLabelValues("success").Inc()
	setAuthCookies(c, pair.AccessToken, pair.RefreshToken)
	return respond(c, http.StatusOK, pair, "token refreshed")
}

// ChangePassword replaces the caller's password.
//
// @Summary      Change password
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      changePasswordRequest  true  "Old and new password"
// @Success      200   {object}  apiResponse
// @Failure      401   {object}  map[string]any
// @Router       /users/change-password [post]
func (h *UserHandler) ChangePassword(c echo.Context) error {
	userID, err := ctxUserID(c)
	if err != nil {
		return err
	}

	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.userService.ChangePassword(c.Request().Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		return err
	}

	metrics.PasswordChangesTotal.Inc()
	return respond(c, http.StatusOK, nil, "password changed successfully")
}

// CurrentUser returns the authenticated caller's own record.
//
// @Summary      Current user
// @Tags         users
// @Produce      json
// @Success      200  {object}  apiResponse
// @Failure      401  {object}  map[string]any
// @Router       /users/current-user [get]
func (h *UserHandler) CurrentUser(c echo.Context) error {
	userID, err := ctxUserID(c)
	if err != nil {
		return err
	}

	user, err := h.userService.CurrentUser(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, user, "")
}

// UpdateAccount updates mutable profile fields.
//
// @Summary      Update account details
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      updateAccountRequest  true  "Fields to update"
// @Success      200   {object}  apiResponse
// @Router       /users/update-account [patch]
func (h *UserHandler) UpdateAccount(c echo.Context) error {
	userID, err := ctxUserID(c)
	if err != nil {
		return err
	}

	var req updateAccountRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.userService.UpdateAccount(c.Request().Context(), userID, req.FullName)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, user, "data updated")
}

// UpdateAvatar replaces the caller's avatar image.
//
// @Summary      Update avatar
// @Tags         users
// @Accept       multipart/form-data
// @Produce      json
// @Param        avatar  formData  file  true  "New avatar image"
// @Success      200     {object}  apiResponse
// @Router       /users/update-avatar [patch]
func (h *UserHandler) UpdateAvatar(c echo.Context) error {
	return h.updateAsset(c, "avatar", h.userService.UpdateAvatar, "avatar image updated successfully")
}

// UpdateCoverImage replaces the caller's cover image.
//
// @Summary      Update cover image
// @Tags         users
// @Accept       multipart/form-data
// @Produce      json
// @Param        coverImage  formData  file  true  "New cover image"
// @Success      200         {object}  apiResponse
// @Router       /users/update-cover-image [patch]
func (h *UserHandler) UpdateCoverImage(c echo.Context) error {
	return h.updateAsset(c, "coverImage", h.userService.UpdateCoverImage, "cover image updated successfully")
}

func (h *UserHandler) updateAsset(
	c echo.Context,
	field string,
	update func(ctx context.Context, userID string, asset ports.AssetUpload) (*domain.User, error),
	message string,
) error {
	userID, err := ctxUserID(c)
	if err != nil {
		return err
	}

	asset, closeAsset, err := formAsset(c, field)
	if err != nil {
		return domain.ErrAssetRequired
	}
	defer closeAsset()

	user, err := update(c.Request().Context(), userID, *asset)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, user, message)
}

// formAsset opens a multipart file field as an AssetUpload. The returned
// close function must be called after the upload has been consumed.
func formAsset(c echo.Context, field string) (*ports.AssetUpload, func(), error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	return &ports.AssetUpload{
		Reader:      f,
		Filename:    fh.Filename,
		ContentType: fileContentType(fh),
		Size:        fh.Size,
	}, func() { _ = f.Close() }, nil
}

func fileContentType(fh *multipart.FileHeader) string {
	return fh.Header.Get("Content-Type")
}

// refreshTokenFromRequest prefers the cookie, falling back to the JSON body
// for cookie-less clients.
func refreshTokenFromRequest(c echo.Context) string {
	if cookie, err := c.Cookie(refreshTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return ""
	}
	return req.RefreshToken
}

func loginResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrUserNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrTooManyAttempts):
		return "throttled"
	default:
		return "error"
	}
}

func refreshResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrTokenExpired):
		return "expired"
	case errors.Is(err, domain.ErrRefreshReused):
		return "reused"
	case errors.Is(err, domain.ErrTokenInvalid):
		return "invalid"
	default:
		return "error"
	}
}
