package domain

import (
	"errors"
	"time"
)

// User models a registered account. PasswordHash and RefreshToken are never
// serialized to clients.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	AvatarURL    string    `json:"avatar,omitempty"`
	CoverURL     string    `json:"coverImage,omitempty"`
	PasswordHash string    `json:"-"`
	RefreshToken string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Public returns a copy safe to hand to clients: credential material cleared
// on top of being hidden from JSON.
func (u *User) Public() *User {
	if u == nil {
		return nil
	}
	clone := *u
	clone.PasswordHash = ""
	clone.RefreshToken = ""
	return &clone
}

var (
	ErrMissingFields      = errors.New("all fields are required")
	ErrUserExists         = errors.New("username or email already exists")
	ErrUserNotFound       = errors.New("user does not exist")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordMismatch   = errors.New("old password is incorrect")

	// Token verification outcomes. Expired means the signature checked out
	// but the token is past its lifetime; invalid covers everything else
	// (malformed, bad signature, wrong algorithm).
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// ErrRefreshReused marks a refresh token that was already rotated away:
	// the presented token no longer matches the one stored on the user.
	ErrRefreshReused = errors.New("refresh token is expired or used")

	ErrMissingRefreshToken = errors.New("refresh token required")
	ErrAssetRequired       = errors.New("avatar image required")
	ErrAssetUpload         = errors.New("asset upload failed")
	ErrTooManyAttempts     = errors.New("too many login attempts")
)
