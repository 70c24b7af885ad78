package ports

import (
	"context"

	"github.com/videotube/account-service/internal/core/domain"
)

// RegisterInput carries everything needed to create an account. Avatar is
// mandatory, Cover optional.
type RegisterInput struct {
	Username string
	FullName string
	Email    string
	Password string
	Avatar   *AssetUpload
	Cover    *AssetUpload
}

// TokenPair is the access/refresh pair handed to a client on login and on
// every successful rotation.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginResult bundles the sanitized user with the freshly issued pair.
type LoginResult struct {
	User         *domain.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

// UserService is the session lifecycle orchestrator.
type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, username, password string) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, userID string) error
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	CurrentUser(ctx context.Context, userID string) (*domain.User, error)

	UpdateAccount(ctx context.Context, userID, fullName string) (*domain.User, error)
	UpdateAvatar(ctx context.Context, userID string, asset AssetUpload) (*domain.User, error)
	UpdateCoverImage(ctx context.Context, userID string, asset AssetUpload) (*domain.User, error)
}
