package ports

import (
	"context"

	"github.com/videotube/account-service/internal/core/domain"
)

// UserRepository defines the interface for account persistence.
//
// FindByUsernameOrEmail must evaluate the OR predicate in a single query so
// the uniqueness check cannot see one field updated and the other not.
// RotateRefreshToken must be atomic: compare the stored token and swap it in
// one store operation, so two concurrent rotations with the same token cannot
// both succeed.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error)

	SetRefreshToken(ctx context.Context, id, token string) error
	RotateRefreshToken(ctx context.Context, id, current, next string) error
	ClearRefreshToken(ctx context.Context, id string) error

	UpdatePasswordHash(ctx context.Context, id, hash string) error
	UpdateFullName(ctx context.Context, id, fullName string) (*domain.User, error)
	// UpdateAvatarURL and UpdateCoverURL return the document as stored after
	// the update, together with the URL that was replaced so the caller can
	// dispose of the superseded asset.
	UpdateAvatarURL(ctx context.Context, id, url string) (*domain.User, string, error)
	UpdateCoverURL(ctx context.Context, id, url string) (*domain.User, string, error)
}
