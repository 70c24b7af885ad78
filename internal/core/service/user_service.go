package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/videotube/account-service/internal/core/domain"
	"github.com/videotube/account-service/internal/core/ports"
)

// LoginLimiter throttles credential guessing (Redis-backed in production).
type LoginLimiter interface {
	// Allow reports whether another attempt for this identity is permitted.
	Allow(ctx context.Context, key string) (bool, error)
	// RecordFailure counts a failed attempt against the identity.
	RecordFailure(ctx context.Context, key string) error
}

// AssetDisposer receives URLs of superseded assets for asynchronous removal.
type AssetDisposer interface {
	Dispose(url string)
}

type userService struct {
	repo    ports.UserRepository
	tokens  ports.TokenIssuer
	assets  ports.AssetStore
	limiter LoginLimiter
	cleanup AssetDisposer
	log     zerolog.Logger
}

// NewUserService returns the session lifecycle orchestrator. limiter and
// cleanup are optional; nil disables the corresponding behavior.
func NewUserService(
	repo ports.UserRepository,
	tokens ports.TokenIssuer,
	assets ports.AssetStore,
	limiter LoginLimiter,
	cleanup AssetDisposer,
	log zerolog.Logger,
) ports.UserService {
	return &userService{
		repo:    repo,
		tokens:  tokens,
		assets:  assets,
		limiter: limiter,
		cleanup: cleanup,
		log:     log,
	}
}

// Register creates an account. The uniqueness check runs before any upload so
// a doomed registration never leaves orphaned assets, and the user record is
// only created once its assets are in the store.
func (s *userService) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	fullName := strings.TrimSpace(in.FullName)
	email := strings.TrimSpace(in.Email)
	if username == "" || fullName == "" || email == "" || strings.TrimSpace(in.Password) == "" {
		return nil, domain.ErrMissingFields
	}
	if in.Avatar == nil {
		return nil, domain.ErrAssetRequired
	}

	existing, err := s.repo.FindByUsernameOrEmail(ctx, username, email)
	if err != nil && err != domain.ErrUserNotFound {
		return nil, fmt.Errorf("register: uniqueness check: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrUserExists
	}

	avatarURL, err := s.assets.Upload(ctx, *in.Avatar)
	if err != nil {
		s.log.Error().Err(err).Str("username", username).Msg("avatar upload failed")
		return nil, domain.ErrAssetUpload
	}
	var coverURL string
	if in.Cover != nil {
		coverURL, err = s.assets.Upload(ctx, *in.Cover)
		if err != nil {
			s.dispose(avatarURL)
			s.log.Error().Err(err).Str("username", username).Msg("cover upload failed")
			return nil, domain.ErrAssetUpload
		}
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		s.dispose(avatarURL)
		s.dispose(coverURL)
		return nil, err
	}

	created, err := s.repo.Create(ctx, &domain.User{
		Username:     username,
		Email:        email,
		FullName:     fullName,
		AvatarURL:    avatarURL,
		CoverURL:     coverURL,
		PasswordHash: hash,
	})
	if err != nil {
		// A concurrent registration may have won the unique index race;
		// the uploads are no longer referenced by anything.
		s.dispose(avatarURL)
		s.dispose(coverURL)
		return nil, err
	}

	s.log.Info().Str("user_id", created.ID).Str("username", username).Msg("user registered")
	return created.Public(), nil
}

// Login authenticates credentials and starts a session. Both email and
// username must be supplied; the lookup matches on either. A fresh token pair
// overwrites any previously stored refresh token, so at most one refresh
// session is live per user.
func (s *userService) Login(ctx context.Context, email, username, password string) (*ports.LoginResult, error) {
	if email == "" || username == "" || password == "" {
		return nil, domain.ErrMissingFields
	}

	limiterKey := strings.ToLower(username)
	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, limiterKey)
		if err != nil {
			s.log.Warn().Err(err).Msg("login limiter unavailable, allowing attempt")
		} else if !allowed {
			return nil, domain.ErrTooManyAttempts
		}
	}

	user, err := s.repo.FindByUsernameOrEmail(ctx, strings.ToLower(username), email)
	if err != nil {
		return nil, err
	}

	if !verifyPassword(password, user.PasswordHash) {
		if s.limiter != nil {
			if err := s.limiter.RecordFailure(ctx, limiterKey); err != nil {
				s.log.Warn().Err(err).Msg("failed to record login failure")
			}
		}
		return nil, domain.ErrInvalidCredentials
	}

	pair, err := s.issuePair(user.ID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, fmt.Errorf("login: persist refresh token: %w", err)
	}

	s.log.Info().Str("user_id", user.ID).Msg("user logged in")
	return &ports.LoginResult{
		User:         user.Public(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// Refresh rotates a session. The presented token must verify against the
// refresh secret AND equal the token currently stored on the user; the
// equality check is a compare-and-swap in the store, which is the only
// defense against replay of a stolen, already-rotated token.
func (s *userService) Refresh(ctx context.Context, refreshToken string) (*ports.TokenPair, error) {
	if refreshToken == "" {
		return nil, domain.ErrMissingRefreshToken
	}

	userID, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Issue before persisting: a stored rotation must always have a matching
	// pair to return. Internal failures past this point surface as a generic
	// unauthorized rather than a 500, so the endpoint leaks nothing about the
	// backend to an unauthenticated caller.
	pair, err := s.issuePair(user.ID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("token issuance failed during refresh")
		return nil, domain.ErrTokenInvalid
	}
	if err := s.repo.RotateRefreshToken(ctx, user.ID, refreshToken, pair.RefreshToken); err != nil {
		if err == domain.ErrRefreshReused {
			s.log.Warn().Str("user_id", user.ID).Msg("refresh token replay detected")
			return nil, err
		}
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("refresh token rotation failed")
		return nil, domain.ErrTokenInvalid
	}

	return pair, nil
}

// Logout unsets the stored refresh token. Calling it with no live session is
// not an error.
func (s *userService) Logout(ctx context.Context, userID string) error {
	if err := s.repo.ClearRefreshToken(ctx, userID); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.log.Info().Str("user_id", userID).Msg("user logged out")
	return nil
}

// ChangePassword swaps the stored hash after verifying the old password.
// The live refresh session is left untouched.
func (s *userService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return domain.ErrMissingFields
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !verifyPassword(oldPassword, user.PasswordHash) {
		return domain.ErrPasswordMismatch
	}
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	s.log.Info().Str("user_id", userID).Msg("password changed")
	return nil
}

func (s *userService) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Public(), nil
}

func (s *userService) UpdateAccount(ctx context.Context, userID, fullName string) (*domain.User, error) {
	if strings.TrimSpace(fullName) == "" {
		return nil, domain.ErrMissingFields
	}
	updated, err := s.repo.UpdateFullName(ctx, userID, strings.TrimSpace(fullName))
	if err != nil {
		return nil, err
	}
	return updated.Public(), nil
}

func (s *userService) UpdateAvatar(ctx context.Context, userID string, asset ports.AssetUpload) (*domain.User, error) {
	url, err := s.assets.Upload(ctx, asset)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("avatar upload failed")
		return nil, domain.ErrAssetUpload
	}
	updated, prevURL, err := s.repo.UpdateAvatarURL(ctx, userID, url)
	if err != nil {
		s.dispose(url)
		return nil, err
	}
	s.dispose(prevURL)
	return updated.Public(), nil
}

func (s *userService) UpdateCoverImage(ctx context.Context, userID string, asset ports.AssetUpload) (*domain.User, error) {
	url, err := s.assets.Upload(ctx, asset)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("cover upload failed")
		return nil, domain.ErrAssetUpload
	}
	updated, prevURL, err := s.repo.UpdateCoverURL(ctx, userID, url)
	if err != nil {
		s.dispose(url)
		return nil, err
	}
	s.dispose(prevURL)
	return updated.Public(), nil
}

func (s *userService) issuePair(userID string) (*ports.TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(userID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefreshToken(userID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	return &ports.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *userService) dispose(url string) {
	if url == "" || s.cleanup == nil {
		return
	}
	s.cleanup.Dispose(url)
}
