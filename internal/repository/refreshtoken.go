package repository

import (
	"context"
	"time"

	"github.com/aybekd/meetgrid/internal/domain"
)

type RefreshTokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error

	// FindByHash looks a refresh credential up by the hash of its secret.
	// Returns domain.ErrAuthFailed when absent, which covers both unknown
	// and already-revoked credentials.
	FindByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)

	// DeleteByHash revokes a single credential. Deleting a missing row is
	// not an error.
	DeleteByHash(ctx context.Context, tokenHash string) error

	// DeleteByUser revokes every credential of a user (password reset,
	// sign-out-everywhere).
	DeleteByUser(ctx context.Context, userID string) error

	// DeleteExpired removes expired rows. Housekeeping only.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
