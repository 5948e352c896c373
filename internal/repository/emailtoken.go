package repository

import (
	"context"
	"time"

	"github.com/aybekd/meetgrid/internal/domain"
)

type EmailTokenRepository interface {
	Create(ctx context.Context, token *domain.EmailToken) error

	// Find looks a token up by (id, kind). Returns domain.ErrTokenInvalid
	// when no such row exists — a kind mismatch is indistinguishable from
	// not-found.
	Find(ctx context.Context, id string, kind domain.TokenKind) (*domain.EmailToken, error)

	// Claim flips used to true with a single conditional update and reports
	// whether this call won the transition. A false return means the token
	// was already consumed.
	Claim(ctx context.Context, id string) (bool, error)

	// DeleteDead removes used and expired tokens. Housekeeping only.
	DeleteDead(ctx context.Context, now time.Time) (int64, error)
}
