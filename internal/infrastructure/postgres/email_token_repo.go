package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aybekd/meetgrid/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EmailTokenRepository struct {
	pool *pgxpool.Pool
}

func NewEmailTokenRepository(pool *pgxpool.Pool) *EmailTokenRepository {
	return &EmailTokenRepository{pool: pool}
}

func (r *EmailTokenRepository) Create(ctx context.Context, t *domain.EmailToken) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO email_tokens (id, user_id, kind, token_hash, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.UserID, string(t.Kind), t.TokenHash, t.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert email token: %w", err)
	}
	return nil
}

func (r *EmailTokenRepository) Find(ctx context.Context, id string, kind domain.TokenKind) (*domain.EmailToken, error) {
	var t domain.EmailToken
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, kind, token_hash, expires_at, created_at, used
		 FROM email_tokens
		 WHERE id = $1 AND kind = $2`,
		id, string(kind),
	).Scan(&t.ID, &t.UserID, &t.Kind, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt, &t.Used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTokenInvalid
		}
		return nil, fmt.Errorf("find email token: %w", err)
	}
	return &t, nil
}

// Claim is the single atomic used-flag transition. The WHERE used = FALSE
// guard closes the replay window a read-then-write would leave open.
func (r *EmailTokenRepository) Claim(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE email_tokens SET used = TRUE WHERE id = $1 AND used = FALSE`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("claim email token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *EmailTokenRepository) DeleteDead(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM email_tokens WHERE used = TRUE OR expires_at < $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("delete dead email tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
