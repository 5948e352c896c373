package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aybekd/meetgrid/internal/domain"
	"github.com/aybekd/meetgrid/internal/metrics"
	"github.com/aybekd/meetgrid/internal/repository"
	"github.com/aybekd/meetgrid/internal/secrets"
	"github.com/google/uuid"
)

// EmailTokenService issues and verifies single-use, kind-scoped, expiring
// tokens. The raw secret leaves this service exactly once, in Create's return
// value; storage only ever sees its hash.
type EmailTokenService struct {
	tokens repository.EmailTokenRepository
	hasher *secrets.Hasher
	logger *slog.Logger
}

func NewEmailTokenService(tokens repository.EmailTokenRepository, hasher *secrets.Hasher, logger *slog.Logger) *EmailTokenService {
	return &EmailTokenService{
		tokens: tokens,
		hasher: hasher,
		logger: logger.With("component", "email_token_service"),
	}
}

// Create generates a random raw secret plus a separate public token id and
// persists the hashed form. It returns (rawSecret, tokenID).
func (s *EmailTokenService) Create(ctx context.Context, userID string, kind domain.TokenKind, ttl time.Duration) (string, string, error) {
	raw, err := secrets.NewSecret()
	if err != nil {
		return "", "", err
	}

	token := &domain.EmailToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		TokenHash: s.hasher.Hash(raw),
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return "", "", fmt.Errorf("store email token: %w", err)
	}

	metrics.EmailTokensIssuedTotal.WithLabelValues(string(kind)).Inc()
	return raw, token.ID, nil
}

// Verify checks a raw secret against the stored token and consumes it.
// Order matters: liveness is checked before the secret comparison so a dead
// token leaks nothing about whether the secret was right, and the used-flag
// transition is a conditional update whose outcome decides the result.
func (s *EmailTokenService) Verify(ctx context.Context, tokenID, rawSecret string, kind domain.TokenKind) (string, error) {
	token, err := s.tokens.Find(ctx, tokenID, kind)
	if err != nil {
		if errors.Is(err, domain.ErrTokenInvalid) {
			s.countVerification(kind, "invalid")
		}
		return "", err
	}

	if token.Used || time.Now().After(token.ExpiresAt) {
		s.countVerification(kind, "expired_or_used")
		return "", domain.ErrTokenExpiredOrUsed
	}

	if !secrets.Equal(s.hasher.Hash(rawSecret), token.TokenHash) {
		s.countVerification(kind, "invalid")
		return "", domain.ErrTokenInvalid
	}

	claimed, err := s.tokens.Claim(ctx, tokenID)
	if err != nil {
		return "", fmt.Errorf("claim email token: %w", err)
	}
	if !claimed {
		// Lost the race to a concurrent verification.
		s.countVerification(kind, "expired_or_used")
		return "", domain.ErrTokenExpiredOrUsed
	}

	s.countVerification(kind, "ok")
	return token.UserID, nil
}

func (s *EmailTokenService) countVerification(kind domain.TokenKind, outcome string) {
	metrics.TokenVerificationsTotal.WithLabelValues(string(kind), outcome).Inc()
}
