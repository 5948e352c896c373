package domain

import (
	"errors"
	"time"
)

var (
	// ErrValidation covers malformed input caught before it reaches storage.
	ErrValidation = errors.New("validation failed")

	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("username or email already taken")

	// ErrTokenInvalid is returned for an unknown token id, a kind mismatch,
	// or a secret mismatch. Callers must not be able to tell these apart.
	ErrTokenInvalid = errors.New("token is invalid")

	// ErrTokenExpiredOrUsed is returned for a token that is past its expiry
	// or has already been consumed.
	ErrTokenExpiredOrUsed = errors.New("token is expired or already used")

	// ErrAuthFailed is a terminal credential rejection: bad password, or a
	// missing/expired/revoked refresh credential. Distinct from transient
	// storage or network errors, which remain plain wrapped errors.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrConfig signals missing required configuration, e.g. mail transport
	// settings. Delivery fails closed instead of silently dropping mail.
	ErrConfig = errors.New("missing required configuration")
)

// TokenKind is the purpose an email token was issued for. A token issued for
// one kind never validates for another.
type TokenKind string

const (
	KindPasswordReset TokenKind = "password-reset"
	KindEmailVerify   TokenKind = "email-verify"
)

type User struct {
	ID            string
	Username      string
	Email         string
	PasswordHash  string
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EmailToken is a single-use capability grant delivered out-of-band.
// TokenHash stores the one-way hash of the raw secret; the secret itself is
// returned to the caller exactly once and never persisted.
type EmailToken struct {
	ID        string
	UserID    string
	Kind      TokenKind
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	Used      bool
}

// RefreshToken is the server-side record of a long-lived refresh credential.
// Only the hash of the opaque secret is stored.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}
