package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/aybekd/meetgrid/internal/domain"
	"github.com/aybekd/meetgrid/internal/email"
	"github.com/aybekd/meetgrid/internal/metrics"
	"github.com/aybekd/meetgrid/internal/password"
	"github.com/aybekd/meetgrid/internal/repository"
	"github.com/aybekd/meetgrid/internal/secrets"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 30 * 24 * time.Hour
	defaultResetTTL   = 1 * time.Hour
	defaultVerifyTTL  = 24 * time.Hour
)

// Session carries what a successful login or refresh hands back: the access
// token for the caller and the new refresh secret for the confidential side
// channel (the transport layer turns it into an HttpOnly cookie).
type Session struct {
	AccessToken   string
	RefreshSecret string
	RefreshTTL    time.Duration
	Username      string
}

type AuthUsecase struct {
	users         repository.UserRepository
	refreshTokens repository.RefreshTokenRepository
	emailTokens   *EmailTokenService
	sender        email.Sender
	hasher        *secrets.Hasher
	logger        *slog.Logger

	jwtKey     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration
	verifyTTL  time.Duration
	linkBase   string
}

func NewAuthUsecase(
	users repository.UserRepository,
	refreshTokens repository.RefreshTokenRepository,
	emailTokens *EmailTokenService,
	sender email.Sender,
	hasher *secrets.Hasher,
	jwtKey []byte,
	linkBase string,
	logger *slog.Logger,
) *AuthUsecase {
	return &AuthUsecase{
		users:         users,
		refreshTokens: refreshTokens,
		emailTokens:   emailTokens,
		sender:        sender,
		hasher:        hasher,
		logger:        logger.With("component", "auth_usecase"),
		jwtKey:        jwtKey,
		accessTTL:     defaultAccessTTL,
		refreshTTL:    defaultRefreshTTL,
		resetTTL:      defaultResetTTL,
		verifyTTL:     defaultVerifyTTL,
		linkBase:      linkBase,
	}
}

// SetTTLs overrides the default token lifetimes. Zero values keep defaults.
func (u *AuthUsecase) SetTTLs(access, refresh, reset, verify time.Duration) {
	if access > 0 {
		u.accessTTL = access
	}
	if refresh > 0 {
		u.refreshTTL = refresh
	}
	if reset > 0 {
		u.resetTTL = reset
	}
	if verify > 0 {
		u.verifyTTL = verify
	}
}

// Register hashes the password, creates the user, and mails a verification
// link. A mail failure after the insert is logged, not fatal — the address
// can be re-verified later.
func (u *AuthUsecase) Register(ctx context.Context, username, emailAddr, plainPassword string) (*domain.User, error) {
	if len(plainPassword) < password.MinLength {
		return nil, fmt.Errorf("%w: password shorter than %d characters", domain.ErrValidation, password.MinLength)
	}

	hash, err := password.Hash(plainPassword)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        emailAddr,
		PasswordHash: hash,
	}
	if err := u.users.Create(ctx, user); err != nil {
		return nil, err
	}

	if err := u.sendVerifyEmail(ctx, user); err != nil {
		u.logger.ErrorContext(ctx, "send verification email", "error", err)
	}
	return user, nil
}

// Login checks the password and mints a session. Any credential problem
// collapses into ErrAuthFailed so callers cannot probe which part was wrong.
func (u *AuthUsecase) Login(ctx context.Context, username, plainPassword string) (*Session, error) {
	user, err := u.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			metrics.LoginsTotal.WithLabelValues("rejected").Inc()
			return nil, domain.ErrAuthFailed
		}
		return nil, err
	}

	if !password.Check(plainPassword, user.PasswordHash) {
		metrics.LoginsTotal.WithLabelValues("rejected").Inc()
		return nil, domain.ErrAuthFailed
	}

	session, err := u.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	metrics.LoginsTotal.WithLabelValues("ok").Inc()
	return session, nil
}

// Refresh rotates a refresh credential: the presented secret is validated,
// its row deleted, and a fresh access token plus refresh secret issued.
// A missing, expired, or revoked credential is a terminal ErrAuthFailed.
func (u *AuthUsecase) Refresh(ctx context.Context, rawRefresh string) (*Session, error) {
	if rawRefresh == "" {
		metrics.RefreshesTotal.WithLabelValues("rejected").Inc()
		return nil, domain.ErrAuthFailed
	}

	hash := u.hasher.Hash(rawRefresh)
	token, err := u.refreshTokens.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, domain.ErrAuthFailed) {
			metrics.RefreshesTotal.WithLabelValues("rejected").Inc()
		}
		return nil, err
	}

	if time.Now().After(token.ExpiresAt) {
		if err := u.refreshTokens.DeleteByHash(ctx, hash); err != nil {
			u.logger.ErrorContext(ctx, "delete expired refresh token", "error", err)
		}
		metrics.RefreshesTotal.WithLabelValues("rejected").Inc()
		return nil, domain.ErrAuthFailed
	}

	user, err := u.users.FindByID(ctx, token.UserID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := u.refreshTokens.DeleteByHash(ctx, hash); err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	session, err := u.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	metrics.RefreshesTotal.WithLabelValues("ok").Inc()
	return session, nil
}

// Logout revokes the presented refresh credential server-side. Revoking an
// unknown credential is a no-op, so logout is idempotent.
func (u *AuthUsecase) Logout(ctx context.Context, rawRefresh string) error {
	if rawRefresh == "" {
		return nil
	}
	return u.refreshTokens.DeleteByHash(ctx, u.hasher.Hash(rawRefresh))
}

// ForgotPassword issues a password-reset token and mails the link. When the
// login matches no account it returns nil all the same; the caller's response
// must not reveal whether the account exists.
func (u *AuthUsecase) ForgotPassword(ctx context.Context, login string) error {
	user, err := u.users.FindByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			u.logger.InfoContext(ctx, "password reset requested for unknown account")
			return nil
		}
		return err
	}

	raw, tokenID, err := u.emailTokens.Create(ctx, user.ID, domain.KindPasswordReset, u.resetTTL)
	if err != nil {
		return err
	}

	link := fmt.Sprintf("%s/reset-password?id=%s&secret=%s",
		u.linkBase, url.QueryEscape(tokenID), url.QueryEscape(raw))
	body := fmt.Sprintf(
		`<p>Someone requested a password reset for your meetgrid account. The link below is valid for %s and works once:</p><p><a href="%s">%s</a></p><p>If this wasn't you, ignore this email.</p>`,
		u.resetTTL, link, link,
	)
	if err := u.sender.Send(ctx, user.Email, "Reset your meetgrid password", body); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	return nil
}

// ResetPassword consumes the reset token, stores the new password hash, and
// revokes every refresh credential of the user so all sessions must
// re-authenticate with the new password.
func (u *AuthUsecase) ResetPassword(ctx context.Context, tokenID, rawSecret, newPassword string) error {
	if len(newPassword) < password.MinLength {
		return fmt.Errorf("%w: password shorter than %d characters", domain.ErrValidation, password.MinLength)
	}

	userID, err := u.emailTokens.Verify(ctx, tokenID, rawSecret, domain.KindPasswordReset)
	if err != nil {
		return err
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := u.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	if err := u.refreshTokens.DeleteByUser(ctx, userID); err != nil {
		// Best-effort revocation; the password change itself stands.
		u.logger.ErrorContext(ctx, "revoke sessions after password reset", "error", err, "user_id", userID)
	}
	return nil
}

// VerifyEmail consumes an email-verify token and marks the address verified.
func (u *AuthUsecase) VerifyEmail(ctx context.Context, tokenID, rawSecret string) error {
	userID, err := u.emailTokens.Verify(ctx, tokenID, rawSecret, domain.KindEmailVerify)
	if err != nil {
		return err
	}
	return u.users.MarkEmailVerified(ctx, userID)
}

// User loads a user by id, for the authenticated profile endpoint.
func (u *AuthUsecase) User(ctx context.Context, id string) (*domain.User, error) {
	return u.users.FindByID(ctx, id)
}

// issueSession mints the short-lived access JWT and a fresh refresh
// credential. Only the hash of the refresh secret is persisted.
func (u *AuthUsecase) issueSession(ctx context.Context, user *domain.User) (*Session, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      user.ID,
		"username": user.Username,
		"iat":      now.Unix(),
		"exp":      now.Add(u.accessTTL).Unix(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(u.jwtKey)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	rawRefresh, err := secrets.NewSecret()
	if err != nil {
		return nil, err
	}
	token := &domain.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: u.hasher.Hash(rawRefresh),
		ExpiresAt: now.Add(u.refreshTTL),
	}
	if err := u.refreshTokens.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &Session{
		AccessToken:   access,
		RefreshSecret: rawRefresh,
		RefreshTTL:    u.refreshTTL,
		Username:      user.Username,
	}, nil
}

func (u *AuthUsecase) sendVerifyEmail(ctx context.Context, user *domain.User) error {
	raw, tokenID, err := u.emailTokens.Create(ctx, user.ID, domain.KindEmailVerify, u.verifyTTL)
	if err != nil {
		return err
	}

	link := fmt.Sprintf("%s/verify-email?id=%s&secret=%s",
		u.linkBase, url.QueryEscape(tokenID), url.QueryEscape(raw))
	body := fmt.Sprintf(
		`<p>Welcome to meetgrid! Confirm your email address by clicking the link below:</p><p><a href="%s">%s</a></p>`,
		link, link,
	)
	return u.sender.Send(ctx, user.Email, "Confirm your meetgrid email", body)
}
