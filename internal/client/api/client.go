// Package api is the HTTP client for the auth service. All authenticated
// calls go through one gateway that attaches the cached bearer token,
// recovers from a rejected token with a single shared refresh, and retries
// the original request at most once.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/aybekd/meetgrid/internal/client/tokencache"
	"golang.org/x/sync/singleflight"
)

const defaultTimeout = 10 * time.Second

type Client struct {
	baseURL string
	http    *http.Client
	cache   *tokencache.Cache
	logger  *slog.Logger

	// refreshing collapses concurrent refresh attempts into one request.
	refreshing singleflight.Group
}

// NewClient builds a client around the given token cache. The refresh
// credential never touches the cache: it lives in the cookie jar, where the
// server planted it at login.
func NewClient(baseURL string, cache *tokencache.Cache, logger *slog.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Jar:     jar,
			Timeout: defaultTimeout,
		},
		cache:  cache,
		logger: logger.With("component", "api_client"),
	}, nil
}

type registerPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Client) Register(ctx context.Context, username, email, password string) error {
	resp, err := c.post(ctx, "/auth/register", registerPayload{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusCreated {
		return statusError(resp)
	}
	return nil
}

type loginPayload struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type sessionResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Login authenticates and caches the access token. rememberMe selects the
// persistent scope so the token survives restarts; otherwise it lives in
// memory only. The refresh cookie lands in the jar as a side effect.
func (c *Client) Login(ctx context.Context, username, password string, rememberMe bool) (string, error) {
	resp, err := c.post(ctx, "/auth/login", loginPayload{
		Username:   username,
		Password:   password,
		RememberMe: rememberMe,
	})
	if err != nil {
		return "", err
	}
	defer drain(resp)

	if resp.StatusCode == http.StatusUnauthorized {
		return "", ErrAuthFailed
	}
	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp)
	}

	var session sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}

	scope := tokencache.ScopeEphemeral
	if rememberMe {
		scope = tokencache.ScopePersistent
	}
	if err := c.cache.Set(session.Token, scope); err != nil {
		return "", fmt.Errorf("cache access token: %w", err)
	}
	return session.Username, nil
}

// Logout revokes the server-side session and wipes the local token. Both
// happen even if one of them fails.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.post(ctx, "/auth/logout", nil)
	clearErr := c.cache.Clear()
	if err != nil {
		return err
	}
	defer drain(resp)

	if clearErr != nil {
		return fmt.Errorf("clear token cache: %w", clearErr)
	}
	if resp.StatusCode != http.StatusNoContent {
		return statusError(resp)
	}
	return nil
}

type forgotPasswordPayload struct {
	Login string `json:"login"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (c *Client) ForgotPassword(ctx context.Context, login string) (string, error) {
	resp, err := c.post(ctx, "/auth/forgot-password", forgotPasswordPayload{Login: login})
	if err != nil {
		return "", err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusAccepted {
		return "", statusError(resp)
	}

	var msg messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return msg.Message, nil
}

type resetPasswordPayload struct {
	TokenID         string `json:"tokenId"`
	Secret          string `json:"secret"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (c *Client) ResetPassword(ctx context.Context, tokenID, secret, newPassword string) error {
	resp, err := c.post(ctx, "/auth/reset-password", resetPasswordPayload{
		TokenID:         tokenID,
		Secret:          secret,
		NewPassword:     newPassword,
		ConfirmPassword: newPassword,
	})
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrAuthFailed
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

type verifyEmailPayload struct {
	TokenID string `json:"tokenId"`
	Secret  string `json:"secret"`
}

func (c *Client) VerifyEmail(ctx context.Context, tokenID, secret string) error {
	resp, err := c.post(ctx, "/auth/verify-email", verifyEmailPayload{
		TokenID: tokenID,
		Secret:  secret,
	})
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrAuthFailed
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

// Account is the authenticated user's profile as returned by /me.
type Account struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
}

// Me fetches the current profile through the authenticated gateway.
func (c *Client) Me(ctx context.Context) (*Account, error) {
	resp, err := c.do(ctx, http.MethodGet, "/me", nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var account Account
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &account, nil
}

// do is the authenticated gateway. It attaches the cached bearer token,
// dispatches, and on a 401 performs exactly one refresh (shared across
// concurrent callers) followed by exactly one retry. A failed refresh clears
// the cache and returns ErrAuthFailed; the retried response is returned
// as-is whatever its status.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	token, scope, ok := c.cache.Get()
	if !ok {
		scope = tokencache.ScopeEphemeral
	}

	resp, err := c.dispatch(ctx, method, path, body, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	drain(resp)

	newToken, err := c.refreshToken(ctx, scope)
	if err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "retrying after refresh", "method", method, "path", path)
	return c.dispatch(ctx, method, path, body, newToken)
}

// refreshToken exchanges the refresh cookie for a new access token. All
// concurrent callers share a single in-flight refresh and its result.
func (c *Client) refreshToken(ctx context.Context, scope tokencache.Scope) (string, error) {
	result, err, _ := c.refreshing.Do("refresh", func() (any, error) {
		// Detached from the caller's context: the result is shared, so one
		// caller's cancellation must not fail everyone else's refresh.
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultTimeout)
		defer cancel()

		resp, err := c.post(refreshCtx, "/auth/refresh", nil)
		if err != nil {
			return nil, err
		}
		defer drain(resp)

		if resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrAuthFailed
		}
		if resp.StatusCode != http.StatusOK {
			return nil, statusError(resp)
		}

		var session sessionResponse
		if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
			return nil, fmt.Errorf("decode refresh response: %w", err)
		}

		if err := c.cache.Set(session.Token, scope); err != nil {
			return nil, fmt.Errorf("cache refreshed token: %w", err)
		}
		return session.Token, nil
	})
	if err != nil {
		if clearErr := c.cache.Clear(); clearErr != nil {
			c.logger.WarnContext(ctx, "clear token cache after failed refresh", "error", clearErr)
		}
		if errors.Is(err, ErrAuthFailed) {
			return "", ErrAuthFailed
		}
		return "", fmt.Errorf("refresh session: %w", err)
	}
	return result.(string), nil
}

func (c *Client) dispatch(ctx context.Context, method, path string, body []byte, token string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, mapTransportError(err)
	}
	return resp, nil
}

// post sends an unauthenticated JSON request. Auth endpoints never carry a
// bearer token; the cookie jar supplies the refresh credential where needed.
func (c *Client) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}
	return c.dispatch(ctx, http.MethodPost, path, body, "")
}

func mapTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
	return &StatusError{Code: resp.StatusCode, Message: body.Error}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}
