package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/aybekd/meetgrid/internal/domain"
	"github.com/aybekd/meetgrid/internal/transport/http/handler"
	"github.com/aybekd/meetgrid/internal/usecase"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeAuthUsecase implements the unexported authUsecaser interface via method matching.
type fakeAuthUsecase struct {
	register       func(ctx context.Context, username, email, password string) (*domain.User, error)
	login          func(ctx context.Context, username, password string) (*usecase.Session, error)
	refresh        func(ctx context.Context, rawRefresh string) (*usecase.Session, error)
	logout         func(ctx context.Context, rawRefresh string) error
	forgotPassword func(ctx context.Context, login string) error
	resetPassword  func(ctx context.Context, tokenID, rawSecret, newPassword string) error
	verifyEmail    func(ctx context.Context, tokenID, rawSecret string) error
	user           func(ctx context.Context, id string) (*domain.User, error)
}

func (f *fakeAuthUsecase) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	return f.register(ctx, username, email, password)
}

func (f *fakeAuthUsecase) Login(ctx context.Context, username, password string) (*usecase.Session, error) {
	return f.login(ctx, username, password)
}

func (f *fakeAuthUsecase) Refresh(ctx context.Context, rawRefresh string) (*usecase.Session, error) {
	return f.refresh(ctx, rawRefresh)
}

func (f *fakeAuthUsecase) Logout(ctx context.Context, rawRefresh string) error {
	return f.logout(ctx, rawRefresh)
}

func (f *fakeAuthUsecase) ForgotPassword(ctx context.Context, login string) error {
	return f.forgotPassword(ctx, login)
}

func (f *fakeAuthUsecase) ResetPassword(ctx context.Context, tokenID, rawSecret, newPassword string) error {
	return f.resetPassword(ctx, tokenID, rawSecret, newPassword)
}

func (f *fakeAuthUsecase) VerifyEmail(ctx context.Context, tokenID, rawSecret string) error {
	return f.verifyEmail(ctx, tokenID, rawSecret)
}

func (f *fakeAuthUsecase) User(ctx context.Context, id string) (*domain.User, error) {
	return f.user(ctx, id)
}

func newTestEngine(uc *fakeAuthUsecase) *gin.Engine {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	h := handler.NewAuthHandler(uc, logger, false)

	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/refresh", h.Refresh)
	r.POST("/auth/logout", h.Logout)
	r.POST("/auth/forgot-password", h.ForgotPassword)
	r.POST("/auth/reset-password", h.ResetPassword)
	r.POST("/auth/verify-email", h.VerifyEmail)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	r.ServeHTTP(w, req)
	return w
}

func refreshCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "meetgrid_refresh" {
			return c
		}
	}
	return nil
}

func TestLogin_SetsHttpOnlyRefreshCookie(t *testing.T) {
	uc := &fakeAuthUsecase{
		login: func(_ context.Context, _, _ string) (*usecase.Session, error) {
			return &usecase.Session{
				AccessToken:   "access-jwt",
				RefreshSecret: "refresh-secret",
				RefreshTTL:    time.Hour,
				Username:      "alice",
			}, nil
		},
	}

	w := postJSON(t, newTestEngine(uc), "/auth/login",
		`{"username":"alice","password":"pw","rememberMe":true}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	cookie := refreshCookie(t, w)
	if cookie == nil {
		t.Fatal("no refresh cookie set")
	}
	if cookie.Value != "refresh-secret" {
		t.Errorf("cookie value = %q", cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Error("refresh cookie is not HttpOnly")
	}
	if cookie.Path != "/auth" {
		t.Errorf("cookie path = %q, want /auth", cookie.Path)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["token"] != "access-jwt" {
		t.Errorf("token = %v", body["token"])
	}
	if body["rememberMe"] != true {
		t.Errorf("rememberMe = %v, want true", body["rememberMe"])
	}
	if strings.Contains(w.Body.String(), "refresh-secret") {
		t.Error("refresh secret leaked into the response body")
	}
}

func TestLogin_BadCredentials_Returns401(t *testing.T) {
	uc := &fakeAuthUsecase{
		login: func(_ context.Context, _, _ string) (*usecase.Session, error) {
			return nil, domain.ErrAuthFailed
		},
	}

	w := postJSON(t, newTestEngine(uc), "/auth/login", `{"username":"alice","password":"bad"}`)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRefresh_ReadsCookieAndRotates(t *testing.T) {
	var gotRaw string
	uc := &fakeAuthUsecase{
		refresh: func(_ context.Context, raw string) (*usecase.Session, error) {
			gotRaw = raw
			return &usecase.Session{
				AccessToken:   "new-access",
				RefreshSecret: "new-refresh",
				RefreshTTL:    time.Hour,
				Username:      "alice",
			}, nil
		},
	}

	w := postJSON(t, newTestEngine(uc), "/auth/refresh", "",
		&http.Cookie{Name: "meetgrid_refresh", Value: "old-refresh"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotRaw != "old-refresh" {
		t.Errorf("usecase got %q, want old-refresh", gotRaw)
	}
	cookie := refreshCookie(t, w)
	if cookie == nil || cookie.Value != "new-refresh" {
		t.Errorf("rotated cookie = %v", cookie)
	}
}

func TestRefresh_TerminalFailure_Returns401AndClearsCookie(t *testing.T) {
	uc := &fakeAuthUsecase{
		refresh: func(_ context.Context, _ string) (*usecase.Session, error) {
			return nil, domain.ErrAuthFailed
		},
	}

	w := postJSON(t, newTestEngine(uc), "/auth/refresh", "",
		&http.Cookie{Name: "meetgrid_refresh", Value: "revoked"})

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	cookie := refreshCookie(t, w)
	if cookie == nil || cookie.Value != "" {
		t.Errorf("cookie not cleared: %v", cookie)
	}
}

func TestRefresh_TransientFailure_Returns500(t *testing.T) {
	uc := &fakeAuthUsecase{
		refresh: func(_ context.Context, _ string) (*usecase.Session, error) {
			return nil, errors.New("db down")
		},
	}

	w := postJSON(t, newTestEngine(uc), "/auth/refresh", "",
		&http.Cookie{Name: "meetgrid_refresh", Value: "anything"})

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestLogout_RevokesAndClearsCookie(t *testing.T) {
	var revoked string
	uc := &fakeAuthUsecase{
		logout: func(_ context.Context, raw string) error {
			revoked = raw
			return nil
		},
	}

	w := postJSON(t, newTestEngine(uc), "/auth/logout", "",
		&http.Cookie{Name: "meetgrid_refresh", Value: "live-refresh"})

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if revoked != "live-refresh" {
		t.Errorf("revoked %q, want live-refresh", revoked)
	}
	cookie := refreshCookie(t, w)
	if cookie == nil || cookie.Value != "" {
		t.Errorf("cookie not cleared: %v", cookie)
	}
}

func TestForgotPassword_SameResponseEitherWay(t *testing.T) {
	found := &fakeAuthUsecase{
		forgotPassword: func(_ context.Context, _ string) error { return nil },
	}
	failing := &fakeAuthUsecase{
		forgotPassword: func(_ context.Context, _ string) error {
			return errors.New("mail transport down")
		},
	}

	w1 := postJSON(t, newTestEngine(found), "/auth/forgot-password", `{"login":"alice"}`)
	w2 := postJSON(t, newTestEngine(failing), "/auth/forgot-password", `{"login":"nobody"}`)

	if w1.Code != http.StatusAccepted || w2.Code != http.StatusAccepted {
		t.Errorf("statuses = %d, %d, want 202 for both", w1.Code, w2.Code)
	}
	if w1.Body.String() != w2.Body.String() {
		t.Errorf("responses differ: %q vs %q", w1.Body.String(), w2.Body.String())
	}
}

func TestResetPassword_CollapsesTokenErrors(t *testing.T) {
	invalid := &fakeAuthUsecase{
		resetPassword: func(_ context.Context, _, _, _ string) error {
			return domain.ErrTokenInvalid
		},
	}
	expired := &fakeAuthUsecase{
		resetPassword: func(_ context.Context, _, _, _ string) error {
			return domain.ErrTokenExpiredOrUsed
		},
	}

	body := `{"tokenId":"t1","secret":"s","newPassword":"longenough","confirmPassword":"longenough"}`
	w1 := postJSON(t, newTestEngine(invalid), "/auth/reset-password", body)
	w2 := postJSON(t, newTestEngine(expired), "/auth/reset-password", body)

	if w1.Code != http.StatusUnauthorized || w2.Code != http.StatusUnauthorized {
		t.Errorf("statuses = %d, %d, want 401 for both", w1.Code, w2.Code)
	}
	if w1.Body.String() != w2.Body.String() {
		t.Errorf("invalid and expired produce different responses: %q vs %q",
			w1.Body.String(), w2.Body.String())
	}
}

func TestResetPassword_ConfirmMismatch_Returns400(t *testing.T) {
	uc := &fakeAuthUsecase{
		resetPassword: func(_ context.Context, _, _, _ string) error {
			t.Error("usecase called despite validation failure")
			return nil
		},
	}

	w := postJSON(t, newTestEngine(uc), "/auth/reset-password",
		`{"tokenId":"t1","secret":"s","newPassword":"longenough","confirmPassword":"different!"}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRegister_Created(t *testing.T) {
	uc := &fakeAuthUsecase{
		register: func(_ context.Context, username, email, _ string) (*domain.User, error) {
			return &domain.User{ID: "user-1", Username: username, Email: email}, nil
		},
	}

	w := postJSON(t, newTestEngine(uc), "/auth/register",
		`{"username":"alice","email":"alice@example.com","password":"longenough"}`)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
}

func TestRegister_Duplicate_Returns409(t *testing.T) {
	uc := &fakeAuthUsecase{
		register: func(_ context.Context, _, _, _ string) (*domain.User, error) {
			return nil, domain.ErrDuplicateUser
		},
	}

	w := postJSON(t, newTestEngine(uc), "/auth/register",
		`{"username":"alice","email":"alice@example.com","password":"longenough"}`)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestRegister_ShortPassword_Returns400(t *testing.T) {
	uc := &fakeAuthUsecase{}

	w := postJSON(t, newTestEngine(uc), "/auth/register",
		`{"username":"alice","email":"alice@example.com","password":"short"}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
