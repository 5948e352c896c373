package usecase_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aybekd/meetgrid/internal/domain"
	"github.com/aybekd/meetgrid/internal/secrets"
	"github.com/aybekd/meetgrid/internal/usecase"
)

// memTokenRepo is an in-memory EmailTokenRepository with real single-use
// claim semantics, shared by the email token and auth usecase tests.
type memTokenRepo struct {
	mu   sync.Mutex
	rows map[string]*domain.EmailToken
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{rows: make(map[string]*domain.EmailToken)}
}

func (r *memTokenRepo) Create(_ context.Context, t *domain.EmailToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	cp.CreatedAt = time.Now()
	r.rows[t.ID] = &cp
	return nil
}

func (r *memTokenRepo) Find(_ context.Context, id string, kind domain.TokenKind) (*domain.EmailToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok || t.Kind != kind {
		return nil, domain.ErrTokenInvalid
	}
	cp := *t
	return &cp, nil
}

func (r *memTokenRepo) Claim(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok || t.Used {
		return false, nil
	}
	t.Used = true
	return true, nil
}

func (r *memTokenRepo) DeleteDead(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, t := range r.rows {
		if t.Used || t.ExpiresAt.Before(now) {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

func newTokenService(repo *memTokenRepo) *usecase.EmailTokenService {
	return usecase.NewEmailTokenService(repo, secrets.NewHasher(nil), slog.Default())
}

const tokenUserID = "user-1"

func TestCreateThenVerify_ReturnsUserID(t *testing.T) {
	svc := newTokenService(newMemTokenRepo())

	raw, id, err := svc.Create(context.Background(), tokenUserID, domain.KindPasswordReset, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := svc.Verify(context.Background(), id, raw, domain.KindPasswordReset)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != tokenUserID {
		t.Errorf("userID = %q, want %q", got, tokenUserID)
	}
}

func TestVerify_SecondUse_ExpiredOrUsed(t *testing.T) {
	svc := newTokenService(newMemTokenRepo())

	raw, id, err := svc.Create(context.Background(), tokenUserID, domain.KindPasswordReset, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Verify(context.Background(), id, raw, domain.KindPasswordReset); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	_, err = svc.Verify(context.Background(), id, raw, domain.KindPasswordReset)
	if !errors.Is(err, domain.ErrTokenExpiredOrUsed) {
		t.Errorf("second verify: want ErrTokenExpiredOrUsed, got %v", err)
	}
}

func TestVerify_AfterExpiry_ExpiredOrUsed(t *testing.T) {
	svc := newTokenService(newMemTokenRepo())

	raw, id, err := svc.Create(context.Background(), tokenUserID, domain.KindPasswordReset, -time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.Verify(context.Background(), id, raw, domain.KindPasswordReset)
	if !errors.Is(err, domain.ErrTokenExpiredOrUsed) {
		t.Errorf("want ErrTokenExpiredOrUsed, got %v", err)
	}
}

func TestVerify_WrongKind_Invalid(t *testing.T) {
	svc := newTokenService(newMemTokenRepo())

	raw, id, err := svc.Create(context.Background(), tokenUserID, domain.KindPasswordReset, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.Verify(context.Background(), id, raw, domain.KindEmailVerify)
	if !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("want ErrTokenInvalid, got %v", err)
	}
}

func TestVerify_AlteredSecret_Invalid(t *testing.T) {
	svc := newTokenService(newMemTokenRepo())

	raw, id, err := svc.Create(context.Background(), tokenUserID, domain.KindPasswordReset, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Flip a single hex digit of the secret.
	altered := []byte(raw)
	if altered[0] == 'a' {
		altered[0] = 'b'
	} else {
		altered[0] = 'a'
	}

	_, err = svc.Verify(context.Background(), id, string(altered), domain.KindPasswordReset)
	if !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("want ErrTokenInvalid, got %v", err)
	}
}

func TestVerify_UnknownID_Invalid(t *testing.T) {
	svc := newTokenService(newMemTokenRepo())

	_, err := svc.Verify(context.Background(), "no-such-id", "whatever", domain.KindPasswordReset)
	if !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("want ErrTokenInvalid, got %v", err)
	}
}

func TestCreate_StoresHashNotSecret(t *testing.T) {
	repo := newMemTokenRepo()
	svc := newTokenService(repo)

	raw, id, err := svc.Create(context.Background(), tokenUserID, domain.KindEmailVerify, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	stored := repo.rows[id]
	if stored.TokenHash == raw {
		t.Error("repository stores the raw secret")
	}
	if stored.TokenHash != secrets.NewHasher(nil).Hash(raw) {
		t.Error("stored hash is not the digest of the raw secret")
	}
	if stored.Used {
		t.Error("new token is already marked used")
	}
}
