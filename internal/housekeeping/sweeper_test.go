package housekeeping

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aybekd/meetgrid/internal/repository"
)

type fakeEmailTokens struct {
	repository.EmailTokenRepository
	deleteDead func(ctx context.Context, now time.Time) (int64, error)
}

func (f *fakeEmailTokens) DeleteDead(ctx context.Context, now time.Time) (int64, error) {
	return f.deleteDead(ctx, now)
}

type fakeRefreshTokens struct {
	repository.RefreshTokenRepository
	deleteExpired func(ctx context.Context, now time.Time) (int64, error)
}

func (f *fakeRefreshTokens) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return f.deleteExpired(ctx, now)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewSweeper_RejectsBadSchedule(t *testing.T) {
	_, err := NewSweeper(&fakeEmailTokens{}, &fakeRefreshTokens{}, "not a cron spec", discardLogger())
	if err == nil {
		t.Fatal("expected an error for an invalid schedule")
	}
}

func TestSweep_PurgesBothTables(t *testing.T) {
	var emailCalled, refreshCalled bool
	emails := &fakeEmailTokens{
		deleteDead: func(_ context.Context, _ time.Time) (int64, error) {
			emailCalled = true
			return 3, nil
		},
	}
	refreshes := &fakeRefreshTokens{
		deleteExpired: func(_ context.Context, _ time.Time) (int64, error) {
			refreshCalled = true
			return 2, nil
		},
	}

	s, err := NewSweeper(emails, refreshes, "@hourly", discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	s.Sweep(context.Background())

	if !emailCalled || !refreshCalled {
		t.Errorf("purges ran: email=%v refresh=%v, want both", emailCalled, refreshCalled)
	}
}

func TestSweep_EmailFailureStillPurgesRefreshTokens(t *testing.T) {
	emails := &fakeEmailTokens{
		deleteDead: func(_ context.Context, _ time.Time) (int64, error) {
			return 0, errors.New("db down")
		},
	}
	var refreshCalled bool
	refreshes := &fakeRefreshTokens{
		deleteExpired: func(_ context.Context, _ time.Time) (int64, error) {
			refreshCalled = true
			return 0, nil
		},
	}

	s, err := NewSweeper(emails, refreshes, "@hourly", discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	s.Sweep(context.Background())

	if !refreshCalled {
		t.Error("refresh token purge skipped after email token failure")
	}
}
