// Package housekeeping purges dead credential rows: email tokens that are
// used or past expiry, and refresh tokens past expiry. Rows stay valid
// without it (every read path checks expiry and the used flag), so the
// sweeper only keeps the tables from growing without bound.
package housekeeping

import (
	"context"
	"log/slog"
	"time"

	"github.com/aybekd/meetgrid/internal/metrics"
	"github.com/aybekd/meetgrid/internal/repository"
	"github.com/robfig/cron/v3"
)

type Sweeper struct {
	emailTokens   repository.EmailTokenRepository
	refreshTokens repository.RefreshTokenRepository
	schedule      cron.Schedule
	logger        *slog.Logger
}

// NewSweeper parses spec as a standard cron expression (descriptors like
// @hourly work too).
func NewSweeper(
	emailTokens repository.EmailTokenRepository,
	refreshTokens repository.RefreshTokenRepository,
	spec string,
	logger *slog.Logger,
) (*Sweeper, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, err
	}

	return &Sweeper{
		emailTokens:   emailTokens,
		refreshTokens: refreshTokens,
		schedule:      schedule,
		logger:        logger.With("component", "sweeper"),
	}, nil
}

// Start runs sweep cycles on the configured schedule until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("sweeper started")

	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("sweeper shut down")
			return
		case <-timer.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one purge cycle. Failures are logged and the other table is
// still attempted.
func (s *Sweeper) Sweep(ctx context.Context) {
	start := time.Now()

	emailPurged, err := s.emailTokens.DeleteDead(ctx, time.Now())
	if err != nil {
		s.logger.ErrorContext(ctx, "purge email tokens", "error", err)
	} else {
		metrics.SweeperPurgedTotal.WithLabelValues("email_tokens").Add(float64(emailPurged))
	}

	refreshPurged, err := s.refreshTokens.DeleteExpired(ctx, time.Now())
	if err != nil {
		s.logger.ErrorContext(ctx, "purge refresh tokens", "error", err)
	} else {
		metrics.SweeperPurgedTotal.WithLabelValues("refresh_tokens").Add(float64(refreshPurged))
	}

	metrics.SweeperCycleDuration.Observe(time.Since(start).Seconds())

	if emailPurged > 0 || refreshPurged > 0 {
		s.logger.InfoContext(ctx, "sweep cycle",
			"email_tokens", emailPurged,
			"refresh_tokens", refreshPurged,
			"took", time.Since(start))
	}
}
