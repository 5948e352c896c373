package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aybekd/meetgrid/config"
	"github.com/aybekd/meetgrid/internal/email"
	"github.com/aybekd/meetgrid/internal/health"
	"github.com/aybekd/meetgrid/internal/infrastructure/postgres"
	ctxlog "github.com/aybekd/meetgrid/internal/log"
	"github.com/aybekd/meetgrid/internal/metrics"
	"github.com/aybekd/meetgrid/internal/secrets"
	httptransport "github.com/aybekd/meetgrid/internal/transport/http"
	"github.com/aybekd/meetgrid/internal/transport/http/handler"
	"github.com/aybekd/meetgrid/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	userRepo := postgres.NewUserRepository(pool)
	emailTokenRepo := postgres.NewEmailTokenRepository(pool)
	refreshTokenRepo := postgres.NewRefreshTokenRepository(pool)

	sender, err := newSender(cfg, logger)
	if err != nil {
		stop()
		log.Fatalf("mail transport: %v", err)
	}

	hasher := secrets.NewHasher([]byte(cfg.TokenPepper))
	tokenService := usecase.NewEmailTokenService(emailTokenRepo, hasher, logger)

	authUsecase := usecase.NewAuthUsecase(userRepo, refreshTokenRepo, tokenService,
		sender, hasher, []byte(cfg.JWTSecret), cfg.LinkBaseURL, logger)
	authUsecase.SetTTLs(cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cfg.ResetTokenTTL, cfg.VerifyTokenTTL)

	authHandler := handler.NewAuthHandler(authUsecase, logger, cfg.Env != "local")

	metrics.Register()
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)

	srv := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, authHandler, []byte(cfg.JWTSecret)),
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}

func newSender(cfg *config.Config, logger *slog.Logger) (email.Sender, error) {
	switch cfg.MailProvider {
	case "smtp":
		return email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	case "resend":
		return email.NewResendSender(cfg.ResendAPIKey, cfg.ResendFrom)
	default:
		return email.NewLogSender(logger), nil
	}
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
