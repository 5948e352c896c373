package httptransport

import (
	"log/slog"

	"github.com/aybekd/meetgrid/internal/transport/http/handler"
	"github.com/aybekd/meetgrid/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

func NewRouter(logger *slog.Logger, authHandler *handler.AuthHandler, jwtKey []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	// Public credential routes. The refresh cookie is scoped to /auth,
	// so everything that touches it has to live under this group.
	auth := r.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", authHandler.Logout)
	auth.POST("/forgot-password", authHandler.ForgotPassword)
	auth.POST("/reset-password", authHandler.ResetPassword)
	auth.POST("/verify-email", authHandler.VerifyEmail)

	// Protected routes
	api := r.Group("", middleware.Auth(jwtKey))
	api.GET("/me", authHandler.Me)

	return r
}
