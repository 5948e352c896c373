package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aybekd/meetgrid/internal/domain"
	"github.com/aybekd/meetgrid/internal/usecase"
	"github.com/gin-gonic/gin"
)

// refreshCookieName is the HttpOnly cookie carrying the refresh credential.
// It is scoped to /auth so it never rides along on ordinary API calls.
const refreshCookieName = "meetgrid_refresh"

// authUsecaser is the subset of AuthUsecase the handler needs.
// Defined here (point of use) so tests can inject a fake.
type authUsecaser interface {
	Register(ctx context.Context, username, email, password string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*usecase.Session, error)
	Refresh(ctx context.Context, rawRefresh string) (*usecase.Session, error)
	Logout(ctx context.Context, rawRefresh string) error
	ForgotPassword(ctx context.Context, login string) error
	ResetPassword(ctx context.Context, tokenID, rawSecret, newPassword string) error
	VerifyEmail(ctx context.Context, tokenID, rawSecret string) error
	User(ctx context.Context, id string) (*domain.User, error)
}

type AuthHandler struct {
	auth          authUsecaser
	logger        *slog.Logger
	secureCookies bool
}

func NewAuthHandler(auth authUsecaser, logger *slog.Logger, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		auth:          auth,
		logger:        logger.With("component", "auth_handler"),
		secureCookies: secureCookies,
	}
}

type registerRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32,alphanum"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateUser) {
			c.JSON(http.StatusConflict, gin.H{"error": domain.ErrDuplicateUser.Error()})
			return
		}
		if errors.Is(err, domain.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "register", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": user.ID, "username": user.Username})
}

type loginRequest struct {
	Username   string `json:"username" binding:"required"`
	Password   string `json:"password" binding:"required"`
	RememberMe bool   `json:"rememberMe"`
}

// POST /auth/login
// Returns the access token in the body; the refresh credential travels only
// in the HttpOnly cookie. rememberMe is echoed back so the client knows
// which cache scope to use.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrAuthFailed) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": errInvalidCredentials})
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "login", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	h.setRefreshCookie(c, session)
	c.JSON(http.StatusOK, gin.H{
		"token":      session.AccessToken,
		"username":   session.Username,
		"rememberMe": req.RememberMe,
	})
}

// POST /auth/refresh
// The refresh credential comes from the cookie side channel, never the body.
func (h *AuthHandler) Refresh(c *gin.Context) {
	raw, _ := c.Cookie(refreshCookieName)

	session, err := h.auth.Refresh(c.Request.Context(), raw)
	if err != nil {
		if errors.Is(err, domain.ErrAuthFailed) {
			h.clearRefreshCookie(c)
			c.JSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "refresh", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	h.setRefreshCookie(c, session)
	c.JSON(http.StatusOK, gin.H{"token": session.AccessToken})
}

// POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	raw, _ := c.Cookie(refreshCookieName)

	if err := h.auth.Logout(c.Request.Context(), raw); err != nil {
		h.logger.ErrorContext(c.Request.Context(), "logout", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	h.clearRefreshCookie(c)
	c.Status(http.StatusNoContent)
}

type forgotPasswordRequest struct {
	Login string `json:"login" binding:"required"`
}

// POST /auth/forgot-password
// Always answers with the same acknowledgement so the response cannot be
// used to enumerate accounts.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.auth.ForgotPassword(c.Request.Context(), req.Login); err != nil {
		h.logger.ErrorContext(c.Request.Context(), "forgot password", "error", err)
	}

	c.JSON(http.StatusAccepted, gin.H{"message": ackForgotPassword})
}

type resetPasswordRequest struct {
	TokenID         string `json:"tokenId" binding:"required"`
	Secret          string `json:"secret" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" binding:"required,eqfield=NewPassword"`
}

// POST /auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.auth.ResetPassword(c.Request.Context(), req.TokenID, req.Secret, req.NewPassword); err != nil {
		h.respondTokenError(c, err, "reset password")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

type verifyEmailRequest struct {
	TokenID string `json:"tokenId" binding:"required"`
	Secret  string `json:"secret" binding:"required"`
}

// POST /auth/verify-email
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.auth.VerifyEmail(c.Request.Context(), req.TokenID, req.Secret); err != nil {
		h.respondTokenError(c, err, "verify email")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "email verified"})
}

// GET /me
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetString("userID")

	user, err := h.auth.User(c.Request.Context(), userID)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "load user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":            user.ID,
		"username":      user.Username,
		"email":         user.Email,
		"emailVerified": user.EmailVerified,
	})
}

// respondTokenError collapses invalid and expired-or-used into one generic
// message. The distinction stays in the logs for diagnostics; exposing it
// would give an oracle on token validity.
func (h *AuthHandler) respondTokenError(c *gin.Context, err error, op string) {
	if errors.Is(err, domain.ErrValidation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if errors.Is(err, domain.ErrTokenInvalid) || errors.Is(err, domain.ErrTokenExpiredOrUsed) {
		h.logger.InfoContext(c.Request.Context(), op+" rejected", "reason", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": errTokenInvalid})
		return
	}
	h.logger.ErrorContext(c.Request.Context(), op, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, session *usecase.Session) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, session.RefreshSecret,
		int(session.RefreshTTL.Seconds()), "/auth", "", h.secureCookies, true)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, "", -1, "/auth", "", h.secureCookies, true)
}
