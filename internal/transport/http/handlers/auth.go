package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/helioscale/platform-auth/internal/infra/security"
	"github.com/helioscale/platform-auth/internal/infra/telemetry"
	"github.com/helioscale/platform-auth/internal/transport/http/middleware"
	"github.com/helioscale/platform-auth/internal/usecase"
)

// AuthHandler serves login, refresh, and logout.
type AuthHandler struct {
	auth    *usecase.AuthService
	metrics *telemetry.Metrics
	log     *zap.Logger
}

func NewAuthHandler(auth *usecase.AuthService, metrics *telemetry.Metrics, log *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, metrics: metrics, log: log}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body")
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password, requestMeta(c))
	if err != nil {
		h.countLogin(err)
		RespondWithMappedError(c, h.log, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "Invalid email or password"},
			{Err: usecase.ErrAccountLocked, Status: http.StatusLocked},
			{Err: usecase.ErrAccountDeactivated, Status: http.StatusForbidden, Message: "Account is deactivated"},
			{Err: usecase.ErrEmailNotVerified, Status: http.StatusForbidden, Message: "Email address is not verified"},
		})
		return
	}

	h.metrics.LoginOutcomes.WithLabelValues("success").Inc()
	c.JSON(http.StatusOK, LoginResponse{
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		Profile:      result.Profile,
	})
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body")
		return
	}

	tokens, err := h.auth.RefreshTokens(c.Request.Context(), req.RefreshToken, requestMeta(c))
	if err != nil {
		RespondWithMappedError(c, h.log, err, []ErrorCase{
			{Err: usecase.ErrCredentialInvalid, Status: http.StatusUnauthorized, Message: "Invalid or expired refresh token"},
			{Err: usecase.ErrCredentialExpired, Status: http.StatusUnauthorized, Message: "Invalid or expired refresh token"},
			{Err: usecase.ErrInvalidTokenType, Status: http.StatusUnauthorized, Message: "Invalid or expired refresh token"},
			{Err: security.ErrInvalidToken, Status: http.StatusUnauthorized, Message: "Invalid or expired refresh token"},
			{Err: usecase.ErrAccountDeactivated, Status: http.StatusForbidden, Message: "Account is deactivated"},
		})
		return
	}

	c.JSON(http.StatusOK, RefreshResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body")
		return
	}

	if err := h.auth.RevokeRefreshToken(c.Request.Context(), req.RefreshToken); err != nil {
		RespondWithMappedError(c, h.log, err, []ErrorCase{
			{Err: security.ErrInvalidToken, Status: http.StatusUnauthorized, Message: "Invalid refresh token"},
			{Err: usecase.ErrInvalidTokenType, Status: http.StatusUnauthorized, Message: "Invalid refresh token"},
			{Err: usecase.ErrRefreshTokenNotFound, Status: http.StatusNotFound, Message: "Refresh token not found"},
		})
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Logged out"})
}

func (h *AuthHandler) countLogin(err error) {
	switch {
	case errors.Is(err, usecase.ErrAccountLocked):
		h.metrics.LoginOutcomes.WithLabelValues("locked").Inc()
	case errors.Is(err, usecase.ErrInvalidCredentials):
		h.metrics.LoginOutcomes.WithLabelValues("invalid_credentials").Inc()
	default:
		h.metrics.LoginOutcomes.WithLabelValues("error").Inc()
	}
}

// requestMeta extracts client metadata for audit and credential records.
func requestMeta(c *gin.Context) usecase.RequestMeta {
	reqCtx := middleware.GetRequestContext(c)
	return usecase.RequestMeta{IP: reqCtx.IP, UserAgent: reqCtx.UserAgent}
}
