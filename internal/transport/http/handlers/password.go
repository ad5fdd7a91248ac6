package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/helioscale/platform-auth/internal/core/domain"
	"github.com/helioscale/platform-auth/internal/infra/telemetry"
	"github.com/helioscale/platform-auth/internal/transport/http/middleware"
	"github.com/helioscale/platform-auth/internal/usecase"
)

// PasswordHandler serves the forgot, reset, and change password flows.
type PasswordHandler struct {
	password *usecase.PasswordService
	metrics  *telemetry.Metrics
	log      *zap.Logger
}

func NewPasswordHandler(password *usecase.PasswordService, metrics *telemetry.Metrics, log *zap.Logger) *PasswordHandler {
	return &PasswordHandler{password: password, metrics: metrics, log: log}
}

// Forgot always answers 200 with the same message so the endpoint cannot be
// used to probe which emails are registered.
func (h *PasswordHandler) Forgot(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body")
		return
	}

	message, err := h.password.ForgotPassword(c.Request.Context(), req.Email, requestMeta(c))
	if err != nil {
		RespondWithMappedError(c, h.log, err, nil)
		return
	}

	h.metrics.CodesIssued.WithLabelValues(string(domain.PurposePasswordReset)).Inc()
	c.JSON(http.StatusOK, MessageResponse{Message: message})
}

func (h *PasswordHandler) Reset(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body")
		return
	}

	message, err := h.password.ResetPassword(c.Request.Context(), req.Code, req.NewPassword, requestMeta(c))
	if err != nil {
		RespondWithMappedError(c, h.log, err, []ErrorCase{
			{Err: usecase.ErrCredentialInvalid, Status: http.StatusUnauthorized},
			{Err: usecase.ErrCredentialExpired, Status: http.StatusUnauthorized},
			{Err: usecase.ErrWeakPassword, Status: http.StatusBadRequest},
		})
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: message})
}

// Change requires an authenticated caller; the account comes from the token.
func (h *PasswordHandler) Change(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body")
		return
	}

	accountID, ok := middleware.GetAccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "Authentication required"))
		return
	}

	message, err := h.password.ChangePassword(c.Request.Context(), accountID, req.CurrentPassword, req.NewPassword, requestMeta(c))
	if err != nil {
		RespondWithMappedError(c, h.log, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "Current password is incorrect"},
			{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "Account not found"},
			{Err: usecase.ErrWeakPassword, Status: http.StatusBadRequest},
		})
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: message})
}
