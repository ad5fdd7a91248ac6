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

// RegistrationHandler serves account creation and email verification.
type RegistrationHandler struct {
	registration *usecase.RegistrationService
	metrics      *telemetry.Metrics
	log          *zap.Logger
}

func NewRegistrationHandler(registration *usecase.RegistrationService, metrics *telemetry.Metrics, log *zap.Logger) *RegistrationHandler {
	return &RegistrationHandler{registration: registration, metrics: metrics, log: log}
}

func (h *RegistrationHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body")
		return
	}

	reqCtx := middleware.GetRequestContext(c)
	result, err := h.registration.Register(c.Request.Context(), usecase.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.Name,
		TenantSlug:  req.TenantSlug,
		IP:          reqCtx.IP,
		UserAgent:   reqCtx.UserAgent,
	})
	if err != nil {
		RespondWithMappedError(c, h.log, err, []ErrorCase{
			{Err: usecase.ErrEmailTaken, Status: http.StatusConflict},
			{Err: usecase.ErrWeakPassword, Status: http.StatusBadRequest},
			{Err: usecase.ErrTenantNotFound, Status: http.StatusNotFound},
			{Err: usecase.ErrDefaultTenantMissing, Status: http.StatusInternalServerError, Message: "Internal server error"},
		})
		return
	}

	h.metrics.CodesIssued.WithLabelValues(string(domain.PurposeEmailVerification)).Inc()
	c.JSON(http.StatusCreated, RegisterResponse{
		Message:   result.Message,
		AccountID: result.AccountID,
	})
}

func (h *RegistrationHandler) VerifyOtp(c *gin.Context) {
	var req VerifyOtpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body")
		return
	}

	if err := h.registration.VerifyOtp(c.Request.Context(), req.Email, req.Code, requestMeta(c)); err != nil {
		h.respondVerifyError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Email verified successfully"})
}

func (h *RegistrationHandler) VerifyEmail(c *gin.Context) {
	var req VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body")
		return
	}

	if err := h.registration.VerifyEmail(c.Request.Context(), req.Code, requestMeta(c)); err != nil {
		h.respondVerifyError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Email verified successfully"})
}

func (h *RegistrationHandler) ResendVerification(c *gin.Context) {
	var req ResendVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body")
		return
	}

	if err := h.registration.ResendVerification(c.Request.Context(), req.Email, requestMeta(c)); err != nil {
		RespondWithMappedError(c, h.log, err, []ErrorCase{
			{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "Account not found"},
			{Err: usecase.ErrAlreadyVerified, Status: http.StatusConflict},
			{Err: usecase.ErrSendFailed, Status: http.StatusBadGateway},
		})
		return
	}

	h.metrics.CodesIssued.WithLabelValues(string(domain.PurposeEmailVerification)).Inc()
	c.JSON(http.StatusOK, MessageResponse{Message: "Verification code sent"})
}

func (h *RegistrationHandler) respondVerifyError(c *gin.Context, err error) {
	RespondWithMappedError(c, h.log, err, []ErrorCase{
		{Err: usecase.ErrCredentialInvalid, Status: http.StatusUnauthorized},
		{Err: usecase.ErrCredentialExpired, Status: http.StatusUnauthorized},
	})
}
