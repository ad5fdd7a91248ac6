package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/helioscale/platform-auth/internal/transport/http/middleware"
)

// ErrorCase maps a sentinel error onto an HTTP status and client message.
// An empty Message surfaces err.Error() so typed errors can carry details.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// RespondWithMappedError walks the cases in order and writes the first match.
// Unmatched errors are logged and answered with a generic 500.
func RespondWithMappedError(c *gin.Context, log *zap.Logger, err error, cases []ErrorCase) {
	for _, ec := range cases {
		if !errors.Is(err, ec.Err) {
			continue
		}
		message := ec.Message
		if message == "" {
			message = err.Error()
		}
		c.JSON(ec.Status, NewErrorResponse(c, message))
		return
	}

	log.Error("unhandled error",
		zap.String("path", c.Request.URL.Path),
		zap.String("trace_id", middleware.GetTraceID(c)),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "Internal server error"))
}

// RespondBadRequest answers a request that failed binding or validation.
func RespondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, NewErrorResponse(c, message))
}
