package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
)

var errMappingSentinel = errors.New("something specific happened")

func respondVia(t *testing.T, err error, cases []ErrorCase) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/test", nil)

	RespondWithMappedError(c, zaptest.NewLogger(t), err, cases)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestRespondWithMappedErrorUsesCaseMessage(t *testing.T) {
	rec := respondVia(t, errMappingSentinel, []ErrorCase{
		{Err: errMappingSentinel, Status: http.StatusConflict, Message: "A friendly message"},
	})

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Error != "A friendly message" {
		t.Fatalf("unexpected message %q", body.Error)
	}
}

func TestRespondWithMappedErrorFallsBackToErrorText(t *testing.T) {
	wrapped := fmt.Errorf("attempt 3 of 5: %w", errMappingSentinel)
	rec := respondVia(t, wrapped, []ErrorCase{
		{Err: errMappingSentinel, Status: http.StatusLocked},
	})

	if rec.Code != http.StatusLocked {
		t.Fatalf("expected 423, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Error != wrapped.Error() {
		t.Fatalf("expected wrapped error text, got %q", body.Error)
	}
}

func TestRespondWithMappedErrorMatchesWrappedSentinels(t *testing.T) {
	wrapped := fmt.Errorf("outer context: %w", errMappingSentinel)
	rec := respondVia(t, wrapped, []ErrorCase{
		{Err: errMappingSentinel, Status: http.StatusBadRequest, Message: "Mapped"},
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrapped sentinel, got %d", rec.Code)
	}
}

func TestRespondWithMappedErrorUnknownErrorIsGeneric500(t *testing.T) {
	rec := respondVia(t, errors.New("pq: connection refused"), []ErrorCase{
		{Err: errMappingSentinel, Status: http.StatusBadRequest, Message: "Mapped"},
	})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Error != "Internal server error" {
		t.Fatalf("internal detail leaked to client: %q", body.Error)
	}
}
