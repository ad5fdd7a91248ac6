package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/helioscale/platform-auth/internal/infra/security"
)

func newAuthTestRouter(t *testing.T, codec *security.TokenCodec) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(EnrichContext(), RequireAuth(codec))
	router.GET("/protected", func(c *gin.Context) {
		accountID, ok := GetAccountID(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no account id"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"account_id": accountID})
	})
	return router
}

func signTestToken(t *testing.T, codec *security.TokenCodec, kind security.TokenKind, ttl time.Duration) string {
	t.Helper()
	token, err := codec.Sign(security.SignInput{
		Subject:  "account-1",
		Email:    "user@example.com",
		Role:     "end_user",
		TenantID: "tenant-1",
		Kind:     kind,
	}, ttl)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestRequireAuthAcceptsAccessToken(t *testing.T) {
	codec, err := security.NewTokenCodec("middleware-test-secret", "test")
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	router := newAuthTestRouter(t, codec)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, codec, security.TokenKindAccess, time.Hour))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRequireAuthRejectsRefreshToken(t *testing.T) {
	codec, err := security.NewTokenCodec("middleware-test-secret", "test")
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	router := newAuthTestRouter(t, codec)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, codec, security.TokenKindRefresh, time.Hour))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for refresh token, got %d", rec.Code)
	}
}

func TestRequireAuthRejectsMissingAndMalformedHeaders(t *testing.T) {
	codec, err := security.NewTokenCodec("middleware-test-secret", "test")
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	router := newAuthTestRouter(t, codec)

	cases := []struct {
		name   string
		header string
	}{
		{name: "missing", header: ""},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz"},
		{name: "empty token", header: "Bearer "},
		{name: "garbage token", header: "Bearer not-a-token"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestRequireAuthRejectsExpiredToken(t *testing.T) {
	codec, err := security.NewTokenCodec("middleware-test-secret", "test")
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	router := newAuthTestRouter(t, codec)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, codec, security.TokenKindAccess, -time.Minute))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", rec.Code)
	}
}
