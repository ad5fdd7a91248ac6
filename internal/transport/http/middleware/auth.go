package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/helioscale/platform-auth/internal/infra/security"
)

// ClaimsKey is the gin context key for verified token claims.
const ClaimsKey = "token_claims"

// RequireAuth validates the bearer access token and stores its claims in the
// request context. Refresh tokens are rejected here.
func RequireAuth(codec *security.TokenCodec) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c, "Missing or malformed Authorization header")
			return
		}

		claims, err := codec.Verify(token)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}
		if claims.Kind != security.TokenKindAccess {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(AccountIDKey, claims.Subject)
		c.Set(ClaimsKey, claims)
		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.AccountID = claims.Subject
		}

		c.Next()
	}
}

// GetAccountID retrieves the authenticated account id set by RequireAuth.
func GetAccountID(c *gin.Context) (string, bool) {
	id, exists := c.Get(AccountIDKey)
	if !exists {
		return "", false
	}
	accountID, ok := id.(string)
	return accountID, ok && accountID != ""
}

// GetClaims retrieves the verified token claims set by RequireAuth.
func GetClaims(c *gin.Context) (*security.TokenClaims, bool) {
	value, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*security.TokenClaims)
	return claims, ok
}

func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func abortUnauthorized(c *gin.Context, message string) {
	c.Header("WWW-Authenticate", `Bearer realm="platform-auth"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":    message,
		"trace_id": GetTraceID(c),
	})
}
