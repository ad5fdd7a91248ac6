package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind discriminates access tokens from refresh tokens.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

var (
	// ErrInvalidToken indicates the token is malformed, carries a bad
	// signature, or has expired.
	ErrInvalidToken = errors.New("invalid token")
)

// TokenClaims is the payload carried by every signed token.
type TokenClaims struct {
	Email    string    `json:"email"`
	Role     string    `json:"role"`
	TenantID string    `json:"tenant_id"`
	Kind     TokenKind `json:"type"`
	jwt.RegisteredClaims
}

// TokenCodec signs, verifies, and decodes compact HS256 tokens.
type TokenCodec struct {
	secret []byte
	issuer string
}

// NewTokenCodec constructs a codec around the shared signing secret.
func NewTokenCodec(secret, issuer string) (*TokenCodec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("signing secret is required")
	}
	return &TokenCodec{secret: []byte(secret), issuer: issuer}, nil
}

// SignInput carries the payload fields embedded into a token.
type SignInput struct {
	Subject  string
	Email    string
	Role     string
	TenantID string
	Kind     TokenKind
}

// Sign produces a compact signed token expiring after ttl.
func (c *TokenCodec) Sign(input SignInput, ttl time.Duration) (string, error) {
	if input.Subject == "" {
		return "", fmt.Errorf("subject is required")
	}
	if ttl == 0 {
		return "", fmt.Errorf("ttl is required")
	}

	now := time.Now().UTC()
	claims := TokenClaims{
		Email:    input.Email,
		Role:     input.Role,
		TenantID: input.TenantID,
		Kind:     input.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   input.Subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Verify validates the signature and expiry and returns the claims.
func (c *TokenCodec) Verify(token string) (*TokenClaims, error) {
	return c.parse(token, true)
}

// Decode validates the signature only, ignoring expiry. Used for revocation
// lookups where an expired token must still be identifiable.
func (c *TokenCodec) Decode(token string) (*TokenClaims, error) {
	return c.parse(token, false)
}

func (c *TokenCodec) parse(token string, enforceExpiry bool) (*TokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if !enforceExpiry {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := &TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if parsed == nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
