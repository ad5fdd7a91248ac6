package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/helioscale/platform-auth/internal/core/port"
	"github.com/helioscale/platform-auth/internal/infra/logger"
)

// ProblemDetails is an RFC 9457 problem response body.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// IdentifierFunc derives the throttling key from a request.
type IdentifierFunc func(c *gin.Context) string

// ClientIPIdentifier keys the limit on the client IP address.
func ClientIPIdentifier(scope string) IdentifierFunc {
	return func(c *gin.Context) string {
		return scope + ":" + c.ClientIP()
	}
}

// RateLimitRule bounds request volume for one endpoint over a sliding window.
type RateLimitRule struct {
	Name        string
	MaxAttempts int
	Window      time.Duration
	Identifier  IdentifierFunc
}

// RateLimiter enforces sliding-window rules backed by a shared store.
type RateLimiter struct {
	store port.RateLimitStore
	log   *zap.Logger
	now   func() time.Time
}

func NewRateLimiter(store port.RateLimitStore, log *zap.Logger) *RateLimiter {
	return &RateLimiter{
		store: store,
		log:   log,
		now:   time.Now,
	}
}

type ruleResult struct {
	allowed    bool
	remaining  int
	retryAfter time.Duration
}

// Limit returns middleware enforcing the given rule. Store failures let the
// request through so a degraded Redis does not take authentication down.
func (rl *RateLimiter) Limit(rule RateLimitRule) gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := rule.Identifier(c)

		result, err := rl.evaluateRule(c, rule, identifier)
		if err != nil {
			rl.log.Warn("rate limit check failed, allowing request",
				zap.String("rule", rule.Name),
				zap.String("ip", logger.MaskIP(c.ClientIP())),
				zap.Error(err),
			)
			c.Next()
			return
		}

		rl.applyHeaders(c, rule, result)

		if !result.allowed {
			rl.log.Info("rate limit exceeded",
				zap.String("rule", rule.Name),
				zap.String("ip", logger.MaskIP(c.ClientIP())),
				zap.Duration("retry_after", result.retryAfter),
			)
			rl.respondRateLimited(c, result)
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) evaluateRule(c *gin.Context, rule RateLimitRule, identifier string) (ruleResult, error) {
	ctx := c.Request.Context()
	now := rl.now()

	if err := rl.store.TrimWindow(ctx, identifier, rule.Window, now); err != nil {
		return ruleResult{}, fmt.Errorf("trim window: %w", err)
	}

	count, err := rl.store.CountAttempts(ctx, identifier, rule.Window, now)
	if err != nil {
		return ruleResult{}, fmt.Errorf("count attempts: %w", err)
	}

	if count >= rule.MaxAttempts {
		retryAfter := rule.Window
		if oldest, ok, err := rl.store.OldestAttempt(ctx, identifier, rule.Window, now); err == nil && ok {
			retryAfter = oldest.Add(rule.Window).Sub(now)
			if retryAfter < time.Second {
				retryAfter = time.Second
			}
		}
		return ruleResult{allowed: false, remaining: 0, retryAfter: retryAfter}, nil
	}

	if err := rl.store.RecordAttempt(ctx, identifier, now); err != nil {
		return ruleResult{}, fmt.Errorf("record attempt: %w", err)
	}

	return ruleResult{allowed: true, remaining: max(rule.MaxAttempts-count-1, 0)}, nil
}

func (rl *RateLimiter) applyHeaders(c *gin.Context, rule RateLimitRule, result ruleResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(rule.MaxAttempts))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.remaining))
	if !result.allowed {
		c.Header("Retry-After", strconv.Itoa(int(result.retryAfter.Round(time.Second).Seconds())))
	}
}

func (rl *RateLimiter) respondRateLimited(c *gin.Context, result ruleResult) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, ProblemDetails{
		Type:     "https://docs.helioscale.io/problems/rate-limit-exceeded",
		Title:    "Too Many Requests",
		Status:   http.StatusTooManyRequests,
		Detail:   fmt.Sprintf("Rate limit exceeded. Retry after %d seconds.", int(result.retryAfter.Round(time.Second).Seconds())),
		Instance: c.Request.URL.Path,
	})
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
