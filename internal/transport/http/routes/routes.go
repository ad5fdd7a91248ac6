package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/helioscale/platform-auth/internal/infra/config"
	"github.com/helioscale/platform-auth/internal/infra/security"
	"github.com/helioscale/platform-auth/internal/infra/telemetry"
	"github.com/helioscale/platform-auth/internal/transport/http/handlers"
	"github.com/helioscale/platform-auth/internal/transport/http/middleware"
	"github.com/helioscale/platform-auth/internal/usecase"
)

// Services bundles the use-case layer consumed by the HTTP transport.
type Services struct {
	Auth         *usecase.AuthService
	Registration *usecase.RegistrationService
	Password     *usecase.PasswordService
}

// Dependencies carries everything the router needs to assemble the API.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	Services    Services
	Codec       *security.TokenCodec
	Metrics     *telemetry.Metrics
	RateLimiter *middleware.RateLimiter
	DBCheck     func(ctx context.Context) error
	CacheCheck  func(ctx context.Context) error
}

// Register assembles the gin engine with all middleware and endpoints.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.EnrichContext(),
		middleware.RequestID(),
		middleware.CORS(),
		middleware.Logger(deps.Logger),
		middleware.Metrics(deps.Metrics),
	)

	healthOpts := []handlers.HealthOption{}
	if deps.DBCheck != nil {
		healthOpts = append(healthOpts, handlers.WithReadinessCheck("postgres", deps.DBCheck))
	}
	if deps.CacheCheck != nil {
		healthOpts = append(healthOpts, handlers.WithReadinessCheck("redis", deps.CacheCheck))
	}

	health := handlers.NewHealthHandler(deps.Logger, healthOpts...)
	auth := handlers.NewAuthHandler(deps.Services.Auth, deps.Metrics, deps.Logger)
	registration := handlers.NewRegistrationHandler(deps.Services.Registration, deps.Metrics, deps.Logger)
	password := handlers.NewPasswordHandler(deps.Services.Password, deps.Metrics, deps.Logger)

	router.GET("/healthz", health.Status)
	router.GET("/readyz", health.Readiness)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rl := deps.Config.RateLimit
	loginLimit := deps.RateLimiter.Limit(middleware.RateLimitRule{
		Name:        "login",
		MaxAttempts: rl.LoginMaxAttempts,
		Window:      rl.WindowDuration,
		Identifier:  middleware.ClientIPIdentifier("login"),
	})
	resetLimit := deps.RateLimiter.Limit(middleware.RateLimitRule{
		Name:        "password_reset",
		MaxAttempts: rl.PasswordResetMaxAttempts,
		Window:      rl.WindowDuration,
		Identifier:  middleware.ClientIPIdentifier("password_reset"),
	})
	resendLimit := deps.RateLimiter.Limit(middleware.RateLimitRule{
		Name:        "resend_verification",
		MaxAttempts: rl.ResendMaxAttempts,
		Window:      rl.WindowDuration,
		Identifier:  middleware.ClientIPIdentifier("resend"),
	})

	api := router.Group("/api/v1/auth")
	{
		api.POST("/register", registration.Register)
		api.POST("/login", loginLimit, auth.Login)
		api.POST("/refresh", auth.Refresh)
		api.POST("/logout", auth.Logout)
		api.POST("/verify-otp", registration.VerifyOtp)
		api.POST("/verify-email", registration.VerifyEmail)
		api.POST("/resend-verification", resendLimit, registration.ResendVerification)
		api.POST("/forgot-password", resetLimit, password.Forgot)
		api.POST("/reset-password", password.Reset)
		api.POST("/change-password", middleware.RequireAuth(deps.Codec), password.Change)
	}

	return router
}
