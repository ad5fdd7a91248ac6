package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/helioscale/platform-auth/internal/core/port"
	"github.com/helioscale/platform-auth/internal/infra/config"
	"github.com/helioscale/platform-auth/internal/infra/database"
	kafkainfra "github.com/helioscale/platform-auth/internal/infra/kafka"
	"github.com/helioscale/platform-auth/internal/infra/logger"
	redisinfra "github.com/helioscale/platform-auth/internal/infra/redis"
	"github.com/helioscale/platform-auth/internal/infra/security"
	"github.com/helioscale/platform-auth/internal/infra/telemetry"
	postgresrepo "github.com/helioscale/platform-auth/internal/repository/postgres"
	redisrepo "github.com/helioscale/platform-auth/internal/repository/redis"
	"github.com/helioscale/platform-auth/internal/transport/http/middleware"
	"github.com/helioscale/platform-auth/internal/transport/http/routes"
	"github.com/helioscale/platform-auth/internal/usecase"
)

// Application owns every long-lived resource of the auth service.
type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	tracer   *telemetry.TracerProvider
}

// New wires configuration, infrastructure, repositories, and services into a
// runnable application.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	var tracer *telemetry.TracerProvider
	if cfg.Telemetry.OTLPEndpoint != "" {
		tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	codec, err := security.NewTokenCodec(cfg.JWT.SigningSecret, cfg.JWT.Issuer)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init token codec: %w", err)
	}
	hasher := security.NewHasher(cfg.Bcrypt.Cost)
	validator := security.DefaultPasswordValidator()

	var producer *kafkainfra.Producer
	var notifier port.Notifier
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub notifier", zap.Error(err))
			notifier = kafkainfra.NewStubNotifier(log)
		} else {
			notifier = kafkainfra.NewNotifier(producer, cfg.App, log)
			log.Info("kafka notifier initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub notifier")
		notifier = kafkainfra.NewStubNotifier(log)
	}

	accounts := postgresrepo.NewAccountRepository(pool)
	tenants := postgresrepo.NewTenantRepository(pool)
	credentials := postgresrepo.NewCredentialRepository(pool)
	audit := postgresrepo.NewAuditRepository(pool)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: "auth:rate-limit",
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	credentialStore := usecase.NewCredentialStore(credentials, cfg.OTP)
	lockout := usecase.NewLockoutTracker(accounts, cfg.Lockout)

	authService := usecase.NewAuthService(cfg, accounts, credentialStore, lockout, audit, hasher, codec, log)
	registrationService := usecase.NewRegistrationService(cfg, accounts, tenants, credentialStore, notifier, audit, hasher, validator, log)
	passwordService := usecase.NewPasswordService(cfg, accounts, credentialStore, notifier, audit, hasher, validator, log)

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		Codec:       codec,
		Metrics:     telemetry.NewMetrics(),
		RateLimiter: rateLimiter,
		Services: routes.Services{
			Auth:         authService,
			Registration: registrationService,
			Password:     passwordService,
		},
		DBCheck: func(ctx context.Context) error {
			return pool.Ping(ctx)
		},
		CacheCheck: redisClient.HealthCheck,
	})

	return &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		producer: producer,
		tracer:   tracer,
	}, nil
}

// Run serves HTTP until ctx is cancelled, then shuts everything down.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.pool.Close()
	defer func() {
		_ = a.redis.Close()
	}()
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()
	defer func() {
		if a.tracer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = a.tracer.Shutdown(shutdownCtx)
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
