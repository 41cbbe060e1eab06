package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	appservice "github.com/turtacn/ccs/internal/application/service"
	"github.com/turtacn/ccs/internal/config"
	"github.com/turtacn/ccs/internal/domain/repository"
	domainservice "github.com/turtacn/ccs/internal/domain/service"
	"github.com/turtacn/ccs/internal/infrastructure/audit"
	"github.com/turtacn/ccs/internal/infrastructure/llm"
	"github.com/turtacn/ccs/internal/infrastructure/monitoring"
	"github.com/turtacn/ccs/internal/infrastructure/persistence/postgres"
	redispkg "github.com/turtacn/ccs/internal/infrastructure/persistence/redis"
	"github.com/turtacn/ccs/internal/infrastructure/ratelimit"
	"github.com/turtacn/ccs/internal/infrastructure/risk"
	"github.com/turtacn/ccs/internal/interfaces/http/handlers"
	"github.com/turtacn/ccs/internal/interfaces/http/router"
	"github.com/turtacn/ccs/pkg/constants"
	"github.com/turtacn/ccs/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		// Nothing is wired yet; the dependency-free JSON logger covers
		// the bootstrap failure path.
		logger.NewDefaultLogger().Fatal(context.Background(), "failed to load config", err)
	}

	appLogger := monitoring.NewZapLogger(&cfg.Log)
	logger.SetGlobalLogger(appLogger)
	ctx := context.Background()

	shutdownTracing, err := monitoring.InitTracing(&cfg.Tracing)
	if err != nil {
		appLogger.Fatal(ctx, "failed to initialize tracing", err)
	}
	defer func() {
		_ = shutdownTracing(context.Background())
	}()

	// Datastore
	db, err := postgres.NewConnection(&cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "failed to connect to database", err)
	}

	// Redis (optional cache and gate backend)
	var redisClient *goredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redispkg.NewClient(&cfg.Redis, appLogger)
		if err != nil {
			appLogger.Fatal(ctx, "failed to connect to redis", err)
		}
		defer redisClient.Close()
	}

	// Repositories
	var tenantRepo repository.TenantRepository = postgres.NewTenantRepository(db, appLogger)
	tenantRepo = redispkg.NewCachedTenantRepository(tenantRepo, redisClient, appLogger)
	sessionRepo := postgres.NewSessionRepository(db, appLogger)
	messageRepo := postgres.NewMessageRepository(db, appLogger)

	// Request gate
	var gate domainservice.RequestGate
	switch {
	case !cfg.RateLimit.Enabled:
		gate = unlimitedGate{limit: cfg.RateLimit.MaxRequests}
	case cfg.RateLimit.Backend == constants.RateLimitBackendRedis && redisClient != nil:
		gate = ratelimit.NewRedisWindowGate(redisClient, cfg.RateLimit.Window(), cfg.RateLimit.MaxRequests, appLogger)
	default:
		gate = ratelimit.NewSlidingWindowGate(cfg.RateLimit.Window(), cfg.RateLimit.MaxRequests, cfg.RateLimit.SweepInterval, appLogger)
	}
	defer gate.Close()

	// Generation backend and risk classifier
	generator, err := llm.NewOpenAIClient(&cfg.Generation, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "failed to construct generation client", err)
	}
	classifier := risk.NewClassifier(generator, &cfg.Risk, cfg.Generation.JudgeModel, appLogger)

	// Audit trail
	var auditTrail domainservice.AuditTrail = audit.NoopAuditTrail{}
	if cfg.Kafka.Enabled {
		kafkaTrail := audit.NewKafkaAuditTrail(&cfg.Kafka, appLogger)
		defer kafkaTrail.Close()
		auditTrail = kafkaTrail
	}

	metrics := monitoring.NewDefaultMetrics()

	// Application services
	sessionSvc := appservice.NewSessionAppService(sessionRepo, appLogger)
	chatSvc := appservice.NewChatAppService(
		gate,
		tenantRepo,
		sessionSvc,
		messageRepo,
		classifier,
		domainservice.RiskPolicy{
			HighThreshold: cfg.Risk.HighThreshold,
			LogThreshold:  cfg.Risk.LogThreshold,
		},
		generator,
		auditTrail,
		metrics,
		appLogger,
	)

	// HTTP surface
	chatHandler := handlers.NewChatHandler(chatSvc, appLogger)
	healthChecks := []handlers.DependencyCheck{
		{Name: "datastore", Check: func(ctx context.Context) error {
			return postgres.Ping(ctx, db)
		}},
		{Name: "generation", Check: func(ctx context.Context) error {
			_, err := generator.Complete(ctx, "", "You are a health probe.", "Reply with OK.")
			return err
		}},
	}
	if redisClient != nil {
		healthChecks = append(healthChecks, handlers.DependencyCheck{
			Name: "redis",
			Check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		})
	}
	healthHandler := handlers.NewHealthHandler(healthChecks...)

	engine := router.New(cfg, chatHandler, healthHandler, metrics, appLogger)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		appLogger.Info(ctx, "server listening", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal(ctx, "server failed", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(ctx, "graceful shutdown failed", err)
	}
}

// unlimitedGate admits everything when rate limiting is disabled.
type unlimitedGate struct {
	limit int
}

func (g unlimitedGate) Admit(context.Context, string) domainservice.AdmitResult {
	return domainservice.AdmitResult{Allowed: true, Limit: g.limit, Remaining: g.limit}
}

func (g unlimitedGate) Close() error { return nil }
