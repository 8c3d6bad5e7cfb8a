// Package main is the entry point for the demo service. It wires the
// interceptor chain (audit, idempotency, cache, rate limit, retry) over
// Postgres and exposes it through the §8 demo HTTP surface.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/riftlabs/interlock/internal/cache"
	"github.com/riftlabs/interlock/internal/chain"
	"github.com/riftlabs/interlock/internal/config"
	"github.com/riftlabs/interlock/internal/credentials"
	"github.com/riftlabs/interlock/internal/events"
	"github.com/riftlabs/interlock/internal/observability"
	"github.com/riftlabs/interlock/internal/policy"
	"github.com/riftlabs/interlock/internal/postgres"
	"github.com/riftlabs/interlock/internal/repository"
	"github.com/riftlabs/interlock/internal/service"
	"github.com/riftlabs/interlock/internal/subject"
	httpTransport "github.com/riftlabs/interlock/internal/transport/http"
	"github.com/riftlabs/interlock/internal/vault"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.AppEnv, "interlock")
	logger.Info("starting interlock demo service")
	logger.WithFields(map[string]interface{}{
		"environment": cfg.AppEnv,
		"http_port":   cfg.Server.Port,
	}).Info("configuration loaded")

	ctx := context.Background()

	var vaultClient *vault.Client
	if cfg.Vault.Enabled {
		vaultClient, err = vault.NewClient(cfg.Vault.Addr, cfg.Vault.Token)
		if err != nil {
			logger.WithField("error", err.Error()).Fatal("failed to initialize vault client")
		}
		if !vaultClient.IsAvailable(ctx) {
			logger.Warn("vault is configured but not available, falling back to environment variables")
		}
	} else {
		vaultClient = vault.NewDisabledClient()
	}

	if err := cfg.LoadSecretsFromVault(ctx, vaultClient); err != nil {
		logger.WithField("error", err.Error()).Fatal("failed to load secrets from vault")
	}

	dbPool, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		logger.WithField("error", err.Error()).Fatal("failed to initialize database")
	}
	defer dbPool.Close()
	logger.Info("database connection pool initialized")

	metrics := observability.NewMetricsCollector("interlock", "chain")

	txManager := postgres.NewTxManager(dbPool)
	auditRepo := repository.NewAuditRepository(dbPool.Unwrap(), logger)
	idempotencyRepo := repository.NewIdempotencyRepository(txManager, logger)
	policyRepo := repository.NewPolicyRepository(dbPool.Unwrap())

	cacheManager := cache.NewManager(60 * time.Second)
	policyStore := policy.NewStore(policyRepo, cacheManager)

	auditStage := chain.NewAuditStage(auditRepo, logger, metrics, cfg.Chain.MaxPayloadChars)
	if publisher := initAuditPublisher(ctx, cfg, logger); publisher != nil {
		auditStage = auditStage.WithPublisher(publisher)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.WithField("error", err.Error()).Warn("failed to close audit stream publisher")
			}
		}()
	}

	idempotencyStage := chain.NewIdempotencyStage(idempotencyRepo, policyStore, metrics)
	cacheStage := chain.NewCacheStage(cacheManager, policyStore, metrics)
	rateLimitStage := chain.NewRateLimitStage(policyStore, metrics)
	retryStage := chain.NewRetryStage(policyStore, metrics)

	c := chain.New(cfg.Chain, auditStage, idempotencyStage, cacheStage, rateLimitStage, retryStage)

	credentialStore := credentials.NewInMemoryStore(map[string]*credentials.APIClient{
		hashDemoAPIKey("demo-api-key", cfg.Chain.Security.APIKeyPepper): {
			ID: "demo-client", Name: "demo-client", Enabled: true,
		},
	})
	resolver := subject.NewResolver(credentialStore, cfg.Chain.Security.APIKeyPepper, cfg.Chain.Security.APIKeyAlgorithm)

	if cfg.Tracing.Enabled {
		if _, err := observability.NewTracerProvider(ctx, observability.TracerConfig{
			ServiceName: cfg.Tracing.ServiceName,
			Environment: cfg.AppEnv,
			Enabled:     cfg.Tracing.Enabled,
		}); err != nil {
			logger.WithField("error", err.Error()).Warn("failed to initialize tracer provider, continuing without tracing")
		} else {
			logger.Info("opentelemetry tracing enabled")
		}
	}

	auditRetentionJob := service.NewAuditRetentionJob(auditRepo, logger, 90*24*time.Hour, time.Hour)
	auditRetentionJob.Start(ctx)
	defer auditRetentionJob.Stop()

	idempotencyCleanupJob, err := service.NewIdempotencyCleanupJob(idempotencyRepo, logger, cfg.Chain.IdempotencyCleanupCron)
	if err != nil {
		logger.WithField("error", err.Error()).Fatal("failed to initialize idempotency cleanup job")
	}
	idempotencyCleanupJob.Start(ctx)
	defer idempotencyCleanupJob.Stop()

	go reportPoolStatsPeriodically(dbPool, metrics)

	ginMode := "release"
	if cfg.IsDevelopment() {
		ginMode = "debug"
	}
	router := httpTransport.SetupRouter(c, resolver, logger, metrics, ginMode)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("address", addr).Info("starting http server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithField("error", err.Error()).Fatal("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithField("error", err.Error()).Error("http server forced to shutdown")
	}

	logger.Info("server stopped gracefully")
}

// initDatabase initializes the PostgreSQL connection pool backing the
// idempotency, audit, and policy repositories.
func initDatabase(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*postgres.Pool, error) {
	logger.WithFields(map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Name,
	}).Info("connecting to database")

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.GetDatabaseURL()))
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return pool, nil
}

// initAuditPublisher wires the best-effort Redis fan-out side channel
// (§4.11). A nil return disables fan-out entirely without affecting the
// audit write path itself.
func initAuditPublisher(ctx context.Context, cfg *config.Config, logger *observability.Logger) *events.RedisAuditStreamPublisher {
	redisAddr := cfg.GetRedisAddr()
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.WithField("error", err.Error()).Warn("failed to connect to redis, audit stream fan-out disabled")
		return nil
	}

	var zapLogger *zap.Logger
	var err error
	if cfg.IsProduction() {
		zapLogger, err = zap.NewProduction()
	} else {
		zapLogger, err = zap.NewDevelopment()
	}
	if err != nil {
		logger.WithField("error", err.Error()).Warn("failed to create zap logger for audit stream publisher")
		return nil
	}

	logger.WithField("redis_addr", redisAddr).Info("audit stream fan-out enabled")
	return events.NewRedisAuditStreamPublisher(redisClient, zapLogger)
}

// hashDemoAPIKey computes the same salted digest subject.Resolver uses, so
// the seeded demo credential is keyed consistently with resolved subjects.
func hashDemoAPIKey(key, pepper string) string {
	sum := sha256.Sum256([]byte(pepper + key))
	return hex.EncodeToString(sum[:])
}

func reportPoolStatsPeriodically(pool *postgres.Pool, metrics *observability.MetricsCollector) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		postgres.ReportPoolStats(pool.Unwrap(), metrics)
	}
}
