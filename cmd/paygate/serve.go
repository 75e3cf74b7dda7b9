package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/radlee/payments-api/cmd/api"
	"github.com/radlee/payments-api/config"
	"github.com/radlee/payments-api/domain/account"
	"github.com/radlee/payments-api/infra/auth"
	"github.com/radlee/payments-api/infra/events"
	"github.com/radlee/payments-api/infra/gateways"
	"github.com/radlee/payments-api/infra/logging"
	"github.com/radlee/payments-api/infra/loki"
	"github.com/radlee/payments-api/infra/repositories"
	"github.com/radlee/payments-api/infra/tracing"
	"github.com/radlee/payments-api/protocols"
	accountuc "github.com/radlee/payments-api/use_cases/account"
	paymentuc "github.com/radlee/payments-api/use_cases/payment"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the payments API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var logSink io.Writer
	lokiWriter := loki.NewWriter(cfg.Loki.URL, cfg.ServiceName, cfg.Env)
	if lokiWriter != nil {
		logSink = lokiWriter
		defer lokiWriter.Close()
	}
	logger, err := logging.New(cfg.Env, logSink)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.ServiceName, cfg.Tracing.Endpoint)
	if err != nil {
		logger.Warn("Tracing disabled", zap.Error(err))
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error("Failed to flush traces", zap.Error(err))
		}
	}()

	clock := gateways.NewSystemClock()
	ledger, err := repositories.NewAccountRepositoryMemory(account.Seed(cfg.Currency))
	if err != nil {
		return fmt.Errorf("failed to seed ledger: %w", err)
	}
	healthChecks := map[string]api.HealthCheck{}

	idempotencyGateway, closeIdempotency := buildIdempotencyGateway(ctx, cfg, clock, logger, healthChecks)
	defer closeIdempotency()

	rateLimiter := gateways.NewRateLimiterMemory(cfg.RateLimit.Limit, cfg.RateLimit.Period, clock)
	if cfg.RateLimit.SweepInterval > 0 {
		go rateLimiter.Run(ctx, cfg.RateLimit.SweepInterval)
	}

	publisher, closePublisher := buildPublisher(cfg, logger, healthChecks)
	defer closePublisher()

	jwtAuth, err := buildAuth(cfg, clock, logger)
	if err != nil {
		return err
	}

	engine := paymentuc.NewEngine(ledger, idempotencyGateway, rateLimiter, publisher, clock, logger.With(zap.String("component", "engine")))
	router := api.NewRouter(api.Options{
		Engine:        engine,
		Accounts:      accountuc.NewView(ledger),
		Authenticator: jwtAuth,
		Issuer:        jwtAuth,
		Clock:         clock,
		Logger:        logger,
		Production:    cfg.IsProduction(),
		HealthChecks:  healthChecks,
	})

	logger.Info("Payments API starting",
		zap.String("env", cfg.Env),
		zap.Int("rate_limit", cfg.RateLimit.Limit),
		zap.Duration("rate_period", cfg.RateLimit.Period),
		zap.String("idempotency_backend", cfg.Idempotency.Backend),
	)
	return api.StartServer(ctx, cfg.Addr(), router, logger)
}

// buildIdempotencyGateway falls back to the in-memory guard when Redis is
// unreachable at startup.
func buildIdempotencyGateway(
	ctx context.Context,
	cfg *config.Config,
	clock protocols.Clock,
	logger *zap.Logger,
	healthChecks map[string]api.HealthCheck,
) (protocols.IdempotencyGateway, func()) {
	if cfg.Idempotency.Retention > 0 {
		logger.Info("Replays after the retention window are executed as new payments",
			zap.Duration("retention", cfg.Idempotency.Retention),
		)
	}
	if cfg.Idempotency.Backend == config.BackendRedis {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Idempotency.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis ping failed, using in-memory idempotency",
				zap.String("redis_addr", cfg.Idempotency.RedisAddr),
				zap.Error(err),
			)
			_ = rdb.Close()
		} else {
			logger.Info("Idempotency: Redis", zap.Duration("retention", cfg.Idempotency.Retention))
			healthChecks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
			return gateways.NewIdempotencyGatewayRedis(rdb, cfg.Idempotency.Retention), func() { _ = rdb.Close() }
		}
	}
	guard := gateways.NewIdempotencyGatewayMemory(clock, cfg.Idempotency.Retention)
	if cfg.Idempotency.Retention > 0 && cfg.Idempotency.SweepInterval > 0 {
		go guard.Run(ctx, cfg.Idempotency.SweepInterval)
	}
	logger.Info("Idempotency: in-memory", zap.Duration("retention", cfg.Idempotency.Retention))
	return guard, func() {}
}

func buildPublisher(cfg *config.Config, logger *zap.Logger, healthChecks map[string]api.HealthCheck) (protocols.EventPublisher, func()) {
	var sinks []protocols.EventSink
	if len(cfg.Events.KafkaBrokers) > 0 {
		sinks = append(sinks, events.NewKafkaSink(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic, logger))
		logger.Info("Payment events: Kafka", zap.Strings("brokers", cfg.Events.KafkaBrokers), zap.String("topic", cfg.Events.KafkaTopic))
	}
	if cfg.Events.MongoURI != "" {
		sink, err := events.NewMongoSink(cfg.Events.MongoURI, cfg.Events.MongoDatabase, cfg.Events.MongoCollection)
		if err != nil {
			logger.Warn("MongoDB journal disabled", zap.Error(err))
		} else {
			sinks = append(sinks, sink)
			healthChecks["mongo"] = sink.Ping
			logger.Info("Payment events: MongoDB", zap.String("collection", cfg.Events.MongoCollection))
		}
	}
	if len(sinks) == 0 {
		return events.Noop{}, func() {}
	}
	dispatcher := events.NewDispatcher(cfg.Events.Buffer, logger, sinks...)
	return dispatcher, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := dispatcher.Close(ctx); err != nil {
			logger.Error("Failed to flush payment events", zap.Error(err))
		}
	}
}

// buildAuth fills development gaps so a local server is usable without setup.
func buildAuth(cfg *config.Config, clock protocols.Clock, logger *zap.Logger) (*auth.JWT, error) {
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		logger.Warn("No JWT secret configured, generated an ephemeral one")
	}
	clients := cfg.Auth.Clients
	if len(clients) == 0 && !cfg.IsProduction() && cfg.Client.ClientID != "" {
		clients = map[string]string{cfg.Client.ClientID: cfg.Client.ClientSecret}
	}
	if len(clients) == 0 {
		logger.Warn("No API clients registered, token requests will be rejected")
	}
	return auth.NewJWT(secret, cfg.Auth.TokenTTL, clients, clock)
}
