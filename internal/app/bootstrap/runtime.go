package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	cacheadapter "github.com/vaultline/trustengine/internal/adapters/cache"
	eventadapter "github.com/vaultline/trustengine/internal/adapters/events"
	"github.com/vaultline/trustengine/internal/adapters/extclients"
	"github.com/vaultline/trustengine/internal/adapters/postgres"
	"github.com/vaultline/trustengine/internal/adapters/security"
	"github.com/vaultline/trustengine/internal/application"
	"github.com/vaultline/trustengine/internal/ports"
)

type Runtime struct {
	cfg       Config
	logger    *slog.Logger
	service   *application.Service
	outbox    *eventadapter.OutboxWorker
	cleanupFn func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("bootstrapping trust engine", "service_id", cfg.ServiceID)

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := pool.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	repos := postgres.NewRepositories(pool)

	tokenSigner, err := security.NewJWTSigner(cfg.JWTKeyID, cfg.JWTPrivateKeyPEM, cfg.JWTPublicKeyPEM)
	if err != nil {
		if !cfg.AllowEphemeralJWT {
			_ = sqlDB.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("init jwt signer: %w", err)
		}
		logger.Warn("using ephemeral JWT keys for local/dev runtime")
		tokenSigner, err = security.NewEphemeralJWTSigner(cfg.JWTKeyID)
		if err != nil {
			_ = sqlDB.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("init ephemeral jwt signer: %w", err)
		}
	}

	var publisher ports.EventPublisher
	var publisherClose func() error
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic != "" {
		kafkaPublisher, pubErr := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if pubErr != nil {
			_ = sqlDB.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("init kafka publisher: %w", pubErr)
		}
		publisher = kafkaPublisher
		publisherClose = kafkaPublisher.Close
	} else {
		logger.Warn("no kafka brokers configured, ledger events mirror to logs only")
		publisher = eventadapter.NewLoggingPublisher(logger)
	}

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			BlacklistTrustThreshold:   cfg.BlacklistTrustThreshold,
			VerificationThreshold:     cfg.VerificationThreshold,
			BiometricTimeout:          cfg.BiometricTimeout,
			RecoverySessionTTL:        cfg.RecoverySessionTTL,
			VerificationFailThreshold: cfg.VerificationFailThreshold,
			VerificationLockWindow:    cfg.VerificationLockWindow,
			BacktraceBaseTrust:        cfg.BacktraceBaseTrust,
			BacktraceStrictnessStep:   cfg.BacktraceStrictnessStep,
			LedgerAppendRetries:       cfg.LedgerAppendRetries,
			LedgerRetryBackoff:        cfg.LedgerRetryBackoff,
		},
		Logger:     logger,
		Devices:    repos.Devices,
		Blacklist:  repos.Blacklist,
		BlockedIPs: repos.BlockedIPs,
		Ledger:     repos.Ledger,
		Burns:      repos.Burns,
		Balances:   repos.Balances,
		Outbox:     repos.Outbox,
		Sessions:   cacheadapter.NewRedisRecoverySessionStore(redisClient),
		Throttle:   cacheadapter.NewRedisVerificationThrottle(redisClient),
		Geo:        extclients.NewStaticGeoResolver(ports.GeoInfo{}),
		Biometrics: extclients.NewDeterministicBiometricVerifier(logger),
		Hops:       extclients.NewDirectHopProvider(),
		KeyHasher:  security.NewBcryptHasher(cfg.BcryptCost),
		Signer:     tokenSigner,
	})

	outbox := eventadapter.NewOutboxWorker(repos.Outbox, publisher, logger, eventadapter.OutboxWorkerOptions{
		Interval:   cfg.OutboxPollInterval,
		BatchSize:  cfg.OutboxBatchSize,
		ClaimTTL:   cfg.OutboxClaimTTL,
		MaxRetries: cfg.OutboxMaxRetries,
	})

	return &Runtime{
		cfg:     cfg,
		logger:  logger,
		service: svc,
		outbox:  outbox,
		cleanupFn: func(ctx context.Context) {
			if publisherClose != nil {
				_ = publisherClose()
			}
			_ = redisClient.Close()
			_ = sqlDB.Close()
		},
	}, nil
}

// Service exposes the wired application service to embedding callers.
func (r *Runtime) Service() *application.Service {
	return r.service
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("ledger outbox worker started")
	err := r.outbox.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	return nil
}
