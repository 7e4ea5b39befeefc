package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"

	"store-api/internal/auth"
	"store-api/internal/config"
	"store-api/internal/db"
	"store-api/internal/item"
	"store-api/internal/maintenance"
	"store-api/internal/observability"
	"store-api/internal/record"
	"store-api/internal/revocation"
	"store-api/internal/store"
	"store-api/internal/token"
)

// ErrProcessLocalRevocation is returned when a serverless build is configured
// with the memory revocation backend. Each function instance would keep its
// own revocations, so a logout handled by one would not reach the others.
var ErrProcessLocalRevocation = errors.New("REVOCATION_BACKEND=memory is not shared between serverless instances; use postgres or redis")

type Options struct {
	LoadDotEnv bool
	// StartSweeper runs the in-process revocation purge on the configured
	// schedule. Serverless deployments rely on the maintenance endpoint instead.
	StartSweeper bool
	// Serverless marks builds served by short-lived function instances.
	Serverless bool
}

type Runtime struct {
	Handler http.Handler
	Config  config.Config
	Logger  *observability.Logger
	Close   func() error
}

func Build(options Options) (*Runtime, error) {
	cfg, err := config.Load(options.LoadDotEnv)
	if err != nil {
		return nil, err
	}
	if options.Serverless && cfg.RevocationBackend == config.BackendMemory {
		return nil, ErrProcessLocalRevocation
	}

	logger := observability.NewLoggerWithOutput(os.Stdout, cfg.LogLevel)
	if err := observability.InitSentry(cfg.SentryDSN, cfg.AppEnv); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	ctx := context.Background()
	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		observability.FlushSentry()
		return errors.Join(errs...)
	}
	fail := func(err error) (*Runtime, error) {
		_ = closeAll()
		return nil, err
	}

	var database *sql.DB
	if cfg.DatabaseURL != "" {
		database, err = db.Open(ctx, cfg.DatabaseURL, db.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
			ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		})
		if err != nil {
			return fail(err)
		}
		closers = append(closers, database.Close)

		if cfg.RunMigrations {
			if err := db.RunMigrations(ctx, database); err != nil {
				return fail(fmt.Errorf("run migrations: %w", err))
			}
		}
	}

	registry, purger, err := newRegistry(ctx, cfg, database, &closers)
	if err != nil {
		return fail(err)
	}

	adminIDs, err := token.ParseAdminIDs(cfg.AdminUserIDs)
	if err != nil {
		return fail(err)
	}
	policy, err := token.LoadAdminSet(cfg.ClaimsPolicyFile, adminIDs...)
	if err != nil {
		return fail(err)
	}

	tokens, err := token.NewService(cfg.JWTSecret, policy)
	if err != nil {
		return fail(err)
	}
	tokens.WithLifetimes(cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	var (
		users    record.Store[auth.User]
		stores   record.Store[store.Store]
		items    record.Store[item.Item]
		lockouts *auth.LockoutRepository
	)
	if database != nil {
		users = record.NewPostgresStore(database, auth.UserTable)
		stores = record.NewPostgresStore(database, store.Table)
		items = record.NewPostgresStore(database, item.Table)
		lockouts = auth.NewLockoutRepository(database)
	} else {
		users = auth.NewMemoryUserStore()
		stores = store.NewMemoryStore()
		items = item.NewMemoryStore()
	}

	authService := auth.NewService(users, tokens, registry)
	if lockouts != nil {
		authService.WithLockout(lockouts, cfg.LoginMaxAttempts, cfg.LoginLockDuration)
	}

	adminID, created, err := authService.BootstrapAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		return fail(fmt.Errorf("bootstrap admin: %w", err))
	}
	if created {
		policy.Grant(adminID)
		logger.Info("admin_bootstrapped", map[string]any{"user_id": adminID})
	}

	var cleaner maintenance.AttemptCleaner
	if lockouts != nil {
		cleaner = lockouts
	}
	cleanup := maintenance.NewCleanupHandler(purger, cleaner, logger, cfg.CronSecret, cfg.LoginAttemptRetention, cfg.CleanupBatchSize)

	if options.StartSweeper && purger != nil {
		sweeper := revocation.NewSweeper(purger, logger)
		if err := sweeper.Start(cfg.SweepSchedule); err != nil {
			return fail(err)
		}
		closers = append(closers, func() error {
			sweeper.Stop()
			return nil
		})
	}

	var health func(context.Context) error
	if database != nil {
		health = database.PingContext
	}

	handler := NewHandler(Deps{
		Logger:       logger,
		Tokens:       tokens,
		Revocations:  registry,
		Users:        users,
		Stores:       stores,
		Items:        items,
		AuthService:  authService,
		LoginLimiter: auth.NewLoginRateLimiter(cfg.LoginRateLimitMax, cfg.LoginRateLimitWindow).WithTrustedProxy(cfg.TrustProxyHeaders),
		Cleanup:      cleanup,
		Health:       health,
		CORSOrigins:  cfg.CORSAllowedOrigins,
	})

	return &Runtime{
		Handler: handler,
		Config:  cfg,
		Logger:  logger,
		Close:   closeAll,
	}, nil
}

// newRegistry picks the revocation backend. The returned Purger is nil for
// Redis, where key TTLs evict entries on their own.
func newRegistry(ctx context.Context, cfg config.Config, database *sql.DB, closers *[]func() error) (revocation.Registry, revocation.Purger, error) {
	switch cfg.RevocationBackend {
	case config.BackendRedis:
		registry, err := revocation.NewRedisRegistry(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		*closers = append(*closers, registry.Close)
		return registry, nil, nil
	case config.BackendPostgres:
		if database == nil {
			return nil, nil, errors.New("postgres revocation backend needs DATABASE_URL")
		}
		registry := revocation.NewPostgresRegistry(database)
		return registry, registry, nil
	default:
		registry := revocation.NewMemoryRegistry()
		return registry, registry, nil
	}
}
