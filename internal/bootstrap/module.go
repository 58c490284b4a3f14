package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"faultline/internal/bootstrap/config"
	"faultline/internal/bootstrap/database"
	"faultline/internal/bootstrap/logging"
	cacheinfra "faultline/internal/infrastructure/cache"
	"faultline/internal/infrastructure/messaging"
	"faultline/internal/infrastructure/persistence/sqlite/partition"
	sqliterepo "faultline/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "faultline/internal/infrastructure/persistence/sqlite/uow"
	"faultline/internal/ports"
	"faultline/internal/usecase/ingest"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(partition.NewManager),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewProjectRepository,
			fx.As(new(ports.ProjectRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewIssueRepository,
			fx.As(new(ports.IssueRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(provideCache),
	fx.Provide(providePublisher),
	fx.Provide(provideIngestConfig),
	fx.Provide(ingest.NewService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideCache(ctx context.Context, cfg config.Config, db *gorm.DB) (ports.Cache, error) {
	switch cfg.Cache.Driver {
	case "", "memory":
		return cacheinfra.NewMemoryCache(), nil
	case "sqlite":
		return cacheinfra.NewSQLiteCache(db), nil
	default:
		logging.Warn(ctx, "unknown cache driver, falling back to memory", slog.String("driver", cfg.Cache.Driver))
		return cacheinfra.NewMemoryCache(), nil
	}
}

func providePublisher(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (ports.IssuePublisher, error) {
	if cfg.Messaging.NATSURL == "" {
		logging.Info(ctx, "no nats url configured, persisted-issue handoff disabled")
		return messaging.NoopPublisher{}, nil
	}

	pub, err := messaging.NewNATSPublisher(cfg.Messaging.NATSURL, cfg.Messaging.Subject)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			pub.Close()
			return nil
		},
	})

	return pub, nil
}

func provideIngestConfig(cfg config.Config) ingest.Config {
	return ingest.Config{
		BatchSize:         cfg.Ingest.BatchSize,
		FlushInterval:     cfg.Ingest.FlushInterval,
		BlockCacheTTL:     cfg.Ingest.BlockCacheTTL,
		RetryAfter:        cfg.Ingest.RetryAfter,
		MaintenanceFreeze: cfg.Ingest.MaintenanceFreeze,
	}
}
