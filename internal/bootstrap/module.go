package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"celiaquia/internal/bootstrap/config"
	"celiaquia/internal/bootstrap/database"
	"celiaquia/internal/bootstrap/logging"
	cacheinfra "celiaquia/internal/infrastructure/cache"
	"celiaquia/internal/infrastructure/filestore"
	"celiaquia/internal/infrastructure/metrics"
	sqliterepo "celiaquia/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "celiaquia/internal/infrastructure/persistence/sqlite/uow"
	"celiaquia/internal/infrastructure/registry/renaper"
	"celiaquia/internal/infrastructure/registry/sintys"
	"celiaquia/internal/ports"
	"celiaquia/internal/usecase/celiaquia"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(metrics.New),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewRepository,
			fx.As(new(ports.CeliaquiaRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(
		fx.Annotate(
			provideFileStore,
			fx.As(new(ports.FileStore)),
		),
	),
	fx.Provide(provideRenaper),
	fx.Provide(provideSintys),
	fx.Provide(provideService),
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

func provideApp(cfg config.Config, db *gorm.DB, m *metrics.Metrics) *App {
	return &App{
		Config:  cfg,
		DB:      db,
		Metrics: m,
	}
}

func provideFileStore(cfg config.Config) (*filestore.LocalStore, error) {
	return filestore.NewLocalStore(cfg.Storage.Root)
}

// An empty base_url selects the in-process mock so local runs work offline.
func provideRenaper(ctx context.Context, cfg config.Config) ports.RenaperClient {
	if cfg.Renaper.BaseURL == "" {
		logging.Warn(logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx")), "renaper.base_url not set, using mock registry")
		return renaper.NewMockClient()
	}
	return renaper.NewClient(cfg.Renaper.BaseURL, cfg.Renaper.APIKey, cfg.Renaper.Timeout)
}

func provideSintys(ctx context.Context, cfg config.Config) ports.SintysClient {
	if cfg.Sintys.BaseURL == "" {
		logging.Warn(logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx")), "sintys.base_url not set, using mock registry")
		return sintys.NewMockClient()
	}
	return sintys.NewClient(cfg.Sintys.BaseURL, cfg.Sintys.APIKey, cfg.Sintys.Timeout)
}

type serviceParams struct {
	fx.In

	Config  config.Config
	Repo    ports.CeliaquiaRepository
	UoW     ports.UnitOfWork
	Cache   ports.Cache
	Renaper ports.RenaperClient
	Sintys  ports.SintysClient
	Files   ports.FileStore
	Metrics *metrics.Metrics
}

func provideService(p serviceParams) *celiaquia.Service {
	cfg := p.Config
	return celiaquia.NewService(celiaquia.Deps{
		Repo:    p.Repo,
		UoW:     p.UoW,
		Cache:   p.Cache,
		Renaper: p.Renaper,
		Sintys:  p.Sintys,
		Files:   p.Files,
		Metrics: p.Metrics,
	}, celiaquia.Options{
		CupoDefaultSize:    int64(cfg.Cupo.DefaultSize),
		MontoUnitario:      cfg.Cupo.MontoUnitario,
		RenaperConcurrency: cfg.Renaper.Concurrency,
		RenaperCacheTTL:    cfg.Renaper.CacheTTL,
		WorkBatchSize:      cfg.Worker.BatchSize,
		MaxAttempts:        cfg.Worker.MaxAttempts,
		Backoff:            cfg.Worker.Backoff,
		PurgeReplaced:      cfg.Storage.PurgeReplaced,
	})
}
