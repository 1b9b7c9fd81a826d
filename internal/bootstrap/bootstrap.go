// Package bootstrap wires configuration into the stores, engine and worker
// shared by the server and CLI binaries.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gocql/gocql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/procurement-engine/internal/cache"
	"github.com/andresuchdata/procurement-engine/internal/config"
	"github.com/andresuchdata/procurement-engine/internal/metrics"
	"github.com/andresuchdata/procurement-engine/internal/pipeline"
	"github.com/andresuchdata/procurement-engine/internal/pipeline/procurement"
	"github.com/andresuchdata/procurement-engine/internal/repository"
	"github.com/andresuchdata/procurement-engine/internal/repository/cassandra"
	"github.com/andresuchdata/procurement-engine/internal/repository/objectstore"
	"github.com/andresuchdata/procurement-engine/internal/repository/postgres"
	"github.com/andresuchdata/procurement-engine/internal/storage"
)

// App holds every long-lived dependency of a process.
type App struct {
	Config   *config.Config
	DB       *postgres.DB
	SQL      *sql.DB
	Session  *gocql.Session
	Storage  storage.ObjectStorage
	Cache    cache.ResultsCache
	Results  repository.ResultRepository
	Tracker  *pipeline.Repository
	Feeds    *objectstore.Feeds
	Metrics  *metrics.Metrics
	Sources  procurement.Sources
	Worker   *pipeline.Worker
	Snapshot repository.SnapshotWriter
}

// NewStorage returns the configured object storage backend.
func NewStorage(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStorage, error) {
	switch cfg.Backend {
	case "minio":
		return storage.NewMinioClient(ctx, storage.MinioConfig{
			Endpoint:     cfg.Endpoint,
			AccessKey:    cfg.AccessKey,
			SecretKey:    cfg.SecretKey,
			Bucket:       cfg.Bucket,
			Region:       cfg.Region,
			UseSSL:       cfg.UseSSL,
			CreateBucket: cfg.CreateBucket,
		})
	case "local", "":
		return storage.NewLocalStorage(cfg.LocalDir), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// OpenSQL opens the pgx-backed handle used for run tracking and master data
// ingestion.
func OpenSQL(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// SnapshotLookbackDays widens the Cassandra lookback so it never hides a
// snapshot younger than the staleness limit. Zero keeps every partition.
func SnapshotLookbackDays(lookbackDays, maxSnapshotAgeDays int) int {
	if lookbackDays <= 0 {
		return 0
	}
	if lookbackDays < maxSnapshotAgeDays {
		return maxSnapshotAgeDays
	}
	return lookbackDays
}

// PipelineConfig maps the pipeline section onto worker settings.
func PipelineConfig(cfg config.PipelineConfig) pipeline.PipelineConfig {
	pc := pipeline.DefaultPipelineConfig(cfg.Name)
	pc.WorkerCount = cfg.WorkerCount
	pc.DemandWindowDays = cfg.DemandWindowDays
	pc.MaxSnapshotAgeDays = cfg.MaxSnapshotAgeDays
	pc.OutputPrefix = cfg.OutputPrefix
	pc.RetryAttempts = cfg.RetryAttempts
	pc.RetryBackoff = cfg.RetryBackoff()
	return pc
}

// New connects every store named by cfg and builds the worker.
func New(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*App, error) {
	app := &App{Config: cfg, Metrics: m}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	var err error
	if app.DB, err = postgres.NewDB(&cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if app.SQL, err = OpenSQL(ctx, cfg.Database); err != nil {
		return nil, err
	}
	if app.Storage, err = NewStorage(ctx, cfg.Storage); err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}
	if app.Cache, err = cache.NewResultsCache(cfg.Cache); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, serving results without cache")
		app.Cache = cache.NewNoopResultsCache()
	}
	if cfg.Cassandra.Enabled {
		if app.Session, err = cassandra.Connect(cfg.Cassandra); err != nil {
			return nil, err
		}
	}

	app.Results = postgres.NewResultRepository(app.DB)
	app.Tracker = pipeline.NewRepository(app.SQL)
	app.Feeds = objectstore.NewFeeds(app.Storage, cfg.Pipeline.InputPrefix)

	if app.Sources, app.Snapshot, err = app.sources(); err != nil {
		return nil, err
	}

	pc := PipelineConfig(cfg.Pipeline)
	engine := procurement.NewEngine(
		pipeline.WithRetry(app.Sources, pipeline.NewRetryPolicy(pc.RetryAttempts, pc.RetryBackoff)),
		procurement.Options{
			DemandWindowDays:   pc.DemandWindowDays,
			MaxSnapshotAgeDays: pc.MaxSnapshotAgeDays,
			Workers:            pc.WorkerCount,
		},
	)
	app.Worker = pipeline.NewWorker(pc, engine, app.Tracker, pipeline.WorkerDeps{
		Artifacts: pipeline.NewArtifactWriter(app.Storage, pc.OutputPrefix),
		Results:   app.Results,
		Cache:     app.Cache,
		Metrics:   m,
	})

	ok = true
	return app, nil
}

func (a *App) sources() (procurement.Sources, repository.SnapshotWriter, error) {
	src := procurement.Sources{
		MasterData: postgres.NewMasterDataRepository(a.DB),
		Stock:      a.Feeds,
	}

	switch a.Config.Pipeline.OrderSource {
	case "postgres":
		src.Orders = postgres.NewOrderRepository(a.DB)
	case "storage":
		src.Orders = a.Feeds
	default:
		return src, nil, fmt.Errorf("unknown order source %q", a.Config.Pipeline.OrderSource)
	}

	var writer repository.SnapshotWriter
	switch a.Config.Pipeline.SnapshotSource {
	case "postgres":
		repo := postgres.NewSnapshotRepository(a.DB)
		src.Snapshots, writer = repo, repo
	case "cassandra":
		if a.Session == nil {
			return src, nil, errors.New("snapshot source cassandra requires CASSANDRA_ENABLED")
		}
		repo := cassandra.NewSnapshotRepository(a.Session).
			WithLookback(SnapshotLookbackDays(a.Config.Cassandra.LookbackDays, a.Config.Pipeline.MaxSnapshotAgeDays))
		src.Snapshots, writer = repo, repo
	case "storage":
		src.Snapshots = a.Feeds
	default:
		return src, nil, fmt.Errorf("unknown snapshot source %q", a.Config.Pipeline.SnapshotSource)
	}
	return src, writer, nil
}

// Migrate applies the Postgres schema and, when enabled, the Cassandra tables.
func (a *App) Migrate(ctx context.Context) error {
	if err := a.DB.Migrate(ctx); err != nil {
		return err
	}
	if a.Session != nil {
		if err := cassandra.NewSnapshotRepository(a.Session).Migrate(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) Close() error {
	var errs []error
	if a.Session != nil {
		a.Session.Close()
	}
	if a.SQL != nil {
		errs = append(errs, a.SQL.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
