package container

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"gospc/adapters/memory"
	"gospc/adapters/postgres"
	"gospc/app"
	"gospc/internal/config"
	"gospc/internal/errors"
	"gospc/internal/metrics"
	"gospc/internal/migration"
	"gospc/ports"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger zerolog.Logger

	// Infrastructure
	DB      *sqlx.DB
	Metrics *metrics.Registry

	// Repositories (data access layer)
	StagingRepo  ports.StagingRepository
	AnalysisRepo ports.AnalysisRepository

	AnalysisService *app.AnalysisService
}

// New creates a container backed by the in-memory stores
func New(cfg *config.Config, logger zerolog.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config:       cfg,
		Logger:       logger,
		Metrics:      metrics.NewRegistry(),
		StagingRepo:  memory.NewStagingStore(),
		AnalysisRepo: memory.NewAnalysisStore(),
	}
	c.initService()
	return c, nil
}

// Open connects to the configured database, runs migrations and swaps in the
// Postgres repositories. Without DATABASE_URL the memory stores are kept.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Container, error) {
	c, err := New(cfg, logger)
	if err != nil {
		return nil, err
	}
	if !cfg.Database.Enabled() {
		logger.Warn().Msg("DATABASE_URL not set, using in-memory stores")
		return c, nil
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Database.URL)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to database", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)

	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "database migration failed")
	}

	if err := c.InitWithDatabase(db); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// InitWithDatabase replaces the repositories with Postgres implementations
func (c *Container) InitWithDatabase(db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}

	c.DB = db
	c.StagingRepo = postgres.NewStagingRepository(db)
	c.AnalysisRepo = postgres.NewAnalysisRepository(db)
	c.initService()

	c.Logger.Info().Msg("container initialized with database connection")
	return nil
}

func (c *Container) initService() {
	c.AnalysisService = app.NewAnalysisService(c.StagingRepo, c.AnalysisRepo, c.Metrics, app.ServiceConfig{
		SampleSize: c.Config.Solver.SampleSize,
		TimeFrame:  c.Config.Solver.TimeFrame,
		DateLayout: c.Config.Solver.DateLayout,
		Workers:    c.Config.Solver.Workers,
	}).WithLogger(c.Logger)
}

// Shutdown releases the database connection
func (c *Container) Shutdown(ctx context.Context) error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
