package migration

import (
	"context"

	"github.com/jmoiron/sqlx"

	"gospc/internal/errors"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order. Every statement is
// idempotent, so Run is safe on every start.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	steps := []struct {
		name string
		fn   func(context.Context, *sqlx.DB) error
	}{
		{"staging_observations table", r.createStagingTable},
		{"spc_analyses table", r.createAnalysesTable},
		{"spc_working_rows table", r.createWorkingRowsTable},
		{"spc_segments table", r.createSegmentsTable},
		{"indexes", r.createIndexes},
	}

	for _, step := range steps {
		if err := step.fn(ctx, db); err != nil {
			return errors.WithCode(errors.CodeDatabaseError, errors.Wrapf(err, "failed to create %s", step.name))
		}
	}
	return nil
}

func (r *MigrationRunner) createStagingTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS staging_observations (
			id BIGSERIAL PRIMARY KEY,
			dataset VARCHAR(255) NOT NULL,
			observed_on TIMESTAMP WITH TIME ZONE NOT NULL,
			metric VARCHAR(255) NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			staged_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createAnalysesTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS spc_analyses (
			id UUID PRIMARY KEY,
			dataset VARCHAR(255) NOT NULL DEFAULT '',
			metric VARCHAR(255) NOT NULL DEFAULT '',
			time_frame_ns BIGINT NOT NULL DEFAULT 0,
			sample_size INTEGER NOT NULL,
			fingerprint VARCHAR(64) NOT NULL,
			raw_rows INTEGER NOT NULL,
			row_count INTEGER NOT NULL,
			segment_count INTEGER NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

// Non-finite floats are stored as NULL.
func (r *MigrationRunner) createWorkingRowsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS spc_working_rows (
			analysis_id UUID NOT NULL REFERENCES spc_analyses(id) ON DELETE CASCADE,
			ordinal INTEGER NOT NULL,
			observed_on TIMESTAMP WITH TIME ZONE NOT NULL,
			value DOUBLE PRECISION,
			count INTEGER NOT NULL,
			bucket_std DOUBLE PRECISION,
			segment_id INTEGER NOT NULL,
			alpha DOUBLE PRECISION,
			beta DOUBLE PRECISION,
			fitted DOUBLE PRECISION,
			residual DOUBLE PRECISION,
			residual_mean DOUBLE PRECISION,
			residual_std DOUBLE PRECISION,
			z_score DOUBLE PRECISION,
			outlier BOOLEAN NOT NULL DEFAULT false,
			training BOOLEAN NOT NULL DEFAULT false,
			PRIMARY KEY (analysis_id, ordinal)
		)
	`)
	return err
}

func (r *MigrationRunner) createSegmentsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS spc_segments (
			analysis_id UUID NOT NULL REFERENCES spc_analyses(id) ON DELETE CASCADE,
			segment_id INTEGER NOT NULL,
			intercept DOUBLE PRECISION,
			slope DOUBLE PRECISION,
			residual_mean DOUBLE PRECISION,
			residual_std DOUBLE PRECISION,
			points INTEGER NOT NULL,
			start_on TIMESTAMP WITH TIME ZONE NOT NULL,
			end_on TIMESTAMP WITH TIME ZONE NOT NULL,
			first_ordinal INTEGER NOT NULL,
			last_ordinal INTEGER NOT NULL,
			training_points INTEGER NOT NULL,
			outliers INTEGER NOT NULL,
			PRIMARY KEY (analysis_id, segment_id)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_staging_dataset_metric ON staging_observations(dataset, metric, observed_on)",
		"CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON spc_analyses(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_analyses_dataset_metric ON spc_analyses(dataset, metric)",
		"CREATE INDEX IF NOT EXISTS idx_analyses_fingerprint ON spc_analyses(fingerprint)",
	}

	for _, indexSQL := range indexes {
		if _, err := db.ExecContext(ctx, indexSQL); err != nil {
			return err
		}
	}
	return nil
}
