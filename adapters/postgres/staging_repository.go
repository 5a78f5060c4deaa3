package postgres

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"gospc/domain/core"
	"gospc/domain/spc"
	"gospc/ports"
)

// stagingRepository implements the StagingRepository interface
type stagingRepository struct {
	db *sqlx.DB
}

// NewStagingRepository creates a new staging repository
func NewStagingRepository(db *sqlx.DB) ports.StagingRepository {
	return &stagingRepository{db: db}
}

type observationRecord struct {
	ObservedOn time.Time `db:"observed_on"`
	Value      float64   `db:"value"`
}

// ReplaceDataset deletes the dataset's rows and bulk-copies the table in one transaction
func (r *stagingRepository) ReplaceDataset(ctx context.Context, dataset core.DatasetKey, table *spc.Table) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM staging_observations WHERE dataset = $1`, dataset); err != nil {
		return 0, fmt.Errorf("failed to clear dataset %s: %w", dataset, err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("staging_observations", "dataset", "observed_on", "metric", "value"))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare copy: %w", err)
	}

	written := 0
	for _, metric := range table.Metrics() {
		column := table.Columns[metric]
		if len(column) != table.Len() {
			stmt.Close()
			return 0, core.NewShapeMismatchError(table.Len(), len(column))
		}
		for i, value := range column {
			if math.IsNaN(value) || math.IsInf(value, 0) {
				continue
			}
			if _, err := stmt.ExecContext(ctx, dataset.String(), table.Dates[i], metric, value); err != nil {
				stmt.Close()
				return 0, fmt.Errorf("failed to copy %s row %d: %w", metric, i, err)
			}
			written++
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, fmt.Errorf("failed to flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return 0, fmt.Errorf("failed to close copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit dataset %s: %w", dataset, err)
	}
	return written, nil
}

// LoadSeries returns one metric ordered by date, staging order breaking ties
func (r *stagingRepository) LoadSeries(ctx context.Context, dataset core.DatasetKey, metric core.MetricKey) ([]time.Time, []float64, error) {
	query := `SELECT observed_on, value
	FROM staging_observations
	WHERE dataset = $1 AND metric = $2
	ORDER BY observed_on, id`

	var records []observationRecord
	if err := r.db.SelectContext(ctx, &records, query, dataset, metric); err != nil {
		return nil, nil, fmt.Errorf("failed to load series %s/%s: %w", dataset, metric, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%w: %s in dataset %s", core.ErrMetricNotFound, metric, dataset)
	}

	dates := make([]time.Time, len(records))
	values := make([]float64, len(records))
	for i, rec := range records {
		dates[i] = rec.ObservedOn.UTC()
		values[i] = rec.Value
	}
	return dates, values, nil
}

// ListMetrics returns the dataset's metric names in sorted order
func (r *stagingRepository) ListMetrics(ctx context.Context, dataset core.DatasetKey) ([]core.MetricKey, error) {
	var names []string
	query := `SELECT DISTINCT metric FROM staging_observations WHERE dataset = $1 ORDER BY metric`
	if err := r.db.SelectContext(ctx, &names, query, dataset); err != nil {
		return nil, fmt.Errorf("failed to list metrics: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrDatasetNotFound, dataset)
	}

	metrics := make([]core.MetricKey, len(names))
	for i, name := range names {
		metrics[i] = core.MetricKey(name)
	}
	return metrics, nil
}

// ListDatasets summarises every staged dataset
func (r *stagingRepository) ListDatasets(ctx context.Context) ([]spc.DatasetSummary, error) {
	query := `SELECT
		dataset,
		COUNT(DISTINCT metric) AS metrics,
		COUNT(*) AS observations,
		MIN(observed_on) AS first_on,
		MAX(observed_on) AS last_on
	FROM staging_observations
	GROUP BY dataset
	ORDER BY dataset`

	var summaries []spc.DatasetSummary
	if err := r.db.SelectContext(ctx, &summaries, query); err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	return summaries, nil
}
