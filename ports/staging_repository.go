package ports

import (
	"context"
	"time"

	"gospc/domain/core"
	"gospc/domain/spc"
)

// StagingRepository stores raw observations in long format, one row per
// (dataset, date, metric) cell.
type StagingRepository interface {
	// ReplaceDataset atomically swaps the dataset's staged rows for the table's
	// non-missing cells and returns the number of observations written.
	ReplaceDataset(ctx context.Context, dataset core.DatasetKey, table *spc.Table) (int, error)

	// LoadSeries returns one metric ordered by date.
	LoadSeries(ctx context.Context, dataset core.DatasetKey, metric core.MetricKey) ([]time.Time, []float64, error)

	ListMetrics(ctx context.Context, dataset core.DatasetKey) ([]core.MetricKey, error)
	ListDatasets(ctx context.Context) ([]spc.DatasetSummary, error)
}
