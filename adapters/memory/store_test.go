package memory

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gospc/domain/core"
	"gospc/domain/spc"
)

func TestStagingStore(t *testing.T) {
	ctx := context.Background()
	store := NewStagingStore()
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	table := spc.NewTable()
	table.Dates = []time.Time{day.AddDate(0, 0, 2), day, day.AddDate(0, 0, 1)}
	table.Columns["mass_kg"] = []float64{79.5, 80.1, 79.9}
	table.Columns["fat_mass_percent"] = []float64{math.NaN(), 21, 22}

	written, err := store.ReplaceDataset(ctx, "body", table)
	require.NoError(t, err)
	assert.Equal(t, 5, written)

	dates, values, err := store.LoadSeries(ctx, "body", "mass_kg")
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day, day.AddDate(0, 0, 1), day.AddDate(0, 0, 2)}, dates)
	assert.Equal(t, []float64{80.1, 79.9, 79.5}, values)

	metrics, err := store.ListMetrics(ctx, "body")
	require.NoError(t, err)
	assert.Equal(t, []core.MetricKey{"fat_mass_percent", "mass_kg"}, metrics)

	datasets, err := store.ListDatasets(ctx)
	require.NoError(t, err)
	require.Len(t, datasets, 1)
	assert.Equal(t, 2, datasets[0].Metrics)
	assert.Equal(t, 5, datasets[0].Observations)
	assert.Equal(t, day, datasets[0].First)
	assert.Equal(t, day.AddDate(0, 0, 2), datasets[0].Last)

	_, _, err = store.LoadSeries(ctx, "body", "height")
	assert.ErrorIs(t, err, core.ErrMetricNotFound)
	_, err = store.ListMetrics(ctx, "other")
	assert.ErrorIs(t, err, core.ErrDatasetNotFound)

	replacement := spc.NewTable()
	replacement.Dates = []time.Time{day}
	replacement.Columns["mass_kg"] = []float64{81}
	_, err = store.ReplaceDataset(ctx, "body", replacement)
	require.NoError(t, err)
	metrics, err = store.ListMetrics(ctx, "body")
	require.NoError(t, err)
	assert.Equal(t, []core.MetricKey{"mass_kg"}, metrics, "replace drops metrics absent from the new table")
}

func TestAnalysisStore(t *testing.T) {
	ctx := context.Background()
	store := NewAnalysisStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	older := &spc.Analysis{ID: core.NewAnalysisID(), Metric: "mass_kg", CreatedAt: base,
		Result: &spc.Result{Rows: []spc.WorkingRow{{Value: 1}}, Segments: []spc.Segment{{Points: 1}}}}
	newer := &spc.Analysis{ID: core.NewAnalysisID(), Metric: "fat_mass_percent", CreatedAt: base.Add(time.Hour),
		Result: &spc.Result{}}

	require.NoError(t, store.Save(ctx, older))
	require.NoError(t, store.Save(ctx, newer))
	assert.ErrorIs(t, store.Save(ctx, &spc.Analysis{ID: core.NewAnalysisID()}), core.ErrNotSolved)

	older.Result.Rows[0].Value = 99
	got, err := store.Get(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Result.Rows[0].Value, "store keeps its own copy")

	list, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, 1, list[1].RowCount)

	list, err = store.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, store.Delete(ctx, older.ID))
	_, err = store.Get(ctx, older.ID)
	assert.ErrorIs(t, err, core.ErrAnalysisNotFound)
	assert.ErrorIs(t, store.Delete(ctx, older.ID), core.ErrNotFound)
}
