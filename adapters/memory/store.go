// Package memory provides process-local repositories used when no database is
// configured, and in tests.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"gospc/domain/core"
	"gospc/domain/spc"
	"gospc/ports"
)

type observation struct {
	date  time.Time
	value float64
}

// StagingStore keeps staged datasets in memory
type StagingStore struct {
	mu       sync.RWMutex
	datasets map[core.DatasetKey]map[core.MetricKey][]observation
}

// NewStagingStore creates an empty staging store
func NewStagingStore() *StagingStore {
	return &StagingStore{datasets: make(map[core.DatasetKey]map[core.MetricKey][]observation)}
}

var _ ports.StagingRepository = (*StagingStore)(nil)

// ReplaceDataset swaps the dataset's observations for the table's non-missing cells
func (s *StagingStore) ReplaceDataset(ctx context.Context, dataset core.DatasetKey, table *spc.Table) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	metrics := make(map[core.MetricKey][]observation, len(table.Columns))
	written := 0
	for name, column := range table.Columns {
		if len(column) != table.Len() {
			return 0, core.NewShapeMismatchError(table.Len(), len(column))
		}
		var obs []observation
		for i, v := range column {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			obs = append(obs, observation{date: table.Dates[i], value: v})
		}
		sort.SliceStable(obs, func(i, j int) bool { return obs[i].date.Before(obs[j].date) })
		metrics[core.MetricKey(name)] = obs
		written += len(obs)
	}

	s.mu.Lock()
	s.datasets[dataset] = metrics
	s.mu.Unlock()
	return written, nil
}

// LoadSeries returns one metric ordered by date
func (s *StagingStore) LoadSeries(ctx context.Context, dataset core.DatasetKey, metric core.MetricKey) ([]time.Time, []float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics, ok := s.datasets[dataset]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", core.ErrDatasetNotFound, dataset)
	}
	obs, ok := metrics[metric]
	if !ok || len(obs) == 0 {
		return nil, nil, fmt.Errorf("%w: %s in dataset %s", core.ErrMetricNotFound, metric, dataset)
	}

	dates := make([]time.Time, len(obs))
	values := make([]float64, len(obs))
	for i, o := range obs {
		dates[i] = o.date
		values[i] = o.value
	}
	return dates, values, nil
}

// ListMetrics returns the dataset's metric names in sorted order
func (s *StagingStore) ListMetrics(ctx context.Context, dataset core.DatasetKey) ([]core.MetricKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics, ok := s.datasets[dataset]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrDatasetNotFound, dataset)
	}
	keys := make([]core.MetricKey, 0, len(metrics))
	for k, obs := range metrics {
		if len(obs) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

// ListDatasets summarises every staged dataset
func (s *StagingStore) ListDatasets(ctx context.Context) ([]spc.DatasetSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]spc.DatasetSummary, 0, len(s.datasets))
	for key, metrics := range s.datasets {
		summary := spc.DatasetSummary{Dataset: key}
		for _, obs := range metrics {
			if len(obs) == 0 {
				continue
			}
			summary.Metrics++
			summary.Observations += len(obs)
			if summary.First.IsZero() || obs[0].date.Before(summary.First) {
				summary.First = obs[0].date
			}
			if last := obs[len(obs)-1].date; last.After(summary.Last) {
				summary.Last = last
			}
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dataset < out[j].Dataset })
	return out, nil
}

// AnalysisStore keeps analyses in memory, copying on the way in and out
type AnalysisStore struct {
	mu       sync.RWMutex
	analyses map[core.AnalysisID]*spc.Analysis
}

// NewAnalysisStore creates an empty analysis store
func NewAnalysisStore() *AnalysisStore {
	return &AnalysisStore{analyses: make(map[core.AnalysisID]*spc.Analysis)}
}

var _ ports.AnalysisRepository = (*AnalysisStore)(nil)

// Save stores a copy of the analysis
func (s *AnalysisStore) Save(ctx context.Context, analysis *spc.Analysis) error {
	if analysis.Result == nil {
		return core.ErrNotSolved
	}
	if analysis.CreatedAt.IsZero() {
		analysis.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses[analysis.ID] = cloneAnalysis(analysis)
	return nil
}

// Get returns a copy of the analysis
func (s *AnalysisStore) Get(ctx context.Context, id core.AnalysisID) (*spc.Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	analysis, ok := s.analyses[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrAnalysisNotFound, id)
	}
	return cloneAnalysis(analysis), nil
}

// List returns analysis summaries, newest first
func (s *AnalysisStore) List(ctx context.Context, limit int) ([]spc.AnalysisSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	out := make([]spc.AnalysisSummary, 0, len(s.analyses))
	for _, analysis := range s.analyses {
		out = append(out, analysis.Summary())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes an analysis
func (s *AnalysisStore) Delete(ctx context.Context, id core.AnalysisID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.analyses[id]; !ok {
		return fmt.Errorf("%w: %s", core.ErrAnalysisNotFound, id)
	}
	delete(s.analyses, id)
	return nil
}

func cloneAnalysis(a *spc.Analysis) *spc.Analysis {
	out := *a
	out.Result = a.Result.Clone()
	return &out
}
