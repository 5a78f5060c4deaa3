package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"gospc/domain/core"
	"gospc/domain/spc"
	"gospc/internal"
	apperrors "gospc/internal/errors"
	"gospc/internal/metrics"
	"gospc/internal/solver"
	"gospc/ports"
)

// ServiceConfig holds the defaults applied when a request leaves a parameter unset
type ServiceConfig struct {
	SampleSize int
	TimeFrame  spc.TimeFrame
	DateLayout string
	Workers    int
}

// AnalysisOptions overrides the service defaults for one request
type AnalysisOptions struct {
	TimeFrame  *spc.TimeFrame // nil keeps the default; Native is a valid override
	SampleSize int            // 0 keeps the default
	Persist    bool
}

// SeriesRequest is one series to analyze. Either Dates or DateTexts is set.
type SeriesRequest struct {
	AnalysisOptions
	Dataset   core.DatasetKey
	Metric    core.MetricKey
	Dates     []time.Time
	DateTexts []string
	Values    []float64
}

// MetricOutcome is the result of one metric in a batch. Err holds data or solver
// failures of that metric only.
type MetricOutcome struct {
	Metric   core.MetricKey
	Analysis *spc.Analysis
	Err      error
}

// AnalysisService runs solves, stages tables and persists results
type AnalysisService struct {
	staging  ports.StagingRepository
	analyses ports.AnalysisRepository
	metrics  *metrics.Registry
	config   ServiceConfig
	base     zerolog.Logger
	logger   zerolog.Logger
}

// NewAnalysisService creates an analysis service. reg may be nil.
func NewAnalysisService(staging ports.StagingRepository, analyses ports.AnalysisRepository, reg *metrics.Registry, config ServiceConfig) *AnalysisService {
	if config.SampleSize <= 0 {
		config.SampleSize = spc.DefaultSampleSize
	}
	if config.DateLayout == "" {
		config.DateLayout = core.DayMonthYear
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	svc := &AnalysisService{
		staging:  staging,
		analyses: analyses,
		metrics:  reg,
		config:   config,
	}
	return svc.WithLogger(internal.DefaultLogger)
}

// WithLogger replaces the service logger
func (s *AnalysisService) WithLogger(logger zerolog.Logger) *AnalysisService {
	s.base = logger
	s.logger = logger.With().Str("component", "analysis_service").Logger()
	return s
}

// Config returns the effective defaults
func (s *AnalysisService) Config() ServiceConfig { return s.config }

// AnalyzeSeries solves one series and persists it when requested
func (s *AnalysisService) AnalyzeSeries(ctx context.Context, req SeriesRequest) (*spc.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer s.metrics.Track()()

	sv, err := solver.New(s.solverConfig(req.AnalysisOptions))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	dates := req.Dates
	var result *spc.Result
	if req.DateTexts != nil {
		result, err = sv.SolveText(req.DateTexts, req.Values)
		if err == nil {
			dates, err = core.ParseDates(req.DateTexts, s.config.DateLayout)
		}
	} else {
		result, err = sv.Solve(req.Dates, req.Values)
	}
	elapsed := time.Since(start)

	if err != nil {
		s.metrics.ObserveSolve(sv.TimeFrame().String(), elapsed, 0, 0, err)
		s.logger.Warn().Err(err).Str("dataset", req.Dataset.String()).Str("metric", req.Metric.String()).Msg("solve failed")
		return nil, err
	}

	outliers := len(result.Outliers())
	s.metrics.ObserveSolve(sv.TimeFrame().String(), elapsed, len(result.Segments), outliers, nil)

	analysis := &spc.Analysis{
		ID:          core.NewAnalysisID(),
		Dataset:     req.Dataset,
		Metric:      req.Metric,
		TimeFrame:   sv.TimeFrame(),
		SampleSize:  sv.SampleSize(),
		Fingerprint: core.SeriesFingerprint(dates, req.Values, sv.TimeFrame().Duration(), sv.SampleSize()),
		RawRows:     len(req.Values),
		CreatedAt:   time.Now().UTC(),
		Result:      result,
	}

	if req.Persist {
		if err := s.save(ctx, analysis); err != nil {
			return nil, err
		}
	}

	s.logger.Info().
		Str("analysis_id", analysis.ID.String()).
		Str("dataset", req.Dataset.String()).
		Str("metric", req.Metric.String()).
		Int("rows", len(result.Rows)).
		Int("segments", len(result.Segments)).
		Int("outliers", outliers).
		Dur("elapsed", elapsed).
		Bool("persisted", req.Persist).
		Msg("series analyzed")
	return analysis, nil
}

// AnalyzeTable solves the given metrics of a table concurrently. An empty metric
// list analyzes every column.
func (s *AnalysisService) AnalyzeTable(ctx context.Context, dataset core.DatasetKey, table *spc.Table, metricNames []string, opts AnalysisOptions) ([]MetricOutcome, error) {
	if len(metricNames) == 0 {
		metricNames = table.Metrics()
	}
	keys := make([]core.MetricKey, len(metricNames))
	for i, name := range metricNames {
		keys[i] = core.MetricKey(name)
	}

	return s.runBatch(ctx, keys, func(ctx context.Context, metric core.MetricKey) (*spc.Analysis, error) {
		dates, values, err := table.Series(metric.String())
		if err != nil {
			return nil, err
		}
		return s.AnalyzeSeries(ctx, SeriesRequest{
			AnalysisOptions: opts,
			Dataset:         dataset,
			Metric:          metric,
			Dates:           dates,
			Values:          values,
		})
	})
}

// AnalyzeStaged loads metrics from the staging store and solves them. An empty
// metric list analyzes every staged metric of the dataset.
func (s *AnalysisService) AnalyzeStaged(ctx context.Context, dataset core.DatasetKey, metricNames []string, opts AnalysisOptions) ([]MetricOutcome, error) {
	if s.staging == nil {
		return nil, apperrors.ConfigInvalid("no staging store configured")
	}

	var keys []core.MetricKey
	if len(metricNames) == 0 {
		listed, err := s.staging.ListMetrics(ctx, dataset)
		if err != nil {
			return nil, err
		}
		keys = listed
	} else {
		for _, name := range metricNames {
			keys = append(keys, core.MetricKey(name))
		}
	}

	return s.runBatch(ctx, keys, func(ctx context.Context, metric core.MetricKey) (*spc.Analysis, error) {
		dates, values, err := s.staging.LoadSeries(ctx, dataset, metric)
		if err != nil {
			return nil, err
		}
		return s.AnalyzeSeries(ctx, SeriesRequest{
			AnalysisOptions: opts,
			Dataset:         dataset,
			Metric:          metric,
			Dates:           dates,
			Values:          values,
		})
	})
}

// StageTable replaces the dataset in the staging store
func (s *AnalysisService) StageTable(ctx context.Context, dataset core.DatasetKey, table *spc.Table) (int, error) {
	if s.staging == nil {
		return 0, apperrors.ConfigInvalid("no staging store configured")
	}
	written, err := s.staging.ReplaceDataset(ctx, dataset, table)
	if err != nil {
		if core.IsInputError(err) {
			return 0, err
		}
		return 0, apperrors.WithCode(apperrors.CodeDatabaseError, fmt.Errorf("stage dataset %s: %w", dataset, err))
	}
	s.metrics.ObserveStaged(dataset.String(), written)
	s.logger.Info().Str("dataset", dataset.String()).Int("observations", written).Msg("dataset staged")
	return written, nil
}

// ListDatasets returns the staged datasets
func (s *AnalysisService) ListDatasets(ctx context.Context) ([]spc.DatasetSummary, error) {
	if s.staging == nil {
		return nil, apperrors.ConfigInvalid("no staging store configured")
	}
	return s.staging.ListDatasets(ctx)
}

// GetAnalysis loads a persisted analysis
func (s *AnalysisService) GetAnalysis(ctx context.Context, id core.AnalysisID) (*spc.Analysis, error) {
	if s.analyses == nil {
		return nil, apperrors.ConfigInvalid("no analysis store configured")
	}
	return s.analyses.Get(ctx, id)
}

// ListAnalyses returns persisted analyses, newest first
func (s *AnalysisService) ListAnalyses(ctx context.Context, limit int) ([]spc.AnalysisSummary, error) {
	if s.analyses == nil {
		return nil, apperrors.ConfigInvalid("no analysis store configured")
	}
	return s.analyses.List(ctx, limit)
}

// DeleteAnalysis removes a persisted analysis
func (s *AnalysisService) DeleteAnalysis(ctx context.Context, id core.AnalysisID) error {
	if s.analyses == nil {
		return apperrors.ConfigInvalid("no analysis store configured")
	}
	return s.analyses.Delete(ctx, id)
}

func (s *AnalysisService) save(ctx context.Context, analysis *spc.Analysis) error {
	if s.analyses == nil {
		return apperrors.ConfigInvalid("no analysis store configured")
	}
	if err := s.analyses.Save(ctx, analysis); err != nil {
		return apperrors.WithCode(apperrors.CodeDatabaseError, fmt.Errorf("save analysis %s: %w", analysis.ID, err))
	}
	return nil
}

func (s *AnalysisService) solverConfig(opts AnalysisOptions) solver.Config {
	cfg := solver.Config{
		TimeFrame:  s.config.TimeFrame,
		SampleSize: s.config.SampleSize,
		DateLayout: s.config.DateLayout,
		Logger:     &s.base,
	}
	if opts.TimeFrame != nil {
		cfg.TimeFrame = *opts.TimeFrame
	}
	if opts.SampleSize != 0 {
		cfg.SampleSize = opts.SampleSize
	}
	return cfg
}

// runBatch analyzes metrics with at most config.Workers in flight. Data and solver
// failures are reported per metric; anything else cancels the batch.
func (s *AnalysisService) runBatch(ctx context.Context, keys []core.MetricKey,
	analyze func(context.Context, core.MetricKey) (*spc.Analysis, error)) ([]MetricOutcome, error) {
	outcomes := make([]MetricOutcome, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)

	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			analysis, err := analyze(gctx, key)
			if err != nil && !isMetricError(err) {
				return fmt.Errorf("metric %s: %w", key, err)
			}

			outcomes[i] = MetricOutcome{Metric: key, Analysis: analysis, Err: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func isMetricError(err error) bool {
	return core.IsInputError(err) || core.IsSolverError(err) || core.IsNotFoundError(err)
}

// Succeeded returns the analyses of successful outcomes in order
func Succeeded(outcomes []MetricOutcome) []*spc.Analysis {
	var out []*spc.Analysis
	for _, o := range outcomes {
		if o.Err == nil && o.Analysis != nil {
			out = append(out, o.Analysis)
		}
	}
	return out
}
