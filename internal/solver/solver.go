// Package solver implements segmented-trend statistical process control.
//
// A series is split into consecutive regimes. Each regime is modelled by an ordinary
// least-squares line fit over a training window of up to SampleSize time units; the
// first later point whose standardized residual reaches |z| >= 3 closes the regime and
// the next one starts right after it.
package solver

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"gospc/domain/core"
	"gospc/domain/spc"
	"gospc/internal"
)

// Config controls a solver instance.
type Config struct {
	TimeFrame  spc.TimeFrame
	SampleSize int    // training window length, DefaultSampleSize when zero
	DateLayout string // layout for SolveText, core.DayMonthYear when empty
	Logger     *zerolog.Logger
}

// DefaultConfig returns native granularity with the default sample size.
func DefaultConfig() Config {
	return Config{
		TimeFrame:  spc.Native,
		SampleSize: spc.DefaultSampleSize,
		DateLayout: core.DayMonthYear,
	}
}

// Solver runs the fit-detect loop and retains the last successful result.
// Solve is synchronous; the retained snapshot is safe to read concurrently.
type Solver struct {
	timeFrame  spc.TimeFrame
	sampleSize int
	dateLayout string
	logger     zerolog.Logger

	mu     sync.RWMutex
	result *spc.Result
}

// New validates cfg and creates a solver. No I/O is performed.
func New(cfg Config) (*Solver, error) {
	if cfg.SampleSize == 0 {
		cfg.SampleSize = spc.DefaultSampleSize
	}
	if cfg.SampleSize < 0 {
		return nil, core.NewValidationError("sample_size", "must be positive")
	}
	if cfg.TimeFrame < 0 {
		return nil, core.NewValidationError("time_frame", "must not be negative")
	}
	if cfg.DateLayout == "" {
		cfg.DateLayout = core.DayMonthYear
	}

	logger := internal.DefaultLogger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Solver{
		timeFrame:  cfg.TimeFrame,
		sampleSize: cfg.SampleSize,
		dateLayout: cfg.DateLayout,
		logger:     logger.With().Str("component", "spc_solver").Logger(),
	}, nil
}

// SampleSize returns the configured training window length.
func (s *Solver) SampleSize() int { return s.sampleSize }

// TimeFrame returns the configured resampling width.
func (s *Solver) TimeFrame() spc.TimeFrame { return s.timeFrame }

// Solve segments the series. timestamps must be sorted ascending and aligned with
// values. On failure no result is returned and any previous result is kept.
func (s *Solver) Solve(timestamps []time.Time, values []float64) (*spc.Result, error) {
	if err := s.checkShape(len(timestamps), len(values)); err != nil {
		return nil, err
	}

	rows := Resample(timestamps, values, s.timeFrame)
	if err := s.fitDetect(rows); err != nil {
		return nil, err
	}

	segments, err := Summarize(rows)
	if err != nil {
		return nil, err
	}
	if err := validatePartition(rows, segments); err != nil {
		return nil, err
	}

	result := &spc.Result{Rows: rows, Segments: segments}

	s.mu.Lock()
	s.result = result
	s.mu.Unlock()

	s.logger.Info().
		Int("raw_rows", len(timestamps)).
		Int("rows", len(rows)).
		Int("segments", len(segments)).
		Str("time_frame", s.timeFrame.String()).
		Msg("solve complete")

	return result.Clone(), nil
}

// SolveText parses day/month/year timestamps before solving. Malformed text fails
// with core.ErrDateParse; nothing is coerced.
func (s *Solver) SolveText(timestamps []string, values []float64) (*spc.Result, error) {
	if err := s.checkShape(len(timestamps), len(values)); err != nil {
		return nil, err
	}
	dates, err := core.ParseDates(timestamps, s.dateLayout)
	if err != nil {
		return nil, err
	}
	return s.Solve(dates, values)
}

// WorkingTable returns a copy of the last successful working table.
func (s *Solver) WorkingTable() ([]spc.WorkingRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		return nil, core.ErrNotSolved
	}
	return s.result.Clone().Rows, nil
}

// SegmentSummary returns a copy of the last successful segment table.
func (s *Solver) SegmentSummary() ([]spc.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		return nil, core.ErrNotSolved
	}
	return s.result.Clone().Segments, nil
}

func (s *Solver) checkShape(timestamps, values int) error {
	if timestamps != values {
		return core.NewShapeMismatchError(timestamps, values)
	}
	if timestamps < s.sampleSize {
		return core.NewInsufficientDataError(timestamps, s.sampleSize)
	}
	return nil
}

// windowFit holds the regression line and control-limit parameters of one segment.
type windowFit struct {
	alpha, beta        float64
	residMean, residSD float64
}

// fitDetect runs the segmentation loop over rows in place.
//
// Every row from the segment start onwards provisionally belongs to the open segment;
// a later segment overwrites the tail past the breakpoint. Rows beyond the first
// outlier are therefore only written when no further segment will claim them.
func (s *Solver) fitDetect(rows []spc.WorkingRow) error {
	n := len(rows)
	if n == 0 {
		return core.ErrEmptyResult
	}
	maxOrdinal := n - 1

	start, segmentID := 0, 0
	for {
		end := start + s.sampleSize
		if end > n {
			end = n
		}

		fit, err := fitWindow(rows[start:end])
		if err != nil {
			return err
		}

		s.logger.Debug().
			Int("segment", segmentID).
			Int("start", start).
			Int("window", end-start).
			Float64("alpha", fit.alpha).
			Float64("beta", fit.beta).
			Float64("resid_std", fit.residSD).
			Msg("segment fitted")

		breakpoint := -1
		for i := start; i < n; i++ {
			assign(&rows[i], segmentID, fit, i < end)
			if rows[i].Outlier {
				breakpoint = i
				break
			}
		}
		if breakpoint < 0 {
			return nil
		}

		next := breakpoint + 1
		if next >= maxOrdinal {
			for i := next; i < n; i++ {
				assign(&rows[i], segmentID, fit, i < end)
			}
			s.logger.Trace().Int("segment", segmentID).Int("breakpoint", breakpoint).Msg("no rows left for a new segment")
			return nil
		}

		s.logger.Trace().Int("segment", segmentID).Int("breakpoint", breakpoint).Msg("out-of-control point")
		start = next
		segmentID++
	}
}

// fitWindow regresses value on ordinal over the training window and derives the
// residual mean and sample standard deviation from the same rows.
func fitWindow(window []spc.WorkingRow) (windowFit, error) {
	if len(window) < 2 {
		start := 0
		if len(window) == 1 {
			start = window[0].Ordinal
		}
		return windowFit{}, core.NewDegenerateWindowError(start, len(window))
	}

	x := make([]float64, len(window))
	y := make([]float64, len(window))
	for i, row := range window {
		x[i] = float64(row.Ordinal)
		y[i] = row.Value
	}

	if v := stat.Variance(x, nil); v == 0 || math.IsNaN(v) {
		return windowFit{}, core.NewDegenerateWindowError(window[0].Ordinal, len(window))
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)

	residuals := make([]float64, len(window))
	for i := range window {
		residuals[i] = y[i] - (alpha + beta*x[i])
	}
	mean, std := stat.MeanStdDev(residuals, nil)

	return windowFit{alpha: alpha, beta: beta, residMean: mean, residSD: std}, nil
}

func assign(row *spc.WorkingRow, segmentID int, fit windowFit, training bool) {
	row.SegmentID = segmentID
	row.Alpha = fit.alpha
	row.Beta = fit.beta
	row.Fitted = fit.alpha + fit.beta*float64(row.Ordinal)
	row.Residual = row.Value - row.Fitted
	row.ResidualMean = fit.residMean
	row.ResidualStd = fit.residSD
	row.ZScore = zScore(row.Residual, fit.residMean, fit.residSD)
	row.Outlier = math.Abs(row.ZScore) >= spc.ControlLimit
	row.Training = training
}

// zScore standardizes a residual. A zero spread makes any deviation infinitely far.
func zScore(residual, mean, std float64) float64 {
	if std == 0 {
		diff := residual - mean
		if diff == 0 {
			return 0
		}
		return math.Inf(int(math.Copysign(1, diff)))
	}
	return (residual - mean) / std
}
