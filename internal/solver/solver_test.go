package solver

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"gospc/domain/core"
	"gospc/domain/spc"
	"gospc/internal/testkit"
)

func newTestSolver(t *testing.T, frame spc.TimeFrame, sampleSize int) *Solver {
	t.Helper()
	logger := zerolog.Nop()
	s, err := New(Config{TimeFrame: frame, SampleSize: sampleSize, Logger: &logger})
	require.NoError(t, err)
	return s
}

func trendSeries(points int, spikes ...testkit.Spike) ([]time.Time, []float64) {
	cfg := testkit.DefaultSeriesConfig()
	cfg.Base = 70
	cfg.Regimes = []testkit.Regime{{Points: points, Slope: 0.05}}
	cfg.Noise = 0.1
	cfg.Spikes = spikes
	return testkit.NewSeriesGenerator(cfg).Generate()
}

// assertPartition checks ids 0..k and contiguous, non-overlapping ordinal ranges.
func assertPartition(t *testing.T, result *spc.Result) {
	t.Helper()
	require.NotEmpty(t, result.Segments)

	next := 0
	for i, seg := range result.Segments {
		assert.Equal(t, i, seg.ID, "segment ids must be contiguous")
		assert.Equal(t, next, seg.FirstOrdinal, "segment %d must start where the previous ended", i)
		next = seg.LastOrdinal + 1
	}
	assert.Equal(t, len(result.Rows), next, "segments must cover every row")

	for i, row := range result.Rows {
		assert.Equal(t, i, row.Ordinal)
		seg := result.Segments[row.SegmentID]
		assert.True(t, row.Ordinal >= seg.FirstOrdinal && row.Ordinal <= seg.LastOrdinal,
			"row %d outside segment %d range", i, row.SegmentID)
	}
}

func TestNew_Defaults(t *testing.T) {
	s, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, spc.DefaultSampleSize, s.SampleSize())
	assert.True(t, s.TimeFrame().IsNative())

	_, err = New(Config{SampleSize: -1})
	assert.ErrorIs(t, err, core.ErrInvalidParameter)

	_, err = New(Config{TimeFrame: spc.TimeFrame(-time.Hour)})
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestSolve_NoOutliersSingleSegment(t *testing.T) {
	s := newTestSolver(t, spc.Native, 30)
	dates, values := trendSeries(40)

	result, err := s.Solve(dates, values)
	require.NoError(t, err)

	require.Len(t, result.Segments, 1)
	seg := result.Segments[0]
	assert.Equal(t, 40, seg.Points)
	assert.Equal(t, 30, seg.TrainingPoints)
	assert.Equal(t, 0, seg.Outliers)
	assert.Equal(t, dates[0], seg.Start)
	assert.Equal(t, dates[39], seg.End)
	assert.InDelta(t, 0.05, seg.Slope, 0.001)
	assert.InDelta(t, 70, seg.Intercept, 0.05)

	for _, row := range result.Rows {
		assert.Equal(t, 0, row.SegmentID)
		assert.False(t, row.Outlier)
		assert.Less(t, abs(row.ZScore), 3.0)
	}
	assertPartition(t, result)
}

func TestSolve_SingleForcedBreakpoint(t *testing.T) {
	s := newTestSolver(t, spc.Native, 30)
	// 30 + 20 points; the displaced point sits at sampleSize+2.
	dates, values := trendSeries(50, testkit.Spike{Ordinal: 32, Magnitude: 10})

	result, err := s.Solve(dates, values)
	require.NoError(t, err)

	require.Len(t, result.Segments, 2)
	assert.Equal(t, 32, result.Segments[0].LastOrdinal)
	assert.Equal(t, 33, result.Segments[1].FirstOrdinal)
	assert.Equal(t, 17, result.Segments[1].Points)

	spike := result.Rows[32]
	assert.True(t, spike.Outlier)
	assert.Equal(t, 0, spike.SegmentID, "the outlier closes the segment it broke")
	assert.Greater(t, spike.ZScore, 50.0)

	assert.Equal(t, 1, result.Segments[0].Outliers)
	assert.Equal(t, 0, result.Segments[1].Outliers)
	assertPartition(t, result)
}

func TestSolve_MultipleRegimes(t *testing.T) {
	cfg := testkit.DefaultSeriesConfig()
	cfg.Base = 70
	cfg.Noise = 0.1
	cfg.Regimes = []testkit.Regime{
		{Points: 40, Slope: 0.02},
		{Points: 40, Shift: 5, Slope: 0.02},
		{Points: 40, Shift: -5, Slope: 0.02},
	}
	dates, values := testkit.NewSeriesGenerator(cfg).Generate()

	s := newTestSolver(t, spc.Native, 30)
	result, err := s.Solve(dates, values)
	require.NoError(t, err)

	require.Len(t, result.Segments, 3)
	assert.Equal(t, 40, result.Segments[0].LastOrdinal)
	assert.Equal(t, 80, result.Segments[1].LastOrdinal)
	assert.Equal(t, 119, result.Segments[2].LastOrdinal)

	for _, seg := range result.Segments {
		assert.InDelta(t, 0.02, seg.Slope, 0.005, "segment %d slope", seg.ID)
	}
	assert.True(t, result.Rows[40].Outlier)
	assert.True(t, result.Rows[80].Outlier)
	assertPartition(t, result)
}

func TestSolve_BreakpointInsideTrainingWindow(t *testing.T) {
	s := newTestSolver(t, spc.Native, 30)
	dates, values := trendSeries(60, testkit.Spike{Ordinal: 10, Magnitude: 10})

	result, err := s.Solve(dates, values)
	require.NoError(t, err)

	require.Len(t, result.Segments, 2)
	first := result.Segments[0]
	assert.Equal(t, 10, first.LastOrdinal)
	assert.Equal(t, 11, first.TrainingPoints)
	assert.True(t, result.Rows[10].Outlier)

	// Rows that trained segment 0 but lie past its breakpoint belong to segment 1.
	assert.Equal(t, 1, result.Rows[11].SegmentID)
	assert.True(t, result.Rows[11].Training)
	assertPartition(t, result)
}

func TestSolve_NoRowsLeftAfterBreakpoint(t *testing.T) {
	tests := []struct {
		name  string
		spike int
	}{
		{"outlier on penultimate row", 38},
		{"outlier on last row", 39},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSolver(t, spc.Native, 30)
			dates, values := trendSeries(40, testkit.Spike{Ordinal: tt.spike, Magnitude: 10})

			result, err := s.Solve(dates, values)
			require.NoError(t, err)

			require.Len(t, result.Segments, 1)
			assert.Equal(t, 40, result.Segments[0].Points)
			assert.True(t, result.Rows[tt.spike].Outlier)
			assert.Equal(t, 0, result.Rows[39].SegmentID)
			assertPartition(t, result)
		})
	}
}

func TestSolve_ResidualStatisticsComeFromTrainingWindow(t *testing.T) {
	cfg := testkit.DefaultSeriesConfig()
	cfg.Noise = 0.15
	cfg.NoiseKind = testkit.NoiseUniform
	cfg.Regimes = []testkit.Regime{
		{Points: 45, Slope: -0.03},
		{Points: 45, Shift: 4, Slope: 0.01},
	}
	dates, values := testkit.NewSeriesGenerator(cfg).Generate()

	s := newTestSolver(t, spc.Native, 30)
	result, err := s.Solve(dates, values)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(result.Segments), 2)

	for _, seg := range result.Segments {
		end := seg.FirstOrdinal + s.SampleSize()
		if end > len(values) {
			end = len(values)
		}
		var residuals []float64
		for ord := seg.FirstOrdinal; ord < end; ord++ {
			residuals = append(residuals, values[ord]-(seg.Intercept+seg.Slope*float64(ord)))
		}
		mean, std := stat.MeanStdDev(residuals, nil)

		assert.InDelta(t, mean, seg.ResidualMean, 1e-9, "segment %d residual mean", seg.ID)
		assert.InDelta(t, std, seg.ResidualStd, 1e-9, "segment %d residual std", seg.ID)

		for _, row := range result.Rows[seg.FirstOrdinal : seg.LastOrdinal+1] {
			assert.Equal(t, seg.ResidualMean, row.ResidualMean)
			assert.Equal(t, seg.ResidualStd, row.ResidualStd)
		}
	}
	assertPartition(t, result)
}

func TestSolve_ShapeMismatch(t *testing.T) {
	s := newTestSolver(t, spc.Native, 5)
	dates, values := trendSeries(10)

	result, err := s.Solve(dates, values[:9])
	assert.ErrorIs(t, err, core.ErrShapeMismatch)
	assert.Nil(t, result)

	_, err = s.WorkingTable()
	assert.ErrorIs(t, err, core.ErrNotSolved)
	_, err = s.SegmentSummary()
	assert.ErrorIs(t, err, core.ErrNotSolved)
}

func TestSolve_InsufficientData(t *testing.T) {
	s := newTestSolver(t, spc.Native, 30)
	dates, values := trendSeries(5)

	result, err := s.Solve(dates, values)
	assert.ErrorIs(t, err, core.ErrInsufficientData)
	assert.Nil(t, result)
}

func TestSolve_DegenerateWindow(t *testing.T) {
	t.Run("single-row window", func(t *testing.T) {
		s := newTestSolver(t, spc.Native, 1)
		dates, values := trendSeries(10)

		_, err := s.Solve(dates, values)
		assert.ErrorIs(t, err, core.ErrDegenerateWindow)
	})

	t.Run("all observations in one bucket", func(t *testing.T) {
		day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		dates := make([]time.Time, 30)
		values := make([]float64, 30)
		for i := range dates {
			dates[i] = day.Add(time.Duration(i) * time.Minute)
			values[i] = float64(i)
		}

		s := newTestSolver(t, spc.Daily, 30)
		_, err := s.Solve(dates, values)
		assert.ErrorIs(t, err, core.ErrDegenerateWindow)
	})
}

func TestSolve_ResampledFewerBucketsThanSampleSize(t *testing.T) {
	s := newTestSolver(t, spc.Weekly, 30)
	dates, values := trendSeries(70)

	result, err := s.Solve(dates, values)
	require.NoError(t, err)

	require.Len(t, result.Rows, 10)
	for _, row := range result.Rows {
		assert.Equal(t, 7, row.Count)
	}
	require.Len(t, result.Segments, 1)
	assert.Equal(t, 10, result.Segments[0].TrainingPoints)
	assertPartition(t, result)
}

func TestSolve_FailureKeepsPreviousResult(t *testing.T) {
	s := newTestSolver(t, spc.Native, 30)
	dates, values := trendSeries(50, testkit.Spike{Ordinal: 32, Magnitude: 10})

	first, err := s.Solve(dates, values)
	require.NoError(t, err)

	_, err = s.Solve(dates[:5], values[:5])
	require.ErrorIs(t, err, core.ErrInsufficientData)

	rows, err := s.WorkingTable()
	require.NoError(t, err)
	assert.Equal(t, first.Rows, rows)

	segments, err := s.SegmentSummary()
	require.NoError(t, err)
	assert.Equal(t, first.Segments, segments)
}

func TestSolve_SnapshotsAreCopies(t *testing.T) {
	s := newTestSolver(t, spc.Native, 30)
	dates, values := trendSeries(40)

	result, err := s.Solve(dates, values)
	require.NoError(t, err)
	result.Rows[0].Value = -1
	result.Segments[0].Points = -1

	rows, err := s.WorkingTable()
	require.NoError(t, err)
	assert.NotEqual(t, -1.0, rows[0].Value)

	rows[1].Value = -1
	again, err := s.WorkingTable()
	require.NoError(t, err)
	assert.NotEqual(t, -1.0, again[1].Value)

	segments, err := s.SegmentSummary()
	require.NoError(t, err)
	assert.Equal(t, 40, segments[0].Points)
}

func TestSolveText(t *testing.T) {
	cfg := testkit.DefaultSeriesConfig()
	cfg.Regimes = []testkit.Regime{{Points: 35, Slope: 0.01}}
	texts, values := testkit.NewSeriesGenerator(cfg).GenerateText()

	s := newTestSolver(t, spc.Native, 30)
	result, err := s.SolveText(texts, values)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), result.Rows[0].Date)
	assert.Equal(t, time.Date(2024, 2, 4, 0, 0, 0, 0, time.UTC), result.Rows[34].Date)

	texts[7] = "2024-13-45"
	_, err = s.SolveText(texts, values)
	assert.ErrorIs(t, err, core.ErrDateParse)

	_, err = s.SolveText(texts[:10], values)
	assert.ErrorIs(t, err, core.ErrShapeMismatch)
}

func TestZScore(t *testing.T) {
	assert.Equal(t, 2.0, zScore(5, 1, 2))
	assert.Equal(t, 0.0, zScore(1, 1, 0))
	assert.True(t, zScore(2, 1, 0) > 1e308)
	assert.True(t, zScore(0, 1, 0) < -1e308)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
