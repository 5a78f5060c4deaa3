package spc

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"gospc/domain/core"
)

func TestParseTimeFrame(t *testing.T) {
	tests := []struct {
		input string
		want  TimeFrame
	}{
		{"", Native},
		{"native", Native},
		{"NATIVE", Native},
		{"d", Daily},
		{"7d", Weekly},
		{"w", Weekly},
		{"2w", TimeFrame(14 * 24 * time.Hour)},
		{"h", Hourly},
		{"12h", TimeFrame(12 * time.Hour)},
		{"90m", TimeFrame(90 * time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTimeFrame(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTimeFrame_Invalid(t *testing.T) {
	for _, input := range []string{"0d", "-2w", "xd", "fortnight", "-3h"} {
		_, err := ParseTimeFrame(input)
		assert.ErrorIs(t, err, core.ErrInvalidParameter, input)
	}
}

func TestTimeFrame_String(t *testing.T) {
	assert.Equal(t, "native", Native.String())
	assert.Equal(t, "1d", Daily.String())
	assert.Equal(t, "1w", Weekly.String())
	assert.Equal(t, "3d", TimeFrame(72*time.Hour).String())
	assert.Equal(t, "12h0m0s", TimeFrame(12*time.Hour).String())

	for _, tf := range []TimeFrame{Native, Hourly, Daily, Weekly, TimeFrame(90 * time.Minute)} {
		parsed, err := ParseTimeFrame(tf.String())
		require.NoError(t, err)
		assert.Equal(t, tf, parsed)
	}
}

func TestTimeFrame_YAML(t *testing.T) {
	var job struct {
		Frame TimeFrame `yaml:"time_frame"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("time_frame: 2w\n"), &job))
	assert.Equal(t, TimeFrame(14*24*time.Hour), job.Frame)

	assert.Error(t, yaml.Unmarshal([]byte("time_frame: sometimes\n"), &job))
}

func TestTable_Series(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	table := NewTable()
	table.Dates = []time.Time{day, day.AddDate(0, 0, 1), day.AddDate(0, 0, 2)}
	table.Columns["mass_kg"] = []float64{80, math.NaN(), 79.5}
	table.Columns["fat_mass_percent"] = []float64{20, 21, 22}
	table.Columns["broken"] = []float64{1}

	assert.Equal(t, 3, table.Len())
	assert.Equal(t, []string{"broken", "fat_mass_percent", "mass_kg"}, table.Metrics())

	dates, values, err := table.Series("mass_kg")
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day, day.AddDate(0, 0, 2)}, dates)
	assert.Equal(t, []float64{80, 79.5}, values)

	_, _, err = table.Series("height")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, _, err = table.Series("broken")
	assert.ErrorIs(t, err, core.ErrShapeMismatch)
}

func TestAnalysis_Summary(t *testing.T) {
	a := &Analysis{
		ID:         core.NewAnalysisID(),
		Metric:     "mass_kg",
		TimeFrame:  Weekly,
		SampleSize: 30,
		Result: &Result{
			Rows:     make([]WorkingRow, 4),
			Segments: make([]Segment, 2),
		},
	}
	a.Result.Rows[1].Outlier = true

	s := a.Summary()
	assert.Equal(t, a.ID, s.ID)
	assert.Equal(t, 4, s.RowCount)
	assert.Equal(t, 2, s.SegmentCount)
	assert.Len(t, a.Result.Outliers(), 1)

	clone := a.Result.Clone()
	clone.Rows[0].Value = 99
	assert.Zero(t, a.Result.Rows[0].Value)
}
