package solver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gospc/domain/core"
	"gospc/domain/spc"
)

func summaryRows() []spc.WorkingRow {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]spc.WorkingRow, 5)
	for i := range rows {
		rows[i] = spc.WorkingRow{
			Date:         day.AddDate(0, 0, i),
			Ordinal:      i,
			Value:        float64(i),
			SegmentID:    0,
			Alpha:        1,
			Beta:         0.5,
			ResidualMean: 0,
			ResidualStd:  0.25,
			Training:     i < 3,
		}
	}
	for i := 3; i < 5; i++ {
		rows[i].SegmentID = 1
		rows[i].Alpha = 4
		rows[i].Beta = -0.1
		rows[i].ResidualStd = 0.5
		rows[i].Training = true
	}
	rows[2].Outlier = true
	return rows
}

func TestSummarize(t *testing.T) {
	rows := summaryRows()

	segments, err := Summarize(rows)
	require.NoError(t, err)
	require.Len(t, segments, 2)

	first := segments[0]
	assert.Equal(t, 0, first.ID)
	assert.Equal(t, 3, first.Points)
	assert.Equal(t, rows[0].Date, first.Start)
	assert.Equal(t, rows[2].Date, first.End)
	assert.Equal(t, 3, first.TrainingPoints)
	assert.Equal(t, 1, first.Outliers)
	assert.Equal(t, 0.25, first.ResidualStd)

	second := segments[1]
	assert.Equal(t, 3, second.FirstOrdinal)
	assert.Equal(t, 4, second.LastOrdinal)
	assert.Equal(t, 4.0, second.Intercept)
	assert.Equal(t, -0.1, second.Slope)

	assert.NoError(t, validatePartition(rows, segments))
}

func TestSummarize_Errors(t *testing.T) {
	_, err := Summarize(nil)
	assert.ErrorIs(t, err, core.ErrEmptyResult)

	rows := summaryRows()
	rows[1].Beta = 0.6
	_, err = Summarize(rows)
	assert.ErrorIs(t, err, core.ErrInconsistentSegment)

	rows = summaryRows()
	rows[4].SegmentID = spc.Unassigned
	_, err = Summarize(rows)
	assert.ErrorIs(t, err, core.ErrInconsistentSegment)
}

func TestValidatePartition(t *testing.T) {
	rows := summaryRows()
	segments, err := Summarize(rows)
	require.NoError(t, err)

	gap := append([]spc.Segment(nil), segments...)
	gap[1].FirstOrdinal = 4
	gap[1].Points = 1
	assert.ErrorIs(t, validatePartition(rows, gap), core.ErrInconsistentSegment)

	skipped := append([]spc.Segment(nil), segments...)
	skipped[1].ID = 2
	assert.ErrorIs(t, validatePartition(rows, skipped), core.ErrInconsistentSegment)

	assert.ErrorIs(t, validatePartition(append(rows, rows[4]), segments), core.ErrInconsistentSegment)
}

func TestBands(t *testing.T) {
	rows := []spc.WorkingRow{{
		Ordinal:      2,
		SegmentID:    0,
		Value:        12,
		Fitted:       10,
		ResidualMean: 0.5,
		ResidualStd:  1,
		Outlier:      true,
	}}

	bands := Bands(rows)

	require.Len(t, bands, 1)
	b := bands[0]
	assert.Equal(t, 10.5, b.Center)
	assert.Equal(t, 9.5, b.Lower1)
	assert.Equal(t, 11.5, b.Upper1)
	assert.Equal(t, 8.5, b.Lower2)
	assert.Equal(t, 12.5, b.Upper2)
	assert.Equal(t, 7.5, b.Lower3)
	assert.Equal(t, 13.5, b.Upper3)
	assert.True(t, b.Outlier)
	assert.Equal(t, 12.0, b.Value)
}
