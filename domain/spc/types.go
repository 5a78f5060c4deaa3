package spc

import (
	"time"

	"gospc/domain/core"
)

// Unassigned marks a working row that no segment has claimed yet.
const Unassigned = -1

// DefaultSampleSize is the training window length used when none is configured.
const DefaultSampleSize = 30

// ControlLimit is the |z| threshold that signals an out-of-control point.
const ControlLimit = 3.0

// WorkingRow is one time unit of the analysis: a raw observation at native
// granularity, or one bucket when the series was resampled.
type WorkingRow struct {
	Date      time.Time `json:"date"` // observation date or bucket start
	Value     float64   `json:"value"`
	Count     int       `json:"count"`      // raw observations folded into this row
	BucketStd float64   `json:"bucket_std"` // sample std of the folded values, 0 when Count < 2
	Ordinal   int       `json:"ordinal"`

	SegmentID    int     `json:"segment_id"`
	Alpha        float64 `json:"alpha"`
	Beta         float64 `json:"beta"`
	Fitted       float64 `json:"fitted"`
	Residual     float64 `json:"residual"`
	ResidualMean float64 `json:"residual_mean"`
	ResidualStd  float64 `json:"residual_std"`
	ZScore       float64 `json:"z_score"`
	Outlier      bool    `json:"outlier"`
	Training     bool    `json:"training"` // row was inside its segment's training window
}

// Segment summarises one regime of the series.
type Segment struct {
	ID             int       `json:"segment_id"`
	Intercept      float64   `json:"intercept"`
	Slope          float64   `json:"slope"`
	ResidualMean   float64   `json:"residual_mean"`
	ResidualStd    float64   `json:"residual_std"`
	Points         int       `json:"points"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	FirstOrdinal   int       `json:"first_ordinal"`
	LastOrdinal    int       `json:"last_ordinal"`
	TrainingPoints int       `json:"training_points"`
	Outliers       int       `json:"outliers"`
}

// Result is the output of one successful solve.
type Result struct {
	Rows     []WorkingRow `json:"rows"`
	Segments []Segment    `json:"segments"`
}

// Clone returns a deep copy so callers never share buffers with the solver.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	out := &Result{
		Rows:     make([]WorkingRow, len(r.Rows)),
		Segments: make([]Segment, len(r.Segments)),
	}
	copy(out.Rows, r.Rows)
	copy(out.Segments, r.Segments)
	return out
}

// Outliers returns the rows flagged as out of control.
func (r *Result) Outliers() []WorkingRow {
	var out []WorkingRow
	for _, row := range r.Rows {
		if row.Outlier {
			out = append(out, row)
		}
	}
	return out
}

// Analysis is a persisted solve together with the parameters that produced it.
type Analysis struct {
	ID          core.AnalysisID `json:"id"`
	Dataset     core.DatasetKey `json:"dataset,omitempty"`
	Metric      core.MetricKey  `json:"metric,omitempty"`
	TimeFrame   TimeFrame       `json:"time_frame"`
	SampleSize  int             `json:"sample_size"`
	Fingerprint core.Hash       `json:"fingerprint"`
	RawRows     int             `json:"raw_rows"`
	CreatedAt   time.Time       `json:"created_at"`
	Result      *Result         `json:"result,omitempty"`
}

// AnalysisSummary is the listing view of an analysis without its tables.
type AnalysisSummary struct {
	ID           core.AnalysisID `json:"id"`
	Dataset      core.DatasetKey `json:"dataset,omitempty"`
	Metric       core.MetricKey  `json:"metric,omitempty"`
	TimeFrame    TimeFrame       `json:"time_frame"`
	SampleSize   int             `json:"sample_size"`
	RowCount     int             `json:"row_count"`
	SegmentCount int             `json:"segment_count"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Summary derives the listing view.
func (a *Analysis) Summary() AnalysisSummary {
	s := AnalysisSummary{
		ID:         a.ID,
		Dataset:    a.Dataset,
		Metric:     a.Metric,
		TimeFrame:  a.TimeFrame,
		SampleSize: a.SampleSize,
		CreatedAt:  a.CreatedAt,
	}
	if a.Result != nil {
		s.RowCount = len(a.Result.Rows)
		s.SegmentCount = len(a.Result.Segments)
	}
	return s
}

// ControlBand is one row of a control chart: the observed value against the
// segment's centre line and its 1, 2 and 3 sigma limits.
type ControlBand struct {
	Date      time.Time `json:"date"`
	Ordinal   int       `json:"ordinal"`
	SegmentID int       `json:"segment_id"`
	Value     float64   `json:"value"`
	Center    float64   `json:"center"`
	Lower1    float64   `json:"lower_1"`
	Upper1    float64   `json:"upper_1"`
	Lower2    float64   `json:"lower_2"`
	Upper2    float64   `json:"upper_2"`
	Lower3    float64   `json:"lower_3"`
	Upper3    float64   `json:"upper_3"`
	Outlier   bool      `json:"outlier"`
}
