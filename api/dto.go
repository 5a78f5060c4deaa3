package api

import (
	"math"
	"time"

	"gospc/app"
	"gospc/domain/core"
	"gospc/domain/spc"
)

// SeriesRequest is the body of POST /api/analyses
type SeriesRequest struct {
	Dataset    string    `json:"dataset"`
	Metric     string    `json:"metric"`
	Dates      []string  `json:"dates" binding:"required"`
	Values     []float64 `json:"values" binding:"required"`
	TimeFrame  *string   `json:"time_frame"`
	SampleSize int       `json:"sample_size"`
	Persist    bool      `json:"persist"`
}

// StagedRequest is the body of POST /api/datasets/:dataset/analyses
type StagedRequest struct {
	Metrics    []string `json:"metrics"`
	TimeFrame  *string  `json:"time_frame"`
	SampleSize int      `json:"sample_size"`
	Persist    bool     `json:"persist"`
}

// AnalysisResponse describes an analysis with its segment table and the
// out-of-control points
type AnalysisResponse struct {
	ID          core.AnalysisID `json:"id"`
	Dataset     core.DatasetKey `json:"dataset,omitempty"`
	Metric      core.MetricKey  `json:"metric,omitempty"`
	TimeFrame   spc.TimeFrame   `json:"time_frame"`
	SampleSize  int             `json:"sample_size"`
	Fingerprint core.Hash       `json:"fingerprint"`
	RawRows     int             `json:"raw_rows"`
	RowCount    int             `json:"row_count"`
	CreatedAt   time.Time       `json:"created_at"`
	Segments    []spc.Segment   `json:"segments"`
	Outliers    []RowResponse   `json:"outliers"`
}

// RowResponse is a working row. Non-finite numbers are encoded as null.
type RowResponse struct {
	Date         time.Time `json:"date"`
	Ordinal      int       `json:"ordinal"`
	Value        *float64  `json:"value"`
	Count        int       `json:"count"`
	BucketStd    *float64  `json:"bucket_std"`
	SegmentID    int       `json:"segment_id"`
	Alpha        *float64  `json:"alpha"`
	Beta         *float64  `json:"beta"`
	Fitted       *float64  `json:"fitted"`
	Residual     *float64  `json:"residual"`
	ResidualMean *float64  `json:"residual_mean"`
	ResidualStd  *float64  `json:"residual_std"`
	ZScore       *float64  `json:"z_score"`
	Outlier      bool      `json:"outlier"`
	Training     bool      `json:"training"`
}

// OutcomeResponse is one metric of a batch
type OutcomeResponse struct {
	Metric   core.MetricKey    `json:"metric"`
	Analysis *AnalysisResponse `json:"analysis,omitempty"`
	Error    string            `json:"error,omitempty"`
	Code     string            `json:"code,omitempty"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func newAnalysisResponse(a *spc.Analysis) *AnalysisResponse {
	resp := &AnalysisResponse{
		ID:          a.ID,
		Dataset:     a.Dataset,
		Metric:      a.Metric,
		TimeFrame:   a.TimeFrame,
		SampleSize:  a.SampleSize,
		Fingerprint: a.Fingerprint,
		RawRows:     a.RawRows,
		CreatedAt:   a.CreatedAt,
		Segments:    []spc.Segment{},
		Outliers:    []RowResponse{},
	}
	if a.Result != nil {
		resp.RowCount = len(a.Result.Rows)
		resp.Segments = a.Result.Segments
		resp.Outliers = newRowResponses(a.Result.Outliers())
	}
	return resp
}

func newRowResponses(rows []spc.WorkingRow) []RowResponse {
	out := make([]RowResponse, len(rows))
	for i, r := range rows {
		out[i] = RowResponse{
			Date:         r.Date,
			Ordinal:      r.Ordinal,
			Value:        finite(r.Value),
			Count:        r.Count,
			BucketStd:    finite(r.BucketStd),
			SegmentID:    r.SegmentID,
			Alpha:        finite(r.Alpha),
			Beta:         finite(r.Beta),
			Fitted:       finite(r.Fitted),
			Residual:     finite(r.Residual),
			ResidualMean: finite(r.ResidualMean),
			ResidualStd:  finite(r.ResidualStd),
			ZScore:       finite(r.ZScore),
			Outlier:      r.Outlier,
			Training:     r.Training,
		}
	}
	return out
}

func newOutcomeResponses(outcomes []app.MetricOutcome) []OutcomeResponse {
	out := make([]OutcomeResponse, len(outcomes))
	for i, o := range outcomes {
		out[i] = OutcomeResponse{Metric: o.Metric}
		if o.Err != nil {
			body := errorBody(o.Err)
			out[i].Error, out[i].Code = body.Error, body.Code
			continue
		}
		out[i].Analysis = newAnalysisResponse(o.Analysis)
	}
	return out
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
