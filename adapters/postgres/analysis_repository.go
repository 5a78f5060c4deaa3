package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"gospc/domain/core"
	"gospc/domain/spc"
	"gospc/ports"
)

// analysisRepository implements the AnalysisRepository interface
type analysisRepository struct {
	db *sqlx.DB
}

// NewAnalysisRepository creates a new analysis repository
func NewAnalysisRepository(db *sqlx.DB) ports.AnalysisRepository {
	return &analysisRepository{db: db}
}

type analysisRecord struct {
	ID           string    `db:"id"`
	Dataset      string    `db:"dataset"`
	Metric       string    `db:"metric"`
	TimeFrameNS  int64     `db:"time_frame_ns"`
	SampleSize   int       `db:"sample_size"`
	Fingerprint  string    `db:"fingerprint"`
	RawRows      int       `db:"raw_rows"`
	RowCount     int       `db:"row_count"`
	SegmentCount int       `db:"segment_count"`
	CreatedAt    time.Time `db:"created_at"`
}

type workingRowRecord struct {
	Ordinal      int             `db:"ordinal"`
	ObservedOn   time.Time       `db:"observed_on"`
	Value        sql.NullFloat64 `db:"value"`
	Count        int             `db:"count"`
	BucketStd    sql.NullFloat64 `db:"bucket_std"`
	SegmentID    int             `db:"segment_id"`
	Alpha        sql.NullFloat64 `db:"alpha"`
	Beta         sql.NullFloat64 `db:"beta"`
	Fitted       sql.NullFloat64 `db:"fitted"`
	Residual     sql.NullFloat64 `db:"residual"`
	ResidualMean sql.NullFloat64 `db:"residual_mean"`
	ResidualStd  sql.NullFloat64 `db:"residual_std"`
	ZScore       sql.NullFloat64 `db:"z_score"`
	Outlier      bool            `db:"outlier"`
	Training     bool            `db:"training"`
}

type segmentRecord struct {
	AnalysisID     string          `db:"analysis_id"`
	SegmentID      int             `db:"segment_id"`
	Intercept      sql.NullFloat64 `db:"intercept"`
	Slope          sql.NullFloat64 `db:"slope"`
	ResidualMean   sql.NullFloat64 `db:"residual_mean"`
	ResidualStd    sql.NullFloat64 `db:"residual_std"`
	Points         int             `db:"points"`
	StartOn        time.Time       `db:"start_on"`
	EndOn          time.Time       `db:"end_on"`
	FirstOrdinal   int             `db:"first_ordinal"`
	LastOrdinal    int             `db:"last_ordinal"`
	TrainingPoints int             `db:"training_points"`
	Outliers       int             `db:"outliers"`
}

var workingRowColumns = []string{
	"analysis_id", "ordinal", "observed_on", "value", "count", "bucket_std", "segment_id",
	"alpha", "beta", "fitted", "residual", "residual_mean", "residual_std", "z_score",
	"outlier", "training",
}

// Save writes the analysis header, its working rows and its segments in one transaction
func (r *analysisRepository) Save(ctx context.Context, analysis *spc.Analysis) error {
	if analysis.Result == nil {
		return core.ErrNotSolved
	}
	if analysis.CreatedAt.IsZero() {
		analysis.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	header := analysisRecord{
		ID:           analysis.ID.String(),
		Dataset:      analysis.Dataset.String(),
		Metric:       analysis.Metric.String(),
		TimeFrameNS:  int64(analysis.TimeFrame),
		SampleSize:   analysis.SampleSize,
		Fingerprint:  analysis.Fingerprint.String(),
		RawRows:      analysis.RawRows,
		RowCount:     len(analysis.Result.Rows),
		SegmentCount: len(analysis.Result.Segments),
		CreatedAt:    analysis.CreatedAt,
	}
	_, err = tx.NamedExecContext(ctx, `INSERT INTO spc_analyses (
		id, dataset, metric, time_frame_ns, sample_size, fingerprint, raw_rows, row_count, segment_count, created_at
	) VALUES (
		:id, :dataset, :metric, :time_frame_ns, :sample_size, :fingerprint, :raw_rows, :row_count, :segment_count, :created_at
	)`, header)
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}

	if err := copyWorkingRows(ctx, tx, analysis.ID, analysis.Result.Rows); err != nil {
		return err
	}

	if len(analysis.Result.Segments) > 0 {
		segments := make([]segmentRecord, len(analysis.Result.Segments))
		for i, s := range analysis.Result.Segments {
			segments[i] = segmentRecord{
				AnalysisID:     analysis.ID.String(),
				SegmentID:      s.ID,
				Intercept:      nullable(s.Intercept),
				Slope:          nullable(s.Slope),
				ResidualMean:   nullable(s.ResidualMean),
				ResidualStd:    nullable(s.ResidualStd),
				Points:         s.Points,
				StartOn:        s.Start,
				EndOn:          s.End,
				FirstOrdinal:   s.FirstOrdinal,
				LastOrdinal:    s.LastOrdinal,
				TrainingPoints: s.TrainingPoints,
				Outliers:       s.Outliers,
			}
		}
		_, err = tx.NamedExecContext(ctx, `INSERT INTO spc_segments (
			analysis_id, segment_id, intercept, slope, residual_mean, residual_std, points,
			start_on, end_on, first_ordinal, last_ordinal, training_points, outliers
		) VALUES (
			:analysis_id, :segment_id, :intercept, :slope, :residual_mean, :residual_std, :points,
			:start_on, :end_on, :first_ordinal, :last_ordinal, :training_points, :outliers
		)`, segments)
		if err != nil {
			return fmt.Errorf("failed to insert segments: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit analysis %s: %w", analysis.ID, err)
	}
	return nil
}

func copyWorkingRows(ctx context.Context, tx *sqlx.Tx, id core.AnalysisID, rows []spc.WorkingRow) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("spc_working_rows", workingRowColumns...))
	if err != nil {
		return fmt.Errorf("failed to prepare copy: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err := stmt.ExecContext(ctx,
			id.String(), row.Ordinal, row.Date, nullable(row.Value), row.Count, nullable(row.BucketStd), row.SegmentID,
			nullable(row.Alpha), nullable(row.Beta), nullable(row.Fitted), nullable(row.Residual),
			nullable(row.ResidualMean), nullable(row.ResidualStd), nullable(row.ZScore),
			row.Outlier, row.Training,
		)
		if err != nil {
			return fmt.Errorf("failed to copy working row %d: %w", row.Ordinal, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to flush working rows: %w", err)
	}
	return nil
}

// Get loads an analysis with both tables
func (r *analysisRepository) Get(ctx context.Context, id core.AnalysisID) (*spc.Analysis, error) {
	var header analysisRecord
	err := r.db.GetContext(ctx, &header, `SELECT
		id, dataset, metric, time_frame_ns, sample_size, fingerprint, raw_rows, row_count, segment_count, created_at
	FROM spc_analyses WHERE id = $1`, id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", core.ErrAnalysisNotFound, id)
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}

	var rowRecords []workingRowRecord
	err = r.db.SelectContext(ctx, &rowRecords, `SELECT
		ordinal, observed_on, value, count, bucket_std, segment_id, alpha, beta, fitted,
		residual, residual_mean, residual_std, z_score, outlier, training
	FROM spc_working_rows WHERE analysis_id = $1 ORDER BY ordinal`, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load working rows: %w", err)
	}

	var segmentRecords []segmentRecord
	err = r.db.SelectContext(ctx, &segmentRecords, `SELECT
		analysis_id, segment_id, intercept, slope, residual_mean, residual_std, points,
		start_on, end_on, first_ordinal, last_ordinal, training_points, outliers
	FROM spc_segments WHERE analysis_id = $1 ORDER BY segment_id`, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load segments: %w", err)
	}

	analysis := header.toDomain()
	analysis.Result = &spc.Result{
		Rows:     make([]spc.WorkingRow, len(rowRecords)),
		Segments: make([]spc.Segment, len(segmentRecords)),
	}
	for i, rec := range rowRecords {
		analysis.Result.Rows[i] = rec.toDomain()
	}
	for i, rec := range segmentRecords {
		analysis.Result.Segments[i] = rec.toDomain()
	}
	return analysis, nil
}

// List returns analysis summaries, newest first
func (r *analysisRepository) List(ctx context.Context, limit int) ([]spc.AnalysisSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	var records []analysisRecord
	err := r.db.SelectContext(ctx, &records, `SELECT
		id, dataset, metric, time_frame_ns, sample_size, fingerprint, raw_rows, row_count, segment_count, created_at
	FROM spc_analyses
	ORDER BY created_at DESC
	LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}

	summaries := make([]spc.AnalysisSummary, len(records))
	for i, rec := range records {
		summaries[i] = spc.AnalysisSummary{
			ID:           core.AnalysisID(rec.ID),
			Dataset:      core.DatasetKey(rec.Dataset),
			Metric:       core.MetricKey(rec.Metric),
			TimeFrame:    spc.TimeFrame(rec.TimeFrameNS),
			SampleSize:   rec.SampleSize,
			RowCount:     rec.RowCount,
			SegmentCount: rec.SegmentCount,
			CreatedAt:    rec.CreatedAt,
		}
	}
	return summaries, nil
}

// Delete removes an analysis; its rows and segments cascade
func (r *analysisRepository) Delete(ctx context.Context, id core.AnalysisID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM spc_analyses WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", core.ErrAnalysisNotFound, id)
	}
	return nil
}

func (rec analysisRecord) toDomain() *spc.Analysis {
	return &spc.Analysis{
		ID:          core.AnalysisID(rec.ID),
		Dataset:     core.DatasetKey(rec.Dataset),
		Metric:      core.MetricKey(rec.Metric),
		TimeFrame:   spc.TimeFrame(rec.TimeFrameNS),
		SampleSize:  rec.SampleSize,
		Fingerprint: core.Hash(rec.Fingerprint),
		RawRows:     rec.RawRows,
		CreatedAt:   rec.CreatedAt,
	}
}

func (rec workingRowRecord) toDomain() spc.WorkingRow {
	row := spc.WorkingRow{
		Date:         rec.ObservedOn.UTC(),
		Value:        fromNullable(rec.Value),
		Count:        rec.Count,
		BucketStd:    fromNullable(rec.BucketStd),
		Ordinal:      rec.Ordinal,
		SegmentID:    rec.SegmentID,
		Alpha:        fromNullable(rec.Alpha),
		Beta:         fromNullable(rec.Beta),
		Fitted:       fromNullable(rec.Fitted),
		Residual:     fromNullable(rec.Residual),
		ResidualMean: fromNullable(rec.ResidualMean),
		ResidualStd:  fromNullable(rec.ResidualStd),
		Outlier:      rec.Outlier,
		Training:     rec.Training,
	}
	// A NULL z-score was infinite: zero residual spread and a deviating point.
	if rec.ZScore.Valid {
		row.ZScore = rec.ZScore.Float64
	} else {
		row.ZScore = math.Inf(int(math.Copysign(1, row.Residual-row.ResidualMean)))
	}
	return row
}

func (rec segmentRecord) toDomain() spc.Segment {
	return spc.Segment{
		ID:             rec.SegmentID,
		Intercept:      fromNullable(rec.Intercept),
		Slope:          fromNullable(rec.Slope),
		ResidualMean:   fromNullable(rec.ResidualMean),
		ResidualStd:    fromNullable(rec.ResidualStd),
		Points:         rec.Points,
		Start:          rec.StartOn.UTC(),
		End:            rec.EndOn.UTC(),
		FirstOrdinal:   rec.FirstOrdinal,
		LastOrdinal:    rec.LastOrdinal,
		TrainingPoints: rec.TrainingPoints,
		Outliers:       rec.Outliers,
	}
}

// nullable maps NaN and infinities to NULL; PostgreSQL rejects Go's spelling of them.
func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
