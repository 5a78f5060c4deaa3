package excel

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"gospc/domain/core"
	"gospc/domain/spc"
	"gospc/internal/solver"
)

// Sheet names of an exported workbook
const (
	SheetWorking  = "working"
	SheetSegments = "segments"
	SheetBands    = "bands"
)

var (
	workingHeader = []interface{}{
		"metric", "date", "ordinal", "count", "value", "bucket_std", "segment_id",
		"alpha", "beta", "fitted", "residual", "residual_mean", "residual_std",
		"z_score", "outlier", "training",
	}
	segmentsHeader = []interface{}{
		"metric", "segment_id", "start", "end", "points", "first_ordinal", "last_ordinal",
		"intercept", "slope", "residual_mean", "residual_std", "training_points", "outliers",
	}
	bandsHeader = []interface{}{
		"metric", "date", "ordinal", "segment_id", "value", "center",
		"lower_3", "lower_2", "lower_1", "upper_1", "upper_2", "upper_3", "outlier",
	}
)

// WriteWorkbook exports analyses as one workbook with working, segments and bands
// sheets. Rows of every analysis are stacked, keyed by the metric column.
func WriteWorkbook(w io.Writer, analyses []*spc.Analysis) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetWorking); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{SheetSegments, SheetBands} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	if err := writeSheet(f, SheetWorking, workingHeader, analyses, workingRows); err != nil {
		return err
	}
	if err := writeSheet(f, SheetSegments, segmentsHeader, analyses, segmentRows); err != nil {
		return err
	}
	if err := writeSheet(f, SheetBands, bandsHeader, analyses, bandRows); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// WriteWorkbookFile exports analyses to path, creating parent directories
func WriteWorkbookFile(path string, analyses []*spc.Analysis) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteWorkbook(file, analyses); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func writeSheet(f *excelize.File, sheet string, header []interface{}, analyses []*spc.Analysis,
	render func(metric string, result *spc.Result) [][]interface{}) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to open stream for %s: %w", sheet, err)
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	row := 2
	for _, analysis := range analyses {
		if analysis == nil || analysis.Result == nil {
			continue
		}
		for _, values := range render(analysis.Metric.String(), analysis.Result) {
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return err
			}
			if err := sw.SetRow(cell, values); err != nil {
				return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
			}
			row++
		}
	}
	return sw.Flush()
}

func workingRows(metric string, result *spc.Result) [][]interface{} {
	out := make([][]interface{}, 0, len(result.Rows))
	for _, r := range result.Rows {
		out = append(out, []interface{}{
			metric, formatStamp(r.Date), r.Ordinal, r.Count, number(r.Value), number(r.BucketStd), r.SegmentID,
			number(r.Alpha), number(r.Beta), number(r.Fitted), number(r.Residual),
			number(r.ResidualMean), number(r.ResidualStd), number(r.ZScore), r.Outlier, r.Training,
		})
	}
	return out
}

func segmentRows(metric string, result *spc.Result) [][]interface{} {
	out := make([][]interface{}, 0, len(result.Segments))
	for _, s := range result.Segments {
		out = append(out, []interface{}{
			metric, s.ID, formatStamp(s.Start), formatStamp(s.End), s.Points, s.FirstOrdinal, s.LastOrdinal,
			number(s.Intercept), number(s.Slope), number(s.ResidualMean), number(s.ResidualStd),
			s.TrainingPoints, s.Outliers,
		})
	}
	return out
}

func bandRows(metric string, result *spc.Result) [][]interface{} {
	bands := solver.Bands(result.Rows)
	out := make([][]interface{}, 0, len(bands))
	for _, b := range bands {
		out = append(out, []interface{}{
			metric, formatStamp(b.Date), b.Ordinal, b.SegmentID, number(b.Value), number(b.Center),
			number(b.Lower3), number(b.Lower2), number(b.Lower1),
			number(b.Upper1), number(b.Upper2), number(b.Upper3), b.Outlier,
		})
	}
	return out
}

// number keeps finite values numeric and spells out the rest, which XLSX cannot store
func number(v float64) interface{} {
	switch {
	case math.IsNaN(v):
		return ""
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	default:
		return v
	}
}

func formatStamp(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return core.FormatDate(t)
	}
	return t.Format("02/01/2006 15:04:05")
}
