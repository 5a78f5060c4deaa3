package solver

import (
	"fmt"
	"sort"

	"gospc/domain/core"
	"gospc/domain/spc"
)

// Summarize derives the segment table from a finished working table.
//
// Rows are grouped by segment id. Intercept, slope and residual statistics are part of
// the grouping key: they are broadcast per segment, so a row disagreeing with its
// group means the table was assembled inconsistently.
func Summarize(rows []spc.WorkingRow) ([]spc.Segment, error) {
	if len(rows) == 0 {
		return nil, core.ErrEmptyResult
	}

	index := make(map[int]int)
	var segments []spc.Segment

	for _, row := range rows {
		if row.SegmentID == spc.Unassigned {
			return nil, fmt.Errorf("%w: ordinal %d has no segment", core.ErrInconsistentSegment, row.Ordinal)
		}

		pos, ok := index[row.SegmentID]
		if !ok {
			index[row.SegmentID] = len(segments)
			segments = append(segments, spc.Segment{
				ID:           row.SegmentID,
				Intercept:    row.Alpha,
				Slope:        row.Beta,
				ResidualMean: row.ResidualMean,
				ResidualStd:  row.ResidualStd,
				Start:        row.Date,
				End:          row.Date,
				FirstOrdinal: row.Ordinal,
				LastOrdinal:  row.Ordinal,
			})
			pos = len(segments) - 1
		}

		seg := &segments[pos]
		if seg.Intercept != row.Alpha || seg.Slope != row.Beta ||
			seg.ResidualMean != row.ResidualMean || seg.ResidualStd != row.ResidualStd {
			return nil, fmt.Errorf("%w: segment %d at ordinal %d", core.ErrInconsistentSegment, row.SegmentID, row.Ordinal)
		}

		seg.Points++
		if row.Date.Before(seg.Start) {
			seg.Start = row.Date
		}
		if row.Date.After(seg.End) {
			seg.End = row.Date
		}
		if row.Ordinal < seg.FirstOrdinal {
			seg.FirstOrdinal = row.Ordinal
		}
		if row.Ordinal > seg.LastOrdinal {
			seg.LastOrdinal = row.Ordinal
		}
		if row.Training {
			seg.TrainingPoints++
		}
		if row.Outlier {
			seg.Outliers++
		}
	}

	sort.Slice(segments, func(i, j int) bool { return segments[i].ID < segments[j].ID })
	return segments, nil
}

// validatePartition checks that segment ids run 0..k and that their ordinal ranges
// tile the table without gaps or overlaps.
func validatePartition(rows []spc.WorkingRow, segments []spc.Segment) error {
	next := 0
	for i, seg := range segments {
		if seg.ID != i {
			return fmt.Errorf("%w: expected segment id %d, found %d", core.ErrInconsistentSegment, i, seg.ID)
		}
		if seg.FirstOrdinal != next || seg.LastOrdinal-seg.FirstOrdinal+1 != seg.Points {
			return fmt.Errorf("%w: segment %d covers ordinals %d..%d with %d points",
				core.ErrInconsistentSegment, seg.ID, seg.FirstOrdinal, seg.LastOrdinal, seg.Points)
		}
		next = seg.LastOrdinal + 1
	}
	if next != len(rows) {
		return fmt.Errorf("%w: segments cover %d of %d rows", core.ErrInconsistentSegment, next, len(rows))
	}
	return nil
}
