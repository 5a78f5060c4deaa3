package solver

import "gospc/domain/spc"

// Bands derives control-chart limits for every working row: the segment line shifted
// by the training residual mean, plus one, two and three residual standard deviations.
func Bands(rows []spc.WorkingRow) []spc.ControlBand {
	out := make([]spc.ControlBand, len(rows))
	for i, row := range rows {
		center := row.Fitted + row.ResidualMean
		sd := row.ResidualStd
		out[i] = spc.ControlBand{
			Date:      row.Date,
			Ordinal:   row.Ordinal,
			SegmentID: row.SegmentID,
			Value:     row.Value,
			Center:    center,
			Lower1:    center - sd,
			Upper1:    center + sd,
			Lower2:    center - 2*sd,
			Upper2:    center + 2*sd,
			Lower3:    center - spc.ControlLimit*sd,
			Upper3:    center + spc.ControlLimit*sd,
			Outlier:   row.Outlier,
		}
	}
	return out
}
