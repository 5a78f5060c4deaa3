package solver

import (
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"gospc/domain/spc"
)

// Resample turns an aligned observation series into the working table.
//
// At native granularity every input row becomes one working row in input order.
// Otherwise rows are grouped into left-closed buckets of the frame's width aligned
// to the minimum timestamp; empty buckets are omitted, so ordinals stay contiguous
// even when calendar time has gaps. Callers must pass equal-length slices.
func Resample(dates []time.Time, values []float64, frame spc.TimeFrame) []spc.WorkingRow {
	if frame.IsNative() {
		rows := make([]spc.WorkingRow, len(dates))
		for i := range dates {
			rows[i] = newRow(i, dates[i], values[i], 1, 0)
		}
		return rows
	}
	if len(dates) == 0 {
		return nil
	}

	origin := dates[0]
	for _, d := range dates[1:] {
		if d.Before(origin) {
			origin = d
		}
	}
	width := frame.Duration()

	buckets := make(map[int64][]float64)
	for i, d := range dates {
		idx := int64(d.Sub(origin) / width)
		buckets[idx] = append(buckets[idx], values[i])
	}

	keys := make([]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	rows := make([]spc.WorkingRow, len(keys))
	for ordinal, k := range keys {
		members := buckets[k]
		mean, _ := stats.Mean(members)
		std := 0.0
		if len(members) > 1 {
			std, _ = stats.StandardDeviationSample(members)
		}
		start := origin.Add(time.Duration(k) * width)
		rows[ordinal] = newRow(ordinal, start, mean, len(members), std)
	}
	return rows
}

func newRow(ordinal int, date time.Time, value float64, count int, bucketStd float64) spc.WorkingRow {
	return spc.WorkingRow{
		Date:      date,
		Value:     value,
		Count:     count,
		BucketStd: bucketStd,
		Ordinal:   ordinal,
		SegmentID: spc.Unassigned,
	}
}
