package spc

import (
	"math"
	"sort"
	"time"

	"gospc/domain/core"
)

// Table is a staged dataset: one date column and any number of numeric metric
// columns. Missing cells are NaN.
type Table struct {
	Dates   []time.Time
	Columns map[string][]float64
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{Columns: make(map[string][]float64)}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Dates) }

// Metrics returns the metric column names in sorted order.
func (t *Table) Metrics() []string {
	names := make([]string, 0, len(t.Columns))
	for name := range t.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Series extracts one metric as an aligned pair, dropping rows whose cell is missing.
func (t *Table) Series(metric string) ([]time.Time, []float64, error) {
	col, ok := t.Columns[metric]
	if !ok {
		return nil, nil, core.NewNotFoundError("metric", metric)
	}
	if len(col) != len(t.Dates) {
		return nil, nil, core.NewShapeMismatchError(len(t.Dates), len(col))
	}

	dates := make([]time.Time, 0, len(col))
	values := make([]float64, 0, len(col))
	for i, v := range col {
		if math.IsNaN(v) {
			continue
		}
		dates = append(dates, t.Dates[i])
		values = append(values, v)
	}
	return dates, values, nil
}

// DatasetSummary describes a staged dataset.
type DatasetSummary struct {
	Dataset      core.DatasetKey `json:"dataset" db:"dataset"`
	Metrics      int             `json:"metrics" db:"metrics"`
	Observations int             `json:"observations" db:"observations"`
	First        time.Time       `json:"first" db:"first_on"`
	Last         time.Time       `json:"last" db:"last_on"`
}
