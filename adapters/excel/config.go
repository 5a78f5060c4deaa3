package excel

import "gospc/domain/core"

// ReaderConfig controls how a staging file is typed into a table
type ReaderConfig struct {
	DateColumn string   `json:"date_column"` // detected when empty
	DateLayout string   `json:"date_layout"` // core.DayMonthYear when empty; ISO dates always accepted
	Sheet      string   `json:"sheet"`       // first sheet when empty
	Metrics    []string `json:"metrics"`     // all numeric columns when empty
}

// DefaultReaderConfig returns the day/month/year convention with column detection
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		DateLayout: core.DayMonthYear,
	}
}
