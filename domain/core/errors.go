package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Input errors
	ErrShapeMismatch    = errors.New("timestamp and value series differ in length")
	ErrInsufficientData = errors.New("insufficient data for analysis")
	ErrDateParse        = errors.New("malformed timestamp")
	ErrInvalidParameter = errors.New("invalid parameter")

	// Solver errors
	ErrDegenerateWindow    = errors.New("degenerate training window")
	ErrEmptyResult         = errors.New("working table is empty")
	ErrInconsistentSegment = errors.New("segment parameters are not constant")
	ErrNotSolved           = errors.New("solver has no successful result")

	// Lookup errors
	ErrNotFound         = errors.New("resource not found")
	ErrAnalysisNotFound = fmt.Errorf("%w: analysis", ErrNotFound)
	ErrDatasetNotFound  = fmt.Errorf("%w: dataset", ErrNotFound)
	ErrMetricNotFound   = fmt.Errorf("%w: metric", ErrNotFound)
)

// Error constructors with context
func NewShapeMismatchError(timestamps, values int) error {
	return fmt.Errorf("%w: %d timestamps, %d values", ErrShapeMismatch, timestamps, values)
}

func NewInsufficientDataError(rows, sampleSize int) error {
	return fmt.Errorf("%w: %d rows, sample size %d", ErrInsufficientData, rows, sampleSize)
}

func NewDateParseError(row int, text string, err error) error {
	return fmt.Errorf("%w at row %d (%q): %v", ErrDateParse, row, text, err)
}

func NewDegenerateWindowError(start, rows int) error {
	return fmt.Errorf("%w: %d row(s) starting at ordinal %d", ErrDegenerateWindow, rows, start)
}

func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewValidationError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidParameter, field, reason)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInputError reports errors the caller can fix by changing the data or parameters.
func IsInputError(err error) bool {
	return errors.Is(err, ErrShapeMismatch) ||
		errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrDateParse) ||
		errors.Is(err, ErrInvalidParameter)
}

// IsSolverError reports failures raised by the fit-detect loop itself.
func IsSolverError(err error) bool {
	return errors.Is(err, ErrDegenerateWindow) ||
		errors.Is(err, ErrEmptyResult) ||
		errors.Is(err, ErrInconsistentSegment)
}
