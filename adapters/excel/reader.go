package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"gospc/domain/core"
	"gospc/domain/spc"
	"gospc/internal"
	"gospc/ports"
)

// DataReader reads staging files in CSV or XLSX format
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	source   io.Reader
	config   ReaderConfig
	logger   zerolog.Logger
}

// NewDataReader creates a reader for a file on disk; the type follows the extension
func NewDataReader(filePath string, config ReaderConfig) *DataReader {
	return &DataReader{
		filePath: filePath,
		fileType: FileType(filePath),
		config:   config,
		logger:   internal.DefaultLogger.With().Str("component", "staging_reader").Logger(),
	}
}

// NewStreamReader creates a reader over an in-memory upload
func NewStreamReader(source io.Reader, fileType string, config ReaderConfig) *DataReader {
	return &DataReader{
		filePath: "<stream>",
		fileType: strings.ToLower(fileType),
		source:   source,
		config:   config,
		logger:   internal.DefaultLogger.With().Str("component", "staging_reader").Logger(),
	}
}

var _ ports.TableReader = (*DataReader)(nil)

// FileType returns "csv" for .csv names and "xlsx" otherwise
func FileType(name string) string {
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		return "csv"
	}
	return "xlsx"
}

// ReadTable reads the file and types it into a table sorted by date
func (r *DataReader) ReadTable() (*spc.Table, error) {
	data, err := r.ReadData()
	if err != nil {
		return nil, err
	}
	return r.toTable(data)
}

// ReadData reads the raw header and cell text
func (r *DataReader) ReadData() (*ExcelData, error) {
	start := time.Now()

	var (
		rows [][]string
		err  error
	)
	switch r.fileType {
	case "csv":
		rows, err = r.readCSVRows()
	case "xlsx":
		rows, err = r.readExcelRows()
	default:
		return nil, core.NewValidationError("file_type", fmt.Sprintf("unsupported file type %q", r.fileType))
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: %s must have a header row and at least one data row", core.ErrInsufficientData, r.filePath)
	}

	data := processRows(rows)
	r.logger.Debug().
		Str("file", r.filePath).
		Str("type", r.fileType).
		Int("columns", len(data.Headers)).
		Int("rows", len(data.Rows)).
		Dur("elapsed", time.Since(start)).
		Msg("staging file read")
	return data, nil
}

func (r *DataReader) open() (io.ReadCloser, error) {
	if r.source != nil {
		return io.NopCloser(r.source), nil
	}
	f, err := os.Open(r.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.NewNotFoundError("file", r.filePath)
		}
		return nil, fmt.Errorf("failed to open %s: %w", r.filePath, err)
	}
	return f, nil
}

func (r *DataReader) readCSVRows() ([][]string, error) {
	file, err := r.open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

func (r *DataReader) readExcelRows() ([][]string, error) {
	file, err := r.open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := r.config.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: workbook has no sheets", core.ErrInsufficientData)
		}
		sheet = sheets[0]
	}

	// Raw values keep date cells as serial numbers instead of locale formatting.
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

// processRows converts raw string rows into ExcelData format
func processRows(rows [][]string) *ExcelData {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(header)
	}

	var dataRows []RawRowData
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}
		rowData := make(RawRowData, len(headers))
		for j, cell := range row {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}
		dataRows = append(dataRows, rowData)
	}

	return &ExcelData{Headers: headers, Rows: dataRows}
}

// DetectDateColumn picks the date column: a header named like a date, otherwise the
// first column whose every cell parses as a date.
func DetectDateColumn(data *ExcelData, layout string) (string, error) {
	for _, header := range data.Headers {
		switch strings.ToLower(header) {
		case "date", "day", "timestamp", "observed_on", "observed_at":
			return header, nil
		}
	}

	for _, header := range data.Headers {
		ok := len(data.Rows) > 0
		for _, row := range data.Rows {
			if _, err := parseDate(row[header], layout, false); err != nil {
				ok = false
				break
			}
		}
		if ok {
			return header, nil
		}
	}
	return "", core.NewValidationError("date_column", "could not detect a date column")
}

func (r *DataReader) toTable(data *ExcelData) (*spc.Table, error) {
	layout := r.config.DateLayout
	if layout == "" {
		layout = core.DayMonthYear
	}

	dateColumn := r.config.DateColumn
	if dateColumn == "" {
		detected, err := DetectDateColumn(data, layout)
		if err != nil {
			return nil, err
		}
		dateColumn = detected
	} else if !contains(data.Headers, dateColumn) {
		return nil, core.NewNotFoundError("column", dateColumn)
	}

	metrics, err := r.selectMetrics(data, dateColumn)
	if err != nil {
		return nil, err
	}

	type record struct {
		date   time.Time
		values []float64
	}
	records := make([]record, 0, len(data.Rows))
	serials := r.fileType == "xlsx"

	for i, row := range data.Rows {
		date, err := parseDate(row[dateColumn], layout, serials)
		if err != nil {
			return nil, core.NewDateParseError(i, row[dateColumn], err)
		}
		rec := record{date: date, values: make([]float64, len(metrics))}
		for j, metric := range metrics {
			v, err := parseValue(row[metric])
			if err != nil {
				return nil, core.NewValidationError(metric, fmt.Sprintf("row %d: %q is not numeric", i, row[metric]))
			}
			rec.values[j] = v
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool { return records[i].date.Before(records[j].date) })

	table := spc.NewTable()
	table.Dates = make([]time.Time, len(records))
	for _, metric := range metrics {
		table.Columns[metric] = make([]float64, len(records))
	}
	for i, rec := range records {
		table.Dates[i] = rec.date
		for j, metric := range metrics {
			table.Columns[metric][i] = rec.values[j]
		}
	}

	r.logger.Info().
		Str("file", r.filePath).
		Str("date_column", dateColumn).
		Strs("metrics", metrics).
		Int("rows", table.Len()).
		Msg("staging table loaded")
	return table, nil
}

// selectMetrics returns the configured metrics, or every column other than the
// date column whose non-empty cells are all numeric.
func (r *DataReader) selectMetrics(data *ExcelData, dateColumn string) ([]string, error) {
	if len(r.config.Metrics) > 0 {
		for _, metric := range r.config.Metrics {
			if !contains(data.Headers, metric) {
				return nil, fmt.Errorf("%w: %s", core.ErrMetricNotFound, metric)
			}
		}
		return r.config.Metrics, nil
	}

	var metrics []string
	for _, header := range data.Headers {
		if header == "" || header == dateColumn {
			continue
		}
		numeric := true
		for _, row := range data.Rows {
			if _, err := parseValue(row[header]); err != nil {
				numeric = false
				break
			}
		}
		if numeric {
			metrics = append(metrics, header)
		}
	}
	if len(metrics) == 0 {
		return nil, fmt.Errorf("%w: no numeric columns", core.ErrMetricNotFound)
	}
	return metrics, nil
}

// parseDate tries the configured layout, then ISO dates, then Excel serial numbers
// when the source is a workbook.
func parseDate(text, layout string, serials bool) (time.Time, error) {
	t, err := core.ParseDate(text, layout)
	if err == nil {
		return t, nil
	}
	if iso, isoErr := core.ParseDate(text, core.ISODate); isoErr == nil {
		return iso, nil
	}
	if serials {
		if serial, numErr := strconv.ParseFloat(text, 64); numErr == nil {
			if excelTime, convErr := excelize.ExcelDateToTime(serial, false); convErr == nil {
				return excelTime.UTC(), nil
			}
		}
	}
	return time.Time{}, err
}

// parseValue treats empty cells as missing
func parseValue(text string) (float64, error) {
	text = strings.TrimSpace(text)
	if text == "" || strings.EqualFold(text, "null") || strings.EqualFold(text, "na") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(text, 64)
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
