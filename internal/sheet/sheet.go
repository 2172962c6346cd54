// Package sheet reads uploaded spreadsheets (CSV, XLS, XLSX) into a header
// row plus string data rows.
package sheet

import (
	"errors"
	"path/filepath"
	"strings"
)

// Format identifies a spreadsheet encoding.
type Format int

const (
	FormatUnknown Format = iota
	FormatCSV
	FormatXLS
	FormatXLSX
)

var (
	// ErrUnsupportedFormat is returned for file names without a spreadsheet extension.
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")
	// ErrNoHeader is returned when the first sheet has no non-empty row.
	ErrNoHeader = errors.New("spreadsheet has no header row")
)

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatXLS:
		return "xls"
	case FormatXLSX:
		return "xlsx"
	default:
		return "unknown"
	}
}

// DetectFormat returns the format implied by the file name extension.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(filename))) {
	case ".csv":
		return FormatCSV, nil
	case ".xls":
		return FormatXLS, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	return FormatUnknown, ErrUnsupportedFormat
}

// Table is the first sheet of a spreadsheet. Rows are padded or truncated to
// the header width.
type Table struct {
	Header []string
	Rows   [][]string
}

// Read parses the whole first sheet.
func Read(format Format, data []byte) (*Table, error) {
	return read(format, data, -1)
}

// Peek parses the header and at most n data rows.
func Peek(format Format, data []byte, n int) (*Table, error) {
	if n < 0 {
		n = 0
	}
	return read(format, data, n)
}

func read(format Format, data []byte, limit int) (*Table, error) {
	var (
		raw [][]string
		err error
	)
	switch format {
	case FormatCSV:
		raw, err = readCSV(data, limit)
	case FormatXLS:
		raw, err = readXLS(data, limit)
	case FormatXLSX:
		raw, err = readXLSX(data, limit)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}
	return buildTable(raw, limit)
}

// buildTable takes the first non-empty row as header and drops blank rows.
func buildTable(raw [][]string, limit int) (*Table, error) {
	start := -1
	for i, row := range raw {
		if !blank(row) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, ErrNoHeader
	}

	header := make([]string, len(raw[start]))
	for i, h := range raw[start] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	for len(header) > 0 && header[len(header)-1] == "" {
		header = header[:len(header)-1]
	}

	t := &Table{Header: header, Rows: make([][]string, 0, len(raw)-start-1)}
	for _, row := range raw[start+1:] {
		if limit >= 0 && len(t.Rows) >= limit {
			break
		}
		if blank(row) {
			continue
		}
		t.Rows = append(t.Rows, fit(row, len(header)))
	}
	return t, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func fit(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}
