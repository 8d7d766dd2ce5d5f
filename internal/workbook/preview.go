package workbook

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// DefaultRows is the preview depth used when none is given.
const DefaultRows = 10

// ErrNoSheets is returned for a workbook without worksheets.
var ErrNoSheets = errors.New("workbook has no sheets")

// Sheet is the preview of one worksheet.
type Sheet struct {
	Name           string     `json:"name"`
	Headers        []string   `json:"headers"`
	Rows           [][]string `json:"rows"`
	TotalRows      int        `json:"total_rows"`
	NumericColumns []string   `json:"numeric_columns,omitempty"`
}

// Preview is the preview of a whole workbook.
type Preview struct {
	Sheets []Sheet `json:"sheets"`
}

// Open previews the workbook at path.
func Open(path string, limit int) (Preview, error) {
	f, err := os.Open(path)
	if err != nil {
		return Preview{}, err
	}
	defer f.Close()
	return Read(f, limit)
}

// Read previews a workbook stream, keeping at most limit data rows per
// sheet. TotalRows still counts every data row.
func Read(r io.Reader, limit int) (Preview, error) {
	if limit <= 0 {
		limit = DefaultRows
	}
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Preview{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	names := f.GetSheetList()
	if len(names) == 0 {
		return Preview{}, ErrNoSheets
	}
	preview := Preview{Sheets: make([]Sheet, 0, len(names))}
	for _, name := range names {
		sheet, err := readSheet(f, name, limit)
		if err != nil {
			return Preview{}, err
		}
		preview.Sheets = append(preview.Sheets, sheet)
	}
	return preview, nil
}

func readSheet(f *excelize.File, name string, limit int) (Sheet, error) {
	sheet := Sheet{Name: name}
	rows, err := f.Rows(name)
	if err != nil {
		return sheet, fmt.Errorf("read sheet %s: %w", name, err)
	}
	defer rows.Close()

	first := true
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return sheet, fmt.Errorf("read sheet %s: %w", name, err)
		}
		if first {
			sheet.Headers = headers(cols)
			first = false
			continue
		}
		if isBlank(cols) {
			continue
		}
		sheet.TotalRows++
		if len(sheet.Rows) < limit {
			sheet.Rows = append(sheet.Rows, cols)
		}
	}
	if err := rows.Error(); err != nil {
		return sheet, fmt.Errorf("read sheet %s: %w", name, err)
	}
	sheet.NumericColumns = numericColumns(sheet)
	return sheet, nil
}

func headers(cols []string) []string {
	out := make([]string, len(cols))
	for i, h := range cols {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Column_%d", i+1)
		}
		out[i] = h
	}
	return out
}

func isBlank(cols []string) bool {
	for _, c := range cols {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// numericColumns names the header columns whose previewed non-empty cells
// all parse as numbers.
func numericColumns(sheet Sheet) []string {
	var out []string
	for i, header := range sheet.Headers {
		seen := 0
		numeric := true
		for _, row := range sheet.Rows {
			if i >= len(row) {
				continue
			}
			v := strings.TrimSpace(row[i])
			if v == "" {
				continue
			}
			seen++
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				numeric = false
				break
			}
		}
		if numeric && seen > 0 {
			out = append(out, header)
		}
	}
	return out
}
