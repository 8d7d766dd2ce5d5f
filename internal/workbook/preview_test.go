package workbook_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"herdscreen/internal/workbook"
)

func buildWorkbook(t *testing.T, rows int) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	t.Cleanup(func() { _ = f.Close() })

	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &[]any{"farm_id", "management_id", "", "protein_pct"}); err != nil {
		t.Fatalf("header: %v", err)
	}
	for i := 0; i < rows; i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			t.Fatalf("cell: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &[]any{"F01", "M" + string(rune('A'+i%26)), "", 3.1}); err != nil {
			t.Fatalf("row: %v", err)
		}
	}
	if _, err := f.NewSheet("Summary"); err != nil {
		t.Fatalf("NewSheet: %v", err)
	}
	if err := f.SetSheetRow("Summary", "A1", &[]any{"metric", "value"}); err != nil {
		t.Fatalf("summary: %v", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf
}

func TestReadLimitsRows(t *testing.T) {
	preview, err := workbook.Read(buildWorkbook(t, 25), 5)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(preview.Sheets) != 2 {
		t.Fatalf("expected 2 sheets, got %d", len(preview.Sheets))
	}
	data := preview.Sheets[0]
	if data.TotalRows != 25 || len(data.Rows) != 5 {
		t.Fatalf("total/previewed = %d/%d", data.TotalRows, len(data.Rows))
	}
	if data.Headers[2] != "Column_3" {
		t.Fatalf("blank header should be named, got %v", data.Headers)
	}
	if len(data.NumericColumns) != 1 || data.NumericColumns[0] != "protein_pct" {
		t.Fatalf("numeric columns = %v", data.NumericColumns)
	}

	summary := preview.Sheets[1]
	if summary.Name != "Summary" || summary.TotalRows != 0 || len(summary.Headers) != 2 {
		t.Fatalf("unexpected summary sheet %+v", summary)
	}
}

func TestReadDefaultLimit(t *testing.T) {
	preview, err := workbook.Read(buildWorkbook(t, 30), 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := len(preview.Sheets[0].Rows); got != workbook.DefaultRows {
		t.Fatalf("previewed %d rows, want %d", got, workbook.DefaultRows)
	}
}

func TestReadRejectsNonWorkbook(t *testing.T) {
	if _, err := workbook.Read(bytes.NewBufferString("not a workbook"), 5); err == nil {
		t.Fatal("expected error for invalid workbook")
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := workbook.Open(filepath.Join(t.TempDir(), "missing.xlsx"), 5)
	if err == nil || errors.Is(err, workbook.ErrNoSheets) {
		t.Fatalf("expected open error, got %v", err)
	}
}
