package spreadsheet

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/invoice-agent/internal/core/domain"
)

func writeWorkbook(t *testing.T, grid [][]any) string {
	t.Helper()
	book := excelize.NewFile()
	defer book.Close()

	sheet := book.GetSheetName(0)
	for r, cells := range grid {
		for c, value := range cells {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := book.SetCellValue(sheet, cell, value); err != nil {
				t.Fatalf("set cell: %v", err)
			}
		}
	}

	path := filepath.Join(t.TempDir(), "rents.xlsx")
	if err := book.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

func TestReadRowsMapsHeaderToCells(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"Customer Name", "Invoice No", "Total Amount", "House/Stall No."},
		{"John Doe", "R-1", "4500", "House 12"},
		{"", "", "", ""},
		{"Mary", "R-2"},
	})

	rows, err := NewReader(0).ReadRows(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadRows() error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %#v", len(rows), rows)
	}
	if rows[0]["Customer Name"] != "John Doe" || rows[0]["House/Stall No."] != "House 12" {
		t.Fatalf("unexpected first row: %#v", rows[0])
	}
	if value, ok := rows[1]["Total Amount"]; !ok || value != "" {
		t.Fatalf("expected missing cell to default to empty string, got %#v", rows[1])
	}
}

func TestReadRowsRejectsOversizedWorkbook(t *testing.T) {
	path := writeWorkbook(t, [][]any{{"Customer Name"}, {"x"}})

	_, err := NewReader(16).ReadRows(context.Background(), path)
	if !domain.IsKind(err, domain.ErrFileTooLarge) {
		t.Fatalf("expected file too large, got %v", err)
	}
}

func TestReadRowsInvalidWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.xlsx")
	if err := os.WriteFile(path, []byte("not a zip"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := NewReader(0).ReadRows(context.Background(), path)
	if !domain.IsKind(err, domain.ErrFileRead) {
		t.Fatalf("expected file read error, got %v", err)
	}
}
