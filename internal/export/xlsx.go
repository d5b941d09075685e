package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/wasilisafish/proposal-builder/internal/domain"
)

const sheetName = "Extraction"

// WriteXLSX writes r as a single-sheet workbook with a bold header row.
func WriteXLSX(w io.Writer, r *domain.ExtractionResult) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}

	for i, row := range Sheet(r) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", "E1", header); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "A", "B", 20); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "C", "C", 48); err != nil {
		return err
	}

	return f.Write(w)
}

// Write renders r in the named format.
func Write(w io.Writer, format string, r *domain.ExtractionResult) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, r)
	case FormatXLSX:
		return WriteXLSX(w, r)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}
