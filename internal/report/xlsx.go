// Package report writes a batch result as a spreadsheet.
package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"sheetbatch/internal/model"
)

const (
	SummarySheet = "Summary"
	JobsSheet    = "Jobs"
)

var jobHeaders = []string{
	"#", "Job", "Sheet Number", "Sheet Name", "Format", "Status", "File", "Diagnostic", "Message", "Started", "Finished",
}

// Build lays out the Summary and Jobs sheets for result.
func Build(result model.ExportResult) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, fmt.Errorf("rename summary sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	failStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "#B91C1C"},
	})
	if err != nil {
		return nil, fmt.Errorf("create failure style: %w", err)
	}

	summary := [][]any{
		{"Field", "Value"},
		{"Batch", result.BatchID},
		{"Profile", result.Profile},
		{"Sheets", result.TotalSheets},
		{"Formats", result.TotalFormats},
		{"Jobs", len(result.Jobs)},
		{"Succeeded", result.Succeeded},
		{"Failed", result.Failed},
		{"Cancelled", result.Cancelled},
		{"Success", result.Success},
		{"Message", result.Message},
		{"Started", result.StartedAt},
		{"Finished", result.FinishedAt},
	}
	for i, row := range summary {
		for j, val := range row {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+1)
			if err := f.SetCellValue(SummarySheet, cell, val); err != nil {
				return nil, fmt.Errorf("write summary %s: %w", cell, err)
			}
		}
	}
	_ = f.SetRowStyle(SummarySheet, 1, 1, headerStyle)
	_ = f.SetColWidth(SummarySheet, "A", "A", 14)
	_ = f.SetColWidth(SummarySheet, "B", "B", 60)

	if _, err := f.NewSheet(JobsSheet); err != nil {
		return nil, fmt.Errorf("create jobs sheet: %w", err)
	}
	for i, h := range jobHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(JobsSheet, cell, h); err != nil {
			return nil, fmt.Errorf("write jobs header: %w", err)
		}
	}
	_ = f.SetRowStyle(JobsSheet, 1, 1, headerStyle)

	for i, j := range result.Jobs {
		row := i + 2
		values := []any{
			j.Index + 1, j.JobID, j.SheetNumber, j.SheetName, j.Format, j.Status,
			j.FinalPath, j.Diagnostic, j.Message, j.StartedAt, j.FinishedAt,
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(JobsSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write job row %d: %w", row, err)
		}
		if !j.Succeeded() {
			_ = f.SetRowStyle(JobsSheet, row, row, failStyle)
		}
	}
	_ = f.SetColWidth(JobsSheet, "A", "A", 6)
	_ = f.SetColWidth(JobsSheet, "B", "F", 14)
	_ = f.SetColWidth(JobsSheet, "G", "I", 40)
	_ = f.SetColWidth(JobsSheet, "J", "K", 24)
	return f, nil
}

// WriteXLSX builds the report and saves it to path.
func WriteXLSX(path string, result model.ExportResult) error {
	f, err := Build(result)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory for %s: %w", path, err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report %s: %w", path, err)
	}
	return nil
}
