package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/reportpilot/reportpilot/internal/dataset"
)

// buildXLSX exports the full cleaned dataset plus a summary sheet.
// Numeric columns are written as numbers so spreadsheet formulas work
// on the export.
func buildXLSX(in Input) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	dataSheet := "Data"
	f.SetSheetName("Sheet1", dataSheet)

	for i, col := range in.Dataset.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(dataSheet, cell, col.Name)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	f.SetRowStyle(dataSheet, 1, 1, headerStyle)

	for r, row := range in.Dataset.Rows {
		for c, cell := range row {
			name, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if in.Dataset.Columns[c].Kind == dataset.KindNumeric {
				if v, ok := dataset.ParseNumber(cell); ok {
					f.SetCellValue(dataSheet, name, v)
					continue
				}
			}
			f.SetCellValue(dataSheet, name, cell)
		}
	}

	summarySheet := "Summary"
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}

	summary := [][]interface{}{
		{"Report", in.ReportName},
		{"Generated", in.GeneratedAt.Format("2006-01-02 15:04")},
		{"Rows", in.Profile.Rows},
		{"Columns", in.Profile.Columns},
		{"Numeric Columns", strings.Join(in.Profile.NumericColumns, ", ")},
		{"Missing Values", in.Profile.MissingCells},
	}

	statNames := make([]string, 0, len(in.Profile.Stats))
	for name := range in.Profile.Stats {
		statNames = append(statNames, name)
	}
	sort.Strings(statNames)
	for _, name := range statNames {
		s := in.Profile.Stats[name]
		summary = append(summary, []interface{}{
			fmt.Sprintf("%s (min / mean / max)", name),
			fmt.Sprintf("%.2f / %.2f / %.2f", s.Min, s.Mean, s.Max),
		})
	}

	for r, rowData := range summary {
		for c, v := range rowData {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			f.SetCellValue(summarySheet, cell, v)
		}
	}
	f.SetColWidth(summarySheet, "A", "A", 28)
	f.SetColWidth(summarySheet, "B", "B", 36)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}
