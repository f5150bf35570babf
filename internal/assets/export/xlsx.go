package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/itasset/internal/assets"
)

const (
	sheetSummary    = "Summary"
	sheetCategories = "Categories"
	sheetPrinters   = "Printers"
	sheetFleet      = "Fleet"
)

// WriteStatsXLSX renders the aggregate payload as a workbook with one sheet per
// dashboard section.
func WriteStatsXLSX(w io.Writer, stats assets.DashboardStats) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return err
	}
	for _, name := range []string{sheetCategories, sheetPrinters, sheetFleet} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E5E7EB"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	summary := [][]interface{}{{"Metric", "IT", "Operation"}}
	for _, row := range summaryRows(stats) {
		summary = append(summary, []interface{}{row.label, row.it, row.operation})
	}
	summary = append(summary, []interface{}{"Maintenance Logs", stats.MaintenanceLogs, nil})
	if err := writeRows(f, sheetSummary, summary, header); err != nil {
		return err
	}

	categories := [][]interface{}{{"Category", "Assets"}}
	for _, row := range stats.CategoryDistribution {
		categories = append(categories, []interface{}{row.Name, row.Count})
	}
	if err := writeRows(f, sheetCategories, categories, header); err != nil {
		return err
	}

	p := stats.Printer
	printers := [][]interface{}{
		{"Printer", "Pages"},
		{fmt.Sprintf("Period %s (%s to %s)", p.Period, p.WindowStart, p.WindowEnd), p.TotalPages},
		{"B/W pages", p.BWPages},
		{"Color pages", p.ColorPages},
		{"Color ratio (%)", p.ColorRatio},
	}
	for _, top := range p.TopPrinters {
		printers = append(printers, []interface{}{top.Name, top.Pages})
	}
	if err := writeRows(f, sheetPrinters, printers, header); err != nil {
		return err
	}

	fleet := [][]interface{}{{"Fleet Category", "Units", "Units With Assets", "Installed Assets"}}
	for _, row := range stats.Fleet.Categories {
		fleet = append(fleet, []interface{}{row.Name, row.Units, row.UnitsWithAssets, row.InstalledAssets})
	}
	fleet = append(fleet, []interface{}{"Total", stats.Fleet.TotalUnits, stats.Fleet.UnitsWithAssets, stats.Fleet.InstalledAssets})
	if err := writeRows(f, sheetFleet, fleet, header); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	if len(rows) == 0 {
		return nil
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(rows[0]))
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", lastCol, 22)
}
