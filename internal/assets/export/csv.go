package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/odyssey-erp/itasset/internal/assets"
)

// WriteSummaryCSV serialises the headline counters to CSV.
func WriteSummaryCSV(w io.Writer, stats assets.DashboardStats) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Metric", "IT", "Operation"}); err != nil {
		return err
	}
	for _, row := range summaryRows(stats) {
		if err := writer.Write([]string{row.label, formatInt(row.it), formatInt(row.operation)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteCategoriesCSV emits the category distribution.
func WriteCategoriesCSV(w io.Writer, rows []assets.CategoryCount) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Category", "Assets"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{row.Name, formatInt(row.Count)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

type summaryRow struct {
	label     string
	it        int64
	operation int64
}

func summaryRows(stats assets.DashboardStats) []summaryRow {
	it, op := stats.StateCounts, stats.OperationAssets
	return []summaryRow{
		{"Total", it.Total, op.Total},
		{"Available", it.Available, op.Available},
		{"In Use", it.InUse, op.InUse},
		{"Repair", it.Repair, op.Repair},
		{"Retired", it.Retired, op.Retired},
		{"Broken", it.Broken, op.Broken},
		{"Unavailable", it.Unavailable, op.Unavailable},
	}
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
