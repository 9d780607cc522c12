package report

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	sm "mc.service/models"
)

const (
	SummarySheet        = "Summary"
	DistributionSheet   = "Distribution"
	PercentChangesSheet = "PercentChanges"
)

// WriteWorkbook saves the forecast as an xlsx with a summary, the histogram and the raw series
func WriteWorkbook(path, symbol string, years int, stats sm.OutcomeSummary, series []float64, bins []sm.HistogramBin) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), SummarySheet); err != nil {
		return fmt.Errorf("error naming summary sheet: %w", err)
	}
	for _, name := range []string{DistributionSheet, PercentChangesSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("error adding sheet %s: %w", name, err)
		}
	}

	pct, err := f.NewStyle(&excelize.Style{NumFmt: 10}) // 0.00%
	if err != nil {
		return fmt.Errorf("error creating percent style: %w", err)
	}

	summary := [][]any{
		{"Symbol", symbol},
		{"Years", years},
		{"Simulations", len(series)},
		{"Generated", time.Now().UTC().Format(time.RFC3339)},
		{"Mean percent change", stats.MeanPercentChange / 100},
		{"Median percent change", stats.MedianPercentChange / 100},
		{"Q1", stats.Q1 / 100},
		{"Q3", stats.Q3 / 100},
		{"IQR", stats.Iqr / 100},
		{"Percent positive returns", stats.PercentPositiveReturns / 100},
	}
	if err := writeRows(f, SummarySheet, summary); err != nil {
		return err
	}
	if err := f.SetCellStyle(SummarySheet, "B5", fmt.Sprintf("B%d", len(summary)), pct); err != nil {
		return fmt.Errorf("error styling summary: %w", err)
	}
	if err := f.SetColWidth(SummarySheet, "A", "A", 26); err != nil {
		return fmt.Errorf("error sizing summary: %w", err)
	}

	distribution := make([][]any, 0, len(bins)+1)
	distribution = append(distribution, []any{"Lower %", "Upper %", "Count", "Density"})
	for _, b := range bins {
		distribution = append(distribution, []any{b.Lower, b.Upper, b.Count, b.Density})
	}
	if err := writeRows(f, DistributionSheet, distribution); err != nil {
		return err
	}

	changes := make([][]any, 0, len(series)+1)
	changes = append(changes, []any{"Simulation", "Percent change"})
	for i, v := range series {
		changes = append(changes, []any{i + 1, v})
	}
	if err := writeRows(f, PercentChangesSheet, changes); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("error saving workbook %s: %w", path, err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("error writing row %d of %s: %w", i+1, sheet, err)
		}
	}
	return nil
}
