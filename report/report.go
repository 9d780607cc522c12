package report

import (
	"fmt"
	"io"
	"math"
	"strings"

	sm "mc.service/models"
)

const DefaultHistogramWidth = 50

// WriteSummary prints the outcome the way the command line has always shown it
func WriteSummary(w io.Writer, symbol string, years int, stats sm.OutcomeSummary) error {
	_, err := fmt.Fprintf(w,
		"Simulated outcomes for %s\n"+
			"Mean percentage change after %d years: %.2f%%\n"+
			"Median percentage change after %d years: %.2f%%\n"+
			"Interquartile range (IQR) of percentage changes: %.2f%%\n"+
			"Percent of simulations with positive returns: %.2f%%\n",
		symbol,
		years, stats.MeanPercentChange,
		years, stats.MedianPercentChange,
		stats.Iqr,
		stats.PercentPositiveReturns,
	)
	return err
}

// WriteHistogram draws one bar per bin scaled so the tallest bin is width characters
func WriteHistogram(w io.Writer, bins []sm.HistogramBin, width int) error {
	if len(bins) == 0 {
		return nil
	}
	if width < 1 {
		width = DefaultHistogramWidth
	}

	var tallest float64
	for _, b := range bins {
		tallest = math.Max(tallest, b.Count)
	}

	var sb strings.Builder
	sb.WriteString("Distribution of percentage changes\n")
	for _, b := range bins {
		n := 0
		if tallest > 0 {
			n = int(math.Round(b.Count / tallest * float64(width)))
		}
		fmt.Fprintf(&sb, "%9.2f%% to %9.2f%% | %-*s %.0f\n", b.Lower, b.Upper, width, strings.Repeat("#", n), b.Count)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
