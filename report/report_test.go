package report

import (
	"bytes"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	sm "mc.service/models"
)

var testStats = sm.OutcomeSummary{
	MeanPercentChange:      12.3456,
	MedianPercentChange:    8.5,
	Q1:                     -4.25,
	Q3:                     20,
	Iqr:                    24.25,
	PercentPositiveReturns: 61.2,
}

var testBins = []sm.HistogramBin{
	{Lower: -10, Upper: 0, Count: 2, Density: 0.05},
	{Lower: 0, Upper: 10, Count: 4, Density: 0.1},
	{Lower: 10, Upper: 20, Count: 0, Density: 0},
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteSummary(&buf, "SPY", 5, testStats))

	out := buf.String()
	assert.Contains(t, out, "Mean percentage change after 5 years: 12.35%")
	assert.Contains(t, out, "Median percentage change after 5 years: 8.50%")
	assert.Contains(t, out, "Interquartile range (IQR) of percentage changes: 24.25%")
	assert.Contains(t, out, "Percent of simulations with positive returns: 61.20%")
}

func TestWriteHistogram(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteHistogram(&buf, testBins, 10))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, 5, strings.Count(lines[1], "#"))
	assert.Equal(t, 10, strings.Count(lines[2], "#"))
	assert.Equal(t, 0, strings.Count(lines[3], "#"))
	assert.True(t, strings.HasSuffix(lines[2], " 4"))
}

func TestWriteHistogram_Empty(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteHistogram(&buf, nil, 10))
	assert.Empty(t, buf.String())
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forecast.xlsx")
	series := []float64{-5, 2.5, 7, 12}

	require.NoError(t, WriteWorkbook(path, "SPY", 5, testStats, series, testBins))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SummarySheet, DistributionSheet, PercentChangesSheet}, f.GetSheetList())

	symbol, err := f.GetCellValue(SummarySheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, "SPY", symbol)

	rows, err := f.GetRows(DistributionSheet)
	require.NoError(t, err)
	assert.Len(t, rows, len(testBins)+1)
	assert.Equal(t, "Count", rows[0][2])

	rows, err = f.GetRows(PercentChangesSheet)
	require.NoError(t, err)
	require.Len(t, rows, len(series)+1)
	last, err := strconv.ParseFloat(rows[len(series)][1], 64)
	require.NoError(t, err)
	assert.Equal(t, 12.0, last)
}
