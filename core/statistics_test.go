package core

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/guregu/null/v6"

	"mc.service/api"
	ex "mc.service/data/extensions"
	dm "mc.service/data/models"
)

func TestGetReturnStatistics(t *testing.T) {
	// returns are +10% then -10%
	stats, err := GetReturnStatistics([]float64{100, 110, 99})
	if err != nil {
		t.Fatalf("error getting return statistics: %s", err)
	}

	ex.AssertWithinTolerance(t, "mean", 0, stats.Mean, 1e-12)
	ex.AssertWithinTolerance(t, "std", math.Sqrt(0.02), stats.Std, 1e-12)
}

func TestGetReturnStatistics_ConstantPricesHaveZeroStd(t *testing.T) {
	stats, err := GetReturnStatistics([]float64{50, 50, 50, 50})
	if err != nil {
		t.Fatalf("error getting return statistics: %s", err)
	}

	ex.AssertAreEqual(t, "mean", 0.0, stats.Mean)
	ex.AssertAreEqual(t, "std", 0.0, stats.Std)
}

func TestGetReturnStatistics_InsufficientHistory(t *testing.T) {
	for _, prices := range [][]float64{nil, {100}, {100, 101}} {
		_, err := GetReturnStatistics(prices)
		if !errors.Is(err, api.ErrInsufficientHistory) {
			t.Fatalf("expected ErrInsufficientHistory for %d prices, got %v", len(prices), err)
		}
	}
}

func TestGetReturnStatistics_ZeroPriceIsUndefined(t *testing.T) {
	_, err := GetReturnStatistics([]float64{100, 0, 50})
	if !errors.Is(err, ErrStatisticsUndefined) {
		t.Fatalf("expected ErrStatisticsUndefined, got %v", err)
	}
}

func TestGetPriceSeries(t *testing.T) {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	observations := []*dm.PriceObservation{
		{Timestamp: day, Close: null.FloatFrom(10), AdjustedClose: null.FloatFrom(9.5)},
		{Timestamp: day.AddDate(0, 0, 1), Close: null.FloatFrom(11)},
		{Timestamp: day.AddDate(0, 0, 2)},
		{Timestamp: day.AddDate(0, 0, 3), Close: null.FloatFrom(12), AdjustedClose: null.FloatFrom(11.5)},
	}

	prices := GetPriceSeries(observations)

	ex.AssertAreEqual(t, "length", 3, len(prices))
	ex.AssertAreEqual(t, "adjusted close preferred", 9.5, prices[0])
	ex.AssertAreEqual(t, "close fallback", 11.0, prices[1])
	ex.AssertAreEqual(t, "gap skipped", 11.5, prices[2])
}

func TestPercentile_MatchesLinearInterpolation(t *testing.T) {
	tests := []struct {
		values   []float64
		p        float64
		expected float64
	}{
		{[]float64{1, 2, 3, 4}, 0.5, 2.5},
		{[]float64{1, 2, 3, 4}, 0.25, 1.75},
		{[]float64{1, 2, 3, 4}, 0.75, 3.25},
		{[]float64{15, 20, 35, 40, 50}, 0.25, 20},
		{[]float64{15, 20, 35, 40, 50}, 0.4, 29},
		{[]float64{15, 20, 35, 40, 50}, 0, 15},
		{[]float64{15, 20, 35, 40, 50}, 1, 50},
		{[]float64{7}, 0.3, 7},
	}

	for _, tt := range tests {
		ex.AssertWithinTolerance(t, "percentile", tt.expected, Percentile(tt.values, tt.p), 1e-12)
	}
}

func TestPercentile_EqualNeighboursAreReturnedAsIs(t *testing.T) {
	inf := math.Inf(1)
	if got := Percentile([]float64{0, inf, inf}, 0.75); !math.IsInf(got, 1) {
		t.Fatalf("expected +Inf between two +Inf neighbours, got %v", got)
	}
	ex.AssertAreEqual(t, "between equal neighbours", 5.0, Percentile([]float64{1, 5, 5, 9}, 0.5))
}

func TestPercentiles_DoesNotReorderInput(t *testing.T) {
	values := []float64{4, 1, 3, 2}

	res := Percentiles(values, 0.25, 0.5, 0.75)

	ex.AssertWithinTolerance(t, "q1", 1.75, res[0], 1e-12)
	ex.AssertWithinTolerance(t, "median", 2.5, res[1], 1e-12)
	ex.AssertWithinTolerance(t, "q3", 3.25, res[2], 1e-12)
	ex.AssertAreEqual(t, "input untouched", 4.0, values[0])
}
