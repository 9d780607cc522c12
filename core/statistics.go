package core

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"mc.service/api"
	dm "mc.service/data/models"
)

// MinimumPrices is the shortest history with a defined sample std, two returns
const MinimumPrices = 3

// ReturnStatistics summarizes historical daily percentage returns
type ReturnStatistics struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

func (rs ReturnStatistics) Validate() error {
	if math.IsNaN(rs.Mean) || math.IsInf(rs.Mean, 0) {
		return fmt.Errorf("%w: mean return is not finite (%v)", ErrStatisticsUndefined, rs.Mean)
	}
	if math.IsNaN(rs.Std) || math.IsInf(rs.Std, 0) || rs.Std < 0 {
		return fmt.Errorf("%w: std of returns must be finite and non negative (%v)", ErrStatisticsUndefined, rs.Std)
	}
	return nil
}

// GetPriceSeries picks the adjusted close (falling back to close) of every observation, skipping gaps
func GetPriceSeries(observations []*dm.PriceObservation) []float64 {
	prices := make([]float64, 0, len(observations))
	for _, o := range observations {
		if p, ok := o.Price(); ok {
			prices = append(prices, p)
		}
	}
	return prices
}

// GetReturnStatistics computes simple daily returns p[i]/p[i-1] - 1, their mean and sample std
func GetReturnStatistics(prices []float64) (ReturnStatistics, error) {
	if len(prices) < MinimumPrices {
		return ReturnStatistics{}, fmt.Errorf("%w: need at least %d prices, got %d", api.ErrInsufficientHistory, MinimumPrices, len(prices))
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			return ReturnStatistics{}, fmt.Errorf("%w: zero price at index %d", ErrStatisticsUndefined, i-1)
		}
		returns[i-1] = prices[i]/prices[i-1] - 1
	}

	res := ReturnStatistics{
		Mean: stat.Mean(returns, nil),
		Std:  stat.StdDev(returns, nil),
	}
	if err := res.Validate(); err != nil {
		return ReturnStatistics{}, err
	}

	return res, nil
}

// Percentile interpolates linearly between the order statistics around h = (n-1)p (Hyndman and Fan type 7).
// sorted must be ascending and non empty, p in [0, 1].
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}

	h := float64(n-1) * p
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}

	// equal neighbours skip the subtraction, two infinities would otherwise give NaN
	frac := h - float64(lo)
	if frac == 0 || sorted[lo] == sorted[lo+1] {
		return sorted[lo]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// Percentiles sorts a copy of values once and reads each p off it
func Percentiles(values []float64, ps ...float64) []float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	res := make([]float64, len(ps))
	for i, p := range ps {
		res[i] = Percentile(sorted, p)
	}
	return res
}
