package core

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PercentChangeSeries holds (final - start) / start * 100 for every simulated path
type PercentChangeSeries []float64

type OutcomeStatistics struct {
	MeanPercentChange      float64
	MedianPercentChange    float64
	Q1                     float64
	Q3                     float64
	IQR                    float64
	PercentPositiveReturns float64
}

// PercentChanges reads the last row of matrix against the starting price
func PercentChanges(matrix mat.Matrix, startingPrice float64) (PercentChangeSeries, error) {
	if math.IsNaN(startingPrice) || math.IsInf(startingPrice, 0) || startingPrice <= 0 {
		return nil, fmt.Errorf("%w: starting price must be a positive number, got %v", ErrInvalidConfig, startingPrice)
	}
	if matrix == nil {
		return nil, fmt.Errorf("%w: no price matrix", ErrEmptyEnsemble)
	}

	rows, cols := matrix.Dims()
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("%w: price matrix is %dx%d", ErrEmptyEnsemble, rows, cols)
	}

	res := make(PercentChangeSeries, cols)
	for i := range cols {
		res[i] = (matrix.At(rows-1, i) - startingPrice) / startingPrice * 100
	}
	return res, nil
}

func Summarize(matrix mat.Matrix, startingPrice float64) (OutcomeStatistics, error) {
	series, err := PercentChanges(matrix, startingPrice)
	if err != nil {
		return OutcomeStatistics{}, err
	}
	return SummarizeSeries(series)
}

// SummarizeSeries reduces the ensemble to its mean, quartiles and the share strictly above zero
func SummarizeSeries(series PercentChangeSeries) (OutcomeStatistics, error) {
	n := len(series)
	if n == 0 {
		return OutcomeStatistics{}, fmt.Errorf("%w: no percent changes to summarize", ErrEmptyEnsemble)
	}

	if err := checkFinite(series); err != nil {
		return OutcomeStatistics{}, err
	}

	q := Percentiles(series, 0.25, 0.5, 0.75)
	positive := floats.Count(func(v float64) bool { return v > 0 }, series)

	res := OutcomeStatistics{
		MeanPercentChange:      stat.Mean(series, nil),
		MedianPercentChange:    q[1],
		Q1:                     q[0],
		Q3:                     q[2],
		IQR:                    q[2] - q[0],
		PercentPositiveReturns: 100 * float64(positive) / float64(n),
	}
	// finite inputs near the float limit can still overflow the mean or the spread
	if !isFinite(res.MeanPercentChange) || !isFinite(res.IQR) {
		return OutcomeStatistics{}, fmt.Errorf("%w: outcome statistics overflow (mean %v, iqr %v)", ErrStatisticsUndefined, res.MeanPercentChange, res.IQR)
	}
	return res, nil
}

// checkFinite rejects ensembles holding NaN or an infinity, they come from paths that overflowed
func checkFinite(series PercentChangeSeries) error {
	for i, v := range series {
		if !isFinite(v) {
			return fmt.Errorf("%w: non-finite outcome %v at path %d", ErrStatisticsUndefined, v, i)
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
