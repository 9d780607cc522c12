package core

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	sm "mc.service/models"
)

// Histogram buckets the series into equal width bins over [min, max].
// Density is count / (n * width) so the bars integrate to one.
func Histogram(series PercentChangeSeries, bins int) ([]sm.HistogramBin, error) {
	n := len(series)
	if n == 0 {
		return nil, fmt.Errorf("%w: nothing to bin", ErrEmptyEnsemble)
	}
	if bins < 1 {
		return nil, fmt.Errorf("%w: histogram needs at least one bin, got %d", ErrInvalidConfig, bins)
	}

	if err := checkFinite(series); err != nil {
		return nil, err
	}

	lo, hi := floats.Min(series), floats.Max(series)
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	if !isFinite(hi - lo) {
		return nil, fmt.Errorf("%w: outcome range [%v, %v] overflows", ErrStatisticsUndefined, lo, hi)
	}

	dividers := make([]float64, bins+1)
	floats.Span(dividers, lo, hi)
	// stat.Histogram treats the upper divider as exclusive, nudge it so max lands in the last bin
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	data := slices.Clone(series)
	slices.Sort(data)
	counts := stat.Histogram(nil, dividers, data, nil)

	width := (hi - lo) / float64(bins)
	res := make([]sm.HistogramBin, bins)
	for i := range bins {
		res[i] = sm.HistogramBin{
			Lower:   dividers[i],
			Upper:   dividers[i+1],
			Count:   counts[i],
			Density: counts[i] / (float64(n) * width),
		}
	}
	res[bins-1].Upper = hi

	return res, nil
}
