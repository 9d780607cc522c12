package alpha_vantage

import (
	"fmt"
	"strings"
)

// TimeSeries is the daily endpoint to pull. Free keys only get the unadjusted one.
type TimeSeries uint8

const (
	TimeSeriesDailyAdjusted TimeSeries = iota
	TimeSeriesDaily
)

// dailyKey holds the bars for both endpoints
const dailyKey = "Time Series (Daily)"

var seriesFunctions = map[TimeSeries]string{
	TimeSeriesDailyAdjusted: "TIME_SERIES_DAILY_ADJUSTED",
	TimeSeriesDaily:         "TIME_SERIES_DAILY",
}

// ParseTimeSeries accepts the config spelling, "daily" or "daily_adjusted"
func ParseTimeSeries(name string) (TimeSeries, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "daily_adjusted", "adjusted":
		return TimeSeriesDailyAdjusted, nil
	case "daily":
		return TimeSeriesDaily, nil
	default:
		return 0, fmt.Errorf("unknown alpha vantage series %q", name)
	}
}

func (t TimeSeries) String() string {
	if t == TimeSeriesDaily {
		return "daily"
	}
	return "daily_adjusted"
}

func (t TimeSeries) Function() string {
	return seriesFunctions[t]
}

func (t TimeSeries) TimeSeriesKey() string {
	return dailyKey
}

func (t TimeSeries) IsAdjusted() bool {
	return t == TimeSeriesDailyAdjusted
}
