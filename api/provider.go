package api

import (
	"context"
	"slices"
	"strings"

	m "mc.service/data/models"
)

const (
	ProviderAlphaVantage = "alphavantage"
	ProviderYahoo        = "yahoo"
)

// HistoryProvider fetches the full daily price history for a symbol.
// Implementations return ErrSymbolNotFound or ErrProviderUnavailable, wrapped, on failure.
type HistoryProvider interface {
	Name() string
	GetDailyPriceHistory(ctx context.Context, symbol string) (*m.PriceHistoryResult, error)
}

// NormalizeSymbol is how symbols are keyed everywhere, upper case without surrounding space
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// SortObservations orders observations oldest first
func SortObservations(observations []*m.PriceObservation) {
	slices.SortFunc(observations, func(a, b *m.PriceObservation) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}
