package core

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"mc.service/api"
	dm "mc.service/data/models"
	"mc.service/data/repos"
)

// fakeProvider serves canned histories, anything else is not found
type fakeProvider struct {
	mu      sync.Mutex
	history map[string][]*dm.PriceObservation
	errs    map[string]error
	calls   int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) GetDailyPriceHistory(ctx context.Context, symbol string) (*dm.PriceHistoryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if err, ok := f.errs[symbol]; ok {
		return nil, err
	}
	observations, ok := f.history[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", api.ErrSymbolNotFound, symbol)
	}

	// hand out copies, the service stamps source ids onto what it saves
	res := make([]*dm.PriceObservation, len(observations))
	for i, o := range observations {
		c := *o
		res[i] = &c
	}
	return &dm.PriceHistoryResult{
		Metadata:     &dm.PriceHistoryMetadata{Symbol: symbol, Provider: f.Name()},
		Observations: res,
	}, nil
}

func (f *fakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeProvider) addObservation(symbol string, o *dm.PriceObservation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history[symbol] = append(f.history[symbol], o)
}

var historyStart = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

func syntheticHistory(days int) []*dm.PriceObservation {
	res := make([]*dm.PriceObservation, days)
	for i := range days {
		price := 100 + 0.05*float64(i) + 2*math.Sin(float64(i)/3)
		res[i] = &dm.PriceObservation{
			Timestamp:     historyStart.AddDate(0, 0, i),
			Close:         null.FloatFrom(price + 1),
			AdjustedClose: null.FloatFrom(price),
			Volume:        null.FloatFrom(1_000),
		}
	}
	return res
}

// historyOf lays prices out on consecutive days, used as both close and adjusted close
func historyOf(prices ...float64) []*dm.PriceObservation {
	res := make([]*dm.PriceObservation, len(prices))
	for i, p := range prices {
		res[i] = &dm.PriceObservation{
			Timestamp:     historyStart.AddDate(0, 0, i),
			Close:         null.FloatFrom(p),
			AdjustedClose: null.FloatFrom(p),
			Volume:        null.FloatFrom(1_000),
		}
	}
	return res
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		history: map[string][]*dm.PriceObservation{
			"TEST":  syntheticHistory(300),
			"SHORT": syntheticHistory(2),
			// finite history whose returns are so wide every simulated path overflows
			"WILD": historyOf(1, 1e100, 1, 1e100),
		},
		errs: map[string]error{
			"DOWN": fmt.Errorf("%w: connection refused", api.ErrProviderUnavailable),
		},
	}
}

func newTestServiceContext(t *testing.T) (*ServiceContext, *fakeProvider, *prometheus.Registry) {
	t.Helper()

	ctx := context.Background()
	store, err := repos.GetSQLiteConnection(ctx, filepath.Join(t.TempDir(), "mc.db"))
	require.NoError(t, err)
	t.Cleanup(store.Close)

	reg := prometheus.NewRegistry()
	provider := newFakeProvider()

	settings := DefaultSettings()
	settings.MaxSimulations = 5_000
	settings.MaxYears = 10

	return &ServiceContext{
		Context:  ctx,
		Store:    store,
		Provider: provider,
		Metrics:  NewMetrics(reg),
		Settings: settings,
	}, provider, reg
}
