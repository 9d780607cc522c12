package core

import (
	"errors"
	"sync"
	"testing"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mc.service/api"
	dm "mc.service/data/models"
)

func TestSyncSymbolPriceHistory_InsertsThenSkips(t *testing.T) {
	sc, provider, _ := newTestServiceContext(t)

	res, err := sc.SyncSymbolPriceHistory(" test ")
	require.NoError(t, err)
	assert.Equal(t, "TEST", res.Symbol)
	assert.Equal(t, int64(300), res.Inserted)
	assert.False(t, res.Skipped)

	res, err = sc.SyncSymbolPriceHistory("TEST")
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, 1, provider.Calls())

	history, err := sc.Store.GetPriceHistory(sc.Context, "TEST")
	require.NoError(t, err)
	assert.Len(t, history, 300)
}

func TestForceSyncSymbolPriceHistory_OnlyAppendsNewObservations(t *testing.T) {
	sc, provider, _ := newTestServiceContext(t)

	_, err := sc.SyncSymbolPriceHistory("TEST")
	require.NoError(t, err)

	res, err := sc.ForceSyncSymbolPriceHistory("TEST")
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, int64(0), res.Inserted)

	provider.addObservation("TEST", &dm.PriceObservation{
		Timestamp:     historyStart.AddDate(0, 0, 300),
		AdjustedClose: null.FloatFrom(120),
	})

	res, err = sc.ForceSyncSymbolPriceHistory("TEST")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Inserted)
	assert.Equal(t, 3, provider.Calls())

	prices, err := sc.loadPrices("TEST")
	require.NoError(t, err)
	assert.Len(t, prices, 301)
	assert.Equal(t, 120.0, prices[len(prices)-1])
}

func TestForceSyncSymbolPriceHistory_ConcurrentFirstSyncs(t *testing.T) {
	sc, provider, _ := newTestServiceContext(t)

	const syncs = 4
	var wg sync.WaitGroup
	inserted := make([]int64, syncs)
	errs := make([]error, syncs)
	for i := range syncs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := sc.ForceSyncSymbolPriceHistory("TEST")
			errs[i] = err
			if res != nil {
				inserted[i] = res.Inserted
			}
		}()
	}
	wg.Wait()

	var total int64
	for i := range syncs {
		require.NoError(t, errs[i], "sync %d", i)
		total += inserted[i]
	}
	assert.Equal(t, int64(300), total, "every day is stored once across all syncs")
	assert.Equal(t, syncs, provider.Calls())

	history, err := sc.Store.GetPriceHistory(sc.Context, "TEST")
	require.NoError(t, err)
	assert.Len(t, history, 300)
}

func TestSyncSymbolPriceHistory_ProviderErrorsPassThrough(t *testing.T) {
	sc, _, _ := newTestServiceContext(t)

	_, err := sc.SyncSymbolPriceHistory("NOPE")
	assert.True(t, errors.Is(err, api.ErrSymbolNotFound), "got %v", err)

	_, err = sc.SyncSymbolPriceHistory("DOWN")
	assert.True(t, errors.Is(err, api.ErrProviderUnavailable), "got %v", err)

	md, err := sc.Store.GetMetaDataBySymbol(sc.Context, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, md)
}

func TestSyncSymbolPriceHistory_EmptySymbol(t *testing.T) {
	sc, provider, _ := newTestServiceContext(t)

	_, err := sc.SyncSymbolPriceHistory("  ")
	assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
	assert.Equal(t, 0, provider.Calls())
}
