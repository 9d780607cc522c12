package core

import (
	"fmt"
	"log"
	"time"

	"mc.service/api"
	ex "mc.service/data/extensions"
	dm "mc.service/data/models"
	sm "mc.service/models"
)

// SyncSymbolPriceHistory pulls the provider history for symbol unless it was refreshed within RefreshAfter
func (sc *ServiceContext) SyncSymbolPriceHistory(symbol string) (*sm.SyncResponse, error) {
	return sc.syncSymbol(symbol, false)
}

// ForceSyncSymbolPriceHistory ignores RefreshAfter
func (sc *ServiceContext) ForceSyncSymbolPriceHistory(symbol string) (*sm.SyncResponse, error) {
	return sc.syncSymbol(symbol, true)
}

func (sc *ServiceContext) syncSymbol(symbol string, force bool) (res *sm.SyncResponse, err error) {
	start := time.Now()
	symbol = api.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", ErrInvalidConfig)
	}

	defer func() {
		var skipped bool
		var inserted int64
		if res != nil {
			skipped, inserted = res.Skipped, res.Inserted
		}
		sc.Metrics.ObserveSync(err, skipped, inserted)
	}()

	md, err := sc.Store.GetMetaDataBySymbol(sc.Context, symbol)
	if err != nil {
		return nil, fmt.Errorf("error determining if meta data exists in sync data: %w", err)
	}

	if md != nil && !force && time.Since(md.LastRefreshed) < sc.Settings.RefreshAfter {
		return &sm.SyncResponse{Symbol: symbol, LastRefreshed: md.LastRefreshed, Skipped: true}, nil
	}

	mrd, err := sc.Store.GetMostRecentTimestampForSymbol(sc.Context, symbol)
	if err != nil {
		return nil, fmt.Errorf("error getting most recent price history date for symbol %s: %w", symbol, err)
	}

	phr, err := sc.Provider.GetDailyPriceHistory(sc.Context, symbol)
	if err != nil {
		return nil, err
	}

	if md == nil {
		log.Printf("adding new symbol to db: %s", symbol)
		md = &dm.PriceHistoryMetadata{
			Symbol:   symbol,
			Provider: sc.Provider.Name(),
		}
	}
	md.LastRefreshed = time.Now().UTC().Truncate(time.Second)

	// only what is newer than what we already hold, the store re-checks under its own transaction
	f := func(o *dm.PriceObservation) bool { return mrd == nil || o.Timestamp.After(*mrd) }
	toInsert := ex.FilterMultiplePtr(phr.Observations, f)

	ra, err := sc.Store.SavePriceHistory(sc.Context, md, toInsert)
	if err != nil {
		return nil, fmt.Errorf("error saving price history for %s: %w", symbol, err)
	}

	log.Printf("symbol %s got %v observations from %s, inserted %v values (time: %v)", symbol, len(phr.Observations), sc.Provider.Name(), ra, time.Since(start))
	return &sm.SyncResponse{
		Symbol:        symbol,
		LastRefreshed: md.LastRefreshed,
		Inserted:      ra,
	}, nil
}

// loadPrices syncs the symbol and returns its usable closing prices, oldest first
func (sc *ServiceContext) loadPrices(symbol string) ([]float64, error) {
	if _, err := sc.SyncSymbolPriceHistory(symbol); err != nil {
		return nil, err
	}

	history, err := sc.Store.GetPriceHistory(sc.Context, symbol)
	if err != nil {
		return nil, fmt.Errorf("error loading price history for %s: %w", symbol, err)
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("%w: no stored history for %s", api.ErrSymbolNotFound, symbol)
	}

	return GetPriceSeries(history), nil
}
