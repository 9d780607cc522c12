package models

import (
	"time"

	"github.com/guregu/null/v6"
)

type PriceHistoryMetadata struct {
	Id            int32     `db:"id"`
	Symbol        string    `db:"symbol"`
	Provider      string    `db:"provider"`
	LastRefreshed time.Time `db:"last_refreshed"`
}

// PriceObservation is one daily bar. Providers leave fields invalid rather than zero when a value is missing.
type PriceObservation struct {
	SourceId      int32      `db:"source_id"`
	Timestamp     time.Time  `db:"timestamp"`
	Close         null.Float `db:"close"`
	AdjustedClose null.Float `db:"adjusted_close"`
	Volume        null.Float `db:"volume"`
}

// Price returns the adjusted close, falling back to the raw close
func (po *PriceObservation) Price() (float64, bool) {
	if po.AdjustedClose.Valid {
		return po.AdjustedClose.Float64, true
	}
	if po.Close.Valid {
		return po.Close.Float64, true
	}
	return 0, false
}

type PriceHistoryResult struct {
	Metadata     *PriceHistoryMetadata
	Observations []*PriceObservation
}
