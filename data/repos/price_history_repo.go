package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	ex "mc.service/data/extensions"
	m "mc.service/data/models"
	q "mc.service/data/queries"
)

var priceHistoryColumns = []string{"source_id", "timestamp", "close", "adjusted_close", "volume"}

func (pg *Postgres) GetMetaDataBySymbol(ctx context.Context, symbol string) (*m.PriceHistoryMetadata, error) {
	args := pgx.NamedArgs{
		"symbol": symbol,
	}

	res, err := QuerySingle[m.PriceHistoryMetadata](ctx, pg, q.Get(q.QueryHelper.Select.MetaDataBySymbol), args)
	if err != nil {
		return nil, fmt.Errorf("unable to query metadata by symbol (%s): %w", symbol, err)
	}

	return res, nil
}

func (pg *Postgres) GetMostRecentTimestampForSymbol(ctx context.Context, symbol string) (*time.Time, error) {
	args := pgx.NamedArgs{
		"symbol": symbol,
	}

	var res *time.Time
	if err := pg.db.QueryRow(ctx, q.Get(q.QueryHelper.Select.MostRecentTimestampBySymbol), args).Scan(&res); err != nil {
		return nil, fmt.Errorf("unable to query most recent timestamp for symbol (%s): %w", symbol, err)
	}

	return res, nil
}

func (pg *Postgres) GetPriceHistory(ctx context.Context, symbol string) ([]*m.PriceObservation, error) {
	args := pgx.NamedArgs{
		"symbol": symbol,
	}

	res, err := Query[m.PriceObservation](ctx, pg, q.Get(q.QueryHelper.Select.PriceHistory), args)
	if err != nil {
		return nil, fmt.Errorf("unable to query price history by symbol (%s): %w", symbol, err)
	}
	return res, nil
}

// SavePriceHistory upserts the metadata, then copies in only the observations newer than what is
// already stored, all inside one transaction. The upsert holds the metadata row lock until commit,
// so concurrent saves of one symbol run one after the other and never insert the same day twice.
func (pg *Postgres) SavePriceHistory(ctx context.Context, metadata *m.PriceHistoryMetadata, observations []*m.PriceObservation) (int64, error) {
	tx, err := pg.GetTransaction(ctx)
	if err != nil {
		return 0, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) // this will kick off if we return before committing

	args := pgx.NamedArgs{
		"symbol":         metadata.Symbol,
		"provider":       metadata.Provider,
		"last_refreshed": metadata.LastRefreshed,
	}
	if err := tx.QueryRow(ctx, q.Get(q.QueryHelper.Insert.Metadata), args).Scan(&metadata.Id); err != nil {
		return 0, fmt.Errorf("error upserting metadata for %s: %w", metadata.Symbol, err)
	}

	var latest *time.Time
	args = pgx.NamedArgs{"symbol": metadata.Symbol}
	if err := tx.QueryRow(ctx, q.Get(q.QueryHelper.Select.MostRecentTimestampBySymbol), args).Scan(&latest); err != nil {
		return 0, fmt.Errorf("error reading most recent timestamp for %s: %w", metadata.Symbol, err)
	}

	var ra int64
	toInsert := newerThan(observations, latest)
	if len(toInsert) > 0 {
		entries := make([][]any, len(toInsert))
		for i, ent := range toInsert {
			ent.SourceId = metadata.Id
			entries[i] = []any{ent.SourceId, ent.Timestamp, ent.Close, ent.AdjustedClose, ent.Volume}
		}

		ra, err = pg.BulkInsert(ctx, "price_history_data", priceHistoryColumns, entries, tx)
		if err != nil {
			return 0, fmt.Errorf("error inserting price history: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("error committing price history for %s: %w", metadata.Symbol, err)
	}

	return ra, nil
}

// newerThan drops observations at or before the latest stored one, whole seconds since sqlite keeps unix time
func newerThan(observations []*m.PriceObservation, latest *time.Time) []*m.PriceObservation {
	if latest == nil {
		return observations
	}
	return ex.FilterMultiplePtr(observations, func(o *m.PriceObservation) bool {
		return o.Timestamp.Unix() > latest.Unix()
	})
}
