package repos

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null/v6"
	_ "modernc.org/sqlite"

	m "mc.service/data/models"
)

// SQLite is the embedded store used when no postgres connection string is configured.
// Timestamps are stored as unix seconds.
type SQLite struct {
	db *sql.DB
	mu sync.Mutex
}

// GetSQLiteConnection opens (or creates) the database file and runs migrations.
func GetSQLiteConnection(ctx context.Context, dbPath string) (*SQLite, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("error creating sqlite directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("error opening sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error setting WAL mode: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error running sqlite migrations: %w", err)
	}

	log.Printf("sqlite store opened: %s", dbPath)
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS price_history_metadata (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol         TEXT NOT NULL UNIQUE,
			provider       TEXT NOT NULL,
			last_refreshed INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS price_history_data (
			source_id      INTEGER NOT NULL REFERENCES price_history_metadata (id),
			timestamp      INTEGER NOT NULL,
			close          REAL,
			adjusted_close REAL,
			volume         REAL,
			PRIMARY KEY (source_id, timestamp)
		)`,
		`CREATE TABLE IF NOT EXISTS simulation_run (
			id                       TEXT PRIMARY KEY,
			symbol                   TEXT NOT NULL,
			years                    INTEGER NOT NULL,
			num_simulations          INTEGER NOT NULL,
			trading_days_per_year    INTEGER NOT NULL,
			seed                     INTEGER NOT NULL,
			status                   TEXT NOT NULL,
			created_at               INTEGER NOT NULL,
			starting_price           REAL,
			mean_return              REAL,
			std_return               REAL,
			mean_percent_change      REAL,
			median_percent_change    REAL,
			iqr                      REAL,
			percent_positive_returns REAL,
			error_message            TEXT,
			completed_at             INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_simulation_run_symbol ON simulation_run (symbol, created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() {
	if err := s.db.Close(); err != nil {
		log.Printf("error closing sqlite store: %v", err)
	}
}

func (s *SQLite) GetMetaDataBySymbol(ctx context.Context, symbol string) (*m.PriceHistoryMetadata, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, symbol, provider, last_refreshed FROM price_history_metadata WHERE symbol = ?`, symbol)

	var md m.PriceHistoryMetadata
	var lastRefreshed int64
	if err := row.Scan(&md.Id, &md.Symbol, &md.Provider, &lastRefreshed); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to query metadata by symbol (%s): %w", symbol, err)
	}

	md.LastRefreshed = time.Unix(lastRefreshed, 0).UTC()
	return &md, nil
}

func (s *SQLite) GetMostRecentTimestampForSymbol(ctx context.Context, symbol string) (*time.Time, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT MAX(phd.timestamp)
		FROM price_history_data phd
		JOIN price_history_metadata phm ON phd.source_id = phm.id
		WHERE phm.symbol = ?`, symbol)

	var ts sql.NullInt64
	if err := row.Scan(&ts); err != nil {
		return nil, fmt.Errorf("unable to query most recent timestamp for symbol (%s): %w", symbol, err)
	}
	if !ts.Valid {
		return nil, nil
	}

	res := time.Unix(ts.Int64, 0).UTC()
	return &res, nil
}

func (s *SQLite) GetPriceHistory(ctx context.Context, symbol string) ([]*m.PriceObservation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT phd.source_id, phd.timestamp, phd.close, phd.adjusted_close, phd.volume
		FROM price_history_data phd
		JOIN price_history_metadata phm ON phd.source_id = phm.id
		WHERE phm.symbol = ?
		ORDER BY phd.timestamp ASC`, symbol)
	if err != nil {
		return nil, fmt.Errorf("unable to query price history by symbol (%s): %w", symbol, err)
	}
	defer rows.Close()

	res := make([]*m.PriceObservation, 0)
	for rows.Next() {
		var po m.PriceObservation
		var ts int64
		if err := rows.Scan(&po.SourceId, &ts, &po.Close, &po.AdjustedClose, &po.Volume); err != nil {
			return nil, fmt.Errorf("error scanning price history row: %w", err)
		}
		po.Timestamp = time.Unix(ts, 0).UTC()
		res = append(res, &po)
	}

	return res, rows.Err()
}

// SavePriceHistory upserts the metadata and inserts only the observations newer than what is stored.
// The mutex and the transaction make the read of the latest stored day and the insert one step.
func (s *SQLite) SavePriceHistory(ctx context.Context, metadata *m.PriceHistoryMetadata, observations []*m.PriceObservation) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		INSERT INTO price_history_metadata (symbol, provider, last_refreshed) VALUES (?, ?, ?)
		ON CONFLICT (symbol) DO UPDATE SET last_refreshed = excluded.last_refreshed
		RETURNING id`,
		metadata.Symbol, metadata.Provider, metadata.LastRefreshed.Unix())
	if err := row.Scan(&metadata.Id); err != nil {
		return 0, fmt.Errorf("error upserting metadata for %s: %w", metadata.Symbol, err)
	}

	var latestUnix sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(timestamp) FROM price_history_data WHERE source_id = ?`, metadata.Id).Scan(&latestUnix); err != nil {
		return 0, fmt.Errorf("error reading most recent timestamp for %s: %w", metadata.Symbol, err)
	}
	var latest *time.Time
	if latestUnix.Valid {
		t := time.Unix(latestUnix.Int64, 0).UTC()
		latest = &t
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO price_history_data (source_id, timestamp, close, adjusted_close, volume) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (source_id, timestamp) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("error preparing price history insert: %w", err)
	}
	defer stmt.Close()

	var ra int64
	for _, ent := range newerThan(observations, latest) {
		ent.SourceId = metadata.Id
		res, err := stmt.ExecContext(ctx, ent.SourceId, ent.Timestamp.Unix(), ent.Close, ent.AdjustedClose, ent.Volume)
		if err != nil {
			return 0, fmt.Errorf("error inserting price history: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("error reading inserted rows: %w", err)
		}
		ra += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing price history for %s: %w", metadata.Symbol, err)
	}

	return ra, nil
}

func (s *SQLite) InsertSimulationRun(ctx context.Context, run *m.SimulationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT INTO simulation_run
		(id, symbol, years, num_simulations, trading_days_per_year, seed, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Id.String(), run.Symbol, run.Years, run.NumSimulations, run.TradingDaysPerYear,
		run.Seed, run.Status, run.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("error inserting simulation run: %w", err)
	}
	return nil
}

func (s *SQLite) UpdateSimulationRunAsSuccess(ctx context.Context, run *m.SimulationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `UPDATE simulation_run SET
			status = ?, starting_price = ?, mean_return = ?, std_return = ?,
			mean_percent_change = ?, median_percent_change = ?, iqr = ?, percent_positive_returns = ?,
			completed_at = ?
		WHERE id = ?`,
		m.RunStatusSuccess, run.StartingPrice, run.MeanReturn, run.StdReturn,
		run.MeanPercentChange, run.MedianPercentChange, run.Iqr, run.PercentPositiveReturns,
		time.Now().Unix(), run.Id.String(),
	)
	if err != nil {
		return fmt.Errorf("error updating simulation run as success: %w", err)
	}
	return nil
}

func (s *SQLite) UpdateSimulationRunAsFailure(ctx context.Context, runId uuid.UUID, errorMessage string) error {
	cleanErrorMessage := strings.TrimSpace(errorMessage)
	if cleanErrorMessage == "" {
		return fmt.Errorf("error message is required if simulation run is failing, occured in %s", runId)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE simulation_run SET status = ?, error_message = ?, completed_at = ? WHERE id = ?`,
		m.RunStatusFailure, cleanErrorMessage, time.Now().Unix(), runId.String())
	if err != nil {
		return fmt.Errorf("error updating simulation run as failure: %w", err)
	}
	return nil
}

func (s *SQLite) GetSimulationRuns(ctx context.Context, symbol string, limit int) ([]*m.SimulationRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, years, num_simulations, trading_days_per_year, seed, status, created_at,
			starting_price, mean_return, std_return,
			mean_percent_change, median_percent_change, iqr, percent_positive_returns,
			error_message, completed_at
		FROM simulation_run
		WHERE (? = '' OR symbol = ?)
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, symbol, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("unable to get simulation runs: %w", err)
	}
	defer rows.Close()

	res := make([]*m.SimulationRun, 0)
	for rows.Next() {
		var run m.SimulationRun
		var createdAt int64
		var completedAt null.Int
		err := rows.Scan(&run.Id, &run.Symbol, &run.Years, &run.NumSimulations, &run.TradingDaysPerYear,
			&run.Seed, &run.Status, &createdAt,
			&run.StartingPrice, &run.MeanReturn, &run.StdReturn,
			&run.MeanPercentChange, &run.MedianPercentChange, &run.Iqr, &run.PercentPositiveReturns,
			&run.ErrorMessage, &completedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning simulation run row: %w", err)
		}

		run.CreatedAt = time.Unix(createdAt, 0).UTC()
		if completedAt.Valid {
			run.CompletedAt = null.TimeFrom(time.Unix(completedAt.Int64, 0).UTC())
		}
		res = append(res, &run)
	}

	return res, rows.Err()
}
