package repos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	m "mc.service/data/models"
	q "mc.service/data/queries"
)

func (pg *Postgres) InsertSimulationRun(ctx context.Context, run *m.SimulationRun) error {
	args := pgx.NamedArgs{
		"id":                    run.Id,
		"symbol":                run.Symbol,
		"years":                 run.Years,
		"num_simulations":       run.NumSimulations,
		"trading_days_per_year": run.TradingDaysPerYear,
		"seed":                  run.Seed,
		"status":                run.Status,
		"created_at":            run.CreatedAt,
	}

	if _, err := pg.db.Exec(ctx, q.Get(q.QueryHelper.Insert.SimulationRun), args); err != nil {
		return fmt.Errorf("error inserting simulation run: %w", err)
	}

	return nil
}

func (pg *Postgres) UpdateSimulationRunAsSuccess(ctx context.Context, run *m.SimulationRun) error {
	args := pgx.NamedArgs{
		"id":                       run.Id,
		"status":                   m.RunStatusSuccess,
		"starting_price":           run.StartingPrice,
		"mean_return":              run.MeanReturn,
		"std_return":               run.StdReturn,
		"mean_percent_change":      run.MeanPercentChange,
		"median_percent_change":    run.MedianPercentChange,
		"iqr":                      run.Iqr,
		"percent_positive_returns": run.PercentPositiveReturns,
		"completed_at":             time.Now().UTC(),
	}

	if _, err := pg.db.Exec(ctx, q.Get(q.QueryHelper.Update.SimulationRunSuccess), args); err != nil {
		return fmt.Errorf("error updating simulation run as success: %w", err)
	}
	return nil
}

func (pg *Postgres) UpdateSimulationRunAsFailure(ctx context.Context, runId uuid.UUID, errorMessage string) error {
	cleanErrorMessage := strings.TrimSpace(errorMessage)
	if cleanErrorMessage == "" {
		return fmt.Errorf("error message is required if simulation run is failing, occured in %s", runId)
	}

	args := pgx.NamedArgs{
		"id":            runId,
		"status":        m.RunStatusFailure,
		"error_message": cleanErrorMessage,
		"completed_at":  time.Now().UTC(),
	}

	if _, err := pg.db.Exec(ctx, q.Get(q.QueryHelper.Update.SimulationRunFailure), args); err != nil {
		return fmt.Errorf("error updating simulation run as failure: %w", err)
	}
	return nil
}

func (pg *Postgres) GetSimulationRuns(ctx context.Context, symbol string, limit int) ([]*m.SimulationRun, error) {
	args := pgx.NamedArgs{
		"symbol": symbol,
		"limit":  limit,
	}

	res, err := Query[m.SimulationRun](ctx, pg, q.Get(q.QueryHelper.Select.SimulationRuns), args)
	if err != nil {
		return nil, fmt.Errorf("unable to get simulation runs: %w", err)
	}
	return res, nil
}
