package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null/v6"
)

const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailure = "failure"
)

type SimulationRun struct {
	Id                 uuid.UUID `db:"id"`
	Symbol             string    `db:"symbol"`
	Years              int       `db:"years"`
	NumSimulations     int       `db:"num_simulations"`
	TradingDaysPerYear int       `db:"trading_days_per_year"`
	Seed               int64     `db:"seed"`
	Status             string    `db:"status"`
	CreatedAt          time.Time `db:"created_at"`

	// filled in once history has been loaded
	StartingPrice null.Float `db:"starting_price"`
	MeanReturn    null.Float `db:"mean_return"`
	StdReturn     null.Float `db:"std_return"`

	SimulationOutcome

	ErrorMessage null.String `db:"error_message"`
	CompletedAt  null.Time   `db:"completed_at"`
}

type SimulationOutcome struct {
	MeanPercentChange      null.Float `db:"mean_percent_change"`
	MedianPercentChange    null.Float `db:"median_percent_change"`
	Iqr                    null.Float `db:"iqr"`
	PercentPositiveReturns null.Float `db:"percent_positive_returns"`
}
