package models

import (
	"time"

	"github.com/google/uuid"

	dm "mc.service/data/models"
)

// SimulationSettingsResources tells a client what it is allowed to ask for
type SimulationSettingsResources struct {
	Provider           string `json:"provider"`
	TradingDaysPerYear int    `json:"tradingDaysPerYear"`
	DefaultSimulations int    `json:"defaultSimulations"`
	MaxSimulations     int    `json:"maxSimulations"`
	MaxYears           int    `json:"maxYears"`
	HistogramBins      int    `json:"histogramBins"`
}

// ForecastRequestSettings will be the request from the front end to the simulation controller
type ForecastRequestSettings struct {
	Symbol         string `json:"symbol" validate:"required,max=16"`
	Years          int    `json:"years" validate:"required,min=1,max=50"`
	NumSimulations int    `json:"numSimulations" validate:"omitempty,min=1"`
	Seed           int64  `json:"seed"` // 0 picks one, the one used comes back in the response
	Workers        int    `json:"workers" validate:"omitempty,min=1,max=64"`
	HistogramBins  int    `json:"histogramBins" validate:"omitempty,min=1,max=500"`
	IncludeSeries  bool   `json:"includeSeries"`
}

// OutcomeSummary is the distribution of percent changes at the horizon
type OutcomeSummary struct {
	MeanPercentChange      float64 `json:"meanPercentChange"`
	MedianPercentChange    float64 `json:"medianPercentChange"`
	Q1                     float64 `json:"q1"`
	Q3                     float64 `json:"q3"`
	Iqr                    float64 `json:"iqr"`
	PercentPositiveReturns float64 `json:"percentPositiveReturns"`
}

// HistogramBin is one bar of the percent change distribution, density integrates to 1 across bins
type HistogramBin struct {
	Lower   float64 `json:"lower"`
	Upper   float64 `json:"upper"`
	Count   float64 `json:"count"`
	Density float64 `json:"density"`
}

type ForecastResponse struct {
	RunId              uuid.UUID      `json:"runId"`
	Symbol             string         `json:"symbol"`
	Years              int            `json:"years"`
	NumSimulations     int            `json:"numSimulations"`
	TradingDaysPerYear int            `json:"tradingDaysPerYear"`
	Seed               int64          `json:"seed"`
	StartingPrice      float64        `json:"startingPrice"`
	MeanReturn         float64        `json:"meanReturn"`
	StdReturn          float64        `json:"stdReturn"`
	Outcome            OutcomeSummary `json:"outcome"`
	Histogram          []HistogramBin `json:"histogram"`
	PercentChanges     []float64      `json:"percentChanges,omitempty"`
}

type SimulationRunResponse struct {
	Id                 uuid.UUID       `json:"id"`
	Symbol             string          `json:"symbol"`
	Years              int             `json:"years"`
	NumSimulations     int             `json:"numSimulations"`
	TradingDaysPerYear int             `json:"tradingDaysPerYear"`
	Seed               int64           `json:"seed"`
	Status             string          `json:"status"`
	CreatedAt          time.Time       `json:"createdAt"`
	CompletedAt        *time.Time      `json:"completedAt"`
	StartingPrice      *float64        `json:"startingPrice"`
	Outcome            *OutcomeSummary `json:"outcome"`
	ErrorMessage       *string         `json:"errorMessage"`
}

type SyncResponse struct {
	Symbol        string    `json:"symbol"`
	LastRefreshed time.Time `json:"lastRefreshed"`
	Inserted      int64     `json:"inserted"`
	Skipped       bool      `json:"skipped"`
}

func MapSimulationRunToResponse(run *dm.SimulationRun) SimulationRunResponse {
	res := SimulationRunResponse{
		Id:                 run.Id,
		Symbol:             run.Symbol,
		Years:              run.Years,
		NumSimulations:     run.NumSimulations,
		TradingDaysPerYear: run.TradingDaysPerYear,
		Seed:               run.Seed,
		Status:             run.Status,
		CreatedAt:          run.CreatedAt,
		CompletedAt:        run.CompletedAt.Ptr(),
		StartingPrice:      run.StartingPrice.Ptr(),
		ErrorMessage:       run.ErrorMessage.Ptr(),
	}

	// Q1 and Q3 are not persisted, only the spread between them
	if run.Status == dm.RunStatusSuccess {
		res.Outcome = &OutcomeSummary{
			MeanPercentChange:      run.MeanPercentChange.Float64,
			MedianPercentChange:    run.MedianPercentChange.Float64,
			Iqr:                    run.Iqr.Float64,
			PercentPositiveReturns: run.PercentPositiveReturns.Float64,
		}
	}

	return res
}
