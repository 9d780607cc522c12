package core

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null/v6"

	"mc.service/api"
	ex "mc.service/data/extensions"
	dm "mc.service/data/models"
	sm "mc.service/models"
)

const (
	DefaultRunsLimit = 20
	MaxRunsLimit     = 200
)

// RunForecast loads the symbol history, simulates and summarizes it, recording the run either way
func (sc *ServiceContext) RunForecast(settings sm.ForecastRequestSettings) (res *sm.ForecastResponse, err error) {
	start := time.Now()
	defer func() {
		paths := 0
		if res != nil {
			paths = res.NumSimulations
		}
		sc.Metrics.ObserveForecast(err, paths, time.Since(start))
	}()

	settings, err = sc.applyDefaults(settings)
	if err != nil {
		return nil, err
	}

	cfg := SimulationConfig{
		Years:              settings.Years,
		NumSimulations:     settings.NumSimulations,
		TradingDaysPerYear: sc.Settings.TradingDaysPerYear,
		Seed:               settings.Seed,
		Workers:            settings.Workers,
	}.ResolveSeed()

	run := &dm.SimulationRun{
		Id:                 uuid.New(),
		Symbol:             settings.Symbol,
		Years:              cfg.Years,
		NumSimulations:     cfg.NumSimulations,
		TradingDaysPerYear: cfg.TradingDaysPerYear,
		Seed:               cfg.Seed,
		Status:             dm.RunStatusRunning,
		CreatedAt:          time.Now().UTC().Truncate(time.Second),
	}

	log.Printf("received request to forecast %s over %d years (%d simulations)", run.Symbol, run.Years, run.NumSimulations)
	if err := sc.Store.InsertSimulationRun(sc.Context, run); err != nil {
		log.Printf("error inserting simulation run for %s: %v", run.Symbol, err)
		return nil, err
	}

	log.Printf("loading price history for %s (time: %v)", run.Symbol, time.Since(start))
	prices, err := sc.loadPrices(run.Symbol)
	if err != nil {
		return nil, sc.markRunAsFailure(run, err)
	}

	stats, err := GetReturnStatistics(prices)
	if err != nil {
		return nil, sc.markRunAsFailure(run, err)
	}

	cfg.StartingPrice = prices[len(prices)-1]
	run.StartingPrice = null.FloatFrom(cfg.StartingPrice)
	run.MeanReturn = null.FloatFrom(stats.Mean)
	run.StdReturn = null.FloatFrom(stats.Std)

	log.Printf("generating paths for %s from %.2f, mean %.6f std %.6f (time: %v)", run.Symbol, cfg.StartingPrice, stats.Mean, stats.Std, time.Since(start))
	paths, err := GeneratePathsContext(sc.Context, stats, cfg)
	if err != nil {
		return nil, sc.markRunAsFailure(run, err)
	}

	series, err := PercentChanges(paths, cfg.StartingPrice)
	if err != nil {
		return nil, sc.markRunAsFailure(run, err)
	}

	outcome, err := SummarizeSeries(series)
	if err != nil {
		return nil, sc.markRunAsFailure(run, err)
	}

	bins, err := Histogram(series, settings.HistogramBins)
	if err != nil {
		return nil, sc.markRunAsFailure(run, err)
	}

	run.MeanPercentChange = null.FloatFrom(outcome.MeanPercentChange)
	run.MedianPercentChange = null.FloatFrom(outcome.MedianPercentChange)
	run.Iqr = null.FloatFrom(outcome.IQR)
	run.PercentPositiveReturns = null.FloatFrom(outcome.PercentPositiveReturns)
	if err := sc.Store.UpdateSimulationRunAsSuccess(sc.Context, run); err != nil {
		log.Printf("error updating simulation run as success for %s: %v", run.Symbol, err)
		return nil, err // if we cant mark it a success we most likely cant mark it a failure either
	}

	res = &sm.ForecastResponse{
		RunId:              run.Id,
		Symbol:             run.Symbol,
		Years:              run.Years,
		NumSimulations:     run.NumSimulations,
		TradingDaysPerYear: run.TradingDaysPerYear,
		Seed:               run.Seed,
		StartingPrice:      cfg.StartingPrice,
		MeanReturn:         stats.Mean,
		StdReturn:          stats.Std,
		Outcome:            MapOutcomeToSummary(outcome),
		Histogram:          bins,
	}
	if settings.IncludeSeries {
		res.PercentChanges = series
	}

	log.Printf("forecast %s for %s completed (time: %v)", run.Id, run.Symbol, time.Since(start))
	return res, nil
}

func (sc *ServiceContext) applyDefaults(settings sm.ForecastRequestSettings) (sm.ForecastRequestSettings, error) {
	settings.Symbol = api.NormalizeSymbol(settings.Symbol)
	if settings.Symbol == "" {
		return settings, fmt.Errorf("%w: symbol is required", ErrInvalidConfig)
	}
	if settings.NumSimulations == 0 {
		settings.NumSimulations = sc.Settings.DefaultSimulations
	}
	if settings.HistogramBins == 0 {
		settings.HistogramBins = sc.Settings.HistogramBins
	}
	if settings.Workers == 0 {
		settings.Workers = sc.Settings.Workers
	}

	if settings.Years < 1 || (sc.Settings.MaxYears > 0 && settings.Years > sc.Settings.MaxYears) {
		return settings, fmt.Errorf("%w: years must be between 1 and %d, got %d", ErrInvalidConfig, sc.Settings.MaxYears, settings.Years)
	}
	if settings.NumSimulations < 1 || (sc.Settings.MaxSimulations > 0 && settings.NumSimulations > sc.Settings.MaxSimulations) {
		return settings, fmt.Errorf("%w: simulations must be between 1 and %d, got %d", ErrInvalidConfig, sc.Settings.MaxSimulations, settings.NumSimulations)
	}
	return settings, nil
}

// markRunAsFailure records err against the run and hands it back so the caller still sees the cause
func (sc *ServiceContext) markRunAsFailure(run *dm.SimulationRun, err error) error {
	log.Printf("forecast %s for %s failed: %v", run.Id, run.Symbol, err)
	if uerr := sc.Store.UpdateSimulationRunAsFailure(sc.Context, run.Id, err.Error()); uerr != nil {
		log.Printf("error updating simulation run as failure for %s: %v", run.Symbol, uerr)
		return errors.Join(err, uerr)
	}
	return err
}

func (sc *ServiceContext) GetSimulationRuns(symbol string, limit int) ([]sm.SimulationRunResponse, error) {
	if limit <= 0 {
		limit = DefaultRunsLimit
	}
	limit = ex.Clamp(limit, 1, MaxRunsLimit)

	runs, err := sc.Store.GetSimulationRuns(sc.Context, api.NormalizeSymbol(symbol), limit)
	if err != nil {
		return nil, err
	}

	res := make([]sm.SimulationRunResponse, len(runs))
	for i, run := range runs {
		res[i] = sm.MapSimulationRunToResponse(run)
	}
	return res, nil
}

// GetSimulationSettingsResources describes the limits a client has to stay within
func (sc *ServiceContext) GetSimulationSettingsResources() sm.SimulationSettingsResources {
	provider := ""
	if sc.Provider != nil {
		provider = sc.Provider.Name()
	}
	return sm.SimulationSettingsResources{
		Provider:           provider,
		TradingDaysPerYear: sc.Settings.TradingDaysPerYear,
		DefaultSimulations: sc.Settings.DefaultSimulations,
		MaxSimulations:     sc.Settings.MaxSimulations,
		MaxYears:           sc.Settings.MaxYears,
		HistogramBins:      sc.Settings.HistogramBins,
	}
}

func MapOutcomeToSummary(o OutcomeStatistics) sm.OutcomeSummary {
	return sm.OutcomeSummary{
		MeanPercentChange:      o.MeanPercentChange,
		MedianPercentChange:    o.MedianPercentChange,
		Q1:                     o.Q1,
		Q3:                     o.Q3,
		Iqr:                    o.IQR,
		PercentPositiveReturns: o.PercentPositiveReturns,
	}
}
