package core

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mc.service/api"
	dm "mc.service/data/models"
	sm "mc.service/models"
)

// Store is the persistence the service needs, implemented by repos.Postgres and repos.SQLite
type Store interface {
	GetMetaDataBySymbol(ctx context.Context, symbol string) (*dm.PriceHistoryMetadata, error)
	GetMostRecentTimestampForSymbol(ctx context.Context, symbol string) (*time.Time, error)
	GetPriceHistory(ctx context.Context, symbol string) ([]*dm.PriceObservation, error)
	SavePriceHistory(ctx context.Context, metadata *dm.PriceHistoryMetadata, observations []*dm.PriceObservation) (int64, error)

	InsertSimulationRun(ctx context.Context, run *dm.SimulationRun) error
	UpdateSimulationRunAsSuccess(ctx context.Context, run *dm.SimulationRun) error
	UpdateSimulationRunAsFailure(ctx context.Context, runId uuid.UUID, errorMessage string) error
	GetSimulationRuns(ctx context.Context, symbol string, limit int) ([]*dm.SimulationRun, error)

	Ping(ctx context.Context) error
	Close()
}

// Settings are the simulation limits and defaults the service enforces
type Settings struct {
	TradingDaysPerYear int
	DefaultSimulations int
	MaxSimulations     int
	MaxYears           int
	Workers            int
	HistogramBins      int
	RefreshAfter       time.Duration
}

type ServiceContext struct {
	Context  context.Context
	Store    Store
	Provider api.HistoryProvider
	Metrics  *Metrics
	Settings Settings
}

// WithContext returns a copy bound to ctx, used to tie work to a single request
func (sc *ServiceContext) WithContext(ctx context.Context) *ServiceContext {
	c := *sc
	c.Context = ctx
	return &c
}

func DefaultSettings() Settings {
	return Settings{
		TradingDaysPerYear: sm.Daily,
		DefaultSimulations: sm.DefaultSimulations,
		MaxSimulations:     100_000,
		MaxYears:           50,
		Workers:            Workers,
		HistogramBins:      sm.DefaultHistogramBins,
		RefreshAfter:       24 * time.Hour,
	}
}
