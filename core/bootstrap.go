package core

import (
	"context"
	"fmt"
	"log"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"

	"mc.service/api"
	av "mc.service/api/alpha_vantage"
	"mc.service/api/yahoo"
	"mc.service/config"
	"mc.service/data/repos"
)

// OpenStore connects to postgres when a url is configured and falls back to the sqlite file
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	if cfg.URL != "" {
		pg, err := repos.GetPostgresConnection(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("failed to migrate postgres: %w", err)
		}
		log.Println("using postgres store")
		return pg, nil
	}

	db, err := repos.GetSQLiteConnection(ctx, cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store at %s: %w", cfg.SQLitePath, err)
	}
	log.Printf("using sqlite store at %s", cfg.SQLitePath)
	return db, nil
}

func NewProvider(cfg config.ProviderConfig) (api.HistoryProvider, error) {
	opts := []api.ClientOption{api.WithTimeout(cfg.Timeout)}
	if cfg.Proxy != "" {
		proxy, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid provider proxy %q: %w", cfg.Proxy, err)
		}
		opts = append(opts, api.WithProxy(proxy))
	}

	switch cfg.Name {
	case api.ProviderYahoo:
		return yahoo.GetClient(opts...), nil
	case api.ProviderAlphaVantage:
		// the free tier allows a handful of calls a minute
		opts = append(opts, api.WithRateLimit(cfg.RequestsPerMinute))
		series, err := av.ParseTimeSeries(cfg.AlphaVantageSeries)
		if err != nil {
			return nil, err
		}
		client := av.GetClient(cfg.AlphaVantageAPIKey, opts...)
		client.Series = series
		return client, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}

func SettingsFromConfig(cfg config.SimulationConfig) Settings {
	return Settings{
		TradingDaysPerYear: cfg.TradingDaysPerYear,
		DefaultSimulations: cfg.DefaultSimulations,
		MaxSimulations:     cfg.MaxSimulations,
		MaxYears:           cfg.MaxYears,
		Workers:            cfg.Workers,
		HistogramBins:      cfg.HistogramBins,
		RefreshAfter:       cfg.RefreshAfter,
	}
}

// NewServiceContext wires the store, provider and metrics described by cfg. A nil reg skips metrics.
// The caller owns the store and closes it through sc.Store.Close.
func NewServiceContext(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*ServiceContext, error) {
	provider, err := NewProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}

	store, err := OpenStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	var metrics *Metrics
	if reg != nil {
		metrics = NewMetrics(reg)
	}

	return &ServiceContext{
		Context:  ctx,
		Store:    store,
		Provider: provider,
		Metrics:  metrics,
		Settings: SettingsFromConfig(cfg.Simulation),
	}, nil
}
