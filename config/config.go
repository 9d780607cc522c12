package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"mc.service/api"
	av "mc.service/api/alpha_vantage"
	"mc.service/scheduler"
	sm "mc.service/models"
)

const (
	EnvPrefix         = "MC"
	DefaultConfigPath = "config.yaml"
)

// Config is loaded as defaults, then the yaml file, then .env and the environment.
// Environment keys are MC_<SECTION>_<FIELD>, e.g. MC_SERVER_ADDR or MC_SIMULATION_MAX_SIMULATIONS.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database" envconfig:"DB"`
	Provider   ProviderConfig   `yaml:"provider"`
	Simulation SimulationConfig `yaml:"simulation"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
	AllowedOrigins  []string      `yaml:"allowed_origins" split_words:"true"`
}

// DatabaseConfig picks postgres when URL is set, the embedded sqlite file otherwise
type DatabaseConfig struct {
	URL        string `yaml:"url" envconfig:"DATABASE_URL"`
	SQLitePath string `yaml:"sqlite_path" split_words:"true"`
}

type ProviderConfig struct {
	Name               string        `yaml:"name"`
	AlphaVantageAPIKey string        `yaml:"alphavantage_api_key" envconfig:"ALPHAVANTAGE_API_KEY"`
	AlphaVantageSeries string        `yaml:"alphavantage_series" split_words:"true"`
	RequestsPerMinute  int           `yaml:"requests_per_minute" split_words:"true"`
	Timeout            time.Duration `yaml:"timeout"`
	Proxy              string        `yaml:"proxy"`
}

type SimulationConfig struct {
	TradingDaysPerYear int           `yaml:"trading_days_per_year" split_words:"true"`
	DefaultSimulations int           `yaml:"default_simulations" split_words:"true"`
	MaxSimulations     int           `yaml:"max_simulations" split_words:"true"`
	MaxYears           int           `yaml:"max_years" split_words:"true"`
	Workers            int           `yaml:"workers"`
	HistogramBins      int           `yaml:"histogram_bins" split_words:"true"`
	RefreshAfter       time.Duration `yaml:"refresh_after" split_words:"true"`
}

// ScheduleConfig drives the background history sync, an empty SyncCron disables it
type ScheduleConfig struct {
	SyncCron string   `yaml:"sync_cron" split_words:"true"`
	Symbols  []string `yaml:"symbols"`
}

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			SQLitePath: "data/mc.db",
		},
		Provider: ProviderConfig{
			Name:               api.ProviderYahoo,
			AlphaVantageSeries: "daily_adjusted",
			RequestsPerMinute:  5,
			Timeout:            30 * time.Second,
		},
		Simulation: SimulationConfig{
			TradingDaysPerYear: sm.Daily,
			DefaultSimulations: sm.DefaultSimulations,
			MaxSimulations:     100_000,
			MaxYears:           50,
			Workers:            8,
			HistogramBins:      sm.DefaultHistogramBins,
			RefreshAfter:       24 * time.Hour,
		},
		Schedule: ScheduleConfig{
			SyncCron: "0 30 22 * * 1-5",
		},
	}
}

// Load builds the config. A missing yaml file or .env is fine, a malformed one is not.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error loading config from environment: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error reading config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("error parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) normalize() {
	c.Provider.Name = strings.ToLower(strings.TrimSpace(c.Provider.Name))
	for i, s := range c.Schedule.Symbols {
		c.Schedule.Symbols[i] = api.NormalizeSymbol(s)
	}
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Provider.Name {
	case api.ProviderYahoo:
	case api.ProviderAlphaVantage:
		if c.Provider.AlphaVantageAPIKey == "" {
			errs = append(errs, errors.New("provider alphavantage requires ALPHAVANTAGE_API_KEY"))
		}
		if _, err := av.ParseTimeSeries(c.Provider.AlphaVantageSeries); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider.Name))
	}

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server addr is required"))
	}
	if c.Database.URL == "" && c.Database.SQLitePath == "" {
		errs = append(errs, errors.New("either a database url or a sqlite path is required"))
	}

	s := c.Simulation
	if s.TradingDaysPerYear < 1 {
		errs = append(errs, fmt.Errorf("trading days per year must be positive, got %d", s.TradingDaysPerYear))
	}
	if s.DefaultSimulations < 1 || s.MaxSimulations < 1 {
		errs = append(errs, fmt.Errorf("simulation counts must be positive, got default %d max %d", s.DefaultSimulations, s.MaxSimulations))
	} else if s.DefaultSimulations > s.MaxSimulations {
		errs = append(errs, fmt.Errorf("default simulations %d exceeds max %d", s.DefaultSimulations, s.MaxSimulations))
	}
	if s.MaxYears < 1 {
		errs = append(errs, fmt.Errorf("max years must be positive, got %d", s.MaxYears))
	}
	if s.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", s.Workers))
	}
	if s.HistogramBins < 1 {
		errs = append(errs, fmt.Errorf("histogram bins must be positive, got %d", s.HistogramBins))
	}

	if c.Schedule.SyncCron != "" {
		if _, err := scheduler.SpecParser.Parse(c.Schedule.SyncCron); err != nil {
			errs = append(errs, fmt.Errorf("invalid sync cron %q: %w", c.Schedule.SyncCron, err))
		}
	}

	return errors.Join(errs...)
}
