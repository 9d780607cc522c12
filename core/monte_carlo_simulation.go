package core

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	ex "mc.service/data/extensions"
	sm "mc.service/models"
)

const (
	Workers   = 8
	BatchSize = 256 // columns per job
)

// SimulationConfig is fixed for the duration of one run
type SimulationConfig struct {
	StartingPrice      float64
	Years              int
	NumSimulations     int
	TradingDaysPerYear int
	Seed               int64 // 0 draws one from the process source, see ResolveSeed
	Workers            int   // 0 uses Workers
}

func NewSimulationConfig(startingPrice float64, years, numSimulations int) SimulationConfig {
	return SimulationConfig{
		StartingPrice:      startingPrice,
		Years:              years,
		NumSimulations:     numSimulations,
		TradingDaysPerYear: sm.Daily,
		Workers:            Workers,
	}
}

// Steps is the number of rows in the price matrix
func (cfg SimulationConfig) Steps() int {
	return cfg.TradingDaysPerYear * cfg.Years
}

func (cfg SimulationConfig) Validate() error {
	if math.IsNaN(cfg.StartingPrice) || math.IsInf(cfg.StartingPrice, 0) || cfg.StartingPrice <= 0 {
		return fmt.Errorf("%w: starting price must be a positive number, got %v", ErrInvalidConfig, cfg.StartingPrice)
	}
	if cfg.Years < 1 {
		return fmt.Errorf("%w: years must be at least 1, got %d", ErrInvalidConfig, cfg.Years)
	}
	if cfg.NumSimulations < 1 {
		return fmt.Errorf("%w: number of simulations must be at least 1, got %d", ErrInvalidConfig, cfg.NumSimulations)
	}
	if cfg.TradingDaysPerYear < 1 {
		return fmt.Errorf("%w: trading days per year must be at least 1, got %d", ErrInvalidConfig, cfg.TradingDaysPerYear)
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("%w: workers cannot be negative, got %d", ErrInvalidConfig, cfg.Workers)
	}
	return nil
}

// ResolveSeed returns a copy with a concrete seed so the run can be reproduced later
func (cfg SimulationConfig) ResolveSeed() SimulationConfig {
	for cfg.Seed == 0 {
		cfg.Seed = rand.Int64()
	}
	return cfg
}

type job struct {
	start int
	end   int // exclusive
}

func GetNumberOfJobsAndWorkers(iterations int, batchSize int, workers int) ([]job, int) {
	// total jobs is the number of batches rounded up, the last one gets truncated to iterations
	nJobs := int(math.Ceil(float64(iterations) / float64(batchSize)))

	// never spin up more workers than there are jobs
	nWorkers := ex.Min(nJobs, workers)

	jobs := make([]job, nJobs)
	for i := range nJobs {
		jobs[i] = job{
			start: i * batchSize,
			end:   ex.Min((i+1)*batchSize, iterations),
		}
	}

	return jobs, nWorkers
}

// GeneratePaths builds the (steps x simulations) price matrix, see GeneratePathsContext
func GeneratePaths(stats ReturnStatistics, cfg SimulationConfig) (*mat.Dense, error) {
	return GeneratePathsContext(context.Background(), stats, cfg)
}

// GeneratePathsContext simulates every column as price[t] = price[t-1] * (1 + r), r ~ N(mean, std).
// Column i draws from its own PCG stream keyed on (seed, i), so the matrix for a given seed is
// the same no matter how many workers run or how the jobs get scheduled.
// Cancelling ctx stops workers from picking up further jobs and no matrix is returned.
func GeneratePathsContext(ctx context.Context, stats ReturnStatistics, cfg SimulationConfig) (*mat.Dense, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := stats.Validate(); err != nil {
		return nil, err
	}

	cfg = cfg.ResolveSeed()
	workers := cfg.Workers
	if workers == 0 {
		workers = Workers
	}

	steps := cfg.Steps()
	paths := mat.NewDense(steps, cfg.NumSimulations, nil)
	jobs, nWorkers := GetNumberOfJobsAndWorkers(cfg.NumSimulations, BatchSize, workers)

	log.Printf("generating %d paths over %d %s (seed %d, %d workers, %d jobs)",
		cfg.NumSimulations, steps, sm.ConvertFrequencyToString(cfg.TradingDaysPerYear), cfg.Seed, nWorkers, len(jobs))

	// workers pull from this until it is drained
	jobsChannel := make(chan job, len(jobs))
	for _, v := range jobs {
		jobsChannel <- v
	}
	close(jobsChannel)

	g, gctx := errgroup.WithContext(ctx)
	for range nWorkers {
		g.Go(func() error {
			column := make([]float64, steps)
			for j := range jobsChannel {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}

				for sim := j.start; sim < j.end; sim++ {
					simulatePath(column, cfg.StartingPrice, stats, cfg.Seed, sim)
					// columns are disjoint, so no locking on the shared matrix
					paths.SetCol(sim, column)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return paths, nil
}

// simulatePath fills column with one geometric random walk. Non positive prices are left as is.
func simulatePath(column []float64, startingPrice float64, stats ReturnStatistics, seed int64, sim int) {
	dist := distuv.Normal{
		Mu:    stats.Mean,
		Sigma: stats.Std,
		Src:   rand.NewPCG(uint64(seed), uint64(sim)),
	}

	column[0] = startingPrice
	for t := 1; t < len(column); t++ {
		column[t] = column[t-1] * (1 + dist.Rand())
	}
}
