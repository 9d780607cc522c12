// Command forecast runs a single monte carlo forecast from the terminal and prints the outcome.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"mc.service/config"
	c "mc.service/core"
	sm "mc.service/models"
	"mc.service/report"
)

type options struct {
	configPath  string
	symbol      string
	years       int
	simulations int
	seed        int64
	workers     int
	bins        int
	width       int
	xlsx        string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		log.Fatalf("forecast failed: %v", err)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	if err := prompt(opts, stdin, stdout); err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	sc, err := c.NewServiceContext(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer sc.Store.Close()

	res, err := sc.RunForecast(sm.ForecastRequestSettings{
		Symbol:         opts.symbol,
		Years:          opts.years,
		NumSimulations: opts.simulations,
		Seed:           opts.seed,
		Workers:        opts.workers,
		HistogramBins:  opts.bins,
		IncludeSeries:  opts.xlsx != "",
	})
	if err != nil {
		return err
	}

	return render(res, opts, stdout)
}

func parseFlags(args []string) (*options, error) {
	opts := &options{}

	fs := flag.NewFlagSet("forecast", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", config.DefaultConfigPath, "path to the yaml config file")
	fs.StringVar(&opts.symbol, "symbol", "", "ticker to forecast, prompted for when empty")
	fs.IntVar(&opts.years, "years", 0, "forecast horizon in years, prompted for when zero")
	fs.IntVar(&opts.simulations, "simulations", sm.DefaultSimulations, "number of simulated paths")
	fs.Int64Var(&opts.seed, "seed", 0, "random seed, 0 picks one")
	fs.IntVar(&opts.workers, "workers", 0, "parallel workers, 0 uses the configured count")
	fs.IntVar(&opts.bins, "bins", 0, "histogram bins, 0 uses the configured count")
	fs.IntVar(&opts.width, "width", report.DefaultHistogramWidth, "width of the printed histogram")
	fs.StringVar(&opts.xlsx, "xlsx", "", "also write the forecast to this workbook")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

// prompt asks for whatever the flags left out
func prompt(opts *options, stdin io.Reader, stdout io.Writer) error {
	scanner := bufio.NewScanner(stdin)
	ask := func(question string) (string, error) {
		fmt.Fprint(stdout, question)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", io.ErrUnexpectedEOF
		}
		return strings.TrimSpace(scanner.Text()), nil
	}

	if strings.TrimSpace(opts.symbol) == "" {
		symbol, err := ask("Enter the stock symbol: ")
		if err != nil {
			return fmt.Errorf("error reading symbol: %w", err)
		}
		if symbol == "" {
			return errors.New("a stock symbol is required")
		}
		opts.symbol = symbol
	}

	if opts.years == 0 {
		raw, err := ask("Enter the number of years: ")
		if err != nil {
			return fmt.Errorf("error reading years: %w", err)
		}
		years, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("years must be a whole number, got %q", raw)
		}
		opts.years = years
	}

	return nil
}

func render(res *sm.ForecastResponse, opts *options, stdout io.Writer) error {
	if err := report.WriteSummary(stdout, res.Symbol, res.Years, res.Outcome); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Starting price %.2f, %d simulations, seed %d\n\n", res.StartingPrice, res.NumSimulations, res.Seed)

	if err := report.WriteHistogram(stdout, res.Histogram, opts.width); err != nil {
		return err
	}

	if opts.xlsx != "" {
		if err := report.WriteWorkbook(opts.xlsx, res.Symbol, res.Years, res.Outcome, res.PercentChanges, res.Histogram); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "\nWorkbook written to %s\n", opts.xlsx)
	}
	return nil
}
