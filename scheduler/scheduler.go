package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	sm "mc.service/models"
)

// SpecParser accepts the standard five fields with an optional leading seconds field
var SpecParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type Syncer interface {
	SyncSymbolPriceHistory(symbol string) (*sm.SyncResponse, error)
}

// Scheduler keeps stored price history fresh for a fixed list of symbols
type Scheduler struct {
	Cron   *cron.Cron
	Syncer Syncer
	Ctx    context.Context

	mu      sync.Mutex
	symbols []string
	running bool
}

func New(ctx context.Context, syncer Syncer) *Scheduler {
	return &Scheduler{
		Cron:   cron.New(cron.WithParser(SpecParser)),
		Syncer: syncer,
		Ctx:    ctx,
	}
}

// Register adds a sync of every symbol on spec. Calling it again adds another entry.
func (s *Scheduler) Register(spec string, symbols []string) error {
	if len(symbols) == 0 {
		return errors.New("no symbols to schedule")
	}

	s.mu.Lock()
	s.symbols = append(s.symbols, symbols...)
	s.mu.Unlock()

	if _, err := s.Cron.AddFunc(spec, func() { s.syncAll(symbols) }); err != nil {
		return fmt.Errorf("register sync task: %w", err)
	}
	log.Printf("scheduled history sync %q for %v", spec, symbols)
	return nil
}

func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("scheduler started")
}

// Stop waits for a sync that is already running to finish
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("scheduler stopped")
}

// RunNow syncs every registered symbol right away, returning whatever failed
func (s *Scheduler) RunNow() error {
	s.mu.Lock()
	symbols := append([]string(nil), s.symbols...)
	s.mu.Unlock()

	return s.syncAll(symbols)
}

func (s *Scheduler) syncAll(symbols []string) error {
	// a slow provider can make runs overlap, skip rather than pile up
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Println("history sync already running, skipping")
		return nil
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	start := time.Now()
	var errs []error
	for _, symbol := range symbols {
		if s.Ctx.Err() != nil {
			errs = append(errs, s.Ctx.Err())
			break
		}

		res, err := s.Syncer.SyncSymbolPriceHistory(symbol)
		if err != nil {
			log.Printf("error syncing %s: %v", symbol, err)
			errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
			continue
		}
		if res.Skipped {
			log.Printf("%s is up to date (last refreshed %s)", symbol, res.LastRefreshed.Format(time.DateOnly))
		}
	}

	log.Printf("history sync of %d symbols finished with %d errors (time: %v)", len(symbols), len(errs), time.Since(start))
	return errors.Join(errs...)
}
