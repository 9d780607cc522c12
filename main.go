package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mc.service/config"
	c "mc.service/core"
	"mc.service/scheduler"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "path to the yaml config file")
	syncOnStart := flag.Bool("sync-on-start", false, "sync every scheduled symbol before serving")
	flag.Parse()

	// initialize context and signal handler, listen for interrupt and term signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sc, err := c.NewServiceContext(ctx, cfg, reg)
	if err != nil {
		log.Fatalf("Failed to build service: %v", err)
	}
	defer sc.Store.Close()

	// keep the configured symbols warm so forecasts rarely wait on the provider
	if cfg.Schedule.SyncCron != "" && len(cfg.Schedule.Symbols) > 0 {
		sched := scheduler.New(ctx, sc)
		if err := sched.Register(cfg.Schedule.SyncCron, cfg.Schedule.Symbols); err != nil {
			log.Fatalf("Failed to schedule history sync: %v", err)
		}
		if *syncOnStart {
			if err := sched.RunNow(); err != nil {
				log.Printf("Initial history sync had errors: %v", err)
			}
		}
		sched.Start()
		defer sched.Stop()
	}

	// get http server, makes all of the endpoints and routes
	s := c.GetHttpServer(sc, c.ServerOptions{
		Addr:           cfg.Server.Addr,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Gatherer:       reg,
	})

	go func() {
		log.Printf("Starting monte carlo server on %s (provider %s)", s.Addr, sc.Provider.Name())
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// wait here until the context is closed (ie, ctrl+C)
	<-ctx.Done()
	log.Println("Received shutdown signal, shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	start := time.Now()
	if err := s.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Printf("Server stopped successfully (time: %v)", time.Since(start))
}
