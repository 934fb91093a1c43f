// Command importer runs the day-ahead price ingest and aggregate pipeline:
// poll ENTSOE for new hourly points, save them, and roll them up into daily
// and monthly averages as they arrive.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emarket/libs/aggregate"
	"emarket/libs/config"
	"emarket/libs/database"
	"emarket/libs/ingest"
	"emarket/libs/observability"
	"emarket/libs/ratelimiter"
	"emarket/libs/store"
	"emarket/libs/upstream"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.ParseImporter(os.Args[1:], version)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	log.Printf("starting emarket importer %s", cfg.Version)
	log.Printf("document=%s domain=%s key=%s", cfg.Document, cfg.Domain, cfg.MaskedKey())

	runID := observability.NewRunID()
	log.Printf("run_id=%s", runID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = observability.WithRunInfo(ctx, observability.RunInfo{RunID: runID})

	dbCfg := database.DefaultConfig()
	dbCfg.DSN = cfg.DatabaseURL
	db, err := database.ConnectWithMigrations(ctx, dbCfg, "")
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	pgStore := store.NewPostgres(db)

	startFrom := defaultEpoch
	if last, ok, err := pgStore.Last(ctx, store.SeriesHourly); err != nil {
		log.Fatalf("load resume point: %v", err)
	} else if ok {
		startFrom = last.At
	}

	reg := observability.NewRegistry()
	metrics := observability.NewPipelineMetrics(reg)

	loader := upstream.NewWithBreakerHook(cfg.Document, cfg.Domain, cfg.Key, func() {
		metrics.BreakerTrips.Inc()
	})
	gate := ratelimiter.New()

	metricsServer := &http.Server{Addr: ":9100", Handler: metricsMux(reg)}
	go func() {
		log.Printf("metrics listening on %s", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server: %v", err)
		}
	}()

	data := make(chan store.Point, 100)
	hwm := make(chan time.Time, 100)

	wd := ingest.WorkingData{
		StartFrom:     startFrom,
		Loader:        loader,
		Limiter:       gate,
		Data:          data,
		HighWatermark: hwm,
	}

	dailyAgg := aggregate.NewByDate(pgStore, store.SeriesHourly, store.SeriesDaily)
	monthlyAgg := aggregate.NewByMonth(pgStore, store.SeriesDaily, store.SeriesMonthly)

	// Both rollups react to every ingest watermark. The two RunLoops run
	// concurrently, so the monthly pass may read the daily series before the
	// daily pass for the same watermark has written to it; ByMonth resumes
	// from the month of its last daily point, so that month is recomputed on
	// the next watermark.
	dailyHwm := make(chan time.Time, 100)
	monthlyHwm := make(chan time.Time, 100)
	go func() {
		defer close(dailyHwm)
		defer close(monthlyHwm)
		for {
			select {
			case td, ok := <-hwm:
				if !ok {
					return
				}
				select {
				case dailyHwm <- td:
				case <-ctx.Done():
					return
				}
				select {
				case monthlyHwm <- td:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("received signal %s, shutting down", sig)
		cancel()
	}()

	saverDone := make(chan error, 1)
	go func() { saverDone <- ingest.RunSaver(ctx, pgStore, store.SeriesHourly, data) }()

	dailyAggDone := make(chan error, 1)
	go func() { dailyAggDone <- aggregate.RunLoop(ctx, dailyAgg, dailyHwm) }()

	monthlyAggDone := make(chan error, 1)
	go func() { monthlyAggDone <- aggregate.RunLoop(ctx, monthlyAgg, monthlyHwm) }()

	ingestErr := ingest.Run(ctx, wd)
	if ingestErr != nil {
		log.Printf("ingest loop failed: %v", ingestErr)
		cancel()
	}

	<-saverDone
	<-dailyAggDone
	<-monthlyAggDone

	if err := metricsServer.Shutdown(context.Background()); err != nil {
		log.Printf("metrics server shutdown: %v", err)
	}

	if ingestErr != nil {
		os.Exit(1)
	}
	log.Printf("bye")
}

func metricsMux(reg *observability.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		reg.WriteText(w)
	}))
	return mux
}

var defaultEpoch = time.Date(2012, time.January, 1, 0, 0, 0, 0, time.UTC)
