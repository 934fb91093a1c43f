// Command importer-ws serves the read-only HTTP API over the point store
// populated by the importer binary.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emarket/libs/config"
	"emarket/libs/database"
	"emarket/libs/observability"
	"emarket/libs/store"
	"emarket/services/importer-ws/internal/api"
)

var version = "dev"

func main() {
	cfg, err := config.ParseAPI(os.Args[1:], version)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbCfg := database.DefaultConfig()
	dbCfg.DSN = cfg.DatabaseURL
	db, err := database.ConnectWithMigrations(ctx, dbCfg, "")
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	var pointStore store.Store = store.NewPostgres(db)
	if cfg.RedisURL != "" {
		cached, err := store.NewCachedStore(pointStore, cfg.RedisURL, 30*time.Second)
		if err != nil {
			log.Fatalf("redis cache: %v", err)
		}
		defer cached.Close()
		pointStore = cached
	}

	reg := observability.NewRegistry()
	metrics := observability.NewPipelineMetrics(reg)

	srv := &api.Server{Store: pointStore, Version: cfg.Version}
	handler := api.NewHandler(srv, metrics, reg, cfg.RateLimitEnabled)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("emarket read API %s listening on %s", cfg.Version, cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := <-sigCh
	log.Printf("received signal %s, shutting down", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Printf("bye")
}
