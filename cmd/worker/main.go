package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignite/campaign-dispatch/internal/app"
	"github.com/ignite/campaign-dispatch/internal/config"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	log.Println("Starting campaign dispatch worker...")

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	app.ConfigureLogging(cfg.Log)
	defer logger.Sync()

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required: the worker shares its queue with the API through Postgres")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer stores.Close()
	log.Println("Connected to database")

	redisClient, err := app.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Println("Connected to Redis (locks and rate limits are shared across workers)")
	} else {
		log.Println("Redis not configured, using Postgres advisory locks")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := app.NewServices(stores, cfg.Messaging)
	workers, err := app.NewWorkers(ctx, cfg, stores, svc, redisClient, reg)
	if err != nil {
		log.Fatalf("Failed to build dispatcher: %v", err)
	}

	if err := workers.Dispatcher.Start(); err != nil {
		log.Fatalf("Failed to start dispatcher: %v", err)
	}
	log.Printf("Campaign dispatcher started (id %s, tick %s, gateway %s)",
		workers.Dispatcher.WorkerID(), cfg.Dispatch.Tick(), cfg.Gateway.Type)

	go workers.Recovery.Start(ctx)
	log.Printf("Queue recovery worker started (every %s, stale after %s)",
		cfg.Dispatch.RecoveryInterval(), cfg.Dispatch.ClaimStaleAfter())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Dispatch.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("Serving metrics on %s", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancel()

	// Stop waits for in-flight sends to record their outcome.
	workers.Dispatcher.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Metrics server shutdown error: %v", err)
	}

	log.Println("Worker stopped")
}
