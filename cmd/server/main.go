package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ignite/campaign-dispatch/internal/api"
	"github.com/ignite/campaign-dispatch/internal/app"
	"github.com/ignite/campaign-dispatch/internal/config"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	log.Println("Starting campaign dispatch API server...")

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	app.ConfigureLogging(cfg.Log)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer stores.Close()
	if stores.DB != nil {
		log.Println("Connected to database")
	} else {
		log.Println("DATABASE_URL not set, using in-memory store")
	}

	redisClient, err := app.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		log.Printf("Redis unavailable, continuing without it: %v", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Println("Connected to Redis")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := app.NewServices(stores, cfg.Messaging)

	// The in-memory store is private to this process, so nothing else can
	// dispatch its campaigns.
	var workers *app.Workers
	if stores.Memory != nil {
		workers, err = app.NewWorkers(ctx, cfg, stores, svc, redisClient, reg)
		if err != nil {
			log.Fatalf("Failed to build embedded dispatcher: %v", err)
		}
		if err := workers.Dispatcher.Start(); err != nil {
			log.Fatalf("Failed to start embedded dispatcher: %v", err)
		}
		go workers.Recovery.Start(ctx)
		log.Println("Embedded dispatcher started")
	}

	handlers := api.NewHandlers(api.HandlerConfig{
		Campaigns:     svc.Campaigns,
		OptOuts:       svc.OptOuts,
		Health:        api.NewHealthChecker(stores.DB, redisClient),
		WebhookSecret: cfg.Webhook.Secret,
		Registry:      reg,
	})
	if cfg.Webhook.Secret == "" {
		log.Println("WARNING: WEBHOOK_SECRET not set, gateway webhooks are unauthenticated")
	}
	server := api.NewServer(cfg.Server, handlers)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if workers != nil {
		workers.Dispatcher.Stop()
	}

	log.Println("Server stopped")
}
