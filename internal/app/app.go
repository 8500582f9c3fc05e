// Package app wires configuration into the stores, services and workers
// shared by the binaries under cmd/.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/campaign-dispatch/internal/config"
	"github.com/ignite/campaign-dispatch/internal/gateway"
	"github.com/ignite/campaign-dispatch/internal/messaging"
	"github.com/ignite/campaign-dispatch/internal/pkg/distlock"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
	"github.com/ignite/campaign-dispatch/internal/pkg/phone"
	"github.com/ignite/campaign-dispatch/internal/repository/memory"
	"github.com/ignite/campaign-dispatch/internal/repository/postgres"
	"github.com/ignite/campaign-dispatch/internal/service/campaign"
	"github.com/ignite/campaign-dispatch/internal/service/optout"
	"github.com/ignite/campaign-dispatch/internal/service/recipient"
	"github.com/ignite/campaign-dispatch/internal/service/stats"
	"github.com/ignite/campaign-dispatch/internal/storage"
	"github.com/ignite/campaign-dispatch/internal/worker"
)

// QueueStore is the message queue as seen by the dispatcher and the
// statistics aggregator.
type QueueStore interface {
	worker.Store
	stats.Repository
}

// CampaignStore is the campaign repository, which also serves the
// service catalog.
type CampaignStore interface {
	campaign.Repository
	campaign.ServiceCatalog
}

// Stores groups one backend's repositories.
type Stores struct {
	Campaigns CampaignStore
	Queue     QueueStore
	Customers recipient.CustomerSource
	OptOuts   optout.Repository

	// DB is nil for the in-memory backend.
	DB *sql.DB
	// Memory is set only for the in-memory backend.
	Memory *memory.Store
}

// ConfigureLogging applies the log section to the default logger.
func ConfigureLogging(cfg config.LogConfig) {
	logger.SetLevel(logger.ParseLevel(cfg.Level))
	logger.SetRedactPII(!cfg.DisableRedact)
}

// OpenDB connects to Postgres and verifies the connection.
func OpenDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime())
	db.SetConnMaxIdleTime(time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// OpenStores connects to Postgres when a database URL is configured and
// falls back to the in-memory store otherwise.
func OpenStores(ctx context.Context, cfg config.DatabaseConfig) (*Stores, error) {
	if cfg.URL == "" {
		mem := memory.New()
		return &Stores{
			Campaigns: mem.Campaigns(),
			Queue:     mem.Queue(),
			Customers: mem.Customers(),
			OptOuts:   mem.OptOuts(),
			Memory:    mem,
		}, nil
	}

	db, err := OpenDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Stores{
		Campaigns: postgres.NewCampaignRepo(db),
		Queue:     postgres.NewQueueRepo(db),
		Customers: postgres.NewCustomerRepo(db),
		OptOuts:   postgres.NewOptOutRepo(db),
		DB:        db,
	}, nil
}

// Close releases the database connection, if any.
func (s *Stores) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// OpenRedis connects to Redis. It returns nil, nil when no URL is set.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		opts = &redis.Options{Addr: cfg.URL}
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Services are the application services built on one set of stores.
type Services struct {
	Campaigns *campaign.Service
	OptOuts   *optout.Service
	Stats     *stats.Aggregator
}

// NewServices builds the campaign, opt-out and statistics services.
func NewServices(st *Stores, cfg config.MessagingConfig) *Services {
	norm := phone.NewNormalizer(cfg.DefaultRegion)
	agg := stats.NewAggregator(st.Queue)
	optOuts := optout.NewService(st.OptOuts, norm)
	renderer := messaging.NewTemplateService(messaging.MoneyFormat{
		Symbol:             cfg.CurrencySymbol,
		DecimalSeparator:   cfg.DecimalSeparator,
		ThousandsSeparator: cfg.ThousandsSeparator,
	})
	campaigns := campaign.NewService(st.Campaigns, campaign.Dependencies{
		Resolver: recipient.NewResolver(st.Customers, optOuts, norm),
		Renderer: renderer,
		Catalog:  st.Campaigns,
		Stats:    agg,
	})
	return &Services{Campaigns: campaigns, OptOuts: optOuts, Stats: agg}
}

// NewSender builds the configured gateway and instruments it on reg.
func NewSender(cfg config.GatewayConfig, reg prometheus.Registerer) (gateway.Sender, error) {
	var sender gateway.Sender
	switch cfg.Type {
	case "console":
		sender = gateway.Console{}
	case "whatsapp":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("gateway type whatsapp requires base_url")
		}
		sender = gateway.NewWhatsAppClient(cfg.BaseURL, cfg.Token, cfg.Timeout())
	default:
		return nil, fmt.Errorf("unknown gateway type %q", cfg.Type)
	}
	return gateway.NewInstrumented(cfg.Type, sender, reg), nil
}

// Workers is a dispatcher with its recovery sweep.
type Workers struct {
	Dispatcher *worker.CampaignDispatcher
	Recovery   *worker.QueueRecoveryWorker
}

// NewWorkers builds the dispatch and recovery workers. rdb may be nil, in
// which case locks fall back to Postgres advisory locks (or an in-process
// table for the memory store) and sends are not globally rate limited.
func NewWorkers(ctx context.Context, cfg *config.Config, st *Stores, svc *Services, rdb *redis.Client, reg prometheus.Registerer) (*Workers, error) {
	sender, err := NewSender(cfg.Gateway, reg)
	if err != nil {
		return nil, err
	}
	archive, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init report archive: %w", err)
	}

	metrics := worker.NewMetrics(reg)
	d := worker.NewCampaignDispatcher(st.Queue, sender, svc.Stats, worker.Config{
		Tick:            cfg.Dispatch.Tick(),
		Concurrency:     cfg.Dispatch.Concurrency,
		MaxAttempts:     cfg.Dispatch.MaxAttempts,
		SendTimeout:     cfg.Dispatch.SendTimeout(),
		ClaimStaleAfter: cfg.Dispatch.ClaimStaleAfter(),
	})
	d.SetMetrics(metrics)
	d.SetLocks(distlock.NewProvider(rdb, st.DB, cfg.Redis.LockTTL()))

	if cfg.RateLimit.Enabled {
		if rdb == nil {
			return nil, fmt.Errorf("rate_limit.enabled requires redis.url")
		}
		d.SetLimiter(gateway.NewRedisLimiter(rdb, "dispatch:ratelimit", gateway.Limits{
			PerSecond: cfg.RateLimit.PerSecond,
			PerMinute: cfg.RateLimit.PerMinute,
			PerHour:   cfg.RateLimit.PerHour,
			PerDay:    cfg.RateLimit.PerDay,
		}))
	}

	r := worker.NewQueueRecoveryWorker(st.Queue, svc.Stats, cfg.Dispatch.RecoveryInterval(), cfg.Dispatch.ClaimStaleAfter())
	r.SetMetrics(metrics)

	if archive != nil {
		d.SetArchive(archive)
		r.SetArchive(archive)
	}
	return &Workers{Dispatcher: d, Recovery: r}, nil
}
