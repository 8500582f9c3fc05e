package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/campaign-dispatch/internal/pkg/httputil"
)

// HealthStatus represents the overall health of the system.
type HealthStatus struct {
	Status string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Uptime string                    `json:"uptime"`
	Checks map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "degraded", "not_configured"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthChecker checks the store and Redis. Either may be nil: the memory
// store has no database and Redis is optional.
type HealthChecker struct {
	db          *sql.DB
	redisClient *redis.Client
	startTime   time.Time
}

// NewHealthChecker creates a new HealthChecker.
func NewHealthChecker(db *sql.DB, redisClient *redis.Client) *HealthChecker {
	return &HealthChecker{db: db, redisClient: redisClient, startTime: time.Now()}
}

// HandleHealth returns the health of every component. It always answers
// 200; the body carries the status.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	httputil.OK(w, HealthStatus{
		Status: overallStatus(checks),
		Uptime: time.Since(hc.startTime).Round(time.Second).String(),
		Checks: checks,
	})
}

// HandleLiveness always returns 200 while the process runs.
//
//	GET /health/live
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "alive"})
}

// HandleReadiness returns 503 when the database is down.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	overall := overallStatus(checks)
	ready := overall != "unhealthy"
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	httputil.JSON(w, status, map[string]interface{}{
		"ready":  ready,
		"status": overall,
		"checks": checks,
	})
}

func (hc *HealthChecker) runAllChecks(ctx context.Context) map[string]ComponentCheck {
	type result struct {
		name  string
		check ComponentCheck
	}
	ch := make(chan result, 2)
	go func() { ch <- result{"database", hc.checkDatabase(ctx)} }()
	go func() { ch <- result{"redis", hc.checkRedis(ctx)} }()

	checks := make(map[string]ComponentCheck, 2)
	for i := 0; i < 2; i++ {
		r := <-ch
		checks[r.name] = r.check
	}
	return checks
}

func (hc *HealthChecker) checkDatabase(ctx context.Context) ComponentCheck {
	if hc.db == nil {
		return ComponentCheck{Status: "not_configured"}
	}
	return timedCheck(ctx, 3*time.Second, time.Second, hc.db.PingContext)
}

func (hc *HealthChecker) checkRedis(ctx context.Context) ComponentCheck {
	if hc.redisClient == nil {
		return ComponentCheck{Status: "not_configured"}
	}
	return timedCheck(ctx, 2*time.Second, 500*time.Millisecond, func(ctx context.Context) error {
		return hc.redisClient.Ping(ctx).Err()
	})
}

func timedCheck(ctx context.Context, timeout, slow time.Duration, ping func(context.Context) error) ComponentCheck {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := ping(pingCtx)
	latency := time.Since(start)

	if err != nil {
		return ComponentCheck{Status: "down", Latency: latency.String(), Message: fmt.Sprintf("ping failed: %v", err)}
	}
	if latency > slow {
		return ComponentCheck{Status: "degraded", Latency: latency.String(), Message: fmt.Sprintf("slow response (%s)", latency)}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: "connected"}
}

// overallStatus: the database is critical, Redis is not.
func overallStatus(checks map[string]ComponentCheck) string {
	status := "healthy"
	for name, c := range checks {
		switch c.Status {
		case "down":
			if name == "database" {
				return "unhealthy"
			}
			status = "degraded"
		case "degraded":
			status = "degraded"
		}
	}
	return status
}
