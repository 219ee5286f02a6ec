package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

const (
	checkPass = "pass"
	checkWarn = "warn"
	checkFail = "fail"

	probeTimeout = 2 * time.Second
)

// ReadinessReport is the body served by /readyz.
type ReadinessReport struct {
	Status    string                 `json:"status"` // healthy, degraded or unhealthy
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

type CheckResult struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	LatencyMs int64          `json:"latency_ms,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Pinger is satisfied by every storage backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectionCounter reports live websocket connections.
type ConnectionCounter interface {
	ConnectedCount() int
}

// MigrationVersionFunc reports the applied schema version.
type MigrationVersionFunc func() (version uint, dirty bool, err error)

type probe struct {
	name string
	run  func(ctx context.Context) CheckResult
}

// HealthChecker runs the readiness probes concurrently, each under its own
// deadline.
type HealthChecker struct {
	probes    []probe
	version   string
	gitCommit string
}

// NewHealthChecker builds the probe set. A nil migrations func skips the
// schema probe (in-memory storage has no schema); a nil realtime counter
// reports the service as degraded.
func NewHealthChecker(store Pinger, migrations MigrationVersionFunc, realtime ConnectionCounter, version, gitCommit string) *HealthChecker {
	h := &HealthChecker{version: version, gitCommit: gitCommit}
	h.probes = append(h.probes, probe{"storage", storageProbe(store)})
	if migrations != nil {
		h.probes = append(h.probes, probe{"migrations", migrationsProbe(migrations)})
	}
	h.probes = append(h.probes, probe{"realtime", realtimeProbe(realtime)})
	return h
}

func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// the server cancels request contexts while draining
		if r.Context().Err() != nil {
			writeHealthJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting_down"})
			return
		}

		report := ReadinessReport{
			Version:   h.version,
			GitCommit: h.gitCommit,
			Checks:    h.runProbes(r.Context()),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		report.Status = overall(report.Checks)

		code := http.StatusOK
		if report.Status == "unhealthy" {
			code = http.StatusServiceUnavailable
		}
		writeHealthJSON(w, code, report)
	}
}

func (h *HealthChecker) runProbes(ctx context.Context) map[string]CheckResult {
	var (
		mu      sync.Mutex
		results = make(map[string]CheckResult, len(h.probes))
		g       errgroup.Group
	)
	for _, p := range h.probes {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()

			start := time.Now()
			res := p.run(pctx)
			if res.LatencyMs == 0 {
				res.LatencyMs = time.Since(start).Milliseconds()
			}

			mu.Lock()
			results[p.name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// overall is the worst individual result: any fail is unhealthy, any warn
// degraded.
func overall(checks map[string]CheckResult) string {
	status := "healthy"
	for _, c := range checks {
		switch c.Status {
		case checkFail:
			return "unhealthy"
		case checkWarn:
			status = "degraded"
		}
	}
	return status
}

func storageProbe(store Pinger) func(context.Context) CheckResult {
	return func(ctx context.Context) CheckResult {
		if store == nil {
			return CheckResult{Status: checkFail, Message: "storage not configured"}
		}
		if err := store.Ping(ctx); err != nil {
			return CheckResult{
				Status:  checkFail,
				Message: "storage unreachable: " + pingFailure(ctx, err),
				Details: map[string]any{"error": err.Error()},
			}
		}

		res := CheckResult{Status: checkPass, Message: "storage reachable"}
		if pooled, ok := store.(interface{ Pool() *pgxpool.Pool }); ok && pooled.Pool() != nil {
			st := pooled.Pool().Stat()
			res.Details = map[string]any{
				"max_connections":      st.MaxConns(),
				"total_connections":    st.TotalConns(),
				"idle_connections":     st.IdleConns(),
				"acquired_connections": st.AcquiredConns(),
			}
		}
		return res
	}
}

// pingFailure names the common ways a Postgres ping fails so operators do
// not have to read driver errors.
func pingFailure(ctx context.Context, err error) string {
	msg := err.Error()
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("no answer within %s", probeTimeout)
	case strings.Contains(msg, "connection refused"):
		return "connection refused"
	case strings.Contains(msg, "authentication failed"):
		return "authentication failed"
	default:
		return "ping failed"
	}
}

func migrationsProbe(current MigrationVersionFunc) func(context.Context) CheckResult {
	return func(context.Context) CheckResult {
		version, dirty, err := current()
		switch {
		case err != nil:
			return CheckResult{
				Status:  checkFail,
				Message: "cannot read schema version",
				Details: map[string]any{"error": err.Error(), "hint": "listsync migrate up"},
			}
		case version == 0:
			return CheckResult{
				Status:  checkFail,
				Message: "schema not migrated",
				Details: map[string]any{"hint": "listsync migrate up"},
			}
		case dirty:
			return CheckResult{
				Status:  checkFail,
				Message: fmt.Sprintf("schema version %d is dirty", version),
				Details: map[string]any{"version": version, "dirty": true},
			}
		}
		return CheckResult{
			Status:  checkPass,
			Message: fmt.Sprintf("schema at version %d", version),
			Details: map[string]any{"version": version, "dirty": false},
		}
	}
}

// realtimeProbe only warns: without the broadcaster the HTTP API still
// serves, clients just stop receiving live events.
func realtimeProbe(counter ConnectionCounter) func(context.Context) CheckResult {
	return func(context.Context) CheckResult {
		if counter == nil {
			return CheckResult{Status: checkWarn, Message: "broadcaster not running"}
		}
		return CheckResult{
			Status:  checkPass,
			Message: "broadcaster running",
			Details: map[string]any{"connections": counter.ConnectedCount()},
		}
	}
}

// Healthz is the liveness probe; it never touches dependencies.
func Healthz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeHealthJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func writeHealthJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
