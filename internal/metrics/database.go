package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Database metrics
var (
	// DBConnections reports pool connections by state (total, acquired, idle, max)
	DBConnections = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections",
			Help:      "Database pool connections by state",
		},
		[]string{"state"},
	)

	// DBEmptyAcquires mirrors the pool's cumulative count of acquires that
	// had to wait for a connection.
	DBEmptyAcquires = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_pool_empty_acquires",
			Help:      "Cumulative acquires that waited because the pool was empty",
		},
	)

	// DBAcquireSeconds mirrors the pool's cumulative time spent acquiring.
	DBAcquireSeconds = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_pool_acquire_seconds",
			Help:      "Cumulative time spent acquiring pool connections",
		},
	)

	// DBQueryDuration records repository operation latency
	DBQueryDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Repository operation duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	// DBErrors counts failed repository operations by error class
	DBErrors = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_errors_total",
			Help:      "Total number of failed repository operations",
		},
		[]string{"operation", "error_type"},
	)
)

// PoolStatter is satisfied by *pgxpool.Pool.
type PoolStatter interface {
	Stat() *pgxpool.Stat
}

// DBCollector samples pool statistics on an interval until stopped.
type DBCollector struct {
	pool     PoolStatter
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewDBCollector returns a collector for pool. A nil pool is allowed and
// collects nothing.
func NewDBCollector(pool *pgxpool.Pool) *DBCollector {
	c := &DBCollector{stopChan: make(chan struct{})}
	if pool != nil {
		c.pool = pool
	}
	return c
}

// Start samples immediately and then every interval. It returns when ctx is
// done or Stop is called.
func (c *DBCollector) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.collect()
	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends Start. It is safe to call more than once.
func (c *DBCollector) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *DBCollector) collect() {
	if c.pool == nil {
		return
	}
	stat := c.pool.Stat()
	DBConnections.WithLabelValues("total").Set(float64(stat.TotalConns()))
	DBConnections.WithLabelValues("acquired").Set(float64(stat.AcquiredConns()))
	DBConnections.WithLabelValues("idle").Set(float64(stat.IdleConns()))
	DBConnections.WithLabelValues("max").Set(float64(stat.MaxConns()))
	DBEmptyAcquires.Set(float64(stat.EmptyAcquireCount()))
	DBAcquireSeconds.Set(stat.AcquireDuration().Seconds())
}

// RecordQuery observes one repository operation. Use with defer:
//
//	start := time.Now()
//	defer metrics.RecordQuery("insert_item", start, err)
func RecordQuery(operation string, start time.Time, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		DBErrors.WithLabelValues(operation, classifyDBError(err)).Inc()
	}
}

func classifyDBError(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return "unique_violation"
		case "23503":
			return "foreign_key_violation"
		case "40001", "40P01":
			return "serialization"
		}
	}
	return "query_error"
}
