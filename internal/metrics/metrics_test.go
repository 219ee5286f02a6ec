package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestAppInfo(t *testing.T) {
	AppInfo.WithLabelValues("v1.0.0", "abc123", "2026-01-30").Set(1)
	assert.Equal(t, float64(1), testutil.ToFloat64(AppInfo.WithLabelValues("v1.0.0", "abc123", "2026-01-30")))
}

func TestDomainCounters(t *testing.T) {
	before := testutil.ToFloat64(ActivityAppended.WithLabelValues("item_completed"))
	ActivityAppended.WithLabelValues("item_completed").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ActivityAppended.WithLabelValues("item_completed")))

	before = testutil.ToFloat64(BroadcastDropped)
	BroadcastDropped.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(BroadcastDropped))
}

func TestDBCollectorNilPool(t *testing.T) {
	collector := NewDBCollector(nil)
	collector.collect()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		collector.Start(ctx, time.Hour)
		close(done)
	}()
	cancel()
	<-done
	collector.Stop()
	collector.Stop()
}

func TestRecordQuery(t *testing.T) {
	RecordQuery("test_select", time.Now(), nil)
	assert.NotZero(t, testutil.CollectAndCount(DBQueryDuration))

	before := testutil.ToFloat64(DBErrors.WithLabelValues("test_cancel", "canceled"))
	RecordQuery("test_cancel", time.Now(), context.Canceled)
	assert.Equal(t, before+1, testutil.ToFloat64(DBErrors.WithLabelValues("test_cancel", "canceled")))

	RecordQuery("test_wrapped", time.Now(), errors.New("syntax error"))
	assert.Equal(t, float64(1), testutil.ToFloat64(DBErrors.WithLabelValues("test_wrapped", "query_error")))
}

func TestClassifyDBError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"canceled", context.Canceled, "canceled"},
		{"timeout", context.DeadlineExceeded, "timeout"},
		{"unique", &pgconn.PgError{Code: "23505"}, "unique_violation"},
		{"fk", fmt.Errorf("insert item: %w", &pgconn.PgError{Code: "23503"}), "foreign_key_violation"},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, "serialization"},
		{"other", errors.New("boom"), "query_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyDBError(tt.err))
		})
	}
}
