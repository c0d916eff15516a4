package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStats struct {
	calls atomic.Int32
	err   error
}

func (f *fakeStats) DatabaseStats() (int, int64, error) {
	f.calls.Add(1)
	return 3, 4096, f.err
}

func TestConstructorsReturnNoopWithoutRegistry(t *testing.T) {
	registry = nil

	assert.IsType(t, NoopStat{}, NewCounter("c", "help"))
	assert.IsType(t, NoopStat{}, NewGauge("g", "help"))
	assert.IsType(t, NoopStat{}, NewHistogram("h", "help"))
	assert.IsType(t, noopCounterVec{}, NewCounterVec("cv", "help", []string{"kind"}))
	assert.IsType(t, noopHistogramVec{}, NewHistogramVec("hv", "help", []string{"kind"}, QueryBuckets))
	assert.Nil(t, GetMetricsHandler())

	// Noop metrics accept every call
	QueriesTotal.With("select", "success").Inc()
	OpenTransactions.Inc()
	OpenTransactions.Dec()
}

func TestRegisteredMetricsAreServed(t *testing.T) {
	registry = prometheus.NewRegistry()
	t.Cleanup(func() { registry = nil })

	queries := NewCounterVec("test_queries_total", "help", []string{"kind", "result"})
	queries.With("select", "ok").Inc()
	NewHistogramWithBuckets("test_rebuild_seconds", "help", RebuildBuckets).Observe(0.2)

	handler := GetMetricsHandler()
	require.NotNil(t, handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `mylite_test_queries_total{instance_id=`)
	assert.Contains(t, string(body), `kind="select",result="ok"} 1`)
	assert.Contains(t, string(body), "mylite_test_rebuild_seconds_count")
}

func TestMetricsCollectorPollsProvider(t *testing.T) {
	stats := &fakeStats{}
	mc := NewMetricsCollector(stats, 5*time.Millisecond)
	mc.Start()

	assert.Eventually(t, func() bool { return stats.calls.Load() >= 2 }, time.Second, time.Millisecond)
	mc.Stop()
}

func TestMetricsCollectorToleratesErrors(t *testing.T) {
	stats := &fakeStats{err: errors.New("closed")}
	mc := NewMetricsCollector(stats, time.Hour)
	mc.collect()
	assert.Equal(t, int32(1), stats.calls.Load())

	empty := NewMetricsCollector(nil, time.Hour)
	empty.collect()
}

func TestMetricsCollectorRunStopsWithContext(t *testing.T) {
	stats := &fakeStats{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewMetricsCollector(stats, time.Hour).Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return stats.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// Stop without Start is a no-op
	NewMetricsCollector(stats, time.Hour).Stop()
}
