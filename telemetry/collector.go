package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// StatsProvider reports the size of the database behind an engine
type StatsProvider interface {
	DatabaseStats() (tables int, sizeBytes int64, err error)
}

// MetricsCollector polls a StatsProvider and publishes the database gauges
type MetricsCollector struct {
	provider StatsProvider
	interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewMetricsCollector(provider StatsProvider, interval time.Duration) *MetricsCollector {
	return &MetricsCollector{
		provider: provider,
		interval: interval,
	}
}

// Start polls in the background until Stop is called
func (mc *MetricsCollector) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	mc.cancel = cancel
	mc.wg.Add(1)
	go func() {
		defer mc.wg.Done()
		mc.Run(ctx)
	}()
}

// Stop ends polling started by Start and waits for it to exit
func (mc *MetricsCollector) Stop() {
	if mc.cancel == nil {
		return
	}
	mc.cancel()
	mc.wg.Wait()
}

// Run collects once immediately, then every interval until ctx is done.
func (mc *MetricsCollector) Run(ctx context.Context) {
	ticker := time.NewTicker(mc.interval)
	defer ticker.Stop()

	mc.collect()
	for {
		select {
		case <-ticker.C:
			mc.collect()
		case <-ctx.Done():
			return
		}
	}
}

func (mc *MetricsCollector) collect() {
	if mc.provider == nil {
		return
	}

	tables, size, err := mc.provider.DatabaseStats()
	if err != nil {
		log.Debug().Err(err).Msg("Failed to collect database stats")
		return
	}

	DatabaseTables.Set(float64(tables))
	DatabaseSizeBytes.Set(float64(size))
}
