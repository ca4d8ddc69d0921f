package bufferpool

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the buffer pool's OpenTelemetry counters. A nil *Metrics
// disables instrumentation.
type Metrics struct {
	fetches    metric.Int64Counter
	hits       metric.Int64Counter
	evictions  metric.Int64Counter
	writeBacks metric.Int64Counter
}

// NewMetrics registers the buffer pool counters on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error
	if m.fetches, err = meter.Int64Counter("bufferpool.fetches",
		metric.WithDescription("Pages requested from the buffer pool")); err != nil {
		return nil, err
	}
	if m.hits, err = meter.Int64Counter("bufferpool.hits",
		metric.WithDescription("Page requests served from a resident frame")); err != nil {
		return nil, err
	}
	if m.evictions, err = meter.Int64Counter("bufferpool.evictions",
		metric.WithDescription("Frames reclaimed from cached pages")); err != nil {
		return nil, err
	}
	if m.writeBacks, err = meter.Int64Counter("bufferpool.write_backs",
		metric.WithDescription("Dirty pages written through to disk at unpin")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) addFetch() {
	if m != nil {
		m.fetches.Add(context.Background(), 1)
	}
}

func (m *Metrics) addHit() {
	if m != nil {
		m.hits.Add(context.Background(), 1)
	}
}

func (m *Metrics) addEviction() {
	if m != nil {
		m.evictions.Add(context.Background(), 1)
	}
}

func (m *Metrics) addWriteBack() {
	if m != nil {
		m.writeBacks.Add(context.Background(), 1)
	}
}
