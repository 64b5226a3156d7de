package telemetry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var opAttr = attribute.Key("op")

// BufferPoolMetrics drives the OpenTelemetry instruments a buffer pool
// exposes: hit/miss/eviction counters, a pinned-frame gauge, and a
// disk-latency histogram split by read/write. It satisfies both
// internal/buffer.Metrics and internal/disk.LatencyObserver without
// either package importing this one.
type BufferPoolMetrics struct {
	hits      metric.Int64Counter
	misses    metric.Int64Counter
	evictions metric.Int64Counter
	latency   metric.Float64Histogram

	pinned atomic.Int64
}

// NewBufferPoolMetrics registers the buffer pool instruments against
// meter. Pass telemetry.Telemetry.Meter (or a noop meter when
// telemetry is disabled).
func NewBufferPoolMetrics(meter metric.Meter) (*BufferPoolMetrics, error) {
	hits, err := meter.Int64Counter("duskdb.buffer_pool.hits",
		metric.WithDescription("Buffer pool fetches satisfied by a resident page"))
	if err != nil {
		return nil, fmt.Errorf("registering hits counter: %w", err)
	}
	misses, err := meter.Int64Counter("duskdb.buffer_pool.misses",
		metric.WithDescription("Buffer pool fetches that required a disk read"))
	if err != nil {
		return nil, fmt.Errorf("registering misses counter: %w", err)
	}
	evictions, err := meter.Int64Counter("duskdb.buffer_pool.evictions",
		metric.WithDescription("Frames reclaimed via the LRU-K replacer"))
	if err != nil {
		return nil, fmt.Errorf("registering evictions counter: %w", err)
	}
	latency, err := meter.Float64Histogram("duskdb.disk.request_latency_ms",
		metric.WithDescription("Disk scheduler request latency"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("registering latency histogram: %w", err)
	}

	m := &BufferPoolMetrics{hits: hits, misses: misses, evictions: evictions, latency: latency}

	_, err = meter.Int64ObservableGauge("duskdb.buffer_pool.pinned_frames",
		metric.WithDescription("Frames currently pinned"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.pinned.Load())
			return nil
		}))
	if err != nil {
		return nil, fmt.Errorf("registering pinned frames gauge: %w", err)
	}

	return m, nil
}

func (m *BufferPoolMetrics) RecordHit()      { m.hits.Add(context.Background(), 1) }
func (m *BufferPoolMetrics) RecordMiss()     { m.misses.Add(context.Background(), 1) }
func (m *BufferPoolMetrics) RecordEviction() { m.evictions.Add(context.Background(), 1) }
func (m *BufferPoolMetrics) SetPinned(n int) { m.pinned.Store(int64(n)) }

// ObserveDiskLatency implements internal/disk.LatencyObserver.
func (m *BufferPoolMetrics) ObserveDiskLatency(isWrite bool, d time.Duration) {
	op := "read"
	if isWrite {
		op = "write"
	}
	m.latency.Record(context.Background(), float64(d.Microseconds())/1000.0,
		metric.WithAttributes(opAttr.String(op)))
}
