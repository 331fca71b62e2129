package csrgo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordIngest is called after each ingestion pass.
	// rows and nonzero describe the resulting store, err is nil if successful.
	RecordIngest(rows, nonzero int, duration time.Duration, err error)

	// RecordSave is called after each binary save with the bytes written.
	RecordSave(bytes int64, duration time.Duration, err error)

	// RecordLoad is called after each binary load with the bytes consumed.
	RecordLoad(bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordIngest(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordSave(int64, time.Duration, error)      {}
func (NoopMetricsCollector) RecordLoad(int64, time.Duration, error)      {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	IngestCount      atomic.Int64
	IngestErrors     atomic.Int64
	IngestRows       atomic.Int64
	IngestNonzero    atomic.Int64
	IngestTotalNanos atomic.Int64
	SaveCount        atomic.Int64
	SaveErrors       atomic.Int64
	SaveBytes        atomic.Int64
	LoadCount        atomic.Int64
	LoadErrors       atomic.Int64
	LoadBytes        atomic.Int64
}

// RecordIngest implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIngest(rows, nonzero int, duration time.Duration, err error) {
	b.IngestCount.Add(1)
	b.IngestTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.IngestErrors.Add(1)
		return
	}
	b.IngestRows.Add(int64(rows))
	b.IngestNonzero.Add(int64(nonzero))
}

// RecordSave implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSave(bytes int64, _ time.Duration, err error) {
	b.SaveCount.Add(1)
	if err != nil {
		b.SaveErrors.Add(1)
		return
	}
	b.SaveBytes.Add(bytes)
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(bytes int64, _ time.Duration, err error) {
	b.LoadCount.Add(1)
	if err != nil {
		b.LoadErrors.Add(1)
		return
	}
	b.LoadBytes.Add(bytes)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		IngestCount:    b.IngestCount.Load(),
		IngestErrors:   b.IngestErrors.Load(),
		IngestRows:     b.IngestRows.Load(),
		IngestNonzero:  b.IngestNonzero.Load(),
		IngestAvgNanos: b.getAvgIngestNanos(),
		SaveCount:      b.SaveCount.Load(),
		SaveErrors:     b.SaveErrors.Load(),
		SaveBytes:      b.SaveBytes.Load(),
		LoadCount:      b.LoadCount.Load(),
		LoadErrors:     b.LoadErrors.Load(),
		LoadBytes:      b.LoadBytes.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgIngestNanos() int64 {
	count := b.IngestCount.Load()
	if count == 0 {
		return 0
	}
	return b.IngestTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	IngestCount    int64
	IngestErrors   int64
	IngestRows     int64
	IngestNonzero  int64
	IngestAvgNanos int64
	SaveCount      int64
	SaveErrors     int64
	SaveBytes      int64
	LoadCount      int64
	LoadErrors     int64
	LoadBytes      int64
}
