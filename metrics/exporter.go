package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// ExporterType defines the type of metrics exporter
type ExporterType string

const (
	// StandardExporter keeps counters in process only
	StandardExporter ExporterType = "standard"
	// PrometheusExporterType also publishes Prometheus metrics
	PrometheusExporterType ExporterType = "prometheus"
)

// Exporter receives store activity
type Exporter interface {
	// RecordHit records a cache hit
	RecordHit()
	// RecordMiss records a cache miss
	RecordMiss()
	// RecordEviction records an eviction
	RecordEviction()
	// UpdateSize updates the current number of entries
	UpdateSize(size int64)
	// GetSnapshot returns a copy of the current counters
	GetSnapshot() Snapshot
	// Reset resets the in-process counters to zero
	Reset()
}

// Nop returns an Exporter that drops everything
func Nop() Exporter {
	return nopExporter{}
}

type nopExporter struct{}

func (nopExporter) RecordHit()            {}
func (nopExporter) RecordMiss()           {}
func (nopExporter) RecordEviction()       {}
func (nopExporter) UpdateSize(int64)      {}
func (nopExporter) GetSnapshot() Snapshot { return Snapshot{} }
func (nopExporter) Reset()                {}

// PrometheusExporter implements Exporter using Prometheus metrics
type PrometheusExporter struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions prometheus.Counter
	size      prometheus.Gauge

	internalHits      atomic.Int64
	internalMisses    atomic.Int64
	internalEvictions atomic.Int64
	internalSize      atomic.Int64

	collectors []prometheus.Collector
}

// NewPrometheusExporter creates an exporter for the store called storeName
// and registers its collectors with reg. A nil reg uses the default registerer.
func NewPrometheusExporter(reg prometheus.Registerer, storeName string, labels map[string]string) (*PrometheusExporter, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	constLabels := prometheus.Labels{"service": "vstorage"}
	for k, v := range labels {
		constLabels[k] = v
	}
	constLabels["store"] = storeName

	e := &PrometheusExporter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "vstorage_hits_total",
			Help:        "Total number of cache tier hits",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "vstorage_misses_total",
			Help:        "Total number of cache tier misses",
			ConstLabels: constLabels,
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "vstorage_evictions_total",
			Help:        "Total number of evicted entries",
			ConstLabels: constLabels,
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "vstorage_entries",
			Help:        "Current number of entries",
			ConstLabels: constLabels,
		}),
	}
	e.collectors = []prometheus.Collector{e.hits, e.misses, e.evictions, e.size}
	for i, c := range e.collectors {
		if err := reg.Register(c); err != nil {
			for _, registered := range e.collectors[:i] {
				reg.Unregister(registered)
			}
			return nil, err
		}
	}
	return e, nil
}

// Collectors returns the registered collectors
func (e *PrometheusExporter) Collectors() []prometheus.Collector {
	return e.collectors
}

// RecordHit implements Exporter
func (e *PrometheusExporter) RecordHit() {
	e.hits.Inc()
	e.internalHits.Add(1)
}

// RecordMiss implements Exporter
func (e *PrometheusExporter) RecordMiss() {
	e.misses.Inc()
	e.internalMisses.Add(1)
}

// RecordEviction implements Exporter
func (e *PrometheusExporter) RecordEviction() {
	e.evictions.Inc()
	e.internalEvictions.Add(1)
}

// UpdateSize implements Exporter
func (e *PrometheusExporter) UpdateSize(size int64) {
	e.size.Set(float64(size))
	e.internalSize.Store(size)
}

// GetSnapshot implements Exporter
func (e *PrometheusExporter) GetSnapshot() Snapshot {
	return Snapshot{
		Hits:      e.internalHits.Load(),
		Misses:    e.internalMisses.Load(),
		Evictions: e.internalEvictions.Load(),
		Size:      e.internalSize.Load(),
	}
}

// Reset implements Exporter. Prometheus counters stay cumulative.
func (e *PrometheusExporter) Reset() {
	e.internalHits.Store(0)
	e.internalMisses.Store(0)
	e.internalEvictions.Store(0)
	e.internalSize.Store(0)
}

// NewExporter creates an exporter of the given type
func NewExporter(exporterType ExporterType, reg prometheus.Registerer, storeName string, labels map[string]string) (Exporter, error) {
	switch exporterType {
	case PrometheusExporterType:
		return NewPrometheusExporter(reg, storeName, labels)
	default:
		return NewCounters(), nil
	}
}
