package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of one monitor process
type Metrics struct {
	registry *prometheus.Registry

	// Reading metrics
	ReadingsTotal  *prometheus.CounterVec
	AlertsTotal    *prometheus.CounterVec
	DiscardedTotal *prometheus.CounterVec
	SinkErrors     *prometheus.CounterVec

	// Queue metrics
	QueueCapacity *prometheus.GaugeVec

	// Collector metrics
	CollectorState prometheus.Gauge

	// Ops HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for the /status endpoint
	snapshot Snapshot

	mu     sync.RWMutex
	stop   chan struct{}
	closer sync.Once
}

// Snapshot holds current values for the JSON status endpoint
type Snapshot struct {
	Readings   map[string]int64 `json:"readings"`
	Alerts     map[string]int64 `json:"alerts"`
	Discarded  map[string]int64 `json:"discarded"`
	SinkErrors map[string]int64 `json:"sink_errors"`
	Collector  int              `json:"collector_state"`
	Uptime     float64          `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector backed by its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),
		stop:      make(chan struct{}),
		snapshot: Snapshot{
			Readings:   map[string]int64{},
			Alerts:     map[string]int64{},
			Discarded:  map[string]int64{},
			SinkErrors: map[string]int64{},
		},

		ReadingsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_readings_total",
				Help: "Total number of readings written to a sink",
			},
			[]string{"class"},
		),
		AlertsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_alerts_total",
				Help: "Total number of out-of-range readings",
			},
			[]string{"class"},
		),
		DiscardedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_discarded_total",
				Help: "Total number of tokens dropped by the collector",
			},
			[]string{"reason"},
		),
		SinkErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_sink_errors_total",
				Help: "Total number of failed sink writes",
			},
			[]string{"class"},
		),

		QueueCapacity: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "monitor_queue_capacity",
				Help: "Capacity of each reading queue",
			},
			[]string{"class"},
		),

		CollectorState: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "monitor_collector_state",
				Help: "Collector state (0 running, 1 draining, 2 terminating, 3 stopped)",
			},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_ops_requests_total",
				Help: "Total number of ops HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "monitor_ops_request_duration_seconds",
				Help:    "Ops HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "path"},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "monitor_uptime_seconds",
				Help: "Monitor uptime in seconds",
			},
		),
	}

	go m.updateUptime()

	return m
}

// Registry returns the registry the metrics are registered with
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Close stops the uptime updater
func (m *Metrics) Close() {
	m.closer.Do(func() { close(m.stop) })
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Uptime.Set(time.Since(m.startTime).Seconds())
		case <-m.stop:
			return
		}
	}
}

// RegisterQueue exports the depth and capacity of a class queue.
// Registering the same class twice is a no-op.
func (m *Metrics) RegisterQueue(class string, capacity int, depth func() int) {
	m.QueueCapacity.WithLabelValues(class).Set(float64(capacity))

	gauge := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name:        "monitor_queue_depth",
			Help:        "Number of readings waiting in a queue",
			ConstLabels: prometheus.Labels{"class": class},
		},
		func() float64 { return float64(depth()) },
	)
	_ = m.registry.Register(gauge)
}

// RecordReading records a reading written to a sink
func (m *Metrics) RecordReading(class string) {
	m.ReadingsTotal.WithLabelValues(class).Inc()
	m.bump(m.snapshot.Readings, class)
}

// RecordAlert records an out-of-range reading
func (m *Metrics) RecordAlert(class string) {
	m.AlertsTotal.WithLabelValues(class).Inc()
	m.bump(m.snapshot.Alerts, class)
}

// RecordDiscard records a dropped token
func (m *Metrics) RecordDiscard(reason string) {
	m.DiscardedTotal.WithLabelValues(reason).Inc()
	m.bump(m.snapshot.Discarded, reason)
}

// RecordSinkError records a failed sink write
func (m *Metrics) RecordSinkError(class string) {
	m.SinkErrors.WithLabelValues(class).Inc()
	m.bump(m.snapshot.SinkErrors, class)
}

// SetCollectorState exports the collector state machine position
func (m *Metrics) SetCollectorState(state int) {
	m.CollectorState.Set(float64(state))
	m.mu.Lock()
	m.snapshot.Collector = state
	m.mu.Unlock()
}

// RecordHTTPRequest records an ops HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *Metrics) bump(counts map[string]int64, key string) {
	m.mu.Lock()
	counts[key]++
	m.mu.Unlock()
}

// Snapshot returns a copy of the current values
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Snapshot{
		Readings:   copyCounts(m.snapshot.Readings),
		Alerts:     copyCounts(m.snapshot.Alerts),
		Discarded:  copyCounts(m.snapshot.Discarded),
		SinkErrors: copyCounts(m.snapshot.SinkErrors),
		Collector:  m.snapshot.Collector,
		Uptime:     time.Since(m.startTime).Seconds(),
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
