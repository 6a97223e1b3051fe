package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns its registry so several instances can coexist in tests.
type Collector struct {
	registry *prometheus.Registry

	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	SnapshotsTotal    *prometheus.CounterVec
	EventsNormalized  *prometheus.CounterVec
	MalformedEntries  prometheus.Counter
	ReprimandsTotal   *prometheus.CounterVec
	PersistenceErrors *prometheus.CounterVec
	Connected         prometheus.Gauge
	DigestsSent       *prometheus.CounterVec
}

func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Collector{
		registry: reg,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ppewatch_http_requests_total",
			Help: "The total number of http requests handled",
		}, []string{"method", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ppewatch_http_request_duration_seconds",
			Help:    "The latency of http requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		SnapshotsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ppewatch_snapshots_total",
			Help: "The total number of realtime deliveries received",
		}, []string{"outcome"}),
		EventsNormalized: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ppewatch_events_normalized_total",
			Help: "The total number of compliance events normalized",
		}, []string{"schema"}),
		MalformedEntries: factory.NewCounter(prometheus.CounterOpts{
			Name: "ppewatch_malformed_entries_total",
			Help: "The total number of entries with unparseable timestamps",
		}),
		ReprimandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ppewatch_reprimand_transitions_total",
			Help: "The total number of reprimand lifecycle transitions",
		}, []string{"action"}),
		PersistenceErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ppewatch_persistence_errors_total",
			Help: "The total number of failed reprimand writes",
		}, []string{"action"}),
		Connected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ppewatch_realtime_connected",
			Help: "1 when the realtime subscription is delivering",
		}),
		DigestsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ppewatch_digest_emails_total",
			Help: "The total number of digest emails attempted",
		}, []string{"success"}),
	}
}

// Record tracks one finished http request.
func (c *Collector) Record(method string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.RequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	c.RequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// ObserveSnapshot records a delivery and its normalization result.
func (c *Collector) ObserveSnapshot(err error, schemas map[string]int, malformed int) {
	if c == nil {
		return
	}
	if err != nil {
		c.SnapshotsTotal.WithLabelValues("error").Inc()
		c.Connected.Set(0)
		return
	}
	c.SnapshotsTotal.WithLabelValues("ok").Inc()
	c.Connected.Set(1)
	for schema, count := range schemas {
		c.EventsNormalized.WithLabelValues(schema).Add(float64(count))
	}
	if malformed > 0 {
		c.MalformedEntries.Add(float64(malformed))
	}
}

func (c *Collector) IncReprimand(action string) {
	if c == nil {
		return
	}
	c.ReprimandsTotal.WithLabelValues(action).Inc()
}

func (c *Collector) IncPersistenceError(action string) {
	if c == nil {
		return
	}
	c.PersistenceErrors.WithLabelValues(action).Inc()
}

func (c *Collector) IncDigest(success bool) {
	if c == nil {
		return
	}
	c.DigestsSent.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// Handler exposes the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
