// Package metrics provides observability for the game server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector gathers performance and game metrics.
type Collector struct {
	registry *prometheus.Registry

	TickCount   prometheus.Counter
	TickLatency prometheus.Histogram
	TickDelta   prometheus.Histogram

	EventsWritten    prometheus.Counter
	EventWriteLat    prometheus.Histogram
	EventWriteErrors prometheus.Counter

	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec
	WSErrors      prometheus.Counter

	StageProgress *prometheus.GaugeVec
	Boxes         prometheus.Gauge
	Saves         *prometheus.CounterVec
}

// NewCollector registers every metric on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		TickCount: factory.NewCounter(prometheus.CounterOpts{
			Name: "studio_tick_count_total",
			Help: "Total tick cycles processed",
		}),
		TickLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "studio_tick_latency_seconds",
			Help:    "Time spent dispatching one tick",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
		}),
		TickDelta: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "studio_tick_delta_seconds",
			Help:    "Elapsed game time carried by each tick",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 10, 60, 3600},
		}),

		EventsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "studio_events_written_total",
			Help: "Total events written to storage",
		}),
		EventWriteLat: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "studio_event_write_latency_seconds",
			Help:    "Event write latency",
			Buckets: prometheus.DefBuckets,
		}),
		EventWriteErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "studio_event_write_errors_total",
			Help: "Total event write errors",
		}),

		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "studio_ws_connections",
			Help: "Active WebSocket connections",
		}),
		WSMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_ws_messages_total",
			Help: "Total WebSocket messages",
		}, []string{"direction"}),
		WSErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "studio_ws_errors_total",
			Help: "Total WebSocket errors",
		}),

		StageProgress: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "studio_stage_progress",
			Help: "Current progress of each production stage",
		}, []string{"stage"}),
		Boxes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "studio_boxes",
			Help: "Boxes currently held",
		}),
		Saves: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_saves_total",
			Help: "Save attempts by outcome",
		}, []string{"outcome"}),
	}
}

var collector = NewCollector()

// Get returns the process-wide collector.
func Get() *Collector {
	return collector
}

// RecordTick records a tick cycle completion.
func (c *Collector) RecordTick(delta float64, latency time.Duration) {
	c.TickCount.Inc()
	c.TickDelta.Observe(delta)
	c.TickLatency.Observe(latency.Seconds())
}

// RecordEventWrite records an event write to the database.
func (c *Collector) RecordEventWrite(latency time.Duration, err error) {
	c.EventsWritten.Inc()
	c.EventWriteLat.Observe(latency.Seconds())
	if err != nil {
		c.EventWriteErrors.Inc()
	}
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	c.WSConnections.Add(float64(delta))
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		c.WSMessages.WithLabelValues("in").Inc()
	} else {
		c.WSMessages.WithLabelValues("out").Inc()
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	c.WSErrors.Inc()
}

// RecordStage publishes a stage's current progress.
func (c *Collector) RecordStage(name string, progress float64) {
	c.StageProgress.WithLabelValues(name).Set(progress)
}

// RecordBoxes publishes the box count.
func (c *Collector) RecordBoxes(boxes float64) {
	c.Boxes.Set(boxes)
}

// RecordSave records a save attempt.
func (c *Collector) RecordSave(err error) {
	if err != nil {
		c.Saves.WithLabelValues("error").Inc()
		return
	}
	c.Saves.WithLabelValues("ok").Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
