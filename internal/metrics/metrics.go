// Package metrics exposes the daemon's Prometheus instruments. Every recorder method is
// safe on a nil *Metrics so components can run without instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "statisfy"

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

type Metrics struct {
	PollsTotal          *prometheus.CounterVec
	PollInterval        prometheus.Gauge
	ConsecutiveFailures prometheus.Gauge
	HydrationLookups    *prometheus.CounterVec
	HydrationTracks     *prometheus.CounterVec
	HydrationDuration   prometheus.Histogram
	DeviceCommandsTotal *prometheus.CounterVec
	QueueSize           prometheus.Gauge
	QueueEventsTotal    *prometheus.CounterVec
	PersistSavesTotal   *prometheus.CounterVec
}

// NewMetrics creates the instruments and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PollsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "polls_total",
				Help:      "Total number of playback polls by outcome",
			},
			[]string{"outcome"},
		),
		PollInterval: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "poll_interval_seconds",
				Help:      "Interval until the next playback poll",
			},
		),
		ConsecutiveFailures: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "poll_consecutive_failures",
				Help:      "Number of consecutive failed playback polls",
			},
		),
		HydrationLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hydration_lookups_total",
				Help:      "Total number of batched catalog lookups",
			},
			[]string{"result"},
		),
		HydrationTracks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hydration_tracks_total",
				Help:      "Tracks hydrated by source",
			},
			[]string{"source"},
		),
		HydrationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "hydration_duration_seconds",
				Help:      "Time spent hydrating a list of URIs",
				Buckets:   prometheus.DefBuckets,
			},
		),
		DeviceCommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "device_commands_total",
				Help:      "Commands sent to the playback device",
			},
			[]string{"command", "result"},
		),
		QueueSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_size",
				Help:      "Current number of tracks in the queue",
			},
		),
		QueueEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queue_events_total",
				Help:      "Queue state changes by kind",
			},
			[]string{"kind"},
		),
		PersistSavesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persist_saves_total",
				Help:      "Queue persistence attempts",
			},
			[]string{"result"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.PollsTotal,
			m.PollInterval,
			m.ConsecutiveFailures,
			m.HydrationLookups,
			m.HydrationTracks,
			m.HydrationDuration,
			m.DeviceCommandsTotal,
			m.QueueSize,
			m.QueueEventsTotal,
			m.PersistSavesTotal,
		)
	}
	return m
}

func resultLabel(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

// RecordPoll counts one poll; outcome is "playing", "idle" or "error".
func (m *Metrics) RecordPoll(outcome string, next time.Duration, failures int) {
	if m == nil {
		return
	}
	m.PollsTotal.WithLabelValues(outcome).Inc()
	m.PollInterval.Set(next.Seconds())
	m.ConsecutiveFailures.Set(float64(failures))
}

// RecordLookup counts one batched catalog request.
func (m *Metrics) RecordLookup(err error) {
	if m == nil {
		return
	}
	m.HydrationLookups.WithLabelValues(resultLabel(err)).Inc()
}

// RecordHydration records where hydrated tracks came from.
func (m *Metrics) RecordHydration(cached, fetched, placeholders int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HydrationTracks.WithLabelValues("cache").Add(float64(cached))
	m.HydrationTracks.WithLabelValues("catalog").Add(float64(fetched))
	m.HydrationTracks.WithLabelValues("placeholder").Add(float64(placeholders))
	m.HydrationDuration.Observe(elapsed.Seconds())
}

// RecordDeviceCommand counts a play or skip request.
func (m *Metrics) RecordDeviceCommand(command string, err error) {
	if m == nil {
		return
	}
	m.DeviceCommandsTotal.WithLabelValues(command, resultLabel(err)).Inc()
}

// RecordQueueEvent counts a store change and tracks the queue size.
func (m *Metrics) RecordQueueEvent(kind string, size int) {
	if m == nil {
		return
	}
	m.QueueEventsTotal.WithLabelValues(kind).Inc()
	m.QueueSize.Set(float64(size))
}

// RecordSave counts one persistence attempt.
func (m *Metrics) RecordSave(err error) {
	if m == nil {
		return
	}
	m.PersistSavesTotal.WithLabelValues(resultLabel(err)).Inc()
}
