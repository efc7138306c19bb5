// Package metrics exposes Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lingualens"

// Label values.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultBlank   = "blank"
	ResultDropped = "dropped"
	ResultSent    = "delivered"

	OutcomeCycle       = "cycle"
	OutcomeSkippedBusy = "skipped_busy"
	OutcomeSkippedIdle = "skipped_idle"
)

type Metrics struct {
	registry           *prometheus.Registry
	ActiveSessions     prometheus.Gauge
	TicksTotal         *prometheus.CounterVec
	ExtractionsTotal   *prometheus.CounterVec
	TranslationsTotal  *prometheus.CounterVec
	PublishesTotal     *prometheus.CounterVec
	FramesSkippedTotal prometheus.Counter
	StoreWritesTotal   *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
	StorePeers         prometheus.Gauge
}

func New() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capture_sessions_active",
			Help:      "Number of active capture sessions",
		}),
		TicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Sampling timer ticks by outcome",
		}, []string{"outcome"}),
		ExtractionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Text extraction calls by result",
		}, []string{"result"}),
		TranslationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translations_total",
			Help:      "Translations by result",
		}, []string{"result"}),
		PublishesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publishes_total",
			Help:      "Published translation messages by result",
		}, []string{"result"}),
		FramesSkippedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_skipped_similar_total",
			Help:      "Frames skipped because they matched the previous frame",
		}),
		StoreWritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_writes_total",
			Help:      "Shared store writes by result",
		}, []string{"result"}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_notifications_total",
			Help:      "Change notifications by delivery result",
		}, []string{"result"}),
		StorePeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_bridge_peers",
			Help:      "Display surfaces connected through the store bridge",
		}),
	}
	r.MustRegister(
		m.ActiveSessions, m.TicksTotal, m.ExtractionsTotal, m.TranslationsTotal,
		m.PublishesTotal, m.FramesSkippedTotal, m.StoreWritesTotal,
		m.NotificationsTotal, m.StorePeers,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Tick(outcome string) {
	if m != nil {
		m.TicksTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Extraction(result string) {
	if m != nil {
		m.ExtractionsTotal.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Translation(result string) {
	if m != nil {
		m.TranslationsTotal.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Publish(result string) {
	if m != nil {
		m.PublishesTotal.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) FrameSkipped() {
	if m != nil {
		m.FramesSkippedTotal.Inc()
	}
}

func (m *Metrics) SessionStarted() {
	if m != nil {
		m.ActiveSessions.Inc()
	}
}

func (m *Metrics) SessionEnded() {
	if m != nil {
		m.ActiveSessions.Dec()
	}
}

func (m *Metrics) StoreWrite(result string) {
	if m != nil {
		m.StoreWritesTotal.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Notification(result string) {
	if m != nil {
		m.NotificationsTotal.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) PeerConnected() {
	if m != nil {
		m.StorePeers.Inc()
	}
}

func (m *Metrics) PeerDisconnected() {
	if m != nil {
		m.StorePeers.Dec()
	}
}

// Result maps an error to ResultOK or ResultError.
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
