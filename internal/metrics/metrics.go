package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"depthScope/internal/model"
)

// Metrics holds the engine's collectors. A nil *Metrics is a no-op.
type Metrics struct {
	restarts        *prometheus.CounterVec
	eventsPublished *prometheus.CounterVec
	eventsDropped   *prometheus.CounterVec
	decodeFailures  *prometheus.CounterVec
	booksPublished  *prometheus.CounterVec
	bookDepth       *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		restarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "depthscope",
			Name:      "restarts_total",
			Help:      "Supervised stream restarts by tag.",
		}, []string{"tag"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "depthscope",
			Name:      "events_published_total",
			Help:      "Events accepted by the bus by kind.",
		}, []string{"kind"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "depthscope",
			Name:      "events_dropped_total",
			Help:      "Events dropped after the publish timeout by kind.",
		}, []string{"kind"}),
		decodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "depthscope",
			Name:      "decode_failures_total",
			Help:      "Inbound messages or logs dropped as undecodable by venue.",
		}, []string{"venue"}),
		booksPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "depthscope",
			Name:      "books_published_total",
			Help:      "Aggregated books published by symbol.",
		}, []string{"symbol"}),
		bookDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "depthscope",
			Name:      "book_levels",
			Help:      "Levels in the latest aggregated book by symbol and side.",
		}, []string{"symbol", "side"}),
	}
	if reg != nil {
		reg.MustRegister(m.restarts, m.eventsPublished, m.eventsDropped, m.decodeFailures, m.booksPublished, m.bookDepth)
	}
	return m
}

func (m *Metrics) Restarted(tag string) {
	if m == nil {
		return
	}
	m.restarts.WithLabelValues(tag).Inc()
}

func (m *Metrics) Published(kind model.Kind) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) Dropped(kind model.Kind) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) DecodeFailed(venue string) {
	if m == nil {
		return
	}
	m.decodeFailures.WithLabelValues(venue).Inc()
}

// BookPublished records a published book and its depth.
func (m *Metrics) BookPublished(book model.AggregatedBook) {
	if m == nil {
		return
	}
	m.booksPublished.WithLabelValues(book.Symbol).Inc()
	m.bookDepth.WithLabelValues(book.Symbol, "bid").Set(float64(len(book.Bids)))
	m.bookDepth.WithLabelValues(book.Symbol, "ask").Set(float64(len(book.Asks)))
}
