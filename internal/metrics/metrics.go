package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the valuation pipeline collectors.
type Metrics struct {
	registry        *prometheus.Registry
	valuations      *prometheus.CounterVec
	valuationTime   *prometheus.HistogramVec
	providerTime    *prometheus.HistogramVec
	providerErrors  prometheus.Counter
	creditPurchases prometheus.Counter
}

// New registers collectors on a fresh registry, including Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		valuations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "valuation",
			Name:      "requests_total",
			Help:      "Valuation submissions by outcome.",
		}, []string{"outcome"}),
		valuationTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "valuation",
			Name:      "request_duration_seconds",
			Help:      "End-to-end valuation submission latency.",
			Buckets:   []float64{0.05, 0.25, 1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"outcome"}),
		providerTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "valuation",
			Name:      "provider_duration_seconds",
			Help:      "Latency of valuation provider calls.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"result"}),
		providerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "valuation",
			Name:      "provider_errors_total",
			Help:      "Valuation provider calls that returned an error.",
		}),
		creditPurchases: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "credits",
			Name:      "purchase_webhooks_total",
			Help:      "Stripe webhooks accepted.",
		}),
	}
	reg.MustRegister(
		m.valuations,
		m.valuationTime,
		m.providerTime,
		m.providerErrors,
		m.creditPurchases,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveValuation(outcome string, elapsed time.Duration) {
	m.valuations.WithLabelValues(outcome).Inc()
	m.valuationTime.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveProvider(elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		m.providerErrors.Inc()
	}
	m.providerTime.WithLabelValues(result).Observe(elapsed.Seconds())
}

func (m *Metrics) WebhookAccepted() {
	m.creditPurchases.Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
