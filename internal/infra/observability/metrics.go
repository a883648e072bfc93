package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the budgets API.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration   *prometheus.HistogramVec
	storeErrors       *prometheus.CounterVec
	webhookDeliveries *prometheus.CounterVec
	webhookDuration   prometheus.Histogram
	budgetsSavedTotal prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "budgets_operation_duration_seconds",
				Help:    "Duration of budget operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budgets_store_errors_total",
				Help: "Total failed calls to the budget store.",
			},
			[]string{"operation"},
		),
		webhookDeliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budgets_webhook_deliveries_total",
				Help: "Webhook delivery attempts by outcome.",
			},
			[]string{"outcome"},
		),
		webhookDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "budgets_webhook_duration_seconds",
				Help:    "Duration of webhook delivery attempts.",
				Buckets: []float64{.05, .1, .25, .5, 1, 2, 4, 7},
			},
		),
		budgetsSavedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "budgets_saved_total",
				Help: "Total budgets written to the store.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrStoreError increments the store error counter.
func (m *Metrics) IncrStoreError(operation string) {
	m.storeErrors.WithLabelValues(operation).Inc()
}

// RecordWebhookDelivery counts one delivery attempt and its duration.
func (m *Metrics) RecordWebhookDelivery(outcome string, d time.Duration) {
	m.webhookDeliveries.WithLabelValues(outcome).Inc()
	if outcome != "skipped" {
		m.webhookDuration.Observe(d.Seconds())
	}
}

// IncrBudgetSaved increments the saved budgets counter.
func (m *Metrics) IncrBudgetSaved() {
	m.budgetsSavedTotal.Inc()
}

// WebhookDeliveries returns the cumulative delivery count for an outcome.
func (m *Metrics) WebhookDeliveries(outcome string) float64 {
	return getCounterValue(m.webhookDeliveries.WithLabelValues(outcome))
}

// StoreErrors returns the cumulative store error count for an operation.
func (m *Metrics) StoreErrors(operation string) float64 {
	return getCounterValue(m.storeErrors.WithLabelValues(operation))
}

// BudgetsSaved returns the cumulative number of saved budgets.
func (m *Metrics) BudgetsSaved() float64 {
	return getCounterValue(m.budgetsSavedTotal)
}

// getCounterValue extracts the current float64 value from a counter.
func getCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
