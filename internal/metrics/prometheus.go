package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Ingress metrics
	EventsConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demeter_cost_events_consumed_total",
			Help: "Total number of cost events consumed and aggregated",
		},
		[]string{"cost_type"},
	)

	EventsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demeter_cost_events_rejected_total",
			Help: "Total number of cost events rejected at validation",
		},
		[]string{"reason"}, // reason: decode|validation
	)

	EventsDeduplicated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "demeter_cost_events_deduplicated_total",
			Help: "Total number of redelivered cost events skipped by id dedup",
		},
	)

	EventsDeadLettered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demeter_cost_events_deadlettered_total",
			Help: "Total number of cost events sent to the dead-letter topic",
		},
		[]string{"stage"}, // stage: decode|validation|storage
	)

	// Aggregation metrics
	AggregateApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "demeter_aggregate_apply_duration_seconds",
			Help:    "Duration of aggregate upsert transactions",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
	)

	AggregatesPurged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "demeter_aggregates_purged_total",
			Help: "Total number of aggregate rows removed by retention",
		},
	)

	// Query metrics
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "demeter_query_duration_seconds",
			Help:    "Duration of cost query handlers",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"endpoint"},
	)

	// Budget metrics
	BudgetUtilization = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "demeter_budget_utilization_percent",
			Help: "Current budget utilization percentage (uncapped)",
		},
		[]string{"period"}, // period: daily|monthly
	)

	BudgetAlertActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "demeter_budget_alert_active",
			Help: "1 when spend has reached the configured threshold",
		},
		[]string{"period"},
	)

	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demeter_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "demeter_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"worker"},
	)
)

// Init registers all metrics with the default registry
func Init() {
	prometheus.MustRegister(EventsConsumed)
	prometheus.MustRegister(EventsRejected)
	prometheus.MustRegister(EventsDeduplicated)
	prometheus.MustRegister(EventsDeadLettered)

	prometheus.MustRegister(AggregateApplyDuration)
	prometheus.MustRegister(AggregatesPurged)

	prometheus.MustRegister(QueryDuration)

	prometheus.MustRegister(BudgetUtilization)
	prometheus.MustRegister(BudgetAlertActive)

	prometheus.MustRegister(WorkerExecutions)
	prometheus.MustRegister(WorkerDuration)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordWorkerExecution records a worker execution
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	WorkerExecutions.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
}

// RecordQuery records a query handler execution
func RecordQuery(endpoint string, duration time.Duration) {
	QueryDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}
