package workers

import (
	"context"
	"time"

	domainbudget "demeter/internal/domain/budget"
	"demeter/internal/events"
	"demeter/internal/metrics"
	budgetsvc "demeter/internal/services/budget"
	"demeter/pkg/errors"

	redisclient "demeter/internal/adapters/redis"
)

// BudgetWatchWorker periodically evaluates budget status, keeps the budget
// gauges current, and publishes an alert event the first time a period
// crosses its threshold. Crossing markers live in Redis so only one replica
// alerts per period.
type BudgetWatchWorker struct {
	*BaseWorker
	budget *budgetsvc.Service
	pub    *events.Publisher
	redis  *redisclient.Client
}

// NewBudgetWatchWorker creates a new budget watch worker
func NewBudgetWatchWorker(
	budget *budgetsvc.Service,
	pub *events.Publisher,
	redis *redisclient.Client,
	interval time.Duration,
) *BudgetWatchWorker {
	return &BudgetWatchWorker{
		BaseWorker: NewBaseWorker("budget_watch", interval, true),
		budget:     budget,
		pub:        pub,
		redis:      redis,
	}
}

// Run evaluates the budget position once
func (w *BudgetWatchWorker) Run(ctx context.Context) error {
	status, err := w.budget.Status(ctx)
	if err != nil {
		return errors.Wrap(err, "budget evaluation failed")
	}

	w.observe(ctx, "daily", status.Daily, 48*time.Hour)
	w.observe(ctx, "monthly", status.Monthly, 35*24*time.Hour)

	return nil
}

// observe updates gauges for one period and alerts on a fresh crossing
func (w *BudgetWatchWorker) observe(ctx context.Context, period string, ps domainbudget.PeriodStatus, markerTTL time.Duration) {
	metrics.BudgetUtilization.WithLabelValues(period).Set(ps.UtilizationPct.InexactFloat64())

	if !ps.AlertTriggered {
		metrics.BudgetAlertActive.WithLabelValues(period).Set(0)
		return
	}

	metrics.BudgetAlertActive.WithLabelValues(period).Set(1)

	// One alert per period instance across all replicas
	marker := "costs:alerted:" + period + ":" + ps.PeriodStart.Format("2006-01-02")
	fresh, err := w.redis.SetNX(ctx, marker, 1, markerTTL)
	if err != nil {
		w.Log().Warnf("Failed to set alert marker for %s: %v", period, err)
		return
	}
	if !fresh {
		return
	}

	alert := &events.BudgetAlertEvent{
		Period:         period,
		PeriodStart:    ps.PeriodStart.Format("2006-01-02"),
		TotalCostUSD:   ps.TotalCostUSD.String(),
		ThresholdUSD:   ps.ThresholdUSD.String(),
		UtilizationPct: ps.UtilizationPct.StringFixed(1),
		TriggeredAt:    time.Now().UTC(),
	}

	if err := w.pub.PublishBudgetAlert(ctx, alert); err != nil {
		w.Log().Errorf("Failed to publish %s budget alert: %v", period, err)
	}
}
