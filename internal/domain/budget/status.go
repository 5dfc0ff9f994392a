package budget

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PeriodStatus is the derived spend position for one budget period. It is
// computed at query time from aggregates and the effective threshold, never
// persisted.
type PeriodStatus struct {
	PeriodStart  time.Time
	TotalCostUSD decimal.Decimal
	ThresholdUSD decimal.Decimal

	// UtilizationPct is uncapped so overage stays visible to alerting
	UtilizationPct decimal.Decimal
	// DisplayPct is UtilizationPct capped at 100 for UI gauges
	DisplayPct decimal.Decimal
	// RemainingUSD goes negative on overage; it is not clamped at zero
	RemainingUSD decimal.Decimal

	AlertTriggered bool
}

// Status is the full budget position: current day and current month
type Status struct {
	Date          time.Time
	Daily         PeriodStatus
	Monthly       PeriodStatus
	UsingDefaults bool
	UpdatedAt     time.Time
}

// EvaluatePeriod computes a PeriodStatus from a spend total and a threshold.
// The alert fires at exact equality: total >= threshold.
func EvaluatePeriod(periodStart time.Time, total, threshold decimal.Decimal) PeriodStatus {
	utilization := decimal.Zero
	if threshold.IsPositive() {
		utilization = total.Div(threshold).Mul(hundred)
	}

	display := utilization
	if display.GreaterThan(hundred) {
		display = hundred
	}

	return PeriodStatus{
		PeriodStart:    periodStart,
		TotalCostUSD:   total,
		ThresholdUSD:   threshold,
		UtilizationPct: utilization,
		DisplayPct:     display,
		RemainingUSD:   threshold.Sub(total),
		AlertTriggered: total.GreaterThanOrEqual(threshold),
	}
}
