package cost

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// AggregateRepository maintains and reads daily aggregates.
//
// Apply must be atomic at the storage layer: concurrent calls for the same
// key from multiple service replicas must never lose an increment, and one
// event's rows commit together so a retried event never half-applies.
type AggregateRepository interface {
	// Apply adds one event's contribution (amount, quantity, one request) to
	// the base row (date, costType, "", "") and to one row per populated
	// dimension, in a single transaction.
	Apply(ctx context.Context, date time.Time, costType Type, dims []Dimension, amountUSD decimal.Decimal, quantity int64) error

	// TotalsByType returns per-type totals over the base rows in [start, end]
	TotalsByType(ctx context.Context, start, end time.Time) ([]TypeTotal, error)

	// DailyTotals returns one entry per day that has events in [start, end],
	// summed across types over the base rows
	DailyTotals(ctx context.Context, start, end time.Time) ([]TrendEntry, error)

	// TotalsByDimension returns per-value totals for a cost type and
	// dimension key over [start, end]
	TotalsByDimension(ctx context.Context, costType Type, dimKey string, start, end time.Time) ([]DimensionTotal, error)

	// RangeTotal returns the grand total cost and request count over the base
	// rows in [start, end]
	RangeTotal(ctx context.Context, start, end time.Time) (decimal.Decimal, int64, error)

	// PurgeOlderThan deletes aggregate rows with date before cutoff and
	// returns the number of rows removed
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventArchive stores raw cost events for the bounded retention window. The
// archive is a durable audit trail; aggregates never read from it.
type EventArchive interface {
	Store(ctx context.Context, event *Event) error
}
