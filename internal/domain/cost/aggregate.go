package cost

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyAggregate is one incrementally maintained row per
// (date, cost_type, dimension). The row with an empty dimension is the
// canonical per-type total for the day; dimension rows are projections of the
// same events and sum to the base row per dimension key.
type DailyAggregate struct {
	Date           time.Time       `db:"date"`
	CostType       Type            `db:"cost_type"`
	DimensionKey   string          `db:"dimension_key"`
	DimensionValue string          `db:"dimension_value"`
	TotalCostUSD   decimal.Decimal `db:"total_cost_usd"`
	TotalQuantity  int64           `db:"total_quantity"`
	RequestCount   int64           `db:"request_count"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

// TypeTotal is the per-type slice of a summary
type TypeTotal struct {
	CostType      Type            `db:"cost_type"`
	TotalCostUSD  decimal.Decimal `db:"total_cost_usd"`
	TotalQuantity int64           `db:"total_quantity"`
	RequestCount  int64           `db:"request_count"`
	// Percentage of the summary's grand total, 0 when the grand total is 0
	Percentage decimal.Decimal `db:"-"`
}

// Summary is the aggregated answer for a date range
type Summary struct {
	StartDate    time.Time
	EndDate      time.Time
	TotalCostUSD decimal.Decimal
	RequestCount int64
	ByType       []TypeTotal
	// DataAvailableFrom is set when the requested range predates the
	// retention window; it holds the earliest retained date.
	DataAvailableFrom *time.Time
}

// TrendEntry is one calendar day of a trend; days without events are
// zero-filled so callers can render contiguous charts.
type TrendEntry struct {
	Date         time.Time       `db:"date"`
	TotalCostUSD decimal.Decimal `db:"total_cost_usd"`
	RequestCount int64           `db:"request_count"`
}

// Trend is a contiguous per-day series for a date range
type Trend struct {
	Entries           []TrendEntry
	DataAvailableFrom *time.Time
}

// DimensionTotal is one dimension value's share of a per-dimension breakdown
type DimensionTotal struct {
	Value         string          `db:"dimension_value"`
	TotalCostUSD  decimal.Decimal `db:"total_cost_usd"`
	TotalQuantity int64           `db:"total_quantity"`
	RequestCount  int64           `db:"request_count"`
	Percentage    decimal.Decimal `db:"-"`
}

// DimensionBreakdown is the aggregated per-dimension answer for a date range
type DimensionBreakdown struct {
	CostType          Type
	DimensionKey      string
	StartDate         time.Time
	EndDate           time.Time
	TotalCostUSD      decimal.Decimal
	Totals            []DimensionTotal
	DataAvailableFrom *time.Time
}
