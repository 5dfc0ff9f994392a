package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"demeter/internal/domain/cost"
	pkgerrors "demeter/pkg/errors"
)

// Compile-time check
var _ cost.AggregateRepository = (*DailyAggregateRepository)(nil)

// DailyAggregateRepository implements cost.AggregateRepository using sqlx.
// All increments go through a single upsert so concurrent deliveries from
// multiple replicas never lose an update.
type DailyAggregateRepository struct {
	db *sqlx.DB
}

// NewDailyAggregateRepository creates a new daily aggregate repository
func NewDailyAggregateRepository(db *sqlx.DB) *DailyAggregateRepository {
	return &DailyAggregateRepository{db: db}
}

const incrementQuery = `
	INSERT INTO daily_aggregates (
		date, cost_type, dimension_key, dimension_value,
		total_cost_usd, total_quantity, request_count, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, 1, NOW()
	)
	ON CONFLICT (date, cost_type, dimension_key, dimension_value) DO UPDATE SET
		total_cost_usd = daily_aggregates.total_cost_usd + EXCLUDED.total_cost_usd,
		total_quantity = daily_aggregates.total_quantity + EXCLUDED.total_quantity,
		request_count  = daily_aggregates.request_count + 1,
		updated_at     = NOW()`

// Apply adds one event's contribution to the base row and each dimension row
// in a single transaction. The additions happen inside the upserts, not
// read-modify-write in Go, so concurrent replicas never lose an increment.
func (r *DailyAggregateRepository) Apply(ctx context.Context, date time.Time, costType cost.Type, dims []cost.Dimension, amountUSD decimal.Decimal, quantity int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to begin aggregate transaction")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	// Base row carries the canonical per-type total for the day
	if _, err := tx.ExecContext(ctx, incrementQuery, date, costType, "", "", amountUSD, quantity); err != nil {
		return pkgerrors.Wrap(err, "failed to increment base aggregate")
	}

	for _, dim := range dims {
		if _, err := tx.ExecContext(ctx, incrementQuery, date, costType, dim.Key, dim.Value, amountUSD, quantity); err != nil {
			return pkgerrors.Wrapf(err, "failed to increment %s aggregate", dim.Key)
		}
	}

	if err := tx.Commit(); err != nil {
		return pkgerrors.Wrap(err, "failed to commit aggregate transaction")
	}

	return nil
}

// TotalsByType returns per-type totals over the base rows in [start, end]
func (r *DailyAggregateRepository) TotalsByType(ctx context.Context, start, end time.Time) ([]cost.TypeTotal, error) {
	query := `
		SELECT cost_type,
		       SUM(total_cost_usd) AS total_cost_usd,
		       SUM(total_quantity) AS total_quantity,
		       SUM(request_count)  AS request_count
		FROM daily_aggregates
		WHERE date BETWEEN $1 AND $2 AND dimension_key = ''
		GROUP BY cost_type
		ORDER BY cost_type`

	var totals []cost.TypeTotal
	if err := r.db.SelectContext(ctx, &totals, query, start, end); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get totals by type")
	}

	return totals, nil
}

// DailyTotals returns one entry per day with events in [start, end]
func (r *DailyAggregateRepository) DailyTotals(ctx context.Context, start, end time.Time) ([]cost.TrendEntry, error) {
	query := `
		SELECT date,
		       SUM(total_cost_usd) AS total_cost_usd,
		       SUM(request_count)  AS request_count
		FROM daily_aggregates
		WHERE date BETWEEN $1 AND $2 AND dimension_key = ''
		GROUP BY date
		ORDER BY date`

	var entries []cost.TrendEntry
	if err := r.db.SelectContext(ctx, &entries, query, start, end); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get daily totals")
	}

	return entries, nil
}

// TotalsByDimension returns per-value totals for one cost type and dimension key
func (r *DailyAggregateRepository) TotalsByDimension(ctx context.Context, costType cost.Type, dimKey string, start, end time.Time) ([]cost.DimensionTotal, error) {
	query := `
		SELECT dimension_value,
		       SUM(total_cost_usd) AS total_cost_usd,
		       SUM(total_quantity) AS total_quantity,
		       SUM(request_count)  AS request_count
		FROM daily_aggregates
		WHERE cost_type = $1 AND dimension_key = $2 AND date BETWEEN $3 AND $4
		GROUP BY dimension_value
		ORDER BY SUM(total_cost_usd) DESC`

	var totals []cost.DimensionTotal
	if err := r.db.SelectContext(ctx, &totals, query, costType, dimKey, start, end); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get totals by dimension")
	}

	return totals, nil
}

// RangeTotal returns grand total cost and request count over the base rows in [start, end]
func (r *DailyAggregateRepository) RangeTotal(ctx context.Context, start, end time.Time) (decimal.Decimal, int64, error) {
	query := `
		SELECT COALESCE(SUM(total_cost_usd), 0) AS total_cost_usd,
		       COALESCE(SUM(request_count), 0)  AS request_count
		FROM daily_aggregates
		WHERE date BETWEEN $1 AND $2 AND dimension_key = ''`

	var row struct {
		TotalCostUSD decimal.Decimal `db:"total_cost_usd"`
		RequestCount int64           `db:"request_count"`
	}
	if err := r.db.GetContext(ctx, &row, query, start, end); err != nil {
		return decimal.Zero, 0, pkgerrors.Wrap(err, "failed to get range total")
	}

	return row.TotalCostUSD, row.RequestCount, nil
}

// PurgeOlderThan deletes aggregate rows with date before cutoff
func (r *DailyAggregateRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM daily_aggregates WHERE date < $1`, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "failed to purge daily aggregates")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, pkgerrors.Wrap(err, "failed to read purge row count")
	}

	return rows, nil
}
