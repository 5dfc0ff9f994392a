package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"demeter/internal/domain/budget"
	pkgerrors "demeter/pkg/errors"
)

// Compile-time check
var _ budget.ThresholdRepository = (*BudgetThresholdRepository)(nil)

// BudgetThresholdRepository persists the singleton budget threshold row
type BudgetThresholdRepository struct {
	db *sqlx.DB
}

// NewBudgetThresholdRepository creates a new budget threshold repository
func NewBudgetThresholdRepository(db *sqlx.DB) *BudgetThresholdRepository {
	return &BudgetThresholdRepository{db: db}
}

// Get retrieves the current threshold, ErrNotFound when none is configured yet
func (r *BudgetThresholdRepository) Get(ctx context.Context) (*budget.Threshold, error) {
	query := `
		SELECT daily_threshold_usd, monthly_threshold_usd, updated_at
		FROM budget_thresholds
		WHERE id = 1`

	var t budget.Threshold
	err := r.db.GetContext(ctx, &t, query)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get budget threshold")
	}

	return &t, nil
}

// Replace stores t as the new effective threshold (wholesale replacement)
func (r *BudgetThresholdRepository) Replace(ctx context.Context, t *budget.Threshold) error {
	query := `
		INSERT INTO budget_thresholds (id, daily_threshold_usd, monthly_threshold_usd, updated_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			daily_threshold_usd   = EXCLUDED.daily_threshold_usd,
			monthly_threshold_usd = EXCLUDED.monthly_threshold_usd,
			updated_at            = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		t.DailyThresholdUSD, t.MonthlyThresholdUSD, t.UpdatedAt,
	)

	if err != nil {
		return pkgerrors.Wrap(err, "failed to replace budget threshold")
	}

	return nil
}
