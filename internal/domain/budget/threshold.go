package budget

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"demeter/pkg/errors"
)

// Threshold is the singleton budget policy: a ceiling on daily and monthly
// spend. Exactly one effective instance exists; Configure replaces it
// wholesale.
type Threshold struct {
	DailyThresholdUSD   decimal.Decimal `db:"daily_threshold_usd"`
	MonthlyThresholdUSD decimal.Decimal `db:"monthly_threshold_usd"`
	UpdatedAt           time.Time       `db:"updated_at"`
}

// NewThreshold validates string-encoded decimal thresholds and builds a
// Threshold. Both values must be strictly positive.
func NewThreshold(dailyUSD, monthlyUSD string) (*Threshold, error) {
	daily, err := decimal.NewFromString(dailyUSD)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidThreshold, "daily_threshold_usd %q is not a valid decimal", dailyUSD)
	}
	monthly, err := decimal.NewFromString(monthlyUSD)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidThreshold, "monthly_threshold_usd %q is not a valid decimal", monthlyUSD)
	}

	if !daily.IsPositive() {
		return nil, errors.Wrapf(errors.ErrInvalidThreshold, "daily_threshold_usd must be > 0, got %s", daily)
	}
	if !monthly.IsPositive() {
		return nil, errors.Wrapf(errors.ErrInvalidThreshold, "monthly_threshold_usd must be > 0, got %s", monthly)
	}

	return &Threshold{
		DailyThresholdUSD:   daily,
		MonthlyThresholdUSD: monthly,
		UpdatedAt:           time.Now().UTC(),
	}, nil
}

// ThresholdRepository persists the singleton threshold row
type ThresholdRepository interface {
	// Get returns the current threshold, or ErrNotFound when none was
	// configured yet
	Get(ctx context.Context) (*Threshold, error)

	// Replace stores t as the new effective threshold
	Replace(ctx context.Context, t *Threshold) error
}
