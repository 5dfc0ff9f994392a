package budget

import (
	"context"
	"time"

	"demeter/internal/domain/budget"
	"demeter/internal/services/aggregator"
	pkgerrors "demeter/pkg/errors"
	"demeter/pkg/logger"
)

// Service evaluates current spend against the configured budget thresholds
type Service struct {
	thresholds budget.ThresholdRepository
	aggregator *aggregator.Service
	defaults   *budget.Threshold
	log        *logger.Logger
}

// NewService creates a new budget service. defaults are used until a
// threshold is configured, so a fresh deployment answers Status immediately.
func NewService(
	thresholds budget.ThresholdRepository,
	agg *aggregator.Service,
	defaults *budget.Threshold,
) *Service {
	return &Service{
		thresholds: thresholds,
		aggregator: agg,
		defaults:   defaults,
		log:        logger.Get().With("component", "budget"),
	}
}

// Status computes the current day and month spend position against the
// effective threshold. Derived at query time, never persisted.
func (s *Service) Status(ctx context.Context) (*budget.Status, error) {
	threshold, usingDefaults, err := s.effectiveThreshold(ctx)
	if err != nil {
		return nil, err
	}

	today := s.aggregator.Today()
	monthStart := s.aggregator.MonthStartOf(today)

	dailyTotal, _, err := s.aggregator.RangeTotal(ctx, today, today)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to read daily total")
	}

	monthlyTotal, _, err := s.aggregator.RangeTotal(ctx, monthStart, today)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to read monthly total")
	}

	return &budget.Status{
		Date:          today,
		Daily:         budget.EvaluatePeriod(today, dailyTotal, threshold.DailyThresholdUSD),
		Monthly:       budget.EvaluatePeriod(monthStart, monthlyTotal, threshold.MonthlyThresholdUSD),
		UsingDefaults: usingDefaults,
		UpdatedAt:     time.Now().UTC(),
	}, nil
}

// Configure validates and stores a new threshold, replacing the previous one
// wholesale. Both values must be strictly positive decimal strings.
func (s *Service) Configure(ctx context.Context, dailyUSD, monthlyUSD string) (*budget.Threshold, error) {
	threshold, err := budget.NewThreshold(dailyUSD, monthlyUSD)
	if err != nil {
		return nil, err
	}

	if err := s.thresholds.Replace(ctx, threshold); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to store budget threshold")
	}

	s.log.Infow("Budget threshold configured",
		"daily_usd", threshold.DailyThresholdUSD.String(),
		"monthly_usd", threshold.MonthlyThresholdUSD.String(),
	)

	return threshold, nil
}

// effectiveThreshold returns the stored threshold, or the documented defaults
// when none was configured yet
func (s *Service) effectiveThreshold(ctx context.Context) (*budget.Threshold, bool, error) {
	threshold, err := s.thresholds.Get(ctx)
	if err == nil {
		return threshold, false, nil
	}
	if pkgerrors.Is(err, pkgerrors.ErrNotFound) {
		return s.defaults, true, nil
	}
	return nil, false, pkgerrors.Wrap(err, "failed to read budget threshold")
}
