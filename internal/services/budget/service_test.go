package budget

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"demeter/internal/domain/budget"
	"demeter/internal/domain/cost"
	"demeter/internal/services/aggregator"
	"demeter/pkg/errors"
)

// MockThresholdRepository is a mock for budget.ThresholdRepository
type MockThresholdRepository struct {
	mock.Mock
}

func (m *MockThresholdRepository) Get(ctx context.Context) (*budget.Threshold, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*budget.Threshold), args.Error(1)
}

func (m *MockThresholdRepository) Replace(ctx context.Context, t *budget.Threshold) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

// stubAggregates answers RangeTotal from a fixed per-range table keyed by
// start date and errors on everything the budget service should not touch
type stubAggregates struct {
	cost.AggregateRepository
	totals map[string]string
}

func (s *stubAggregates) RangeTotal(_ context.Context, start, _ time.Time) (decimal.Decimal, int64, error) {
	raw, ok := s.totals[start.Format("2006-01-02")]
	if !ok {
		return decimal.Zero, 0, nil
	}
	return decimal.RequireFromString(raw), 1, nil
}

func newTestBudgetService(t *testing.T, thresholds budget.ThresholdRepository, totals map[string]string) *Service {
	t.Helper()

	agg, err := aggregator.NewService(&stubAggregates{totals: totals}, "UTC", 400)
	require.NoError(t, err)

	defaults, err := budget.NewThreshold("50", "1000")
	require.NoError(t, err)

	return NewService(thresholds, agg, defaults)
}

func TestStatusUsesDefaultsWhenUnconfigured(t *testing.T) {
	mockRepo := new(MockThresholdRepository)
	mockRepo.On("Get", mock.Anything).Return(nil, errors.ErrNotFound)
	svc := newTestBudgetService(t, mockRepo, nil)

	status, err := svc.Status(context.Background())
	require.NoError(t, err)

	assert.True(t, status.UsingDefaults)
	assert.Equal(t, "50", status.Daily.ThresholdUSD.String())
	assert.Equal(t, "1000", status.Monthly.ThresholdUSD.String())
	assert.False(t, status.Daily.AlertTriggered)
	mockRepo.AssertExpectations(t)
}

func TestStatusComputesBothPeriods(t *testing.T) {
	threshold, err := budget.NewThreshold("20", "400")
	require.NoError(t, err)

	mockRepo := new(MockThresholdRepository)
	mockRepo.On("Get", mock.Anything).Return(threshold, nil)

	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	svc := newTestBudgetService(t, mockRepo, map[string]string{
		today.Format("2006-01-02"):      "25",
		monthStart.Format("2006-01-02"): "100",
	})

	// Today and month start coincide on the 1st, making the daily figure win
	if today.Equal(monthStart) {
		t.Skip("first of the month: daily and monthly ranges share a start date")
	}

	status, err := svc.Status(context.Background())
	require.NoError(t, err)

	assert.False(t, status.UsingDefaults)
	assert.True(t, status.Daily.AlertTriggered)
	assert.Equal(t, "125", status.Daily.UtilizationPct.String())
	assert.Equal(t, "-5", status.Daily.RemainingUSD.String())

	assert.False(t, status.Monthly.AlertTriggered)
	assert.Equal(t, "25", status.Monthly.UtilizationPct.String())
	assert.Equal(t, monthStart, status.Monthly.PeriodStart)
	mockRepo.AssertExpectations(t)
}

func TestStatusPropagatesStorageError(t *testing.T) {
	threshold, _ := budget.NewThreshold("20", "400")
	mockRepo := new(MockThresholdRepository)
	mockRepo.On("Get", mock.Anything).Return(threshold, nil)

	agg, err := aggregator.NewService(&failingAggregates{}, "UTC", 400)
	require.NoError(t, err)
	svc := NewService(mockRepo, agg, threshold)

	_, err = svc.Status(context.Background())
	assert.Error(t, err)
}

type failingAggregates struct {
	cost.AggregateRepository
}

func (f *failingAggregates) RangeTotal(context.Context, time.Time, time.Time) (decimal.Decimal, int64, error) {
	return decimal.Zero, 0, errors.ErrUnavailable
}

func TestConfigure(t *testing.T) {
	var stored *budget.Threshold
	mockRepo := new(MockThresholdRepository)
	mockRepo.On("Replace", mock.Anything, mock.AnythingOfType("*budget.Threshold")).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*budget.Threshold)
		}).
		Return(nil)
	svc := newTestBudgetService(t, mockRepo, nil)

	threshold, err := svc.Configure(context.Background(), "75.50", "2000")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "75.5", stored.DailyThresholdUSD.String())
	assert.Equal(t, "2000", threshold.MonthlyThresholdUSD.String())
	mockRepo.AssertExpectations(t)
}

func TestConfigureRejectsNonPositive(t *testing.T) {
	mockRepo := new(MockThresholdRepository)
	svc := newTestBudgetService(t, mockRepo, nil)

	_, err := svc.Configure(context.Background(), "-5", "1000")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidThreshold))
	mockRepo.AssertNotCalled(t, "Replace", mock.Anything, mock.Anything)
}
