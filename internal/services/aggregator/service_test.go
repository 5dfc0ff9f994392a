package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"demeter/internal/domain/cost"
	"demeter/pkg/errors"
)

// MockAggregateRepository is a mock for cost.AggregateRepository
type MockAggregateRepository struct {
	mock.Mock
}

func (m *MockAggregateRepository) Apply(ctx context.Context, date time.Time, costType cost.Type, dims []cost.Dimension, amountUSD decimal.Decimal, quantity int64) error {
	args := m.Called(ctx, date, costType, dims, amountUSD, quantity)
	return args.Error(0)
}

func (m *MockAggregateRepository) TotalsByType(ctx context.Context, start, end time.Time) ([]cost.TypeTotal, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]cost.TypeTotal), args.Error(1)
}

func (m *MockAggregateRepository) DailyTotals(ctx context.Context, start, end time.Time) ([]cost.TrendEntry, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]cost.TrendEntry), args.Error(1)
}

func (m *MockAggregateRepository) TotalsByDimension(ctx context.Context, costType cost.Type, dimKey string, start, end time.Time) ([]cost.DimensionTotal, error) {
	args := m.Called(ctx, costType, dimKey, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]cost.DimensionTotal), args.Error(1)
}

func (m *MockAggregateRepository) RangeTotal(ctx context.Context, start, end time.Time) (decimal.Decimal, int64, error) {
	args := m.Called(ctx, start, end)
	return args.Get(0).(decimal.Decimal), args.Get(1).(int64), args.Error(2)
}

func (m *MockAggregateRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func newTestService(t *testing.T, repo cost.AggregateRepository) *Service {
	t.Helper()
	svc, err := NewService(repo, "UTC", 400)
	require.NoError(t, err)
	return svc
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewServiceInvalidTimezone(t *testing.T) {
	_, err := NewService(new(MockAggregateRepository), "Mars/Olympus_Mons", 400)
	assert.Error(t, err)
}

func TestRecordBucketsByReferenceTimezone(t *testing.T) {
	var gotDate time.Time
	mockRepo := new(MockAggregateRepository)
	mockRepo.On("Apply", mock.Anything, mock.Anything, cost.TypeLLM, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			gotDate = args.Get(1).(time.Time)
		}).
		Return(nil)

	svc, err := NewService(mockRepo, "America/New_York", 400)
	require.NoError(t, err)

	// 02:30 UTC is still the previous evening in New York
	event, err := cost.NewEvent("evt-1", "llm", "0.10", 100,
		time.Date(2026, 3, 15, 2, 30, 0, 0, time.UTC), "", "", "")
	require.NoError(t, err)

	require.NoError(t, svc.Record(context.Background(), event))
	assert.Equal(t, date(2026, 3, 14), gotDate)
	mockRepo.AssertExpectations(t)
}

func TestSummarizeZeroFillsAllTypes(t *testing.T) {
	mockRepo := new(MockAggregateRepository)
	mockRepo.On("TotalsByType", mock.Anything, mock.Anything, mock.Anything).
		Return([]cost.TypeTotal{
			{CostType: cost.TypeLLM, TotalCostUSD: decimal.RequireFromString("30"), RequestCount: 3},
			{CostType: cost.TypeSMS, TotalCostUSD: decimal.RequireFromString("10"), RequestCount: 1},
		}, nil)
	svc := newTestService(t, mockRepo)

	summary, err := svc.Summarize(context.Background(), date(2026, 3, 1), date(2026, 3, 31))
	require.NoError(t, err)

	assert.Equal(t, "40", summary.TotalCostUSD.String())
	assert.Equal(t, int64(4), summary.RequestCount)
	require.Len(t, summary.ByType, len(cost.Types))

	byType := make(map[cost.Type]cost.TypeTotal, len(summary.ByType))
	for _, tt := range summary.ByType {
		byType[tt.CostType] = tt
	}

	assert.Equal(t, "75", byType[cost.TypeLLM].Percentage.String())
	assert.Equal(t, "25", byType[cost.TypeSMS].Percentage.String())
	assert.True(t, byType[cost.TypeDocument].TotalCostUSD.IsZero())
	assert.True(t, byType[cost.TypeEmbedding].Percentage.IsZero())
	assert.Nil(t, summary.DataAvailableFrom)
	mockRepo.AssertExpectations(t)
}

func TestSummarizeZeroGrandTotal(t *testing.T) {
	mockRepo := new(MockAggregateRepository)
	mockRepo.On("TotalsByType", mock.Anything, mock.Anything, mock.Anything).
		Return([]cost.TypeTotal{}, nil)
	svc := newTestService(t, mockRepo)

	summary, err := svc.Summarize(context.Background(), date(2026, 3, 1), date(2026, 3, 2))
	require.NoError(t, err)

	assert.True(t, summary.TotalCostUSD.IsZero())
	require.Len(t, summary.ByType, len(cost.Types))
	for _, tt := range summary.ByType {
		assert.True(t, tt.Percentage.IsZero())
	}
}

func TestSummarizeRejectsInvertedRange(t *testing.T) {
	svc := newTestService(t, new(MockAggregateRepository))

	_, err := svc.Summarize(context.Background(), date(2026, 3, 2), date(2026, 3, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRange))
}

func TestSummarizeClampsToRetention(t *testing.T) {
	var gotStart time.Time
	mockRepo := new(MockAggregateRepository)
	mockRepo.On("TotalsByType", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			gotStart = args.Get(1).(time.Time)
		}).
		Return([]cost.TypeTotal{}, nil)
	svc := newTestService(t, mockRepo)

	earliest := svc.EarliestRetainedDate()

	summary, err := svc.Summarize(context.Background(), earliest.AddDate(0, 0, -30), svc.Today())
	require.NoError(t, err)

	assert.Equal(t, earliest, gotStart)
	require.NotNil(t, summary.DataAvailableFrom)
	assert.Equal(t, earliest, *summary.DataAvailableFrom)
	mockRepo.AssertExpectations(t)
}

func TestSummarizeRangeFullyBeforeRetention(t *testing.T) {
	mockRepo := new(MockAggregateRepository)
	svc := newTestService(t, mockRepo)

	old := svc.EarliestRetainedDate().AddDate(0, 0, -10)
	summary, err := svc.Summarize(context.Background(), old.AddDate(0, 0, -5), old)
	require.NoError(t, err)

	mockRepo.AssertNotCalled(t, "TotalsByType", mock.Anything, mock.Anything, mock.Anything)
	assert.True(t, summary.TotalCostUSD.IsZero())
	require.NotNil(t, summary.DataAvailableFrom)
}

func TestDailyTrendZeroFillsMissingDays(t *testing.T) {
	mockRepo := new(MockAggregateRepository)
	mockRepo.On("DailyTotals", mock.Anything, mock.Anything, mock.Anything).
		Return([]cost.TrendEntry{
			{Date: date(2026, 3, 2), TotalCostUSD: decimal.RequireFromString("5.25"), RequestCount: 12},
		}, nil)
	svc := newTestService(t, mockRepo)

	trend, err := svc.DailyTrend(context.Background(), date(2026, 3, 1), date(2026, 3, 4))
	require.NoError(t, err)

	require.Len(t, trend.Entries, 4)
	assert.True(t, trend.Entries[0].TotalCostUSD.IsZero())
	assert.Equal(t, "5.25", trend.Entries[1].TotalCostUSD.String())
	assert.Equal(t, int64(12), trend.Entries[1].RequestCount)
	assert.True(t, trend.Entries[2].TotalCostUSD.IsZero())
	assert.Equal(t, date(2026, 3, 4), trend.Entries[3].Date)
	mockRepo.AssertExpectations(t)
}

func TestBreakdownByDimension(t *testing.T) {
	mockRepo := new(MockAggregateRepository)
	mockRepo.On("TotalsByDimension", mock.Anything, cost.TypeLLM, cost.DimensionAgentType, mock.Anything, mock.Anything).
		Return([]cost.DimensionTotal{
			{Value: "quality_auditor", TotalCostUSD: decimal.RequireFromString("8"), RequestCount: 4},
			{Value: "report_writer", TotalCostUSD: decimal.RequireFromString("2"), RequestCount: 1},
		}, nil)
	svc := newTestService(t, mockRepo)

	breakdown, err := svc.BreakdownByDimension(context.Background(),
		cost.TypeLLM, cost.DimensionAgentType, date(2026, 3, 1), date(2026, 3, 31))
	require.NoError(t, err)

	assert.Equal(t, "10", breakdown.TotalCostUSD.String())
	require.Len(t, breakdown.Totals, 2)
	assert.Equal(t, "80", breakdown.Totals[0].Percentage.String())
	assert.Equal(t, "20", breakdown.Totals[1].Percentage.String())
	mockRepo.AssertExpectations(t)
}

func TestBreakdownRejectsUnknownDimension(t *testing.T) {
	svc := newTestService(t, new(MockAggregateRepository))

	_, err := svc.BreakdownByDimension(context.Background(),
		cost.TypeLLM, "region", date(2026, 3, 1), date(2026, 3, 2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	_, err = svc.BreakdownByDimension(context.Background(),
		cost.Type("gpu"), cost.DimensionModel, date(2026, 3, 1), date(2026, 3, 2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestMonthStartOf(t *testing.T) {
	svc := newTestService(t, new(MockAggregateRepository))
	assert.Equal(t, date(2026, 2, 1), svc.MonthStartOf(date(2026, 2, 17)))
}
