package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demeter/internal/domain/cost"
	"demeter/internal/testsupport"
)

func setupAggregateRepo(t *testing.T) *DailyAggregateRepository {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	require.NoError(t, EnsureSchema(context.Background(), testDB.DB()))

	return NewDailyAggregateRepository(testDB.DB())
}

// cleanupDates removes aggregate rows for the given dates after the test
func cleanupDates(t *testing.T, repo *DailyAggregateRepository, dates ...time.Time) {
	t.Helper()
	t.Cleanup(func() {
		for _, d := range dates {
			_, _ = repo.db.ExecContext(context.Background(),
				"DELETE FROM daily_aggregates WHERE date = $1", d)
		}
	})
}

func TestDailyAggregateApplyAccumulates(t *testing.T) {
	repo := setupAggregateRepo(t)
	ctx := context.Background()

	day := time.Date(2001, 6, 15, 0, 0, 0, 0, time.UTC)
	cleanupDates(t, repo, day)

	dims := []cost.Dimension{
		{Key: cost.DimensionAgentType, Value: "quality_auditor"},
		{Key: cost.DimensionModel, Value: "gpt-4o"},
	}

	require.NoError(t, repo.Apply(ctx, day, cost.TypeLLM, dims, decimal.RequireFromString("0.25"), 1000))
	require.NoError(t, repo.Apply(ctx, day, cost.TypeLLM, dims, decimal.RequireFromString("0.75"), 3000))
	require.NoError(t, repo.Apply(ctx, day, cost.TypeSMS, nil, decimal.RequireFromString("0.01"), 1))

	totals, err := repo.TotalsByType(ctx, day, day)
	require.NoError(t, err)
	require.Len(t, totals, 2)

	byType := make(map[cost.Type]cost.TypeTotal)
	for _, tt := range totals {
		byType[tt.CostType] = tt
	}

	assert.True(t, byType[cost.TypeLLM].TotalCostUSD.Equal(decimal.RequireFromString("1")))
	assert.Equal(t, int64(4000), byType[cost.TypeLLM].TotalQuantity)
	assert.Equal(t, int64(2), byType[cost.TypeLLM].RequestCount)
	assert.Equal(t, int64(1), byType[cost.TypeSMS].RequestCount)

	// Dimension rows are projections of the same events
	byModel, err := repo.TotalsByDimension(ctx, cost.TypeLLM, cost.DimensionModel, day, day)
	require.NoError(t, err)
	require.Len(t, byModel, 1)
	assert.Equal(t, "gpt-4o", byModel[0].Value)
	assert.True(t, byModel[0].TotalCostUSD.Equal(decimal.RequireFromString("1")))

	total, requests, err := repo.RangeTotal(ctx, day, day)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("1.01")))
	assert.Equal(t, int64(3), requests)
}

func TestDailyAggregateDailyTotals(t *testing.T) {
	repo := setupAggregateRepo(t)
	ctx := context.Background()

	day1 := time.Date(2001, 7, 1, 0, 0, 0, 0, time.UTC)
	day3 := time.Date(2001, 7, 3, 0, 0, 0, 0, time.UTC)
	cleanupDates(t, repo, day1, day3)

	require.NoError(t, repo.Apply(ctx, day1, cost.TypeDocument, nil, decimal.RequireFromString("2"), 10))
	require.NoError(t, repo.Apply(ctx, day3, cost.TypeDocument, nil, decimal.RequireFromString("3"), 12))

	rows, err := repo.DailyTotals(ctx, day1, day3)
	require.NoError(t, err)
	require.Len(t, rows, 2, "days without events come back empty, not zero-filled")
	assert.True(t, rows[0].Date.Before(rows[1].Date))
}

func TestDailyAggregatePurgeOlderThan(t *testing.T) {
	repo := setupAggregateRepo(t)
	ctx := context.Background()

	old := time.Date(2000, 1, 10, 0, 0, 0, 0, time.UTC)
	kept := time.Date(2000, 1, 20, 0, 0, 0, 0, time.UTC)
	cleanupDates(t, repo, old, kept)

	require.NoError(t, repo.Apply(ctx, old, cost.TypeEmbedding, nil, decimal.RequireFromString("1"), 1))
	require.NoError(t, repo.Apply(ctx, kept, cost.TypeEmbedding, nil, decimal.RequireFromString("1"), 1))

	purged, err := repo.PurgeOlderThan(ctx, kept)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, purged, int64(1))

	total, _, err := repo.RangeTotal(ctx, old, old)
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	total, _, err = repo.RangeTotal(ctx, kept, kept)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("1")))
}
