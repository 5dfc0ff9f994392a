package budget

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demeter/pkg/errors"
)

func TestNewThreshold(t *testing.T) {
	tests := []struct {
		name    string
		daily   string
		monthly string
		wantErr bool
	}{
		{name: "valid", daily: "50", monthly: "1000"},
		{name: "valid decimals", daily: "12.5", monthly: "380.75"},
		{name: "zero daily", daily: "0", monthly: "1000", wantErr: true},
		{name: "negative monthly", daily: "50", monthly: "-1", wantErr: true},
		{name: "non-decimal daily", daily: "fifty", monthly: "1000", wantErr: true},
		{name: "empty monthly", daily: "50", monthly: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			threshold, err := NewThreshold(tt.daily, tt.monthly)

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrInvalidThreshold))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.daily, threshold.DailyThresholdUSD.String())
			assert.Equal(t, tt.monthly, threshold.MonthlyThresholdUSD.String())
			assert.False(t, threshold.UpdatedAt.IsZero())
		})
	}
}

func TestEvaluatePeriod(t *testing.T) {
	periodStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("under threshold", func(t *testing.T) {
		ps := EvaluatePeriod(periodStart, dec("25"), dec("50"))

		assert.False(t, ps.AlertTriggered)
		assert.Equal(t, "50", ps.UtilizationPct.String())
		assert.Equal(t, "50", ps.DisplayPct.String())
		assert.Equal(t, "25", ps.RemainingUSD.String())
	})

	t.Run("alert fires at exact equality", func(t *testing.T) {
		ps := EvaluatePeriod(periodStart, dec("50"), dec("50"))

		assert.True(t, ps.AlertTriggered)
		assert.Equal(t, "100", ps.UtilizationPct.String())
		assert.True(t, ps.RemainingUSD.IsZero())
	})

	t.Run("overage keeps utilization uncapped", func(t *testing.T) {
		ps := EvaluatePeriod(periodStart, dec("75"), dec("50"))

		assert.True(t, ps.AlertTriggered)
		assert.Equal(t, "150", ps.UtilizationPct.String())
		assert.Equal(t, "100", ps.DisplayPct.String())
		assert.Equal(t, "-25", ps.RemainingUSD.String())
	})

	t.Run("zero spend", func(t *testing.T) {
		ps := EvaluatePeriod(periodStart, decimal.Zero, dec("50"))

		assert.False(t, ps.AlertTriggered)
		assert.True(t, ps.UtilizationPct.IsZero())
		assert.Equal(t, "50", ps.RemainingUSD.String())
	})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
