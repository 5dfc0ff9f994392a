package cost

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demeter/pkg/errors"
)

func TestNewEvent(t *testing.T) {
	occurredAt := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		eventID   string
		costType  string
		amountUSD string
		quantity  int64
		occurred  time.Time
		wantField string
	}{
		{
			name:      "valid llm event",
			eventID:   "evt-1",
			costType:  "llm",
			amountUSD: "0.00235",
			quantity:  1200,
			occurred:  occurredAt,
		},
		{
			name:      "valid zero amount",
			eventID:   "evt-2",
			costType:  "sms",
			amountUSD: "0",
			quantity:  1,
			occurred:  occurredAt,
		},
		{
			name:      "empty event id",
			eventID:   "  ",
			costType:  "llm",
			amountUSD: "1.00",
			quantity:  1,
			occurred:  occurredAt,
			wantField: "event_id",
		},
		{
			name:      "unknown cost type",
			eventID:   "evt-3",
			costType:  "gpu",
			amountUSD: "1.00",
			quantity:  1,
			occurred:  occurredAt,
			wantField: "cost_type",
		},
		{
			name:      "non-decimal amount",
			eventID:   "evt-4",
			costType:  "document",
			amountUSD: "1.2.3",
			quantity:  1,
			occurred:  occurredAt,
			wantField: "amount_usd",
		},
		{
			name:      "negative amount",
			eventID:   "evt-5",
			costType:  "embedding",
			amountUSD: "-0.01",
			quantity:  1,
			occurred:  occurredAt,
			wantField: "amount_usd",
		},
		{
			name:      "negative quantity",
			eventID:   "evt-6",
			costType:  "llm",
			amountUSD: "0.01",
			quantity:  -5,
			occurred:  occurredAt,
			wantField: "quantity",
		},
		{
			name:      "zero occurred_at",
			eventID:   "evt-7",
			costType:  "llm",
			amountUSD: "0.01",
			quantity:  1,
			wantField: "occurred_at",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := NewEvent(tt.eventID, tt.costType, tt.amountUSD, tt.quantity, tt.occurred, "", "", "")

			if tt.wantField != "" {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrInvalidInput))

				var verr *errors.ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, tt.wantField, verr.Field)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.eventID, event.EventID)
			assert.Equal(t, Type(tt.costType), event.Type)
			assert.Equal(t, tt.amountUSD, event.AmountUSD.String())
			assert.False(t, event.ReceivedAt.IsZero())
		})
	}
}

func TestEventDimensions(t *testing.T) {
	occurredAt := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	event, err := NewEvent("evt-1", "llm", "0.05", 800, occurredAt, "quality_auditor", "gpt-4o", "")
	require.NoError(t, err)

	dims := event.Dimensions()
	require.Len(t, dims, 2)
	assert.Equal(t, Dimension{Key: DimensionAgentType, Value: "quality_auditor"}, dims[0])
	assert.Equal(t, Dimension{Key: DimensionModel, Value: "gpt-4o"}, dims[1])

	bare, err := NewEvent("evt-2", "sms", "0.01", 1, occurredAt, "", "", "")
	require.NoError(t, err)
	assert.Empty(t, bare.Dimensions())
}

func TestTypeValid(t *testing.T) {
	for _, typ := range Types {
		assert.True(t, typ.Valid(), typ)
	}
	assert.False(t, Type("").Valid())
	assert.False(t, Type("storage").Valid())
}
