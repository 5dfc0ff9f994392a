package cost

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"demeter/pkg/errors"
)

// Type classifies a unit of platform spend
type Type string

const (
	TypeLLM       Type = "llm"       // LLM token usage
	TypeDocument  Type = "document"  // document processing pages
	TypeEmbedding Type = "embedding" // embedding generation
	TypeSMS       Type = "sms"       // SMS notification sends
)

// Types lists all known cost types in display order
var Types = []Type{TypeLLM, TypeDocument, TypeEmbedding, TypeSMS}

// Valid reports whether t is a known cost type
func (t Type) Valid() bool {
	switch t {
	case TypeLLM, TypeDocument, TypeEmbedding, TypeSMS:
		return true
	}
	return false
}

func (t Type) String() string {
	return string(t)
}

// Dimension keys recognized on cost events
const (
	DimensionAgentType       = "agent_type"
	DimensionModel           = "model"
	DimensionKnowledgeDomain = "knowledge_domain"
)

// Dimension is an optional secondary grouping key for a cost event
type Dimension struct {
	Key   string
	Value string
}

// Event is a single immutable recorded unit of platform spend.
// Events are produced by upstream services, delivered at-least-once, and
// deduplicated by EventID before aggregation.
type Event struct {
	EventID    string          `json:"event_id" ch:"event_id"`
	Type       Type            `json:"cost_type" ch:"cost_type"`
	AmountUSD  decimal.Decimal `json:"amount_usd" ch:"amount_usd"`
	Quantity   int64           `json:"quantity" ch:"quantity"`
	OccurredAt time.Time       `json:"occurred_at" ch:"occurred_at"`

	// Optional dimensions
	AgentType       string `json:"agent_type,omitempty" ch:"agent_type"`
	Model           string `json:"model,omitempty" ch:"model"`
	KnowledgeDomain string `json:"knowledge_domain,omitempty" ch:"knowledge_domain"`

	ReceivedAt time.Time `json:"-" ch:"received_at"`
}

// NewEvent validates raw event fields and builds an Event.
// amountUSD is a string-encoded decimal to avoid floating-point drift on the wire.
func NewEvent(eventID, costType, amountUSD string, quantity int64, occurredAt time.Time, agentType, model, knowledgeDomain string) (*Event, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, errors.NewValidationError("event_id", "must not be empty", eventID)
	}

	typ := Type(costType)
	if !typ.Valid() {
		return nil, errors.NewValidationError("cost_type", "unknown cost type", costType)
	}

	amount, err := decimal.NewFromString(amountUSD)
	if err != nil {
		return nil, errors.NewValidationError("amount_usd", "not a valid decimal", amountUSD)
	}
	if amount.IsNegative() {
		return nil, errors.NewValidationError("amount_usd", "must not be negative", amountUSD)
	}

	if quantity < 0 {
		return nil, errors.NewValidationError("quantity", "must not be negative", quantity)
	}

	if occurredAt.IsZero() {
		return nil, errors.NewValidationError("occurred_at", "must be set", occurredAt)
	}

	return &Event{
		EventID:         eventID,
		Type:            typ,
		AmountUSD:       amount,
		Quantity:        quantity,
		OccurredAt:      occurredAt,
		AgentType:       agentType,
		Model:           model,
		KnowledgeDomain: knowledgeDomain,
		ReceivedAt:      time.Now().UTC(),
	}, nil
}

// Dimensions returns the populated dimension pairs of the event
func (e *Event) Dimensions() []Dimension {
	dims := make([]Dimension, 0, 3)
	if e.AgentType != "" {
		dims = append(dims, Dimension{Key: DimensionAgentType, Value: e.AgentType})
	}
	if e.Model != "" {
		dims = append(dims, Dimension{Key: DimensionModel, Value: e.Model})
	}
	if e.KnowledgeDomain != "" {
		dims = append(dims, Dimension{Key: DimensionKnowledgeDomain, Value: e.KnowledgeDomain})
	}
	return dims
}
