package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	kafkaadapter "demeter/internal/adapters/kafka"
	"demeter/pkg/errors"
	"demeter/pkg/logger"
)

// DeadLetterEnvelope wraps an unprocessable cost event with failure metadata.
// The original payload is carried unchanged for later inspection or replay.
type DeadLetterEnvelope struct {
	ID       string          `json:"id"`
	Stage    string          `json:"stage"` // decode|validation|storage
	Reason   string          `json:"reason"`
	FailedAt time.Time       `json:"failed_at"`
	Payload  json.RawMessage `json:"payload"`
}

// BudgetAlertEvent signals that a spend threshold was crossed
type BudgetAlertEvent struct {
	AlertID        string    `json:"alert_id"`
	Period         string    `json:"period"` // daily|monthly
	PeriodStart    string    `json:"period_start"`
	TotalCostUSD   string    `json:"total_cost_usd"`
	ThresholdUSD   string    `json:"threshold_usd"`
	UtilizationPct string    `json:"utilization_pct"`
	TriggeredAt    time.Time `json:"triggered_at"`
}

// Publisher publishes demeter's outbound events to Kafka
type Publisher struct {
	producer *kafkaadapter.Producer
	log      *logger.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(producer *kafkaadapter.Producer) *Publisher {
	return &Publisher{
		producer: producer,
		log:      logger.Get().With("component", "event_publisher"),
	}
}

// PublishDeadLetter sends an unprocessable message to the dead-letter topic
func (p *Publisher) PublishDeadLetter(ctx context.Context, key, stage, reason string, payload []byte) error {
	envelope := DeadLetterEnvelope{
		ID:       uuid.NewString(),
		Stage:    stage,
		Reason:   reason,
		FailedAt: time.Now().UTC(),
		Payload:  rawPayload(payload),
	}

	if err := p.producer.Publish(ctx, kafkaadapter.TopicCostEventsDeadLetter, key, envelope); err != nil {
		return errors.Wrap(err, "failed to publish dead letter")
	}

	p.log.Warnw("Cost event dead-lettered",
		"stage", stage,
		"reason", reason,
		"key", key,
	)

	return nil
}

// PublishBudgetAlert sends a threshold-crossed alert
func (p *Publisher) PublishBudgetAlert(ctx context.Context, alert *BudgetAlertEvent) error {
	if alert.AlertID == "" {
		alert.AlertID = uuid.NewString()
	}

	if err := p.producer.Publish(ctx, kafkaadapter.TopicBudgetAlerts, alert.Period, alert); err != nil {
		return errors.Wrap(err, "failed to publish budget alert")
	}

	p.log.Infow("Budget alert published",
		"period", alert.Period,
		"total_usd", alert.TotalCostUSD,
		"threshold_usd", alert.ThresholdUSD,
	)

	return nil
}

// rawPayload keeps valid JSON intact and quotes anything else so the
// envelope itself always marshals
func rawPayload(payload []byte) json.RawMessage {
	if json.Valid(payload) {
		return json.RawMessage(payload)
	}
	quoted, _ := json.Marshal(string(payload))
	return json.RawMessage(quoted)
}
