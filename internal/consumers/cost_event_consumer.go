package consumers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"demeter/internal/domain/cost"
	"demeter/internal/metrics"
	"demeter/internal/services/aggregator"
	pkgerrors "demeter/pkg/errors"
	"demeter/pkg/logger"

	kafkaadapter "demeter/internal/adapters/kafka"
)

// Deduper tracks applied event ids so at-least-once redelivery never
// double-counts (typically Redis)
type Deduper interface {
	MarkIfNew(ctx context.Context, eventID string) (bool, error)
	Unmark(ctx context.Context, eventID string) error
}

// Archiver buffers raw events into the archive store (typically ClickHouse)
type Archiver interface {
	Start(ctx context.Context)
	Stop(ctx context.Context) error
	Store(ctx context.Context, event *cost.Event) error
}

// DeadLetterPublisher routes unprocessable messages to the dead-letter topic
type DeadLetterPublisher interface {
	PublishDeadLetter(ctx context.Context, key, stage, reason string, payload []byte) error
}

// CostEventConsumerConfig bounds the retry behavior for transient storage failures
type CostEventConsumerConfig struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

// CostEventConsumer reads cost events from Kafka, validates and deduplicates
// them, applies them to the daily aggregates, and archives the raw event.
// Errors are contained: the consumer loop never crashes on a bad message.
type CostEventConsumer struct {
	consumer   *kafkaadapter.Consumer
	aggregator *aggregator.Service
	archive    Archiver
	dedup      Deduper
	publisher  DeadLetterPublisher
	cfg        CostEventConsumerConfig
	log        *logger.Logger
}

// costEventMessage is the wire shape of a cost event. Monetary amounts are
// string-encoded decimals to avoid floating-point drift.
type costEventMessage struct {
	EventID         string    `json:"event_id"`
	CostType        string    `json:"cost_type"`
	AmountUSD       string    `json:"amount_usd"`
	Quantity        int64     `json:"quantity"`
	OccurredAt      time.Time `json:"occurred_at"`
	AgentType       string    `json:"agent_type,omitempty"`
	Model           string    `json:"model,omitempty"`
	KnowledgeDomain string    `json:"knowledge_domain,omitempty"`
}

// NewCostEventConsumer creates a new cost event consumer
func NewCostEventConsumer(
	consumer *kafkaadapter.Consumer,
	agg *aggregator.Service,
	archive Archiver,
	dedup Deduper,
	publisher DeadLetterPublisher,
	cfg CostEventConsumerConfig,
) *CostEventConsumer {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}

	return &CostEventConsumer{
		consumer:   consumer,
		aggregator: agg,
		archive:    archive,
		dedup:      dedup,
		publisher:  publisher,
		cfg:        cfg,
		log:        logger.Get().With("component", "cost_event_consumer"),
	}
}

// Start begins consuming cost events. Blocks until ctx is cancelled.
func (c *CostEventConsumer) Start(ctx context.Context) error {
	c.log.Info("Starting cost event consumer...")

	// Archive writes are buffered, start the background flush loop
	c.archive.Start(ctx)

	defer func() {
		c.log.Info("Closing cost event consumer...")
		if err := c.consumer.Close(); err != nil {
			c.log.Error("Failed to close cost event consumer", "error", err)
		}
	}()

	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.archive.Stop(stopCtx); err != nil {
			c.log.Error("Failed to stop cost event archive", "error", err)
		}
	}()

	for {
		msg, err := c.consumer.ReadMessageWithShutdownCheck(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("Cost event consumer stopping (context cancelled)")
				return nil
			}
			c.log.Debug("Failed to read cost event", "error", err)
			continue
		}

		// Bounded processing time so shutdown is never blocked on one message
		processCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := c.handleMessage(processCtx, msg); err != nil {
			c.log.Error("Failed to handle cost event",
				"topic", msg.Topic,
				"error", err,
			)
		}
		cancel()

		// Finish the in-flight message before honoring shutdown
		if ctx.Err() != nil {
			c.log.Info("Cost event consumer stopping after processing current message")
			return nil
		}
	}
}

// handleMessage processes a single cost event message
func (c *CostEventConsumer) handleMessage(ctx context.Context, msg kafka.Message) error {
	var wire costEventMessage
	if err := json.Unmarshal(msg.Value, &wire); err != nil {
		metrics.EventsRejected.WithLabelValues("decode").Inc()
		return c.deadLetter(ctx, string(msg.Key), "decode", err, msg.Value)
	}

	event, err := cost.NewEvent(
		wire.EventID, wire.CostType, wire.AmountUSD, wire.Quantity, wire.OccurredAt,
		wire.AgentType, wire.Model, wire.KnowledgeDomain,
	)
	if err != nil {
		metrics.EventsRejected.WithLabelValues("validation").Inc()
		return c.deadLetter(ctx, wire.EventID, "validation", err, msg.Value)
	}

	// Dedup marker first: at-least-once delivery means redeliveries of an
	// already-applied event must be skipped. If Redis is down we proceed and
	// accept the double-count risk rather than stalling ingestion.
	fresh, err := c.dedup.MarkIfNew(ctx, event.EventID)
	if err != nil {
		c.log.Warnf("Dedup check failed, processing without dedup: %v", err)
		fresh = true
	}
	if !fresh {
		metrics.EventsDeduplicated.Inc()
		c.log.Debugw("Skipping duplicate cost event", "event_id", event.EventID)
		return nil
	}

	if err := c.recordWithRetry(ctx, event); err != nil {
		// Clear the marker so broker redelivery can retry this event
		if unmarkErr := c.dedup.Unmark(ctx, event.EventID); unmarkErr != nil {
			c.log.Warnf("Failed to clear dedup marker for %s: %v", event.EventID, unmarkErr)
		}
		metrics.EventsDeadLettered.WithLabelValues("storage").Inc()
		return c.deadLetter(ctx, event.EventID, "storage", err, msg.Value)
	}

	metrics.EventsConsumed.WithLabelValues(event.Type.String()).Inc()

	// Archive failures never undo aggregation
	if err := c.archive.Store(ctx, event); err != nil {
		c.log.Warnf("Failed to archive cost event %s: %v", event.EventID, err)
	}

	c.log.Debugw("Cost event processed",
		"event_id", event.EventID,
		"cost_type", event.Type,
		"amount_usd", event.AmountUSD.String(),
	)

	return nil
}

// recordWithRetry applies the event with bounded exponential backoff
func (c *CostEventConsumer) recordWithRetry(ctx context.Context, event *cost.Event) error {
	backoff := c.cfg.RetryBackoff

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		lastErr = c.aggregator.Record(ctx, event)
		if lastErr == nil {
			return nil
		}

		if attempt == c.cfg.MaxRetries {
			break
		}

		c.log.Warnf("Aggregate apply failed (attempt %d/%d), retrying in %v: %v",
			attempt, c.cfg.MaxRetries, backoff, lastErr)

		select {
		case <-ctx.Done():
			return pkgerrors.Wrap(ctx.Err(), "retry cancelled")
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return pkgerrors.Wrapf(lastErr, "exhausted %d attempts", c.cfg.MaxRetries)
}

// deadLetter routes an unprocessable message to the dead-letter topic. The
// message is acknowledged either way; poison messages are never retried
// indefinitely.
func (c *CostEventConsumer) deadLetter(ctx context.Context, key, stage string, cause error, payload []byte) error {
	if stage != "storage" {
		metrics.EventsDeadLettered.WithLabelValues(stage).Inc()
	}

	if err := c.publisher.PublishDeadLetter(ctx, key, stage, cause.Error(), payload); err != nil {
		// Nothing left but to drop: log loudly and move on
		c.log.Error("Failed to dead-letter cost event, dropping",
			"stage", stage,
			"cause", cause,
			"error", err,
		)
	}

	return nil
}
