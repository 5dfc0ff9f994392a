package redis

import (
	"context"
	"time"

	redisclient "demeter/internal/adapters/redis"
	"demeter/pkg/errors"
)

const dedupKeyPrefix = "costs:dedup:"

// EventDedup tracks applied event ids so at-least-once broker redelivery
// never double-counts an event. Markers expire after the configured TTL,
// which must exceed the broker's redelivery window.
type EventDedup struct {
	client *redisclient.Client
	ttl    time.Duration
}

// NewEventDedup creates a new event dedup store
func NewEventDedup(client *redisclient.Client, ttl time.Duration) *EventDedup {
	return &EventDedup{
		client: client,
		ttl:    ttl,
	}
}

// MarkIfNew atomically records the event id and reports whether it was new.
// Returns false when the id was already applied.
func (d *EventDedup) MarkIfNew(ctx context.Context, eventID string) (bool, error) {
	ok, err := d.client.SetNX(ctx, dedupKeyPrefix+eventID, 1, d.ttl)
	if err != nil {
		return false, errors.Wrap(err, "failed to set dedup marker")
	}
	return ok, nil
}

// Unmark removes the marker so a failed apply can be retried on redelivery
func (d *EventDedup) Unmark(ctx context.Context, eventID string) error {
	if err := d.client.Delete(ctx, dedupKeyPrefix+eventID); err != nil {
		return errors.Wrap(err, "failed to delete dedup marker")
	}
	return nil
}
