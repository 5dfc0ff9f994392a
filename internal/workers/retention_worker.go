package workers

import (
	"context"
	"time"

	"demeter/internal/domain/cost"
	"demeter/internal/metrics"
	"demeter/internal/services/aggregator"
	"demeter/pkg/errors"
)

// RetentionWorker purges daily aggregates that fell out of the retention
// window. Raw cost events need no worker: the ClickHouse table TTL handles
// them natively.
type RetentionWorker struct {
	*BaseWorker
	aggregates cost.AggregateRepository
	aggregator *aggregator.Service
}

// NewRetentionWorker creates a new retention worker
func NewRetentionWorker(
	aggregates cost.AggregateRepository,
	agg *aggregator.Service,
	interval time.Duration,
) *RetentionWorker {
	return &RetentionWorker{
		BaseWorker: NewBaseWorker("retention", interval, true),
		aggregates: aggregates,
		aggregator: agg,
	}
}

// Run deletes aggregate rows older than the earliest retained date
func (w *RetentionWorker) Run(ctx context.Context) error {
	cutoff := w.aggregator.EarliestRetainedDate()

	purged, err := w.aggregates.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return errors.Wrap(err, "retention purge failed")
	}

	if purged > 0 {
		metrics.AggregatesPurged.Add(float64(purged))
		w.Log().Infow("Purged expired daily aggregates",
			"rows", purged,
			"cutoff", cutoff.Format("2006-01-02"),
		)
	}

	return nil
}
