package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"demeter/internal/domain/cost"
	"demeter/pkg/clickhouse"
	"demeter/pkg/errors"
	"demeter/pkg/logger"
)

// Compile-time check
var _ cost.EventArchive = (*CostEventArchive)(nil)

// CostEventArchive stores raw cost events in ClickHouse through a batch
// writer. The table's engine TTL enforces the retention window, so no purge
// worker is needed for raw events.
type CostEventArchive struct {
	conn        driver.Conn
	batchWriter *clickhouse.BatchWriter[*cost.Event]
}

// NewCostEventArchive creates a new cost event archive with batch writer
func NewCostEventArchive(conn driver.Conn) *CostEventArchive {
	repo := &CostEventArchive{
		conn: conn,
	}

	repo.batchWriter = clickhouse.NewBatchWriter(clickhouse.BatchWriterConfig{
		TableName:    "cost_events",
		MaxBatchSize: 500,             // Flush every 500 records
		MaxAge:       5 * time.Second, // Or every 5 seconds
	}, repo.flushBatch)

	return repo
}

// EnsureSchema creates the cost_events table with the retention TTL
func (r *CostEventArchive) EnsureSchema(ctx context.Context, retentionDays int) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS cost_events (
			event_id         String,
			cost_type        LowCardinality(String),
			amount_usd       Decimal(18, 6),
			quantity         Int64,
			occurred_at      DateTime,
			agent_type       String,
			model            String,
			knowledge_domain String,
			received_at      DateTime
		) ENGINE = MergeTree()
		ORDER BY (occurred_at, cost_type)
		TTL occurred_at + INTERVAL %d DAY`, retentionDays)

	if err := r.conn.Exec(ctx, ddl); err != nil {
		return errors.Wrap(err, "failed to ensure cost_events schema")
	}

	return nil
}

// Start begins the background flush loop
func (r *CostEventArchive) Start(ctx context.Context) {
	r.batchWriter.Start(ctx)
}

// Stop gracefully shuts down the batch writer
func (r *CostEventArchive) Stop(ctx context.Context) error {
	return r.batchWriter.Stop(ctx)
}

// Store buffers a cost event for batch insert
func (r *CostEventArchive) Store(ctx context.Context, event *cost.Event) error {
	return r.batchWriter.Add(ctx, event)
}

// flushBatch performs one batch INSERT for all buffered rows. PrepareBatch
// accumulates rows in memory; the single network call happens in Send.
func (r *CostEventArchive) flushBatch(ctx context.Context, batch []*cost.Event) error {
	if len(batch) == 0 {
		return nil
	}

	log := logger.Get().With("component", "cost_event_batch")

	query := `
		INSERT INTO cost_events (
			event_id, cost_type, amount_usd, quantity, occurred_at,
			agent_type, model, knowledge_domain, received_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	start := time.Now()

	stmt, err := r.conn.PrepareBatch(ctx, query)
	if err != nil {
		return errors.Wrap(err, "failed to prepare batch")
	}
	defer stmt.Abort()

	for _, event := range batch {
		err := stmt.Append(
			event.EventID, event.Type.String(), event.AmountUSD, event.Quantity, event.OccurredAt,
			event.AgentType, event.Model, event.KnowledgeDomain, event.ReceivedAt,
		)
		if err != nil {
			return errors.Wrap(err, "failed to append to batch")
		}
	}

	if err := stmt.Send(); err != nil {
		return errors.Wrap(err, "failed to send batch")
	}

	log.Infof("Batch inserted %d cost events in %v", len(batch), time.Since(start))
	return nil
}
