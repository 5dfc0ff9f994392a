package clickhouse

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchWriter_FlushOnMaxSize(t *testing.T) {
	flushed := make([][]string, 0)
	var mu sync.Mutex

	flushFunc := func(ctx context.Context, batch []string) error {
		mu.Lock()
		defer mu.Unlock()
		flushed = append(flushed, batch)
		return nil
	}

	bw := NewBatchWriter(BatchWriterConfig{
		TableName:    "cost_events",
		MaxBatchSize: 3,
		MaxAge:       10 * time.Second, // Long enough to not trigger
	}, flushFunc)

	ctx := context.Background()

	// Third Add crosses MaxBatchSize and must flush
	require.NoError(t, bw.Add(ctx, "item1"))
	require.NoError(t, bw.Add(ctx, "item2"))
	require.NoError(t, bw.Add(ctx, "item3"))

	mu.Lock()
	assert.Equal(t, 1, len(flushed), "Should have flushed once")
	assert.Equal(t, 3, len(flushed[0]), "Batch should contain 3 items")
	mu.Unlock()

	assert.Equal(t, 0, bw.BufferSize())
}

func TestBatchWriter_FlushOnTimer(t *testing.T) {
	flushed := make([][]string, 0)
	var mu sync.Mutex

	flushFunc := func(ctx context.Context, batch []string) error {
		mu.Lock()
		defer mu.Unlock()
		flushed = append(flushed, batch)
		return nil
	}

	bw := NewBatchWriter(BatchWriterConfig{
		TableName:    "cost_events",
		MaxBatchSize: 100,                    // High enough to not trigger by size
		MaxAge:       100 * time.Millisecond, // Short interval for testing
	}, flushFunc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bw.Start(ctx)

	require.NoError(t, bw.Add(ctx, "item1"))
	require.NoError(t, bw.Add(ctx, "item2"))

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	assert.GreaterOrEqual(t, len(flushed), 1, "Should have flushed at least once")
	if len(flushed) > 0 {
		assert.Equal(t, 2, len(flushed[0]), "Batch should contain 2 items")
	}
	mu.Unlock()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, bw.Stop(stopCtx))
}

func TestBatchWriter_GracefulStop(t *testing.T) {
	flushed := make([][]string, 0)
	var mu sync.Mutex

	flushFunc := func(ctx context.Context, batch []string) error {
		mu.Lock()
		defer mu.Unlock()
		flushed = append(flushed, batch)
		return nil
	}

	bw := NewBatchWriter(BatchWriterConfig{
		TableName:    "cost_events",
		MaxBatchSize: 100,
		MaxAge:       10 * time.Second,
	}, flushFunc)

	ctx := context.Background()
	bw.Start(ctx)

	// Items still buffered when Stop is called must be flushed
	require.NoError(t, bw.Add(ctx, "item1"))
	require.NoError(t, bw.Add(ctx, "item2"))

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, bw.Stop(stopCtx))

	mu.Lock()
	assert.Equal(t, 1, len(flushed), "Stop should trigger a final flush")
	assert.Equal(t, 2, len(flushed[0]))
	mu.Unlock()

	// Stop is idempotent
	require.NoError(t, bw.Stop(stopCtx))
}
