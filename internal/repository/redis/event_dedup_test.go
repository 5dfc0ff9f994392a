package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demeter/internal/testsupport"
)

func TestEventDedupMarkIfNew(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client := testsupport.NewTestRedis(t)
	dedup := NewEventDedup(client, time.Minute)
	ctx := context.Background()

	fresh, err := dedup.MarkIfNew(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = dedup.MarkIfNew(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, fresh, "second delivery of the same id must be flagged")

	fresh, err = dedup.MarkIfNew(ctx, "evt-2")
	require.NoError(t, err)
	assert.True(t, fresh)

	// Unmark releases the id so a failed apply can be redelivered
	require.NoError(t, dedup.Unmark(ctx, "evt-1"))
	fresh, err = dedup.MarkIfNew(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, fresh)
}
