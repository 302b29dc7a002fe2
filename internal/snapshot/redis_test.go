package snapshot_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpetrov/slotplan/internal/snapshot"
	"github.com/mpetrov/slotplan/testutil"
)

// Redis integration tests are skipped automatically when TEST_REDIS_ADDR is
// not set. Each test uses a random owner id so runs never collide on a
// shared Redis.

func TestRedisStore_SaveLoadRoundTrip(t *testing.T) {
	client := testutil.NewRedisClient(t)
	s := snapshot.NewRedisStore(client)
	ctx := context.Background()
	owner := "owner-" + uuid.NewString()

	require.NoError(t, s.Save(ctx, snapshot.Snapshot{OwnerID: owner, Labels: []string{"9:00 AM - 10:00 AM"}}))

	got, ok, err := s.Load(ctx, owner)

	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"9:00 AM - 10:00 AM"}, got.Labels)
}

func TestRedisStore_Load_Missing(t *testing.T) {
	client := testutil.NewRedisClient(t)
	s := snapshot.NewRedisStore(client)

	_, ok, err := s.Load(context.Background(), "owner-"+uuid.NewString())

	require.NoError(t, err)
	assert.False(t, ok)
}

// TestRedisStore_Watch verifies the pub/sub notification path: a save from
// one store instance signals a watcher on another, while a store's own
// saves are suppressed.
func TestRedisStore_Watch(t *testing.T) {
	client := testutil.NewRedisClient(t)
	reader := snapshot.NewRedisStore(client)
	writer := snapshot.NewRedisStore(client)
	owner := "owner-" + uuid.NewString()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	readerCh, err := reader.Watch(ctx, owner)
	require.NoError(t, err)
	writerCh, err := writer.Watch(ctx, owner)
	require.NoError(t, err)

	require.NoError(t, writer.Save(context.Background(), snapshot.Snapshot{OwnerID: owner}))

	select {
	case <-readerCh:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a change signal for a foreign save")
	}

	select {
	case <-writerCh:
		t.Fatal("own save must not signal the writer's watcher")
	case <-time.After(100 * time.Millisecond):
	}
}
