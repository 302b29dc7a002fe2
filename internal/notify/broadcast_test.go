package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mpetrov/slotplan/internal/notify"
	"github.com/mpetrov/slotplan/testutil"
)

// TestBroadcaster_TasksChanged is an integration test against a real Redis
// instance; it is skipped automatically when TEST_REDIS_ADDR is not set.
func TestBroadcaster_TasksChanged(t *testing.T) {
	client := testutil.NewRedisClient(t)
	ctx := context.Background()
	owner := uuid.NewString()

	sub := client.Subscribe(ctx, notify.TasksChangedChannel(owner))
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err, "confirm subscription")

	notify.NewBroadcaster(client, nil).TasksChanged(ctx, owner)

	select {
	case msg := <-sub.Channel():
		require.Equal(t, notify.TasksChangedChannel(owner), msg.Channel)
	case <-time.After(2 * time.Second):
		t.Fatal("no broadcast received")
	}
}
