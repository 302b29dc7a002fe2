package notify

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// tasksChangedPrefix is the per-owner pub/sub channel the API server
// publishes on after a write. Watching sync processes and other server
// instances subscribe to learn that the owner's task set moved.
const tasksChangedPrefix = "slotplan:tasks-changed:"

// Broadcaster publishes task-change notifications over Redis pub/sub.
// Publishing is best-effort: a failed publish is logged and swallowed,
// because the write it announces has already been committed.
type Broadcaster struct {
	client *redis.Client
	log    *slog.Logger
}

// NewBroadcaster constructs a Broadcaster over the given Redis client.
// log may be nil, in which case slog.Default() is used.
func NewBroadcaster(client *redis.Client, log *slog.Logger) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	return &Broadcaster{client: client, log: log}
}

// TasksChanged announces that the owner's task set changed.
func (b *Broadcaster) TasksChanged(ctx context.Context, ownerID string) {
	if err := b.client.Publish(ctx, tasksChangedPrefix+ownerID, "changed").Err(); err != nil {
		b.log.Warn("task change broadcast failed", "owner_id", ownerID, "error", err)
	}
}

// TasksChangedChannel returns the pub/sub channel name subscribers should
// watch for the given owner.
func TasksChangedChannel(ownerID string) string {
	return tasksChangedPrefix + ownerID
}
