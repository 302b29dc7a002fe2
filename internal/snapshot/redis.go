package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix     = "slotplan:snapshot:"
	redisChannelPrefix = "slotplan:snapshot-changed:"
)

// RedisStore persists snapshots in Redis and notifies other processes over
// pub/sub. Each store instance carries a writer ID so it can discard change
// notifications for its own saves, mirroring the file store's own-write
// suppression.
type RedisStore struct {
	client   *redis.Client
	writerID string
}

// NewRedisStore returns a RedisStore backed by client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, writerID: uuid.NewString()}
}

// changeNote is the pub/sub payload: who wrote, so readers can skip their
// own writes.
type changeNote struct {
	WriterID string `json:"writer_id"`
}

// Save writes the snapshot under the owner's key and publishes a change
// note. Snapshots do not expire; they are the owner's authoritative local
// state between sessions.
func (s *RedisStore) Save(ctx context.Context, snap Snapshot) error {
	snap.SavedAt = time.Now().UTC()
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("snapshot.RedisStore.Save: marshal: %w", err)
	}

	if err := s.client.Set(ctx, redisKeyPrefix+snap.OwnerID, data, 0).Err(); err != nil {
		return fmt.Errorf("snapshot.RedisStore.Save: %w", err)
	}

	note, err := json.Marshal(changeNote{WriterID: s.writerID})
	if err != nil {
		return fmt.Errorf("snapshot.RedisStore.Save: marshal note: %w", err)
	}
	if err := s.client.Publish(ctx, redisChannelPrefix+snap.OwnerID, note).Err(); err != nil {
		return fmt.Errorf("snapshot.RedisStore.Save: publish: %w", err)
	}
	return nil
}

// Load reads the owner's snapshot. Missing keys and undecodable payloads
// both come back as ok=false.
func (s *RedisStore) Load(ctx context.Context, ownerID string) (Snapshot, bool, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+ownerID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("snapshot.RedisStore.Load: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil || snap.OwnerID != ownerID {
		return Snapshot{}, false, nil
	}
	return snap, true, nil
}

// Watch subscribes to the owner's change channel and forwards one signal
// per foreign save.
func (s *RedisStore) Watch(ctx context.Context, ownerID string) (<-chan struct{}, error) {
	sub := s.client.Subscribe(ctx, redisChannelPrefix+ownerID)
	// Force the subscription to be established before returning, so a save
	// issued right after Watch is never missed.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("snapshot.RedisStore.Watch: %w", err)
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var note changeNote
				if err := json.Unmarshal([]byte(msg.Payload), &note); err == nil && note.WriterID == s.writerID {
					continue
				}
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()

	return ch, nil
}

var _ Store = (*RedisStore)(nil)
