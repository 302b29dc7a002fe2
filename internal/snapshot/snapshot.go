// Package snapshot implements the durable per-owner state snapshot that
// keeps separately running scheduler processes eventually consistent.
//
// The contract is deliberately coarse: write the whole snapshot, notify
// other readers, read the whole snapshot on demand. There is no field-level
// locking; concurrent writers clobber each other and the last writer wins,
// which is accepted for the target usage pattern of one user with at most a
// couple of sessions open.
package snapshot

import (
	"context"
	"time"

	"github.com/mpetrov/slotplan/internal/domain"
	"github.com/mpetrov/slotplan/internal/slot"
)

// Snapshot is the full durable state for one owner: visible tasks, the slot
// label set, and the rename history needed to resolve stale labels.
type Snapshot struct {
	OwnerID string        `json:"owner_id"`
	Tasks   []domain.Task `json:"tasks"`
	Labels  []string      `json:"labels"`
	Renames []slot.Rename `json:"renames"`
	SavedAt time.Time     `json:"saved_at"`
}

// Store persists whole snapshots per owner and notifies other store
// instances of changes. Notifications are change signals only — receivers
// re-load the snapshot. A store instance never receives notifications for
// its own writes; in-process consistency is the event bus's job.
type Store interface {
	// Save writes the snapshot wholesale, replacing any previous one.
	Save(ctx context.Context, snap Snapshot) error

	// Load reads the current snapshot for ownerID. ok is false when no
	// snapshot exists or the stored payload cannot be decoded — corrupt
	// state falls back to empty, never to an error the caller must handle.
	Load(ctx context.Context, ownerID string) (snap Snapshot, ok bool, err error)

	// Watch returns a channel that receives a signal whenever another
	// store instance saves a snapshot for ownerID. The channel is closed
	// when ctx is done.
	Watch(ctx context.Context, ownerID string) (<-chan struct{}, error)
}
