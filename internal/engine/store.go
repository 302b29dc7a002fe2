package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mpetrov/slotplan/internal/domain"
	"github.com/mpetrov/slotplan/internal/slot"
)

// Store is the in-memory task map for one view, keyed by the composite
// "<day>|<slot>" key. All mutations are optimistic: they apply immediately
// and carry enough information for the engine to revert them when the
// reconciliation call fails.
//
// Store methods are not synchronized; the owning View serializes access.
type Store struct {
	ownerID string

	tasks map[string]*domain.Task // key -> visible (non-deleted) task
	byID  map[string]string       // task id -> key

	deleting   map[string]bool // per-id delete in-flight guard
	pendingAdd map[string]bool // per-key create in-flight guard
}

// NewStore returns an empty Store scoped to ownerID.
func NewStore(ownerID string) *Store {
	return &Store{
		ownerID:    ownerID,
		tasks:      make(map[string]*domain.Task),
		byID:       make(map[string]string),
		deleting:   make(map[string]bool),
		pendingAdd: make(map[string]bool),
	}
}

// Get returns the visible task at (day, slot).
func (s *Store) Get(day, sl string) (domain.Task, bool) {
	t, ok := s.tasks[domain.TaskKey(day, sl)]
	if !ok {
		return domain.Task{}, false
	}
	return *t, true
}

// GetByID returns the visible task with the given id.
func (s *Store) GetByID(id string) (domain.Task, bool) {
	key, ok := s.byID[id]
	if !ok {
		return domain.Task{}, false
	}
	t, ok := s.tasks[key]
	if !ok {
		return domain.Task{}, false
	}
	return *t, true
}

// ListForDay returns all visible tasks on day, ordered by slot start time.
func (s *Store) ListForDay(day string) []domain.Task {
	prefix := day + "|"
	var out []domain.Task
	for key, t := range s.tasks {
		if strings.HasPrefix(key, prefix) {
			out = append(out, *t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return slot.ParseStart(out[i].Slot) < slot.ParseStart(out[j].Slot)
	})
	return out
}

// All returns every visible task, in no particular order.
func (s *Store) All() []domain.Task {
	out := make([]domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	return out
}

// SlotInUse reports whether any visible task references the slot label.
func (s *Store) SlotInUse(label string) bool {
	for _, t := range s.tasks {
		if t.Slot == label {
			return true
		}
	}
	return false
}

// Create adds a task at (day, slot) with a temporary id in StatePending.
// It fails with domain.ErrSlotOccupied when a visible task already holds
// the key, and with the same error when a create for the key is already in
// flight — the guard that keeps a double-submit from issuing two calls for
// one user intent. Call CreateSettled once reconciliation resolves.
func (s *Store) Create(day, sl, description string) (domain.Task, error) {
	key := domain.TaskKey(day, sl)
	if _, occupied := s.tasks[key]; occupied {
		return domain.Task{}, fmt.Errorf("engine.Store.Create: %s: %w", key, domain.ErrSlotOccupied)
	}
	if s.pendingAdd[key] {
		return domain.Task{}, fmt.Errorf("engine.Store.Create: %s: pending: %w", key, domain.ErrSlotOccupied)
	}

	now := time.Now().UTC()
	t := &domain.Task{
		ID:          domain.NewTempID(),
		OwnerID:     s.ownerID,
		Day:         day,
		Slot:        sl,
		Description: description,
		State:       domain.StatePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.tasks[key] = t
	s.byID[t.ID] = key
	s.pendingAdd[key] = true
	return *t, nil
}

// Confirm resolves a pending create: the temporary id is swapped for the
// server-issued task and the state moves to Confirmed. Unknown temp ids are
// ignored — the view may have been re-hydrated in the meantime.
func (s *Store) Confirm(tempID string, server domain.Task) (domain.Task, bool) {
	key, ok := s.byID[tempID]
	if !ok {
		return domain.Task{}, false
	}
	t := s.tasks[key]
	delete(s.byID, tempID)
	delete(s.pendingAdd, key)

	t.ID = server.ID
	t.State = domain.StateConfirmed
	if !server.CreatedAt.IsZero() {
		t.CreatedAt = server.CreatedAt
	}
	if !server.UpdatedAt.IsZero() {
		t.UpdatedAt = server.UpdatedAt
	}
	// The server may have returned a pre-existing record (deduplicated
	// create); its description and completion win.
	t.Description = server.Description
	t.Completed = server.Completed
	s.byID[t.ID] = key
	return *t, true
}

// Discard drops a pending create after reconciliation failure. The key
// becomes free again.
func (s *Store) Discard(tempID string) (domain.Task, bool) {
	key, ok := s.byID[tempID]
	if !ok {
		return domain.Task{}, false
	}
	t := *s.tasks[key]
	delete(s.tasks, key)
	delete(s.byID, tempID)
	delete(s.pendingAdd, key)
	return t, true
}

// Patch applies a partial update to the task with id and returns the
// updated task plus the prior field values for revert. A slot patch moves
// the task to a new key; moving onto a key held by another task is rejected
// with domain.ErrSlotOccupied, the same guard Create applies.
func (s *Store) Patch(id string, p domain.Patch) (domain.Task, domain.Patch, error) {
	key, ok := s.byID[id]
	if !ok {
		return domain.Task{}, domain.Patch{}, fmt.Errorf("engine.Store.Patch: %s: %w", id, domain.ErrNotFound)
	}
	t := s.tasks[key]

	rekey := p.Slot != nil && *p.Slot != t.Slot
	if rekey {
		newKey := domain.TaskKey(t.Day, *p.Slot)
		if other, occupied := s.tasks[newKey]; occupied && other.ID != id {
			return domain.Task{}, domain.Patch{}, fmt.Errorf("engine.Store.Patch: %s: %w", newKey, domain.ErrSlotOccupied)
		}
	}

	prev := p.Apply(t)
	t.UpdatedAt = time.Now().UTC()

	if rekey {
		// The slot is part of the identity key; re-key the entry.
		delete(s.tasks, key)
		newKey := t.Key()
		s.tasks[newKey] = t
		s.byID[id] = newKey
		if s.pendingAdd[key] {
			delete(s.pendingAdd, key)
			s.pendingAdd[newKey] = true
		}
	}
	return *t, prev, nil
}

// MarkDeleting hides the task with id from the visible map and flags the id
// as delete-in-flight. A second delete for the same id while one is
// outstanding returns ErrNotFound and issues nothing.
func (s *Store) MarkDeleting(id string) (domain.Task, error) {
	if s.deleting[id] {
		return domain.Task{}, fmt.Errorf("engine.Store.MarkDeleting: %s: delete in flight: %w", id, domain.ErrNotFound)
	}
	key, ok := s.byID[id]
	if !ok {
		return domain.Task{}, fmt.Errorf("engine.Store.MarkDeleting: %s: %w", id, domain.ErrNotFound)
	}
	t := s.tasks[key]
	t.State = domain.StateDeleting
	t.Deleted = true
	out := *t

	delete(s.tasks, key)
	delete(s.byID, id)
	delete(s.pendingAdd, key)
	s.deleting[id] = true
	return out, nil
}

// FinishDelete clears the per-id guard after the delete call settled.
func (s *Store) FinishDelete(id string) {
	delete(s.deleting, id)
}

// Restore puts a task back after a failed delete (Deleting → Confirmed) or
// a failed patch revert target that was removed in the meantime. It
// overwrites whatever currently holds the key.
func (s *Store) Restore(t domain.Task) domain.Task {
	t.Deleted = false
	t.State = domain.StateConfirmed
	cp := t
	key := cp.Key()
	if old, ok := s.tasks[key]; ok {
		delete(s.byID, old.ID)
	}
	s.tasks[key] = &cp
	s.byID[cp.ID] = key
	delete(s.deleting, cp.ID)
	return cp
}

// Remove drops the task with id without any state-machine bookkeeping.
// Used when the server reports the record already gone (NotFound on
// update) and when applying a TaskDeleted broadcast from another view.
func (s *Store) Remove(id string) (domain.Task, bool) {
	key, ok := s.byID[id]
	if !ok {
		return domain.Task{}, false
	}
	t := *s.tasks[key]
	delete(s.tasks, key)
	delete(s.byID, id)
	delete(s.pendingAdd, key)
	return t, true
}

// Upsert inserts or replaces a task by its key. Used when applying
// broadcasts and snapshots; it performs no reconciliation bookkeeping.
func (s *Store) Upsert(t domain.Task) {
	key := t.Key()
	if old, ok := s.tasks[key]; ok && old.ID != t.ID {
		delete(s.byID, old.ID)
	}
	if oldKey, ok := s.byID[t.ID]; ok && oldKey != key {
		delete(s.tasks, oldKey)
	}
	cp := t
	s.tasks[key] = &cp
	s.byID[t.ID] = key
}

// RenameSlot re-keys every task whose slot equals from to the label to,
// and returns the re-keyed tasks. Applying the same rename twice is a no-op
// because no task references from anymore. A task whose target key is
// already held by another task stays where it is — the registry rejects
// renames onto registered labels, so this only fires on malformed input,
// and keeping the task beats destroying the occupant.
func (s *Store) RenameSlot(from, to string) []domain.Task {
	var moved []domain.Task
	for key, t := range s.tasks {
		if t.Slot != from {
			continue
		}
		if other, occupied := s.tasks[domain.TaskKey(t.Day, to)]; occupied && other.ID != t.ID {
			continue
		}
		delete(s.tasks, key)
		t.Slot = to
		t.UpdatedAt = time.Now().UTC()
		newKey := t.Key()
		s.tasks[newKey] = t
		s.byID[t.ID] = newKey
		if s.pendingAdd[key] {
			delete(s.pendingAdd, key)
			s.pendingAdd[newKey] = true
		}
		moved = append(moved, *t)
	}
	return moved
}

// Hydrate replaces the visible map wholesale. Later duplicates of a key
// win, matching last-writer-wins snapshot semantics.
func (s *Store) Hydrate(tasks []domain.Task) {
	s.tasks = make(map[string]*domain.Task, len(tasks))
	s.byID = make(map[string]string, len(tasks))
	for _, t := range tasks {
		if t.Deleted {
			continue
		}
		if t.State == "" {
			t.State = domain.StateConfirmed
		}
		s.Upsert(t)
	}
}
