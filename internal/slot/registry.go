package slot

import (
	"fmt"
	"strings"

	"github.com/mpetrov/slotplan/internal/domain"
)

// DefaultLabels is the starter set every fresh registry is bootstrapped
// with. Labels are user-renameable afterwards.
var DefaultLabels = []string{
	"9:00 AM - 10:00 AM",
	"10:00 AM - 11:00 AM",
	"11:00 AM - 12:00 PM",
	"12:00 PM - 1:00 PM",
	"1:00 PM - 2:00 PM",
	"2:00 PM - 3:00 PM",
	"3:00 PM - 4:00 PM",
	"4:00 PM - 5:00 PM",
}

// Registry owns the ordered set of slot labels for one owner, together with
// its rename history. It is constructed with the ownerID injected rather
// than keyed off ambient global state, so lifecycle and test isolation are
// explicit. Not safe for concurrent use; the engine serializes access.
type Registry struct {
	ownerID string
	labels  []string
	history *History
}

// NewRegistry returns a Registry for ownerID bootstrapped with
// DefaultLabels.
func NewRegistry(ownerID string) *Registry {
	r := &Registry{ownerID: ownerID, history: NewHistory(nil)}
	r.labels = append(r.labels, DefaultLabels...)
	SortSlots(r.labels)
	return r
}

// OwnerID returns the owner this registry is scoped to.
func (r *Registry) OwnerID() string {
	return r.ownerID
}

// Labels returns the labels in chronological order. The slice is a copy.
func (r *Registry) Labels() []string {
	out := make([]string, len(r.labels))
	copy(out, r.labels)
	return out
}

// Contains reports whether label is registered (case-sensitive exact match).
func (r *Registry) Contains(label string) bool {
	return r.index(label) >= 0
}

// History exposes the rename history for snapshotting and resolution.
func (r *Registry) History() *History {
	return r.history
}

// Resolve maps any label, current or historical, to its canonical current
// form by walking the rename history. Use it whenever ingesting labels from
// a source that may be stale: remote records, cross-view broadcasts, or a
// previously written snapshot.
func (r *Registry) Resolve(label string) string {
	return r.history.Resolve(label)
}

// Add appends label if not already present and re-sorts. Reports whether
// the registry changed.
func (r *Registry) Add(label string) bool {
	if r.Contains(label) {
		return false
	}
	r.labels = append(r.labels, label)
	SortSlots(r.labels)
	return true
}

// Remove deletes label from the registry. inUse reports whether any active
// task still references a label; a referenced label cannot be removed, only
// renamed. Removing the final remaining label is always rejected.
func (r *Registry) Remove(label string, inUse func(label string) bool) error {
	i := r.index(label)
	if i < 0 {
		return fmt.Errorf("slot.Registry.Remove: %q: %w", label, domain.ErrNotFound)
	}
	if len(r.labels) == 1 {
		return fmt.Errorf("slot.Registry.Remove: %w", domain.ErrLastSlot)
	}
	if inUse != nil && inUse(label) {
		return fmt.Errorf("slot.Registry.Remove: %q: %w", label, domain.ErrSlotInUse)
	}
	r.labels = append(r.labels[:i], r.labels[i+1:]...)
	return nil
}

// Rename replaces oldLabel with newLabel in place, re-sorts, and appends to
// the rename history. It reports whether the rename was applied: renaming a
// label to itself or to an empty (after trimming) label is a no-op, and
// re-applying a rename that already happened is a no-op too — this is what
// makes cross-view rename broadcasts idempotent. Renaming onto a label that
// is already registered is rejected with domain.ErrSlotExists: labels are
// unique, and merging two labels would collapse their task keys.
func (r *Registry) Rename(oldLabel, newLabel string) (bool, error) {
	newLabel = strings.TrimSpace(newLabel)
	if newLabel == "" || newLabel == oldLabel {
		return false, nil
	}

	i := r.index(oldLabel)
	if i < 0 {
		// Already applied (the old label is gone) or unknown. Record the
		// mapping if we have never seen it, so Resolve still works for
		// stale data arriving later, but do not touch the label list.
		if r.Contains(newLabel) && !r.history.Contains(oldLabel, newLabel) {
			r.history.Append(oldLabel, newLabel)
		}
		return false, nil
	}
	if r.Contains(newLabel) {
		return false, fmt.Errorf("slot.Registry.Rename: %q: %w", newLabel, domain.ErrSlotExists)
	}

	r.labels[i] = newLabel
	SortSlots(r.labels)
	r.history.Append(oldLabel, newLabel)
	return true, nil
}

// Hydrate replaces the registry contents wholesale from a snapshot or a
// bulk sync broadcast. An empty label set falls back to the defaults so the
// never-empty invariant holds even against corrupt input.
func (r *Registry) Hydrate(labels []string, renames []Rename) {
	if len(labels) == 0 {
		labels = DefaultLabels
	}
	r.labels = r.labels[:0]
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		r.labels = append(r.labels, l)
	}
	SortSlots(r.labels)
	r.history = NewHistory(renames)
}

func (r *Registry) index(label string) int {
	for i, l := range r.labels {
		if l == label {
			return i
		}
	}
	return -1
}
