package slot

import "time"

// Rename is one entry in the rename history: the label a slot was renamed
// from, the label it became, and when. Entries are appended, never mutated
// or removed.
type Rename struct {
	From string    `json:"from"`
	To   string    `json:"to"`
	At   time.Time `json:"at"`
}

// History is the append-only rename log for one owner. Walking it forward
// resolves any label, however old, to its current canonical form.
type History struct {
	entries []Rename
}

// NewHistory builds a History seeded with existing entries, e.g. from a
// durable snapshot.
func NewHistory(entries []Rename) *History {
	h := &History{}
	h.entries = append(h.entries, entries...)
	return h
}

// Append records one rename.
func (h *History) Append(from, to string) {
	h.entries = append(h.entries, Rename{From: from, To: to, At: time.Now().UTC()})
}

// Contains reports whether an entry with exactly this from → to mapping has
// already been recorded. Used to apply broadcast renames idempotently.
func (h *History) Contains(from, to string) bool {
	for _, e := range h.entries {
		if e.From == from && e.To == to {
			return true
		}
	}
	return false
}

// Resolve walks the history in append order, substituting label wherever it
// matches a From, until no further substitution applies. A label that was
// never renamed comes back unchanged.
func (h *History) Resolve(label string) string {
	for i := 0; i < len(h.entries); i++ {
		if h.entries[i].From == label {
			label = h.entries[i].To
			// A later entry may rename the new label again; keep walking
			// forward from the next entry, never backwards.
		}
	}
	return label
}

// Entries returns a copy of the log, earliest first.
func (h *History) Entries() []Rename {
	out := make([]Rename, len(h.entries))
	copy(out, h.entries)
	return out
}
