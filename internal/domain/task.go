// Package domain contains the core data types for the slotplan scheduler.
// This package has zero external dependencies beyond uuid and is imported by
// every other internal package (slot, engine, repo, service, handler, remote).
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DayFormat is the wire and key format for calendar days.
// Day granularity only — time of day is irrelevant to task identity.
const DayFormat = "2006-01-02"

// TempIDPrefix marks locally generated task IDs that have not yet been
// confirmed by the persistence service.
const TempIDPrefix = "tmp-"

// TaskState is the client-visible lifecycle of a task inside the engine.
// It is never persisted; the server only sees the task fields themselves.
type TaskState string

const (
	// StatePending means the task is applied optimistically and a
	// reconciliation call is in flight.
	StatePending TaskState = "pending"
	// StateConfirmed means the server has acknowledged the task and issued
	// a stable ID.
	StateConfirmed TaskState = "confirmed"
	// StateDeleting means a delete call is in flight; the task is already
	// hidden from views.
	StateDeleting TaskState = "deleting"
)

// Task is a single scheduled entry: one short text assigned to one slot on
// one calendar day. For a given owner at most one non-deleted task exists
// per (Day, Slot) pair.
type Task struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"-"`
	Day         string    `json:"day"` // DayFormat
	Slot        string    `json:"slot"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	Deleted     bool      `json:"-"` // soft-delete marker; excluded from all views
	State       TaskState `json:"-"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
}

// Key returns the composite identity key for the task's (day, slot) pair.
func (t Task) Key() string {
	return TaskKey(t.Day, t.Slot)
}

// Temp reports whether the task still carries a locally generated ID.
func (t Task) Temp() bool {
	return strings.HasPrefix(t.ID, TempIDPrefix)
}

// TaskKey builds the composite key "<ISO day>|<slot>" under which tasks are
// stored and looked up.
func TaskKey(day, slot string) string {
	return day + "|" + slot
}

// NewTempID returns a fresh locally unique task ID. The persistence service
// replaces it with a stable UUID on create confirmation.
func NewTempID() string {
	return TempIDPrefix + uuid.NewString()
}

// Patch is a partial update to a task. Nil fields are left unchanged.
// The same type carries the optimistic patch, the revert snapshot of the
// prior values, and the wire payload of an update call.
type Patch struct {
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
	Slot        *string `json:"slot,omitempty"`
}

// Apply overwrites t's fields with the patch's non-nil values and returns
// a patch holding the prior values, suitable for revert.
func (p Patch) Apply(t *Task) Patch {
	var prev Patch
	if p.Description != nil {
		d := t.Description
		prev.Description = &d
		t.Description = *p.Description
	}
	if p.Completed != nil {
		c := t.Completed
		prev.Completed = &c
		t.Completed = *p.Completed
	}
	if p.Slot != nil {
		s := t.Slot
		prev.Slot = &s
		t.Slot = *p.Slot
	}
	return prev
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Description == nil && p.Completed == nil && p.Slot == nil
}

// ValidDay reports whether day is a well-formed DayFormat date.
func ValidDay(day string) bool {
	_, err := time.Parse(DayFormat, day)
	return err == nil
}
