package domain

import "errors"

// ErrNotFound is returned when the requested task does not exist, either in
// the local store or server-side.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails business rule validation
// (e.g. malformed day, empty slot, over-long description).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrSlotOccupied is returned by a create when a non-deleted task already
// exists at the same (day, slot) key. Recovered locally — the action is
// blocked before any network call is issued.
var ErrSlotOccupied = errors.New("slot already occupied")

// ErrSlotInUse is returned by the slot registry when removing a label that
// is still referenced by a non-deleted task.
var ErrSlotInUse = errors.New("slot is in use")

// ErrSlotExists is returned by the slot registry when a rename targets a
// label that is already registered. Allowing it would leave a duplicate in
// the label list and collapse two task keys into one.
var ErrSlotExists = errors.New("slot label already exists")

// ErrLastSlot is returned by the slot registry when removing the only
// remaining label. The registry is never allowed to become empty.
var ErrLastSlot = errors.New("cannot remove the last slot")

// ErrReconciliationFailed is returned by the remote adapter when a
// persistence call fails. The engine reverts the optimistic mutation and
// notifies the user; no automatic retry is performed.
var ErrReconciliationFailed = errors.New("reconciliation failed")
