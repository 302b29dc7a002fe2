// Package api defines the JSON wire types of the task persistence service.
// Both the HTTP handlers (server side) and the remote reconciliation client
// use these types, so the two ends can never drift apart.
package api

import (
	"time"

	"github.com/mpetrov/slotplan/internal/domain"
)

// Task is the wire representation of a task record. Soft-deleted records
// never appear on the wire.
type Task struct {
	ID          string    `json:"id"`
	Day         string    `json:"day"`
	Slot        string    `json:"slot"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateTaskRequest is the body of POST /api/tasks.
type CreateTaskRequest struct {
	Day         string `json:"day"`
	Slot        string `json:"slot"`
	Description string `json:"description"`
}

// UpdateTaskRequest is the body of PATCH /api/tasks/{id}. Nil fields are
// left unchanged.
type UpdateTaskRequest struct {
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
	Slot        *string `json:"slot,omitempty"`
}

// DeleteTaskResponse is the body of DELETE /api/tasks/{id}. Count is the
// number of records actually marked deleted; deleting twice yields zero and
// is still a success.
type DeleteTaskResponse struct {
	Success bool  `json:"success"`
	Count   int64 `json:"count"`
}

// BulkTask is one entry of a bulk save. A missing ID means the record is
// new; a present ID upserts the existing record.
type BulkTask struct {
	ID          string `json:"id,omitempty"`
	Day         string `json:"day"`
	Slot        string `json:"slot"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// BulkSaveRequest is the body of POST /api/tasks/bulk: upsert all entries,
// then soft-delete any previously known record within the entries' day
// range that is absent from the array and not listed in Exclude.
type BulkSaveRequest struct {
	Tasks   []BulkTask `json:"tasks"`
	Exclude []string   `json:"exclude,omitempty"`
}

// BulkSaveResponse is the body of a successful bulk save.
type BulkSaveResponse struct {
	Success bool `json:"success"`
}

// ErrorDetail carries a machine-readable code and a human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the uniform error body for all endpoints.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// FromDomain converts a domain task to its wire form.
func FromDomain(t domain.Task) Task {
	return Task{
		ID:          t.ID,
		Day:         t.Day,
		Slot:        t.Slot,
		Description: t.Description,
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// ToDomain converts a wire task to its domain form. OwnerID is supplied by
// the caller — it never travels in the body, only in the auth context.
func (t Task) ToDomain(ownerID string) domain.Task {
	return domain.Task{
		ID:          t.ID,
		OwnerID:     ownerID,
		Day:         t.Day,
		Slot:        t.Slot,
		Description: t.Description,
		Completed:   t.Completed,
		State:       domain.StateConfirmed,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}
