package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mpetrov/slotplan/internal/api"
	"github.com/mpetrov/slotplan/internal/domain"
	"github.com/mpetrov/slotplan/internal/identity"
)

// ListTasks handles GET /api/tasks. It returns every live task of the
// authenticated owner; the client sorts and groups them.
func (s *Server) ListTasks(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := identity.OwnerID(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	tasks, err := s.tasks.List(r.Context(), ownerID)
	if err != nil {
		writeInternal(w)
		return
	}

	out := make([]api.Task, len(tasks))
	for i, t := range tasks {
		out[i] = api.FromDomain(t)
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateTask handles POST /api/tasks. Creating into an occupied (day, slot)
// cell returns the existing record with 200 instead of 201, so a retried
// create is indistinguishable from a successful first attempt.
func (s *Server) CreateTask(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := identity.OwnerID(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	var req api.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	created, err := s.tasks.Create(r.Context(), domain.Task{
		OwnerID:     ownerID,
		Day:         req.Day,
		Slot:        req.Slot,
		Description: req.Description,
	})
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			writeValidation(w, err)
			return
		}
		writeInternal(w)
		return
	}

	s.tasksChanged(r.Context(), ownerID)

	status := http.StatusCreated
	if !created.UpdatedAt.Equal(created.CreatedAt) {
		// The unique-key upsert handed back an existing record.
		status = http.StatusOK
	}
	writeJSON(w, status, api.FromDomain(created))
}

// UpdateTask handles PATCH /api/tasks/{id}. Absent body fields keep their
// stored values.
func (s *Server) UpdateTask(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := identity.OwnerID(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	var req api.UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	updated, err := s.tasks.Update(r.Context(), ownerID, chi.URLParam(r, "id"), domain.Patch{
		Description: req.Description,
		Completed:   req.Completed,
		Slot:        req.Slot,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeNotFound(w, "task not found")
		case errors.Is(err, domain.ErrValidation):
			writeValidation(w, err)
		default:
			writeInternal(w)
		}
		return
	}

	s.tasksChanged(r.Context(), ownerID)
	writeJSON(w, http.StatusOK, api.FromDomain(updated))
}

// DeleteTask handles DELETE /api/tasks/{id}. Deletes are idempotent: an
// unknown or already-deleted id reports success with a zero count.
func (s *Server) DeleteTask(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := identity.OwnerID(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	count, err := s.tasks.Delete(r.Context(), ownerID, chi.URLParam(r, "id"))
	if err != nil {
		writeInternal(w)
		return
	}

	if count > 0 {
		s.tasksChanged(r.Context(), ownerID)
	}
	writeJSON(w, http.StatusOK, api.DeleteTaskResponse{Success: true, Count: count})
}

// BulkSaveTasks handles POST /api/tasks/bulk.
func (s *Server) BulkSaveTasks(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := identity.OwnerID(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	var req api.BulkSaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	tasks := make([]domain.Task, len(req.Tasks))
	for i, t := range req.Tasks {
		tasks[i] = domain.Task{
			OwnerID:     ownerID,
			ID:          t.ID,
			Day:         t.Day,
			Slot:        t.Slot,
			Description: t.Description,
			Completed:   t.Completed,
		}
	}

	if _, err := s.tasks.BulkSave(r.Context(), ownerID, tasks, req.Exclude); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			writeValidation(w, err)
			return
		}
		writeInternal(w)
		return
	}

	s.tasksChanged(r.Context(), ownerID)
	writeJSON(w, http.StatusOK, api.BulkSaveResponse{Success: true})
}

// writeUnauthorized responds 401 when no owner identity is present. The
// identity middleware normally rejects these before the handler runs; this
// is the guard for misconfigured routing.
func writeUnauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, api.ErrorResponse{
		Error: api.ErrorDetail{Code: "unauthorized", Message: "missing or invalid credentials"},
	})
}
