// Package handler implements the HTTP handlers for the slotplan API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (health.go, task.go) but all share the same Server struct so they can
// access its dependencies.
package handler

import (
	"context"

	"github.com/go-chi/chi/v5"

	"github.com/mpetrov/slotplan/internal/domain"
)

// TaskServicer defines the business operations the task handler depends on.
// Defining the interface here (in the consumer package) follows the Go
// convention: "accept interfaces, return concrete types". It lets handler
// tests inject a mock without touching the database or service layer.
type TaskServicer interface {
	List(ctx context.Context, ownerID string) ([]domain.Task, error)
	Create(ctx context.Context, task domain.Task) (domain.Task, error)
	Update(ctx context.Context, ownerID, id string, p domain.Patch) (domain.Task, error)
	Delete(ctx context.Context, ownerID, id string) (int64, error)
	BulkSave(ctx context.Context, ownerID string, tasks []domain.Task, exclude []string) ([]domain.Task, error)
}

// Notifier is invoked after a snapshot-affecting write so other server
// instances (and watching sync processes) learn about the change.
// Optional: a nil Notifier means no fan-out.
type Notifier interface {
	TasksChanged(ctx context.Context, ownerID string)
}

// Server holds the handler dependencies for all API endpoints.
type Server struct {
	tasks  TaskServicer
	notify Notifier
}

// NewServer constructs the Server with all its dependencies.
// notify may be nil when no cross-instance fan-out is configured.
func NewServer(tasks TaskServicer, notify Notifier) *Server {
	return &Server{tasks: tasks, notify: notify}
}

// Routes mounts the task endpoints on r. Callers are responsible for wrapping
// r with the identity middleware: every handler here expects an owner ID in
// the request context and returns 401 without one.
func (s *Server) Routes(r chi.Router) {
	r.Get("/tasks", s.ListTasks)
	r.Post("/tasks", s.CreateTask)
	r.Patch("/tasks/{id}", s.UpdateTask)
	r.Delete("/tasks/{id}", s.DeleteTask)
	r.Post("/tasks/bulk", s.BulkSaveTasks)
}

// tasksChanged fires the change notification if one is configured.
func (s *Server) tasksChanged(ctx context.Context, ownerID string) {
	if s.notify != nil {
		s.notify.TasksChanged(ctx, ownerID)
	}
}
