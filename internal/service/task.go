// Package service contains the business logic for the slotplan API.
// Services validate inputs, enforce business rules, and orchestrate repo calls.
// No SQL lives here — services depend on repo interfaces, not implementations.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/mpetrov/slotplan/internal/domain"
	"github.com/mpetrov/slotplan/internal/repo"
)

// MaxBulkDescription caps the description length on the bulk-save path.
// Entries arriving through the weekly grid are typed into fixed-size cells,
// so anything longer indicates a malformed client.
const MaxBulkDescription = 200

// TaskService implements business logic for task operations.
// Every operation is scoped to an owner; tasks from other owners are
// invisible and report domain.ErrNotFound.
type TaskService struct {
	repo repo.TaskRepo
}

// NewTaskService constructs a TaskService backed by the provided TaskRepo.
func NewTaskService(r repo.TaskRepo) *TaskService {
	return &TaskService{repo: r}
}

// List returns all live tasks for the owner.
// Always returns a non-nil slice so callers can safely range over it.
func (s *TaskService) List(ctx context.Context, ownerID string) ([]domain.Task, error) {
	tasks, err := s.repo.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("service.TaskService.List: %w", err)
	}
	if tasks == nil {
		return []domain.Task{}, nil
	}
	return tasks, nil
}

// Create validates and persists a new task. If the owner already holds a
// live task at the same (day, slot) cell the existing record is returned,
// so a retried create never produces a duplicate.
// Returns domain.ErrValidation if input violates business rules.
func (s *TaskService) Create(ctx context.Context, task domain.Task) (domain.Task, error) {
	if err := validateTask(task); err != nil {
		return domain.Task{}, err
	}
	result, err := s.repo.Create(ctx, task)
	if err != nil {
		return domain.Task{}, fmt.Errorf("service.TaskService.Create: %w", err)
	}
	return result, nil
}

// Update applies the patch to the owner's task.
// Returns domain.ErrNotFound if the task does not exist, is deleted, or
// belongs to another owner; domain.ErrValidation for invalid patch fields.
func (s *TaskService) Update(ctx context.Context, ownerID, id string, p domain.Patch) (domain.Task, error) {
	if p.Slot != nil && strings.TrimSpace(*p.Slot) == "" {
		return domain.Task{}, fmt.Errorf("%w: slot must be non-empty", domain.ErrValidation)
	}
	result, err := s.repo.Update(ctx, ownerID, id, p)
	if err != nil {
		return domain.Task{}, fmt.Errorf("service.TaskService.Update: %w", err)
	}
	return result, nil
}

// Delete soft-deletes the owner's task and returns the number of records
// affected. Deleting an already-deleted or unknown task affects zero
// records and is not an error, so retried deletes are safe.
func (s *TaskService) Delete(ctx context.Context, ownerID, id string) (int64, error) {
	count, err := s.repo.SoftDelete(ctx, ownerID, id)
	if err != nil {
		return 0, fmt.Errorf("service.TaskService.Delete: %w", err)
	}
	return count, nil
}

// BulkSave replaces the owner's tasks within the day range spanned by the
// batch: every entry is upserted and every live task inside the range that
// is absent from the batch (and not listed in exclude) is soft-deleted.
// Entries carrying client-temporary IDs are treated as creates.
// Returns domain.ErrValidation if any entry violates business rules, in
// which case nothing is persisted.
func (s *TaskService) BulkSave(ctx context.Context, ownerID string, tasks []domain.Task, exclude []string) ([]domain.Task, error) {
	if len(tasks) == 0 {
		return []domain.Task{}, nil
	}

	fromDay, toDay := tasks[0].Day, tasks[0].Day
	for i, t := range tasks {
		t.OwnerID = ownerID
		if err := validateTask(t); err != nil {
			return nil, fmt.Errorf("service.TaskService.BulkSave: entry %d: %w", i, err)
		}
		if len(t.Description) > MaxBulkDescription {
			return nil, fmt.Errorf("service.TaskService.BulkSave: entry %d: %w: description exceeds %d characters",
				i, domain.ErrValidation, MaxBulkDescription)
		}
		if t.Day < fromDay {
			fromDay = t.Day
		}
		if t.Day > toDay {
			toDay = t.Day
		}
		tasks[i] = t
	}

	if err := s.repo.BulkUpsert(ctx, ownerID, tasks, fromDay, toDay, exclude); err != nil {
		return nil, fmt.Errorf("service.TaskService.BulkSave: %w", err)
	}

	saved, err := s.repo.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("service.TaskService.BulkSave: %w", err)
	}
	if saved == nil {
		return []domain.Task{}, nil
	}
	return saved, nil
}

// validateTask enforces business rules common to Create and BulkSave.
//   - Day must be an ISO date (YYYY-MM-DD).
//   - Slot must be non-empty (whitespace-only labels are rejected).
//
// Description length is unbounded here: only the bulk grid path caps it.
func validateTask(task domain.Task) error {
	if !domain.ValidDay(task.Day) {
		return fmt.Errorf("%w: day must be an ISO date (YYYY-MM-DD)", domain.ErrValidation)
	}
	if strings.TrimSpace(task.Slot) == "" {
		return fmt.Errorf("%w: slot is required", domain.ErrValidation)
	}
	return nil
}
