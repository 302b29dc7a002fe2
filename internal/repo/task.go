// Package repo contains all database access logic for the task persistence
// service. No business logic lives here — only SQL and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/mpetrov/slotplan/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test, giving free
// per-test isolation without any manual cleanup.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TaskRepo defines the persistence operations for task records. The service
// layer depends on this interface, not the concrete Postgres implementation,
// which allows the service to be unit-tested with a mock.
type TaskRepo interface {
	// List returns all non-deleted tasks of ownerID, ordered by day then slot.
	List(ctx context.Context, ownerID string) ([]domain.Task, error)

	// Create inserts a new task. A non-deleted task already holding the same
	// (owner, day, slot) key is returned as-is instead of erroring — create
	// is de-duplicated by exact match before insert.
	Create(ctx context.Context, t domain.Task) (domain.Task, error)

	// Update overwrites the patched fields of the owner's task and returns
	// the updated record. Returns domain.ErrNotFound for unknown, foreign,
	// or soft-deleted ids.
	Update(ctx context.Context, ownerID, id string, p domain.Patch) (domain.Task, error)

	// SoftDelete marks the owner's task deleted and reports how many rows
	// changed. Deleting an already-deleted or unknown id yields count 0,
	// not an error — the operation is idempotent.
	SoftDelete(ctx context.Context, ownerID, id string) (int64, error)

	// BulkUpsert inserts the new tasks and overwrites the existing ones,
	// then soft-deletes every non-deleted task of ownerID within
	// [fromDay, toDay] whose id is in neither the upserted set nor keepIDs.
	BulkUpsert(ctx context.Context, ownerID string, tasks []domain.Task, fromDay, toDay string, keepIDs []string) error
}

// pgTaskRepo is the Postgres implementation of TaskRepo.
type pgTaskRepo struct {
	db db
}

// NewTaskRepo constructs a TaskRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewTaskRepo(db db) TaskRepo {
	return &pgTaskRepo{db: db}
}

// List returns the owner's visible tasks, ordered by day then slot label.
func (r *pgTaskRepo) List(ctx context.Context, ownerID string) ([]domain.Task, error) {
	const q = `
		SELECT id, owner_id, day, slot, description, completed, deleted, created_at, updated_at
		FROM tasks
		WHERE owner_id = @owner_id AND NOT deleted
		ORDER BY day, slot`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"owner_id": ownerID})
	if err != nil {
		return nil, fmt.Errorf("repo.TaskRepo.List: %w", err)
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.TaskRepo.List: scan: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.TaskRepo.List: rows: %w", err)
	}
	return tasks, nil
}

// Create inserts a task, de-duplicating on the partial unique index over
// (owner_id, day, slot) WHERE NOT deleted. The DO UPDATE SET trick forces
// the RETURNING clause to fire even when the conflict handler skips the
// insert, so the pre-existing row comes back instead of nothing. Bumping
// updated_at on the conflict branch also lets callers tell a dedupe apart
// from a fresh insert: freshly inserted rows have created_at = updated_at.
func (r *pgTaskRepo) Create(ctx context.Context, t domain.Task) (domain.Task, error) {
	const q = `
		INSERT INTO tasks (owner_id, day, slot, description, completed)
		VALUES (@owner_id, @day, @slot, @description, @completed)
		ON CONFLICT (owner_id, day, slot) WHERE NOT deleted
		DO UPDATE SET slot = EXCLUDED.slot, updated_at = now()
		RETURNING id, owner_id, day, slot, description, completed, deleted, created_at, updated_at`

	day, err := parseDay(t.Day)
	if err != nil {
		return domain.Task{}, fmt.Errorf("repo.TaskRepo.Create: %w", err)
	}
	args := pgx.NamedArgs{
		"owner_id":    t.OwnerID,
		"day":         day,
		"slot":        t.Slot,
		"description": t.Description,
		"completed":   t.Completed,
	}

	row := r.db.QueryRow(ctx, q, args)
	result, err := scanTask(row)
	if err != nil {
		return domain.Task{}, fmt.Errorf("repo.TaskRepo.Create: %w", err)
	}
	return result, nil
}

// Update overwrites the patched fields via COALESCE so unset patch fields
// keep their stored values.
func (r *pgTaskRepo) Update(ctx context.Context, ownerID, id string, p domain.Patch) (domain.Task, error) {
	const q = `
		UPDATE tasks
		SET description = COALESCE(@description, description),
		    completed   = COALESCE(@completed, completed),
		    slot        = COALESCE(@slot, slot),
		    updated_at  = now()
		WHERE id = @id AND owner_id = @owner_id AND NOT deleted
		RETURNING id, owner_id, day, slot, description, completed, deleted, created_at, updated_at`

	taskID, err := uuid.Parse(id)
	if err != nil {
		return domain.Task{}, fmt.Errorf("repo.TaskRepo.Update: %w", domain.ErrNotFound)
	}
	args := pgx.NamedArgs{
		"id":          taskID,
		"owner_id":    ownerID,
		"description": p.Description, // nil keeps the stored value
		"completed":   p.Completed,
		"slot":        p.Slot,
	}

	row := r.db.QueryRow(ctx, q, args)
	result, err := scanTask(row)
	if err != nil {
		return domain.Task{}, fmt.Errorf("repo.TaskRepo.Update: %w", err)
	}
	return result, nil
}

// SoftDelete marks the owner's task deleted. Idempotent by construction:
// the NOT deleted guard makes a second delete affect zero rows.
func (r *pgTaskRepo) SoftDelete(ctx context.Context, ownerID, id string) (int64, error) {
	const q = `
		UPDATE tasks
		SET deleted = true, updated_at = now()
		WHERE id = @id AND owner_id = @owner_id AND NOT deleted`

	taskID, err := uuid.Parse(id)
	if err != nil {
		// Unknown id shape — nothing to delete, which is fine.
		return 0, nil
	}

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": taskID, "owner_id": ownerID})
	if err != nil {
		return 0, fmt.Errorf("repo.TaskRepo.SoftDelete: %w", err)
	}
	return tag.RowsAffected(), nil
}

// BulkUpsert applies the bulk save in two passes: upsert every entry, then
// prune the day range.
func (r *pgTaskRepo) BulkUpsert(ctx context.Context, ownerID string, tasks []domain.Task, fromDay, toDay string, keepIDs []string) error {
	keep := make([]uuid.UUID, 0, len(tasks)+len(keepIDs))
	for _, raw := range keepIDs {
		if id, err := uuid.Parse(raw); err == nil {
			keep = append(keep, id)
		}
	}

	for _, t := range tasks {
		if t.ID == "" || t.Temp() {
			created, err := r.Create(ctx, t)
			if err != nil {
				return fmt.Errorf("repo.TaskRepo.BulkUpsert: create: %w", err)
			}
			if id, err := uuid.Parse(created.ID); err == nil {
				keep = append(keep, id)
			}
			continue
		}

		updated, err := r.Update(ctx, ownerID, t.ID, domain.Patch{
			Description: &t.Description,
			Completed:   &t.Completed,
			Slot:        &t.Slot,
		})
		if errors.Is(err, domain.ErrNotFound) {
			// The record vanished since the client last listed; recreate it.
			created, cerr := r.Create(ctx, t)
			if cerr != nil {
				return fmt.Errorf("repo.TaskRepo.BulkUpsert: recreate: %w", cerr)
			}
			if id, perr := uuid.Parse(created.ID); perr == nil {
				keep = append(keep, id)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("repo.TaskRepo.BulkUpsert: update: %w", err)
		}
		if id, perr := uuid.Parse(updated.ID); perr == nil {
			keep = append(keep, id)
		}
	}

	from, err := parseDay(fromDay)
	if err != nil {
		return fmt.Errorf("repo.TaskRepo.BulkUpsert: %w", err)
	}
	to, err := parseDay(toDay)
	if err != nil {
		return fmt.Errorf("repo.TaskRepo.BulkUpsert: %w", err)
	}

	const prune = `
		UPDATE tasks
		SET deleted = true, updated_at = now()
		WHERE owner_id = @owner_id
		  AND day BETWEEN @from_day AND @to_day
		  AND NOT deleted
		  AND id != ALL(@keep)`

	_, err = r.db.Exec(ctx, prune, pgx.NamedArgs{
		"owner_id": ownerID,
		"from_day": from,
		"to_day":   to,
		"keep":     keep,
	})
	if err != nil {
		return fmt.Errorf("repo.TaskRepo.BulkUpsert: prune: %w", err)
	}
	return nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing scanTask to be
// reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// scanTask maps a single database row into a domain.Task.
func scanTask(s scanner) (domain.Task, error) {
	var (
		t   domain.Task
		id  pgtype.UUID
		day pgtype.Date
	)

	err := s.Scan(&id, &t.OwnerID, &day, &t.Slot, &t.Description, &t.Completed, &t.Deleted, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Task{}, domain.ErrNotFound
		}
		return domain.Task{}, err
	}

	t.ID = uuid.UUID(id.Bytes).String()
	t.Day = day.Time.Format(domain.DayFormat)
	t.State = domain.StateConfirmed
	return t, nil
}

// parseDay converts the wire day string into a time.Time for the date column.
func parseDay(day string) (time.Time, error) {
	d, err := time.Parse(domain.DayFormat, day)
	if err != nil {
		return time.Time{}, fmt.Errorf("day %q: %w", day, domain.ErrValidation)
	}
	return d, nil
}
