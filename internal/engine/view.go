package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mpetrov/slotplan/internal/domain"
	"github.com/mpetrov/slotplan/internal/notify"
	"github.com/mpetrov/slotplan/internal/slot"
	"github.com/mpetrov/slotplan/internal/snapshot"
)

// Reconciler translates task store intents into persistence service calls.
// The engine defines the interface it consumes; remote.Client implements it.
type Reconciler interface {
	// List returns all of the owner's non-deleted tasks.
	List(ctx context.Context) ([]domain.Task, error)

	// Create persists a new task. The service de-duplicates by exact
	// (owner, day, slot) match and returns the existing record instead of
	// erroring, which callers treat as success.
	Create(ctx context.Context, t domain.Task) (domain.Task, error)

	// Update applies a partial update. A missing record comes back as
	// domain.ErrNotFound — the caller treats the task as already gone.
	Update(ctx context.Context, id string, p domain.Patch) (domain.Task, error)

	// Delete soft-deletes by id. Deleting twice is not an error.
	Delete(ctx context.Context, id string) error
}

// ViewConfig carries the collaborators a View is constructed with. Name,
// OwnerID, and Bus are required; everything else degrades gracefully when
// absent (no durable snapshot, no network, log-only notifications).
type ViewConfig struct {
	// Name identifies the view on the bus, e.g. "day" or "week".
	Name string

	// OwnerID scopes all state. Without it no state may be loaded or
	// persisted; NewView rejects an empty value.
	OwnerID string

	Bus       *Bus
	Snapshots snapshot.Store
	Remote    Reconciler
	Notifier  notify.Notifier
	Log       *slog.Logger

	// MaxDescription caps task description length on this view's entry
	// path. Zero means unbounded. The week grid uses 200.
	MaxDescription int
}

// View is one independently mounted rendering of the owner's schedule. Each
// view keeps its own task store and slot registry; the bus, the mount
// handshake, and the durable snapshot keep concurrently mounted views from
// ever diverging.
//
// All mutations apply optimistically and synchronously; only reconciliation
// network calls run on background goroutines.
type View struct {
	name    string
	ownerID string
	maxDesc int

	bus      *Bus
	snaps    snapshot.Store
	remote   Reconciler
	notifier notify.Notifier
	log      *slog.Logger

	mu       sync.Mutex
	store    *Store
	registry *slot.Registry
	mounted  bool
	hydrated bool

	unsub       func()
	cancelWatch context.CancelFunc

	// wg tracks in-flight reconciliation goroutines so tests (and shutdown)
	// can drain them deterministically.
	wg sync.WaitGroup
}

// NewView constructs an unmounted View.
func NewView(cfg ViewConfig) (*View, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("engine.NewView: view name is required")
	}
	if cfg.OwnerID == "" {
		return nil, fmt.Errorf("engine.NewView: owner id is required: %w", domain.ErrValidation)
	}
	if cfg.Bus == nil {
		return nil, fmt.Errorf("engine.NewView: bus is required")
	}
	v := &View{
		name:     cfg.Name,
		ownerID:  cfg.OwnerID,
		maxDesc:  cfg.MaxDescription,
		bus:      cfg.Bus,
		snaps:    cfg.Snapshots,
		remote:   cfg.Remote,
		notifier: cfg.Notifier,
		log:      cfg.Log,
		store:    NewStore(cfg.OwnerID),
		registry: slot.NewRegistry(cfg.OwnerID),
	}
	if v.notifier == nil {
		v.notifier = notify.Slog{Log: cfg.Log}
	}
	if v.log == nil {
		v.log = slog.Default()
	}
	return v, nil
}

// Mount hydrates the view and joins the bus. Hydration sources, in order of
// preference: the durable snapshot, a BulkSync reply from an already
// mounted view (the mount handshake), and finally a remote list call. The
// first source that yields state wins; later ones are skipped, so a late
// mounting view never issues a redundant network round trip.
func (v *View) Mount(ctx context.Context) error {
	v.mu.Lock()
	if v.mounted {
		v.mu.Unlock()
		return fmt.Errorf("engine.View.Mount: %s: already mounted", v.name)
	}
	v.mounted = true
	v.mu.Unlock()

	// Join the bus first so the BulkSync reply to our handshake is heard.
	v.unsub = v.bus.Subscribe(v.name, v.handle)

	if v.snaps != nil {
		snap, ok, err := v.snaps.Load(ctx, v.ownerID)
		if err != nil {
			v.log.Warn("snapshot load failed", "view", v.name, "error", err)
		}
		if ok {
			v.mu.Lock()
			v.hydrate(snap.Tasks, snap.Labels, snap.Renames)
			v.mu.Unlock()
		}
	}

	// Mount handshake: an already-mounted view replies synchronously with
	// a BulkSync, which v.handle applies before Publish returns.
	v.bus.Publish(v.name, ViewMounted{View: v.name})

	v.mu.Lock()
	hydrated := v.hydrated
	v.mu.Unlock()
	if !hydrated && v.remote != nil {
		tasks, err := v.remote.List(ctx)
		if err != nil {
			v.log.Warn("initial list failed", "view", v.name, "error", err)
			v.notifier.Error("Could not load your schedule")
		} else {
			v.mu.Lock()
			v.hydrate(tasks, v.registry.Labels(), v.registry.History().Entries())
			v.mu.Unlock()
		}
	}

	if v.snaps != nil {
		watchCtx, cancel := context.WithCancel(context.Background())
		v.cancelWatch = cancel
		ch, err := v.snaps.Watch(watchCtx, v.ownerID)
		if err != nil {
			v.log.Warn("snapshot watch failed", "view", v.name, "error", err)
		} else {
			go v.watchLoop(watchCtx, ch)
		}
	}
	return nil
}

// Unmount leaves the bus and stops the snapshot watcher. In-flight
// reconciliation calls are not cancelled; their eventual results are simply
// applied to a store nobody renders anymore.
func (v *View) Unmount() {
	if v.unsub != nil {
		v.unsub()
		v.unsub = nil
	}
	if v.cancelWatch != nil {
		v.cancelWatch()
		v.cancelWatch = nil
	}
	v.mu.Lock()
	v.mounted = false
	v.mu.Unlock()
}

// Wait blocks until all in-flight reconciliation goroutines have settled.
func (v *View) Wait() {
	v.wg.Wait()
}

// Task returns the visible task at (day, slot).
func (v *View) Task(day, label string) (domain.Task, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.store.Get(day, v.registry.Resolve(label))
}

// TasksForDay returns the visible tasks on one day, ordered by slot start.
func (v *View) TasksForDay(day string) []domain.Task {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.store.ListForDay(day)
}

// Tasks returns every visible task.
func (v *View) Tasks() []domain.Task {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.store.All()
}

// Slots returns the slot labels in chronological order.
func (v *View) Slots() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.registry.Labels()
}

// CreateTask adds a task at (day, label) optimistically and schedules the
// reconciliation create. The composite key must be free: a second task in
// an occupied slot is rejected locally with domain.ErrSlotOccupied and no
// network call is issued. The same guard suppresses a double-submit while
// the first create is still in flight.
func (v *View) CreateTask(ctx context.Context, day, label, description string) (domain.Task, error) {
	if !domain.ValidDay(day) {
		return domain.Task{}, fmt.Errorf("engine.View.CreateTask: day %q: %w", day, domain.ErrValidation)
	}
	if v.maxDesc > 0 && len(description) > v.maxDesc {
		return domain.Task{}, fmt.Errorf("engine.View.CreateTask: description exceeds %d characters: %w", v.maxDesc, domain.ErrValidation)
	}

	v.mu.Lock()
	canonical := v.registry.Resolve(label)
	t, err := v.store.Create(day, canonical, description)
	v.mu.Unlock()
	if err != nil {
		v.notifier.Error("That slot already has a task")
		return domain.Task{}, err
	}

	v.bus.Publish(v.name, TaskUpserted{Task: t})
	v.saveSnapshot(ctx)

	if v.remote == nil {
		return t, nil
	}

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		rctx := context.WithoutCancel(ctx)

		server, err := v.remote.Create(rctx, t)
		if err != nil {
			v.mu.Lock()
			v.store.Discard(t.ID)
			v.mu.Unlock()
			v.bus.Publish(v.name, TaskDeleted{ID: t.ID, Day: t.Day, Slot: t.Slot})
			v.saveSnapshot(rctx)
			v.log.Warn("create reconciliation failed", "view", v.name, "day", t.Day, "slot", t.Slot, "error", err)
			v.notifier.Error("Could not save task")
			return
		}

		v.mu.Lock()
		confirmed, ok := v.store.Confirm(t.ID, server)
		v.mu.Unlock()
		if ok {
			v.bus.Publish(v.name, TaskUpserted{Task: confirmed})
			v.saveSnapshot(rctx)
		}
	}()
	return t, nil
}

// UpdateTask applies a partial update optimistically and schedules the
// reconciliation update. On failure the prior field values are restored; a
// NotFound from the server means the record is already gone and the task is
// removed locally instead. A slot patch into an occupied cell is rejected
// locally with domain.ErrSlotOccupied and no network call is issued.
func (v *View) UpdateTask(ctx context.Context, id string, p domain.Patch) (domain.Task, error) {
	if p.Empty() {
		v.mu.Lock()
		t, ok := v.store.GetByID(id)
		v.mu.Unlock()
		if !ok {
			return domain.Task{}, fmt.Errorf("engine.View.UpdateTask: %s: %w", id, domain.ErrNotFound)
		}
		return t, nil
	}

	v.mu.Lock()
	t, prev, err := v.store.Patch(id, p)
	v.mu.Unlock()
	if err != nil {
		if errors.Is(err, domain.ErrSlotOccupied) {
			v.notifier.Error("That slot already has a task")
		}
		return domain.Task{}, err
	}

	v.bus.Publish(v.name, TaskUpserted{Task: t})
	v.saveSnapshot(ctx)

	// Local-only tasks have nothing server-side to reconcile yet; the
	// eventual create or bulk save carries the current field values.
	if v.remote == nil || t.Temp() {
		return t, nil
	}

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		rctx := context.WithoutCancel(ctx)

		_, err := v.remote.Update(rctx, id, p)
		if err == nil {
			return
		}
		if errors.Is(err, domain.ErrNotFound) {
			// Already gone server-side; reconcile by removing locally.
			v.mu.Lock()
			gone, removed := v.store.Remove(id)
			v.mu.Unlock()
			if removed {
				v.bus.Publish(v.name, TaskDeleted{ID: id, Day: gone.Day, Slot: gone.Slot})
				v.saveSnapshot(rctx)
			}
			v.notifier.Error("Task no longer exists")
			return
		}

		v.mu.Lock()
		reverted, _, revertErr := v.store.Patch(id, prev)
		v.mu.Unlock()
		if revertErr == nil {
			v.bus.Publish(v.name, TaskUpserted{Task: reverted})
			v.saveSnapshot(rctx)
		}
		v.log.Warn("update reconciliation failed", "view", v.name, "task", id, "error", err)
		v.notifier.Error("Could not update task")
	}()
	return t, nil
}

// ToggleCompleted flips the completed flag, with UpdateTask's
// revert-on-failure semantics.
func (v *View) ToggleCompleted(ctx context.Context, id string) (domain.Task, error) {
	v.mu.Lock()
	t, ok := v.store.GetByID(id)
	v.mu.Unlock()
	if !ok {
		return domain.Task{}, fmt.Errorf("engine.View.ToggleCompleted: %s: %w", id, domain.ErrNotFound)
	}
	completed := !t.Completed
	return v.UpdateTask(ctx, id, domain.Patch{Completed: &completed})
}

// DeleteTask hides the task immediately and schedules the reconciliation
// delete. A second delete for the same id while one is outstanding is
// suppressed by the per-id in-flight guard. A failed delete restores the
// task (Deleting → Confirmed).
func (v *View) DeleteTask(ctx context.Context, id string) error {
	v.mu.Lock()
	t, err := v.store.MarkDeleting(id)
	v.mu.Unlock()
	if err != nil {
		return err
	}

	v.bus.Publish(v.name, TaskDeleted{ID: id, Day: t.Day, Slot: t.Slot})
	v.saveSnapshot(ctx)

	if v.remote == nil || t.Temp() {
		v.mu.Lock()
		v.store.FinishDelete(id)
		v.mu.Unlock()
		return nil
	}

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		rctx := context.WithoutCancel(ctx)

		err := v.remote.Delete(rctx, id)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			v.mu.Lock()
			restored := v.store.Restore(t)
			v.mu.Unlock()
			v.bus.Publish(v.name, TaskUpserted{Task: restored})
			v.saveSnapshot(rctx)
			v.log.Warn("delete reconciliation failed", "view", v.name, "task", id, "error", err)
			v.notifier.Error("Could not delete task")
			return
		}

		v.mu.Lock()
		v.store.FinishDelete(id)
		v.mu.Unlock()
	}()
	return nil
}

// AddSlot registers a new slot label.
func (v *View) AddSlot(ctx context.Context, label string) error {
	v.mu.Lock()
	added := v.registry.Add(label)
	labels := v.registry.Labels()
	v.mu.Unlock()
	if !added {
		return nil
	}

	v.bus.Publish(v.name, SlotsUpdated{Labels: labels})
	v.saveSnapshot(ctx)
	return nil
}

// RemoveSlot removes an unused slot label. Labels still referenced by a
// visible task cannot be removed (domain.ErrSlotInUse), and the final
// remaining label never can (domain.ErrLastSlot).
func (v *View) RemoveSlot(ctx context.Context, label string) error {
	v.mu.Lock()
	err := v.registry.Remove(label, v.store.SlotInUse)
	labels := v.registry.Labels()
	v.mu.Unlock()
	if err != nil {
		if errors.Is(err, domain.ErrSlotInUse) {
			v.notifier.Error("That slot still has tasks scheduled")
		}
		if errors.Is(err, domain.ErrLastSlot) {
			v.notifier.Error("At least one slot must remain")
		}
		return err
	}

	v.bus.Publish(v.name, SlotsUpdated{Labels: labels})
	v.saveSnapshot(ctx)
	return nil
}

// RenameSlot renames a slot label and cascades the change to every task
// referencing it, locally and — best effort — server-side. The registry
// rename is authoritative and local-first: per-task persistence failures
// are logged, never rolled back. Renaming onto a label that already exists
// is rejected with domain.ErrSlotExists before anything moves.
func (v *View) RenameSlot(ctx context.Context, from, to string) error {
	v.mu.Lock()
	applied, err := v.registry.Rename(from, to)
	var moved []domain.Task
	var canonical string
	if applied {
		canonical = v.registry.Resolve(from)
		moved = v.store.RenameSlot(from, canonical)
	}
	v.mu.Unlock()
	if err != nil {
		v.notifier.Error("A slot with that name already exists")
		return err
	}
	if !applied {
		return nil
	}

	v.bus.Publish(v.name, SlotRenamed{From: from, To: canonical})
	v.saveSnapshot(ctx)
	v.notifier.Success("Slot renamed")

	if v.remote == nil {
		return nil
	}
	for _, t := range moved {
		if t.Temp() {
			continue
		}
		t := t
		v.wg.Add(1)
		go func() {
			defer v.wg.Done()
			rctx := context.WithoutCancel(ctx)
			if _, err := v.remote.Update(rctx, t.ID, domain.Patch{Slot: &t.Slot}); err != nil {
				v.log.Warn("rename cascade update failed", "view", v.name, "task", t.ID, "slot", t.Slot, "error", err)
			}
		}()
	}
	return nil
}

// handle consumes bus events published by other views in the same process.
func (v *View) handle(ev Event) {
	var reply Event

	v.mu.Lock()
	switch e := ev.(type) {
	case TaskUpserted:
		v.store.Upsert(e.Task)
	case TaskDeleted:
		v.store.Remove(e.ID)
	case SlotsUpdated:
		v.registry.Hydrate(e.Labels, v.registry.History().Entries())
	case SlotRenamed:
		// Idempotent: re-applying a rename that already happened changes
		// nothing in either the registry or the store. The cascade only
		// runs when this view's registry accepted the rename, so a
		// rejected broadcast can never clobber an occupied key.
		if applied, _ := v.registry.Rename(e.From, e.To); applied {
			v.store.RenameSlot(e.From, e.To)
		}
	case BulkSync:
		if !v.hydrated {
			v.hydrate(e.Tasks, e.Labels, e.Renames)
		}
	case ViewMounted:
		if v.hydrated {
			reply = BulkSync{
				Tasks:   v.store.All(),
				Labels:  v.registry.Labels(),
				Renames: v.registry.History().Entries(),
			}
		}
	}
	v.mu.Unlock()

	if reply != nil {
		v.bus.Publish(v.name, reply)
	}
}

// hydrate replaces the view's state wholesale. Slot labels arriving from a
// possibly stale source are resolved through the rename history before
// keying. Caller holds v.mu.
func (v *View) hydrate(tasks []domain.Task, labels []string, renames []slot.Rename) {
	v.registry.Hydrate(labels, renames)
	resolved := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		t.Slot = v.registry.Resolve(t.Slot)
		resolved = append(resolved, t)
	}
	v.store.Hydrate(resolved)
	v.hydrated = true
}

// saveSnapshot writes the view's full state to the durable store. Failures
// are logged, never surfaced — the snapshot is an availability aid, not a
// correctness dependency.
func (v *View) saveSnapshot(ctx context.Context) {
	if v.snaps == nil {
		return
	}
	v.mu.Lock()
	snap := snapshot.Snapshot{
		OwnerID: v.ownerID,
		Tasks:   v.store.All(),
		Labels:  v.registry.Labels(),
		Renames: v.registry.History().Entries(),
	}
	v.mu.Unlock()

	if err := v.snaps.Save(context.WithoutCancel(ctx), snap); err != nil {
		v.log.Warn("snapshot save failed", "view", v.name, "error", err)
	}
}

// watchLoop re-hydrates from the durable snapshot whenever another process
// saves one. Within this process the bus already delivered the change.
func (v *View) watchLoop(ctx context.Context, ch <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
		}

		snap, ok, err := v.snaps.Load(ctx, v.ownerID)
		if err != nil {
			v.log.Warn("snapshot reload failed", "view", v.name, "error", err)
			continue
		}
		if !ok {
			continue
		}
		v.mu.Lock()
		v.hydrate(snap.Tasks, snap.Labels, snap.Renames)
		v.mu.Unlock()
	}
}
