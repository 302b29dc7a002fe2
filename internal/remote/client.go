// Package remote implements the reconciliation adapter: the HTTP client
// that translates task store intents into persistence service calls. It
// performs no automatic retries — failures are reported immediately so the
// engine can revert the optimistic mutation and notify the user.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mpetrov/slotplan/internal/api"
	"github.com/mpetrov/slotplan/internal/domain"
)

// Client talks to the task persistence service on behalf of one owner.
// The bearer token carries the owner identity; the server scopes every
// operation by it.
type Client struct {
	baseURL string
	token   string
	http    *http.Client

	// group collapses concurrent List calls — two views mounting at the
	// same instant share one fetch.
	group singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client, e.g. to shorten
// timeouts in tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient returns a Client for the persistence service at baseURL,
// authenticating with the given bearer token.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List returns all of the owner's non-deleted tasks.
func (c *Client) List(ctx context.Context) ([]domain.Task, error) {
	v, err, _ := c.group.Do("list", func() (any, error) {
		var wire []api.Task
		if err := c.do(ctx, http.MethodGet, "/api/tasks", nil, &wire); err != nil {
			return nil, fmt.Errorf("remote.Client.List: %w", err)
		}
		tasks := make([]domain.Task, 0, len(wire))
		for _, w := range wire {
			tasks = append(tasks, w.ToDomain(""))
		}
		return tasks, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Task), nil
}

// Create persists a new task. The service de-duplicates by exact
// (owner, day, slot) match and returns the pre-existing record instead of
// erroring; either way the returned task carries the server id.
func (c *Client) Create(ctx context.Context, t domain.Task) (domain.Task, error) {
	body := api.CreateTaskRequest{Day: t.Day, Slot: t.Slot, Description: t.Description}
	var wire api.Task
	if err := c.do(ctx, http.MethodPost, "/api/tasks", body, &wire); err != nil {
		return domain.Task{}, fmt.Errorf("remote.Client.Create: %w", err)
	}
	return wire.ToDomain(t.OwnerID), nil
}

// Update applies a partial update to the task with id. A 404 comes back as
// domain.ErrNotFound — the record is assumed already gone.
func (c *Client) Update(ctx context.Context, id string, p domain.Patch) (domain.Task, error) {
	body := api.UpdateTaskRequest{Description: p.Description, Completed: p.Completed, Slot: p.Slot}
	var wire api.Task
	if err := c.do(ctx, http.MethodPatch, "/api/tasks/"+id, body, &wire); err != nil {
		return domain.Task{}, fmt.Errorf("remote.Client.Update: %w", err)
	}
	return wire.ToDomain(""), nil
}

// Delete soft-deletes the task with id. Deleting an already-deleted or
// unknown record is not an error.
func (c *Client) Delete(ctx context.Context, id string) error {
	var resp api.DeleteTaskResponse
	if err := c.do(ctx, http.MethodDelete, "/api/tasks/"+id, nil, &resp); err != nil {
		return fmt.Errorf("remote.Client.Delete: %w", err)
	}
	return nil
}

// BulkSave upserts all tasks — records with temporary ids are sent without
// an id so the server creates them — and prunes previously known records
// in the same day range that are absent from the list and not in exclude.
func (c *Client) BulkSave(ctx context.Context, tasks []domain.Task, exclude []string) error {
	req := api.BulkSaveRequest{Exclude: exclude}
	for _, t := range tasks {
		b := api.BulkTask{Day: t.Day, Slot: t.Slot, Description: t.Description, Completed: t.Completed}
		if !t.Temp() {
			b.ID = t.ID
		}
		req.Tasks = append(req.Tasks, b)
	}

	var resp api.BulkSaveResponse
	if err := c.do(ctx, http.MethodPost, "/api/tasks/bulk", req, &resp); err != nil {
		return fmt.Errorf("remote.Client.BulkSave: %w", err)
	}
	return nil
}

// do performs one JSON round trip. Non-2xx statuses map to the error
// taxonomy: 404 → domain.ErrNotFound, everything else →
// domain.ErrReconciliationFailed with the server's message attached when
// it sent one.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrReconciliationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr api.ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("%w: %s: %s", domain.ErrReconciliationFailed, resp.Status, apiErr.Error.Message)
		}
		return fmt.Errorf("%w: %s", domain.ErrReconciliationFailed, resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %w", domain.ErrReconciliationFailed, err)
	}
	return nil
}
