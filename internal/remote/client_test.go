package remote_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpetrov/slotplan/internal/api"
	"github.com/mpetrov/slotplan/internal/domain"
	"github.com/mpetrov/slotplan/internal/remote"
)

func TestClient_List(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/tasks", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]api.Task{
			{ID: "srv-1", Day: "2024-01-01", Slot: "9:00 AM - 10:00 AM", Description: "standup"},
		})
	}))
	defer srv.Close()

	c := remote.NewClient(srv.URL, "tok")
	got, err := c.List(context.Background())

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "srv-1", got[0].ID)
	assert.Equal(t, domain.StateConfirmed, got[0].State)
}

func TestClient_Create_SendsBodyWithoutID(t *testing.T) {
	var gotReq api.CreateTaskRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(api.Task{ID: "srv-1", Day: gotReq.Day, Slot: gotReq.Slot, Description: gotReq.Description})
	}))
	defer srv.Close()

	c := remote.NewClient(srv.URL, "tok")
	created, err := c.Create(context.Background(), domain.Task{
		ID: domain.NewTempID(), Day: "2024-01-01", Slot: "9:00 AM - 10:00 AM", Description: "standup",
	})

	require.NoError(t, err)
	assert.Equal(t, "srv-1", created.ID)
	assert.Equal(t, "2024-01-01", gotReq.Day, "the temp id stays local; only day/slot/description travel")
}

// TestClient_Create_DeduplicatedIsSuccess verifies that the server
// returning a pre-existing record (HTTP 200 instead of 201) is treated as
// a successful create.
func TestClient_Create_DeduplicatedIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.Task{ID: "existing-1", Day: "2024-01-01", Slot: "9:00 AM - 10:00 AM", Description: "already there"})
	}))
	defer srv.Close()

	c := remote.NewClient(srv.URL, "tok")
	created, err := c.Create(context.Background(), domain.Task{Day: "2024-01-01", Slot: "9:00 AM - 10:00 AM"})

	require.NoError(t, err)
	assert.Equal(t, "existing-1", created.ID)
	assert.Equal(t, "already there", created.Description)
}

func TestClient_Update_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(api.ErrorResponse{Error: api.ErrorDetail{Code: "not_found", Message: "task not found"}})
	}))
	defer srv.Close()

	c := remote.NewClient(srv.URL, "tok")
	done := true
	_, err := c.Update(context.Background(), "gone-1", domain.Patch{Completed: &done})

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClient_Update_ServerErrorIsReconciliationFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := remote.NewClient(srv.URL, "tok")
	done := true
	_, err := c.Update(context.Background(), "t1", domain.Patch{Completed: &done})

	assert.ErrorIs(t, err, domain.ErrReconciliationFailed)
}

func TestClient_Delete_Idempotent(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.Equal(t, http.MethodDelete, r.Method)
		json.NewEncoder(w).Encode(api.DeleteTaskResponse{Success: true, Count: int64(2 - calls)})
	}))
	defer srv.Close()

	c := remote.NewClient(srv.URL, "tok")

	require.NoError(t, c.Delete(context.Background(), "t1"))
	require.NoError(t, c.Delete(context.Background(), "t1"), "deleting twice is not an error")
}

func TestClient_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse all connections

	c := remote.NewClient(srv.URL, "tok")
	_, err := c.List(context.Background())

	assert.ErrorIs(t, err, domain.ErrReconciliationFailed)
}

func TestClient_BulkSave_StripsTempIDs(t *testing.T) {
	var gotReq api.BulkSaveRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tasks/bulk", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(api.BulkSaveResponse{Success: true})
	}))
	defer srv.Close()

	c := remote.NewClient(srv.URL, "tok")
	err := c.BulkSave(context.Background(), []domain.Task{
		{ID: domain.NewTempID(), Day: "2024-01-01", Slot: "9:00 AM - 10:00 AM", Description: "new"},
		{ID: "srv-1", Day: "2024-01-01", Slot: "1:00 PM - 2:00 PM", Description: "existing", Completed: true},
	}, []string{"srv-9"})

	require.NoError(t, err)
	require.Len(t, gotReq.Tasks, 2)
	assert.Empty(t, gotReq.Tasks[0].ID, "temporary ids are stripped so the server issues real ones")
	assert.Equal(t, "srv-1", gotReq.Tasks[1].ID)
	assert.Equal(t, []string{"srv-9"}, gotReq.Exclude)
}
