package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasktree-go/app/clock"
	"tasktree-go/app/controllers"
	"tasktree-go/app/models"
	"tasktree-go/app/services"
	"tasktree-go/app/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *services.TaskService) {
	t.Helper()
	adapter := store.NewAdapter(store.NewMemoryBackend())
	svc, err := services.Open(context.Background(), adapter, clock.Fake(time.Date(2026, 2, 12, 10, 0, 0, 0, time.UTC)), nil)
	require.NoError(t, err)

	server := httptest.NewServer(NewRouter(controllers.NewTaskController(svc, nil)))
	t.Cleanup(server.Close)
	return server, svc
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func createTask(t *testing.T, baseURL, parentID, title string) models.Task {
	t.Helper()
	body, err := json.Marshal(map[string]string{"parent_id": parentID, "title": title})
	require.NoError(t, err)
	resp := do(t, http.MethodPost, baseURL+"/tasks", string(body))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeBody[models.Task](t, resp)
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	server, svc := newTestServer(t)
	root := svc.RootID()

	a := createTask(t, server.URL, "", "A")
	assert.Equal(t, root, a.Parent())
	b := createTask(t, server.URL, a.ID, "B")

	resp := do(t, http.MethodGet, server.URL+"/tasks/"+b.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "B", decodeBody[models.Task](t, resp).Title)

	resp = do(t, http.MethodPatch, server.URL+"/tasks/"+b.ID, `{"status":"in_progress","assignee":"kim"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeBody[models.Task](t, resp)
	assert.Equal(t, models.StatusInProgress, updated.Status)
	assert.Equal(t, "kim", updated.Assignee)
	assert.Equal(t, "B", updated.Title)

	resp = do(t, http.MethodGet, server.URL+"/tasks", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	all := decodeBody[[]models.Task](t, resp)
	require.Len(t, all, 3)
	assert.Equal(t, []string{root, a.ID, b.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	resp = do(t, http.MethodGet, server.URL+"/tasks?root="+a.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeBody[[]models.Task](t, resp), 2)

	resp = do(t, http.MethodGet, server.URL+"/tasks/"+root+"/children", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	children := decodeBody[[]models.Task](t, resp)
	require.Len(t, children, 1)
	assert.Equal(t, a.ID, children[0].ID)

	resp = do(t, http.MethodPost, server.URL+"/tasks/"+b.ID+"/move", `{"parent_id":"`+root+`","position":0}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, root, decodeBody[models.Task](t, resp).Parent())

	resp = do(t, http.MethodPost, server.URL+"/tasks/"+b.ID+"/close", `{"reason":"merged"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	closed := decodeBody[models.Task](t, resp)
	assert.Equal(t, models.StatusDone, closed.Status)
	assert.Equal(t, "merged", closed.CloseReason)

	resp = do(t, http.MethodGet, server.URL+"/tasks/search?q=b", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	found := decodeBody[[]models.Task](t, resp)
	require.Len(t, found, 1)
	assert.Equal(t, b.ID, found[0].ID)

	resp = do(t, http.MethodGet, server.URL+"/tasks/"+root+"/tree", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))

	resp = do(t, http.MethodDelete, server.URL+"/tasks/"+a.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]int{"removed": 1}, decodeBody[map[string]int](t, resp))

	resp = do(t, http.MethodGet, server.URL+"/healthz", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, root, decodeBody[map[string]string](t, resp)["root_id"])
}

func TestErrorStatusMapping(t *testing.T) {
	server, svc := newTestServer(t)
	root := svc.RootID()
	a := createTask(t, server.URL, "", "A")
	b := createTask(t, server.URL, a.ID, "B")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		kind   string
	}{
		{"missing task", http.MethodGet, "/tasks/" + models.NewID(), "", http.StatusNotFound, "not_found"},
		{"malformed id", http.MethodGet, "/tasks/not-a-uuid", "", http.StatusBadRequest, "invalid_argument"},
		{"blank title", http.MethodPost, "/tasks", `{"title":" "}`, http.StatusBadRequest, "invalid_argument"},
		{"bad json", http.MethodPost, "/tasks", `{"title":`, http.StatusBadRequest, "invalid_argument"},
		{"cycle", http.MethodPost, "/tasks/" + a.ID + "/move", `{"parent_id":"` + b.ID + `"}`, http.StatusConflict, "cycle_detected"},
		{"delete root", http.MethodDelete, "/tasks/" + root, "", http.StatusForbidden, "forbidden"},
		{"bogus status", http.MethodPut, "/tasks/" + a.ID, `{"status":"bogus"}`, http.StatusUnprocessableEntity, "invalid_state"},
		{"blank search", http.MethodGet, "/tasks/search?q=", "", http.StatusBadRequest, "invalid_argument"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, tt.method, server.URL+tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			body := decodeBody[map[string]string](t, resp)
			assert.Equal(t, tt.kind, body["error"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestCloseWithoutBody(t *testing.T) {
	server, _ := newTestServer(t)
	a := createTask(t, server.URL, "", "A")

	resp := do(t, http.MethodPost, server.URL+"/tasks/"+a.ID+"/close", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.StatusDone, decodeBody[models.Task](t, resp).Status)
}
