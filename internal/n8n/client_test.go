package n8n

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flowgate/n8n-mcp/internal/config"
	"github.com/flowgate/n8n-mcp/internal/instance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	inst := &instance.Context{ID: "test", URL: srv.URL, APIKey: "test-key"}
	return NewClient(inst, 5*time.Second), srv
}

func TestListWorkflows(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/workflows", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-N8N-API-KEY"))
		assert.Equal(t, "true", r.URL.Query().Get("active"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))

		_ = json.NewEncoder(w).Encode(WorkflowList{
			Data:       []Workflow{{ID: "wf1", Name: "First", Active: true}},
			NextCursor: "abc",
		})
	})

	active := true
	list, err := client.ListWorkflows(context.Background(), ListWorkflowsOptions{Active: &active, Limit: 10})
	require.NoError(t, err)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "wf1", list.Data[0].ID)
	assert.Equal(t, "abc", list.NextCursor)
}

func TestGetWorkflow_NotFound(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"workflow not found"}`))
	})

	_, err := client.GetWorkflow(context.Background(), "missing")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, string(apiErr.Body), "workflow not found")
}

func TestCreateWorkflow(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/workflows", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "My Flow", body["name"])
		// settings must always be present, n8n rejects its absence
		assert.Contains(t, body, "settings")
		assert.NotContains(t, body, "active", "read-only fields must not be sent")

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Workflow{ID: "new1", Name: "My Flow"})
	})

	created, err := client.CreateWorkflow(context.Background(), &Workflow{
		Name:        "My Flow",
		Nodes:       json.RawMessage(`[]`),
		Connections: json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "new1", created.ID)
}

func TestActivateDeactivate(t *testing.T) {
	var gotPath string
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(Workflow{ID: "wf1", Active: r.URL.Path == "/api/v1/workflows/wf1/activate"})
	})

	wf, err := client.ActivateWorkflow(context.Background(), "wf1")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/workflows/wf1/activate", gotPath)
	assert.True(t, wf.Active)

	wf, err = client.DeactivateWorkflow(context.Background(), "wf1")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/workflows/wf1/deactivate", gotPath)
	assert.False(t, wf.Active)
}

func TestListExecutions(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "wf1", r.URL.Query().Get("workflowId"))
		assert.Equal(t, "error", r.URL.Query().Get("status"))
		_ = json.NewEncoder(w).Encode(ExecutionList{
			Data: []Execution{{ID: "42", WorkflowID: "wf1", Status: "error"}},
		})
	})

	list, err := client.ListExecutions(context.Background(), ListExecutionsOptions{WorkflowID: "wf1", Status: "error"})
	require.NoError(t, err)
	require.Len(t, list.Data, 1)
	assert.Equal(t, json.Number("42"), list.Data[0].ID)
}

func TestTriggerWebhook(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/webhook/my-hook", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "world", body["hello"])

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	status, body, err := client.TriggerWebhook(context.Background(), "", "my-hook", json.RawMessage(`{"hello":"world"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestTriggerWebhook_MultiSegmentPath(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/webhook/orders/created", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})

	status, _, err := client.TriggerWebhook(context.Background(), "", "orders/created", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
}

func TestCheckConnectivity_BadKey(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"unauthorized"}`))
	})

	err := client.CheckConnectivity(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestFactory_CachesPerInstance(t *testing.T) {
	f := NewFactory(&config.Config{N8n: config.N8nConfig{Timeout: time.Second}})

	a := &instance.Context{ID: "a", URL: "https://a.n8n.cloud", APIKey: "ka"}
	b := &instance.Context{ID: "b", URL: "https://b.n8n.cloud", APIKey: "kb"}

	ca := f.ClientFor(a)
	cb := f.ClientFor(b)
	assert.NotSame(t, ca, cb)
	assert.Same(t, ca, f.ClientFor(a), "same instance should reuse the cached client")

	// Rotated key replaces the cached client.
	rotated := &instance.Context{ID: "a", URL: "https://a.n8n.cloud", APIKey: "ka2"}
	assert.NotSame(t, ca, f.ClientFor(rotated))
}
