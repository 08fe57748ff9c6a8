package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flowgate/n8n-mcp/internal/config"
	"github.com/flowgate/n8n-mcp/internal/instance"
	"github.com/flowgate/n8n-mcp/internal/n8n"
	"github.com/flowgate/n8n-mcp/internal/nodedocs"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T, cfg *config.Config) *Registry {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{N8n: config.N8nConfig{Timeout: 5 * time.Second}}
	}
	store, err := nodedocs.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Upsert(context.Background(), &nodedocs.Node{
		NodeType:    "n8n-nodes-base.httpRequest",
		DisplayName: "HTTP Request",
		Description: "Makes an HTTP request",
		Category:    "Core Nodes",
		IsAITool:    true,
		Properties:  `[{"name":"url"}]`,
	}))

	return NewRegistry(RegistryParams{
		Config:  cfg,
		Store:   store,
		Factory: n8n.NewFactory(cfg),
	})
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	request := mcp.CallToolRequest{}
	request.Params.Name = name
	request.Params.Arguments = args
	return request
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestSearchNodesHandler(t *testing.T) {
	r := testRegistry(t, nil)

	result, err := r.handleSearchNodes(context.Background(), callRequest("search_nodes", map[string]interface{}{
		"query": "http",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var payload struct {
		Query   string        `json:"query"`
		Results []nodeSummary `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &payload))
	require.Len(t, payload.Results, 1)
	assert.Equal(t, "n8n-nodes-base.httpRequest", payload.Results[0].NodeType)
}

func TestSearchNodesHandler_MissingQuery(t *testing.T) {
	r := testRegistry(t, nil)

	result, err := r.handleSearchNodes(context.Background(), callRequest("search_nodes", map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestGetNodeHandler(t *testing.T) {
	r := testRegistry(t, nil)

	result, err := r.handleGetNode(context.Background(), callRequest("get_node", map[string]interface{}{
		"node_type": "n8n-nodes-base.httpRequest",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), `"displayName": "HTTP Request"`)

	result, err = r.handleGetNode(context.Background(), callRequest("get_node", map[string]interface{}{
		"node_type": "n8n-nodes-base.unknown",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestManagementTool_NoInstance(t *testing.T) {
	r := testRegistry(t, nil)

	result, err := r.handleListWorkflows(context.Background(), callRequest("n8n_list_workflows", map[string]interface{}{}))
	require.NoError(t, err)
	require.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "no n8n instance configured")
}

func TestManagementTool_HeaderInstance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "tenant-key", req.Header.Get("X-N8N-API-KEY"))
		_ = json.NewEncoder(w).Encode(n8n.WorkflowList{Data: []n8n.Workflow{{ID: "wf1", Name: "Tenant Flow"}}})
	}))
	t.Cleanup(srv.Close)

	r := testRegistry(t, nil)
	ctx := instance.NewContext(context.Background(), &instance.Context{
		ID: "tenant-a", URL: srv.URL, APIKey: "tenant-key",
	})

	result, err := r.handleListWorkflows(ctx, callRequest("n8n_list_workflows", map[string]interface{}{}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Tenant Flow")
}

func TestManagementTool_DefaultInstanceFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "default-key", req.Header.Get("X-N8N-API-KEY"))
		_ = json.NewEncoder(w).Encode(n8n.WorkflowList{})
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{N8n: config.N8nConfig{URL: srv.URL, APIKey: "default-key", Timeout: 5 * time.Second}}
	r := testRegistry(t, cfg)

	result, err := r.handleListWorkflows(context.Background(), callRequest("n8n_list_workflows", map[string]interface{}{}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestManagementTool_APIErrorBecomesToolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid api key"}`))
	}))
	t.Cleanup(srv.Close)

	r := testRegistry(t, nil)
	ctx := instance.NewContext(context.Background(), &instance.Context{
		ID: "tenant-a", URL: srv.URL, APIKey: "bad",
	})

	result, err := r.handleGetWorkflow(ctx, callRequest("n8n_get_workflow", map[string]interface{}{"id": "wf1"}))
	require.NoError(t, err, "API rejections must not bubble up as transport errors")
	require.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "HTTP 401")
}

func TestCreateWorkflowHandler_RejectsInvalidDefinition(t *testing.T) {
	r := testRegistry(t, nil)
	ctx := instance.NewContext(context.Background(), &instance.Context{
		ID: "tenant-a", URL: "http://unused.invalid", APIKey: "k",
	})

	result, err := r.handleCreateWorkflow(ctx, callRequest("n8n_create_workflow", map[string]interface{}{
		"workflow": `{"name":"broken","nodes":[],"connections":{}}`,
	}))
	require.NoError(t, err)
	require.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "failed validation")
}

func TestTriggerWebhookHandler(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/webhook/order-created", req.URL.Path)
		_, _ = w.Write([]byte(`{"received":true}`))
	}))
	t.Cleanup(srv.Close)

	r := testRegistry(t, nil)
	ctx := instance.NewContext(context.Background(), &instance.Context{
		ID: "tenant-a", URL: srv.URL, APIKey: "k",
	})

	result, err := r.handleTriggerWebhook(ctx, callRequest("n8n_trigger_webhook_workflow", map[string]interface{}{
		"path":    "order-created",
		"payload": `{"order":1}`,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "received")

	result, err = r.handleTriggerWebhook(ctx, callRequest("n8n_trigger_webhook_workflow", map[string]interface{}{
		"path":   "order-created",
		"method": "PATCH",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestRegister_AddsAllTools(t *testing.T) {
	r := testRegistry(t, nil)

	docs := r.docsTools()
	mgmt := r.managementTools()
	assert.Len(t, docs, 4)
	assert.Len(t, mgmt, 12)

	seen := map[string]bool{}
	for _, reg := range append(docs, mgmt...) {
		assert.False(t, seen[reg.tool.Name], "duplicate tool name %s", reg.tool.Name)
		seen[reg.tool.Name] = true
		assert.NotNil(t, reg.handler)
	}
	assert.True(t, seen["search_nodes"])
	assert.True(t, seen["n8n_trigger_webhook_workflow"])
}
