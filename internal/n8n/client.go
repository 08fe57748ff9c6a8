// Package n8n is the REST client for the n8n public API. A Client is
// bound to one instance context; the Factory hands out cached clients
// keyed by instance id so multi-tenant requests reuse connections.
package n8n

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/flowgate/n8n-mcp/internal/config"
	"github.com/flowgate/n8n-mcp/internal/instance"
	"github.com/flowgate/n8n-mcp/internal/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	apiBasePath  = "/api/v1"
	apiKeyHeader = "X-N8N-API-KEY"
)

// Client talks to a single n8n instance.
type Client struct {
	inst   *instance.Context
	client *http.Client
}

// NewClient creates a client for the given instance context.
func NewClient(inst *instance.Context, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		inst:   inst,
		client: &http.Client{Timeout: timeout},
	}
}

// Instance returns the instance context this client is bound to.
func (c *Client) Instance() *instance.Context {
	return c.inst
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	u := c.inst.URL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.inst.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger.Debug("n8n API request",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("instance_id", c.inst.ID),
	)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return &APIError{StatusCode: resp.StatusCode, Body: respBody}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// ListWorkflows returns a page of workflows.
func (c *Client) ListWorkflows(ctx context.Context, opts ListWorkflowsOptions) (*WorkflowList, error) {
	q := url.Values{}
	if opts.Active != nil {
		q.Set("active", strconv.FormatBool(*opts.Active))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		q.Set("cursor", opts.Cursor)
	}

	var list WorkflowList
	if err := c.do(ctx, http.MethodGet, apiBasePath+"/workflows", q, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetWorkflow fetches a workflow by id.
func (c *Client) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	var wf Workflow
	if err := c.do(ctx, http.MethodGet, apiBasePath+"/workflows/"+url.PathEscape(id), nil, nil, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// CreateWorkflow creates a workflow. n8n rejects payloads carrying
// read-only fields, so only name/nodes/connections/settings are sent.
func (c *Client) CreateWorkflow(ctx context.Context, wf *Workflow) (*Workflow, error) {
	payload := map[string]interface{}{
		"name":        wf.Name,
		"nodes":       wf.Nodes,
		"connections": wf.Connections,
	}
	if len(wf.Settings) > 0 {
		payload["settings"] = wf.Settings
	} else {
		payload["settings"] = map[string]interface{}{}
	}

	var created Workflow
	if err := c.do(ctx, http.MethodPost, apiBasePath+"/workflows", nil, payload, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateWorkflow replaces a workflow definition.
func (c *Client) UpdateWorkflow(ctx context.Context, id string, wf *Workflow) (*Workflow, error) {
	payload := map[string]interface{}{
		"name":        wf.Name,
		"nodes":       wf.Nodes,
		"connections": wf.Connections,
	}
	if len(wf.Settings) > 0 {
		payload["settings"] = wf.Settings
	} else {
		payload["settings"] = map[string]interface{}{}
	}

	var updated Workflow
	if err := c.do(ctx, http.MethodPut, apiBasePath+"/workflows/"+url.PathEscape(id), nil, payload, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteWorkflow removes a workflow.
func (c *Client) DeleteWorkflow(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, apiBasePath+"/workflows/"+url.PathEscape(id), nil, nil, nil)
}

// ActivateWorkflow turns a workflow on.
func (c *Client) ActivateWorkflow(ctx context.Context, id string) (*Workflow, error) {
	var wf Workflow
	if err := c.do(ctx, http.MethodPost, apiBasePath+"/workflows/"+url.PathEscape(id)+"/activate", nil, nil, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// DeactivateWorkflow turns a workflow off.
func (c *Client) DeactivateWorkflow(ctx context.Context, id string) (*Workflow, error) {
	var wf Workflow
	if err := c.do(ctx, http.MethodPost, apiBasePath+"/workflows/"+url.PathEscape(id)+"/deactivate", nil, nil, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// ListExecutions returns a page of executions.
func (c *Client) ListExecutions(ctx context.Context, opts ListExecutionsOptions) (*ExecutionList, error) {
	q := url.Values{}
	if opts.WorkflowID != "" {
		q.Set("workflowId", opts.WorkflowID)
	}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		q.Set("cursor", opts.Cursor)
	}

	var list ExecutionList
	if err := c.do(ctx, http.MethodGet, apiBasePath+"/executions", q, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetExecution fetches an execution, optionally with its run data.
func (c *Client) GetExecution(ctx context.Context, id string, includeData bool) (*Execution, error) {
	q := url.Values{}
	if includeData {
		q.Set("includeData", "true")
	}

	var exec Execution
	if err := c.do(ctx, http.MethodGet, apiBasePath+"/executions/"+url.PathEscape(id), q, nil, &exec); err != nil {
		return nil, err
	}
	return &exec, nil
}

// DeleteExecution removes an execution record.
func (c *Client) DeleteExecution(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, apiBasePath+"/executions/"+url.PathEscape(id), nil, nil, nil)
}

// TriggerWebhook calls a workflow's webhook endpoint. Webhook paths live
// outside the public API prefix.
func (c *Client) TriggerWebhook(ctx context.Context, method, webhookPath string, payload json.RawMessage) (int, []byte, error) {
	if method == "" {
		method = http.MethodPost
	}
	u := c.inst.URL + "/webhook/" + escapeWebhookPath(webhookPath)

	var reader io.Reader
	if len(payload) > 0 {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build webhook request: %w", err)
	}
	if len(payload) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read webhook response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// escapeWebhookPath escapes each path segment separately. Webhook paths
// may span multiple segments (e.g. "orders/created"), so the slashes
// must survive.
func escapeWebhookPath(p string) string {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// CheckConnectivity verifies the instance URL and API key by listing a
// single workflow.
func (c *Client) CheckConnectivity(ctx context.Context) error {
	_, err := c.ListWorkflows(ctx, ListWorkflowsOptions{Limit: 1})
	return err
}

// Factory hands out per-instance clients, cached by instance id.
type Factory struct {
	mu      sync.Mutex
	clients map[string]*Client
	timeout time.Duration
}

// NewFactory creates a client factory using the configured timeout.
func NewFactory(cfg *config.Config) *Factory {
	return &Factory{
		clients: make(map[string]*Client),
		timeout: cfg.N8n.Timeout,
	}
}

// ClientFor returns the cached client for an instance, creating one on
// first use. A changed API key for the same instance id replaces the
// cached client.
func (f *Factory) ClientFor(inst *instance.Context) *Client {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients[inst.ID]; ok && c.inst.APIKey == inst.APIKey && c.inst.URL == inst.URL {
		return c
	}
	c := NewClient(inst, f.timeout)
	f.clients[inst.ID] = c
	return c
}

// Module provides the n8n client factory
var Module = fx.Module("n8n",
	fx.Provide(NewFactory),
)
