// Package tools defines the MCP tool surface of the gateway: node
// documentation tools backed by the embedded store, and n8n management
// tools proxied to the instance resolved for the request.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flowgate/n8n-mcp/internal/config"
	"github.com/flowgate/n8n-mcp/internal/instance"
	"github.com/flowgate/n8n-mcp/internal/logger"
	"github.com/flowgate/n8n-mcp/internal/metrics"
	"github.com/flowgate/n8n-mcp/internal/n8n"
	"github.com/flowgate/n8n-mcp/internal/nodedocs"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Registry builds and registers the gateway's tools.
type Registry struct {
	cfg     *config.Config
	store   *nodedocs.Store
	factory *n8n.Factory
	metrics *metrics.Metrics
}

// RegistryParams collects the registry dependencies.
type RegistryParams struct {
	fx.In

	Config  *config.Config
	Store   *nodedocs.Store
	Factory *n8n.Factory
	Metrics *metrics.Metrics `optional:"true"`
}

// NewRegistry creates a tool registry.
func NewRegistry(params RegistryParams) *Registry {
	return &Registry{
		cfg:     params.Config,
		store:   params.Store,
		factory: params.Factory,
		metrics: params.Metrics,
	}
}

type toolHandler = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Register adds every tool to the MCP server.
func (r *Registry) Register(srv *mcpserver.MCPServer) {
	for _, t := range r.docsTools() {
		srv.AddTool(t.tool, r.instrument(t.tool.Name, t.handler))
	}
	for _, t := range r.managementTools() {
		srv.AddTool(t.tool, r.instrument(t.tool.Name, t.handler))
	}
}

type registration struct {
	tool    mcp.Tool
	handler toolHandler
}

// instrument wraps a handler with logging and metrics.
func (r *Registry) instrument(name string, h toolHandler) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		result, err := h(ctx, request)
		elapsed := time.Since(start)

		outcome := "ok"
		if err != nil || (result != nil && result.IsError) {
			outcome = "error"
		}
		if r.metrics != nil {
			r.metrics.ObserveToolCall(name, outcome, elapsed.Seconds())
		}
		logger.Debug("tool call",
			zap.String("tool", name),
			zap.String("outcome", outcome),
			zap.Duration("duration", elapsed),
		)
		return result, err
	}
}

// resolveClient returns the n8n client for the request's instance
// context, falling back to the configured default instance.
func (r *Registry) resolveClient(ctx context.Context) (*n8n.Client, error) {
	if inst, ok := instance.FromContext(ctx); ok {
		return r.factory.ClientFor(inst), nil
	}
	if r.cfg.N8n.URL != "" {
		return r.factory.ClientFor(&instance.Context{
			ID:     "default",
			URL:    r.cfg.N8n.URL,
			APIKey: r.cfg.N8n.APIKey,
		}), nil
	}
	return nil, instance.ErrNoContext
}

// jsonResult marshals v as an indented text result.
func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// apiErrorResult maps an n8n call failure to a tool error result.
// Transport failures stay Go errors; API rejections become tool errors
// the model can read.
func apiErrorResult(op string, err error) (*mcp.CallToolResult, error) {
	var apiErr *n8n.APIError
	if errors.As(err, &apiErr) {
		return mcp.NewToolResultError(fmt.Sprintf("%s failed: HTTP %d: %s", op, apiErr.StatusCode, string(apiErr.Body))), nil
	}
	if errors.Is(err, instance.ErrNoContext) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return nil, fmt.Errorf("%s failed: %w", op, err)
}

// Module provides the tool registry
var Module = fx.Module("tools",
	fx.Provide(NewRegistry),
)
