package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/flowgate/n8n-mcp/internal/nodedocs"
	"github.com/mark3labs/mcp-go/mcp"
)

// docsTools returns the documentation tools. None of them need an n8n
// instance, so they work for every tenant and in docs-only deployments.
func (r *Registry) docsTools() []registration {
	return []registration{
		{
			tool: mcp.NewTool("search_nodes",
				mcp.WithDescription("Search the n8n node documentation by name or description"),
				mcp.WithString("query", mcp.Required(), mcp.Description("Search term, matched against node type, display name and description")),
				mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20, max 100)")),
			),
			handler: r.handleSearchNodes,
		},
		{
			tool: mcp.NewTool("get_node",
				mcp.WithDescription("Get the full documentation record for one n8n node type"),
				mcp.WithString("node_type", mcp.Required(), mcp.Description("Full node type, e.g. n8n-nodes-base.httpRequest")),
			),
			handler: r.handleGetNode,
		},
		{
			tool: mcp.NewTool("list_ai_tools",
				mcp.WithDescription("List all n8n nodes usable as AI agent tools"),
			),
			handler: r.handleListAITools,
		},
		{
			tool: mcp.NewTool("validate_workflow",
				mcp.WithDescription("Validate the structure of an n8n workflow JSON document before creating it"),
				mcp.WithString("workflow", mcp.Required(), mcp.Description("Workflow JSON (object with name, nodes and connections)")),
				mcp.WithBoolean("allow_no_trigger", mcp.Description("Accept workflows without a trigger node")),
			),
			handler: r.handleValidateWorkflow,
		},
	}
}

type nodeSummary struct {
	NodeType    string `json:"nodeType"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Category    string `json:"category"`
	IsAITool    bool   `json:"isAiTool"`
	IsTrigger   bool   `json:"isTrigger"`
}

func summarize(n *nodedocs.Node) nodeSummary {
	return nodeSummary{
		NodeType:    n.NodeType,
		DisplayName: n.DisplayName,
		Description: n.Description,
		Category:    n.Category,
		IsAITool:    n.IsAITool,
		IsTrigger:   n.IsTrigger,
	}
}

func (r *Registry) handleSearchNodes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	query, _ := args["query"].(string)
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	limit := 0
	if v, ok := args["limit"].(float64); ok {
		limit = int(v)
	}

	nodes, err := r.store.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("node search failed: %w", err)
	}

	summaries := make([]nodeSummary, 0, len(nodes))
	for _, n := range nodes {
		summaries = append(summaries, summarize(n))
	}
	return jsonResult(map[string]interface{}{
		"query":   query,
		"results": summaries,
	})
}

func (r *Registry) handleGetNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodeType, _ := request.GetArguments()["node_type"].(string)
	if nodeType == "" {
		return mcp.NewToolResultError("node_type is required"), nil
	}

	node, err := r.store.Get(ctx, nodeType)
	if errors.Is(err, nodedocs.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown node type: %s", nodeType)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("node lookup failed: %w", err)
	}

	return jsonResult(map[string]interface{}{
		"nodeType":    node.NodeType,
		"displayName": node.DisplayName,
		"description": node.Description,
		"category":    node.Category,
		"package":     node.Package,
		"isAiTool":    node.IsAITool,
		"isTrigger":   node.IsTrigger,
		"properties":  json.RawMessage(node.Properties),
		"operations":  json.RawMessage(node.Operations),
	})
}

func (r *Registry) handleListAITools(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodes, err := r.store.ListAITools(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list AI tools: %w", err)
	}

	summaries := make([]nodeSummary, 0, len(nodes))
	for _, n := range nodes {
		summaries = append(summaries, summarize(n))
	}
	return jsonResult(map[string]interface{}{"tools": summaries})
}

func (r *Registry) handleValidateWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	raw, _ := args["workflow"].(string)
	if raw == "" {
		return mcp.NewToolResultError("workflow is required"), nil
	}
	allowNoTrigger, _ := args["allow_no_trigger"].(bool)

	report := ValidateWorkflow([]byte(raw), allowNoTrigger)
	return jsonResult(report)
}
