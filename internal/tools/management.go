package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/flowgate/n8n-mcp/internal/n8n"
	"github.com/mark3labs/mcp-go/mcp"
)

// managementTools returns the n8n management tools. Every handler
// resolves the request's instance context first, so each call is routed
// to the tenant the headers selected.
func (r *Registry) managementTools() []registration {
	return []registration{
		{
			tool: mcp.NewTool("n8n_list_workflows",
				mcp.WithDescription("List workflows on the n8n instance"),
				mcp.WithBoolean("active", mcp.Description("Only return workflows with this active state")),
				mcp.WithNumber("limit", mcp.Description("Page size (n8n default 100)")),
				mcp.WithString("cursor", mcp.Description("Pagination cursor from a previous page")),
			),
			handler: r.handleListWorkflows,
		},
		{
			tool: mcp.NewTool("n8n_get_workflow",
				mcp.WithDescription("Fetch one workflow by id"),
				mcp.WithString("id", mcp.Required(), mcp.Description("Workflow id")),
			),
			handler: r.handleGetWorkflow,
		},
		{
			tool: mcp.NewTool("n8n_create_workflow",
				mcp.WithDescription("Create a workflow from a JSON definition"),
				mcp.WithString("workflow", mcp.Required(), mcp.Description("Workflow JSON (object with name, nodes and connections)")),
			),
			handler: r.handleCreateWorkflow,
		},
		{
			tool: mcp.NewTool("n8n_update_workflow",
				mcp.WithDescription("Replace a workflow definition"),
				mcp.WithString("id", mcp.Required(), mcp.Description("Workflow id")),
				mcp.WithString("workflow", mcp.Required(), mcp.Description("Full replacement workflow JSON")),
			),
			handler: r.handleUpdateWorkflow,
		},
		{
			tool: mcp.NewTool("n8n_delete_workflow",
				mcp.WithDescription("Delete a workflow"),
				mcp.WithString("id", mcp.Required(), mcp.Description("Workflow id")),
			),
			handler: r.handleDeleteWorkflow,
		},
		{
			tool: mcp.NewTool("n8n_activate_workflow",
				mcp.WithDescription("Activate a workflow so its triggers run"),
				mcp.WithString("id", mcp.Required(), mcp.Description("Workflow id")),
			),
			handler: r.handleActivateWorkflow,
		},
		{
			tool: mcp.NewTool("n8n_deactivate_workflow",
				mcp.WithDescription("Deactivate a workflow"),
				mcp.WithString("id", mcp.Required(), mcp.Description("Workflow id")),
			),
			handler: r.handleDeactivateWorkflow,
		},
		{
			tool: mcp.NewTool("n8n_list_executions",
				mcp.WithDescription("List workflow executions"),
				mcp.WithString("workflow_id", mcp.Description("Only executions of this workflow")),
				mcp.WithString("status", mcp.Description("Filter by status: success, error or waiting")),
				mcp.WithNumber("limit", mcp.Description("Page size")),
				mcp.WithString("cursor", mcp.Description("Pagination cursor from a previous page")),
			),
			handler: r.handleListExecutions,
		},
		{
			tool: mcp.NewTool("n8n_get_execution",
				mcp.WithDescription("Fetch one execution, optionally including its run data"),
				mcp.WithString("id", mcp.Required(), mcp.Description("Execution id")),
				mcp.WithBoolean("include_data", mcp.Description("Include the full run data (can be large)")),
			),
			handler: r.handleGetExecution,
		},
		{
			tool: mcp.NewTool("n8n_delete_execution",
				mcp.WithDescription("Delete an execution record"),
				mcp.WithString("id", mcp.Required(), mcp.Description("Execution id")),
			),
			handler: r.handleDeleteExecution,
		},
		{
			tool: mcp.NewTool("n8n_trigger_webhook_workflow",
				mcp.WithDescription("Trigger a workflow through its webhook endpoint"),
				mcp.WithString("path", mcp.Required(), mcp.Description("Webhook path as configured on the Webhook node")),
				mcp.WithString("method", mcp.Description("HTTP method (default POST)")),
				mcp.WithString("payload", mcp.Description("JSON payload to send")),
			),
			handler: r.handleTriggerWebhook,
		},
		{
			tool: mcp.NewTool("n8n_health_check",
				mcp.WithDescription("Verify the n8n instance URL and API key are reachable and valid"),
			),
			handler: r.handleHealthCheck,
		},
	}
}

func (r *Registry) handleListWorkflows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := r.resolveClient(ctx)
	if err != nil {
		return apiErrorResult("n8n_list_workflows", err)
	}

	args := request.GetArguments()
	opts := n8n.ListWorkflowsOptions{}
	if v, ok := args["active"].(bool); ok {
		opts.Active = &v
	}
	if v, ok := args["limit"].(float64); ok {
		opts.Limit = int(v)
	}
	if v, ok := args["cursor"].(string); ok {
		opts.Cursor = v
	}

	list, err := client.ListWorkflows(ctx, opts)
	if err != nil {
		return apiErrorResult("n8n_list_workflows", err)
	}
	return jsonResult(list)
}

func (r *Registry) handleGetWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := r.resolveClient(ctx)
	if err != nil {
		return apiErrorResult("n8n_get_workflow", err)
	}

	id, _ := request.GetArguments()["id"].(string)
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}

	wf, err := client.GetWorkflow(ctx, id)
	if err != nil {
		return apiErrorResult("n8n_get_workflow", err)
	}
	return jsonResult(wf)
}

func decodeWorkflowArg(raw string) (*n8n.Workflow, *mcp.CallToolResult) {
	if raw == "" {
		return nil, mcp.NewToolResultError("workflow is required")
	}
	var wf n8n.Workflow
	if err := json.Unmarshal([]byte(raw), &wf); err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("workflow is not valid JSON: %v", err))
	}
	if report := ValidateWorkflow([]byte(raw), true); !report.Valid {
		data, _ := json.Marshal(report)
		return nil, mcp.NewToolResultError("workflow failed validation: " + string(data))
	}
	return &wf, nil
}

func (r *Registry) handleCreateWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := r.resolveClient(ctx)
	if err != nil {
		return apiErrorResult("n8n_create_workflow", err)
	}

	raw, _ := request.GetArguments()["workflow"].(string)
	wf, errResult := decodeWorkflowArg(raw)
	if errResult != nil {
		return errResult, nil
	}

	created, err := client.CreateWorkflow(ctx, wf)
	if err != nil {
		return apiErrorResult("n8n_create_workflow", err)
	}
	return jsonResult(created)
}

func (r *Registry) handleUpdateWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := r.resolveClient(ctx)
	if err != nil {
		return apiErrorResult("n8n_update_workflow", err)
	}

	args := request.GetArguments()
	id, _ := args["id"].(string)
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}
	raw, _ := args["workflow"].(string)
	wf, errResult := decodeWorkflowArg(raw)
	if errResult != nil {
		return errResult, nil
	}

	updated, err := client.UpdateWorkflow(ctx, id, wf)
	if err != nil {
		return apiErrorResult("n8n_update_workflow", err)
	}
	return jsonResult(updated)
}

func (r *Registry) handleDeleteWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := r.resolveClient(ctx)
	if err != nil {
		return apiErrorResult("n8n_delete_workflow", err)
	}

	id, _ := request.GetArguments()["id"].(string)
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}

	if err := client.DeleteWorkflow(ctx, id); err != nil {
		return apiErrorResult("n8n_delete_workflow", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("workflow %s deleted", id)), nil
}

func (r *Registry) handleActivateWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := r.resolveClient(ctx)
	if err != nil {
		return apiErrorResult("n8n_activate_workflow", err)
	}

	id, _ := request.GetArguments()["id"].(string)
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}

	wf, err := client.ActivateWorkflow(ctx, id)
	if err != nil {
		return apiErrorResult("n8n_activate_workflow", err)
	}
	return jsonResult(wf)
}

func (r *Registry) handleDeactivateWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := r.resolveClient(ctx)
	if err != nil {
		return apiErrorResult("n8n_deactivate_workflow", err)
	}

	id, _ := request.GetArguments()["id"].(string)
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}

	wf, err := client.DeactivateWorkflow(ctx, id)
	if err != nil {
		return apiErrorResult("n8n_deactivate_workflow", err)
	}
	return jsonResult(wf)
}

func (r *Registry) handleListExecutions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := r.resolveClient(ctx)
	if err != nil {
		return apiErrorResult("n8n_list_executions", err)
	}

	args := request.GetArguments()
	opts := n8n.ListExecutionsOptions{}
	if v, ok := args["workflow_id"].(string); ok {
		opts.WorkflowID = v
	}
	if v, ok := args["status"].(string); ok {
		opts.Status = v
	}
	if v, ok := args["limit"].(float64); ok {
		opts.Limit = int(v)
	}
	if v, ok := args["cursor"].(string); ok {
		opts.Cursor = v
	}

	list, err := client.ListExecutions(ctx, opts)
	if err != nil {
		return apiErrorResult("n8n_list_executions", err)
	}
	return jsonResult(list)
}

func (r *Registry) handleGetExecution(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := r.resolveClient(ctx)
	if err != nil {
		return apiErrorResult("n8n_get_execution", err)
	}

	args := request.GetArguments()
	id, _ := args["id"].(string)
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}
	includeData, _ := args["include_data"].(bool)

	exec, err := client.GetExecution(ctx, id, includeData)
	if err != nil {
		return apiErrorResult("n8n_get_execution", err)
	}
	return jsonResult(exec)
}

func (r *Registry) handleDeleteExecution(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := r.resolveClient(ctx)
	if err != nil {
		return apiErrorResult("n8n_delete_execution", err)
	}

	id, _ := request.GetArguments()["id"].(string)
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}

	if err := client.DeleteExecution(ctx, id); err != nil {
		return apiErrorResult("n8n_delete_execution", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("execution %s deleted", id)), nil
}

func (r *Registry) handleTriggerWebhook(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := r.resolveClient(ctx)
	if err != nil {
		return apiErrorResult("n8n_trigger_webhook_workflow", err)
	}

	args := request.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return mcp.NewToolResultError("path is required"), nil
	}
	method, _ := args["method"].(string)
	switch method {
	case "", http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unsupported webhook method: %s", method)), nil
	}

	var payload json.RawMessage
	if raw, ok := args["payload"].(string); ok && raw != "" {
		if !json.Valid([]byte(raw)) {
			return mcp.NewToolResultError("payload is not valid JSON"), nil
		}
		payload = json.RawMessage(raw)
	}

	status, body, err := client.TriggerWebhook(ctx, method, path, payload)
	if err != nil {
		return apiErrorResult("n8n_trigger_webhook_workflow", err)
	}
	if status >= http.StatusBadRequest {
		return mcp.NewToolResultError(fmt.Sprintf("webhook returned HTTP %d: %s", status, string(body))), nil
	}
	return jsonResult(map[string]interface{}{
		"status": status,
		"body":   string(body),
	})
}

func (r *Registry) handleHealthCheck(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := r.resolveClient(ctx)
	if err != nil {
		return apiErrorResult("n8n_health_check", err)
	}

	if err := client.CheckConnectivity(ctx); err != nil {
		return apiErrorResult("n8n_health_check", err)
	}
	return jsonResult(map[string]interface{}{
		"status":      "ok",
		"instance_id": client.Instance().ID,
		"url":         client.Instance().URL,
	})
}
