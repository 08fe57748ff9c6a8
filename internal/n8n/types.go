package n8n

import (
	"encoding/json"
	"fmt"
)

// Workflow mirrors the subset of the n8n public API workflow object the
// tools expose. Node and connection payloads stay raw: the gateway
// routes them, it does not interpret them beyond validation.
type Workflow struct {
	ID          string          `json:"id,omitempty"`
	Name        string          `json:"name"`
	Active      bool            `json:"active,omitempty"`
	Nodes       json.RawMessage `json:"nodes,omitempty"`
	Connections json.RawMessage `json:"connections,omitempty"`
	Settings    json.RawMessage `json:"settings,omitempty"`
	Tags        json.RawMessage `json:"tags,omitempty"`
	CreatedAt   string          `json:"createdAt,omitempty"`
	UpdatedAt   string          `json:"updatedAt,omitempty"`
}

// WorkflowList is a cursor-paginated workflow page.
type WorkflowList struct {
	Data       []Workflow `json:"data"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// Execution mirrors the n8n execution object.
type Execution struct {
	ID         json.Number     `json:"id"`
	WorkflowID string          `json:"workflowId,omitempty"`
	Status     string          `json:"status,omitempty"`
	Mode       string          `json:"mode,omitempty"`
	Finished   bool            `json:"finished,omitempty"`
	StartedAt  string          `json:"startedAt,omitempty"`
	StoppedAt  string          `json:"stoppedAt,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// ExecutionList is a cursor-paginated execution page.
type ExecutionList struct {
	Data       []Execution `json:"data"`
	NextCursor string      `json:"nextCursor,omitempty"`
}

// ListWorkflowsOptions narrows a workflow listing.
type ListWorkflowsOptions struct {
	Active *bool
	Limit  int
	Cursor string
}

// ListExecutionsOptions narrows an execution listing.
type ListExecutionsOptions struct {
	WorkflowID string
	Status     string
	Limit      int
	Cursor     string
}

// APIError is a non-2xx reply from the n8n API.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("n8n API error %d: %s", e.StatusCode, string(e.Body))
}
