package tools

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ValidationReport is the result of a structural workflow check.
type ValidationReport struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Nodes    int      `json:"nodes"`
}

type workflowDoc struct {
	Name        string                                  `json:"name"`
	Nodes       []workflowNode                          `json:"nodes"`
	Connections map[string]map[string][]json.RawMessage `json:"connections"`
}

type workflowNode struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type connectionTarget struct {
	Node string `json:"node"`
}

// ValidateWorkflow checks a workflow document for the structural
// problems the n8n API rejects or silently accepts into a broken state:
// missing nodes, duplicate node names, connections referencing unknown
// nodes, and trigger-less workflows that can never run.
func ValidateWorkflow(raw []byte, allowNoTrigger bool) *ValidationReport {
	report := &ValidationReport{}

	var wf workflowDoc
	if err := json.Unmarshal(raw, &wf); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("invalid JSON: %v", err))
		return report
	}

	if wf.Name == "" {
		report.Warnings = append(report.Warnings, "workflow has no name")
	}
	if len(wf.Nodes) == 0 {
		report.Errors = append(report.Errors, "workflow has no nodes")
		return report
	}
	report.Nodes = len(wf.Nodes)

	names := make(map[string]bool, len(wf.Nodes))
	hasTrigger := false
	for _, node := range wf.Nodes {
		if node.Name == "" {
			report.Errors = append(report.Errors, "node with empty name")
			continue
		}
		if names[node.Name] {
			report.Errors = append(report.Errors, fmt.Sprintf("duplicate node name: %q", node.Name))
		}
		names[node.Name] = true
		if isTriggerType(node.Type) {
			hasTrigger = true
		}
	}

	for source, outputs := range wf.Connections {
		if !names[source] {
			report.Errors = append(report.Errors, fmt.Sprintf("connection from unknown node: %q", source))
		}
		for _, branches := range outputs {
			for _, branch := range branches {
				var targets []connectionTarget
				if err := json.Unmarshal(branch, &targets); err != nil {
					report.Errors = append(report.Errors, fmt.Sprintf("malformed connection branch from %q", source))
					continue
				}
				for _, target := range targets {
					if target.Node != "" && !names[target.Node] {
						report.Errors = append(report.Errors, fmt.Sprintf("connection from %q to unknown node: %q", source, target.Node))
					}
				}
			}
		}
	}

	if !hasTrigger && !allowNoTrigger {
		report.Errors = append(report.Errors, "workflow has no trigger node and can never start")
	}

	report.Valid = len(report.Errors) == 0
	return report
}

// isTriggerType matches the naming convention n8n trigger nodes follow.
// The webhook and manual-start nodes do not carry the suffix.
func isTriggerType(nodeType string) bool {
	lower := strings.ToLower(nodeType)
	return strings.HasSuffix(lower, "trigger") ||
		strings.HasSuffix(lower, ".webhook") ||
		strings.HasSuffix(lower, ".start") ||
		strings.HasSuffix(lower, ".manualtrigger") ||
		strings.Contains(lower, ".cron")
}
