package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validWorkflow = `{
	"name": "Notify on form submission",
	"nodes": [
		{"name": "Webhook", "type": "n8n-nodes-base.webhook"},
		{"name": "Slack", "type": "n8n-nodes-base.slack"}
	],
	"connections": {
		"Webhook": {"main": [[{"node": "Slack", "type": "main", "index": 0}]]}
	}
}`

func TestValidateWorkflow_Valid(t *testing.T) {
	report := ValidateWorkflow([]byte(validWorkflow), false)

	assert.True(t, report.Valid)
	assert.Empty(t, report.Errors)
	assert.Equal(t, 2, report.Nodes)
}

func TestValidateWorkflow_InvalidJSON(t *testing.T) {
	report := ValidateWorkflow([]byte(`{not json`), false)

	assert.False(t, report.Valid)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "invalid JSON")
}

func TestValidateWorkflow_NoNodes(t *testing.T) {
	report := ValidateWorkflow([]byte(`{"name":"empty","nodes":[],"connections":{}}`), false)

	assert.False(t, report.Valid)
	assert.Contains(t, report.Errors, "workflow has no nodes")
}

func TestValidateWorkflow_DuplicateNames(t *testing.T) {
	wf := `{
		"name": "dup",
		"nodes": [
			{"name": "Webhook", "type": "n8n-nodes-base.webhook"},
			{"name": "Webhook", "type": "n8n-nodes-base.webhook"}
		],
		"connections": {}
	}`
	report := ValidateWorkflow([]byte(wf), false)

	assert.False(t, report.Valid)
	assert.Contains(t, report.Errors, `duplicate node name: "Webhook"`)
}

func TestValidateWorkflow_UnknownConnectionTarget(t *testing.T) {
	wf := `{
		"name": "dangling",
		"nodes": [{"name": "Webhook", "type": "n8n-nodes-base.webhook"}],
		"connections": {
			"Webhook": {"main": [[{"node": "Missing", "type": "main", "index": 0}]]},
			"Ghost": {"main": [[{"node": "Webhook", "type": "main", "index": 0}]]}
		}
	}`
	report := ValidateWorkflow([]byte(wf), false)

	assert.False(t, report.Valid)
	assert.Contains(t, report.Errors, `connection from "Webhook" to unknown node: "Missing"`)
	assert.Contains(t, report.Errors, `connection from unknown node: "Ghost"`)
}

func TestValidateWorkflow_TriggerDetection(t *testing.T) {
	wf := `{
		"name": "no trigger",
		"nodes": [{"name": "Slack", "type": "n8n-nodes-base.slack"}],
		"connections": {}
	}`

	report := ValidateWorkflow([]byte(wf), false)
	assert.False(t, report.Valid)
	assert.Contains(t, report.Errors, "workflow has no trigger node and can never start")

	report = ValidateWorkflow([]byte(wf), true)
	assert.True(t, report.Valid)

	for _, trigger := range []string{
		"n8n-nodes-base.webhook",
		"n8n-nodes-base.scheduleTrigger",
		"n8n-nodes-base.manualTrigger",
		"n8n-nodes-base.cron",
	} {
		wf := `{"name":"t","nodes":[{"name":"Start","type":"` + trigger + `"}],"connections":{}}`
		report := ValidateWorkflow([]byte(wf), false)
		assert.True(t, report.Valid, "type %s should count as a trigger", trigger)
	}
}

func TestValidateWorkflow_MissingNameWarns(t *testing.T) {
	wf := `{"nodes":[{"name":"Webhook","type":"n8n-nodes-base.webhook"}],"connections":{}}`
	report := ValidateWorkflow([]byte(wf), false)

	assert.True(t, report.Valid, "missing name is a warning, not an error")
	assert.Contains(t, report.Warnings, "workflow has no name")
}
