package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessions struct{ active int }

func (f *fakeSessions) Active() int { return f.active }

func TestObserveHTTPRequest(t *testing.T) {
	m := New(nil)

	m.ObserveHTTPRequest("/mcp", http.MethodPost, "200", 0.05)
	m.ObserveHTTPRequest("/mcp", http.MethodPost, "200", 0.10)
	m.ObserveHTTPRequest("/health", http.MethodGet, "200", 0.01)

	n, err := testutil.GatherAndCount(m.Registry(), "n8n_mcp_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "two distinct label sets expected")
}

func TestObserveToolCall(t *testing.T) {
	m := New(nil)

	m.ObserveToolCall("search_nodes", "ok", 0.002)
	m.ObserveToolCall("n8n_list_workflows", "error", 0.4)

	n, err := testutil.GatherAndCount(m.Registry(), "n8n_mcp_tools_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestActiveSessionsGauge(t *testing.T) {
	sessions := &fakeSessions{active: 7}
	m := New(sessions)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "n8n_mcp_tenant_active_sessions 7")
}
