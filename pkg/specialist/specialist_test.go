package specialist_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sre-agent-platform/sre-agent/pkg/agent"
	"github.com/sre-agent-platform/sre-agent/pkg/contextstore"
	"github.com/sre-agent-platform/sre-agent/pkg/specialist"
)

// oneShot disables retries so error-path tests don't pay the backoff delay.
var oneShot = []agent.Option{agent.WithMaxRetries(1)}

type fakeToolCaller struct {
	responses map[string]agent.Response
	calls     []string
}

func (f *fakeToolCaller) HandleRequest(_ context.Context, req agent.Request) agent.Response {
	f.calls = append(f.calls, req.Tool)
	if resp, ok := f.responses[req.Tool]; ok {
		return resp
	}
	return agent.Response{Status: "success", Result: agent.Result{}}
}

func newInitializedIncident(t *testing.T, tc *fakeToolCaller, opts ...[]agent.Option) *specialist.Base {
	t.Helper()
	var agentOpts []agent.Option
	if len(opts) > 0 {
		agentOpts = opts[0]
	}
	store := contextstore.New()
	s := specialist.NewIncidentResponse(agentOpts, store, tc)
	require.True(t, s.Initialize(context.Background()))
	return s
}

func TestIncidentTriageDispatchesAndReturnsSeverity(t *testing.T) {
	tc := &fakeToolCaller{responses: map[string]agent.Response{
		"triage_incident": {Status: "success", Result: agent.Result{"category": "infra"}},
	}}
	s := newInitializedIncident(t, tc)

	resp := s.HandleRequest(context.Background(), agent.Request{
		Parameters: map[string]any{"action": "triage", "incident_id": "INC-1", "severity": "critical"},
	})

	require.Equal(t, "success", resp.Status)
	triage, ok := resp.Result["triage"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1, triage["priority"])
	assert.Contains(t, tc.calls, "triage_incident")
}

func TestUnknownActionReturnsError(t *testing.T) {
	tc := &fakeToolCaller{responses: map[string]agent.Response{}}
	s := newInitializedIncident(t, tc, oneShot)

	resp := s.HandleRequest(context.Background(), agent.Request{
		Parameters: map[string]any{"action": "not-a-real-verb", "incident_id": "INC-1"},
	})

	assert.Equal(t, "error", resp.Status)
}

func TestHealthCheckMapsAvailabilityState(t *testing.T) {
	tc := &fakeToolCaller{responses: map[string]agent.Response{
		"check_resource_health": {Status: "success", Result: agent.Result{"availability_state": "Degraded"}},
		"get_performance_metrics": {Status: "success", Result: agent.Result{"cpu_percent": 42.0}},
	}}
	store := contextstore.New()
	s := specialist.NewHealthMonitoring(nil, store, tc)
	require.True(t, s.Initialize(context.Background()))

	resp := s.HandleRequest(context.Background(), agent.Request{
		Parameters: map[string]any{"action": "check_health", "resource_id": "vm-1"},
	})

	require.Equal(t, "success", resp.Status)
	health, ok := resp.Result["health"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "degraded", health["status"])
}

func TestCostFindSavingsClassifiesConfidence(t *testing.T) {
	tc := &fakeToolCaller{responses: map[string]agent.Response{
		"get_cost_recommendations": {Status: "success", Result: agent.Result{
			"recommendations": []any{
				map[string]any{"confidence": 0.9, "monthly_savings": 100.0},
			},
		}},
	}}
	store := contextstore.New()
	s := specialist.NewCostOptimization(nil, store, tc)
	require.True(t, s.Initialize(context.Background()))

	resp := s.HandleRequest(context.Background(), agent.Request{
		Parameters: map[string]any{"action": "find_savings"},
	})

	require.Equal(t, "success", resp.Status)
	savings, ok := resp.Result["savings"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, savings, 1)
	assert.Equal(t, "high", savings[0]["confidence"])
}

func TestToolFailurePropagatesAsError(t *testing.T) {
	tc := &fakeToolCaller{responses: map[string]agent.Response{
		"triage_incident": {Status: "error", Error: "boom"},
	}}
	s := newInitializedIncident(t, tc, oneShot)

	resp := s.HandleRequest(context.Background(), agent.Request{
		Parameters: map[string]any{"action": "triage", "incident_id": "INC-1"},
	})

	assert.Equal(t, "error", resp.Status)
}
