package registry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sre-agent-platform/sre-agent/pkg/registry"
)

type fakeAgent struct {
	id          string
	typ         string
	initialized bool
	metrics     registry.AgentMetrics
	cleanedUp   bool
}

func (f *fakeAgent) AgentID() string                 { return f.id }
func (f *fakeAgent) AgentType() string               { return f.typ }
func (f *fakeAgent) IsInitialized() bool             { return f.initialized }
func (f *fakeAgent) HealthMetrics() registry.AgentMetrics { return f.metrics }
func (f *fakeAgent) Cleanup(context.Context)         { f.cleanedUp = true }

func TestRegisterAndGet(t *testing.T) {
	r := registry.New()
	a := &fakeAgent{id: "a1", typ: "health", initialized: true}
	r.Register(context.Background(), a, nil)

	got, ok := r.Get("a1")
	require.True(t, ok)
	assert.Equal(t, a, got)
}

func TestUnregisterRemovesOwnedToolsAtomically(t *testing.T) {
	r := registry.New()
	a := &fakeAgent{id: "a1", typ: "health", initialized: true}
	r.Register(context.Background(), a, nil)
	r.RegisterTool("check_health", "a1", registry.ToolDescriptor{Category: "health"})
	r.RegisterTool("diagnose", "a1", registry.ToolDescriptor{Category: "health"})

	ok := r.Unregister(context.Background(), "a1")
	require.True(t, ok)
	assert.True(t, a.cleanedUp)

	_, found := r.GetTool("check_health")
	assert.False(t, found)
	_, found = r.GetTool("diagnose")
	assert.False(t, found)
}

func TestUnregisterIsIdempotent(t *testing.T) {
	r := registry.New()
	assert.False(t, r.Unregister(context.Background(), "ghost"))
}

func TestRegisterToolRequiresKnownAgent(t *testing.T) {
	r := registry.New()
	ok := r.RegisterTool("check_health", "unknown", registry.ToolDescriptor{})
	assert.False(t, ok)
}

func TestToolInvariantAgentIDMatches(t *testing.T) {
	r := registry.New()
	a := &fakeAgent{id: "a1", typ: "health", initialized: true}
	r.Register(context.Background(), a, nil)
	r.RegisterTool("check_health", "a1", registry.ToolDescriptor{})

	tool, ok := r.GetTool("check_health")
	require.True(t, ok)
	assert.Equal(t, "a1", tool.AgentID)
}

func TestHealthRuleZeroRequestsIsHealthy(t *testing.T) {
	r := registry.New()
	a := &fakeAgent{id: "a1", typ: "health", initialized: true}
	r.Register(context.Background(), a, nil)

	h := r.CheckHealth("a1")
	assert.True(t, h.Healthy)
}

func TestHealthRuleBelowThresholdIsUnhealthy(t *testing.T) {
	r := registry.New()
	a := &fakeAgent{
		id: "a1", typ: "health", initialized: true,
		metrics: registry.AgentMetrics{RequestsHandled: 10, RequestsSucceeded: 5, RequestsFailed: 5},
	}
	r.Register(context.Background(), a, nil)

	h := r.CheckHealth("a1")
	assert.False(t, h.Healthy)
	assert.Equal(t, 1, h.ConsecutiveFailures)

	h = r.CheckHealth("a1")
	assert.Equal(t, 2, h.ConsecutiveFailures)
}

func TestRegisterExistingIDUpdatesAndCleansUpPrior(t *testing.T) {
	r := registry.New()
	first := &fakeAgent{id: "a1", typ: "health", initialized: true}
	second := &fakeAgent{id: "a1", typ: "health", initialized: true}

	r.Register(context.Background(), first, nil)
	r.Register(context.Background(), second, nil)

	assert.True(t, first.cleanedUp)
	got, _ := r.Get("a1")
	assert.Equal(t, second, got)
}

func TestIdempotentRegistration(t *testing.T) {
	r := registry.New()
	a := &fakeAgent{id: "a1", typ: "health", initialized: true}
	r.Register(context.Background(), a, nil)
	r.RegisterTool("check_health", "a1", registry.ToolDescriptor{})

	r.Register(context.Background(), a, nil) // Register(a) then Register(a) == Register(a)

	tools := r.ListTools(registry.ToolFilter{AgentID: "a1"})
	assert.Len(t, tools, 1)
}
