package orchestrator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sre-agent-platform/sre-agent/internal/config"
	agentpkg "github.com/sre-agent-platform/sre-agent/pkg/agent"
	"github.com/sre-agent-platform/sre-agent/pkg/bus"
	"github.com/sre-agent-platform/sre-agent/pkg/contextstore"
	"github.com/sre-agent-platform/sre-agent/pkg/interaction"
	"github.com/sre-agent-platform/sre-agent/pkg/inventory"
	"github.com/sre-agent-platform/sre-agent/pkg/llm"
	"github.com/sre-agent-platform/sre-agent/pkg/orchestrator"
	"github.com/sre-agent-platform/sre-agent/pkg/registry"
)

type fakeLLMClient struct {
	category string
	err      error
}

func (f *fakeLLMClient) Classify(context.Context, llm.Request) (llm.Response, error) {
	if f.err != nil {
		return llm.Response{}, f.err
	}
	return llm.Response{Category: f.category}, nil
}

type fakeAgent struct {
	id, typ string
	result  agentpkg.Response
	calls   []agentpkg.Request
}

func (f *fakeAgent) AgentID() string                         { return f.id }
func (f *fakeAgent) AgentType() string                       { return f.typ }
func (f *fakeAgent) IsInitialized() bool                      { return true }
func (f *fakeAgent) HealthMetrics() registry.AgentMetrics      { return registry.AgentMetrics{} }
func (f *fakeAgent) Cleanup(context.Context)                  {}
func (f *fakeAgent) HandleRequest(ctx context.Context, req agentpkg.Request) agentpkg.Response {
	f.calls = append(f.calls, req)
	return f.result
}

func newTestRegistry(t *testing.T, tool, agentID string, result agentpkg.Response) (*registry.Registry, *fakeAgent) {
	t.Helper()
	reg := registry.New()
	agent := &fakeAgent{id: agentID, typ: "health-agent", result: result}
	reg.Register(context.Background(), agent, nil)
	reg.RegisterTool(tool, agentID, registry.ToolDescriptor{Name: tool, AgentID: agentID})
	return reg, agent
}

func TestExecuteRoutesByIntentAndAggregatesSuccess(t *testing.T) {
	reg, agent := newTestRegistry(t, "check_resource_health", "health-agent-1", agentpkg.Response{
		Status: "success",
		Result: agentpkg.Result{"resource_name": "vm-1", "health_status": map[string]any{"availability_state": "Available"}},
	})
	reg.RegisterTool("check_container_app_health", "health-agent-1", registry.ToolDescriptor{Name: "check_container_app_health", AgentID: "health-agent-1"})
	reg.RegisterTool("check_aks_cluster_health", "health-agent-1", registry.ToolDescriptor{Name: "check_aks_cluster_health", AgentID: "health-agent-1"})

	msgBus := bus.New()
	store := contextstore.New()
	orch := orchestrator.New(reg, msgBus, store, interaction.New(nil), config.Default())

	resp := orch.Execute(context.Background(), orchestrator.Request{
		Query:      "check health of my vm",
		Parameters: map[string]any{"resource_id": "/subs/1/vm-1"},
	})

	assert.Equal(t, "health", resp.Intent)
	assert.False(t, resp.UserInteractionRequired)
	require.NotEmpty(t, agent.calls)
	summary, ok := resp.Results["summary"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1, summary["successful"])
}

func TestExecuteReportsMissingToolAsNotFound(t *testing.T) {
	reg := registry.New()
	msgBus := bus.New()
	store := contextstore.New()
	orch := orchestrator.New(reg, msgBus, store, interaction.New(nil), config.Default())

	resp := orch.Execute(context.Background(), orchestrator.Request{Query: "tell me about costs please"})
	assert.Equal(t, "cost", resp.Intent)

	summary := resp.Results["summary"].(map[string]any)
	assert.True(t, summary["not_found"].(int) > 0 || summary["skipped"].(int) > 0)
}

func TestExecuteDefaultsToGeneralCategory(t *testing.T) {
	reg, _ := newTestRegistry(t, "describe_capabilities", "general-agent", agentpkg.Response{
		Status: "success",
		Result: agentpkg.Result{"capabilities": "..."},
	})
	msgBus := bus.New()
	store := contextstore.New()
	orch := orchestrator.New(reg, msgBus, store, interaction.New(nil), config.Default())

	resp := orch.Execute(context.Background(), orchestrator.Request{Query: "what can you do"})
	assert.Equal(t, "general", resp.Intent)
	assert.Equal(t, 1, resp.ToolsExecuted)
}

func TestExecuteUsesLLMFallbackOnlyWhenGeneral(t *testing.T) {
	reg, agent := newTestRegistry(t, "get_cost_analysis", "cost-agent", agentpkg.Response{
		Status: "success",
		Result: agentpkg.Result{},
	})
	reg.RegisterTool("get_cost_recommendations", "cost-agent", registry.ToolDescriptor{Name: "get_cost_recommendations", AgentID: "cost-agent"})
	reg.RegisterTool("identify_orphaned_resources", "cost-agent", registry.ToolDescriptor{Name: "identify_orphaned_resources", AgentID: "cost-agent"})
	msgBus := bus.New()
	store := contextstore.New()
	orch := orchestrator.New(reg, msgBus, store, interaction.New(nil), config.Default(),
		orchestrator.WithLLMClassifier(&fakeLLMClient{category: "cost"}))

	resp := orch.Execute(context.Background(), orchestrator.Request{
		Query:      "something ambiguous entirely",
		Parameters: map[string]any{"subscription_id": "sub-1"},
	})

	assert.Equal(t, "cost", resp.Intent)
	require.NotEmpty(t, agent.calls)
}

func TestExecuteIgnoresLLMFallbackWhenRegexAlreadyMatched(t *testing.T) {
	reg, _ := newTestRegistry(t, "check_resource_health", "health-agent-1", agentpkg.Response{
		Status: "success",
		Result: agentpkg.Result{},
	})
	reg.RegisterTool("check_container_app_health", "health-agent-1", registry.ToolDescriptor{Name: "check_container_app_health", AgentID: "health-agent-1"})
	reg.RegisterTool("check_aks_cluster_health", "health-agent-1", registry.ToolDescriptor{Name: "check_aks_cluster_health", AgentID: "health-agent-1"})
	msgBus := bus.New()
	store := contextstore.New()
	orch := orchestrator.New(reg, msgBus, store, interaction.New(nil), config.Default(),
		orchestrator.WithLLMClassifier(&fakeLLMClient{category: "security"}))

	resp := orch.Execute(context.Background(), orchestrator.Request{Query: "check health of my vm"})

	assert.Equal(t, "health", resp.Intent)
}

func TestGetCapabilitiesListsCategories(t *testing.T) {
	reg := registry.New()
	msgBus := bus.New()
	store := contextstore.New()
	orch := orchestrator.New(reg, msgBus, store, interaction.New(nil), config.Default())

	caps := orch.GetCapabilities()
	assert.Contains(t, caps.Categories, "health")
	assert.Contains(t, caps.Categories, "cost")
	assert.NotEmpty(t, caps.ToolsByCategory["health"])
}

func TestExecuteHealthSummaryUsesResourceCountKeys(t *testing.T) {
	reg, _ := newTestRegistry(t, "check_resource_health", "health-agent-1", agentpkg.Response{
		Status: "success",
		Result: agentpkg.Result{
			"resource_name": "vm-1",
			"health_status": map[string]any{"availability_state": "Unavailable"},
			"reason":        "VM deallocated",
			"recent_error":  "boot failure",
		},
	})
	reg.RegisterTool("check_container_app_health", "health-agent-1", registry.ToolDescriptor{Name: "check_container_app_health", AgentID: "health-agent-1"})
	reg.RegisterTool("check_aks_cluster_health", "health-agent-1", registry.ToolDescriptor{Name: "check_aks_cluster_health", AgentID: "health-agent-1"})

	msgBus := bus.New()
	store := contextstore.New()
	orch := orchestrator.New(reg, msgBus, store, interaction.New(nil), config.Default())

	resp := orch.Execute(context.Background(), orchestrator.Request{
		Query:      "check health of my vm",
		Parameters: map[string]any{"resource_id": "/subs/1/vm-1"},
	})

	healthSummary, ok := resp.Results["health_summary"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0, healthSummary["healthy_resources"])
	assert.Equal(t, 1, healthSummary["unhealthy_resources"])
	assert.Equal(t, 1, healthSummary["total_checked"])
	details, ok := healthSummary["unhealthy_details"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, details, 1)
	assert.Equal(t, "VM deallocated", details[0]["reason"])
	assert.Equal(t, "boot failure", details[0]["recent_error"])
}

func TestExecuteCostSummaryAggregatesAliasedSavingsFields(t *testing.T) {
	reg, _ := newTestRegistry(t, "get_cost_analysis", "cost-agent", agentpkg.Response{
		Status: "success",
		Result: agentpkg.Result{
			"recommendations": []any{
				map[string]any{
					"monthly_savings_amount": 100,
					"savings_amount":         1200,
				},
			},
		},
	})
	msgBus := bus.New()
	store := contextstore.New()
	orch := orchestrator.New(reg, msgBus, store, interaction.New(nil), config.Default())

	resp := orch.Execute(context.Background(), orchestrator.Request{
		Query:      "what is my cost spending this month",
		Parameters: map[string]any{"subscription_id": "sub-1"},
	})

	costSummary, ok := resp.Results["cost_summary"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "$200.00", costSummary["potential_savings"])
}

func TestExecuteCostSummaryCountsOrphanedResourcesAsCountMap(t *testing.T) {
	reg, _ := newTestRegistry(t, "identify_orphaned_resources", "cost-agent", agentpkg.Response{
		Status: "success",
		Result: agentpkg.Result{
			"orphaned_resources": map[string]any{"disks": 2, "public_ips": 3},
		},
	})
	msgBus := bus.New()
	store := contextstore.New()
	orch := orchestrator.New(reg, msgBus, store, interaction.New(nil), config.Default())

	resp := orch.Execute(context.Background(), orchestrator.Request{
		Query:      "find orphaned and idle resources",
		Parameters: map[string]any{"subscription_id": "sub-1"},
	})

	costSummary, ok := resp.Results["cost_summary"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 5, costSummary["orphaned_resources"])
}

func TestExecuteAggregatesNotFoundMessageWhenPreflightFailsForAllTools(t *testing.T) {
	reg, _ := newTestRegistry(t, "scale_resource", "remediation-agent", agentpkg.Response{
		Status: "success",
		Result: agentpkg.Result{},
	})
	msgBus := bus.New()
	store := contextstore.New()
	guard := inventory.New(inventory.NewStaticSnapshot(nil), inventory.WithMode(inventory.Strict))
	orch := orchestrator.New(reg, msgBus, store, interaction.New(nil), config.Default(),
		orchestrator.WithInventoryGuard(guard))

	resp := orch.Execute(context.Background(), orchestrator.Request{
		Query:      "please resize this vm",
		Parameters: map[string]any{"resource_id": "/subs/1/vm-1", "new_capacity": 3},
	})

	assert.Equal(t, "remediation", resp.Intent)
	assert.Contains(t, resp.Message, "Resources not found in inventory.")
	summary, ok := resp.Results["summary"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1, summary["not_found"])
}

func TestRouteToSpecialistReportsUnavailable(t *testing.T) {
	reg := registry.New()
	msgBus := bus.New()
	store := contextstore.New()
	orch := orchestrator.New(reg, msgBus, store, interaction.New(nil), config.Default())

	resp, err := orch.RouteToSpecialist(context.Background(), "incident", map[string]any{}, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "error", resp["status"])
}
