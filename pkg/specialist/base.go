// Package specialist implements the eight specialist agents (C11): a shared
// BaseAgent-embedding core with a data-driven verb dispatch table per
// specialist, each verb chaining one or more tool calls through the tool
// proxy and recording its steps in the context store.
package specialist

import (
	"context"
	"fmt"

	"github.com/sre-agent-platform/sre-agent/pkg/agent"
	"github.com/sre-agent-platform/sre-agent/pkg/contextstore"
)

// ToolCaller is the subset of ToolProxyAgent a specialist depends on.
type ToolCaller interface {
	HandleRequest(ctx context.Context, req agent.Request) agent.Response
}

// VerbFunc implements one specialist action.
type VerbFunc func(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error)

// Base is the shared shape every specialist embeds: BaseAgent lifecycle
// plus a context store, a tool proxy, and a verb table dispatched by
// request.action (spec §4.11).
type Base struct {
	*agent.BaseAgent
	contextStore *contextstore.Store
	toolProxy    ToolCaller
	verbs        map[string]VerbFunc
}

// NewBase constructs a Base. agentType/agentOpts are forwarded to
// agent.New; verbs is the specialist's fixed action table.
func NewBase(agentType string, agentOpts []agent.Option, ctxStore *contextstore.Store, toolProxy ToolCaller, verbs map[string]VerbFunc) *Base {
	b := &Base{contextStore: ctxStore, toolProxy: toolProxy, verbs: verbs}
	b.BaseAgent = agent.New(agentType, agent.ExecutorFunc(b.execute), agentOpts...)
	return b
}

func (b *Base) execute(ctx context.Context, req agent.Request) (agent.Result, error) {
	action, _ := req.Parameters["action"].(string)
	if action == "" {
		action = "full"
	}
	verb, ok := b.verbs[action]
	if !ok {
		return nil, fmt.Errorf("unknown action %q for %s", action, b.AgentType())
	}

	workflowID := req.WorkflowID
	if workflowID == "" {
		workflowID = contextstore.NewWorkflowID()
	}
	if b.contextStore != nil {
		if _, ok := b.contextStore.Get(ctx, workflowID); !ok {
			_, _ = b.contextStore.Create(ctx, workflowID, map[string]any{"action": action}, 0)
		}
	}

	return verb(ctx, b, req.Parameters, workflowID)
}

// CallTool invokes tool through the tool proxy, wrapping a non-success
// response in an error (mirrors the Python source's _call_tool helper).
func (b *Base) CallTool(ctx context.Context, tool string, params map[string]any) (map[string]any, error) {
	if b.toolProxy == nil {
		return nil, fmt.Errorf("tool proxy not available")
	}
	resp := b.toolProxy.HandleRequest(ctx, agent.Request{Tool: tool, Parameters: params})
	if resp.Status == "error" {
		return nil, fmt.Errorf("tool %s failed: %s", tool, resp.Error)
	}
	return resp.Result, nil
}

// RecordStep appends a step result to the workflow context, if configured.
func (b *Base) RecordStep(ctx context.Context, workflowID, stepID string, result map[string]any) {
	if b.contextStore != nil {
		b.contextStore.AddStepResult(ctx, workflowID, stepID, b.AgentID(), result)
	}
}

func stringOr(m map[string]any, key, fallback string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func stringSlice(m map[string]any, key string) []string {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func floatFrom(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func listLen(m map[string]any, key string) int {
	if v, ok := m[key].([]any); ok {
		return len(v)
	}
	return 0
}
