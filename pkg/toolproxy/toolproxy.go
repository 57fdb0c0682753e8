// Package toolproxy implements the tool proxy agent (C6): a BaseAgent whose
// Execute dispatches a tool call to an external transport, consulting the
// tool cache on entry and populating it on a successful exit. It is the
// sole path specialist agents use to invoke tools (spec §4.6).
package toolproxy

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/sre-agent-platform/sre-agent/internal/telemetry"
	"github.com/sre-agent-platform/sre-agent/pkg/agent"
	"github.com/sre-agent-platform/sre-agent/pkg/cache"
)

// CallRequest describes a single tool invocation issued to a Transport.
type CallRequest struct {
	Tool    string
	Payload json.RawMessage
}

// CallResponse captures a transport's tool result.
type CallResponse struct {
	Result     json.RawMessage
	Structured json.RawMessage
}

// Transport invokes a named tool against the external collaborator (the
// "MCP" tool server per spec §6). Implementations adapt stdio, JSON-RPC, or
// SSE transports behind this single method.
type Transport interface {
	CallTool(ctx context.Context, req CallRequest) (CallResponse, error)
}

// Agent wraps *agent.BaseAgent, consulting the cache before every tool call
// and storing successful results keyed by tool name and arguments, with
// the tool's TTL profile.
type Agent struct {
	*agent.BaseAgent

	transport Transport
	cache     *cache.Cache
	logger    telemetry.Logger
}

// Option configures an Agent.
type Option func(*Agent)

func WithLogger(l telemetry.Logger) Option { return func(a *Agent) { a.logger = l } }

// New constructs a tool proxy agent over transport, consulting toolCache for
// reads and writes. agentOpts are forwarded to agent.New (e.g. WithAgentID,
// WithTimeout, WithMetrics).
func New(transport Transport, toolCache *cache.Cache, agentOpts []agent.Option, opts ...Option) *Agent {
	a := &Agent{
		transport: transport,
		cache:     toolCache,
		logger:    telemetry.NoopLogger{},
	}
	for _, opt := range opts {
		opt(a)
	}

	a.BaseAgent = agent.New("tool_proxy", agent.ExecutorFunc(a.execute), agentOpts...)
	return a
}

// execute is the agent's Executor: it implements the cache-then-transport
// dispatch described in spec §4.6.
func (a *Agent) execute(ctx context.Context, req agent.Request) (agent.Result, error) {
	tool := req.Tool
	if tool == "" {
		return nil, fmt.Errorf("toolproxy: request is missing a tool name")
	}

	args := req.Parameters
	if a.cache != nil {
		if cached, ok := a.cache.Get(tool, args); ok {
			if result, ok := cached.(agent.Result); ok {
				out := agent.Result{}
				for k, v := range result {
					out[k] = v
				}
				out["cached"] = true
				return out, nil
			}
		}
	}

	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("toolproxy: marshal args for %s: %w", tool, err)
	}

	resp, err := a.transport.CallTool(ctx, CallRequest{Tool: tool, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("toolproxy: call %s: %w", tool, err)
	}

	result := agent.Result{
		"success":     true,
		"raw_content": string(resp.Result),
	}
	if len(resp.Structured) > 0 {
		var parsed any
		if err := json.Unmarshal(resp.Structured, &parsed); err == nil {
			result["parsed"] = parsed
		} else {
			a.logger.Warn(ctx, "toolproxy: structured content did not parse as JSON", "tool", tool, "err", err)
		}
	}

	if a.cache != nil {
		a.cache.Set(tool, args, result)
	}
	return result, nil
}

// RateLimitedTransport wraps a Transport with a per-process token-bucket
// limiter shared by every tool: each call waits for a token before it
// reaches the external collaborator.
type RateLimitedTransport struct {
	next    Transport
	limiter *rate.Limiter
}

// NewRateLimitedTransport constructs a limiter allowing rps tool calls per
// second, with burst as the bucket size (calls admitted at once without
// waiting).
func NewRateLimitedTransport(next Transport, rps float64, burst int) *RateLimitedTransport {
	return &RateLimitedTransport{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (t *RateLimitedTransport) CallTool(ctx context.Context, req CallRequest) (CallResponse, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return CallResponse{}, fmt.Errorf("toolproxy: rate limit wait: %w", err)
	}
	return t.next.CallTool(ctx, req)
}
