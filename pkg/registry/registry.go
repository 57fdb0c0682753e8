// Package registry implements the agent and tool registry (C4): agent
// registration/lookup, the tool→owning-agent table, and health roll-up.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sre-agent-platform/sre-agent/internal/telemetry"
)

// Agent is the subset of BaseAgent's lifecycle the registry depends on. It
// is satisfied structurally by *agent.BaseAgent so this package never
// imports pkg/agent (the registry is a leaf dependency of the agent
// lifecycle, not the other way around).
type Agent interface {
	AgentID() string
	AgentType() string
	IsInitialized() bool
	HealthMetrics() AgentMetrics
	Cleanup(ctx context.Context)
}

// AgentMetrics mirrors the metrics BaseAgent.GetMetrics() returns; declared
// here (rather than imported) to keep registry a leaf package.
type AgentMetrics struct {
	RequestsHandled   int64
	RequestsSucceeded int64
	RequestsFailed    int64
}

// SuccessRate returns RequestsSucceeded/RequestsHandled, or 1.0 when no
// requests have been handled yet (an agent with zero traffic is healthy).
func (m AgentMetrics) SuccessRate() float64 {
	if m.RequestsHandled == 0 {
		return 1.0
	}
	return float64(m.RequestsSucceeded) / float64(m.RequestsHandled)
}

// AgentMetadata is stored alongside every registered agent.
type AgentMetadata struct {
	AgentID      string
	AgentType    string
	RegisteredAt time.Time
	Status       string
	Extra        map[string]any
}

// AgentHealth is the health roll-up derived from an agent's metrics.
type AgentHealth struct {
	Healthy             bool
	LastCheck           time.Time
	ConsecutiveFailures int
	SuccessRate         float64
	Error               string
}

// ToolDescriptor describes one tool exposed through the registry. A tool
// name maps to exactly one agent at any time (spec §3 invariant).
type ToolDescriptor struct {
	Name             string
	AgentID          string
	Category         string
	ParameterSchema  []byte
	Description      string
}

type agentEntry struct {
	agent    Agent
	metadata AgentMetadata
	health   AgentHealth
}

// Registry is the process-wide agent and tool registry. The zero value is
// not usable; construct with New.
type Registry struct {
	mu      sync.RWMutex
	agents  map[string]*agentEntry
	tools   map[string]ToolDescriptor
	logger  telemetry.Logger
	metrics telemetry.Metrics
}

// Option configures a Registry.
type Option func(*Registry)

func WithLogger(l telemetry.Logger) Option   { return func(r *Registry) { r.logger = l } }
func WithMetrics(m telemetry.Metrics) Option { return func(r *Registry) { r.metrics = m } }

// New constructs a Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		agents:  make(map[string]*agentEntry),
		tools:   make(map[string]ToolDescriptor),
		logger:  telemetry.NoopLogger{},
		metrics: telemetry.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds or replaces the agent under its AgentID. Registering an id
// that already exists updates its metadata and replaces the agent
// reference; the prior agent is cleaned up first.
func (r *Registry) Register(ctx context.Context, a Agent, extra map[string]any) {
	id := a.AgentID()

	r.mu.Lock()
	prior, existed := r.agents[id]
	entry := &agentEntry{
		agent: a,
		metadata: AgentMetadata{
			AgentID:      id,
			AgentType:    a.AgentType(),
			RegisteredAt: time.Now().UTC(),
			Status:       "registered",
			Extra:        extra,
		},
		health: AgentHealth{Healthy: true, LastCheck: time.Now().UTC()},
	}
	r.agents[id] = entry
	r.mu.Unlock()

	if existed {
		r.logger.Warn(ctx, "agent already registered, updating", "agent_id", id)
		prior.agent.Cleanup(ctx)
	}
}

// Unregister removes an agent and, in the same critical section, every tool
// it owns. It is idempotent: unregistering an unknown id is a no-op.
func (r *Registry) Unregister(ctx context.Context, agentID string) bool {
	r.mu.Lock()
	entry, ok := r.agents[agentID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.agents, agentID)
	for name, tool := range r.tools {
		if tool.AgentID == agentID {
			delete(r.tools, name)
		}
	}
	r.mu.Unlock()

	entry.agent.Cleanup(ctx)
	return true
}

// Get looks up an agent by id.
func (r *Registry) Get(agentID string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.agents[agentID]
	if !ok {
		return nil, false
	}
	return e.agent, true
}

// GetByType returns the first registered agent of the given type, in no
// particular order beyond Go's map iteration (matching the source's
// dict-iteration "first match" semantics).
func (r *Registry) GetByType(agentType string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.agents {
		if e.metadata.AgentType == agentType {
			return e.agent, true
		}
	}
	return nil, false
}

// ListFilter narrows List's result set.
type ListFilter struct {
	AgentType   string
	HealthyOnly bool
}

// AgentInfo is one row of List's result.
type AgentInfo struct {
	AgentID     string
	AgentType   string
	Initialized bool
	Health      AgentHealth
	Metadata    AgentMetadata
	Metrics     AgentMetrics
}

// List returns registered agents matching filter.
func (r *Registry) List(filter ListFilter) []AgentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]AgentInfo, 0, len(r.agents))
	for id, e := range r.agents {
		if filter.AgentType != "" && e.metadata.AgentType != filter.AgentType {
			continue
		}
		if filter.HealthyOnly && !e.health.Healthy {
			continue
		}
		out = append(out, AgentInfo{
			AgentID:     id,
			AgentType:   e.metadata.AgentType,
			Initialized: e.agent.IsInitialized(),
			Health:      e.health,
			Metadata:    e.metadata,
			Metrics:     e.agent.HealthMetrics(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}

// RegisterTool associates name with agentID. It fails (returns false) if
// agentID is not registered.
func (r *Registry) RegisterTool(name, agentID string, descriptor ToolDescriptor) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[agentID]; !ok {
		r.logger.Error(context.Background(), "cannot register tool: agent not found", "tool", name, "agent_id", agentID)
		return false
	}
	descriptor.Name = name
	descriptor.AgentID = agentID
	r.tools[name] = descriptor
	return true
}

// RegisterToolsBulk registers many tools for one agent, returning the count
// successfully registered.
func (r *Registry) RegisterToolsBulk(agentID string, tools []ToolDescriptor) int {
	n := 0
	for _, t := range tools {
		if t.Name == "" {
			continue
		}
		if r.RegisterTool(t.Name, agentID, t) {
			n++
		}
	}
	return n
}

// GetTool looks up a tool descriptor by name.
func (r *Registry) GetTool(name string) (ToolDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// ToolFilter narrows ListTools's result set.
type ToolFilter struct {
	AgentID  string
	Category string
}

// ListTools returns tool descriptors matching filter.
func (r *Registry) ListTools(filter ToolFilter) []ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ToolDescriptor, 0, len(r.tools))
	for _, t := range r.tools {
		if filter.AgentID != "" && t.AgentID != filter.AgentID {
			continue
		}
		if filter.Category != "" && t.Category != filter.Category {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CheckHealth recomputes and returns the health of a single agent. The
// health rule (spec §4.4): healthy iff (success_rate >= 0.8 OR
// requests_handled == 0) AND initialized. ConsecutiveFailures increments
// only on recomputations where the result is unhealthy.
func (r *Registry) CheckHealth(agentID string) AgentHealth {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.agents[agentID]
	if !ok {
		return AgentHealth{Healthy: false, Error: "agent not found"}
	}
	if !e.agent.IsInitialized() {
		e.health.Healthy = false
		e.health.Error = "agent not initialized"
		return e.health
	}

	metrics := e.agent.HealthMetrics()
	rate := metrics.SuccessRate()
	healthy := rate >= 0.8 || metrics.RequestsHandled == 0

	e.health.Healthy = healthy
	e.health.LastCheck = time.Now().UTC()
	e.health.SuccessRate = rate
	if healthy {
		e.health.ConsecutiveFailures = 0
	} else {
		e.health.ConsecutiveFailures++
	}
	return e.health
}

// HealthCheckAll recomputes health for every registered agent.
func (r *Registry) HealthCheckAll() map[string]AgentHealth {
	r.mu.RLock()
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	out := make(map[string]AgentHealth, len(ids))
	for _, id := range ids {
		out[id] = r.CheckHealth(id)
	}
	return out
}

// Stats summarizes registry occupancy.
type Stats struct {
	TotalAgents     int
	HealthyAgents   int
	UnhealthyAgents int
	TotalTools      int
	AgentTypes      map[string]int
	ToolCategories  int
}

// Stats reports registry-wide statistics.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	healthy := 0
	types := make(map[string]int)
	for _, e := range r.agents {
		if e.health.Healthy {
			healthy++
		}
		types[e.metadata.AgentType]++
	}
	categories := make(map[string]struct{})
	for _, t := range r.tools {
		if t.Category != "" {
			categories[t.Category] = struct{}{}
		}
	}
	return Stats{
		TotalAgents:     len(r.agents),
		HealthyAgents:   healthy,
		UnhealthyAgents: len(r.agents) - healthy,
		TotalTools:      len(r.tools),
		AgentTypes:      types,
		ToolCategories:  len(categories),
	}
}
