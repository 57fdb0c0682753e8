// Package orchestrator implements the orchestrator agent (C10): intent
// classification, parameter preparation, sequential tool execution, and
// category-specific result aggregation.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sre-agent-platform/sre-agent/internal/config"
	"github.com/sre-agent-platform/sre-agent/internal/telemetry"
	agentpkg "github.com/sre-agent-platform/sre-agent/pkg/agent"
	"github.com/sre-agent-platform/sre-agent/pkg/bus"
	"github.com/sre-agent-platform/sre-agent/pkg/contextstore"
	"github.com/sre-agent-platform/sre-agent/pkg/format"
	"github.com/sre-agent-platform/sre-agent/pkg/interaction"
	"github.com/sre-agent-platform/sre-agent/pkg/inventory"
	"github.com/sre-agent-platform/sre-agent/pkg/llm"
	"github.com/sre-agent-platform/sre-agent/pkg/registry"
)

// handlerAgent is the subset of registry.Agent that can actually execute a
// request. The registry only promises lifecycle methods; orchestrator needs
// HandleRequest too, so it type-asserts on lookup.
type handlerAgent interface {
	registry.Agent
	HandleRequest(ctx context.Context, req agentpkg.Request) agentpkg.Response
}

// Request is an operator query routed through the orchestrator.
type Request struct {
	Query      string
	Parameters map[string]any
	Context    map[string]any
	WorkflowID string
	// Interactive marks a streaming/interactive transport, enabling the
	// InteractionHandler gating step (spec §4.10 step 5).
	Interactive bool
}

// ToolOutcome records one tool's execution within a workflow.
type ToolOutcome struct {
	Tool    string
	Agent   string
	Status  string
	Result  map[string]any
	Error   string
}

// Response is Execute's return value.
type Response struct {
	WorkflowID           string
	Intent               string
	ToolsExecuted         int
	Results               map[string]any
	UserInteractionRequired bool
	Message               string
	Formatted             string
}

// Orchestrator coordinates tool execution across the registry, bus, context
// store, interaction handler, and inventory guard.
type Orchestrator struct {
	registry    *registry.Registry
	bus         *bus.Bus
	contextStore *contextstore.Store
	interaction *interaction.Handler
	inventory   *inventory.Guard
	cfg         config.Config
	logger      telemetry.Logger
	agentID     string
	llmClient   llm.Client
	schemas     *interaction.SchemaValidator
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(l telemetry.Logger) Option { return func(o *Orchestrator) { o.logger = l } }

func WithInventoryGuard(g *inventory.Guard) Option {
	return func(o *Orchestrator) { o.inventory = g }
}

// WithLLMClassifier attaches an optional fallback classifier, consulted only
// when the regex intent table matches nothing more specific than the
// "general" category (spec §12 domain stack: LLM given a closed category
// set, never a free tool list).
func WithLLMClassifier(c llm.Client) Option {
	return func(o *Orchestrator) { o.llmClient = c }
}

func WithAgentID(id string) Option { return func(o *Orchestrator) { o.agentID = id } }

// WithSchemaValidator attaches a validator that checks prepared parameters
// against each tool's registered JSON Schema (spec §4.10 step 6). Omitted by
// default: not every deployment declares parameter schemas.
func WithSchemaValidator(v *interaction.SchemaValidator) Option {
	return func(o *Orchestrator) { o.schemas = v }
}

// New constructs an Orchestrator.
func New(reg *registry.Registry, msgBus *bus.Bus, ctxStore *contextstore.Store, ih *interaction.Handler, cfg config.Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:     reg,
		bus:          msgBus,
		contextStore: ctxStore,
		interaction:  ih,
		cfg:          cfg,
		logger:       telemetry.NoopLogger{},
		agentID:      "sre-orchestrator-main",
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Execute translates an operator query into a coordinated tool execution
// plan and aggregates the results (spec §4.10).
func (o *Orchestrator) Execute(ctx context.Context, req Request) Response {
	workflowID := req.WorkflowID
	if workflowID == "" {
		workflowID = contextstore.NewWorkflowID()
	}

	if o.contextStore != nil {
		_, _ = o.contextStore.Create(ctx, workflowID, map[string]any{
			"query":   req.Query,
			"request": req.Parameters,
		}, 0)
	}

	category, tools := classifyIntent(req.Query)
	if category == defaultCategory && o.llmClient != nil {
		if refined, ok := o.refineWithLLM(ctx, req.Query); ok {
			category = refined
			tools = toolsForCategory(refined)
		}
	}
	o.logger.Info(ctx, "routing request", "workflow_id", workflowID, "intent", category, "tools", tools)

	outcomes := make([]ToolOutcome, 0, len(tools))
	var firstNeedsInput map[string]any

	for _, tool := range tools {
		outcome, needsInput := o.executeOne(ctx, tool, req, workflowID)
		outcomes = append(outcomes, outcome)
		if needsInput != nil && firstNeedsInput == nil {
			firstNeedsInput = needsInput
		}
	}

	aggregated := aggregate(outcomes, category)

	status := "completed"
	if o.contextStore != nil {
		o.contextStore.Update(ctx, workflowID, map[string]any{
			"metadata": map[string]any{
				"status":        status,
				"current_step":  len(outcomes),
				"total_steps":   len(outcomes),
			},
		})
	}

	resp := Response{
		WorkflowID:    workflowID,
		Intent:        category,
		ToolsExecuted: len(outcomes),
		Results:       aggregated,
	}
	if msg, ok := aggregated["message"].(string); ok {
		resp.Message = msg
	}

	if firstNeedsInput != nil {
		resp.UserInteractionRequired = true
		if msg, ok := firstNeedsInput["message"].(string); ok {
			resp.Message = msg
		}
		return resp
	}

	if len(outcomes) > 0 {
		resp.Formatted = format.FormatToolResult(outcomes[len(outcomes)-1].Tool, outcomes[len(outcomes)-1].Result)
	}
	return resp
}

// executeOne runs the preflight/prepare/execute pipeline for a single tool
// and returns its outcome, plus a needs_user_input payload if parameter
// preparation could not be completed.
func (o *Orchestrator) executeOne(ctx context.Context, tool string, req Request, workflowID string) (ToolOutcome, map[string]any) {
	descriptor, ok := o.registry.GetTool(tool)
	if !ok {
		o.logger.Warn(ctx, "tool not registered", "tool", tool)
		return ToolOutcome{Tool: tool, Status: "not_found", Error: fmt.Sprintf("tool %s not registered", tool)}, nil
	}

	owner, ok := o.registry.Get(descriptor.AgentID)
	if !ok {
		return ToolOutcome{Tool: tool, Status: "error", Error: fmt.Sprintf("agent %s not available", descriptor.AgentID)}, nil
	}
	handler, ok := owner.(handlerAgent)
	if !ok {
		return ToolOutcome{Tool: tool, Agent: descriptor.AgentID, Status: "error", Error: "agent cannot handle requests"}, nil
	}

	params, needsInput, skip := o.prepareParameters(ctx, tool, req)
	if needsInput != nil {
		return ToolOutcome{Tool: tool, Agent: descriptor.AgentID, Status: "needs_user_input", Result: needsInput}, needsInput
	}
	if skip {
		return ToolOutcome{Tool: tool, Agent: descriptor.AgentID, Status: "skipped"}, nil
	}

	if o.inventory != nil {
		if resourceType, ok := resourceDiscoveryType[tool]; ok {
			identity := inventory.ResourceIdentity{
				Type:          resourceType,
				ResourceGroup: stringParam(params, "resource_group"),
				Name:          stringParam(params, "container_app_name"),
				ResourceID:    stringParam(params, "resource_id"),
			}
			if identity.Name == "" {
				identity.Name = stringParam(params, "name")
			}
			if identity.ResourceID != "" || identity.Name != "" {
				preflight := o.inventory.PreflightResourceCheck(ctx, identity)
				if !preflight.OK {
					return ToolOutcome{Tool: tool, Agent: descriptor.AgentID, Status: "not_found", Result: preflight.Result}, nil
				}
			}
		}
	}

	resp := handler.HandleRequest(ctx, agentpkg.Request{
		Tool:       tool,
		Parameters: params,
		WorkflowID: workflowID,
	})

	if o.contextStore != nil {
		o.contextStore.AddStepResult(ctx, workflowID, "tool-"+tool, descriptor.AgentID, map[string]any{
			"status": resp.Status,
			"result": resp.Result,
		})
	}

	outcome := ToolOutcome{Tool: tool, Agent: descriptor.AgentID, Status: resp.Status, Result: resp.Result, Error: resp.Error}
	return outcome, nil
}

// prepareParameters implements spec §4.10's parameter-preparation pipeline.
// Returns (params, needsInput, skip): needsInput non-nil means the caller
// must gather more from the operator; skip means the required-param gap
// cannot be filled and the tool call is omitted.
func (o *Orchestrator) prepareParameters(ctx context.Context, tool string, req Request) (map[string]any, map[string]any, bool) {
	params := map[string]any{}
	for k, v := range req.Parameters {
		params[k] = v
	}
	for k, v := range req.Context {
		if v != nil {
			if _, present := params[k]; !present {
				params[k] = v
			}
		}
	}

	if o.cfg.SubscriptionID != "" {
		if _, present := params["subscription_id"]; !present {
			params["subscription_id"] = o.cfg.SubscriptionID
		}
	}
	if o.cfg.WorkspaceID != "" {
		if _, present := params["workspace_id"]; !present {
			params["workspace_id"] = o.cfg.WorkspaceID
		}
	}
	if sub, ok := params["subscription_id"].(string); ok {
		params["subscription_id"] = config.NormalizeScope(sub)
	}

	if scopeRequiredTools[tool] {
		scope := stringParam(params, "subscription_id")
		if rg := stringParam(params, "resource_group"); rg != "" && scope != "" {
			scope = scope + "/resourceGroups/" + rg
		}
		if scope == "" {
			return nil, nil, true
		}
		params["scope"] = scope
	}

	if req.Interactive && o.interaction != nil {
		if missing := interaction.CheckRequiredParams(tool, params); missing != nil {
			if resourceType, ok := resourceDiscoveryType[tool]; ok {
				resourceGroup := stringParam(params, "resource_group")
				var matches []map[string]any
				switch resourceType {
				case "container_app":
					matches = o.interaction.DiscoverContainerApps(ctx, resourceGroup, "")
				case "vm":
					matches = o.interaction.DiscoverVirtualMachines(ctx, resourceGroup, "")
				case "resource_group":
					matches = o.interaction.DiscoverResourceGroups(ctx, stringParam(params, "subscription_id"))
				case "workspace":
					matches = o.interaction.DiscoverLogAnalyticsWorkspaces(ctx, resourceGroup)
				}
				switch len(matches) {
				case 1:
					applyDiscoveredMatch(params, matches[0])
				case 0:
					return nil, map[string]any{"status": "needs_user_input", "message": missing.Message}, false
				default:
					prompt := format.FormatSelectionPrompt(matches, resourceType, tool)
					return nil, map[string]any{"status": "needs_user_input", "message": prompt.Message, "options": prompt.Options}, false
				}
			} else {
				return nil, map[string]any{"status": "needs_user_input", "message": missing.Message}, false
			}
		}
	}

	if missing := interaction.CheckRequiredParams(tool, params); missing != nil {
		return nil, nil, true
	}

	if o.schemas != nil {
		if descriptor, ok := o.registry.GetTool(tool); ok && len(descriptor.ParameterSchema) > 0 {
			if err := o.schemas.Validate(tool, descriptor.ParameterSchema, params); err != nil {
				return nil, map[string]any{"status": "needs_user_input", "message": err.Error()}, false
			}
		}
	}

	return params, nil, false
}

func applyDiscoveredMatch(params map[string]any, match map[string]any) {
	if id, ok := match["id"].(string); ok && id != "" {
		params["resource_id"] = id
	}
	if name, ok := match["name"].(string); ok && name != "" {
		if _, present := params["container_app_name"]; !present {
			params["container_app_name"] = name
		}
	}
	if rg, ok := match["resource_group"].(string); ok && rg != "" {
		if _, present := params["resource_group"]; !present {
			params["resource_group"] = rg
		}
	}
}

func stringParam(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}

// classifyIntent matches query against the intent table in declared order.
func classifyIntent(query string) (string, []string) {
	lower := strings.ToLower(query)
	for _, category := range intentTable {
		for _, rule := range category.rules {
			if rule.pattern.MatchString(lower) {
				return category.name, rule.tools
			}
		}
	}
	return defaultCategory, defaultTools
}

// refineWithLLM asks the configured llm.Client to pick one of the intent
// table's category names for query. The model can never select a tool
// directly: only a category from the closed set, which is then resolved
// back to that category's own tools via toolsForCategory.
func (o *Orchestrator) refineWithLLM(ctx context.Context, query string) (string, bool) {
	categories := make([]string, 0, len(intentTable))
	for _, c := range intentTable {
		categories = append(categories, c.name)
	}

	resp, err := o.llmClient.Classify(ctx, llm.Request{
		SystemPrompt: "You route SRE operator requests to the specialist best suited to handle them.",
		Query:        query,
		Categories:   categories,
	})
	if err != nil {
		o.logger.Warn(ctx, "llm intent fallback failed", "error", err)
		return "", false
	}
	if resp.Category == "" {
		return "", false
	}
	return resp.Category, true
}

// toolsForCategory returns the union of every rule's tools for category,
// the same aggregation GetCapabilities uses for ToolsByCategory.
func toolsForCategory(name string) []string {
	for _, c := range intentTable {
		if c.name != name {
			continue
		}
		seen := map[string]bool{}
		var flat []string
		for _, rule := range c.rules {
			for _, t := range rule.tools {
				if !seen[t] {
					seen[t] = true
					flat = append(flat, t)
				}
			}
		}
		return flat
	}
	return nil
}

// aggregate groups outcomes by status and computes the category-specific
// summary (spec §4.10 Aggregation).
func aggregate(outcomes []ToolOutcome, category string) map[string]any {
	var successful, failed, skipped, notFound []ToolOutcome
	for _, o := range outcomes {
		switch o.Status {
		case "success":
			successful = append(successful, o)
		case "error":
			failed = append(failed, o)
		case "not_found":
			notFound = append(notFound, o)
		case "skipped":
			skipped = append(skipped, o)
		}
	}

	result := map[string]any{
		"summary": map[string]any{
			"total_tools": len(outcomes),
			"successful":  len(successful),
			"failed":      len(failed),
			"skipped":     len(skipped),
			"not_found":   len(notFound),
			"intent":      category,
		},
		"results": toMaps(successful),
	}
	if len(failed)+len(notFound) > 0 {
		result["errors"] = toMaps(append(append([]ToolOutcome{}, failed...), notFound...))
	}
	if len(outcomes) > 0 && len(notFound) == len(outcomes) {
		result["message"] = format.FormatErrorMessage("Resources not found in inventory.", suggestionsFrom(notFound))
	}

	switch category {
	case "health":
		result["health_summary"] = summarizeHealth(successful)
	case "cost":
		result["cost_summary"] = summarizeCost(successful)
	case "performance":
		result["performance_summary"] = summarizePerformance(successful)
	}

	return result
}

// suggestionsFrom collects each not-found outcome's inventory suggestion,
// for the aggregated "not found" message's actionable next-steps list.
func suggestionsFrom(outcomes []ToolOutcome) []string {
	var suggestions []string
	for _, o := range outcomes {
		if s, ok := o.Result["suggestion"].(string); ok && s != "" {
			suggestions = append(suggestions, s)
		}
	}
	return suggestions
}

func toMaps(outcomes []ToolOutcome) []map[string]any {
	out := make([]map[string]any, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, map[string]any{
			"tool":   o.Tool,
			"agent":  o.Agent,
			"status": o.Status,
			"result": o.Result,
			"error":  o.Error,
		})
	}
	return out
}

func summarizeHealth(outcomes []ToolOutcome) map[string]any {
	var healthy, unhealthy int
	var details []map[string]any
	for _, o := range outcomes {
		state := ""
		if hs, ok := o.Result["health_status"].(map[string]any); ok {
			state, _ = hs["availability_state"].(string)
		}
		switch strings.ToLower(state) {
		case "available", "healthy":
			healthy++
		default:
			unhealthy++
			details = append(details, map[string]any{
				"name":         o.Result["resource_name"],
				"status":       state,
				"reason":       o.Result["reason"],
				"recent_error": o.Result["recent_error"],
			})
		}
	}
	return map[string]any{
		"healthy_resources":   healthy,
		"unhealthy_resources": unhealthy,
		"total_checked":       len(outcomes),
		"unhealthy_details":   details,
	}
}

// toFloat converts a JSON-decoded or literal Go numeric value to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// numericField returns the first of keys present in m as a float64, trying
// every numeric type toFloat understands.
func numericField(m map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		if v, present := m[key]; present {
			if f, ok := toFloat(v); ok {
				return f, true
			}
		}
	}
	return 0, false
}

func summarizeCost(outcomes []ToolOutcome) map[string]any {
	var savings float64
	var orphaned int
	for _, o := range outcomes {
		if v, ok := numericField(o.Result, "potential_savings"); ok {
			savings += v
		}
		if recs, ok := o.Result["recommendations"].([]any); ok {
			for _, r := range recs {
				rec, ok := r.(map[string]any)
				if !ok {
					continue
				}
				if monthly, ok := numericField(rec, "monthly_savings_amount", "monthly_savings", "estimated_monthly_savings"); ok {
					savings += monthly
				}
				if annual, ok := numericField(rec, "savings_amount", "annual_savings_amount"); ok {
					savings += annual / 12
				}
			}
		}
		if n, ok := numericField(o.Result, "total_orphaned_resources"); ok {
			orphaned += int(n)
		} else if list, ok := o.Result["orphaned_resources"].([]any); ok {
			orphaned += len(list)
		} else if counts, ok := o.Result["orphaned_resources"].(map[string]any); ok {
			for _, v := range counts {
				if n, ok := toFloat(v); ok {
					orphaned += int(n)
				}
			}
		}
	}
	return map[string]any{
		"potential_savings":  "$" + format.FormatMoney(savings),
		"orphaned_resources": orphaned,
		"tools_analyzed":     len(outcomes),
	}
}

func summarizePerformance(outcomes []ToolOutcome) map[string]any {
	var bottlenecks, recommendations, metricsCount int
	hasData := false
	for _, o := range outcomes {
		if list, ok := o.Result["bottlenecks"].([]any); ok {
			bottlenecks += len(list)
		}
		if list, ok := o.Result["recommendations"].([]any); ok {
			recommendations += len(list)
		}
		if _, ok := o.Result["cpu_percent"]; ok {
			hasData = true
			metricsCount++
		}
	}

	summary := map[string]any{
		"bottlenecks_identified":    bottlenecks,
		"capacity_recommendations":  recommendations,
		"metrics_count":            metricsCount,
		"has_data":                 hasData,
	}
	if !hasData {
		summary["narrative"] = "No performance metrics were available for the requested resource."
	}
	return summary
}

// RouteToSpecialist sends request.execute to the registered agent of
// specialistType via the bus and returns its response (spec §4.10
// Specialist routing).
func (o *Orchestrator) RouteToSpecialist(ctx context.Context, specialistType string, request map[string]any, workflowID string) (map[string]any, error) {
	specialist, ok := o.registry.GetByType(specialistType)
	if !ok {
		return map[string]any{"status": "error", "error": fmt.Sprintf("specialist %s not available", specialistType)}, nil
	}

	return o.bus.SendRequest(ctx, o.agentID, specialist.AgentID(), "execute", map[string]any{
		"request":     request,
		"workflow_id": workflowID,
	}, 60*time.Second)
}

// Capabilities is GetCapabilities' return value.
type Capabilities struct {
	TotalTools      int
	TotalAgents     int
	Categories      []string
	ToolsByCategory map[string][]string
}

// GetCapabilities dumps categories, tool counts, and per-category tool
// lists (spec §4.10).
func (o *Orchestrator) GetCapabilities() Capabilities {
	tools := o.registry.ListTools(registry.ToolFilter{})
	agents := o.registry.List(registry.ListFilter{})

	byCategory := map[string][]string{}
	categories := make([]string, 0, len(intentTable))
	for _, category := range intentTable {
		categories = append(categories, category.name)
		seen := map[string]bool{}
		var flat []string
		for _, rule := range category.rules {
			for _, t := range rule.tools {
				if !seen[t] {
					seen[t] = true
					flat = append(flat, t)
				}
			}
		}
		byCategory[category.name] = flat
	}

	return Capabilities{
		TotalTools:      len(tools),
		TotalAgents:     len(agents),
		Categories:      categories,
		ToolsByCategory: byCategory,
	}
}
