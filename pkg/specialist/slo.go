package specialist

import (
	"context"

	"github.com/sre-agent-platform/sre-agent/pkg/agent"
	"github.com/sre-agent-platform/sre-agent/pkg/contextstore"
)

// errorBudgetAlertThresholds classifies remaining error budget percentage
// into an alert level (spec §4.11 rules table for SLOManagement).
var errorBudgetAlertThresholds = []struct {
	max   float64
	level string
}{
	{max: 10, level: "critical"},
	{max: 25, level: "warning"},
	{max: 100, level: "ok"},
}

func classifyBudgetRemaining(pct float64) string {
	for _, t := range errorBudgetAlertThresholds {
		if pct <= t.max {
			return t.level
		}
	}
	return "ok"
}

// NewSLOManagement constructs the SLOManagement specialist (verbs: track,
// budget, alert, report, forecast, full).
func NewSLOManagement(agentOpts []agent.Option, ctxStore *contextstore.Store, toolProxy ToolCaller) *Base {
	return NewBase("slo-management", agentOpts, ctxStore, toolProxy, map[string]VerbFunc{
		"track":    sloTrack,
		"budget":   sloBudget,
		"alert":    sloAlert,
		"report":   sloReport,
		"forecast": sloForecast,
		"full":     sloFull,
	})
}

func sloTrack(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	result, err := b.CallTool(ctx, "get_slo_dashboard", map[string]any{"slo_id": stringOr(params, "slo_id", "")})
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "track", result)

	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"dashboard":   result,
	}, nil
}

func sloBudget(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	result, err := b.CallTool(ctx, "calculate_error_budget", map[string]any{
		"slo_id":     stringOr(params, "slo_id", ""),
		"time_range": stringOr(params, "time_range", "30d"),
	})
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "budget", result)

	remaining := floatFrom(result, "remaining_percent")
	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"budget": map[string]any{
			"remaining_percent": remaining,
			"alert_level":       classifyBudgetRemaining(remaining),
			"raw":               result,
		},
	}, nil
}

func sloAlert(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	budget, err := sloBudget(ctx, b, params, workflowID)
	if err != nil {
		return nil, err
	}
	details, _ := budget["budget"].(map[string]any)

	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"alert": map[string]any{
			"level":   details["alert_level"],
			"trigger": details["alert_level"] != "ok",
		},
	}, nil
}

func sloReport(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	result, err := b.CallTool(ctx, "get_slo_dashboard", map[string]any{"slo_id": stringOr(params, "slo_id", "")})
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "report", result)

	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"report":      result,
	}, nil
}

func sloForecast(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	result, err := b.CallTool(ctx, "calculate_error_budget", map[string]any{
		"slo_id":     stringOr(params, "slo_id", ""),
		"time_range": "90d",
	})
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "forecast", result)

	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"forecast":    result,
	}, nil
}

func sloFull(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	track, err := sloTrack(ctx, b, params, workflowID)
	if err != nil {
		return nil, err
	}
	budget, err := sloBudget(ctx, b, params, workflowID)
	if err != nil {
		return nil, err
	}
	alert, err := sloAlert(ctx, b, params, workflowID)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"slo": map[string]any{
			"dashboard": track["dashboard"],
			"budget":    budget["budget"],
			"alert":     alert["alert"],
		},
	}, nil
}
