package specialist

import (
	"context"

	"github.com/sre-agent-platform/sre-agent/pkg/agent"
	"github.com/sre-agent-platform/sre-agent/pkg/contextstore"
)

// savingsConfidenceThresholds classifies a recommendation's confidence
// score into a label (spec §4.11 rules table for CostOptimization).
var savingsConfidenceThresholds = []struct {
	min   float64
	label string
}{
	{min: 0.8, label: "high"},
	{min: 0.5, label: "medium"},
	{min: 0, label: "low"},
}

func classifyConfidence(score float64) string {
	for _, t := range savingsConfidenceThresholds {
		if score >= t.min {
			return t.label
		}
	}
	return "low"
}

// NewCostOptimization constructs the CostOptimization specialist (verbs:
// analyze_costs, find_savings, identify_orphaned, budget_tracking,
// recommendations, full).
func NewCostOptimization(agentOpts []agent.Option, ctxStore *contextstore.Store, toolProxy ToolCaller) *Base {
	return NewBase("cost-optimization", agentOpts, ctxStore, toolProxy, map[string]VerbFunc{
		"analyze_costs":      costAnalyze,
		"find_savings":       costFindSavings,
		"identify_orphaned":  costIdentifyOrphaned,
		"budget_tracking":    costBudgetTracking,
		"recommendations":    costRecommendations,
		"full":               costFull,
	})
}

func costAnalyze(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	result, err := b.CallTool(ctx, "get_cost_analysis", map[string]any{
		"scope":      stringOr(params, "scope", ""),
		"time_range": stringOr(params, "time_range", "30d"),
	})
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "analyze_costs", result)

	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"cost_analysis": result,
	}, nil
}

func costFindSavings(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	result, err := b.CallTool(ctx, "get_cost_recommendations", map[string]any{"scope": stringOr(params, "scope", "")})
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "find_savings", result)

	recs, _ := result["recommendations"].([]any)
	classified := make([]map[string]any, 0, len(recs))
	for _, r := range recs {
		rec, ok := r.(map[string]any)
		if !ok {
			continue
		}
		classified = append(classified, map[string]any{
			"recommendation": rec,
			"confidence":      classifyConfidence(floatFrom(rec, "confidence")),
		})
	}

	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"savings":     classified,
	}, nil
}

func costIdentifyOrphaned(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	result, err := b.CallTool(ctx, "identify_orphaned_resources", map[string]any{"scope": stringOr(params, "scope", "")})
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "identify_orphaned", result)

	return map[string]any{
		"status":             "success",
		"workflow_id":        workflowID,
		"orphaned_resources": result["orphaned_resources"],
	}, nil
}

func costBudgetTracking(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	result, err := b.CallTool(ctx, "get_cost_analysis", map[string]any{
		"scope":      stringOr(params, "scope", ""),
		"time_range": "month_to_date",
	})
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "budget_tracking", result)

	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"budget":      result,
	}, nil
}

func costRecommendations(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	savings, err := costFindSavings(ctx, b, params, workflowID)
	if err != nil {
		return nil, err
	}
	orphaned, err := costIdentifyOrphaned(ctx, b, params, workflowID)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"status":             "success",
		"workflow_id":        workflowID,
		"savings":            savings["savings"],
		"orphaned_resources": orphaned["orphaned_resources"],
	}, nil
}

func costFull(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	analysis, err := costAnalyze(ctx, b, params, workflowID)
	if err != nil {
		return nil, err
	}
	recs, err := costRecommendations(ctx, b, params, workflowID)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"report": map[string]any{
			"cost_analysis":      analysis["cost_analysis"],
			"savings":            recs["savings"],
			"orphaned_resources": recs["orphaned_resources"],
		},
	}, nil
}
