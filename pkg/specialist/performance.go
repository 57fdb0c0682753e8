package specialist

import (
	"context"

	"github.com/sre-agent-platform/sre-agent/pkg/agent"
	"github.com/sre-agent-platform/sre-agent/pkg/contextstore"
)

// utilizationThresholds classifies a percentage metric into a severity
// label (spec §4.11 rules table for PerformanceAnalysis).
var utilizationThresholds = []struct {
	min   float64
	label string
}{
	{min: 90, label: "critical"},
	{min: 75, label: "warning"},
	{min: 0, label: "normal"},
}

func classifyUtilization(pct float64) string {
	for _, t := range utilizationThresholds {
		if pct >= t.min {
			return t.label
		}
	}
	return "normal"
}

// NewPerformanceAnalysis constructs the PerformanceAnalysis specialist
// (verbs: analyze, bottlenecks, anomalies, capacity, optimize, compare,
// full).
func NewPerformanceAnalysis(agentOpts []agent.Option, ctxStore *contextstore.Store, toolProxy ToolCaller) *Base {
	return NewBase("performance-analysis", agentOpts, ctxStore, toolProxy, map[string]VerbFunc{
		"analyze":     performanceAnalyze,
		"bottlenecks": performanceBottlenecks,
		"anomalies":   performanceAnomalies,
		"capacity":    performanceCapacity,
		"optimize":    performanceOptimize,
		"compare":     performanceCompare,
		"full":        performanceFull,
	})
}

func performanceAnalyze(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	resourceID := stringOr(params, "resource_id", "")
	metrics, err := b.CallTool(ctx, "get_performance_metrics", map[string]any{
		"resource_id":  resourceID,
		"metric_names": []string{"cpu_percent", "memory_percent", "response_time"},
		"time_range":   stringOr(params, "time_range", "1h"),
	})
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "analyze", metrics)

	cpu := floatFrom(metrics, "cpu_percent")
	memory := floatFrom(metrics, "memory_percent")

	return map[string]any{
		"status":      "success",
		"resource_id": resourceID,
		"workflow_id": workflowID,
		"analysis": map[string]any{
			"metrics":           metrics,
			"cpu_status":        classifyUtilization(cpu),
			"memory_status":     classifyUtilization(memory),
		},
	}, nil
}

func performanceBottlenecks(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	result, err := b.CallTool(ctx, "identify_bottlenecks", map[string]any{"resource_id": stringOr(params, "resource_id", "")})
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "bottlenecks", result)

	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"bottlenecks": result["bottlenecks"],
	}, nil
}

func performanceAnomalies(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	result, err := b.CallTool(ctx, "compare_baseline_metrics", map[string]any{
		"resource_id": stringOr(params, "resource_id", ""),
		"time_range":  stringOr(params, "time_range", "24h"),
	})
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "anomalies", result)

	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"anomalies":   result["deviations"],
	}, nil
}

func performanceCapacity(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	result, err := b.CallTool(ctx, "get_capacity_recommendations", map[string]any{"resource_id": stringOr(params, "resource_id", "")})
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "capacity", result)

	return map[string]any{
		"status":          "success",
		"workflow_id":     workflowID,
		"recommendations": result["recommendations"],
	}, nil
}

func performanceOptimize(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	analysis, err := performanceAnalyze(ctx, b, params, workflowID)
	if err != nil {
		return nil, err
	}
	capacity, err := performanceCapacity(ctx, b, params, workflowID)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"status":          "success",
		"workflow_id":     workflowID,
		"analysis":        analysis["analysis"],
		"recommendations": capacity["recommendations"],
	}, nil
}

func performanceCompare(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	result, err := b.CallTool(ctx, "compare_baseline_metrics", map[string]any{
		"resource_id": stringOr(params, "resource_id", ""),
		"time_range":  stringOr(params, "time_range", "7d"),
	})
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "compare", result)

	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"comparison":  result,
	}, nil
}

func performanceFull(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	analysis, err := performanceAnalyze(ctx, b, params, workflowID)
	if err != nil {
		return nil, err
	}
	bottlenecks, err := performanceBottlenecks(ctx, b, params, workflowID)
	if err != nil {
		return nil, err
	}
	capacity, err := performanceCapacity(ctx, b, params, workflowID)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"assessment": map[string]any{
			"analysis":        analysis["analysis"],
			"bottlenecks":     bottlenecks["bottlenecks"],
			"recommendations": capacity["recommendations"],
		},
	}, nil
}
