package specialist

import (
	"context"
	"strings"

	"github.com/sre-agent-platform/sre-agent/pkg/agent"
	"github.com/sre-agent-platform/sre-agent/pkg/contextstore"
)

// availabilityHealthMap maps an Azure availability state to a health level
// (spec §4.11 rules table for HealthMonitoring).
var availabilityHealthMap = map[string]string{
	"available":   "healthy",
	"degraded":    "degraded",
	"unavailable": "unhealthy",
	"unknown":     "unknown",
}

func mapAvailabilityToHealth(state string) string {
	if status, ok := availabilityHealthMap[strings.ToLower(state)]; ok {
		return status
	}
	return "unknown"
}

// NewHealthMonitoring constructs the HealthMonitoring specialist (verbs:
// check_health, diagnose, check_dependencies, continuous_monitor,
// recommendations, full).
func NewHealthMonitoring(agentOpts []agent.Option, ctxStore *contextstore.Store, toolProxy ToolCaller) *Base {
	return NewBase("health-monitoring", agentOpts, ctxStore, toolProxy, map[string]VerbFunc{
		"check_health":        healthCheck,
		"diagnose":            healthDiagnose,
		"check_dependencies":  healthCheckDependencies,
		"continuous_monitor":  healthContinuousMonitor,
		"recommendations":     healthRecommendations,
		"full":                healthFull,
	})
}

func healthTool(resourceType string) string {
	switch resourceType {
	case "container_app":
		return "check_container_app_health"
	case "aks", "kubernetes":
		return "check_aks_cluster_health"
	default:
		return "check_resource_health"
	}
}

func healthToolParams(resourceType, resourceID, resourceGroup string) map[string]any {
	switch resourceType {
	case "container_app":
		return map[string]any{"app_name": resourceID, "resource_group": resourceGroup}
	case "aks", "kubernetes":
		return map[string]any{"cluster_name": resourceID, "resource_group": resourceGroup}
	default:
		return map[string]any{"resource_id": resourceID}
	}
}

func healthCheck(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	resourceID := stringOr(params, "resource_id", "")
	resourceType := stringOr(params, "resource_type", "")

	result, err := b.CallTool(ctx, healthTool(resourceType), healthToolParams(resourceType, resourceID, stringOr(params, "resource_group", "")))
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "health_check", result)

	availability, _ := result["availability_state"].(string)
	status := mapAvailabilityToHealth(availability)

	response := map[string]any{
		"status":      "success",
		"resource_id": resourceID,
		"workflow_id": workflowID,
		"health": map[string]any{
			"status":             status,
			"availability_state": availability,
			"raw":                result,
		},
	}

	if include, ok := params["include_metrics"].(bool); !ok || include {
		metrics, err := b.CallTool(ctx, "get_performance_metrics", map[string]any{
			"resource_id":  resourceID,
			"metric_names": []string{"cpu_percent", "memory_percent", "response_time"},
			"time_range":   "1h",
		})
		if err == nil {
			b.RecordStep(ctx, workflowID, "metrics", metrics)
			response["metrics"] = metrics
		}
	}

	return response, nil
}

func healthDiagnose(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	resourceID := stringOr(params, "resource_id", "")

	logs, err := b.CallTool(ctx, "get_diagnostic_logs", map[string]any{"resource_id": resourceID})
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "diagnose", logs)

	return map[string]any{
		"status":      "success",
		"resource_id": resourceID,
		"workflow_id": workflowID,
		"diagnosis": map[string]any{
			"logs":   logs,
			"errors": logs["error_count"],
		},
	}, nil
}

func healthCheckDependencies(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	resourceID := stringOr(params, "resource_id", "")

	deps, err := b.CallTool(ctx, "get_resource_dependencies", map[string]any{"resource_id": resourceID})
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "dependencies", deps)

	dependencyIDs := stringSlice(deps, "downstream")
	healthByDependency := map[string]any{}
	for _, depID := range dependencyIDs {
		result, err := b.CallTool(ctx, "check_resource_health", map[string]any{"resource_id": depID})
		if err != nil {
			healthByDependency[depID] = map[string]any{"status": "unknown", "error": err.Error()}
			continue
		}
		availability, _ := result["availability_state"].(string)
		healthByDependency[depID] = map[string]any{"status": mapAvailabilityToHealth(availability), "availability": availability}
	}

	return map[string]any{
		"status":      "success",
		"resource_id": resourceID,
		"workflow_id": workflowID,
		"dependency_health": healthByDependency,
	}, nil
}

func healthContinuousMonitor(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	resourceIDs := stringSlice(params, "resource_ids")
	statuses := map[string]any{}
	for _, id := range resourceIDs {
		result, err := b.CallTool(ctx, "check_resource_health", map[string]any{"resource_id": id})
		if err != nil {
			statuses[id] = "unknown"
			continue
		}
		availability, _ := result["availability_state"].(string)
		statuses[id] = mapAvailabilityToHealth(availability)
	}
	b.RecordStep(ctx, workflowID, "continuous_monitor", map[string]any{"statuses": statuses})

	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"monitor": map[string]any{
			"resources_checked": len(resourceIDs),
			"statuses":          statuses,
		},
	}, nil
}

func healthRecommendations(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	resourceID := stringOr(params, "resource_id", "")
	result, err := b.CallTool(ctx, "check_resource_health", map[string]any{"resource_id": resourceID})
	if err != nil {
		return nil, err
	}

	availability, _ := result["availability_state"].(string)
	status := mapAvailabilityToHealth(availability)

	var recommendations []string
	switch status {
	case "unhealthy":
		recommendations = []string{"Investigate recent deployments", "Check dependent resource health", "Review diagnostic logs"}
	case "degraded":
		recommendations = []string{"Monitor closely for further degradation", "Review recent configuration changes"}
	default:
		recommendations = []string{"No action needed"}
	}

	return map[string]any{
		"status":      "success",
		"resource_id": resourceID,
		"workflow_id": workflowID,
		"recommendations": recommendations,
	}, nil
}

func healthFull(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	check, err := healthCheck(ctx, b, params, workflowID)
	if err != nil {
		return nil, err
	}
	deps, err := healthCheckDependencies(ctx, b, params, workflowID)
	if err != nil {
		return nil, err
	}
	recs, err := healthRecommendations(ctx, b, params, workflowID)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"assessment": map[string]any{
			"health":          check["health"],
			"dependencies":    deps["dependency_health"],
			"recommendations": recs["recommendations"],
		},
	}, nil
}
