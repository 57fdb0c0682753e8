package specialist

import (
	"context"
	"fmt"

	"github.com/sre-agent-platform/sre-agent/pkg/agent"
	"github.com/sre-agent-platform/sre-agent/pkg/contextstore"
)

// severityProfile is one entry of the incident severity rules table (spec
// §4.11: "a small rules table ... informs classification").
type severityProfile struct {
	priority          int
	responseTimeMins int
}

var incidentSeverityLevels = map[string]severityProfile{
	"critical": {priority: 1, responseTimeMins: 15},
	"high":     {priority: 2, responseTimeMins: 60},
	"medium":   {priority: 3, responseTimeMins: 240},
	"low":      {priority: 4, responseTimeMins: 1440},
}

func defaultSeverityProfile() severityProfile { return incidentSeverityLevels["medium"] }

// NewIncidentResponse constructs the IncidentResponse specialist (verbs:
// triage, correlate, impact, rca, remediate, postmortem, full).
func NewIncidentResponse(agentOpts []agent.Option, ctxStore *contextstore.Store, toolProxy ToolCaller) *Base {
	return NewBase("incident-response", agentOpts, ctxStore, toolProxy, map[string]VerbFunc{
		"triage":     incidentTriage,
		"correlate":  incidentCorrelate,
		"impact":     incidentImpact,
		"rca":        incidentRCA,
		"remediate":  incidentRemediate,
		"postmortem": incidentPostmortem,
		"full":       incidentFull,
	})
}

func incidentTriage(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	incidentID := stringOr(params, "incident_id", "")
	severity := stringOr(params, "severity", "medium")

	result, err := b.CallTool(ctx, "triage_incident", map[string]any{
		"incident_description": stringOr(params, "description", ""),
		"severity":             severity,
	})
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "triage", result)

	profile, ok := incidentSeverityLevels[severity]
	if !ok {
		profile = defaultSeverityProfile()
	}

	return map[string]any{
		"status":      "success",
		"incident_id": incidentID,
		"workflow_id": workflowID,
		"triage": map[string]any{
			"severity":           severity,
			"priority":           profile.priority,
			"response_time_mins": profile.responseTimeMins,
			"analysis":           result,
		},
		"next_steps": []string{"correlate_alerts", "assess_impact", "perform_rca"},
	}, nil
}

func incidentCorrelate(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	result, err := b.CallTool(ctx, "correlate_alerts", map[string]any{
		"time_window": stringOr(params, "time_window", "1h"),
		"severity":    stringOr(params, "severity", "high"),
	})
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "correlate", result)

	alerts, _ := result["related_alerts"].([]any)
	if len(alerts) > 10 {
		alerts = alerts[:10]
	}

	return map[string]any{
		"status":      "success",
		"incident_id": stringOr(params, "incident_id", ""),
		"workflow_id": workflowID,
		"correlation": map[string]any{
			"total_alerts":      listLen(result, "related_alerts"),
			"alerts":            alerts,
			"patterns_detected": result["patterns"],
		},
	}, nil
}

func incidentImpact(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	resourceIDs := stringSlice(params, "resource_ids")

	downstream := 0
	var dependencies []map[string]any
	for _, id := range resourceIDs {
		depResult, err := b.CallTool(ctx, "get_resource_dependencies", map[string]any{"resource_id": id})
		if err != nil {
			continue
		}
		dependencies = append(dependencies, depResult)
		downstream += listLen(depResult, "downstream")
	}
	b.RecordStep(ctx, workflowID, "impact", map[string]any{"dependencies": dependencies})

	blastRadius := "low"
	if downstream > 10 {
		blastRadius = "high"
	} else if downstream > 5 {
		blastRadius = "medium"
	}

	return map[string]any{
		"status":      "success",
		"incident_id": stringOr(params, "incident_id", ""),
		"workflow_id": workflowID,
		"impact": map[string]any{
			"directly_affected":         len(resourceIDs),
			"downstream_affected":       downstream,
			"total_resources_impacted": len(resourceIDs) + downstream,
			"blast_radius":              blastRadius,
		},
	}, nil
}

func incidentRCA(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	logResult, err := b.CallTool(ctx, "search_logs_by_error", map[string]any{
		"error_pattern": stringOr(params, "error_pattern", "error|exception|failed"),
		"time_range":    "1h",
	})
	if err != nil {
		return nil, err
	}
	activityResult, err := b.CallTool(ctx, "analyze_activity_log", map[string]any{
		"time_range":     "1h",
		"resource_group": stringOr(params, "resource_group", ""),
	})
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "rca", map[string]any{"log_search": logResult, "activity_log": activityResult})

	samples, _ := logResult["samples"].([]any)
	if len(samples) > 5 {
		samples = samples[:5]
	}

	return map[string]any{
		"status":      "success",
		"incident_id": stringOr(params, "incident_id", ""),
		"workflow_id": workflowID,
		"rca": map[string]any{
			"likely_causes": []string{
				"Configuration change detected in activity log",
				"Error patterns found in application logs",
				"Resource constraints or throttling",
			},
			"evidence": map[string]any{
				"log_errors_found": logResult["total_errors"],
				"recent_changes":   activityResult["change_count"],
				"error_samples":    samples,
			},
			"confidence": "medium",
		},
	}, nil
}

func incidentRemediate(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	result, err := b.CallTool(ctx, "plan_remediation", map[string]any{
		"issue_type":        stringOr(params, "issue_type", "performance_degradation"),
		"affected_resources": params["affected_resources"],
	})
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "remediation", result)

	return map[string]any{
		"status":      "success",
		"incident_id": stringOr(params, "incident_id", ""),
		"workflow_id": workflowID,
		"remediation": map[string]any{
			"recommended_actions": result["actions"],
			"estimated_time":      result["estimated_time"],
			"risk_level":          result["risk"],
			"requires_approval":   true,
		},
	}, nil
}

func incidentPostmortem(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	postmortem, err := b.CallTool(ctx, "generate_postmortem", map[string]any{
		"incident_id": stringOr(params, "incident_id", ""),
	})
	if err != nil {
		return nil, err
	}
	mttr, err := b.CallTool(ctx, "calculate_mttr_metrics", map[string]any{"time_range": "30d"})
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"status":      "success",
		"incident_id": stringOr(params, "incident_id", ""),
		"workflow_id": workflowID,
		"postmortem": map[string]any{
			"document": postmortem,
			"metrics": map[string]any{
				"mttr_minutes":        mttr["mttr_minutes"],
				"mttd_minutes":        mttr["mttd_minutes"],
				"incident_count_30d": mttr["incident_count"],
			},
		},
	}, nil
}

func incidentFull(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	triage, err := incidentTriage(ctx, b, params, workflowID)
	if err != nil {
		return nil, fmt.Errorf("triage phase: %w", err)
	}
	correlate, err := incidentCorrelate(ctx, b, params, workflowID)
	if err != nil {
		return nil, fmt.Errorf("correlate phase: %w", err)
	}

	var impact map[string]any
	if len(stringSlice(params, "resource_ids")) > 0 {
		impact, err = incidentImpact(ctx, b, params, workflowID)
		if err != nil {
			return nil, fmt.Errorf("impact phase: %w", err)
		}
	}

	rca, err := incidentRCA(ctx, b, params, workflowID)
	if err != nil {
		return nil, fmt.Errorf("rca phase: %w", err)
	}
	remediation, err := incidentRemediate(ctx, b, params, workflowID)
	if err != nil {
		return nil, fmt.Errorf("remediation phase: %w", err)
	}

	var postmortem map[string]any
	if resolved, _ := params["resolved"].(bool); resolved {
		postmortem, err = incidentPostmortem(ctx, b, params, workflowID)
		if err != nil {
			return nil, fmt.Errorf("postmortem phase: %w", err)
		}
	}

	blastRadius := "unknown"
	if impact != nil {
		if ir, ok := impact["impact"].(map[string]any); ok {
			blastRadius, _ = ir["blast_radius"].(string)
		}
	}

	return map[string]any{
		"status":      "success",
		"incident_id": stringOr(params, "incident_id", ""),
		"workflow_id": workflowID,
		"phases": map[string]any{
			"triage":      triage,
			"correlation": correlate,
			"impact":      impact,
			"rca":         rca,
			"remediation": remediation,
			"postmortem":  postmortem,
		},
	}, nil
}
