package specialist

import (
	"context"
	"fmt"

	"github.com/sre-agent-platform/sre-agent/pkg/agent"
	"github.com/sre-agent-platform/sre-agent/pkg/contextstore"
)

// remediationStrategies maps an issue type to its default remediation
// strategy (spec §4.11 rules table for Remediation).
var remediationStrategies = map[string]string{
	"performance_degradation": "scale_up",
	"service_unresponsive":    "restart",
	"configuration_drift":     "reapply_baseline",
	"resource_exhaustion":     "scale_up",
}

func strategyFor(issueType string) string {
	if s, ok := remediationStrategies[issueType]; ok {
		return s
	}
	return "restart"
}

// NewRemediation constructs the Remediation specialist (verbs: diagnose,
// recommend, execute, rollback, verify, full).
func NewRemediation(agentOpts []agent.Option, ctxStore *contextstore.Store, toolProxy ToolCaller) *Base {
	return NewBase("remediation", agentOpts, ctxStore, toolProxy, map[string]VerbFunc{
		"diagnose":  remediationDiagnose,
		"recommend": remediationRecommend,
		"execute":   remediationExecute,
		"rollback":  remediationRollback,
		"verify":    remediationVerify,
		"full":      remediationFull,
	})
}

func remediationDiagnose(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	result, err := b.CallTool(ctx, "check_resource_health", map[string]any{"resource_id": stringOr(params, "resource_id", "")})
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "diagnose", result)

	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"diagnosis":   result,
	}, nil
}

func remediationRecommend(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	issueType := stringOr(params, "issue_type", "performance_degradation")
	result, err := b.CallTool(ctx, "plan_remediation", map[string]any{
		"issue_type":          issueType,
		"affected_resources":  params["affected_resources"],
	})
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "recommend", result)

	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"plan": map[string]any{
			"strategy": strategyFor(issueType),
			"actions":  result["actions"],
			"risk":     result["risk"],
		},
	}, nil
}

func remediationExecute(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	resourceID := stringOr(params, "resource_id", "")
	strategy := strategyFor(stringOr(params, "issue_type", ""))

	var (
		result map[string]any
		err    error
	)
	switch strategy {
	case "scale_up":
		result, err = b.CallTool(ctx, "scale_resource", map[string]any{
			"resource_id":  resourceID,
			"new_capacity": params["new_capacity"],
		})
	default:
		result, err = b.CallTool(ctx, "execute_safe_restart", map[string]any{"resource_id": resourceID})
	}
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "execute", result)

	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"execution": map[string]any{
			"strategy": strategy,
			"result":   result,
		},
	}, nil
}

func remediationRollback(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	result, err := b.CallTool(ctx, "clear_cache", map[string]any{"resource_id": stringOr(params, "resource_id", "")})
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "rollback", result)

	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"rollback":    result,
	}, nil
}

func remediationVerify(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	result, err := b.CallTool(ctx, "check_resource_health", map[string]any{"resource_id": stringOr(params, "resource_id", "")})
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "verify", result)

	availability, _ := result["availability_state"].(string)
	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"verification": map[string]any{
			"resolved": mapAvailabilityToHealth(availability) == "healthy",
			"health":   result,
		},
	}, nil
}

func remediationFull(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	diagnosis, err := remediationDiagnose(ctx, b, params, workflowID)
	if err != nil {
		return nil, fmt.Errorf("diagnose phase: %w", err)
	}
	plan, err := remediationRecommend(ctx, b, params, workflowID)
	if err != nil {
		return nil, fmt.Errorf("recommend phase: %w", err)
	}

	var execution map[string]any
	if approved, _ := params["approved"].(bool); approved {
		execution, err = remediationExecute(ctx, b, params, workflowID)
		if err != nil {
			return nil, fmt.Errorf("execute phase: %w", err)
		}
	}

	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"remediation": map[string]any{
			"diagnosis": diagnosis["diagnosis"],
			"plan":      plan["plan"],
			"execution": execution,
		},
	}, nil
}
