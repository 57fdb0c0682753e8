package specialist

import (
	"context"

	"github.com/sre-agent-platform/sre-agent/pkg/agent"
	"github.com/sre-agent-platform/sre-agent/pkg/contextstore"
)

// configQueryTools maps a resource type to the configuration query tool
// that reads its settings (spec §4.11 rules table for
// ConfigurationManagement).
var configQueryTools = map[string]string{
	"app_service":   "query_app_service_configuration",
	"container_app": "query_container_app_configuration",
	"aks":           "query_aks_configuration",
	"apim":          "query_apim_configuration",
}

func configToolFor(resourceType string) string {
	if tool, ok := configQueryTools[resourceType]; ok {
		return tool
	}
	return configQueryTools["app_service"]
}

// NewConfigurationManagement constructs the ConfigurationManagement
// specialist (verbs: scan, drift, compliance, remediate, baseline, full).
func NewConfigurationManagement(agentOpts []agent.Option, ctxStore *contextstore.Store, toolProxy ToolCaller) *Base {
	return NewBase("configuration-management", agentOpts, ctxStore, toolProxy, map[string]VerbFunc{
		"scan":       configScan,
		"drift":      configDrift,
		"compliance": configCompliance,
		"remediate":  configRemediate,
		"baseline":   configBaseline,
		"full":       configFull,
	})
}

func configScan(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	resourceType := stringOr(params, "resource_type", "app_service")
	result, err := b.CallTool(ctx, configToolFor(resourceType), map[string]any{
		"resource_id": stringOr(params, "resource_id", ""),
	})
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "scan", result)

	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"configuration": result,
	}, nil
}

func configDrift(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	current, err := configScan(ctx, b, params, workflowID)
	if err != nil {
		return nil, err
	}
	currentConfig, _ := current["configuration"].(map[string]any)
	baseline, _ := params["baseline"].(map[string]any)

	var drifted []string
	for key, baseVal := range baseline {
		if currentConfig[key] != baseVal {
			drifted = append(drifted, key)
		}
	}

	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"drift": map[string]any{
			"drifted_keys": drifted,
			"has_drift":    len(drifted) > 0,
		},
	}, nil
}

func configCompliance(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	result, err := b.CallTool(ctx, "check_compliance_status", map[string]any{
		"scope":     stringOr(params, "scope", ""),
		"framework": frameworkParam(stringOr(params, "framework", "cis")),
	})
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "compliance", result)

	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"compliance":  result,
	}, nil
}

func configRemediate(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	drift, err := configDrift(ctx, b, params, workflowID)
	if err != nil {
		return nil, err
	}
	driftInfo, _ := drift["drift"].(map[string]any)
	if hasDrift, _ := driftInfo["has_drift"].(bool); !hasDrift {
		return map[string]any{
			"status":      "success",
			"workflow_id": workflowID,
			"remediation": map[string]any{"applied": false, "reason": "no drift detected"},
		}, nil
	}

	result, err := b.CallTool(ctx, "plan_remediation", map[string]any{
		"issue_type": "configuration_drift",
	})
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "remediate", result)

	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"remediation": map[string]any{
			"applied": true,
			"actions": result["actions"],
		},
	}, nil
}

func configBaseline(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	scan, err := configScan(ctx, b, params, workflowID)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"baseline":    scan["configuration"],
	}, nil
}

func configFull(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	scan, err := configScan(ctx, b, params, workflowID)
	if err != nil {
		return nil, err
	}
	compliance, err := configCompliance(ctx, b, params, workflowID)
	if err != nil {
		return nil, err
	}

	var drift map[string]any
	if params["baseline"] != nil {
		drift, err = configDrift(ctx, b, params, workflowID)
		if err != nil {
			return nil, err
		}
	}

	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"assessment": map[string]any{
			"configuration": scan["configuration"],
			"compliance":    compliance["compliance"],
			"drift":         drift,
		},
	}, nil
}
