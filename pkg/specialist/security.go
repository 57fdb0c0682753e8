package specialist

import (
	"context"

	"github.com/sre-agent-platform/sre-agent/pkg/agent"
	"github.com/sre-agent-platform/sre-agent/pkg/contextstore"
)

// complianceFrameworks is the table of compliance frameworks this
// specialist can evaluate against (spec §4.11: "a new compliance framework
// is a table edit"). Each maps to the tool parameter value its check uses.
var complianceFrameworks = map[string]string{
	"cis":  "CIS_Azure_1.4",
	"nist": "NIST_800-53",
	"pci":  "PCI_DSS_4.0",
}

func frameworkParam(name string) string {
	if v, ok := complianceFrameworks[name]; ok {
		return v
	}
	return complianceFrameworks["cis"]
}

// NewSecurityCompliance constructs the SecurityCompliance specialist
// (verbs: scan_security, check_compliance, assess_vulnerabilities,
// policy_check, recommendations, full).
func NewSecurityCompliance(agentOpts []agent.Option, ctxStore *contextstore.Store, toolProxy ToolCaller) *Base {
	return NewBase("security-compliance", agentOpts, ctxStore, toolProxy, map[string]VerbFunc{
		"scan_security":          securityScan,
		"check_compliance":       securityCheckCompliance,
		"assess_vulnerabilities": securityAssessVulnerabilities,
		"policy_check":           securityPolicyCheck,
		"recommendations":        securityRecommendations,
		"full":                   securityFull,
	})
}

func securityScan(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	result, err := b.CallTool(ctx, "get_security_score", map[string]any{"scope": stringOr(params, "scope", "")})
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "scan_security", result)

	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"score":       result,
	}, nil
}

func securityCheckCompliance(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	framework := stringOr(params, "framework", "cis")
	result, err := b.CallTool(ctx, "check_compliance_status", map[string]any{
		"scope":     stringOr(params, "scope", ""),
		"framework": frameworkParam(framework),
	})
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "check_compliance", result)

	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"compliance": map[string]any{
			"framework": framework,
			"result":    result,
		},
	}, nil
}

func securityAssessVulnerabilities(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	result, err := b.CallTool(ctx, "list_security_recommendations", map[string]any{"scope": stringOr(params, "scope", "")})
	if err != nil {
		return nil, err
	}
	b.RecordStep(ctx, workflowID, "assess_vulnerabilities", result)

	return map[string]any{
		"status":          "success",
		"workflow_id":     workflowID,
		"vulnerabilities": result["recommendations"],
	}, nil
}

func securityPolicyCheck(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	return securityCheckCompliance(ctx, b, params, workflowID)
}

func securityRecommendations(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	vulns, err := securityAssessVulnerabilities(ctx, b, params, workflowID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"status":          "success",
		"workflow_id":     workflowID,
		"recommendations": vulns["vulnerabilities"],
	}, nil
}

func securityFull(ctx context.Context, b *Base, params map[string]any, workflowID string) (map[string]any, error) {
	scan, err := securityScan(ctx, b, params, workflowID)
	if err != nil {
		return nil, err
	}
	compliance, err := securityCheckCompliance(ctx, b, params, workflowID)
	if err != nil {
		return nil, err
	}
	vulns, err := securityAssessVulnerabilities(ctx, b, params, workflowID)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"status":      "success",
		"workflow_id": workflowID,
		"assessment": map[string]any{
			"score":           scan["score"],
			"compliance":      compliance["compliance"],
			"vulnerabilities": vulns["vulnerabilities"],
		},
	}, nil
}
