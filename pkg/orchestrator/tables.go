package orchestrator

import "regexp"

type intentRule struct {
	pattern *regexp.Regexp
	tools   []string
}

type intentCategory struct {
	name  string
	rules []intentRule
}

func mustRule(pattern string, tools []string) intentRule {
	return intentRule{pattern: regexp.MustCompile(pattern), tools: tools}
}

// intentTable is the declared-order (category, [(regex, tools)]) routing
// table. The first regex matching the lowercased query, scanning categories
// and rules in this order, wins.
var intentTable = []intentCategory{
	{name: "health", rules: []intentRule{
		mustRule(`(check|health|status|diagnose).*(resource|vm|app|container|aks)`,
			[]string{"check_resource_health", "check_container_app_health", "check_aks_cluster_health"}),
		mustRule(`(diagnostic|logs)`,
			[]string{"get_diagnostic_logs", "search_logs_by_error"}),
	}},
	{name: "incident", rules: []intentRule{
		mustRule(`(incident|triage|investigate|troubleshoot)`,
			[]string{"triage_incident", "generate_incident_summary"}),
		mustRule(`(alert|correlate)`,
			[]string{"correlate_alerts"}),
		mustRule(`(postmortem|rca|root cause)`,
			[]string{"generate_postmortem_template", "analyze_activity_log"}),
	}},
	{name: "performance", rules: []intentRule{
		mustRule(`(performance|metrics|cpu|memory|utilization)`,
			[]string{"get_performance_metrics", "identify_bottlenecks"}),
		mustRule(`(capacity|scale|sizing)`,
			[]string{"get_capacity_recommendations", "compare_baseline_metrics"}),
	}},
	{name: "cost", rules: []intentRule{
		mustRule(`(cost|spending|budget|savings)`,
			[]string{"get_cost_analysis", "get_cost_recommendations"}),
		mustRule(`(orphaned|unused|idle|waste)`,
			[]string{"identify_orphaned_resources", "analyze_idle_resources"}),
	}},
	{name: "slo", rules: []intentRule{
		mustRule(`(slo|service level|error budget)`,
			[]string{"calculate_error_budget", "get_slo_dashboard"}),
		mustRule(`(availability|uptime|reliability)`,
			[]string{"define_slo", "calculate_error_budget"}),
	}},
	{name: "security", rules: []intentRule{
		mustRule(`(security|secure score|vulnerabilities)`,
			[]string{"get_security_score", "list_security_recommendations"}),
		mustRule(`(compliance|policy|cis|nist)`,
			[]string{"check_compliance_status"}),
	}},
	{name: "remediation", rules: []intentRule{
		mustRule(`(restart|reboot|fix)`,
			[]string{"plan_remediation", "execute_safe_restart"}),
		mustRule(`(scale|resize)`,
			[]string{"scale_resource"}),
		mustRule(`(cache|clear)`,
			[]string{"clear_cache"}),
	}},
	{name: "config", rules: []intentRule{
		mustRule(`(app service|web app).*config`,
			[]string{"query_app_service_configuration"}),
		mustRule(`(container app).*config`,
			[]string{"query_container_app_configuration"}),
		mustRule(`(aks|kubernetes).*config`,
			[]string{"query_aks_configuration"}),
		mustRule(`(apim|api management).*config`,
			[]string{"query_apim_configuration"}),
	}},
}

const defaultCategory = "general"

var defaultTools = []string{"describe_capabilities"}

// scopeRequiredTools need an ARM-style scope (subscription or resource
// group) rather than a bare resource identity (spec §4.10 step 4).
var scopeRequiredTools = map[string]bool{
	"get_cost_analysis":           true,
	"get_cost_recommendations":    true,
	"identify_orphaned_resources": true,
	"analyze_idle_resources":      true,
	"check_compliance_status":     true,
}

// resourceDiscoveryType maps a resource-scoped tool to the discovery
// resource type InteractionHandler knows how to look up (spec §4.8/§4.10
// step 7). A tool absent from this table is not resource-scoped.
var resourceDiscoveryType = map[string]string{
	"check_container_app_health":         "container_app",
	"query_container_app_configuration":  "container_app",
	"check_aks_cluster_health":           "vm",
	"query_aks_configuration":            "vm",
	"get_diagnostic_logs":                "vm",
	"get_performance_metrics":            "vm",
	"identify_bottlenecks":               "vm",
	"plan_remediation":                   "vm",
	"execute_safe_restart":               "vm",
	"scale_resource":                     "vm",
}
