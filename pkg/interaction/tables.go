package interaction

// requiredParams is the static per-tool required-parameter table (spec
// §4.8). A tool absent from this table has no required parameters.
var requiredParams = map[string][]string{
	"check_resource_health":       {"resource_id"},
	"check_container_app_health":  {"container_app_name", "resource_group"},
	"check_aks_cluster_health":    {"cluster_name", "resource_group"},
	"get_diagnostic_logs":         {"resource_id"},
	"get_performance_metrics":     {"resource_id"},
	"triage_incident":             {"incident_id", "resource_ids"},
	"plan_remediation":            {"resource_id"},
	"execute_safe_restart":        {"resource_id"},
	"scale_resource":              {"resource_id", "new_capacity"},
	"get_cost_analysis":           {"subscription_id"},
	"identify_orphaned_resources": {"subscription_id"},
}

var paramLabels = map[string]string{
	"resource_id":         "Resource ID",
	"container_app_name":  "Container App name",
	"resource_group":      "Resource Group name",
	"cluster_name":        "AKS Cluster name",
	"incident_id":         "Incident ID",
	"resource_ids":        "Affected Resource IDs",
	"subscription_id":     "Subscription ID",
	"new_capacity":        "New capacity/scale",
}

// ambiguousIndicators maps a resource type to the query keyword cues that
// suggest the operator is referring to one without naming it (spec §4.8
// discovery dispatch).
var ambiguousIndicators = map[string][]string{
	"container_app":  {"container app", "containerapp", "app service", "webapp"},
	"vm":              {"virtual machine", "vm ", "vms"},
	"resource_group":  {"resource group", "rg "},
	"workspace":       {"log analytics", "workspace"},
}

// resourceTypeOrder fixes ambiguousIndicators' iteration order to match the
// declared-order matching semantics used elsewhere in this core (map
// iteration in Go is not stable).
var resourceTypeOrder = []string{"container_app", "vm", "resource_group", "workspace"}

var specificNamePhrases = []string{
	"named", "called", "for resource", "specific",
	"the app", "the vm", "my app", "my vm",
}
