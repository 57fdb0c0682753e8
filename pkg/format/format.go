// Package format implements the response formatter (C7): pure functions
// converting tool results into structured, user-facing fragments. Output is
// HTML, matching the original renderer's contract with the front end.
package format

import (
	"encoding/json"
	"fmt"
	"html"
	"strconv"
	"strings"
)

// severityIcons maps a lowercased status/severity string to a fixed icon
// (spec §4.7: healthy/available/success -> ok; degraded/warning -> warn;
// error/critical -> err; unknown -> unk).
var severityIcons = map[string]string{
	"healthy":   "✓",
	"available": "✓",
	"success":   "✓",
	"unhealthy": "⚠",
	"degraded":  "⚠",
	"warning":   "⚠",
	"error":     "✗",
	"critical":  "🔴",
	"unknown":   "?",
	"info":      "ℹ",
}

func iconFor(status string) string {
	icon, ok := severityIcons[strings.ToLower(status)]
	if !ok {
		return "?"
	}
	return icon
}

// Column describes one column of a resource table.
type Column struct {
	Label string
	Field string
	Type  string // "text", "index", "status", "date"
}

var defaultColumns = []Column{
	{Label: "#", Field: "_index", Type: "index"},
	{Label: "Name", Field: "name", Type: "text"},
	{Label: "Location", Field: "location", Type: "text"},
	{Label: "Resource Group", Field: "resource_group", Type: "text"},
}

var columnsByResourceType = map[string][]Column{
	"Virtual Machine": {
		{Label: "#", Field: "_index", Type: "index"},
		{Label: "Name", Field: "name", Type: "text"},
		{Label: "Status", Field: "status", Type: "status"},
		{Label: "Location", Field: "location", Type: "text"},
		{Label: "Resource Group", Field: "resource_group", Type: "text"},
		{Label: "Size", Field: "vm_size", Type: "text"},
	},
	"Container App": {
		{Label: "#", Field: "_index", Type: "index"},
		{Label: "Name", Field: "name", Type: "text"},
		{Label: "Status", Field: "provisioning_state", Type: "status"},
		{Label: "Location", Field: "location", Type: "text"},
		{Label: "Resource Group", Field: "resource_group", Type: "text"},
		{Label: "FQDN", Field: "fqdn", Type: "text"},
	},
	"Resource Group": {
		{Label: "#", Field: "_index", Type: "index"},
		{Label: "Name", Field: "name", Type: "text"},
		{Label: "Location", Field: "location", Type: "text"},
		{Label: "Status", Field: "provisioning_state", Type: "status"},
	},
	"Log Analytics Workspace": {
		{Label: "#", Field: "_index", Type: "index"},
		{Label: "Name", Field: "name", Type: "text"},
		{Label: "Resource Group", Field: "resource_group", Type: "text"},
		{Label: "Location", Field: "location", Type: "text"},
		{Label: "SKU", Field: "sku", Type: "text"},
	},
}

func columnsFor(resourceType string) []Column {
	if cols, ok := columnsByResourceType[resourceType]; ok {
		return cols
	}
	return defaultColumns
}

// FormatResourceList renders resources as an HTML table, indexed from 1.
func FormatResourceList(resources []map[string]any, resourceType, context string) string {
	if len(resources) == 0 {
		return fmt.Sprintf("<p>No %ss found.</p>", html.EscapeString(resourceType))
	}

	count := len(resources)
	plural := resourceType
	if count != 1 {
		plural = resourceType + "s"
	}

	var parts []string
	if context != "" {
		parts = append(parts, fmt.Sprintf("<p>%s</p>", html.EscapeString(context)))
	} else {
		parts = append(parts, fmt.Sprintf("<p>Found <strong>%d</strong> %s. Please select one from the list below:</p>", count, html.EscapeString(plural)))
	}
	parts = append(parts, buildResourceTable(resources, resourceType))
	return strings.Join(parts, "\n")
}

func buildResourceTable(resources []map[string]any, resourceType string) string {
	columns := columnsFor(resourceType)

	var b strings.Builder
	b.WriteString(`<table class="table table-sm table-striped">` + "\n<thead>\n<tr>\n")
	for _, col := range columns {
		b.WriteString(fmt.Sprintf("<th>%s</th>", html.EscapeString(col.Label)))
	}
	b.WriteString("\n</tr>\n</thead>\n<tbody>\n")

	for idx, resource := range resources {
		b.WriteString("<tr>")
		for _, col := range columns {
			value := extractFieldValue(resource, col.Field, idx+1)
			b.WriteString(fmt.Sprintf("<td>%s</td>", formatCellValue(value, col.Type)))
		}
		b.WriteString("</tr>\n")
	}
	b.WriteString("</tbody>\n</table>")
	return b.String()
}

func extractFieldValue(resource map[string]any, field string, index int) any {
	if field == "_index" {
		if v, ok := resource["_index"]; ok {
			return v
		}
		return index
	}
	var cur any = resource
	for _, part := range strings.Split(field, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

func formatCellValue(value any, cellType string) string {
	if value == nil || value == "" {
		return `<span class="text-muted">—</span>`
	}
	switch cellType {
	case "index":
		return fmt.Sprintf("<strong>%v</strong>", value)
	case "status":
		status := fmt.Sprintf("%v", value)
		return fmt.Sprintf("%s %s", iconFor(status), html.EscapeString(status))
	default:
		return html.EscapeString(fmt.Sprintf("%v", value))
	}
}

// FormatHealthStatus renders a single resource's health check result.
func FormatHealthStatus(resourceName string, healthData map[string]any) string {
	availability, _ := healthData["availability_state"].(string)
	if availability == "" {
		availability = "Unknown"
	}
	reason, _ := healthData["reason_type"].(string)
	summary, _ := healthData["summary"].(string)

	parts := []string{
		fmt.Sprintf("<h4>%s Health Status: %s</h4>", iconFor(availability), html.EscapeString(resourceName)),
		fmt.Sprintf("<p><strong>Status:</strong> %s</p>", html.EscapeString(availability)),
	}
	if reason != "" {
		parts = append(parts, fmt.Sprintf("<p><strong>Reason:</strong> %s</p>", html.EscapeString(reason)))
	}
	if summary != "" {
		parts = append(parts, fmt.Sprintf("<p><strong>Details:</strong> %s</p>", html.EscapeString(summary)))
	}

	lower := strings.ToLower(availability)
	if lower == "unhealthy" || lower == "degraded" {
		parts = append(parts,
			"<p><strong>Next Steps:</strong></p>"+
				"<ul><li>Check diagnostic logs for errors</li>"+
				"<li>Review recent configuration changes</li>"+
				"<li>Verify resource dependencies are healthy</li></ul>")
	}
	return strings.Join(parts, "\n")
}

// CostBreakdownItem is one row of a cost summary's per-service breakdown.
type CostBreakdownItem struct {
	Service    string
	Cost       float64
	Percentage float64
}

// CostSummary is the input to FormatCostSummary.
type CostSummary struct {
	TotalCost       float64
	Currency        string
	TimePeriod      string
	Breakdown       []CostBreakdownItem
	PotentialSavings float64
}

// FormatCostSummary renders a cost analysis summary.
func FormatCostSummary(data CostSummary) string {
	currency := data.Currency
	if currency == "" {
		currency = "USD"
	}
	period := data.TimePeriod
	if period == "" {
		period = "current month"
	}

	parts := []string{
		"<h4>Cost Analysis Summary</h4>",
		fmt.Sprintf("<p><strong>Total Spending (%s):</strong> %s $%s</p>", html.EscapeString(period), currency, FormatMoney(data.TotalCost)),
	}

	if len(data.Breakdown) > 0 {
		parts = append(parts, "<h5>Top Services:</h5>")
		parts = append(parts, `<table class="table table-sm"><thead><tr><th>Service</th><th>Cost</th><th>%</th></tr></thead><tbody>`)
		top := data.Breakdown
		if len(top) > 5 {
			top = top[:5]
		}
		for _, item := range top {
			parts = append(parts, fmt.Sprintf(`<tr><td>%s</td><td>$%s</td><td>%.1f%%</td></tr>`,
				html.EscapeString(item.Service), FormatMoney(item.Cost), item.Percentage))
		}
		parts = append(parts, "</tbody></table>")
	}

	if data.PotentialSavings > 0 {
		parts = append(parts, fmt.Sprintf("<p>✨ <strong>Potential Savings:</strong> $%s</p>"+
			"<p><strong>Recommendations:</strong></p>"+
			"<ul><li>Review orphaned resources (unattached disks, idle IPs)</li>"+
			"<li>Right-size underutilized resources</li>"+
			"<li>Consider reserved instances for stable workloads</li></ul>", FormatMoney(data.PotentialSavings)))
	}
	return strings.Join(parts, "\n")
}

// FormatMoney renders v as a comma-grouped, two-decimal amount (no currency
// symbol), e.g. 1234.5 -> "1,234.50".
func FormatMoney(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, decPart, _ := strings.Cut(s, ".")
	var grouped []byte
	for i, c := range []byte(intPart) {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped = append(grouped, ',')
		}
		grouped = append(grouped, c)
	}
	out := string(grouped) + "." + decPart
	if neg {
		out = "-" + out
	}
	return out
}

// FormatPerformanceMetrics renders CPU/memory readings, bottlenecks, and
// recommendations for a resource.
func FormatPerformanceMetrics(resourceName string, cpuPercent, memoryPercent *float64, bottlenecks, recommendations []string) string {
	parts := []string{fmt.Sprintf("<h4>Performance Metrics: %s</h4>", html.EscapeString(resourceName))}

	if cpuPercent != nil {
		parts = append(parts, fmt.Sprintf("<p>%s <strong>CPU:</strong> %.1f%%</p>", utilizationIcon(*cpuPercent), *cpuPercent))
	}
	if memoryPercent != nil {
		parts = append(parts, fmt.Sprintf("<p>%s <strong>Memory:</strong> %.1f%%</p>", utilizationIcon(*memoryPercent), *memoryPercent))
	}

	if len(bottlenecks) > 0 {
		parts = append(parts, "<p><strong>⚠ Bottlenecks Detected:</strong></p><ul>")
		for _, b := range bottlenecks {
			parts = append(parts, fmt.Sprintf("<li>%s</li>", html.EscapeString(b)))
		}
		parts = append(parts, "</ul>")
	}

	switch {
	case len(recommendations) > 0:
		parts = append(parts, "<p><strong>💡 Recommendations:</strong></p><ul>")
		for _, r := range recommendations {
			parts = append(parts, fmt.Sprintf("<li>%s</li>", html.EscapeString(r)))
		}
		parts = append(parts, "</ul>")
	case len(bottlenecks) == 0:
		parts = append(parts, "<p>✓ Performance looks good! No immediate issues detected.</p>")
	}
	return strings.Join(parts, "\n")
}

func utilizationIcon(pct float64) string {
	switch {
	case pct > 80:
		return "⚠"
	case pct < 60:
		return "✓"
	default:
		return "ℹ"
	}
}

var incidentSeverityIcons = map[string]string{
	"CRITICAL": "🔴",
	"HIGH":     "🟠",
	"MEDIUM":   "🟡",
	"LOW":      "🟢",
}

// IncidentSummary is the input to FormatIncidentSummary.
type IncidentSummary struct {
	Severity          string
	Status            string
	AffectedResources []string
	RootCause         string
	RemediationSteps  []string
}

// FormatIncidentSummary renders an incident triage result.
func FormatIncidentSummary(incidentID string, data IncidentSummary) string {
	severity := strings.ToUpper(data.Severity)
	if severity == "" {
		severity = "MEDIUM"
	}
	status := data.Status
	if status == "" {
		status = "active"
	}
	icon, ok := incidentSeverityIcons[severity]
	if !ok {
		icon = "ℹ"
	}

	parts := []string{
		fmt.Sprintf("<h4>%s Incident Report: %s</h4>", icon, html.EscapeString(incidentID)),
		fmt.Sprintf("<p><strong>Severity:</strong> %s</p>", severity),
		fmt.Sprintf("<p><strong>Status:</strong> %s</p>", html.EscapeString(status)),
	}

	if len(data.AffectedResources) > 0 {
		parts = append(parts, fmt.Sprintf("<p><strong>Affected Resources (%d):</strong></p><ul>", len(data.AffectedResources)))
		shown := data.AffectedResources
		if len(shown) > 5 {
			shown = shown[:5]
		}
		for _, r := range shown {
			parts = append(parts, fmt.Sprintf("<li>%s</li>", html.EscapeString(r)))
		}
		if len(data.AffectedResources) > 5 {
			parts = append(parts, fmt.Sprintf("<li><em>...and %d more</em></li>", len(data.AffectedResources)-5))
		}
		parts = append(parts, "</ul>")
	}

	if data.RootCause != "" {
		parts = append(parts, fmt.Sprintf("<p><strong>Root Cause:</strong> %s</p>", html.EscapeString(data.RootCause)))
	}

	if len(data.RemediationSteps) > 0 {
		parts = append(parts, "<p><strong>Remediation Steps:</strong></p><ol>")
		for _, s := range data.RemediationSteps {
			parts = append(parts, fmt.Sprintf("<li>%s</li>", html.EscapeString(s)))
		}
		parts = append(parts, "</ol>")
	}
	return strings.Join(parts, "\n")
}

// FormatSuccessMessage renders a generic success message.
func FormatSuccessMessage(action, details string, nextSteps []string) string {
	parts := []string{fmt.Sprintf("<p>✓ <strong>Success!</strong> %s</p>", html.EscapeString(action))}
	if details != "" {
		parts = append(parts, fmt.Sprintf("<p>%s</p>", html.EscapeString(details)))
	}
	if len(nextSteps) > 0 {
		parts = append(parts, "<p><strong>Next Steps:</strong></p><ul>")
		for _, s := range nextSteps {
			parts = append(parts, fmt.Sprintf("<li>%s</li>", html.EscapeString(s)))
		}
		parts = append(parts, "</ul>")
	}
	return strings.Join(parts, "\n")
}

// FormatErrorMessage renders a generic error message with optional
// suggestions.
func FormatErrorMessage(errMsg string, suggestions []string) string {
	parts := []string{fmt.Sprintf("<p>✗ <strong>Error:</strong> %s</p>", html.EscapeString(errMsg))}
	if len(suggestions) > 0 {
		parts = append(parts, "<p><strong>Try the following:</strong></p><ul>")
		for _, s := range suggestions {
			parts = append(parts, fmt.Sprintf("<li>%s</li>", html.EscapeString(s)))
		}
		parts = append(parts, "</ul>")
	}
	return strings.Join(parts, "\n")
}

// Option is one selectable resource in a SelectionPrompt.
type Option struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	ID    string `json:"id"`
}

// SelectionPrompt is FormatSelectionPrompt's result.
type SelectionPrompt struct {
	Message            string   `json:"message"`
	RequiresSelection  bool     `json:"requires_selection"`
	SelectionType      string   `json:"selection_type"`
	ResourceType       string   `json:"resource_type"`
	Action             string   `json:"action"`
	Options            []Option `json:"options"`
}

// FormatSelectionPrompt builds a selection prompt over resources, indexing
// options from 1.
func FormatSelectionPrompt(resources []map[string]any, resourceType, action string) SelectionPrompt {
	indexed := make([]map[string]any, len(resources))
	options := make([]Option, len(resources))
	for i, r := range resources {
		copied := make(map[string]any, len(r)+1)
		for k, v := range r {
			copied[k] = v
		}
		copied["_index"] = i + 1
		indexed[i] = copied

		name, _ := r["name"].(string)
		if name == "" {
			name = fmt.Sprintf("%s %d", resourceType, i+1)
		}
		id, _ := r["id"].(string)
		if id == "" {
			id, _ = r["resource_id"].(string)
		}
		options[i] = Option{Index: i + 1, Name: name, ID: id}
	}

	context := fmt.Sprintf("Found %d %s(s). Which one would you like to %s?", len(resources), resourceType, action)
	message := FormatResourceList(indexed, resourceType, context)

	return SelectionPrompt{
		Message:           message,
		RequiresSelection: true,
		SelectionType:     "resource",
		ResourceType:      resourceType,
		Action:            action,
		Options:           options,
	}
}

// FormatToolResult dispatches a raw tool result to the formatter matching
// its tool name, falling back to a pretty-printed JSON code block.
func FormatToolResult(toolName string, result map[string]any) string {
	lower := strings.ToLower(toolName)

	switch {
	case strings.Contains(lower, "health"):
		resourceName, _ := result["resource_name"].(string)
		if resourceName == "" {
			resourceName = "Unknown Resource"
		}
		healthData := result
		if hs, ok := result["health_status"].(map[string]any); ok {
			healthData = hs
		}
		return FormatHealthStatus(resourceName, healthData)

	case strings.Contains(lower, "incident"), strings.Contains(lower, "triage"):
		incidentID, _ := result["incident_id"].(string)
		if incidentID == "" {
			incidentID = "Unknown Incident"
		}
		return FormatIncidentSummary(incidentID, incidentSummaryFromMap(result))
	}

	if status, _ := result["status"].(string); status == "success" {
		action, _ := result["message"].(string)
		if action == "" {
			action = "Operation completed successfully"
		}
		details, _ := result["details"].(string)
		return FormatSuccessMessage(action, details, nil)
	}
	if status, _ := result["status"].(string); status == "error" {
		errMsg, _ := result["error"].(string)
		if errMsg == "" {
			errMsg = "An error occurred"
		}
		return FormatErrorMessage(errMsg, stringSlice(result["suggestions"]))
	}

	b, _ := json.MarshalIndent(result, "", "  ")
	return fmt.Sprintf("<pre><code>%s</code></pre>", html.EscapeString(string(b)))
}

func incidentSummaryFromMap(result map[string]any) IncidentSummary {
	severity, _ := result["severity"].(string)
	status, _ := result["status"].(string)
	rootCause, _ := result["root_cause"].(string)
	return IncidentSummary{
		Severity:          severity,
		Status:            status,
		AffectedResources: stringSlice(result["affected_resources"]),
		RootCause:         rootCause,
		RemediationSteps:  stringSlice(result["remediation_steps"]),
	}
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
