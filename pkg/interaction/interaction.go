// Package interaction implements the interaction handler (C8): required
// parameter checks, resource-discovery dispatch, and operator selection
// parsing.
package interaction

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sre-agent-platform/sre-agent/internal/telemetry"
)

// NeedsUserInput is returned by CheckRequiredParams when a tool call is
// missing one or more required parameters.
type NeedsUserInput struct {
	Status        string
	MissingParams []string
	ToolName      string
	Message       string
}

// CheckRequiredParams reports missing required parameters for tool, or nil
// if tool has none defined or all are present.
func CheckRequiredParams(toolName string, params map[string]any) *NeedsUserInput {
	required, ok := requiredParams[toolName]
	if !ok {
		return nil
	}

	var missing []string
	for _, param := range required {
		v, present := params[param]
		if !present || v == nil {
			missing = append(missing, param)
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			missing = append(missing, param)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	return &NeedsUserInput{
		Status:        "needs_user_input",
		MissingParams: missing,
		ToolName:      toolName,
		Message:       formatMissingParamsMessage(missing),
	}
}

func formatMissingParamsMessage(missing []string) string {
	var b strings.Builder
	b.WriteString("<p>To complete this operation, I need some additional information:</p>\n<ul>\n")
	for _, param := range missing {
		label, ok := paramLabels[param]
		if !ok {
			label = titleCase(strings.ReplaceAll(param, "_", " "))
		}
		b.WriteString(fmt.Sprintf("<li><strong>%s</strong></li>\n", label))
	}
	b.WriteString("</ul>")

	for _, p := range missing {
		switch p {
		case "resource_group":
			b.WriteString("\n<p>💡 I can look up available resource groups for you. Just say <em>'list resource groups'</em></p>")
		case "resource_id":
			b.WriteString("\n<p>💡 I can search for resources. Try: <em>'find container apps in [resource-group]'</em></p>")
		}
	}
	return b.String()
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// NeedsResourceDiscovery returns the resource type to discover when the
// query references one ambiguously (by cue keyword) without naming a
// specific instance, and no resource_id/container_app_name is already
// present. Returns "" when discovery is not needed.
func NeedsResourceDiscovery(params map[string]any, query string) string {
	if hasValue(params["resource_id"]) || hasValue(params["container_app_name"]) {
		return ""
	}

	lower := strings.ToLower(query)
	for _, resourceType := range resourceTypeOrder {
		for _, cue := range ambiguousIndicators[resourceType] {
			if strings.Contains(lower, cue) && !hasSpecificResourceName(query) {
				return resourceType
			}
		}
	}
	return ""
}

func hasValue(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

var (
	quotedNameRE    = regexp.MustCompile(`["'][\w-]+["']`)
	hyphenatedNameRE = regexp.MustCompile(`\b\w+-[\w-]+\b`)
	numberRE        = regexp.MustCompile(`\d+`)
)

func hasSpecificResourceName(query string) bool {
	if quotedNameRE.MatchString(query) {
		return true
	}
	if hyphenatedNameRE.MatchString(query) {
		return true
	}
	lower := strings.ToLower(query)
	for _, phrase := range specificNamePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// ParseSelection parses an operator's free-text selection against a set of
// options, in priority order: an integer in [1, len(options)], then
// first/last keyword cues, then a substring match against option names.
// Returns (Option{}, false) if nothing matches.
func ParseSelection(userInput string, options []Option) (Option, bool) {
	lower := strings.ToLower(strings.TrimSpace(userInput))

	if m := numberRE.FindString(lower); m != "" {
		if n, err := strconv.Atoi(m); err == nil && n >= 1 && n <= len(options) {
			return options[n-1], true
		}
	}

	if len(options) > 0 {
		for _, kw := range []string{"first", "1st", "top"} {
			if strings.Contains(lower, kw) {
				return options[0], true
			}
		}
		for _, kw := range []string{"last", "bottom"} {
			if strings.Contains(lower, kw) {
				return options[len(options)-1], true
			}
		}
	}

	for _, opt := range options {
		name := strings.ToLower(opt.Name)
		if name != "" && strings.Contains(lower, name) {
			return opt, true
		}
	}

	return Option{}, false
}

// Option is a single selectable resource, matching format.Option's shape.
type Option struct {
	Index int
	Name  string
	ID    string
}

// ResourceLister discovers resources of one kind through an external
// collaborator (typically a cloud CLI). Implementations return an empty
// slice, never an error, on a discovery failure — discovery is best-effort.
type ResourceLister interface {
	ListResourceGroups(ctx context.Context, subscriptionID string) []map[string]any
	ListContainerApps(ctx context.Context, resourceGroup, nameFilter string) []map[string]any
	ListVirtualMachines(ctx context.Context, resourceGroup, nameFilter string) []map[string]any
	ListLogAnalyticsWorkspaces(ctx context.Context, resourceGroup string) []map[string]any
}

// Handler composes the stateless parameter/discovery-dispatch helpers above
// with a ResourceLister. Discovery results are not cached: every discovery
// call goes to the lister.
type Handler struct {
	lister ResourceLister
	logger telemetry.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

func WithLogger(l telemetry.Logger) HandlerOption { return func(h *Handler) { h.logger = l } }

// New constructs a Handler. lister may be nil, in which case discovery
// calls return an empty result (matching the source's "no CLI executor
// configured" fallback).
func New(lister ResourceLister, opts ...HandlerOption) *Handler {
	h := &Handler{lister: lister, logger: telemetry.NoopLogger{}}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// DiscoverResourceGroups lists resource groups, or an empty slice if no
// lister is configured.
func (h *Handler) DiscoverResourceGroups(ctx context.Context, subscriptionID string) []map[string]any {
	if h.lister == nil {
		h.logger.Warn(ctx, "resource lister not configured")
		return nil
	}
	return h.lister.ListResourceGroups(ctx, subscriptionID)
}

// DiscoverContainerApps lists container apps, optionally filtered by
// resource group and a case-insensitive name substring.
func (h *Handler) DiscoverContainerApps(ctx context.Context, resourceGroup, nameFilter string) []map[string]any {
	if h.lister == nil {
		h.logger.Warn(ctx, "resource lister not configured")
		return nil
	}
	return h.lister.ListContainerApps(ctx, resourceGroup, nameFilter)
}

// DiscoverVirtualMachines lists VMs, optionally filtered by resource group
// and a case-insensitive name substring.
func (h *Handler) DiscoverVirtualMachines(ctx context.Context, resourceGroup, nameFilter string) []map[string]any {
	if h.lister == nil {
		h.logger.Warn(ctx, "resource lister not configured")
		return nil
	}
	return h.lister.ListVirtualMachines(ctx, resourceGroup, nameFilter)
}

// DiscoverLogAnalyticsWorkspaces lists workspaces, optionally filtered by
// resource group.
func (h *Handler) DiscoverLogAnalyticsWorkspaces(ctx context.Context, resourceGroup string) []map[string]any {
	if h.lister == nil {
		h.logger.Warn(ctx, "resource lister not configured")
		return nil
	}
	return h.lister.ListLogAnalyticsWorkspaces(ctx, resourceGroup)
}
