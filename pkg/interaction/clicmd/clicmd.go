// Package clicmd implements interaction.ResourceLister by shelling out to a
// cloud provider's CLI (az/aws/gcloud-style) and parsing its JSON output.
package clicmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sre-agent-platform/sre-agent/internal/telemetry"
)

const defaultTimeout = 20 * time.Second

// Executor runs a single CLI invocation and returns its raw stdout, which
// the Lister decodes as JSON. It exists so tests can substitute a fake without forking a real
// process.
type Executor interface {
	Run(ctx context.Context, args []string) ([]byte, error)
}

// Lister implements interaction.ResourceLister over the `az` CLI. The
// binary name is configurable so the same adapter shape serves other cloud
// CLIs with equivalent list/query semantics.
type Lister struct {
	binary   string
	executor Executor
	logger   telemetry.Logger
}

// Option configures a Lister.
type Option func(*Lister)

func WithLogger(l telemetry.Logger) Option { return func(c *Lister) { c.logger = l } }

// WithExecutor overrides the default os/exec-backed Executor (primarily for
// tests).
func WithExecutor(e Executor) Option { return func(c *Lister) { c.executor = e } }

// New constructs a Lister invoking binary (e.g. "az").
func New(binary string, opts ...Option) *Lister {
	l := &Lister{binary: binary, logger: telemetry.NoopLogger{}}
	for _, opt := range opts {
		opt(l)
	}
	if l.executor == nil {
		l.executor = &execExecutor{binary: binary}
	}
	return l
}

func (l *Lister) run(ctx context.Context, args []string, out *[]map[string]any) {
	raw, err := l.executor.Run(ctx, args)
	if err != nil {
		l.logger.Error(ctx, "cli invocation failed", "binary", l.binary, "args", strings.Join(args, " "), "err", err)
		return
	}
	if err := json.Unmarshal(raw, out); err != nil {
		l.logger.Error(ctx, "cli output did not parse as JSON", "binary", l.binary, "err", err)
	}
}

// ListResourceGroups lists resource groups, optionally scoped to a
// subscription.
func (l *Lister) ListResourceGroups(ctx context.Context, subscriptionID string) []map[string]any {
	args := []string{"group", "list",
		"--query", "[].{name:name, location:location, provisioning_state:properties.provisioningState}",
		"-o", "json"}
	if subscriptionID != "" {
		args = append(args, "--subscription", subscriptionID)
	}
	var out []map[string]any
	l.run(ctx, args, &out)
	return out
}

// ListContainerApps lists container apps, optionally filtered by resource
// group and a case-insensitive name substring.
func (l *Lister) ListContainerApps(ctx context.Context, resourceGroup, nameFilter string) []map[string]any {
	args := []string{"containerapp", "list"}
	if resourceGroup != "" {
		args = append(args, "--resource-group", resourceGroup)
	}
	args = append(args, "--query",
		"[].{name:name, resource_group:resourceGroup, location:location, "+
			"provisioning_state:properties.provisioningState, "+
			"fqdn:properties.configuration.ingress.fqdn, id:id}",
		"-o", "json")

	var out []map[string]any
	l.run(ctx, args, &out)
	return filterByName(out, nameFilter)
}

// ListVirtualMachines lists VMs, optionally filtered by resource group and
// a case-insensitive name substring.
func (l *Lister) ListVirtualMachines(ctx context.Context, resourceGroup, nameFilter string) []map[string]any {
	args := []string{"vm", "list"}
	if resourceGroup != "" {
		args = append(args, "--resource-group", resourceGroup)
	}
	args = append(args, "--query",
		"[].{name:name, resource_group:resourceGroup, location:location, "+
			"vm_size:hardwareProfile.vmSize, status:provisioningState, id:id}",
		"-o", "json")

	var out []map[string]any
	l.run(ctx, args, &out)
	return filterByName(out, nameFilter)
}

// ListLogAnalyticsWorkspaces lists Log Analytics workspaces, optionally
// filtered by resource group.
func (l *Lister) ListLogAnalyticsWorkspaces(ctx context.Context, resourceGroup string) []map[string]any {
	args := []string{"monitor", "log-analytics", "workspace", "list"}
	if resourceGroup != "" {
		args = append(args, "--resource-group", resourceGroup)
	}
	args = append(args, "--query",
		"[].{name:name, resource_group:resourceGroup, location:location, sku:sku.name, id:id}",
		"-o", "json")

	var out []map[string]any
	l.run(ctx, args, &out)
	return out
}

func filterByName(resources []map[string]any, nameFilter string) []map[string]any {
	if nameFilter == "" || len(resources) == 0 {
		return resources
	}
	needle := strings.ToLower(nameFilter)
	out := make([]map[string]any, 0, len(resources))
	for _, r := range resources {
		name, _ := r["name"].(string)
		if strings.Contains(strings.ToLower(name), needle) {
			out = append(out, r)
		}
	}
	return out
}

type execExecutor struct {
	binary string
}

func (e *execExecutor) Run(ctx context.Context, args []string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("clicmd: %s %s: %w: %s", e.binary, strings.Join(args, " "), err, stderr.String())
	}
	return stdout.Bytes(), nil
}
