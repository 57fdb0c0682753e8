package clicmd_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sre-agent-platform/sre-agent/pkg/interaction/clicmd"
)

type fakeExecutor struct {
	lastArgs []string
	output   []map[string]any
	err      error
}

func (f *fakeExecutor) Run(_ context.Context, args []string) ([]byte, error) {
	f.lastArgs = args
	if f.err != nil {
		return nil, f.err
	}
	return json.Marshal(f.output)
}

func TestListResourceGroupsBuildsQueryArgs(t *testing.T) {
	exec := &fakeExecutor{output: []map[string]any{{"name": "rg-1"}}}
	lister := clicmd.New("az", clicmd.WithExecutor(exec))

	out := lister.ListResourceGroups(context.Background(), "")
	require.Len(t, out, 1)
	assert.Equal(t, "rg-1", out[0]["name"])

	joined := strings.Join(exec.lastArgs, " ")
	assert.Contains(t, joined, "group list")
	assert.Contains(t, joined, "--query")
}

func TestListContainerAppsFiltersByName(t *testing.T) {
	exec := &fakeExecutor{output: []map[string]any{
		{"name": "checkout-svc"},
		{"name": "billing-svc"},
	}}
	lister := clicmd.New("az", clicmd.WithExecutor(exec))

	out := lister.ListContainerApps(context.Background(), "rg-1", "checkout")
	require.Len(t, out, 1)
	assert.Equal(t, "checkout-svc", out[0]["name"])

	joined := strings.Join(exec.lastArgs, " ")
	assert.Contains(t, joined, "containerapp list")
	assert.Contains(t, joined, "--resource-group rg-1")
}

func TestListVirtualMachinesScopesToResourceGroup(t *testing.T) {
	exec := &fakeExecutor{output: []map[string]any{{"name": "vm-1"}}}
	lister := clicmd.New("az", clicmd.WithExecutor(exec))

	out := lister.ListVirtualMachines(context.Background(), "rg-1", "")
	require.Len(t, out, 1)

	joined := strings.Join(exec.lastArgs, " ")
	assert.Contains(t, joined, "vm list")
	assert.Contains(t, joined, "--resource-group rg-1")
}

func TestListLogAnalyticsWorkspacesNoFilter(t *testing.T) {
	exec := &fakeExecutor{output: []map[string]any{{"name": "law-1"}}}
	lister := clicmd.New("az", clicmd.WithExecutor(exec))

	out := lister.ListLogAnalyticsWorkspaces(context.Background(), "")
	require.Len(t, out, 1)
	assert.Equal(t, "law-1", out[0]["name"])
}

func TestExecutorFailureReturnsEmptyResult(t *testing.T) {
	exec := &fakeExecutor{err: assert.AnError}
	lister := clicmd.New("az", clicmd.WithExecutor(exec))

	out := lister.ListResourceGroups(context.Background(), "sub-1")
	assert.Empty(t, out)
}
