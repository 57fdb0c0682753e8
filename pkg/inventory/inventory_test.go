package inventory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sre-agent-platform/sre-agent/pkg/inventory"
)

func TestPreflightOKWhenResourceFoundByID(t *testing.T) {
	snap := inventory.NewStaticSnapshot([]inventory.Record{
		{Type: "vm", ResourceGroup: "rg-1", Name: "vm-1", ResourceID: "/subs/1/vm-1"},
	})
	guard := inventory.New(snap)

	result := guard.PreflightResourceCheck(context.Background(), inventory.ResourceIdentity{ResourceID: "/subs/1/vm-1"})
	assert.True(t, result.OK)
	assert.Empty(t, result.Warning)
}

func TestPreflightOKWhenResourceFoundByTriple(t *testing.T) {
	snap := inventory.NewStaticSnapshot([]inventory.Record{
		{Type: "vm", ResourceGroup: "rg-1", Name: "vm-1"},
	})
	guard := inventory.New(snap)

	result := guard.PreflightResourceCheck(context.Background(), inventory.ResourceIdentity{
		Type: "vm", ResourceGroup: "rg-1", Name: "vm-1",
	})
	assert.True(t, result.OK)
}

func TestPreflightStrictFailsOnMiss(t *testing.T) {
	snap := inventory.NewStaticSnapshot(nil)
	guard := inventory.New(snap)

	result := guard.PreflightResourceCheck(context.Background(), inventory.ResourceIdentity{Type: "vm", Name: "missing"})
	require.False(t, result.OK)
	assert.Equal(t, true, result.Result["preflight_failed"])
	assert.Equal(t, "Resource not found in inventory.", result.Result["error"])
}

func TestPreflightLaxWarnsOnMiss(t *testing.T) {
	snap := inventory.NewStaticSnapshot(nil)
	guard := inventory.New(snap, inventory.WithMode(inventory.Lax))

	result := guard.PreflightResourceCheck(context.Background(), inventory.ResourceIdentity{Type: "vm", Name: "missing"})
	assert.True(t, result.OK)
	assert.NotEmpty(t, result.Warning)
}

func TestPreflightWithoutSnapshotSkips(t *testing.T) {
	guard := inventory.New(nil)
	result := guard.PreflightResourceCheck(context.Background(), inventory.ResourceIdentity{Type: "vm"})
	assert.True(t, result.OK)
	assert.NotEmpty(t, result.Warning)
}

func TestStaticSnapshotReplaceSwapsRecords(t *testing.T) {
	snap := inventory.NewStaticSnapshot([]inventory.Record{{Type: "vm", Name: "vm-1"}})
	snap.Replace([]inventory.Record{{Type: "vm", Name: "vm-2"}})

	_, found := snap.Lookup(context.Background(), "vm", "", "vm-1", "")
	assert.False(t, found)
	_, found = snap.Lookup(context.Background(), "vm", "", "vm-2", "")
	assert.True(t, found)
}
