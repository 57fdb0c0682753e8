// Package inventory implements the inventory guard (C9): a preflight check
// that a named resource exists before an expensive tool call is made.
package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/sre-agent-platform/sre-agent/internal/telemetry"
)

// Record is a single resource entry in the inventory snapshot.
type Record struct {
	Type          string
	ResourceGroup string
	Name          string
	ResourceID    string
}

// Snapshot is the read-only, externally refreshed collaborator the guard
// consults. The guard never calls a cloud provider directly.
type Snapshot interface {
	// Lookup returns the record matching either resourceID (if non-empty)
	// or the (resourceType, resourceGroup, name) triple, and whether it
	// was found.
	Lookup(ctx context.Context, resourceType, resourceGroup, name, resourceID string) (Record, bool)
}

// Mode controls behavior when a resource is not found in the snapshot.
type Mode int

const (
	// Strict fails the preflight check outright on a miss (default).
	Strict Mode = iota
	// Lax allows execution to proceed with a warning on a miss.
	Lax
)

// Result is the outcome of a preflight check.
type Result struct {
	OK      bool
	Result  map[string]any
	Warning string
}

// Guard performs preflight resource-existence checks against a Snapshot.
type Guard struct {
	snapshot Snapshot
	mode     Mode
	logger   telemetry.Logger
}

// Option configures a Guard.
type Option func(*Guard)

func WithMode(m Mode) Option { return func(g *Guard) { g.mode = m } }

func WithLogger(l telemetry.Logger) Option { return func(g *Guard) { g.logger = l } }

// New constructs a Guard in strict mode by default.
func New(snapshot Snapshot, opts ...Option) *Guard {
	g := &Guard{snapshot: snapshot, mode: Strict, logger: telemetry.NoopLogger{}}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ResourceIdentity pulls out the fields PreflightResourceCheck needs to
// match against the inventory snapshot.
type ResourceIdentity struct {
	Type          string
	ResourceGroup string
	Name          string
	ResourceID    string
}

// PreflightResourceCheck verifies a named resource exists in the inventory
// snapshot before the caller invokes an expensive tool. It never calls a
// cloud provider itself.
func (g *Guard) PreflightResourceCheck(ctx context.Context, identity ResourceIdentity) Result {
	if g.snapshot == nil {
		return Result{OK: true, Warning: "inventory snapshot not configured; skipping preflight"}
	}

	_, found := g.snapshot.Lookup(ctx, identity.Type, identity.ResourceGroup, identity.Name, identity.ResourceID)
	if found {
		return Result{OK: true}
	}

	ref := identityRef(identity)
	if g.mode == Lax {
		warning := fmt.Sprintf("resource %s not found in inventory; proceeding anyway", ref)
		g.logger.Warn(ctx, warning, "resource", ref)
		return Result{OK: true, Warning: warning}
	}

	g.logger.Info(ctx, "preflight check failed, resource not in inventory", "resource", ref)
	return Result{
		OK: false,
		Result: map[string]any{
			"success":          false,
			"error":            "Resource not found in inventory.",
			"suggestion":       fmt.Sprintf("Verify %s exists, or run discovery to list available resources.", ref),
			"preflight_failed": true,
		},
	}
}

func identityRef(identity ResourceIdentity) string {
	if identity.ResourceID != "" {
		return identity.ResourceID
	}
	parts := make([]string, 0, 3)
	if identity.Type != "" {
		parts = append(parts, identity.Type)
	}
	if identity.ResourceGroup != "" {
		parts = append(parts, identity.ResourceGroup)
	}
	if identity.Name != "" {
		parts = append(parts, identity.Name)
	}
	return strings.Join(parts, "/")
}

// StaticSnapshot is a Snapshot backed by an in-memory slice of Records,
// refreshed wholesale by an external collaborator via Replace.
type StaticSnapshot struct {
	records []Record
}

// NewStaticSnapshot constructs a StaticSnapshot from an initial record set.
func NewStaticSnapshot(records []Record) *StaticSnapshot {
	return &StaticSnapshot{records: records}
}

// Replace swaps the snapshot's record set. It takes no lock, so it is not
// safe to call while Lookup runs on another goroutine.
func (s *StaticSnapshot) Replace(records []Record) {
	s.records = records
}

// Lookup implements Snapshot.
func (s *StaticSnapshot) Lookup(_ context.Context, resourceType, resourceGroup, name, resourceID string) (Record, bool) {
	for _, r := range s.records {
		if resourceID != "" {
			if r.ResourceID == resourceID {
				return r, true
			}
			continue
		}
		if strings.EqualFold(r.Type, resourceType) &&
			strings.EqualFold(r.ResourceGroup, resourceGroup) &&
			strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return Record{}, false
}
