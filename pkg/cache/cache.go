// Package cache implements the TTL-keyed in-memory cache fronting tool
// results (C1). Entries carry a per-tool TTL profile; a static table maps
// tool names to their profile, and a never-cache set excludes mutating or
// notification tools from both reads and writes.
package cache

import (
	"crypto/md5" //nolint:gosec // cache key only, not a security boundary
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/sre-agent-platform/sre-agent/internal/telemetry"
)

// Profile names a TTL bucket.
type Profile string

const (
	RealTime Profile = "real_time"
	Short    Profile = "short"
	Medium   Profile = "medium"
	Long     Profile = "long"
	Daily    Profile = "daily"
)

// ttlProfiles maps each profile to its duration in seconds.
var ttlProfiles = map[Profile]int{
	RealTime: 60,
	Short:    300,
	Medium:   1800,
	Long:     3600,
	Daily:    86400,
}

// toolProfile assigns every cacheable tool its default TTL profile. Tools
// absent from this table are never cached on Set unless the caller passes an
// explicit profile.
var toolProfile = map[string]Profile{
	// real-time
	"get_performance_metrics":  RealTime,
	"identify_bottlenecks":     RealTime,
	"detect_metric_anomalies":  RealTime,
	// short
	"check_resource_health":       Short,
	"check_container_app_health":  Short,
	"check_aks_cluster_health":    Short,
	"correlate_alerts":            Short,
	"get_request_telemetry":       Short,
	// medium
	"analyze_resource_configuration":    Medium,
	"get_cost_analysis":                 Medium,
	"get_cost_recommendations":          Medium,
	"analyze_cost_anomalies":            Medium,
	"query_app_service_configuration":   Medium,
	"query_container_app_configuration": Medium,
	"query_aks_configuration":           Medium,
	"query_apim_configuration":          Medium,
	// long
	"get_resource_dependencies":   Long,
	"get_slo_dashboard":           Long,
	"analyze_dependency_map":      Long,
	"calculate_error_budget":      Long,
	"predict_resource_exhaustion": Long,
	// daily
	"get_security_score":             Daily,
	"check_compliance_status":        Daily,
	"list_security_recommendations":  Daily,
	"identify_orphaned_resources":    Daily,
	"describe_capabilities":          Daily,
}

// neverCache lists tools that must never be served from or written to the
// cache: mutations, notifications, and operations with no reusable result.
var neverCache = map[string]struct{}{
	"triage_incident":               {},
	"plan_remediation":              {},
	"execute_safe_restart":          {},
	"execute_restart_resource":      {},
	"scale_resource":                {},
	"execute_scale_resource":        {},
	"clear_cache":                   {},
	"execute_clear_redis_cache":     {},
	"send_teams_notification":       {},
	"send_teams_alert":              {},
	"send_sre_status_update":        {},
	"define_slo":                    {},
	"generate_incident_summary":     {},
	"generate_postmortem":           {},
	"execute_automation_runbook":    {},
	"create_incident_ticket":        {},
	"get_audit_trail":               {},
}

// contextLikeKeys are stripped from args before deriving the cache key so
// that two calls differing only in request-scoped context share an entry.
var contextLikeKeys = map[string]struct{}{
	"context": {}, "ctx": {}, "_context": {},
}

type entry struct {
	value      any
	createdAt  time.Time
	expiresAt  time.Time
	toolName   string
	ttlProfile Profile
}

// Stats reports cache occupancy and hit-rate counters.
type Stats struct {
	Entries        int
	MaxEntries     int
	Hits           int64
	Misses         int64
	HitRatePercent float64
}

// Cache is the process-wide TTL cache fronting tool results. The zero value
// is not usable; construct with New.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]entry
	maxEntries int
	hits       int64
	misses     int64
	logger     telemetry.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxEntries overrides the default capacity of 500 entries.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithLogger injects a Logger for internal diagnostics. The cache never
// fails a caller; internal errors are logged here and treated as a miss.
func WithLogger(l telemetry.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New constructs a Cache with the given options.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:    make(map[string]entry),
		maxEntries: 500,
		logger:     telemetry.NoopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value for tool/args, or (nil, false) on a miss,
// expiry, or if tool is in the never-cache set. The stored value is returned
// as is: it is not copied, so a map, slice or pointer value is shared between
// the cache entry and every caller that reads it.
func (c *Cache) Get(tool string, args map[string]any) (any, bool) {
	if _, skip := neverCache[tool]; skip {
		return nil, false
	}
	key := cacheKey(tool, args)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	c.hits++
	return e.value, true
}

// Set stores value for tool/args using profile if given, otherwise the
// tool's default profile from the static table. Tools in the never-cache
// set, and tools absent from both the override and the table, are no-ops.
func (c *Cache) Set(tool string, args map[string]any, value any, profile ...Profile) {
	if _, skip := neverCache[tool]; skip {
		return
	}
	p, ok := resolveProfile(tool, profile)
	if !ok {
		return
	}
	ttl := time.Duration(ttlProfiles[p]) * time.Second
	key := cacheKey(tool, args)
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		c.evictExpiredLocked()
		if len(c.entries) >= c.maxEntries {
			c.evictOldestLocked(c.maxEntries / 10)
		}
	}
	c.entries[key] = entry{
		value:      value,
		createdAt:  now,
		expiresAt:  now.Add(ttl),
		toolName:   tool,
		ttlProfile: p,
	}
}

func resolveProfile(tool string, override []Profile) (Profile, bool) {
	if len(override) > 0 && override[0] != "" {
		return override[0], true
	}
	p, ok := toolProfile[tool]
	return p, ok
}

// Invalidate removes the single entry for tool/args if args is non-nil, or
// every entry for tool if args is nil. It returns the number removed.
func (c *Cache) Invalidate(tool string, args map[string]any) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if args != nil {
		key := cacheKey(tool, args)
		if _, ok := c.entries[key]; ok {
			delete(c.entries, key)
			return 1
		}
		return 0
	}
	removed := 0
	for k, e := range c.entries {
		if e.toolName == tool {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// InvalidateAll clears every entry and resets hit/miss counters, returning
// the number of entries removed.
func (c *Cache) InvalidateAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := len(c.entries)
	c.entries = make(map[string]entry)
	c.hits = 0
	c.misses = 0
	return count
}

// Stats reports current occupancy and hit-rate statistics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	var rate float64
	if total > 0 {
		rate = float64(c.hits) / float64(total) * 100
	}
	return Stats{
		Entries:        len(c.entries),
		MaxEntries:     c.maxEntries,
		Hits:           c.hits,
		Misses:         c.misses,
		HitRatePercent: rate,
	}
}

func (c *Cache) evictExpiredLocked() {
	now := time.Now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

func (c *Cache) evictOldestLocked(count int) {
	if count <= 0 {
		return
	}
	type kv struct {
		key     string
		created time.Time
	}
	ordered := make([]kv, 0, len(c.entries))
	for k, e := range c.entries {
		ordered = append(ordered, kv{k, e.createdAt})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].created.Before(ordered[j].created) })
	for i := 0; i < count && i < len(ordered); i++ {
		delete(c.entries, ordered[i].key)
	}
}

// cacheKey derives the cache key per spec §6: tool_name + ":" +
// hex12(md5(canonical_json(args_minus_context))).
func cacheKey(tool string, args map[string]any) string {
	filtered := make(map[string]any, len(args))
	for k, v := range args {
		if _, stripped := contextLikeKeys[k]; stripped {
			continue
		}
		filtered[k] = v
	}
	canonical := canonicalJSON(filtered)
	sum := md5.Sum([]byte(canonical)) //nolint:gosec // cache key only
	return tool + ":" + hex.EncodeToString(sum[:])[:12]
}

// canonicalJSON renders v as JSON with lexicographically sorted object keys
// at every nesting level. encoding/json already sorts map[string]any keys
// (including nested maps), so a plain Marshal is used; its output is compact
// (no space after ':' or ','), so it is not byte-identical to Python's
// json.dumps(..., sort_keys=True) with default separators.
func canonicalJSON(v map[string]any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
