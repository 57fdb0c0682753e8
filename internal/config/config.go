// Package config loads process-wide configuration from the environment
// variables named in spec §6, with an optional YAML overlay that can set the
// same fields. Intent tables, TTL profiles and specialist rule tables are
// not configurable here.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the process-wide configuration every component reads from at
// startup. Components receive the fields they need explicitly (as functional
// options or constructor arguments). Outside this package only the
// cmd/sreagentd entrypoint reads the environment, for its own deployment
// settings (ports, backend addresses, credentials).
type Config struct {
	// SubscriptionID is the default cloud scope used to fill in
	// subscription_id/scope parameters the operator's query omits.
	SubscriptionID string `yaml:"subscription_id"`
	// WorkspaceID is the default Log Analytics workspace for telemetry tools.
	WorkspaceID string `yaml:"workspace_id"`
	// InventoryStrictMode toggles InventoryGuard strict/lax mode.
	InventoryStrictMode bool `yaml:"inventory_strict_mode"`
	// CacheMaxEntries bounds the ToolCache.
	CacheMaxEntries int `yaml:"cache_max_entries"`
	// LogLevel is read from LOG_LEVEL or the overlay; the logger does not
	// consult it (debug output is switched on by the binary's -debug flag).
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration implied by an empty environment: lax
// defaults are never assumed for InventoryStrictMode (it defaults on, per
// spec §4.9), and CacheMaxEntries defaults to 500 (spec §4.1).
func Default() Config {
	return Config{
		InventoryStrictMode: true,
		CacheMaxEntries:     500,
		LogLevel:            "info",
	}
}

// FromEnv reads the environment variables named in spec §6, overlaying them
// onto Default(). Malformed numeric/boolean values are ignored (the default
// is kept) rather than failing startup.
func FromEnv() Config {
	c := Default()
	if v := os.Getenv("SUBSCRIPTION_ID"); v != "" {
		c.SubscriptionID = v
	}
	if v := os.Getenv("LOG_ANALYTICS_WORKSPACE_ID"); v != "" {
		c.WorkspaceID = v
	}
	if v := os.Getenv("INVENTORY_STRICT_MODE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.InventoryStrictMode = b
		}
	}
	if v := os.Getenv("CACHE_MAX_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.CacheMaxEntries = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	return c
}

// LoadYAMLOverlay merges a YAML document's fields onto c, returning the
// merged configuration. Only fields present in the document override c.
func LoadYAMLOverlay(c Config, data []byte) (Config, error) {
	overlay := c
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return c, fmt.Errorf("config: parse yaml overlay: %w", err)
	}
	return overlay, nil
}

// NormalizeScope converts a bare subscription GUID into the ARM-style
// "/subscriptions/{id}" form used throughout the tool parameter surface
// (spec §4.10 step 3). A value already in ARM form, or empty, passes through
// unchanged.
func NormalizeScope(id string) string {
	if id == "" || strings.HasPrefix(id, "/subscriptions/") {
		return id
	}
	return "/subscriptions/" + id
}
