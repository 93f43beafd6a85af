package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Path pattern: exact, "*" for one segment, or a "/" suffix for prefix match
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// LoadConfig loads rate limiting configuration from environment variables.
func LoadConfig() *Config {
	return loadConfig(os.Getenv)
}

func loadConfig(getenv func(string) string) *Config {
	env := envReader(getenv)
	if !env.boolean("RATE_LIMIT_ENABLED", true) {
		return &Config{Enabled: false}
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    env.integer("RATE_LIMIT_DEFAULT_LIMIT", 1000),
		DefaultWindow:   env.duration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		CleanupInterval: env.duration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		Whitelist:       parseIPList(getenv("RATE_LIMIT_WHITELIST")),
		Blacklist:       parseIPList(getenv("RATE_LIMIT_BLACKLIST")),
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs returns the default endpoint-specific configurations.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Tier 1: Credential guessing and drafting (strictest limits)
		{Path: "/auth/signin", Method: "POST", Limit: 10, Window: time.Minute, Burst: 5},
		{Path: "/generate/resume-draft", Method: "POST", Limit: 10, Window: time.Hour, Burst: 2},

		// Tier 2: Archives are the most expensive reads
		{Path: "/artifacts/archive", Method: "GET", Limit: 30, Window: time.Minute, Burst: 5},
		{Path: "/delegated/*/artifacts/archive", Method: "GET", Limit: 30, Window: time.Minute, Burst: 5},

		// Tier 3: Write operations (moderate limits)
		{Path: "/artifacts/delete", Method: "POST", Limit: 60, Window: time.Minute, Burst: 10},
		{Path: "/delegated/*/artifacts/delete", Method: "POST", Limit: 60, Window: time.Minute, Burst: 10},
		{Path: "/admin/", Method: "POST", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/admin/", Method: "PUT", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/admin/", Method: "DELETE", Limit: 100, Window: time.Minute, Burst: 10},

		// Tier 4: Other reads - handled by default limit
		// Tier 5: Health and metrics (unlimited) - handled by special case in matcher
	}
}

type envReader func(string) string

func (e envReader) integer(key string, defaultValue int) int {
	if value := e(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (e envReader) boolean(key string, defaultValue bool) bool {
	if value := e(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func (e envReader) duration(key string, defaultValue time.Duration) time.Duration {
	if value := e(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// parseIPList parses a comma-separated list of IP addresses into a map.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
