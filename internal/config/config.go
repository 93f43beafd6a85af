// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/resume-vault/internal/types"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the CLI reads.
const EnvPrefix = "RESUME_VAULT_"

// Session store kinds.
const (
	SessionFile    = "file"
	SessionKeyring = "keyring"
	SessionMemory  = "memory"
)

// Config represents the CLI configuration that can be loaded from a JSON or YAML file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Artifact store
	BackendURL     string `json:"backend_url,omitempty" yaml:"backend_url,omitempty"`         // Base URL of the artifact store
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"` // Per-request timeout

	// Listing and downloads
	PageSize    int    `json:"page_size,omitempty" yaml:"page_size,omitempty"`       // One of 10, 20, 50, 100
	DownloadDir string `json:"download_dir,omitempty" yaml:"download_dir,omitempty"` // Where downloads are saved

	// Session persistence
	SessionStore string `json:"session_store,omitempty" yaml:"session_store,omitempty"` // file, keyring or memory
	SessionPath  string `json:"session_path,omitempty" yaml:"session_path,omitempty"`   // File for the file store

	// Logging
	LogLevel  string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	LogFormat string `json:"log_format,omitempty" yaml:"log_format,omitempty"` // console or json

	// Client behavior
	RateLimit   float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`     // Requests per second, 0 disables pacing
	RateBurst   int     `json:"rate_burst,omitempty" yaml:"rate_burst,omitempty"`     // Token bucket size
	Breaker     bool    `json:"breaker,omitempty" yaml:"breaker,omitempty"`           // Fail fast while the store is unreachable
	MetricsAddr string  `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"` // Serve client metrics here when set
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		BackendURL:     "http://localhost:8080",
		TimeoutSeconds: 30,
		PageSize:       types.DefaultPageSize,
		DownloadDir:    ".",
		SessionStore:   SessionFile,
		SessionPath:    filepath.Join(home, ".resume_vault", "session.json"),
		LogLevel:       "info",
		LogFormat:      "console",
		RateLimit:      10,
		RateBurst:      5,
	}
}

// LoadConfig loads configuration from a JSON file, or YAML when the
// extension is .yaml or .yml.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	return &cfg, nil
}

// ApplyEnv overrides fields from RESUME_VAULT_* variables found through lookup
// (normally os.LookupEnv).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}

	str("BACKEND_URL", &c.BackendURL)
	str("DOWNLOAD_DIR", &c.DownloadDir)
	str("SESSION_STORE", &c.SessionStore)
	str("SESSION_PATH", &c.SessionPath)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("METRICS_ADDR", &c.MetricsAddr)

	for name, dst := range map[string]*int{
		"TIMEOUT_SECONDS": &c.TimeoutSeconds,
		"PAGE_SIZE":       &c.PageSize,
		"RATE_BURST":      &c.RateBurst,
	} {
		if err := num(name, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup(EnvPrefix + "RATE_LIMIT"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %sRATE_LIMIT: %w", EnvPrefix, err)
		}
		c.RateLimit = f
	}
	if v, ok := lookup(EnvPrefix + "BREAKER"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sBREAKER: %w", EnvPrefix, err)
		}
		c.Breaker = b
	}
	return nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	if c.BackendURL != "" {
		u, err := url.Parse(c.BackendURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("config error: 'backend_url' is not an absolute URL: %q", c.BackendURL)
		}
	}

	// Validate numeric ranges
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("config error: 'timeout_seconds' must be non-negative")
	}
	if c.PageSize != 0 && !types.ValidPageSize(c.PageSize) {
		return fmt.Errorf("config error: 'page_size' must be one of %v", types.PageSizes)
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		return fmt.Errorf("config error: 'rate_limit' and 'rate_burst' must be non-negative")
	}

	if c.SessionStore != "" && !slices.Contains([]string{SessionFile, SessionKeyring, SessionMemory}, c.SessionStore) {
		return fmt.Errorf("config error: unknown 'session_store' %q", c.SessionStore)
	}
	if c.LogFormat != "" && c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("config error: 'log_format' must be console or json")
	}

	// Validate directories exist (if specified)
	if c.DownloadDir != "" {
		if info, err := os.Stat(c.DownloadDir); err == nil && !info.IsDir() {
			return fmt.Errorf("config error: download_dir is not a directory: %s", c.DownloadDir)
		}
	}

	return nil
}

// Timeout returns the request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	for _, f := range []struct{ dst, def *string }{
		{&result.BackendURL, &defaults.BackendURL},
		{&result.DownloadDir, &defaults.DownloadDir},
		{&result.SessionStore, &defaults.SessionStore},
		{&result.SessionPath, &defaults.SessionPath},
		{&result.LogLevel, &defaults.LogLevel},
		{&result.LogFormat, &defaults.LogFormat},
		{&result.MetricsAddr, &defaults.MetricsAddr},
	} {
		if *f.dst == "" {
			*f.dst = *f.def
		}
	}

	// Int fields: use default if zero
	if result.TimeoutSeconds == 0 {
		result.TimeoutSeconds = defaults.TimeoutSeconds
	}
	if result.PageSize == 0 {
		result.PageSize = defaults.PageSize
	}
	if result.RateBurst == 0 {
		result.RateBurst = defaults.RateBurst
	}

	// Float fields
	if result.RateLimit == 0 {
		result.RateLimit = defaults.RateLimit
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}
