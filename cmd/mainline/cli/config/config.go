// Package config loads and saves the project-local mainline configuration.
// The configuration lives at .mainline/config.yaml and is created by
// 'mainline init'; every other command refuses to run without it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/paths"
)

// ErrNotInitialized is returned when no config.yaml exists in the state
// directory. Callers map it to exit code 4.
var ErrNotInitialized = errors.New("mainline is not initialized in this repository (run 'mainline init')")

// Defaults applied by New and by Load for fields missing from disk.
const (
	DefaultRemote             = "origin"
	DefaultBranch             = "main"
	DefaultSessionTTLDays     = 30
	DefaultCIWaitTimeout      = 20 * time.Minute
	DefaultCIPollInterval     = 30 * time.Second
	DefaultForgeCallTimeout   = 30 * time.Second
	DefaultStaleLockThreshold = 24 * time.Hour
)

// ForgeConfig identifies the remote forge and repository.
type ForgeConfig struct {
	// Kind is the forge flavor. Only "github" is implemented; the value is
	// kept open for other forges.
	Kind string `yaml:"kind"`

	// Owner and Repo address the repository on the forge.
	Owner string `yaml:"owner"`
	Repo  string `yaml:"repo"`

	// TokenEnv names the environment variable holding the API token.
	// The token itself is never written to disk.
	TokenEnv string `yaml:"token_env,omitempty"`
}

// Configured reports whether enough forge settings are present to build a client.
func (f ForgeConfig) Configured() bool {
	return f.Kind != "" && f.Owner != "" && f.Repo != ""
}

// CIConfig controls the wait-for-checks loop in the ship pipeline.
type CIConfig struct {
	// TimeoutMinutes bounds the whole wait. Zero means the default (20).
	TimeoutMinutes int `yaml:"timeout_minutes,omitempty"`

	// PollIntervalSeconds is the delay between check-status polls. Zero means
	// the default (30).
	PollIntervalSeconds int `yaml:"poll_interval_seconds,omitempty"`
}

// Timeout returns the CI wait timeout as a duration.
func (c CIConfig) Timeout() time.Duration {
	if c.TimeoutMinutes <= 0 {
		return DefaultCIWaitTimeout
	}
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// PollInterval returns the poll interval as a duration.
func (c CIConfig) PollInterval() time.Duration {
	if c.PollIntervalSeconds <= 0 {
		return DefaultCIPollInterval
	}
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// Config is the content of .mainline/config.yaml.
type Config struct {
	Forge ForgeConfig `yaml:"forge"`

	// Remote is the git remote workflows push to and pull from.
	Remote string `yaml:"remote"`

	// DefaultBranch is the protected linear-history branch (main/master).
	DefaultBranch string `yaml:"default_branch"`

	// User identifies the operator in session metadata and audit entries.
	User string `yaml:"user,omitempty"`

	// SessionTTLDays is how long sessions are kept after their last update
	// before cleanup may delete them.
	SessionTTLDays int `yaml:"session_ttl_days,omitempty"`

	CI CIConfig `yaml:"ci,omitempty"`

	// LogLevel sets logging verbosity (debug, info, warn, error).
	// Can be overridden by the MAINLINE_LOG_LEVEL environment variable.
	LogLevel string `yaml:"log_level,omitempty"`

	// Telemetry controls anonymous usage analytics.
	// nil = not asked yet, true = opted in, false = opted out.
	Telemetry *bool `yaml:"telemetry,omitempty"`
}

// New returns a config populated with defaults.
func New() *Config {
	return &Config{
		Remote:         DefaultRemote,
		DefaultBranch:  DefaultBranch,
		SessionTTLDays: DefaultSessionTTLDays,
	}
}

// SessionTTL returns the session TTL as a duration.
func (c *Config) SessionTTL() time.Duration {
	days := c.SessionTTLDays
	if days <= 0 {
		days = DefaultSessionTTLDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// Token resolves the forge API token from the configured environment variable.
// Returns empty string when unset.
func (c *Config) Token() string {
	env := c.Forge.TokenEnv
	if env == "" {
		env = "GITHUB_TOKEN"
	}
	return os.Getenv(env)
}

// Load reads config.yaml from the given state root.
// Returns ErrNotInitialized if the file does not exist.
func Load(stateRoot string) (*Config, error) {
	data, err := os.ReadFile(paths.ConfigFile(stateRoot)) //nolint:gosec // path built from constants
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotInitialized
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := New()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Remote == "" {
		cfg.Remote = DefaultRemote
	}
	if cfg.DefaultBranch == "" {
		cfg.DefaultBranch = DefaultBranch
	}
	return cfg, nil
}

// Save writes the config atomically to config.yaml under stateRoot,
// creating the state directory layout if needed.
func Save(stateRoot string, cfg *Config) error {
	if err := paths.EnsureLayout(stateRoot); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	target := paths.ConfigFile(stateRoot)
	tmp, err := os.CreateTemp(filepath.Dir(target), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("creating temp config: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp config: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming config into place: %w", err)
	}
	return nil
}
