// Package config loads the sessiond service configuration from a YAML file
// with sensible defaults, so a bare `sessiond` works out of the box.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file is absent or leaves fields unset.
const (
	DefaultListenAddr     = ":8000"
	DefaultSessionsDir    = "./user_sessions"
	DefaultKeyFile        = "./session_encryption.key"
	DefaultScreenshotsDir = "./screenshots"
	DefaultSessionTTL     = 168 * time.Hour
	DefaultNavTimeoutMs   = 30000.0
)

// Duration decodes YAML durations given either as Go duration strings
// ("168h", "30m") or as integer nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	*d = Duration(n)
	return nil
}

// Std returns the standard library duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds the service configuration. All fields are read-only after
// Load; the TTL and key material are initialized once before serving any
// request.
type Config struct {
	// ListenAddr is the HTTP listen address.
	ListenAddr string `yaml:"listen_addr"`

	// SessionsDir is the root directory holding per-session profile
	// directories and the session index.
	SessionsDir string `yaml:"sessions_dir"`

	// KeyFile is the path of the base64-encoded encryption key.
	KeyFile string `yaml:"key_file"`

	// ScreenshotsDir receives screenshot action output.
	ScreenshotsDir string `yaml:"screenshots_dir"`

	// SessionTTL is the maximum idle duration before a session expires.
	SessionTTL Duration `yaml:"session_ttl"`

	// Headless runs login browsers without a visible window. Manual login
	// flows need this off.
	Headless bool `yaml:"headless"`

	// ActionHeadless runs action browsers without a visible window.
	ActionHeadless bool `yaml:"action_headless"`

	// NavigationTimeoutMs bounds page navigations, in milliseconds.
	NavigationTimeoutMs float64 `yaml:"navigation_timeout_ms"`
}

// defaults returns a fully populated default configuration.
func defaults() Config {
	return Config{
		ListenAddr:          DefaultListenAddr,
		SessionsDir:         DefaultSessionsDir,
		KeyFile:             DefaultKeyFile,
		ScreenshotsDir:      DefaultScreenshotsDir,
		SessionTTL:          Duration(DefaultSessionTTL),
		Headless:            false,
		ActionHeadless:      true,
		NavigationTimeoutMs: DefaultNavTimeoutMs,
	}
}

// Load reads configuration from path, filling unset fields with defaults.
// A missing file is not an error: defaults are returned. The SESSIOND_ADDR
// environment variable, when set, overrides the listen address.
func Load(path string) (Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		applyDefaults(&cfg)
	}

	if addr := os.Getenv("SESSIOND_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}

	if cfg.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("session_ttl must be positive, got %s", cfg.SessionTTL.Std())
	}

	return cfg, nil
}

// applyDefaults fills zero-valued fields after a partial YAML decode.
func applyDefaults(cfg *Config) {
	def := defaults()
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if cfg.SessionsDir == "" {
		cfg.SessionsDir = def.SessionsDir
	}
	if cfg.KeyFile == "" {
		cfg.KeyFile = def.KeyFile
	}
	if cfg.ScreenshotsDir == "" {
		cfg.ScreenshotsDir = def.ScreenshotsDir
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = def.SessionTTL
	}
	if cfg.NavigationTimeoutMs == 0 {
		cfg.NavigationTimeoutMs = def.NavigationTimeoutMs
	}
}
