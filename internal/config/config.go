package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/halcyard/webwrap/internal/validate"
)

// DefaultTargetURL is the address the shell wraps when no other target is
// configured. The whole application exists to present this one site.
const DefaultTargetURL = "https://app.halcyard.io"

// Defaults applied to fields left unset by file and environment.
const (
	defaultPollInterval  = 5 * time.Second
	defaultProbeTimeout  = 3 * time.Second
	defaultCacheDir      = "~/.cache/webwrap/pages"
	defaultCacheMaxAge   = 24 * time.Hour
	defaultMaxBodyBytes  = 2 << 20 // 2MB
	defaultViewerTimeout = 20 * time.Second
	defaultStoragePath   = "~/.local/state/webwrap/state.json"
)

// Config holds all application configuration.
type Config struct {
	Target      TargetConfig      `yaml:"target"`
	Netwatch    NetwatchConfig    `yaml:"netwatch"`
	Viewer      ViewerConfig      `yaml:"viewer"`
	Permissions PermissionsConfig `yaml:"permissions"`
	Storage     StorageConfig     `yaml:"storage"`
}

// TargetConfig pins the wrapped site.
type TargetConfig struct {
	URL string `yaml:"url" envconfig:"WEBWRAP_TARGET_URL" validate:"required,url"`
}

// NetwatchConfig holds reachability probing configuration.
type NetwatchConfig struct {
	// ProbeURL defaults to the target URL when empty.
	ProbeURL     string        `yaml:"probe_url" envconfig:"WEBWRAP_PROBE_URL" validate:"omitempty,url"`
	PollInterval time.Duration `yaml:"poll_interval" envconfig:"WEBWRAP_PROBE_POLL_INTERVAL"`
	Timeout      time.Duration `yaml:"timeout" envconfig:"WEBWRAP_PROBE_TIMEOUT"`
}

// ViewerConfig holds embedded content viewer behavior toggles.
// Cookies, caching and images are on unless disabled; file access is off
// unless enabled.
type ViewerConfig struct {
	DisableCookies bool          `yaml:"disable_cookies" envconfig:"WEBWRAP_VIEWER_DISABLE_COOKIES"`
	DisableCache   bool          `yaml:"disable_cache" envconfig:"WEBWRAP_VIEWER_DISABLE_CACHE"`
	DisableImages  bool          `yaml:"disable_images" envconfig:"WEBWRAP_VIEWER_DISABLE_IMAGES"`
	FileAccess     bool          `yaml:"file_access" envconfig:"WEBWRAP_VIEWER_FILE_ACCESS"`
	CacheDir       string        `yaml:"cache_dir" envconfig:"WEBWRAP_VIEWER_CACHE_DIR"`
	CacheMaxAge    time.Duration `yaml:"cache_max_age" envconfig:"WEBWRAP_VIEWER_CACHE_MAX_AGE"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes" envconfig:"WEBWRAP_VIEWER_MAX_BODY_BYTES"`
	Timeout        time.Duration `yaml:"timeout" envconfig:"WEBWRAP_VIEWER_TIMEOUT"`
}

// PermissionsConfig controls the startup capability requests.
type PermissionsConfig struct {
	Request []string        `yaml:"request" envconfig:"WEBWRAP_PERMISSIONS"`
	Strict  bool            `yaml:"strict" envconfig:"WEBWRAP_PERMISSIONS_STRICT"`
	Grants  map[string]bool `yaml:"grants" envconfig:"WEBWRAP_PERMISSION_GRANTS"`
}

// StorageConfig holds the persisted state file location.
type StorageConfig struct {
	Path string `yaml:"path" envconfig:"WEBWRAP_STORAGE_PATH" validate:"required"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values; defaults fill the rest.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	cfg.applyDefaults()

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills fields that neither file nor environment set.
// A nil permission list means "not configured"; an explicit empty list
// disables the startup requests.
func (c *Config) applyDefaults() {
	if c.Target.URL == "" {
		c.Target.URL = DefaultTargetURL
	}
	if c.Netwatch.ProbeURL == "" {
		c.Netwatch.ProbeURL = c.Target.URL
	}
	if c.Netwatch.PollInterval == 0 {
		c.Netwatch.PollInterval = defaultPollInterval
	}
	if c.Netwatch.Timeout == 0 {
		c.Netwatch.Timeout = defaultProbeTimeout
	}
	if c.Viewer.CacheDir == "" {
		c.Viewer.CacheDir = defaultCacheDir
	}
	if c.Viewer.CacheMaxAge == 0 {
		c.Viewer.CacheMaxAge = defaultCacheMaxAge
	}
	if c.Viewer.MaxBodyBytes == 0 {
		c.Viewer.MaxBodyBytes = defaultMaxBodyBytes
	}
	if c.Viewer.Timeout == 0 {
		c.Viewer.Timeout = defaultViewerTimeout
	}
	if c.Permissions.Request == nil {
		c.Permissions.Request = []string{"camera", "microphone", "location"}
	}
	if c.Storage.Path == "" {
		c.Storage.Path = defaultStoragePath
	}
}

// Validate checks the configuration and expands filesystem paths.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Netwatch.PollInterval < 0 {
		return fmt.Errorf("netwatch poll_interval must be positive")
	}
	if c.Netwatch.Timeout < 0 {
		return fmt.Errorf("netwatch timeout must be positive")
	}
	if c.Viewer.MaxBodyBytes < 0 {
		return fmt.Errorf("viewer max_body_bytes must be positive")
	}
	if c.Viewer.Timeout < 0 {
		return fmt.Errorf("viewer timeout must be positive")
	}

	var err error
	if c.Viewer.CacheDir, err = expandTilde(c.Viewer.CacheDir); err != nil {
		return fmt.Errorf("expand cache_dir: %w", err)
	}
	if c.Storage.Path, err = expandTilde(c.Storage.Path); err != nil {
		return fmt.Errorf("expand storage path: %w", err)
	}
	return nil
}

// expandTilde expands the tilde in a path to the user's home directory.
func expandTilde(path string) (string, error) {
	if len(path) == 0 || path[0] != '~' {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, path[1:]), nil
}
