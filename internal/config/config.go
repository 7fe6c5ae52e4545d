package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Validation errors.
var (
	// ErrInvalidBrowserPath indicates the browser path is not valid.
	ErrInvalidBrowserPath = errors.New("invalid browser path")
	// ErrInvalidLandingURL indicates the landing URL is not a valid URL.
	ErrInvalidLandingURL = errors.New("invalid landing url")
	// ErrInvalidBackend indicates an unknown store or secrets backend.
	ErrInvalidBackend = errors.New("invalid backend")
	// ErrInvalidValue indicates an out of range configuration value.
	ErrInvalidValue = errors.New("invalid configuration value")
)

// StoreBackend selects where profiles are persisted.
type StoreBackend string

const (
	// StoreBackendJSON persists profiles to a single JSON document.
	StoreBackendJSON StoreBackend = "json"
	// StoreBackendSQLite persists profiles to an embedded SQLite database.
	StoreBackendSQLite StoreBackend = "sqlite"
)

// SecretsBackend selects where proxy passwords are kept.
type SecretsBackend string

const (
	// SecretsBackendFile keeps passwords inside the profile store.
	SecretsBackendFile SecretsBackend = "file"
	// SecretsBackendKeyring keeps passwords in the OS keyring.
	SecretsBackendKeyring SecretsBackend = "keyring"
)

// DefaultLandingURL is the page opened in every new session.
const DefaultLandingURL = "https://luckybird.io"

// DefaultTerminateGrace is how long a browser gets to exit before it is killed.
const DefaultTerminateGrace = 5 * time.Second

// BrowserConfig holds settings for the launched browser.
type BrowserConfig struct {
	// Path is an optional custom path to a Chromium-family executable.
	Path string `yaml:"path,omitempty"`
	// LandingURL is opened when a session starts.
	LandingURL string `yaml:"landing_url,omitempty"`
	// ExtraArgs are appended to the browser command line.
	ExtraArgs []string `yaml:"extra_args,omitempty"`
	// NoSandbox adds --no-sandbox, needed when running as root in containers.
	NoSandbox bool `yaml:"no_sandbox,omitempty"`
	// TerminateGrace is the delay between a graceful stop and a forced kill.
	TerminateGrace time.Duration `yaml:"terminate_grace,omitempty"`
}

// StoreConfig holds settings for the profile store.
type StoreConfig struct {
	// Backend is json or sqlite.
	Backend StoreBackend `yaml:"backend,omitempty"`
	// Path overrides the store file location.
	Path string `yaml:"path,omitempty"`
}

// SecretsConfig holds settings for proxy credential storage.
type SecretsConfig struct {
	// Backend is file or keyring.
	Backend SecretsBackend `yaml:"backend,omitempty"`
}

// LoggingConfig holds settings for the application logger.
type LoggingConfig struct {
	// Level is the logging level (debug, info, warn, error).
	Level string `yaml:"level,omitempty"`
	// JSON enables JSON-formatted logging.
	JSON bool `yaml:"json,omitempty"`
	// File is the path to a log file. Empty logs to stderr.
	File string `yaml:"file,omitempty"`
	// MaxSize is the maximum log file size in MB before rotation.
	MaxSize int `yaml:"max_size,omitempty"`
}

// NotificationConfig holds settings for desktop notifications.
type NotificationConfig struct {
	// Enabled enables desktop notifications.
	Enabled bool `yaml:"enabled,omitempty"`
	// OnSessionEnd sends a notification when a browser session closes.
	OnSessionEnd bool `yaml:"on_session_end,omitempty"`
	// OnLaunchFailure sends a notification when a launch fails.
	OnLaunchFailure bool `yaml:"on_launch_failure,omitempty"`
}

// SeedProfile is a profile created on first run.
type SeedProfile struct {
	Name  string `yaml:"name"`
	Proxy string `yaml:"proxy"`
}

// SeedConfig controls first-run profile creation.
type SeedConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Profiles []SeedProfile `yaml:"profiles,omitempty"`
}

// Config represents the DaBrowser configuration.
type Config struct {
	Browser       BrowserConfig      `yaml:"browser,omitempty"`
	Store         StoreConfig        `yaml:"store,omitempty"`
	Secrets       SecretsConfig      `yaml:"secrets,omitempty"`
	Logging       LoggingConfig      `yaml:"logging,omitempty"`
	Notifications NotificationConfig `yaml:"notifications,omitempty"`
	Seed          SeedConfig         `yaml:"seed"`

	// filePath is the path where this config was loaded from.
	filePath string `yaml:"-"`
}

// DefaultSeeds returns the built-in first-run profiles.
func DefaultSeeds() []SeedProfile {
	return []SeedProfile{
		{Name: "Profile 1", Proxy: "192.0.2.10:8080:user1:pass1"},
		{Name: "Profile 2", Proxy: "198.51.100.20:3128:user2:pass2"},
		{Name: "Profile 3", Proxy: "203.0.113.30:8000"},
	}
}

// Default returns a new Config with default values.
func Default() *Config {
	paths := GetPaths()
	return &Config{
		Browser: BrowserConfig{
			LandingURL:     DefaultLandingURL,
			TerminateGrace: DefaultTerminateGrace,
		},
		Store: StoreConfig{
			Backend: StoreBackendJSON,
		},
		Secrets: SecretsConfig{
			Backend: SecretsBackendFile,
		},
		Logging: LoggingConfig{
			Level:   "info",
			MaxSize: 10,
		},
		Notifications: NotificationConfig{
			Enabled:         false,
			OnSessionEnd:    true,
			OnLaunchFailure: true,
		},
		Seed: SeedConfig{
			Enabled:  true,
			Profiles: DefaultSeeds(),
		},
		filePath: paths.ConfigFile,
	}
}

// DefaultAt returns the default configuration bound to path.
func DefaultAt(path string) *Config {
	cfg := Default()
	cfg.filePath = path
	return cfg
}

// Load loads the configuration from the default path.
func Load() (*Config, error) {
	paths := GetPaths()
	return LoadFrom(paths.ConfigFile)
}

// LoadFrom loads the configuration from a specific path and applies
// environment overrides on top of it.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultAt(path)

	// #nosec G304 - path is the config file path (controlled, from user config directory)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Browser.LandingURL == "" {
		c.Browser.LandingURL = DefaultLandingURL
	}
	if c.Browser.TerminateGrace == 0 {
		c.Browser.TerminateGrace = DefaultTerminateGrace
	}
	if c.Store.Backend == "" {
		c.Store.Backend = StoreBackendJSON
	}
	if c.Secrets.Backend == "" {
		c.Secrets.Backend = SecretsBackendFile
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Save writes the configuration to its file path.
func (c *Config) Save() error {
	if c.filePath == "" {
		return errors.New("config file path not set")
	}

	if err := os.MkdirAll(filepath.Dir(c.filePath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// StorePath returns the profile store location for the configured backend.
func (c *Config) StorePath(paths Paths) string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	if c.Store.Backend == StoreBackendSQLite {
		return filepath.Join(paths.DataDir, ProfilesDBName)
	}
	return filepath.Join(paths.DataDir, ProfilesFileName)
}

// ValidatePath validates that the browser path is safe to execute.
// This prevents command injection via malicious config files.
func (b *BrowserConfig) ValidatePath() error {
	browserPath := b.Path

	// Empty means auto-discovery.
	if browserPath == "" {
		return nil
	}

	// A bare name is looked up in PATH.
	if browserPath == filepath.Base(browserPath) {
		return nil
	}

	if !filepath.IsAbs(browserPath) {
		return fmt.Errorf("%w: custom browser path must be absolute, got %q", ErrInvalidBrowserPath, browserPath)
	}

	if strings.Contains(browserPath, "..") {
		return fmt.Errorf("%w: browser path contains suspicious components (path traversal)", ErrInvalidBrowserPath)
	}
	if filepath.Clean(browserPath) != browserPath {
		return fmt.Errorf("%w: browser path contains suspicious components", ErrInvalidBrowserPath)
	}

	// Stat follows symlinks: distributions commonly install browsers behind one.
	info, err := os.Stat(browserPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: browser not found at %q", ErrInvalidBrowserPath, browserPath)
		}
		return fmt.Errorf("%w: cannot access browser at %q: %v", ErrInvalidBrowserPath, browserPath, err)
	}

	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %q is not a regular file", ErrInvalidBrowserPath, browserPath)
	}

	// Windows uses file extensions and associations instead of execute bits.
	if runtime.GOOS != "windows" {
		if info.Mode().Perm()&0111 == 0 {
			return fmt.Errorf("%w: %q is not executable", ErrInvalidBrowserPath, browserPath)
		}
	}

	return nil
}

// ValidateLandingURL validates that the landing URL is an absolute http(s) URL.
func (b *BrowserConfig) ValidateLandingURL() error {
	if b.LandingURL == "" {
		return fmt.Errorf("%w: landing url is required", ErrInvalidLandingURL)
	}

	parsed, err := url.Parse(b.LandingURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLandingURL, err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: landing url must use http or https scheme, got %q", ErrInvalidLandingURL, parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("%w: landing url must have a host", ErrInvalidLandingURL)
	}

	return nil
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "warning": true, "error": true,
}

// Validate reports the first invalid setting in the configuration.
func (c *Config) Validate() error {
	if err := c.Browser.ValidatePath(); err != nil {
		return err
	}
	if err := c.Browser.ValidateLandingURL(); err != nil {
		return err
	}
	if c.Browser.TerminateGrace < 0 {
		return fmt.Errorf("%w: browser.terminate_grace must not be negative", ErrInvalidValue)
	}

	switch c.Store.Backend {
	case StoreBackendJSON, StoreBackendSQLite:
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalidBackend, c.Store.Backend)
	}

	switch c.Secrets.Backend {
	case SecretsBackendFile, SecretsBackendKeyring:
	default:
		return fmt.Errorf("%w: unknown secrets backend %q", ErrInvalidBackend, c.Secrets.Backend)
	}

	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidValue, c.Logging.Level)
	}
	if c.Logging.MaxSize < 0 {
		return fmt.Errorf("%w: logging.max_size must not be negative", ErrInvalidValue)
	}

	for i, seed := range c.Seed.Profiles {
		if strings.TrimSpace(seed.Name) == "" {
			return fmt.Errorf("%w: seed.profiles[%d] has no name", ErrInvalidValue, i)
		}
	}

	return nil
}

// FilePath returns the path where this config was loaded from.
func (c *Config) FilePath() string {
	return c.filePath
}
