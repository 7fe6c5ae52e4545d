package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.Browser.LandingURL != DefaultLandingURL {
		t.Errorf("expected LandingURL %q, got %q", DefaultLandingURL, cfg.Browser.LandingURL)
	}

	if cfg.Browser.TerminateGrace != 5*time.Second {
		t.Errorf("expected TerminateGrace %v, got %v", 5*time.Second, cfg.Browser.TerminateGrace)
	}

	if cfg.Store.Backend != StoreBackendJSON {
		t.Errorf("expected store backend json, got %q", cfg.Store.Backend)
	}

	if cfg.Secrets.Backend != SecretsBackendFile {
		t.Errorf("expected secrets backend file, got %q", cfg.Secrets.Backend)
	}

	if !cfg.Seed.Enabled || len(cfg.Seed.Profiles) != 3 {
		t.Errorf("expected 3 enabled seed profiles, got enabled=%v n=%d", cfg.Seed.Enabled, len(cfg.Seed.Profiles))
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoadNonExistent(t *testing.T) {
	t.Setenv(ConfigDirEnvVar, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Browser.LandingURL != DefaultLandingURL {
		t.Errorf("expected default landing url, got %q", cfg.Browser.LandingURL)
	}
}

func TestLoadAndSave(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.filePath = configFile
	cfg.Browser.LandingURL = "https://example.com/start"
	cfg.Browser.ExtraArgs = []string{"--lang=en"}
	cfg.Browser.TerminateGrace = 12 * time.Second
	cfg.Store.Backend = StoreBackendSQLite
	cfg.Seed.Profiles = []SeedProfile{{Name: "Work", Proxy: "10.0.0.1:3128:alice:secret"}}

	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	info, err := os.Stat(configFile)
	if err != nil {
		t.Fatalf("config file was not created: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600 permissions, got %o", info.Mode().Perm())
	}

	loaded, err := LoadFrom(configFile)
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}

	if loaded.Browser.LandingURL != "https://example.com/start" {
		t.Errorf("expected landing url to round-trip, got %q", loaded.Browser.LandingURL)
	}
	if loaded.Browser.TerminateGrace != 12*time.Second {
		t.Errorf("expected terminate grace 12s, got %v", loaded.Browser.TerminateGrace)
	}
	if len(loaded.Browser.ExtraArgs) != 1 || loaded.Browser.ExtraArgs[0] != "--lang=en" {
		t.Errorf("unexpected extra args: %v", loaded.Browser.ExtraArgs)
	}
	if loaded.Store.Backend != StoreBackendSQLite {
		t.Errorf("expected sqlite backend, got %q", loaded.Store.Backend)
	}
	if len(loaded.Seed.Profiles) != 1 || loaded.Seed.Profiles[0].Name != "Work" {
		t.Errorf("unexpected seeds: %+v", loaded.Seed.Profiles)
	}
	if loaded.FilePath() != configFile {
		t.Errorf("expected FilePath %q, got %q", configFile, loaded.FilePath())
	}
}

func TestLoadFromYAML(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	data := `browser:
  path: chromium
  terminate_grace: 2s
store:
  backend: sqlite
logging:
  level: debug
  json: true
seed:
  enabled: false
`
	if err := os.WriteFile(configFile, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(configFile)
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}

	if cfg.Browser.Path != "chromium" {
		t.Errorf("expected browser path chromium, got %q", cfg.Browser.Path)
	}
	if cfg.Browser.TerminateGrace != 2*time.Second {
		t.Errorf("expected 2s grace, got %v", cfg.Browser.TerminateGrace)
	}
	// Unset keys keep their defaults.
	if cfg.Browser.LandingURL != DefaultLandingURL {
		t.Errorf("expected default landing url, got %q", cfg.Browser.LandingURL)
	}
	if cfg.Secrets.Backend != SecretsBackendFile {
		t.Errorf("expected default secrets backend, got %q", cfg.Secrets.Backend)
	}
	if !cfg.Logging.JSON || cfg.Logging.Level != "debug" {
		t.Errorf("unexpected logging config: %+v", cfg.Logging)
	}
	if cfg.Seed.Enabled {
		t.Error("expected seeding to be disabled")
	}
}

func TestLoadFromInvalidYAML(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte("browser: [unterminated"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFrom(configFile); err == nil {
		t.Error("LoadFrom() should fail for malformed YAML")
	}
}

func TestSaveWithoutPath(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Save(); err == nil {
		t.Error("Save() should fail without a file path")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("DABROWSER_BROWSER_PATH", "/opt/chrome/chrome")
	t.Setenv("DABROWSER_LANDING_URL", "https://example.org")
	t.Setenv("DABROWSER_TERMINATE_GRACE", "750ms")
	t.Setenv("DABROWSER_STORE_BACKEND", "sqlite")
	t.Setenv("DABROWSER_SECRETS_BACKEND", "keyring")
	t.Setenv("DABROWSER_LOG_LEVEL", "warn")
	t.Setenv("DABROWSER_LOG_JSON", "true")
	t.Setenv("DABROWSER_SEED", "false")

	cfg := Default()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv() failed: %v", err)
	}

	if cfg.Browser.Path != "/opt/chrome/chrome" {
		t.Errorf("browser path not overridden: %q", cfg.Browser.Path)
	}
	if cfg.Browser.LandingURL != "https://example.org" {
		t.Errorf("landing url not overridden: %q", cfg.Browser.LandingURL)
	}
	if cfg.Browser.TerminateGrace != 750*time.Millisecond {
		t.Errorf("terminate grace not overridden: %v", cfg.Browser.TerminateGrace)
	}
	if cfg.Store.Backend != StoreBackendSQLite {
		t.Errorf("store backend not overridden: %q", cfg.Store.Backend)
	}
	if cfg.Secrets.Backend != SecretsBackendKeyring {
		t.Errorf("secrets backend not overridden: %q", cfg.Secrets.Backend)
	}
	if cfg.Logging.Level != "warn" || !cfg.Logging.JSON {
		t.Errorf("logging not overridden: %+v", cfg.Logging)
	}
	if cfg.Seed.Enabled {
		t.Error("seed should be disabled by env")
	}
	// Untouched settings keep their values.
	if cfg.Notifications.OnSessionEnd != true {
		t.Error("notification defaults should be preserved")
	}
}

func TestApplyEnvInvalid(t *testing.T) {
	t.Setenv("DABROWSER_TERMINATE_GRACE", "soon")

	cfg := Default()
	err := cfg.ApplyEnv()
	if !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue, got %v", err)
	}
}

func TestStorePath(t *testing.T) {
	paths := Paths{DataDir: filepath.Join("data", "dir")}

	tests := []struct {
		name     string
		store    StoreConfig
		expected string
	}{
		{"json default", StoreConfig{Backend: StoreBackendJSON}, filepath.Join("data", "dir", ProfilesFileName)},
		{"sqlite default", StoreConfig{Backend: StoreBackendSQLite}, filepath.Join("data", "dir", ProfilesDBName)},
		{"explicit path", StoreConfig{Backend: StoreBackendSQLite, Path: "/srv/p.db"}, "/srv/p.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Store: tt.store}
			if got := cfg.StorePath(paths); got != tt.expected {
				t.Errorf("StorePath() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "unknown store backend",
			mutate:  func(c *Config) { c.Store.Backend = "postgres" },
			wantErr: ErrInvalidBackend,
		},
		{
			name:    "unknown secrets backend",
			mutate:  func(c *Config) { c.Secrets.Backend = "vault" },
			wantErr: ErrInvalidBackend,
		},
		{
			name:    "landing url without scheme",
			mutate:  func(c *Config) { c.Browser.LandingURL = "example.com" },
			wantErr: ErrInvalidLandingURL,
		},
		{
			name:    "landing url with ftp scheme",
			mutate:  func(c *Config) { c.Browser.LandingURL = "ftp://example.com" },
			wantErr: ErrInvalidLandingURL,
		},
		{
			name:    "negative grace",
			mutate:  func(c *Config) { c.Browser.TerminateGrace = -time.Second },
			wantErr: ErrInvalidValue,
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: ErrInvalidValue,
		},
		{
			name:    "unnamed seed",
			mutate:  func(c *Config) { c.Seed.Profiles = []SeedProfile{{Name: " ", Proxy: "1.2.3.4:80"}} },
			wantErr: ErrInvalidValue,
		},
		{
			name:    "relative browser path",
			mutate:  func(c *Config) { c.Browser.Path = "bin/chrome" },
			wantErr: ErrInvalidBrowserPath,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, expected %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tmpDir := t.TempDir()

	executable := filepath.Join(tmpDir, "chrome")
	if err := os.WriteFile(executable, []byte("#!/bin/sh\n"), 0700); err != nil {
		t.Fatal(err)
	}
	notExecutable := filepath.Join(tmpDir, "readme")
	if err := os.WriteFile(notExecutable, []byte("text"), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		path     string
		wantErr  bool
		unixOnly bool
	}{
		{name: "empty uses discovery", path: ""},
		{name: "bare name uses PATH", path: "chromium"},
		{name: "absolute executable", path: executable},
		{name: "relative path", path: filepath.Join("bin", "chrome"), wantErr: true},
		{name: "missing file", path: filepath.Join(tmpDir, "missing"), wantErr: true},
		{name: "directory", path: tmpDir, wantErr: true},
		{name: "traversal", path: tmpDir + string(filepath.Separator) + ".." + string(filepath.Separator) + "chrome", wantErr: true},
		{name: "not executable", path: notExecutable, wantErr: true, unixOnly: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.unixOnly && runtime.GOOS == "windows" {
				t.Skip("execute bits do not apply on Windows")
			}
			b := BrowserConfig{Path: tt.path}
			err := b.ValidatePath()
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidBrowserPath) {
				t.Errorf("expected ErrInvalidBrowserPath, got %v", err)
			}
		})
	}
}
