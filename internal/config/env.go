package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "DABROWSER"

// envOverrides mirrors the settings that can be changed from the environment.
// Pointer fields stay nil when the variable is unset.
type envOverrides struct {
	BrowserPath    string         `envconfig:"BROWSER_PATH"`
	LandingURL     string         `envconfig:"LANDING_URL"`
	NoSandbox      *bool          `envconfig:"NO_SANDBOX"`
	TerminateGrace *time.Duration `envconfig:"TERMINATE_GRACE"`

	StoreBackend   string `envconfig:"STORE_BACKEND"`
	StorePath      string `envconfig:"STORE_PATH"`
	SecretsBackend string `envconfig:"SECRETS_BACKEND"`

	LogLevel string `envconfig:"LOG_LEVEL"`
	LogJSON  *bool  `envconfig:"LOG_JSON"`
	LogFile  string `envconfig:"LOG_FILE"`

	Notifications *bool `envconfig:"NOTIFICATIONS"`
	Seed          *bool `envconfig:"SEED"`
}

// ApplyEnv overlays DABROWSER_* environment variables on the configuration.
func (c *Config) ApplyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	if env.BrowserPath != "" {
		c.Browser.Path = env.BrowserPath
	}
	if env.LandingURL != "" {
		c.Browser.LandingURL = env.LandingURL
	}
	if env.NoSandbox != nil {
		c.Browser.NoSandbox = *env.NoSandbox
	}
	if env.TerminateGrace != nil {
		c.Browser.TerminateGrace = *env.TerminateGrace
	}
	if env.StoreBackend != "" {
		c.Store.Backend = StoreBackend(env.StoreBackend)
	}
	if env.StorePath != "" {
		c.Store.Path = env.StorePath
	}
	if env.SecretsBackend != "" {
		c.Secrets.Backend = SecretsBackend(env.SecretsBackend)
	}
	if env.LogLevel != "" {
		c.Logging.Level = env.LogLevel
	}
	if env.LogJSON != nil {
		c.Logging.JSON = *env.LogJSON
	}
	if env.LogFile != "" {
		c.Logging.File = env.LogFile
	}
	if env.Notifications != nil {
		c.Notifications.Enabled = *env.Notifications
	}
	if env.Seed != nil {
		c.Seed.Enabled = *env.Seed
	}

	return nil
}
