package store

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"trade-gateway/internal/types"
)

type Config struct {
	Mode string `yaml:"mode"` // SIM or LIVE

	Feed struct {
		URL string `yaml:"url"`
	} `yaml:"feed"`

	Pool struct {
		Size                int `yaml:"size"`
		SlotCapacity        int `yaml:"slot_capacity"`
		OpenRetry           int `yaml:"open_retry"`
		OpenStaggerMs       int `yaml:"open_stagger_ms"`
		ResubscribeDelayMs  int `yaml:"resubscribe_delay_ms"`
		OpenBackoffBaseSecs int `yaml:"open_backoff_base_secs"`
	} `yaml:"pool"`

	Relogin struct {
		MaxRetry     int `yaml:"max_retry"`
		DelaySeconds int `yaml:"delay_seconds"`
	} `yaml:"relogin"`

	Dispatch struct {
		QueueSize int `yaml:"queue_size"`
	} `yaml:"dispatch"`

	ProbeSymbol    string   `yaml:"probe_symbol"`
	UniverseStatic []string `yaml:"universe_static"`
}

func (c *Config) Validate() error {
	if c.Mode != "SIM" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'SIM' or 'LIVE'", c.Mode)
	}
	if c.Mode == "LIVE" && c.Feed.URL == "" {
		return fmt.Errorf("feed.url is required in LIVE mode")
	}
	if c.Pool.Size < 1 || c.Pool.Size > 5 {
		return fmt.Errorf("pool.size must be between 1-5, got %d", c.Pool.Size)
	}
	if c.Pool.SlotCapacity <= 0 {
		return fmt.Errorf("pool.slot_capacity must be positive, got %d", c.Pool.SlotCapacity)
	}
	if c.Relogin.MaxRetry <= 0 {
		return fmt.Errorf("relogin.max_retry must be positive, got %d", c.Relogin.MaxRetry)
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = "SIM"
	}
	if c.Pool.Size == 0 {
		c.Pool.Size = 2
	}
	if c.Pool.SlotCapacity == 0 {
		c.Pool.SlotCapacity = 200
	}
	if c.Pool.OpenRetry == 0 {
		c.Pool.OpenRetry = 5
	}
	if c.Pool.OpenStaggerMs == 0 {
		c.Pool.OpenStaggerMs = 200
	}
	if c.Pool.ResubscribeDelayMs == 0 {
		c.Pool.ResubscribeDelayMs = 100
	}
	if c.Pool.OpenBackoffBaseSecs == 0 {
		c.Pool.OpenBackoffBaseSecs = 5
	}
	if c.Relogin.MaxRetry == 0 {
		c.Relogin.MaxRetry = 20
	}
	if c.Relogin.DelaySeconds == 0 {
		c.Relogin.DelaySeconds = 5
	}
	if c.Dispatch.QueueSize == 0 {
		c.Dispatch.QueueSize = 1024
	}
	if c.ProbeSymbol == "" {
		c.ProbeSymbol = "2330"
	}
}

// OpenStagger returns the delay between consecutive slot connects.
func (c *Config) OpenStagger() time.Duration {
	return time.Duration(c.Pool.OpenStaggerMs) * time.Millisecond
}

// ResubscribeDelay returns the spacing between replayed subscribe requests.
func (c *Config) ResubscribeDelay() time.Duration {
	return time.Duration(c.Pool.ResubscribeDelayMs) * time.Millisecond
}

// ReloginDelay returns the fixed wait between re-login attempts.
func (c *Config) ReloginDelay() time.Duration {
	return time.Duration(c.Relogin.DelaySeconds) * time.Second
}

// OpenBackoffBase returns the base wait for pool open retries.
func (c *Config) OpenBackoffBase() time.Duration {
	return time.Duration(c.Pool.OpenBackoffBaseSecs) * time.Second
}

// CredentialsFromEnv builds gateway credentials from environment variables.
// godotenv is loaded by the caller before this runs.
func CredentialsFromEnv() types.Credentials {
	return types.Credentials{
		ID:           os.Getenv("GATEWAY_ID"),
		Password:     os.Getenv("GATEWAY_PASSWORD"),
		CertPath:     os.Getenv("GATEWAY_CERT_PATH"),
		CertPassword: os.Getenv("GATEWAY_CERT_PASSWORD"),
		Address:      os.Getenv("GATEWAY_ADDRESS"),
		AccountNo:    os.Getenv("GATEWAY_ACCOUNT"),
	}
}
