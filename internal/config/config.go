package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models courtline.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Auth struct {
		// Secret for signed service tokens used by automation clients.
		ServiceTokenSecret string `yaml:"service_token_secret"`
	} `yaml:"auth"`
	Session struct {
		IdleTimeout  string `yaml:"idle_timeout"`
		PollInterval string `yaml:"poll_interval"`
	} `yaml:"session"`
	Courtship struct {
		PacingWindow string `yaml:"pacing_window"`
	} `yaml:"courtship"`
	Pagination struct {
		PerPage int `yaml:"per_page"`
	} `yaml:"pagination"`
}

const (
	defaultIdleTimeout  = 10 * time.Minute
	defaultPollInterval = time.Minute
	defaultPacingWindow = 7 * 24 * time.Hour
	defaultPerPage      = 20
)

// IdleTimeout returns the session idle threshold.
func (c *Config) IdleTimeout() time.Duration {
	return durationOr(c.Session.IdleTimeout, defaultIdleTimeout)
}

// PollInterval returns how often the inactivity monitor sweeps sessions.
func (c *Config) PollInterval() time.Duration {
	return durationOr(c.Session.PollInterval, defaultPollInterval)
}

// PacingWindow returns the courtship one-topic-per-window duration.
func (c *Config) PacingWindow() time.Duration {
	return durationOr(c.Courtship.PacingWindow, defaultPacingWindow)
}

// PerPage returns the default page size for list endpoints.
func (c *Config) PerPage() int {
	if c.Pagination.PerPage > 0 {
		return c.Pagination.PerPage
	}
	return defaultPerPage
}

func durationOr(v string, fallback time.Duration) time.Duration {
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	for name, v := range map[string]string{
		"session.idle_timeout":    c.Session.IdleTimeout,
		"session.poll_interval":   c.Session.PollInterval,
		"courtship.pacing_window": c.Courtship.PacingWindow,
	} {
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config.%s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("config.%s must be positive", name)
		}
	}
	if c.Pagination.PerPage < 0 {
		return fmt.Errorf("config.pagination.per_page must not be negative")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "courtline.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `server:
  addr: :8080
  base_path: /v1

auth:
  service_token_secret: ""

session:
  idle_timeout: 10m
  poll_interval: 1m

courtship:
  pacing_window: 168h

pagination:
  per_page: 20
`
