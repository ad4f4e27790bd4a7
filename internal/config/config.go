// Package config provides YAML-based configuration loading for correspond.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level correspond configuration, loaded from
// correspond.yaml.
type Config struct {
	DefaultCountry string         `yaml:"default_country"`
	HTTP           HTTPConfig     `yaml:"http"`
	Database       DatabaseConfig `yaml:"database"`
	Provider       ProviderConfig `yaml:"provider"`
	Broker         BrokerConfig   `yaml:"broker"`
	Sweep          SweepConfig    `yaml:"sweep"`
}

// HTTPConfig holds settings for the API/webhook server.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// DatabaseConfig holds connection settings for the MySQL database.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// ProviderConfig selects and configures the SMS provider gateway.
type ProviderConfig struct {
	Backend string `yaml:"backend"` // "noop" or "nexmo"
	Account string `yaml:"account"`
	Token   string `yaml:"token"`
}

// BrokerConfig holds the AMQP broker settings for the delivery outbox.
type BrokerConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
	Queue    string `yaml:"queue"`
}

// SweepConfig drives the message-part sweeper in the worker.
type SweepConfig struct {
	Cron         string `yaml:"cron"`           // 5-field cron expression
	RetentionHrs int    `yaml:"retention_hours"` // unlinked parts older than this are purged
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.DefaultCountry == "" {
		c.DefaultCountry = "FR"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.User == "" {
		c.Database.User = "correspond"
	}
	if c.Database.Name == "" {
		c.Database.Name = "correspond"
	}
	if c.Provider.Backend == "" {
		c.Provider.Backend = "noop"
	}
	if c.Broker.Exchange == "" {
		c.Broker.Exchange = "correspond"
	}
	if c.Broker.Queue == "" {
		c.Broker.Queue = "correspond.deliveries"
	}
	if c.Sweep.Cron == "" {
		c.Sweep.Cron = "0 * * * *"
	}
	if c.Sweep.RetentionHrs == 0 {
		c.Sweep.RetentionHrs = 48
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Provider.Backend {
	case "noop":
	case "nexmo":
		if c.Provider.Account == "" {
			errs = append(errs, "provider.account is required for the nexmo backend")
		}
		if c.Provider.Token == "" {
			errs = append(errs, "provider.token is required for the nexmo backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("provider.backend %q is not supported", c.Provider.Backend))
	}
	if len(c.DefaultCountry) != 2 {
		errs = append(errs, "default_country must be a two-letter country code")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
