package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level duesbook.yaml configuration.
type Config struct {
	Organization OrganizationConfig `yaml:"organization"`
	Fees         FeesConfig         `yaml:"fees"`
	Reconcile    ReconcileConfig    `yaml:"reconcile"`
	Database     DatabaseConfig     `yaml:"database"`
	LogLevel     string             `yaml:"log_level"`
}

// OrganizationConfig identifies the club or association.
type OrganizationConfig struct {
	Name     string `yaml:"name"`
	Currency string `yaml:"currency"`
}

// FeesConfig holds the fee accrual policy.
type FeesConfig struct {
	// IntervalUnit is what one fee interval step means: "months" or
	// "days".
	IntervalUnit string `yaml:"interval_unit"`
}

// ReconcileConfig tunes batch reconciliation runs.
type ReconcileConfig struct {
	Workers int `yaml:"workers"`
	Retries int `yaml:"retries"`
}

// DatabaseConfig locates the persistence store. The DATABASE_URL
// environment variable overrides URL when set.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// Load reads a duesbook.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// DatabaseURL returns the effective database URL.
func (c *Config) DatabaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return c.Database.URL
}

// Default returns a Config with sensible defaults for a new project.
func Default(name string) *Config {
	return &Config{
		Organization: OrganizationConfig{
			Name:     name,
			Currency: "EUR",
		},
		Fees: FeesConfig{
			IntervalUnit: "months",
		},
		Reconcile: ReconcileConfig{
			Workers: 4,
			Retries: 3,
		},
		LogLevel: "info",
	}
}
