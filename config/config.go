// Package config loads the service configuration.
//
// Values come from, in increasing priority:
//  1. built-in defaults
//  2. a YAML file at $RECON_CONFIG, or ./recon.yaml when present
//  3. environment variables (APP_ENV, API_PORT, FRONTEND_ORIGIN, LOG_LEVEL,
//     DATABASE_PATH, CT_LOG_URL)
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"go-recon/client"
	ct "go-recon/ct-client"
	web "go-recon/web-prober"
	"gopkg.in/yaml.v3"
)

// DefaultPath is looked up when $RECON_CONFIG is unset.
const DefaultPath = "recon.yaml"

// Config is the full service configuration.
type Config struct {
	AppEnv         string `yaml:"app_env"`
	APIPort        int    `yaml:"api_port"`
	FrontendOrigin string `yaml:"frontend_origin"`
	LogLevel       string `yaml:"log_level"`
	DatabasePath   string `yaml:"database_path"`

	CTLog ct.Config   `yaml:"ct_log"`
	Probe ProbeConfig `yaml:"probe"`
	Jobs  JobsConfig  `yaml:"jobs"`
}

// ProbeConfig configures the liveness prober and its connection pool.
type ProbeConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int           `yaml:"concurrency"`
	Pool        client.Config `yaml:"pool"`
}

// JobsConfig configures the asynchronous scan queue.
type JobsConfig struct {
	MaxConcurrent int           `yaml:"max_concurrent"`
	TTL           time.Duration `yaml:"ttl"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		AppEnv:         "development",
		APIPort:        8000,
		FrontendOrigin: "*",
		LogLevel:       "info",
		DatabasePath:   "recon.db",
		CTLog: ct.Config{
			BaseURL: ct.DefaultBaseURL,
			Timeout: ct.DefaultTimeout,
		},
		Probe: ProbeConfig{
			Timeout:     web.DefaultTimeout,
			Concurrency: 50,
			Pool:        client.DefaultConfig(),
		},
		Jobs: JobsConfig{
			MaxConcurrent: 4,
			TTL:           time.Hour,
		},
	}
}

// Load reads the config file if one exists and applies the environment.
func Load() (*Config, error) {
	path := os.Getenv("RECON_CONFIG")
	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}

	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("APP_ENV"); v != "" {
		c.AppEnv = v
	}
	if v := os.Getenv("API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("API_PORT: %w", err)
		}
		c.APIPort = port
	}
	if v := os.Getenv("FRONTEND_ORIGIN"); v != "" {
		c.FrontendOrigin = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv("CT_LOG_URL"); v != "" {
		c.CTLog.BaseURL = v
	}
	return nil
}

// applyDefaults fills in values a partial file left empty.
func (c *Config) applyDefaults() {
	d := Default()
	if c.APIPort == 0 {
		c.APIPort = d.APIPort
	}
	if c.FrontendOrigin == "" {
		c.FrontendOrigin = d.FrontendOrigin
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.Probe.Timeout <= 0 {
		c.Probe.Timeout = d.Probe.Timeout
	}
	if c.Probe.Concurrency <= 0 {
		c.Probe.Concurrency = d.Probe.Concurrency
	}
	if c.Jobs.MaxConcurrent <= 0 {
		c.Jobs.MaxConcurrent = d.Jobs.MaxConcurrent
	}
	if c.Jobs.TTL <= 0 {
		c.Jobs.TTL = d.Jobs.TTL
	}
}

// Validate reports settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("api_port %d out of range", c.APIPort))
	}
	if c.Probe.Concurrency > 50 {
		errs = append(errs, fmt.Errorf("probe.concurrency %d above 50", c.Probe.Concurrency))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
