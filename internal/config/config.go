package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "KEYQUERY"

type LookupConfig struct {
	BaseURL        string `yaml:"base_url" envconfig:"BASE_URL"`
	ShowBalance    bool   `yaml:"show_balance" envconfig:"SHOW_BALANCE"`
	ShowDetail     bool   `yaml:"show_detail" envconfig:"SHOW_DETAIL"`
	StrictToken    bool   `yaml:"strict_token" split_words:"true"`
	TimeoutSeconds int    `yaml:"timeout_seconds" split_words:"true"`
}

type DisplayConfig struct {
	QuotaPerUnit      float64 `yaml:"quota_per_unit" split_words:"true"`
	DisplayInCurrency bool    `yaml:"display_in_currency" split_words:"true"`
	QuotaDigits       int     `yaml:"quota_digits" split_words:"true"`
	Timezone          string  `yaml:"timezone"`
	PageSize          int     `yaml:"page_size" split_words:"true"`
}

type ExportConfig struct {
	Dir string `yaml:"dir"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path" split_words:"true"`
	Limit   int    `yaml:"limit"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr" split_words:"true"`
}

type Config struct {
	Lookup  LookupConfig  `yaml:"lookup" envconfig:"LOOKUP"`
	Display DisplayConfig `yaml:"display" envconfig:"DISPLAY"`
	Export  ExportConfig  `yaml:"export" envconfig:"EXPORT"`
	History HistoryConfig `yaml:"history" envconfig:"HISTORY"`
	Log     LogConfig     `yaml:"log" envconfig:"LOG"`
	Metrics MetricsConfig `yaml:"metrics" envconfig:"METRICS"`
}

func Default() *Config {
	dir := configDir()
	return &Config{
		Lookup: LookupConfig{
			BaseURL:        "http://localhost:3000",
			ShowBalance:    true,
			ShowDetail:     true,
			StrictToken:    true,
			TimeoutSeconds: 30,
		},
		Display: DisplayConfig{
			QuotaPerUnit:      500000,
			DisplayInCurrency: true,
			QuotaDigits:       6,
			PageSize:          10,
		},
		Export: ExportConfig{
			Dir: ".",
		},
		History: HistoryConfig{
			Enabled: false,
			DBPath:  filepath.Join(dir, "history.db"),
			Limit:   20,
		},
		Log: LogConfig{
			Level: "info",
			Path:  filepath.Join(dir, "keyquery.log"),
		},
	}
}

func configDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "keyquery")
}

func DefaultPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	return cfg, nil
}

// Validate checks settings that would make every lookup fail
func (c *Config) Validate() error {
	var errs []error
	if (c.Lookup.ShowBalance || c.Lookup.ShowDetail) && c.Lookup.BaseURL == "" {
		errs = append(errs, errors.New("lookup.base_url is required when show_balance or show_detail is enabled"))
	}
	if c.Display.QuotaPerUnit <= 0 {
		errs = append(errs, errors.New("display.quota_per_unit must be positive"))
	}
	if c.Display.Timezone != "" {
		if _, err := time.LoadLocation(c.Display.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("display.timezone: %w", err))
		}
	}
	if c.History.Enabled && c.History.DBPath == "" {
		errs = append(errs, errors.New("history.db_path is required when history is enabled"))
	}
	return errors.Join(errs...)
}

func (c *Config) Timeout() time.Duration {
	if c.Lookup.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Lookup.TimeoutSeconds) * time.Second
}

// Location returns the display timezone, the local zone when unset.
func (c *Config) Location() *time.Location {
	if c.Display.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Display.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) PageSize() int {
	if c.Display.PageSize <= 0 {
		return 10
	}
	return c.Display.PageSize
}

func (c *Config) HistoryLimit() int {
	if c.History.Limit <= 0 {
		return 20
	}
	return c.History.Limit
}
