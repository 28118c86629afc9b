// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Basecamp BasecampConfig `mapstructure:"basecamp" yaml:"basecamp"`
	Sheets   SheetsConfig   `mapstructure:"sheets" yaml:"sheets"`
	Sync     SyncConfig     `mapstructure:"sync" yaml:"sync"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// BasecampConfig contains the task API connection settings.
type BasecampConfig struct {
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`         // https://3.basecampapi.com
	AccountID   string        `mapstructure:"account_id" yaml:"account_id"`     // numeric account id
	ProjectID   string        `mapstructure:"project_id" yaml:"project_id"`     // project holding the todoset
	AccessToken string        `mapstructure:"access_token" yaml:"access_token"` // bearer token
	UserAgent   string        `mapstructure:"user_agent" yaml:"user_agent"`     // required by the API
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`           // per-request bound
}

// SheetsConfig contains the spreadsheet API connection settings.
type SheetsConfig struct {
	BaseURL                   string        `mapstructure:"base_url" yaml:"base_url"`
	AccessToken               string        `mapstructure:"access_token" yaml:"access_token"`
	TodosSpreadsheetID        string        `mapstructure:"todos_spreadsheet_id" yaml:"todos_spreadsheet_id"`
	AvailabilitySpreadsheetID string        `mapstructure:"availability_spreadsheet_id" yaml:"availability_spreadsheet_id"`
	PlanningSpreadsheetID     string        `mapstructure:"planning_spreadsheet_id" yaml:"planning_spreadsheet_id"`
	Timeout                   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Mapping binds one Basecamp todolist name to one destination spreadsheet tab.
type Mapping struct {
	Group string `mapstructure:"group" yaml:"group"` // Basecamp todolist title
	Tab   string `mapstructure:"tab" yaml:"tab"`     // destination tab name
}

// SyncConfig contains synchronization settings, including the static
// group-to-tab mapping table. Mapping changes require a restart; there is
// deliberately no runtime API for editing them.
type SyncConfig struct {
	Interval       time.Duration `mapstructure:"interval" yaml:"interval"`                 // time between scheduled runs
	PollInterval   time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`       // scheduler wake-up period
	AutoCreateTabs bool          `mapstructure:"auto_create_tabs" yaml:"auto_create_tabs"` // create missing destination tabs
	MaxRows        int           `mapstructure:"max_rows" yaml:"max_rows"`                 // data rows per tab (A2:E{MaxRows+1})
	Mappings       []Mapping     `mapstructure:"mappings" yaml:"mappings"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format"` // text, json
	File       string `mapstructure:"file" yaml:"file"`     // empty = stderr
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Basecamp: BasecampConfig{
			BaseURL:   "https://3.basecampapi.com",
			UserAgent: "boardsync (ops@boardsync.example)",
			Timeout:   30 * time.Second,
		},
		Sheets: SheetsConfig{
			BaseURL: "https://sheets.googleapis.com/v4",
			Timeout: 30 * time.Second,
		},
		Sync: SyncConfig{
			Interval:       time.Hour,
			PollInterval:   60 * time.Second,
			AutoCreateTabs: true,
			MaxRows:        499,
			Mappings: []Mapping{
				{Group: "Marketing, Communication, RP", Tab: "Marketing Communication RP"},
				{Group: "IT", Tab: "IT"},
				{Group: "Money", Tab: "Money"},
				{Group: "Administration / Management", Tab: "Administration-Management"},
				{Group: "Product", Tab: "Product"},
				{Group: "Operations", Tab: "Operations"},
				{Group: "Commercial", Tab: "Commercial"},
				{Group: "Partnerships", Tab: "Partnerships"},
				{Group: "Design & Branding", Tab: "Design & Branding"},
				{Group: "Investors", Tab: "Investors"},
				{Group: "Contractors", Tab: "Contractors"},
				{Group: "Human Capital", Tab: "Human Capital"},
				{Group: "Human Capital - Interns", Tab: "Human Capital - Interns"},
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  20,
			MaxBackups: 5,
		},
	}
}

// DefaultConfigPath returns the conventional config location under root.
func DefaultConfigPath(root string) string {
	return filepath.Join(root, ".boardsync", "config.yaml")
}

// Load loads configuration from file, falling back to defaults.
// It returns the config together with non-fatal warnings.
func Load(path string) (*Config, []string, error) {
	cfg := DefaultConfig()
	warnings := []string{}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		warnings = append(warnings, "no config file found, using defaults")
		return cfg, warnings, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply defaults for missing values
	if cfg.Sync.Interval == 0 {
		cfg.Sync.Interval = time.Hour
		warnings = append(warnings, "using default sync interval: 1h")
	}
	if cfg.Sync.PollInterval == 0 {
		cfg.Sync.PollInterval = 60 * time.Second
	}
	if cfg.Sync.MaxRows == 0 {
		cfg.Sync.MaxRows = 499
	}
	if cfg.Basecamp.BaseURL == "" {
		cfg.Basecamp.BaseURL = "https://3.basecampapi.com"
	}
	if cfg.Basecamp.Timeout == 0 {
		cfg.Basecamp.Timeout = 30 * time.Second
	}
	if cfg.Sheets.BaseURL == "" {
		cfg.Sheets.BaseURL = "https://sheets.googleapis.com/v4"
	}
	if cfg.Sheets.Timeout == 0 {
		cfg.Sheets.Timeout = 30 * time.Second
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if len(cfg.Sync.Mappings) == 0 {
		warnings = append(warnings, "no sync mappings configured, nothing will be synchronized")
	}

	return cfg, warnings, nil
}

// Save saves configuration to file.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", cfg.Server)
	v.Set("basecamp", cfg.Basecamp)
	v.Set("sheets", cfg.Sheets)
	v.Set("sync", cfg.Sync)
	v.Set("logging", cfg.Logging)

	return v.WriteConfig()
}

// Validate validates the configuration.
func Validate(cfg *Config) []error {
	var errs []error

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d", cfg.Server.Port))
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "": true,
	}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, fmt.Errorf("invalid log level: %s", cfg.Logging.Level))
	}

	validFormats := map[string]bool{
		"text": true, "json": true, "": true,
	}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, fmt.Errorf("invalid log format: %s (valid: text, json)", cfg.Logging.Format))
	}

	if cfg.Sync.Interval < time.Minute {
		errs = append(errs, fmt.Errorf("sync interval %s too short (minimum 1m)", cfg.Sync.Interval))
	}
	if cfg.Sync.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("sync poll interval must be positive"))
	}
	if cfg.Sync.MaxRows <= 0 {
		errs = append(errs, fmt.Errorf("sync max_rows must be positive"))
	}

	seen := make(map[string]string, len(cfg.Sync.Mappings))
	for _, m := range cfg.Sync.Mappings {
		if m.Group == "" || m.Tab == "" {
			errs = append(errs, fmt.Errorf("mapping entries need both group and tab (got group=%q tab=%q)", m.Group, m.Tab))
			continue
		}
		if prev, ok := seen[m.Group]; ok {
			errs = append(errs, fmt.Errorf("duplicate mapping for group %q (tabs %q and %q)", m.Group, prev, m.Tab))
		}
		seen[m.Group] = m.Tab
	}

	return errs
}

// TabFor returns the destination tab mapped to a Basecamp group name.
func (c *SyncConfig) TabFor(group string) (string, bool) {
	for _, m := range c.Mappings {
		if m.Group == group {
			return m.Tab, true
		}
	}
	return "", false
}

// Groups returns the mapped group names in mapping order.
func (c *SyncConfig) Groups() []string {
	groups := make([]string, 0, len(c.Mappings))
	for _, m := range c.Mappings {
		groups = append(groups, m.Group)
	}
	return groups
}
