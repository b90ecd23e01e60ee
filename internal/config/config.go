package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// EnvDatabaseURL overrides source.url
const EnvDatabaseURL = "SALESMETRICS_DB_URL"

// Config is the on-disk configuration
type Config struct {
	Source   SourceConfig    `toml:"source"`
	Tables   TablesConfig    `toml:"tables"`
	Report   ReportConfig    `toml:"report"`
	Variants []VariantConfig `toml:"variants"`
}

// SourceConfig locates the record source
type SourceConfig struct {
	URL    string `toml:"url"`
	Schema string `toml:"schema"`
}

// TablesConfig overrides physical table names; empty keeps the default
type TablesConfig struct {
	Category  string `toml:"category"`
	Customer  string `toml:"customer"`
	Employee  string `toml:"employee"`
	Product   string `toml:"product"`
	Shipper   string `toml:"shipper"`
	Order     string `toml:"order"`
	OrderLine string `toml:"order_line"`
}

// ReportConfig bounds the result tables
type ReportConfig struct {
	TopN       int `toml:"top_n"`
	TrendLimit int `toml:"trend_limit"`
	// Shards is the worker count; 0 means GOMAXPROCS
	Shards int `toml:"shards"`
}

// VariantConfig adds physical spellings for one canonical field
type VariantConfig struct {
	Entity     string   `toml:"entity"`
	Field      string   `toml:"field"`
	Candidates []string `toml:"candidates"`
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		Report: ReportConfig{
			TopN:       10,
			TrendLimit: 20,
		},
	}
}

// Load reads a TOML file over the defaults and applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv(EnvDatabaseURL); v != "" {
		cfg.Source.URL = v
	}

	return cfg, cfg.Validate()
}

// Parse decodes TOML into cfg
func Parse(data []byte, cfg *Config) error {
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// Validate rejects settings the engine cannot honor
func (c *Config) Validate() error {
	if c.Report.TopN < 0 {
		return fmt.Errorf("report.top_n must not be negative")
	}
	if c.Report.TrendLimit < 0 {
		return fmt.Errorf("report.trend_limit must not be negative")
	}
	if c.Report.Shards < 0 {
		return fmt.Errorf("report.shards must not be negative")
	}
	for i, v := range c.Variants {
		if v.Entity == "" || v.Field == "" || len(v.Candidates) == 0 {
			return fmt.Errorf("variants[%d]: entity, field and candidates are required", i)
		}
	}
	return nil
}
