package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the collector
type Config struct {
	API       APIConfig       `yaml:"api" json:"api"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Crawl     CrawlConfig     `yaml:"crawl" json:"crawl"`
	Database  DatabaseConfig  `yaml:"database" json:"database"`
	Export    ExportConfig    `yaml:"export" json:"export"`
	Search    SearchConfig    `yaml:"search" json:"search"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// APIConfig describes the social API and the static credential sent with every request
type APIConfig struct {
	BaseURL      string        `yaml:"base_url" json:"base_url"`
	APIKey       string        `yaml:"api_key" json:"api_key"`
	APIKeyHeader string        `yaml:"api_key_header" json:"api_key_header"`
	PageSize     int           `yaml:"page_size" json:"page_size"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent    string        `yaml:"user_agent" json:"user_agent"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// RequestDelay is the minimum interval between two outbound requests
	RequestDelay time.Duration `yaml:"request_delay" json:"request_delay"`
	// MaxRetries applies to transport failures only; 0 disables retries
	MaxRetries int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// CrawlConfig controls the ingestion orchestrator
type CrawlConfig struct {
	MaxPagesPerUser int    `yaml:"max_pages_per_user" json:"max_pages_per_user"`
	UsersFile       string `yaml:"users_file" json:"users_file"`
	// RefreshExisting makes the followings batch overwrite profiles that are already stored
	RefreshExisting       bool   `yaml:"refresh_existing" json:"refresh_existing"`
	PinnedPostURLTemplate string `yaml:"pinned_post_url_template" json:"pinned_post_url_template"`
}

// DatabaseConfig holds SQLite settings
type DatabaseConfig struct {
	Path        string `yaml:"path" json:"path"`
	BusyTimeout int    `yaml:"busy_timeout" json:"busy_timeout"`
}

// ExportConfig holds flat-file export settings
type ExportConfig struct {
	OutputDir   string `yaml:"output_dir" json:"output_dir"`
	NextGenFile string `yaml:"next_gen_file" json:"next_gen_file"`
	AIUsersFile string `yaml:"ai_users_file" json:"ai_users_file"`
}

// SearchConfig holds the bio search index location
type SearchConfig struct {
	IndexPath string `yaml:"index_path" json:"index_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			APIKeyHeader: "X-API-Key",
			PageSize:     200,
			Timeout:      30 * time.Second,
			UserAgent:    "twscraper/1.0",
		},
		RateLimit: RateLimitConfig{
			RequestDelay: time.Second,
			MaxRetries:   0,
			RetryDelay:   2 * time.Second,
		},
		Crawl: CrawlConfig{
			MaxPagesPerUser:       10,
			UsersFile:             "users.txt",
			RefreshExisting:       false,
			PinnedPostURLTemplate: "https://twitter.com/i/web/status/{tweet_id}",
		},
		Database: DatabaseConfig{
			Path:        "social_data.db",
			BusyTimeout: 10000,
		},
		Export: ExportConfig{
			OutputDir:   "twitterdata",
			NextGenFile: "next_gen.txt",
			AIUsersFile: "ai_users_export.txt",
		},
		Search: SearchConfig{
			IndexPath: "social_data.bleve",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	// Legacy names first so the prefixed ones win
	if v := os.Getenv("API_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("API_TOKEN"); v != "" {
		c.API.APIKey = v
	}
	if v := os.Getenv("TWSCRAPER_API_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("TWSCRAPER_API_KEY"); v != "" {
		c.API.APIKey = v
	}
	if v := os.Getenv("TWSCRAPER_API_KEY_HEADER"); v != "" {
		c.API.APIKeyHeader = v
	}

	var errs []error
	if v := os.Getenv("TWSCRAPER_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("TWSCRAPER_PAGE_SIZE: %w", err))
		} else {
			c.API.PageSize = n
		}
	}
	if v := os.Getenv("TWSCRAPER_REQUEST_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("TWSCRAPER_REQUEST_DELAY: %w", err))
		} else {
			c.RateLimit.RequestDelay = d
		}
	}
	if v := os.Getenv("TWSCRAPER_MAX_PAGES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("TWSCRAPER_MAX_PAGES: %w", err))
		} else {
			c.Crawl.MaxPagesPerUser = n
		}
	}
	if v := os.Getenv("TWSCRAPER_REFRESH_EXISTING"); v != "" {
		c.Crawl.RefreshExisting = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("TWSCRAPER_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("TWSCRAPER_OUTPUT_DIR"); v != "" {
		c.Export.OutputDir = v
	}
	if v := os.Getenv("TWSCRAPER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".twscraper.yaml",
		".twscraper.yml",
		filepath.Join(home, ".config", "twscraper", "config.yaml"),
		filepath.Join(home, ".twscraper.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks settings every command depends on
func (c *Config) Validate() error {
	var errs []error

	if c.API.PageSize <= 0 {
		errs = append(errs, errors.New("page size must be positive"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api timeout must be positive"))
	}
	if c.RateLimit.RequestDelay < 0 {
		errs = append(errs, errors.New("request delay cannot be negative"))
	}
	if c.RateLimit.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.Crawl.MaxPagesPerUser < 0 {
		errs = append(errs, errors.New("max pages per user cannot be negative"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.Export.OutputDir == "" {
		errs = append(errs, errors.New("export output directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// ValidateAPI checks the settings needed to talk to the social API
func (c *Config) ValidateAPI() error {
	var errs []error
	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api base url is required"))
	} else if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		errs = append(errs, errors.New("api base url must start with http:// or https://"))
	}
	if c.API.APIKey == "" {
		errs = append(errs, errors.New("api key is required"))
	}
	if c.API.APIKeyHeader == "" {
		errs = append(errs, errors.New("api key header is required"))
	}
	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["base-url"].(string); ok && v != "" {
		c.API.BaseURL = v
	}
	if v, ok := flags["api-key"].(string); ok && v != "" {
		c.API.APIKey = v
	}
	if v, ok := flags["db"].(string); ok && v != "" {
		c.Database.Path = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Export.OutputDir = v
	}
	if v, ok := flags["max-pages"].(int); ok && v >= 0 {
		c.Crawl.MaxPagesPerUser = v
	}
	if v, ok := flags["request-delay"].(time.Duration); ok && v >= 0 {
		c.RateLimit.RequestDelay = v
	}
	if v, ok := flags["refresh-existing"].(bool); ok {
		c.Crawl.RefreshExisting = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".twscraper.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Masked returns a copy with the credential hidden, for display
func (c *Config) Masked() *Config {
	cp := *c
	if cp.API.APIKey != "" {
		if len(cp.API.APIKey) <= 8 {
			cp.API.APIKey = "********"
		} else {
			cp.API.APIKey = cp.API.APIKey[:4] + "..." + cp.API.APIKey[len(cp.API.APIKey)-4:]
		}
	}
	return &cp
}
