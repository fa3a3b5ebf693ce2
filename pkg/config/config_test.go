package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"API_BASE_URL", "API_TOKEN",
		"TWSCRAPER_API_BASE_URL", "TWSCRAPER_API_KEY", "TWSCRAPER_API_KEY_HEADER",
		"TWSCRAPER_PAGE_SIZE", "TWSCRAPER_REQUEST_DELAY", "TWSCRAPER_MAX_PAGES",
		"TWSCRAPER_REFRESH_EXISTING", "TWSCRAPER_DB_PATH", "TWSCRAPER_OUTPUT_DIR",
		"TWSCRAPER_LOG_LEVEL",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.API.PageSize != 200 {
		t.Errorf("Expected default page size to be 200, got %d", config.API.PageSize)
	}
	if config.RateLimit.RequestDelay != time.Second {
		t.Errorf("Expected default request delay to be 1s, got %s", config.RateLimit.RequestDelay)
	}
	if config.Crawl.MaxPagesPerUser != 10 {
		t.Errorf("Expected default max pages to be 10, got %d", config.Crawl.MaxPagesPerUser)
	}
	if config.API.APIKeyHeader != "X-API-Key" {
		t.Errorf("Expected default key header to be X-API-Key, got %s", config.API.APIKeyHeader)
	}
	if config.Database.Path != "social_data.db" {
		t.Errorf("Expected default database path to be social_data.db, got %s", config.Database.Path)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_BASE_URL", "http://legacy.example")
	t.Setenv("API_TOKEN", "legacy-token")
	t.Setenv("TWSCRAPER_API_BASE_URL", "http://api.example")
	t.Setenv("TWSCRAPER_PAGE_SIZE", "50")
	t.Setenv("TWSCRAPER_REQUEST_DELAY", "250ms")
	t.Setenv("TWSCRAPER_MAX_PAGES", "3")
	t.Setenv("TWSCRAPER_REFRESH_EXISTING", "true")
	t.Setenv("TWSCRAPER_LOG_LEVEL", "debug")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.API.BaseURL != "http://api.example" {
		t.Errorf("Expected prefixed base url to win, got %s", config.API.BaseURL)
	}
	if config.API.APIKey != "legacy-token" {
		t.Errorf("Expected legacy token to be used, got %s", config.API.APIKey)
	}
	if config.API.PageSize != 50 {
		t.Errorf("Expected page size 50, got %d", config.API.PageSize)
	}
	if config.RateLimit.RequestDelay != 250*time.Millisecond {
		t.Errorf("Expected request delay 250ms, got %s", config.RateLimit.RequestDelay)
	}
	if config.Crawl.MaxPagesPerUser != 3 {
		t.Errorf("Expected max pages 3, got %d", config.Crawl.MaxPagesPerUser)
	}
	if !config.Crawl.RefreshExisting {
		t.Error("Expected refresh existing to be enabled")
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", config.Logging.Level)
	}
}

func TestLoadFromEnvInvalidNumber(t *testing.T) {
	clearEnv(t)
	t.Setenv("TWSCRAPER_PAGE_SIZE", "lots")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err == nil {
		t.Error("Expected an error for a non-numeric page size")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantError bool
	}{
		{name: "defaults", mutate: func(c *Config) {}, wantError: false},
		{name: "zero page size", mutate: func(c *Config) { c.API.PageSize = 0 }, wantError: true},
		{name: "negative delay", mutate: func(c *Config) { c.RateLimit.RequestDelay = -time.Second }, wantError: true},
		{name: "negative max pages", mutate: func(c *Config) { c.Crawl.MaxPagesPerUser = -1 }, wantError: true},
		{name: "missing database", mutate: func(c *Config) { c.Database.Path = "" }, wantError: true},
		{name: "invalid log level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestValidateAPI(t *testing.T) {
	config := DefaultConfig()
	if err := config.ValidateAPI(); err == nil {
		t.Error("Expected missing base url and key to fail")
	}

	config.API.BaseURL = "ftp://nope"
	config.API.APIKey = "key"
	if err := config.ValidateAPI(); err == nil {
		t.Error("Expected non-http base url to fail")
	}

	config.API.BaseURL = "https://api.example"
	if err := config.ValidateAPI(); err != nil {
		t.Errorf("Expected valid api config, got %v", err)
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	config := DefaultConfig()

	config.MergeCommandLineFlags(map[string]interface{}{
		"base-url":         "http://flag.example",
		"db":               "/tmp/flag.db",
		"max-pages":        0,
		"request-delay":    2 * time.Second,
		"refresh-existing": true,
		"log-level":        "error",
	})

	if config.API.BaseURL != "http://flag.example" {
		t.Errorf("Expected base url from flag, got %s", config.API.BaseURL)
	}
	if config.Database.Path != "/tmp/flag.db" {
		t.Errorf("Expected db path from flag, got %s", config.Database.Path)
	}
	if config.Crawl.MaxPagesPerUser != 0 {
		t.Errorf("Expected max pages 0 (unlimited), got %d", config.Crawl.MaxPagesPerUser)
	}
	if config.RateLimit.RequestDelay != 2*time.Second {
		t.Errorf("Expected request delay 2s, got %s", config.RateLimit.RequestDelay)
	}
	if !config.Crawl.RefreshExisting {
		t.Error("Expected refresh existing from flag")
	}
	if config.Logging.Level != "error" {
		t.Errorf("Expected log level error, got %s", config.Logging.Level)
	}
}

func TestSaveAndLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	config := DefaultConfig()
	config.API.BaseURL = "http://saved.example"
	config.API.PageSize = 100
	config.Crawl.MaxPagesPerUser = 4

	if err := config.Save(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded := DefaultConfig()
	if err := loaded.LoadFromFile(configPath); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loaded.API.BaseURL != "http://saved.example" {
		t.Errorf("Expected saved base url, got %s", loaded.API.BaseURL)
	}
	if loaded.API.PageSize != 100 {
		t.Errorf("Expected saved page size 100, got %d", loaded.API.PageSize)
	}
	if loaded.Crawl.MaxPagesPerUser != 4 {
		t.Errorf("Expected saved max pages 4, got %d", loaded.Crawl.MaxPagesPerUser)
	}
	if loaded.RateLimit.RequestDelay != time.Second {
		t.Errorf("Expected request delay to round-trip, got %s", loaded.RateLimit.RequestDelay)
	}
}

func TestLoadPrecedence(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := "api:\n  base_url: http://file.example\n  page_size: 20\ncrawl:\n  max_pages_per_user: 2\n"
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	t.Setenv("TWSCRAPER_PAGE_SIZE", "30")

	config, err := Load(configPath, map[string]interface{}{"max-pages": 7})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if config.API.BaseURL != "http://file.example" {
		t.Errorf("Expected base url from file, got %s", config.API.BaseURL)
	}
	if config.API.PageSize != 30 {
		t.Errorf("Expected env to override file page size, got %d", config.API.PageSize)
	}
	if config.Crawl.MaxPagesPerUser != 7 {
		t.Errorf("Expected flag to override file max pages, got %d", config.Crawl.MaxPagesPerUser)
	}
}

func TestMasked(t *testing.T) {
	config := DefaultConfig()
	config.API.APIKey = "abcd1234efgh5678"

	masked := config.Masked()
	if masked.API.APIKey != "abcd...5678" {
		t.Errorf("Expected masked key, got %s", masked.API.APIKey)
	}
	if config.API.APIKey != "abcd1234efgh5678" {
		t.Error("Masked must not modify the original")
	}
}
