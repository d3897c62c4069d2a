// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/zohosync/config.yaml",
	"/etc/zohosync/config.yml",
}

const (
	// ConfigPathEnvVar is the environment variable that can override the config file path.
	ConfigPathEnvVar = "CONFIG_PATH"

	// DotenvPathEnvVar overrides the location of the optional .env file.
	DotenvPathEnvVar = "DOTENV_PATH"

	defaultDotenvPath = ".env"
)

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Zoho: ZohoConfig{
			AccountsURL:    "https://accounts.zoho.in/oauth/v2/token",
			BooksURL:       "https://www.zohoapis.in/books/v3",
			InventoryURL:   "https://www.zohoapis.in/inventory/v1",
			MaxRetries:     3,
			RetryDelay:     2 * time.Second,
			RequestTimeout: 30 * time.Second,
			ConnectTimeout: 10 * time.Second,
			MaxConnections: 5,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:      true,
				MinRequests:  10,
				FailureRatio: 0.6,
				OpenTimeout:  2 * time.Minute,
			},
		},
		Mongo: MongoConfig{
			URI:            "mongodb://localhost:27017",
			Database:       "zohosync",
			ConnectTimeout: 10 * time.Second,
		},
		Jobs: JobsConfig{
			Invoices: JobConfig{
				Enabled:        true,
				Cron:           "40 15 * * *",
				MaxConcurrent:  5,
				CallsPerSecond: 1.5,
				PerPage:        200,
			},
			InvoiceLookbackMonths: 1,
			CreditNotes: JobConfig{
				Enabled:        true,
				Cron:           "0 15 * * *",
				MaxConcurrent:  3,
				CallsPerSecond: 1.5,
				PerPage:        200,
			},
			CreditNotePageLimit: 2,
			Shipments: JobConfig{
				Enabled:        true,
				Cron:           "30 15 * * *",
				MaxConcurrent:  5,
				CallsPerSecond: 1.5,
				PerPage:        200,
			},
			ShipmentPagePause: time.Second,
			Stock: JobConfig{
				Enabled:        true,
				Cron:           "0 16 * * *",
				MaxConcurrent:  2,
				CallsPerSecond: 1.5,
				PerPage:        2000,
			},
			StockWarehouse: "Pupscribe Enterprises Private Limited",
		},
		Scheduler: SchedulerConfig{
			Timezone:      "Asia/Kolkata",
			MisfireGrace:  300 * time.Second,
			CheckInterval: 15 * time.Second,
			JobTimeout:    2 * time.Hour,
		},
		Notify: NotifyConfig{
			Username: "ZohoSync",
			Timeout:  10 * time.Second,
		},
		Lock: LockConfig{
			Enabled:   false,
			RedisAddr: "",
			TTL:       2 * time.Hour,
			KeyPrefix: "zohosync:lock:",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8090,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting, including values read
//     from an optional .env file
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := loadDotenv(); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadDotenv populates the process environment from a .env file. Variables that
// are already set win over the file. A missing file is not an error.
func loadDotenv() error {
	path := os.Getenv(DotenvPathEnvVar)
	if path == "" {
		path = defaultDotenvPath
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envMappings maps lower-cased environment variable names to koanf paths.
var envMappings = map[string]string{
	// Zoho credentials and endpoints
	"zoho_accounts_url":            "zoho.accounts_url",
	"zoho_books_url":               "zoho.books_url",
	"zoho_inventory_url":           "zoho.inventory_url",
	"zoho_client_id":               "zoho.client_id",
	"zoho_client_secret":           "zoho.client_secret",
	"zoho_books_refresh_token":     "zoho.books_refresh_token",
	"zoho_inventory_refresh_token": "zoho.inventory_refresh_token",
	"zoho_organization_id":         "zoho.organization_id",
	"zoho_org_id":                  "zoho.organization_id",
	"zoho_max_retries":             "zoho.max_retries",
	"zoho_retry_delay":             "zoho.retry_delay",
	"zoho_request_timeout":         "zoho.request_timeout",
	"zoho_connect_timeout":         "zoho.connect_timeout",
	"zoho_max_connections":         "zoho.max_connections",
	"zoho_breaker_enabled":         "zoho.circuit_breaker.enabled",
	"zoho_breaker_min_requests":    "zoho.circuit_breaker.min_requests",
	"zoho_breaker_failure_ratio":   "zoho.circuit_breaker.failure_ratio",
	"zoho_breaker_open_timeout":    "zoho.circuit_breaker.open_timeout",

	// MongoDB
	"mongo_uri":             "mongo.uri",
	"mongodb_uri":           "mongo.uri",
	"mongo_database":        "mongo.database",
	"database_name":         "mongo.database",
	"mongo_connect_timeout": "mongo.connect_timeout",

	// Jobs
	"invoices_sync_enabled":         "jobs.invoices.enabled",
	"invoices_sync_cron":            "jobs.invoices.cron",
	"invoices_max_concurrent":       "jobs.invoices.max_concurrent",
	"invoices_calls_per_second":     "jobs.invoices.calls_per_second",
	"invoices_lookback_months":      "jobs.invoice_lookback_months",
	"credit_notes_sync_enabled":     "jobs.credit_notes.enabled",
	"credit_notes_sync_cron":        "jobs.credit_notes.cron",
	"credit_notes_max_concurrent":   "jobs.credit_notes.max_concurrent",
	"credit_notes_calls_per_second": "jobs.credit_notes.calls_per_second",
	"credit_notes_page_limit":       "jobs.credit_note_page_limit",
	"shipments_sync_enabled":        "jobs.shipments.enabled",
	"shipments_sync_cron":           "jobs.shipments.cron",
	"shipments_max_concurrent":      "jobs.shipments.max_concurrent",
	"shipments_calls_per_second":    "jobs.shipments.calls_per_second",
	"shipments_page_pause":          "jobs.shipment_page_pause",
	"stock_sync_enabled":            "jobs.stock.enabled",
	"stock_sync_cron":               "jobs.stock.cron",
	"stock_max_concurrent":          "jobs.stock.max_concurrent",
	"stock_calls_per_second":        "jobs.stock.calls_per_second",
	"stock_warehouse":               "jobs.stock_warehouse",

	// Scheduler
	"scheduler_timezone":       "scheduler.timezone",
	"tz_name":                  "scheduler.timezone",
	"scheduler_misfire_grace":  "scheduler.misfire_grace",
	"scheduler_check_interval": "scheduler.check_interval",
	"scheduler_job_timeout":    "scheduler.job_timeout",

	// Notifications
	"slack_webhook_url": "notify.slack_webhook_url",
	"slack_username":    "notify.username",
	"slack_channel":     "notify.channel",
	"slack_timeout":     "notify.timeout",

	// Run lock
	"lock_enabled":    "lock.enabled",
	"redis_addr":      "lock.redis_addr",
	"redis_password":  "lock.password",
	"redis_db":        "lock.db",
	"lock_ttl":        "lock.ttl",
	"lock_key_prefix": "lock.key_prefix",

	// Operations listener
	"http_host":        "server.host",
	"http_port":        "server.port",
	"shutdown_timeout": "server.shutdown_timeout",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - ZOHO_CLIENT_ID -> zoho.client_id
//   - MONGO_URI -> mongo.uri
//   - STOCK_WAREHOUSE -> jobs.stock_warehouse
//
// Unmapped variables return "" and are skipped so that unrelated environment
// variables never leak into the configuration.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
