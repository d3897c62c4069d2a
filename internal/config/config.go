// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

// Package config loads ZohoSync configuration from defaults, an optional YAML
// file, an optional .env file and the process environment.
package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Zoho      ZohoConfig      `koanf:"zoho"`
	Mongo     MongoConfig     `koanf:"mongo"`
	Jobs      JobsConfig      `koanf:"jobs"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Notify    NotifyConfig    `koanf:"notify"`
	Lock      LockConfig      `koanf:"lock"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ZohoConfig holds OAuth credentials and HTTP client settings for the Zoho
// Books and Zoho Inventory APIs.
type ZohoConfig struct {
	AccountsURL           string               `koanf:"accounts_url" validate:"required,url"`
	BooksURL              string               `koanf:"books_url" validate:"required,url"`
	InventoryURL          string               `koanf:"inventory_url" validate:"required,url"`
	ClientID              string               `koanf:"client_id" validate:"required"`
	ClientSecret          string               `koanf:"client_secret" validate:"required"`
	BooksRefreshToken     string               `koanf:"books_refresh_token" validate:"required"`
	InventoryRefreshToken string               `koanf:"inventory_refresh_token" validate:"required"`
	OrganizationID        string               `koanf:"organization_id" validate:"required"`
	MaxRetries            int                  `koanf:"max_retries" validate:"min=1,max=10"`
	RetryDelay            time.Duration        `koanf:"retry_delay"`
	RequestTimeout        time.Duration        `koanf:"request_timeout"`
	ConnectTimeout        time.Duration        `koanf:"connect_timeout"`
	MaxConnections        int                  `koanf:"max_connections" validate:"min=1,max=100"`
	CircuitBreaker        CircuitBreakerConfig `koanf:"circuit_breaker"`
}

// CircuitBreakerConfig configures the breaker wrapped around Zoho requests.
type CircuitBreakerConfig struct {
	Enabled      bool          `koanf:"enabled"`
	MinRequests  uint32        `koanf:"min_requests" validate:"min=1"`
	FailureRatio float64       `koanf:"failure_ratio" validate:"gt=0,lte=1"`
	OpenTimeout  time.Duration `koanf:"open_timeout"`
}

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI            string        `koanf:"uri" validate:"required"`
	Database       string        `koanf:"database" validate:"required"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
}

// JobConfig holds the schedule and the per-run concurrency budget of one sync job.
type JobConfig struct {
	Enabled        bool    `koanf:"enabled"`
	Cron           string  `koanf:"cron" validate:"required,cron"`
	MaxConcurrent  int     `koanf:"max_concurrent" validate:"min=1,max=50"`
	CallsPerSecond float64 `koanf:"calls_per_second" validate:"gt=0"`
	PerPage        int     `koanf:"per_page" validate:"min=1,max=2000"`
}

// JobsConfig holds configuration for the four sync jobs.
type JobsConfig struct {
	Invoices              JobConfig     `koanf:"invoices"`
	InvoiceLookbackMonths int           `koanf:"invoice_lookback_months" validate:"min=0,max=12"`
	CreditNotes           JobConfig     `koanf:"credit_notes"`
	CreditNotePageLimit   int           `koanf:"credit_note_page_limit" validate:"min=1"`
	Shipments             JobConfig     `koanf:"shipments"`
	ShipmentPagePause     time.Duration `koanf:"shipment_page_pause"`
	Stock                 JobConfig     `koanf:"stock"`
	StockWarehouse        string        `koanf:"stock_warehouse" validate:"required"`
}

// SchedulerConfig holds cron scheduler settings.
type SchedulerConfig struct {
	Timezone      string        `koanf:"timezone" validate:"required,timezone"`
	MisfireGrace  time.Duration `koanf:"misfire_grace"`
	CheckInterval time.Duration `koanf:"check_interval"`
	JobTimeout    time.Duration `koanf:"job_timeout"`
}

// NotifyConfig holds Slack webhook settings. An empty webhook URL disables notifications.
type NotifyConfig struct {
	SlackWebhookURL string        `koanf:"slack_webhook_url" validate:"omitempty,url"`
	Username        string        `koanf:"username"`
	Channel         string        `koanf:"channel"`
	Timeout         time.Duration `koanf:"timeout"`
}

// LockConfig holds the optional Redis run lock settings.
type LockConfig struct {
	Enabled   bool          `koanf:"enabled"`
	RedisAddr string        `koanf:"redis_addr" validate:"required_if=Enabled true"`
	Password  string        `koanf:"password"`
	DB        int           `koanf:"db" validate:"min=0"`
	TTL       time.Duration `koanf:"ttl"`
	KeyPrefix string        `koanf:"key_prefix"`
}

// ServerConfig holds the operations HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Load loads configuration with the layered Koanf loader.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
