// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package config

import (
	"fmt"
	"time"

	"github.com/tomtom215/zohosync/internal/validation"
)

// Validate checks that required configuration is present and valid.
// Struct tags cover single fields; the methods below cover durations and
// cross-field rules the tags cannot express.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	validators := []func() error{
		c.validateZoho,
		c.validateJobs,
		c.validateScheduler,
		c.validateLock,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateZoho() error {
	if c.Zoho.RetryDelay <= 0 {
		return fmt.Errorf("zoho.retry_delay must be positive, got %v", c.Zoho.RetryDelay)
	}
	if c.Zoho.ConnectTimeout <= 0 || c.Zoho.RequestTimeout <= 0 {
		return fmt.Errorf("zoho.connect_timeout and zoho.request_timeout must be positive")
	}
	if c.Zoho.ConnectTimeout > c.Zoho.RequestTimeout {
		return fmt.Errorf("zoho.connect_timeout (%v) must not exceed zoho.request_timeout (%v)",
			c.Zoho.ConnectTimeout, c.Zoho.RequestTimeout)
	}
	if c.Zoho.CircuitBreaker.Enabled && c.Zoho.CircuitBreaker.OpenTimeout <= 0 {
		return fmt.Errorf("zoho.circuit_breaker.open_timeout must be positive when the breaker is enabled")
	}
	return nil
}

func (c *Config) validateJobs() error {
	if c.Jobs.ShipmentPagePause < 0 {
		return fmt.Errorf("jobs.shipment_page_pause must not be negative, got %v", c.Jobs.ShipmentPagePause)
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.MisfireGrace < 0 {
		return fmt.Errorf("scheduler.misfire_grace must not be negative, got %v", c.Scheduler.MisfireGrace)
	}
	if c.Scheduler.CheckInterval < time.Second {
		return fmt.Errorf("scheduler.check_interval must be at least 1s, got %v", c.Scheduler.CheckInterval)
	}
	if c.Scheduler.JobTimeout <= 0 {
		return fmt.Errorf("scheduler.job_timeout must be positive, got %v", c.Scheduler.JobTimeout)
	}
	return nil
}

func (c *Config) validateLock() error {
	if c.Lock.Enabled && c.Lock.TTL < time.Minute {
		return fmt.Errorf("lock.ttl must be at least 1m, got %v", c.Lock.TTL)
	}
	return nil
}

// Location returns the scheduler timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
