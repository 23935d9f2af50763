// Pathfinder - Career Management SaaS Backend
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/czhaoca/pathfinder-sub009

package config

import (
	"fmt"
	"time"

	"github.com/czhaoca/pathfinder-sub009/internal/audit"
	"github.com/czhaoca/pathfinder-sub009/internal/logging"
)

// Config is the root configuration for the audit service.
type Config struct {
	Server    ServerConfig        `koanf:"server"`
	Database  DatabaseConfig      `koanf:"database"`
	Audit     audit.Config        `koanf:"audit"`
	Retention RetentionConfig     `koanf:"retention"`
	Webhook   audit.WebhookConfig `koanf:"webhook"`
	API       APIConfig           `koanf:"api"`
	Logging   logging.Config      `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// RetentionConfig holds retention scheduling and policies.
type RetentionConfig struct {
	Enabled  bool                    `koanf:"enabled"`
	Interval time.Duration           `koanf:"interval"`
	Policies []audit.RetentionPolicy `koanf:"policies"`
}

// APIConfig holds query API limits.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("DUCKDB_PATH is required")
	}
	if c.Audit.BufferSize < 1 {
		return fmt.Errorf("AUDIT_BUFFER_SIZE must be at least 1, got %d", c.Audit.BufferSize)
	}
	if c.Audit.FlushInterval < time.Second {
		return fmt.Errorf("AUDIT_FLUSH_INTERVAL must be at least 1s, got %s", c.Audit.FlushInterval)
	}
	if c.Audit.FallbackPath == "" {
		return fmt.Errorf("AUDIT_FALLBACK_PATH is required")
	}
	if c.API.DefaultPageSize < 1 || c.API.DefaultPageSize > c.API.MaxPageSize {
		return fmt.Errorf("API_DEFAULT_PAGE_SIZE must be between 1 and API_MAX_PAGE_SIZE")
	}
	if c.Webhook.Enabled && c.Webhook.URL == "" {
		return fmt.Errorf("WEBHOOK_URL is required when WEBHOOK_ENABLED=true")
	}
	return c.validateRetention()
}

// validateRetention checks every retention policy for internal consistency.
func (c *Config) validateRetention() error {
	for i, policy := range c.Retention.Policies {
		if policy.EventType == "" {
			return fmt.Errorf("retention policy %d: event_type is required (use \"*\" for all types)", i)
		}
		if policy.ArchiveAfterDays < 0 || policy.DeleteAfterDays < 0 {
			return fmt.Errorf("retention policy %d (%s): day counts must not be negative", i, policy.EventType)
		}
		// delete_after_days 0 means purge as soon as archived, so it is
		// exempt from the ordering check.
		if policy.DeleteAfterDays != 0 && policy.DeleteAfterDays < policy.ArchiveAfterDays {
			return fmt.Errorf("retention policy %d (%s): delete_after_days must not be less than archive_after_days",
				i, policy.EventType)
		}
	}
	if c.Retention.Enabled && c.Retention.Interval < time.Minute {
		return fmt.Errorf("RETENTION_INTERVAL must be at least 1m when retention is enabled, got %s", c.Retention.Interval)
	}
	return nil
}
