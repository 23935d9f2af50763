// Pathfinder - Career Management SaaS Backend
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/czhaoca/pathfinder-sub009

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/czhaoca/pathfinder-sub009/internal/audit"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Audit.BufferSize != 100 {
		t.Errorf("Audit.BufferSize = %d, want 100", cfg.Audit.BufferSize)
	}
	if cfg.Audit.FlushInterval != 10*time.Second {
		t.Errorf("Audit.FlushInterval = %s, want 10s", cfg.Audit.FlushInterval)
	}
	if len(cfg.Retention.Policies) != 2 {
		t.Errorf("Retention.Policies = %d, want 2", len(cfg.Retention.Policies))
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("AUDIT_BUFFER_SIZE", "250")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DUCKDB_PATH", "/tmp/audit.duckdb")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ORIGINS", "https://app.example.com, https://admin.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Audit.BufferSize != 250 {
		t.Errorf("Audit.BufferSize = %d, want 250", cfg.Audit.BufferSize)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.Path != "/tmp/audit.duckdb" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	want := []string{"https://app.example.com", "https://admin.example.com"}
	if len(cfg.Server.CORSOrigins) != len(want) {
		t.Fatalf("CORSOrigins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
	for i := range want {
		if cfg.Server.CORSOrigins[i] != want[i] {
			t.Errorf("CORSOrigins[%d] = %q, want %q", i, cfg.Server.CORSOrigins[i], want[i])
		}
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 7070
audit:
  buffer_size: 42
retention:
  policies:
    - event_type: "authentication"
      archive_after_days: 180
      delete_after_days: 365
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Audit.BufferSize != 42 {
		t.Errorf("Audit.BufferSize = %d, want 42", cfg.Audit.BufferSize)
	}
	if len(cfg.Retention.Policies) != 1 || cfg.Retention.Policies[0].EventType != "authentication" {
		t.Errorf("Retention.Policies = %+v", cfg.Retention.Policies)
	}
}

func TestEnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "6060")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 6060 {
		t.Errorf("Server.Port = %d, want env override 6060", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config { return defaultConfig() }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"port out of range", func(c *Config) { c.Server.Port = 0 }, "HTTP_PORT"},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, "DUCKDB_PATH"},
		{"zero buffer size", func(c *Config) { c.Audit.BufferSize = 0 }, "AUDIT_BUFFER_SIZE"},
		{"sub-second flush interval", func(c *Config) { c.Audit.FlushInterval = 100 * time.Millisecond }, "AUDIT_FLUSH_INTERVAL"},
		{"missing fallback path", func(c *Config) { c.Audit.FallbackPath = "" }, "AUDIT_FALLBACK_PATH"},
		{"webhook enabled without url", func(c *Config) { c.Webhook.Enabled = true }, "WEBHOOK_URL"},
		{"page size above max", func(c *Config) { c.API.DefaultPageSize = 5000 }, "API_DEFAULT_PAGE_SIZE"},
		{"policy without event type", func(c *Config) {
			c.Retention.Policies = []audit.RetentionPolicy{{ArchiveAfterDays: 1, DeleteAfterDays: 2}}
		}, "event_type"},
		{"delete before archive", func(c *Config) {
			c.Retention.Policies = []audit.RetentionPolicy{{EventType: "*", ArchiveAfterDays: 90, DeleteAfterDays: 30}}
		}, "delete_after_days"},
		{"negative day count", func(c *Config) {
			c.Retention.Policies = []audit.RetentionPolicy{{EventType: "*", ArchiveAfterDays: -1}}
		}, "negative"},
		{"zero delete means purge on archive", func(c *Config) {
			c.Retention.Policies = []audit.RetentionPolicy{{EventType: "*", ArchiveAfterDays: 90, DeleteAfterDays: 0}}
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
