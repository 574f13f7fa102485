package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "syncer.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

const validYAML = `
instance:
  id: test-syncer
marketplace:
  base_url: https://marketplace.example.com
  email: investor@example.com
  password: hunter2
sync:
  max_age_days: 5
  inter_request_delay: 1s
store:
  backend: memory
`

func TestLoad(t *testing.T) {
	path := writeTempFile(t, validYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-syncer" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-syncer")
	}
	if cfg.Marketplace.BaseURL != "https://marketplace.example.com" {
		t.Errorf("Marketplace.BaseURL = %q", cfg.Marketplace.BaseURL)
	}
	if cfg.Sync.MaxAgeDays != 5 {
		t.Errorf("Sync.MaxAgeDays = %d, want 5", cfg.Sync.MaxAgeDays)
	}
	if cfg.Sync.InterRequestDelay != time.Second {
		t.Errorf("Sync.InterRequestDelay = %v, want 1s", cfg.Sync.InterRequestDelay)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_MARKET_PASSWORD", "secret123")

	yaml := `
instance:
  id: test-syncer
marketplace:
  base_url: https://marketplace.example.com
  email: investor@example.com
  password: ${TEST_MARKET_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Marketplace.Password != "secret123" {
		t.Errorf("Marketplace.Password = %q, want %q", cfg.Marketplace.Password, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, validYAML)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Sync.MaxAgeDays != 5 {
		t.Errorf("explicit Sync.MaxAgeDays overridden to %d", cfg.Sync.MaxAgeDays)
	}
	if cfg.Sync.BatchSize != DefaultBatchSize {
		t.Errorf("Sync.BatchSize = %d, want default %d", cfg.Sync.BatchSize, DefaultBatchSize)
	}
	if cfg.Sync.Interval != DefaultSyncInterval {
		t.Errorf("Sync.Interval = %v, want default %v", cfg.Sync.Interval, DefaultSyncInterval)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
	if cfg.Database.Postgres.SSLMode != DefaultDBSSLMode {
		t.Errorf("Database.Postgres.SSLMode = %q, want default", cfg.Database.Postgres.SSLMode)
	}
}

func TestMaxAge(t *testing.T) {
	c := SyncConfig{MaxAgeDays: 7}
	if got := c.MaxAge(); got != 7*24*time.Hour {
		t.Errorf("MaxAge() = %v, want 168h", got)
	}
}

func TestValidate(t *testing.T) {
	base := func() *SyncerConfig {
		cfg, err := LoadWithDefaults(writeTempFile(t, validYAML))
		if err != nil {
			t.Fatal(err)
		}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*SyncerConfig)
		wantErr bool
	}{
		{"valid", func(c *SyncerConfig) {}, false},
		{"missing instance id", func(c *SyncerConfig) { c.Instance.ID = "" }, true},
		{"missing base url", func(c *SyncerConfig) { c.Marketplace.BaseURL = "" }, true},
		{"missing email", func(c *SyncerConfig) { c.Marketplace.Email = "" }, true},
		{"zero max age", func(c *SyncerConfig) { c.Sync.MaxAgeDays = 0 }, true},
		{"zero batch size", func(c *SyncerConfig) { c.Sync.BatchSize = 0 }, true},
		{"unknown backend", func(c *SyncerConfig) { c.Store.Backend = "dynamo" }, true},
		{"postgres backend without host", func(c *SyncerConfig) { c.Store.Backend = "postgres" }, true},
		{"bad metrics port", func(c *SyncerConfig) { c.Metrics.Port = 70000 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
