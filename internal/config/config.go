package config

import "time"

// SyncerConfig is the root configuration for a syncer instance.
type SyncerConfig struct {
	Instance    InstanceConfig    `yaml:"instance"`
	Marketplace MarketplaceConfig `yaml:"marketplace"`
	Sync        SyncConfig        `yaml:"sync"`
	Store       StoreConfig       `yaml:"store"`
	Database    DatabaseConfig    `yaml:"database"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// InstanceConfig identifies this syncer.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// MarketplaceConfig holds the remote marketplace settings.
type MarketplaceConfig struct {
	BaseURL          string        `yaml:"base_url"`
	Email            string        `yaml:"email"`    // login email (use ${ENV} in the file)
	Password         string        `yaml:"password"` // login password (use ${ENV} in the file)
	Timeout          time.Duration `yaml:"timeout"`
	MaxRetries       int           `yaml:"max_retries"`
	SnapshotPageSize int           `yaml:"snapshot_page_size"`
}

// SyncConfig holds pass scheduling and staleness settings.
type SyncConfig struct {
	Interval          time.Duration `yaml:"interval"`            // time between passes
	MaxAgeDays        int           `yaml:"max_age_days"`        // staleness-by-age threshold
	BatchSize         int           `yaml:"batch_size"`          // keys per detail fetch round
	InterRequestDelay time.Duration `yaml:"inter_request_delay"` // pacing between page fetches
	ProfileBatchSize  int           `yaml:"profile_batch_size"`  // loan pages per crawl round
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Backend string `yaml:"backend"` // "postgres" or "memory"
}

// DatabaseConfig holds the PostgreSQL connection for the postgres backend.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// MaxAge returns the staleness-by-age threshold as a duration.
func (c SyncConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeDays) * 24 * time.Hour
}
