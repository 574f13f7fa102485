package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultTimeout           = 30 * time.Second
	DefaultMaxRetries        = 3
	DefaultSnapshotPageSize  = 1000
	DefaultSyncInterval      = 24 * time.Hour
	DefaultMaxAgeDays        = 7
	DefaultBatchSize         = 300
	DefaultInterRequestDelay = 2500 * time.Millisecond
	DefaultProfileBatchSize  = 300
	DefaultStoreBackend      = "postgres"
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultMetricsPort       = 9090
	DefaultMetricsPath       = "/metrics"
)

func (c *SyncerConfig) applyDefaults() {
	// Marketplace defaults
	if c.Marketplace.Timeout == 0 {
		c.Marketplace.Timeout = DefaultTimeout
	}
	if c.Marketplace.MaxRetries == 0 {
		c.Marketplace.MaxRetries = DefaultMaxRetries
	}
	if c.Marketplace.SnapshotPageSize == 0 {
		c.Marketplace.SnapshotPageSize = DefaultSnapshotPageSize
	}

	// Sync defaults
	if c.Sync.Interval == 0 {
		c.Sync.Interval = DefaultSyncInterval
	}
	if c.Sync.MaxAgeDays == 0 {
		c.Sync.MaxAgeDays = DefaultMaxAgeDays
	}
	if c.Sync.BatchSize == 0 {
		c.Sync.BatchSize = DefaultBatchSize
	}
	if c.Sync.InterRequestDelay == 0 {
		c.Sync.InterRequestDelay = DefaultInterRequestDelay
	}
	if c.Sync.ProfileBatchSize == 0 {
		c.Sync.ProfileBatchSize = DefaultProfileBatchSize
	}

	// Store defaults
	if c.Store.Backend == "" {
		c.Store.Backend = DefaultStoreBackend
	}
	applyDBDefaults(&c.Database.Postgres)

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
