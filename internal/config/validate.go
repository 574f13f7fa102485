package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *SyncerConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Marketplace.BaseURL == "" {
		return errors.New("marketplace.base_url is required")
	}
	if c.Marketplace.Email == "" {
		return errors.New("marketplace.email is required")
	}
	if c.Marketplace.Password == "" {
		return errors.New("marketplace.password is required")
	}

	if c.Sync.MaxAgeDays < 1 {
		return errors.New("sync.max_age_days must be >= 1")
	}
	if c.Sync.BatchSize < 1 {
		return errors.New("sync.batch_size must be >= 1")
	}
	if c.Sync.InterRequestDelay < 0 {
		return errors.New("sync.inter_request_delay must not be negative")
	}
	if c.Sync.ProfileBatchSize < 1 {
		return errors.New("sync.profile_batch_size must be >= 1")
	}

	switch c.Store.Backend {
	case "memory":
	case "postgres":
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("store.backend %q is not supported", c.Store.Backend)
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return errors.New("metrics.port must be between 1 and 65535")
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Port < 1 || db.Port > 65535 {
		return fmt.Errorf("%s.port must be between 1 and 65535", prefix)
	}
	return nil
}
