// Package config loads and validates syncer configuration from YAML.
//
// Configuration files support ${VAR} environment variable expansion, which
// is how marketplace credentials and database passwords are injected.
package config
