// Package database provides connection pool management for PostgreSQL,
// which backs the note and loan collections.
package database
