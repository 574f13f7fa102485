// Package store persists the two record collections (notes, loans).
//
// The Store interface exposes only idempotent, single-document primitives:
// upsert-with-identifier, set-add-without-duplicate, and history append.
// A synchronization pass that crashes mid-batch is resumed by simply
// re-running it; no mutation here can duplicate history or corrupt records.
//
// Two backends:
//   - Memory: mutex-guarded maps, used in tests and for dry runs
//   - Postgres: pgx pool, relational schema where unique indexes over full
//     row values give set semantics via ON CONFLICT DO NOTHING
package store
