// Package syncer implements the incremental synchronization engine.
//
// One pass runs in three stages:
//
//  1. Order sync: the current listing snapshot is reconciled against
//     stored notes. New notes are created, tracked fields get a history
//     entry appended on change, volatile fields are overwritten.
//  2. Staleness selection: every sighted note is checked for a needed
//     detail refetch, either because its data changed or because its
//     loan record has aged past the threshold. Anything ambiguous
//     (missing records, unparseable values) is selected rather than
//     skipped, which is what heals partially written records.
//  3. Detail merge: fetched detail documents are merged into the note
//     and its loan. Every merge step is idempotent, so a crashed pass
//     is repaired by simply running the next one.
//
// All store mutation goes through upserts and set-adds keyed by full
// value equality; re-running a pass never duplicates history.
package syncer
