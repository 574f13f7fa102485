package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"foliosync/internal/model"
	"foliosync/internal/store"
)

// SnapshotFetcher pulls the full current listing inventory. A transport
// error is fatal to the pass; no partial snapshot is trusted.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context) ([]model.Listing, error)
}

// DetailFetcher fetches and parses detail documents for a batch of note
// keys. A key absent from the result failed individually.
type DetailFetcher interface {
	FetchDetails(ctx context.Context, keys []model.NoteKey) (map[model.NoteKey]model.Document, error)
}

// Source is the remote marketplace as the pass sees it.
type Source interface {
	SnapshotFetcher
	DetailFetcher
}

// Config holds the tunables of a synchronization pass.
type Config struct {
	// MaxAge is the loan age past which a detail refetch is forced.
	MaxAge time.Duration
	// BatchSize bounds one detail fetch round.
	BatchSize int
}

// Report summarizes one synchronization pass.
type Report struct {
	RunID    uuid.UUID
	Started  time.Time
	Duration time.Duration

	Listings       int
	Created        int
	Updated        int
	SkippedRecords int
	SkippedFields  int
	Selected       int
	Merged         int
	Failed         int
}

// Runner executes synchronization passes end to end.
type Runner struct {
	source    Source
	orders    *OrderSync
	scheduler *Scheduler
	merger    *Merger
	logger    *slog.Logger
	batchSize int
}

// NewRunner wires a pass runner over the given store and source.
func NewRunner(st store.Store, source Source, cfg Config, logger *slog.Logger) *Runner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	return &Runner{
		source:    source,
		orders:    NewOrderSync(st, logger),
		scheduler: NewScheduler(st, cfg.MaxAge, logger),
		merger:    NewMerger(st, logger),
		logger:    logger,
		batchSize: cfg.BatchSize,
	}
}

// Run executes one full pass: snapshot, order sync, staleness selection,
// then batched detail fetch and merge. The returned report is valid even
// when the pass ends early with an error.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:   uuid.New(),
		Started: time.Now(),
	}
	defer func() {
		report.Duration = time.Since(report.Started)
	}()

	logger := r.logger.With("run_id", report.RunID.String())
	logger.Info("synchronization pass starting")

	listings, err := r.source.FetchSnapshot(ctx)
	if err != nil {
		return report, fmt.Errorf("fetch snapshot: %w", err)
	}
	report.Listings = len(listings)

	results, err := r.orders.Sync(ctx, listings)
	r.tally(report, results)
	if err != nil {
		return report, fmt.Errorf("order sync: %w", err)
	}
	logger.Info("order sync done",
		"listings", report.Listings,
		"created", report.Created,
		"updated", report.Updated,
		"skipped_records", report.SkippedRecords,
		"skipped_fields", report.SkippedFields,
	)

	keys, err := r.scheduler.Select(ctx, results)
	if err != nil {
		return report, fmt.Errorf("staleness selection: %w", err)
	}
	report.Selected = len(keys)

	for start := 0; start < len(keys); start += r.batchSize {
		end := min(start+r.batchSize, len(keys))
		batch := keys[start:end]

		docs, err := r.source.FetchDetails(ctx, batch)
		if err != nil {
			return report, fmt.Errorf("fetch details: %w", err)
		}

		for _, key := range batch {
			doc, ok := docs[key]
			if !ok {
				report.Failed++
				continue
			}
			if err := r.merger.Merge(ctx, key, doc); err != nil {
				report.Failed++
				logger.Warn("merge failed", "err", err)
				continue
			}
			report.Merged++
		}
	}

	logger.Info("synchronization pass done",
		"selected", report.Selected,
		"merged", report.Merged,
		"failed", report.Failed,
		"duration", time.Since(report.Started),
	)
	return report, nil
}

func (r *Runner) tally(report *Report, results []Result) {
	for _, res := range results {
		report.SkippedFields += res.SkippedFields
		switch {
		case res.Err != nil:
			report.SkippedRecords++
		case res.Created:
			report.Created++
		default:
			report.Updated++
		}
	}
}
