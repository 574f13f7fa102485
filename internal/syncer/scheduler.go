package syncer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"foliosync/internal/model"
	"foliosync/internal/store"
)

// Scheduler decides which notes need their detail page refetched.
type Scheduler struct {
	store  store.Store
	logger *slog.Logger
	maxAge time.Duration
	now    func() time.Time
}

// NewScheduler creates a scheduler selecting loans older than maxAge.
func NewScheduler(st store.Store, maxAge time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:  st,
		logger: logger,
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Select returns the deduplicated set of note keys due for a detail
// refetch. A key is selected when the order sync saw a change, or when
// its loan record is older than the age threshold. Anything that cannot
// be verified — missing loan, failed lookup, failed record — is selected
// rather than skipped, so partially written records repair themselves on
// the next pass.
func (s *Scheduler) Select(ctx context.Context, results []Result) ([]model.NoteKey, error) {
	seen := make(map[model.NoteKey]bool, len(results))
	var keys []model.NoteKey

	for _, r := range results {
		if err := ctx.Err(); err != nil {
			return keys, err
		}
		if seen[r.Key] {
			continue
		}
		seen[r.Key] = true

		if s.stale(ctx, r) {
			keys = append(keys, r.Key)
		}
	}

	s.logger.Info("staleness selection done",
		"candidates", len(results),
		"selected", len(keys),
	)
	return keys, nil
}

func (s *Scheduler) stale(ctx context.Context, r Result) bool {
	if r.Changed || r.Created || r.Err != nil {
		return true
	}

	loan, err := s.store.FindLoan(ctx, r.Key.LoanID)
	if errors.Is(err, store.ErrNotFound) {
		return true
	}
	if err != nil {
		s.logger.Warn("loan lookup failed, selecting for refetch",
			"loan_id", r.Key.LoanID,
			"err", err,
		)
		return true
	}
	if loan.LastUpdated.IsZero() {
		return true
	}
	return s.now().Sub(loan.LastUpdated) > s.maxAge
}
