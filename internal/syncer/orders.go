package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"foliosync/internal/model"
	"foliosync/internal/store"
)

// Result records what the order sync did with one snapshot listing. The
// scheduler consumes these to decide which notes need a detail refetch.
type Result struct {
	Key model.NoteKey

	// Created means the note was first seen this pass.
	Created bool

	// Changed means a staleness-relevant field differs from the stored
	// note, or could not be compared. Either way the detail page must be
	// refetched.
	Changed bool

	// SkippedFields counts field values that failed numeric coercion.
	SkippedFields int

	// Err is set when the whole record could not be processed.
	Err error
}

// OrderSync reconciles snapshot listings against stored notes.
type OrderSync struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewOrderSync creates an order synchronizer.
func NewOrderSync(st store.Store, logger *slog.Logger) *OrderSync {
	return &OrderSync{
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

// Sync processes every listing in the snapshot. Per-record failures are
// captured in the returned results; only context cancellation stops the
// batch.
func (s *OrderSync) Sync(ctx context.Context, listings []model.Listing) ([]Result, error) {
	results := make([]Result, 0, len(listings))

	for _, l := range listings {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, s.syncOne(ctx, l))
	}
	return results, nil
}

func (s *OrderSync) syncOne(ctx context.Context, l model.Listing) Result {
	res := Result{Key: l.Key()}

	note, err := s.store.FindNote(ctx, l.NoteID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		res.Created = true
		res.Changed = true
		if err := s.createNote(ctx, l); err != nil {
			res.Err = err
			s.logger.Warn("note create failed",
				"note_id", l.NoteID,
				"order_id", l.OrderID,
				"loan_id", l.LoanID,
				"err", err,
			)
		}
		return res

	case err != nil:
		res.Err = fmt.Errorf("find note: %w", err)
		res.Changed = true
		s.logger.Warn("note lookup failed", "note_id", l.NoteID, "err", err)
		return res
	}

	s.updateNote(ctx, l, note, &res)
	return res
}

// createNote builds a fresh note with every history initialized to one
// entry. A coercion failure on any field rejects the whole record: a note
// cannot be created with a hole in its history.
func (s *OrderSync) createNote(ctx context.Context, l model.Listing) error {
	now := s.now()

	note := &model.Note{
		NoteID:        l.NoteID,
		OrderID:       l.OrderID,
		LoanID:        l.LoanID,
		TradingStatus: true,
	}

	for field, raw := range map[model.HistoryField]string{
		model.FieldAskingPrice:    l.AskingPrice,
		model.FieldMarkupDiscount: l.MarkupDiscount,
		model.FieldYTM:            l.YTM,
	} {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("coerce %s %q: %w", field, raw, err)
		}
		entry := model.HistoryEntry{Value: v, ObservedAt: now}
		switch field {
		case model.FieldAskingPrice:
			note.AskingPrice = []model.HistoryEntry{entry}
		case model.FieldMarkupDiscount:
			note.MarkupDiscount = []model.HistoryEntry{entry}
		case model.FieldYTM:
			note.YTM = []model.HistoryEntry{entry}
		}
	}

	for field, raw := range map[model.VolatileField]string{
		model.FieldOutstandingPrincipal: l.OutstandingPrincipal,
		model.FieldAccruedInterest:      l.AccruedInterest,
		model.FieldDaysSincePayment:     l.DaysSincePayment,
	} {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("coerce %s %q: %w", field, raw, err)
		}
		switch field {
		case model.FieldOutstandingPrincipal:
			note.OutstandingPrincipal = v
		case model.FieldAccruedInterest:
			note.AccruedInterest = v
		case model.FieldDaysSincePayment:
			note.DaysSincePayment = v
		}
	}

	if err := s.store.InsertNote(ctx, note); err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

// updateNote appends changed history values and overwrites volatile
// fields on an existing note. A field that fails coercion is skipped and
// counted; the rest of the record still updates. Unverifiable comparisons
// mark the record changed so the detail page gets refetched.
func (s *OrderSync) updateNote(ctx context.Context, l model.Listing, note *model.Note, res *Result) {
	now := s.now()

	for field, raw := range map[model.HistoryField]string{
		model.FieldAskingPrice:    l.AskingPrice,
		model.FieldMarkupDiscount: l.MarkupDiscount,
		model.FieldYTM:            l.YTM,
	} {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			res.SkippedFields++
			if field == model.FieldAskingPrice {
				res.Changed = true
			}
			s.logger.Warn("skipping uncoercible field",
				"note_id", note.NoteID,
				"field", string(field),
				"value", raw,
				"err", err,
			)
			continue
		}

		history := note.History(field)
		if len(history) > 0 && history[len(history)-1].Value == v {
			continue
		}

		if field == model.FieldAskingPrice {
			res.Changed = true
		}
		entry := model.HistoryEntry{Value: v, ObservedAt: now}
		if err := s.store.AppendNoteHistory(ctx, note.NoteID, field, entry); err != nil {
			res.Err = fmt.Errorf("append %s history: %w", field, err)
			s.logger.Warn("history append failed",
				"note_id", note.NoteID,
				"field", string(field),
				"err", err,
			)
		}
	}

	volatile := make(map[model.VolatileField]float64, 3)
	for field, rawStored := range map[model.VolatileField]struct {
		raw    string
		stored float64
	}{
		model.FieldOutstandingPrincipal: {l.OutstandingPrincipal, note.OutstandingPrincipal},
		model.FieldAccruedInterest:      {l.AccruedInterest, note.AccruedInterest},
		model.FieldDaysSincePayment:     {l.DaysSincePayment, note.DaysSincePayment},
	} {
		v, err := strconv.ParseFloat(rawStored.raw, 64)
		if err != nil {
			res.SkippedFields++
			res.Changed = true
			s.logger.Warn("skipping uncoercible field",
				"note_id", note.NoteID,
				"field", string(field),
				"value", rawStored.raw,
				"err", err,
			)
			continue
		}
		if v != rawStored.stored {
			res.Changed = true
		}
		volatile[field] = v
	}

	if len(volatile) > 0 {
		if err := s.store.SetNoteVolatile(ctx, note.NoteID, volatile); err != nil {
			res.Err = fmt.Errorf("set volatile fields: %w", err)
			s.logger.Warn("volatile update failed", "note_id", note.NoteID, "err", err)
		}
	}
}
