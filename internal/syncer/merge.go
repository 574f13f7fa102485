package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"foliosync/internal/model"
	"foliosync/internal/store"
)

// MergeError reports a failed merge together with the identifier triple
// it belongs to.
type MergeError struct {
	Key model.NoteKey
	Err error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge loan=%d order=%d note=%d: %v",
		e.Key.LoanID, e.Key.OrderID, e.Key.NoteID, e.Err)
}

func (e *MergeError) Unwrap() error {
	return e.Err
}

// Merger merges parsed detail documents into the note and loan records.
type Merger struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewMerger creates a merge engine writing through the given store.
func NewMerger(st store.Store, logger *slog.Logger) *Merger {
	return &Merger{
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

// Merge applies one parsed detail document to the note identified by key
// and to its loan. Every step is idempotent; the timestamps move last, so
// an interrupted merge leaves the note looking stale and gets redone by
// the next pass.
func (m *Merger) Merge(ctx context.Context, key model.NoteKey, doc model.Document) error {
	if err := doc.Validate(); err != nil {
		return &MergeError{Key: key, Err: err}
	}

	if len(doc.CollectionLog) > 0 {
		if err := m.store.AddLoanCollections(ctx, key.LoanID, doc.CollectionLog); err != nil {
			return &MergeError{Key: key, Err: fmt.Errorf("add collection log: %w", err)}
		}
	}

	if err := m.store.SetLoanStatus(ctx, key.LoanID, doc.Status); err != nil {
		return &MergeError{Key: key, Err: fmt.Errorf("set loan status: %w", err)}
	}

	ref := model.NoteRef{NoteID: key.NoteID, LoanFraction: doc.LoanFraction}
	if err := m.store.AddLoanNote(ctx, key.LoanID, ref); err != nil {
		return &MergeError{Key: key, Err: fmt.Errorf("add note reference: %w", err)}
	}

	if len(doc.PaymentHistory) > 0 {
		if err := m.store.AddNotePayments(ctx, key.NoteID, doc.PaymentHistory); err != nil {
			return &MergeError{Key: key, Err: fmt.Errorf("add note payments: %w", err)}
		}
	}

	if len(doc.CreditScoreHistory) > 0 {
		if err := m.store.AddLoanCreditHistory(ctx, key.LoanID, doc.CreditScoreHistory); err != nil {
			return &MergeError{Key: key, Err: fmt.Errorf("add credit history: %w", err)}
		}
	}

	if err := m.store.SetNoteSummary(ctx, key.NoteID, doc.Summary); err != nil {
		return &MergeError{Key: key, Err: fmt.Errorf("set note summary: %w", err)}
	}

	if len(doc.PaymentHistory) > 0 {
		normalized := normalizePayments(doc.PaymentHistory, doc.LoanFraction, doc.LoanAmount)
		if err := m.store.AddLoanPayments(ctx, key.LoanID, normalized); err != nil {
			return &MergeError{Key: key, Err: fmt.Errorf("add loan payments: %w", err)}
		}
	}

	now := m.now()
	if err := m.store.TouchNote(ctx, key.NoteID, now); err != nil {
		return &MergeError{Key: key, Err: fmt.Errorf("touch note: %w", err)}
	}
	if err := m.store.TouchLoan(ctx, key.LoanID, now); err != nil {
		return &MergeError{Key: key, Err: fmt.Errorf("touch loan: %w", err)}
	}

	m.logger.Debug("merged detail document",
		"loan_id", key.LoanID,
		"note_id", key.NoteID,
		"payments", len(doc.PaymentHistory),
	)
	return nil
}

// normalizePayments rescales note-scoped monetary figures to whole-loan
// amounts using the note's fractional share. Dates and status strings
// pass through unchanged.
func normalizePayments(payments []model.Payment, fraction, amount float64) []model.Payment {
	scale := func(v float64) float64 {
		return round2(v / fraction * amount)
	}

	out := make([]model.Payment, len(payments))
	for i, p := range payments {
		p.Amount = scale(p.Amount)
		p.Principal = scale(p.Principal)
		p.Interest = scale(p.Interest)
		p.LateFees = scale(p.LateFees)
		p.PrincipalBalance = scale(p.PrincipalBalance)
		out[i] = p
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
