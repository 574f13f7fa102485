package store

import (
	"context"
	"sync"
	"time"

	"foliosync/internal/model"
)

// Memory is an in-process Store. Reads return deep copies so callers can
// never mutate stored state behind the lock.
type Memory struct {
	mu    sync.RWMutex
	notes map[int64]*model.Note
	loans map[int64]*model.Loan
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		notes: make(map[int64]*model.Note),
		loans: make(map[int64]*model.Loan),
	}
}

func (m *Memory) FindNote(ctx context.Context, noteID int64) (*model.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.notes[noteID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyNote(n), nil
}

func (m *Memory) InsertNote(ctx context.Context, n *model.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.notes[n.NoteID] = copyNote(n)
	return nil
}

func (m *Memory) SetNoteVolatile(ctx context.Context, noteID int64, fields map[model.VolatileField]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.noteLocked(noteID)
	for f, v := range fields {
		switch f {
		case model.FieldOutstandingPrincipal:
			n.OutstandingPrincipal = v
		case model.FieldAccruedInterest:
			n.AccruedInterest = v
		case model.FieldDaysSincePayment:
			n.DaysSincePayment = v
		}
	}
	return nil
}

func (m *Memory) AppendNoteHistory(ctx context.Context, noteID int64, field model.HistoryField, e model.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.noteLocked(noteID)
	switch field {
	case model.FieldAskingPrice:
		n.AskingPrice = append(n.AskingPrice, e)
	case model.FieldMarkupDiscount:
		n.MarkupDiscount = append(n.MarkupDiscount, e)
	case model.FieldYTM:
		n.YTM = append(n.YTM, e)
	}
	return nil
}

func (m *Memory) SetNoteSummary(ctx context.Context, noteID int64, s model.NoteSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.noteLocked(noteID).Summary = s
	return nil
}

func (m *Memory) AddNotePayments(ctx context.Context, noteID int64, entries []model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.noteLocked(noteID)
	n.PaymentHistory = addPayments(n.PaymentHistory, entries)
	return nil
}

func (m *Memory) TouchNote(ctx context.Context, noteID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.noteLocked(noteID).LastUpdated = at
	return nil
}

func (m *Memory) FindLoan(ctx context.Context, loanID int64) (*model.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.loans[loanID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyLoan(l), nil
}

func (m *Memory) SetLoanStatus(ctx context.Context, loanID int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loanLocked(loanID).Status = status
	return nil
}

func (m *Memory) SetLoanProfile(ctx context.Context, loanID int64, p model.LoanProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make(model.LoanProfile, len(p))
	for k, v := range p {
		cp[k] = v
	}
	m.loanLocked(loanID).Profile = cp
	return nil
}

func (m *Memory) AddLoanCollections(ctx context.Context, loanID int64, entries []model.CollectionEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := m.loanLocked(loanID)
	for _, e := range entries {
		if !containsCollection(l.CollectionLog, e) {
			l.CollectionLog = append(l.CollectionLog, e)
		}
	}
	return nil
}

func (m *Memory) AddLoanCreditHistory(ctx context.Context, loanID int64, entries []model.CreditScoreEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := m.loanLocked(loanID)
	for _, e := range entries {
		if !containsCredit(l.CreditScoreHistory, e) {
			l.CreditScoreHistory = append(l.CreditScoreHistory, e)
		}
	}
	return nil
}

func (m *Memory) AddLoanNote(ctx context.Context, loanID int64, ref model.NoteRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := m.loanLocked(loanID)
	for _, r := range l.Notes {
		if r == ref {
			return nil
		}
	}
	l.Notes = append(l.Notes, ref)
	return nil
}

func (m *Memory) AddLoanPayments(ctx context.Context, loanID int64, entries []model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := m.loanLocked(loanID)
	l.PaymentHistory = addPayments(l.PaymentHistory, entries)
	return nil
}

func (m *Memory) TouchLoan(ctx context.Context, loanID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loanLocked(loanID).LastUpdated = at
	return nil
}

func (m *Memory) LoansMissingProfile(ctx context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[int64]struct{})
	var ids []int64
	for _, n := range m.notes {
		if _, ok := seen[n.LoanID]; ok {
			continue
		}
		seen[n.LoanID] = struct{}{}

		if l, ok := m.loans[n.LoanID]; ok && l.Profile != nil {
			continue
		}
		ids = append(ids, n.LoanID)
	}
	return ids, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

// noteLocked returns the note, creating an empty shell if absent (upsert
// semantics). Caller must hold the write lock.
func (m *Memory) noteLocked(noteID int64) *model.Note {
	n, ok := m.notes[noteID]
	if !ok {
		n = &model.Note{NoteID: noteID}
		m.notes[noteID] = n
	}
	return n
}

// loanLocked returns the loan, creating it if absent. Caller must hold the
// write lock.
func (m *Memory) loanLocked(loanID int64) *model.Loan {
	l, ok := m.loans[loanID]
	if !ok {
		l = &model.Loan{LoanID: loanID}
		m.loans[loanID] = l
	}
	return l
}

// addPayments appends entries not already present. Payment structs are
// comparable; parsed dates carry no monotonic clock, so == is exact.
func addPayments(existing []model.Payment, entries []model.Payment) []model.Payment {
	for _, e := range entries {
		dup := false
		for _, p := range existing {
			if p == e {
				dup = true
				break
			}
		}
		if !dup {
			existing = append(existing, e)
		}
	}
	return existing
}

func containsCollection(s []model.CollectionEntry, e model.CollectionEntry) bool {
	for _, x := range s {
		if x == e {
			return true
		}
	}
	return false
}

func containsCredit(s []model.CreditScoreEntry, e model.CreditScoreEntry) bool {
	for _, x := range s {
		if x == e {
			return true
		}
	}
	return false
}

func copyNote(n *model.Note) *model.Note {
	cp := *n
	cp.AskingPrice = append([]model.HistoryEntry(nil), n.AskingPrice...)
	cp.MarkupDiscount = append([]model.HistoryEntry(nil), n.MarkupDiscount...)
	cp.YTM = append([]model.HistoryEntry(nil), n.YTM...)
	cp.PaymentHistory = append([]model.Payment(nil), n.PaymentHistory...)
	return &cp
}

func copyLoan(l *model.Loan) *model.Loan {
	cp := *l
	cp.CollectionLog = append([]model.CollectionEntry(nil), l.CollectionLog...)
	cp.CreditScoreHistory = append([]model.CreditScoreEntry(nil), l.CreditScoreHistory...)
	cp.Notes = append([]model.NoteRef(nil), l.Notes...)
	cp.PaymentHistory = append([]model.Payment(nil), l.PaymentHistory...)
	if l.Profile != nil {
		cp.Profile = make(model.LoanProfile, len(l.Profile))
		for k, v := range l.Profile {
			cp.Profile[k] = v
		}
	}
	return &cp
}
