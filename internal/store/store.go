package store

import (
	"context"
	"errors"
	"time"

	"foliosync/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the persistence boundary for the note and loan collections.
//
// Set-add methods drop entries already present (full-value equality) and
// create the parent record if it does not exist yet. All methods are atomic
// at the single-document level.
type Store interface {
	// FindNote returns the note detail record, or ErrNotFound.
	FindNote(ctx context.Context, noteID int64) (*model.Note, error)
	// InsertNote stores a newly observed note.
	InsertNote(ctx context.Context, n *model.Note) error
	// SetNoteVolatile overwrites the given volatile fields in place.
	SetNoteVolatile(ctx context.Context, noteID int64, fields map[model.VolatileField]float64) error
	// AppendNoteHistory appends one observation to a history field.
	AppendNoteHistory(ctx context.Context, noteID int64, field model.HistoryField, e model.HistoryEntry) error
	// SetNoteSummary overwrites the note's summary figures.
	SetNoteSummary(ctx context.Context, noteID int64, s model.NoteSummary) error
	// AddNotePayments adds payment rows to the note's payment history.
	AddNotePayments(ctx context.Context, noteID int64, entries []model.Payment) error
	// TouchNote sets the note's last_updated timestamp.
	TouchNote(ctx context.Context, noteID int64, at time.Time) error

	// FindLoan returns the loan aggregate record, or ErrNotFound.
	FindLoan(ctx context.Context, loanID int64) (*model.Loan, error)
	// SetLoanStatus overwrites the loan status.
	SetLoanStatus(ctx context.Context, loanID int64, status string) error
	// SetLoanProfile overwrites the loan's static profile.
	SetLoanProfile(ctx context.Context, loanID int64, p model.LoanProfile) error
	// AddLoanCollections adds collection-log entries.
	AddLoanCollections(ctx context.Context, loanID int64, entries []model.CollectionEntry) error
	// AddLoanCreditHistory adds credit-score entries.
	AddLoanCreditHistory(ctx context.Context, loanID int64, entries []model.CreditScoreEntry) error
	// AddLoanNote adds a note reference with its fractional share.
	AddLoanNote(ctx context.Context, loanID int64, ref model.NoteRef) error
	// AddLoanPayments adds whole-loan payment rows.
	AddLoanPayments(ctx context.Context, loanID int64, entries []model.Payment) error
	// TouchLoan sets the loan's last_updated timestamp.
	TouchLoan(ctx context.Context, loanID int64, at time.Time) error

	// LoansMissingProfile returns loan IDs referenced by notes that have no
	// stored profile yet.
	LoansMissingProfile(ctx context.Context) ([]int64, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
}
