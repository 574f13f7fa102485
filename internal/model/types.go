package model

import "time"

// NoteKey identifies one tradable note together with the order it was listed
// under and the loan it belongs to. This is the triple used to address a
// note detail page.
type NoteKey struct {
	LoanID  int64
	OrderID int64
	NoteID  int64
}

// HistoryField names a note field tracked as an append-only history.
type HistoryField string

const (
	FieldAskingPrice    HistoryField = "asking_price"
	FieldMarkupDiscount HistoryField = "markup_discount"
	FieldYTM            HistoryField = "ytm"
)

// HistoryFields lists every tracked history field.
var HistoryFields = []HistoryField{FieldAskingPrice, FieldMarkupDiscount, FieldYTM}

// VolatileField names a note field overwritten in place on every pass
// (no history kept).
type VolatileField string

const (
	FieldOutstandingPrincipal VolatileField = "outstanding_principal"
	FieldAccruedInterest      VolatileField = "accrued_interest"
	FieldDaysSincePayment     VolatileField = "days_since_payment"
)

// HistoryEntry is one observation of a historized field.
type HistoryEntry struct {
	Value      float64
	ObservedAt time.Time
}

// Listing is one flat record from the current marketplace snapshot.
// Numeric values arrive as exact decimal strings and are coerced per field
// downstream; a value that fails coercion is a first-class outcome, never a
// silent "no change".
type Listing struct {
	OrderID int64
	NoteID  int64
	LoanID  int64

	AskingPrice          string
	MarkupDiscount       string
	YTM                  string
	OutstandingPrincipal string
	AccruedInterest      string
	DaysSincePayment     string
}

// Key returns the identifier triple for this listing.
func (l Listing) Key() NoteKey {
	return NoteKey{LoanID: l.LoanID, OrderID: l.OrderID, NoteID: l.NoteID}
}

// Note is the detail record for one tradable note. Created the first time
// the note appears in a snapshot, updated on every later sighting, never
// deleted.
type Note struct {
	NoteID  int64
	OrderID int64
	LoanID  int64

	// Append-only histories; no two consecutive entries share a value.
	AskingPrice    []HistoryEntry
	MarkupDiscount []HistoryEntry
	YTM            []HistoryEntry

	// Volatile fields, overwritten on every pass.
	TradingStatus        bool
	OutstandingPrincipal float64
	AccruedInterest      float64
	DaysSincePayment     float64

	// Summary figures from the most recent detail page merge.
	Summary NoteSummary

	// Note-scoped payment rows, set semantics (full-value equality).
	PaymentHistory []Payment

	LastUpdated time.Time
}

// History returns the entries recorded for a tracked field.
func (n *Note) History(f HistoryField) []HistoryEntry {
	switch f {
	case FieldAskingPrice:
		return n.AskingPrice
	case FieldMarkupDiscount:
		return n.MarkupDiscount
	case FieldYTM:
		return n.YTM
	}
	return nil
}

// NoteSummary holds the summary figures from a note detail page.
// Last-writer-wins; no history is kept for these.
type NoteSummary struct {
	LastPayment          float64
	PaymentsToDate       float64
	Principal            float64
	Interest             float64
	LateFeesReceived     float64
	NextPayment          float64
	RemainingPayments    float64
	ExpectedFinalPayment time.Time
	OutstandingPrincipal float64
}

// Payment is one row of a payment history. The struct is comparable and set
// membership is full-value equality; absent cells parse to zero values.
type Payment struct {
	DueDate          time.Time
	CompletionDate   time.Time
	Amount           float64
	Principal        float64
	Interest         float64
	LateFees         float64
	PrincipalBalance float64
	Status           string
}

// CollectionEntry is one collection-log line on a loan.
type CollectionEntry struct {
	Date        time.Time
	Description string
}

// CreditScoreEntry is one borrower credit-score observation on a loan.
type CreditScoreEntry struct {
	Range string
	Date  time.Time
}

// NoteRef links a loan to one of its notes with the note's fractional share
// of the whole loan.
type NoteRef struct {
	NoteID       int64
	LoanFraction float64
}

// LoanProfile holds the static loan page details (purpose, grade, borrower
// credit figures). Crawled once per loan; the page never changes.
type LoanProfile map[string]any

// Loan is the aggregate record shared by all notes referencing one loan.
// Created lazily by the first detail merge of any of its notes, updated by
// every later merge, never deleted.
type Loan struct {
	LoanID int64

	// Status is last-writer-wins from the most recent merge.
	Status string

	// Sets keyed by full value equality.
	CollectionLog      []CollectionEntry
	CreditScoreHistory []CreditScoreEntry
	Notes              []NoteRef

	// Note payments rescaled to whole-loan amounts.
	PaymentHistory []Payment

	Profile LoanProfile

	LastUpdated time.Time
}
