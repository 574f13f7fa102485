package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"foliosync/internal/model"
	"foliosync/internal/store"
)

func testDocument() model.Document {
	return model.Document{
		Status:       "Current",
		LoanFraction: 25.00,
		LoanAmount:   12500.00,
		Summary: model.NoteSummary{
			LastPayment:          0.85,
			PaymentsToDate:       10.20,
			Principal:            8.15,
			Interest:             2.05,
			NextPayment:          0.85,
			RemainingPayments:    24,
			ExpectedFinalPayment: time.Date(2028, time.June, 15, 0, 0, 0, 0, time.UTC),
			OutstandingPrincipal: 16.85,
		},
		PaymentHistory: []model.Payment{
			{
				DueDate:          time.Date(2026, time.May, 15, 0, 0, 0, 0, time.UTC),
				CompletionDate:   time.Date(2026, time.May, 14, 0, 0, 0, 0, time.UTC),
				Amount:           0.85,
				Principal:        0.65,
				Interest:         0.20,
				PrincipalBalance: 16.85,
				Status:           "Completed - on time",
			},
		},
		CreditScoreHistory: []model.CreditScoreEntry{
			{Range: "714-749", Date: time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)},
		},
		CollectionLog: []model.CollectionEntry{
			{Date: time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC), Description: "Payment reminder sent"},
		},
	}
}

func TestMergeIdempotent(t *testing.T) {
	st := store.NewMemory()
	m := NewMerger(st, testLogger())
	ctx := context.Background()
	key := model.NoteKey{LoanID: 301, OrderID: 101, NoteID: 201}

	for i := 0; i < 2; i++ {
		if err := m.Merge(ctx, key, testDocument()); err != nil {
			t.Fatalf("Merge() run %d error = %v", i+1, err)
		}
	}

	note, err := st.FindNote(ctx, 201)
	if err != nil {
		t.Fatalf("FindNote() error = %v", err)
	}
	if len(note.PaymentHistory) != 1 {
		t.Errorf("note payments = %d, want 1 after double merge", len(note.PaymentHistory))
	}
	if note.Summary.OutstandingPrincipal != 16.85 {
		t.Errorf("summary outstanding = %v", note.Summary.OutstandingPrincipal)
	}

	loan, err := st.FindLoan(ctx, 301)
	if err != nil {
		t.Fatalf("FindLoan() error = %v", err)
	}
	if loan.Status != "Current" {
		t.Errorf("loan status = %q", loan.Status)
	}
	if len(loan.CollectionLog) != 1 {
		t.Errorf("collection log = %d entries, want 1", len(loan.CollectionLog))
	}
	if len(loan.CreditScoreHistory) != 1 {
		t.Errorf("credit history = %d entries, want 1", len(loan.CreditScoreHistory))
	}
	if len(loan.Notes) != 1 {
		t.Errorf("note refs = %d, want 1", len(loan.Notes))
	}
	if len(loan.PaymentHistory) != 1 {
		t.Errorf("loan payments = %d, want 1", len(loan.PaymentHistory))
	}
	if loan.Notes[0] != (model.NoteRef{NoteID: 201, LoanFraction: 25.00}) {
		t.Errorf("note ref = %+v", loan.Notes[0])
	}
}

func TestMergeNormalizesPayments(t *testing.T) {
	st := store.NewMemory()
	m := NewMerger(st, testLogger())
	ctx := context.Background()
	key := model.NoteKey{LoanID: 301, OrderID: 101, NoteID: 201}

	doc := model.Document{
		Status:       "Current",
		LoanFraction: 0.10,
		LoanAmount:   500.00,
		PaymentHistory: []model.Payment{
			{
				DueDate:   time.Date(2026, time.May, 15, 0, 0, 0, 0, time.UTC),
				Principal: 10.00,
				Amount:    10.333,
				Status:    "Completed - on time",
			},
		},
	}

	if err := m.Merge(ctx, key, doc); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	loan, err := st.FindLoan(ctx, 301)
	if err != nil {
		t.Fatalf("FindLoan() error = %v", err)
	}
	if len(loan.PaymentHistory) != 1 {
		t.Fatalf("loan payments = %d, want 1", len(loan.PaymentHistory))
	}
	p := loan.PaymentHistory[0]
	if p.Principal != 50000.00 {
		t.Errorf("normalized principal = %v, want 50000.00", p.Principal)
	}
	if p.Amount != 51665.00 {
		t.Errorf("normalized amount = %v, want 51665.00 (rounded to 2dp)", p.Amount)
	}
	if p.Status != "Completed - on time" {
		t.Errorf("status changed during normalization: %q", p.Status)
	}
	if !p.DueDate.Equal(doc.PaymentHistory[0].DueDate) {
		t.Errorf("due date changed during normalization: %v", p.DueDate)
	}

	// Note-scoped history keeps the original figures.
	note, _ := st.FindNote(ctx, 201)
	if note.PaymentHistory[0].Principal != 10.00 {
		t.Errorf("note principal = %v, want unscaled 10.00", note.PaymentHistory[0].Principal)
	}

	// Re-merging does not duplicate the normalized entry.
	if err := m.Merge(ctx, key, doc); err != nil {
		t.Fatalf("second Merge() error = %v", err)
	}
	loan, _ = st.FindLoan(ctx, 301)
	if len(loan.PaymentHistory) != 1 {
		t.Errorf("loan payments = %d after re-merge, want 1", len(loan.PaymentHistory))
	}
}

func TestMergeInvalidDocument(t *testing.T) {
	st := store.NewMemory()
	m := NewMerger(st, testLogger())
	key := model.NoteKey{LoanID: 301, OrderID: 101, NoteID: 201}

	doc := testDocument()
	doc.Status = ""

	err := m.Merge(context.Background(), key, doc)
	var mergeErr *MergeError
	if !errors.As(err, &mergeErr) {
		t.Fatalf("Merge() error = %v, want *MergeError", err)
	}
	if mergeErr.Key != key {
		t.Errorf("MergeError key = %+v, want %+v", mergeErr.Key, key)
	}

	// Nothing was written before validation failed.
	if _, err := st.FindLoan(context.Background(), 301); err != store.ErrNotFound {
		t.Errorf("FindLoan() error = %v, want ErrNotFound", err)
	}
}

func TestMergeTouchesTimestampsLast(t *testing.T) {
	st := store.NewMemory()
	m := NewMerger(st, testLogger())
	ctx := context.Background()
	key := model.NoteKey{LoanID: 301, OrderID: 101, NoteID: 201}

	at := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return at }

	if err := m.Merge(ctx, key, testDocument()); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	note, _ := st.FindNote(ctx, 201)
	loan, _ := st.FindLoan(ctx, 301)
	if !note.LastUpdated.Equal(at) {
		t.Errorf("note last updated = %v, want %v", note.LastUpdated, at)
	}
	if !loan.LastUpdated.Equal(at) {
		t.Errorf("loan last updated = %v, want %v", loan.LastUpdated, at)
	}
}
