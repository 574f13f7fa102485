package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"foliosync/internal/model"
)

func day(d int) time.Time {
	return time.Date(2013, time.March, d, 0, 0, 0, 0, time.UTC)
}

func TestMemory_NoteRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.FindNote(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindNote on empty store = %v, want ErrNotFound", err)
	}

	n := &model.Note{
		NoteID:               1,
		OrderID:              10,
		LoanID:               100,
		TradingStatus:        true,
		OutstandingPrincipal: 21.33,
		AskingPrice:          []model.HistoryEntry{{Value: 25.0, ObservedAt: day(1)}},
	}
	if err := m.InsertNote(ctx, n); err != nil {
		t.Fatalf("InsertNote: %v", err)
	}

	got, err := m.FindNote(ctx, 1)
	if err != nil {
		t.Fatalf("FindNote: %v", err)
	}
	if got.LoanID != 100 || got.OutstandingPrincipal != 21.33 {
		t.Errorf("FindNote returned %+v", got)
	}

	// Mutating the returned copy must not touch stored state.
	got.AskingPrice[0].Value = 999
	again, _ := m.FindNote(ctx, 1)
	if again.AskingPrice[0].Value != 25.0 {
		t.Error("FindNote returned shared state, want deep copy")
	}
}

func TestMemory_AppendHistoryAndVolatile(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.InsertNote(ctx, &model.Note{NoteID: 5}); err != nil {
		t.Fatal(err)
	}
	if err := m.AppendNoteHistory(ctx, 5, model.FieldYTM, model.HistoryEntry{Value: 0.12, ObservedAt: day(1)}); err != nil {
		t.Fatal(err)
	}
	if err := m.AppendNoteHistory(ctx, 5, model.FieldYTM, model.HistoryEntry{Value: 0.14, ObservedAt: day(2)}); err != nil {
		t.Fatal(err)
	}
	if err := m.SetNoteVolatile(ctx, 5, map[model.VolatileField]float64{
		model.FieldAccruedInterest:  0.44,
		model.FieldDaysSincePayment: 12,
	}); err != nil {
		t.Fatal(err)
	}

	n, _ := m.FindNote(ctx, 5)
	if len(n.YTM) != 2 || n.YTM[1].Value != 0.14 {
		t.Errorf("YTM history = %+v, want two entries ending 0.14", n.YTM)
	}
	if n.AccruedInterest != 0.44 || n.DaysSincePayment != 12 {
		t.Errorf("volatile fields = %v/%v, want 0.44/12", n.AccruedInterest, n.DaysSincePayment)
	}
}

func TestMemory_SetAddDeduplicates(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	pay := model.Payment{
		DueDate: day(1), CompletionDate: day(3),
		Amount: 1.11, Principal: 0.80, Interest: 0.31, Status: "Completed - on time",
	}
	coll := model.CollectionEntry{Date: day(4), Description: "Borrower contacted"}
	credit := model.CreditScoreEntry{Range: "714-749", Date: day(5)}
	ref := model.NoteRef{NoteID: 7, LoanFraction: 0.1}

	for i := 0; i < 2; i++ {
		if err := m.AddNotePayments(ctx, 7, []model.Payment{pay}); err != nil {
			t.Fatal(err)
		}
		if err := m.AddLoanCollections(ctx, 70, []model.CollectionEntry{coll}); err != nil {
			t.Fatal(err)
		}
		if err := m.AddLoanCreditHistory(ctx, 70, []model.CreditScoreEntry{credit}); err != nil {
			t.Fatal(err)
		}
		if err := m.AddLoanNote(ctx, 70, ref); err != nil {
			t.Fatal(err)
		}
		if err := m.AddLoanPayments(ctx, 70, []model.Payment{pay}); err != nil {
			t.Fatal(err)
		}
	}

	n, err := m.FindNote(ctx, 7)
	if err != nil {
		t.Fatalf("set-add should have created the note shell: %v", err)
	}
	if len(n.PaymentHistory) != 1 {
		t.Errorf("note payments = %d, want 1", len(n.PaymentHistory))
	}

	l, err := m.FindLoan(ctx, 70)
	if err != nil {
		t.Fatalf("set-add should have created the loan: %v", err)
	}
	if len(l.CollectionLog) != 1 || len(l.CreditScoreHistory) != 1 ||
		len(l.Notes) != 1 || len(l.PaymentHistory) != 1 {
		t.Errorf("loan sets = %d/%d/%d/%d, want all 1",
			len(l.CollectionLog), len(l.CreditScoreHistory), len(l.Notes), len(l.PaymentHistory))
	}

	// Distinct entry still gets added.
	pay2 := pay
	pay2.Amount = 2.22
	if err := m.AddLoanPayments(ctx, 70, []model.Payment{pay2}); err != nil {
		t.Fatal(err)
	}
	l, _ = m.FindLoan(ctx, 70)
	if len(l.PaymentHistory) != 2 {
		t.Errorf("loan payments after distinct add = %d, want 2", len(l.PaymentHistory))
	}
}

func TestMemory_TouchAndStatus(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	at := day(9)
	if err := m.TouchLoan(ctx, 3, at); err != nil {
		t.Fatal(err)
	}
	if err := m.SetLoanStatus(ctx, 3, "Late (31-120 days)"); err != nil {
		t.Fatal(err)
	}
	if err := m.TouchNote(ctx, 30, at); err != nil {
		t.Fatal(err)
	}

	l, _ := m.FindLoan(ctx, 3)
	if !l.LastUpdated.Equal(at) || l.Status != "Late (31-120 days)" {
		t.Errorf("loan = %+v", l)
	}
	n, _ := m.FindNote(ctx, 30)
	if !n.LastUpdated.Equal(at) {
		t.Errorf("note LastUpdated = %v, want %v", n.LastUpdated, at)
	}
}

func TestMemory_LoansMissingProfile(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.InsertNote(ctx, &model.Note{NoteID: 1, LoanID: 100})
	m.InsertNote(ctx, &model.Note{NoteID: 2, LoanID: 100})
	m.InsertNote(ctx, &model.Note{NoteID: 3, LoanID: 200})

	ids, err := m.LoansMissingProfile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("missing profiles = %v, want 2 loans", ids)
	}

	if err := m.SetLoanProfile(ctx, 100, model.LoanProfile{"loan_purpose": "debt_consolidation"}); err != nil {
		t.Fatal(err)
	}
	ids, _ = m.LoansMissingProfile(ctx)
	if len(ids) != 1 || ids[0] != 200 {
		t.Errorf("missing profiles after store = %v, want [200]", ids)
	}
}
