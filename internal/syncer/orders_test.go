package syncer

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"foliosync/internal/model"
	"foliosync/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testListing() model.Listing {
	return model.Listing{
		OrderID:              101,
		NoteID:               201,
		LoanID:               301,
		AskingPrice:          "100.00",
		MarkupDiscount:       "0.50",
		YTM:                  "12.34",
		OutstandingPrincipal: "95.00",
		AccruedInterest:      "0.42",
		DaysSincePayment:     "12",
	}
}

func TestOrderSyncCreate(t *testing.T) {
	st := store.NewMemory()
	s := NewOrderSync(st, testLogger())

	results, err := s.Sync(context.Background(), []model.Listing{testListing()})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if !r.Created || r.Err != nil {
		t.Fatalf("result = %+v, want created without error", r)
	}
	if !r.Changed {
		t.Error("a newly created note must be selected for a detail fetch")
	}

	note, err := st.FindNote(context.Background(), 201)
	if err != nil {
		t.Fatalf("FindNote() error = %v", err)
	}
	if note.OrderID != 101 || note.LoanID != 301 {
		t.Errorf("note ids = %d/%d", note.OrderID, note.LoanID)
	}
	if !note.TradingStatus {
		t.Error("new note should be marked trading")
	}
	for _, f := range model.HistoryFields {
		if got := len(note.History(f)); got != 1 {
			t.Errorf("%s history length = %d, want 1", f, got)
		}
	}
	if note.AskingPrice[0].Value != 100.00 {
		t.Errorf("initial asking price = %v", note.AskingPrice[0].Value)
	}
	if note.OutstandingPrincipal != 95.00 || note.AccruedInterest != 0.42 || note.DaysSincePayment != 12 {
		t.Errorf("volatile fields = %v/%v/%v",
			note.OutstandingPrincipal, note.AccruedInterest, note.DaysSincePayment)
	}
}

func TestOrderSyncUnchangedValueAppendsNothing(t *testing.T) {
	st := store.NewMemory()
	s := NewOrderSync(st, testLogger())
	ctx := context.Background()

	if _, err := s.Sync(ctx, []model.Listing{testListing()}); err != nil {
		t.Fatalf("initial Sync() error = %v", err)
	}

	results, err := s.Sync(ctx, []model.Listing{testListing()})
	if err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	if r := results[0]; r.Created || r.Changed || r.Err != nil {
		t.Fatalf("result = %+v, want unchanged update", r)
	}

	note, _ := st.FindNote(ctx, 201)
	if len(note.AskingPrice) != 1 {
		t.Errorf("asking price history length = %d, want 1 (no duplicate append)", len(note.AskingPrice))
	}
}

func TestOrderSyncPriceChangeAppendsOnce(t *testing.T) {
	st := store.NewMemory()
	s := NewOrderSync(st, testLogger())
	ctx := context.Background()

	if _, err := s.Sync(ctx, []model.Listing{testListing()}); err != nil {
		t.Fatalf("initial Sync() error = %v", err)
	}

	l := testListing()
	l.AskingPrice = "99.50"
	results, err := s.Sync(ctx, []model.Listing{l})
	if err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	if !results[0].Changed {
		t.Error("price change must mark the record changed")
	}

	note, _ := st.FindNote(ctx, 201)
	if len(note.AskingPrice) != 2 {
		t.Fatalf("asking price history length = %d, want 2", len(note.AskingPrice))
	}
	if got := note.AskingPrice[1].Value; got != 99.50 {
		t.Errorf("appended value = %v, want 99.50", got)
	}
	if len(note.YTM) != 1 {
		t.Errorf("ytm history length = %d, want 1 (unchanged)", len(note.YTM))
	}
}

func TestOrderSyncVolatileChange(t *testing.T) {
	st := store.NewMemory()
	s := NewOrderSync(st, testLogger())
	ctx := context.Background()

	if _, err := s.Sync(ctx, []model.Listing{testListing()}); err != nil {
		t.Fatalf("initial Sync() error = %v", err)
	}

	l := testListing()
	l.OutstandingPrincipal = "90.00"
	results, err := s.Sync(ctx, []model.Listing{l})
	if err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	if !results[0].Changed {
		t.Error("outstanding principal change must mark the record changed")
	}

	note, _ := st.FindNote(ctx, 201)
	if note.OutstandingPrincipal != 90.00 {
		t.Errorf("outstanding principal = %v, want 90.00", note.OutstandingPrincipal)
	}
	if len(note.AskingPrice) != 1 {
		t.Errorf("asking price history grew on a volatile-only change")
	}
}

func TestOrderSyncCoercionFailureSkipsField(t *testing.T) {
	st := store.NewMemory()
	s := NewOrderSync(st, testLogger())
	ctx := context.Background()

	if _, err := s.Sync(ctx, []model.Listing{testListing()}); err != nil {
		t.Fatalf("initial Sync() error = %v", err)
	}

	l := testListing()
	l.YTM = "--"
	l.AskingPrice = "98.00"
	results, err := s.Sync(ctx, []model.Listing{l})
	if err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	r := results[0]
	if r.Err != nil {
		t.Fatalf("result error = %v, want field-level skip only", r.Err)
	}
	if r.SkippedFields != 1 {
		t.Errorf("SkippedFields = %d, want 1", r.SkippedFields)
	}

	// The rest of the record still updates.
	note, _ := st.FindNote(ctx, 201)
	if len(note.AskingPrice) != 2 {
		t.Errorf("asking price history length = %d, want 2", len(note.AskingPrice))
	}
	if len(note.YTM) != 1 {
		t.Errorf("ytm history length = %d, want 1 (bad value skipped)", len(note.YTM))
	}
}

func TestOrderSyncVolatileCoercionFailureFailsOpen(t *testing.T) {
	st := store.NewMemory()
	s := NewOrderSync(st, testLogger())
	ctx := context.Background()

	if _, err := s.Sync(ctx, []model.Listing{testListing()}); err != nil {
		t.Fatalf("initial Sync() error = %v", err)
	}

	l := testListing()
	l.DaysSincePayment = "n/a"
	results, err := s.Sync(ctx, []model.Listing{l})
	if err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	r := results[0]
	if !r.Changed {
		t.Error("uncomparable volatile field must fail open to a refetch")
	}
	if r.SkippedFields != 1 {
		t.Errorf("SkippedFields = %d, want 1", r.SkippedFields)
	}

	note, _ := st.FindNote(ctx, 201)
	if note.DaysSincePayment != 12 {
		t.Errorf("days since payment = %v, want stored value kept", note.DaysSincePayment)
	}
}

func TestOrderSyncCreateBadRecord(t *testing.T) {
	st := store.NewMemory()
	s := NewOrderSync(st, testLogger())

	l := testListing()
	l.MarkupDiscount = "half a point"
	results, err := s.Sync(context.Background(), []model.Listing{l})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if results[0].Err == nil {
		t.Fatal("result error = nil, want create rejection")
	}

	if _, err := st.FindNote(context.Background(), 201); err != store.ErrNotFound {
		t.Errorf("FindNote() error = %v, want ErrNotFound (no partial note)", err)
	}
}
