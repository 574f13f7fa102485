package marketplace

import (
	"testing"
	"time"
)

func TestTransformsApply(t *testing.T) {
	tr, err := NewTransforms()
	if err != nil {
		t.Fatalf("NewTransforms() error = %v", err)
	}

	profile, err := tr.Apply(map[string]string{
		"Amount Requested":              "$12,500.00",
		"Interest Rate":                 "13.49%",
		"Loan Length":                   "3 years (36 months)",
		"Monthly Payment":               "$424.26 / month",
		"Funding Received":              "$12,500 (100.00%)",
		"Investors":                     "83 people funded this loan",
		"Loan Grade":                    "C3",
		"Debt-to-Income (DTI)":          "17.20%",
		"Open Credit Lines":             "9",
		"Earliest Credit Line":          "11/1998",
		"Loan Submitted on":             "10/6/09 9:57 PM",
		"Months Since Last Delinquency": "n/a",
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	want := map[string]any{
		"amount_requested":              12500.0,
		"interest_rate":                 0.1349,
		"loan_length":                   36,
		"monthly_payment":               424.26,
		"funding_received":              1.0,
		"investors":                     83,
		"loan_grade":                    "C3",
		"debt_to_income_dti":            0.172,
		"open_credit_lines":             9,
		"earliest_credit_line":          time.Date(1998, time.November, 1, 0, 0, 0, 0, time.UTC),
		"loan_submitted_on":             time.Date(2009, time.October, 6, 21, 57, 0, 0, time.UTC),
		"months_since_last_delinquency": "n/a",
	}

	if len(profile) != len(want) {
		t.Fatalf("got %d profile fields, want %d: %v", len(profile), len(want), profile)
	}
	for key, wantVal := range want {
		got, ok := profile[key]
		if !ok {
			t.Errorf("profile missing key %q", key)
			continue
		}
		if got != wantVal {
			t.Errorf("profile[%q] = %v (%T), want %v (%T)", key, got, got, wantVal, wantVal)
		}
	}
}

func TestTransformsApplyUnknownHeader(t *testing.T) {
	tr, err := NewTransforms()
	if err != nil {
		t.Fatalf("NewTransforms() error = %v", err)
	}

	if _, err := tr.Apply(map[string]string{"Shoe Size": "12"}); err == nil {
		t.Fatal("Apply() = nil error for unknown header")
	}
}

func TestTransformsApplyBadValue(t *testing.T) {
	tr, err := NewTransforms()
	if err != nil {
		t.Fatalf("NewTransforms() error = %v", err)
	}

	if _, err := tr.Apply(map[string]string{"Amount Requested": "twelve grand"}); err == nil {
		t.Fatal("Apply() = nil error for unparseable value")
	}
}
