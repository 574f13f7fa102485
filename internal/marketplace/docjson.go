package marketplace

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"foliosync/internal/model"
)

// JSONDocumentParser decodes note detail pages that have already been
// reduced to the flat JSON document format (dates as M/D/YYYY strings).
// It implements both DocumentParser and ProfileParser.
type JSONDocumentParser struct{}

type noteDocument struct {
	Status       string  `json:"status"`
	LoanFraction float64 `json:"loan_fraction"`
	LoanAmount   float64 `json:"loan_amount"`

	LastPayment          float64 `json:"last_payment"`
	PaymentsToDate       float64 `json:"payments_to_date"`
	Principal            float64 `json:"principal"`
	Interest             float64 `json:"interest"`
	LateFeesReceived     float64 `json:"late_fees_received"`
	NextPayment          float64 `json:"next_payment"`
	RemainingPayments    float64 `json:"remaining_payments"`
	ExpectedFinalPayment string  `json:"expected_final_payment"`
	OutstandingPrincipal float64 `json:"outstanding_principal"`

	PaymentHistory []paymentRow `json:"payment_history"`
	CreditHistory  []creditRow  `json:"credit_score_range"`
	CollectionLog  []collectRow `json:"collection_log"`
}

type paymentRow struct {
	DueDate          string  `json:"due_date"`
	CompletionDate   string  `json:"completion_date"`
	Amount           float64 `json:"amount"`
	Principal        float64 `json:"principal"`
	Interest         float64 `json:"interest"`
	LateFees         float64 `json:"late_fees"`
	PrincipalBalance float64 `json:"principal_balance"`
	Status           string  `json:"status"`
}

type creditRow struct {
	Range string `json:"range"`
	Date  string `json:"date"`
}

type collectRow struct {
	Date        string `json:"date"`
	Description string `json:"description"`
}

// ParseNotePage decodes one note detail document.
func (JSONDocumentParser) ParseNotePage(page []byte) (model.Document, error) {
	var raw noteDocument
	if err := json.Unmarshal(page, &raw); err != nil {
		return model.Document{}, fmt.Errorf("decode note document: %w", err)
	}

	doc := model.Document{
		Status:       raw.Status,
		LoanFraction: raw.LoanFraction,
		LoanAmount:   raw.LoanAmount,
		Summary: model.NoteSummary{
			LastPayment:          raw.LastPayment,
			PaymentsToDate:       raw.PaymentsToDate,
			Principal:            raw.Principal,
			Interest:             raw.Interest,
			LateFeesReceived:     raw.LateFeesReceived,
			NextPayment:          raw.NextPayment,
			RemainingPayments:    raw.RemainingPayments,
			OutstandingPrincipal: raw.OutstandingPrincipal,
		},
	}

	if raw.ExpectedFinalPayment != "" {
		ts, err := mdyDate(raw.ExpectedFinalPayment)
		if err != nil {
			return model.Document{}, fmt.Errorf("parse expected final payment: %w", err)
		}
		doc.Summary.ExpectedFinalPayment = ts
	}

	for i, row := range raw.PaymentHistory {
		p := model.Payment{
			Amount:           row.Amount,
			Principal:        row.Principal,
			Interest:         row.Interest,
			LateFees:         row.LateFees,
			PrincipalBalance: row.PrincipalBalance,
			Status:           row.Status,
		}
		var err error
		if row.DueDate != "" {
			if p.DueDate, err = mdyDate(row.DueDate); err != nil {
				return model.Document{}, fmt.Errorf("payment row %d due date: %w", i, err)
			}
		}
		if row.CompletionDate != "" {
			if p.CompletionDate, err = mdyDate(row.CompletionDate); err != nil {
				return model.Document{}, fmt.Errorf("payment row %d completion date: %w", i, err)
			}
		}
		doc.PaymentHistory = append(doc.PaymentHistory, p)
	}

	for i, row := range raw.CreditHistory {
		ts, err := mdyDate(row.Date)
		if err != nil {
			return model.Document{}, fmt.Errorf("credit row %d date: %w", i, err)
		}
		doc.CreditScoreHistory = append(doc.CreditScoreHistory, model.CreditScoreEntry{
			Range: row.Range,
			Date:  ts,
		})
	}

	for i, row := range raw.CollectionLog {
		ts, err := mdyDate(row.Date)
		if err != nil {
			return model.Document{}, fmt.Errorf("collection row %d date: %w", i, err)
		}
		doc.CollectionLog = append(doc.CollectionLog, model.CollectionEntry{
			Date:        ts,
			Description: row.Description,
		})
	}

	return doc, nil
}

// ParseLoanPage decodes a loan page reduced to a flat header/value object.
func (JSONDocumentParser) ParseLoanPage(page []byte) (map[string]string, error) {
	var fields map[string]string
	if err := json.Unmarshal(page, &fields); err != nil {
		return nil, fmt.Errorf("decode loan document: %w", err)
	}
	return fields, nil
}

// mdyDate parses a M/D/YYYY date.
func mdyDate(s string) (time.Time, error) {
	return time.Parse("1/2/2006", strings.TrimSpace(s))
}
