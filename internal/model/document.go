package model

import (
	"errors"
	"fmt"
)

// Document is a fully parsed note detail page for one note key. It is built
// once by a parser from validated inputs and read by the merge engine; merge
// steps never mutate it.
type Document struct {
	Status       string
	LoanFraction float64
	LoanAmount   float64

	Summary NoteSummary

	PaymentHistory     []Payment
	CreditScoreHistory []CreditScoreEntry
	CollectionLog      []CollectionEntry
}

// Validate reports whether the document carries every field a merge
// requires. A document failing validation aborts the merge for its key only.
func (d Document) Validate() error {
	if d.Status == "" {
		return errors.New("document missing status")
	}
	if d.LoanFraction <= 0 {
		return fmt.Errorf("document has invalid loan fraction %v", d.LoanFraction)
	}
	if d.LoanAmount <= 0 {
		return fmt.Errorf("document has invalid loan amount %v", d.LoanAmount)
	}
	return nil
}
