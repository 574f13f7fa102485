// Package model defines shared data types for the marketplace synchronizer.
//
// Two records persist per tradable note:
//   - Note: per-note detail record with append-only field histories
//   - Loan: aggregate record shared by every note on the same loan
//
// Conventions:
//   - Monetary values: float64 dollars, exact as parsed from source strings
//   - Dates from page parses: UTC midnight, no monotonic reading
//   - IDs: int64 (note, order, loan)
package model
