package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"foliosync/internal/model"
)

// snapshotResponse mirrors the inventory endpoint's JSON envelope.
type snapshotResponse struct {
	SearchResult struct {
		Loans        []listingRecord `json:"loans"`
		TotalRecords int             `json:"totalRecords"`
	} `json:"searchresult"`
}

// listingRecord is one raw snapshot row. Numeric values are kept as the
// exact text the endpoint sent, quoted or not.
type listingRecord struct {
	OrderID              rawValue `json:"orderId"`
	NoteID               rawValue `json:"noteId"`
	LoanID               rawValue `json:"loanGUID"`
	AskingPrice          rawValue `json:"asking_price"`
	MarkupDiscount       rawValue `json:"markup_discount"`
	YTM                  rawValue `json:"ytm"`
	OutstandingPrincipal rawValue `json:"outstanding_principal"`
	AccruedInterest      rawValue `json:"accrued_interest"`
	DaysSincePayment     rawValue `json:"days_since_payment"`
}

// rawValue preserves the exact decimal text of a JSON scalar.
type rawValue string

func (v *rawValue) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = rawValue(s)
		return nil
	}
	// Number, null, or bool: keep the raw text.
	*v = rawValue(b)
	return nil
}

// FetchSnapshot pulls the full current listing inventory. Any transport
// error is returned as-is: a partial snapshot is never trusted. Rows whose
// identifiers cannot be parsed are skipped and logged.
func (c *Client) FetchSnapshot(ctx context.Context) ([]model.Listing, error) {
	// Prime the session; the inventory page also re-establishes login.
	if _, err := c.fetchPage(ctx, c.baseURL+inventoryPath, noteLoginMarker); err != nil {
		return nil, fmt.Errorf("open trading inventory: %w", err)
	}

	var listings []model.Listing
	var malformed int

	for start := 0; ; start += c.pageSize {
		pageURL := fmt.Sprintf("%s%s?&sortBy=opa&dir=asc&startindex=%d&pagesize=%d",
			c.baseURL, snapshotPath, start, c.pageSize)

		body, err := c.getWithRetry(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("fetch snapshot page at %d: %w", start, err)
		}

		var resp snapshotResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode snapshot page at %d: %w", start, err)
		}

		for _, rec := range resp.SearchResult.Loans {
			l, err := rec.toListing()
			if err != nil {
				malformed++
				c.logger.Warn("skipping malformed snapshot row", "err", err)
				continue
			}
			listings = append(listings, l)
		}

		if len(resp.SearchResult.Loans) < c.pageSize {
			break
		}
	}

	c.logger.Info("snapshot fetched",
		"listings", len(listings),
		"malformed", malformed,
	)
	return listings, nil
}

func (rec listingRecord) toListing() (model.Listing, error) {
	orderID, err := strconv.ParseInt(string(rec.OrderID), 10, 64)
	if err != nil {
		return model.Listing{}, fmt.Errorf("parse order id %q: %w", rec.OrderID, err)
	}
	noteID, err := strconv.ParseInt(string(rec.NoteID), 10, 64)
	if err != nil {
		return model.Listing{}, fmt.Errorf("parse note id %q: %w", rec.NoteID, err)
	}
	loanID, err := strconv.ParseInt(string(rec.LoanID), 10, 64)
	if err != nil {
		return model.Listing{}, fmt.Errorf("parse loan id %q: %w", rec.LoanID, err)
	}

	return model.Listing{
		OrderID:              orderID,
		NoteID:               noteID,
		LoanID:               loanID,
		AskingPrice:          string(rec.AskingPrice),
		MarkupDiscount:       string(rec.MarkupDiscount),
		YTM:                  string(rec.YTM),
		OutstandingPrincipal: string(rec.OutstandingPrincipal),
		AccruedInterest:      string(rec.AccruedInterest),
		DaysSincePayment:     string(rec.DaysSincePayment),
	}, nil
}

// getWithRetry fetches a URL with bounded exponential backoff. Only the
// snapshot endpoint retries; page fetches rely on the next pass instead.
func (c *Client) getWithRetry(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying snapshot request",
				"attempt", attempt,
				"backoff", backoff,
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		body, err := c.get(ctx, fullURL)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var siteErr *SiteError
		if errors.As(err, &siteErr) && !siteErr.IsRetryable() {
			return nil, err
		}
	}
	return nil, lastErr
}
