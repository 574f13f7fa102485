package marketplace

import (
	"context"
	"errors"
	"fmt"

	"foliosync/internal/model"
)

// DocumentParser extracts a parsed detail document from a fetched note
// page. Page layout knowledge lives entirely behind this interface.
type DocumentParser interface {
	ParseNotePage(page []byte) (model.Document, error)
}

// ProfileParser extracts raw header/value pairs from a fetched loan page.
// Values are transformed into typed profile fields by the registry.
type ProfileParser interface {
	ParseLoanPage(page []byte) (map[string]string, error)
}

// FetchDetails fetches and parses the note detail page for each key. A key
// absent from the result failed to fetch or parse; only authentication
// failures and cancellation abort the whole batch.
func (c *Client) FetchDetails(ctx context.Context, keys []model.NoteKey) (map[model.NoteKey]model.Document, error) {
	if c.parser == nil {
		return nil, errors.New("marketplace: no document parser configured")
	}

	docs := make(map[model.NoteKey]model.Document, len(keys))
	for _, key := range keys {
		page, err := c.fetchPage(ctx, c.notePageURL(key), noteLoginMarker)
		if err != nil {
			if errors.Is(err, ErrAuth) || ctx.Err() != nil {
				return nil, err
			}
			c.logger.Warn("note page fetch failed",
				"loan_id", key.LoanID,
				"order_id", key.OrderID,
				"note_id", key.NoteID,
				"err", err,
			)
			continue
		}

		doc, err := c.parser.ParseNotePage(page)
		if err != nil {
			c.logger.Warn("note page parse failed",
				"loan_id", key.LoanID,
				"order_id", key.OrderID,
				"note_id", key.NoteID,
				"err", err,
			)
			continue
		}
		docs[key] = doc
	}
	return docs, nil
}

// FetchProfiles fetches and parses the static loan page for each loan ID.
// A missing entry signals a per-loan fetch or parse failure.
func (c *Client) FetchProfiles(ctx context.Context, loanIDs []int64) (map[int64]model.LoanProfile, error) {
	if c.profiles == nil {
		return nil, errors.New("marketplace: no profile parser configured")
	}

	profiles := make(map[int64]model.LoanProfile, len(loanIDs))
	for _, loanID := range loanIDs {
		pageURL := fmt.Sprintf("%s%s?loan_id=%d", c.baseURL, loanPagePath, loanID)
		page, err := c.fetchPage(ctx, pageURL, loanLoginMarker)
		if err != nil {
			if errors.Is(err, ErrAuth) || ctx.Err() != nil {
				return nil, err
			}
			c.logger.Warn("loan page fetch failed", "loan_id", loanID, "err", err)
			continue
		}

		raw, err := c.profiles.ParseLoanPage(page)
		if err != nil {
			c.logger.Warn("loan page parse failed", "loan_id", loanID, "err", err)
			continue
		}

		profile, err := c.transforms.Apply(raw)
		if err != nil {
			c.logger.Warn("loan page transform failed", "loan_id", loanID, "err", err)
			continue
		}
		profiles[loanID] = profile
	}
	return profiles, nil
}

func (c *Client) notePageURL(key model.NoteKey) string {
	return fmt.Sprintf("%s%s?loan_id=%d&order_id=%d&note_id=%d",
		c.baseURL, notePagePath, key.LoanID, key.OrderID, key.NoteID)
}
