package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"foliosync/internal/model"
	"foliosync/internal/store"
)

// ProfileFetcher fetches and parses static loan pages. A loan ID absent
// from the result failed individually.
type ProfileFetcher interface {
	FetchProfiles(ctx context.Context, loanIDs []int64) (map[int64]model.LoanProfile, error)
}

// ProfileReport summarizes one profile crawl.
type ProfileReport struct {
	Missing int
	Stored  int
	Failed  int
}

// ProfileCrawl backfills static loan profiles. Loan pages never change,
// so each loan is crawled once; a loan stays in the missing set until its
// profile stores successfully.
type ProfileCrawl struct {
	store     store.Store
	fetcher   ProfileFetcher
	logger    *slog.Logger
	batchSize int
}

// NewProfileCrawl creates a profile crawler.
func NewProfileCrawl(st store.Store, fetcher ProfileFetcher, batchSize int, logger *slog.Logger) *ProfileCrawl {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &ProfileCrawl{
		store:     st,
		fetcher:   fetcher,
		logger:    logger,
		batchSize: batchSize,
	}
}

// Run fetches and stores profiles for every loan that has none yet.
func (p *ProfileCrawl) Run(ctx context.Context) (*ProfileReport, error) {
	loanIDs, err := p.store.LoansMissingProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("list loans missing profile: %w", err)
	}

	report := &ProfileReport{Missing: len(loanIDs)}
	if len(loanIDs) == 0 {
		return report, nil
	}
	p.logger.Info("profile crawl starting", "missing", len(loanIDs))

	for start := 0; start < len(loanIDs); start += p.batchSize {
		end := min(start+p.batchSize, len(loanIDs))
		batch := loanIDs[start:end]

		profiles, err := p.fetcher.FetchProfiles(ctx, batch)
		if err != nil {
			return report, fmt.Errorf("fetch profiles: %w", err)
		}

		for _, loanID := range batch {
			profile, ok := profiles[loanID]
			if !ok {
				report.Failed++
				continue
			}
			if err := p.store.SetLoanProfile(ctx, loanID, profile); err != nil {
				report.Failed++
				p.logger.Warn("profile store failed", "loan_id", loanID, "err", err)
				continue
			}
			report.Stored++
		}
	}

	p.logger.Info("profile crawl done",
		"missing", report.Missing,
		"stored", report.Stored,
		"failed", report.Failed,
	)
	return report, nil
}
