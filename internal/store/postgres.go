package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"foliosync/internal/model"
)

// Postgres is the production Store backend.
//
// Histories and sub-document sets live in side tables; unique indexes over
// the full row values make INSERT ... ON CONFLICT DO NOTHING behave as
// set-add-without-duplicate, and every upsert targets a single row, so each
// method is atomic at the document level.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing connection pool and ensures the schema.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	p := &Postgres{pool: pool}
	if err := p.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS notes (
			note_id               BIGINT PRIMARY KEY,
			order_id              BIGINT NOT NULL DEFAULT 0,
			loan_id               BIGINT NOT NULL DEFAULT 0,
			trading_status        BOOLEAN NOT NULL DEFAULT TRUE,
			outstanding_principal DOUBLE PRECISION NOT NULL DEFAULT 0,
			accrued_interest      DOUBLE PRECISION NOT NULL DEFAULT 0,
			days_since_payment    DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_payment          DOUBLE PRECISION NOT NULL DEFAULT 0,
			payments_to_date      DOUBLE PRECISION NOT NULL DEFAULT 0,
			principal             DOUBLE PRECISION NOT NULL DEFAULT 0,
			interest              DOUBLE PRECISION NOT NULL DEFAULT 0,
			late_fees_received    DOUBLE PRECISION NOT NULL DEFAULT 0,
			next_payment          DOUBLE PRECISION NOT NULL DEFAULT 0,
			remaining_payments    DOUBLE PRECISION NOT NULL DEFAULT 0,
			summary_outstanding   DOUBLE PRECISION NOT NULL DEFAULT 0,
			expected_final_payment TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
			last_updated          TIMESTAMPTZ NOT NULL DEFAULT 'epoch'
		);

		CREATE TABLE IF NOT EXISTS note_history (
			note_id     BIGINT NOT NULL,
			field       TEXT NOT NULL,
			value       DOUBLE PRECISION NOT NULL,
			observed_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_note_history
			ON note_history (note_id, field, observed_at);

		CREATE TABLE IF NOT EXISTS note_payments (
			note_id           BIGINT NOT NULL,
			due_date          TIMESTAMPTZ NOT NULL,
			completion_date   TIMESTAMPTZ NOT NULL,
			amount            DOUBLE PRECISION NOT NULL,
			principal         DOUBLE PRECISION NOT NULL,
			interest          DOUBLE PRECISION NOT NULL,
			late_fees         DOUBLE PRECISION NOT NULL,
			principal_balance DOUBLE PRECISION NOT NULL,
			status            TEXT NOT NULL,
			UNIQUE (note_id, due_date, completion_date, amount, principal,
			        interest, late_fees, principal_balance, status)
		);

		CREATE TABLE IF NOT EXISTS loans (
			loan_id      BIGINT PRIMARY KEY,
			status       TEXT NOT NULL DEFAULT '',
			profile      JSONB,
			last_updated TIMESTAMPTZ NOT NULL DEFAULT 'epoch'
		);

		CREATE TABLE IF NOT EXISTS loan_collections (
			loan_id      BIGINT NOT NULL,
			collected_at TIMESTAMPTZ NOT NULL,
			description  TEXT NOT NULL,
			UNIQUE (loan_id, collected_at, description)
		);

		CREATE TABLE IF NOT EXISTS loan_credit_history (
			loan_id     BIGINT NOT NULL,
			score_range TEXT NOT NULL,
			observed_on TIMESTAMPTZ NOT NULL,
			UNIQUE (loan_id, score_range, observed_on)
		);

		CREATE TABLE IF NOT EXISTS loan_notes (
			loan_id       BIGINT NOT NULL,
			note_id       BIGINT NOT NULL,
			loan_fraction DOUBLE PRECISION NOT NULL,
			UNIQUE (loan_id, note_id, loan_fraction)
		);

		CREATE TABLE IF NOT EXISTS loan_payments (
			loan_id           BIGINT NOT NULL,
			due_date          TIMESTAMPTZ NOT NULL,
			completion_date   TIMESTAMPTZ NOT NULL,
			amount            DOUBLE PRECISION NOT NULL,
			principal         DOUBLE PRECISION NOT NULL,
			interest          DOUBLE PRECISION NOT NULL,
			late_fees         DOUBLE PRECISION NOT NULL,
			principal_balance DOUBLE PRECISION NOT NULL,
			status            TEXT NOT NULL,
			UNIQUE (loan_id, due_date, completion_date, amount, principal,
			        interest, late_fees, principal_balance, status)
		);
	`)
	return err
}

func (p *Postgres) FindNote(ctx context.Context, noteID int64) (*model.Note, error) {
	n := &model.Note{}
	err := p.pool.QueryRow(ctx, `
		SELECT note_id, order_id, loan_id, trading_status,
		       outstanding_principal, accrued_interest, days_since_payment,
		       last_payment, payments_to_date, principal, interest,
		       late_fees_received, next_payment, remaining_payments,
		       summary_outstanding, expected_final_payment, last_updated
		FROM notes WHERE note_id = $1
	`, noteID).Scan(
		&n.NoteID, &n.OrderID, &n.LoanID, &n.TradingStatus,
		&n.OutstandingPrincipal, &n.AccruedInterest, &n.DaysSincePayment,
		&n.Summary.LastPayment, &n.Summary.PaymentsToDate, &n.Summary.Principal,
		&n.Summary.Interest, &n.Summary.LateFeesReceived, &n.Summary.NextPayment,
		&n.Summary.RemainingPayments, &n.Summary.OutstandingPrincipal,
		&n.Summary.ExpectedFinalPayment, &n.LastUpdated,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find note %d: %w", noteID, err)
	}

	if err := p.loadNoteHistory(ctx, n); err != nil {
		return nil, err
	}
	payments, err := p.loadPayments(ctx, "note_payments", "note_id", noteID)
	if err != nil {
		return nil, err
	}
	n.PaymentHistory = payments
	return n, nil
}

func (p *Postgres) loadNoteHistory(ctx context.Context, n *model.Note) error {
	rows, err := p.pool.Query(ctx, `
		SELECT field, value, observed_at
		FROM note_history WHERE note_id = $1
		ORDER BY observed_at
	`, n.NoteID)
	if err != nil {
		return fmt.Errorf("load history for note %d: %w", n.NoteID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var field string
		var e model.HistoryEntry
		if err := rows.Scan(&field, &e.Value, &e.ObservedAt); err != nil {
			return fmt.Errorf("scan history row: %w", err)
		}
		switch model.HistoryField(field) {
		case model.FieldAskingPrice:
			n.AskingPrice = append(n.AskingPrice, e)
		case model.FieldMarkupDiscount:
			n.MarkupDiscount = append(n.MarkupDiscount, e)
		case model.FieldYTM:
			n.YTM = append(n.YTM, e)
		}
	}
	return rows.Err()
}

func (p *Postgres) loadPayments(ctx context.Context, table, idCol string, id int64) ([]model.Payment, error) {
	rows, err := p.pool.Query(ctx, fmt.Sprintf(`
		SELECT due_date, completion_date, amount, principal, interest,
		       late_fees, principal_balance, status
		FROM %s WHERE %s = $1
		ORDER BY due_date
	`, table, idCol), id)
	if err != nil {
		return nil, fmt.Errorf("load payments from %s: %w", table, err)
	}
	defer rows.Close()

	var payments []model.Payment
	for rows.Next() {
		var pay model.Payment
		if err := rows.Scan(
			&pay.DueDate, &pay.CompletionDate, &pay.Amount, &pay.Principal,
			&pay.Interest, &pay.LateFees, &pay.PrincipalBalance, &pay.Status,
		); err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, pay)
	}
	return payments, rows.Err()
}

func (p *Postgres) InsertNote(ctx context.Context, n *model.Note) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO notes (note_id, order_id, loan_id, trading_status,
		                   outstanding_principal, accrued_interest, days_since_payment)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (note_id) DO UPDATE SET
			order_id = EXCLUDED.order_id,
			loan_id = EXCLUDED.loan_id,
			trading_status = EXCLUDED.trading_status,
			outstanding_principal = EXCLUDED.outstanding_principal,
			accrued_interest = EXCLUDED.accrued_interest,
			days_since_payment = EXCLUDED.days_since_payment
	`, n.NoteID, n.OrderID, n.LoanID, n.TradingStatus,
		n.OutstandingPrincipal, n.AccruedInterest, n.DaysSincePayment)
	if err != nil {
		return fmt.Errorf("insert note %d: %w", n.NoteID, err)
	}

	for _, field := range model.HistoryFields {
		for _, e := range n.History(field) {
			if err := p.AppendNoteHistory(ctx, n.NoteID, field, e); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Postgres) SetNoteVolatile(ctx context.Context, noteID int64, fields map[model.VolatileField]float64) error {
	// Fixed column set; fields outside it are ignored.
	for f, v := range fields {
		var col string
		switch f {
		case model.FieldOutstandingPrincipal:
			col = "outstanding_principal"
		case model.FieldAccruedInterest:
			col = "accrued_interest"
		case model.FieldDaysSincePayment:
			col = "days_since_payment"
		default:
			continue
		}
		_, err := p.pool.Exec(ctx, fmt.Sprintf(`
			INSERT INTO notes (note_id, %s) VALUES ($1, $2)
			ON CONFLICT (note_id) DO UPDATE SET %s = EXCLUDED.%s
		`, col, col, col), noteID, v)
		if err != nil {
			return fmt.Errorf("set note %d %s: %w", noteID, col, err)
		}
	}
	return nil
}

func (p *Postgres) AppendNoteHistory(ctx context.Context, noteID int64, field model.HistoryField, e model.HistoryEntry) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO note_history (note_id, field, value, observed_at)
		VALUES ($1, $2, $3, $4)
	`, noteID, string(field), e.Value, e.ObservedAt)
	if err != nil {
		return fmt.Errorf("append history note %d %s: %w", noteID, field, err)
	}
	return nil
}

func (p *Postgres) SetNoteSummary(ctx context.Context, noteID int64, s model.NoteSummary) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO notes (note_id, last_payment, payments_to_date, principal,
		                   interest, late_fees_received, next_payment,
		                   remaining_payments, summary_outstanding,
		                   expected_final_payment)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (note_id) DO UPDATE SET
			last_payment = EXCLUDED.last_payment,
			payments_to_date = EXCLUDED.payments_to_date,
			principal = EXCLUDED.principal,
			interest = EXCLUDED.interest,
			late_fees_received = EXCLUDED.late_fees_received,
			next_payment = EXCLUDED.next_payment,
			remaining_payments = EXCLUDED.remaining_payments,
			summary_outstanding = EXCLUDED.summary_outstanding,
			expected_final_payment = EXCLUDED.expected_final_payment
	`, noteID, s.LastPayment, s.PaymentsToDate, s.Principal, s.Interest,
		s.LateFeesReceived, s.NextPayment, s.RemainingPayments,
		s.OutstandingPrincipal, s.ExpectedFinalPayment)
	if err != nil {
		return fmt.Errorf("set note %d summary: %w", noteID, err)
	}
	return nil
}

func (p *Postgres) AddNotePayments(ctx context.Context, noteID int64, entries []model.Payment) error {
	return p.addPayments(ctx, "note_payments", "note_id", noteID, entries)
}

func (p *Postgres) addPayments(ctx context.Context, table, idCol string, id int64, entries []model.Payment) error {
	for _, e := range entries {
		_, err := p.pool.Exec(ctx, fmt.Sprintf(`
			INSERT INTO %s (%s, due_date, completion_date, amount, principal,
			                interest, late_fees, principal_balance, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT DO NOTHING
		`, table, idCol), id, e.DueDate, e.CompletionDate, e.Amount,
			e.Principal, e.Interest, e.LateFees, e.PrincipalBalance, e.Status)
		if err != nil {
			return fmt.Errorf("add payment to %s %d: %w", table, id, err)
		}
	}
	return nil
}

func (p *Postgres) TouchNote(ctx context.Context, noteID int64, at time.Time) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO notes (note_id, last_updated) VALUES ($1, $2)
		ON CONFLICT (note_id) DO UPDATE SET last_updated = EXCLUDED.last_updated
	`, noteID, at)
	if err != nil {
		return fmt.Errorf("touch note %d: %w", noteID, err)
	}
	return nil
}

func (p *Postgres) FindLoan(ctx context.Context, loanID int64) (*model.Loan, error) {
	l := &model.Loan{}
	var profile []byte
	err := p.pool.QueryRow(ctx, `
		SELECT loan_id, status, profile, last_updated
		FROM loans WHERE loan_id = $1
	`, loanID).Scan(&l.LoanID, &l.Status, &profile, &l.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find loan %d: %w", loanID, err)
	}

	if profile != nil {
		if err := json.Unmarshal(profile, &l.Profile); err != nil {
			return nil, fmt.Errorf("decode loan %d profile: %w", loanID, err)
		}
	}

	if err := p.loadLoanSets(ctx, l); err != nil {
		return nil, err
	}
	payments, err := p.loadPayments(ctx, "loan_payments", "loan_id", loanID)
	if err != nil {
		return nil, err
	}
	l.PaymentHistory = payments
	return l, nil
}

func (p *Postgres) loadLoanSets(ctx context.Context, l *model.Loan) error {
	rows, err := p.pool.Query(ctx, `
		SELECT collected_at, description FROM loan_collections
		WHERE loan_id = $1 ORDER BY collected_at
	`, l.LoanID)
	if err != nil {
		return fmt.Errorf("load loan %d collections: %w", l.LoanID, err)
	}
	for rows.Next() {
		var e model.CollectionEntry
		if err := rows.Scan(&e.Date, &e.Description); err != nil {
			rows.Close()
			return fmt.Errorf("scan collection row: %w", err)
		}
		l.CollectionLog = append(l.CollectionLog, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = p.pool.Query(ctx, `
		SELECT score_range, observed_on FROM loan_credit_history
		WHERE loan_id = $1 ORDER BY observed_on
	`, l.LoanID)
	if err != nil {
		return fmt.Errorf("load loan %d credit history: %w", l.LoanID, err)
	}
	for rows.Next() {
		var e model.CreditScoreEntry
		if err := rows.Scan(&e.Range, &e.Date); err != nil {
			rows.Close()
			return fmt.Errorf("scan credit row: %w", err)
		}
		l.CreditScoreHistory = append(l.CreditScoreHistory, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = p.pool.Query(ctx, `
		SELECT note_id, loan_fraction FROM loan_notes
		WHERE loan_id = $1 ORDER BY note_id
	`, l.LoanID)
	if err != nil {
		return fmt.Errorf("load loan %d notes: %w", l.LoanID, err)
	}
	for rows.Next() {
		var r model.NoteRef
		if err := rows.Scan(&r.NoteID, &r.LoanFraction); err != nil {
			rows.Close()
			return fmt.Errorf("scan note ref row: %w", err)
		}
		l.Notes = append(l.Notes, r)
	}
	rows.Close()
	return rows.Err()
}

func (p *Postgres) SetLoanStatus(ctx context.Context, loanID int64, status string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO loans (loan_id, status) VALUES ($1, $2)
		ON CONFLICT (loan_id) DO UPDATE SET status = EXCLUDED.status
	`, loanID, status)
	if err != nil {
		return fmt.Errorf("set loan %d status: %w", loanID, err)
	}
	return nil
}

func (p *Postgres) SetLoanProfile(ctx context.Context, loanID int64, prof model.LoanProfile) error {
	data, err := json.Marshal(prof)
	if err != nil {
		return fmt.Errorf("encode loan %d profile: %w", loanID, err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO loans (loan_id, profile) VALUES ($1, $2)
		ON CONFLICT (loan_id) DO UPDATE SET profile = EXCLUDED.profile
	`, loanID, data)
	if err != nil {
		return fmt.Errorf("set loan %d profile: %w", loanID, err)
	}
	return nil
}

func (p *Postgres) AddLoanCollections(ctx context.Context, loanID int64, entries []model.CollectionEntry) error {
	if err := p.ensureLoan(ctx, loanID); err != nil {
		return err
	}
	for _, e := range entries {
		_, err := p.pool.Exec(ctx, `
			INSERT INTO loan_collections (loan_id, collected_at, description)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, loanID, e.Date, e.Description)
		if err != nil {
			return fmt.Errorf("add collection to loan %d: %w", loanID, err)
		}
	}
	return nil
}

func (p *Postgres) AddLoanCreditHistory(ctx context.Context, loanID int64, entries []model.CreditScoreEntry) error {
	if err := p.ensureLoan(ctx, loanID); err != nil {
		return err
	}
	for _, e := range entries {
		_, err := p.pool.Exec(ctx, `
			INSERT INTO loan_credit_history (loan_id, score_range, observed_on)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, loanID, e.Range, e.Date)
		if err != nil {
			return fmt.Errorf("add credit entry to loan %d: %w", loanID, err)
		}
	}
	return nil
}

func (p *Postgres) AddLoanNote(ctx context.Context, loanID int64, ref model.NoteRef) error {
	if err := p.ensureLoan(ctx, loanID); err != nil {
		return err
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO loan_notes (loan_id, note_id, loan_fraction)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, loanID, ref.NoteID, ref.LoanFraction)
	if err != nil {
		return fmt.Errorf("add note ref to loan %d: %w", loanID, err)
	}
	return nil
}

func (p *Postgres) AddLoanPayments(ctx context.Context, loanID int64, entries []model.Payment) error {
	if err := p.ensureLoan(ctx, loanID); err != nil {
		return err
	}
	return p.addPayments(ctx, "loan_payments", "loan_id", loanID, entries)
}

func (p *Postgres) TouchLoan(ctx context.Context, loanID int64, at time.Time) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO loans (loan_id, last_updated) VALUES ($1, $2)
		ON CONFLICT (loan_id) DO UPDATE SET last_updated = EXCLUDED.last_updated
	`, loanID, at)
	if err != nil {
		return fmt.Errorf("touch loan %d: %w", loanID, err)
	}
	return nil
}

func (p *Postgres) LoansMissingProfile(ctx context.Context) ([]int64, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT DISTINCT n.loan_id
		FROM notes n
		LEFT JOIN loans l ON l.loan_id = n.loan_id
		WHERE l.profile IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("loans missing profile: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan loan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// ensureLoan creates the loan row if it does not exist yet, mirroring
// upsert-on-set-add semantics.
func (p *Postgres) ensureLoan(ctx context.Context, loanID int64) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO loans (loan_id) VALUES ($1)
		ON CONFLICT (loan_id) DO NOTHING
	`, loanID)
	if err != nil {
		return fmt.Errorf("ensure loan %d: %w", loanID, err)
	}
	return nil
}
