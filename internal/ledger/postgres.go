// Package ledger persists committed transactions and the activity timeline
// in Postgres. It is the only durable store in the service; everything else
// is rebuildable from an upload.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cashlens/cashlens/internal/importer"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS transactions (
	id          BIGSERIAL PRIMARY KEY,
	owner       TEXT        NOT NULL,
	date        DATE        NOT NULL,
	description TEXT        NOT NULL,
	amount      NUMERIC(16,2) NOT NULL,
	category    TEXT        NOT NULL DEFAULT '',
	vendor      TEXT        NOT NULL DEFAULT '',
	notes       TEXT        NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_transactions_owner_category
	ON transactions (owner, category);

CREATE INDEX IF NOT EXISTS idx_transactions_owner_date_amount
	ON transactions (owner, date, amount);

CREATE TABLE IF NOT EXISTS activity_log (
	id         BIGSERIAL PRIMARY KEY,
	owner      TEXT        NOT NULL,
	action     TEXT        NOT NULL,
	details    TEXT        NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_activity_log_owner_created
	ON activity_log (owner, created_at DESC);
`

// Store is the Postgres-backed ledger.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps an existing connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the tables and indexes if they do not exist.
// Idempotent; called once at startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// AppendBatch inserts all rows inside one transaction, so a mid-batch
// failure commits nothing and the caller can retry the whole batch.
func (s *Store) AppendBatch(ctx context.Context, owner string, rows []importer.TransactionCandidate) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(
			`INSERT INTO transactions (owner, date, description, amount, category, vendor, notes)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			owner, r.Date, r.Description, r.Amount.String(), r.Category, r.Vendor, r.Notes,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range rows {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return 0, fmt.Errorf("insert transaction: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return len(rows), nil
}

// HistoricalAmounts returns every committed amount for the owner/category
// pair, oldest first so the statistics are order-stable.
func (s *Store) HistoricalAmounts(ctx context.Context, owner, category string) ([]decimal.Decimal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT amount::text FROM transactions
		 WHERE owner = $1 AND category = $2
		 ORDER BY date, id`,
		owner, category,
	)
	if err != nil {
		return nil, fmt.Errorf("query historical amounts: %w", err)
	}
	defer rows.Close()

	var amounts []decimal.Decimal
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan amount: %w", err)
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("decode amount %q: %w", raw, err)
		}
		amounts = append(amounts, d)
	}
	return amounts, rows.Err()
}

// Query returns the owner's committed entries with the exact amount and a
// date inside [from, to].
func (s *Store) Query(ctx context.Context, owner string, from, to time.Time, amount decimal.Decimal) ([]importer.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner, date, description, amount::text, category, vendor, notes
		 FROM transactions
		 WHERE owner = $1 AND date BETWEEN $2 AND $3 AND amount = $4
		 ORDER BY date, id`,
		owner, from, to, amount.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var entries []importer.LedgerEntry
	for rows.Next() {
		var (
			e   importer.LedgerEntry
			raw string
		)
		if err := rows.Scan(&e.ID, &e.Owner, &e.Date, &e.Description, &raw, &e.Category, &e.Vendor, &e.Notes); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		e.Amount, err = decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("decode amount %q: %w", raw, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ActivityLog records pipeline actions in the activity_log table. Failures
// are logged and swallowed; the timeline is best effort.
type ActivityLog struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewActivityLog wraps the pool for activity recording.
func NewActivityLog(pool *pgxpool.Pool, logger *slog.Logger) *ActivityLog {
	return &ActivityLog{pool: pool, logger: logger}
}

// Record inserts one timeline entry.
func (a *ActivityLog) Record(ctx context.Context, owner, action, details string) {
	_, err := a.pool.Exec(ctx,
		`INSERT INTO activity_log (owner, action, details) VALUES ($1, $2, $3)`,
		owner, action, details,
	)
	if err != nil {
		a.logger.Warn("activity record failed", "owner", owner, "action", action, "error", err)
	}
}

// Recent returns the owner's latest timeline entries, newest first.
func (a *ActivityLog) Recent(ctx context.Context, owner string, limit int) ([]ActivityEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := a.pool.Query(ctx,
		`SELECT id, action, details, created_at FROM activity_log
		 WHERE owner = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		owner, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query activity log: %w", err)
	}
	defer rows.Close()

	var entries []ActivityEntry
	for rows.Next() {
		var e ActivityEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ActivityEntry is one row of the activity timeline.
type ActivityEntry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}
