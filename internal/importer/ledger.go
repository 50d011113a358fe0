package importer

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is the committed form of a candidate once appended. Ids are
// assigned by the ledger; the append contract is strictly additive.
type LedgerEntry struct {
	ID          int64
	Owner       string
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Category    string
	Vendor      string
	Notes       string
}

// Ledger is the persistent store the pipeline commits into. The pipeline
// only appends; reads serve the detectors.
type Ledger interface {
	// AppendBatch commits rows for owner in a single batch and returns the
	// committed count. Either all rows land or none do.
	AppendBatch(ctx context.Context, owner string, rows []TransactionCandidate) (int, error)

	// HistoricalAmounts returns the amounts of owner's committed entries in
	// the given category, for anomaly statistics.
	HistoricalAmounts(ctx context.Context, owner, category string) ([]decimal.Decimal, error)

	// Query returns owner's committed entries with the exact amount and a
	// date inside [from, to], for external duplicate matching.
	Query(ctx context.Context, owner string, from, to time.Time, amount decimal.Decimal) ([]LedgerEntry, error)
}

// ActivityRecorder records pipeline actions for the owner's activity
// timeline. Recording failures are logged, never surfaced.
type ActivityRecorder interface {
	Record(ctx context.Context, owner, action, details string)
}
