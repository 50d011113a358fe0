// Package importer implements the transaction import pipeline: CSV parsing,
// categorization, anomaly and duplicate detection, ephemeral staging, and the
// confirm/cancel state machine that commits reviewed rows to the ledger.
// This package has no HTTP dependencies and can be driven by any frontend.
package importer

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionCandidate is a single row parsed from an uploaded CSV file.
// Immutable once parsed; RowIndex is the position among data rows in the
// source file and is used for error reporting and flag references.
type TransactionCandidate struct {
	RowIndex    int             `json:"row_index"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category,omitempty"`
	Vendor      string          `json:"vendor,omitempty"`
	Notes       string          `json:"notes,omitempty"`
}

// RowError describes a data row that could not be converted to a candidate.
// Row errors never abort the batch; partial success is the norm.
type RowError struct {
	Line   int    `json:"line"` // 1-indexed line number in the source file
	Raw    string `json:"raw"`
	Reason string `json:"reason"`
}

// AnomalyReason enumerates why a candidate was flagged as anomalous.
type AnomalyReason string

const (
	ReasonAmountOutlier   AnomalyReason = "amount-outlier"
	ReasonCategoryOutlier AnomalyReason = "category-outlier"
	ReasonUnusualDate     AnomalyReason = "unusual-date"
)

// AnomalyFlag marks a candidate whose amount or date deviates materially
// from the norm for its category. Attached to, not owned by, AnalysisResult.
type AnomalyFlag struct {
	RowIndex int           `json:"row_index"`
	Reason   AnomalyReason `json:"reason"`
	Score    float64       `json:"score"`
	Detail   string        `json:"detail"`
}

// DuplicateBasis describes how a duplicate pair was matched.
type DuplicateBasis string

const (
	MatchExact DuplicateBasis = "exact" // same date, normalized description, amount
	MatchFuzzy DuplicateBasis = "fuzzy" // same amount, dates within window, similar description
)

// DuplicateFlag records one matched pair. For batch-internal pairs
// MatchRowIndex references the other candidate and LedgerID is zero; for
// matches against the existing ledger MatchRowIndex is -1 and LedgerID is set.
// Pairs are symmetric and reported once; a candidate may appear in several.
type DuplicateFlag struct {
	RowIndex      int            `json:"row_index"`
	MatchRowIndex int            `json:"match_row_index"`
	LedgerID      int64          `json:"ledger_id,omitempty"`
	Basis         DuplicateBasis `json:"basis"`
	Similarity    float64        `json:"similarity"`
}

// Summary holds the batch totals. TotalExpenses carries the sign of its
// rows (zero or negative), so TotalRevenue plus TotalExpenses always
// equals Net.
type Summary struct {
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	Net           decimal.Decimal `json:"net"`
}

// AnalysisResult is the full analysis of one uploaded batch. It is derived
// from the candidates and detector outputs at upload time and never mutated
// afterwards; TotalTransactions always equals len(Candidates).
type AnalysisResult struct {
	TotalTransactions int                    `json:"total_transactions"`
	Candidates        []TransactionCandidate `json:"categorization"`
	RowErrors         []RowError             `json:"row_errors,omitempty"`
	Anomalies         []AnomalyFlag          `json:"anomalies"`
	Duplicates        []DuplicateFlag        `json:"duplicates"`
	Summary           Summary                `json:"summary"`
}

// SessionStatus is the state of a staged upload.
type SessionStatus string

const (
	StatusStaged    SessionStatus = "staged"
	StatusConfirmed SessionStatus = "confirmed"
	StatusCancelled SessionStatus = "cancelled"
	StatusExpired   SessionStatus = "expired"
)

// Terminal reports whether no further transition is permitted.
func (s SessionStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusCancelled || s == StatusExpired
}

// UploadSession holds one staged batch awaiting confirm or cancel. Owned
// exclusively by the StagingStore; status transitions are the only mutation
// permitted after staging.
type UploadSession struct {
	ID         string                 `json:"upload_id"`
	Owner      string                 `json:"-"`
	FileName   string                 `json:"file_name"`
	Candidates []TransactionCandidate `json:"-"`
	Analysis   *AnalysisResult        `json:"analysis"`
	Status     SessionStatus          `json:"status"`
	CreatedAt  time.Time              `json:"created_at"`
	ExpiresAt  time.Time              `json:"expires_at"`
}
