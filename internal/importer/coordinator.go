package importer

import (
	"context"
	"fmt"
	"log/slog"
)

// ConfirmResult reports the outcome of committing a staged batch.
// ImportedCount plus SkippedDuplicates always equals the candidate count.
type ConfirmResult struct {
	UploadID          string        `json:"upload_id"`
	ImportedCount     int           `json:"imported_count"`
	SkippedDuplicates int           `json:"skipped_duplicates"`
	Status            SessionStatus `json:"status"`
}

// Coordinator drives the import pipeline end to end: parse, analyze, stage,
// then confirm or cancel. It owns no state itself; all session state lives
// in the StagingStore and all committed data in the Ledger.
type Coordinator struct {
	parser   *CsvParser
	analyzer *Analyzer
	staging  *StagingStore
	ledger   Ledger
	activity ActivityRecorder
	limiter  *UploadLimiter
	logger   *slog.Logger
}

// NewCoordinator wires the pipeline. activity may be nil when no timeline
// is kept.
func NewCoordinator(
	parser *CsvParser,
	analyzer *Analyzer,
	staging *StagingStore,
	ledger Ledger,
	activity ActivityRecorder,
	limiter *UploadLimiter,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		parser:   parser,
		analyzer: analyzer,
		staging:  staging,
		ledger:   ledger,
		activity: activity,
		limiter:  limiter,
		logger:   logger,
	}
}

// Upload parses and analyzes an uploaded file and stages the result for
// review. Nothing is committed; the returned session carries the full
// analysis and an upload id for the confirm or cancel that follows.
func (c *Coordinator) Upload(ctx context.Context, owner, fileName string, data []byte) (*UploadSession, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer c.limiter.Release()

	parsed, err := c.parser.Parse(fileName, data)
	if err != nil {
		return nil, err
	}
	if len(parsed.Candidates) == 0 {
		if n := len(parsed.RowErrors); n > 0 {
			return nil, validationErrorf("no valid transactions: all %d data rows failed to parse", n)
		}
		return nil, validationErrorf("no data rows found")
	}

	analysis, err := c.analyzer.Analyze(ctx, owner, parsed)
	if err != nil {
		return nil, &InternalError{Op: "analyze upload", Err: err}
	}

	session := c.staging.Stage(owner, fileName, parsed.Candidates, analysis)

	c.logger.Info("upload staged",
		"upload_id", session.ID,
		"owner", owner,
		"file", fileName,
		"candidates", len(parsed.Candidates),
		"row_errors", len(parsed.RowErrors),
		"anomalies", len(analysis.Anomalies),
		"duplicates", len(analysis.Duplicates),
	)
	c.record(ctx, owner, "upload_staged",
		fmt.Sprintf("staged %s with %d candidates", fileName, len(parsed.Candidates)))

	return session, nil
}

// Confirm commits a staged batch to the ledger, excluding duplicate-flagged
// candidates. Exactly one of any number of concurrent confirms for the same
// session appends; the rest observe ErrConflict. On a ledger failure the
// session stays staged and ErrLedgerUnavailable is returned so the caller
// may retry.
func (c *Coordinator) Confirm(ctx context.Context, owner, id string) (*ConfirmResult, error) {
	session, err := c.staging.BeginConfirm(id, owner)
	if err != nil {
		return nil, err
	}

	rows := importableRows(session)
	skipped := len(session.Candidates) - len(rows)

	if len(rows) > 0 {
		if _, err := c.ledger.AppendBatch(ctx, owner, rows); err != nil {
			c.staging.AbortConfirm(id, owner)
			c.logger.Error("ledger append failed, session kept staged",
				"upload_id", id, "owner", owner, "error", err)
			return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
		}
	}

	if _, err := c.staging.CompleteConfirm(id, owner); err != nil {
		// The append landed; losing the session record now only costs the
		// status read, so report success regardless.
		c.logger.Error("confirm finalization failed after append",
			"upload_id", id, "owner", owner, "error", err)
	}

	c.logger.Info("upload confirmed",
		"upload_id", id, "owner", owner,
		"imported", len(rows), "skipped_duplicates", skipped,
	)
	c.record(ctx, owner, "upload_confirmed",
		fmt.Sprintf("imported %d transactions, skipped %d duplicates", len(rows), skipped))

	return &ConfirmResult{
		UploadID:          id,
		ImportedCount:     len(rows),
		SkippedDuplicates: skipped,
		Status:            StatusConfirmed,
	}, nil
}

// Cancel discards a staged batch. The ledger is never touched.
func (c *Coordinator) Cancel(ctx context.Context, owner, id string) (*UploadSession, error) {
	session, err := c.staging.Transition(id, owner, StatusCancelled)
	if err != nil {
		return nil, err
	}

	c.logger.Info("upload cancelled", "upload_id", id, "owner", owner)
	c.record(ctx, owner, "upload_cancelled",
		fmt.Sprintf("discarded staged file %s", session.FileName))

	return session, nil
}

// Session returns the staged session for review polling.
func (c *Coordinator) Session(owner, id string) (*UploadSession, error) {
	return c.staging.Get(id, owner)
}

func (c *Coordinator) record(ctx context.Context, owner, action, details string) {
	if c.activity != nil {
		c.activity.Record(ctx, owner, action, details)
	}
}

// importableRows drops the flagged side of every duplicate pair. For a
// batch-internal pair one copy survives; for a ledger match the candidate
// is dropped outright. A candidate flagged several times is skipped once.
func importableRows(session *UploadSession) []TransactionCandidate {
	flagged := make(map[int]struct{})
	for _, d := range session.Analysis.Duplicates {
		flagged[d.RowIndex] = struct{}{}
	}

	rows := make([]TransactionCandidate, 0, len(session.Candidates))
	for _, cand := range session.Candidates {
		if _, ok := flagged[cand.RowIndex]; !ok {
			rows = append(rows, cand)
		}
	}
	return rows
}
