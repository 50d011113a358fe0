package importer

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Duplicate detection defaults.
const (
	DefaultDateWindowDays      = 1
	DefaultSimilarityThreshold = 0.8
)

// DuplicateConfig tunes the fuzzy pass: dates may differ by up to
// DateWindowDays and descriptions must reach SimilarityThreshold overlap.
type DuplicateConfig struct {
	DateWindowDays      int
	SimilarityThreshold float64
}

// DuplicateDetector flags candidates that match other candidates in the
// same batch or entries already committed to the ledger. Flagged candidates
// stay visible in the analysis; they are excluded only at confirm time.
type DuplicateDetector struct {
	cfg    DuplicateConfig
	ledger Ledger
}

// NewDuplicateDetector returns a detector checking against ledger.
// Zero-value config fields fall back to the package defaults.
func NewDuplicateDetector(cfg DuplicateConfig, ledger Ledger) *DuplicateDetector {
	if cfg.DateWindowDays <= 0 {
		cfg.DateWindowDays = DefaultDateWindowDays
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = DefaultSimilarityThreshold
	}
	return &DuplicateDetector{cfg: cfg, ledger: ledger}
}

// Detect runs the batch-internal and external passes. Pairs are symmetric
// and reported once; exact matches are never re-reported as fuzzy.
func (d *DuplicateDetector) Detect(ctx context.Context, owner string, candidates []TransactionCandidate) ([]DuplicateFlag, error) {
	var flags []DuplicateFlag

	// Batch-internal pass: every unordered pair once.
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			if flag, ok := d.matchPair(candidates[i], candidates[j]); ok {
				flags = append(flags, flag)
			}
		}
	}

	// External pass: candidates against committed ledger entries with the
	// same amount inside the date window.
	window := time.Duration(d.cfg.DateWindowDays) * 24 * time.Hour
	for _, c := range candidates {
		entries, err := d.ledger.Query(ctx, owner, c.Date.Add(-window), c.Date.Add(window), c.Amount)
		if err != nil {
			return nil, fmt.Errorf("ledger query for row %d: %w", c.RowIndex, err)
		}
		for _, e := range entries {
			if flag, ok := d.matchLedger(c, e); ok {
				flags = append(flags, flag)
			}
		}
	}

	return flags, nil
}

// matchPair compares two candidates of the same batch.
func (d *DuplicateDetector) matchPair(a, b TransactionCandidate) (DuplicateFlag, bool) {
	if !a.Amount.Equal(b.Amount) {
		return DuplicateFlag{}, false
	}

	descA, descB := normalizeDescription(a.Description), normalizeDescription(b.Description)

	if a.Date.Equal(b.Date) && descA == descB {
		return DuplicateFlag{
			RowIndex:      a.RowIndex,
			MatchRowIndex: b.RowIndex,
			Basis:         MatchExact,
			Similarity:    1,
		}, true
	}

	if d.withinWindow(a.Date, b.Date) {
		if sim := tokenOverlap(descA, descB); sim >= d.cfg.SimilarityThreshold {
			return DuplicateFlag{
				RowIndex:      a.RowIndex,
				MatchRowIndex: b.RowIndex,
				Basis:         MatchFuzzy,
				Similarity:    sim,
			}, true
		}
	}

	return DuplicateFlag{}, false
}

// matchLedger compares a candidate against a committed entry. The ledger
// query already filtered by amount and date window.
func (d *DuplicateDetector) matchLedger(c TransactionCandidate, e LedgerEntry) (DuplicateFlag, bool) {
	descC, descE := normalizeDescription(c.Description), normalizeDescription(e.Description)

	if c.Date.Equal(e.Date) && descC == descE {
		return DuplicateFlag{
			RowIndex:      c.RowIndex,
			MatchRowIndex: -1,
			LedgerID:      e.ID,
			Basis:         MatchExact,
			Similarity:    1,
		}, true
	}

	if sim := tokenOverlap(descC, descE); sim >= d.cfg.SimilarityThreshold {
		return DuplicateFlag{
			RowIndex:      c.RowIndex,
			MatchRowIndex: -1,
			LedgerID:      e.ID,
			Basis:         MatchFuzzy,
			Similarity:    sim,
		}, true
	}

	return DuplicateFlag{}, false
}

func (d *DuplicateDetector) withinWindow(a, b time.Time) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(d.cfg.DateWindowDays)*24*time.Hour
}

// normalizeDescription lowercases and collapses interior whitespace so
// formatting differences do not defeat the exact match.
func normalizeDescription(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// tokenOverlap is the Jaccard ratio over whitespace-split tokens.
func tokenOverlap(a, b string) float64 {
	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(tokensA))
	for _, t := range tokensA {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(tokensB))
	for _, t := range tokensB {
		setB[t] = struct{}{}
	}

	intersection := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection

	return float64(intersection) / float64(union)
}
