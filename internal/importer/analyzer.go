package importer

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Analyzer runs the full analysis over parsed candidates: categorization,
// vendor extraction, anomaly flags, duplicate flags, and the batch summary.
// The result is what the upload response and the staged session carry.
type Analyzer struct {
	categorizer *Categorizer
	anomalies   *AnomalyDetector
	duplicates  *DuplicateDetector
}

// NewAnalyzer wires the analysis stages together.
func NewAnalyzer(categorizer *Categorizer, anomalies *AnomalyDetector, duplicates *DuplicateDetector) *Analyzer {
	return &Analyzer{
		categorizer: categorizer,
		anomalies:   anomalies,
		duplicates:  duplicates,
	}
}

// Analyze enriches candidates in place and aggregates the detector outputs.
// The returned result references the enriched candidate slice.
func (a *Analyzer) Analyze(ctx context.Context, owner string, parsed *ParseResult) (*AnalysisResult, error) {
	candidates := parsed.Candidates

	for i := range candidates {
		if candidates[i].Vendor == "" {
			candidates[i].Vendor = ExtractVendor(candidates[i].Description)
		}
		candidates[i].Category = a.categorizer.Categorize(candidates[i].Description, candidates[i].Vendor)
	}

	anomalies, err := a.anomalies.Detect(ctx, owner, candidates)
	if err != nil {
		return nil, fmt.Errorf("anomaly detection: %w", err)
	}

	duplicates, err := a.duplicates.Detect(ctx, owner, candidates)
	if err != nil {
		return nil, fmt.Errorf("duplicate detection: %w", err)
	}

	return &AnalysisResult{
		TotalTransactions: len(candidates),
		Candidates:        candidates,
		RowErrors:         parsed.RowErrors,
		Anomalies:         anomalies,
		Duplicates:        duplicates,
		Summary:           Summarize(candidates),
	}, nil
}

// Summarize totals the batch. Positive amounts are revenue, negative are
// expenses; expenses keep their sign, so revenue plus expenses always equals
// net. Holds regardless of flags: flagged rows count too.
func Summarize(candidates []TransactionCandidate) Summary {
	revenue := decimal.Zero
	expenses := decimal.Zero
	for _, c := range candidates {
		if c.Amount.IsNegative() {
			expenses = expenses.Add(c.Amount)
		} else {
			revenue = revenue.Add(c.Amount)
		}
	}
	return Summary{
		TotalRevenue:  revenue,
		TotalExpenses: expenses,
		Net:           revenue.Add(expenses),
	}
}
