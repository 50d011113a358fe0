package importer

import (
	"context"
	"testing"
)

func TestDetectDuplicates_BatchExact(t *testing.T) {
	d := NewDuplicateDetector(DuplicateConfig{}, newMemLedger())

	candidates := []TransactionCandidate{
		candidate(0, "2024-01-15", "AWS - Monthly Bill", "-500", "Cloud Services"),
		candidate(1, "2024-01-16", "Client Payment", "12000", "Revenue"),
		candidate(2, "2024-01-15", "aws -  monthly   bill", "-500", "Cloud Services"),
	}

	flags, err := d.Detect(context.Background(), "acme", candidates)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(flags) != 1 {
		t.Fatalf("got %d flags, want 1: %+v", len(flags), flags)
	}

	f := flags[0]
	if f.Basis != MatchExact {
		t.Errorf("Basis = %q, want exact", f.Basis)
	}
	if f.RowIndex != 0 || f.MatchRowIndex != 2 {
		t.Errorf("pair = (%d, %d), want (0, 2)", f.RowIndex, f.MatchRowIndex)
	}
	if f.Similarity != 1 {
		t.Errorf("Similarity = %v, want 1", f.Similarity)
	}
}

func TestDetectDuplicates_BatchFuzzy(t *testing.T) {
	d := NewDuplicateDetector(DuplicateConfig{}, newMemLedger())

	// Same amount, dates one day apart, four of five tokens shared
	// (overlap 4/5 = 0.8, right at the threshold).
	candidates := []TransactionCandidate{
		candidate(0, "2024-01-15", "AWS monthly bill january", "-500", "Cloud Services"),
		candidate(1, "2024-01-16", "AWS monthly bill january invoice", "-500", "Cloud Services"),
	}

	flags, err := d.Detect(context.Background(), "acme", candidates)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(flags) != 1 {
		t.Fatalf("got %d flags, want 1: %+v", len(flags), flags)
	}
	if flags[0].Basis != MatchFuzzy {
		t.Errorf("Basis = %q, want fuzzy", flags[0].Basis)
	}
	if flags[0].Similarity < 0.8 || flags[0].Similarity >= 1 {
		t.Errorf("Similarity = %v, want a partial overlap at or above 0.8", flags[0].Similarity)
	}
}

func TestDetectDuplicates_NoFalsePositives(t *testing.T) {
	d := NewDuplicateDetector(DuplicateConfig{}, newMemLedger())

	tests := []struct {
		name       string
		candidates []TransactionCandidate
	}{
		{
			name: "different amounts",
			candidates: []TransactionCandidate{
				candidate(0, "2024-01-15", "AWS Bill", "-500", ""),
				candidate(1, "2024-01-15", "AWS Bill", "-501", ""),
			},
		},
		{
			name: "outside date window",
			candidates: []TransactionCandidate{
				candidate(0, "2024-01-15", "AWS Bill", "-500", ""),
				candidate(1, "2024-01-20", "AWS Bill", "-500", ""),
			},
		},
		{
			name: "dissimilar descriptions",
			candidates: []TransactionCandidate{
				candidate(0, "2024-01-15", "AWS monthly infrastructure bill", "-500", ""),
				candidate(1, "2024-01-15", "Office cleaning service fee", "-500", ""),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags, err := d.Detect(context.Background(), "acme", tt.candidates)
			if err != nil {
				t.Fatalf("Detect() error = %v", err)
			}
			if len(flags) != 0 {
				t.Errorf("got %d flags, want 0: %+v", len(flags), flags)
			}
		})
	}
}

func TestDetectDuplicates_AgainstLedger(t *testing.T) {
	ledger := newMemLedger()
	ledger.seed("acme", mustDate("2024-01-15"), "AWS - Monthly Bill", "-500", "Cloud Services")
	d := NewDuplicateDetector(DuplicateConfig{}, ledger)

	candidates := []TransactionCandidate{
		candidate(0, "2024-01-15", "AWS - Monthly Bill", "-500", "Cloud Services"),
	}

	flags, err := d.Detect(context.Background(), "acme", candidates)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(flags) != 1 {
		t.Fatalf("got %d flags, want 1: %+v", len(flags), flags)
	}

	f := flags[0]
	if f.Basis != MatchExact {
		t.Errorf("Basis = %q, want exact", f.Basis)
	}
	if f.MatchRowIndex != -1 {
		t.Errorf("MatchRowIndex = %d, want -1 for a ledger match", f.MatchRowIndex)
	}
	if f.LedgerID == 0 {
		t.Error("LedgerID not set for a ledger match")
	}
}

func TestDetectDuplicates_LedgerOwnerIsolation(t *testing.T) {
	ledger := newMemLedger()
	ledger.seed("someone-else", mustDate("2024-01-15"), "AWS - Monthly Bill", "-500", "Cloud Services")
	d := NewDuplicateDetector(DuplicateConfig{}, ledger)

	candidates := []TransactionCandidate{
		candidate(0, "2024-01-15", "AWS - Monthly Bill", "-500", "Cloud Services"),
	}

	flags, err := d.Detect(context.Background(), "acme", candidates)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(flags) != 0 {
		t.Errorf("got %d flags, want 0; another owner's entries leaked", len(flags))
	}
}

func TestDetectDuplicates_ConfigurableWindow(t *testing.T) {
	d := NewDuplicateDetector(DuplicateConfig{DateWindowDays: 7}, newMemLedger())

	candidates := []TransactionCandidate{
		candidate(0, "2024-01-15", "Monthly retainer invoice", "-1000", ""),
		candidate(1, "2024-01-20", "Monthly retainer invoice", "-1000", ""),
	}

	flags, err := d.Detect(context.Background(), "acme", candidates)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(flags) != 1 {
		t.Fatalf("got %d flags, want 1 with a widened window", len(flags))
	}
	if flags[0].Basis != MatchFuzzy {
		t.Errorf("Basis = %q, want fuzzy", flags[0].Basis)
	}
}

func TestTokenOverlap(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"aws monthly bill", "aws monthly bill", 1},
		{"aws monthly bill", "gcp quarterly invoice", 0},
		{"a b c d", "a b c e", 0.6},
		{"", "anything", 0},
	}

	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			got := tokenOverlap(tt.a, tt.b)
			if got != tt.want {
				t.Errorf("tokenOverlap(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
