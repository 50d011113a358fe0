package importer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Anomaly detection defaults. All are tunable via AnomalyConfig.
const (
	DefaultAnomalyK        = 3.0
	DefaultMinSamples      = 5
	defaultAbsoluteCeiling = 1_000_000
)

// AnomalyConfig tunes the detector. K is the standard-deviation multiplier;
// below MinSamples per category only the AbsoluteCeiling rule applies, since
// statistics are unreliable with few samples.
type AnomalyConfig struct {
	K               float64
	MinSamples      int
	AbsoluteCeiling decimal.Decimal
}

// AnomalyDetector flags candidates whose amount deviates materially from the
// historical norm for their category. Deterministic given identical inputs:
// no randomness, plain left-to-right summation.
type AnomalyDetector struct {
	cfg    AnomalyConfig
	ledger Ledger
	now    func() time.Time
}

// NewAnomalyDetector returns a detector reading history from ledger.
// Zero-value config fields fall back to the package defaults.
func NewAnomalyDetector(cfg AnomalyConfig, ledger Ledger) *AnomalyDetector {
	if cfg.K <= 0 {
		cfg.K = DefaultAnomalyK
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = DefaultMinSamples
	}
	if cfg.AbsoluteCeiling.IsZero() {
		cfg.AbsoluteCeiling = decimal.NewFromInt(defaultAbsoluteCeiling)
	}
	return &AnomalyDetector{cfg: cfg, ledger: ledger, now: time.Now}
}

// Detect flags amount outliers, category outliers, and unusual dates.
// Candidates must already be categorized.
func (d *AnomalyDetector) Detect(ctx context.Context, owner string, candidates []TransactionCandidate) ([]AnomalyFlag, error) {
	// One history fetch per category, not per candidate.
	history := make(map[string][]decimal.Decimal)
	for _, c := range candidates {
		if _, ok := history[c.Category]; ok {
			continue
		}
		hist, err := d.ledger.HistoricalAmounts(ctx, owner, c.Category)
		if err != nil {
			return nil, fmt.Errorf("historical amounts for %q: %w", c.Category, err)
		}
		history[c.Category] = hist
	}

	var flags []AnomalyFlag
	today := d.now().Truncate(24 * time.Hour)

	for i, c := range candidates {
		if c.Date.After(today) {
			days := c.Date.Sub(today).Hours() / 24
			flags = append(flags, AnomalyFlag{
				RowIndex: c.RowIndex,
				Reason:   ReasonUnusualDate,
				Score:    days,
				Detail:   fmt.Sprintf("transaction dated %s is in the future", c.Date.Format("2006-01-02")),
			})
		}

		flags = append(flags, d.amountFlags(c, history[c.Category], peerAmounts(candidates, i))...)
	}

	return flags, nil
}

// peerAmounts returns the amounts of the other candidates in the upload that
// share candidate i's category. The candidate itself is excluded so a lone
// huge row cannot hide inside its own statistics.
func peerAmounts(candidates []TransactionCandidate, i int) []decimal.Decimal {
	var peers []decimal.Decimal
	for j, c := range candidates {
		if j != i && c.Category == candidates[i].Category {
			peers = append(peers, c.Amount)
		}
	}
	return peers
}

// amountFlags applies the statistical and ceiling rules to one candidate.
// The sample set is the category's ledger history plus the other candidates
// of the same category in this upload, compared on absolute amounts.
func (d *AnomalyDetector) amountFlags(c TransactionCandidate, hist, peers []decimal.Decimal) []AnomalyFlag {
	samples := make([]float64, 0, len(hist)+len(peers))
	signSum := 0.0
	for _, h := range hist {
		f, _ := h.Abs().Float64()
		samples = append(samples, f)
		sf, _ := h.Float64()
		signSum += sf
	}
	for _, p := range peers {
		f, _ := p.Abs().Float64()
		samples = append(samples, f)
	}

	abs, _ := c.Amount.Abs().Float64()

	if len(samples) < d.cfg.MinSamples {
		// Too few samples for statistics: magnitude ceiling only.
		if c.Amount.Abs().GreaterThan(d.cfg.AbsoluteCeiling) {
			ceiling, _ := d.cfg.AbsoluteCeiling.Float64()
			return []AnomalyFlag{{
				RowIndex: c.RowIndex,
				Reason:   ReasonAmountOutlier,
				Score:    abs / ceiling,
				Detail: fmt.Sprintf("amount %s exceeds the configured ceiling of %s",
					c.Amount.StringFixed(2), d.cfg.AbsoluteCeiling.StringFixed(2)),
			}}
		}
		return nil
	}

	var flags []AnomalyFlag

	mean, stddev := meanStddev(samples)
	if stddev > 0 {
		z := (abs - mean) / stddev
		if z > d.cfg.K {
			flags = append(flags, AnomalyFlag{
				RowIndex: c.RowIndex,
				Reason:   ReasonAmountOutlier,
				Score:    z,
				Detail: fmt.Sprintf("amount %s is %.1f standard deviations above the %s mean (threshold %.1f)",
					c.Amount.StringFixed(2), z, c.Category, d.cfg.K),
			})
		}
	}

	// Sign flip against established history: revenue posted to an expense
	// category or vice versa.
	amt, _ := c.Amount.Float64()
	if len(hist) >= d.cfg.MinSamples && signSum != 0 && amt != 0 && (signSum < 0) != (amt < 0) {
		flags = append(flags, AnomalyFlag{
			RowIndex: c.RowIndex,
			Reason:   ReasonCategoryOutlier,
			Score:    1,
			Detail:   fmt.Sprintf("amount sign is unusual for the %s category", c.Category),
		})
	}

	return flags
}

func meanStddev(samples []float64) (mean, stddev float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += s
	}
	mean = sum / float64(len(samples))

	variance := 0.0
	for _, s := range samples {
		variance += (s - mean) * (s - mean)
	}
	variance /= float64(len(samples))
	return mean, math.Sqrt(variance)
}
