package importer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// memLedger is an in-memory Ledger for tests. It honors the append contract
// (all rows or none) and supports injected failures.
type memLedger struct {
	mu          sync.Mutex
	entries     []LedgerEntry
	nextID      int64
	appendErr   error
	appendCalls int
}

var errLedgerDown = errors.New("connection refused")

func newMemLedger() *memLedger {
	return &memLedger{nextID: 1}
}

func (m *memLedger) AppendBatch(_ context.Context, owner string, rows []TransactionCandidate) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.appendCalls++
	if m.appendErr != nil {
		return 0, m.appendErr
	}

	for _, r := range rows {
		m.entries = append(m.entries, LedgerEntry{
			ID:          m.nextID,
			Owner:       owner,
			Date:        r.Date,
			Description: r.Description,
			Amount:      r.Amount,
			Category:    r.Category,
			Vendor:      r.Vendor,
			Notes:       r.Notes,
		})
		m.nextID++
	}
	return len(rows), nil
}

func (m *memLedger) HistoricalAmounts(_ context.Context, owner, category string) ([]decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var amounts []decimal.Decimal
	for _, e := range m.entries {
		if e.Owner == owner && e.Category == category {
			amounts = append(amounts, e.Amount)
		}
	}
	return amounts, nil
}

func (m *memLedger) Query(_ context.Context, owner string, from, to time.Time, amount decimal.Decimal) ([]LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []LedgerEntry
	for _, e := range m.entries {
		if e.Owner != owner || !e.Amount.Equal(amount) {
			continue
		}
		if e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memLedger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *memLedger) setAppendErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendErr = err
}

func (m *memLedger) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendCalls
}

// seed installs a committed entry directly, bypassing the pipeline.
func (m *memLedger) seed(owner string, date time.Time, description string, amount string, category string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, LedgerEntry{
		ID:          m.nextID,
		Owner:       owner,
		Date:        date,
		Description: description,
		Amount:      decimal.RequireFromString(amount),
		Category:    category,
	})
	m.nextID++
}

// memActivity collects recorded actions.
type memActivity struct {
	mu      sync.Mutex
	actions []string
}

func (a *memActivity) Record(_ context.Context, _ string, action, _ string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
}

func (a *memActivity) recorded() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.actions...)
}

func mustDate(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func candidate(rowIndex int, date string, description string, amount string, category string) TransactionCandidate {
	return TransactionCandidate{
		RowIndex:    rowIndex,
		Date:        mustDate(date),
		Description: description,
		Amount:      decimal.RequireFromString(amount),
		Category:    category,
	}
}
