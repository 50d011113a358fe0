package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// DefaultMaxFileSize is the maximum allowed CSV file size (10 MiB).
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// columnSynonyms maps each canonical column to the header names that
// identify it, case-insensitive and order-independent. Date, Description
// and Amount are required; the rest are optional.
var columnSynonyms = map[string][]string{
	"date":        {"date", "transaction date", "txn date", "transaction_date", "txn_date", "datetime"},
	"description": {"description", "desc", "details", "transaction details", "particulars"},
	"amount":      {"amount", "value", "transaction amount", "txn amount"},
	"category":    {"category", "type", "transaction type", "txn type"},
	"vendor":      {"vendor", "merchant", "payee", "supplier"},
	"notes":       {"notes", "memo", "remarks", "comments"},
}

var requiredColumns = []string{"date", "description", "amount"}

// dateLayouts are the accepted date formats, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
	"Jan 2, 2006",
}

// ParseResult is the parser output: candidates in file order plus a parallel
// list of row-level errors. Either side may be empty.
type ParseResult struct {
	Candidates []TransactionCandidate
	RowErrors  []RowError
}

// CsvParser turns raw file bytes into transaction candidates. Rows failing
// type conversion become row errors, not candidates, and do not abort the
// batch. Parsing fails wholesale only on a bad extension, an oversize file,
// or a header missing required columns.
type CsvParser struct {
	MaxFileSize int64
}

// NewCsvParser returns a parser with the given size limit; zero or negative
// falls back to DefaultMaxFileSize.
func NewCsvParser(maxFileSize int64) *CsvParser {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &CsvParser{MaxFileSize: maxFileSize}
}

// Parse validates the file constraints and converts data rows to candidates.
func (p *CsvParser) Parse(fileName string, data []byte) (*ParseResult, error) {
	if ext := strings.ToLower(filepath.Ext(fileName)); ext != ".csv" {
		return nil, validationErrorf("only CSV files are supported, got %q", ext)
	}
	if int64(len(data)) > p.MaxFileSize {
		return nil, validationErrorf("file exceeds %d MiB limit", p.MaxFileSize/(1024*1024))
	}

	data = sanitizeUTF8(data)

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, validationErrorf("invalid csv: %v", err)
	}
	if len(records) == 0 {
		return nil, validationErrorf("empty file")
	}

	cols, err := mapHeader(records[0])
	if err != nil {
		return nil, err
	}

	result := &ParseResult{}
	for i, row := range records[1:] {
		lineNum := i + 2 // 1-indexed, after header
		if isEmptyRow(row) {
			continue
		}

		cand, err := buildCandidate(row, cols, len(result.Candidates))
		if err != nil {
			result.RowErrors = append(result.RowErrors, RowError{
				Line:   lineNum,
				Raw:    strings.Join(row, ","),
				Reason: err.Error(),
			})
			continue
		}
		result.Candidates = append(result.Candidates, cand)
	}

	return result, nil
}

// mapHeader resolves canonical column names to positions in the header row.
// Fails with a ValidationError when a required column cannot be located.
func mapHeader(header []string) (map[string]int, error) {
	cols := make(map[string]int)
	for pos, cell := range header {
		name := strings.ToLower(cleanCell(cell))
		for canonical, synonyms := range columnSynonyms {
			if _, taken := cols[canonical]; taken {
				continue
			}
			for _, syn := range synonyms {
				if name == syn {
					cols[canonical] = pos
					break
				}
			}
		}
	}

	var missing []string
	for _, req := range requiredColumns {
		if _, ok := cols[req]; !ok {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return nil, validationErrorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

// buildCandidate converts one data row. rowIndex is the candidate's position
// among successfully parsed rows.
func buildCandidate(row []string, cols map[string]int, rowIndex int) (TransactionCandidate, error) {
	date, err := parseDate(cellAt(row, cols, "date"))
	if err != nil {
		return TransactionCandidate{}, err
	}

	desc := cleanCell(cellAt(row, cols, "description"))
	if desc == "" {
		return TransactionCandidate{}, fmt.Errorf("empty description")
	}

	amount, err := parseAmount(cellAt(row, cols, "amount"))
	if err != nil {
		return TransactionCandidate{}, err
	}

	return TransactionCandidate{
		RowIndex:    rowIndex,
		Date:        date,
		Description: desc,
		Amount:      amount,
		Category:    cleanCell(cellAt(row, cols, "category")),
		Vendor:      cleanCell(cellAt(row, cols, "vendor")),
		Notes:       cleanCell(cellAt(row, cols, "notes")),
	}, nil
}

func cellAt(row []string, cols map[string]int, name string) string {
	pos, ok := cols[name]
	if !ok || pos >= len(row) {
		return ""
	}
	return row[pos]
}

func parseDate(raw string) (time.Time, error) {
	raw = cleanCell(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			// Keep the calendar date as written. Converting through UTC
			// would shift timestamps with an offset onto the wrong day.
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

// parseAmount strips currency symbols and thousands separators before
// decimal conversion. Negative means expense, positive means revenue.
func parseAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '$', '₹', '€', '£', ',', ' ':
			return -1
		}
		return r
	}, cleanCell(raw))

	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	return d, nil
}

// cleanCell trims whitespace and a UTF-8 BOM if present.
func cleanCell(s string) string {
	s = strings.TrimPrefix(s, "\uFEFF")
	return strings.TrimSpace(s)
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// sanitizeUTF8 replaces invalid byte sequences with the replacement rune so
// downstream string handling is safe.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}
