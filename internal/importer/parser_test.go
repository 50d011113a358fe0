package importer

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

// ============================================================================
// Parse Tests
// ============================================================================

func TestParse_FileValidation(t *testing.T) {
	p := NewCsvParser(0)

	tests := []struct {
		name     string
		fileName string
		data     string
	}{
		{
			name:     "wrong extension",
			fileName: "transactions.xlsx",
			data:     "Date,Description,Amount\n2024-01-01,AWS Bill,-500\n",
		},
		{
			name:     "no extension",
			fileName: "transactions",
			data:     "Date,Description,Amount\n2024-01-01,AWS Bill,-500\n",
		},
		{
			name:     "empty file",
			fileName: "empty.csv",
			data:     "",
		},
		{
			name:     "missing amount column",
			fileName: "t.csv",
			data:     "Date,Description\n2024-01-01,AWS Bill\n",
		},
		{
			name:     "missing all required columns",
			fileName: "t.csv",
			data:     "Foo,Bar,Baz\n1,2,3\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(tt.fileName, []byte(tt.data))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !IsValidation(err) {
				t.Errorf("expected ValidationError, got %T: %v", err, err)
			}
		})
	}
}

func TestParse_SizeLimit(t *testing.T) {
	p := NewCsvParser(64)

	data := []byte("Date,Description,Amount\n" + strings.Repeat("2024-01-01,Rent,-100\n", 10))
	if int64(len(data)) <= 64 {
		t.Fatal("test data must exceed the limit")
	}

	_, err := p.Parse("big.csv", data)
	if !IsValidation(err) {
		t.Fatalf("expected ValidationError for oversize file, got %v", err)
	}
}

func TestParse_HeaderSynonyms(t *testing.T) {
	p := NewCsvParser(0)

	headers := []string{
		"Date,Description,Amount",
		"date,description,amount",
		"Transaction Date,Details,Value",
		"txn_date,desc,Transaction Amount",
		"DATETIME,Particulars,AMOUNT",
	}

	for _, header := range headers {
		t.Run(header, func(t *testing.T) {
			data := header + "\n2024-01-15,AWS Bill,-500.00\n"
			result, err := p.Parse("t.csv", []byte(data))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if len(result.Candidates) != 1 {
				t.Fatalf("got %d candidates, want 1", len(result.Candidates))
			}
			c := result.Candidates[0]
			if c.Description != "AWS Bill" {
				t.Errorf("Description = %q, want %q", c.Description, "AWS Bill")
			}
			if c.Amount.String() != "-500" {
				t.Errorf("Amount = %s, want -500", c.Amount)
			}
		})
	}
}

func TestParse_OptionalColumns(t *testing.T) {
	p := NewCsvParser(0)

	data := "Date,Description,Amount,Category,Merchant,Memo\n" +
		"2024-01-15,Monthly rent,-2000,Office,Acme Realty,January\n"

	result, err := p.Parse("t.csv", []byte(data))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	c := result.Candidates[0]
	if c.Category != "Office" {
		t.Errorf("Category = %q, want Office", c.Category)
	}
	if c.Vendor != "Acme Realty" {
		t.Errorf("Vendor = %q, want Acme Realty", c.Vendor)
	}
	if c.Notes != "January" {
		t.Errorf("Notes = %q, want January", c.Notes)
	}
}

func TestParse_RowErrorsDoNotAbortBatch(t *testing.T) {
	p := NewCsvParser(0)

	data := strings.Join([]string{
		"Date,Description,Amount",
		"2024-01-15,AWS Bill,-500",
		"not-a-date,Bad Row,100",
		"2024-01-16,,100",
		"2024-01-17,Missing amount,abc",
		"2024-01-18,Client Payment,12000",
		"",
	}, "\n")

	result, err := p.Parse("t.csv", []byte(data))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(result.Candidates) != 2 {
		t.Errorf("got %d candidates, want 2", len(result.Candidates))
	}
	if len(result.RowErrors) != 3 {
		t.Fatalf("got %d row errors, want 3", len(result.RowErrors))
	}

	// Line numbers are 1-indexed positions in the file, header included.
	wantLines := []int{3, 4, 5}
	for i, re := range result.RowErrors {
		if re.Line != wantLines[i] {
			t.Errorf("RowErrors[%d].Line = %d, want %d", i, re.Line, wantLines[i])
		}
		if re.Reason == "" {
			t.Errorf("RowErrors[%d].Reason is empty", i)
		}
	}

	// RowIndex is contiguous over the surviving candidates.
	for i, c := range result.Candidates {
		if c.RowIndex != i {
			t.Errorf("Candidates[%d].RowIndex = %d, want %d", i, c.RowIndex, i)
		}
	}
}

func TestParse_DateFormats(t *testing.T) {
	p := NewCsvParser(0)

	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"2024-01-15 13:45:00", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"01/15/2024", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"Jan 15, 2024", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		// The calendar date is kept even when the offset puts the instant
		// on a different UTC day.
		{"2024-01-06T03:00:00+05:30", time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)},
		{"2024-01-15T22:00:00-08:00", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			data := "Date,Description,Amount\n" + tt.raw + ",Rent,-100\n"
			result, err := p.Parse("t.csv", []byte(data))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if len(result.Candidates) != 1 {
				t.Fatalf("got %d candidates, want 1", len(result.Candidates))
			}
			if !result.Candidates[0].Date.Equal(tt.want) {
				t.Errorf("Date = %v, want %v", result.Candidates[0].Date, tt.want)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "1234.56", want: "1234.56"},
		{raw: "-500", want: "-500"},
		{raw: "$1,234.56", want: "1234.56"},
		{raw: "₹50,000", want: "50000"},
		{raw: "€ 99.99", want: "99.99"},
		{raw: "£-250.00", want: "-250"},
		{raw: "", wantErr: true},
		{raw: "abc", wantErr: true},
		{raw: "$", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseAmount(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseAmount(%q) = %s, want error", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseAmount(%q) error = %v", tt.raw, err)
			}
			if got.String() != tt.want {
				t.Errorf("parseAmount(%q) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParse_BOMHeader(t *testing.T) {
	p := NewCsvParser(0)

	data := "\uFEFFDate,Description,Amount\n2024-01-15,AWS Bill,-500\n"
	result, err := p.Parse("t.csv", []byte(data))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(result.Candidates) != 1 {
		t.Errorf("got %d candidates, want 1", len(result.Candidates))
	}
}

func TestParse_InvalidUTF8Sanitized(t *testing.T) {
	p := NewCsvParser(0)

	var buf bytes.Buffer
	buf.WriteString("Date,Description,Amount\n2024-01-15,Caf")
	buf.WriteByte(0xe9) // Latin-1 e-acute, invalid as UTF-8
	buf.WriteString(" Lunch,-42\n")

	result, err := p.Parse("t.csv", buf.Bytes())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(result.Candidates))
	}
	if !strings.Contains(result.Candidates[0].Description, "�") {
		t.Errorf("Description = %q, want replacement rune preserved", result.Candidates[0].Description)
	}
}

func TestParse_DeterministicAcrossRuns(t *testing.T) {
	p := NewCsvParser(0)
	data := []byte("Date,Description,Amount\n2024-01-15,AWS Bill,-500\nbad,row,\n2024-01-16,Client Payment,12000\n")

	first, err := p.Parse("t.csv", data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	second, err := p.Parse("t.csv", data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(first.Candidates) != len(second.Candidates) || len(first.RowErrors) != len(second.RowErrors) {
		t.Fatal("repeated parses disagree")
	}
	for i := range first.Candidates {
		a, b := first.Candidates[i], second.Candidates[i]
		if a.RowIndex != b.RowIndex || a.Description != b.Description || !a.Amount.Equal(b.Amount) || !a.Date.Equal(b.Date) {
			t.Errorf("candidate %d differs between runs", i)
		}
	}
}

func TestParse_ValidationErrorKind(t *testing.T) {
	p := NewCsvParser(0)

	_, err := p.Parse("t.csv", []byte("Date,Description\n2024-01-01,x\n"))
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if !strings.Contains(ve.Reason, "amount") {
		t.Errorf("Reason = %q, want mention of the missing column", ve.Reason)
	}
}
