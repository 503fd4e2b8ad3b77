package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nsightlabs/spendintel/internal/model"
)

// ReadExpenses reads an expense CSV with a header row. Required columns:
// date, amount, vendor, department. Optional: currency (defaults to
// defaultCurrency), description, category, id. Rows with bad dates,
// non-positive amounts, or unsupported currencies are rejected into the
// report rather than aborting the file.
func ReadExpenses(path string, defaultCurrency model.Currency) ([]model.ExpenseRecord, ReadReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ReadReport{}, fmt.Errorf("opening expenses file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return readExpenses(f, defaultCurrency)
}

func readExpenses(r io.Reader, defaultCurrency model.Currency) ([]model.ExpenseRecord, ReadReport, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, ReadReport{}, fmt.Errorf("reading header: %w", err)
	}
	cols := columnIndex(header)
	for _, required := range []string{"date", "amount", "vendor", "department"} {
		if _, ok := cols[required]; !ok {
			return nil, ReadReport{}, fmt.Errorf("missing required column %q", required)
		}
	}

	var records []model.ExpenseRecord
	var report ReadReport
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			report.Rejected = append(report.Rejected, RowError{Line: line, Err: err})
			continue
		}

		rec, err := parseExpenseRow(row, cols, defaultCurrency)
		if err != nil {
			report.Rejected = append(report.Rejected, RowError{Line: line, Err: err})
			continue
		}
		records = append(records, rec)
		report.Accepted++
	}
	return records, report, nil
}

func parseExpenseRow(row []string, cols map[string]int, defaultCurrency model.Currency) (model.ExpenseRecord, error) {
	get := func(name string) string {
		if i, ok := cols[name]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	date, err := parseDate(get("date"))
	if err != nil {
		return model.ExpenseRecord{}, err
	}

	amount, err := decimal.NewFromString(get("amount"))
	if err != nil {
		return model.ExpenseRecord{}, fmt.Errorf("bad amount %q", get("amount"))
	}
	if !amount.IsPositive() {
		return model.ExpenseRecord{}, fmt.Errorf("amount must be positive, got %s", amount)
	}

	currency := defaultCurrency
	if raw := get("currency"); raw != "" {
		currency, err = model.ParseCurrency(raw)
		if err != nil {
			return model.ExpenseRecord{}, err
		}
	}

	vendor := get("vendor")
	if vendor == "" {
		return model.ExpenseRecord{}, fmt.Errorf("vendor is empty")
	}

	return model.ExpenseRecord{
		Date:        date,
		Amount:      amount,
		Currency:    currency,
		Vendor:      vendor,
		Description: get("description"),
		Department:  get("department"),
		Category:    get("category"),
		SourceID:    get("id"),
	}, nil
}

func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return cols
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}
