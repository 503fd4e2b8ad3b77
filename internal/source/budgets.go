package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nsightlabs/spendintel/internal/model"
)

// ReadBudgets reads a budget allocation CSV with a header row. Required
// columns: department, category, period_start, period_end,
// allocated_amount. Optional: currency (defaults to defaultCurrency).
func ReadBudgets(path string, defaultCurrency model.Currency) ([]model.BudgetAllocation, ReadReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ReadReport{}, fmt.Errorf("opening budgets file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return readBudgets(f, defaultCurrency)
}

func readBudgets(r io.Reader, defaultCurrency model.Currency) ([]model.BudgetAllocation, ReadReport, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, ReadReport{}, fmt.Errorf("reading header: %w", err)
	}
	cols := columnIndex(header)
	for _, required := range []string{"department", "category", "period_start", "period_end", "allocated_amount"} {
		if _, ok := cols[required]; !ok {
			return nil, ReadReport{}, fmt.Errorf("missing required column %q", required)
		}
	}

	var budgets []model.BudgetAllocation
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

		b, err := parseBudgetRow(row, cols, defaultCurrency)
		if err != nil {
			report.Rejected = append(report.Rejected, RowError{Line: line, Err: err})
			continue
		}
		budgets = append(budgets, b)
		report.Accepted++
	}
	return budgets, report, nil
}

func parseBudgetRow(row []string, cols map[string]int, defaultCurrency model.Currency) (model.BudgetAllocation, error) {
	get := func(name string) string {
		if i, ok := cols[name]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	start, err := parseDate(get("period_start"))
	if err != nil {
		return model.BudgetAllocation{}, err
	}
	end, err := parseDate(get("period_end"))
	if err != nil {
		return model.BudgetAllocation{}, err
	}
	if end.Before(start) {
		return model.BudgetAllocation{}, fmt.Errorf("period_end %s before period_start %s",
			get("period_end"), get("period_start"))
	}

	allocated, err := decimal.NewFromString(get("allocated_amount"))
	if err != nil {
		return model.BudgetAllocation{}, fmt.Errorf("bad allocated_amount %q", get("allocated_amount"))
	}
	if !allocated.IsPositive() {
		return model.BudgetAllocation{}, fmt.Errorf("allocated_amount must be positive, got %s", allocated)
	}

	currency := defaultCurrency
	if raw := get("currency"); raw != "" {
		currency, err = model.ParseCurrency(raw)
		if err != nil {
			return model.BudgetAllocation{}, err
		}
	}

	return model.BudgetAllocation{
		Department:  get("department"),
		Category:    get("category"),
		PeriodStart: start,
		PeriodEnd:   end,
		Allocated:   allocated,
		Currency:    currency,
	}, nil
}
