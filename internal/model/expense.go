// Package model defines the value objects shared by all engine subsystems.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Currency is an ISO 4217 code from the fixed set the engine operates in.
type Currency string

// Supported currencies. Every amount is scoped to exactly one of these;
// the engine never converts between them.
const (
	USD Currency = "USD"
	INR Currency = "INR"
	CAD Currency = "CAD"
	TRY Currency = "TRY"
)

// Currencies lists the supported set in a stable order.
func Currencies() []Currency {
	return []Currency{CAD, INR, TRY, USD}
}

// ParseCurrency validates a currency code against the supported set.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case USD, INR, CAD, TRY:
		return c, nil
	}
	return "", fmt.Errorf("unsupported currency %q", s)
}

// ExpenseRecord is a single immutable expense fact. Category is empty
// until a label is supplied by ingestion or predicted by the
// categorization model; the engine itself never writes to a record.
type ExpenseRecord struct {
	Date        time.Time
	Amount      decimal.Decimal
	Currency    Currency
	Vendor      string
	Description string
	Department  string
	Category    string
	SourceID    string
}

// HasCategory reports whether the record carries a category label.
func (r ExpenseRecord) HasCategory() bool {
	return r.Category != ""
}

// Group returns the partitioning key this record belongs to.
func (r ExpenseRecord) Group() GroupKey {
	return GroupKey{
		Department: r.Department,
		Category:   r.Category,
		Currency:   r.Currency,
	}
}

// BudgetAllocation is a planned spend target for one group over a closed
// date interval. It is a forecasting reference only; the engine never
// mutates it.
type BudgetAllocation struct {
	Department  string
	Category    string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Allocated   decimal.Decimal
	Currency    Currency
}

// Group returns the partitioning key this allocation budgets for.
func (b BudgetAllocation) Group() GroupKey {
	return GroupKey{
		Department: b.Department,
		Category:   b.Category,
		Currency:   b.Currency,
	}
}

// Covers reports whether d falls inside the allocation period.
func (b BudgetAllocation) Covers(d time.Time) bool {
	return !d.Before(b.PeriodStart) && !d.After(b.PeriodEnd)
}

// GroupKey is the (department, category, currency) tuple that partitions
// expenses for forecasting, budgets, and anomaly baselines. All three
// subsystems use this same tuple.
type GroupKey struct {
	Department string   `json:"department"`
	Category   string   `json:"category"`
	Currency   Currency `json:"currency"`
}

func (k GroupKey) String() string {
	return k.Department + "/" + k.Category + "/" + string(k.Currency)
}
