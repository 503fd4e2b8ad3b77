package pipeline

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/nsightlabs/spendintel/internal/model"
)

// VarianceLine compares one allocation against the actual spend of its
// group over the allocation period. All amounts are in the group's
// currency; no cross-currency aggregation happens here.
type VarianceLine struct {
	Group       model.GroupKey
	PeriodStart string
	PeriodEnd   string
	Allocated   decimal.Decimal
	Actual      decimal.Decimal
	Variance    decimal.Decimal
	VariancePct float64
	OverBudget  bool
}

// BudgetVariance computes actual vs allocated spend per budget line,
// sorted by largest absolute variance first. Expenses count toward an
// allocation only when their group matches and their date falls inside
// the allocation period.
func BudgetVariance(records []model.ExpenseRecord, budgets []model.BudgetAllocation) []VarianceLine {
	lines := make([]VarianceLine, 0, len(budgets))
	for _, b := range budgets {
		actual := decimal.Zero
		for _, r := range records {
			if r.Group() == b.Group() && b.Covers(r.Date) {
				actual = actual.Add(r.Amount)
			}
		}

		variance := actual.Sub(b.Allocated)
		var pct float64
		if b.Allocated.IsPositive() {
			pct, _ = variance.Div(b.Allocated).Mul(decimal.NewFromInt(100)).Float64()
		}

		lines = append(lines, VarianceLine{
			Group:       b.Group(),
			PeriodStart: b.PeriodStart.Format("2006-01-02"),
			PeriodEnd:   b.PeriodEnd.Format("2006-01-02"),
			Allocated:   b.Allocated,
			Actual:      actual,
			Variance:    variance,
			VariancePct: pct,
			OverBudget:  variance.IsPositive(),
		})
	}

	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Variance.Abs().GreaterThan(lines[j].Variance.Abs())
	})
	return lines
}
