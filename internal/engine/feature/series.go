package feature

import (
	"sort"
	"time"

	"github.com/nsightlabs/spendintel/internal/model"
)

// SeriesPoint is one calendar bucket of aggregated spend for a group, in
// the group's currency.
type SeriesPoint struct {
	Bucket time.Time
	Total  float64
}

// BucketMonthly aggregates a group's expenses into calendar-month
// buckets. Months between the first and last observation with no spend
// are filled with zero so the series has no gaps. Points are returned in
// ascending time order.
func BucketMonthly(records []model.ExpenseRecord, key model.GroupKey) []SeriesPoint {
	totals := make(map[time.Time]float64)
	var first, last time.Time

	for _, r := range records {
		if r.Group() != key {
			continue
		}
		m := monthStart(r.Date)
		amount, _ := r.Amount.Float64()
		totals[m] += amount
		if first.IsZero() || m.Before(first) {
			first = m
		}
		if last.IsZero() || m.After(last) {
			last = m
		}
	}

	if first.IsZero() {
		return nil
	}

	// Fill every month in the range so gaps appear as zero spend
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		if _, ok := totals[m]; !ok {
			totals[m] = 0
		}
	}

	points := make([]SeriesPoint, 0, len(totals))
	for m, total := range totals {
		points = append(points, SeriesPoint{Bucket: m, Total: total})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Bucket.Before(points[j].Bucket)
	})
	return points
}

// GroupRecords partitions records by their grouping key. Records without
// a category are excluded: they have no complete key until categorized.
func GroupRecords(records []model.ExpenseRecord) map[model.GroupKey][]model.ExpenseRecord {
	groups := make(map[model.GroupKey][]model.ExpenseRecord)
	for _, r := range records {
		if !r.HasCategory() {
			continue
		}
		k := r.Group()
		groups[k] = append(groups[k], r)
	}
	return groups
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
