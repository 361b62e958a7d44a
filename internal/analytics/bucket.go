// Package analytics turns a user's expense records into the summary and
// insights documents served by the API.
//
// Everything in this package except Pipeline is a pure function of its
// input and is safe for concurrent use.
package analytics

import (
	"sort"

	"spendwise/internal/core"
)

// MonthBucket aggregates the expenses of one calendar month.
type MonthBucket struct {
	Month      string
	Total      core.Money
	Count      int
	ByCategory map[string]core.Money
}

// BucketByMonth groups expenses by the first seven characters of their
// date. Malformed dates fall into whatever prefix they have. Buckets are
// only created for months that contain at least one expense.
func BucketByMonth(expenses []core.Expense) map[string]*MonthBucket {
	buckets := make(map[string]*MonthBucket)
	for _, e := range expenses {
		key := e.MonthKey()
		b, ok := buckets[key]
		if !ok {
			b = &MonthBucket{Month: key, ByCategory: make(map[string]core.Money)}
			buckets[key] = b
		}
		b.Total = b.Total.Add(e.Amount)
		b.Count++
		b.ByCategory[e.Category] = b.ByCategory[e.Category].Add(e.Amount)
	}
	return buckets
}

// SortedMonths returns the bucket keys in ascending lexicographic order.
func SortedMonths(buckets map[string]*MonthBucket) []string {
	months := make([]string, 0, len(buckets))
	for m := range buckets {
		months = append(months, m)
	}
	sort.Strings(months)
	return months
}

// orderedBuckets returns the buckets sorted by month.
func orderedBuckets(buckets map[string]*MonthBucket) []*MonthBucket {
	months := SortedMonths(buckets)
	out := make([]*MonthBucket, len(months))
	for i, m := range months {
		out[i] = buckets[m]
	}
	return out
}

// MonthlySeries returns the month totals sorted ascending by month.
func MonthlySeries(expenses []core.Expense) []core.MonthAmount {
	buckets := BucketByMonth(expenses)
	series := make([]core.MonthAmount, 0, len(buckets))
	for _, b := range orderedBuckets(buckets) {
		series = append(series, core.MonthAmount{Month: b.Month, Amount: b.Total})
	}
	return series
}
