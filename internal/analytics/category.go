package analytics

import (
	"sort"

	"spendwise/internal/core"
)

// NoCategory is reported as the top category of an empty record set.
const NoCategory = "None"

// TotalsByCategory sums amounts per category label.
func TotalsByCategory(expenses []core.Expense) map[string]core.Money {
	totals := make(map[string]core.Money)
	for _, e := range expenses {
		totals[e.Category] = totals[e.Category].Add(e.Amount)
	}
	return totals
}

// RankCategories returns the categories ordered by descending amount.
// Equal amounts are ordered by name.
func RankCategories(totals map[string]core.Money) []core.CategoryAmount {
	ranked := make([]core.CategoryAmount, 0, len(totals))
	for name, amount := range totals {
		ranked = append(ranked, core.CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Amount.Cents != ranked[j].Amount.Cents {
			return ranked[i].Amount.Cents > ranked[j].Amount.Cents
		}
		return ranked[i].Name < ranked[j].Name
	})
	return ranked
}

// TopCategory returns the category with the largest total, or NoCategory.
func TopCategory(totals map[string]core.Money) core.CategoryAmount {
	ranked := RankCategories(totals)
	if len(ranked) == 0 {
		return core.CategoryAmount{Name: NoCategory}
	}
	return ranked[0]
}
