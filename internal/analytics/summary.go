package analytics

import "spendwise/internal/core"

// Summary is the lightweight analytics document.
type Summary struct {
	TotalExpenses     core.Money            `json:"total_expenses"`
	ExpenseCount      int                   `json:"expense_count"`
	CategoryBreakdown map[string]core.Money `json:"category_breakdown"`
	MonthlyTrend      []core.MonthAmount    `json:"monthly_trend"`
}

// Totals is the headline of the insights document.
type Totals struct {
	Total   core.Money `json:"total"`
	Count   int        `json:"count"`
	Average float64    `json:"average"`
}

// Summarize computes the summary of a record set. An empty set yields zero
// totals with an empty breakdown and trend.
func Summarize(expenses []core.Expense) Summary {
	return Summary{
		TotalExpenses:     ComputeTotals(expenses).Total,
		ExpenseCount:      len(expenses),
		CategoryBreakdown: TotalsByCategory(expenses),
		MonthlyTrend:      MonthlySeries(expenses),
	}
}

// ComputeTotals returns the grand total, count and mean amount.
func ComputeTotals(expenses []core.Expense) Totals {
	var t Totals
	for _, e := range expenses {
		t.Total = t.Total.Add(e.Amount)
	}
	t.Count = len(expenses)
	if t.Count > 0 {
		t.Average = t.Total.Euros() / float64(t.Count)
	}
	return t
}
