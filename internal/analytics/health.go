package analytics

import (
	"fmt"
	"strconv"
)

// HealthStatus classifies recent spend against the historical average.
type HealthStatus string

const (
	HealthInsufficientData HealthStatus = "insufficient_data"
	HealthWarning          HealthStatus = "warning"
	HealthGood             HealthStatus = "good"
	HealthNormal           HealthStatus = "normal"
)

type BudgetHealth struct {
	Status         HealthStatus `json:"status"`
	Message        string       `json:"message"`
	Recommendation string       `json:"recommendation,omitempty"`
}

// AssessBudgetHealth compares the last month total to the mean of all
// monthly totals. At least two months are required.
func AssessBudgetHealth(buckets map[string]*MonthBucket) BudgetHealth {
	ordered := orderedBuckets(buckets)
	if len(ordered) < 2 {
		return BudgetHealth{Status: HealthInsufficientData, Message: "Need more data for analysis"}
	}

	var sum int64
	for _, b := range ordered {
		sum += b.Total.Cents
	}
	recent := float64(ordered[len(ordered)-1].Total.Cents)
	avg := float64(sum) / float64(len(ordered))

	switch {
	case recent > avg*1.2:
		return BudgetHealth{
			Status:         HealthWarning,
			Message:        fmt.Sprintf("Spending is %s%% above average", formatPercent((recent/avg-1)*100)),
			Recommendation: "Consider reviewing your expenses",
		}
	case recent < avg*0.8:
		return BudgetHealth{
			Status:         HealthGood,
			Message:        fmt.Sprintf("Spending is %s%% below average", formatPercent((1-recent/avg)*100)),
			Recommendation: "Great job managing expenses",
		}
	default:
		return BudgetHealth{
			Status:         HealthNormal,
			Message:        "Spending is consistent with your average",
			Recommendation: "Maintain current spending habits",
		}
	}
}

// formatPercent rounds to one decimal and always prints it, so 60 is "60.0".
func formatPercent(v float64) string {
	return strconv.FormatFloat(round(v, 1), 'f', 1, 64)
}
