package analytics

import (
	"math"

	"spendwise/internal/core"
)

// Direction is the sign of a month-over-month change.
type Direction string

const (
	DirectionUp     Direction = "up"
	DirectionDown   Direction = "down"
	DirectionStable Direction = "stable"
)

// TrendPoint describes one month of the spending series. ChangePercent and
// Trend are only set when the previous month exists with a positive total.
type TrendPoint struct {
	Month         string     `json:"month"`
	Total         core.Money `json:"total"`
	Count         int        `json:"count"`
	Average       float64    `json:"average"`
	ChangePercent *float64   `json:"change_percent,omitempty"`
	Trend         Direction  `json:"trend,omitempty"`
}

// Trends builds the month-ordered trend series.
func Trends(buckets map[string]*MonthBucket) []TrendPoint {
	ordered := orderedBuckets(buckets)
	points := make([]TrendPoint, 0, len(ordered))
	for i, b := range ordered {
		p := TrendPoint{Month: b.Month, Total: b.Total, Count: b.Count}
		if b.Count > 0 {
			p.Average = b.Total.Euros() / float64(b.Count)
		}
		if i > 0 {
			prev := ordered[i-1].Total.Cents
			if prev > 0 {
				change := float64(b.Total.Cents-prev) / float64(prev) * 100
				pct := round(change, 1)
				p.ChangePercent = &pct
				p.Trend = directionOf(change)
			}
		}
		points = append(points, p)
	}
	return points
}

func directionOf(change float64) Direction {
	switch {
	case change > 0:
		return DirectionUp
	case change < 0:
		return DirectionDown
	default:
		return DirectionStable
	}
}

// round rounds half away from zero to the given number of decimals.
func round(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}
