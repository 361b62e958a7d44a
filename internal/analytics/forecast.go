package analytics

import "encoding/json"

// forecastWindow is the number of trailing months averaged by the forecast.
const forecastWindow = 3

// Forecast is a naive moving-average projection. When Available is false it
// encodes as an empty JSON object.
type Forecast struct {
	Available         bool
	NextMonthEstimate float64
	AnnualProjection  float64
}

// EstimateForecast averages the last three monthly totals.
func EstimateForecast(buckets map[string]*MonthBucket) Forecast {
	ordered := orderedBuckets(buckets)
	if len(ordered) < forecastWindow {
		return Forecast{}
	}
	var sum int64
	for _, b := range ordered[len(ordered)-forecastWindow:] {
		sum += b.Total.Cents
	}
	estimate := round(float64(sum)/forecastWindow/100, 2)
	return Forecast{
		Available:         true,
		NextMonthEstimate: estimate,
		AnnualProjection:  round(estimate*12, 2),
	}
}

func (f Forecast) MarshalJSON() ([]byte, error) {
	if !f.Available {
		return []byte("{}"), nil
	}
	return json.Marshal(struct {
		NextMonthEstimate float64 `json:"next_month_estimate"`
		AnnualProjection  float64 `json:"annual_projection"`
	}{f.NextMonthEstimate, f.AnnualProjection})
}
