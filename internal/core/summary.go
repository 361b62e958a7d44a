package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// MonthAmount is one point of a month-ordered series.
type MonthAmount struct {
	Month  string `json:"month"`
	Amount Money  `json:"amount"`
}
