package analytics

import (
	"context"
	"fmt"
	"time"

	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/textgen"
)

// recentTrendMonths is how many trailing months are shown to the generator.
const recentTrendMonths = 3

// ExpenseSource fetches the full record set of one user.
type ExpenseSource interface {
	AllExpenses(ctx context.Context, userID string) ([]core.Expense, error)
}

type CategoryAnalysis struct {
	Breakdown     map[string]core.Money `json:"breakdown"`
	TopCategory   string                `json:"top_category"`
	CategoryCount int                   `json:"category_count"`
}

// Report is the insights document.
type Report struct {
	Insights         []string         `json:"insights"`
	SpendingTrends   []TrendPoint     `json:"spending_trends"`
	CategoryAnalysis CategoryAnalysis `json:"category_analysis"`
	BudgetHealth     BudgetHealth     `json:"budget_health"`
	Predictions      Forecast         `json:"predictions"`
	Summary          Totals           `json:"summary"`
}

// analyze computes every deterministic part of the report. Insights is left
// empty unless the record set is empty.
func analyze(expenses []core.Expense, profile Profile) (Report, promptData) {
	buckets := BucketByMonth(expenses)
	breakdown := TotalsByCategory(expenses)
	top := TopCategory(breakdown)
	totals := ComputeTotals(expenses)

	report := Report{
		SpendingTrends: []TrendPoint{},
		CategoryAnalysis: CategoryAnalysis{
			Breakdown:     breakdown,
			TopCategory:   top.Name,
			CategoryCount: len(breakdown),
		},
		BudgetHealth: AssessBudgetHealth(buckets),
		Summary:      totals,
	}
	if len(expenses) == 0 {
		report.Insights = []string{EmptyDataInsight}
		return report, promptData{}
	}

	trends := Trends(buckets)
	if profile.IncludeTrendDetail {
		report.SpendingTrends = trends
		report.Predictions = EstimateForecast(buckets)
	}

	recent := trends
	if len(recent) > recentTrendMonths {
		recent = recent[len(recent)-recentTrendMonths:]
	}
	return report, promptData{
		Totals:       totals,
		TopCategory:  top.Name,
		Categories:   RankCategories(breakdown),
		RecentMonths: recent,
	}
}

// Pipeline runs the insights computation for one user against injected
// collaborators.
type Pipeline struct {
	source    ExpenseSource
	generator textgen.Generator
	timeout   time.Duration
	logger    *log.Logger
}

// NewPipeline wires a pipeline. A nil generator behaves as unconfigured and
// a zero timeout leaves the caller's deadline in charge.
func NewPipeline(source ExpenseSource, generator textgen.Generator, timeout time.Duration, logger *log.Logger) *Pipeline {
	if generator == nil {
		generator = textgen.Disabled{}
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Pipeline{
		source:    source,
		generator: generator,
		timeout:   timeout,
		logger:    logger.WithComponent(log.ComponentInsights),
	}
}

// Summary returns the summary document of the user.
func (p *Pipeline) Summary(ctx context.Context, userID string) (Summary, error) {
	expenses, err := p.source.AllExpenses(ctx, userID)
	if err != nil {
		return Summary{}, fmt.Errorf("fetch expenses: %w", err)
	}
	return Summarize(expenses), nil
}

// Insights fetches the user's expenses once and builds the report. Only the
// fetch can fail; generation problems degrade to deterministic insights.
func (p *Pipeline) Insights(ctx context.Context, userID string, profile Profile) (Report, error) {
	expenses, err := p.source.AllExpenses(ctx, userID)
	if err != nil {
		return Report{}, fmt.Errorf("fetch expenses: %w", err)
	}
	return p.Build(ctx, expenses, profile), nil
}

// Build computes the report for an already fetched record set.
func (p *Pipeline) Build(ctx context.Context, expenses []core.Expense, profile Profile) Report {
	report, data := analyze(expenses, profile)
	if len(expenses) == 0 {
		return report
	}
	report.Insights = capInsights(p.generate(ctx, profile, data, report.CategoryAnalysis.Breakdown), profile.InsightCap)
	return report
}

func (p *Pipeline) generate(ctx context.Context, profile Profile, data promptData, breakdown map[string]core.Money) []string {
	topTotal := breakdown[data.TopCategory].Euros()

	prompt, err := profile.Prompt(data)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to render insights prompt", "profile", profile.Name, "error", err)
		return FailedInsights(data.Totals, data.TopCategory, topTotal)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	res := p.generator.Generate(ctx, prompt)
	switch res.Status {
	case textgen.StatusOK:
		p.logger.DebugContext(ctx, "Insights generated",
			"provider", p.generator.Name(),
			"profile", profile.Name,
			log.FieldDuration, time.Since(start).Milliseconds())
		return ProcessInsightText(res.Text, profile.InsightCap, profile.MinInsightLength)
	case textgen.StatusUnavailable:
		return UnconfiguredInsights(data.Totals, data.TopCategory)
	default:
		p.logger.WarnContext(ctx, "Insight generation failed, serving fallback",
			"provider", p.generator.Name(),
			"profile", profile.Name,
			log.FieldError, res.Err,
			log.FieldDuration, time.Since(start).Milliseconds())
		return FailedInsights(data.Totals, data.TopCategory, topTotal)
	}
}
