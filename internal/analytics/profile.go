package analytics

import (
	"bytes"
	"fmt"
	"text/template"

	"spendwise/internal/core"
	"spendwise/internal/textgen"
)

const advisorSystemPrompt = "You are an expert financial advisor providing detailed, actionable insights based on spending data. Be specific and reference actual numbers."

const fullPromptTemplate = `Analyze this comprehensive expense data and provide 5-6 detailed, actionable insights:

Total spent: ${{euros .Totals.Total}}
Number of transactions: {{.Totals.Count}}
Average per transaction: ${{printf "%.2f" .Totals.Average}}
Top spending category: {{.TopCategory}}
Category breakdown:
{{- range .Categories}}
- {{.Name}}: ${{euros .Amount}}
{{- end}}
Recent monthly trends:
{{- range .RecentMonths}}
- {{.Month}}: ${{euros .Total}} over {{.Count}} transactions{{with .ChangePercent}} ({{pct .}}%){{end}}
{{- end}}

Provide insights covering:
1. Overall spending patterns
2. Category-specific observations
3. Month-over-month trends
4. Actionable recommendations
5. Potential savings opportunities
6. Behavioral patterns

Format: One insight per line, starting with a dash (-)`

const briefPromptTemplate = `Give 3-4 short, actionable spending insights for this data:

Total spent: ${{euros .Totals.Total}} across {{.Totals.Count}} transactions
Top spending category: {{.TopCategory}}
Category breakdown:
{{- range .Categories}}
- {{.Name}}: ${{euros .Amount}}
{{- end}}

Format: One insight per line, starting with a dash (-)`

// Profile configures one flavour of the insights pipeline.
type Profile struct {
	Name string
	// InsightCap bounds the number of insight lines returned.
	InsightCap int
	// MinInsightLength is the length a generated line must exceed to be kept.
	MinInsightLength int
	// IncludeTrendDetail controls whether the trend series and forecast are
	// part of the report. Budget health is always computed.
	IncludeTrendDetail bool

	System      string
	MaxTokens   int
	Temperature float64

	tmpl *template.Template
}

// promptData is the view handed to the prompt template.
type promptData struct {
	Totals       Totals
	TopCategory  string
	Categories   []core.CategoryAmount
	RecentMonths []TrendPoint
}

var templateFuncs = template.FuncMap{
	"euros": func(m core.Money) string { return fmt.Sprintf("%.2f", m.Euros()) },
	"pct":   func(p *float64) string { return fmt.Sprintf("%+.1f", *p) },
}

// NewProfile parses promptTemplate and returns a profile using it.
func NewProfile(name, promptTemplate string, insightCap, minLen int, trendDetail bool) (Profile, error) {
	tmpl, err := template.New(name).Funcs(templateFuncs).Parse(promptTemplate)
	if err != nil {
		return Profile{}, fmt.Errorf("parse prompt template %q: %w", name, err)
	}
	return Profile{
		Name:               name,
		InsightCap:         insightCap,
		MinInsightLength:   minLen,
		IncludeTrendDetail: trendDetail,
		System:             advisorSystemPrompt,
		MaxTokens:          500,
		Temperature:        0.7,
		tmpl:               tmpl,
	}, nil
}

func mustProfile(name, promptTemplate string, insightCap, minLen int, trendDetail bool) Profile {
	p, err := NewProfile(name, promptTemplate, insightCap, minLen, trendDetail)
	if err != nil {
		panic(err)
	}
	return p
}

var (
	// FullProfile produces up to six insights with trend and forecast detail.
	FullProfile = mustProfile("full", fullPromptTemplate, 6, 10, true)
	// BriefProfile produces up to four insights and leaves out trend detail.
	// Its length floor is 3 so short tips such as "Save more" survive.
	BriefProfile = mustProfile("brief", briefPromptTemplate, 4, 3, false)
)

// ProfileByName resolves a built-in profile.
func ProfileByName(name string) (Profile, bool) {
	switch name {
	case FullProfile.Name:
		return FullProfile, true
	case BriefProfile.Name:
		return BriefProfile, true
	default:
		return Profile{}, false
	}
}

// Prompt renders the generation request for the given view.
func (p Profile) Prompt(d promptData) (textgen.Prompt, error) {
	if p.tmpl == nil {
		return textgen.Prompt{}, fmt.Errorf("profile %q has no prompt template", p.Name)
	}
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, d); err != nil {
		return textgen.Prompt{}, fmt.Errorf("render prompt %q: %w", p.Name, err)
	}
	return textgen.Prompt{
		System:      p.System,
		User:        buf.String(),
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
	}, nil
}
