package analytics

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// EmptyDataInsight is returned when the user has no expenses at all.
	EmptyDataInsight = "Start tracking your expenses to get personalized insights."
	// NoUsableInsight replaces generated text that yielded no usable line.
	NoUsableInsight = "Continue tracking expenses for personalized insights"
)

// bulletChars are stripped from the start of every generated line.
const bulletChars = "- •*0123456789."

// ProcessInsightText splits generated text into insight lines. Leading
// bullets, asterisks and list numbering are removed, and lines whose
// remaining length is not greater than minLen are dropped. The result holds
// at most limit lines and is never empty.
func ProcessInsightText(text string, limit, minLen int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.TrimSpace(strings.TrimLeft(line, bulletChars))
		if utf8.RuneCountInString(line) <= minLen {
			continue
		}
		out = append(out, line)
	}
	if len(out) == 0 {
		return []string{NoUsableInsight}
	}
	return capInsights(out, limit)
}

// UnconfiguredInsights is the deterministic set served when no text
// generation provider is configured.
func UnconfiguredInsights(t Totals, top string) []string {
	return []string{
		"Configure an AI provider API key to get AI-powered insights",
		fmt.Sprintf("You've spent $%.2f across %d transactions", t.Total.Euros(), t.Count),
		fmt.Sprintf("Your top spending category is %s", top),
	}
}

// FailedInsights is the deterministic set served when the provider call
// failed or timed out.
func FailedInsights(t Totals, top string, topTotal float64) []string {
	return []string{
		fmt.Sprintf("Total spending: $%.2f across %d transactions", t.Total.Euros(), t.Count),
		fmt.Sprintf("Top category: %s with $%.2f", top, topTotal),
		"Unable to generate AI insights. Please check your API key configuration.",
	}
}

func capInsights(lines []string, limit int) []string {
	if limit > 0 && len(lines) > limit {
		return lines[:limit]
	}
	return lines
}
