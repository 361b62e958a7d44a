// Package receipt pre-fills an expense from a photographed or scanned
// receipt. Extraction is a keyword heuristic, not a receipt parser.
package receipt

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultCategory is suggested when no keyword matches.
const DefaultCategory = "Other"

// merchantScanLines is how many leading lines may hold the merchant name.
const merchantScanLines = 5

// amountPatterns are tried in order; the first match wins.
var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\$?\s*(\d+\.\d{2})`),
	regexp.MustCompile(`(?i)total[:\s]*(\d+\.\d{2})`),
	regexp.MustCompile(`(?i)amount[:\s]*(\d+\.\d{2})`),
}

type keywordSet struct {
	category string
	keywords []string
}

var categoryKeywords = []keywordSet{
	{"Food", []string{"restaurant", "cafe", "food", "starbucks", "mcdonald"}},
	{"Transport", []string{"uber", "taxi", "gas", "fuel", "parking"}},
	{"Shopping", []string{"store", "mall", "shop", "amazon"}},
}

// Extraction holds the fields guessed from OCR text. Nil pointers encode as
// JSON null.
type Extraction struct {
	Amount     *float64 `json:"amount"`
	Merchant   *string  `json:"merchant"`
	Category   string   `json:"category"`
	RawText    string   `json:"raw_text"`
	ReceiptURL string   `json:"receipt_url,omitempty"`
}

// Extract guesses amount, merchant and category from raw OCR text.
func Extract(text string) Extraction {
	return Extraction{
		Amount:   extractAmount(text),
		Merchant: extractMerchant(text),
		Category: guessCategory(text),
		RawText:  text,
	}
}

func extractAmount(text string) *float64 {
	for _, re := range amountPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		return &v
	}
	return nil
}

func extractMerchant(text string) *string {
	lines := strings.Split(text, "\n")
	if len(lines) > merchantScanLines {
		lines = lines[:merchantScanLines]
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) > 3 && !strings.ContainsFunc(line, unicode.IsDigit) {
			return &line
		}
	}
	return nil
}

func guessCategory(text string) string {
	lower := strings.ToLower(text)
	for _, set := range categoryKeywords {
		for _, kw := range set.keywords {
			if strings.Contains(lower, kw) {
				return set.category
			}
		}
	}
	return DefaultCategory
}
