// Package categories assigns a spending category to a transaction
// description: first a fixed keyword table, then optionally the language
// model for descriptions the table does not cover. Table order matters: the
// first matching category wins.
package categories

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/finsight/backend/internal/insights"
)

// Fallback is assigned when nothing else matches.
const Fallback = "Other"

// All is the closed set of categories a transaction may carry.
var All = []string{
	"Food & Dining",
	"Transportation",
	"Shopping",
	"Entertainment",
	"Bills & Utilities",
	"Healthcare",
	"Education",
	"Travel",
	"Housing",
	"Income",
	"Investments",
	Fallback,
}

type keywordEntry struct {
	category string
	keywords []string
}

// keywordTable is scanned top to bottom; the first category with a matching
// keyword wins.
var keywordTable = []keywordEntry{
	{"Food & Dining", []string{"restaurant", "food", "cafe", "lunch", "dinner", "breakfast", "pizza", "burger", "starbucks", "mcdonalds"}},
	{"Transportation", []string{"uber", "lyft", "gas", "fuel", "parking", "transit", "metro", "taxi", "car"}},
	{"Shopping", []string{"amazon", "walmart", "target", "store", "shopping", "mall", "clothing", "nike"}},
	{"Entertainment", []string{"netflix", "spotify", "movie", "concert", "game", "steam", "playstation"}},
	{"Bills & Utilities", []string{"electric", "water", "internet", "phone", "bill", "utility", "insurance"}},
	{"Healthcare", []string{"doctor", "hospital", "pharmacy", "medicine", "dental", "health"}},
	{"Education", []string{"tuition", "school", "course", "book", "university", "college"}},
	{"Travel", []string{"hotel", "flight", "airbnb", "booking", "vacation", "trip"}},
	{"Housing", []string{"rent", "mortgage", "apartment", "maintenance", "repair"}},
}

const (
	categorizeTemperature = 0.3
	categorizeMaxTokens   = 20
)

// Categorizer resolves transaction descriptions to categories. The advisor is
// optional; without it, unmatched descriptions fall back to Other.
type Categorizer struct {
	advisor insights.Advisor
	log     zerolog.Logger
}

// New creates a Categorizer. advisor may be nil to disable the model fallback.
func New(advisor insights.Advisor, log zerolog.Logger) *Categorizer {
	return &Categorizer{
		advisor: advisor,
		log:     log,
	}
}

// Categorize never fails: keyword table first, then the model, then Other.
func (c *Categorizer) Categorize(ctx context.Context, description string) string {
	if category, ok := MatchKeyword(description); ok {
		return category
	}

	if c.advisor == nil {
		return Fallback
	}

	reply, err := c.advisor.Generate(ctx, insights.Request{
		System:          "Categorize the transaction into ONE of these categories: " + strings.Join(All, ", ") + ". Reply with ONLY the category name.",
		Prompt:          "Transaction: " + description,
		Temperature:     categorizeTemperature,
		MaxOutputTokens: categorizeMaxTokens,
	})
	if err != nil {
		c.log.Warn().Err(err).Str("description", description).Msg("Categorization model call failed")
		return Fallback
	}

	category := strings.TrimSpace(reply)
	for _, known := range All {
		if category == known {
			return category
		}
	}
	return Fallback
}

// MatchKeyword scans the keyword table in order and returns the first
// category whose keyword occurs in the description.
func MatchKeyword(description string) (string, bool) {
	lower := strings.ToLower(description)
	for _, entry := range keywordTable {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.category, true
			}
		}
	}
	return "", false
}
