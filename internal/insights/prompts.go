package insights

import (
	"fmt"
	"strings"

	"github.com/finsight/backend/internal/analytics"
)

const insightsSystemPrompt = "You are a helpful financial advisor providing personalized insights."

// insightsPrompt formats the aggregated numbers into the fixed analysis prompt.
// The model is asked for STRICT JSON so the reply survives a single parse.
func insightsPrompt(income, expenses float64, topCategories []analytics.CategoryTotal) string {
	var b strings.Builder

	b.WriteString("You are a financial advisor analyzing someone's spending patterns. Here's their data:\n\n")
	fmt.Fprintf(&b, "Total Income: $%.2f\n", income)
	fmt.Fprintf(&b, "Total Expenses: $%.2f\n", expenses)
	fmt.Fprintf(&b, "Balance: $%.2f\n\n", income-expenses)

	b.WriteString("Top Spending Categories:\n")
	for _, c := range topCategories {
		fmt.Fprintf(&b, "- %s: $%.2f\n", c.Category, c.Amount)
	}

	b.WriteString("\nProvide 3-4 specific, actionable insights and recommendations. Be concise, friendly, and practical. Focus on:\n")
	b.WriteString("1. Spending patterns and anomalies\n")
	b.WriteString("2. Savings opportunities\n")
	b.WriteString("3. Budget recommendations\n")
	b.WriteString("4. Financial health tips\n\n")
	b.WriteString("Format as STRICT JSON with two string arrays: \"insights\" and \"recommendations\". ")
	b.WriteString("Each entry should be a short sentence or two. ")
	b.WriteString("Return ONLY raw JSON, no code fences, no Markdown.")

	return b.String()
}

// chatSystemPrompt embeds the user's numbers into the advisor persona for the
// free-text chat.
func chatSystemPrompt(count int, income, expenses float64) string {
	context := fmt.Sprintf("User has %d recent transactions.\nTotal income: $%.2f\nTotal expenses: $%.2f",
		count, income, expenses)
	return "You are a helpful financial advisor. User context: " + context + ". Provide concise, actionable advice."
}

// cleanModelJSON strips Markdown fences and surrounding prose from a model
// reply that should have been a bare JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// Extra safety: keep only from the first '{' to the last '}'.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
