// Package analytics computes the aggregate views served alongside transaction
// listings: the income/expense summary, category and month breakdowns, and the
// top spending categories.
package analytics

import (
	"sort"

	"github.com/finsight/backend/internal/domain"
)

// CategoryTotal is one entry of the top-categories ranking.
type CategoryTotal struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// Analytics is the full breakdown served by the analytics endpoint.
type Analytics struct {
	ByCategory    map[string]float64              `json:"byCategory"`
	ByMonth       map[string]domain.MonthlyBucket `json:"byMonth"`
	TopCategories []CategoryTotal                 `json:"topCategories"`
}

const topCategoryCount = 5

// Summarize sums income, expenses, balance and count over txns.
func Summarize(txns []domain.Transaction) domain.Summary {
	s := domain.Summary{Count: len(txns)}
	for _, t := range txns {
		if t.Type == domain.TypeIncome {
			s.Income += t.Amount
		} else {
			s.Expenses += t.Amount
		}
	}
	s.Balance = s.Income - s.Expenses
	return s
}

// Compute groups txns by expense category and by calendar month, and ranks the
// top five expense categories by summed amount. Ranking ties are broken by the
// category's first occurrence in the input order, which keeps the result
// deterministic for a fixed database ordering.
func Compute(txns []domain.Transaction) Analytics {
	byCategory := make(map[string]float64)
	byMonth := make(map[string]domain.MonthlyBucket)
	var categoryOrder []string

	for _, t := range txns {
		month := t.Month()
		b := byMonth[month]
		if t.Type == domain.TypeIncome {
			b.Income += t.Amount
		} else {
			b.Expenses += t.Amount
			if _, seen := byCategory[t.Category]; !seen {
				categoryOrder = append(categoryOrder, t.Category)
			}
			byCategory[t.Category] += t.Amount
		}
		byMonth[month] = b
	}

	return Analytics{
		ByCategory:    byCategory,
		ByMonth:       byMonth,
		TopCategories: TopCategories(byCategory, categoryOrder, topCategoryCount),
	}
}

// TopCategories ranks totals by amount descending, ties broken by position in
// order (first occurrence wins), truncated to n entries.
func TopCategories(totals map[string]float64, order []string, n int) []CategoryTotal {
	ranked := make([]CategoryTotal, 0, len(order))
	for _, cat := range order {
		ranked = append(ranked, CategoryTotal{Category: cat, Amount: totals[cat]})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Amount > ranked[j].Amount
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
