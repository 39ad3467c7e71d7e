package analytics

import (
	"testing"

	"cloud.google.com/go/civil"

	"github.com/finsight/backend/internal/domain"
)

func tx(date string, typ domain.TransactionType, amount float64, category string) domain.Transaction {
	d, _ := civil.ParseDate(date)
	return domain.Transaction{Amount: amount, Date: d, Type: typ, Category: category}
}

func TestSummarize(t *testing.T) {
	txns := []domain.Transaction{
		tx("2025-01-05", domain.TypeIncome, 3000, "Income"),
		tx("2025-01-10", domain.TypeExpense, 1200, "Housing"),
		tx("2025-01-12", domain.TypeExpense, 300, "Food & Dining"),
	}

	got := Summarize(txns)
	want := domain.Summary{Income: 3000, Expenses: 1500, Balance: 1500, Count: 3}
	if got != want {
		t.Errorf("Summarize = %+v, want %+v", got, want)
	}
}

func TestSummarize_Empty(t *testing.T) {
	got := Summarize(nil)
	if got != (domain.Summary{}) {
		t.Errorf("Summarize(nil) = %+v, want zero summary", got)
	}
}

func TestCompute_Breakdowns(t *testing.T) {
	txns := []domain.Transaction{
		tx("2025-01-05", domain.TypeIncome, 3000, "Income"),
		tx("2025-01-10", domain.TypeExpense, 1200, "Housing"),
		tx("2025-02-01", domain.TypeIncome, 3000, "Income"),
		tx("2025-02-03", domain.TypeExpense, 250, "Food & Dining"),
		tx("2025-02-20", domain.TypeExpense, 250, "Food & Dining"),
	}

	got := Compute(txns)

	if got.ByCategory["Housing"] != 1200 || got.ByCategory["Food & Dining"] != 500 {
		t.Errorf("ByCategory = %v", got.ByCategory)
	}
	if _, ok := got.ByCategory["Income"]; ok {
		t.Error("income transactions must not appear in the category breakdown")
	}

	jan := got.ByMonth["2025-01"]
	if jan.Income != 3000 || jan.Expenses != 1200 {
		t.Errorf("2025-01 bucket = %+v", jan)
	}
	feb := got.ByMonth["2025-02"]
	if feb.Income != 3000 || feb.Expenses != 500 {
		t.Errorf("2025-02 bucket = %+v", feb)
	}
}

func TestCompute_TopCategoriesOrderAndTies(t *testing.T) {
	txns := []domain.Transaction{
		tx("2025-01-01", domain.TypeExpense, 100, "Travel"),
		tx("2025-01-02", domain.TypeExpense, 100, "Shopping"),
		tx("2025-01-03", domain.TypeExpense, 400, "Housing"),
		tx("2025-01-04", domain.TypeExpense, 50, "Healthcare"),
		tx("2025-01-05", domain.TypeExpense, 30, "Education"),
		tx("2025-01-06", domain.TypeExpense, 20, "Entertainment"),
	}

	got := Compute(txns).TopCategories

	if len(got) != 5 {
		t.Fatalf("got %d top categories, want 5", len(got))
	}
	wantOrder := []string{"Housing", "Travel", "Shopping", "Healthcare", "Education"}
	for i, want := range wantOrder {
		if got[i].Category != want {
			t.Errorf("top category %d = %q, want %q (Travel and Shopping tie, first occurrence wins)", i, got[i].Category, want)
		}
	}
	if got[0].Amount != 400 {
		t.Errorf("top amount = %v, want 400", got[0].Amount)
	}
}

func TestTopCategories_FewerThanN(t *testing.T) {
	totals := map[string]float64{"Housing": 10}
	got := TopCategories(totals, []string{"Housing"}, 5)
	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
}
