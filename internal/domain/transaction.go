package domain

import (
	"time"

	"cloud.google.com/go/civil"
)

// TransactionType is the direction of a transaction. Amounts are always
// non-negative; the sign of money flow is carried here, not by the amount.
type TransactionType string

const (
	TypeIncome  TransactionType = "INCOME"
	TypeExpense TransactionType = "EXPENSE"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == TypeIncome || t == TypeExpense
}

// Transaction is one income or expense record owned by a user.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Amount      float64         `json:"amount"`
	Description string          `json:"description"`
	Date        civil.Date      `json:"date"`
	Type        TransactionType `json:"type"`
	Category    string          `json:"category"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   *time.Time      `json:"updatedAt,omitempty"`
}

// Month returns the calendar-month bucket key (YYYY-MM) for the transaction date.
func (t Transaction) Month() string {
	return t.Date.In(time.UTC).Format("2006-01")
}

// Summary is the simple aggregate over a set of transactions.
type Summary struct {
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
	Balance  float64 `json:"balance"`
	Count    int     `json:"count"`
}

// MonthlyBucket holds summed income and expenses for one calendar month.
// Derived on demand, never persisted.
type MonthlyBucket struct {
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
}

// Prediction is a projected month of income and spending. Confidence is a
// heuristic 40-95 score, not a statistical confidence interval.
type Prediction struct {
	Month             string  `json:"month"`
	PredictedIncome   float64 `json:"predictedIncome"`
	PredictedExpenses float64 `json:"predictedExpenses"`
	PredictedBalance  float64 `json:"predictedBalance"`
	Confidence        float64 `json:"confidence"`
}

// AnomalySeverity tags how far outside the trailing-month distribution an
// expense falls.
type AnomalySeverity string

const (
	SeverityHigh   AnomalySeverity = "HIGH"
	SeverityMedium AnomalySeverity = "MEDIUM"
)

// Anomaly flags a single expense whose amount deviates more than two standard
// deviations from the trailing-month mean.
type Anomaly struct {
	Transaction Transaction     `json:"transaction"`
	Severity    AnomalySeverity `json:"severity"`
	Message     string          `json:"message"`
}

// Insight is a generated natural-language statement persisted for audit.
type Insight struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Insight   string    `json:"insight"`
	Type      string    `json:"type"`
	Priority  string    `json:"priority"`
	CreatedAt time.Time `json:"createdAt"`
}

const (
	InsightTypeSpendingAlert = "SPENDING_ALERT"
	InsightPriorityMedium    = "MEDIUM"
)
