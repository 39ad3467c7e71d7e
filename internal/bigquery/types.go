// Package bigquery declares the repository interfaces and row schemas for the
// finance dataset. Concrete client-backed implementations live in
// internal/infra/bigquery; services depend only on these interfaces so tests
// can substitute in-memory fakes.
package bigquery

import (
	"context"
	"errors"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/finsight/backend/internal/domain"
)

// ErrTransactionNotFound is returned by update/delete when no row matches the
// (transaction_id, user_id) pair: either the id is unknown or the record
// belongs to another user.
var ErrTransactionNotFound = errors.New("transaction not found")

// TransactionFilter narrows a transaction listing. Zero-valued fields are not
// applied.
type TransactionFilter struct {
	StartDate *civil.Date
	EndDate   *civil.Date
	Category  string
	Type      domain.TransactionType
}

// TransactionUpdate carries the fields of a partial update. Nil fields are
// left untouched.
type TransactionUpdate struct {
	Amount      *float64
	Description *string
	Date        *civil.Date
	Type        *domain.TransactionType
	Category    *string
}

// TransactionRepository provides an interface for transaction persistence.
type TransactionRepository interface {
	// InsertTransaction inserts a single transaction.
	InsertTransaction(ctx context.Context, t *domain.Transaction) error

	// QueryTransactions lists a user's transactions matching the filter,
	// ordered by transaction date then creation time.
	QueryTransactions(ctx context.Context, userID string, f TransactionFilter) ([]domain.Transaction, error)

	// QueryRecentTransactions lists a user's most recent transactions by date
	// descending, up to limit.
	QueryRecentTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error)

	// UpdateTransaction applies a partial update to the user's transaction and
	// returns the updated record. Returns ErrTransactionNotFound when no row
	// matches.
	UpdateTransaction(ctx context.Context, userID, transactionID string, upd TransactionUpdate) (*domain.Transaction, error)

	// DeleteTransaction removes the user's transaction. Returns
	// ErrTransactionNotFound when no row matches.
	DeleteTransaction(ctx context.Context, userID, transactionID string) error
}

// InsightRepository provides an interface for the AI-insight audit log.
type InsightRepository interface {
	// InsertInsight appends one generated insight to the audit log.
	InsertInsight(ctx context.Context, ins *domain.Insight) error
}

// TransactionRow represents a transaction record in finance.transactions.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	UserID string `bigquery:"user_id"` // REQUIRED

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED DATE

	Amount *big.Rat `bigquery:"amount"` // REQUIRED NUMERIC, always >= 0

	Description string `bigquery:"description"` // REQUIRED STRING
	Type        string `bigquery:"type"`        // REQUIRED: INCOME | EXPENSE
	Category    string `bigquery:"category"`    // REQUIRED STRING

	CreatedTS time.Time              `bigquery:"created_ts"` // REQUIRED
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"` // NULLABLE
}

// InsightRow represents an audit record in finance.ai_insights.
type InsightRow struct {
	InsightID string    `bigquery:"insight_id"`
	UserID    string    `bigquery:"user_id"`
	Insight   string    `bigquery:"insight"`
	Type      string    `bigquery:"type"`
	Priority  string    `bigquery:"priority"`
	CreatedTS time.Time `bigquery:"created_ts"`
}

// RowFromTransaction maps a domain transaction onto its storage row.
func RowFromTransaction(t *domain.Transaction) *TransactionRow {
	row := &TransactionRow{
		TransactionID:   t.ID,
		UserID:          t.UserID,
		TransactionDate: t.Date,
		Amount:          RatFromAmount(t.Amount),
		Description:     t.Description,
		Type:            string(t.Type),
		Category:        t.Category,
		CreatedTS:       t.CreatedAt,
	}
	if t.UpdatedAt != nil {
		row.UpdatedTS = bigquery.NullTimestamp{Timestamp: *t.UpdatedAt, Valid: true}
	}
	return row
}

// Transaction maps a storage row back onto the domain type.
func (r *TransactionRow) Transaction() domain.Transaction {
	t := domain.Transaction{
		ID:          r.TransactionID,
		UserID:      r.UserID,
		Amount:      AmountFromRat(r.Amount),
		Description: r.Description,
		Date:        r.TransactionDate,
		Type:        domain.TransactionType(r.Type),
		Category:    r.Category,
		CreatedAt:   r.CreatedTS,
	}
	if r.UpdatedTS.Valid {
		ts := r.UpdatedTS.Timestamp
		t.UpdatedAt = &ts
	}
	return t
}

// RatFromAmount converts a monetary amount to the NUMERIC wire type. Amounts
// are rounded to cents so the rational stays within NUMERIC's scale.
func RatFromAmount(amount float64) *big.Rat {
	cents := int64(amount*100 + 0.5)
	if amount < 0 {
		cents = int64(amount*100 - 0.5)
	}
	return big.NewRat(cents, 100)
}

// AmountFromRat converts a NUMERIC value back to a float amount. Nil is 0.
func AmountFromRat(r *big.Rat) float64 {
	if r == nil {
		return 0
	}
	f, _ := r.Float64()
	return f
}
