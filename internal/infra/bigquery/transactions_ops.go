package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	bq "github.com/finsight/backend/internal/bigquery"
	"github.com/finsight/backend/internal/domain"
)

const transactionColumns = `
	transaction_id,
	user_id,
	transaction_date,
	amount,
	description,
	type,
	category,
	created_ts,
	updated_ts`

// InsertTransaction inserts a single transaction into finance.transactions.
func (s *Store) InsertTransaction(ctx context.Context, t *domain.Transaction) error {
	row := bq.RowFromTransaction(t)

	inserter := s.client.DatasetInProject(s.projectID, s.datasetID).Table(transactionsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertTransaction: inserting row: %w", err)
	}
	return nil
}

// QueryTransactions lists a user's transactions matching the filter, ordered
// by transaction date then creation time.
func (s *Store) QueryTransactions(ctx context.Context, userID string, f bq.TransactionFilter) ([]domain.Transaction, error) {
	var b strings.Builder
	b.WriteString("SELECT" + transactionColumns + "\n")
	b.WriteString("FROM " + s.table(transactionsTable) + "\n")
	b.WriteString("WHERE user_id = @user_id\n")

	params := []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	if f.StartDate != nil {
		b.WriteString("AND transaction_date >= @start_date\n")
		params = append(params, bigquery.QueryParameter{Name: "start_date", Value: f.StartDate.String()})
	}
	if f.EndDate != nil {
		b.WriteString("AND transaction_date <= @end_date\n")
		params = append(params, bigquery.QueryParameter{Name: "end_date", Value: f.EndDate.String()})
	}
	if f.Category != "" {
		b.WriteString("AND category = @category\n")
		params = append(params, bigquery.QueryParameter{Name: "category", Value: f.Category})
	}
	if f.Type != "" {
		b.WriteString("AND type = @type\n")
		params = append(params, bigquery.QueryParameter{Name: "type", Value: string(f.Type)})
	}

	b.WriteString("ORDER BY transaction_date, created_ts")

	q := s.client.Query(b.String())
	q.Parameters = params

	return s.readTransactions(ctx, q, "QueryTransactions")
}

// QueryRecentTransactions lists a user's most recent transactions by date
// descending, up to limit.
func (s *Store) QueryRecentTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	q := s.client.Query("SELECT" + transactionColumns + `
		FROM ` + s.table(transactionsTable) + `
		WHERE user_id = @user_id
		ORDER BY transaction_date DESC, created_ts DESC
		LIMIT @row_limit`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "row_limit", Value: int64(limit)},
	}

	return s.readTransactions(ctx, q, "QueryRecentTransactions")
}

func (s *Store) readTransactions(ctx context.Context, q *bigquery.Query, op string) ([]domain.Transaction, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: query read: %w", op, err)
	}

	var txns []domain.Transaction
	for {
		var r bq.TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: iter next: %w", op, err)
		}
		txns = append(txns, r.Transaction())
	}

	return txns, nil
}

// UpdateTransaction applies a partial update scoped to (transaction_id,
// user_id) and returns the updated record.
func (s *Store) UpdateTransaction(ctx context.Context, userID, transactionID string, upd bq.TransactionUpdate) (*domain.Transaction, error) {
	var sets []string
	params := []bigquery.QueryParameter{
		{Name: "transaction_id", Value: transactionID},
		{Name: "user_id", Value: userID},
	}

	if upd.Amount != nil {
		sets = append(sets, "amount = @amount")
		params = append(params, bigquery.QueryParameter{Name: "amount", Value: bq.RatFromAmount(*upd.Amount)})
	}
	if upd.Description != nil {
		sets = append(sets, "description = @description")
		params = append(params, bigquery.QueryParameter{Name: "description", Value: *upd.Description})
	}
	if upd.Date != nil {
		sets = append(sets, "transaction_date = @transaction_date")
		params = append(params, bigquery.QueryParameter{Name: "transaction_date", Value: upd.Date.String()})
	}
	if upd.Type != nil {
		sets = append(sets, "type = @type")
		params = append(params, bigquery.QueryParameter{Name: "type", Value: string(*upd.Type)})
	}
	if upd.Category != nil {
		sets = append(sets, "category = @category")
		params = append(params, bigquery.QueryParameter{Name: "category", Value: *upd.Category})
	}

	if len(sets) > 0 {
		sets = append(sets, "updated_ts = CURRENT_TIMESTAMP()")

		q := s.client.Query("UPDATE " + s.table(transactionsTable) + `
			SET ` + strings.Join(sets, ", ") + `
			WHERE transaction_id = @transaction_id AND user_id = @user_id`)
		q.Parameters = params

		affected, err := s.runDML(ctx, q, "UpdateTransaction")
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, bq.ErrTransactionNotFound
		}
	}

	return s.getTransaction(ctx, userID, transactionID)
}

// DeleteTransaction removes the user's transaction.
func (s *Store) DeleteTransaction(ctx context.Context, userID, transactionID string) error {
	q := s.client.Query("DELETE FROM " + s.table(transactionsTable) + `
		WHERE transaction_id = @transaction_id AND user_id = @user_id`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "transaction_id", Value: transactionID},
		{Name: "user_id", Value: userID},
	}

	affected, err := s.runDML(ctx, q, "DeleteTransaction")
	if err != nil {
		return err
	}
	if affected == 0 {
		return bq.ErrTransactionNotFound
	}
	return nil
}

func (s *Store) getTransaction(ctx context.Context, userID, transactionID string) (*domain.Transaction, error) {
	q := s.client.Query("SELECT" + transactionColumns + `
		FROM ` + s.table(transactionsTable) + `
		WHERE transaction_id = @transaction_id AND user_id = @user_id`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "transaction_id", Value: transactionID},
		{Name: "user_id", Value: userID},
	}

	txns, err := s.readTransactions(ctx, q, "getTransaction")
	if err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return nil, bq.ErrTransactionNotFound
	}
	return &txns[0], nil
}

// runDML runs a mutating query, waits for the job and returns the number of
// affected rows.
func (s *Store) runDML(ctx context.Context, q *bigquery.Query, op string) (int64, error) {
	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: run query: %w", op, err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: wait for job: %w", op, err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("%s: job error: %w", op, err)
	}

	if stats, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
		return stats.NumDMLAffectedRows, nil
	}
	return 0, nil
}
