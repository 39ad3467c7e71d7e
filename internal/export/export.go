// Package export renders a user's transaction history to CSV and publishes
// the file to object storage. It runs behind the job queue: the HTTP layer
// enqueues an ExportJob and the Worker here does the heavy lifting.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	bq "github.com/finsight/backend/internal/bigquery"
	"github.com/finsight/backend/internal/domain"
	"github.com/finsight/backend/internal/gcs"
	"github.com/finsight/backend/internal/jobs"
)

const (
	csvContentType = "text/csv"
	urlExpiry      = 15 * time.Minute
)

var csvHeader = []string{"id", "date", "type", "category", "description", "amount", "created_at"}

// BuildCSV renders transactions to CSV, header row first, one row per
// transaction in input order.
func BuildCSV(txns []domain.Transaction) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write CSV header: %w", err)
	}
	for _, t := range txns {
		row := []string{
			t.ID,
			t.Date.String(),
			string(t.Type),
			t.Category,
			t.Description,
			strconv.FormatFloat(t.Amount, 'f', 2, 64),
			t.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// Worker turns queued export jobs into uploaded CSV files.
type Worker struct {
	txns    bq.TransactionRepository
	objects gcs.ObjectStore
	log     zerolog.Logger
}

// NewWorker creates an export worker with injected dependencies.
func NewWorker(txns bq.TransactionRepository, objects gcs.ObjectStore, log zerolog.Logger) *Worker {
	return &Worker{
		txns:    txns,
		objects: objects,
		log:     log,
	}
}

// Handle processes one export job: query, render, upload, sign. The job is
// mutated in place; the queue persists the final state after Handle returns.
func (w *Worker) Handle(ctx context.Context, job jobs.Job) error {
	export, ok := job.(*jobs.ExportJob)
	if !ok {
		return fmt.Errorf("unexpected job type %q", job.GetType())
	}

	txns, err := w.txns.QueryTransactions(ctx, export.UserID, bq.TransactionFilter{
		StartDate: export.StartDate,
		EndDate:   export.EndDate,
	})
	if err != nil {
		return fmt.Errorf("Handle: querying transactions: %w", err)
	}

	data, err := BuildCSV(txns)
	if err != nil {
		return fmt.Errorf("Handle: building CSV: %w", err)
	}

	objectName := fmt.Sprintf("exports/%s/%s.csv", export.UserID, export.JobID)
	if err := w.objects.Upload(ctx, objectName, csvContentType, data); err != nil {
		return fmt.Errorf("Handle: uploading CSV: %w", err)
	}

	url, err := w.objects.SignedURL(objectName, urlExpiry)
	if err != nil {
		return fmt.Errorf("Handle: signing download URL: %w", err)
	}

	export.ObjectName = objectName
	export.DownloadURL = url
	export.RowCount = len(txns)

	w.log.Info().
		Str("job_id", export.JobID).
		Str("user_id", export.UserID).
		Int("rows", len(txns)).
		Msg("Export completed")

	return nil
}
