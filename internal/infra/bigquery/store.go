// Package bigquery implements the repository interfaces from
// internal/bigquery against Google BigQuery. One Store holds a shared client
// for all operations; construct it once in main and inject it.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	bq "github.com/finsight/backend/internal/bigquery"
	"github.com/finsight/backend/internal/domain"
)

const (
	transactionsTable = "transactions"
	insightsTable     = "ai_insights"
)

// Store is the BigQuery-backed implementation of the transaction and insight
// repositories.
type Store struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewStore creates a Store with a shared BigQuery client.
func NewStore(ctx context.Context, projectID, datasetID string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating client: %w", err)
	}
	return &Store{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
	}, nil
}

// Close closes the shared BigQuery client.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// table returns the fully qualified name for a table in the finance dataset.
func (s *Store) table(name string) string {
	return "`" + s.projectID + "." + s.datasetID + "." + name + "`"
}

// InsertInsight appends one generated insight to finance.ai_insights.
func (s *Store) InsertInsight(ctx context.Context, ins *domain.Insight) error {
	row := &bq.InsightRow{
		InsightID: ins.ID,
		UserID:    ins.UserID,
		Insight:   ins.Insight,
		Type:      ins.Type,
		Priority:  ins.Priority,
		CreatedTS: ins.CreatedAt,
	}

	inserter := s.client.DatasetInProject(s.projectID, s.datasetID).Table(insightsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertInsight: inserting row: %w", err)
	}
	return nil
}

// Interface conformance.
var (
	_ bq.TransactionRepository = (*Store)(nil)
	_ bq.InsightRepository     = (*Store)(nil)
)
