package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/backend/internal/api/middleware"
	bq "github.com/finsight/backend/internal/bigquery"
	"github.com/finsight/backend/internal/categories"
	"github.com/finsight/backend/internal/domain"
	"github.com/finsight/backend/internal/jobs"
	"github.com/finsight/backend/internal/jobs/inmemory"
	"github.com/finsight/backend/internal/logger"
)

// memRepo is an in-memory TransactionRepository with the same filtering and
// ordering semantics as the BigQuery implementation.
type memRepo struct {
	txns      []domain.Transaction
	insertErr error
	queryErr  error
}

func (m *memRepo) InsertTransaction(ctx context.Context, t *domain.Transaction) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.txns = append(m.txns, *t)
	return nil
}

func (m *memRepo) QueryTransactions(ctx context.Context, userID string, f bq.TransactionFilter) ([]domain.Transaction, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	var out []domain.Transaction
	for _, t := range m.txns {
		if t.UserID != userID {
			continue
		}
		if f.StartDate != nil && t.Date.Before(*f.StartDate) {
			continue
		}
		if f.EndDate != nil && t.Date.After(*f.EndDate) {
			continue
		}
		if f.Category != "" && t.Category != f.Category {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memRepo) QueryRecentTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	all, err := m.QueryTransactions(ctx, userID, bq.TransactionFilter{})
	if err != nil {
		return nil, err
	}
	// Reverse to date descending.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (m *memRepo) UpdateTransaction(ctx context.Context, userID, id string, upd bq.TransactionUpdate) (*domain.Transaction, error) {
	for i := range m.txns {
		if m.txns[i].ID != id || m.txns[i].UserID != userID {
			continue
		}
		t := &m.txns[i]
		if upd.Amount != nil {
			t.Amount = *upd.Amount
		}
		if upd.Description != nil {
			t.Description = *upd.Description
		}
		if upd.Date != nil {
			t.Date = *upd.Date
		}
		if upd.Type != nil {
			t.Type = *upd.Type
		}
		if upd.Category != nil {
			t.Category = *upd.Category
		}
		now := time.Now().UTC()
		t.UpdatedAt = &now
		copied := *t
		return &copied, nil
	}
	return nil, bq.ErrTransactionNotFound
}

func (m *memRepo) DeleteTransaction(ctx context.Context, userID, id string) error {
	for i := range m.txns {
		if m.txns[i].ID == id && m.txns[i].UserID == userID {
			m.txns = append(m.txns[:i], m.txns[i+1:]...)
			return nil
		}
	}
	return bq.ErrTransactionNotFound
}

var _ bq.TransactionRepository = (*memRepo)(nil)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// do sends a request through Auth into the handler and decodes the envelope.
func do(t *testing.T, h http.HandlerFunc, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	middleware.Auth(h).ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func seedTxn(id, date string, typ domain.TransactionType, amount float64, category string) domain.Transaction {
	d, _ := civil.ParseDate(date)
	return domain.Transaction{
		ID:       id,
		UserID:   "user-1",
		Amount:   amount,
		Date:     d,
		Type:     typ,
		Category: category,
	}
}

func newTxnHandler(repo *memRepo) *TransactionsHandler {
	log := logger.NewWithWriter(io.Discard)
	h := NewTransactionsHandler(repo, categories.New(nil, log), log)
	h.now = func() time.Time { return time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC) }
	return h
}

func TestList_WithSummary(t *testing.T) {
	repo := &memRepo{txns: []domain.Transaction{
		seedTxn("a", "2025-03-01", domain.TypeIncome, 3000, "Income"),
		seedTxn("b", "2025-03-02", domain.TypeExpense, 1200, "Housing"),
	}}
	h := newTxnHandler(repo)

	rec, env := do(t, h.List, http.MethodGet, "/api/transactions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	var data struct {
		Transactions []domain.Transaction `json:"transactions"`
		Summary      domain.Summary       `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Len(t, data.Transactions, 2)
	assert.Equal(t, 3000.0, data.Summary.Income)
	assert.Equal(t, 1200.0, data.Summary.Expenses)
	assert.Equal(t, 1800.0, data.Summary.Balance)
	assert.Equal(t, 2, data.Summary.Count)
}

func TestList_FilterValidation(t *testing.T) {
	h := newTxnHandler(&memRepo{})

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"bad start_date", "/api/transactions?start_date=03-01-2025", "Invalid start_date, expected YYYY-MM-DD"},
		{"bad end_date", "/api/transactions?end_date=soon", "Invalid end_date, expected YYYY-MM-DD"},
		{"bad type", "/api/transactions?type=TRANSFER", "Type must be INCOME or EXPENSE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h.List, http.MethodGet, tt.target, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, env.Success)
			assert.Equal(t, tt.want, env.Error)
		})
	}
}

func TestCreate_AutoCategorizes(t *testing.T) {
	repo := &memRepo{}
	h := newTxnHandler(repo)

	rec, env := do(t, h.Create, http.MethodPost, "/api/transactions",
		`{"amount":42.5,"description":"Pizza night","date":"2025-03-10","type":"EXPENSE"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, env.Success)

	var created domain.Transaction
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "user-1", created.UserID)
	assert.Equal(t, "Food & Dining", created.Category)
	assert.Equal(t, time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC), created.CreatedAt)

	require.Len(t, repo.txns, 1)
	assert.Equal(t, created.ID, repo.txns[0].ID)
}

func TestCreate_Validation(t *testing.T) {
	h := newTxnHandler(&memRepo{})

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing amount", `{"description":"x","date":"2025-03-10","type":"EXPENSE"}`, "amount, description, date and type are required"},
		{"missing description", `{"amount":5,"date":"2025-03-10","type":"EXPENSE"}`, "amount, description, date and type are required"},
		{"negative amount", `{"amount":-5,"description":"x","date":"2025-03-10","type":"EXPENSE"}`, "Amount must be non-negative"},
		{"bad date", `{"amount":5,"description":"x","date":"10/03/2025","type":"EXPENSE"}`, "Invalid date, expected YYYY-MM-DD"},
		{"bad type", `{"amount":5,"description":"x","date":"2025-03-10","type":"TRANSFER"}`, "Type must be INCOME or EXPENSE"},
		{"not json", `amount=5`, "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h.Create, http.MethodPost, "/api/transactions", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, env.Error)
		})
	}
}

func TestUpdate(t *testing.T) {
	repo := &memRepo{txns: []domain.Transaction{
		seedTxn("a", "2025-03-01", domain.TypeExpense, 100, "Shopping"),
	}}
	h := newTxnHandler(repo)

	handler := func(w http.ResponseWriter, r *http.Request) { h.Update(w, r, "a") }
	rec, env := do(t, handler, http.MethodPut, "/api/transactions/a", `{"amount":150,"category":"Travel"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var updated domain.Transaction
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, 150.0, updated.Amount)
	assert.Equal(t, "Travel", updated.Category)
	assert.NotNil(t, updated.UpdatedAt)
}

func TestUpdate_NotFound(t *testing.T) {
	h := newTxnHandler(&memRepo{})
	handler := func(w http.ResponseWriter, r *http.Request) { h.Update(w, r, "missing") }

	rec, env := do(t, handler, http.MethodPut, "/api/transactions/missing", `{"amount":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Transaction not found", env.Error)
}

func TestUpdate_NoFields(t *testing.T) {
	h := newTxnHandler(&memRepo{})
	handler := func(w http.ResponseWriter, r *http.Request) { h.Update(w, r, "a") }

	rec, env := do(t, handler, http.MethodPut, "/api/transactions/a", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No fields to update", env.Error)
}

func TestDelete_NotFound(t *testing.T) {
	h := newTxnHandler(&memRepo{})
	handler := func(w http.ResponseWriter, r *http.Request) { h.Delete(w, r, "missing") }

	rec, env := do(t, handler, http.MethodDelete, "/api/transactions/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Transaction not found", env.Error)
}

func TestAnalytics(t *testing.T) {
	repo := &memRepo{txns: []domain.Transaction{
		seedTxn("a", "2025-02-01", domain.TypeIncome, 3000, "Income"),
		seedTxn("b", "2025-02-05", domain.TypeExpense, 800, "Housing"),
		seedTxn("c", "2025-03-05", domain.TypeExpense, 200, "Shopping"),
	}}
	h := newTxnHandler(repo)

	rec, env := do(t, h.Analytics, http.MethodGet, "/api/transactions/analytics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		ByCategory    map[string]float64              `json:"byCategory"`
		ByMonth       map[string]domain.MonthlyBucket `json:"byMonth"`
		TopCategories []struct {
			Category string  `json:"category"`
			Amount   float64 `json:"amount"`
		} `json:"topCategories"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 800.0, data.ByCategory["Housing"])
	assert.Equal(t, 3000.0, data.ByMonth["2025-02"].Income)
	assert.Equal(t, 200.0, data.ByMonth["2025-03"].Expenses)
	require.NotEmpty(t, data.TopCategories)
	assert.Equal(t, "Housing", data.TopCategories[0].Category)
}

func newAITestHandler(repo *memRepo) *AIHandler {
	log := logger.NewWithWriter(io.Discard)
	h := NewAIHandler(repo, nil, log)
	h.now = func() time.Time { return time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC) }
	return h
}

func TestPredictions_SparseHistory(t *testing.T) {
	// Below both minimums, so arrays must come back present and empty.
	repo := &memRepo{txns: []domain.Transaction{
		seedTxn("a", "2025-03-01", domain.TypeExpense, 50, "Shopping"),
	}}
	h := newAITestHandler(repo)

	rec, env := do(t, h.Predictions, http.MethodGet, "/api/ai/predictions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"predictions":[],"anomalies":[]}`, string(env.Data))
}

func TestPredictions_WindowsQueried(t *testing.T) {
	// Transactions outside the 6-month window must not reach the forecaster.
	repo := &memRepo{txns: []domain.Transaction{
		seedTxn("old", "2024-01-01", domain.TypeExpense, 50, "Shopping"),
	}}
	h := newAITestHandler(repo)

	rec, env := do(t, h.Predictions, http.MethodGet, "/api/ai/predictions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"predictions":[],"anomalies":[]}`, string(env.Data))
}

func TestChat_RequiresQuestion(t *testing.T) {
	h := newAITestHandler(&memRepo{})

	rec, env := do(t, h.Chat, http.MethodPost, "/api/ai/chat", `{"question":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Question is required", env.Error)
}

func TestEnqueueExport(t *testing.T) {
	store := inmemory.NewStore()
	queue := inmemory.NewQueue(4, 1, store)
	defer queue.Close()

	h := NewJobsHandler(queue, store, logger.NewWithWriter(io.Discard))

	rec, env := do(t, h.EnqueueExport, http.MethodPost, "/api/transactions/export",
		`{"start_date":"2025-01-01"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.True(t, env.Success)

	var data map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.NotEmpty(t, data["job_id"])
	assert.Equal(t, string(jobs.JobStatusPending), data["status"])

	saved, err := store.GetJob(context.Background(), data["job_id"])
	require.NoError(t, err)
	assert.Equal(t, "user-1", saved.UserID)
	require.NotNil(t, saved.StartDate)
	assert.Equal(t, "2025-01-01", saved.StartDate.String())
}

func TestEnqueueExport_EmptyBody(t *testing.T) {
	store := inmemory.NewStore()
	queue := inmemory.NewQueue(4, 1, store)
	defer queue.Close()

	h := NewJobsHandler(queue, store, logger.NewWithWriter(io.Discard))

	rec, _ := do(t, h.EnqueueExport, http.MethodPost, "/api/transactions/export", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestGetJob_OwnershipAndMissing(t *testing.T) {
	store := inmemory.NewStore()
	require.NoError(t, store.SaveJob(context.Background(), &jobs.ExportJob{
		JobID:  "foreign",
		UserID: "someone-else",
		Status: jobs.JobStatusCompleted,
	}))
	h := NewJobsHandler(nil, store, logger.NewWithWriter(io.Discard))

	for _, jobID := range []string{"foreign", "missing"} {
		handler := func(w http.ResponseWriter, r *http.Request) { h.GetJob(w, r, jobID) }
		rec, env := do(t, handler, http.MethodGet, "/api/jobs/"+jobID, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, jobID)
		assert.Equal(t, "Job not found", env.Error, jobID)
	}
}
