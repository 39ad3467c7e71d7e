package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/backend/internal/api/handlers"
	bq "github.com/finsight/backend/internal/bigquery"
	"github.com/finsight/backend/internal/categories"
	"github.com/finsight/backend/internal/domain"
	"github.com/finsight/backend/internal/jobs/inmemory"
	"github.com/finsight/backend/internal/logger"
)

// listRepo is a minimal in-memory TransactionRepository for routing tests.
type listRepo struct {
	txns []domain.Transaction
}

func (m *listRepo) InsertTransaction(ctx context.Context, t *domain.Transaction) error {
	m.txns = append(m.txns, *t)
	return nil
}

func (m *listRepo) QueryTransactions(ctx context.Context, userID string, f bq.TransactionFilter) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, t := range m.txns {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *listRepo) QueryRecentTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	return m.QueryTransactions(ctx, userID, bq.TransactionFilter{})
}

func (m *listRepo) UpdateTransaction(ctx context.Context, userID, id string, upd bq.TransactionUpdate) (*domain.Transaction, error) {
	return nil, bq.ErrTransactionNotFound
}

func (m *listRepo) DeleteTransaction(ctx context.Context, userID, id string) error {
	for i := range m.txns {
		if m.txns[i].ID == id && m.txns[i].UserID == userID {
			m.txns = append(m.txns[:i], m.txns[i+1:]...)
			return nil
		}
	}
	return bq.ErrTransactionNotFound
}

func newTestRouter(repo bq.TransactionRepository) http.Handler {
	log := logger.NewWithWriter(io.Discard)
	store := inmemory.NewStore()
	queue := inmemory.NewQueue(4, 1, store)

	return NewRouter(Handlers{
		Transactions: handlers.NewTransactionsHandler(repo, categories.New(nil, log), log),
		AI:           handlers.NewAIHandler(repo, nil, log),
		Jobs:         handlers.NewJobsHandler(queue, store, log),
	}, log)
}

func doRequest(router http.Handler, method, target, body, userID string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_RequiresIdentity(t *testing.T) {
	router := newTestRouter(&listRepo{})

	rec := doRequest(router, http.MethodGet, "/api/transactions", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var env struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "X-User-ID")
}

func TestRouter_HealthIsPublic(t *testing.T) {
	router := newTestRouter(&listRepo{})
	rec := doRequest(router, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_MethodDispatch(t *testing.T) {
	router := newTestRouter(&listRepo{})
	rec := doRequest(router, http.MethodDelete, "/api/transactions", "", "user-1")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// A created transaction shows up in the listing and disappears again after
// deletion.
func TestRouter_CreateListDeleteRoundTrip(t *testing.T) {
	router := newTestRouter(&listRepo{})

	rec := doRequest(router, http.MethodPost, "/api/transactions",
		`{"amount":25,"description":"Taxi home","date":"2025-03-10","type":"EXPENSE"}`, "user-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Data domain.Transaction `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.Data.ID)
	assert.Equal(t, "Transportation", created.Data.Category)

	list := func() []domain.Transaction {
		rec := doRequest(router, http.MethodGet, "/api/transactions", "", "user-1")
		require.Equal(t, http.StatusOK, rec.Code)
		var env struct {
			Data struct {
				Transactions []domain.Transaction `json:"transactions"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		return env.Data.Transactions
	}

	listed := list()
	require.Len(t, listed, 1)
	assert.Equal(t, created.Data.ID, listed[0].ID)

	// Another user must not see it.
	other := doRequest(router, http.MethodGet, "/api/transactions", "", "user-2")
	require.Equal(t, http.StatusOK, other.Code)
	assert.Contains(t, other.Body.String(), `"transactions":[]`)

	rec = doRequest(router, http.MethodDelete, "/api/transactions/"+created.Data.ID, "", "user-1")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Empty(t, list())
}

func TestRouter_ExportAndJobStatus(t *testing.T) {
	router := newTestRouter(&listRepo{})

	rec := doRequest(router, http.MethodPost, "/api/transactions/export", "", "user-1")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var env struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	jobID := env.Data["job_id"]
	require.NotEmpty(t, jobID)

	status := doRequest(router, http.MethodGet, "/api/jobs/"+jobID, "", "user-1")
	assert.Equal(t, http.StatusOK, status.Code)

	foreign := doRequest(router, http.MethodGet, "/api/jobs/"+jobID, "", "user-2")
	assert.Equal(t, http.StatusNotFound, foreign.Code)
}
