// Package handlers contains the HTTP endpoint implementations. Handlers
// validate input, call the services, and shape the response envelope; all
// domain logic lives below them.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/finsight/backend/internal/analytics"
	"github.com/finsight/backend/internal/api/middleware"
	bq "github.com/finsight/backend/internal/bigquery"
	"github.com/finsight/backend/internal/categories"
	"github.com/finsight/backend/internal/domain"
)

// TransactionsHandler handles transaction CRUD and analytics endpoints.
type TransactionsHandler struct {
	repo        bq.TransactionRepository
	categorizer *categories.Categorizer
	log         zerolog.Logger
	now         func() time.Time
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(repo bq.TransactionRepository, categorizer *categories.Categorizer, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		repo:        repo,
		categorizer: categorizer,
		log:         log,
		now:         time.Now,
	}
}

// List handles GET /api/transactions
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)

	filter, errMsg := filterFromQuery(r)
	if errMsg != "" {
		middleware.WriteError(w, http.StatusBadRequest, errMsg)
		return
	}

	txns, err := h.repo.QueryTransactions(ctx, userID, filter)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}
	if txns == nil {
		txns = []domain.Transaction{}
	}

	middleware.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"transactions": txns,
		"summary":      analytics.Summarize(txns),
	})
}

// Create handles POST /api/transactions
func (h *TransactionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)

	var req struct {
		Amount      *float64 `json:"amount"`
		Description string   `json:"description"`
		Date        string   `json:"date"`
		Type        string   `json:"type"`
		Category    string   `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Amount == nil || req.Description == "" || req.Date == "" || req.Type == "" {
		middleware.WriteError(w, http.StatusBadRequest, "amount, description, date and type are required")
		return
	}
	if *req.Amount < 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Amount must be non-negative")
		return
	}
	date, err := civil.ParseDate(req.Date)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	}
	txType := domain.TransactionType(req.Type)
	if !txType.Valid() {
		middleware.WriteError(w, http.StatusBadRequest, "Type must be INCOME or EXPENSE")
		return
	}

	category := req.Category
	if category == "" {
		category = h.categorizer.Categorize(ctx, req.Description)
	}

	txn := domain.Transaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		Amount:      *req.Amount,
		Description: req.Description,
		Date:        date,
		Type:        txType,
		Category:    category,
		CreatedAt:   h.now().UTC(),
	}

	if err := h.repo.InsertTransaction(ctx, &txn); err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to insert transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create transaction")
		return
	}

	h.log.Info().Str("transaction_id", txn.ID).Str("user_id", userID).Msg("Transaction created")
	middleware.WriteSuccess(w, http.StatusCreated, txn)
}

// Update handles PUT /api/transactions/:id
func (h *TransactionsHandler) Update(w http.ResponseWriter, r *http.Request, transactionID string) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)

	var req struct {
		Amount      *float64 `json:"amount"`
		Description *string  `json:"description"`
		Date        *string  `json:"date"`
		Type        *string  `json:"type"`
		Category    *string  `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Amount == nil && req.Description == nil && req.Date == nil && req.Type == nil && req.Category == nil {
		middleware.WriteError(w, http.StatusBadRequest, "No fields to update")
		return
	}

	upd := bq.TransactionUpdate{
		Amount:      req.Amount,
		Description: req.Description,
		Category:    req.Category,
	}
	if req.Amount != nil && *req.Amount < 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Amount must be non-negative")
		return
	}
	if req.Date != nil {
		date, err := civil.ParseDate(*req.Date)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
			return
		}
		upd.Date = &date
	}
	if req.Type != nil {
		txType := domain.TransactionType(*req.Type)
		if !txType.Valid() {
			middleware.WriteError(w, http.StatusBadRequest, "Type must be INCOME or EXPENSE")
			return
		}
		upd.Type = &txType
	}

	txn, err := h.repo.UpdateTransaction(ctx, userID, transactionID, upd)
	if err != nil {
		if errors.Is(err, bq.ErrTransactionNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		h.log.Error().Err(err).Str("transaction_id", transactionID).Msg("Failed to update transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update transaction")
		return
	}

	middleware.WriteSuccess(w, http.StatusOK, txn)
}

// Delete handles DELETE /api/transactions/:id
func (h *TransactionsHandler) Delete(w http.ResponseWriter, r *http.Request, transactionID string) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)

	if err := h.repo.DeleteTransaction(ctx, userID, transactionID); err != nil {
		if errors.Is(err, bq.ErrTransactionNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		h.log.Error().Err(err).Str("transaction_id", transactionID).Msg("Failed to delete transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete transaction")
		return
	}

	h.log.Info().Str("transaction_id", transactionID).Str("user_id", userID).Msg("Transaction deleted")
	middleware.WriteSuccess(w, http.StatusOK, map[string]string{"id": transactionID})
}

// Analytics handles GET /api/transactions/analytics
func (h *TransactionsHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)

	txns, err := h.repo.QueryTransactions(ctx, userID, bq.TransactionFilter{})
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to load transactions for analytics")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute analytics")
		return
	}

	middleware.WriteSuccess(w, http.StatusOK, analytics.Compute(txns))
}

// filterFromQuery parses the list-filter query parameters. The second return
// is a non-empty validation message on bad input.
func filterFromQuery(r *http.Request) (bq.TransactionFilter, string) {
	var filter bq.TransactionFilter
	q := r.URL.Query()

	if v := q.Get("start_date"); v != "" {
		d, err := civil.ParseDate(v)
		if err != nil {
			return filter, "Invalid start_date, expected YYYY-MM-DD"
		}
		filter.StartDate = &d
	}
	if v := q.Get("end_date"); v != "" {
		d, err := civil.ParseDate(v)
		if err != nil {
			return filter, "Invalid end_date, expected YYYY-MM-DD"
		}
		filter.EndDate = &d
	}
	filter.Category = q.Get("category")
	if v := q.Get("type"); v != "" {
		txType := domain.TransactionType(v)
		if !txType.Valid() {
			return filter, "Type must be INCOME or EXPENSE"
		}
		filter.Type = txType
	}

	return filter, ""
}
