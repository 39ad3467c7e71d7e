package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/finsight/backend/internal/api/middleware"
	bq "github.com/finsight/backend/internal/bigquery"
	"github.com/finsight/backend/internal/domain"
	"github.com/finsight/backend/internal/forecast"
	"github.com/finsight/backend/internal/insights"
)

const (
	// predictWindowMonths is how far back Predict looks for its monthly series.
	predictWindowMonths = 6
	// anomalyWindowMonths bounds the expense window scanned for outliers.
	anomalyWindowMonths = 1
)

// AIHandler handles the model-backed insight, prediction and chat endpoints.
type AIHandler struct {
	repo     bq.TransactionRepository
	insights *insights.Service
	log      zerolog.Logger
	now      func() time.Time
}

// NewAIHandler creates a new AI handler.
func NewAIHandler(repo bq.TransactionRepository, svc *insights.Service, log zerolog.Logger) *AIHandler {
	return &AIHandler{
		repo:     repo,
		insights: svc,
		log:      log,
		now:      time.Now,
	}
}

// Insights handles GET /api/ai/insights
func (h *AIHandler) Insights(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)

	result := h.insights.GenerateInsights(ctx, userID)
	if result.Degraded {
		h.log.Warn().Str("user_id", userID).Str("reason", result.Reason).Msg("Serving degraded insights")
	}

	middleware.WriteSuccess(w, http.StatusOK, result)
}

// Predictions handles GET /api/ai/predictions
func (h *AIHandler) Predictions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)
	now := h.now().UTC()

	predictStart := civil.DateOf(now.AddDate(0, -predictWindowMonths, 0))
	history, err := h.repo.QueryTransactions(ctx, userID, bq.TransactionFilter{StartDate: &predictStart})
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to load prediction window")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to generate predictions")
		return
	}

	anomalyStart := civil.DateOf(now.AddDate(0, -anomalyWindowMonths, 0))
	recentExpenses, err := h.repo.QueryTransactions(ctx, userID, bq.TransactionFilter{
		StartDate: &anomalyStart,
		Type:      domain.TypeExpense,
	})
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to load anomaly window")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to generate predictions")
		return
	}

	predictions := forecast.Predict(history)
	if predictions == nil {
		predictions = []domain.Prediction{}
	}
	anomalies := forecast.DetectAnomalies(recentExpenses)
	if anomalies == nil {
		anomalies = []domain.Anomaly{}
	}

	middleware.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"predictions": predictions,
		"anomalies":   anomalies,
	})
}

// Chat handles POST /api/ai/chat
func (h *AIHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Question == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Question is required")
		return
	}

	result := h.insights.Chat(ctx, userID, req.Question)
	if result.Degraded {
		h.log.Warn().Str("user_id", userID).Str("reason", result.Reason).Msg("Serving degraded chat reply")
	}

	middleware.WriteSuccess(w, http.StatusOK, result)
}
