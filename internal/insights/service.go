// Package insights assembles a user's numbers into natural-language insight
// and chat requests against the language-model collaborator. External
// failures never propagate: every entry point returns a usable result, with
// Degraded marking the static-fallback states so callers can tell them from
// genuine model output.
package insights

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/finsight/backend/internal/analytics"
	bq "github.com/finsight/backend/internal/bigquery"
	"github.com/finsight/backend/internal/domain"
)

const (
	onboardingMessage = "Start by adding your transactions to get personalized insights!"
	fallbackMessage   = "Unable to generate insights at the moment. Please try again later."
	chatApology       = "I apologize, but I am unable to respond at the moment. Please try again later."

	insightWindow = 50
	chatWindow    = 30

	insightsTemperature = 0.7
	insightsMaxTokens   = 500
	chatTemperature     = 0.8
	chatMaxTokens       = 300

	topCategoryCount = 5
)

// FinancialSummary is the computed money overview attached to a successful
// insight generation.
type FinancialSummary struct {
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
	Balance  float64 `json:"balance"`
	// SavingsRate is balance/income as a percentage, one decimal, 0 when
	// income is 0.
	SavingsRate float64 `json:"savingsRate"`
}

// Result is the outcome of one insight generation. Degraded distinguishes the
// static fallback from genuine model output; Reason says why it degraded.
type Result struct {
	Insights        []string          `json:"insights"`
	Recommendations []string          `json:"recommendations"`
	Summary         *FinancialSummary `json:"summary"`
	Degraded        bool              `json:"degraded"`
	Reason          string            `json:"-"`
}

// ChatResult is the outcome of one chat exchange.
type ChatResult struct {
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
	Degraded  bool      `json:"degraded"`
	Reason    string    `json:"-"`
}

// Service is the insight/chat façade over the transaction store and the
// language-model collaborator.
type Service struct {
	txns    bq.TransactionRepository
	audit   bq.InsightRepository
	advisor Advisor
	log     zerolog.Logger
	now     func() time.Time
}

// NewService creates the façade with injected dependencies.
func NewService(txns bq.TransactionRepository, audit bq.InsightRepository, advisor Advisor, log zerolog.Logger) *Service {
	return &Service{
		txns:    txns,
		audit:   audit,
		advisor: advisor,
		log:     log,
		now:     time.Now,
	}
}

// GenerateInsights analyzes the user's 50 most recent transactions and asks
// the model for insights and recommendations. It never returns an error: a
// user with no transactions gets the onboarding message, and any external
// failure yields the degraded fallback result.
func (s *Service) GenerateInsights(ctx context.Context, userID string) Result {
	txns, err := s.txns.QueryRecentTransactions(ctx, userID, insightWindow)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to load transactions for insights")
		return s.degraded("loading transactions: " + err.Error())
	}

	if len(txns) == 0 {
		return Result{
			Insights:        []string{onboardingMessage},
			Recommendations: []string{},
		}
	}

	var income, expenses float64
	expenseByCategory := make(map[string]float64)
	var categoryOrder []string
	for _, t := range txns {
		if t.Type == domain.TypeIncome {
			income += t.Amount
			continue
		}
		expenses += t.Amount
		if _, seen := expenseByCategory[t.Category]; !seen {
			categoryOrder = append(categoryOrder, t.Category)
		}
		expenseByCategory[t.Category] += t.Amount
	}
	top := analytics.TopCategories(expenseByCategory, categoryOrder, topCategoryCount)

	reply, err := s.advisor.Generate(ctx, Request{
		System:          insightsSystemPrompt,
		Prompt:          insightsPrompt(income, expenses, top),
		Temperature:     insightsTemperature,
		MaxOutputTokens: insightsMaxTokens,
	})
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Advisor call failed")
		return s.degraded("advisor: " + err.Error())
	}

	var parsed struct {
		Insights        []string `json:"insights"`
		Recommendations []string `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(cleanModelJSON(reply)), &parsed); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Unparseable advisor reply")
		return s.degraded("parsing advisor reply: " + err.Error())
	}
	if parsed.Insights == nil {
		parsed.Insights = []string{}
	}
	if parsed.Recommendations == nil {
		parsed.Recommendations = []string{}
	}

	// Audit-trail the generated insights. A write failure degrades to a log
	// line; the user still gets their result.
	for _, insight := range parsed.Insights {
		record := &domain.Insight{
			ID:        uuid.New().String(),
			UserID:    userID,
			Insight:   insight,
			Type:      domain.InsightTypeSpendingAlert,
			Priority:  domain.InsightPriorityMedium,
			CreatedAt: s.now().UTC(),
		}
		if err := s.audit.InsertInsight(ctx, record); err != nil {
			s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to persist insight")
		}
	}

	return Result{
		Insights:        parsed.Insights,
		Recommendations: parsed.Recommendations,
		Summary: &FinancialSummary{
			Income:      income,
			Expenses:    expenses,
			Balance:     income - expenses,
			SavingsRate: savingsRate(income, expenses),
		},
	}
}

// Chat sends a free-text question to the model with a short numeric context.
// Failures yield the fixed apology rather than an error.
func (s *Service) Chat(ctx context.Context, userID, question string) ChatResult {
	txns, err := s.txns.QueryRecentTransactions(ctx, userID, chatWindow)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to load transactions for chat")
		return s.apology("loading transactions: " + err.Error())
	}

	var income, expenses float64
	for _, t := range txns {
		if t.Type == domain.TypeIncome {
			income += t.Amount
		} else {
			expenses += t.Amount
		}
	}

	reply, err := s.advisor.Generate(ctx, Request{
		System:          chatSystemPrompt(len(txns), income, expenses),
		Prompt:          question,
		Temperature:     chatTemperature,
		MaxOutputTokens: chatMaxTokens,
	})
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Advisor chat failed")
		return s.apology("advisor: " + err.Error())
	}

	return ChatResult{
		Response:  reply,
		Timestamp: s.now().UTC(),
	}
}

func (s *Service) degraded(reason string) Result {
	return Result{
		Insights:        []string{fallbackMessage},
		Recommendations: []string{},
		Degraded:        true,
		Reason:          reason,
	}
}

func (s *Service) apology(reason string) ChatResult {
	return ChatResult{
		Response:  chatApology,
		Timestamp: s.now().UTC(),
		Degraded:  true,
		Reason:    reason,
	}
}

// savingsRate is balance/income as a percentage rounded to one decimal.
// Defined as 0 when income is 0 to keep the math total.
func savingsRate(income, expenses float64) float64 {
	if income == 0 {
		return 0
	}
	return math.Round((income-expenses)/income*1000) / 10
}
