// Package forecast projects a user's spending three months forward and flags
// anomalous expenses. Both entry points are pure functions over a
// caller-supplied transaction window; they never touch storage.
package forecast

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/finsight/backend/internal/domain"
	"github.com/finsight/backend/internal/stats"
)

const (
	// minPredictTransactions is the smallest trailing-window size the trend
	// fit is allowed to run on.
	minPredictTransactions = 10

	// minAnomalyTransactions is the smallest trailing-month expense set the
	// deviation test is allowed to run on.
	minAnomalyTransactions = 5

	predictMonths = 3

	baseConfidence = 85
	minConfidence  = 40
	maxConfidence  = 95
)

// Predict fits a linear trend to the monthly income/expense totals of txns
// (the trailing six months, ascending by date) and projects the next three
// months. Fewer than 10 transactions yields no predictions: the window is too
// thin for the trend to mean anything, and that is not an error.
func Predict(txns []domain.Transaction) []domain.Prediction {
	if len(txns) < minPredictTransactions {
		return nil
	}

	buckets := make(map[string]*domain.MonthlyBucket)
	for _, t := range txns {
		month := t.Month()
		b, ok := buckets[month]
		if !ok {
			b = &domain.MonthlyBucket{}
			buckets[month] = b
		}
		if t.Type == domain.TypeIncome {
			b.Income += t.Amount
		} else {
			b.Expenses += t.Amount
		}
	}

	months := make([]string, 0, len(buckets))
	for m := range buckets {
		months = append(months, m)
	}
	sort.Strings(months)

	incomeSeries := make([]float64, len(months))
	expenseSeries := make([]float64, len(months))
	for i, m := range months {
		incomeSeries[i] = buckets[m].Income
		expenseSeries[i] = buckets[m].Expenses
	}

	avgIncome := stats.Mean(incomeSeries)
	avgExpenses := stats.Mean(expenseSeries)
	incomeTrend := stats.TrendSlope(incomeSeries)
	expenseTrend := stats.TrendSlope(expenseSeries)

	lastMonth, err := time.Parse("2006-01", months[len(months)-1])
	if err != nil {
		return nil
	}

	predictions := make([]domain.Prediction, 0, predictMonths)
	for i := 1; i <= predictMonths; i++ {
		future := lastMonth.AddDate(0, i, 0)

		predictedIncome := avgIncome + incomeTrend*float64(i)
		predictedExpenses := avgExpenses + expenseTrend*float64(i)

		predictions = append(predictions, domain.Prediction{
			Month:             future.Format("2006-01"),
			PredictedIncome:   math.Max(0, predictedIncome),
			PredictedExpenses: math.Max(0, predictedExpenses),
			PredictedBalance:  predictedIncome - predictedExpenses,
			Confidence:        confidence(incomeSeries, expenseSeries, i),
		})
	}

	return predictions
}

// confidence degrades the base score by distance (5 points per month ahead)
// and by how noisy each series is, clamped to [40, 95].
func confidence(income, expenses []float64, monthsAhead int) float64 {
	timeDecay := float64(monthsAhead) * 5
	varianceDecay := variationPenalty(income) + variationPenalty(expenses)

	c := baseConfidence - timeDecay - varianceDecay
	return math.Max(minConfidence, math.Min(maxConfidence, c))
}

// variationPenalty maps a series' coefficient of variation onto a 0-10 penalty.
// A zero mean contributes nothing rather than dividing by zero.
func variationPenalty(xs []float64) float64 {
	mean := stats.Mean(xs)
	if mean == 0 {
		return 0
	}
	return math.Min(10, stats.StdDev(xs)/mean*100)
}

// DetectAnomalies flags expenses (the trailing one-month window) whose amount
// deviates more than two standard deviations from the window mean. Fewer than
// 5 expenses yields no anomalies. Input order is preserved.
func DetectAnomalies(expenses []domain.Transaction) []domain.Anomaly {
	if len(expenses) < minAnomalyTransactions {
		return nil
	}

	amounts := make([]float64, len(expenses))
	for i, t := range expenses {
		amounts[i] = t.Amount
	}

	mean := stats.Mean(amounts)
	stdDev := stats.StdDev(amounts)

	var anomalies []domain.Anomaly
	for _, t := range expenses {
		if math.Abs(t.Amount-mean) <= 2*stdDev {
			continue
		}

		severity := domain.SeverityMedium
		if t.Amount > mean+2*stdDev {
			severity = domain.SeverityHigh
		}

		anomalies = append(anomalies, domain.Anomaly{
			Transaction: t,
			Severity:    severity,
			Message:     fmt.Sprintf("Unusual %s expense of $%.2f", t.Category, t.Amount),
		})
	}

	return anomalies
}
