// Package analysis implements the deterministic scoring and analytics
// engines behind the dashboard widgets: credit scoring, fraud/risk
// analysis, spending insights, and cash-flow forecasting.
//
// Every engine is a pure function over an in-memory snapshot of a user's
// records. No engine mutates its input, performs I/O, or reads global
// state; configuration arrives as an explicit immutable struct and the
// reference clock as an explicit time.Time. Arithmetic edge cases (empty
// inputs, divide-by-zero) always resolve locally to 0, so "no data yet" is
// never an error.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/pesowise/backend/internal/model"
)

// MonthKey identifies a calendar month bucket, formatted "YYYY-M" to match
// the keys the dashboard has always used (no zero padding).
func MonthKey(t time.Time) string {
	return fmt.Sprintf("%d-%d", t.Year(), int(t.Month()))
}

// GroupByMonth buckets transactions by calendar month. Order within a
// bucket follows input order; callers re-sort when order matters.
func GroupByMonth(txns []model.Transaction) map[string][]model.Transaction {
	buckets := make(map[string][]model.Transaction)
	for _, tx := range txns {
		key := MonthKey(tx.Date)
		buckets[key] = append(buckets[key], tx)
	}
	return buckets
}

// GroupByCategory buckets transactions by category.
func GroupByCategory(txns []model.Transaction) map[string][]model.Transaction {
	buckets := make(map[string][]model.Transaction)
	for _, tx := range txns {
		buckets[tx.Category] = append(buckets[tx.Category], tx)
	}
	return buckets
}

// GroupByWeekday counts transactions per day of week.
func GroupByWeekday(txns []model.Transaction) [7]int {
	var counts [7]int
	for _, tx := range txns {
		counts[int(tx.Date.Weekday())]++
	}
	return counts
}

// MonthlyTotals sums the absolute amounts of transactions matching the
// predicate, keyed by month.
func MonthlyTotals(txns []model.Transaction, match func(model.Transaction) bool) map[string]float64 {
	totals := make(map[string]float64)
	for _, tx := range txns {
		if match(tx) {
			totals[MonthKey(tx.Date)] += math.Abs(tx.Amount)
		}
	}
	return totals
}

// SortedMonthKeys returns month keys in chronological order.
func SortedMonthKeys(totals map[string]float64) []string {
	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		yi, mi := splitMonthKey(keys[i])
		yj, mj := splitMonthKey(keys[j])
		if yi != yj {
			return yi < yj
		}
		return mi < mj
	})
	return keys
}

func splitMonthKey(key string) (year, month int) {
	fmt.Sscanf(key, "%d-%d", &year, &month)
	return year, month
}

// Mean returns the arithmetic mean, or 0 for an empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StandardDeviation returns the population standard deviation, or 0 for
// inputs with fewer than two elements.
func StandardDeviation(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// PercentageOfTotal returns part/whole as a percentage, or 0 when whole
// is 0. A zero denominator here means "no data", not an error.
func PercentageOfTotal(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}

// LinearTrend returns the per-step delta between the first and last value,
// (last-first)/(n-1), or 0 for fewer than two values.
func LinearTrend(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return (values[len(values)-1] - values[0]) / float64(len(values)-1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isIncome(tx model.Transaction) bool  { return tx.Type == model.TransactionIncome }
func isExpense(tx model.Transaction) bool { return tx.Type == model.TransactionExpense }
