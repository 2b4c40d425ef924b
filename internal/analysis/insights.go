package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/pesowise/backend/internal/model"
)

// InsightConfig holds the spending-insight thresholds.
type InsightConfig struct {
	MaxInsights int
	MaxActions  int

	// Expense-to-income ratio thresholds.
	OverspendRatio float64
	HighSpendRatio float64
	LowSpendRatio  float64

	// TopCategoryShare: a single category above this percent of total
	// spending flags concentration.
	TopCategoryShare float64

	// Emergency-fund coverage thresholds, in months of spending.
	EmergencyFundLow  float64
	EmergencyFundGood float64

	// RecurringShare: recurring expenses above this percent of income flag
	// subscription load.
	RecurringShare float64
}

// DefaultInsightConfig returns the production insight thresholds.
func DefaultInsightConfig() InsightConfig {
	return InsightConfig{
		MaxInsights:       3,
		MaxActions:        3,
		OverspendRatio:    1.0,
		HighSpendRatio:    0.9,
		LowSpendRatio:     0.5,
		TopCategoryShare:  50,
		EmergencyFundLow:  3,
		EmergencyFundGood: 6,
		RecurringShare:    40,
	}
}

// Insight tags and action difficulties.
const (
	TagPositive = "positive"
	TagWarning  = "warning"
	TagNeutral  = "neutral"

	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Insight is one threshold-driven judgment, ready for templating by the
// presentation layer. Value carries the magnitude backing the judgment.
type Insight struct {
	Code     string  `json:"code"`
	Tag      string  `json:"tag"`
	Value    float64 `json:"value"`
	Category string  `json:"category,omitempty"`
}

// Action is a suggested step with a computed magnitude.
type Action struct {
	Code       string  `json:"code"`
	Difficulty string  `json:"difficulty"`
	Value      float64 `json:"value"`
}

// RecurringExpense is a payee/category pair seen at least twice.
type RecurringExpense struct {
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	Count         int     `json:"count"`
	AverageAmount float64 `json:"averageAmount"`
}

// CategoryAmount is one slice of the category breakdown.
type CategoryAmount struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Percent  float64 `json:"percent"`
}

// InsightResult is the immutable output of one insight pass.
type InsightResult struct {
	TotalMonthlySpending   float64            `json:"totalMonthlySpending"`
	SpendingTrendPercent   float64            `json:"spendingTrendPercent"`
	TopExpenseCategory     string             `json:"topExpenseCategory"`
	CategoryBreakdown      []CategoryAmount   `json:"categoryBreakdown"`
	EstimatedMonthlyIncome float64            `json:"estimatedMonthlyIncome"`
	SavingsRatePercent     float64            `json:"savingsRatePercent"`
	RecurringExpenses      []RecurringExpense `json:"recurringExpenses"`
	EmergencyFundMonths    float64            `json:"emergencyFundMonths"`
	Insights               []Insight          `json:"insights"`
	Actions                []Action           `json:"actions"`
}

// BuildInsights derives spending metrics and the ranked insight/action
// records from a user's records. profile may be nil.
//
// Candidate insights are emitted in a fixed generation order and capped to
// the first MaxInsights; they are deliberately not re-ranked by severity,
// matching the dashboard's long-standing ordering.
func BuildInsights(txns []model.Transaction, profile *model.UserProfile, accounts []model.BankAccount, now time.Time, cfg InsightConfig) InsightResult {
	result := InsightResult{}

	expenseByMonth := MonthlyTotals(txns, isExpense)
	currentKey := MonthKey(now)
	priorKey := MonthKey(now.AddDate(0, -1, 0))

	result.TotalMonthlySpending = expenseByMonth[currentKey]
	if prior := expenseByMonth[priorKey]; prior > 0 {
		result.SpendingTrendPercent = (result.TotalMonthlySpending - prior) / prior * 100
	}

	result.CategoryBreakdown = categoryBreakdown(txns)
	if len(result.CategoryBreakdown) > 0 {
		result.TopExpenseCategory = result.CategoryBreakdown[0].Category
	}

	result.EstimatedMonthlyIncome = estimateMonthlyIncome(txns, profile)
	result.SavingsRatePercent = savingsRate(result.EstimatedMonthlyIncome, result.TotalMonthlySpending)
	result.RecurringExpenses = detectRecurringExpenses(txns)

	var balance float64
	for _, acc := range accounts {
		balance += acc.Balance
	}
	if denom := math.Max(result.TotalMonthlySpending, result.EstimatedMonthlyIncome); denom > 0 {
		result.EmergencyFundMonths = balance / denom
	}

	result.Insights, result.Actions = selectInsights(result, cfg)
	return result
}

// categoryBreakdown sums expense amounts per category, sorted descending.
func categoryBreakdown(txns []model.Transaction) []CategoryAmount {
	totals := make(map[string]float64)
	var whole float64
	for _, tx := range txns {
		if isExpense(tx) {
			amt := math.Abs(tx.Amount)
			totals[tx.Category] += amt
			whole += amt
		}
	}

	breakdown := make([]CategoryAmount, 0, len(totals))
	for category, amount := range totals {
		breakdown = append(breakdown, CategoryAmount{
			Category: category,
			Amount:   amount,
			Percent:  PercentageOfTotal(amount, whole),
		})
	}
	sort.Slice(breakdown, func(i, j int) bool {
		if breakdown[i].Amount != breakdown[j].Amount {
			return breakdown[i].Amount > breakdown[j].Amount
		}
		return breakdown[i].Category < breakdown[j].Category
	})
	return breakdown
}

// estimateMonthlyIncome prefers a declared profile income; otherwise it
// spreads total recorded income over the months the history spans.
func estimateMonthlyIncome(txns []model.Transaction, profile *model.UserProfile) float64 {
	if profile != nil && profile.MonthlyIncome > 0 {
		return profile.MonthlyIncome
	}

	var total float64
	var minDate, maxDate time.Time
	seen := false
	for _, tx := range txns {
		if !isIncome(tx) {
			continue
		}
		total += tx.Amount
		if !seen || tx.Date.Before(minDate) {
			minDate = tx.Date
		}
		if !seen || tx.Date.After(maxDate) {
			maxDate = tx.Date
		}
		seen = true
	}
	if !seen {
		return 0
	}

	days := maxDate.Sub(minDate).Hours() / 24
	months := int(days/30) + 1
	if months < 1 {
		months = 1
	}
	return total / float64(months)
}

// savingsRate is round((income-spending)/income*100), floored at 0.
func savingsRate(income, spending float64) float64 {
	if income == 0 {
		return 0
	}
	return math.Max(0, math.Round((income-spending)/income*100))
}

// detectRecurringExpenses groups expenses by (payee, category), keeps pairs
// seen at least twice, and ranks by total monthly burden.
func detectRecurringExpenses(txns []model.Transaction) []RecurringExpense {
	type key struct{ name, category string }
	groups := make(map[key][]model.Transaction)
	display := make(map[key]string)

	for _, tx := range txns {
		if !isExpense(tx) || tx.Name == "" {
			continue
		}
		k := key{model.NormalizeMerchant(tx.Name), tx.Category}
		if _, seen := groups[k]; !seen {
			display[k] = tx.Name
		}
		groups[k] = append(groups[k], tx)
	}

	var recurring []RecurringExpense
	for k, group := range groups {
		if len(group) < 2 {
			continue
		}
		var total float64
		for _, tx := range group {
			total += math.Abs(tx.Amount)
		}
		recurring = append(recurring, RecurringExpense{
			Name:          display[k],
			Category:      k.category,
			Count:         len(group),
			AverageAmount: total / float64(len(group)),
		})
	}

	sort.Slice(recurring, func(i, j int) bool {
		bi := float64(recurring[i].Count) * recurring[i].AverageAmount
		bj := float64(recurring[j].Count) * recurring[j].AverageAmount
		if bi != bj {
			return bi > bj
		}
		return recurring[i].Name < recurring[j].Name
	})
	return recurring
}

// selectInsights walks the thresholds in a fixed order, emitting one
// candidate per crossing, and caps the output.
func selectInsights(r InsightResult, cfg InsightConfig) ([]Insight, []Action) {
	var insights []Insight
	var actions []Action

	income := r.EstimatedMonthlyIncome
	spending := r.TotalMonthlySpending

	// 1. Expense-to-income ratio. The three thresholds are exclusive.
	if income > 0 {
		ratio := spending / income
		switch {
		case ratio > cfg.OverspendRatio:
			insights = append(insights, Insight{Code: "spending_exceeds_income", Tag: TagWarning, Value: ratio * 100})
			actions = append(actions, Action{Code: "cut_discretionary_spending", Difficulty: DifficultyMedium, Value: spending - income})
		case ratio > cfg.HighSpendRatio:
			insights = append(insights, Insight{Code: "spending_near_income", Tag: TagWarning, Value: ratio * 100})
			actions = append(actions, Action{Code: "cut_discretionary_spending", Difficulty: DifficultyMedium, Value: spending - income*cfg.HighSpendRatio})
		case ratio < cfg.LowSpendRatio:
			insights = append(insights, Insight{Code: "strong_savings_margin", Tag: TagPositive, Value: r.SavingsRatePercent})
		}
	}

	// 2. Category concentration.
	if len(r.CategoryBreakdown) > 0 {
		top := r.CategoryBreakdown[0]
		if top.Percent > cfg.TopCategoryShare {
			insights = append(insights, Insight{Code: "category_concentration", Tag: TagWarning, Value: top.Percent, Category: top.Category})
			actions = append(actions, Action{Code: "rebalance_top_category", Difficulty: DifficultyMedium, Value: top.Amount})
		}
	}

	// 3. Emergency fund coverage.
	switch {
	case r.EmergencyFundMonths < cfg.EmergencyFundLow:
		insights = append(insights, Insight{Code: "emergency_fund_low", Tag: TagWarning, Value: r.EmergencyFundMonths})
		actions = append(actions, Action{
			Code:       "build_emergency_fund",
			Difficulty: DifficultyHard,
			Value:      (cfg.EmergencyFundLow - r.EmergencyFundMonths) * math.Max(spending, income),
		})
	case r.EmergencyFundMonths < cfg.EmergencyFundGood:
		insights = append(insights, Insight{Code: "emergency_fund_partial", Tag: TagNeutral, Value: r.EmergencyFundMonths})
	}

	// 4. Month-over-month trend.
	if r.SpendingTrendPercent != 0 {
		tag := TagPositive
		if r.SpendingTrendPercent > 0 {
			tag = TagWarning
		}
		insights = append(insights, Insight{Code: "spending_trend", Tag: tag, Value: r.SpendingTrendPercent})
	}

	// 5. Recurring-expense load.
	if income > 0 {
		var monthly float64
		for _, re := range r.RecurringExpenses {
			monthly += re.AverageAmount
		}
		if share := monthly / income * 100; share > cfg.RecurringShare {
			insights = append(insights, Insight{Code: "recurring_load_high", Tag: TagWarning, Value: share})
			actions = append(actions, Action{Code: "review_recurring_expenses", Difficulty: DifficultyEasy, Value: monthly})
		}
	}

	if len(insights) > cfg.MaxInsights {
		insights = insights[:cfg.MaxInsights]
	}
	if len(actions) > cfg.MaxActions {
		actions = actions[:cfg.MaxActions]
	}
	return insights, actions
}
