package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/pesowise/backend/internal/model"
)

// CreditConfig holds the weights and policy knobs of the credit scoring
// model. Pass DefaultCreditConfig() unless a test needs to probe weight
// sensitivity.
type CreditConfig struct {
	PaymentHistoryWeight    float64
	IncomeStabilityWeight   float64
	FinancialBehaviorWeight float64
	AccountHealthWeight     float64

	// BillCategories are the expense categories treated as bill payments
	// for the payment-history factor.
	BillCategories map[string]bool
	// OnTimeDayOfMonth: a bill paid on or before this day of month counts
	// as on time. A stand-in policy for a real due-date model.
	OnTimeDayOfMonth int
	// HistoryMonths bounds how far back payment history looks.
	HistoryMonths int

	// Recommendation thresholds per factor: a recommendation is emitted
	// only when the factor scores below its threshold.
	PaymentHistoryFloor    float64
	IncomeStabilityFloor   float64
	FinancialBehaviorFloor float64
	AccountHealthFloor     float64
}

// DefaultCreditConfig returns the production scoring model.
func DefaultCreditConfig() CreditConfig {
	return CreditConfig{
		PaymentHistoryWeight:    0.35,
		IncomeStabilityWeight:   0.25,
		FinancialBehaviorWeight: 0.20,
		AccountHealthWeight:     0.20,
		BillCategories: map[string]bool{
			"bills":     true,
			"loans":     true,
			"utilities": true,
		},
		OnTimeDayOfMonth:       15,
		HistoryMonths:          6,
		PaymentHistoryFloor:    90,
		IncomeStabilityFloor:   80,
		FinancialBehaviorFloor: 85,
		AccountHealthFloor:     70,
	}
}

// scoreRange is the span of the composite score beyond its floor.
const (
	scoreFloor   = 300
	scoreCeiling = 850
	scoreRange   = scoreCeiling - scoreFloor
)

// CreditFactors are the four weighted sub-scores, each 0-100.
type CreditFactors struct {
	PaymentHistory    float64 `json:"paymentHistory"`
	IncomeStability   float64 `json:"incomeStability"`
	FinancialBehavior float64 `json:"financialBehavior"`
	AccountHealth     float64 `json:"accountHealth"`
}

// IncomeSource is a recurring income stream detected from transaction
// history, reliability-ranked.
type IncomeSource struct {
	Name          string  `json:"name"`
	Frequency     string  `json:"frequency"` // weekly|bi-weekly|monthly|irregular
	Occurrences   int     `json:"occurrences"`
	AverageAmount float64 `json:"averageAmount"`
	Consistent    bool    `json:"consistent"`
}

// Recommendation is a structured call to action for an underperforming
// factor. PointImpact estimates the composite points recoverable if the
// factor reached 100. Prose rendering belongs to the presentation layer.
type Recommendation struct {
	Factor      string  `json:"factor"`
	Action      string  `json:"action"`
	PointImpact float64 `json:"pointImpact"`
}

// CreditScoreResult is the immutable output of one scoring pass.
type CreditScoreResult struct {
	Score           int              `json:"score"` // 300-850
	Rating          string           `json:"rating"`
	Factors         CreditFactors    `json:"factors"`
	IncomeSources   []IncomeSource   `json:"incomeSources"`
	Recommendations []Recommendation `json:"recommendations"`
}

// ScoreCredit computes the alternative credit score from a user's
// transactions and accounts. With no data every factor is 0 and the
// composite resolves to the 300 floor.
func ScoreCredit(txns []model.Transaction, accounts []model.BankAccount, now time.Time, cfg CreditConfig) CreditScoreResult {
	factors := CreditFactors{
		PaymentHistory:    paymentHistoryScore(txns, now, cfg),
		IncomeStability:   incomeStabilityScore(txns),
		FinancialBehavior: financialBehaviorScore(txns),
		AccountHealth:     accountHealthScore(txns, accounts),
	}

	base := factors.PaymentHistory*cfg.PaymentHistoryWeight +
		factors.IncomeStability*cfg.IncomeStabilityWeight +
		factors.FinancialBehavior*cfg.FinancialBehaviorWeight +
		factors.AccountHealth*cfg.AccountHealthWeight

	score := int(math.Round(clamp(scoreFloor+base/100*scoreRange, scoreFloor, scoreCeiling)))

	return CreditScoreResult{
		Score:           score,
		Rating:          creditRating(score),
		Factors:         factors,
		IncomeSources:   detectIncomeSources(txns),
		Recommendations: buildRecommendations(factors, cfg),
	}
}

func creditRating(score int) string {
	switch {
	case score >= 750:
		return "excellent"
	case score >= 700:
		return "good"
	case score >= 650:
		return "fair"
	default:
		return "poor"
	}
}

// paymentHistoryScore: share of bill-category expenses in the trailing
// window paid on or before the on-time day of month.
func paymentHistoryScore(txns []model.Transaction, now time.Time, cfg CreditConfig) float64 {
	cutoff := now.AddDate(0, -cfg.HistoryMonths, 0)

	var total, onTime int
	for _, tx := range txns {
		if !isExpense(tx) || !cfg.BillCategories[tx.Category] {
			continue
		}
		if tx.Date.Before(cutoff) || tx.Date.After(now) {
			continue
		}
		total++
		if tx.Date.Day() <= cfg.OnTimeDayOfMonth {
			onTime++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(onTime) / float64(total) * 100
}

// incomeStabilityScore: 100 minus the coefficient of variation of monthly
// income totals, floored at 0.
func incomeStabilityScore(txns []model.Transaction) float64 {
	monthly := MonthlyTotals(txns, isIncome)
	if len(monthly) == 0 {
		return 0
	}
	values := make([]float64, 0, len(monthly))
	for _, key := range SortedMonthKeys(monthly) {
		values = append(values, monthly[key])
	}
	mean := Mean(values)
	if mean == 0 {
		return 0
	}
	stddev := StandardDeviation(values)
	return math.Max(0, 100-stddev/mean*100)
}

// detectIncomeSources groups income by payer and classifies payment cadence
// from the gaps between consecutive payments.
func detectIncomeSources(txns []model.Transaction) []IncomeSource {
	groups := make(map[string][]model.Transaction)
	display := make(map[string]string)
	for _, tx := range txns {
		if !isIncome(tx) {
			continue
		}
		key := model.NormalizeMerchant(tx.Name)
		if key == "" {
			key = tx.Category
		}
		if _, seen := groups[key]; !seen && tx.Name != "" {
			display[key] = tx.Name
		}
		groups[key] = append(groups[key], tx)
	}

	sources := make([]IncomeSource, 0, len(groups))
	for key, group := range groups {
		sort.Slice(group, func(i, j int) bool { return group[i].Date.Before(group[j].Date) })

		var total float64
		for _, tx := range group {
			total += tx.Amount
		}

		name := display[key]
		if name == "" {
			name = key
		}
		sources = append(sources, IncomeSource{
			Name:          name,
			Frequency:     classifyFrequency(group),
			Occurrences:   len(group),
			AverageAmount: total / float64(len(group)),
			Consistent:    len(group) >= 2,
		})
	}

	// Reliability ranking: more occurrences first, larger streams break ties.
	sort.Slice(sources, func(i, j int) bool {
		if sources[i].Occurrences != sources[j].Occurrences {
			return sources[i].Occurrences > sources[j].Occurrences
		}
		return sources[i].AverageAmount > sources[j].AverageAmount
	})
	return sources
}

// classifyFrequency maps the average day gap between payments to a cadence:
// 6-8 days weekly, 13-15 bi-weekly, 28-31 monthly, otherwise irregular.
func classifyFrequency(sorted []model.Transaction) string {
	if len(sorted) < 2 {
		return "irregular"
	}
	var gaps []float64
	for i := 1; i < len(sorted); i++ {
		days := sorted[i].Date.Sub(sorted[i-1].Date).Hours() / 24
		if days > 0 {
			gaps = append(gaps, days)
		}
	}
	avg := Mean(gaps)
	switch {
	case avg >= 6 && avg <= 8:
		return "weekly"
	case avg >= 13 && avg <= 15:
		return "bi-weekly"
	case avg >= 28 && avg <= 31:
		return "monthly"
	default:
		return "irregular"
	}
}

// financialBehaviorScore averages four behavioral sub-components.
func financialBehaviorScore(txns []model.Transaction) float64 {
	saving := savingHabitsScore(txns)
	consistency := spendingConsistencyScore(txns)
	adherence := 0.6*consistency + 0.4*saving
	risk := riskBehaviorScore(txns)
	return (saving + consistency + adherence + risk) / 4
}

// savingHabitsScore: average monthly positive savings as a share of average
// monthly income, scaled so a 50% savings rate maxes the component.
func savingHabitsScore(txns []model.Transaction) float64 {
	income := MonthlyTotals(txns, isIncome)
	expenses := MonthlyTotals(txns, isExpense)
	if len(income) == 0 {
		return 0
	}

	months := make(map[string]bool)
	for k := range income {
		months[k] = true
	}
	for k := range expenses {
		months[k] = true
	}

	var savings, incomeTotal float64
	for k := range months {
		incomeTotal += income[k]
		if s := income[k] - expenses[k]; s > 0 {
			savings += s
		}
	}
	n := float64(len(months))
	avgIncome := incomeTotal / n
	if avgIncome == 0 {
		return 0
	}
	rate := (savings / n) / avgIncome * 100
	return math.Min(rate*2, 100)
}

// spendingConsistencyScore: 100 minus the coefficient of variation of
// monthly expense totals.
func spendingConsistencyScore(txns []model.Transaction) float64 {
	monthly := MonthlyTotals(txns, isExpense)
	if len(monthly) == 0 {
		return 0
	}
	values := make([]float64, 0, len(monthly))
	for _, key := range SortedMonthKeys(monthly) {
		values = append(values, monthly[key])
	}
	mean := Mean(values)
	if mean == 0 {
		return 0
	}
	return clamp(100-StandardDeviation(values)/mean*100, 0, 100)
}

// riskBehaviorScore starts at 100 and subtracts capped penalties for large
// purchases, single-day bursts, and statistical outliers.
func riskBehaviorScore(txns []model.Transaction) float64 {
	var amounts []float64
	for _, tx := range txns {
		if isExpense(tx) {
			amounts = append(amounts, tx.Amount)
		}
	}
	if len(amounts) == 0 {
		return 100
	}

	mean := Mean(amounts)
	stddev := StandardDeviation(amounts)

	var large, unusual int
	perDay := make(map[string]int)
	for _, tx := range txns {
		if !isExpense(tx) {
			continue
		}
		if mean > 0 && tx.Amount > 3*mean {
			large++
		}
		if stddev > 0 && math.Abs(tx.Amount-mean) > 2*stddev {
			unusual++
		}
		perDay[tx.Date.Format("2006-01-02")]++
	}

	busiest := 0
	for _, count := range perDay {
		if count > busiest {
			busiest = count
		}
	}

	largePenalty := math.Min(float64(large)*10, 40)
	frequencyPenalty := math.Min(float64(busiest)*5, 30)
	unusualPenalty := math.Min(float64(unusual)*10, 30)
	return math.Max(0, 100-(largePenalty+frequencyPenalty+unusualPenalty))
}

// accountHealthScore combines emergency-fund runway, balance-to-income, and
// account diversity. Components are worth 40/30/30 points respectively.
func accountHealthScore(txns []model.Transaction, accounts []model.BankAccount) float64 {
	var balance float64
	for _, acc := range accounts {
		balance += acc.Balance
	}

	monthlyExpenses := averageMonthly(MonthlyTotals(txns, isExpense))
	monthlyIncome := averageMonthly(MonthlyTotals(txns, isIncome))

	runway := 0.0
	if monthlyExpenses > 0 {
		runway = balance / monthlyExpenses
	}

	var runwayScore float64
	switch {
	case runway >= 6:
		runwayScore = 40
	case runway >= 3:
		runwayScore = 20 + (runway-3)/3*20
	case runway >= 1:
		runwayScore = 10 + (runway-1)/2*10
	default:
		runwayScore = math.Min(runway*10, 10)
	}

	balanceScore := 0.0
	if monthlyIncome > 0 {
		balanceScore = math.Min(balance/monthlyIncome*10, 30)
	}

	diversityScore := math.Min(float64(len(accounts))*10, 30)

	return clamp(runwayScore+balanceScore+diversityScore, 0, 100)
}

func averageMonthly(totals map[string]float64) float64 {
	if len(totals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range totals {
		sum += v
	}
	return sum / float64(len(totals))
}

// buildRecommendations emits one structured recommendation per factor
// scoring below its configured floor.
func buildRecommendations(f CreditFactors, cfg CreditConfig) []Recommendation {
	type candidate struct {
		factor string
		action string
		score  float64
		floor  float64
		weight float64
	}
	candidates := []candidate{
		{"paymentHistory", "automate_bill_payments", f.PaymentHistory, cfg.PaymentHistoryFloor, cfg.PaymentHistoryWeight},
		{"incomeStability", "stabilize_income_sources", f.IncomeStability, cfg.IncomeStabilityFloor, cfg.IncomeStabilityWeight},
		{"financialBehavior", "increase_savings_rate", f.FinancialBehavior, cfg.FinancialBehaviorFloor, cfg.FinancialBehaviorWeight},
		{"accountHealth", "build_emergency_fund", f.AccountHealth, cfg.AccountHealthFloor, cfg.AccountHealthWeight},
	}

	var recs []Recommendation
	for _, c := range candidates {
		if c.score >= c.floor {
			continue
		}
		recs = append(recs, Recommendation{
			Factor:      c.factor,
			Action:      c.action,
			PointImpact: math.Round(c.weight*scoreRange*(1-c.score/100)*10) / 10,
		})
	}
	return recs
}
