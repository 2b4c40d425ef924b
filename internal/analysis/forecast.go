package analysis

import (
	"time"

	"github.com/pesowise/backend/internal/model"
)

// ForecastConfig holds the forecast horizon.
type ForecastConfig struct {
	Months int
}

// DefaultForecastConfig projects six months ahead.
func DefaultForecastConfig() ForecastConfig {
	return ForecastConfig{Months: 6}
}

// ForecastMonth is one projected month.
type ForecastMonth struct {
	Month    int     `json:"month"` // 1-12
	Year     int     `json:"year"`
	Label    string  `json:"label"` // e.g. "Jan 2026"
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
	Savings  float64 `json:"savings"`
	Balance  float64 `json:"balance"`
}

// ForecastResult is the immutable output of one forecast pass. Months
// always has exactly ForecastConfig.Months entries, starting from the
// current calendar month, with year rollover.
type ForecastResult struct {
	Months       []ForecastMonth `json:"months"`
	AvgIncome    float64         `json:"avgIncome"`
	AvgExpenses  float64         `json:"avgExpenses"`
	IncomeTrend  float64         `json:"incomeTrend"`
	ExpenseTrend float64         `json:"expenseTrend"`
}

// Forecast projects a balance trajectory from historical monthly averages
// and a first-to-last linear trend. A declared profile income overrides the
// computed average when it is larger, or when history is too thin (fewer
// than two observed months, or zero computed income) to trend at all.
func Forecast(txns []model.Transaction, accounts []model.BankAccount, profile *model.UserProfile, now time.Time, cfg ForecastConfig) ForecastResult {
	incomeByMonth := MonthlyTotals(txns, isIncome)
	expenseByMonth := MonthlyTotals(txns, isExpense)

	// Union of observed months in chronological order.
	observed := make(map[string]float64, len(incomeByMonth)+len(expenseByMonth))
	for k := range incomeByMonth {
		observed[k] = 0
	}
	for k := range expenseByMonth {
		observed[k] = 0
	}
	keys := SortedMonthKeys(observed)

	incomeSeries := make([]float64, len(keys))
	expenseSeries := make([]float64, len(keys))
	for i, k := range keys {
		incomeSeries[i] = incomeByMonth[k]
		expenseSeries[i] = expenseByMonth[k]
	}

	avgIncome := Mean(incomeSeries)
	avgExpenses := Mean(expenseSeries)
	incomeTrend := LinearTrend(incomeSeries)
	expenseTrend := LinearTrend(expenseSeries)

	profileIncome := 0.0
	if profile != nil {
		profileIncome = profile.MonthlyIncome
	}

	if profileIncome > 0 && (len(keys) < 2 || avgIncome == 0) {
		// Too little income history to trend. Fall back to the declared
		// income and the most recent month's expenses. Without a declared
		// income the computed means and trends stand, whatever the history.
		avgIncome = profileIncome
		incomeTrend = 0
		expenseTrend = 0
		avgExpenses = 0
		if len(keys) > 0 {
			avgExpenses = expenseByMonth[keys[len(keys)-1]]
		}
	} else if profileIncome > avgIncome {
		avgIncome = profileIncome
	}

	var balance float64
	for _, acc := range accounts {
		balance += acc.Balance
	}

	months := make([]ForecastMonth, 0, cfg.Months)
	for i := 0; i < cfg.Months; i++ {
		// time.Date normalizes out-of-range months, handling year rollover.
		m := time.Date(now.Year(), now.Month()+time.Month(i), 1, 0, 0, 0, 0, time.UTC)

		income := avgIncome + incomeTrend*float64(i)
		expenses := avgExpenses + expenseTrend*float64(i)
		savings := income - expenses
		balance += savings

		months = append(months, ForecastMonth{
			Month:    int(m.Month()),
			Year:     m.Year(),
			Label:    m.Format("Jan 2006"),
			Income:   income,
			Expenses: expenses,
			Savings:  savings,
			Balance:  balance,
		})
	}

	return ForecastResult{
		Months:       months,
		AvgIncome:    avgIncome,
		AvgExpenses:  avgExpenses,
		IncomeTrend:  incomeTrend,
		ExpenseTrend: expenseTrend,
	}
}
