package analysis

import (
	"math"
	"sort"

	"github.com/pesowise/backend/internal/model"
)

// FraudConfig holds the fraud engine's policy knobs.
type FraudConfig struct {
	// HighRiskCategories trigger a High alert outright.
	HighRiskCategories map[string]bool
	// SpikeMultiplier: an amount above this multiple of the running average
	// raises a Medium alert.
	SpikeMultiplier float64
	// Score deductions.
	AlertPenalty      float64
	LocationPenalty   float64
	LocationAllowance int
	VarianceDivisor   float64
}

// DefaultFraudConfig returns the production fraud policy.
func DefaultFraudConfig() FraudConfig {
	return FraudConfig{
		HighRiskCategories: map[string]bool{
			"gambling":              true,
			"cryptocurrency":        true,
			"foreign_exchange":      true,
			"unregistered_business": true,
		},
		SpikeMultiplier:   3,
		AlertPenalty:      5,
		LocationPenalty:   2,
		LocationAllowance: 5,
		VarianceDivisor:   1000,
	}
}

// Alert severities.
const (
	SeverityHigh   = "High"
	SeverityMedium = "Medium"
)

// Alert reasons.
const (
	ReasonHighRiskCategory = "high_risk_category"
	ReasonAmountSpike      = "amount_spike"
)

// FraudAlert flags a single suspicious transaction.
type FraudAlert struct {
	TransactionID string  `json:"transactionId"`
	Severity      string  `json:"severity"`
	Reason        string  `json:"reason"`
	Amount        float64 `json:"amount"`
	Category      string  `json:"category,omitempty"`
}

// FraudPatterns summarizes the behavioral surface scanned for risk.
type FraudPatterns struct {
	Locations        []string `json:"locations"`
	Merchants        []string `json:"merchants"`
	HourHistogram    [24]int  `json:"hourHistogram"`
	WeekdayHistogram [7]int   `json:"weekdayHistogram"`
	AmountMean       float64  `json:"amountMean"`
	AmountVariance   float64  `json:"amountVariance"`
}

// FraudAnalysisResult is the immutable output of one fraud scan.
type FraudAnalysisResult struct {
	RiskScore float64       `json:"riskScore"` // 0-100, higher is safer
	Alerts    []FraudAlert  `json:"alerts"`
	Patterns  FraudPatterns `json:"patterns"`
}

// AnalyzeFraud scans transactions in a single pass, in caller-supplied
// order. The amount-spike threshold compares each transaction against the
// running average of everything seen so far, so the result is sensitive to
// ordering; feed transactions in a stable order (the store returns them
// most-recent-first) for reproducible output.
//
// With no transactions the score is 100: a new account is not penalized
// for lack of data.
func AnalyzeFraud(txns []model.Transaction, cfg FraudConfig) FraudAnalysisResult {
	locations := make(map[string]bool)
	merchants := make(map[string]bool)

	var alerts []FraudAlert
	var patterns FraudPatterns
	var amounts []float64
	var runningSum float64

	for _, tx := range txns {
		amount := math.Abs(tx.Amount)

		if tx.Location != "" {
			locations[tx.Location] = true
		}
		if key := model.NormalizeMerchant(tx.Name); key != "" {
			merchants[key] = true
		}
		patterns.HourHistogram[tx.Date.Hour()]++
		patterns.WeekdayHistogram[int(tx.Date.Weekday())]++

		if cfg.HighRiskCategories[tx.Category] {
			alerts = append(alerts, FraudAlert{
				TransactionID: tx.ID,
				Severity:      SeverityHigh,
				Reason:        ReasonHighRiskCategory,
				Amount:        amount,
				Category:      tx.Category,
			})
		}

		// Running average includes the current transaction; the first one
		// can never trip its own threshold.
		runningSum += amount
		amounts = append(amounts, amount)
		runningAvg := runningSum / float64(len(amounts))
		if amount > cfg.SpikeMultiplier*runningAvg {
			alerts = append(alerts, FraudAlert{
				TransactionID: tx.ID,
				Severity:      SeverityMedium,
				Reason:        ReasonAmountSpike,
				Amount:        amount,
				Category:      tx.Category,
			})
		}
	}

	patterns.Locations = sortedKeys(locations)
	patterns.Merchants = sortedKeys(merchants)
	patterns.AmountMean = Mean(amounts)

	variance := 0.0
	if len(amounts) > 1 {
		stddev := StandardDeviation(amounts)
		variance = stddev * stddev
	}
	patterns.AmountVariance = variance

	score := 100.0
	score -= cfg.AlertPenalty * float64(len(alerts))
	if extra := len(locations) - cfg.LocationAllowance; extra > 0 {
		score -= cfg.LocationPenalty * float64(extra)
	}
	score -= variance / cfg.VarianceDivisor

	return FraudAnalysisResult{
		RiskScore: clamp(score, 0, 100),
		Alerts:    alerts,
		Patterns:  patterns,
	}
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
