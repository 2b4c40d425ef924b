package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// RawTransaction is a transaction as it arrives from the outside world:
// API payloads and legacy documents where amount may be a number or a
// string, the date is free-form, and nullable fields are genuinely null.
type RawTransaction struct {
	ID       string          `json:"id"`
	UserID   string          `json:"userId"`
	Type     string          `json:"type"`
	Amount   json.RawMessage `json:"amount"`
	Date     string          `json:"date"`
	Category *string         `json:"category"`
	Name     *string         `json:"name"`
	Merchant *string         `json:"merchant"`
	Location *string         `json:"location"`
}

// RawBankAccount mirrors RawTransaction for account documents.
type RawBankAccount struct {
	ID      string          `json:"id"`
	UserID  string          `json:"userId"`
	Name    *string         `json:"name"`
	Balance json.RawMessage `json:"balance"`
}

// dateLayouts are tried in order when parsing record dates.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
}

// ParseDate parses a record date string. The second return is false when the
// date is missing or unparseable; such records are excluded from analysis
// rather than defaulted, since a fabricated date would poison every
// time-bucketed metric.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseAmount coerces a raw amount (JSON number, quoted numeric string, or
// garbage) to a float64. Anything unparseable, NaN, or infinite coerces to 0
// so a single bad record never aborts a batch.
func ParseAmount(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return sanitize(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return sanitize(f)
		}
	}
	return 0
}

func sanitize(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// NormalizeTransaction converts a raw record into a Transaction with
// guaranteed non-null fields. The second return is false when the record
// must be excluded (unparseable date). Amounts are stored as magnitudes.
func NormalizeTransaction(raw RawTransaction) (Transaction, bool) {
	date, ok := ParseDate(raw.Date)
	if !ok {
		return Transaction{}, false
	}

	txType := TransactionExpense
	if strings.EqualFold(strings.TrimSpace(raw.Type), string(TransactionIncome)) {
		txType = TransactionIncome
	}

	category := CategoryUncategorized
	if raw.Category != nil {
		if c := strings.ToLower(strings.TrimSpace(*raw.Category)); c != "" {
			category = c
		}
	}

	name := ""
	if raw.Name != nil {
		name = strings.TrimSpace(*raw.Name)
	}
	if name == "" && raw.Merchant != nil {
		name = strings.TrimSpace(*raw.Merchant)
	}

	location := ""
	if raw.Location != nil {
		location = strings.TrimSpace(*raw.Location)
	}

	return Transaction{
		ID:       raw.ID,
		UserID:   raw.UserID,
		Type:     txType,
		Amount:   math.Abs(ParseAmount(raw.Amount)),
		Date:     date,
		Category: category,
		Name:     name,
		Location: location,
	}, true
}

// NormalizeAccount converts a raw account document. Non-numeric balances
// coerce to 0.
func NormalizeAccount(raw RawBankAccount) BankAccount {
	name := ""
	if raw.Name != nil {
		name = strings.TrimSpace(*raw.Name)
	}
	return BankAccount{
		ID:      raw.ID,
		UserID:  raw.UserID,
		Name:    name,
		Balance: ParseAmount(raw.Balance),
	}
}

// NormalizeMerchant canonicalizes a payee/merchant name for grouping:
// unicode-normalized, lowercased, whitespace-collapsed. Recurring-expense
// and income-source detection both key on this form.
func NormalizeMerchant(name string) string {
	name = norm.NFKC.String(name)
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Join(strings.Fields(name), " ")
}
