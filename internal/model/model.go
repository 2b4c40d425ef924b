// Package model defines the financial record types shared by the store and
// the analysis engines, plus the single normalization step every raw record
// passes through before it reaches either.
package model

import "time"

// TransactionType discriminates money in from money out.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// CategoryUncategorized is assigned when a record carries no category.
const CategoryUncategorized = "uncategorized"

// Transaction is a normalized financial transaction. Amount is always a
// non-negative magnitude; Type determines its direction. Date is always
// parseable (records with unusable dates never become Transactions).
type Transaction struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Type      TransactionType `json:"type"`
	Amount    float64         `json:"amount"`
	Date      time.Time       `json:"date"`
	Category  string          `json:"category"`
	Name      string          `json:"name"`
	Location  string          `json:"location,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// BankAccount is a normalized bank account snapshot.
type BankAccount struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Balance   float64   `json:"balance"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserProfile is the subset of the user document the engines care about.
// MonthlyIncome of 0 means the user never declared one; when declared and
// larger than the income computed from transactions, it wins (users
// under-record income transactions far more often than they over-record).
type UserProfile struct {
	UserID        string  `json:"userId"`
	Email         string  `json:"email,omitempty"`
	DisplayName   string  `json:"displayName,omitempty"`
	MonthlyIncome float64 `json:"monthlyIncome,omitempty"`
	WeeklyDigest  bool    `json:"weeklyDigest"`
}

// Notification is a stored message shown to the user in the dashboard,
// e.g. the weekly insight digest.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}
