// Package store provides persistence for financial records on Firestore,
// with an in-memory implementation for local development and tests.
package store

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/pesowise/backend/internal/model"
)

//go:generate mockgen -source=store.go -destination=store_mock.go -package=store

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the database operations used by the service.
//
// ListTransactions returns transactions ordered by date descending
// (most recent first); the fraud engine's streaming threshold depends on
// this ordering being stable.
type Store interface {
	// Transaction operations
	CreateTransaction(ctx context.Context, tx *model.Transaction) error
	GetTransaction(ctx context.Context, txID string) (*model.Transaction, error)
	DeleteTransaction(ctx context.Context, txID string) error
	ListTransactions(ctx context.Context, userID string, startDate, endDate *time.Time, pageSize int32, pageToken string) ([]*model.Transaction, string, error)

	// Account operations
	CreateAccount(ctx context.Context, account *model.BankAccount) error
	ListAccounts(ctx context.Context, userID string) ([]*model.BankAccount, error)

	// User profile operations. GetUserProfile returns (nil, nil) when the
	// user has no profile document; engines tolerate a nil profile.
	GetUserProfile(ctx context.Context, userID string) (*model.UserProfile, error)
	UpdateUserProfile(ctx context.Context, profile *model.UserProfile) error
	ListDigestOptInUsers(ctx context.Context) ([]*model.UserProfile, error)

	// Notification operations
	CreateNotification(ctx context.Context, notification *model.Notification) error
	GetNotification(ctx context.Context, notificationID string) (*model.Notification, error)
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, pageSize int32, pageToken string) ([]*model.Notification, string, error)
	MarkNotificationRead(ctx context.Context, notificationID string) error
}

// EncodePageToken encodes a document ID into a page token.
func EncodePageToken(docID string) string {
	if docID == "" {
		return ""
	}
	return base64.URLEncoding.EncodeToString([]byte(docID))
}

// DecodePageToken decodes a page token back to a document ID.
func DecodePageToken(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	b, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
