package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pesowise/backend/internal/model"
)

// Collection names.
const (
	transactionsCollection  = "transactions"
	accountsCollection      = "accounts"
	usersCollection         = "users"
	notificationsCollection = "notifications"
)

// FirestoreStore implements the Store interface using Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a new Firestore-backed store.
func NewFirestoreStore(client *firestore.Client) Store {
	return &FirestoreStore{
		client: client,
	}
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// CreateTransaction creates a new transaction document.
func (s *FirestoreStore) CreateTransaction(ctx context.Context, tx *model.Transaction) error {
	_, err := s.client.Collection(transactionsCollection).Doc(tx.ID).Set(ctx, tx)
	return err
}

// GetTransaction retrieves a transaction by ID.
func (s *FirestoreStore) GetTransaction(ctx context.Context, txID string) (*model.Transaction, error) {
	doc, err := s.client.Collection(transactionsCollection).Doc(txID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("transaction %s: %w", txID, ErrNotFound)
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}

	var tx model.Transaction
	if err := doc.DataTo(&tx); err != nil {
		return nil, fmt.Errorf("failed to parse transaction: %w", err)
	}
	return &tx, nil
}

// DeleteTransaction deletes a transaction by ID.
func (s *FirestoreStore) DeleteTransaction(ctx context.Context, txID string) error {
	_, err := s.client.Collection(transactionsCollection).Doc(txID).Delete(ctx)
	return err
}

// ListTransactions lists a user's transactions ordered by date descending.
// Firestore requires OrderBy on the inequality field first, so cursors are
// composite (Date value + document ID), same scheme as date-filtered lists.
func (s *FirestoreStore) ListTransactions(ctx context.Context, userID string, startDate, endDate *time.Time, pageSize int32, pageToken string) ([]*model.Transaction, string, error) {
	query := s.client.Collection(transactionsCollection).Query.
		Where("UserID", "==", userID)

	if startDate != nil {
		query = query.Where("Date", ">=", *startDate)
	}
	if endDate != nil {
		query = query.Where("Date", "<=", *endDate)
	}

	query = query.OrderBy("Date", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Asc)

	if pageToken != "" {
		docID, err := DecodePageToken(pageToken)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token: %w", err)
		}
		cursorDoc, err := s.client.Collection(transactionsCollection).Doc(docID).Get(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("failed to fetch cursor document: %w", err)
		}
		dateVal := cursorDoc.Data()["Date"]
		query = query.StartAfter(dateVal, docID)
	}

	if pageSize <= 0 {
		pageSize = 100
	}
	query = query.Limit(int(pageSize) + 1) // +1 to detect next page

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, "", fmt.Errorf("failed to list transactions: %w", err)
	}

	var nextPageToken string
	if len(docs) > int(pageSize) {
		docs = docs[:pageSize]
		nextPageToken = EncodePageToken(docs[pageSize-1].Ref.ID)
	}

	transactions := make([]*model.Transaction, 0, len(docs))
	for _, doc := range docs {
		var tx model.Transaction
		if err := doc.DataTo(&tx); err != nil {
			return nil, "", fmt.Errorf("failed to parse transaction: %w", err)
		}
		transactions = append(transactions, &tx)
	}
	return transactions, nextPageToken, nil
}

// CreateAccount creates a new account document.
func (s *FirestoreStore) CreateAccount(ctx context.Context, account *model.BankAccount) error {
	_, err := s.client.Collection(accountsCollection).Doc(account.ID).Set(ctx, account)
	return err
}

// ListAccounts lists all accounts belonging to a user.
func (s *FirestoreStore) ListAccounts(ctx context.Context, userID string) ([]*model.BankAccount, error) {
	docs, err := s.client.Collection(accountsCollection).Query.
		Where("UserID", "==", userID).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	accounts := make([]*model.BankAccount, 0, len(docs))
	for _, doc := range docs {
		var account model.BankAccount
		if err := doc.DataTo(&account); err != nil {
			return nil, fmt.Errorf("failed to parse account: %w", err)
		}
		accounts = append(accounts, &account)
	}
	return accounts, nil
}

// GetUserProfile retrieves a user profile, or (nil, nil) if the user has
// no profile document yet.
func (s *FirestoreStore) GetUserProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	doc, err := s.client.Collection(usersCollection).Doc(userID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user profile: %w", err)
	}

	var profile model.UserProfile
	if err := doc.DataTo(&profile); err != nil {
		return nil, fmt.Errorf("failed to parse user profile: %w", err)
	}
	return &profile, nil
}

// UpdateUserProfile creates or replaces a user profile document.
func (s *FirestoreStore) UpdateUserProfile(ctx context.Context, profile *model.UserProfile) error {
	_, err := s.client.Collection(usersCollection).Doc(profile.UserID).Set(ctx, profile)
	return err
}

// ListDigestOptInUsers lists users who opted into the weekly digest.
func (s *FirestoreStore) ListDigestOptInUsers(ctx context.Context) ([]*model.UserProfile, error) {
	docs, err := s.client.Collection(usersCollection).Query.
		Where("WeeklyDigest", "==", true).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list digest users: %w", err)
	}

	profiles := make([]*model.UserProfile, 0, len(docs))
	for _, doc := range docs {
		var profile model.UserProfile
		if err := doc.DataTo(&profile); err != nil {
			return nil, fmt.Errorf("failed to parse user profile: %w", err)
		}
		profiles = append(profiles, &profile)
	}
	return profiles, nil
}

// CreateNotification creates a new notification document.
func (s *FirestoreStore) CreateNotification(ctx context.Context, notification *model.Notification) error {
	_, err := s.client.Collection(notificationsCollection).Doc(notification.ID).Set(ctx, notification)
	return err
}

// ListNotifications lists a user's notifications via cursor pagination.
func (s *FirestoreStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool, pageSize int32, pageToken string) ([]*model.Notification, string, error) {
	query := s.client.Collection(notificationsCollection).Query.
		Where("UserID", "==", userID)
	if unreadOnly {
		query = query.Where("Read", "==", false)
	}

	query = query.OrderBy(firestore.DocumentID, firestore.Asc)

	if pageToken != "" {
		docID, err := DecodePageToken(pageToken)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token: %w", err)
		}
		query = query.StartAfter(docID)
	}

	if pageSize <= 0 {
		pageSize = 100
	}
	query = query.Limit(int(pageSize) + 1)

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, "", fmt.Errorf("failed to list notifications: %w", err)
	}

	var nextPageToken string
	if len(docs) > int(pageSize) {
		docs = docs[:pageSize]
		nextPageToken = EncodePageToken(docs[pageSize-1].Ref.ID)
	}

	notifications := make([]*model.Notification, 0, len(docs))
	for _, doc := range docs {
		var n model.Notification
		if err := doc.DataTo(&n); err != nil {
			return nil, "", fmt.Errorf("failed to parse notification: %w", err)
		}
		notifications = append(notifications, &n)
	}
	return notifications, nextPageToken, nil
}

// GetNotification retrieves a notification by ID.
func (s *FirestoreStore) GetNotification(ctx context.Context, notificationID string) (*model.Notification, error) {
	doc, err := s.client.Collection(notificationsCollection).Doc(notificationID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}

	var n model.Notification
	if err := doc.DataTo(&n); err != nil {
		return nil, fmt.Errorf("failed to parse notification: %w", err)
	}
	return &n, nil
}

// MarkNotificationRead marks a single notification as read.
func (s *FirestoreStore) MarkNotificationRead(ctx context.Context, notificationID string) error {
	_, err := s.client.Collection(notificationsCollection).Doc(notificationID).Update(ctx, []firestore.Update{
		{Path: "Read", Value: true},
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
		}
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}
