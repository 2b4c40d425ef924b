package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pesowise/backend/internal/model"
)

// MemoryStore implements the Store interface with in-memory storage.
// Used for local development and tests.
type MemoryStore struct {
	mu sync.RWMutex

	transactions  map[string]*model.Transaction
	accounts      map[string]*model.BankAccount
	users         map[string]*model.UserProfile
	notifications map[string]*model.Notification
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transactions:  make(map[string]*model.Transaction),
		accounts:      make(map[string]*model.BankAccount),
		users:         make(map[string]*model.UserProfile),
		notifications: make(map[string]*model.Notification),
	}
}

// paginateIDs applies cursor-based pagination to a sorted slice of IDs.
// Returns the paginated IDs and the next page token (empty if no more pages).
func paginateIDs(ids []string, pageSize int32, pageToken string) ([]string, string) {
	if pageSize <= 0 {
		pageSize = 100
	}

	startIdx := 0
	if pageToken != "" {
		cursorID, err := DecodePageToken(pageToken)
		if err == nil {
			startIdx = len(ids)
			for i, id := range ids {
				if id == cursorID && i+1 < len(ids) {
					startIdx = i + 1
					break
				}
			}
		}
	}
	ids = ids[startIdx:]

	var nextToken string
	if int32(len(ids)) > pageSize {
		nextToken = EncodePageToken(ids[pageSize-1])
		ids = ids[:pageSize]
	}
	return ids, nextToken
}

// Transaction operations

func (m *MemoryStore) CreateTransaction(ctx context.Context, tx *model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	copied := *tx
	m.transactions[tx.ID] = &copied
	return nil
}

func (m *MemoryStore) GetTransaction(ctx context.Context, txID string) (*model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.transactions[txID]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", txID, ErrNotFound)
	}
	copied := *tx
	return &copied, nil
}

func (m *MemoryStore) DeleteTransaction(ctx context.Context, txID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.transactions, txID)
	return nil
}

func (m *MemoryStore) ListTransactions(ctx context.Context, userID string, startDate, endDate *time.Time, pageSize int32, pageToken string) ([]*model.Transaction, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matching []*model.Transaction
	for _, tx := range m.transactions {
		if userID != "" && tx.UserID != userID {
			continue
		}
		if startDate != nil && tx.Date.Before(*startDate) {
			continue
		}
		if endDate != nil && tx.Date.After(*endDate) {
			continue
		}
		matching = append(matching, tx)
	}

	// Date descending, ID ascending for a stable order matching Firestore.
	sort.Slice(matching, func(i, j int) bool {
		if !matching[i].Date.Equal(matching[j].Date) {
			return matching[i].Date.After(matching[j].Date)
		}
		return matching[i].ID < matching[j].ID
	})

	ids := make([]string, len(matching))
	byID := make(map[string]*model.Transaction, len(matching))
	for i, tx := range matching {
		ids[i] = tx.ID
		byID[tx.ID] = tx
	}

	paginatedIDs, nextToken := paginateIDs(ids, pageSize, pageToken)
	result := make([]*model.Transaction, 0, len(paginatedIDs))
	for _, id := range paginatedIDs {
		copied := *byID[id]
		result = append(result, &copied)
	}
	return result, nextToken, nil
}

// Account operations

func (m *MemoryStore) CreateAccount(ctx context.Context, account *model.BankAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	copied := *account
	m.accounts[account.ID] = &copied
	return nil
}

func (m *MemoryStore) ListAccounts(ctx context.Context, userID string) ([]*model.BankAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*model.BankAccount
	for _, account := range m.accounts {
		if account.UserID == userID {
			copied := *account
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// User profile operations

func (m *MemoryStore) GetUserProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	profile, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	copied := *profile
	return &copied, nil
}

func (m *MemoryStore) UpdateUserProfile(ctx context.Context, profile *model.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *profile
	m.users[profile.UserID] = &copied
	return nil
}

func (m *MemoryStore) ListDigestOptInUsers(ctx context.Context) ([]*model.UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*model.UserProfile
	for _, profile := range m.users {
		if profile.WeeklyDigest {
			copied := *profile
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result, nil
}

// Notification operations

func (m *MemoryStore) CreateNotification(ctx context.Context, notification *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if notification.ID == "" {
		notification.ID = uuid.New().String()
	}
	copied := *notification
	m.notifications[notification.ID] = &copied
	return nil
}

func (m *MemoryStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool, pageSize int32, pageToken string) ([]*model.Notification, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matchingIDs []string
	for id, n := range m.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		matchingIDs = append(matchingIDs, id)
	}
	sort.Strings(matchingIDs)

	paginatedIDs, nextToken := paginateIDs(matchingIDs, pageSize, pageToken)
	result := make([]*model.Notification, 0, len(paginatedIDs))
	for _, id := range paginatedIDs {
		copied := *m.notifications[id]
		result = append(result, &copied)
	}
	return result, nextToken, nil
}

func (m *MemoryStore) GetNotification(ctx context.Context, notificationID string) (*model.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.notifications[notificationID]
	if !ok {
		return nil, fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
	}
	copied := *n
	return &copied, nil
}

func (m *MemoryStore) MarkNotificationRead(ctx context.Context, notificationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.notifications[notificationID]
	if !ok {
		return fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
	}
	n.Read = true
	return nil
}
