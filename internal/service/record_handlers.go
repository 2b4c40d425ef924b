package service

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/pesowise/backend/internal/model"
)

// CreateTransaction ingests a raw transaction. This is the single
// normalization point: amounts coerce to numbers here, and a record with
// an unusable date is rejected rather than stored.
func (s *AnalysisService) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID := s.requireUserAccess(w, r)
	if userID == "" {
		return
	}

	var raw model.RawTransaction
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	raw.UserID = userID

	tx, ok := model.NormalizeTransaction(raw)
	if !ok {
		writeError(w, http.StatusBadRequest, "date is missing or unparseable")
		return
	}
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	tx.CreatedAt = time.Now()

	if err := s.store.CreateTransaction(r.Context(), &tx); err != nil {
		s.writeStoreError(w, "create transaction", err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// ListTransactions returns a page of a user's transactions, most recent
// first.
func (s *AnalysisService) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := s.requireUserAccess(w, r)
	if userID == "" {
		return
	}

	var startDate, endDate *time.Time
	if v := r.URL.Query().Get("start"); v != "" {
		if t, ok := model.ParseDate(v); ok {
			startDate = &t
		}
	}
	if v := r.URL.Query().Get("end"); v != "" {
		if t, ok := model.ParseDate(v); ok {
			endDate = &t
		}
	}

	pageSize := int32(100)
	if v := r.URL.Query().Get("pageSize"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			pageSize = int32(n)
		}
	}

	txns, nextToken, err := s.store.ListTransactions(r.Context(), userID, startDate, endDate, pageSize, r.URL.Query().Get("pageToken"))
	if err != nil {
		s.writeStoreError(w, "list transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions":  txns,
		"nextPageToken": nextToken,
	})
}

// DeleteTransaction removes a single transaction after verifying ownership.
func (s *AnalysisService) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID := s.requireUserAccess(w, r)
	if userID == "" {
		return
	}
	txID := mux.Vars(r)["txId"]

	tx, err := s.store.GetTransaction(r.Context(), txID)
	if err != nil {
		s.writeStoreError(w, "get transaction", err)
		return
	}
	if tx.UserID != userID {
		writeError(w, http.StatusForbidden, "cannot access another user's resources")
		return
	}

	if err := s.store.DeleteTransaction(r.Context(), txID); err != nil {
		s.writeStoreError(w, "delete transaction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateAccount ingests a raw bank account; non-numeric balances coerce
// to 0.
func (s *AnalysisService) CreateAccount(w http.ResponseWriter, r *http.Request) {
	userID := s.requireUserAccess(w, r)
	if userID == "" {
		return
	}

	var raw model.RawBankAccount
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	raw.UserID = userID

	account := model.NormalizeAccount(raw)
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	account.UpdatedAt = time.Now()

	if err := s.store.CreateAccount(r.Context(), &account); err != nil {
		s.writeStoreError(w, "create account", err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// ListAccounts returns all of a user's accounts.
func (s *AnalysisService) ListAccounts(w http.ResponseWriter, r *http.Request) {
	userID := s.requireUserAccess(w, r)
	if userID == "" {
		return
	}

	accounts, err := s.store.ListAccounts(r.Context(), userID)
	if err != nil {
		s.writeStoreError(w, "list accounts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"accounts": accounts})
}

// GetProfile returns the user's profile document; an empty profile if none
// exists yet.
func (s *AnalysisService) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := s.requireUserAccess(w, r)
	if userID == "" {
		return
	}

	profile, err := s.store.GetUserProfile(r.Context(), userID)
	if err != nil {
		s.writeStoreError(w, "get profile", err)
		return
	}
	if profile == nil {
		profile = &model.UserProfile{UserID: userID}
	}
	writeJSON(w, http.StatusOK, profile)
}

// PutProfile creates or replaces the user's profile document.
func (s *AnalysisService) PutProfile(w http.ResponseWriter, r *http.Request) {
	userID := s.requireUserAccess(w, r)
	if userID == "" {
		return
	}

	var profile model.UserProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	profile.UserID = userID

	if err := s.store.UpdateUserProfile(r.Context(), &profile); err != nil {
		s.writeStoreError(w, "update profile", err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// ListNotifications returns a page of the user's notifications.
func (s *AnalysisService) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID := s.requireUserAccess(w, r)
	if userID == "" {
		return
	}

	unreadOnly := r.URL.Query().Get("unreadOnly") == "true"
	notifications, nextToken, err := s.store.ListNotifications(r.Context(), userID, unreadOnly, 100, r.URL.Query().Get("pageToken"))
	if err != nil {
		s.writeStoreError(w, "list notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifications,
		"nextPageToken": nextToken,
	})
}

// MarkNotificationRead marks a single notification as read after verifying
// ownership.
func (s *AnalysisService) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID := s.requireUserAccess(w, r)
	if userID == "" {
		return
	}
	notificationID := mux.Vars(r)["notificationId"]

	n, err := s.store.GetNotification(r.Context(), notificationID)
	if err != nil {
		s.writeStoreError(w, "get notification", err)
		return
	}
	if n.UserID != userID {
		writeError(w, http.StatusForbidden, "cannot access another user's resources")
		return
	}

	if err := s.store.MarkNotificationRead(r.Context(), notificationID); err != nil {
		s.writeStoreError(w, "mark notification read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
