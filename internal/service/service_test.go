package service

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.uber.org/mock/gomock"

	"github.com/pesowise/backend/internal/auth"
	"github.com/pesowise/backend/internal/model"
	"github.com/pesowise/backend/internal/store"
)

func newTestService(t *testing.T) (*store.MockStore, *mux.Router) {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockStore := store.NewMockStore(ctrl)

	log := logrus.New()
	log.SetOutput(io.Discard)

	svc := NewAnalysisService(mockStore, nil, log)
	r := mux.NewRouter()
	svc.Register(r)
	return mockStore, r
}

// authedRequest builds a request carrying authenticated user claims, the
// way the auth middleware would.
func authedRequest(method, target, userID string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	ctx := auth.WithUserClaims(req.Context(), &auth.UserClaims{
		UID:      userID,
		Email:    userID + "@test.com",
		Verified: true,
	})
	return req.WithContext(ctx)
}

func TestGetCreditScore(t *testing.T) {
	mockStore, r := newTestService(t)
	userID := "user-123"

	t.Run("empty history resolves to the floor", func(t *testing.T) {
		mockStore.EXPECT().ListTransactions(gomock.Any(), userID, nil, nil, int32(listPageSize), "").Return(nil, "", nil)
		mockStore.EXPECT().ListAccounts(gomock.Any(), userID).Return(nil, nil)
		mockStore.EXPECT().GetUserProfile(gomock.Any(), userID).Return(nil, nil)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/users/"+userID+"/credit-score", userID, nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Score  int    `json:"score"`
			Rating string `json:"rating"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Score != 300 {
			t.Errorf("expected floor score 300, got %d", resp.Score)
		}
		if resp.Rating != "poor" {
			t.Errorf("expected rating poor, got %q", resp.Rating)
		}
	})

	t.Run("unauthenticated request is rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/"+userID+"/credit-score", nil)
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("cross-user access is forbidden", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/users/"+userID+"/credit-score", "someone-else", nil))
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("store failure maps to 503", func(t *testing.T) {
		mockStore.EXPECT().ListTransactions(gomock.Any(), userID, nil, nil, int32(listPageSize), "").
			Return(nil, "", fmt.Errorf("firestore unavailable"))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/users/"+userID+"/credit-score", userID, nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
	})
}

func TestGetFraudAnalysis(t *testing.T) {
	mockStore, r := newTestService(t)
	userID := "user-123"

	txns := []*model.Transaction{
		{ID: "t1", UserID: userID, Type: model.TransactionExpense, Amount: 500, Date: time.Now(), Category: "gambling"},
	}
	mockStore.EXPECT().ListTransactions(gomock.Any(), userID, nil, nil, int32(listPageSize), "").Return(txns, "", nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/users/"+userID+"/fraud-analysis", userID, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		RiskScore float64 `json:"riskScore"`
		Alerts    []struct {
			Severity string `json:"severity"`
		} `json:"alerts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Alerts) != 1 || resp.Alerts[0].Severity != "High" {
		t.Errorf("expected one High alert, got %+v", resp.Alerts)
	}
	if resp.RiskScore != 95 {
		t.Errorf("expected risk score 95, got %f", resp.RiskScore)
	}
}

func TestGetForecast(t *testing.T) {
	mockStore, r := newTestService(t)
	userID := "user-123"

	mockStore.EXPECT().ListTransactions(gomock.Any(), userID, nil, nil, int32(listPageSize), "").Return(nil, "", nil)
	mockStore.EXPECT().ListAccounts(gomock.Any(), userID).Return(nil, nil)
	mockStore.EXPECT().GetUserProfile(gomock.Any(), userID).Return(&model.UserProfile{UserID: userID, MonthlyIncome: 40000}, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/users/"+userID+"/forecast", userID, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Months []struct {
			Income float64 `json:"income"`
		} `json:"months"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Months) != 6 {
		t.Fatalf("expected 6 forecast months, got %d", len(resp.Months))
	}
	if resp.Months[0].Income != 40000 {
		t.Errorf("expected declared income in forecast, got %f", resp.Months[0].Income)
	}
}

func TestGetAdviceNotConfigured(t *testing.T) {
	_, r := newTestService(t)
	userID := "user-123"

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/users/"+userID+"/advice", userID, nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when no advisor is configured, got %d", rec.Code)
	}
}

func TestCreateTransaction(t *testing.T) {
	mockStore, r := newTestService(t)
	userID := "user-123"

	t.Run("normalizes and stores", func(t *testing.T) {
		var stored *model.Transaction
		mockStore.EXPECT().CreateTransaction(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ interface{}, tx *model.Transaction) error {
				stored = tx
				return nil
			})

		body := strings.NewReader(`{"type":"Expense","amount":"1,250.50","date":"2026-05-04","category":" Food ","name":"Jollibee"}`)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/users/"+userID+"/transactions", userID, body))

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if stored == nil {
			t.Fatal("expected the transaction to reach the store")
		}
		if stored.UserID != userID {
			t.Errorf("expected path user as owner, got %q", stored.UserID)
		}
		if stored.ID == "" {
			t.Error("expected a minted ID")
		}
		if stored.Amount != 1250.50 {
			t.Errorf("expected parsed amount 1250.50, got %f", stored.Amount)
		}
		if stored.Category != "food" {
			t.Errorf("expected normalized category, got %q", stored.Category)
		}
	})

	t.Run("unparseable date is a 400", func(t *testing.T) {
		body := strings.NewReader(`{"amount":100,"date":"sometime last week"}`)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/users/"+userID+"/transactions", userID, body))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("malformed JSON is a 400", func(t *testing.T) {
		body := strings.NewReader(`{not json`)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/users/"+userID+"/transactions", userID, body))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestDeleteTransaction(t *testing.T) {
	mockStore, r := newTestService(t)
	userID := "user-123"

	t.Run("owner can delete", func(t *testing.T) {
		mockStore.EXPECT().GetTransaction(gomock.Any(), "tx-1").
			Return(&model.Transaction{ID: "tx-1", UserID: userID}, nil)
		mockStore.EXPECT().DeleteTransaction(gomock.Any(), "tx-1").Return(nil)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, authedRequest(http.MethodDelete, "/api/v1/users/"+userID+"/transactions/tx-1", userID, nil))
		if rec.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rec.Code)
		}
	})

	t.Run("another user's transaction is forbidden", func(t *testing.T) {
		mockStore.EXPECT().GetTransaction(gomock.Any(), "tx-2").
			Return(&model.Transaction{ID: "tx-2", UserID: "someone-else"}, nil)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, authedRequest(http.MethodDelete, "/api/v1/users/"+userID+"/transactions/tx-2", userID, nil))
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("missing transaction is a 404", func(t *testing.T) {
		mockStore.EXPECT().GetTransaction(gomock.Any(), "tx-3").
			Return(nil, fmt.Errorf("transaction tx-3: %w", store.ErrNotFound))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, authedRequest(http.MethodDelete, "/api/v1/users/"+userID+"/transactions/tx-3", userID, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestMarkNotificationRead(t *testing.T) {
	mockStore, r := newTestService(t)
	userID := "user-123"

	t.Run("owner can mark read", func(t *testing.T) {
		mockStore.EXPECT().GetNotification(gomock.Any(), "n-1").
			Return(&model.Notification{ID: "n-1", UserID: userID}, nil)
		mockStore.EXPECT().MarkNotificationRead(gomock.Any(), "n-1").Return(nil)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/users/"+userID+"/notifications/n-1/read", userID, nil))
		if rec.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rec.Code)
		}
	})

	t.Run("another user's notification is forbidden", func(t *testing.T) {
		mockStore.EXPECT().GetNotification(gomock.Any(), "n-2").
			Return(&model.Notification{ID: "n-2", UserID: "someone-else"}, nil)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/users/"+userID+"/notifications/n-2/read", userID, nil))
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("missing notification is a 404", func(t *testing.T) {
		mockStore.EXPECT().GetNotification(gomock.Any(), "n-3").
			Return(nil, fmt.Errorf("notification n-3: %w", store.ErrNotFound))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/users/"+userID+"/notifications/n-3/read", userID, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestGetProfile(t *testing.T) {
	mockStore, r := newTestService(t)
	userID := "user-123"

	t.Run("absent profile returns an empty one", func(t *testing.T) {
		mockStore.EXPECT().GetUserProfile(gomock.Any(), userID).Return(nil, nil)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/users/"+userID+"/profile", userID, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var profile model.UserProfile
		if err := json.Unmarshal(rec.Body.Bytes(), &profile); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if profile.UserID != userID {
			t.Errorf("expected user ID backfilled, got %q", profile.UserID)
		}
	})

	t.Run("update round-trips", func(t *testing.T) {
		mockStore.EXPECT().UpdateUserProfile(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ interface{}, p *model.UserProfile) error {
				if p.UserID != userID {
					t.Errorf("expected path user enforced, got %q", p.UserID)
				}
				if p.MonthlyIncome != 45000 {
					t.Errorf("expected income 45000, got %f", p.MonthlyIncome)
				}
				return nil
			})

		body := strings.NewReader(`{"userId":"spoofed","monthlyIncome":45000,"weeklyDigest":true}`)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, authedRequest(http.MethodPut, "/api/v1/users/"+userID+"/profile", userID, body))
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})
}
