package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/pesowise/backend/internal/model"
	"github.com/pesowise/backend/internal/store"
)

// newDigestService backs the service with a real in-memory store so the
// digest path is exercised end to end.
func newDigestService(t *testing.T) (*AnalysisService, *store.MemoryStore, *mux.Router) {
	t.Helper()
	memStore := store.NewMemoryStore()

	log := logrus.New()
	log.SetOutput(io.Discard)

	svc := NewAnalysisService(memStore, nil, log)
	r := mux.NewRouter()
	svc.Register(r)
	return svc, memStore, r
}

func seedDigestUser(t *testing.T, s *store.MemoryStore, userID string, optIn bool) {
	t.Helper()
	ctx := context.Background()
	if err := s.UpdateUserProfile(ctx, &model.UserProfile{UserID: userID, MonthlyIncome: 30000, WeeklyDigest: optIn}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	for i := 0; i < 3; i++ {
		tx := &model.Transaction{
			UserID:   userID,
			Type:     model.TransactionExpense,
			Amount:   1000,
			Date:     time.Now().AddDate(0, 0, -i),
			Category: "food",
			Name:     "Jollibee",
		}
		if err := s.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("seed transaction: %v", err)
		}
	}
}

func TestRunDigestSchedulerMode(t *testing.T) {
	_, memStore, r := newDigestService(t)
	t.Setenv("SCHEDULER_SECRET", "sekret")

	seedDigestUser(t, memStore, "opted-in", true)
	seedDigestUser(t, memStore, "opted-out", false)

	t.Run("wrong secret is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/digest", nil)
		req.Header.Set("X-Scheduler-Secret", "wrong")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("sweep processes only opted-in users", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/digest", nil)
		req.Header.Set("X-Scheduler-Secret", "sekret")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp digestResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.UsersProcessed != 1 || resp.DigestsSent != 1 {
			t.Errorf("expected 1 user processed and 1 digest sent, got %+v", resp)
		}

		notifications, _, err := memStore.ListNotifications(context.Background(), "opted-in", true, 100, "")
		if err != nil {
			t.Fatalf("list notifications: %v", err)
		}
		if len(notifications) != 1 {
			t.Fatalf("expected 1 notification, got %d", len(notifications))
		}
		n := notifications[0]
		if n.Type != "weekly_digest" {
			t.Errorf("expected weekly_digest type, got %q", n.Type)
		}
		if !strings.Contains(n.Body, "You spent") {
			t.Errorf("unexpected digest body: %q", n.Body)
		}

		none, _, err := memStore.ListNotifications(context.Background(), "opted-out", false, 100, "")
		if err != nil {
			t.Fatalf("list notifications: %v", err)
		}
		if len(none) != 0 {
			t.Errorf("opted-out user should get no digest, got %d", len(none))
		}
	})
}

func TestDigestCountsPriorMonthSpending(t *testing.T) {
	svc, memStore, _ := newDigestService(t)
	ctx := context.Background()
	userID := "user-123"

	if err := memStore.UpdateUserProfile(ctx, &model.UserProfile{UserID: userID, WeeklyDigest: true}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	// Spending inside the trailing week but in the prior calendar month.
	tx := &model.Transaction{
		UserID:   userID,
		Type:     model.TransactionExpense,
		Amount:   3000,
		Date:     time.Date(2026, time.May, 29, 12, 0, 0, 0, time.UTC),
		Category: "food",
		Name:     "Jollibee",
	}
	if err := memStore.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("seed transaction: %v", err)
	}

	now := time.Date(2026, time.June, 3, 8, 0, 0, 0, time.UTC)
	sent, err := svc.generateDigestForUser(ctx, userID, now)
	if err != nil {
		t.Fatalf("generate digest: %v", err)
	}
	if !sent {
		t.Fatal("expected a digest to be sent")
	}

	notifications, _, err := memStore.ListNotifications(ctx, userID, false, 10, "")
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifications))
	}
	if !strings.Contains(notifications[0].Body, "You spent ₱3000.00") {
		t.Errorf("digest body missed the week's spending: %q", notifications[0].Body)
	}
}

func TestRunDigestUserMode(t *testing.T) {
	_, memStore, r := newDigestService(t)
	seedDigestUser(t, memStore, "user-123", true)

	t.Run("user can trigger their own digest", func(t *testing.T) {
		body := strings.NewReader(`{"userId":"user-123"}`)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/digest", "user-123", body))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp digestResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.DigestsSent != 1 {
			t.Errorf("expected 1 digest sent, got %+v", resp)
		}
	})

	t.Run("cannot trigger another user's digest", func(t *testing.T) {
		body := strings.NewReader(`{"userId":"someone-else"}`)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/digest", "user-123", body))
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("authenticated user without a body digests themselves", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/digest", "user-123", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}
