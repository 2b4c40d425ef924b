package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/pesowise/backend/internal/analysis"
	"github.com/pesowise/backend/internal/auth"
	"github.com/pesowise/backend/internal/model"
)

// digestPeriodDays is the trailing window a digest summarizes.
const digestPeriodDays = 7

type digestRequest struct {
	UserID string `json:"userId"`
}

type digestResponse struct {
	UsersProcessed int `json:"usersProcessed"`
	DigestsSent    int `json:"digestsSent"`
}

// RunDigest generates weekly summary notifications.
//
// With a userId in the body it generates a digest for that single user,
// who must be the authenticated caller. Without one it is scheduler mode:
// the request must carry an X-Scheduler-Secret header matching the
// SCHEDULER_SECRET env var, and every opted-in user is processed.
func (s *AnalysisService) RunDigest(w http.ResponseWriter, r *http.Request) {
	var req digestRequest
	if r.Body != nil {
		// An empty body is fine; it means scheduler mode.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	claims, authenticated := auth.GetUserClaims(r.Context())
	if !authenticated {
		secret := os.Getenv("SCHEDULER_SECRET")
		if secret == "" || r.Header.Get("X-Scheduler-Secret") != secret {
			writeError(w, http.StatusUnauthorized, "provide a valid auth token or X-Scheduler-Secret header")
			return
		}
	} else if req.UserID != "" && req.UserID != claims.UID {
		writeError(w, http.StatusForbidden, "cannot generate a digest for another user")
		return
	} else if req.UserID == "" {
		req.UserID = claims.UID
	}

	resp := digestResponse{}
	if req.UserID != "" {
		sent, err := s.generateDigestForUser(r.Context(), req.UserID, time.Now())
		if err != nil {
			s.writeStoreError(w, "generate digest", err)
			return
		}
		resp.UsersProcessed = 1
		if sent {
			resp.DigestsSent = 1
		}
	} else {
		processed, sent, err := s.RunAllDigests(r.Context())
		if err != nil {
			s.writeStoreError(w, "run digests", err)
			return
		}
		resp.UsersProcessed = processed
		resp.DigestsSent = sent
	}

	writeJSON(w, http.StatusOK, resp)
}

// RunAllDigests processes every opted-in user. It is called from the
// scheduler endpoint and from the in-process cron job; a single user
// failing does not stop the sweep.
func (s *AnalysisService) RunAllDigests(ctx context.Context) (processed, sent int, err error) {
	users, err := s.store.ListDigestOptInUsers(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list digest users: %w", err)
	}

	now := time.Now()
	for _, u := range users {
		processed++
		ok, err := s.generateDigestForUser(ctx, u.UserID, now)
		if err != nil {
			s.log.WithError(err).WithField("userId", u.UserID).Error("digest generation failed")
			continue
		}
		if ok {
			sent++
		}
	}
	s.log.WithField("usersProcessed", processed).WithField("digestsSent", sent).Info("weekly digest sweep complete")
	return processed, sent, nil
}

// generateDigestForUser builds a spending summary over the trailing week
// and stores it as a notification. Returns false without error when the
// user has not opted in.
func (s *AnalysisService) generateDigestForUser(ctx context.Context, userID string, now time.Time) (bool, error) {
	profile, err := s.store.GetUserProfile(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("get profile: %w", err)
	}
	if profile == nil || !profile.WeeklyDigest {
		return false, nil
	}

	start := now.AddDate(0, 0, -digestPeriodDays)
	txPtrs, _, err := s.store.ListTransactions(ctx, userID, &start, &now, listPageSize, "")
	if err != nil {
		return false, fmt.Errorf("list transactions: %w", err)
	}
	txns := make([]model.Transaction, len(txPtrs))
	for i, tx := range txPtrs {
		txns[i] = *tx
	}

	accPtrs, err := s.store.ListAccounts(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("list accounts: %w", err)
	}
	accounts := make([]model.BankAccount, len(accPtrs))
	for i, acc := range accPtrs {
		accounts[i] = *acc
	}

	result := analysis.BuildInsights(txns, profile, accounts, now, analysis.DefaultInsightConfig())

	// TotalMonthlySpending only covers the current calendar month, so a
	// window straddling a month boundary needs its own total.
	var weekSpending float64
	for _, tx := range txns {
		if tx.Type == model.TransactionExpense {
			weekSpending += math.Abs(tx.Amount)
		}
	}

	notification := &model.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      "weekly_digest",
		Title:     "Your weekly spending digest",
		Body:      formatDigestBody(weekSpending, result),
		CreatedAt: now,
	}
	if err := s.store.CreateNotification(ctx, notification); err != nil {
		return false, fmt.Errorf("create notification: %w", err)
	}
	return true, nil
}

func formatDigestBody(weekSpending float64, r analysis.InsightResult) string {
	body := fmt.Sprintf("You spent ₱%.2f this week.", weekSpending)
	if r.TopExpenseCategory != "" {
		body += fmt.Sprintf(" Top category: %s.", r.TopExpenseCategory)
	}
	if r.SavingsRatePercent > 0 {
		body += fmt.Sprintf(" Savings rate: %.0f%%.", r.SavingsRatePercent)
	}
	if len(r.RecurringExpenses) > 0 {
		body += fmt.Sprintf(" %d recurring expenses detected.", len(r.RecurringExpenses))
	}
	return body
}
