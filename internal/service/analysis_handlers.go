package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/pesowise/backend/internal/advisor"
	"github.com/pesowise/backend/internal/analysis"
	"github.com/pesowise/backend/internal/model"
)

// snapshot is one consistent fetch of a user's records. Each analysis call
// operates on its own snapshot; engines never share mutable state.
type snapshot struct {
	transactions []model.Transaction
	accounts     []model.BankAccount
	profile      *model.UserProfile
}

// fetchSnapshot reads everything the engines need in one pass. The store
// returns transactions most-recent-first, which the fraud engine's
// order-sensitive threshold relies on.
func (s *AnalysisService) fetchSnapshot(ctx context.Context, userID string) (*snapshot, error) {
	txPtrs, _, err := s.store.ListTransactions(ctx, userID, nil, nil, listPageSize, "")
	if err != nil {
		return nil, err
	}
	accPtrs, err := s.store.ListAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile, err := s.store.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	snap := &snapshot{profile: profile}
	snap.transactions = make([]model.Transaction, len(txPtrs))
	for i, tx := range txPtrs {
		snap.transactions[i] = *tx
	}
	snap.accounts = make([]model.BankAccount, len(accPtrs))
	for i, acc := range accPtrs {
		snap.accounts[i] = *acc
	}
	return snap, nil
}

// GetCreditScore returns the alternative credit score with factor
// breakdowns and recommendations.
func (s *AnalysisService) GetCreditScore(w http.ResponseWriter, r *http.Request) {
	userID := s.requireUserAccess(w, r)
	if userID == "" {
		return
	}

	snap, err := s.fetchSnapshot(r.Context(), userID)
	if err != nil {
		s.writeStoreError(w, "fetch records", err)
		return
	}

	result := analysis.ScoreCredit(snap.transactions, snap.accounts, time.Now(), analysis.DefaultCreditConfig())
	writeJSON(w, http.StatusOK, result)
}

// GetFraudAnalysis returns the risk score and alerts.
func (s *AnalysisService) GetFraudAnalysis(w http.ResponseWriter, r *http.Request) {
	userID := s.requireUserAccess(w, r)
	if userID == "" {
		return
	}

	txPtrs, _, err := s.store.ListTransactions(r.Context(), userID, nil, nil, listPageSize, "")
	if err != nil {
		s.writeStoreError(w, "fetch transactions", err)
		return
	}
	txns := make([]model.Transaction, len(txPtrs))
	for i, tx := range txPtrs {
		txns[i] = *tx
	}

	result := analysis.AnalyzeFraud(txns, analysis.DefaultFraudConfig())
	writeJSON(w, http.StatusOK, result)
}

// GetInsights returns spending metrics and the ranked insight/action records.
func (s *AnalysisService) GetInsights(w http.ResponseWriter, r *http.Request) {
	userID := s.requireUserAccess(w, r)
	if userID == "" {
		return
	}

	snap, err := s.fetchSnapshot(r.Context(), userID)
	if err != nil {
		s.writeStoreError(w, "fetch records", err)
		return
	}

	result := analysis.BuildInsights(snap.transactions, snap.profile, snap.accounts, time.Now(), analysis.DefaultInsightConfig())
	writeJSON(w, http.StatusOK, result)
}

// GetForecast returns the 6-month balance projection.
func (s *AnalysisService) GetForecast(w http.ResponseWriter, r *http.Request) {
	userID := s.requireUserAccess(w, r)
	if userID == "" {
		return
	}

	snap, err := s.fetchSnapshot(r.Context(), userID)
	if err != nil {
		s.writeStoreError(w, "fetch records", err)
		return
	}

	result := analysis.Forecast(snap.transactions, snap.accounts, snap.profile, time.Now(), analysis.DefaultForecastConfig())
	writeJSON(w, http.StatusOK, result)
}

// GetAdvice computes the credit and insight results and asks the advisor
// for a narrative summary. The numbers in the response are engine output;
// only the narrative comes from the AI endpoint.
func (s *AnalysisService) GetAdvice(w http.ResponseWriter, r *http.Request) {
	userID := s.requireUserAccess(w, r)
	if userID == "" {
		return
	}
	if s.advisor == nil || !s.advisor.Configured() {
		writeError(w, http.StatusServiceUnavailable, "advisor not configured")
		return
	}

	snap, err := s.fetchSnapshot(r.Context(), userID)
	if err != nil {
		s.writeStoreError(w, "fetch records", err)
		return
	}

	now := time.Now()
	credit := analysis.ScoreCredit(snap.transactions, snap.accounts, now, analysis.DefaultCreditConfig())
	insights := analysis.BuildInsights(snap.transactions, snap.profile, snap.accounts, now, analysis.DefaultInsightConfig())

	narrative, err := s.advisor.GenerateAdvice(r.Context(), advisor.AdviceInput{
		CreditScore:  credit.Score,
		CreditRating: credit.Rating,
		Factors:      credit.Factors,
		Insights:     insights,
	})
	if err != nil {
		var advErr *advisor.Error
		if errors.As(err, &advErr) && advErr.IsRetryable() {
			s.log.WithError(err).Warn("advisor temporarily unavailable")
			writeError(w, http.StatusBadGateway, "advice unavailable, retry later")
			return
		}
		s.log.WithError(err).Error("advisor call failed")
		writeError(w, http.StatusBadGateway, "advice unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"narrative":   narrative,
		"creditScore": credit,
		"insights":    insights,
	})
}
