// Package service exposes the analysis engines and record storage over a
// JSON HTTP API.
package service

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/pesowise/backend/internal/advisor"
	"github.com/pesowise/backend/internal/auth"
	"github.com/pesowise/backend/internal/store"
)

// listPageSize bounds how many records one analysis call pulls. Analysis
// operates on a single snapshot fetch, matching the dashboard's behavior.
const listPageSize = 10000

// AnalysisService wires the store and the engines behind HTTP handlers.
type AnalysisService struct {
	store   store.Store
	advisor *advisor.Client
	log     *logrus.Logger
}

// NewAnalysisService creates the service. advisorClient may be nil when no
// Gemini key is configured.
func NewAnalysisService(st store.Store, advisorClient *advisor.Client, log *logrus.Logger) *AnalysisService {
	if log == nil {
		log = logrus.New()
	}
	return &AnalysisService{
		store:   st,
		advisor: advisorClient,
		log:     log,
	}
}

// Register mounts all routes on the router.
func (s *AnalysisService) Register(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/users/{userId}/credit-score", s.GetCreditScore).Methods(http.MethodGet)
	api.HandleFunc("/users/{userId}/fraud-analysis", s.GetFraudAnalysis).Methods(http.MethodGet)
	api.HandleFunc("/users/{userId}/insights", s.GetInsights).Methods(http.MethodGet)
	api.HandleFunc("/users/{userId}/forecast", s.GetForecast).Methods(http.MethodGet)
	api.HandleFunc("/users/{userId}/advice", s.GetAdvice).Methods(http.MethodPost)

	api.HandleFunc("/users/{userId}/transactions", s.CreateTransaction).Methods(http.MethodPost)
	api.HandleFunc("/users/{userId}/transactions", s.ListTransactions).Methods(http.MethodGet)
	api.HandleFunc("/users/{userId}/transactions/{txId}", s.DeleteTransaction).Methods(http.MethodDelete)
	api.HandleFunc("/users/{userId}/accounts", s.CreateAccount).Methods(http.MethodPost)
	api.HandleFunc("/users/{userId}/accounts", s.ListAccounts).Methods(http.MethodGet)
	api.HandleFunc("/users/{userId}/profile", s.GetProfile).Methods(http.MethodGet)
	api.HandleFunc("/users/{userId}/profile", s.PutProfile).Methods(http.MethodPut)
	api.HandleFunc("/users/{userId}/notifications", s.ListNotifications).Methods(http.MethodGet)
	api.HandleFunc("/users/{userId}/notifications/{notificationId}/read", s.MarkNotificationRead).Methods(http.MethodPost)

	api.HandleFunc("/digest", s.RunDigest).Methods(http.MethodPost)
}

// requireUserAccess verifies the authenticated user matches the path user.
// Returns the user ID, or "" after writing the error response.
func (s *AnalysisService) requireUserAccess(w http.ResponseWriter, r *http.Request) string {
	userID := mux.Vars(r)["userId"]

	claims, ok := auth.GetUserClaims(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not authenticated")
		return ""
	}
	if userID != "" && userID != claims.UID {
		writeError(w, http.StatusForbidden, "cannot access another user's resources")
		return ""
	}
	if userID == "" {
		userID = claims.UID
	}
	return userID
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps a store failure onto an HTTP error response. The
// engines themselves never fail; only the repository can.
func (s *AnalysisService) writeStoreError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, op+": not found")
		return
	}
	s.log.WithError(err).WithField("op", op).Error("store operation failed")
	writeError(w, http.StatusServiceUnavailable, "analysis unavailable: "+op+" failed")
}
