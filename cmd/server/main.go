package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/pesowise/backend/internal/advisor"
	"github.com/pesowise/backend/internal/auth"
	"github.com/pesowise/backend/internal/service"
	"github.com/pesowise/backend/internal/store"
)

func main() {
	// .env is optional; real deployments set env vars directly.
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if os.Getenv("ENV") == "local" {
		log.SetFormatter(&logrus.TextFormatter{})
		log.SetLevel(logrus.DebugLevel)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8111"
	}

	ctx := context.Background()

	useMemoryStore := os.Getenv("USE_MEMORY_STORE") == "true" || os.Getenv("ENV") == "local"
	skipAuth := os.Getenv("SKIP_AUTH") == "true"

	var storeImpl store.Store
	var firebaseAuth *auth.FirebaseAuth

	if useMemoryStore {
		log.Info("using in-memory store for local development")
		storeImpl = store.NewMemoryStore()
	} else {
		projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
		if projectID == "" {
			log.Fatal("GOOGLE_CLOUD_PROJECT must be set when using Firestore")
		}

		firestoreClient, err := firestore.NewClient(ctx, projectID)
		if err != nil {
			log.WithError(err).Fatal("failed to create Firestore client")
		}
		defer firestoreClient.Close()

		if skipAuth {
			log.Warn("SKIP_AUTH enabled, using local dev identity against Firestore")
		} else {
			firebaseAuth, err = auth.NewFirebaseAuth(ctx)
			if err != nil {
				log.WithError(err).Fatal("failed to initialize Firebase auth")
			}
		}

		storeImpl = store.NewFirestoreStore(firestoreClient)
	}

	var advisorClient *advisor.Client
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		advisorClient = advisor.NewClient(key)
	} else {
		log.Info("GEMINI_API_KEY not set, advice endpoint disabled")
	}

	svc := service.NewAnalysisService(storeImpl, advisorClient, log)

	r := mux.NewRouter()
	svc.Register(r)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	var handler http.Handler
	if firebaseAuth != nil {
		handler = auth.Middleware(firebaseAuth, log)(r)
	} else {
		handler = auth.LocalDevMiddleware()(r)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:1234",
			"http://127.0.0.1:1234",
			"https://pesowise.app",
			"https://www.pesowise.app",
		},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"User-Agent",
			"X-Scheduler-Secret",
			"X-Debug-Impersonate-User",
		},
		AllowCredentials: true,
	})
	handler = c.Handler(handler)

	// Weekly digest sweep, Mondays 08:00 server time. Cloud Scheduler can
	// also drive it through POST /api/v1/digest.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("0 8 * * 1", func() {
		if _, _, err := svc.RunAllDigests(context.Background()); err != nil {
			log.WithError(err).Error("scheduled digest sweep failed")
		}
	}); err != nil {
		log.WithError(err).Fatal("failed to schedule digest job")
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}

	log.WithField("port", port).Info("starting server")
	if err := srv.ListenAndServe(); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}
