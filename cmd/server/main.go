package main

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/quarterly-dev/quarterly/internal/classify"
	"github.com/quarterly-dev/quarterly/internal/logger"
	"github.com/quarterly-dev/quarterly/internal/submission"
)

func main() {
	_ = godotenv.Load()
	log := logger.New()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8120"
	}

	cfg := classify.DefaultConfig
	if v := os.Getenv("BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BatchSize = n
		}
	}
	if v := os.Getenv("BATCH_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BatchInterval = time.Duration(n) * time.Millisecond
		}
	}

	gemini := classify.NewGeminiClassifier(os.Getenv("GEMINI_API_KEY"))
	svc := submission.NewService(gemini, gemini, cfg, log)
	jobs := submission.NewJobStore(1 * time.Hour)
	defer jobs.Stop()

	srv := &server{svc: svc, jobs: jobs, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/classify", srv.handleClassify)
	mux.HandleFunc("POST /v1/classify/async", srv.handleClassifyAsync)
	mux.HandleFunc("POST /v1/aggregate", srv.handleAggregate)
	mux.HandleFunc("GET /v1/jobs/{id}", srv.handleJob)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})

	log.Info().Str("port", port).Msg("starting quarterly server")
	if err := http.ListenAndServe(":"+port, c.Handler(mux)); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
