// The api command runs the finance backend: transaction CRUD, analytics,
// model-backed insights and asynchronous CSV exports behind one HTTP server.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finsight/backend/internal/api"
	"github.com/finsight/backend/internal/api/handlers"
	"github.com/finsight/backend/internal/categories"
	"github.com/finsight/backend/internal/export"
	"github.com/finsight/backend/internal/gcs"
	infraBQ "github.com/finsight/backend/internal/infra/bigquery"
	"github.com/finsight/backend/internal/insights"
	"github.com/finsight/backend/internal/jobs/inmemory"
	"github.com/finsight/backend/internal/logger"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	var (
		port    = flag.String("port", envOr("PORT", "8080"), "HTTP server port (or set PORT env)")
		project = flag.String("project", os.Getenv("GOOGLE_CLOUD_PROJECT"), "Google Cloud project ID (or set GOOGLE_CLOUD_PROJECT env)")
		dataset = flag.String("dataset", envOr("BQ_DATASET", "finance"), "BigQuery dataset (or set BQ_DATASET env)")
		bucket  = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for CSV exports (or set GCS_BUCKET env)")
		model   = flag.String("model", envOr("GEMINI_MODEL", "gemini-2.0-flash"), "Gemini model for insights (or set GEMINI_MODEL env)")
		workers = flag.Int("export-workers", 2, "Number of concurrent export workers")
	)
	flag.Parse()

	log := logger.New("api")

	if *project == "" {
		log.Fatal().Msg("Google Cloud project is required (set -project or GOOGLE_CLOUD_PROJECT)")
	}
	if *bucket == "" {
		log.Warn().Msg("No GCS bucket configured - CSV exports will fail")
	}

	ctx := context.Background()

	store, err := infraBQ.NewStore(ctx, *project, *dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery store")
	}
	defer store.Close()

	advisor, err := insights.NewGeminiAdvisor(ctx, *model)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini advisor")
	}

	objects, err := gcs.NewClient(ctx, *bucket)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer objects.Close()

	insightSvc := insights.NewService(store, store, advisor, log)
	categorizer := categories.New(advisor, log)

	// Export job pipeline.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, *workers, jobStore)
	exportWorker := export.NewWorker(store, objects, log)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	go func() {
		log.Info().Int("workers", *workers).Msg("Starting export workers")
		if err := jobQueue.Start(workerCtx, exportWorker.Handle); err != nil {
			log.Error().Err(err).Msg("Export workers stopped with error")
		}
	}()

	router := api.NewRouter(api.Handlers{
		Transactions: handlers.NewTransactionsHandler(store, categorizer, log),
		AI:           handlers.NewAIHandler(store, insightSvc, log),
		Jobs:         handlers.NewJobsHandler(jobQueue, jobStore, log),
	}, log)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight exports.
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
