// Package api assembles the HTTP routes and middleware chain into a single
// handler so the server wiring is testable without a listening socket.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/finsight/backend/internal/api/handlers"
	"github.com/finsight/backend/internal/api/middleware"
)

// Handlers groups the endpoint implementations the router dispatches to.
type Handlers struct {
	Transactions *handlers.TransactionsHandler
	AI           *handlers.AIHandler
	Jobs         *handlers.JobsHandler
}

// NewRouter builds the full HTTP handler: routes, auth, logging, recovery and
// CORS. Everything under /api requires the caller identity header; /health
// does not.
func NewRouter(h Handlers, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.Transactions.List(w, r)
		case http.MethodPost:
			h.Transactions.Create(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions/analytics", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.Transactions.Analytics(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions/export", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.Jobs.EnqueueExport(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions/", func(w http.ResponseWriter, r *http.Request) {
		transactionID := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
		if transactionID == "" || strings.Contains(transactionID, "/") {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		switch r.Method {
		case http.MethodPut:
			h.Transactions.Update(w, r, transactionID)
		case http.MethodDelete:
			h.Transactions.Delete(w, r, transactionID)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/ai/insights", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.AI.Insights(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/ai/predictions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.AI.Predictions(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/ai/chat", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.AI.Chat(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.Jobs.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		h.Jobs.GetJob(w, r, jobID)
	})

	authed := middleware.Auth(mux)

	root := http.NewServeMux()
	root.Handle("/api/", authed)
	root.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})

	crossOrigin := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-User-ID", "X-Request-ID"},
		MaxAge:         3600,
	})

	// RequestID sits outside Logger so the id is in the context by the time
	// the request line is written.
	return middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				crossOrigin.Handler(root),
			),
		),
	)
}
