package handlers

import (
	"net/http"
	"time"

	"github.com/Harikeshav-R/Penny/internal/api/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RouterDeps wires the HTTP surface.
type RouterDeps struct {
	Analysis *AnalysisHandler
	Jobs     *JobsHandler
	Chat     *ChatHandler
	Verifier middleware.OwnerVerifier
	Limiter  *rate.Limiter
	Log      zerolog.Logger
	Now      func() time.Time
}

// NewRouter builds the server handler. Every /api route is rate limited and
// requires a bearer token; /health is open.
func NewRouter(deps RouterDeps) http.Handler {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	api := http.NewServeMux()
	api.HandleFunc("POST /api/receipts/analyze", deps.Analysis.AnalyzeReceipt)
	api.HandleFunc("POST /api/cart/analyze", deps.Analysis.AnalyzeCart)
	api.HandleFunc("POST /api/receipts/jobs", deps.Analysis.EnqueueAnalysis)
	api.HandleFunc("GET /api/jobs", deps.Jobs.ListJobs)
	api.HandleFunc("GET /api/jobs/{id}", deps.Jobs.GetJob)
	api.HandleFunc("POST /api/chat", deps.Chat.Chat)

	var protected http.Handler = middleware.Auth(deps.Verifier)(api)
	if deps.Limiter != nil {
		protected = middleware.RateLimit(deps.Limiter)(protected)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", protected)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   now().Format(time.RFC3339),
		})
	})

	return middleware.Recovery(deps.Log)(
		middleware.RequestID(
			middleware.Logger(deps.Log)(
				middleware.CORS(mux),
			),
		),
	)
}
