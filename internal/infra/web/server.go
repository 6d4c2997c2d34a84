package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"thewell-curation/internal/infra/logging"
	"thewell-curation/internal/usecase"
)

// Server exposes the review workflow over HTTP. Route and permission
// enforcement beyond the static API key belongs to the upstream gateway.
type Server struct {
	reviewUC usecase.ReviewUseCase
	bulkUC   usecase.BulkUseCase
	statsUC  usecase.StatsUseCase
	apiKey   string
	log      *zerolog.Logger
}

func NewServer(
	reviewUC usecase.ReviewUseCase,
	bulkUC usecase.BulkUseCase,
	statsUC usecase.StatsUseCase,
	apiKey string,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "ReviewAPI").Logger()
	return &Server{
		reviewUC: reviewUC,
		bulkUC:   bulkUC,
		statsUC:  statsUC,
		apiKey:   apiKey,
		log:      &l,
	}
}

// Router builds the chi router for the review API.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/review", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/pending", s.handlePending)
		r.Get("/document/{id}", s.handleDocument)
		r.Get("/stats", s.handleStats)
		r.Get("/workflow/status", s.handleWorkflowStatus)
		r.Get("/workflow/metrics", s.handleWorkflowMetrics)

		r.Post("/start-review/{id}", s.handleStartReview)
		r.Post("/approve/{id}", s.handleApprove)
		r.Post("/reject/{id}", s.handleReject)
		r.Post("/flag/{id}", s.handleFlag)
		r.Post("/assign/{id}", s.handleAssign)
		r.Post("/tags/{id}", s.handleAddTags)
		r.Delete("/tags/{id}", s.handleRemoveTags)

		r.Route("/bulk", func(r chi.Router) {
			r.Post("/approve", s.handleBulkApprove)
			r.Post("/reject", s.handleBulkReject)
			r.Post("/start-review", s.handleBulkStartReview)
			r.Post("/flag", s.handleBulkFlag)
			r.Post("/assign", s.handleBulkAssign)
			r.Post("/add-tags", s.handleBulkAddTags)
			r.Post("/remove-tags", s.handleBulkRemoveTags)
		})
	})

	return r
}

// requestLogger stamps a request id into the context and logs one line per
// request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithRequestID(r.Context(), uuid.NewString())
		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		logging.With(ctx, s.log).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}

// authMiddleware provides simple Bearer token authentication for the review API.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("Review API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
			http.Error(w, "Unauthorized: Malformed token", http.StatusUnauthorized)
			return
		}

		if tokenParts[1] != s.apiKey {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
