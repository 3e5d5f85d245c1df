// Package server exposes the evaluation session over a JSON REST API.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/coding-eval/internal/cases"
	"github.com/sells-group/coding-eval/internal/evaluate"
	"github.com/sells-group/coding-eval/internal/improve"
	"github.com/sells-group/coding-eval/internal/ingest"
	"github.com/sells-group/coding-eval/internal/ledger"
	"github.com/sells-group/coding-eval/internal/monitoring"
	"github.com/sells-group/coding-eval/internal/prompts"
)

// Deps are the session components the API serves.
type Deps struct {
	Cases    *cases.Repository
	Ledger   *ledger.Ledger
	Library  *prompts.Library
	Settings *prompts.Settings
	Flags    *improve.FlagSet
	Ingester *ingest.Ingester
	Runner   *evaluate.Runner
	Improver *evaluate.Improver
	Health   *monitoring.Collector

	// DefaultModel is used when neither the request nor the model setting
	// names one.
	DefaultModel string
}

// Options configures the HTTP layer.
type Options struct {
	Port           int
	AllowedOrigins []string
}

// Server routes API requests to the session.
type Server struct {
	deps   Deps
	opts   Options
	router *chi.Mux
}

// New builds the router.
func New(d Deps, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	s := &Server{deps: d, opts: opts, router: chi.NewRouter()}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestLogger)
	s.router.Use(cors.Handler(corsOptions(opts.AllowedOrigins)))

	s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// HTTPServer wraps the router in an http.Server listening on the configured
// port.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", s.opts.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func (s *Server) routes() {
	r := s.router

	r.Get("/health", s.handleHealth)

	r.Route("/cases", func(r chi.Router) {
		r.Get("/", s.handleListCases)
		r.Post("/gold", s.handleIngestGold)
		r.Post("/notes", s.handleIngestNote)
		r.Get("/{key}", s.handleGetCase)
		r.Patch("/{key}", s.handlePatchCase)
		r.Delete("/{key}", s.handleDeleteCase)
		r.Get("/{key}/runs", s.handleCaseRuns)
	})

	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.handleListRuns)
		r.Post("/", s.handleExecuteRuns)
		r.Get("/rounds", s.handleRounds)
		r.Get("/{id}", s.handleGetRun)
		r.Delete("/{id}", s.handleDeleteRun)
	})

	r.Route("/prompts", func(r chi.Router) {
		r.Get("/", s.handleListPrompts)
		r.Put("/", s.handleSavePrompt)
		r.Delete("/{id}", s.handleDeletePrompt)
	})

	r.Route("/settings", func(r chi.Router) {
		r.Get("/", s.handleGetSettings)
		r.Put("/{key}", s.handlePutSetting)
	})

	r.Route("/stats", func(r chi.Router) {
		r.Get("/prompts", s.handleStatsByPrompt)
		r.Get("/cases", s.handleStatsByCase)
		r.Get("/trend", s.handleStatsTrend)
		r.Get("/compare", s.handleStatsCompare)
	})

	r.Route("/flags", func(r chi.Router) {
		r.Get("/", s.handleListFlags)
		r.Delete("/", s.handleClearFlags)
		r.Put("/{key}", s.handleAddFlag)
		r.Delete("/{key}", s.handleRemoveFlag)
	})

	r.Route("/improve", func(r chi.Router) {
		r.Get("/", s.handleImproveStatus)
		r.Post("/propose", s.handleImprovePropose)
		r.Post("/accept", s.handleImproveAccept)
		r.Post("/reject", s.handleImproveReject)
	})
}

func corsOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           7200,
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
