// Package httpapi exposes the discovery engine over HTTP: job submission,
// status/result polling, and a websocket progress feed. Grounded on the
// chi + go-chi/cors router setup and nhooyr.io/websocket usage elsewhere
// in the stack.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/domain"
)

// Runner starts a job asynchronously and reports its lifecycle state.
type Runner interface {
	Submit(cfg domain.JobConfig) (jobID string, err error)
	Status(jobID string) (domain.Job, bool)
	Results(jobID string) ([]domain.BranchResult, error)
	Cancel(jobID string) bool
	Subscribe(jobID string) (<-chan domain.ProgressSnapshot, func())
}

// Server wraps a chi.Mux exposing the job API.
type Server struct {
	router *chi.Mux
	runner Runner
	log    zerolog.Logger
	http   *http.Server
}

// Config configures Server.
type Config struct {
	Port    int
	Runner  Runner
	Log     zerolog.Logger
	DevMode bool
}

// New builds a Server with CORS, request logging and panic recovery
// middleware, matching the teacher's router setup.
func New(cfg Config) *Server {
	s := &Server{router: chi.NewRouter(), runner: cfg.Runner, log: cfg.Log}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if !cfg.DevMode {
		s.router.Use(middleware.Compress(5))
	}

	s.router.Get("/health", s.handleHealth)
	s.router.Route("/jobs", func(r chi.Router) {
		r.Post("/", s.handleCreateJob)
		r.Get("/{jobID}", s.handleGetJob)
		r.Get("/{jobID}/results", s.handleGetResults)
		r.Delete("/{jobID}", s.handleCancelJob)
		r.Get("/{jobID}/progress", s.handleProgressWS)
	})

	s.http = &http.Server{
		Addr:              addr(cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func addr(port int) string {
	if port <= 0 {
		port = 8080
	}
	return ":" + strconv.Itoa(port)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
