package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lazypower/palace/internal/analytics"
	"github.com/lazypower/palace/internal/compare"
	"github.com/lazypower/palace/internal/hooks"
	"github.com/lazypower/palace/internal/logger"
	"github.com/lazypower/palace/internal/store"
)

// defaultSimulationTimeout bounds a comparison run started over HTTP.
const defaultSimulationTimeout = 60 * time.Second

// Server is the palace HTTP API server.
type Server struct {
	db      *store.DB
	router  chi.Router
	version string
	started time.Time
	now     func() time.Time
	log     *slog.Logger
	tracker *analytics.Tracker

	simDefaults compare.Config
	simTimeout  time.Duration

	hookMu       sync.Mutex
	hookSessions map[string]*hooks.Orchestrator
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithClock overrides the clock used for recalls and dashboards.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithTracker sets the usage tracker. By default the server tracks into db.
func WithTracker(t *analytics.Tracker) Option {
	return func(s *Server) { s.tracker = t }
}

// WithSimulationDefaults sets the comparison config that POST
// /api/simulations bodies are applied over.
func WithSimulationDefaults(cfg compare.Config) Option {
	return func(s *Server) { s.simDefaults = cfg }
}

// WithSimulationTimeout bounds each comparison run. Zero means no limit.
func WithSimulationTimeout(d time.Duration) Option {
	return func(s *Server) { s.simTimeout = d }
}

// New creates a new Server with the given database and version string.
func New(db *store.DB, version string, opts ...Option) *Server {
	s := &Server{
		db:          db,
		version:     version,
		started:     time.Now(),
		now:         time.Now,
		log:         logger.Nop(),
		simDefaults: compare.DefaultConfig(),
		simTimeout:  defaultSimulationTimeout,

		hookSessions: make(map[string]*hooks.Orchestrator),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "server")
	if s.tracker == nil {
		s.tracker = analytics.NewTracker(db, analytics.WithClock(s.now), analytics.WithLogger(s.log))
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/palaces", s.handleListPalaces)
		r.Post("/palaces", s.handleCreatePalace)
		r.Route("/palaces/{name}", func(r chi.Router) {
			r.Get("/", s.handleGetPalace)
			r.Delete("/", s.handleDeletePalace)
			r.Get("/heatmap", s.handleHeatmap)
			r.Get("/related/{memoryID}", s.handleRelated)
			r.Post("/memories/{memoryID}/recall", s.handleRecall)
		})

		r.Get("/analytics/report", s.handleAnalyticsReport)
		r.Get("/progress", s.handleProgress)

		r.Route("/hooks", func(r chi.Router) {
			r.Get("/start", s.handleHookStart)
			r.Post("/submit", s.handleHookSubmit)
			r.Post("/end", s.handleHookEnd)
		})

		r.Post("/simulations", s.handleCreateSimulation)
		r.Get("/simulations", s.handleListSimulations)
		r.Get("/simulations/{id}", s.handleGetSimulation)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
		"session": s.tracker.Session(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// track records a usage event. Tracking failures never fail the request.
func (s *Server) track(typ string, data map[string]string) {
	if err := s.tracker.Track(typ, data); err != nil {
		s.log.Warn("track event", "type", typ, "err", err)
	}
}
