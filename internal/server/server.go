package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"nexus_terminal/internal/ai"
	"nexus_terminal/internal/dashboard"
	"nexus_terminal/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Dashboard is the controller surface served over HTTP.
type Dashboard interface {
	Snapshot() dashboard.Snapshot
	OnChange(fn func(dashboard.Snapshot))
	Start()
	SelectTab(tab models.Tab) error
	SelectCurrency(code models.CurrencyCode) error
	SelectAssetClass(class models.AssetClass) (uint64, error)
	SelectInstrument(symbol string) (uint64, error)
	ExecuteSignal(ctx context.Context) (models.Position, error)
	Execute(ctx context.Context, asset string, side models.Side, price, size decimal.Decimal) (models.Position, error)
	Portfolio() models.PortfolioSnapshot
	Ask(ctx context.Context, question string) (string, error)
	Transcript() []dashboard.ChatMessage
	Insight(ctx context.Context, topic ai.Topic) (ai.Insight, error)
}

// Config holds server configuration
type Config struct {
	Port      int
	Version   string
	Log       zerolog.Logger
	Dashboard Dashboard
}

// Server represents the HTTP server
type Server struct {
	router  *chi.Mux
	server  *http.Server
	log     zerolog.Logger
	dash    Dashboard
	hub     *Hub
	port    int
	version string
}

// New creates a new HTTP server and subscribes the websocket hub to
// dashboard changes.
func New(cfg Config) *Server {
	log := cfg.Log.With().Str("component", "server").Logger()
	s := &Server{
		router:  chi.NewRouter(),
		log:     log,
		dash:    cfg.Dashboard,
		hub:     NewHub(log),
		port:    cfg.Port,
		version: cfg.Version,
	}

	s.setupMiddleware()
	s.setupRoutes()
	s.dash.OnChange(func(snap dashboard.Snapshot) { s.hub.BroadcastJSON(snap) })

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())
	s.router.Get("/ws", s.hub.ServeWS(s.dash.Snapshot))

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		// Assistant calls can run long; the rest is in-memory
		r.Use(middleware.Timeout(25 * time.Second))

		r.Get("/state", s.handleState)
		r.Put("/tab", s.handleSelectTab)
		r.Put("/currency", s.handleSelectCurrency)
		r.Post("/advisory", s.handleRequestAdvisory)

		r.Route("/trades", func(r chi.Router) {
			r.Post("/", s.handleExecute)
			r.Post("/signal", s.handleExecuteSignal)
		})
		r.Get("/portfolio", s.handlePortfolio)

		r.Route("/chat", func(r chi.Router) {
			r.Get("/", s.handleTranscript)
			r.Post("/", s.handleAsk)
		})
		r.Get("/insights/{topic}", s.handleInsight)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server and closes websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	s.hub.Close()
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
