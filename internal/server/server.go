// Package server exposes the dashboard's HTTP API: symbol catalog and
// search, latest quotes, the chat bridge, and websocket bar streaming that
// the charting widget's subscribe/unsubscribe calls attach to.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"tradeboard/internal/catalog"
	"tradeboard/internal/chat"
	"tradeboard/internal/domain"
	"tradeboard/internal/infra"
	"tradeboard/internal/infra/storage"
	"tradeboard/internal/market"
)

// Server wires all components behind the REST + websocket API.
type Server struct {
	router *httprouter.Router

	cfg      *infra.Config
	catalog  *catalog.Catalog
	registry *market.Registry
	quotes   *market.QuoteCache
	provider domain.QuoteProvider
	bridge   *chat.Bridge
	store    *storage.Storage
	metrics  *infra.Metrics
	logger   *slog.Logger
	started  time.Time
}

// New creates the API server. store may be nil (favorites disabled).
func New(
	cfg *infra.Config,
	cat *catalog.Catalog,
	reg *market.Registry,
	quotes *market.QuoteCache,
	provider domain.QuoteProvider,
	bridge *chat.Bridge,
	store *storage.Storage,
	metrics *infra.Metrics,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router:   httprouter.New(),
		cfg:      cfg,
		catalog:  cat,
		registry: reg,
		quotes:   quotes,
		provider: provider,
		bridge:   bridge,
		store:    store,
		metrics:  metrics,
		logger:   logger.With("module", "server"),
		started:  time.Now(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/api/symbols", s.handleSymbols)
	s.router.GET("/api/search", s.handleSearch)
	s.router.GET("/api/quote", s.handleQuote)
	s.router.POST("/api/chat", s.handleChat)
	s.router.POST("/api/chat/reset", s.handleChatReset)
	s.router.GET("/api/chat/history", s.handleChatHistory)
	s.router.POST("/api/favorites/:base", s.handleFavorite)
	s.router.GET("/api/stream/status", s.handleStreamStatus)
	s.router.GET("/ws", s.handleWS)

	s.router.PanicHandler = func(w http.ResponseWriter, r *http.Request, rec any) {
		s.logger.Error("handler panicked",
			slog.String("path", r.URL.Path), slog.Any("panic", rec))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// Handler returns the router wrapped in CORS and request logging, ready for
// http.Server.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{s.cfg.Server.CORSOrigin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(s.logRequests(s.router))
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("took", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
