package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"tradeboard/internal/domain"
)

// defaultSnapshotSymbol feeds the chat bridge's market context when the
// client does not name a symbol.
const defaultSnapshotSymbol = "CMC:BTC/USD"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"services": map[string]any{
			"catalog_live": s.catalog.Fetched(),
			"chat_ready":   s.bridge != nil,
			"database":     s.store != nil,
			"channels":     s.registry.ChannelCount(),
		},
	}
	if s.metrics != nil {
		resp["metrics"] = s.metrics.GetSnapshot()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	symbols := s.catalog.All()
	source := "provider"
	if !s.catalog.Fetched() {
		source = "fallback"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbols": symbols,
		"count":   len(symbols),
		"source":  source,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query().Get("query")
	category := domain.Category(r.URL.Query().Get("type"))
	results := s.catalog.Search(query, category)
	writeJSON(w, http.StatusOK, map[string]any{
		"symbols": results,
		"count":   len(results),
	})
}

// handleQuote serves the latest price for a symbol: poll cache first, one
// direct provider call on a cold miss, and the catalog's last known price
// when the provider is down. Transient upstream failures never surface as
// hard errors here.
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	name := r.URL.Query().Get("symbol")
	if name == "" {
		name = defaultSnapshotSymbol
	}

	pair, err := s.catalog.PairFor(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown symbol: "+name)
		return
	}

	if q, ok := s.quotes.Latest(pair); ok {
		writeJSON(w, http.StatusOK, map[string]any{"quote": q, "stale": false})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	q, err := s.provider.LatestQuote(ctx, pair)
	if err == nil {
		s.quotes.Update(q)
		writeJSON(w, http.StatusOK, map[string]any{"quote": q, "stale": false})
		return
	}
	s.logger.Warn("quote fetch failed, serving catalog price",
		slog.String("symbol", name), slog.Any("error", err))

	if sym, rerr := s.catalog.Resolve(name); rerr == nil && sym.LastKnownPrice != nil {
		stale := domain.Quote{Pair: pair, Price: *sym.LastKnownPrice}
		writeJSON(w, http.StatusOK, map[string]any{"quote": stale, "stale": true})
		return
	}
	writeError(w, http.StatusServiceUnavailable, "no price available for "+name)
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	Symbol    string `json:"symbol"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	reply := s.bridge.Respond(r.Context(), req.Message, req.SessionID, s.snapshot(req.Symbol))
	writeJSON(w, http.StatusOK, reply)
}

// snapshot returns the freshest quote available for the chat context, nil
// when nothing is cached yet.
func (s *Server) snapshot(symbol string) *domain.Quote {
	if symbol == "" {
		symbol = defaultSnapshotSymbol
	}
	pair, err := s.catalog.PairFor(symbol)
	if err != nil {
		return nil
	}
	if q, ok := s.quotes.Latest(pair); ok {
		return &q
	}
	return nil
}

func (s *Server) handleChatReset(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.bridge.Reset(req.SessionID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "chat session reset"})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	sessionID := r.URL.Query().Get("session_id")
	turns := s.bridge.History(sessionID)
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"turns":      turns,
		"count":      len(turns),
	})
}

func (s *Server) handleFavorite(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence disabled")
		return
	}
	base := ps.ByName("base")
	fav, err := s.store.ToggleFavorite(base)
	if err != nil {
		s.logger.Error("favorite toggle failed", slog.String("base", base), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to toggle favorite")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"base": base, "is_favorite": fav})
}

func (s *Server) handleStreamStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	status := s.registry.GetStatus()
	writeJSON(w, http.StatusOK, map[string]any{
		"connected":     true, // polling transport has no persistent upstream link
		"subscriptions": status.Subscribers,
		"channels":      status.Channels,
		"method":        status.Method,
	})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
