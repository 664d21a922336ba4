package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"tradeboard/internal/domain"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	// wsBarBuffer absorbs short client stalls; a full buffer drops the
	// update rather than blocking registry fan-out.
	wsBarBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced by the CORS layer for the REST API; the ws endpoint
	// accepts the configured dashboard origin the same way.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS bridges one registry subscription to a browser websocket. This is
// the serving side of the charting library's subscribeBars/unsubscribeBars
// boundary: connect subscribes, disconnect unsubscribes.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	name := r.URL.Query().Get("symbol")
	if name == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	res, err := domain.ParseResolution(r.URL.Query().Get("resolution"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unsupported resolution")
		return
	}
	pair, err := s.catalog.PairFor(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown symbol: "+name)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	if s.metrics != nil {
		s.metrics.IncrementWSClients()
		defer s.metrics.DecrementWSClients()
	}

	bars := make(chan domain.Bar, wsBarBuffer)
	subID := s.registry.Subscribe(pair, res, func(b domain.Bar) {
		select {
		case bars <- b:
		default: // slow client, drop rather than stall fan-out
		}
	})
	defer s.registry.Unsubscribe(subID)

	logger := s.logger.With(
		slog.String("channel", pair.String()), slog.String("subscriber", subID))
	logger.Info("websocket client subscribed", slog.String("resolution", string(res)))

	// Reader: we never expect client frames, but the read loop surfaces
	// close/error so the writer can shut down.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	defer conn.Close()

	for {
		select {
		case <-done:
			logger.Info("websocket client disconnected")
			return
		case bar := <-bars:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(bar); err != nil {
				logger.Warn("websocket write failed", slog.Any("error", err))
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Warn("websocket ping failed", slog.Any("error", err))
				return
			}
		}
	}
}
