package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"tradeboard/internal/catalog"
	"tradeboard/internal/chat"
	"tradeboard/internal/domain"
	"tradeboard/internal/infra"
	"tradeboard/internal/market"
)

// testProvider serves both the catalog and quote interfaces for handler tests.
type testProvider struct {
	price      decimal.Decimal
	listings   []domain.Symbol
	quoteCalls int64
	fail       bool
}

func (p *testProvider) Listings(context.Context, int) ([]domain.Symbol, error) {
	if p.listings == nil {
		return nil, errors.New("listings unavailable")
	}
	return p.listings, nil
}

func (p *testProvider) LatestQuote(_ context.Context, pair domain.Pair) (domain.Quote, error) {
	atomic.AddInt64(&p.quoteCalls, 1)
	if p.fail {
		return domain.Quote{}, errors.New("provider down")
	}
	return domain.Quote{Pair: pair, Price: p.price, ReceivedAt: time.Now()}, nil
}

func newTestServer(t *testing.T, provider *testProvider) (*Server, *market.Registry, *catalog.Catalog) {
	t.Helper()
	cfg := &infra.Config{}
	cfg.Server.CORSOrigin = "http://localhost:5173"

	cat := catalog.New(provider, 100, nil) // fallback-seeded, no refresh
	quotes := market.NewQuoteCache()
	reg := market.NewRegistry(provider, quotes, 25*time.Millisecond, nil, nil)
	t.Cleanup(reg.Stop)

	bridge := chat.NewBridge(nil, nil, nil, nil) // canned replies only
	srv := New(cfg, cat, reg, quotes, provider, bridge, nil, infra.NewMetrics(), nil)
	return srv, reg, cat
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("invalid JSON body: %v\n%s", err, rec.Body.String())
	}
	return m
}

func TestHandleHealth(t *testing.T) {
	srv, _, _ := newTestServer(t, &testProvider{price: decimal.NewFromInt(50000)})

	rec := doRequest(t, srv, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Errorf("Unexpected status: %v", body["status"])
	}
	services, ok := body["services"].(map[string]any)
	if !ok {
		t.Fatal("services block missing")
	}
	if services["catalog_live"] != false {
		t.Error("Fallback-only catalog should not report live")
	}
	if services["database"] != false {
		t.Error("No store wired, database should be false")
	}
}

func TestHandleSymbols_FallbackSource(t *testing.T) {
	srv, _, _ := newTestServer(t, &testProvider{})

	rec := doRequest(t, srv, http.MethodGet, "/api/symbols", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["source"] != "fallback" {
		t.Errorf("Expected fallback source, got %v", body["source"])
	}
	if body["count"].(float64) == 0 {
		t.Error("Fallback catalog must never be empty")
	}
}

func TestHandleSearch(t *testing.T) {
	srv, _, _ := newTestServer(t, &testProvider{})

	rec := doRequest(t, srv, http.MethodGet, "/api/search?query=btc&type=crypto", "")
	body := decodeBody(t, rec)
	symbols := body["symbols"].([]any)
	if len(symbols) == 0 {
		t.Fatal("Expected search hits for btc")
	}
	first := symbols[0].(map[string]any)
	if first["symbol"] != "BTC/USD" {
		t.Errorf("Exact match should rank first, got %v", first["symbol"])
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/search?query=zzzz", "")
	body = decodeBody(t, rec)
	if body["count"].(float64) != 0 {
		t.Errorf("Expected no hits, got %v", body["count"])
	}
}

func TestHandleQuote(t *testing.T) {
	t.Run("Cold Miss Hits Provider", func(t *testing.T) {
		provider := &testProvider{price: decimal.NewFromInt(50000)}
		srv, _, _ := newTestServer(t, provider)

		rec := doRequest(t, srv, http.MethodGet, "/api/quote?symbol=CMC:BTC/USD", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		body := decodeBody(t, rec)
		if body["stale"] != false {
			t.Error("Fresh provider quote should not be stale")
		}
		if atomic.LoadInt64(&provider.quoteCalls) != 1 {
			t.Errorf("Expected 1 provider call, got %d", provider.quoteCalls)
		}

		// Second request is served from the cache.
		doRequest(t, srv, http.MethodGet, "/api/quote?symbol=CMC:BTC/USD", "")
		if atomic.LoadInt64(&provider.quoteCalls) != 1 {
			t.Errorf("Cache hit should not call the provider again, got %d calls", provider.quoteCalls)
		}
	})

	t.Run("Provider Down Serves Catalog Price", func(t *testing.T) {
		lastPrice := decimal.NewFromInt(49000)
		provider := &testProvider{fail: true, listings: []domain.Symbol{{
			Code: "BTC/USD", FullName: "CMC:BTC/USD", Name: "Bitcoin",
			Category: domain.CategoryCrypto, ProviderID: 1, Rank: 1,
			LastKnownPrice: &lastPrice,
		}}}
		srv, _, cat := newTestServer(t, provider)
		cat.Refresh(context.Background())

		rec := doRequest(t, srv, http.MethodGet, "/api/quote?symbol=CMC:BTC/USD", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected stale 200, got %d", rec.Code)
		}
		body := decodeBody(t, rec)
		if body["stale"] != true {
			t.Error("Catalog price must be flagged stale")
		}
	})

	t.Run("No Price Anywhere", func(t *testing.T) {
		srv, _, _ := newTestServer(t, &testProvider{fail: true})
		rec := doRequest(t, srv, http.MethodGet, "/api/quote?symbol=CMC:BTC/USD", "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected 503 when no price exists, got %d", rec.Code)
		}
	})

	t.Run("Unknown Symbol", func(t *testing.T) {
		srv, _, _ := newTestServer(t, &testProvider{})
		rec := doRequest(t, srv, http.MethodGet, "/api/quote?symbol=CMC:NOPE/USD", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", rec.Code)
		}
	})
}

func TestHandleChat(t *testing.T) {
	srv, _, _ := newTestServer(t, &testProvider{})

	t.Run("Canned Reply", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/api/chat",
			`{"message": "tell me about bitcoin", "sessionId": "s1"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		body := decodeBody(t, rec)
		if body["fallback"] != true {
			t.Error("No generator wired, reply should be flagged fallback")
		}
		if body["response"] == "" {
			t.Error("Reply text must never be empty")
		}
		if body["sessionId"] != "s1" {
			t.Errorf("Session id should echo back, got %v", body["sessionId"])
		}
	})

	t.Run("Empty Message", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/api/chat", `{"message": ""}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("Malformed Body", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/api/chat", `{not json`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})
}

func TestHandleChatHistoryAndReset(t *testing.T) {
	srv, _, _ := newTestServer(t, &testProvider{})

	rec := doRequest(t, srv, http.MethodGet, "/api/chat/history?session_id=s1", "")
	body := decodeBody(t, rec)
	if body["count"].(float64) != 0 {
		t.Errorf("Fresh session should have no history, got %v", body["count"])
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/chat/reset", `{"sessionId": "s1"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestHandleFavorite_NoStore(t *testing.T) {
	srv, _, _ := newTestServer(t, &testProvider{})

	rec := doRequest(t, srv, http.MethodPost, "/api/favorites/BTC", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 without persistence, got %d", rec.Code)
	}
}

func TestHandleStreamStatus(t *testing.T) {
	srv, reg, _ := newTestServer(t, &testProvider{price: decimal.NewFromInt(50000)})

	id := reg.Subscribe(domain.Pair{ProviderID: 1, Base: "BTC", Quote: "USD"},
		domain.Res1Min, func(domain.Bar) {})
	defer reg.Unsubscribe(id)

	rec := doRequest(t, srv, http.MethodGet, "/api/stream/status", "")
	body := decodeBody(t, rec)
	if body["subscriptions"].(float64) != 1 {
		t.Errorf("Expected 1 subscription, got %v", body["subscriptions"])
	}
	channels := body["channels"].([]any)
	if len(channels) != 1 || channels[0] != "CMC:BTC/USD" {
		t.Errorf("Unexpected channels: %v", channels)
	}
}

func TestHandleWS(t *testing.T) {
	provider := &testProvider{price: decimal.NewFromInt(50000)}
	srv, reg, _ := newTestServer(t, provider)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	t.Run("Streams Bars", func(t *testing.T) {
		wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?symbol=CMC:BTC/USD&resolution=1"
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("Dial failed: %v", err)
		}
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var bar domain.Bar
		if err := conn.ReadJSON(&bar); err != nil {
			t.Fatalf("Expected a bar frame: %v", err)
		}
		if !bar.Close.Equal(decimal.NewFromInt(50000)) {
			t.Errorf("Expected close 50000, got %v", bar.Close)
		}
		if !bar.Synthetic {
			t.Error("Price-point polling should yield synthetic bars")
		}
	})

	// Disconnect tears the subscription down.
	deadline := time.Now().Add(2 * time.Second)
	for reg.ChannelCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Channel should close after client disconnect, %d remain", reg.ChannelCount())
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Run("Bad Resolution", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/ws?symbol=CMC:BTC/USD&resolution=7X")
		if err != nil {
			t.Fatalf("GET failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("Unknown Symbol", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/ws?symbol=CMC:NOPE/USD&resolution=1")
		if err != nil {
			t.Fatalf("GET failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", resp.StatusCode)
		}
	})
}
