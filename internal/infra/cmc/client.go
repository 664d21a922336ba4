// Package cmc is the boundary layer to the CoinMarketCap-style market-data
// API: pull-based HTTP GET with query parameters, JSON responses and a
// static header API key.
package cmc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"tradeboard/internal/domain"
	"tradeboard/internal/infra"
)

const apiKeyHeader = "X-CMC_PRO_API_KEY"

// Client is the CoinMarketCap REST API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new market-data client from configuration.
func NewClient(cfg *infra.Config) *Client {
	return &Client{
		baseURL: cfg.API.CMC.BaseURL,
		apiKey:  cfg.API.CMC.APIKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		logger: slog.Default().With("module", "cmc_client"),
	}
}

// apiStatus is the envelope every CMC response carries.
type apiStatus struct {
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

type usdQuote struct {
	Price            float64 `json:"price"`
	Volume24h        float64 `json:"volume_24h"`
	PercentChange24h float64 `json:"percent_change_24h"`
	MarketCap        float64 `json:"market_cap"`
}

type listingEntry struct {
	ID     int64               `json:"id"`
	Name   string              `json:"name"`
	Symbol string              `json:"symbol"`
	Rank   int                 `json:"cmc_rank"`
	Quote  map[string]usdQuote `json:"quote"`
}

// Listings fetches the top tradable cryptocurrencies sorted by market cap,
// as USD pairs. Implements domain.SymbolSource.
func (c *Client) Listings(ctx context.Context, limit int) ([]domain.Symbol, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("convert", "USD")
	params.Set("sort", "market_cap")

	var resp struct {
		Status apiStatus      `json:"status"`
		Data   []listingEntry `json:"data"`
	}
	if err := c.get(ctx, "listings", "/cryptocurrency/listings/latest", params, &resp); err != nil {
		return nil, err
	}
	if resp.Status.ErrorCode != 0 {
		return nil, domain.NewTransportError("listings", 0,
			fmt.Errorf("provider error %d: %s", resp.Status.ErrorCode, resp.Status.ErrorMessage))
	}

	symbols := make([]domain.Symbol, 0, len(resp.Data))
	for _, e := range resp.Data {
		code := domain.MakeSymbolCode(e.Symbol, "USD")
		s := domain.Symbol{
			Code:        code,
			FullName:    domain.Exchange + ":" + code,
			Name:        e.Name,
			Description: fmt.Sprintf("%s (%s)", e.Name, e.Symbol),
			Category:    domain.CategoryCrypto,
			ProviderID:  e.ID,
			Rank:        e.Rank,
		}
		if q, ok := e.Quote["USD"]; ok {
			price := decimal.NewFromFloat(q.Price)
			s.LastKnownPrice = &price
		}
		symbols = append(symbols, s)
	}
	return symbols, nil
}

// LatestQuote fetches the current price point for a pair. Implements
// domain.QuoteProvider. The endpoint returns only single price points, no
// true OHLC; bar synthesis happens downstream.
func (c *Client) LatestQuote(ctx context.Context, pair domain.Pair) (domain.Quote, error) {
	if pair.ProviderID == 0 {
		return domain.Quote{}, fmt.Errorf("%w: missing provider id for %s", domain.ErrInvalidSymbol, pair.String())
	}

	params := url.Values{}
	params.Set("id", strconv.FormatInt(pair.ProviderID, 10))
	params.Set("convert", pair.Quote)

	var resp struct {
		Status apiStatus `json:"status"`
		Data   map[string]struct {
			ID     int64               `json:"id"`
			Symbol string              `json:"symbol"`
			Quote  map[string]usdQuote `json:"quote"`
		} `json:"data"`
	}
	if err := c.get(ctx, "quote", "/cryptocurrency/quotes/latest", params, &resp); err != nil {
		return domain.Quote{}, err
	}
	if resp.Status.ErrorCode != 0 {
		return domain.Quote{}, domain.NewTransportError("quote", 0,
			fmt.Errorf("provider error %d: %s", resp.Status.ErrorCode, resp.Status.ErrorMessage))
	}

	entry, ok := resp.Data[strconv.FormatInt(pair.ProviderID, 10)]
	if !ok {
		return domain.Quote{}, &domain.ValidationError{
			Field: "data", Err: fmt.Errorf("no entry for id %d", pair.ProviderID)}
	}
	q, ok := entry.Quote[pair.Quote]
	if !ok {
		return domain.Quote{}, &domain.ValidationError{
			Field: "quote", Err: fmt.Errorf("no %s conversion for id %d", pair.Quote, pair.ProviderID)}
	}

	return domain.Quote{
		Pair:       pair,
		Price:      decimal.NewFromFloat(q.Price),
		Volume24h:  decimal.NewFromFloat(q.Volume24h),
		Change24h:  decimal.NewFromFloat(q.PercentChange24h),
		ReceivedAt: time.Now(),
	}, nil
}

// get performs one GET round trip and decodes the JSON body into out.
// 401 and 429 surface as permanent transport errors: retrying them with the
// same key only burns quota.
func (c *Client) get(ctx context.Context, op, path string, params url.Values, out any) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return domain.NewTransportError(op, 0, err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", infra.DefaultUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewTransportError(op, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewTransportError(op, resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		err := domain.NewTransportError(op, resp.StatusCode, fmt.Errorf("unexpected status"))
		if err.Permanent {
			c.logger.Warn("provider rejected API key or rate limited, backing off",
				slog.String("op", op), slog.Int("status", resp.StatusCode))
		}
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &domain.ValidationError{Field: op, Err: err}
	}
	return nil
}
