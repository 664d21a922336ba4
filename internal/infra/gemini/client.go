// Package gemini calls the hosted text-generation API: one request/response
// round trip per message, no streaming.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tradeboard/internal/domain"
	"tradeboard/internal/infra"
)

// Client is the generateContent REST client. Implements domain.TextGenerator.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a generation client from configuration. An empty API key
// is allowed: Configured reports false and callers fall back locally.
func NewClient(cfg *infra.Config) *Client {
	return &Client{
		baseURL: cfg.API.Gemini.BaseURL,
		apiKey:  cfg.API.Gemini.APIKey,
		model:   cfg.API.Gemini.Model,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.API.Gemini.TimeoutSec) * time.Second,
		},
		logger: slog.Default().With("module", "gemini_client"),
	}
}

// Configured reports whether a usable credential is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type generateRequest struct {
	Contents []content `json:"contents"`
	Config   genConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type genConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends one composed prompt and returns the model's text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		Config:   genConfig{Temperature: 0.7, MaxOutputTokens: 500},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	reqURL := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return "", domain.NewTransportError("generate", 0, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", domain.NewTransportError("generate", 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.NewTransportError("generate", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", domain.NewTransportError("generate", resp.StatusCode,
			fmt.Errorf("body: %s", truncate(string(body), 200)))
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &domain.ValidationError{Field: "generate", Err: err}
	}
	if out.Error != nil {
		return "", domain.NewTransportError("generate", out.Error.Code,
			fmt.Errorf("%s", out.Error.Message))
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", &domain.ValidationError{Field: "candidates", Err: fmt.Errorf("empty response")}
	}

	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
