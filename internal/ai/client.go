package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrNetwork covers transport failures and non-200 replies.
	ErrNetwork = errors.New("advisory service unreachable")
	// ErrMalformedResponse means the reply did not match the expected schema.
	ErrMalformedResponse = errors.New("advisory service returned a malformed response")
	// ErrEmptyResponse means the reply carried no candidate text.
	ErrEmptyResponse = errors.New("advisory service returned an empty response")
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("AI client not configured")
)

// Options configures a Client.
type Options struct {
	APIKey     string
	BaseURL    string // e.g. https://generativelanguage.googleapis.com/v1beta
	Model      string // Structured advisory generation
	ChatModel  string // Free-text chat and insights
	HTTPClient *http.Client
}

// Client talks to the Gemini generateContent REST endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	chatModel  string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient builds a client. A missing API key is allowed; every call then
// fails with ErrNotConfigured and callers take their fallback path.
func NewClient(opts Options, log zerolog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if opts.Model == "" {
		opts.Model = "gemini-3-pro-preview"
	}
	if opts.ChatModel == "" {
		opts.ChatModel = "gemini-3-flash-preview"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}

	c := &Client{
		apiKey:     opts.APIKey,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		model:      opts.Model,
		chatModel:  opts.ChatModel,
		httpClient: opts.HTTPClient,
		log:        log.With().Str("component", "gemini").Logger(),
	}
	if c.apiKey == "" {
		c.log.Warn().Msg("GEMINI_API_KEY not found. Advisory, chat and insights will use fallbacks.")
	}
	return c
}

// generateResponse is the subset of the generateContent reply we read.
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		GroundingMetadata struct {
			GroundingChunks []struct {
				Web struct {
					URI   string `json:"uri"`
					Title string `json:"title"`
				} `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
}

// text returns the first candidate's concatenated parts.
func (r *generateResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// generate posts one generateContent request.
func (c *Client) generate(ctx context.Context, model string, payload map[string]interface{}) (*generateResponse, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	// The key travels in a header so transport errors, which quote the URL,
	// never carry it.
	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	c.log.Debug().Str("model", model).Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("generateContent")

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrNetwork, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", ErrMalformedResponse, err)
	}
	return &out, nil
}

func textPayload(prompt string) map[string]interface{} {
	return map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]interface{}{{"text": prompt}}},
		},
	}
}

// stripFences removes markdown code fences the model sometimes wraps JSON in.
func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
