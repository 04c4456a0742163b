package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nexus_terminal/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSignal = `{
	"asset": "BTC", "type": "sell", "confidence": 0.7, "entry": 90500.5,
	"tp1": 88000, "tp2": 86000, "sl": 92000, "lotSize": 0.5, "rsi": 71.2,
	"timeframe": "M5", "rationale": "Overextended.", "fundingRate": 0.0003,
	"gammaPivot": "$90k", "deltaSkew": 1.1, "etfNetFlow": "-$120M",
	"nexusVerdict": "Fade the rally.", "hedgeActive": false
}`

// geminiReply wraps text the way generateContent does.
func geminiReply(text string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"candidates": []map[string]interface{}{
			{"content": map[string]interface{}{"parts": []map[string]string{{"text": text}}}},
		},
	})
	return string(b)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL, Model: "adv", ChatModel: "chat"}, zerolog.Nop())
	return c, srv
}

func TestGenerateAdvisory_ParsesAndValidates(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]interface{}

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		assert.Empty(t, r.URL.RawQuery)
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		io.WriteString(w, geminiReply("```json\n"+validSignal+"\n```"))
	})

	sig, err := c.GenerateAdvisory(context.Background(), models.Instrument{Symbol: "BTC", AssetClass: models.AssetClassCrypto})
	require.NoError(t, err)

	assert.Equal(t, "/models/adv:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	genCfg := gotBody["generationConfig"].(map[string]interface{})
	assert.Equal(t, "application/json", genCfg["responseMimeType"])
	assert.NotNil(t, genCfg["responseSchema"])

	assert.Equal(t, "BTC", sig.Asset)
	assert.Equal(t, models.ActionSell, sig.Action, "action is upper-cased")
	assert.True(t, sig.EntryPrice.Equal(decimal.RequireFromString("90500.5")))
	assert.Equal(t, "Fade the rally.", sig.Verdict)
	assert.Nil(t, sig.Dividend)
}

func TestGenerateAdvisory_AttachesDividend(t *testing.T) {
	body := strings.Replace(validSignal, `"BTC"`, `"SPY"`, 1)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, geminiReply(body))
	})

	sig, err := c.GenerateAdvisory(context.Background(), models.Instrument{Symbol: "SPY", AssetClass: models.AssetClassBondsEquity})
	require.NoError(t, err)
	require.NotNil(t, sig.Dividend)
	assert.Equal(t, "2026-03-15", sig.Dividend.ExDate)
}

func TestGenerateAdvisory_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusTooManyRequests, `{"error":"quota"}`, ErrNetwork},
		{"no candidates", http.StatusOK, `{"candidates":[]}`, ErrEmptyResponse},
		{"blank text", http.StatusOK, geminiReply("  "), ErrEmptyResponse},
		{"not json", http.StatusOK, geminiReply("BUY everything"), ErrMalformedResponse},
		{"missing field", http.StatusOK, geminiReply(`{"asset":"BTC","type":"BUY"}`), ErrMalformedResponse},
		{"bad action", http.StatusOK, geminiReply(strings.Replace(validSignal, `"sell"`, `"SHORT"`, 1)), ErrMalformedResponse},
		{"confidence out of range", http.StatusOK, geminiReply(strings.Replace(validSignal, `0.7`, `1.7`, 1)), ErrMalformedResponse},
		{"broken envelope", http.StatusOK, `{"candidates":`, ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			_, err := c.GenerateAdvisory(context.Background(), models.Instrument{Symbol: "BTC"})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGenerateAdvisory_TimeoutKeepsContextError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.GenerateAdvisory(ctx, models.Instrument{Symbol: "BTC"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestClientWithoutKey(t *testing.T) {
	c := NewClient(Options{}, zerolog.Nop())

	_, err := c.GenerateAdvisory(context.Background(), models.Instrument{Symbol: "BTC"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = c.Ask(context.Background(), "hi", "Market Maps")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestAsk_SendsContext(t *testing.T) {
	var prompt string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/chat:generateContent", r.URL.Path)
		var body struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		prompt = body.Contents[0].Parts[0].Text
		io.WriteString(w, geminiReply("Gamma is neutral."))
	})

	reply, err := c.Ask(context.Background(), "What is gamma doing?", "Derivatives & Flow")
	require.NoError(t, err)
	assert.Equal(t, "Gamma is neutral.", reply)
	assert.Contains(t, prompt, "Context: Derivatives & Flow")
	assert.Contains(t, prompt, "User: What is gamma doing?")
}

func TestInsight_ReturnsGroundingSources(t *testing.T) {
	var tools interface{}
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		tools = body["tools"]
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"ETF inflows strong."}]},
			"groundingMetadata":{"groundingChunks":[{"web":{"uri":"https://example.com/a","title":"A"}},{"web":{}}]}}]}`)
	})

	insight, err := c.Insight(context.Background(), TopicPulse, "")
	require.NoError(t, err)
	assert.NotNil(t, tools, "pulse is grounded with search")
	assert.Equal(t, "ETF inflows strong.", insight.Text)
	require.Len(t, insight.Sources, 1)
	assert.Equal(t, "https://example.com/a", insight.Sources[0].URI)
}

func TestParseTopic(t *testing.T) {
	topic, ok := ParseTopic("Macro")
	require.True(t, ok)
	assert.Equal(t, TopicMacro, topic)

	_, ok = ParseTopic("weather")
	assert.False(t, ok)
}

func TestGenerateTransportErrorOmitsAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := NewClient(Options{APIKey: "SECRET-KEY-1234", BaseURL: srv.URL, Model: "adv", ChatModel: "chat"}, zerolog.Nop())
	srv.Close()

	_, err := c.Ask(context.Background(), "hello", "Market Maps")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.NotContains(t, err.Error(), "SECRET-KEY-1234")
}
