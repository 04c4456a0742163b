package alpaca

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToPair(t *testing.T) {
	tests := map[string]string{
		"BTCUSDT": "BTC/USD",
		"ethusdc": "ETH/USD",
		"SOLUSD":  "SOL/USD",
		"LINK":    "LINK/USD",
		"BTC/EUR": "BTC/EUR",
	}
	for in, want := range tests {
		assert.Equal(t, want, toPair(in), in)
	}
}

func TestLatestPricesMapsBackToSymbols(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"trades":{"BTC/USD":{"t":"2026-01-02T15:04:05Z","p":91240.5,"s":0.01,"tks":"B","i":1}}}`))
	}))
	defer srv.Close()

	p := NewProvider(srv.URL)
	prices, err := p.LatestPrices(context.Background(), []string{"BTCUSDT", "ETHUSDT"})
	require.NoError(t, err)

	require.Contains(t, prices, "BTCUSDT")
	assert.Equal(t, "91240.5", prices["BTCUSDT"].String())
	assert.NotContains(t, prices, "ETHUSDT")
}

func TestLatestPricesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewProvider("http://127.0.0.1:0").LatestPrices(ctx, []string{"BTCUSDT"})
	assert.ErrorIs(t, err, context.Canceled)
}
