package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"nexus_terminal/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestPrices(t *testing.T) {
	var gotPath, gotSymbols string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSymbols = r.URL.Query().Get("symbols")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"symbol":"BTCUSDT","price":"91240.50000000"},{"symbol":"ETHUSDT","price":"3120.12"}]`))
	}))
	defer srv.Close()

	prices, err := NewSource(srv.URL).LatestPrices(context.Background(), []string{"BTCUSDT", "ETHUSDT"})
	require.NoError(t, err)

	assert.Equal(t, "/api/v3/ticker/price", gotPath)
	assert.Contains(t, gotSymbols, "BTCUSDT")
	assert.Contains(t, gotSymbols, "ETHUSDT")
	assert.Equal(t, "91240.5", prices["BTCUSDT"].String())
	assert.Equal(t, "3120.12", prices["ETHUSDT"].String())
}

func TestLatestPricesMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"symbol":"BTCUSDT","price":"n/a"}]`))
	}))
	defer srv.Close()

	_, err := NewSource(srv.URL).LatestPrices(context.Background(), []string{"BTCUSDT"})
	assert.ErrorIs(t, err, market.ErrMalformedQuote)
}

func TestLatestPricesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"code":-1000,"msg":"unavailable"}`))
	}))
	defer srv.Close()

	_, err := NewSource(srv.URL).LatestPrices(context.Background(), []string{"BTCUSDT"})
	assert.Error(t, err)
}
