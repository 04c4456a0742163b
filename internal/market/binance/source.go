package binance

import (
	"context"
	"fmt"

	"nexus_terminal/internal/market"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
)

// Source reads spot ticker prices from the public Binance REST API.
// No credentials are needed for ticker reads.
type Source struct {
	client *gobinance.Client
}

var _ market.QuoteSource = (*Source)(nil)

// NewSource returns a Binance source. An empty baseURL uses the live API.
func NewSource(baseURL string) *Source {
	client := gobinance.NewClient("", "")
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	return &Source{client: client}
}

// LatestPrices fetches all symbols in one ticker/price call.
func (s *Source) LatestPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	prices, err := s.client.NewListPricesService().Symbols(symbols).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance ticker price: %w", err)
	}

	out := make(map[string]decimal.Decimal, len(prices))
	for _, p := range prices {
		v, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: %s price %q", market.ErrMalformedQuote, p.Symbol, p.Price)
		}
		out[p.Symbol] = v
	}
	return out, nil
}
