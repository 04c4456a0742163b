package alpaca

import (
	"context"
	"fmt"
	"strings"

	"nexus_terminal/internal/market"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
)

// Provider implements market.QuoteSource with Alpaca crypto latest trades.
type Provider struct {
	mdClient *marketdata.Client
}

// Ensure Provider implements the interface
var _ market.QuoteSource = (*Provider)(nil)

// NewProvider returns a new Alpaca provider. Credentials are read by the
// SDK from APCA_API_KEY_ID / APCA_API_SECRET_KEY; an empty baseURL uses the
// live data API.
func NewProvider(baseURL string) *Provider {
	return &Provider{
		mdClient: marketdata.NewClient(marketdata.ClientOpts{BaseURL: baseURL}),
	}
}

// --- Market Data ---

// LatestPrices maps exchange-style symbols (BTCUSDT) to Alpaca pairs
// (BTC/USD), fetches the latest trade of each and maps the result back.
// The SDK call takes no context; ctx is checked before the request only.
func (p *Provider) LatestPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pairs := make([]string, 0, len(symbols))
	back := make(map[string]string, len(symbols))
	for _, s := range symbols {
		pair := toPair(s)
		pairs = append(pairs, pair)
		back[pair] = s
	}

	trades, err := p.mdClient.GetLatestCryptoTrades(pairs, marketdata.GetLatestCryptoTradeRequest{})
	if err != nil {
		return nil, fmt.Errorf("alpaca latest crypto trades: %w", err)
	}

	out := make(map[string]decimal.Decimal, len(trades))
	for pair, t := range trades {
		sym, ok := back[pair]
		if !ok {
			continue
		}
		out[sym] = decimal.NewFromFloat(t.Price)
	}
	return out, nil
}

// --- Helpers ---

var quoteSuffixes = []string{"USDT", "USDC", "USD"}

// toPair converts BTCUSDT to BTC/USD. Symbols that already contain a slash
// pass through upper-cased.
func toPair(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if strings.Contains(s, "/") {
		return s
	}
	for _, q := range quoteSuffixes {
		if base, ok := strings.CutSuffix(s, q); ok && base != "" {
			return base + "/USD"
		}
	}
	return s + "/USD"
}
