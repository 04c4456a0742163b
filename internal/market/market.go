package market

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrFeedUnavailable wraps every failed poll.
	ErrFeedUnavailable = errors.New("price feed unavailable")
	// ErrMalformedQuote is returned by sources that receive an unparseable price.
	ErrMalformedQuote = errors.New("malformed quote")
	// ErrPollInFlight is returned when a poll starts while another is running.
	ErrPollInFlight = errors.New("poll already in flight")
)

// QuoteSource fetches the latest price for each symbol. Symbols the source
// does not know may be omitted from the result.
type QuoteSource interface {
	LatestPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)
}

// QuoteSourceFunc adapts a function to QuoteSource.
type QuoteSourceFunc func(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)

func (f QuoteSourceFunc) LatestPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	return f(ctx, symbols)
}
