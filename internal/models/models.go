package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a simulated trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether s is one of the executable sides.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// CurrencyCode identifies one of the fixed settlement currencies.
type CurrencyCode string

const (
	USD CurrencyCode = "USD"
	EUR CurrencyCode = "EUR"
	GBP CurrencyCode = "GBP"
	JPY CurrencyCode = "JPY"
	AUD CurrencyCode = "AUD"
)

// Position represents a single simulated trading position.
// Positions are immutable once created by the ledger.
type Position struct {
	ID           string          `json:"id"`
	Asset        string          `json:"asset"`
	Side         Side            `json:"side"`
	EntryPrice   decimal.Decimal `json:"entry_price"`
	CurrentPrice decimal.Decimal `json:"current_price"` // Set to EntryPrice on creation, never marked to market
	Size         decimal.Decimal `json:"size"`
	Currency     CurrencyCode    `json:"currency"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Cost is EntryPrice * Size.
func (p Position) Cost() decimal.Decimal {
	return p.EntryPrice.Mul(p.Size)
}

// PortfolioSnapshot is a copy of the ledger state at one point in time.
type PortfolioSnapshot struct {
	Balances  map[CurrencyCode]decimal.Decimal `json:"balances"`
	Positions []Position                       `json:"positions"` // Ordered by execution
	TakenAt   time.Time                        `json:"taken_at"`
}
