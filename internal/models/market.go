package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetClass groups instruments the way the advisory desk segments them.
type AssetClass string

const (
	AssetClassCrypto      AssetClass = "Crypto"
	AssetClassForex       AssetClass = "Forex"
	AssetClassCommodities AssetClass = "Commodities"
	AssetClassMinerals    AssetClass = "Minerals"
	AssetClassBondsEquity AssetClass = "Bonds/Equity"
)

// Instrument is a tradable symbol plus its asset class.
type Instrument struct {
	Symbol     string     `json:"symbol"`
	AssetClass AssetClass `json:"asset_class"`
}

// PriceTick is the latest observed price for a symbol.
type PriceTick struct {
	Symbol     string          `json:"symbol"`
	Price      decimal.Decimal `json:"price"`
	ObservedAt time.Time       `json:"observed_at"`
}

// Direction compares a primary price to the one before it.
type Direction string

const (
	DirectionUp        Direction = "up"
	DirectionDown      Direction = "down"
	DirectionUnchanged Direction = "unchanged"
)

// Compare returns the direction of next relative to prev.
func Compare(prev, next decimal.Decimal) Direction {
	switch next.Cmp(prev) {
	case 1:
		return DirectionUp
	case -1:
		return DirectionDown
	default:
		return DirectionUnchanged
	}
}

// Action is the recommendation carried by an advisory signal.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Dividend is reference dividend data attached to equity signals.
type Dividend struct {
	Symbol          string          `json:"symbol"`
	ExDate          string          `json:"ex_date"`
	PaymentDate     string          `json:"payment_date"`
	Amount          decimal.Decimal `json:"amount"`
	Yield           decimal.Decimal `json:"yield"`
	DeclarationDate string          `json:"declaration_date"`
}

// AdvisorySignal is a structured trade recommendation.
// A signal is created once per completed request and never mutated.
type AdvisorySignal struct {
	Asset        string          `json:"asset"`
	Action       Action          `json:"action"`
	Confidence   float64         `json:"confidence"` // 0..1
	EntryPrice   decimal.Decimal `json:"entry_price"`
	TakeProfit1  decimal.Decimal `json:"take_profit_1"`
	TakeProfit2  decimal.Decimal `json:"take_profit_2"`
	StopLoss     decimal.Decimal `json:"stop_loss"`
	PositionSize decimal.Decimal `json:"position_size"`
	RSI          float64         `json:"rsi"`
	Timeframe    string          `json:"timeframe"`
	Rationale    string          `json:"rationale"`

	// Auxiliary risk metrics
	FundingRate float64 `json:"funding_rate"`
	GammaPivot  string  `json:"gamma_pivot"`
	DeltaSkew   float64 `json:"delta_skew"`
	ETFNetFlow  string  `json:"etf_net_flow"`
	Verdict     string  `json:"verdict"`
	HedgeActive bool    `json:"hedge_active"`

	Dividend *Dividend `json:"dividend,omitempty"`
}

// Side maps the signal action to an executable side.
// HOLD has no side.
func (s AdvisorySignal) Side() (Side, bool) {
	switch s.Action {
	case ActionBuy:
		return SideBuy, true
	case ActionSell:
		return SideSell, true
	default:
		return "", false
	}
}
