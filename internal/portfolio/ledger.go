package portfolio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"nexus_terminal/internal/metrics"
	"nexus_terminal/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientFunds = errors.New("insufficient simulated funds")
	ErrInvalidSide       = errors.New("side must be BUY or SELL")
	ErrInvalidPrice      = errors.New("price must be positive")
	ErrInvalidSize       = errors.New("size must be positive")
	ErrUnknownCurrency   = errors.New("unknown settlement currency")
)

// InsufficientFundsError carries the amounts behind a rejected BUY.
type InsufficientFundsError struct {
	Currency  models.CurrencyCode
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("%s: need %s %s, have %s", ErrInsufficientFunds, e.Required.StringFixed(2), e.Currency, e.Available.StringFixed(2))
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// SettlementMode decides what a SELL does to the settlement balance.
type SettlementMode int

const (
	// SettleCredit credits price*size to the settlement currency.
	SettleCredit SettlementMode = iota
	// SettleNone leaves balances untouched on SELL.
	SettleNone
)

// Order is one execution request.
type Order struct {
	Asset    string
	Side     models.Side
	Price    decimal.Decimal
	Size     decimal.Decimal
	Currency models.CurrencyCode
}

// Ledger holds simulated balances and the append-only list of positions.
type Ledger struct {
	mu        sync.Mutex
	balances  map[models.CurrencyCode]decimal.Decimal
	positions []models.Position
	mode      SettlementMode
	now       func() time.Time
	newID     func() string
	log       zerolog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithSettlement sets how SELL orders settle.
func WithSettlement(mode SettlementMode) Option {
	return func(l *Ledger) { l.mode = mode }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator overrides position ID generation.
func WithIDGenerator(gen func() string) Option {
	return func(l *Ledger) { l.newID = gen }
}

// NewLedger returns a ledger funded with the given balances. A nil map funds
// it with the demo balances.
func NewLedger(log zerolog.Logger, balances map[models.CurrencyCode]decimal.Decimal, opts ...Option) *Ledger {
	if balances == nil {
		balances = models.InitialBalances()
	}
	l := &Ledger{
		balances: make(map[models.CurrencyCode]decimal.Decimal, len(balances)),
		mode:     SettleCredit,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
		log:      log.With().Str("component", "ledger").Logger(),
	}
	for c, v := range balances {
		l.balances[c] = v
	}
	for _, opt := range opts {
		opt(l)
	}
	l.publishBalances()
	return l
}

// Execute validates and applies one order. The precondition check and the
// mutation happen under the same lock; on error nothing changes.
func (l *Ledger) Execute(o Order) (models.Position, error) {
	pos, err := l.execute(o)
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	metrics.RecordTrade(string(o.Side), result)
	return pos, err
}

func (l *Ledger) execute(o Order) (models.Position, error) {
	if !o.Side.Valid() {
		return models.Position{}, ErrInvalidSide
	}
	if !o.Price.IsPositive() {
		return models.Position{}, ErrInvalidPrice
	}
	if !o.Size.IsPositive() {
		return models.Position{}, ErrInvalidSize
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	available, ok := l.balances[o.Currency]
	if !ok {
		return models.Position{}, fmt.Errorf("%w: %s", ErrUnknownCurrency, o.Currency)
	}

	cost := o.Price.Mul(o.Size)

	switch o.Side {
	case models.SideBuy:
		if available.LessThan(cost) {
			l.log.Warn().
				Str("asset", o.Asset).
				Str("currency", string(o.Currency)).
				Str("required", cost.StringFixed(2)).
				Str("available", available.StringFixed(2)).
				Msg("Rejected BUY: insufficient funds")
			return models.Position{}, &InsufficientFundsError{Currency: o.Currency, Required: cost, Available: available}
		}
		l.balances[o.Currency] = available.Sub(cost)
	case models.SideSell:
		if l.mode == SettleCredit {
			l.balances[o.Currency] = available.Add(cost)
		}
	}

	pos := models.Position{
		ID:           l.newID(),
		Asset:        o.Asset,
		Side:         o.Side,
		EntryPrice:   o.Price,
		CurrentPrice: o.Price,
		Size:         o.Size,
		Currency:     o.Currency,
		CreatedAt:    l.now(),
	}
	l.positions = append(l.positions, pos)

	l.log.Info().
		Str("id", pos.ID).
		Str("asset", pos.Asset).
		Str("side", string(pos.Side)).
		Str("price", pos.EntryPrice.String()).
		Str("size", pos.Size.String()).
		Str("currency", string(pos.Currency)).
		Str("balance", l.balances[o.Currency].StringFixed(2)).
		Msg("Executed simulated trade")

	l.publishBalanceLocked(o.Currency)
	return pos, nil
}

// Balance returns the balance of one currency.
func (l *Ledger) Balance(c models.CurrencyCode) (decimal.Decimal, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.balances[c]
	return v, ok
}

// Positions returns a copy of the positions in execution order.
func (l *Ledger) Positions() []models.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.Position, len(l.positions))
	copy(out, l.positions)
	return out
}

// Snapshot returns a copy of the whole ledger.
func (l *Ledger) Snapshot() models.PortfolioSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	balances := make(map[models.CurrencyCode]decimal.Decimal, len(l.balances))
	for c, v := range l.balances {
		balances[c] = v
	}
	positions := make([]models.Position, len(l.positions))
	copy(positions, l.positions)

	return models.PortfolioSnapshot{
		Balances:  balances,
		Positions: positions,
		TakenAt:   l.now(),
	}
}

func (l *Ledger) publishBalances() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for c := range l.balances {
		l.publishBalanceLocked(c)
	}
}

func (l *Ledger) publishBalanceLocked(c models.CurrencyCode) {
	metrics.SetBalance(string(c), l.balances[c].InexactFloat64())
}
