package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"nexus_terminal/internal/advisory"
	"nexus_terminal/internal/ai"
	"nexus_terminal/internal/market"
	"nexus_terminal/internal/models"
	"nexus_terminal/internal/portfolio"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	// ErrNoSignal means there is no settled signal to execute.
	ErrNoSignal = errors.New("no settled signal")
	// ErrNotActionable means the current signal is a HOLD.
	ErrNotActionable = errors.New("signal is not actionable")
	// ErrStaleSignal means a newer request replaced the signal being executed.
	ErrStaleSignal = errors.New("signal superseded by a newer request")
	// ErrUnknownTab, ErrUnknownCurrency, ErrUnknownAssetClass and
	// ErrUnknownInstrument reject selections outside the catalogue.
	ErrUnknownTab        = errors.New("unknown tab")
	ErrUnknownCurrency   = errors.New("unknown currency")
	ErrUnknownAssetClass = errors.New("unknown asset class")
	ErrUnknownInstrument = errors.New("unknown instrument")
)

// nonUSDRate is the flat display conversion applied to every non-USD currency.
var nonUSDRate = decimal.RequireFromString("0.92")

// DisplayPrice converts a USD price for display in currency.
func DisplayPrice(usd decimal.Decimal, currency models.CurrencyCode) decimal.Decimal {
	if currency == models.USD {
		return usd
	}
	return usd.Mul(nonUSDRate)
}

// Advisor runs advisory requests.
type Advisor interface {
	Request(inst models.Instrument) uint64
	Snapshot() advisory.State
	OnChange(fn func(advisory.State))
}

// Ledger executes simulated trades.
type Ledger interface {
	Execute(o portfolio.Order) (models.Position, error)
	Snapshot() models.PortfolioSnapshot
}

// LivePrice animates the display price of the current signal.
type LivePrice interface {
	Reset(entry decimal.Decimal)
	Stop()
	Price() (decimal.Decimal, bool)
	OnChange(fn func(decimal.Decimal))
}

// Assistant answers chat questions and canned insights.
type Assistant interface {
	Ask(ctx context.Context, query, contextLabel string) (string, error)
	Insight(ctx context.Context, topic ai.Topic, subject string) (*ai.Insight, error)
}

// Feed exposes live market prices.
type Feed interface {
	Snapshot() market.FeedSnapshot
	Price(symbol string) (decimal.Decimal, bool)
	OnUpdate(fn func(market.FeedUpdate))
}

// News exposes the rotating headline.
type News interface {
	Current() (int, string)
	OnChange(fn func(index int, headline string))
}

// Deps wires a Controller. Assistant, Feed, News and Notifier are optional.
type Deps struct {
	Advisor   Advisor
	Ledger    Ledger
	LivePrice LivePrice
	Assistant Assistant
	Feed      Feed
	News      News
	Notifier  Notifier
}

// Headline is the current news item.
type Headline struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Snapshot is the full dashboard state pushed to clients.
type Snapshot struct {
	Tab            models.Tab               `json:"tab"`
	TabLabel       string                   `json:"tab_label"`
	Currency       models.CurrencyCode      `json:"currency"`
	CurrencySymbol string                   `json:"currency_symbol"`
	AssetClass     models.AssetClass        `json:"asset_class"`
	Instrument     models.Instrument        `json:"instrument"`
	Advisory       advisory.State           `json:"advisory"`
	LivePrice      *decimal.Decimal         `json:"live_price,omitempty"` // In the selected currency
	Portfolio      models.PortfolioSnapshot `json:"portfolio"`
	Feed           *market.FeedSnapshot     `json:"feed,omitempty"`
	Headline       Headline                 `json:"headline"`
	Chat           []ChatMessage            `json:"chat"`
	TakenAt        time.Time                `json:"taken_at"`
}

// Controller owns the user-facing selections and composes the other
// components into one state.
type Controller struct {
	deps Deps
	log  zerolog.Logger
	chat *chatSession

	mu         sync.Mutex
	tab        models.Tab
	currency   models.CurrencyCode
	assetClass models.AssetClass
	instrument models.Instrument
	advisory   advisory.State
	announced  uint64 // Last generation sent to the notifier
	listeners  []func(Snapshot)

	advisoryMu sync.Mutex // Serializes advisory transitions with the jitter
}

// New creates a controller on the Market Maps tab, USD, first crypto
// instrument. Call Start to issue the initial advisory request.
func New(deps Deps, log zerolog.Logger) *Controller {
	first := models.Instruments(models.AssetClassCrypto)[0]
	c := &Controller{
		deps:       deps,
		log:        log.With().Str("component", "dashboard").Logger(),
		chat:       newChatSession(),
		tab:        models.TabMarketMaps,
		currency:   models.USD,
		assetClass: first.AssetClass,
		instrument: first,
	}

	deps.Advisor.OnChange(c.onAdvisory)
	deps.LivePrice.OnChange(func(decimal.Decimal) { c.publish() })
	if deps.Feed != nil {
		deps.Feed.OnUpdate(func(market.FeedUpdate) { c.publish() })
	}
	if deps.News != nil {
		deps.News.OnChange(func(int, string) { c.publish() })
	}
	return c
}

// Start requests an advisory for the initial instrument.
func (c *Controller) Start() {
	c.mu.Lock()
	inst := c.instrument
	c.mu.Unlock()
	c.deps.Advisor.Request(inst)
}

// OnChange registers a listener called with a fresh snapshot after every
// state change.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// SelectTab switches the navigation tab.
func (c *Controller) SelectTab(tab models.Tab) error {
	if _, ok := models.ParseTab(string(tab)); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTab, tab)
	}
	c.mu.Lock()
	c.tab = tab
	c.mu.Unlock()
	c.publish()
	return nil
}

// SelectCurrency switches the settlement currency.
func (c *Controller) SelectCurrency(code models.CurrencyCode) error {
	if _, ok := models.CurrencySymbols[code]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}
	c.mu.Lock()
	c.currency = code
	c.mu.Unlock()
	c.publish()
	return nil
}

// SelectAssetClass switches the class and requests an advisory for its
// first instrument.
func (c *Controller) SelectAssetClass(class models.AssetClass) (uint64, error) {
	insts := models.Instruments(class)
	if len(insts) == 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownAssetClass, class)
	}
	return c.request(insts[0]), nil
}

// SelectInstrument requests an advisory for symbol.
func (c *Controller) SelectInstrument(symbol string) (uint64, error) {
	inst, ok := models.LookupInstrument(symbol)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownInstrument, symbol)
	}
	return c.request(inst), nil
}

func (c *Controller) request(inst models.Instrument) uint64 {
	c.mu.Lock()
	c.assetClass = inst.AssetClass
	c.instrument = inst
	c.mu.Unlock()

	gen := c.deps.Advisor.Request(inst)
	c.log.Debug().Str("symbol", inst.Symbol).Uint64("generation", gen).Msg("Instrument selected")
	return gen
}

// onAdvisory applies lifecycle transitions in Version order. The jitter is
// switched before the state is stored so a settled snapshot always carries
// its live price.
func (c *Controller) onAdvisory(st advisory.State) {
	c.advisoryMu.Lock()
	c.mu.Lock()
	stale := st.Version <= c.advisory.Version
	c.mu.Unlock()
	if stale {
		c.advisoryMu.Unlock()
		return
	}

	if st.Settled() {
		c.deps.LivePrice.Reset(st.Signal.EntryPrice)
	} else {
		c.deps.LivePrice.Stop()
	}

	c.mu.Lock()
	c.advisory = st
	announce := st.Settled() && st.Generation != c.announced
	if announce {
		c.announced = st.Generation
	}
	c.mu.Unlock()
	c.advisoryMu.Unlock()

	c.publish()
	if announce {
		c.announceSignal(st)
	}
}

// ExecuteSignal executes the current settled signal at the live price,
// falling back to the signal entry, sized by the signal's position size in
// the selected currency.
func (c *Controller) ExecuteSignal(ctx context.Context) (models.Position, error) {
	q := c.quoteSignal()
	return c.executeSignal(ctx, q)
}

// ExecuteSignalGeneration executes the current signal only if it still
// belongs to generation.
func (c *Controller) ExecuteSignalGeneration(ctx context.Context, generation uint64) (models.Position, error) {
	q := c.quoteSignal()
	if q.state.Generation != generation {
		return models.Position{}, ErrStaleSignal
	}
	return c.executeSignal(ctx, q)
}

// signalQuote is a settled signal together with the price to execute it at.
type signalQuote struct {
	state    advisory.State
	currency models.CurrencyCode
	price    decimal.Decimal
}

// quoteSignal reads the advisory state and the live price under advisoryMu,
// so a Reset for a newer request cannot pair this signal with that price.
func (c *Controller) quoteSignal() signalQuote {
	c.advisoryMu.Lock()
	defer c.advisoryMu.Unlock()

	c.mu.Lock()
	q := signalQuote{state: c.advisory, currency: c.currency}
	c.mu.Unlock()

	if q.state.Settled() {
		q.price = q.state.Signal.EntryPrice
		if live, active := c.deps.LivePrice.Price(); active && live.IsPositive() {
			q.price = live
		}
	}
	return q
}

func (c *Controller) executeSignal(ctx context.Context, q signalQuote) (models.Position, error) {
	if !q.state.Settled() {
		return models.Position{}, ErrNoSignal
	}
	sig := q.state.Signal
	side, ok := sig.Side()
	if !ok {
		return models.Position{}, ErrNotActionable
	}

	return c.execute(ctx, portfolio.Order{
		Asset:    sig.Asset,
		Side:     side,
		Price:    q.price,
		Size:     sig.PositionSize,
		Currency: q.currency,
	})
}

// Execute passes a manual trade to the ledger in the selected currency.
func (c *Controller) Execute(ctx context.Context, asset string, side models.Side, price, size decimal.Decimal) (models.Position, error) {
	c.mu.Lock()
	currency := c.currency
	c.mu.Unlock()
	return c.execute(ctx, portfolio.Order{Asset: asset, Side: side, Price: price, Size: size, Currency: currency})
}

func (c *Controller) execute(ctx context.Context, o portfolio.Order) (models.Position, error) {
	pos, err := c.deps.Ledger.Execute(o)
	if err != nil {
		c.log.Info().Err(err).Str("asset", o.Asset).Str("side", string(o.Side)).Msg("Trade rejected")
		return pos, err
	}
	c.log.Info().
		Str("asset", pos.Asset).
		Str("side", string(pos.Side)).
		Str("price", pos.EntryPrice.String()).
		Str("size", pos.Size.String()).
		Str("currency", string(pos.Currency)).
		Msg("Trade executed")

	c.publish()
	c.announceTrade(ctx, pos)
	return pos, nil
}

// Portfolio returns the ledger snapshot.
func (c *Controller) Portfolio() models.PortfolioSnapshot {
	return c.deps.Ledger.Snapshot()
}

// Snapshot composes the current state of every component.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	snap := Snapshot{
		Tab:            c.tab,
		TabLabel:       c.tab.Label(),
		Currency:       c.currency,
		CurrencySymbol: models.CurrencySymbols[c.currency],
		AssetClass:     c.assetClass,
		Instrument:     c.instrument,
		Advisory:       c.advisory,
	}
	c.mu.Unlock()

	if live, active := c.deps.LivePrice.Price(); active {
		p := DisplayPrice(live, snap.Currency)
		snap.LivePrice = &p
	}
	snap.Portfolio = c.deps.Ledger.Snapshot()
	if c.deps.Feed != nil {
		f := c.deps.Feed.Snapshot()
		snap.Feed = &f
	}
	if c.deps.News != nil {
		snap.Headline.Index, snap.Headline.Text = c.deps.News.Current()
	}
	snap.Chat = c.chat.transcript()
	snap.TakenAt = time.Now()
	return snap
}

func (c *Controller) publish() {
	c.mu.Lock()
	if len(c.listeners) == 0 {
		c.mu.Unlock()
		return
	}
	listeners := append([]func(Snapshot){}, c.listeners...)
	c.mu.Unlock()

	snap := c.Snapshot()
	for _, fn := range listeners {
		fn(snap)
	}
}
