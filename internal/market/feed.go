package market

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"nexus_terminal/internal/metrics"
	"nexus_terminal/internal/models"
	"nexus_terminal/internal/scheduler"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// FeedOptions configures a Feed.
type FeedOptions struct {
	Symbols    []string // The first symbol is the primary one
	Interval   time.Duration
	StaleAfter time.Duration
	MaxRetries int
	RetryMin   time.Duration
	RetryMax   time.Duration
}

// FeedUpdate is delivered to listeners after every applied poll.
type FeedUpdate struct {
	Seq       uint64             `json:"seq"`
	Ticks     []models.PriceTick `json:"ticks"`
	Direction models.Direction   `json:"direction"`
	Stale     bool               `json:"stale"`
}

// FeedSnapshot is a copy of the feed state.
type FeedSnapshot struct {
	Primary     string             `json:"primary"`
	Ticks       []models.PriceTick `json:"ticks"`
	Direction   models.Direction   `json:"direction"`
	Stale       bool               `json:"stale"`
	LastError   string             `json:"last_error,omitempty"`
	LastSuccess time.Time          `json:"last_success"`
}

// Scheduler is the subset of scheduler.Scheduler the feed registers with.
type Scheduler interface {
	Every(name string, interval time.Duration, task scheduler.Task) error
	RunNow(name string, task scheduler.Task)
}

// Feed polls a QuoteSource and keeps the latest price per symbol.
type Feed struct {
	source QuoteSource
	opts   FeedOptions
	log    zerolog.Logger
	now    func() time.Time

	inFlight atomic.Bool
	issued   atomic.Uint64

	mu          sync.RWMutex
	applied     uint64
	ticks       map[string]models.PriceTick
	prevPrimary decimal.Decimal
	direction   models.Direction
	lastSuccess time.Time
	lastErr     error
	listeners   []func(FeedUpdate)
}

// NewFeed creates a feed over source. Zero options fall back to defaults.
func NewFeed(source QuoteSource, opts FeedOptions, log zerolog.Logger) *Feed {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 3 * opts.Interval
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryMin <= 0 {
		opts.RetryMin = 250 * time.Millisecond
	}
	if opts.RetryMax <= 0 {
		opts.RetryMax = 2 * time.Second
	}
	return &Feed{
		source:    source,
		opts:      opts,
		log:       log.With().Str("component", "price_feed").Logger(),
		now:       time.Now,
		ticks:     make(map[string]models.PriceTick),
		direction: models.DirectionUnchanged,
	}
}

// OnUpdate registers a listener. Listeners run on the polling goroutine.
func (f *Feed) OnUpdate(fn func(FeedUpdate)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
}

// Start registers the periodic poll and issues the first one immediately.
func (f *Feed) Start(s Scheduler) error {
	task := func(ctx context.Context) error {
		_ = f.Poll(ctx) // Failures are logged by Poll
		return nil
	}
	if err := s.Every("price-feed", f.opts.Interval, task); err != nil {
		return err
	}
	s.RunNow("price-feed", task)
	f.log.Info().Strs("symbols", f.opts.Symbols).Dur("interval", f.opts.Interval).Msg("Price feed started")
	return nil
}

// Poll performs one fetch. A poll that overlaps a running one is dropped
// with ErrPollInFlight. Failures keep the previous prices.
func (f *Feed) Poll(ctx context.Context) error {
	if !f.inFlight.CompareAndSwap(false, true) {
		metrics.RecordFeedPoll("dropped")
		f.log.Debug().Msg("Poll skipped, previous poll still running")
		return ErrPollInFlight
	}
	defer f.inFlight.Store(false)

	seq := f.issued.Add(1)

	prices, err := f.fetch(ctx)
	if err == nil {
		err = checkPrices(prices)
	}
	if err != nil {
		metrics.RecordFeedPoll("error")
		f.mu.Lock()
		f.lastErr = err
		update := FeedUpdate{Seq: seq, Ticks: f.orderedTicksLocked(), Direction: f.direction, Stale: true}
		listeners := append([]func(FeedUpdate){}, f.listeners...)
		f.mu.Unlock()
		f.log.Warn().Err(err).Uint64("seq", seq).Msg("Price poll failed, keeping previous values")
		for _, fn := range listeners {
			fn(update)
		}
		return fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
	}

	f.apply(seq, prices)
	return nil
}

func (f *Feed) fetch(ctx context.Context) (map[string]decimal.Decimal, error) {
	b := &backoff.Backoff{Min: f.opts.RetryMin, Max: f.opts.RetryMax, Factor: 2}

	for attempt := 0; ; attempt++ {
		start := time.Now()
		prices, err := f.source.LatestPrices(ctx, f.opts.Symbols)
		metrics.ObserveFeedLatency(time.Since(start).Seconds())
		if err == nil {
			return prices, nil
		}
		if attempt >= f.opts.MaxRetries || ctx.Err() != nil {
			return nil, err
		}

		wait := b.Duration()
		f.log.Debug().Err(err).Int("attempt", attempt+1).Dur("wait", wait).Msg("Retrying price fetch")
		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(wait):
		}
	}
}

func checkPrices(prices map[string]decimal.Decimal) error {
	for sym, p := range prices {
		if p.IsNegative() {
			return fmt.Errorf("%w: negative price %s for %s", ErrMalformedQuote, p, sym)
		}
	}
	return nil
}

// apply stores a successful result. Results older than the last applied
// poll are discarded.
func (f *Feed) apply(seq uint64, prices map[string]decimal.Decimal) {
	f.mu.Lock()
	if seq <= f.applied {
		f.mu.Unlock()
		metrics.RecordFeedPoll("stale_discarded")
		f.log.Debug().Uint64("seq", seq).Uint64("applied", f.applied).Msg("Discarding out-of-order poll result")
		return
	}
	f.applied = seq

	now := f.now()
	ticks := make([]models.PriceTick, 0, len(f.opts.Symbols))
	for i, sym := range f.opts.Symbols {
		price := prices[sym] // Missing symbols read as zero
		tick := models.PriceTick{Symbol: sym, Price: price, ObservedAt: now}
		f.ticks[sym] = tick
		ticks = append(ticks, tick)
		metrics.SetFeedPrice(sym, price.InexactFloat64())

		if i == 0 {
			f.direction = models.Compare(f.prevPrimary, price)
			f.prevPrimary = price
		}
	}
	f.lastSuccess = now
	f.lastErr = nil

	update := FeedUpdate{Seq: seq, Ticks: ticks, Direction: f.direction, Stale: false}
	listeners := append([]func(FeedUpdate){}, f.listeners...)
	f.mu.Unlock()

	metrics.RecordFeedPoll("ok")
	for _, fn := range listeners {
		fn(update)
	}
}

// Price returns the latest price for symbol; false if never observed.
func (f *Feed) Price(symbol string) (decimal.Decimal, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.ticks[symbol]
	return t.Price, ok
}

// Snapshot returns a copy of the feed state ordered by configured symbol.
func (f *Feed) Snapshot() FeedSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()

	snap := FeedSnapshot{
		Direction:   f.direction,
		Stale:       f.staleLocked(),
		LastSuccess: f.lastSuccess,
	}
	if len(f.opts.Symbols) > 0 {
		snap.Primary = f.opts.Symbols[0]
	}
	if f.lastErr != nil {
		snap.LastError = f.lastErr.Error()
	}
	snap.Ticks = f.orderedTicksLocked()
	return snap
}

func (f *Feed) orderedTicksLocked() []models.PriceTick {
	var out []models.PriceTick
	for _, sym := range f.opts.Symbols {
		if t, ok := f.ticks[sym]; ok {
			out = append(out, t)
		}
	}
	return out
}

func (f *Feed) staleLocked() bool {
	if f.lastErr != nil || f.lastSuccess.IsZero() {
		return true
	}
	return f.now().Sub(f.lastSuccess) > f.opts.StaleAfter
}
