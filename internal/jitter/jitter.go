package jitter

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// amplitude is the maximum relative move per step.
var amplitude = decimal.RequireFromString("0.00015")

// Jitter animates a display price around a reference entry price.
// The reference walks by up to ±0.015% per step. It never feeds the ledger
// on its own.
type Jitter struct {
	interval time.Duration
	log      zerolog.Logger

	mu       sync.Mutex
	rng      *rand.Rand
	price    decimal.Decimal
	active   bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	onChange func(decimal.Decimal)
}

// New creates an idle jitter. rng may be nil.
func New(interval time.Duration, rng *rand.Rand, log zerolog.Logger) *Jitter {
	if interval <= 0 {
		interval = 150 * time.Millisecond
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Jitter{
		interval: interval,
		rng:      rng,
		log:      log.With().Str("component", "jitter").Logger(),
	}
}

// OnChange sets a callback invoked after every step.
func (j *Jitter) OnChange(fn func(decimal.Decimal)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onChange = fn
}

// Reset sets the reference to entry and restarts the timer.
func (j *Jitter) Reset(entry decimal.Decimal) {
	j.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	j.mu.Lock()
	j.price = entry
	j.active = true
	j.cancel = cancel
	j.wg.Add(1)
	j.mu.Unlock()

	j.log.Debug().Str("entry", entry.String()).Msg("Jitter reset")
	go j.run(ctx)
}

// Stop halts the timer and clears the live price.
func (j *Jitter) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.active = false
	j.price = decimal.Zero
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	j.wg.Wait()
}

// Price returns the live price and whether the jitter is running.
func (j *Jitter) Price() (decimal.Decimal, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.price, j.active
}

func (j *Jitter) run(ctx context.Context) {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.step(ctx)
		}
	}
}

func (j *Jitter) step(ctx context.Context) {
	j.mu.Lock()
	if ctx.Err() != nil || !j.active {
		j.mu.Unlock()
		return
	}
	j.price = next(j.price, j.rng.Float64()*2-1)
	p, fn := j.price, j.onChange
	j.mu.Unlock()

	if fn != nil {
		fn(p)
	}
}

// next applies one step: ref + u*ref*amplitude with u in [-1, 1).
func next(ref decimal.Decimal, u float64) decimal.Decimal {
	return ref.Add(ref.Mul(decimal.NewFromFloat(u)).Mul(amplitude))
}
