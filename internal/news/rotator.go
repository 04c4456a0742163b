package news

import (
	"context"
	"sync"
	"time"

	"nexus_terminal/internal/scheduler"

	"github.com/rs/zerolog"
)

// Rotator cycles through a fixed list of headlines.
type Rotator struct {
	log zerolog.Logger

	mu        sync.RWMutex
	headlines []string
	index     int
	onChange  func(index int, headline string)
}

// NewRotator copies headlines and starts at index 0.
func NewRotator(headlines []string, log zerolog.Logger) *Rotator {
	return &Rotator{
		headlines: append([]string{}, headlines...),
		log:       log.With().Str("component", "news").Logger(),
	}
}

// OnChange sets a callback invoked after every advance.
func (r *Rotator) OnChange(fn func(index int, headline string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// Advance moves to the next headline, wrapping around. An empty list
// never advances.
func (r *Rotator) Advance() int {
	r.mu.Lock()
	if len(r.headlines) == 0 {
		r.mu.Unlock()
		return 0
	}
	r.index = (r.index + 1) % len(r.headlines)
	idx, h, fn := r.index, r.headlines[r.index], r.onChange
	r.mu.Unlock()

	if fn != nil {
		fn(idx, h)
	}
	return idx
}

// Current returns the index and headline. The headline is empty when the
// list is empty.
func (r *Rotator) Current() (int, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.headlines) == 0 {
		return 0, ""
	}
	return r.index, r.headlines[r.index]
}

// Start registers the rotation with s.
func (r *Rotator) Start(s interface {
	Every(name string, interval time.Duration, task scheduler.Task) error
}, interval time.Duration) error {
	if err := s.Every("news-rotation", interval, func(ctx context.Context) error {
		r.Advance()
		return nil
	}); err != nil {
		return err
	}
	r.log.Info().Int("headlines", len(r.headlines)).Dur("interval", interval).Msg("News rotation started")
	return nil
}
