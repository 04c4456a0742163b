package advisory

import (
	"context"
	"errors"
	"sync"
	"time"

	"nexus_terminal/internal/ai"
	"nexus_terminal/internal/metrics"
	"nexus_terminal/internal/models"

	"github.com/rs/zerolog"
)

// Phase is the lifecycle position of the current request.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseInProgress Phase = "in_progress"
	PhaseResolved   Phase = "resolved"
	PhaseDegraded   Phase = "degraded"
	PhaseFailed     Phase = "failed" // Only without a fallback
)

// Reason explains a degraded or failed request.
type Reason string

const (
	ReasonNetworkFailure    Reason = "network_failure"
	ReasonTimeout           Reason = "timeout"
	ReasonMalformedResponse Reason = "malformed_response"
	ReasonEmptyResponse     Reason = "empty_response"
)

// StageLabels are the cosmetic progress stages shown while a request runs.
var StageLabels = []string{
	"Establishing Agentic WebSocket...",
	"Delta-hedging Zone Mapping...",
	"AI-Miner Lead-Lag Correlation...",
	"Sentiment Parsing Davo Intel...",
	"Nexus Multi-Strategy Synthesis...",
}

// State is a copy of the lifecycle at one version. Version increases on
// every transition; listeners may see states out of order and should keep
// the highest Version.
type State struct {
	Phase      Phase                  `json:"phase"`
	Generation uint64                 `json:"generation"`
	Version    uint64                 `json:"version"`
	Instrument models.Instrument      `json:"instrument"`
	Stage      int                    `json:"stage"`
	StageLabel string                 `json:"stage_label,omitempty"`
	StartedAt  time.Time              `json:"started_at"`
	SettledAt  time.Time              `json:"settled_at"`
	Signal     *models.AdvisorySignal `json:"signal,omitempty"`
	Reason     Reason                 `json:"reason,omitempty"`
}

// Settled reports whether the request carries a final signal.
func (s State) Settled() bool {
	return (s.Phase == PhaseResolved || s.Phase == PhaseDegraded) && s.Signal != nil
}

// Fetcher produces a signal for one instrument.
type Fetcher interface {
	GenerateAdvisory(ctx context.Context, inst models.Instrument) (*models.AdvisorySignal, error)
}

// Option configures a Lifecycle.
type Option func(*Lifecycle)

// WithStageInterval sets the stage timer period.
func WithStageInterval(d time.Duration) Option {
	return func(l *Lifecycle) { l.stageInterval = d }
}

// WithTimeout bounds each fetch.
func WithTimeout(d time.Duration) Option {
	return func(l *Lifecycle) { l.timeout = d }
}

// WithFallback replaces the fallback signal source. nil disables the
// fallback so that failures settle as PhaseFailed.
func WithFallback(fn func(asset string) *models.AdvisorySignal) Option {
	return func(l *Lifecycle) { l.fallback = fn }
}

// Lifecycle tracks the single current advisory request. A new request
// supersedes the previous one: its stage timer and fetch are cancelled and
// any late result is discarded.
type Lifecycle struct {
	fetcher       Fetcher
	log           zerolog.Logger
	stageInterval time.Duration
	timeout       time.Duration
	fallback      func(asset string) *models.AdvisorySignal
	now           func() time.Time

	root       context.Context
	rootCancel context.CancelFunc
	wg         sync.WaitGroup

	mu        sync.Mutex
	state     State
	cancel    context.CancelFunc
	listeners []func(State)
}

// New creates an idle lifecycle.
func New(fetcher Fetcher, log zerolog.Logger, opts ...Option) *Lifecycle {
	root, cancel := context.WithCancel(context.Background())
	l := &Lifecycle{
		fetcher:       fetcher,
		log:           log.With().Str("component", "advisory").Logger(),
		stageInterval: 500 * time.Millisecond,
		timeout:       12 * time.Second,
		fallback:      Fallback,
		now:           time.Now,
		root:          root,
		rootCancel:    cancel,
		state:         State{Phase: PhaseIdle},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// OnChange registers a listener called after every transition.
func (l *Lifecycle) OnChange(fn func(State)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// Snapshot returns the current state.
func (l *Lifecycle) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Request starts a new advisory request for inst and returns its
// generation. Requests after Close are ignored and return 0.
func (l *Lifecycle) Request(inst models.Instrument) uint64 {
	l.mu.Lock()
	if l.root.Err() != nil {
		l.mu.Unlock()
		return 0
	}
	if l.cancel != nil {
		l.cancel()
	}

	gen := l.state.Generation + 1
	ctx, cancel := context.WithTimeout(l.root, l.timeout)
	l.cancel = cancel
	l.state = State{
		Phase:      PhaseInProgress,
		Generation: gen,
		Version:    l.state.Version,
		Instrument: inst,
		Stage:      0,
		StageLabel: StageLabels[0],
		StartedAt:  l.now(),
	}
	st, listeners := l.commitLocked()
	l.wg.Add(2)
	l.mu.Unlock()

	metrics.RecordAdvisoryRequest()
	l.log.Info().Str("symbol", inst.Symbol).Uint64("generation", gen).Msg("Advisory requested")
	notify(listeners, st)

	go l.runStages(ctx, gen)
	go l.runFetch(ctx, gen, inst)
	return gen
}

// Close cancels the current request and waits for its goroutines.
func (l *Lifecycle) Close() {
	l.mu.Lock()
	l.rootCancel()
	l.mu.Unlock()
	l.wg.Wait()
}

func (l *Lifecycle) runStages(ctx context.Context, gen uint64) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.stageInterval)
	defer ticker.Stop()

	last := len(StageLabels) - 1
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		l.mu.Lock()
		if l.state.Generation != gen || l.state.Phase != PhaseInProgress {
			l.mu.Unlock()
			return
		}
		if l.state.Stage >= last {
			l.mu.Unlock()
			return
		}
		l.state.Stage++
		l.state.StageLabel = StageLabels[l.state.Stage]
		st, listeners := l.commitLocked()
		l.mu.Unlock()

		notify(listeners, st)
	}
}

func (l *Lifecycle) runFetch(ctx context.Context, gen uint64, inst models.Instrument) {
	defer l.wg.Done()

	sig, err := l.fetcher.GenerateAdvisory(ctx, inst)
	if err == nil && sig == nil {
		err = ai.ErrEmptyResponse
	}

	l.mu.Lock()
	if l.root.Err() != nil {
		l.mu.Unlock()
		return
	}
	if l.state.Generation != gen || l.state.Phase != PhaseInProgress {
		l.mu.Unlock()
		metrics.RecordAdvisorySuperseded()
		l.log.Debug().Str("symbol", inst.Symbol).Uint64("generation", gen).Msg("Discarding superseded advisory result")
		return
	}

	l.state.SettledAt = l.now()
	l.state.StageLabel = ""
	if err == nil {
		out := *sig
		if out.Asset == "" {
			out.Asset = inst.Symbol
		}
		l.state.Phase = PhaseResolved
		l.state.Signal = &out
	} else {
		l.state.Reason = classify(err)
		if l.fallback != nil {
			l.state.Phase = PhaseDegraded
			l.state.Signal = l.fallback(inst.Symbol)
		} else {
			l.state.Phase = PhaseFailed
		}
	}
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	st, listeners := l.commitLocked()
	l.mu.Unlock()

	metrics.RecordAdvisoryOutcome(string(st.Phase), string(st.Reason))
	if err != nil {
		l.log.Warn().Err(err).Str("symbol", inst.Symbol).Str("reason", string(st.Reason)).Msg("Advisory degraded")
	} else {
		l.log.Info().Str("symbol", inst.Symbol).Str("action", string(st.Signal.Action)).Msg("Advisory resolved")
	}
	notify(listeners, st)
}

// commitLocked bumps the version and returns what to notify.
func (l *Lifecycle) commitLocked() (State, []func(State)) {
	l.state.Version++
	return l.state, append([]func(State){}, l.listeners...)
}

func notify(listeners []func(State), st State) {
	for _, fn := range listeners {
		fn(st)
	}
}

func classify(err error) Reason {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, ai.ErrMalformedResponse):
		return ReasonMalformedResponse
	case errors.Is(err, ai.ErrEmptyResponse):
		return ReasonEmptyResponse
	default:
		return ReasonNetworkFailure
	}
}
