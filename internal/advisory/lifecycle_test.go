package advisory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"nexus_terminal/internal/ai"
	"nexus_terminal/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetchFunc func(ctx context.Context, inst models.Instrument) (*models.AdvisorySignal, error)

func (f fetchFunc) GenerateAdvisory(ctx context.Context, inst models.Instrument) (*models.AdvisorySignal, error) {
	return f(ctx, inst)
}

func btc() models.Instrument {
	return models.Instrument{Symbol: "BTC", AssetClass: models.AssetClassCrypto}
}

func eth() models.Instrument {
	return models.Instrument{Symbol: "ETH", AssetClass: models.AssetClassCrypto}
}

func signalFor(asset string) *models.AdvisorySignal {
	return &models.AdvisorySignal{
		Asset:      asset,
		Action:     models.ActionSell,
		Confidence: 0.6,
		EntryPrice: decimal.NewFromInt(3000),
	}
}

// recorder collects every notified state.
type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) add(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

// ordered returns the states sorted by Version.
func (r *recorder) ordered() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]State{}, r.states...)
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

func settled(l *Lifecycle) func() bool {
	return func() bool { return l.Snapshot().Settled() || l.Snapshot().Phase == PhaseFailed }
}

func TestRequestResolves(t *testing.T) {
	l := New(fetchFunc(func(ctx context.Context, inst models.Instrument) (*models.AdvisorySignal, error) {
		return signalFor(inst.Symbol), nil
	}), zerolog.Nop())
	defer l.Close()

	assert.Equal(t, PhaseIdle, l.Snapshot().Phase)
	gen := l.Request(eth())
	assert.Equal(t, uint64(1), gen)

	require.Eventually(t, settled(l), time.Second, 5*time.Millisecond)
	st := l.Snapshot()
	assert.Equal(t, PhaseResolved, st.Phase)
	assert.Equal(t, "ETH", st.Signal.Asset)
	assert.Empty(t, st.Reason)
}

func TestLateResultOfSupersededRequestIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	l := New(fetchFunc(func(ctx context.Context, inst models.Instrument) (*models.AdvisorySignal, error) {
		if inst.Symbol == "BTC" {
			<-release // Ignores cancellation to model a late reply
			return signalFor("BTC"), nil
		}
		return signalFor(inst.Symbol), nil
	}), zerolog.Nop())

	first := l.Request(btc())
	second := l.Request(eth())
	assert.Greater(t, second, first)

	require.Eventually(t, settled(l), time.Second, 5*time.Millisecond)
	before := l.Snapshot()

	close(release)
	l.Close()

	after := l.Snapshot()
	assert.Equal(t, before, after)
	assert.Equal(t, "ETH", after.Signal.Asset)
	assert.Equal(t, second, after.Generation)
}

func TestSupersededRequestContextIsCancelled(t *testing.T) {
	cancelled := make(chan error, 1)
	l := New(fetchFunc(func(ctx context.Context, inst models.Instrument) (*models.AdvisorySignal, error) {
		if inst.Symbol == "BTC" {
			<-ctx.Done()
			cancelled <- ctx.Err()
			return nil, ctx.Err()
		}
		return signalFor(inst.Symbol), nil
	}), zerolog.Nop())
	defer l.Close()

	l.Request(btc())
	l.Request(eth())

	select {
	case err := <-cancelled:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("previous fetch was not cancelled")
	}
	require.Eventually(t, settled(l), time.Second, 5*time.Millisecond)
	assert.Equal(t, PhaseResolved, l.Snapshot().Phase)
}

func TestStagesAdvanceMonotonicallyAndCap(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	l := New(fetchFunc(func(ctx context.Context, inst models.Instrument) (*models.AdvisorySignal, error) {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil, ctx.Err()
	}), zerolog.Nop(), WithStageInterval(2*time.Millisecond), WithTimeout(time.Minute))
	defer l.Close()

	rec := &recorder{}
	l.OnChange(rec.add)

	gen := l.Request(btc())
	last := len(StageLabels) - 1
	require.Eventually(t, func() bool { return l.Snapshot().Stage == last }, time.Second, 2*time.Millisecond)

	// Extra ticks past the cap change nothing.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, last, l.Snapshot().Stage)

	prev := -1
	for _, st := range rec.ordered() {
		require.Equal(t, gen, st.Generation)
		assert.GreaterOrEqual(t, st.Stage, prev)
		assert.LessOrEqual(t, st.Stage, last)
		assert.Equal(t, StageLabels[st.Stage], st.StageLabel)
		prev = st.Stage
	}

	l.Request(eth())
	assert.Equal(t, 0, l.Snapshot().Stage)
}

func TestFailingServiceDegradesToFallback(t *testing.T) {
	l := New(fetchFunc(func(ctx context.Context, inst models.Instrument) (*models.AdvisorySignal, error) {
		return nil, fmt.Errorf("%w: connection refused", ai.ErrNetwork)
	}), zerolog.Nop())
	defer l.Close()

	l.Request(btc())
	require.Eventually(t, settled(l), time.Second, 5*time.Millisecond)

	st := l.Snapshot()
	assert.Equal(t, PhaseDegraded, st.Phase)
	assert.Equal(t, ReasonNetworkFailure, st.Reason)
	require.NotNil(t, st.Signal)
	assert.Equal(t, "BTC", st.Signal.Asset)
	assert.Equal(t, models.ActionBuy, st.Signal.Action)
	assert.True(t, st.Signal.EntryPrice.Equal(decimal.NewFromInt(91240)))
	assert.False(t, st.Signal.HedgeActive)
}

func TestDegradedReasons(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Reason
	}{
		{"network", ai.ErrNetwork, ReasonNetworkFailure},
		{"not configured", ai.ErrNotConfigured, ReasonNetworkFailure},
		{"malformed", fmt.Errorf("%w: bad json", ai.ErrMalformedResponse), ReasonMalformedResponse},
		{"empty", ai.ErrEmptyResponse, ReasonEmptyResponse},
		{"nil signal", nil, ReasonEmptyResponse},
		{"deadline", fmt.Errorf("%w: %w", ai.ErrNetwork, context.DeadlineExceeded), ReasonTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(fetchFunc(func(ctx context.Context, inst models.Instrument) (*models.AdvisorySignal, error) {
				return nil, tt.err
			}), zerolog.Nop())
			defer l.Close()

			l.Request(eth())
			require.Eventually(t, settled(l), time.Second, 5*time.Millisecond)
			st := l.Snapshot()
			assert.Equal(t, PhaseDegraded, st.Phase)
			assert.Equal(t, tt.want, st.Reason)
			assert.Equal(t, "ETH", st.Signal.Asset)
		})
	}
}

func TestTimeout(t *testing.T) {
	l := New(fetchFunc(func(ctx context.Context, inst models.Instrument) (*models.AdvisorySignal, error) {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %w", ai.ErrNetwork, ctx.Err())
	}), zerolog.Nop(), WithTimeout(20*time.Millisecond))
	defer l.Close()

	l.Request(btc())
	require.Eventually(t, settled(l), time.Second, 5*time.Millisecond)
	assert.Equal(t, ReasonTimeout, l.Snapshot().Reason)
}

func TestWithoutFallbackFails(t *testing.T) {
	l := New(fetchFunc(func(ctx context.Context, inst models.Instrument) (*models.AdvisorySignal, error) {
		return nil, errors.New("down")
	}), zerolog.Nop(), WithFallback(nil))
	defer l.Close()

	l.Request(btc())
	require.Eventually(t, settled(l), time.Second, 5*time.Millisecond)
	st := l.Snapshot()
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.Nil(t, st.Signal)
	assert.False(t, st.Settled())
}

func TestVersionsAreUnique(t *testing.T) {
	l := New(fetchFunc(func(ctx context.Context, inst models.Instrument) (*models.AdvisorySignal, error) {
		return signalFor(inst.Symbol), nil
	}), zerolog.Nop())
	rec := &recorder{}
	l.OnChange(rec.add)

	for i := 0; i < 5; i++ {
		l.Request(btc())
	}
	require.Eventually(t, settled(l), time.Second, 5*time.Millisecond)
	l.Close()

	seen := map[uint64]bool{}
	for _, st := range rec.ordered() {
		assert.False(t, seen[st.Version], "duplicate version %d", st.Version)
		seen[st.Version] = true
	}
	final := rec.ordered()[len(rec.ordered())-1]
	assert.Equal(t, uint64(5), final.Generation)
	assert.Equal(t, PhaseResolved, final.Phase)
}

func TestRequestAfterCloseIsIgnored(t *testing.T) {
	l := New(fetchFunc(func(ctx context.Context, inst models.Instrument) (*models.AdvisorySignal, error) {
		return signalFor(inst.Symbol), nil
	}), zerolog.Nop())
	l.Close()

	assert.Equal(t, uint64(0), l.Request(btc()))
	assert.Equal(t, PhaseIdle, l.Snapshot().Phase)
}

func TestFallbackHedgeFlag(t *testing.T) {
	sig := Fallback("SOL")
	assert.Equal(t, "SOL", sig.Asset)
	assert.Equal(t, "M15", sig.Timeframe)
	assert.Equal(t, "0.85", sig.PositionSize.String())
	assert.False(t, sig.HedgeActive)
}
