package news

import (
	"context"
	"testing"
	"time"

	"nexus_terminal/internal/scheduler"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvanceWrapsModuloLength(t *testing.T) {
	headlines := []string{"a", "b", "c", "d", "e"}
	for k := 0; k <= 12; k++ {
		r := NewRotator(headlines, zerolog.Nop())
		for i := 0; i < k; i++ {
			r.Advance()
		}
		idx, h := r.Current()
		assert.Equal(t, k%len(headlines), idx, "k=%d", k)
		assert.Equal(t, headlines[k%len(headlines)], h)
	}
}

func TestEmptyListNeverAdvances(t *testing.T) {
	r := NewRotator(nil, zerolog.Nop())
	assert.Equal(t, 0, r.Advance())
	idx, h := r.Current()
	assert.Equal(t, 0, idx)
	assert.Empty(t, h)
}

func TestOnChange(t *testing.T) {
	r := NewRotator([]string{"x", "y"}, zerolog.Nop())
	var got []string
	r.OnChange(func(_ int, h string) { got = append(got, h) })

	r.Advance()
	r.Advance()
	assert.Equal(t, []string{"y", "x"}, got)
}

type captureScheduler struct {
	name     string
	interval time.Duration
	task     scheduler.Task
}

func (c *captureScheduler) Every(name string, interval time.Duration, task scheduler.Task) error {
	c.name, c.interval, c.task = name, interval, task
	return nil
}

func TestStartRegistersRotation(t *testing.T) {
	r := NewRotator([]string{"x", "y"}, zerolog.Nop())
	s := &captureScheduler{}

	require.NoError(t, r.Start(s, 8*time.Second))
	assert.Equal(t, "news-rotation", s.name)
	assert.Equal(t, 8*time.Second, s.interval)

	require.NoError(t, s.task(context.Background()))
	idx, _ := r.Current()
	assert.Equal(t, 1, idx)
}
