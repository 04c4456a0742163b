package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Task is one run of a periodic job.
type Task func(ctx context.Context) error

// Scheduler runs named periodic tasks on a cron instance. Every task gets
// the scheduler's context, which is cancelled by Stop.
type Scheduler struct {
	cron    *cron.Cron
	log     zerolog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	entries map[string]cron.EntryID
	wg      sync.WaitGroup
}

// New creates a scheduler. Call Start to begin firing entries.
func New(log zerolog.Logger) *Scheduler {
	l := log.With().Str("component", "scheduler").Logger()
	cl := cronLogger{log: l}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		log:     l,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
	}
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop cancels the task context and waits for running tasks.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.log.Info().Msg("Scheduler stopped")
}

// Every registers task to run at a fixed interval. Intervals are rounded
// down to whole seconds by cron; anything under a second is rejected.
// Registering a name twice replaces the previous entry.
func (s *Scheduler) Every(name string, interval time.Duration, task Task) error {
	if interval < time.Second {
		return fmt.Errorf("task %s: interval %s is below the 1s cron resolution", name, interval)
	}

	id := s.cron.Schedule(cron.Every(interval), cron.FuncJob(func() { s.run(name, task) }))

	s.mu.Lock()
	if old, ok := s.entries[name]; ok {
		s.cron.Remove(old)
	}
	s.entries[name] = id
	s.mu.Unlock()

	s.log.Info().Str("task", name).Dur("interval", interval).Msg("Task registered")
	return nil
}

// RunNow runs task once in the background, outside its schedule.
func (s *Scheduler) RunNow(name string, task Task) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(name, task)
	}()
}

// remove drops a named task. Runs already in progress finish.
func (s *Scheduler) remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
		delete(s.entries, name)
		s.log.Info().Str("task", name).Msg("Task removed")
	}
}

// Tasks returns the registered task names.
func (s *Scheduler) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for n := range s.entries {
		names = append(names, n)
	}
	return names
}

func (s *Scheduler) run(name string, task Task) {
	if s.ctx.Err() != nil {
		return
	}
	if err := task(s.ctx); err != nil {
		s.log.Error().Err(err).Str("task", name).Msg("Task failed")
		return
	}
	s.log.Debug().Str("task", name).Msg("Task completed")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
