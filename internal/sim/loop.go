package sim

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/san-kum/swarmlab/internal/dynamo"
	"github.com/san-kum/swarmlab/internal/snapshot"
)

// Loop drives an engine on its own goroutine at a fixed tick. Other
// goroutines talk to it through commands, which run between steps, and read
// state through the engine's Publisher.
type Loop struct {
	engine   *Engine
	interval time.Duration
	cmds     chan func(*Engine)
	done     chan struct{}
	stop     sync.Once

	mu     sync.Mutex
	params dynamo.Params

	paused atomic.Bool
	err    atomic.Pointer[error]
}

func NewLoop(e *Engine, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = time.Second / 60
	}
	l := &Loop{
		engine:   e,
		interval: interval,
		cmds:     make(chan func(*Engine), 64),
		done:     make(chan struct{}),
		params:   e.Params(),
	}
	l.paused.Store(e.Frozen())
	return l
}

// Run steps the engine until ctx is done or a step fails. Commands queued
// after Run returns are dropped.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	defer l.stop.Do(func() { close(l.done) })

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.cmds:
			fn(l.engine)
		case <-ticker.C:
			if err := l.engine.Advance(0); err != nil {
				l.err.Store(&err)
				return err
			}
		}
	}
}

// Do queues fn to run on the loop goroutine between steps. It reports
// false, without running fn, once the loop has stopped.
func (l *Loop) Do(fn func(*Engine)) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.cmds <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) Latest() *snapshot.Snapshot { return l.engine.Publisher().Latest() }

// Err is the error that stopped the loop, if any.
func (l *Loop) Err() error {
	if p := l.err.Load(); p != nil {
		return *p
	}
	return nil
}

func (l *Loop) Paused() bool { return l.paused.Load() }

func (l *Loop) TogglePause() {
	frozen := !l.paused.Load()
	l.paused.Store(frozen)
	l.Do(func(e *Engine) { e.SetFrozen(frozen) })
}

// Reset restarts the run from the engine's current seed.
func (l *Loop) Reset() {
	l.Do(func(e *Engine) {
		if err := e.Reset(e.Store().Seed()); err != nil {
			e.logger.Error("reset failed", "err", err)
		}
	})
}

// Params is the latest parameter set handed to the engine.
func (l *Loop) Params() dynamo.Params {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.params
}

// SetParam validates the change here and applies it on the loop goroutine.
// An out of range value is applied clamped and still reported.
func (l *Loop) SetParam(name string, value float64) error {
	l.mu.Lock()
	p := l.params
	err := p.SetParam(name, value)
	if errors.Is(err, dynamo.ErrUnknownParam) {
		l.mu.Unlock()
		return err
	}
	l.params = p
	l.mu.Unlock()

	l.Do(func(e *Engine) { e.SetParams(p) })
	return err
}
