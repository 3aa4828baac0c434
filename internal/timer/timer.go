// Package timer publishes elapsed wall-clock time to a text sink on a
// fixed cadence.
package timer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// TextSink receives formatted readouts. Writes come from the timer's own
// goroutine.
type TextSink interface {
	SetTimeText(text string)
}

type control int

const (
	controlCancel control = iota
	controlReset
)

// Elapsed counts seconds since Start. Each instance runs at most once.
type Elapsed struct {
	clock    clockwork.Clock
	label    string
	interval time.Duration

	mu      sync.Mutex
	started bool
	start   time.Time

	running  atomic.Bool
	ctrl     chan control
	stopOnce sync.Once
	done     chan struct{}
}

type Option func(*Elapsed)

// WithClock replaces the real clock, for tests.
func WithClock(c clockwork.Clock) Option {
	return func(e *Elapsed) { e.clock = c }
}

func WithLabel(label string) Option {
	return func(e *Elapsed) {
		if label != "" {
			e.label = label
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(e *Elapsed) {
		if d > 0 {
			e.interval = d
		}
	}
}

func New(opts ...Option) *Elapsed {
	e := &Elapsed{
		clock:    clockwork.NewRealClock(),
		label:    DefaultLabel,
		interval: time.Second,
		ctrl:     make(chan control, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Label returns the readout prefix.
func (e *Elapsed) Label() string {
	return e.label
}

// ZeroText is the readout for no elapsed time.
func (e *Elapsed) ZeroText() string {
	return Text(e.label, 0)
}

// Start records the start instant, writes the zero readout and begins
// ticking. Calls after the first, or after Cancel/Reset, do nothing.
func (e *Elapsed) Start(sink TextSink) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return
	}
	e.started = true

	e.start = e.clock.Now()
	e.running.Store(true)
	ticker := e.clock.NewTicker(e.interval)
	sink.SetTimeText(e.ZeroText())

	go e.loop(sink, ticker)
}

func (e *Elapsed) loop(sink TextSink, ticker clockwork.Ticker) {
	defer close(e.done)
	defer e.running.Store(false)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			// a pending stop wins over a tick that raced with it
			select {
			case c := <-e.ctrl:
				e.finish(sink, c)
				return
			default:
			}
			sink.SetTimeText(Text(e.label, e.clock.Since(e.start)))
		case c := <-e.ctrl:
			e.finish(sink, c)
			return
		}
	}
}

func (e *Elapsed) finish(sink TextSink, c control) {
	if c == controlReset {
		sink.SetTimeText(e.ZeroText())
	}
}

// Cancel stops the loop without touching the readout.
func (e *Elapsed) Cancel() {
	e.stop(controlCancel)
}

// Reset stops the loop; its last write is the zero readout.
func (e *Elapsed) Reset() {
	e.stop(controlReset)
}

func (e *Elapsed) stop(c control) {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		if !e.started {
			e.started = true
			close(e.done)
			return
		}
		e.ctrl <- c
	})
}

// Done is closed once the loop has exited, or at the first Cancel/Reset
// of a timer that never started.
func (e *Elapsed) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until Done is closed.
func (e *Elapsed) Wait() {
	<-e.done
}

func (e *Elapsed) Running() bool {
	return e.running.Load()
}

// Elapsed returns the time since Start, or zero if it never started.
func (e *Elapsed) Elapsed() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.start.IsZero() {
		return 0
	}
	return e.clock.Since(e.start)
}
