package timer

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu    sync.Mutex
	texts []string
}

func (s *recordingSink) SetTimeText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
}

func (s *recordingSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func (s *recordingSink) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.texts) == 0 {
		return ""
	}
	return s.texts[len(s.texts)-1]
}

// tick advances the fake clock one interval and waits for the readout.
func tick(t *testing.T, clock *clockwork.FakeClock, sink *recordingSink, interval time.Duration, expected string) {
	t.Helper()
	clock.Advance(interval)
	require.Eventually(t, func() bool { return sink.last() == expected },
		time.Second, time.Millisecond, "expected %q, last was %q", expected, sink.last())
}

func waitDone(t *testing.T, e *Elapsed) {
	t.Helper()
	select {
	case <-e.Done():
	case <-time.After(time.Second):
		t.Fatal("timer loop did not exit")
	}
}

func TestElapsed_TicksThenReset(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sink := &recordingSink{}
	e := New(WithClock(clock))

	e.Start(sink)
	assert.True(t, e.Running())
	assert.Equal(t, []string{"Record Time: 00:00:00"}, sink.all())

	tick(t, clock, sink, time.Second, "Record Time: 00:00:01")
	tick(t, clock, sink, time.Second, "Record Time: 00:00:02")
	tick(t, clock, sink, time.Second, "Record Time: 00:00:03")

	e.Reset()
	waitDone(t, e)

	assert.False(t, e.Running())
	assert.Equal(t, []string{
		"Record Time: 00:00:00",
		"Record Time: 00:00:01",
		"Record Time: 00:00:02",
		"Record Time: 00:00:03",
		"Record Time: 00:00:00",
	}, sink.all())
}

func TestElapsed_SixtyFiveSeconds(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sink := &recordingSink{}
	e := New(WithClock(clock))

	e.Start(sink)
	for s := 1; s <= 65; s++ {
		tick(t, clock, sink, time.Second, Text(DefaultLabel, time.Duration(s)*time.Second))
	}

	e.Cancel()
	waitDone(t, e)
	assert.Equal(t, "Record Time: 00:01:05", sink.last())
}

func TestElapsed_CancelLeavesReadout(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sink := &recordingSink{}
	e := New(WithClock(clock))

	e.Start(sink)
	tick(t, clock, sink, time.Second, "Record Time: 00:00:01")

	e.Cancel()
	waitDone(t, e)

	before := sink.all()
	clock.Advance(5 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, sink.all(), "no writes after cancel")
	assert.Equal(t, "Record Time: 00:00:01", sink.last())
}

func TestElapsed_ResetBeforeFirstTick(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sink := &recordingSink{}
	e := New(WithClock(clock))

	e.Start(sink)
	e.Reset()
	waitDone(t, e)

	assert.Equal(t, []string{"Record Time: 00:00:00", "Record Time: 00:00:00"}, sink.all())
}

func TestElapsed_StopIsOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sink := &recordingSink{}
	e := New(WithClock(clock))

	e.Start(sink)
	tick(t, clock, sink, time.Second, "Record Time: 00:00:01")

	e.Cancel()
	e.Reset()
	e.Cancel()
	waitDone(t, e)

	// the first request wins; the later reset does not write
	assert.Equal(t, "Record Time: 00:00:01", sink.last())
}

func TestElapsed_StopBeforeStart(t *testing.T) {
	sink := &recordingSink{}
	e := New(WithClock(clockwork.NewFakeClock()))

	e.Reset()
	waitDone(t, e)

	e.Start(sink)
	assert.Empty(t, sink.all())
	assert.False(t, e.Running())
	assert.Zero(t, e.Elapsed())
}

func TestElapsed_StartTwice(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sink := &recordingSink{}
	e := New(WithClock(clock))

	e.Start(sink)
	e.Start(sink)
	assert.Len(t, sink.all(), 1)

	e.Cancel()
	waitDone(t, e)
}

func TestElapsed_LabelAndInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sink := &recordingSink{}
	e := New(WithClock(clock), WithLabel("Take"), WithInterval(500*time.Millisecond))

	e.Start(sink)
	tick(t, clock, sink, 500*time.Millisecond, "Take: 00:00:00")
	tick(t, clock, sink, 500*time.Millisecond, "Take: 00:00:01")
	assert.Equal(t, time.Second, e.Elapsed())

	e.Reset()
	waitDone(t, e)
	assert.Equal(t, "Take: 00:00:00", sink.last())
}

func TestElapsed_EmptyOptionsKeepDefaults(t *testing.T) {
	e := New(WithLabel(""), WithInterval(0))
	assert.Equal(t, DefaultLabel, e.Label())
	assert.Equal(t, time.Second, e.interval)
}
