package display

import (
	"sync"
)

// Mirror keeps the latest snapshot and pushes it to subscribers. Slow
// subscribers miss intermediate snapshots, never the latest one.
type Mirror struct {
	mu     sync.RWMutex
	state  Snapshot
	nextID int
	subs   map[int]chan Snapshot
}

func NewMirror(initial Snapshot) *Mirror {
	return &Mirror{
		state: initial,
		subs:  make(map[int]chan Snapshot),
	}
}

func (m *Mirror) SetTimeText(text string) {
	m.mu.Lock()
	m.state.TimeText = text
	m.publishLocked()
	m.mu.Unlock()
}

func (m *Mirror) SetControl(control Control, p Presentation) {
	m.mu.Lock()
	m.state.Apply(control, p)
	m.publishLocked()
	m.mu.Unlock()
}

// Snapshot returns the latest presentation.
func (m *Mirror) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Subscribe returns a channel that receives the current snapshot and every
// later one. The cancel func must be called to release it.
func (m *Mirror) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = ch
	ch <- m.state
	m.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			close(ch)
			m.mu.Unlock()
		})
	}
	return ch, cancel
}

func (m *Mirror) publishLocked() {
	for _, ch := range m.subs {
		// replace a stale pending snapshot with the newest
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- m.state:
		default:
		}
	}
}
