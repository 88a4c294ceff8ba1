package market

import "sync"

// Observer receives the market slice each time the market moves to a new
// timestamp. Observers reporting Done are pruned before notification, so a
// finished observer is never updated again.
type Observer interface {
	Update(slice Slice)
	Done() bool
}

// Market replays a frame one timestamp at a time and pushes each slice to
// its observers. It is the hub the clock drives and trades subscribe to.
type Market struct {
	frame *Frame

	mu        sync.Mutex
	ts        int64
	hasTs     bool
	slice     Slice
	observers []Observer
}

func New(frame *Frame) *Market {
	return &Market{frame: frame}
}

// Frame returns the underlying data grid.
func (m *Market) Frame() *Frame { return m.frame }

// UpdateTimestamp moves the market to ts, refreshes the current slice, and
// notifies live observers.
func (m *Market) UpdateTimestamp(ts int64) {
	m.mu.Lock()
	m.ts = ts
	m.hasTs = true
	m.slice = m.frame.Slice(ts)

	// Prune finished observers, then notify the rest.
	live := m.observers[:0]
	for _, o := range m.observers {
		if !o.Done() {
			live = append(live, o)
		}
	}
	m.observers = live
	toNotify := append([]Observer(nil), m.observers...)
	slice := m.slice
	m.mu.Unlock()

	for _, o := range toNotify {
		o.Update(slice)
	}
}

// Current returns the slice at the market's current timestamp.
func (m *Market) Current() (Slice, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slice, m.hasTs
}

// CurrentTs returns the market's current timestamp.
func (m *Market) CurrentTs() (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ts, m.hasTs
}

// Register subscribes an observer and immediately sends it the current
// slice when the market has one.
func (m *Market) Register(o Observer) {
	m.mu.Lock()
	m.observers = append(m.observers, o)
	slice, has := m.slice, m.hasTs
	m.mu.Unlock()

	if has {
		o.Update(slice)
	}
}

// Unregister removes an observer.
func (m *Market) Unregister(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, cur := range m.observers {
		if cur == o {
			m.observers = append(m.observers[:i], m.observers[i+1:]...)
			return
		}
	}
}

// ObserverCount returns the number of live subscriptions.
func (m *Market) ObserverCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.observers)
}

// Reset clears the current timestamp and drops all observers. The frame
// data stays in place.
func (m *Market) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hasTs = false
	m.ts = 0
	m.slice = Slice{}
	m.observers = nil
}
