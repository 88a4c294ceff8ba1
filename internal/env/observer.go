package env

import (
	"sync"

	"crypto-trading-env/internal/market"
)

// WindowObserver keeps the trailing window of one symbol's row vectors.
// It subscribes to the market like a trade does; every timestamp update
// pushes the symbol's current row into the window.
type WindowObserver struct {
	symbol       string
	size         int
	featureNames []string

	mu   sync.Mutex
	rows [][]float64
}

func NewWindowObserver(symbol string, size int, featureNames []string) *WindowObserver {
	return &WindowObserver{
		symbol:       symbol,
		size:         size,
		featureNames: append([]string(nil), featureNames...),
	}
}

// Update implements market.Observer.
func (w *WindowObserver) Update(slice market.Slice) {
	row, ok := slice.Rows[w.symbol]
	if !ok {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = append(w.rows, row.Vector(w.featureNames))
	if len(w.rows) > w.size {
		w.rows = w.rows[1:]
	}
}

// Done implements market.Observer. The window lives for the whole episode.
func (w *WindowObserver) Done() bool { return false }

// Full reports whether the window holds size rows.
func (w *WindowObserver) Full() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.rows) >= w.size
}

// Len returns the number of buffered rows.
func (w *WindowObserver) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.rows)
}

// Observe returns a copy of the current window, oldest row first.
func (w *WindowObserver) Observe() [][]float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([][]float64, len(w.rows))
	for i, r := range w.rows {
		out[i] = append([]float64(nil), r...)
	}
	return out
}

// Clear empties the window for a new episode.
func (w *WindowObserver) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = nil
}

// Cols returns the width of each row vector.
func (w *WindowObserver) Cols() int { return 6 + len(w.featureNames) }
