package market

import (
	"fmt"
	"sort"

	"crypto-trading-env/internal/types"
)

// Row is one bar for one symbol: the candle plus any indicator features.
type Row struct {
	Candle   types.Candle
	Features map[string]float64
}

// Vector flattens the row into the feature order used for observations:
// traded flag, OHLCV, then the named features in the frame's order.
func (r Row) Vector(featureNames []string) []float64 {
	v := make([]float64, 0, 6+len(featureNames))
	traded := 0.0
	if r.Candle.Traded {
		traded = 1.0
	}
	v = append(v, traded, r.Candle.Open, r.Candle.High, r.Candle.Low, r.Candle.Close, r.Candle.Vol)
	for _, name := range featureNames {
		v = append(v, r.Features[name])
	}
	return v
}

// Slice is the market data for all symbols at a single timestamp.
type Slice struct {
	Ts   int64
	Rows map[string]Row
}

// Frame is a dense grid of rows indexed by symbol and timestamp: every
// symbol carries a row for every timestamp on the timeframe lattice.
type Frame struct {
	timeframe    types.Timeframe
	featureNames []string
	symbols      []string
	timestamps   []int64
	rows         map[string]map[int64]Row
}

// NewFrame creates an empty frame for the given bar interval. featureNames
// fixes the order of indicator columns in observation vectors and datasets.
func NewFrame(tf types.Timeframe, featureNames []string) *Frame {
	return &Frame{
		timeframe:    tf,
		featureNames: append([]string(nil), featureNames...),
		rows:         make(map[string]map[int64]Row),
	}
}

// Append adds a row for a symbol. Rows may arrive in any order; the
// timestamp lattice is rebuilt lazily on access.
func (f *Frame) Append(symbol string, row Row) {
	bySym, ok := f.rows[symbol]
	if !ok {
		bySym = make(map[int64]Row)
		f.rows[symbol] = bySym
		f.symbols = append(f.symbols, symbol)
		sort.Strings(f.symbols)
	}
	if _, seen := bySym[row.Candle.Ts]; !seen {
		f.timestamps = nil // invalidate cached lattice
	}
	bySym[row.Candle.Ts] = row
}

// Symbols returns the symbols in sorted order.
func (f *Frame) Symbols() []string { return f.symbols }

// FeatureNames returns the ordered indicator column names.
func (f *Frame) FeatureNames() []string { return f.featureNames }

// Timeframe returns the bar interval of the grid.
func (f *Frame) Timeframe() types.Timeframe { return f.timeframe }

// Timestamps returns the sorted union of all timestamps in the frame.
func (f *Frame) Timestamps() []int64 {
	if f.timestamps == nil {
		set := make(map[int64]struct{})
		for _, bySym := range f.rows {
			for ts := range bySym {
				set[ts] = struct{}{}
			}
		}
		f.timestamps = make([]int64, 0, len(set))
		for ts := range set {
			f.timestamps = append(f.timestamps, ts)
		}
		sort.Slice(f.timestamps, func(i, j int) bool { return f.timestamps[i] < f.timestamps[j] })
	}
	return f.timestamps
}

// Row returns the row for a symbol at a timestamp.
func (f *Frame) Row(symbol string, ts int64) (Row, bool) {
	bySym, ok := f.rows[symbol]
	if !ok {
		return Row{}, false
	}
	row, ok := bySym[ts]
	return row, ok
}

// Slice returns all symbols' rows at one timestamp. Symbols with no row at
// ts are absent from the result.
func (f *Frame) Slice(ts int64) Slice {
	s := Slice{Ts: ts, Rows: make(map[string]Row, len(f.symbols))}
	for _, sym := range f.symbols {
		if row, ok := f.rows[sym][ts]; ok {
			s.Rows[sym] = row
		}
	}
	return s
}

// Validate checks the density invariant: every symbol has a row at every
// timestamp on the lattice.
func (f *Frame) Validate() error {
	if len(f.symbols) == 0 {
		return fmt.Errorf("frame is empty")
	}
	lattice := f.Timestamps()
	for _, sym := range f.symbols {
		if len(f.rows[sym]) != len(lattice) {
			return fmt.Errorf("symbol %s has %d rows, lattice has %d timestamps", sym, len(f.rows[sym]), len(lattice))
		}
	}
	return nil
}
