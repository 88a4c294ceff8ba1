package market

import "fmt"

// Feed serves lookback windows from a frame. A window is the contiguous
// run of slices ending at a given timestamp; gaps in the lattice are
// errors.
type Feed struct {
	frame *Frame
}

func NewFeed(frame *Frame) *Feed {
	return &Feed{frame: frame}
}

// Window returns the lookback+1 slices from ts-lookback*step through ts,
// oldest first. It errors when the window leaves the data range or any
// symbol misses a timestamp inside it.
func (f *Feed) Window(ts int64, lookback int) ([]Slice, error) {
	if lookback < 0 {
		return nil, fmt.Errorf("negative lookback %d", lookback)
	}
	step := f.frame.Timeframe().Millis()
	start := ts - int64(lookback)*step

	lattice := f.frame.Timestamps()
	if len(lattice) == 0 {
		return nil, fmt.Errorf("feed frame is empty")
	}
	if start < lattice[0] {
		return nil, fmt.Errorf("not enough data: window starts before the earliest available bar")
	}
	if ts > lattice[len(lattice)-1] {
		return nil, fmt.Errorf("timestamp %d is out of the data range", ts)
	}

	slices := make([]Slice, 0, lookback+1)
	for cur := start; cur <= ts; cur += step {
		slice := f.frame.Slice(cur)
		for _, sym := range f.frame.Symbols() {
			if _, ok := slice.Rows[sym]; !ok {
				return nil, fmt.Errorf("missing bar for symbol %s at %d", sym, cur)
			}
		}
		slices = append(slices, slice)
	}
	return slices, nil
}
