package market

import (
	"errors"

	"crypto-trading-env/internal/types"
)

// ErrClockExhausted is returned by Next when advancing would pass the end
// timestamp.
var ErrClockExhausted = errors.New("clock has reached the end timestamp")

// ClockObserver is notified on every tick and on reset. The market is the
// usual observer.
type ClockObserver interface {
	UpdateTimestamp(ts int64)
	Reset()
}

// Clock walks a start..end range in timeframe steps and drives its
// observers.
type Clock struct {
	start, end int64
	step       int64
	ts         int64
	observers  []ClockObserver
}

// NewClock creates a clock over [start, end] (unix millis) ticking in tf
// steps.
func NewClock(start, end int64, tf types.Timeframe) (*Clock, error) {
	if end < start {
		return nil, errors.New("clock end timestamp precedes start")
	}
	step := tf.Millis()
	if step <= 0 {
		return nil, errors.New("clock timeframe has no step")
	}
	return &Clock{start: start, end: end, step: step, ts: start}, nil
}

// Register subscribes an observer and pushes the current timestamp to it.
func (c *Clock) Register(o ClockObserver) {
	c.observers = append(c.observers, o)
	o.UpdateTimestamp(c.ts)
}

// Next advances the clock one step and notifies observers. Advancing past
// the end timestamp is an error and leaves the clock unchanged.
func (c *Clock) Next() (int64, error) {
	next := c.ts + c.step
	if next > c.end {
		return c.ts, ErrClockExhausted
	}
	c.ts = next
	for _, o := range c.observers {
		o.UpdateTimestamp(c.ts)
	}
	return c.ts, nil
}

// Reset rewinds to the start timestamp, resets all observers, then
// notifies them with the start timestamp.
func (c *Clock) Reset() {
	c.ts = c.start
	for _, o := range c.observers {
		o.Reset()
	}
	for _, o := range c.observers {
		o.UpdateTimestamp(c.ts)
	}
}

// Now returns the current timestamp.
func (c *Clock) Now() int64 { return c.ts }

// AtEnd reports whether the clock has reached the end timestamp.
func (c *Clock) AtEnd() bool { return c.ts >= c.end }

// Step returns the tick size in milliseconds.
func (c *Clock) Step() int64 { return c.step }
