package types

import (
	"fmt"
	"strconv"
	"time"
)

// Timeframe is a bar interval like "1m", "3h", "1d".
type Timeframe struct {
	value  string
	amount int
	unit   byte
}

var unitMillis = map[byte]int64{
	's': 1000,
	'm': 60 * 1000,
	'h': 60 * 60 * 1000,
	'd': 24 * 60 * 60 * 1000,
}

// ParseTimeframe validates a "<number><s|m|h|d>" interval string.
func ParseTimeframe(s string) (Timeframe, error) {
	if len(s) < 2 {
		return Timeframe{}, fmt.Errorf("invalid timeframe '%s'", s)
	}
	unit := s[len(s)-1]
	if _, ok := unitMillis[unit]; !ok {
		return Timeframe{}, fmt.Errorf("invalid timeframe unit '%c' in '%s'", unit, s)
	}
	amount, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || amount <= 0 {
		return Timeframe{}, fmt.Errorf("invalid timeframe amount in '%s'", s)
	}
	return Timeframe{value: s, amount: amount, unit: unit}, nil
}

// MustTimeframe parses s and panics on error. For tests and fixed defaults.
func MustTimeframe(s string) Timeframe {
	tf, err := ParseTimeframe(s)
	if err != nil {
		panic(err)
	}
	return tf
}

// Millis returns the bar interval in milliseconds.
func (tf Timeframe) Millis() int64 {
	return int64(tf.amount) * unitMillis[tf.unit]
}

// Step returns the bar interval as a duration.
func (tf Timeframe) Step() time.Duration {
	return time.Duration(tf.Millis()) * time.Millisecond
}

func (tf Timeframe) String() string { return tf.value }

// IsZero reports whether the timeframe was never parsed.
func (tf Timeframe) IsZero() bool { return tf.value == "" }
