package stream

import (
	"fmt"
	"sync"

	"crypto-trading-env/internal/types"
)

// Cache keeps a bounded buffer of recent candles per symbol. Kline
// events update the open bar in place until the exchange closes it, so
// an incoming candle with the buffer's newest timestamp replaces that
// entry instead of appending.
type Cache struct {
	mu      sync.RWMutex
	buffers map[string]*candleBuffer
}

type candleBuffer struct {
	candles []types.Candle
	maxSize int
}

// NewCache creates a cache tracking the given symbols, each bounded to
// maxSize candles.
func NewCache(symbols []string, maxSize int) *Cache {
	buffers := make(map[string]*candleBuffer, len(symbols))
	for _, sym := range symbols {
		buffers[sym] = &candleBuffer{maxSize: maxSize}
	}
	return &Cache{buffers: buffers}
}

// Upsert adds or refreshes a candle. Candles for untracked symbols are
// dropped.
func (c *Cache) Upsert(symbol string, candle types.Candle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	buffer, ok := c.buffers[symbol]
	if !ok {
		return
	}

	if n := len(buffer.candles); n > 0 && buffer.candles[n-1].Ts == candle.Ts {
		buffer.candles[n-1] = candle
		return
	}

	buffer.candles = append(buffer.candles, candle)
	if len(buffer.candles) > buffer.maxSize {
		buffer.candles = buffer.candles[1:]
	}
}

// Recent returns the last n candles for a symbol, oldest first. Fewer
// are returned when the buffer has not filled yet.
func (c *Cache) Recent(symbol string, n int) ([]types.Candle, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	buffer, ok := c.buffers[symbol]
	if !ok {
		return nil, fmt.Errorf("no candle data for symbol %s", symbol)
	}
	candles := buffer.candles
	if len(candles) == 0 {
		return nil, fmt.Errorf("no candles available for %s", symbol)
	}
	if len(candles) > n {
		candles = candles[len(candles)-n:]
	}
	out := make([]types.Candle, len(candles))
	copy(out, candles)
	return out, nil
}

// Len reports how many candles are buffered for a symbol.
func (c *Cache) Len(symbol string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	buffer, ok := c.buffers[symbol]
	if !ok {
		return 0
	}
	return len(buffer.candles)
}
