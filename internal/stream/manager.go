package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"crypto-trading-env/internal/logger"
	"crypto-trading-env/internal/types"
)

const defaultStreamURL = "wss://stream.binance.com:9443/stream"

// Manager maintains a combined kline websocket subscription and feeds
// incoming candles into a cache. Lost connections are redialed with
// exponential backoff until Stop is called.
type Manager struct {
	baseURL string
	symbols []string
	tf      types.Timeframe
	cache   *Cache

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// Config configures a stream manager.
type Config struct {
	Symbols    []string
	Timeframe  types.Timeframe
	BufferSize int
	BaseURL    string // defaults to the Binance combined stream endpoint
}

// NewManager creates a manager. It does not connect until Start.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("no symbols to stream")
	}
	if cfg.Timeframe.IsZero() {
		return nil, fmt.Errorf("stream timeframe is required")
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 200
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultStreamURL
	}
	return &Manager{
		baseURL: cfg.BaseURL,
		symbols: cfg.Symbols,
		tf:      cfg.Timeframe,
		cache:   NewCache(cfg.Symbols, cfg.BufferSize),
	}, nil
}

// URL returns the combined stream URL for the subscription.
func (m *Manager) URL() string {
	streams := make([]string, len(m.symbols))
	for i, sym := range m.symbols {
		streams[i] = strings.ToLower(sym) + "@kline_" + m.tf.String()
	}
	return m.baseURL + "?streams=" + strings.Join(streams, "/")
}

// Start connects and begins reading in the background.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return fmt.Errorf("stream manager already running")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.running = true

	m.wg.Add(1)
	go m.run(runCtx)

	logger.Info(ctx, "Starting kline stream", "symbols", m.symbols, "timeframe", m.tf.String())
	return nil
}

// Stop closes the connection and waits for the reader to exit.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.cancel()
	m.mu.Unlock()

	m.wg.Wait()
	logger.Info(ctx, "Kline stream stopped")
}

// RecentCandles returns the last n cached candles for a symbol.
func (m *Manager) RecentCandles(symbol string, n int) ([]types.Candle, error) {
	return m.cache.Recent(symbol, n)
}

// Cache exposes the underlying candle cache.
func (m *Manager) Cache() *Cache { return m.cache }

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	backoff := time.Second
	const maxBackoff = time.Minute

	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, m.URL(), nil)
		if err != nil {
			logger.Warn(ctx, "Stream dial failed, retrying", "error", err, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		logger.Info(ctx, "Stream connected", "url", m.baseURL)
		backoff = time.Second
		m.readLoop(ctx, conn)
		conn.Close()
	}
}

// readLoop consumes messages until the connection breaks or the context
// is cancelled.
func (m *Manager) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn(ctx, "Stream read failed", "error", err)
			}
			return
		}
		if err := m.handleMessage(message); err != nil {
			logger.Warn(ctx, "Dropping stream message", "error", err)
		}
	}
}

// combinedEvent is one message from the combined stream endpoint.
type combinedEvent struct {
	Stream string `json:"stream"`
	Data   struct {
		EventType string       `json:"e"`
		Symbol    string       `json:"s"`
		Kline     klinePayload `json:"k"`
	} `json:"data"`
}

type klinePayload struct {
	OpenTime int64  `json:"t"`
	Open     string `json:"o"`
	High     string `json:"h"`
	Low      string `json:"l"`
	Close    string `json:"c"`
	Volume   string `json:"v"`
	Closed   bool   `json:"x"`
}

func (m *Manager) handleMessage(message []byte) error {
	var event combinedEvent
	if err := json.Unmarshal(message, &event); err != nil {
		return fmt.Errorf("malformed stream message: %w", err)
	}
	if event.Data.EventType != "kline" {
		return nil
	}

	candle, err := event.Data.Kline.toCandle()
	if err != nil {
		return fmt.Errorf("malformed kline payload for %s: %w", event.Data.Symbol, err)
	}
	m.cache.Upsert(event.Data.Symbol, candle)
	return nil
}

// toCandle converts a kline payload. Traded tracks the exchange's Closed
// flag, so an in-progress bar stays unmarked until its final update.
func (k klinePayload) toCandle() (types.Candle, error) {
	c := types.Candle{Ts: k.OpenTime, Traded: k.Closed}
	fields := []struct {
		raw string
		dst *float64
	}{
		{k.Open, &c.Open},
		{k.High, &c.High},
		{k.Low, &c.Low},
		{k.Close, &c.Close},
		{k.Volume, &c.Vol},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return c, err
		}
		*f.dst = v
	}
	return c, nil
}
