package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"crypto-trading-env/internal/api"
	"crypto-trading-env/internal/logger"
	"crypto-trading-env/internal/types"
)

const (
	binanceBaseURL = "https://api.binance.com"
	klinePageLimit = 1000
)

// BinanceFetcher downloads OHLCV history from the Binance public REST
// API. It needs no API key: klines and exchangeInfo are open endpoints.
type BinanceFetcher struct {
	client  *api.Client
	limiter *RateLimiter
}

// NewBinance creates a fetcher with the shared rate limit for public
// endpoints.
func NewBinance() *BinanceFetcher {
	opts := []api.ClientOption{
		api.WithBaseURL(binanceBaseURL),
		api.WithTimeout(20 * time.Second),
		api.WithLogging(true),
	}
	for k, v := range api.BinanceHeaders() {
		opts = append(opts, api.WithHeader(k, v))
	}
	return &BinanceFetcher{
		client: api.NewClient(opts...),
		// 20 requests burst, refill 10/second. Binance allows far more
		// weight but history pulls do not need it.
		limiter: NewRateLimiter(20, 100*time.Millisecond),
	}
}

// NewBinanceWithClient is used by tests to point the fetcher at a stub
// server.
func NewBinanceWithClient(client *api.Client) *BinanceFetcher {
	return &BinanceFetcher{
		client:  client,
		limiter: NewRateLimiter(100, time.Millisecond),
	}
}

type exchangeInfoResponse struct {
	Symbols []struct {
		Symbol string `json:"symbol"`
		Status string `json:"status"`
	} `json:"symbols"`
}

// ValidateSymbols checks that every symbol exists on the exchange and
// is currently trading.
func (f *BinanceFetcher) ValidateSymbols(ctx context.Context, symbols []string) error {
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols to validate")
	}
	encoded, err := json.Marshal(symbols)
	if err != nil {
		return err
	}
	query := url.Values{}
	query.Set("symbols", string(encoded))

	var resp *api.Response
	err = WithRateLimit(ctx, f.limiter, func() error {
		var reqErr error
		resp, reqErr = f.client.GETWithRetry(ctx, "/api/v3/exchangeInfo", query, nil)
		return reqErr
	})
	if err != nil {
		return fmt.Errorf("exchange info request failed: %w", err)
	}

	var info exchangeInfoResponse
	if err := resp.ParseJSON(&info); err != nil {
		return err
	}

	status := make(map[string]string, len(info.Symbols))
	for _, s := range info.Symbols {
		status[s.Symbol] = s.Status
	}
	for _, sym := range symbols {
		st, ok := status[sym]
		if !ok {
			return fmt.Errorf("symbol %s does not exist on Binance", sym)
		}
		if st != "TRADING" {
			return fmt.Errorf("symbol %s is not trading (status %s)", sym, st)
		}
	}
	return nil
}

// FirstCandleTs returns the open time of the earliest candle Binance
// has for the symbol at the given timeframe.
func (f *BinanceFetcher) FirstCandleTs(ctx context.Context, symbol string, tf types.Timeframe) (int64, error) {
	candles, err := f.klinePage(ctx, symbol, tf, 0, 1)
	if err != nil {
		return 0, err
	}
	if len(candles) == 0 {
		return 0, fmt.Errorf("no candles exist for %s at %s", symbol, tf)
	}
	return candles[0].Ts, nil
}

// Klines fetches candles for [since, until] inclusive, paging through
// the klines endpoint.
func (f *BinanceFetcher) Klines(ctx context.Context, symbol string, tf types.Timeframe, since, until int64) ([]types.Candle, error) {
	if until < since {
		return nil, fmt.Errorf("until %d is before since %d", until, since)
	}

	var all []types.Candle
	cursor := since
	for cursor <= until {
		page, err := f.klinePage(ctx, symbol, tf, cursor, klinePageLimit)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		for _, c := range page {
			if c.Ts > until {
				return all, nil
			}
			if c.Ts >= since {
				all = append(all, c)
			}
		}
		next := page[len(page)-1].Ts + tf.Millis()
		if next <= cursor {
			break
		}
		cursor = next
		logger.Debug(ctx, "Fetched kline page", "symbol", symbol, "candles", len(all), "cursor", cursor)
	}
	return all, nil
}

func (f *BinanceFetcher) klinePage(ctx context.Context, symbol string, tf types.Timeframe, startTime int64, limit int) ([]types.Candle, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("interval", tf.String())
	query.Set("startTime", strconv.FormatInt(startTime, 10))
	query.Set("limit", strconv.Itoa(limit))

	var resp *api.Response
	err := WithRateLimit(ctx, f.limiter, func() error {
		var reqErr error
		resp, reqErr = f.client.GETWithRetry(ctx, "/api/v3/klines", query, nil)
		return reqErr
	})
	if err != nil {
		return nil, fmt.Errorf("klines request for %s failed: %w", symbol, err)
	}

	// Each kline is a mixed-type array:
	// [openTime, open, high, low, close, volume, closeTime, ...]
	var raw [][]json.RawMessage
	if err := resp.ParseJSON(&raw); err != nil {
		return nil, err
	}

	candles := make([]types.Candle, 0, len(raw))
	for _, k := range raw {
		if len(k) < 6 {
			return nil, fmt.Errorf("malformed kline for %s: %d fields", symbol, len(k))
		}
		c, err := parseKline(k)
		if err != nil {
			return nil, fmt.Errorf("malformed kline for %s: %w", symbol, err)
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func parseKline(k []json.RawMessage) (types.Candle, error) {
	var c types.Candle
	if err := json.Unmarshal(k[0], &c.Ts); err != nil {
		return c, err
	}
	fields := []*float64{&c.Open, &c.High, &c.Low, &c.Close, &c.Vol}
	for i, dst := range fields {
		var s string
		if err := json.Unmarshal(k[i+1], &s); err != nil {
			return c, err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return c, err
		}
		*dst = v
	}
	c.Traded = true
	return c, nil
}
