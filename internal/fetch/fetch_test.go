package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"crypto-trading-env/internal/api"
	"crypto-trading-env/internal/types"
)

const hourMs = int64(3_600_000)

func testClient(serverURL string) *api.Client {
	return api.NewClient(
		api.WithBaseURL(serverURL),
		api.WithTimeout(5*time.Second),
	)
}

// klineJSON renders one Binance kline array for a flat candle at price p.
func klineJSON(ts int64, p float64) []any {
	s := strconv.FormatFloat(p, 'f', -1, 64)
	return []any{ts, s, s, s, s, "10.5", ts + hourMs - 1}
}

func TestKlinesPagesThroughHistory(t *testing.T) {
	// 5 hourly candles served 2 per page.
	total := 5
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		start, _ := strconv.ParseInt(r.URL.Query().Get("startTime"), 10, 64)
		var page []any
		for ts := start; ts < int64(total)*hourMs && len(page) < 2; ts += hourMs {
			page = append(page, klineJSON(ts, 100+float64(ts/hourMs)))
		}
		json.NewEncoder(w).Encode(page)
	}))
	defer server.Close()

	f := NewBinanceWithClient(testClient(server.URL))
	tf := types.MustTimeframe("1h")
	candles, err := f.Klines(context.Background(), "BTCUSDT", tf, 0, int64(total-1)*hourMs)
	if err != nil {
		t.Fatal(err)
	}
	if len(candles) != total {
		t.Fatalf("candles = %d, want %d", len(candles), total)
	}
	for i, c := range candles {
		if c.Ts != int64(i)*hourMs {
			t.Errorf("candle %d ts = %d, want %d", i, c.Ts, int64(i)*hourMs)
		}
		if !c.Traded {
			t.Errorf("candle %d should be marked traded", i)
		}
	}
	if candles[2].Close != 102 {
		t.Errorf("candle 2 close = %f, want 102", candles[2].Close)
	}
	if requests < 3 {
		t.Errorf("requests = %d, expected paging", requests)
	}
}

func TestKlinesStopsAtUntil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var page []any
		for ts := int64(0); ts < 10*hourMs; ts += hourMs {
			page = append(page, klineJSON(ts, 100))
		}
		json.NewEncoder(w).Encode(page)
	}))
	defer server.Close()

	f := NewBinanceWithClient(testClient(server.URL))
	candles, err := f.Klines(context.Background(), "BTCUSDT", types.MustTimeframe("1h"), 0, 2*hourMs)
	if err != nil {
		t.Fatal(err)
	}
	if len(candles) != 3 {
		t.Fatalf("candles = %d, want 3", len(candles))
	}
}

func TestKlinesStopsOnEmptyPage(t *testing.T) {
	// History ends after 2 candles; later pages come back empty.
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		start, _ := strconv.ParseInt(r.URL.Query().Get("startTime"), 10, 64)
		page := []any{}
		for ts := start; ts < 2*hourMs; ts += hourMs {
			page = append(page, klineJSON(ts, 100))
		}
		json.NewEncoder(w).Encode(page)
	}))
	defer server.Close()

	f := NewBinanceWithClient(testClient(server.URL))
	candles, err := f.Klines(context.Background(), "BTCUSDT", types.MustTimeframe("1h"), 0, 10*hourMs)
	if err != nil {
		t.Fatal(err)
	}
	if len(candles) != 2 {
		t.Fatalf("candles = %d, want 2", len(candles))
	}
	if requests != 2 {
		t.Errorf("requests = %d, want paging to stop after the empty page", requests)
	}
}

func TestValidateSymbols(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"symbols":[{"symbol":"BTCUSDT","status":"TRADING"},{"symbol":"OLDUSDT","status":"BREAK"}]}`)
	}))
	defer server.Close()

	f := NewBinanceWithClient(testClient(server.URL))
	ctx := context.Background()

	if err := f.ValidateSymbols(ctx, []string{"BTCUSDT"}); err != nil {
		t.Errorf("trading symbol rejected: %v", err)
	}
	if err := f.ValidateSymbols(ctx, []string{"OLDUSDT"}); err == nil {
		t.Error("non-trading symbol accepted")
	}
	if err := f.ValidateSymbols(ctx, []string{"NOPEUSDT"}); err == nil {
		t.Error("unknown symbol accepted")
	}
}

func TestFirstCandleTs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]any{klineJSON(7*hourMs, 100)})
	}))
	defer server.Close()

	f := NewBinanceWithClient(testClient(server.URL))
	ts, err := f.FirstCandleTs(context.Background(), "BTCUSDT", types.MustTimeframe("1h"))
	if err != nil {
		t.Fatal(err)
	}
	if ts != 7*hourMs {
		t.Errorf("first candle ts = %d, want %d", ts, 7*hourMs)
	}
}

func tradedCandle(ts int64, close float64) types.Candle {
	return types.Candle{Ts: ts, Open: close, High: close + 1, Low: close - 1, Close: close, Vol: 5, Traded: true}
}

func TestBuildFrameFillsGaps(t *testing.T) {
	tf := types.MustTimeframe("1h")
	series := map[string][]types.Candle{
		// ETH misses the bar at 1h.
		"BTCUSDT": {tradedCandle(0, 100), tradedCandle(hourMs, 101), tradedCandle(2*hourMs, 102)},
		"ETHUSDT": {tradedCandle(0, 10), tradedCandle(2*hourMs, 12)},
	}

	frame, err := BuildFrame(series, tf, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(frame.Timestamps()); got != 3 {
		t.Fatalf("lattice size = %d, want 3", got)
	}

	row, ok := frame.Row("ETHUSDT", hourMs)
	if !ok {
		t.Fatal("filled bar missing")
	}
	if row.Candle.Traded {
		t.Error("filled bar should not be marked traded")
	}
	if row.Candle.Close != 10 || row.Candle.Open != 10 || row.Candle.Vol != 0 {
		t.Errorf("filled bar = %+v, want flat previous close with zero volume", row.Candle)
	}

	if err := frame.Validate(); err != nil {
		t.Errorf("dense frame failed validation: %v", err)
	}
}

func TestBuildFrameDropsIndicatorWarmup(t *testing.T) {
	tf := types.MustTimeframe("1h")
	candles := make([]types.Candle, 10)
	for i := range candles {
		candles[i] = tradedCandle(int64(i)*hourMs, 100+float64(i))
	}
	series := map[string][]types.Candle{"BTCUSDT": candles}

	ind := &IndicatorConfig{SMAPeriod: 4}
	frame, err := BuildFrame(series, tf, ind)
	if err != nil {
		t.Fatal(err)
	}

	// SMA(4) is defined from index 3 on, so three rows are dropped.
	if got := len(frame.Timestamps()); got != 7 {
		t.Fatalf("rows after warmup drop = %d, want 7", got)
	}
	first, _ := frame.Row("BTCUSDT", frame.Timestamps()[0])
	sma := first.Features["sma_4"]
	if math.IsNaN(sma) {
		t.Fatal("first surviving row still has NaN feature")
	}
	if want := (100.0 + 101 + 102 + 103) / 4; sma != want {
		t.Errorf("sma_4 = %f, want %f", sma, want)
	}
}

func TestIndicatorFeatureNames(t *testing.T) {
	ind := IndicatorConfig{ATRPeriod: 24, SMAPeriod: 20, EMAPeriod: 50, RSIPeriod: 14, MACDFast: 12, MACDSlow: 26, MACDSignal: 9}
	names := ind.FeatureNames()
	want := []string{"atr_24", "sma_20", "ema_50", "rsi_14", "macd", "macd_signal", "macd_hist"}
	if len(names) != len(want) {
		t.Fatalf("feature names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("feature %d = %s, want %s", i, names[i], want[i])
		}
	}
}

func TestRateLimiterBlocks(t *testing.T) {
	rl := NewRateLimiter(2, 50*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("third token acquired after %v, expected a refill wait", elapsed)
	}
}

func TestRateLimiterHonorsContext(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); err == nil {
		t.Fatal("expected context error with an empty bucket")
	}
}
