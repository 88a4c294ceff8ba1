package env

import (
	"context"
	"math"
	"testing"

	"crypto-trading-env/internal/broker"
	"crypto-trading-env/internal/market"
	"crypto-trading-env/internal/types"
)

const minuteMs = int64(60_000)

// rig builds a one-symbol market with n one-minute bars whose closes
// follow the given prices, wired to a clock and broker.
func rig(t *testing.T, closes []float64) (*market.Clock, *market.Market, *broker.Broker) {
	t.Helper()
	tf := types.MustTimeframe("1m")
	f := market.NewFrame(tf, nil)
	for i, c := range closes {
		f.Append("BTCUSDT", market.Row{Candle: types.Candle{
			Ts:     int64(i) * minuteMs,
			Open:   c,
			High:   c + 0.5,
			Low:    c - 0.5,
			Close:  c,
			Vol:    10,
			Traded: true,
		}})
	}
	m := market.New(f)
	c, err := market.NewClock(0, int64(len(closes)-1)*minuteMs, tf)
	if err != nil {
		t.Fatal(err)
	}
	c.Register(m)
	return c, m, broker.New(m, 0)
}

func defaultConfig() Config {
	return Config{
		Symbol:     "BTCUSDT",
		WindowSize: 3,
		Quantity:   1,
		Leverage:   1,
		StopLoss:   0.02,
		RiskReward: 1.5,
		Discount:   0.9,
	}
}

func TestEnvResetFillsWindow(t *testing.T) {
	clock, m, brk := rig(t, []float64{100, 101, 102, 103, 104, 105})
	e, err := New(clock, m, brk, defaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	obs, err := e.Reset(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(obs) != 3 {
		t.Fatalf("window rows = %d, want 3", len(obs))
	}
	if len(obs[0]) != 6 {
		t.Fatalf("row width = %d, want 6 (no features)", len(obs[0]))
	}
	// Window covers the first three bars; clock sits on the last of them.
	if obs[0][4] != 100 || obs[2][4] != 102 {
		t.Errorf("window closes = %f..%f, want 100..102", obs[0][4], obs[2][4])
	}
	if clock.Now() != 2*minuteMs {
		t.Errorf("clock after reset = %d, want %d", clock.Now(), 2*minuteMs)
	}
}

func TestEnvRejectsShortDataset(t *testing.T) {
	clock, m, brk := rig(t, []float64{100, 101})
	cfg := defaultConfig()
	cfg.WindowSize = 5
	if _, err := New(clock, m, brk, cfg); err == nil {
		t.Fatal("expected error for a dataset shorter than the window")
	}
}

func TestEnvStepAdvancesWindow(t *testing.T) {
	clock, m, brk := rig(t, []float64{100, 101, 102, 103, 104, 105})
	e, err := New(clock, m, brk, defaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := e.Reset(ctx); err != nil {
		t.Fatal(err)
	}

	step, err := e.Step(ctx, ActionHold)
	if err != nil {
		t.Fatal(err)
	}
	if step.Ts != 3*minuteMs {
		t.Errorf("step ts = %d, want %d", step.Ts, 3*minuteMs)
	}
	if len(step.Observation) != 3 {
		t.Fatalf("observation rows = %d, want 3", len(step.Observation))
	}
	if step.Observation[2][4] != 103 {
		t.Errorf("latest close = %f, want 103", step.Observation[2][4])
	}
	if step.Reward != 0 {
		t.Errorf("hold with no trades rewarded %f, want 0", step.Reward)
	}
	if step.Done {
		t.Error("episode should not be done yet")
	}
}

func TestEnvRunsToDone(t *testing.T) {
	clock, m, brk := rig(t, []float64{100, 101, 102, 103, 104, 105})
	e, err := New(clock, m, brk, defaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := e.Reset(ctx); err != nil {
		t.Fatal(err)
	}

	steps := 0
	for {
		step, err := e.Step(ctx, ActionHold)
		if err != nil {
			t.Fatal(err)
		}
		steps++
		if step.Done {
			break
		}
	}
	// Six bars, three consumed by the window: three steps remain.
	if steps != 3 {
		t.Errorf("steps to done = %d, want 3", steps)
	}
	if _, err := e.Step(ctx, ActionHold); err == nil {
		t.Fatal("expected error stepping a finished episode")
	}
}

func TestEnvRewardTracksClosedTrades(t *testing.T) {
	// A long opened at 100 rides up; take profit at 103 (2% stop, rr 1.5)
	// is touched by the bar with high 103.5.
	clock, m, brk := rig(t, []float64{100, 100, 100, 100, 103, 103})
	e, err := New(clock, m, brk, defaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := e.Reset(ctx); err != nil {
		t.Fatal(err)
	}

	// Open a long at the current bar (close 100).
	step, err := e.Step(ctx, ActionLong)
	if err != nil {
		t.Fatal(err)
	}
	if step.Reward != 0 {
		t.Errorf("reward before close = %f, want 0", step.Reward)
	}
	if step.Info["open_trades"].(int) != 1 {
		t.Errorf("open trades = %v, want 1", step.Info["open_trades"])
	}

	// Next bar closes the trade at the 103 take profit.
	step, err = e.Step(ctx, ActionHold)
	if err != nil {
		t.Fatal(err)
	}
	wantReward := (103.0 - 100.0) / 100.0
	if math.Abs(step.Reward-wantReward) > 1e-9 {
		t.Errorf("reward on close = %f, want %f", step.Reward, wantReward)
	}
	if step.Info["closed_trades"].(int) != 1 {
		t.Errorf("closed trades = %v, want 1", step.Info["closed_trades"])
	}

	// Reward is a delta: already-closed trades pay nothing again.
	step, err = e.Step(ctx, ActionHold)
	if err != nil {
		t.Fatal(err)
	}
	if step.Reward != 0 {
		t.Errorf("reward after close = %f, want 0", step.Reward)
	}
}

func TestEnvRejectsInvalidAction(t *testing.T) {
	clock, m, brk := rig(t, []float64{100, 101, 102, 103})
	e, err := New(clock, m, brk, defaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := e.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Step(ctx, 7); err == nil {
		t.Fatal("expected error for out-of-space action")
	}
}

func TestEnvStepBeforeReset(t *testing.T) {
	clock, m, brk := rig(t, []float64{100, 101, 102, 103})
	e, err := New(clock, m, brk, defaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Step(context.Background(), ActionHold); err == nil {
		t.Fatal("expected error stepping before reset")
	}
}

func TestEnvUnknownSymbol(t *testing.T) {
	clock, m, brk := rig(t, []float64{100, 101})
	cfg := defaultConfig()
	cfg.Symbol = "DOGEUSDT"
	if _, err := New(clock, m, brk, cfg); err == nil {
		t.Fatal("expected error for symbol missing from the frame")
	}
}

func TestEnvResetStartsFreshEpisode(t *testing.T) {
	clock, m, brk := rig(t, []float64{100, 100, 100, 100, 103, 103})
	e, err := New(clock, m, brk, defaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := e.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Step(ctx, ActionLong); err != nil {
		t.Fatal(err)
	}

	obs, err := e.Reset(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(brk.Trades()) != 0 {
		t.Error("broker should be empty after reset")
	}
	if obs[0][4] != 100 {
		t.Errorf("first window close = %f, want 100", obs[0][4])
	}
}
