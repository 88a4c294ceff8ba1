package trade

import (
	"math"
	"testing"

	"crypto-trading-env/internal/market"
	"crypto-trading-env/internal/types"
)

const minuteMs = int64(60_000)

func bar(ts int64, open, high, low, close float64) market.Slice {
	return market.Slice{
		Ts: ts,
		Rows: map[string]market.Row{
			"BTCUSDT": {Candle: types.Candle{
				Ts: ts, Open: open, High: high, Low: low, Close: close, Vol: 100, Traded: true,
			}},
		},
	}
}

func untradedBar(ts int64) market.Slice {
	return market.Slice{
		Ts:   ts,
		Rows: map[string]market.Row{"BTCUSDT": {Candle: types.Candle{Ts: ts}}},
	}
}

func newLong(t *testing.T, creationTs int64, opts Options) *Trade {
	t.Helper()
	tr, err := New("t1", "BTCUSDT", types.Long, 1, 1, types.MustTimeframe("1m"), creationTs, opts)
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func TestTradeFillsOnExecutionBar(t *testing.T) {
	tr := newLong(t, 0, Options{StopLoss: 0.02, RiskReward: 1.5})

	tr.Update(bar(0, 99, 101, 98, 100))
	if tr.Status() != types.TradeFilled {
		t.Fatalf("status = %s, want filled", tr.Status())
	}
	if tr.FillPrice() != 100 {
		t.Errorf("fill price = %f, want 100 (bar close)", tr.FillPrice())
	}
	sl, ok := tr.StopLossPrice()
	if !ok || math.Abs(sl-98.0) > 1e-9 {
		t.Errorf("stop loss price = %f %v, want 98", sl, ok)
	}
	tp, ok := tr.TakeProfitPrice()
	if !ok || math.Abs(tp-103.0) > 1e-9 {
		t.Errorf("take profit price = %f %v, want 103", tp, ok)
	}
}

func TestTradeRejectedWhenExecutionBarMissed(t *testing.T) {
	tr := newLong(t, 0, Options{})
	tr.Update(bar(minuteMs, 99, 101, 98, 100))
	if tr.Status() != types.TradeRejected {
		t.Fatalf("status = %s, want rejected", tr.Status())
	}
	if !tr.Done() {
		t.Error("rejected trade must report Done")
	}
}

func TestTradeIgnoresUntradedBars(t *testing.T) {
	tr := newLong(t, 0, Options{StopLoss: 0.02})
	tr.Update(untradedBar(0))
	if tr.Status() != types.TradeCreated {
		t.Fatalf("status = %s, want created after untraded execution bar", tr.Status())
	}
	tr.Update(bar(0, 99, 101, 98, 100))
	if tr.Status() != types.TradeFilled {
		t.Fatal("trade should fill once a traded bar arrives at execution ts")
	}
	// An untraded bar with a low below the stop must not close the trade.
	tr.Update(untradedBar(minuteMs))
	if tr.Status() != types.TradeFilled {
		t.Error("untraded bar must not trigger exits")
	}
}

func TestLongStopLossHit(t *testing.T) {
	tr := newLong(t, 0, Options{StopLoss: 0.02, RiskReward: 1.5, Discount: 0.9})
	tr.Update(bar(0, 99, 101, 98.5, 100))

	tr.Update(bar(minuteMs, 100, 100.5, 97.5, 99))
	if tr.Status() != types.TradeClosed {
		t.Fatalf("status = %s, want closed", tr.Status())
	}
	if math.Abs(tr.ClosePrice()-98.0) > 1e-9 {
		t.Errorf("close price = %f, want stop 98", tr.ClosePrice())
	}
	if tr.RealizedPnL() >= 0 {
		t.Errorf("realized pnl = %f, want loss", tr.RealizedPnL())
	}
	wantPct := (98.0 - 100.0) / 100.0
	if math.Abs(tr.RealizedPnLPct()-wantPct) > 1e-9 {
		t.Errorf("pnl pct = %f, want %f", tr.RealizedPnLPct(), wantPct)
	}
	if tr.BarsInTrade() != 2 {
		t.Errorf("bars in trade = %d, want 2", tr.BarsInTrade())
	}
	wantDisc := wantPct * math.Pow(0.9, 2)
	if math.Abs(tr.DiscountedPnLPct()-wantDisc) > 1e-9 {
		t.Errorf("discounted pnl pct = %f, want %f", tr.DiscountedPnLPct(), wantDisc)
	}
}

func TestLongTakeProfitHit(t *testing.T) {
	tr := newLong(t, 0, Options{StopLoss: 0.02, RiskReward: 1.5})
	tr.Update(bar(0, 99, 101, 98.5, 100))

	tr.Update(bar(minuteMs, 100, 103.5, 99.5, 103))
	if tr.Status() != types.TradeClosed {
		t.Fatalf("status = %s, want closed", tr.Status())
	}
	if math.Abs(tr.ClosePrice()-103.0) > 1e-9 {
		t.Errorf("close price = %f, want take profit 103", tr.ClosePrice())
	}
	if tr.RealizedPnL() <= 0 {
		t.Errorf("realized pnl = %f, want profit", tr.RealizedPnL())
	}
}

func TestStopLossWinsWhenBothTouched(t *testing.T) {
	tr := newLong(t, 0, Options{StopLoss: 0.02, RiskReward: 1.5})
	tr.Update(bar(0, 99, 101, 98.5, 100))

	// One wide bar through both levels: [97, 104].
	tr.Update(bar(minuteMs, 100, 104, 97, 101))
	if math.Abs(tr.ClosePrice()-98.0) > 1e-9 {
		t.Errorf("close price = %f, want the stop at 98", tr.ClosePrice())
	}
}

func TestShortTrade(t *testing.T) {
	tr, err := New("s1", "BTCUSDT", types.Short, 2, 1, types.MustTimeframe("1m"), 0,
		Options{StopLoss: 0.02, RiskReward: 1.5})
	if err != nil {
		t.Fatal(err)
	}
	tr.Update(bar(0, 101, 101.5, 99, 100))

	sl, _ := tr.StopLossPrice()
	if math.Abs(sl-102.0) > 1e-9 {
		t.Errorf("short stop = %f, want 102", sl)
	}
	tp, _ := tr.TakeProfitPrice()
	if math.Abs(tp-97.0) > 1e-9 {
		t.Errorf("short take profit = %f, want 97", tp)
	}

	// Price drops through the take profit.
	tr.Update(bar(minuteMs, 100, 100.5, 96.5, 97.5))
	if tr.Status() != types.TradeClosed {
		t.Fatalf("status = %s, want closed", tr.Status())
	}
	// Short gains on the drop: (97-100)*-1*2 = 6.
	if math.Abs(tr.RealizedPnL()-6.0) > 1e-9 {
		t.Errorf("short realized pnl = %f, want 6", tr.RealizedPnL())
	}
}

func TestCommissionReducesRealizedPnL(t *testing.T) {
	tr := newLong(t, 0, Options{StopLoss: 0.02, RiskReward: 1.5, Commission: 0.5})
	tr.Update(bar(0, 99, 101, 98.5, 100))
	tr.Update(bar(minuteMs, 100, 103.5, 99.5, 103))
	if math.Abs(tr.RealizedPnL()-2.5) > 1e-9 {
		t.Errorf("realized pnl = %f, want 3 - 0.5 commission = 2.5", tr.RealizedPnL())
	}
}

func TestUnrealizedPnLMarksToClose(t *testing.T) {
	tr := newLong(t, 0, Options{StopLoss: 0.05})
	tr.Update(bar(0, 99, 101, 98, 100))
	tr.Update(bar(minuteMs, 100, 102, 99.5, 101.5))
	if tr.Status() != types.TradeFilled {
		t.Fatalf("status = %s, want still filled", tr.Status())
	}
	if math.Abs(tr.UnrealizedPnL()-1.5) > 1e-9 {
		t.Errorf("unrealized pnl = %f, want 1.5", tr.UnrealizedPnL())
	}
}

func TestNewTradeValidation(t *testing.T) {
	tf := types.MustTimeframe("1m")
	if _, err := New("x", "BTCUSDT", types.Long, 0, 1, tf, 0, Options{}); err == nil {
		t.Error("expected error for zero quantity")
	}
	if _, err := New("x", "BTCUSDT", types.Long, 1, 0, tf, 0, Options{}); err == nil {
		t.Error("expected error for zero leverage")
	}
	if _, err := New("x", "BTCUSDT", types.Long, 1, 1, tf, 0, Options{StopLoss: 1.5}); err == nil {
		t.Error("expected error for stop loss >= 1")
	}
}
