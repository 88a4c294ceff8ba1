package broker

import (
	"context"
	"fmt"

	"crypto-trading-env/internal/logger"
	"crypto-trading-env/internal/market"
	"crypto-trading-env/internal/trade"
	"crypto-trading-env/internal/types"
)

// Broker opens simulated trades against a market and aggregates their
// outcomes. There is no order routing here: every trade is a market
// observer that fills and closes itself from bar data.
type Broker struct {
	market     *market.Market
	commission float64
	trades     []*trade.Trade
}

func New(m *market.Market, commission float64) *Broker {
	return &Broker{market: m, commission: commission}
}

// OpenTrade creates a trade at the market's current timestamp and
// registers it for updates.
func (b *Broker) OpenTrade(ctx context.Context, id, symbol string, dir types.Direction, quantity, leverage float64, opts trade.Options) (*trade.Trade, error) {
	ts, ok := b.market.CurrentTs()
	if !ok {
		return nil, fmt.Errorf("cannot open trade %s: market has no current timestamp", id)
	}
	opts.Commission = b.commission
	tr, err := trade.New(id, symbol, dir, quantity, leverage, b.market.Frame().Timeframe(), ts, opts)
	if err != nil {
		return nil, err
	}
	b.market.Register(tr)
	b.trades = append(b.trades, tr)
	logger.Trade(ctx, id, symbol, dir.String(), string(tr.Status()), quantity, tr.FillPrice(), "ts", ts)
	return tr, nil
}

// Trades returns every trade the broker has opened this episode.
func (b *Broker) Trades() []*trade.Trade { return b.trades }

// RealizedProfit sums the realized PnL of closed trades.
func (b *Broker) RealizedProfit() float64 {
	total := 0.0
	for _, tr := range b.trades {
		if tr.Status() == types.TradeClosed {
			total += tr.RealizedPnL()
		}
	}
	return total
}

// UnrealizedProfit marks open trades to the latest close.
func (b *Broker) UnrealizedProfit() float64 {
	total := 0.0
	for _, tr := range b.trades {
		if tr.Status() == types.TradeFilled {
			total += tr.UnrealizedPnL()
		}
	}
	return total
}

// AdditiveRewardPct sums the realized PnL percentages of closed trades.
// The environment's reward scheme differences this between steps.
func (b *Broker) AdditiveRewardPct() float64 {
	total := 0.0
	for _, tr := range b.trades {
		if tr.Status() == types.TradeClosed {
			total += tr.RealizedPnLPct()
		}
	}
	return total
}

func (b *Broker) ClosedTrades() int   { return b.countByStatus(types.TradeClosed) }
func (b *Broker) OpenTrades() int     { return b.countByStatus(types.TradeFilled) }
func (b *Broker) RejectedTrades() int { return b.countByStatus(types.TradeRejected) }

func (b *Broker) WinningTrades() int {
	n := 0
	for _, tr := range b.trades {
		if tr.Status() == types.TradeClosed && tr.RealizedPnL() > 0 {
			n++
		}
	}
	return n
}

func (b *Broker) LosingTrades() int {
	n := 0
	for _, tr := range b.trades {
		if tr.Status() == types.TradeClosed && tr.RealizedPnL() < 0 {
			n++
		}
	}
	return n
}

// WinRate returns winning/closed, and false when no trade has closed yet.
func (b *Broker) WinRate() (float64, bool) {
	closed := b.ClosedTrades()
	if closed == 0 {
		return 0, false
	}
	return float64(b.WinningTrades()) / float64(closed), true
}

// Info returns a snapshot of the broker state for the env informer.
func (b *Broker) Info() map[string]any {
	info := map[string]any{
		"trades":            len(b.trades),
		"realized_profit":   b.RealizedProfit(),
		"unrealized_profit": b.UnrealizedProfit(),
		"closed_trades":     b.ClosedTrades(),
		"open_trades":       b.OpenTrades(),
		"rejected_trades":   b.RejectedTrades(),
		"winning_trades":    b.WinningTrades(),
		"losing_trades":     b.LosingTrades(),
	}
	if ts, ok := b.market.CurrentTs(); ok {
		info["ts"] = ts
	}
	if rate, ok := b.WinRate(); ok {
		info["win_rate"] = rate
	}
	return info
}

// Reset drops all trades. Market observers are cleared separately by the
// clock/market reset.
func (b *Broker) Reset() {
	b.trades = nil
}

func (b *Broker) countByStatus(status types.TradeStatus) int {
	n := 0
	for _, tr := range b.trades {
		if tr.Status() == status {
			n++
		}
	}
	return n
}
