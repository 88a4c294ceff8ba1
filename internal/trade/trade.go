package trade

import (
	"fmt"
	"math"

	"crypto-trading-env/internal/market"
	"crypto-trading-env/internal/types"
)

// Options tune a trade beyond its direction and size.
type Options struct {
	// StopLoss is the adverse move fraction (0.02 = 2%) that closes the
	// trade. Zero disables the stop and the take profit.
	StopLoss float64
	// RiskReward sets the take profit at RiskReward*StopLoss in the
	// favorable direction. Ignored without a stop loss.
	RiskReward float64
	// Discount shrinks the realized PnL percentage per bar spent in the
	// trade. Defaults to 0.9.
	Discount float64
	// Commission is a flat fee subtracted from realized PnL.
	Commission float64
	// ExecutionTs is the bar the trade must fill on. Defaults to the
	// creation timestamp.
	ExecutionTs int64
}

// Trade is a market order bound to a market: it subscribes to slices,
// fills at the close of its execution bar, and closes itself when the
// stop loss or take profit is touched. Closed and rejected trades report
// Done so the market prunes them.
type Trade struct {
	id        string
	symbol    string
	direction types.Direction
	quantity  float64
	leverage  float64
	stepMs    int64

	creationTs  int64
	executionTs int64
	opts        Options

	status          types.TradeStatus
	fillPrice       float64
	stopLossPrice   float64
	takeProfitPrice float64
	hasStop         bool
	hasTakeProfit   bool

	lastClose float64

	closeTs          int64
	closePrice       float64
	realizedPnL      float64
	realizedPnLPct   float64
	discountedPnLPct float64
	barsInTrade      int
}

// New creates a trade. The caller registers it on the market (the broker
// does this).
func New(id, symbol string, dir types.Direction, quantity, leverage float64, tf types.Timeframe, creationTs int64, opts Options) (*Trade, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("trade %s: quantity must be positive", id)
	}
	if leverage <= 0 {
		return nil, fmt.Errorf("trade %s: leverage must be positive", id)
	}
	if opts.StopLoss < 0 || opts.StopLoss >= 1 {
		return nil, fmt.Errorf("trade %s: stop loss must be a fraction in [0,1)", id)
	}
	if opts.Discount == 0 {
		opts.Discount = 0.9
	}
	if opts.Discount < 0 || opts.Discount > 1 {
		return nil, fmt.Errorf("trade %s: discount must be in (0,1]", id)
	}
	if opts.ExecutionTs == 0 {
		opts.ExecutionTs = creationTs
	}
	return &Trade{
		id:          id,
		symbol:      symbol,
		direction:   dir,
		quantity:    quantity,
		leverage:    leverage,
		stepMs:      tf.Millis(),
		creationTs:  creationTs,
		executionTs: opts.ExecutionTs,
		opts:        opts,
		status:      types.TradeCreated,
	}, nil
}

// Update implements market.Observer.
func (t *Trade) Update(slice market.Slice) {
	if t.status == types.TradeClosed || t.status == types.TradeRejected {
		return
	}
	row, ok := slice.Rows[t.symbol]
	if !ok || !row.Candle.Traded {
		return
	}
	c := row.Candle

	if t.status == types.TradeCreated {
		switch {
		case c.Ts == t.executionTs:
			t.fill(c.Close)
		case c.Ts > t.executionTs:
			t.status = types.TradeRejected
		}
		return
	}

	// Filled: mark to the latest close, then check exits. The stop loss is
	// checked before the take profit, so a bar touching both books the loss.
	t.lastClose = c.Close
	if t.hasStop && t.stopHit(c.High, c.Low) {
		t.close(c.Ts, t.stopLossPrice)
		return
	}
	if t.hasTakeProfit && t.takeProfitHit(c.High, c.Low) {
		t.close(c.Ts, t.takeProfitPrice)
	}
}

// Done implements market.Observer.
func (t *Trade) Done() bool {
	return t.status == types.TradeClosed || t.status == types.TradeRejected
}

func (t *Trade) fill(price float64) {
	t.fillPrice = price
	t.lastClose = price
	if t.opts.StopLoss > 0 {
		t.hasStop = true
		t.stopLossPrice = price * (1 - float64(t.direction)*t.opts.StopLoss)
		if t.opts.RiskReward > 0 {
			t.hasTakeProfit = true
			t.takeProfitPrice = price * (1 + float64(t.direction)*t.opts.RiskReward*t.opts.StopLoss)
		}
	}
	t.status = types.TradeFilled
}

func (t *Trade) stopHit(high, low float64) bool {
	if t.direction == types.Long {
		return low <= t.stopLossPrice
	}
	return high >= t.stopLossPrice
}

func (t *Trade) takeProfitHit(high, low float64) bool {
	if t.direction == types.Long {
		return high >= t.takeProfitPrice
	}
	return low <= t.takeProfitPrice
}

func (t *Trade) close(ts int64, price float64) {
	t.closeTs = ts
	t.closePrice = price
	t.status = types.TradeClosed
	t.realizedPnL = (price-t.fillPrice)*float64(t.direction)*t.quantity*t.leverage - t.opts.Commission
	t.realizedPnLPct = (price - t.fillPrice) * float64(t.direction) / t.fillPrice
	t.barsInTrade = int((ts-t.executionTs)/t.stepMs) + 1
	t.discountedPnLPct = t.realizedPnLPct * math.Pow(t.opts.Discount, float64(t.barsInTrade))
}

// Accessors used by the broker and renderers.

func (t *Trade) ID() string                       { return t.id }
func (t *Trade) Symbol() string                   { return t.symbol }
func (t *Trade) Direction() types.Direction       { return t.direction }
func (t *Trade) Quantity() float64                { return t.quantity }
func (t *Trade) Status() types.TradeStatus        { return t.status }
func (t *Trade) FillPrice() float64               { return t.fillPrice }
func (t *Trade) ClosePrice() float64              { return t.closePrice }
func (t *Trade) CloseTs() int64                   { return t.closeTs }
func (t *Trade) StopLossPrice() (float64, bool)   { return t.stopLossPrice, t.hasStop }
func (t *Trade) TakeProfitPrice() (float64, bool) { return t.takeProfitPrice, t.hasTakeProfit }
func (t *Trade) BarsInTrade() int                 { return t.barsInTrade }

// RealizedPnL is the closed profit in quote units, net of commission.
func (t *Trade) RealizedPnL() float64 { return t.realizedPnL }

// RealizedPnLPct is the closed move relative to the fill price.
func (t *Trade) RealizedPnLPct() float64 { return t.realizedPnLPct }

// DiscountedPnLPct is RealizedPnLPct decayed by discount^barsInTrade.
func (t *Trade) DiscountedPnLPct() float64 { return t.discountedPnLPct }

// UnrealizedPnL marks a filled trade to the latest observed close.
func (t *Trade) UnrealizedPnL() float64 {
	if t.status != types.TradeFilled {
		return 0
	}
	return (t.lastClose - t.fillPrice) * float64(t.direction) * t.quantity * t.leverage
}
