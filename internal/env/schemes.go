package env

import (
	"context"
	"fmt"

	"crypto-trading-env/internal/broker"
	"crypto-trading-env/internal/logger"
	"crypto-trading-env/internal/market"
	"crypto-trading-env/internal/trade"
	"crypto-trading-env/internal/types"
)

// The environment is assembled from the roles below. Each has a default
// implementation; callers can swap any of them.

// ActionScheme translates an agent action into broker activity.
type ActionScheme interface {
	Space() DiscreteSpace
	Perform(ctx context.Context, action int) error
	Reset()
}

// RewardScheme produces the per-step reward after the clock advances.
type RewardScheme interface {
	Reward() float64
	Reset()
}

// Stopper decides when the episode ends.
type Stopper interface {
	Done() bool
}

// Informer supplies the info map returned from each step.
type Informer interface {
	Info() map[string]any
}

// Renderer receives each step result for display or logging.
type Renderer interface {
	Render(ctx context.Context, step StepResult)
}

// MarketActionScheme opens a bounded long or short per action: hold does
// nothing, long and short open a trade with the configured stop loss and
// risk reward.
type MarketActionScheme struct {
	broker     *broker.Broker
	symbol     string
	quantity   float64
	leverage   float64
	stopLoss   float64
	riskReward float64
	discount   float64
	seq        int
}

// MarketActionConfig configures the default action scheme.
type MarketActionConfig struct {
	Symbol     string
	Quantity   float64
	Leverage   float64
	StopLoss   float64 // fraction, e.g. 0.02
	RiskReward float64
	Discount   float64
}

func NewMarketActionScheme(b *broker.Broker, cfg MarketActionConfig) *MarketActionScheme {
	return &MarketActionScheme{
		broker:     b,
		symbol:     cfg.Symbol,
		quantity:   cfg.Quantity,
		leverage:   cfg.Leverage,
		stopLoss:   cfg.StopLoss,
		riskReward: cfg.RiskReward,
		discount:   cfg.Discount,
	}
}

func (s *MarketActionScheme) Space() DiscreteSpace { return DiscreteSpace{N: 3} }

func (s *MarketActionScheme) Perform(ctx context.Context, action int) error {
	var dir types.Direction
	switch action {
	case ActionHold:
		return nil
	case ActionLong:
		dir = types.Long
	case ActionShort:
		dir = types.Short
	default:
		return fmt.Errorf("action %d cannot be handled", action)
	}

	s.seq++
	id := fmt.Sprintf("%s-%d", dir, s.seq)
	_, err := s.broker.OpenTrade(ctx, id, s.symbol, dir, s.quantity, s.leverage, trade.Options{
		StopLoss:   s.stopLoss,
		RiskReward: s.riskReward,
		Discount:   s.discount,
	})
	return err
}

func (s *MarketActionScheme) Reset() { s.seq = 0 }

// PnLRewardScheme rewards the change in the broker's additive realized
// PnL percentage since the previous step.
type PnLRewardScheme struct {
	broker *broker.Broker
	last   float64
}

func NewPnLRewardScheme(b *broker.Broker) *PnLRewardScheme {
	return &PnLRewardScheme{broker: b}
}

func (s *PnLRewardScheme) Reward() float64 {
	cum := s.broker.AdditiveRewardPct()
	r := cum - s.last
	s.last = cum
	return r
}

func (s *PnLRewardScheme) Reset() { s.last = 0 }

// ClockStopper ends the episode when the clock runs out of data.
type ClockStopper struct {
	clock *market.Clock
}

func NewClockStopper(c *market.Clock) *ClockStopper { return &ClockStopper{clock: c} }

func (s *ClockStopper) Done() bool { return s.clock.AtEnd() }

// BrokerInformer exposes the broker snapshot as the step info map.
type BrokerInformer struct {
	broker *broker.Broker
}

func NewBrokerInformer(b *broker.Broker) *BrokerInformer { return &BrokerInformer{broker: b} }

func (i *BrokerInformer) Info() map[string]any { return i.broker.Info() }

// LogRenderer logs one line per step.
type LogRenderer struct{}

func (LogRenderer) Render(ctx context.Context, step StepResult) {
	logger.Info(ctx, "Environment step",
		"ts", step.Ts,
		"action", step.Action,
		"reward", step.Reward,
		"done", step.Done,
	)
}

// NoopRenderer discards step results.
type NoopRenderer struct{}

func (NoopRenderer) Render(context.Context, StepResult) {}
