package env

import (
	"context"
	"fmt"
	"math"

	"crypto-trading-env/internal/broker"
	"crypto-trading-env/internal/logger"
	"crypto-trading-env/internal/market"
)

// StepResult carries everything one environment step produced.
type StepResult struct {
	Ts          int64          `json:"ts"`
	Action      int            `json:"action"`
	Observation [][]float64    `json:"-"`
	Reward      float64        `json:"reward"`
	Done        bool           `json:"done"`
	Info        map[string]any `json:"info,omitempty"`
}

// Config assembles the default role implementations.
type Config struct {
	Symbol     string
	WindowSize int
	Quantity   float64
	Leverage   float64
	StopLoss   float64 // fraction
	RiskReward float64
	Discount   float64
}

// TradingEnv replays market data under a clock and lets an agent open
// bounded trades. Reset pre-rolls the observation window; Step performs
// the action, advances one bar, and reports reward/observation/done/info.
type TradingEnv struct {
	clock  *market.Clock
	market *market.Market
	brk    *broker.Broker

	actions  ActionScheme
	rewards  RewardScheme
	observer *WindowObserver
	stopper  Stopper
	informer Informer
	renderer Renderer

	obsSpace BoxSpace
	started  bool
}

// New assembles a TradingEnv with the default schemes. The clock must
// already drive the market.
func New(clock *market.Clock, m *market.Market, brk *broker.Broker, cfg Config) (*TradingEnv, error) {
	if cfg.WindowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", cfg.WindowSize)
	}
	found := false
	for _, sym := range m.Frame().Symbols() {
		if sym == cfg.Symbol {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("symbol %s is not in the market frame", cfg.Symbol)
	}

	lattice := m.Frame().Timestamps()
	if len(lattice) == 0 {
		return nil, fmt.Errorf("market frame is empty")
	}
	feed := market.NewFeed(m.Frame())
	if _, err := feed.Window(lattice[len(lattice)-1], cfg.WindowSize-1); err != nil {
		return nil, fmt.Errorf("frame cannot fill a %d-bar window: %w", cfg.WindowSize, err)
	}

	observer := NewWindowObserver(cfg.Symbol, cfg.WindowSize, m.Frame().FeatureNames())
	e := &TradingEnv{
		clock:  clock,
		market: m,
		brk:    brk,
		actions: NewMarketActionScheme(brk, MarketActionConfig{
			Symbol:     cfg.Symbol,
			Quantity:   cfg.Quantity,
			Leverage:   cfg.Leverage,
			StopLoss:   cfg.StopLoss,
			RiskReward: cfg.RiskReward,
			Discount:   cfg.Discount,
		}),
		rewards:  NewPnLRewardScheme(brk),
		observer: observer,
		stopper:  NewClockStopper(clock),
		informer: NewBrokerInformer(brk),
		renderer: NoopRenderer{},
		obsSpace: BoxSpace{
			Rows: cfg.WindowSize,
			Cols: observer.Cols(),
			Min:  math.Inf(-1),
			Max:  math.Inf(1),
		},
	}
	return e, nil
}

// Role overrides. Each returns the env for chaining during assembly.

func (e *TradingEnv) WithActionScheme(s ActionScheme) *TradingEnv { e.actions = s; return e }
func (e *TradingEnv) WithRewardScheme(s RewardScheme) *TradingEnv { e.rewards = s; return e }
func (e *TradingEnv) WithStopper(s Stopper) *TradingEnv           { e.stopper = s; return e }
func (e *TradingEnv) WithInformer(i Informer) *TradingEnv         { e.informer = i; return e }
func (e *TradingEnv) WithRenderer(r Renderer) *TradingEnv         { e.renderer = r; return e }

// ActionSpace returns the discrete action space.
func (e *TradingEnv) ActionSpace() DiscreteSpace { return e.actions.Space() }

// ObservationSpace returns the window observation space.
func (e *TradingEnv) ObservationSpace() BoxSpace { return e.obsSpace }

// Reset rewinds the clock, market, and broker, re-registers the window
// observer, and pre-rolls the window until it is full. It returns the
// initial observation.
func (e *TradingEnv) Reset(ctx context.Context) ([][]float64, error) {
	e.clock.Reset()
	e.brk.Reset()
	e.actions.Reset()
	e.rewards.Reset()
	e.observer.Clear()
	e.market.Register(e.observer)

	// Registration delivered the first bar; step until the window fills.
	for !e.observer.Full() {
		if _, err := e.clock.Next(); err != nil {
			return nil, fmt.Errorf("not enough data to fill a %d-bar window: %w", e.obsSpace.Rows, err)
		}
	}
	e.started = true

	obs := e.observer.Observe()
	logger.Debug(ctx, "Environment reset", "ts", e.clock.Now(), "window", len(obs))
	return obs, nil
}

// Step validates and performs the action, advances the clock one bar,
// and returns the step result. Calling Step on a finished episode or
// before Reset is an error.
func (e *TradingEnv) Step(ctx context.Context, action int) (*StepResult, error) {
	if !e.started {
		return nil, fmt.Errorf("environment must be reset before stepping")
	}
	if !e.actions.Space().Contains(action) {
		return nil, fmt.Errorf("action %d is outside the action space", action)
	}
	if e.stopper.Done() {
		return nil, fmt.Errorf("episode is done; call Reset")
	}

	if err := e.actions.Perform(ctx, action); err != nil {
		return nil, fmt.Errorf("perform action %d: %w", action, err)
	}

	ts, err := e.clock.Next()
	if err != nil {
		return nil, err
	}

	step := StepResult{
		Ts:          ts,
		Action:      action,
		Observation: e.observer.Observe(),
		Reward:      e.rewards.Reward(),
		Done:        e.stopper.Done(),
		Info:        e.informer.Info(),
	}
	e.renderer.Render(ctx, step)
	return &step, nil
}

// Close releases nothing today but mirrors the usual environment shape.
func (e *TradingEnv) Close() error {
	e.started = false
	return nil
}
