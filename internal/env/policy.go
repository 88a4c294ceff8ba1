package env

import (
	"fmt"

	"crypto-trading-env/internal/ta"
)

// Policy maps an observation to an action. Policies here are scripted
// baselines for driving the environment; nothing in this package learns.
type Policy interface {
	Act(obs [][]float64) int
}

// RunPolicy checks the observation against the observation space, asks
// the policy for an action, and checks the action against the action
// space before returning it.
func RunPolicy(e *TradingEnv, p Policy, obs [][]float64) (int, error) {
	if !e.ObservationSpace().Contains(obs) {
		return 0, fmt.Errorf("observation does not match the environment observation space")
	}
	action := p.Act(obs)
	if !e.ActionSpace().Contains(action) {
		return 0, fmt.Errorf("policy action %d does not match the environment action space", action)
	}
	return action, nil
}

// FlatPolicy always holds. Useful as a data-replay baseline.
type FlatPolicy struct{}

func (FlatPolicy) Act([][]float64) int { return ActionHold }

// closeCol is the index of the close price inside a row vector
// (traded, open, high, low, close, volume, features...).
const closeCol = 4

// SMACrossPolicy opens a long when the short moving average of the
// window's closes crosses above the long one, a short on the opposite
// cross, and otherwise holds.
type SMACrossPolicy struct {
	Short, Long int
	prevDiff    float64
	hasPrev     bool
}

func NewSMACrossPolicy(short, long int) *SMACrossPolicy {
	return &SMACrossPolicy{Short: short, Long: long}
}

func (p *SMACrossPolicy) Act(obs [][]float64) int {
	closes := make([]float64, len(obs))
	for i, row := range obs {
		closes[i] = row[closeCol]
	}
	diff := ta.SMA(closes, p.Short) - ta.SMA(closes, p.Long)
	defer func() { p.prevDiff, p.hasPrev = diff, true }()

	if !p.hasPrev || diff != diff { // NaN when the window is too short
		return ActionHold
	}
	if p.prevDiff <= 0 && diff > 0 {
		return ActionLong
	}
	if p.prevDiff >= 0 && diff < 0 {
		return ActionShort
	}
	return ActionHold
}
