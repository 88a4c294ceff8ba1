package env

import "math"

// Action values for the discrete action space.
const (
	ActionHold = iota
	ActionLong
	ActionShort
)

// DiscreteSpace is a finite action space {0, ..., N-1}.
type DiscreteSpace struct {
	N int
}

func (s DiscreteSpace) Contains(action int) bool {
	return action >= 0 && action < s.N
}

// BoxSpace is an observation space of Rows x Cols matrices with every
// element in [Min, Max].
type BoxSpace struct {
	Rows, Cols int
	Min, Max   float64
}

func (s BoxSpace) Contains(obs [][]float64) bool {
	if len(obs) != s.Rows {
		return false
	}
	for _, row := range obs {
		if len(row) != s.Cols {
			return false
		}
		for _, v := range row {
			if math.IsNaN(v) || v < s.Min || v > s.Max {
				return false
			}
		}
	}
	return true
}
