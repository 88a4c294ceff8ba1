package fetch

import (
	"context"
	"fmt"
	"math"

	"crypto-trading-env/internal/logger"
	"crypto-trading-env/internal/market"
	"crypto-trading-env/internal/ta"
	"crypto-trading-env/internal/types"
)

// IndicatorConfig selects the technical features computed per symbol.
// The zero value for any period disables that indicator.
type IndicatorConfig struct {
	ATRPeriod  int
	SMAPeriod  int
	EMAPeriod  int
	RSIPeriod  int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
}

// FeatureNames returns the feature columns in the order they appear in
// every row vector.
func (ic IndicatorConfig) FeatureNames() []string {
	var names []string
	if ic.ATRPeriod > 0 {
		names = append(names, fmt.Sprintf("atr_%d", ic.ATRPeriod))
	}
	if ic.SMAPeriod > 0 {
		names = append(names, fmt.Sprintf("sma_%d", ic.SMAPeriod))
	}
	if ic.EMAPeriod > 0 {
		names = append(names, fmt.Sprintf("ema_%d", ic.EMAPeriod))
	}
	if ic.RSIPeriod > 0 {
		names = append(names, fmt.Sprintf("rsi_%d", ic.RSIPeriod))
	}
	if ic.MACDFast > 0 && ic.MACDSlow > ic.MACDFast && ic.MACDSignal > 0 {
		names = append(names, "macd", "macd_signal", "macd_hist")
	}
	return names
}

// FrameRequest describes one history pull.
type FrameRequest struct {
	Symbols    []string
	Timeframe  types.Timeframe
	Since      int64 // unix millis, inclusive; <= 0 probes the earliest candle
	Until      int64 // unix millis, inclusive
	Indicators *IndicatorConfig
}

// Fetcher is any source that can produce a dense market frame.
type Fetcher interface {
	FetchFrame(ctx context.Context, req FrameRequest) (*market.Frame, error)
}

var _ Fetcher = (*BinanceFetcher)(nil)

// FetchFrame validates the symbols, pulls their klines, and assembles a
// dense frame ready to drive a market. A non-positive Since is resolved
// to the earliest candle any symbol has.
func (f *BinanceFetcher) FetchFrame(ctx context.Context, req FrameRequest) (*market.Frame, error) {
	if err := f.ValidateSymbols(ctx, req.Symbols); err != nil {
		return nil, err
	}

	if req.Since <= 0 {
		earliest := int64(math.MaxInt64)
		for _, sym := range req.Symbols {
			ts, err := f.FirstCandleTs(ctx, sym, req.Timeframe)
			if err != nil {
				return nil, err
			}
			if ts < earliest {
				earliest = ts
			}
		}
		req.Since = earliest
		logger.Info(ctx, "Resolved history start from first candles", "since", req.Since)
	}

	series := make(map[string][]types.Candle, len(req.Symbols))
	for _, sym := range req.Symbols {
		candles, err := f.Klines(ctx, sym, req.Timeframe, req.Since, req.Until)
		if err != nil {
			return nil, err
		}
		if len(candles) == 0 {
			return nil, fmt.Errorf("no candles for %s in the requested range", sym)
		}
		logger.Info(ctx, "Fetched history", "symbol", sym, "candles", len(candles))
		series[sym] = candles
	}

	return BuildFrame(series, req.Timeframe, req.Indicators)
}

// BuildFrame lays the fetched candle series onto one shared timestamp
// lattice. Bars a symbol never traded are synthesized from the previous
// close with zero volume and Traded unset, so every symbol has a row at
// every timestamp. When indicators are requested, leading rows where
// any feature is still warming up are dropped for all symbols.
func BuildFrame(series map[string][]types.Candle, tf types.Timeframe, ind *IndicatorConfig) (*market.Frame, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("no candle series to build a frame from")
	}

	first, last := int64(math.MaxInt64), int64(math.MinInt64)
	for sym, candles := range series {
		if len(candles) == 0 {
			return nil, fmt.Errorf("empty candle series for %s", sym)
		}
		if ts := candles[0].Ts; ts < first {
			first = ts
		}
		if ts := candles[len(candles)-1].Ts; ts > last {
			last = ts
		}
	}

	step := tf.Millis()
	var featureNames []string
	if ind != nil {
		featureNames = ind.FeatureNames()
	}

	dense := make(map[string][]types.Candle, len(series))
	for sym, candles := range series {
		dense[sym] = densify(candles, first, last, step)
	}

	// Indicators run over the densified series so every symbol's
	// features align with the lattice.
	features := make(map[string][][]float64, len(series))
	if len(featureNames) > 0 {
		for sym, candles := range dense {
			features[sym] = computeFeatures(candles, *ind)
		}
	}

	// Drop the indicator warmup: skip lattice rows until every feature
	// of every symbol is a real number.
	start := 0
	if len(featureNames) > 0 {
		n := int((last-first)/step) + 1
		start = n // if nothing is ever valid, the frame stays empty
		for i := 0; i < n; i++ {
			if allFeaturesValid(features, i) {
				start = i
				break
			}
		}
	}

	frame := market.NewFrame(tf, featureNames)
	for sym, candles := range dense {
		for i := start; i < len(candles); i++ {
			row := market.Row{Candle: candles[i]}
			if len(featureNames) > 0 {
				row.Features = make(map[string]float64, len(featureNames))
				for j, name := range featureNames {
					row.Features[name] = features[sym][i][j]
				}
			}
			frame.Append(sym, row)
		}
	}

	if err := frame.Validate(); err != nil {
		return nil, err
	}
	return frame, nil
}

// densify fills every lattice slot between first and last. Missing bars
// repeat the previous close (or the symbol's first close before it ever
// traded) with zero volume.
func densify(candles []types.Candle, first, last, step int64) []types.Candle {
	n := int((last-first)/step) + 1
	out := make([]types.Candle, 0, n)

	byTs := make(map[int64]types.Candle, len(candles))
	for _, c := range candles {
		byTs[c.Ts] = c
	}

	lastClose := candles[0].Close
	for ts := first; ts <= last; ts += step {
		if c, ok := byTs[ts]; ok {
			out = append(out, c)
			lastClose = c.Close
			continue
		}
		out = append(out, types.Candle{
			Ts:    ts,
			Open:  lastClose,
			High:  lastClose,
			Low:   lastClose,
			Close: lastClose,
		})
	}
	return out
}

func computeFeatures(candles []types.Candle, ind IndicatorConfig) [][]float64 {
	n := len(candles)
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i, c := range candles {
		highs[i], lows[i], closes[i] = c.High, c.Low, c.Close
	}

	var cols [][]float64
	if ind.ATRPeriod > 0 {
		cols = append(cols, ta.ATRSeries(highs, lows, closes, ind.ATRPeriod))
	}
	if ind.SMAPeriod > 0 {
		cols = append(cols, ta.SMASeries(closes, ind.SMAPeriod))
	}
	if ind.EMAPeriod > 0 {
		cols = append(cols, ta.EMASeries(closes, ind.EMAPeriod))
	}
	if ind.RSIPeriod > 0 {
		cols = append(cols, ta.RSISeries(closes, ind.RSIPeriod))
	}
	if ind.MACDFast > 0 && ind.MACDSlow > ind.MACDFast && ind.MACDSignal > 0 {
		lines := ta.MACDSeries(closes, ind.MACDFast, ind.MACDSlow, ind.MACDSignal)
		cols = append(cols, lines.MACD, lines.Signal, lines.Hist)
	}

	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, len(cols))
		for j, col := range cols {
			row[j] = col[i]
		}
		rows[i] = row
	}
	return rows
}

func allFeaturesValid(features map[string][][]float64, i int) bool {
	for _, rows := range features {
		for _, v := range rows[i] {
			if math.IsNaN(v) {
				return false
			}
		}
	}
	return true
}
