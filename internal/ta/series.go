package ta

import "math"

// Series variants are aligned with the input slice and NaN-padded at the
// head where a value cannot be computed yet. They feed the dataset
// enrichment step, which calculates indicator columns for whole histories.

func SMASeries(closes []float64, n int) []float64 {
	out := nanSlice(len(closes))
	if n <= 0 {
		return out
	}
	sum := 0.0
	for i, c := range closes {
		sum += c
		if i >= n {
			sum -= closes[i-n]
		}
		if i >= n-1 {
			out[i] = sum / float64(n)
		}
	}
	return out
}

func EMASeries(closes []float64, n int) []float64 {
	out := nanSlice(len(closes))
	if n <= 0 || len(closes) < n {
		return out
	}
	k := 2.0 / float64(n+1)
	ema := 0.0
	for i := 0; i < n; i++ {
		ema += closes[i]
	}
	ema /= float64(n)
	out[n-1] = ema
	for i := n; i < len(closes); i++ {
		ema = closes[i]*k + ema*(1-k)
		out[i] = ema
	}
	return out
}

func RSISeries(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 {
		return out
	}
	for i := period; i < len(closes); i++ {
		out[i] = RSI(closes[:i+1], period)
	}
	return out
}

func ATRSeries(highs, lows, closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if len(highs) != len(lows) || len(lows) != len(closes) || period <= 0 {
		return out
	}
	for i := period; i < len(closes); i++ {
		out[i] = ATR(highs[:i+1], lows[:i+1], closes[:i+1], period)
	}
	return out
}

// MACDLines holds the aligned MACD line, signal line, and histogram.
type MACDLines struct {
	MACD, Signal, Hist []float64
}

func MACDSeries(closes []float64, fast, slow, signal int) MACDLines {
	n := len(closes)
	lines := MACDLines{MACD: nanSlice(n), Signal: nanSlice(n), Hist: nanSlice(n)}
	if fast <= 0 || slow <= fast || signal <= 0 || n < slow {
		return lines
	}
	fastEMA := EMASeries(closes, fast)
	slowEMA := EMASeries(closes, slow)
	for i := slow - 1; i < n; i++ {
		lines.MACD[i] = fastEMA[i] - slowEMA[i]
	}
	// Signal is an EMA over the valid stretch of the MACD line.
	sig := EMASeries(lines.MACD[slow-1:], signal)
	for i, v := range sig {
		lines.Signal[slow-1+i] = v
		if !math.IsNaN(v) {
			lines.Hist[slow-1+i] = lines.MACD[slow-1+i] - v
		}
	}
	return lines
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
