package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"crypto-trading-env/internal/market"
	"crypto-trading-env/internal/types"
)

// The on-disk dataset is one CSV per pull: a fixed candle prefix
// followed by one column per feature.
var baseHeader = []string{"symbol", "ts", "open", "high", "low", "close", "volume", "traded"}

// Save writes the frame to path, creating parent directories as needed.
// Rows are ordered by symbol and then timestamp.
func Save(frame *market.Frame, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create dataset directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dataset file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	features := frame.FeatureNames()
	if err := w.Write(append(append([]string{}, baseHeader...), features...)); err != nil {
		return err
	}

	for _, sym := range frame.Symbols() {
		for _, ts := range frame.Timestamps() {
			row, ok := frame.Row(sym, ts)
			if !ok {
				return fmt.Errorf("frame has no row for %s at %d", sym, ts)
			}
			record := []string{
				sym,
				strconv.FormatInt(row.Candle.Ts, 10),
				formatFloat(row.Candle.Open),
				formatFloat(row.Candle.High),
				formatFloat(row.Candle.Low),
				formatFloat(row.Candle.Close),
				formatFloat(row.Candle.Vol),
				strconv.FormatBool(row.Candle.Traded),
			}
			for _, name := range features {
				record = append(record, formatFloat(row.Features[name]))
			}
			if err := w.Write(record); err != nil {
				return err
			}
		}
	}

	w.Flush()
	return w.Error()
}

// Load reads a CSV written by Save back into a frame. The timeframe is
// not stored in the file, so the caller supplies it.
func Load(path string, tf types.Timeframe) (*market.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset header: %w", err)
	}
	if len(header) < len(baseHeader) {
		return nil, fmt.Errorf("dataset header has %d columns, want at least %d", len(header), len(baseHeader))
	}
	for i, want := range baseHeader {
		if header[i] != want {
			return nil, fmt.Errorf("dataset column %d is %q, want %q", i, header[i], want)
		}
	}
	features := header[len(baseHeader):]

	frame := market.NewFrame(tf, features)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset rows: %w", err)
	}
	for i, record := range records {
		row, sym, err := parseRecord(record, features)
		if err != nil {
			return nil, fmt.Errorf("dataset row %d: %w", i+2, err)
		}
		frame.Append(sym, row)
	}

	if err := frame.Validate(); err != nil {
		return nil, fmt.Errorf("loaded dataset is not dense: %w", err)
	}
	return frame, nil
}

func parseRecord(record, features []string) (market.Row, string, error) {
	var row market.Row
	if len(record) != len(baseHeader)+len(features) {
		return row, "", fmt.Errorf("has %d columns, want %d", len(record), len(baseHeader)+len(features))
	}

	sym := record[0]
	ts, err := strconv.ParseInt(record[1], 10, 64)
	if err != nil {
		return row, "", fmt.Errorf("bad ts %q: %w", record[1], err)
	}
	vals := make([]float64, 5)
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(record[2+i], 64)
		if err != nil {
			return row, "", fmt.Errorf("bad %s %q: %w", baseHeader[2+i], record[2+i], err)
		}
		vals[i] = v
	}
	traded, err := strconv.ParseBool(record[7])
	if err != nil {
		return row, "", fmt.Errorf("bad traded flag %q: %w", record[7], err)
	}

	row.Candle = types.Candle{
		Ts: ts, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Vol: vals[4],
		Traded: traded,
	}
	if len(features) > 0 {
		row.Features = make(map[string]float64, len(features))
		for i, name := range features {
			v, err := strconv.ParseFloat(record[len(baseHeader)+i], 64)
			if err != nil {
				return row, "", fmt.Errorf("bad feature %s %q: %w", name, record[len(baseHeader)+i], err)
			}
			row.Features[name] = v
		}
	}
	return row, sym, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
