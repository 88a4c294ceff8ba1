package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"crypto-trading-env/internal/market"
	"crypto-trading-env/internal/types"
)

const hourMs = int64(3_600_000)

func sampleFrame(t *testing.T) *market.Frame {
	t.Helper()
	tf := types.MustTimeframe("1h")
	frame := market.NewFrame(tf, []string{"sma_2"})
	for i := 0; i < 4; i++ {
		ts := int64(i) * hourMs
		for _, sym := range []string{"BTCUSDT", "ETHUSDT"} {
			base := 100.0
			if sym == "ETHUSDT" {
				base = 10
			}
			close := base + float64(i)
			frame.Append(sym, market.Row{
				Candle: types.Candle{
					Ts: ts, Open: close - 0.5, High: close + 1, Low: close - 1, Close: close,
					Vol: 5, Traded: i != 2, // one synthesized bar
				},
				Features: map[string]float64{"sma_2": close - 0.25},
			})
		}
	}
	return frame
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "candles.csv")
	original := sampleFrame(t)

	if err := Save(original, path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path, types.MustTimeframe("1h"))
	if err != nil {
		t.Fatal(err)
	}

	if got, want := loaded.Symbols(), original.Symbols(); len(got) != len(want) {
		t.Fatalf("symbols = %v, want %v", got, want)
	}
	if got := len(loaded.Timestamps()); got != 4 {
		t.Fatalf("timestamps = %d, want 4", got)
	}

	row, ok := loaded.Row("ETHUSDT", 2*hourMs)
	if !ok {
		t.Fatal("row missing after round trip")
	}
	if row.Candle.Close != 12 {
		t.Errorf("close = %f, want 12", row.Candle.Close)
	}
	if row.Candle.Traded {
		t.Error("synthesized bar lost its traded flag")
	}
	if row.Features["sma_2"] != 11.75 {
		t.Errorf("feature = %f, want 11.75", row.Features["sma_2"])
	}
}

func TestLoadRejectsWrongHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(path, []byte("a,b,c\n1,2,3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, types.MustTimeframe("1h")); err == nil {
		t.Fatal("expected header error")
	}
}

func TestLoadRejectsMalformedRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	content := "symbol,ts,open,high,low,close,volume,traded\nBTCUSDT,notanumber,1,1,1,1,1,true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, types.MustTimeframe("1h")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadRejectsSparseData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sparse.csv")
	content := "symbol,ts,open,high,low,close,volume,traded\n" +
		"BTCUSDT,0,1,1,1,1,1,true\n" +
		"BTCUSDT,3600000,1,1,1,1,1,true\n" +
		"ETHUSDT,0,1,1,1,1,1,true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, types.MustTimeframe("1h")); err == nil {
		t.Fatal("expected density error")
	}
}
