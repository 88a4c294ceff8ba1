package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"

	"crypto-trading-env/internal/dataset"
	"crypto-trading-env/internal/fetch"
	"crypto-trading-env/internal/logger"
	"crypto-trading-env/internal/store"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	outPath := flag.String("out", "", "output CSV path (overrides dataset.path)")
	flag.Parse()

	_ = godotenv.Load()
	must(logger.Init())

	cfg, err := store.LoadConfig(*configPath)
	must(err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
	defer cancel()

	since, until, err := resolveRange(cfg)
	must(err)

	req := fetch.FrameRequest{
		Symbols:   cfg.Data.Symbols,
		Timeframe: cfg.Timeframe(),
		Since:     since,
		Until:     until,
	}
	if cfg.Data.IncludeIndicators {
		req.Indicators = &fetch.IndicatorConfig{
			ATRPeriod:  cfg.Indicators.ATRPeriod,
			SMAPeriod:  cfg.Indicators.SMAPeriod,
			EMAPeriod:  cfg.Indicators.EMAPeriod,
			RSIPeriod:  cfg.Indicators.RSIPeriod,
			MACDFast:   cfg.Indicators.MACDFast,
			MACDSlow:   cfg.Indicators.MACDSlow,
			MACDSignal: cfg.Indicators.MACDSignal,
		}
	}

	timer := logger.StartOperation(ctx, "fetch_history",
		"symbols", len(req.Symbols),
		"timeframe", req.Timeframe.String())

	fetcher := fetch.NewBinance()
	frame, err := fetcher.FetchFrame(timer.GetContext(), req)
	if err != nil {
		timer.EndWithError(err)
		log.Fatal(err)
	}

	path := cfg.Dataset.Path
	if *outPath != "" {
		path = *outPath
	}
	if path == "" {
		path = "data/candles.csv"
	}
	if err := dataset.Save(frame, path); err != nil {
		timer.EndWithError(err)
		log.Fatal(err)
	}

	timer.End("rows", len(frame.Timestamps()), "path", path)
	log.Printf("Dataset written: %s (%d timestamps, %d symbols)",
		path, len(frame.Timestamps()), len(frame.Symbols()))
}

// resolveRange turns the configured date strings into unix millis. An
// empty until means now.
func resolveRange(cfg *store.Config) (int64, int64, error) {
	since, err := time.Parse("2006-01-02", cfg.Data.Since)
	if err != nil {
		return 0, 0, err
	}
	until := time.Now().UTC()
	if cfg.Data.Until != "" {
		until, err = time.Parse("2006-01-02", cfg.Data.Until)
		if err != nil {
			return 0, 0, err
		}
	}
	return since.UnixMilli(), until.UnixMilli(), nil
}
