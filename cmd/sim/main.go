package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"crypto-trading-env/internal/broker"
	"crypto-trading-env/internal/dataset"
	"crypto-trading-env/internal/env"
	"crypto-trading-env/internal/logger"
	"crypto-trading-env/internal/market"
	"crypto-trading-env/internal/news"
	"crypto-trading-env/internal/store"
	"crypto-trading-env/internal/trade"
	"crypto-trading-env/internal/tradelog"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	dataPath := flag.String("data", "", "dataset CSV path (overrides dataset.path)")
	flag.Parse()

	_ = godotenv.Load()
	must(logger.Init())

	cfg, err := store.LoadConfig(*configPath)
	must(err)

	if v := os.Getenv("ENV_LOG_RETENTION_DAYS"); v != "" {
		var n int
		fmt.Sscanf(v, "%d", &n)
		_ = tradelog.CompressOlder(n)
	}

	path := cfg.Dataset.Path
	if *dataPath != "" {
		path = *dataPath
	}
	if path == "" {
		path = "data/candles.csv"
	}

	frame, err := dataset.Load(path, cfg.Timeframe())
	must(err)

	ctx := context.Background()
	lattice := frame.Timestamps()
	clock, err := market.NewClock(lattice[0], lattice[len(lattice)-1], frame.Timeframe())
	must(err)

	mkt := market.New(frame)
	clock.Register(mkt)
	brk := broker.New(mkt, cfg.Env.Commission)

	trading, err := env.New(clock, mkt, brk, env.Config{
		Symbol:     cfg.Env.Symbol,
		WindowSize: cfg.Env.WindowSize,
		Quantity:   cfg.Env.Quantity,
		Leverage:   cfg.Env.Leverage,
		StopLoss:   cfg.Env.StopLossPct / 100,
		RiskReward: cfg.Env.RiskReward,
		Discount:   cfg.Env.Discount,
	})
	must(err)
	trading = trading.WithRenderer(env.LogRenderer{})

	if cfg.News.Enabled {
		reportSentiment(ctx, cfg)
	}

	policy := buildPolicy(cfg)
	episodes := cfg.Env.Episodes
	if episodes <= 0 {
		episodes = 1
	}

	for ep := 1; ep <= episodes; ep++ {
		if err := runEpisode(ctx, trading, brk, policy, cfg, ep); err != nil {
			log.Fatal(err)
		}
	}
}

func buildPolicy(cfg *store.Config) env.Policy {
	if cfg.Env.Policy == "SMA_CROSS" {
		short := cfg.Indicators.SMAPeriod / 2
		if short < 2 {
			short = 2
		}
		return env.NewSMACrossPolicy(short, cfg.Indicators.SMAPeriod)
	}
	return env.FlatPolicy{}
}

func runEpisode(ctx context.Context, trading *env.TradingEnv, brk *broker.Broker, policy env.Policy, cfg *store.Config, episode int) error {
	obs, err := trading.Reset(ctx)
	if err != nil {
		return err
	}

	steps := 0
	total := 0.0
	for {
		action, err := env.RunPolicy(trading, policy, obs)
		if err != nil {
			return err
		}
		logger.Decision(ctx, cfg.Env.Symbol, action, "policy "+cfg.Env.Policy)

		step, err := trading.Step(ctx, action)
		if err != nil {
			return err
		}
		steps++
		total += step.Reward
		obs = step.Observation

		if step.Done {
			break
		}
	}

	logger.Episode(ctx, episode, steps, total, "symbol", cfg.Env.Symbol)
	for _, tr := range brk.Trades() {
		if err := tradelog.Append(tradeEntry(tr)); err != nil {
			logger.ErrorWithErr(ctx, "Failed to write trade log entry", err, "trade", tr.ID())
		}
	}
	entry := tradelog.EpisodeEntry{
		Symbol:        cfg.Env.Symbol,
		Episode:       episode,
		Steps:         steps,
		TotalReward:   total,
		ClosedTrades:  brk.ClosedTrades(),
		WinningTrades: brk.WinningTrades(),
		LosingTrades:  brk.LosingTrades(),
	}
	if err := tradelog.AppendEpisode(entry); err != nil {
		logger.ErrorWithErr(ctx, "Failed to write episode log entry", err, "episode", episode)
	}

	log.Printf("Episode %d: %d steps, reward %.4f, %d closed trades (%d won / %d lost)",
		episode, steps, total, brk.ClosedTrades(), brk.WinningTrades(), brk.LosingTrades())
	return nil
}

func tradeEntry(tr *trade.Trade) tradelog.TradeEntry {
	return tradelog.TradeEntry{
		TradeID:     tr.ID(),
		Symbol:      tr.Symbol(),
		Direction:   tr.Direction().String(),
		Status:      string(tr.Status()),
		Quantity:    tr.Quantity(),
		FillPrice:   tr.FillPrice(),
		ClosePrice:  tr.ClosePrice(),
		PnL:         tr.RealizedPnL(),
		PnLPct:      tr.RealizedPnLPct(),
		BarsInTrade: tr.BarsInTrade(),
	}
}

func cacheDuration(cfg *store.Config) time.Duration {
	if cfg.News.CacheMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(cfg.News.CacheMinutes) * time.Minute
}

func reportSentiment(ctx context.Context, cfg *store.Config) {
	svc := news.NewService(&news.ServiceConfig{
		MaxArticles:    cfg.News.MaxArticles,
		CacheDuration:  cacheDuration(cfg),
		ScraperTimeout: news.DefaultServiceConfig().ScraperTimeout,
		Enabled:        true,
	})
	sentiment, err := svc.GetSentiment(ctx, cfg.Env.Symbol)
	if err != nil {
		logger.ErrorWithErr(ctx, "Sentiment lookup failed", err, "symbol", cfg.Env.Symbol)
		return
	}
	log.Printf("News sentiment for %s: %s (score %.2f over %d articles)",
		sentiment.Symbol, sentiment.OverallSentiment, sentiment.OverallScore, sentiment.ArticleCount)
}
