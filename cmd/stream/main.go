package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"crypto-trading-env/internal/logger"
	"crypto-trading-env/internal/news"
	"crypto-trading-env/internal/store"
	"crypto-trading-env/internal/stream"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	_ = godotenv.Load()
	must(logger.Init())

	cfg, err := store.LoadConfig(*configPath)
	must(err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager, err := stream.NewManager(stream.Config{
		Symbols:    cfg.Data.Symbols,
		Timeframe:  cfg.Timeframe(),
		BufferSize: cfg.Stream.BufferSize,
	})
	must(err)
	must(manager.Start(ctx))

	sentiment := newsService(cfg)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	tick := time.NewTicker(30 * time.Second)
	defer tick.Stop()

	log.Println("Stream started.")
	for {
		select {
		case <-tick.C:
			for _, sym := range cfg.Data.Symbols {
				candles, err := manager.RecentCandles(sym, 1)
				if err != nil {
					continue
				}
				c := candles[0]
				log.Printf("[%s] close=%.2f vol=%.2f buffered=%d",
					sym, c.Close, c.Vol, manager.Cache().Len(sym))
				reportSentiment(ctx, sentiment, sym)
			}
		case <-sigc:
			log.Println("Shutting down...")
			manager.Stop(ctx)
			_ = logger.Shutdown(ctx)
			return
		}
	}
}

// newsService builds the sentiment service for the ticker loop, or nil
// when news is disabled in the config.
func newsService(cfg *store.Config) *news.Service {
	if !cfg.News.Enabled {
		return nil
	}
	return news.NewService(&news.ServiceConfig{
		MaxArticles:    cfg.News.MaxArticles,
		CacheDuration:  cacheDuration(cfg),
		ScraperTimeout: news.DefaultServiceConfig().ScraperTimeout,
		Enabled:        true,
	})
}

func cacheDuration(cfg *store.Config) time.Duration {
	if cfg.News.CacheMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(cfg.News.CacheMinutes) * time.Minute
}

func reportSentiment(ctx context.Context, svc *news.Service, symbol string) {
	if svc == nil {
		return
	}
	sentiment, err := svc.GetSentiment(ctx, symbol)
	if err != nil {
		logger.ErrorWithErr(ctx, "Sentiment lookup failed", err, "symbol", symbol)
		return
	}
	log.Printf("[%s] sentiment=%s score=%.2f articles=%d",
		symbol, sentiment.OverallSentiment, sentiment.OverallScore, sentiment.ArticleCount)
}
