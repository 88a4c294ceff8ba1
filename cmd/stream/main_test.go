package main

import (
	"context"
	"testing"
	"time"

	"crypto-trading-env/internal/store"
)

func TestNewsServiceDisabled(t *testing.T) {
	cfg := &store.Config{}
	if svc := newsService(cfg); svc != nil {
		t.Fatal("expected no sentiment service when news is disabled")
	}
	// A nil service is a no-op in the ticker loop.
	reportSentiment(context.Background(), nil, "BTCUSDT")
}

func TestNewsServiceEnabled(t *testing.T) {
	cfg := &store.Config{}
	cfg.News.Enabled = true
	cfg.News.MaxArticles = 5
	cfg.News.CacheMinutes = 30
	if svc := newsService(cfg); svc == nil {
		t.Fatal("expected a sentiment service when news is enabled")
	}
}

func TestCacheDurationDefault(t *testing.T) {
	cfg := &store.Config{}
	if got := cacheDuration(cfg); got != time.Hour {
		t.Errorf("cache duration = %v, want 1h default", got)
	}
	cfg.News.CacheMinutes = 15
	if got := cacheDuration(cfg); got != 15*time.Minute {
		t.Errorf("cache duration = %v, want 15m", got)
	}
}
