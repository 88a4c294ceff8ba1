package news

import (
	"context"
	"fmt"
	"testing"
	"time"

	"crypto-trading-env/internal/types"
)

func TestSentimentCache(t *testing.T) {
	cache := newSentimentCache(1 * time.Second)

	symbol := "BTCUSDT"
	sentiment := types.SymbolSentiment{
		Symbol:           symbol,
		OverallSentiment: "POSITIVE",
		OverallScore:     0.8,
		Confidence:       0.9,
		Timestamp:        time.Now().Unix(),
	}

	cache.set(symbol, sentiment)

	retrieved, found := cache.get(symbol)
	if !found {
		t.Fatal("Expected to find cached sentiment")
	}
	if retrieved.Symbol != symbol {
		t.Errorf("Expected symbol %s, got %s", symbol, retrieved.Symbol)
	}
	if retrieved.OverallScore != 0.8 {
		t.Errorf("Expected score 0.8, got %f", retrieved.OverallScore)
	}

	time.Sleep(2 * time.Second)
	if _, found = cache.get(symbol); found {
		t.Error("Expected cache entry to be expired")
	}
}

func TestServiceDisabled(t *testing.T) {
	svc := NewService(&ServiceConfig{Enabled: false})

	sentiment, err := svc.GetSentiment(context.Background(), "BTCUSDT")
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if sentiment.OverallSentiment != "NEUTRAL" {
		t.Errorf("Expected NEUTRAL sentiment when disabled, got %s", sentiment.OverallSentiment)
	}
	if sentiment.Summary != "Sentiment analysis disabled" {
		t.Errorf("Expected disabled message, got %s", sentiment.Summary)
	}
}

func TestCacheCleanup(t *testing.T) {
	cache := newSentimentCache(100 * time.Millisecond)

	for i := 0; i < 5; i++ {
		sym := fmt.Sprintf("SYM%d", i)
		cache.set(sym, types.SymbolSentiment{Symbol: sym, Timestamp: time.Now().Unix()})
	}

	time.Sleep(200 * time.Millisecond)
	cache.cleanup()

	cache.mu.RLock()
	count := len(cache.data)
	cache.mu.RUnlock()
	if count != 0 {
		t.Errorf("Expected 0 cache entries after cleanup, got %d", count)
	}
}

func TestClearCache(t *testing.T) {
	svc := NewService(DefaultServiceConfig())
	svc.cache.set("BTCUSDT", types.SymbolSentiment{Symbol: "BTCUSDT"})

	if got := svc.CachedSymbols(); len(got) != 1 {
		t.Fatalf("Expected 1 cached symbol, got %d", len(got))
	}
	svc.ClearCache()
	if got := svc.CachedSymbols(); len(got) != 0 {
		t.Errorf("Expected 0 cached symbols after clear, got %d", len(got))
	}
}

func TestAnalyzerScoresHeadlines(t *testing.T) {
	a := NewSentimentAnalyzer()

	bullish := a.AnalyzeArticle(types.Article{
		Title: "Bitcoin surges to record high after ETF approval",
	})
	if bullish.Sentiment != "POSITIVE" {
		t.Errorf("bullish headline scored %s (%.2f)", bullish.Sentiment, bullish.Score)
	}

	bearish := a.AnalyzeArticle(types.Article{
		Title: "Exchange hack triggers crash and mass liquidations",
	})
	if bearish.Sentiment != "NEGATIVE" {
		t.Errorf("bearish headline scored %s (%.2f)", bearish.Sentiment, bearish.Score)
	}

	neutral := a.AnalyzeArticle(types.Article{
		Title: "Weekly roundup of blockchain development activity",
	})
	if neutral.Sentiment != "NEUTRAL" {
		t.Errorf("neutral headline scored %s (%.2f)", neutral.Sentiment, neutral.Score)
	}
}

func TestAnalyzeArticlesAggregates(t *testing.T) {
	a := NewSentimentAnalyzer()
	articles := []types.Article{
		{Title: "Bitcoin rally continues as institutional inflows climb"},
		{Title: "Bitcoin breakout confirmed after bullish milestone"},
		{Title: "Minor network upgrade scheduled for next month"},
	}

	sentiment, err := a.AnalyzeArticles(context.Background(), "BTCUSDT", articles)
	if err != nil {
		t.Fatal(err)
	}
	if sentiment.OverallSentiment != "POSITIVE" {
		t.Errorf("overall = %s (%.2f), want POSITIVE", sentiment.OverallSentiment, sentiment.OverallScore)
	}
	if sentiment.ArticleCount != 3 {
		t.Errorf("article count = %d, want 3", sentiment.ArticleCount)
	}
	if sentiment.Confidence <= 0 || sentiment.Confidence > 1 {
		t.Errorf("confidence = %f, want in (0,1]", sentiment.Confidence)
	}
}

func TestAnalyzeArticlesEmpty(t *testing.T) {
	a := NewSentimentAnalyzer()
	sentiment, err := a.AnalyzeArticles(context.Background(), "BTCUSDT", nil)
	if err != nil {
		t.Fatal(err)
	}
	if sentiment.OverallSentiment != "NEUTRAL" {
		t.Errorf("empty article set scored %s, want NEUTRAL", sentiment.OverallSentiment)
	}
}

func TestBaseAsset(t *testing.T) {
	cases := map[string]string{
		"BTCUSDT": "bitcoin",
		"ETHUSDC": "ethereum",
		"SOLUSDT": "solana",
		"FOOUSDT": "foo",
		"BITCOIN": "bitcoin",
	}
	for symbol, want := range cases {
		if got := baseAsset(symbol); got != want {
			t.Errorf("baseAsset(%s) = %s, want %s", symbol, got, want)
		}
	}
}
