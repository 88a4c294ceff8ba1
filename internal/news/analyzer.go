package news

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crypto-trading-env/internal/logger"
	"crypto-trading-env/internal/types"
)

// SentimentAnalyzer scores crypto headlines with a term lexicon. Titles
// weigh more than body text since scraped bodies are often truncated.
type SentimentAnalyzer struct {
	positive map[string]float64
	negative map[string]float64
}

// NewSentimentAnalyzer creates an analyzer with the built-in lexicon.
func NewSentimentAnalyzer() *SentimentAnalyzer {
	return &SentimentAnalyzer{
		positive: positiveTerms(),
		negative: negativeTerms(),
	}
}

func positiveTerms() map[string]float64 {
	return map[string]float64{
		"surge": 1.0, "surges": 1.0, "soar": 1.0, "soars": 1.0,
		"rally": 0.8, "rallies": 0.8, "breakout": 0.8,
		"gain": 0.6, "gains": 0.6, "climb": 0.6, "climbs": 0.6,
		"rise": 0.5, "rises": 0.5, "rebound": 0.6, "recovers": 0.6,
		"record": 0.7, "high": 0.4, "bullish": 1.0,
		"adoption": 0.7, "approval": 0.8, "approved": 0.8,
		"etf": 0.5, "institutional": 0.5, "partnership": 0.6,
		"upgrade": 0.6, "milestone": 0.5, "accumulate": 0.5,
		"inflow": 0.6, "inflows": 0.6, "halving": 0.4,
	}
}

func negativeTerms() map[string]float64 {
	return map[string]float64{
		"crash": -1.0, "crashes": -1.0, "plunge": -1.0, "plunges": -1.0,
		"plummet": -1.0, "plummets": -1.0, "collapse": -1.0,
		"dump": -0.8, "selloff": -0.8, "sell-off": -0.8,
		"drop": -0.5, "drops": -0.5, "fall": -0.5, "falls": -0.5,
		"decline": -0.5, "declines": -0.5, "tumble": -0.7, "tumbles": -0.7,
		"slump": -0.7, "low": -0.4, "bearish": -1.0,
		"hack": -1.0, "hacked": -1.0, "exploit": -0.9, "breach": -0.9,
		"ban": -0.8, "banned": -0.8, "lawsuit": -0.7, "sues": -0.7,
		"fraud": -0.9, "scam": -0.9, "scandal": -0.8,
		"liquidation": -0.7, "liquidations": -0.7, "fear": -0.6,
		"outflow": -0.6, "outflows": -0.6, "crackdown": -0.7,
		"delist": -0.8, "insolvency": -1.0, "bankruptcy": -1.0,
	}
}

// thresholds for mapping an aggregate score to a label
const (
	positiveThreshold = 0.15
	negativeThreshold = -0.15
)

// AnalyzeArticle scores one article.
func (a *SentimentAnalyzer) AnalyzeArticle(article types.Article) types.ArticleSentiment {
	// Title terms count double.
	score := a.scoreText(article.Title)*2 + a.scoreText(article.Content)
	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}

	return types.ArticleSentiment{
		ArticleTitle: article.Title,
		URL:          article.URL,
		Sentiment:    labelFor(score),
		Score:        score,
	}
}

// scoreText sums lexicon weights over the words of text, normalized by
// the number of matched terms.
func (a *SentimentAnalyzer) scoreText(text string) float64 {
	if text == "" {
		return 0
	}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == ':' || r == ';' ||
			r == '!' || r == '?' || r == '\'' || r == '"' || r == '(' || r == ')'
	})

	sum := 0.0
	matched := 0
	for _, w := range words {
		if v, ok := a.positive[w]; ok {
			sum += v
			matched++
		} else if v, ok := a.negative[w]; ok {
			sum += v
			matched++
		}
	}
	if matched == 0 {
		return 0
	}
	return sum / float64(matched)
}

func labelFor(score float64) string {
	switch {
	case score >= positiveThreshold:
		return "POSITIVE"
	case score <= negativeThreshold:
		return "NEGATIVE"
	default:
		return "NEUTRAL"
	}
}

// AnalyzeArticles aggregates article scores into one symbol sentiment.
func (a *SentimentAnalyzer) AnalyzeArticles(ctx context.Context, symbol string, articles []types.Article) (types.SymbolSentiment, error) {
	if len(articles) == 0 {
		return types.SymbolSentiment{
			Symbol:           symbol,
			OverallSentiment: "NEUTRAL",
			Summary:          "No articles found",
			Timestamp:        time.Now().Unix(),
		}, nil
	}

	scored := make([]types.ArticleSentiment, 0, len(articles))
	sum := 0.0
	opinionated := 0
	for _, article := range articles {
		s := a.AnalyzeArticle(article)
		scored = append(scored, s)
		sum += s.Score
		if s.Sentiment != "NEUTRAL" {
			opinionated++
		}
	}

	overall := sum / float64(len(scored))
	// Confidence grows with the share of articles that took a side.
	confidence := float64(opinionated) / float64(len(scored))

	sentiment := types.SymbolSentiment{
		Symbol:           symbol,
		OverallSentiment: labelFor(overall),
		OverallScore:     overall,
		ArticleCount:     len(scored),
		Articles:         scored,
		Summary: fmt.Sprintf("%d of %d articles carried directional sentiment, average score %.2f",
			opinionated, len(scored), overall),
		Confidence: confidence,
		Timestamp:  time.Now().Unix(),
	}

	logger.Info(ctx, "Sentiment analysis completed",
		"symbol", symbol,
		"articles", len(scored),
		"sentiment", sentiment.OverallSentiment,
		"score", overall)
	return sentiment, nil
}
