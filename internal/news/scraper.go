package news

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"crypto-trading-env/internal/logger"
	"crypto-trading-env/internal/types"
)

// Scraper pulls headlines for a coin from crypto news sites.
type Scraper struct {
	sources []Source
	timeout time.Duration
}

// Source defines one news site to scrape.
type Source struct {
	Name       string
	BaseURL    string
	SearchPath string // {symbol} is replaced with the base asset
	Selectors  ArticleSelectors
	RateLimit  time.Duration
}

// ArticleSelectors are the CSS selectors for extracting article data.
type ArticleSelectors struct {
	ArticleContainer string
	Title            string
	URL              string
	Content          string
	PublishedAt      string
}

// NewScraper creates a scraper with the default crypto sources.
func NewScraper(timeout time.Duration) *Scraper {
	return &Scraper{
		sources: defaultSources(),
		timeout: timeout,
	}
}

func defaultSources() []Source {
	return []Source{
		{
			Name:       "CoinDesk",
			BaseURL:    "https://www.coindesk.com",
			SearchPath: "/search?s={symbol}",
			Selectors: ArticleSelectors{
				ArticleContainer: "div.article-card",
				Title:            "a.card-title, h6 a",
				URL:              "a.card-title, h6 a",
				Content:          "p",
				PublishedAt:      "time",
			},
			RateLimit: 2 * time.Second,
		},
		{
			Name:       "CoinTelegraph",
			BaseURL:    "https://cointelegraph.com",
			SearchPath: "/tags/{symbol}",
			Selectors: ArticleSelectors{
				ArticleContainer: "article",
				Title:            "a span, h2 a",
				URL:              "a",
				Content:          "p",
				PublishedAt:      "time",
			},
			RateLimit: 2 * time.Second,
		},
		{
			Name:       "CryptoNews",
			BaseURL:    "https://cryptonews.com",
			SearchPath: "/news/{symbol}-news/",
			Selectors: ArticleSelectors{
				ArticleContainer: "div.article__item",
				Title:            "a.article__title",
				URL:              "a.article__title",
				Content:          "div.article__excerpt",
				PublishedAt:      "time",
			},
			RateLimit: 2 * time.Second,
		},
	}
}

// baseAsset maps a trading pair to the asset name used in search URLs,
// e.g. BTCUSDT -> bitcoin, ETHUSDT -> ethereum. Unknown pairs fall back
// to the lowercased base symbol.
func baseAsset(symbol string) string {
	known := map[string]string{
		"BTC":  "bitcoin",
		"ETH":  "ethereum",
		"SOL":  "solana",
		"XRP":  "xrp",
		"ADA":  "cardano",
		"DOGE": "dogecoin",
		"BNB":  "bnb",
	}
	base := symbol
	for _, quote := range []string{"USDT", "USDC", "BUSD", "USD", "EUR", "BTC"} {
		if len(symbol) > len(quote) && strings.HasSuffix(symbol, quote) {
			base = symbol[:len(symbol)-len(quote)]
			break
		}
	}
	if name, ok := known[base]; ok {
		return name
	}
	return strings.ToLower(base)
}

// ScrapeNews fetches articles for a symbol from all sources. Sources
// that fail are skipped, not fatal.
func (s *Scraper) ScrapeNews(ctx context.Context, symbol string, maxArticles int) ([]types.Article, error) {
	logger.Info(ctx, "Starting news scraping", "symbol", symbol, "sources", len(s.sources))

	asset := baseAsset(symbol)
	allArticles := []types.Article{}
	articlesPerSource := maxArticles / len(s.sources)
	if articlesPerSource < 1 {
		articlesPerSource = 1
	}

	for _, source := range s.sources {
		articles, err := s.scrapeSource(ctx, source, symbol, asset, articlesPerSource)
		if err != nil {
			logger.ErrorWithErr(ctx, "Failed to scrape source", err, "source", source.Name, "symbol", symbol)
			continue
		}
		allArticles = append(allArticles, articles...)

		time.Sleep(source.RateLimit)
	}

	logger.Info(ctx, "News scraping completed", "symbol", symbol, "articles", len(allArticles))
	return allArticles, nil
}

func (s *Scraper) scrapeSource(ctx context.Context, source Source, symbol, asset string, maxArticles int) ([]types.Article, error) {
	articles := []types.Article{}

	c := colly.NewCollector(
		colly.AllowedDomains(domainOf(source.BaseURL)),
		colly.MaxDepth(1),
		colly.Async(false),
	)
	c.SetRequestTimeout(s.timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	})

	c.OnHTML(source.Selectors.ArticleContainer, func(e *colly.HTMLElement) {
		if len(articles) >= maxArticles {
			return
		}

		title := strings.TrimSpace(e.ChildText(source.Selectors.Title))
		if title == "" {
			return
		}
		articleURL := e.ChildAttr(source.Selectors.URL, "href")
		if articleURL == "" {
			return
		}
		if !strings.HasPrefix(articleURL, "http") {
			articleURL = source.BaseURL + articleURL
		}

		articles = append(articles, types.Article{
			Title:       title,
			URL:         articleURL,
			Content:     strings.TrimSpace(e.ChildText(source.Selectors.Content)),
			Source:      source.Name,
			PublishedAt: strings.TrimSpace(e.ChildText(source.Selectors.PublishedAt)),
			Symbol:      symbol,
		})
	})

	c.OnError(func(r *colly.Response, err error) {
		logger.ErrorWithErr(ctx, "Scraping error", err, "source", source.Name, "url", r.Request.URL.String())
	})

	searchURL := source.BaseURL + strings.ReplaceAll(source.SearchPath, "{symbol}", asset)
	if err := c.Visit(searchURL); err != nil {
		return nil, fmt.Errorf("failed to visit %s: %w", searchURL, err)
	}
	c.Wait()

	return articles, nil
}

func domainOf(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// ScrapeGoogleNews searches Google News as a fallback when the primary
// sources return nothing.
func (s *Scraper) ScrapeGoogleNews(ctx context.Context, symbol string, maxArticles int) ([]types.Article, error) {
	articles := []types.Article{}

	c := colly.NewCollector(
		colly.AllowedDomains("news.google.com", "www.google.com"),
	)
	c.SetRequestTimeout(s.timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	})

	c.OnHTML("article", func(e *colly.HTMLElement) {
		if len(articles) >= maxArticles {
			return
		}

		title := e.ChildText("h3, h4")
		link := e.ChildAttr("a", "href")
		if title == "" || link == "" {
			return
		}
		if strings.HasPrefix(link, "./articles/") {
			link = "https://news.google.com" + link[1:]
		}

		articles = append(articles, types.Article{
			Title:  title,
			URL:    link,
			Source: "GoogleNews",
			Symbol: symbol,
		})
	})

	searchQuery := url.QueryEscape(baseAsset(symbol) + " cryptocurrency news")
	searchURL := fmt.Sprintf("https://news.google.com/search?q=%s&hl=en-US&gl=US&ceid=US:en", searchQuery)

	if err := c.Visit(searchURL); err != nil {
		return nil, fmt.Errorf("failed to scrape Google News: %w", err)
	}
	c.Wait()

	logger.Info(ctx, "Google News scraping completed", "symbol", symbol, "articles", len(articles))
	return articles, nil
}
