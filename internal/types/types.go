package types

// Candle is one OHLCV bar. Ts is unix milliseconds. Traded is false for
// grid slots where the exchange reported no data; such bars repeat the
// previous close with zero volume.
type Candle struct {
	Ts                          int64
	Open, High, Low, Close, Vol float64
	Traded                      bool
}

// Direction of a trade. The numeric value flips the sign of price moves so
// PnL math is shared between longs and shorts.
type Direction int

const (
	Long  Direction = 1
	Short Direction = -1
)

func (d Direction) String() string {
	if d == Short {
		return "SHORT"
	}
	return "LONG"
}

// TradeStatus is the lifecycle state of a trade.
type TradeStatus string

const (
	TradeCreated  TradeStatus = "created"
	TradeFilled   TradeStatus = "filled"
	TradeRejected TradeStatus = "rejected"
	TradeClosed   TradeStatus = "closed"
)

// Article is a scraped news headline for a symbol.
type Article struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Content     string `json:"content,omitempty"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at,omitempty"`
	Symbol      string `json:"symbol"`
}

// ArticleSentiment is the scored sentiment of a single article.
type ArticleSentiment struct {
	ArticleTitle string  `json:"article_title"`
	URL          string  `json:"url"`
	Sentiment    string  `json:"sentiment"` // POSITIVE, NEGATIVE, NEUTRAL
	Score        float64 `json:"score"`     // -1.0 to 1.0
}

// SymbolSentiment aggregates article sentiment for a symbol.
type SymbolSentiment struct {
	Symbol           string             `json:"symbol"`
	OverallSentiment string             `json:"overall_sentiment"`
	OverallScore     float64            `json:"overall_score"`
	ArticleCount     int                `json:"article_count"`
	Articles         []ArticleSentiment `json:"articles,omitempty"`
	Summary          string             `json:"summary"`
	Confidence       float64            `json:"confidence"`
	Timestamp        int64              `json:"timestamp"`
}
