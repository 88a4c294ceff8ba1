package store

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"crypto-trading-env/internal/types"
)

type Config struct {
	Data struct {
		Source            string   `yaml:"source"`
		Symbols           []string `yaml:"symbols"`
		Timeframe         string   `yaml:"timeframe"`
		Since             string   `yaml:"since"` // YYYY-MM-DD, defaults to 2015-01-01
		Until             string   `yaml:"until"` // YYYY-MM-DD, empty = today UTC
		IncludeIndicators bool     `yaml:"include_indicators"`
	} `yaml:"data"`
	Indicators struct {
		ATRPeriod  int `yaml:"atr_period"`
		SMAPeriod  int `yaml:"sma_period"`
		EMAPeriod  int `yaml:"ema_period"`
		RSIPeriod  int `yaml:"rsi_period"`
		MACDFast   int `yaml:"macd_fast"`
		MACDSlow   int `yaml:"macd_slow"`
		MACDSignal int `yaml:"macd_signal"`
	} `yaml:"indicators"`
	Env struct {
		Symbol      string  `yaml:"symbol"`
		WindowSize  int     `yaml:"window_size"`
		StopLossPct float64 `yaml:"stop_loss_pct"`
		RiskReward  float64 `yaml:"risk_reward"`
		Discount    float64 `yaml:"discount"`
		Commission  float64 `yaml:"commission"`
		Quantity    float64 `yaml:"quantity"`
		Leverage    float64 `yaml:"leverage"`
		Episodes    int     `yaml:"episodes"`
		Policy      string  `yaml:"policy"` // FLAT or SMA_CROSS
	} `yaml:"env"`
	Stream struct {
		Enabled    bool `yaml:"enabled"`
		BufferSize int  `yaml:"buffer_size"`
	} `yaml:"stream"`
	News struct {
		Enabled      bool `yaml:"enabled"`
		MaxArticles  int  `yaml:"max_articles"`
		CacheMinutes int  `yaml:"cache_minutes"`
	} `yaml:"news"`
	Dataset struct {
		Path string `yaml:"path"`
	} `yaml:"dataset"`
}

func (c *Config) Validate() error {
	if c.Data.Source != "BINANCE" {
		return fmt.Errorf("invalid data.source '%s': only 'BINANCE' is supported", c.Data.Source)
	}
	if len(c.Data.Symbols) == 0 {
		return errors.New("data.symbols cannot be empty")
	}
	if _, err := types.ParseTimeframe(c.Data.Timeframe); err != nil {
		return fmt.Errorf("invalid data.timeframe: %w", err)
	}
	if c.Env.WindowSize <= 0 {
		return fmt.Errorf("env.window_size must be positive, got %d", c.Env.WindowSize)
	}
	if c.Env.StopLossPct <= 0 || c.Env.StopLossPct >= 100 {
		return fmt.Errorf("env.stop_loss_pct must be between 0-100, got %.2f", c.Env.StopLossPct)
	}
	if c.Env.RiskReward <= 0 {
		return fmt.Errorf("env.risk_reward must be positive, got %.2f", c.Env.RiskReward)
	}
	if c.Env.Discount <= 0 || c.Env.Discount > 1 {
		return fmt.Errorf("env.discount must be in (0,1], got %.4f", c.Env.Discount)
	}
	if c.Env.Policy != "FLAT" && c.Env.Policy != "SMA_CROSS" {
		return fmt.Errorf("env.policy must be 'FLAT' or 'SMA_CROSS', got '%s'", c.Env.Policy)
	}
	return nil
}

// Timeframe returns the parsed bar interval. Valid after Validate.
func (c *Config) Timeframe() types.Timeframe {
	tf, _ := types.ParseTimeframe(c.Data.Timeframe)
	return tf
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	applyDefaults(&c)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}

func applyDefaults(c *Config) {
	if c.Data.Source == "" {
		c.Data.Source = "BINANCE"
	}
	if c.Data.Timeframe == "" {
		c.Data.Timeframe = "1h"
	}
	if c.Data.Since == "" {
		c.Data.Since = "2015-01-01"
	}
	// Indicator defaults
	if c.Indicators.ATRPeriod == 0 {
		c.Indicators.ATRPeriod = 24
	}
	if c.Indicators.SMAPeriod == 0 {
		c.Indicators.SMAPeriod = 20
	}
	if c.Indicators.EMAPeriod == 0 {
		c.Indicators.EMAPeriod = 50
	}
	if c.Indicators.RSIPeriod == 0 {
		c.Indicators.RSIPeriod = 14
	}
	if c.Indicators.MACDFast == 0 {
		c.Indicators.MACDFast = 12
	}
	if c.Indicators.MACDSlow == 0 {
		c.Indicators.MACDSlow = 26
	}
	if c.Indicators.MACDSignal == 0 {
		c.Indicators.MACDSignal = 9
	}
	// Environment defaults
	if c.Env.Symbol == "" && len(c.Data.Symbols) > 0 {
		c.Env.Symbol = c.Data.Symbols[0]
	}
	if c.Env.WindowSize == 0 {
		c.Env.WindowSize = 24
	}
	if c.Env.StopLossPct == 0 {
		c.Env.StopLossPct = 2.0
	}
	if c.Env.RiskReward == 0 {
		c.Env.RiskReward = 1.5
	}
	if c.Env.Discount == 0 {
		c.Env.Discount = 0.9
	}
	if c.Env.Quantity == 0 {
		c.Env.Quantity = 1.0
	}
	if c.Env.Leverage == 0 {
		c.Env.Leverage = 1.0
	}
	if c.Env.Episodes == 0 {
		c.Env.Episodes = 1
	}
	if c.Env.Policy == "" {
		c.Env.Policy = "FLAT"
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = 200
	}
	if c.News.MaxArticles == 0 {
		c.News.MaxArticles = 15
	}
	if c.News.CacheMinutes == 0 {
		c.News.CacheMinutes = 60
	}
	if c.Dataset.Path == "" {
		c.Dataset.Path = "data/dataset.csv"
	}
}
