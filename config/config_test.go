package config

import (
	"os"
	"testing"
)

func TestLoadConfigFromBytesDefaults(t *testing.T) {
	// 空配置：所有字段取默认值
	cfg, err := LoadConfigFromBytes([]byte("app:\n  current_exchange: binance\n"))
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}

	if cfg.Trading.Enabled {
		t.Error("交易默认应关闭")
	}
	if cfg.Trading.MaxPositionSizeUSD != 100 {
		t.Errorf("MaxPositionSizeUSD = %v, 期望 100", cfg.Trading.MaxPositionSizeUSD)
	}
	if cfg.Trading.MaxDailyTrades != 10 {
		t.Errorf("MaxDailyTrades = %d, 期望 10", cfg.Trading.MaxDailyTrades)
	}
	if cfg.Trading.MaxDailyLossUSD != 50 {
		t.Errorf("MaxDailyLossUSD = %v, 期望 50", cfg.Trading.MaxDailyLossUSD)
	}
	if cfg.Trading.MinConfidence != 0.6 {
		t.Errorf("MinConfidence = %v, 期望 0.6", cfg.Trading.MinConfidence)
	}
	if cfg.Trading.CooldownMs != 300000 {
		t.Errorf("CooldownMs = %d, 期望 300000", cfg.Trading.CooldownMs)
	}
	if len(cfg.Trading.AllowedSymbols) != 2 || cfg.Trading.AllowedSymbols[0] != "ETH" || cfg.Trading.AllowedSymbols[1] != "BTC" {
		t.Errorf("AllowedSymbols = %v, 期望 [ETH BTC]", cfg.Trading.AllowedSymbols)
	}
	if cfg.Trading.QuoteAsset != "USDT" {
		t.Errorf("QuoteAsset = %s, 期望 USDT", cfg.Trading.QuoteAsset)
	}
	if cfg.DecisionSource.Channel != "tradepilot:decisions" {
		t.Errorf("Channel = %s", cfg.DecisionSource.Channel)
	}
	if cfg.Web.Port != 28800 {
		t.Errorf("Web.Port = %d, 期望 28800", cfg.Web.Port)
	}
}

func TestLoadConfigFromBytesOverrides(t *testing.T) {
	yaml := `
trading:
  enabled: true
  max_position_size_usd: 200
  max_daily_trades: 5
  min_confidence: 0.8
  allowed_symbols: [sol, eth]
`
	cfg, err := LoadConfigFromBytes([]byte(yaml))
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}

	if !cfg.Trading.Enabled {
		t.Error("Enabled 应为 true")
	}
	if cfg.Trading.MaxPositionSizeUSD != 200 {
		t.Errorf("MaxPositionSizeUSD = %v", cfg.Trading.MaxPositionSizeUSD)
	}
	if cfg.Trading.MaxDailyTrades != 5 {
		t.Errorf("MaxDailyTrades = %d", cfg.Trading.MaxDailyTrades)
	}
	// 币种归一化为大写
	if cfg.Trading.AllowedSymbols[0] != "SOL" || cfg.Trading.AllowedSymbols[1] != "ETH" {
		t.Errorf("AllowedSymbols = %v", cfg.Trading.AllowedSymbols)
	}
}

func TestLoadConfigFromBytesInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"置信度大于1", "trading:\n  min_confidence: 1.5\n"},
		{"冷却时间为负", "trading:\n  cooldown_ms: -1\n"},
		{"不支持的数据库类型", "database:\n  type: oracle\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfigFromBytes([]byte(tt.yaml)); err == nil {
				t.Fatal("期望验证失败")
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	envs := map[string]string{
		"TRADING_ENABLED":       "true",
		"MAX_POSITION_SIZE_USD": "250",
		"MAX_DAILY_TRADES":      "3",
		"MAX_DAILY_LOSS_USD":    "80",
		"MIN_TRADE_CONFIDENCE":  "0.75",
		"TRADE_COOLDOWN_MS":     "60000",
		"ALLOWED_SYMBOLS":       "sol, btc",
		"BINANCE_API_KEY":       "test-key",
		"BINANCE_SECRET_KEY":    "test-secret",
	}
	for k, v := range envs {
		os.Setenv(k, v)
	}
	defer func() {
		for k := range envs {
			os.Unsetenv(k)
		}
	}()

	cfg := CreateMinimalConfig()
	cfg.ApplyEnvOverrides()

	if !cfg.Trading.Enabled {
		t.Error("TRADING_ENABLED 未生效")
	}
	if cfg.Trading.MaxPositionSizeUSD != 250 {
		t.Errorf("MAX_POSITION_SIZE_USD 未生效: %v", cfg.Trading.MaxPositionSizeUSD)
	}
	if cfg.Trading.MaxDailyTrades != 3 {
		t.Errorf("MAX_DAILY_TRADES 未生效: %d", cfg.Trading.MaxDailyTrades)
	}
	if cfg.Trading.MaxDailyLossUSD != 80 {
		t.Errorf("MAX_DAILY_LOSS_USD 未生效: %v", cfg.Trading.MaxDailyLossUSD)
	}
	if cfg.Trading.MinConfidence != 0.75 {
		t.Errorf("MIN_TRADE_CONFIDENCE 未生效: %v", cfg.Trading.MinConfidence)
	}
	if cfg.Trading.CooldownMs != 60000 {
		t.Errorf("TRADE_COOLDOWN_MS 未生效: %d", cfg.Trading.CooldownMs)
	}
	if len(cfg.Trading.AllowedSymbols) != 2 || cfg.Trading.AllowedSymbols[0] != "SOL" {
		t.Errorf("ALLOWED_SYMBOLS 未生效: %v", cfg.Trading.AllowedSymbols)
	}
	if !cfg.HasExchangeCredentials() {
		t.Error("环境变量注入的凭据未生效")
	}
}

func TestIsSymbolAllowed(t *testing.T) {
	trading := &TradingConfig{AllowedSymbols: []string{"ETH", "BTC"}}

	if !trading.IsSymbolAllowed("ETH") {
		t.Error("ETH 应被允许")
	}
	if !trading.IsSymbolAllowed("eth") {
		t.Error("币种匹配应忽略大小写")
	}
	if trading.IsSymbolAllowed("DOGE") {
		t.Error("DOGE 不应被允许")
	}
}

func TestHasExchangeCredentials(t *testing.T) {
	cfg := CreateMinimalConfig()
	if cfg.HasExchangeCredentials() {
		t.Error("无凭据时应返回 false")
	}

	cfg.Exchanges["binance"] = ExchangeConfig{APIKey: "k", SecretKey: "s"}
	if !cfg.HasExchangeCredentials() {
		t.Error("有凭据时应返回 true")
	}

	cfg.Exchanges["binance"] = ExchangeConfig{APIKey: "k"}
	if cfg.HasExchangeCredentials() {
		t.Error("缺少 SecretKey 时应返回 false")
	}
}
