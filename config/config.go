package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExchangeConfig 交易所配置
type ExchangeConfig struct {
	APIKey    string  `yaml:"api_key" json:"api_key"`
	SecretKey string  `yaml:"secret_key" json:"secret_key"`
	FeeRate   float64 `yaml:"fee_rate" json:"fee_rate"` // 手续费率（例如 0.0004 表示 0.04%）
	Testnet   bool    `yaml:"testnet" json:"testnet"`   // 是否使用测试网（默认 false）
}

// TradingConfig 交易风控配置（决策执行的静态限额）
type TradingConfig struct {
	Enabled            bool     `yaml:"enabled"`               // 主开关：false 时只验证和记录，不真实下单
	MaxPositionSizeUSD float64  `yaml:"max_position_size_usd"` // 单笔最大名义金额（USD），默认100
	MaxDailyTrades     int      `yaml:"max_daily_trades"`      // 每日最大交易次数，默认10
	MaxDailyLossUSD    float64  `yaml:"max_daily_loss_usd"`    // 每日最大亏损（正数），默认50
	MinConfidence      float64  `yaml:"min_confidence"`        // 最低置信度，默认0.6
	CooldownMs         int64    `yaml:"cooldown_ms"`           // 两次成交之间的冷却时间（毫秒），默认300000
	AllowedSymbols     []string `yaml:"allowed_symbols"`       // 允许交易的币种，默认 [ETH, BTC]
	QuoteAsset         string   `yaml:"quote_asset"`           // 计价资产，默认 USDT
}

// IsSymbolAllowed 判断币种是否在允许列表中
func (t *TradingConfig) IsSymbolAllowed(symbol string) bool {
	for _, s := range t.AllowedSymbols {
		if strings.EqualFold(s, symbol) {
			return true
		}
	}
	return false
}

// Config 决策执行系统配置
type Config struct {
	// 应用配置
	App struct {
		CurrentExchange string `yaml:"current_exchange"` // 当前使用的交易所
	} `yaml:"app"`

	// 多交易所配置
	Exchanges map[string]ExchangeConfig `yaml:"exchanges"`

	// 交易风控配置
	Trading TradingConfig `yaml:"trading"`

	// 决策来源配置
	DecisionSource struct {
		Type    string `yaml:"type"`    // 来源类型: redis, none，默认 redis
		Channel string `yaml:"channel"` // 订阅频道，默认 "tradepilot:decisions"

		Redis struct {
			Addr     string `yaml:"addr"`      // Redis 地址，默认 localhost:6379
			Password string `yaml:"password"`  // Redis 密码，默认为空
			DB       int    `yaml:"db"`        // Redis 数据库，默认0
			PoolSize int    `yaml:"pool_size"` // 连接池大小，默认10
		} `yaml:"redis"`
	} `yaml:"decision_source"`

	System struct {
		LogLevel         string `yaml:"log_level"`
		Timezone         string `yaml:"timezone"`           // 时区，如 "UTC"（仅影响日志展示）
		LogRetentionDays int    `yaml:"log_retention_days"` // 日志保留天数（默认30天，0表示不清理）
	} `yaml:"system"`

	// 实例配置（多实例部署）
	Instance struct {
		ID string `yaml:"id"` // 实例唯一标识，默认为空（单实例模式）
	} `yaml:"instance"`

	// 数据库配置（支持 SQLite、PostgreSQL、MySQL）
	Database struct {
		Type            string `yaml:"type"`              // 数据库类型: sqlite, postgres, mysql，默认 sqlite
		DSN             string `yaml:"dsn"`               // 数据源名称，默认 ./data/tradepilot.db
		MaxOpenConns    int    `yaml:"max_open_conns"`    // 最大打开连接数，默认100
		MaxIdleConns    int    `yaml:"max_idle_conns"`    // 最大空闲连接数，默认10
		ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // 连接最大生命周期（秒），默认3600
		LogLevel        string `yaml:"log_level"`         // 日志级别: silent, error, warn, info，默认 error
	} `yaml:"database"`

	// 分布式锁配置（多实例部署）
	DistributedLock struct {
		Enabled    bool   `yaml:"enabled"`     // 是否启用分布式锁，默认false（单实例模式）
		Type       string `yaml:"type"`        // 锁类型: redis，默认 redis
		Prefix     string `yaml:"prefix"`      // 锁键前缀，默认 "tradepilot:lock:"
		DefaultTTL int    `yaml:"default_ttl"` // 默认锁过期时间（秒），默认5

		Redis struct {
			Addr     string `yaml:"addr"`      // Redis 地址，默认 localhost:6379
			Password string `yaml:"password"`  // Redis 密码，默认为空
			DB       int    `yaml:"db"`        // Redis 数据库，默认0
			PoolSize int    `yaml:"pool_size"` // 连接池大小，默认10
		} `yaml:"redis"`
	} `yaml:"distributed_lock"`

	// 存储配置（异步批量写入）
	Storage struct {
		Enabled       bool   `yaml:"enabled"`        // 是否启用存储，默认true
		BufferSize    int    `yaml:"buffer_size"`    // 缓冲区大小，默认1000
		BatchSize     int    `yaml:"batch_size"`     // 批量写入大小，默认100
		FlushInterval int    `yaml:"flush_interval"` // 刷新间隔（秒），默认5
		FallbackPath  string `yaml:"fallback_path"`  // 数据库不可用时的降级文件，默认 ./data/trade_log_fallback.jsonl
		SQLitePath    string `yaml:"sqlite_path"`    // 原生 SQLite 日志库路径，默认 ./data/tradepilot_logs.db
	} `yaml:"storage"`

	// 时间间隔配置（单位：秒，除非特别说明）
	Timing struct {
		PriceRefreshInterval int `yaml:"price_refresh_interval"` // 行情/账户快照刷新间隔（秒，默认30）
		HeartbeatInterval    int `yaml:"heartbeat_interval"`     // 状态心跳写入间隔（秒，默认60）
		HTTPTimeout          int `yaml:"http_timeout"`           // 外部调用超时（秒，默认15）
	} `yaml:"timing"`

	// 通知配置
	Notifications struct {
		Enabled bool `yaml:"enabled"`

		Telegram struct {
			Enabled  bool   `yaml:"enabled"`
			BotToken string `yaml:"bot_token"`
			ChatID   string `yaml:"chat_id"`
		} `yaml:"telegram"`

		Webhook struct {
			Enabled bool   `yaml:"enabled"`
			URL     string `yaml:"url"`
			Timeout int    `yaml:"timeout"` // 超时时间（秒，默认3）
		} `yaml:"webhook"`
	} `yaml:"notifications"`

	// 指标配置
	Metrics struct {
		Enabled         bool `yaml:"enabled"`          // 是否启用 Prometheus 指标，默认true
		CollectInterval int  `yaml:"collect_interval"` // 采集间隔（秒），默认60
	} `yaml:"metrics"`

	// 系统资源看门狗配置
	Watchdog struct {
		Enabled bool `yaml:"enabled"` // 是否启用看门狗，默认true

		Sampling struct {
			Interval int `yaml:"interval"` // 采样间隔（秒），默认60
		} `yaml:"sampling"`

		Notifications struct {
			Enabled         bool    `yaml:"enabled"`
			CPUPercent      float64 `yaml:"cpu_percent"`      // CPU 告警阈值（百分比），默认80
			MemoryMB        float64 `yaml:"memory_mb"`        // 内存告警阈值（MB），默认1024
			CooldownMinutes int     `yaml:"cooldown_minutes"` // 告警冷却时间（分钟），默认30
		} `yaml:"notifications"`
	} `yaml:"watchdog"`

	// Web 服务配置（只读状态接口）
	Web struct {
		Enabled bool   `yaml:"enabled"` // 是否启用 Web 服务，默认true
		Host    string `yaml:"host"`    // 监听地址，默认 0.0.0.0
		Port    int    `yaml:"port"`    // 监听端口，默认 28800
	} `yaml:"web"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %v", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %v", err)
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %v", err)
	}

	return &cfg, nil
}

// LoadConfigFromBytes 从字节数组加载配置（用于测试）
func LoadConfigFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %v", err)
	}

	return &cfg, nil
}

// SaveConfig 保存配置到文件
func SaveConfig(cfg *Config, configPath string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %v", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %v", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %v", err)
	}

	return nil
}

// CreateMinimalConfig 创建最小化配置（配置文件缺失时降级运行）
func CreateMinimalConfig() *Config {
	cfg := &Config{}

	cfg.App.CurrentExchange = "binance"
	cfg.Exchanges = make(map[string]ExchangeConfig)

	// 交易默认关闭：只验证和记录
	cfg.Trading.Enabled = false
	cfg.Trading.MaxPositionSizeUSD = 100
	cfg.Trading.MaxDailyTrades = 10
	cfg.Trading.MaxDailyLossUSD = 50
	cfg.Trading.MinConfidence = 0.6
	cfg.Trading.CooldownMs = 300000
	cfg.Trading.AllowedSymbols = []string{"ETH", "BTC"}
	cfg.Trading.QuoteAsset = "USDT"

	cfg.DecisionSource.Type = "redis"
	cfg.DecisionSource.Channel = "tradepilot:decisions"
	cfg.DecisionSource.Redis.Addr = "localhost:6379"
	cfg.DecisionSource.Redis.PoolSize = 10

	cfg.System.LogLevel = "INFO"
	cfg.System.Timezone = "UTC"
	cfg.System.LogRetentionDays = 30

	cfg.Database.Type = "sqlite"
	cfg.Database.DSN = "./data/tradepilot.db"
	cfg.Database.MaxOpenConns = 100
	cfg.Database.MaxIdleConns = 10
	cfg.Database.ConnMaxLifetime = 3600
	cfg.Database.LogLevel = "error"

	cfg.DistributedLock.Enabled = false
	cfg.DistributedLock.Type = "redis"
	cfg.DistributedLock.Prefix = "tradepilot:lock:"
	cfg.DistributedLock.DefaultTTL = 5
	cfg.DistributedLock.Redis.Addr = "localhost:6379"
	cfg.DistributedLock.Redis.PoolSize = 10

	cfg.Storage.Enabled = true
	cfg.Storage.BufferSize = 1000
	cfg.Storage.BatchSize = 100
	cfg.Storage.FlushInterval = 5
	cfg.Storage.FallbackPath = "./data/trade_log_fallback.jsonl"
	cfg.Storage.SQLitePath = "./data/tradepilot_logs.db"

	cfg.Timing.PriceRefreshInterval = 30
	cfg.Timing.HeartbeatInterval = 60
	cfg.Timing.HTTPTimeout = 15

	cfg.Notifications.Enabled = false
	cfg.Notifications.Webhook.Timeout = 3

	cfg.Metrics.Enabled = true
	cfg.Metrics.CollectInterval = 60

	cfg.Watchdog.Enabled = true
	cfg.Watchdog.Sampling.Interval = 60
	cfg.Watchdog.Notifications.Enabled = true
	cfg.Watchdog.Notifications.CPUPercent = 80
	cfg.Watchdog.Notifications.MemoryMB = 1024
	cfg.Watchdog.Notifications.CooldownMinutes = 30

	cfg.Web.Enabled = true
	cfg.Web.Host = "0.0.0.0"
	cfg.Web.Port = 28800

	return cfg
}

// ApplyEnvOverrides 应用环境变量覆盖（环境变量优先于配置文件）
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("TRADING_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Trading.Enabled = b
		}
	}
	if v := os.Getenv("MAX_POSITION_SIZE_USD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.Trading.MaxPositionSizeUSD = f
		}
	}
	if v := os.Getenv("MAX_DAILY_TRADES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Trading.MaxDailyTrades = n
		}
	}
	if v := os.Getenv("MAX_DAILY_LOSS_USD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.Trading.MaxDailyLossUSD = f
		}
	}
	if v := os.Getenv("MIN_TRADE_CONFIDENCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			c.Trading.MinConfidence = f
		}
	}
	if v := os.Getenv("TRADE_COOLDOWN_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			c.Trading.CooldownMs = n
		}
	}
	if v := os.Getenv("ALLOWED_SYMBOLS"); v != "" {
		var symbols []string
		for _, s := range strings.Split(v, ",") {
			s = strings.TrimSpace(s)
			if s != "" {
				symbols = append(symbols, strings.ToUpper(s))
			}
		}
		if len(symbols) > 0 {
			c.Trading.AllowedSymbols = symbols
		}
	}

	// API 密钥允许从环境变量注入，避免写入配置文件
	apiKey := os.Getenv("BINANCE_API_KEY")
	secretKey := os.Getenv("BINANCE_SECRET_KEY")
	if apiKey != "" && secretKey != "" {
		if c.Exchanges == nil {
			c.Exchanges = make(map[string]ExchangeConfig)
		}
		ex := c.Exchanges["binance"]
		ex.APIKey = apiKey
		ex.SecretKey = secretKey
		c.Exchanges["binance"] = ex
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.DecisionSource.Redis.Addr = v
		c.DistributedLock.Redis.Addr = v
	}
}

// Validate 验证配置并填充默认值
//
// 注意：缺失交易所凭据不视为错误。没有凭据时系统降级为只验证
// 不执行的模式，由安全检查在执行前拒绝。
func (c *Config) Validate() error {
	if c.App.CurrentExchange == "" {
		c.App.CurrentExchange = "binance"
	}
	if c.Exchanges == nil {
		c.Exchanges = make(map[string]ExchangeConfig)
	}

	if exCfg, ok := c.Exchanges[c.App.CurrentExchange]; ok {
		if exCfg.FeeRate < 0 {
			return fmt.Errorf("交易所 %s 的手续费率不能为负数", c.App.CurrentExchange)
		}
	}

	// ==== 交易风控默认值 ====
	if c.Trading.MaxPositionSizeUSD <= 0 {
		c.Trading.MaxPositionSizeUSD = 100
	}
	if c.Trading.MaxDailyTrades <= 0 {
		c.Trading.MaxDailyTrades = 10
	}
	if c.Trading.MaxDailyLossUSD <= 0 {
		c.Trading.MaxDailyLossUSD = 50
	}
	if c.Trading.MinConfidence <= 0 {
		c.Trading.MinConfidence = 0.6
	}
	if c.Trading.MinConfidence > 1 {
		return fmt.Errorf("最低置信度不能大于1: %v", c.Trading.MinConfidence)
	}
	if c.Trading.CooldownMs < 0 {
		return fmt.Errorf("冷却时间不能为负数: %v", c.Trading.CooldownMs)
	}
	if c.Trading.CooldownMs == 0 {
		c.Trading.CooldownMs = 300000
	}
	if len(c.Trading.AllowedSymbols) == 0 {
		c.Trading.AllowedSymbols = []string{"ETH", "BTC"}
	}
	for i, s := range c.Trading.AllowedSymbols {
		c.Trading.AllowedSymbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	if c.Trading.QuoteAsset == "" {
		c.Trading.QuoteAsset = "USDT"
	}

	// ==== 决策来源默认值 ====
	if c.DecisionSource.Type == "" {
		c.DecisionSource.Type = "redis"
	}
	if c.DecisionSource.Channel == "" {
		c.DecisionSource.Channel = "tradepilot:decisions"
	}
	if c.DecisionSource.Redis.Addr == "" {
		c.DecisionSource.Redis.Addr = "localhost:6379"
	}
	if c.DecisionSource.Redis.PoolSize <= 0 {
		c.DecisionSource.Redis.PoolSize = 10
	}

	// ==== 系统默认值 ====
	if c.System.LogLevel == "" {
		c.System.LogLevel = "INFO"
	}
	if c.System.Timezone == "" {
		c.System.Timezone = "UTC"
	}
	if c.System.LogRetentionDays < 0 {
		c.System.LogRetentionDays = 30
	}

	// ==== 数据库默认值 ====
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	switch c.Database.Type {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("不支持的数据库类型: %s", c.Database.Type)
	}
	if c.Database.DSN == "" {
		c.Database.DSN = "./data/tradepilot.db"
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 100
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 10
	}
	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = 3600
	}
	if c.Database.LogLevel == "" {
		c.Database.LogLevel = "error"
	}

	// ==== 分布式锁默认值 ====
	if c.DistributedLock.Type == "" {
		c.DistributedLock.Type = "redis"
	}
	if c.DistributedLock.Prefix == "" {
		c.DistributedLock.Prefix = "tradepilot:lock:"
	}
	if c.DistributedLock.DefaultTTL <= 0 {
		c.DistributedLock.DefaultTTL = 5
	}
	if c.DistributedLock.Redis.Addr == "" {
		c.DistributedLock.Redis.Addr = "localhost:6379"
	}
	if c.DistributedLock.Redis.PoolSize <= 0 {
		c.DistributedLock.Redis.PoolSize = 10
	}

	// ==== 存储默认值 ====
	if c.Storage.BufferSize <= 0 {
		c.Storage.BufferSize = 1000
	}
	if c.Storage.BatchSize <= 0 {
		c.Storage.BatchSize = 100
	}
	if c.Storage.FlushInterval <= 0 {
		c.Storage.FlushInterval = 5
	}
	if c.Storage.FallbackPath == "" {
		c.Storage.FallbackPath = "./data/trade_log_fallback.jsonl"
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "./data/tradepilot_logs.db"
	}

	// ==== 时间间隔默认值 ====
	if c.Timing.PriceRefreshInterval <= 0 {
		c.Timing.PriceRefreshInterval = 30
	}
	if c.Timing.HeartbeatInterval <= 0 {
		c.Timing.HeartbeatInterval = 60
	}
	if c.Timing.HTTPTimeout <= 0 {
		c.Timing.HTTPTimeout = 15
	}

	// ==== 通知默认值 ====
	if c.Notifications.Webhook.Timeout <= 0 {
		c.Notifications.Webhook.Timeout = 3
	}

	// ==== 指标默认值 ====
	if c.Metrics.CollectInterval <= 0 {
		c.Metrics.CollectInterval = 60
	}

	// ==== 看门狗默认值 ====
	if c.Watchdog.Sampling.Interval <= 0 {
		c.Watchdog.Sampling.Interval = 60
	}
	if c.Watchdog.Notifications.CPUPercent <= 0 {
		c.Watchdog.Notifications.CPUPercent = 80
	}
	if c.Watchdog.Notifications.MemoryMB <= 0 {
		c.Watchdog.Notifications.MemoryMB = 1024
	}
	if c.Watchdog.Notifications.CooldownMinutes <= 0 {
		c.Watchdog.Notifications.CooldownMinutes = 30
	}

	// ==== Web 默认值 ====
	if c.Web.Host == "" {
		c.Web.Host = "0.0.0.0"
	}
	if c.Web.Port <= 0 {
		c.Web.Port = 28800
	}

	return nil
}

// HasExchangeCredentials 判断当前交易所是否配置了 API 凭据
func (c *Config) HasExchangeCredentials() bool {
	exCfg, ok := c.Exchanges[c.App.CurrentExchange]
	if !ok {
		return false
	}
	return exCfg.APIKey != "" && exCfg.SecretKey != ""
}

// CurrentExchangeConfig 获取当前交易所配置
func (c *Config) CurrentExchangeConfig() (ExchangeConfig, bool) {
	exCfg, ok := c.Exchanges[c.App.CurrentExchange]
	return exCfg, ok
}
