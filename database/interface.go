package database

import (
	"context"
	"time"
)

// Database 数据库接口
type Database interface {
	// 交易审计日志
	SaveTradeLog(ctx context.Context, entry *TradeLog) error
	BatchSaveTradeLogs(ctx context.Context, entries []*TradeLog) error
	GetTradeLogs(ctx context.Context, filter *TradeLogFilter) ([]*TradeLog, error)
	CleanupOldTradeLogs(ctx context.Context, keepDays int) error

	// 事件记录
	SaveEvent(ctx context.Context, event *EventRecord) error
	GetEvents(ctx context.Context, filter *EventFilter) ([]*EventRecord, error)
	CleanupOldEvents(ctx context.Context, keepDays int) error

	// 状态心跳
	SaveHeartbeat(ctx context.Context, hb *StatusHeartbeat) error
	GetLatestHeartbeat(ctx context.Context) (*StatusHeartbeat, error)

	// 行情快照
	SaveMarketSnapshot(ctx context.Context, snap *MarketSnapshot) error
	GetLatestMarketSnapshot(ctx context.Context, symbol string) (*MarketSnapshot, error)

	// 系统监控
	SaveSystemMetric(ctx context.Context, metric *SystemMetric) error

	// 健康检查
	Ping(ctx context.Context) error

	// 关闭连接
	Close() error
}

// 数据模型

// TradeLog 决策处理审计记录（每个决策一条，只增不改）
type TradeLog struct {
	ID                int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	DecisionTimestamp int64   `gorm:"index" json:"decision_timestamp"` // 决策时间戳（去重键）
	Action            string  `gorm:"size:20" json:"action"`           // BUY, SELL, HOLD, EMERGENCY_STOP
	Symbol            string  `gorm:"index:idx_symbol_time;size:20" json:"symbol"`
	Confidence        float64 `json:"confidence"`
	Reasoning         string  `gorm:"type:text" json:"reasoning"`
	Status            string  `gorm:"index;size:20" json:"status"` // received, rejected, simulated, executed, failed, error, emergency_stop
	Reason            string  `gorm:"type:text" json:"reason"`
	OrderID           int64   `json:"order_id"`
	Side              string  `gorm:"size:10" json:"side"`
	Size              float64 `json:"size"`
	Price             float64 `json:"price"`
	NotionalUSD       float64 `json:"notional_usd"`
	StateSnapshot     string  `gorm:"type:text" json:"state_snapshot"` // 处理时的 TradingState 快照（JSON）
	CreatedAt         time.Time `gorm:"index:idx_symbol_time" json:"created_at"`
}

// EventRecord 事件记录
type EventRecord struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Type      string    `gorm:"index;size:50" json:"type"`
	Severity  string    `gorm:"index;size:20" json:"severity"` // info, warning, critical
	Symbol    string    `gorm:"index;size:20" json:"symbol"`
	Title     string    `gorm:"size:100" json:"title"`
	Message   string    `gorm:"type:text" json:"message"`
	Details   string    `gorm:"type:text" json:"details"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// StatusHeartbeat 状态心跳记录
type StatusHeartbeat struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	InstanceID      string    `gorm:"index;size:50" json:"instance_id"`
	Status          string    `gorm:"size:20" json:"status"` // running, stopping
	TradingEnabled  bool      `json:"trading_enabled"`
	TradingHalted   bool      `json:"trading_halted"`
	HaltReason      string    `gorm:"size:200" json:"halt_reason"`
	DailyTradeCount int       `json:"daily_trade_count"`
	DailyPnL        float64   `json:"daily_pnl"`
	LastDecisionID  int64     `json:"last_decision_id"`
	UptimeSeconds   int64     `json:"uptime_seconds"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
}

// MarketSnapshot 行情/账户快照
type MarketSnapshot struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Symbol     string    `gorm:"index:idx_snap_symbol_time;size:20" json:"symbol"`
	Price      float64   `json:"price"`
	BalanceUSD float64   `json:"balance_usd"`
	CreatedAt  time.Time `gorm:"index:idx_snap_symbol_time" json:"created_at"`
}

// SystemMetric 系统资源采样
type SystemMetric struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Timestamp     time.Time `gorm:"index" json:"timestamp"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryMB      float64   `json:"memory_mb"`
	MemoryPercent float64   `json:"memory_percent"`
	ProcessID     int       `json:"process_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// 过滤器

// TradeLogFilter 交易日志过滤器
type TradeLogFilter struct {
	Symbol    string
	Action    string
	Status    string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// EventFilter 事件记录过滤器
type EventFilter struct {
	Type      string
	Severity  string
	Symbol    string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}
