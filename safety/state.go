package safety

import (
	"sync"
	"time"
)

// 停止原因
const (
	// HaltReasonDailyLoss 每日亏损熔断（每日重置时自动解除）
	HaltReasonDailyLoss = "每日亏损熔断"

	// HaltReasonEmergencyStop 紧急停止前缀（需要人工解除）
	HaltReasonEmergencyStop = "紧急停止"
)

// IsDailyLimitHalt 判断停止原因是否来自每日限额（此类停止在每日重置时解除）
func IsDailyLimitHalt(reason string) bool {
	return reason == HaltReasonDailyLoss
}

// TradingState 进程级交易计数器
//
// 仅由决策处理器和每日重置任务修改，所有访问走同一把锁。
// 不做权威持久化：重启后计数归零，快照仅用于观测。
type TradingState struct {
	mu              sync.Mutex
	lastTradeTime   time.Time
	dailyTradeCount int
	dailyPnL        float64
	lastDecisionID  int64
	tradingHalted   bool
	haltReason      string
}

// StateSnapshot TradingState 的只读快照
type StateSnapshot struct {
	LastTradeTime   time.Time `json:"last_trade_time"`
	DailyTradeCount int       `json:"daily_trade_count"`
	DailyPnL        float64   `json:"daily_pnl"`
	LastDecisionID  int64     `json:"last_decision_id"`
	TradingHalted   bool      `json:"trading_halted"`
	HaltReason      string    `json:"halt_reason"`
}

// NewTradingState 创建交易状态
func NewTradingState() *TradingState {
	return &TradingState{}
}

// Snapshot 获取当前状态快照
func (s *TradingState) Snapshot() StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StateSnapshot{
		LastTradeTime:   s.lastTradeTime,
		DailyTradeCount: s.dailyTradeCount,
		DailyPnL:        s.dailyPnL,
		LastDecisionID:  s.lastDecisionID,
		TradingHalted:   s.tradingHalted,
		HaltReason:      s.haltReason,
	}
}

// CheckAndSetDecisionID 去重检查：时间戳与上次处理的决策相同时返回 false，
// 否则记录该时间戳并返回 true。
func (s *TradingState) CheckAndSetDecisionID(timestamp int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timestamp == s.lastDecisionID {
		return false
	}
	s.lastDecisionID = timestamp
	return true
}

// RecordTrade 记录一次成交（仅在下单成功后调用）
func (s *TradingState) RecordTrade(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastTradeTime = now
	s.dailyTradeCount++
}

// AddPnL 累加已实现盈亏（亏损为负数）
func (s *TradingState) AddPnL(delta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dailyPnL += delta
}

// Halt 停止交易
func (s *TradingState) Halt(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tradingHalted = true
	s.haltReason = reason
}

// IsHalted 查询停止状态
func (s *TradingState) IsHalted() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tradingHalted, s.haltReason
}

// ResetDaily 每日重置：清零计数器；停止原因来自每日限额时解除停止。
// 返回是否解除了停止。
func (s *TradingState) ResetDaily() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dailyTradeCount = 0
	s.dailyPnL = 0

	if s.tradingHalted && IsDailyLimitHalt(s.haltReason) {
		s.tradingHalted = false
		s.haltReason = ""
		return true
	}
	return false
}
