package safety

import (
	"fmt"
	"time"

	"tradepilot/config"
	"tradepilot/decision"
)

// CheckResult 安全检查结果
type CheckResult struct {
	Valid  bool
	Reason string
}

// SafetyPolicy 决策安全检查
//
// 按固定顺序执行检查，第一个失败的检查短路返回。除每日亏损熔断
// （唯一允许的状态写入）外，检查不修改任何状态。
type SafetyPolicy struct {
	hasCredentials func() bool
	now            func() time.Time
}

// NewSafetyPolicy 创建安全检查
func NewSafetyPolicy(hasCredentials func() bool) *SafetyPolicy {
	return &SafetyPolicy{
		hasCredentials: hasCredentials,
		now:            time.Now,
	}
}

// Evaluate 评估决策是否允许执行
//
// 调用方负责在进入前处理 HOLD/EMERGENCY_STOP，这里只接受 BUY/SELL。
func (p *SafetyPolicy) Evaluate(d *decision.Decision, state *TradingState, limits *config.TradingConfig) CheckResult {
	state.mu.Lock()
	defer state.mu.Unlock()

	// 1. 停止状态
	if state.tradingHalted {
		return CheckResult{Valid: false, Reason: fmt.Sprintf("交易已停止: %s", state.haltReason)}
	}

	// 2. 动作
	if !d.Action.IsTrade() {
		return CheckResult{Valid: false, Reason: fmt.Sprintf("不支持的交易动作: %s", d.Action)}
	}

	// 3. 币种允许列表
	if !limits.IsSymbolAllowed(d.Symbol) {
		return CheckResult{Valid: false, Reason: fmt.Sprintf("币种 %s 不在允许列表中", d.Symbol)}
	}

	// 4. 置信度阈值
	if d.Confidence < limits.MinConfidence {
		return CheckResult{Valid: false, Reason: fmt.Sprintf("置信度 %.2f 低于阈值 %.2f", d.Confidence, limits.MinConfidence)}
	}

	// 5. 每日交易次数
	if state.dailyTradeCount >= limits.MaxDailyTrades {
		return CheckResult{Valid: false, Reason: fmt.Sprintf("已达每日最大交易次数 %d", limits.MaxDailyTrades)}
	}

	// 6. 每日亏损熔断（唯一允许的状态写入）
	if state.dailyPnL <= -limits.MaxDailyLossUSD {
		state.tradingHalted = true
		state.haltReason = HaltReasonDailyLoss
		return CheckResult{Valid: false, Reason: fmt.Sprintf("%s: 当日盈亏 %.2f USD 达到上限 -%.2f USD", HaltReasonDailyLoss, state.dailyPnL, limits.MaxDailyLossUSD)}
	}

	// 7. 冷却时间
	if !state.lastTradeTime.IsZero() {
		elapsed := p.now().Sub(state.lastTradeTime)
		cooldown := time.Duration(limits.CooldownMs) * time.Millisecond
		if elapsed < cooldown {
			remaining := cooldown - elapsed
			return CheckResult{Valid: false, Reason: fmt.Sprintf("冷却中，剩余 %d 秒", int(remaining.Seconds())+1)}
		}
	}

	// 8. 交易所凭据
	if p.hasCredentials == nil || !p.hasCredentials() {
		return CheckResult{Valid: false, Reason: "交易所凭据未配置"}
	}

	// 9. 通过
	return CheckResult{Valid: true}
}
