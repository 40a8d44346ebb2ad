package safety

import (
	"strings"
	"testing"
	"time"

	"tradepilot/config"
	"tradepilot/decision"
)

func testLimits() *config.TradingConfig {
	return &config.TradingConfig{
		Enabled:            true,
		MaxPositionSizeUSD: 100,
		MaxDailyTrades:     10,
		MaxDailyLossUSD:    50,
		MinConfidence:      0.6,
		CooldownMs:         300000,
		AllowedSymbols:     []string{"ETH", "BTC"},
		QuoteAsset:         "USDT",
	}
}

func testDecision(action decision.Action, symbol string, confidence float64) *decision.Decision {
	return &decision.Decision{
		Action:     action,
		Symbol:     symbol,
		Confidence: confidence,
		Timestamp:  time.Now().UnixMilli(),
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		decision   *decision.Decision
		setupState func(*TradingState)
		hasCreds   bool
		wantValid  bool
		wantReason string // 拒绝原因需要包含的子串
	}{
		{
			name:      "正常通过",
			decision:  testDecision(decision.ActionBuy, "ETH", 0.9),
			hasCreds:  true,
			wantValid: true,
		},
		{
			name:     "交易已停止",
			decision: testDecision(decision.ActionBuy, "ETH", 0.9),
			setupState: func(s *TradingState) {
				s.Halt("紧急停止: 测试")
			},
			hasCreds:   true,
			wantValid:  false,
			wantReason: "交易已停止",
		},
		{
			name:       "HOLD 不是交易动作",
			decision:   testDecision(decision.ActionHold, "ETH", 0.9),
			hasCreds:   true,
			wantValid:  false,
			wantReason: "不支持的交易动作",
		},
		{
			name:       "币种不在允许列表",
			decision:   testDecision(decision.ActionBuy, "DOGE", 0.9),
			hasCreds:   true,
			wantValid:  false,
			wantReason: "不在允许列表",
		},
		{
			name:       "置信度低于阈值",
			decision:   testDecision(decision.ActionBuy, "ETH", 0.3),
			hasCreds:   true,
			wantValid:  false,
			wantReason: "阈值",
		},
		{
			name:     "已达每日交易次数上限",
			decision: testDecision(decision.ActionBuy, "ETH", 0.9),
			setupState: func(s *TradingState) {
				for i := 0; i < 10; i++ {
					s.RecordTrade(time.Now().Add(-time.Hour))
				}
			},
			hasCreds:   true,
			wantValid:  false,
			wantReason: "每日最大交易次数",
		},
		{
			name:     "每日亏损熔断",
			decision: testDecision(decision.ActionBuy, "ETH", 0.9),
			setupState: func(s *TradingState) {
				s.AddPnL(-50)
			},
			hasCreds:   true,
			wantValid:  false,
			wantReason: HaltReasonDailyLoss,
		},
		{
			name:     "冷却时间未到",
			decision: testDecision(decision.ActionBuy, "ETH", 0.9),
			setupState: func(s *TradingState) {
				s.RecordTrade(time.Now().Add(-1 * time.Minute))
			},
			hasCreds:   true,
			wantValid:  false,
			wantReason: "冷却中",
		},
		{
			name:       "凭据未配置",
			decision:   testDecision(decision.ActionSell, "BTC", 0.9),
			hasCreds:   false,
			wantValid:  false,
			wantReason: "凭据未配置",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := NewTradingState()
			if tt.setupState != nil {
				tt.setupState(state)
			}

			policy := NewSafetyPolicy(func() bool { return tt.hasCreds })
			result := policy.Evaluate(tt.decision, state, testLimits())

			if result.Valid != tt.wantValid {
				t.Fatalf("Valid = %v, 期望 %v (原因: %s)", result.Valid, tt.wantValid, result.Reason)
			}
			if tt.wantReason != "" && !strings.Contains(result.Reason, tt.wantReason) {
				t.Errorf("拒绝原因 %q 应包含 %q", result.Reason, tt.wantReason)
			}
		})
	}
}

// 熔断是唯一允许的状态写入：触发后必须停止后续所有决策
func TestEvaluateCircuitBreakerHalts(t *testing.T) {
	state := NewTradingState()
	state.AddPnL(-60)

	policy := NewSafetyPolicy(func() bool { return true })
	limits := testLimits()

	result := policy.Evaluate(testDecision(decision.ActionBuy, "ETH", 0.9), state, limits)
	if result.Valid {
		t.Fatal("亏损超限的决策不应通过")
	}

	halted, reason := state.IsHalted()
	if !halted {
		t.Fatal("熔断后应进入停止状态")
	}
	if !IsDailyLimitHalt(reason) {
		t.Errorf("停止原因 %q 应为每日亏损熔断", reason)
	}

	// 后续决策在第一步就被拒绝
	result = policy.Evaluate(testDecision(decision.ActionSell, "BTC", 0.95), state, limits)
	if result.Valid {
		t.Fatal("停止状态下的决策不应通过")
	}
	if !strings.Contains(result.Reason, "交易已停止") {
		t.Errorf("拒绝原因 %q 应为停止状态", result.Reason)
	}
}

// 检查顺序：停止状态优先于其他所有检查
func TestEvaluateCheckOrder(t *testing.T) {
	state := NewTradingState()
	state.Halt("紧急停止: 人工触发")

	policy := NewSafetyPolicy(func() bool { return false })

	// 决策同时命中多项拒绝条件（币种、置信度、凭据）
	result := policy.Evaluate(testDecision(decision.ActionBuy, "DOGE", 0.1), state, testLimits())
	if result.Valid {
		t.Fatal("不应通过")
	}
	if !strings.Contains(result.Reason, "交易已停止") {
		t.Errorf("应先命中停止检查，实际原因: %s", result.Reason)
	}
}

// 冷却检查：从未成交过时不生效
func TestEvaluateCooldownSkippedWithoutTrades(t *testing.T) {
	state := NewTradingState()
	policy := NewSafetyPolicy(func() bool { return true })

	result := policy.Evaluate(testDecision(decision.ActionBuy, "ETH", 0.9), state, testLimits())
	if !result.Valid {
		t.Fatalf("无历史成交时冷却不应生效: %s", result.Reason)
	}
}
