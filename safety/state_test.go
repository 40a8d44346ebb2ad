package safety

import (
	"testing"
	"time"
)

func TestCheckAndSetDecisionID(t *testing.T) {
	state := NewTradingState()

	if !state.CheckAndSetDecisionID(1000) {
		t.Fatal("首次出现的时间戳应通过")
	}
	if state.CheckAndSetDecisionID(1000) {
		t.Fatal("重复时间戳应被去重")
	}
	if !state.CheckAndSetDecisionID(2000) {
		t.Fatal("新时间戳应通过")
	}
	// 回到旧时间戳：只与上次处理的比较
	if !state.CheckAndSetDecisionID(1000) {
		t.Fatal("非连续重复的时间戳应通过")
	}
}

func TestResetDaily(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(*TradingState)
		wantCleared bool
		wantHalted  bool
	}{
		{
			name: "普通重置",
			setup: func(s *TradingState) {
				s.RecordTrade(time.Now())
				s.AddPnL(-20)
			},
			wantCleared: false,
			wantHalted:  false,
		},
		{
			name: "解除每日亏损熔断",
			setup: func(s *TradingState) {
				s.AddPnL(-60)
				s.Halt(HaltReasonDailyLoss)
			},
			wantCleared: true,
			wantHalted:  false,
		},
		{
			name: "紧急停止不被解除",
			setup: func(s *TradingState) {
				s.Halt(HaltReasonEmergencyStop + ": 人工触发")
			},
			wantCleared: false,
			wantHalted:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := NewTradingState()
			tt.setup(state)

			cleared := state.ResetDaily()
			if cleared != tt.wantCleared {
				t.Errorf("cleared = %v, 期望 %v", cleared, tt.wantCleared)
			}

			snap := state.Snapshot()
			if snap.DailyTradeCount != 0 {
				t.Errorf("重置后交易次数应为0, 实际 %d", snap.DailyTradeCount)
			}
			if snap.DailyPnL != 0 {
				t.Errorf("重置后盈亏应为0, 实际 %v", snap.DailyPnL)
			}
			if snap.TradingHalted != tt.wantHalted {
				t.Errorf("halted = %v, 期望 %v", snap.TradingHalted, tt.wantHalted)
			}
		})
	}
}

func TestResetDailyKeepsLastDecisionID(t *testing.T) {
	state := NewTradingState()
	state.CheckAndSetDecisionID(12345)

	state.ResetDaily()

	// 去重键不随每日重置清空
	if state.CheckAndSetDecisionID(12345) {
		t.Fatal("重置后相同时间戳仍应被去重")
	}
}
