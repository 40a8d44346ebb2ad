package scheduler

import (
	"context"
	"testing"
	"time"

	"tradepilot/config"
	"tradepilot/event"
	"tradepilot/market"
	"tradepilot/safety"
)

func TestRunDailyReset(t *testing.T) {
	cfg := config.CreateMinimalConfig()
	state := safety.NewTradingState()
	state.RecordTrade(time.Now())
	state.AddPnL(-60)
	state.Halt(safety.HaltReasonDailyLoss)

	bus := event.NewEventBus(10)
	defer bus.Close()

	sr := NewScheduleRunner(cfg, state, nil, market.NewCache(), nil, bus)
	sr.runDailyReset()

	snap := state.Snapshot()
	if snap.DailyTradeCount != 0 || snap.DailyPnL != 0 {
		t.Errorf("重置后计数器应清零: count=%d pnl=%v", snap.DailyTradeCount, snap.DailyPnL)
	}
	if snap.TradingHalted {
		t.Error("每日亏损熔断应在重置时解除")
	}

	select {
	case evt := <-bus.Subscribe():
		if evt.Type != event.EventTypeDailyReset {
			t.Errorf("事件类型 = %s", evt.Type)
		}
		if cleared, _ := evt.Data["halt_cleared"].(bool); !cleared {
			t.Error("事件应标记停止已解除")
		}
	case <-time.After(time.Second):
		t.Fatal("未收到每日重置事件")
	}
}

func TestRunDailyResetKeepsEmergencyStop(t *testing.T) {
	cfg := config.CreateMinimalConfig()
	state := safety.NewTradingState()
	state.Halt(safety.HaltReasonEmergencyStop + ": 人工触发")

	bus := event.NewEventBus(10)
	defer bus.Close()

	sr := NewScheduleRunner(cfg, state, nil, market.NewCache(), nil, bus)
	sr.runDailyReset()

	if halted, _ := state.IsHalted(); !halted {
		t.Error("紧急停止不应被每日重置解除")
	}
}

// 降级模式：交易所和数据库为 nil 时刷新和心跳不报错
func TestDegradedModeNoPanic(t *testing.T) {
	cfg := config.CreateMinimalConfig()
	state := safety.NewTradingState()

	sr := NewScheduleRunner(cfg, state, nil, market.NewCache(), nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	sr.refreshOnce(ctx)
	sr.WriteHeartbeat(ctx, "running")
}
