package notify

import (
	"strings"
	"testing"
	"time"

	"tradepilot/event"
)

// 成交通知中的下单方向转为中文描述
func TestFormatTelegramMessageSideLabel(t *testing.T) {
	evt := &event.Event{
		Type:      event.EventTypeTradeExecuted,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"symbol": "ETHUSDT",
			"side":   "BUY",
			"size":   0.045,
		},
	}

	msg := formatTelegramMessage(evt)

	if !strings.Contains(msg, "买入") {
		t.Errorf("消息应包含中文方向描述: %q", msg)
	}
	if !strings.Contains(msg, "ETHUSDT") {
		t.Errorf("消息应包含交易对: %q", msg)
	}
}

func TestFormatTelegramMessageEmergencyStop(t *testing.T) {
	evt := &event.Event{
		Type:      event.EventTypeEmergencyStop,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"reason": "市场异常",
		},
	}

	msg := formatTelegramMessage(evt)

	if !strings.Contains(msg, "🛑") {
		t.Errorf("紧急停止消息应带停止标识: %q", msg)
	}
	if !strings.Contains(msg, "市场异常") {
		t.Errorf("消息应包含停止原因: %q", msg)
	}
}
