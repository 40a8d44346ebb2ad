package event

import (
	"testing"
	"time"
)

func TestEventBusPublishSubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	bus.Publish(&Event{
		Type: EventTypeTradeExecuted,
		Data: map[string]interface{}{"symbol": "ETHUSDT"},
	})

	select {
	case evt := <-bus.Subscribe():
		if evt.Type != EventTypeTradeExecuted {
			t.Errorf("Type = %s", evt.Type)
		}
		if evt.Timestamp.IsZero() {
			t.Error("发布时应自动填充时间戳")
		}
	case <-time.After(time.Second):
		t.Fatal("未收到事件")
	}
}

// 队列满时丢弃而不是阻塞
func TestEventBusNonBlocking(t *testing.T) {
	bus := NewEventBus(2)
	defer bus.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(&Event{Type: EventTypeError})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish 在队列满时阻塞了")
	}
}

func TestEventBusNilEvent(t *testing.T) {
	bus := NewEventBus(1)
	defer bus.Close()

	bus.Publish(nil)

	select {
	case evt := <-bus.Subscribe():
		t.Fatalf("nil 事件不应被发布: %v", evt)
	default:
	}
}

func TestGetEventSeverity(t *testing.T) {
	tests := []struct {
		eventType EventType
		want      EventSeverity
	}{
		{EventTypeEmergencyStop, SeverityCritical},
		{EventTypeCircuitBreaker, SeverityCritical},
		{EventTypeError, SeverityCritical},
		{EventTypeTradeFailed, SeverityWarning},
		{EventTypeWatchdogAlert, SeverityWarning},
		{EventTypeTradeExecuted, SeverityInfo},
		{EventTypeDailyReset, SeverityInfo},
	}

	for _, tt := range tests {
		if got := GetEventSeverity(tt.eventType); got != tt.want {
			t.Errorf("GetEventSeverity(%s) = %s, 期望 %s", tt.eventType, got, tt.want)
		}
	}
}
