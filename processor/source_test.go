package processor

import (
	"context"
	"sync"
	"testing"
	"time"

	"tradepilot/decision"
)

// Stop 关闭通道后消费循环退出，已缓冲的决策先消费完
func TestChannelSourceStopDrains(t *testing.T) {
	src := NewChannelDecisionSource(4)

	var mu sync.Mutex
	var got []int64
	if err := src.Start(context.Background(), func(d *decision.Decision) {
		mu.Lock()
		got = append(got, d.Timestamp)
		mu.Unlock()
	}); err != nil {
		t.Fatalf("启动失败: %v", err)
	}

	src.Push(buyDecision(1000))
	src.Push(buyDecision(2000))

	done := make(chan struct{})
	go func() {
		src.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop 未返回")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != 1000 || got[1] != 2000 {
		t.Errorf("消费到的决策 = %v, 期望 [1000 2000]", got)
	}
}

// 重复 Stop 不 panic
func TestChannelSourceStopIdempotent(t *testing.T) {
	src := NewChannelDecisionSource(1)

	if err := src.Start(context.Background(), func(*decision.Decision) {}); err != nil {
		t.Fatalf("启动失败: %v", err)
	}

	if err := src.Stop(); err != nil {
		t.Fatalf("Stop 失败: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("重复 Stop 失败: %v", err)
	}
}
