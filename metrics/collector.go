package metrics

import (
	"context"
	"time"

	"tradepilot/config"
	"tradepilot/logger"
	"tradepilot/safety"
)

// Collector 定期把交易状态同步到 Prometheus 指标
type Collector struct {
	state    *safety.TradingState
	interval time.Duration
}

// NewCollector 创建指标采集器
func NewCollector(state *safety.TradingState, cfg *config.Config) *Collector {
	interval := time.Duration(cfg.Metrics.CollectInterval) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Collector{
		state:    state,
		interval: interval,
	}
}

// Start 启动采集循环（阻塞，通常在独立 goroutine 中调用）
func (c *Collector) Start(ctx context.Context) {
	logger.Info("✅ 指标采集器已启动 (间隔: %v)", c.interval)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.collect()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

func (c *Collector) collect() {
	snap := c.state.Snapshot()

	DailyTradeCount.Set(float64(snap.DailyTradeCount))
	DailyPnLUSD.Set(snap.DailyPnL)
	if snap.TradingHalted {
		TradingHalted.Set(1)
	} else {
		TradingHalted.Set(0)
	}
}
