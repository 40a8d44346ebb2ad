package monitor

import (
	"context"
	"sync"
	"time"

	"tradepilot/config"
	"tradepilot/database"
	"tradepilot/event"
	"tradepilot/logger"
	"tradepilot/utils"
)

// Watchdog 系统资源看门狗
//
// 定期采样进程 CPU/内存，落库并在超过阈值时发告警事件。
// 告警有冷却时间，避免持续超阈值时刷屏。
type Watchdog struct {
	cfg      *config.Config
	db       database.Database // 可能为 nil（降级模式）
	eventBus *event.EventBus

	mu            sync.Mutex
	lastAlertTime time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatchdog 创建看门狗
func NewWatchdog(cfg *config.Config, db database.Database, eventBus *event.EventBus) *Watchdog {
	return &Watchdog{
		cfg:      cfg,
		db:       db,
		eventBus: eventBus,
	}
}

// Start 启动看门狗
func (w *Watchdog) Start(ctx context.Context) {
	if !w.cfg.Watchdog.Enabled {
		logger.Info("⏸️ 看门狗未启用")
		return
	}

	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.run(ctx)

	logger.Info("✅ 看门狗已启动 (采样间隔: %ds)", w.cfg.Watchdog.Sampling.Interval)
}

// Stop 停止看门狗
func (w *Watchdog) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *Watchdog) run(ctx context.Context) {
	defer w.wg.Done()

	interval := time.Duration(w.cfg.Watchdog.Sampling.Interval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sample(ctx)
		}
	}
}

// sample 采样一次并检查阈值
func (w *Watchdog) sample(ctx context.Context) {
	metrics, err := CollectSystemMetrics()
	if err != nil {
		logger.Warn("⚠️ 采集系统指标失败: %v", err)
		return
	}

	if w.db != nil {
		reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		record := &database.SystemMetric{
			Timestamp:     metrics.Timestamp,
			CPUPercent:    metrics.CPUPercent,
			MemoryMB:      metrics.MemoryMB,
			MemoryPercent: metrics.MemoryPercent,
			ProcessID:     metrics.ProcessID,
			CreatedAt:     utils.NowUTC(),
		}
		if err := w.db.SaveSystemMetric(reqCtx, record); err != nil {
			logger.Warn("⚠️ 保存系统指标失败: %v", err)
		}
		cancel()
	}

	w.checkThresholds(metrics)
}

// checkThresholds 检查告警阈值
func (w *Watchdog) checkThresholds(metrics *SystemMetrics) {
	if !w.cfg.Watchdog.Notifications.Enabled {
		return
	}

	var reason string
	switch {
	case metrics.CPUPercent >= w.cfg.Watchdog.Notifications.CPUPercent:
		reason = "CPU 占用过高"
	case metrics.MemoryMB >= w.cfg.Watchdog.Notifications.MemoryMB:
		reason = "内存占用过高"
	default:
		return
	}

	cooldown := time.Duration(w.cfg.Watchdog.Notifications.CooldownMinutes) * time.Minute

	w.mu.Lock()
	if !w.lastAlertTime.IsZero() && time.Since(w.lastAlertTime) < cooldown {
		w.mu.Unlock()
		return
	}
	w.lastAlertTime = time.Now()
	w.mu.Unlock()

	logger.Warn("⚠️ 系统资源告警: %s (CPU: %.1f%%, 内存: %.1f MB)",
		reason, metrics.CPUPercent, metrics.MemoryMB)

	if w.eventBus != nil {
		w.eventBus.Publish(&event.Event{
			Type: event.EventTypeWatchdogAlert,
			Data: map[string]interface{}{
				"reason":         reason,
				"cpu_percent":    metrics.CPUPercent,
				"memory_mb":      metrics.MemoryMB,
				"memory_percent": metrics.MemoryPercent,
			},
		})
	}
}
