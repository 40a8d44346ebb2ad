package scheduler

import (
	"context"
	"sync"
	"time"

	"tradepilot/config"
	"tradepilot/database"
	"tradepilot/event"
	"tradepilot/exchange"
	"tradepilot/logger"
	"tradepilot/market"
	"tradepilot/metrics"
	"tradepilot/safety"
	"tradepilot/utils"
)

// ScheduleRunner 定时任务调度器
//
// 三个任务互相独立：每日重置、行情刷新、状态心跳。任何一个任务
// 失败只影响自身本轮执行，不影响其他任务和决策处理。
type ScheduleRunner struct {
	cfg      *config.Config
	state    *safety.TradingState
	exchange exchange.IExchange // 可能为 nil（降级模式）
	cache    *market.Cache
	db       database.Database // 可能为 nil（降级模式）
	eventBus *event.EventBus

	startTime time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewScheduleRunner 创建调度器
func NewScheduleRunner(
	cfg *config.Config,
	state *safety.TradingState,
	ex exchange.IExchange,
	cache *market.Cache,
	db database.Database,
	eventBus *event.EventBus,
) *ScheduleRunner {
	return &ScheduleRunner{
		cfg:      cfg,
		state:    state,
		exchange: ex,
		cache:    cache,
		db:       db,
		eventBus: eventBus,
	}
}

// Start 启动所有定时任务
func (sr *ScheduleRunner) Start(ctx context.Context) {
	ctx, sr.cancel = context.WithCancel(ctx)
	sr.startTime = time.Now()

	sr.wg.Add(3)
	go sr.dailyResetLoop(ctx)
	go sr.refreshLoop(ctx)
	go sr.heartbeatLoop(ctx)

	logger.Info("✅ 调度器已启动 (行情刷新: %ds, 心跳: %ds)",
		sr.cfg.Timing.PriceRefreshInterval, sr.cfg.Timing.HeartbeatInterval)
}

// Stop 停止所有定时任务
func (sr *ScheduleRunner) Stop() {
	if sr.cancel != nil {
		sr.cancel()
	}
	sr.wg.Wait()
	logger.Info("🛑 调度器已停止")
}

// dailyResetLoop 每日重置任务（UTC 零点触发）
func (sr *ScheduleRunner) dailyResetLoop(ctx context.Context) {
	defer sr.wg.Done()

	for {
		wait := time.Duration(utils.MillisUntilUTCMidnight(time.Now())) * time.Millisecond
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			sr.runDailyReset()
		}
	}
}

// runDailyReset 执行每日重置
func (sr *ScheduleRunner) runDailyReset() {
	cleared := sr.state.ResetDaily()

	logger.Info("🔄 每日重置完成: 计数器已清零, 解除停止=%v", cleared)

	metrics.DailyTradeCount.Set(0)
	metrics.DailyPnLUSD.Set(0)
	if cleared {
		metrics.TradingHalted.Set(0)
	}

	if sr.eventBus != nil {
		sr.eventBus.Publish(&event.Event{
			Type: event.EventTypeDailyReset,
			Data: map[string]interface{}{
				"halt_cleared": cleared,
			},
		})
	}
}

// refreshLoop 行情/账户快照刷新任务
func (sr *ScheduleRunner) refreshLoop(ctx context.Context) {
	defer sr.wg.Done()

	interval := time.Duration(sr.cfg.Timing.PriceRefreshInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// 启动时先刷新一次
	sr.refreshOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sr.refreshOnce(ctx)
		}
	}
}

// refreshOnce 刷新一轮行情和账户快照
func (sr *ScheduleRunner) refreshOnce(ctx context.Context) {
	if sr.exchange == nil {
		return
	}

	timeout := time.Duration(sr.cfg.Timing.HTTPTimeout) * time.Second
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var balanceUSD float64
	account, err := sr.exchange.GetAccount(reqCtx)
	if err != nil {
		logger.Warn("⚠️ 刷新账户快照失败: %v", err)
	} else {
		balanceUSD = account.TotalWalletBalance
		sr.cache.SetAccountBalance(balanceUSD)
	}

	for _, base := range sr.cfg.Trading.AllowedSymbols {
		symbol := sr.exchange.FormatSymbol(base)

		price, err := sr.exchange.GetLatestPrice(reqCtx, symbol)
		if err != nil {
			logger.Warn("⚠️ 刷新 %s 价格失败: %v", symbol, err)
			metrics.PriceRefreshErrors.Inc()
			continue
		}
		sr.cache.SetPrice(symbol, price)

		if sr.db != nil {
			snap := &database.MarketSnapshot{
				Symbol:     symbol,
				Price:      price,
				BalanceUSD: balanceUSD,
				CreatedAt:  utils.NowUTC(),
			}
			if err := sr.db.SaveMarketSnapshot(reqCtx, snap); err != nil {
				logger.Warn("⚠️ 保存 %s 行情快照失败: %v", symbol, err)
			}
		}
	}
}

// heartbeatLoop 状态心跳任务
func (sr *ScheduleRunner) heartbeatLoop(ctx context.Context) {
	defer sr.wg.Done()

	interval := time.Duration(sr.cfg.Timing.HeartbeatInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sr.WriteHeartbeat(ctx, "running")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sr.WriteHeartbeat(ctx, "running")
		}
	}
}

// WriteHeartbeat 写入一条状态心跳（失败不影响主流程）
func (sr *ScheduleRunner) WriteHeartbeat(ctx context.Context, status string) {
	if sr.db == nil {
		return
	}

	timeout := time.Duration(sr.cfg.Timing.HTTPTimeout) * time.Second
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	snap := sr.state.Snapshot()
	hb := &database.StatusHeartbeat{
		InstanceID:      sr.cfg.Instance.ID,
		Status:          status,
		TradingEnabled:  sr.cfg.Trading.Enabled,
		TradingHalted:   snap.TradingHalted,
		HaltReason:      snap.HaltReason,
		DailyTradeCount: snap.DailyTradeCount,
		DailyPnL:        snap.DailyPnL,
		LastDecisionID:  snap.LastDecisionID,
		UptimeSeconds:   int64(time.Since(sr.startTime).Seconds()),
		CreatedAt:       utils.NowUTC(),
	}

	if err := sr.db.SaveHeartbeat(reqCtx, hb); err != nil {
		logger.Warn("⚠️ 写入状态心跳失败: %v", err)
	}
}
