package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tradepilot/config"
	"tradepilot/database"
	"tradepilot/decision"
	"tradepilot/event"
	"tradepilot/executor"
	"tradepilot/logger"
	"tradepilot/metrics"
	"tradepilot/safety"
	"tradepilot/storage"
)

// Executor 交易执行接口
type Executor interface {
	Execute(ctx context.Context, d *decision.Decision) *executor.ExecResult
}

// DecisionProcessor 决策处理器
//
// 串行处理：同一时刻最多处理一个决策。待处理槽位只保留最新一个
// 决策，新决策到达时替换（不排队），旧决策直接丢弃。
type DecisionProcessor struct {
	cfg      *config.Config
	state    *safety.TradingState
	policy   *safety.SafetyPolicy
	executor Executor
	eventBus *event.EventBus
	store    *storage.StorageService

	pending chan *decision.Decision
	done    chan struct{}
	now     func() time.Time
}

// NewDecisionProcessor 创建决策处理器
func NewDecisionProcessor(
	cfg *config.Config,
	state *safety.TradingState,
	policy *safety.SafetyPolicy,
	exec Executor,
	eventBus *event.EventBus,
	store *storage.StorageService,
) *DecisionProcessor {
	return &DecisionProcessor{
		cfg:      cfg,
		state:    state,
		policy:   policy,
		executor: exec,
		eventBus: eventBus,
		store:    store,
		pending:  make(chan *decision.Decision, 1),
		done:     make(chan struct{}),
		now:      time.Now,
	}
}

// Submit 提交决策（非阻塞）
//
// 槽位已占用时用新决策替换旧决策：执行中积压的旧信号已经过时，
// 保最新不保完整。
func (p *DecisionProcessor) Submit(d *decision.Decision) {
	if d == nil {
		return
	}

	for {
		select {
		case p.pending <- d:
			return
		default:
		}

		select {
		case old := <-p.pending:
			logger.Warn("⚠️ 决策积压，替换旧决策: timestamp=%d action=%s", old.Timestamp, old.Action)
			metrics.DecisionQueueDropped.Inc()
		default:
		}
	}
}

// Run 串行处理循环（阻塞直到 ctx 取消，当前决策处理完后返回）
func (p *DecisionProcessor) Run(ctx context.Context) {
	defer close(p.done)

	logger.Info("✅ 决策处理器已启动")

	for {
		select {
		case <-ctx.Done():
			logger.Info("🛑 决策处理器已停止")
			return
		case d := <-p.pending:
			p.Process(ctx, d)
		}
	}
}

// WaitDone 等待处理循环退出（优雅关闭：进行中的交易执行完才返回）
func (p *DecisionProcessor) WaitDone() {
	<-p.done
}

// Process 处理单个决策（导出以便调度层直接调用）
func (p *DecisionProcessor) Process(ctx context.Context, d *decision.Decision) {
	// 去重：相同时间戳的决策静默跳过
	if !p.state.CheckAndSetDecisionID(d.Timestamp) {
		logger.Debug("重复决策，跳过: timestamp=%d", d.Timestamp)
		return
	}

	logger.Info("ℹ️ 收到决策: action=%s symbol=%s confidence=%.2f timestamp=%d",
		d.Action, d.Symbol, d.Confidence, d.Timestamp)
	p.publish(event.EventTypeDecisionReceived, map[string]interface{}{
		"action":     string(d.Action),
		"symbol":     d.Symbol,
		"confidence": d.Confidence,
		"timestamp":  d.Timestamp,
	})

	switch d.Action {
	case decision.ActionEmergencyStop:
		p.handleEmergencyStop(d)
		return
	case decision.ActionHold:
		// HOLD 是终态：只记录，不做任何检查
		p.writeAudit(d, decision.StatusReceived, "", nil)
		metrics.DecisionsTotal.WithLabelValues(string(decision.StatusReceived)).Inc()
		return
	}

	// 安全检查（记录检查前的停止状态，用于识别本次触发的熔断）
	haltedBefore, _ := p.state.IsHalted()
	check := p.policy.Evaluate(d, p.state, &p.cfg.Trading)
	if !check.Valid {
		p.handleRejected(d, check.Reason, haltedBefore)
		return
	}

	// 主开关关闭：模拟路径，绝不触碰执行器
	if !p.cfg.Trading.Enabled {
		p.handleSimulated(d)
		return
	}

	p.execute(ctx, d)
}

// handleEmergencyStop 处理紧急停止决策
func (p *DecisionProcessor) handleEmergencyStop(d *decision.Decision) {
	reason := safety.HaltReasonEmergencyStop
	if d.Reasoning != "" {
		reason = fmt.Sprintf("%s: %s", safety.HaltReasonEmergencyStop, d.Reasoning)
	}
	p.state.Halt(reason)

	logger.Error("🛑 紧急停止: %s", reason)
	p.publish(event.EventTypeEmergencyStop, map[string]interface{}{
		"reason":    reason,
		"timestamp": d.Timestamp,
	})

	p.writeAudit(d, decision.StatusEmergencyStop, reason, nil)
	metrics.DecisionsTotal.WithLabelValues(string(decision.StatusEmergencyStop)).Inc()
	metrics.TradingHalted.Set(1)
}

// handleRejected 处理被安全检查拒绝的决策
func (p *DecisionProcessor) handleRejected(d *decision.Decision, reason string, haltedBefore bool) {
	logger.Warn("⚠️ 决策被拒绝: %s %s: %s", d.Action, d.Symbol, reason)
	p.publish(event.EventTypeDecisionRejected, map[string]interface{}{
		"action":    string(d.Action),
		"symbol":    d.Symbol,
		"reason":    reason,
		"timestamp": d.Timestamp,
	})

	// 亏损熔断在检查内部触发停止，仅在本次检查触发时补发熔断事件
	if halted, haltReason := p.state.IsHalted(); !haltedBefore && halted && safety.IsDailyLimitHalt(haltReason) {
		p.publish(event.EventTypeCircuitBreaker, map[string]interface{}{
			"reason": reason,
		})
		metrics.TradingHalted.Set(1)
	}

	p.writeAudit(d, decision.StatusRejected, reason, nil)
	metrics.DecisionsTotal.WithLabelValues(string(decision.StatusRejected)).Inc()
}

// handleSimulated 主开关关闭时的模拟路径
func (p *DecisionProcessor) handleSimulated(d *decision.Decision) {
	notional := executor.CalcNotionalUSD(d, p.cfg.Trading.MaxPositionSizeUSD)

	logger.Info("⏸️ 交易未启用，模拟执行: %s %s 名义金额=%.2f USD", d.Action, d.Symbol, notional)
	p.publish(event.EventTypeDecisionSimulated, map[string]interface{}{
		"action":       string(d.Action),
		"symbol":       d.Symbol,
		"notional_usd": notional,
		"timestamp":    d.Timestamp,
	})

	p.writeAudit(d, decision.StatusSimulated, fmt.Sprintf("交易未启用，名义金额 %.2f USD", notional), nil)
	metrics.DecisionsTotal.WithLabelValues(string(decision.StatusSimulated)).Inc()
}

// execute 真实执行路径
//
// panic 只导致该决策进入 error 状态，不影响后续决策处理。
func (p *DecisionProcessor) execute(ctx context.Context, d *decision.Decision) {
	// 执行上下文与运行上下文解耦：优雅关闭的 cancel 不得中断已经
	// 发往交易所的下单请求，执行时长只由超时兜底。
	timeout := time.Duration(p.cfg.Timing.HTTPTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	execCtx, cancelExec := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancelExec()

	var result *executor.ExecResult

	func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("❌ 决策执行 panic: %v", r)
				result = &executor.ExecResult{
					Success: false,
					Error:   fmt.Sprintf("panic: %v", r),
				}
				p.writeAudit(d, decision.StatusError, result.Error, result)
				metrics.DecisionsTotal.WithLabelValues(string(decision.StatusError)).Inc()
				result = nil
			}
		}()

		start := p.now()
		result = p.executor.Execute(execCtx, d)
		metrics.ExecutionDuration.Observe(p.now().Sub(start).Seconds())
	}()

	if result == nil {
		// panic 分支已记录
		return
	}

	if result.Success {
		p.state.RecordTrade(p.now())

		p.publish(event.EventTypeTradeExecuted, map[string]interface{}{
			"symbol":       result.Symbol,
			"side":         result.Side,
			"size":         result.Size,
			"price":        result.Price,
			"notional_usd": result.NotionalUSD,
			"order_id":     result.OrderID,
		})

		p.writeAudit(d, decision.StatusExecuted, "", result)
		metrics.DecisionsTotal.WithLabelValues(string(decision.StatusExecuted)).Inc()
		metrics.TradesExecutedTotal.WithLabelValues(result.Side, d.Symbol).Inc()
		snap := p.state.Snapshot()
		metrics.DailyTradeCount.Set(float64(snap.DailyTradeCount))
		return
	}

	logger.Error("❌ 交易失败: %s %s: %s", d.Action, d.Symbol, result.Error)
	p.publish(event.EventTypeTradeFailed, map[string]interface{}{
		"action": string(d.Action),
		"symbol": d.Symbol,
		"error":  result.Error,
	})

	p.writeAudit(d, decision.StatusFailed, result.Error, result)
	metrics.DecisionsTotal.WithLabelValues(string(decision.StatusFailed)).Inc()
}

// publish 发布事件（事件总线未配置时为空操作）
func (p *DecisionProcessor) publish(eventType event.EventType, data map[string]interface{}) {
	if p.eventBus == nil {
		return
	}
	p.eventBus.Publish(&event.Event{Type: eventType, Data: data})
}

// writeAudit 写入审计记录（每个决策一条，带处理时的状态快照）
func (p *DecisionProcessor) writeAudit(d *decision.Decision, status decision.Status, reason string, result *executor.ExecResult) {
	if p.store == nil {
		return
	}

	snapshot, err := json.Marshal(p.state.Snapshot())
	if err != nil {
		snapshot = []byte("{}")
	}

	entry := &database.TradeLog{
		DecisionTimestamp: d.Timestamp,
		Action:            string(d.Action),
		Symbol:            d.Symbol,
		Confidence:        d.Confidence,
		Reasoning:         d.Reasoning,
		Status:            string(status),
		Reason:            reason,
		StateSnapshot:     string(snapshot),
		CreatedAt:         p.now().UTC(),
	}

	if result != nil {
		entry.OrderID = result.OrderID
		entry.Side = result.Side
		entry.Size = result.Size
		entry.Price = result.Price
		entry.NotionalUSD = result.NotionalUSD
	}

	p.store.Save(entry)
}
