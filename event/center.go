package event

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"tradepilot/database"
	"tradepilot/logger"
)

// EventCenter 事件中心
//
// 消费事件总线，将事件落库并按严重级别触发通知。
type EventCenter struct {
	db       database.Database
	eventBus *EventBus
	notifier NotificationService
	config   *EventCenterConfig
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// EventCenterConfig 事件中心配置
type EventCenterConfig struct {
	Enabled         bool
	CleanupInterval int // 清理间隔（小时）
	RetentionDays   int // 事件保留天数
}

// NotificationService 通知服务接口
type NotificationService interface {
	Send(event *Event)
}

// NewEventCenter 创建事件中心
func NewEventCenter(db database.Database, eventBus *EventBus, notifier NotificationService, config *EventCenterConfig) *EventCenter {
	ctx, cancel := context.WithCancel(context.Background())

	return &EventCenter{
		db:       db,
		eventBus: eventBus,
		notifier: notifier,
		config:   config,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start 启动事件中心
func (ec *EventCenter) Start() error {
	if !ec.config.Enabled {
		logger.Info("⏸️ 事件中心未启用")
		return nil
	}

	logger.Info("🚀 启动事件中心...")

	ec.wg.Add(1)
	go ec.processEvents()

	if ec.config.RetentionDays > 0 {
		ec.wg.Add(1)
		go ec.cleanupTask()
	}

	logger.Info("✅ 事件中心已启动")
	return nil
}

// Stop 停止事件中心
func (ec *EventCenter) Stop() {
	logger.Info("🛑 停止事件中心...")
	ec.cancel()
	ec.wg.Wait()
	logger.Info("✅ 事件中心已停止")
}

// processEvents 处理事件
func (ec *EventCenter) processEvents() {
	defer ec.wg.Done()

	eventCh := ec.eventBus.Subscribe()

	for {
		select {
		case <-ec.ctx.Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			ec.handleEvent(event)
		}
	}
}

// handleEvent 处理单个事件
func (ec *EventCenter) handleEvent(event *Event) {
	if event == nil {
		return
	}

	severity := GetEventSeverity(event.Type)
	title := GetEventTitle(event.Type)

	symbol := ec.extractString(event.Data, "symbol")
	message := ec.buildMessage(event)

	detailsJSON, err := json.Marshal(event.Data)
	if err != nil {
		logger.Warn("⚠️ 序列化事件详情失败: %v", err)
		detailsJSON = []byte("{}")
	}

	if ec.db != nil {
		record := &database.EventRecord{
			Type:      string(event.Type),
			Severity:  string(severity),
			Symbol:    symbol,
			Title:     title,
			Message:   message,
			Details:   string(detailsJSON),
			CreatedAt: event.Timestamp,
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := ec.db.SaveEvent(ctx, record); err != nil {
			logger.Error("❌ 保存事件失败: %v", err)
		}
	}

	if ec.notifier != nil && ec.shouldNotify(event.Type, severity) {
		ec.notifier.Send(event)
	}
}

// extractString 从事件数据中提取字符串字段
func (ec *EventCenter) extractString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// buildMessage 构建事件消息
func (ec *EventCenter) buildMessage(event *Event) string {
	switch event.Type {
	case EventTypeTradeExecuted, EventTypeDecisionSimulated:
		return ec.buildTradeMessage(event)
	case EventTypeDecisionRejected, EventTypeTradeFailed:
		return ec.buildRejectionMessage(event)
	case EventTypeEmergencyStop, EventTypeCircuitBreaker:
		return ec.buildHaltMessage(event)
	default:
		if msg, ok := event.Data["message"].(string); ok {
			return msg
		}
		if err, ok := event.Data["error"].(string); ok {
			return err
		}
		return fmt.Sprintf("事件类型: %s", event.Type)
	}
}

// buildTradeMessage 构建交易消息
func (ec *EventCenter) buildTradeMessage(event *Event) string {
	symbol := ec.extractString(event.Data, "symbol")

	if event.Type == EventTypeDecisionSimulated {
		action := ec.extractString(event.Data, "action")
		return fmt.Sprintf("%s %s 模拟执行 名义金额 %v USD", symbol, action, event.Data["notional_usd"])
	}

	side := ec.extractString(event.Data, "side")
	size := event.Data["size"]
	price := event.Data["price"]

	return fmt.Sprintf("%s %s %v @ %v", symbol, side, size, price)
}

// buildRejectionMessage 构建拒绝/失败消息
func (ec *EventCenter) buildRejectionMessage(event *Event) string {
	symbol := ec.extractString(event.Data, "symbol")
	reason := ec.extractString(event.Data, "reason")

	if reason == "" {
		reason = ec.extractString(event.Data, "error")
	}
	return fmt.Sprintf("%s: %s", symbol, reason)
}

// buildHaltMessage 构建停止消息
func (ec *EventCenter) buildHaltMessage(event *Event) string {
	reason := ec.extractString(event.Data, "reason")
	return fmt.Sprintf("交易已停止: %s", reason)
}

// shouldNotify 判断是否需要发送通知
func (ec *EventCenter) shouldNotify(eventType EventType, severity EventSeverity) bool {
	// Critical 级别的事件总是通知
	if severity == SeverityCritical {
		return true
	}

	if severity == SeverityWarning {
		switch eventType {
		case EventTypeTradeFailed, EventTypeWatchdogAlert:
			return true
		}
	}

	// 成交通知始终发送
	return eventType == EventTypeTradeExecuted
}

// cleanupTask 清理任务
func (ec *EventCenter) cleanupTask() {
	defer ec.wg.Done()

	// 首次等待1小时后再开始清理
	timer := time.NewTimer(1 * time.Hour)
	defer timer.Stop()

	interval := ec.config.CleanupInterval
	if interval <= 0 {
		interval = 24
	}

	for {
		select {
		case <-ec.ctx.Done():
			return
		case <-timer.C:
			ec.performCleanup()
			timer.Reset(time.Duration(interval) * time.Hour)
		}
	}
}

// performCleanup 执行清理
func (ec *EventCenter) performCleanup() {
	if ec.db == nil {
		return
	}

	logger.Info("🧹 开始清理旧事件和审计记录...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := ec.db.CleanupOldEvents(ctx, ec.config.RetentionDays); err != nil {
		logger.Error("❌ 清理旧事件失败: %v", err)
	}

	if err := ec.db.CleanupOldTradeLogs(ctx, ec.config.RetentionDays); err != nil {
		logger.Error("❌ 清理旧审计记录失败: %v", err)
	}

	logger.Info("✅ 数据清理完成")
}

// PublishEvent 发布事件（便捷方法）
func (ec *EventCenter) PublishEvent(eventType EventType, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
	ec.eventBus.Publish(event)
}
