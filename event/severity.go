package event

// EventSeverity 事件严重级别
type EventSeverity string

const (
	SeverityInfo     EventSeverity = "info"
	SeverityWarning  EventSeverity = "warning"
	SeverityCritical EventSeverity = "critical"
)

// GetEventSeverity 获取事件严重级别
func GetEventSeverity(eventType EventType) EventSeverity {
	switch eventType {
	case EventTypeEmergencyStop, EventTypeCircuitBreaker, EventTypeError:
		return SeverityCritical
	case EventTypeTradeFailed, EventTypeWatchdogAlert:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// GetEventTitle 获取事件标题
func GetEventTitle(eventType EventType) string {
	switch eventType {
	case EventTypeDecisionReceived:
		return "收到交易决策"
	case EventTypeDecisionRejected:
		return "决策被拒绝"
	case EventTypeDecisionSimulated:
		return "决策模拟执行"
	case EventTypeTradeExecuted:
		return "交易已执行"
	case EventTypeTradeFailed:
		return "交易执行失败"
	case EventTypeEmergencyStop:
		return "紧急停止"
	case EventTypeCircuitBreaker:
		return "日亏损熔断"
	case EventTypeDailyReset:
		return "每日计数重置"
	case EventTypeWatchdogAlert:
		return "系统资源告警"
	case EventTypeError:
		return "系统错误"
	case EventTypeSystemStart:
		return "系统启动"
	case EventTypeSystemStop:
		return "系统停止"
	default:
		return string(eventType)
	}
}
