package decision

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action 决策动作
type Action string

const (
	ActionBuy           Action = "BUY"
	ActionSell          Action = "SELL"
	ActionHold          Action = "HOLD"
	ActionEmergencyStop Action = "EMERGENCY_STOP"
)

// IsTrade 是否为交易动作（BUY/SELL）
func (a Action) IsTrade() bool {
	return a == ActionBuy || a == ActionSell
}

// Status 决策处理结果状态
type Status string

const (
	StatusReceived      Status = "received"
	StatusRejected      Status = "rejected"
	StatusSimulated     Status = "simulated"
	StatusExecuted      Status = "executed"
	StatusFailed        Status = "failed"
	StatusError         Status = "error"
	StatusEmergencyStop Status = "emergency_stop"
)

// Decision 外部策略产生的交易决策（创建后不可变）
//
// Timestamp 是去重键：同一时间戳的决策在单个进程实例中最多处理一次。
// 跨重启去重是尽力而为，与内存状态不持久化的设计一致。
type Decision struct {
	Action               Action   `json:"action"`
	Symbol               string   `json:"symbol"`
	Confidence           float64  `json:"confidence"`
	Reasoning            string   `json:"reasoning"`
	Timestamp            int64    `json:"timestamp"`
	PositionSizeOverride *float64 `json:"position_size_override,omitempty"`
}

// Parse 解析 JSON 决策
func Parse(data []byte) (*Decision, error) {
	var d Decision
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("解析决策失败: %w", err)
	}

	d.Action = Action(strings.ToUpper(string(d.Action)))
	d.Symbol = strings.ToUpper(strings.TrimSpace(d.Symbol))

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate 基础合法性检查（字段格式，不含风控规则）
func (d *Decision) Validate() error {
	switch d.Action {
	case ActionBuy, ActionSell, ActionHold, ActionEmergencyStop:
	default:
		return fmt.Errorf("未知的决策动作: %s", d.Action)
	}

	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("置信度超出范围 [0,1]: %v", d.Confidence)
	}

	if d.Timestamp <= 0 {
		return fmt.Errorf("决策时间戳必须大于0: %d", d.Timestamp)
	}

	if d.Action.IsTrade() && d.Symbol == "" {
		return fmt.Errorf("交易决策缺少币种")
	}

	return nil
}
