package decision

import (
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
		check   func(*testing.T, *Decision)
	}{
		{
			name:    "合法的买入决策",
			payload: `{"action":"BUY","symbol":"ETH","confidence":0.9,"reasoning":"突破阻力位","timestamp":1700000000000}`,
			check: func(t *testing.T, d *Decision) {
				if d.Action != ActionBuy {
					t.Errorf("Action = %s", d.Action)
				}
				if d.Symbol != "ETH" {
					t.Errorf("Symbol = %s", d.Symbol)
				}
			},
		},
		{
			name:    "动作和币种大小写归一化",
			payload: `{"action":"sell","symbol":"btc","confidence":0.7,"timestamp":1700000000000}`,
			check: func(t *testing.T, d *Decision) {
				if d.Action != ActionSell {
					t.Errorf("Action = %s, 期望 SELL", d.Action)
				}
				if d.Symbol != "BTC" {
					t.Errorf("Symbol = %s, 期望 BTC", d.Symbol)
				}
			},
		},
		{
			name:    "仓位覆盖值",
			payload: `{"action":"BUY","symbol":"ETH","confidence":0.8,"timestamp":1700000000000,"position_size_override":25.5}`,
			check: func(t *testing.T, d *Decision) {
				if d.PositionSizeOverride == nil || *d.PositionSizeOverride != 25.5 {
					t.Errorf("PositionSizeOverride = %v", d.PositionSizeOverride)
				}
			},
		},
		{
			name:    "HOLD 无需币种",
			payload: `{"action":"HOLD","confidence":0.5,"timestamp":1700000000000}`,
		},
		{
			name:    "非法 JSON",
			payload: `{action: BUY}`,
			wantErr: true,
		},
		{
			name:    "未知动作",
			payload: `{"action":"SHORT","symbol":"ETH","confidence":0.9,"timestamp":1700000000000}`,
			wantErr: true,
		},
		{
			name:    "置信度超出范围",
			payload: `{"action":"BUY","symbol":"ETH","confidence":1.5,"timestamp":1700000000000}`,
			wantErr: true,
		},
		{
			name:    "置信度为负",
			payload: `{"action":"BUY","symbol":"ETH","confidence":-0.1,"timestamp":1700000000000}`,
			wantErr: true,
		},
		{
			name:    "缺少时间戳",
			payload: `{"action":"BUY","symbol":"ETH","confidence":0.9}`,
			wantErr: true,
		},
		{
			name:    "交易决策缺少币种",
			payload: `{"action":"BUY","confidence":0.9,"timestamp":1700000000000}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Parse([]byte(tt.payload))
			if tt.wantErr {
				if err == nil {
					t.Fatal("期望解析失败")
				}
				return
			}
			if err != nil {
				t.Fatalf("解析失败: %v", err)
			}
			if tt.check != nil {
				tt.check(t, d)
			}
		})
	}
}

func TestActionIsTrade(t *testing.T) {
	if !ActionBuy.IsTrade() || !ActionSell.IsTrade() {
		t.Error("BUY/SELL 应为交易动作")
	}
	if ActionHold.IsTrade() || ActionEmergencyStop.IsTrade() {
		t.Error("HOLD/EMERGENCY_STOP 不应为交易动作")
	}
}
