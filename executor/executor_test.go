package executor

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"tradepilot/config"
	"tradepilot/decision"
	"tradepilot/exchange"
	"tradepilot/lock"
)

// MockExchange 模拟交易所实现
type MockExchange struct {
	exchange.IExchange
	Price       float64
	PriceErr    error
	PlaceErr    error
	PlacedOrder *exchange.OrderRequest // 记录最后一次下单请求
	PlaceCalls  int
}

func (m *MockExchange) GetName() string { return "mock" }

func (m *MockExchange) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	return m.Price, m.PriceErr
}

func (m *MockExchange) PlaceOrder(ctx context.Context, req *exchange.OrderRequest) (*exchange.Order, error) {
	m.PlaceCalls++
	m.PlacedOrder = req
	if m.PlaceErr != nil {
		return nil, m.PlaceErr
	}
	return &exchange.Order{
		OrderID:     10001,
		Symbol:      req.Symbol,
		Side:        req.Side,
		Type:        req.Type,
		Price:       m.Price,
		Quantity:    req.Quantity,
		ExecutedQty: req.Quantity,
		Status:      exchange.OrderStatusFilled,
		CreatedAt:   time.Now(),
	}, nil
}

func (m *MockExchange) GetQuantityDecimals(symbol string) int { return 3 }

func (m *MockExchange) FormatSymbol(baseAsset string) string { return baseAsset + "USDT" }

// MockPrices 模拟价格缓存
type MockPrices struct {
	prices map[string]float64
}

func (m *MockPrices) GetPrice(symbol string) (float64, bool) {
	p, ok := m.prices[symbol]
	return p, ok
}

// busyLock TryLock 始终失败的锁
type busyLock struct {
	lock.NopLock
}

func (b *busyLock) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return false, nil
}

func testConfig() *config.Config {
	cfg := config.CreateMinimalConfig()
	cfg.Trading.Enabled = true
	return cfg
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCalcNotionalUSD(t *testing.T) {
	override := 30.0
	tooLarge := 500.0

	tests := []struct {
		name     string
		decision *decision.Decision
		maxPos   float64
		want     float64
	}{
		{
			name:     "按置信度缩放",
			decision: &decision.Decision{Confidence: 0.5},
			maxPos:   100,
			want:     50,
		},
		{
			name:     "满置信度取上限",
			decision: &decision.Decision{Confidence: 1.0},
			maxPos:   100,
			want:     100,
		},
		{
			name:     "仓位覆盖值优先",
			decision: &decision.Decision{Confidence: 0.9, PositionSizeOverride: &override},
			maxPos:   100,
			want:     30,
		},
		{
			name:     "覆盖值不能超过上限",
			decision: &decision.Decision{Confidence: 0.9, PositionSizeOverride: &tooLarge},
			maxPos:   100,
			want:     100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalcNotionalUSD(tt.decision, tt.maxPos)
			if !almostEqual(got, tt.want) {
				t.Errorf("CalcNotionalUSD = %v, 期望 %v", got, tt.want)
			}
		})
	}
}

// 上限100、置信度0.5、价格50000 -> 名义金额50 USD，数量0.001
func TestExecuteSizing(t *testing.T) {
	mockEx := &MockExchange{Price: 50000}
	prices := &MockPrices{prices: map[string]float64{"BTCUSDT": 50000}}

	exec := NewTradeExecutor(mockEx, prices, lock.NewNopLock(), testConfig())

	result := exec.Execute(context.Background(), &decision.Decision{
		Action:     decision.ActionBuy,
		Symbol:     "BTC",
		Confidence: 0.5,
		Timestamp:  time.Now().UnixMilli(),
	})

	if !result.Success {
		t.Fatalf("执行失败: %s", result.Error)
	}
	if !almostEqual(result.Size, 0.001) {
		t.Errorf("数量 = %v, 期望 0.001", result.Size)
	}
	if !almostEqual(result.NotionalUSD, 50) {
		t.Errorf("名义金额 = %v, 期望 50", result.NotionalUSD)
	}
}

// BUY ETH 置信度0.9、价格2000 -> 名义金额90 USD，数量0.045
func TestExecuteBuyETH(t *testing.T) {
	mockEx := &MockExchange{Price: 2000}
	prices := &MockPrices{prices: map[string]float64{"ETHUSDT": 2000}}

	exec := NewTradeExecutor(mockEx, prices, lock.NewNopLock(), testConfig())

	result := exec.Execute(context.Background(), &decision.Decision{
		Action:     decision.ActionBuy,
		Symbol:     "ETH",
		Confidence: 0.9,
		Timestamp:  time.Now().UnixMilli(),
	})

	if !result.Success {
		t.Fatalf("执行失败: %s", result.Error)
	}
	if !almostEqual(result.Size, 0.045) {
		t.Errorf("数量 = %v, 期望 0.045", result.Size)
	}
	if !almostEqual(result.NotionalUSD, 90) {
		t.Errorf("名义金额 = %v, 期望 90", result.NotionalUSD)
	}
	if result.Symbol != "ETHUSDT" {
		t.Errorf("交易对 = %s, 期望 ETHUSDT", result.Symbol)
	}
	if mockEx.PlacedOrder.Side != exchange.SideBuy {
		t.Errorf("方向 = %s, 期望 BUY", mockEx.PlacedOrder.Side)
	}
	if mockEx.PlacedOrder.Type != exchange.OrderTypeMarket {
		t.Errorf("订单类型 = %s, 期望 MARKET", mockEx.PlacedOrder.Type)
	}
}

// 缓存未命中时回退到实时价格
func TestExecutePriceFallback(t *testing.T) {
	mockEx := &MockExchange{Price: 2000}
	prices := &MockPrices{prices: map[string]float64{}}

	exec := NewTradeExecutor(mockEx, prices, lock.NewNopLock(), testConfig())

	result := exec.Execute(context.Background(), &decision.Decision{
		Action:     decision.ActionBuy,
		Symbol:     "ETH",
		Confidence: 0.9,
		Timestamp:  time.Now().UnixMilli(),
	})

	if !result.Success {
		t.Fatalf("执行失败: %s", result.Error)
	}
}

// 下单失败单次提交不重试
func TestExecuteNoRetry(t *testing.T) {
	mockEx := &MockExchange{Price: 2000, PlaceErr: fmt.Errorf("insufficient margin")}
	prices := &MockPrices{prices: map[string]float64{"ETHUSDT": 2000}}

	exec := NewTradeExecutor(mockEx, prices, lock.NewNopLock(), testConfig())

	result := exec.Execute(context.Background(), &decision.Decision{
		Action:     decision.ActionSell,
		Symbol:     "ETH",
		Confidence: 0.8,
		Timestamp:  time.Now().UnixMilli(),
	})

	if result.Success {
		t.Fatal("下单失败时不应返回成功")
	}
	if mockEx.PlaceCalls != 1 {
		t.Errorf("下单调用次数 = %d, 期望 1 (不重试)", mockEx.PlaceCalls)
	}
}

// 分布式锁被占用时跳过执行
func TestExecuteLockBusy(t *testing.T) {
	mockEx := &MockExchange{Price: 2000}
	prices := &MockPrices{prices: map[string]float64{"ETHUSDT": 2000}}

	exec := NewTradeExecutor(mockEx, prices, &busyLock{}, testConfig())

	result := exec.Execute(context.Background(), &decision.Decision{
		Action:     decision.ActionBuy,
		Symbol:     "ETH",
		Confidence: 0.9,
		Timestamp:  time.Now().UnixMilli(),
	})

	if result.Success {
		t.Fatal("锁被占用时不应成功")
	}
	if mockEx.PlaceCalls != 0 {
		t.Errorf("锁被占用时不应下单, 实际调用 %d 次", mockEx.PlaceCalls)
	}
}

// 交易所未初始化（降级模式）
func TestExecuteNilExchange(t *testing.T) {
	exec := NewTradeExecutor(nil, &MockPrices{}, lock.NewNopLock(), testConfig())

	result := exec.Execute(context.Background(), &decision.Decision{
		Action:     decision.ActionBuy,
		Symbol:     "ETH",
		Confidence: 0.9,
		Timestamp:  time.Now().UnixMilli(),
	})

	if result.Success {
		t.Fatal("交易所未初始化时不应成功")
	}
}
