package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"tradepilot/config"
	"tradepilot/decision"
	"tradepilot/exchange"
	"tradepilot/lock"
	"tradepilot/logger"
)

// PriceProvider 价格来源（由调度器刷新的行情缓存实现）
type PriceProvider interface {
	GetPrice(symbol string) (float64, bool)
}

// ExecResult 交易执行结果
type ExecResult struct {
	Success     bool
	OrderID     int64
	Symbol      string  // 交易所交易对标识，如 ETHUSDT
	Side        string
	Size        float64 // 下单数量（基础币种）
	Price       float64 // 成交均价（无成交回报时为估算价格）
	NotionalUSD float64 // 名义金额（USD）
	Error       string
}

// TradeExecutor 交易执行器
//
// 下单策略：市价单，单次提交，不重试。失败原样返回给调用方记录，
// 重试留给下一个决策。
type TradeExecutor struct {
	exchange exchange.IExchange
	prices   PriceProvider
	distLock lock.DistributedLock
	lockTTL  time.Duration
	limiter  *rate.Limiter
	cfg      *config.Config
}

// NewTradeExecutor 创建交易执行器
func NewTradeExecutor(ex exchange.IExchange, prices PriceProvider, distLock lock.DistributedLock, cfg *config.Config) *TradeExecutor {
	if distLock == nil {
		distLock = lock.NewNopLock()
	}

	lockTTL := time.Duration(cfg.DistributedLock.DefaultTTL) * time.Second
	if lockTTL <= 0 {
		lockTTL = 5 * time.Second
	}

	return &TradeExecutor{
		exchange: ex,
		prices:   prices,
		distLock: distLock,
		lockTTL:  lockTTL,
		// 下单限速：每秒1次，突发2次（安全检查已有冷却时间，这里只防异常突发）
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
		cfg:     cfg,
	}
}

// CalcNotionalUSD 计算目标名义金额（USD）
//
// 优先使用决策给出的仓位覆盖值，否则按置信度缩放单笔上限，
// 结果始终不超过单笔上限。
func CalcNotionalUSD(d *decision.Decision, maxPositionSizeUSD float64) float64 {
	notional := maxPositionSizeUSD * d.Confidence
	if d.PositionSizeOverride != nil && *d.PositionSizeOverride > 0 {
		notional = *d.PositionSizeOverride
	}
	if notional > maxPositionSizeUSD {
		notional = maxPositionSizeUSD
	}
	return notional
}

// Execute 执行交易决策（调用前必须已通过安全检查）
func (e *TradeExecutor) Execute(ctx context.Context, d *decision.Decision) *ExecResult {
	if e.exchange == nil {
		return &ExecResult{Success: false, Error: "交易所未初始化"}
	}

	symbol := e.exchange.FormatSymbol(d.Symbol)
	result := &ExecResult{
		Symbol: symbol,
		Side:   string(d.Action),
	}

	// 获取价格：优先缓存，缓存未命中时实时查询
	price, ok := e.prices.GetPrice(symbol)
	if !ok {
		var err error
		price, err = e.exchange.GetLatestPrice(ctx, symbol)
		if err != nil {
			result.Error = fmt.Sprintf("获取 %s 价格失败: %v", symbol, err)
			return result
		}
	}
	if price <= 0 {
		result.Error = fmt.Sprintf("%s 价格无效: %v", symbol, price)
		return result
	}

	notional := CalcNotionalUSD(d, e.cfg.Trading.MaxPositionSizeUSD)
	quantity := notional / price
	result.Price = price
	result.Size = quantity
	result.NotionalUSD = notional

	// 多实例部署时同一币种同时只允许一个实例下单
	lockKey := "execute:" + symbol
	acquired, err := e.distLock.TryLock(ctx, lockKey, e.lockTTL)
	if err != nil {
		logger.Warn("⚠️ 获取分布式锁失败，跳过本次执行: %v", err)
		result.Error = fmt.Sprintf("获取分布式锁失败: %v", err)
		return result
	}
	if !acquired {
		result.Error = "另一实例正在执行该币种的交易"
		return result
	}
	defer func() {
		if err := e.distLock.Unlock(context.Background(), lockKey); err != nil {
			logger.Warn("⚠️ 释放分布式锁失败: %v", err)
		}
	}()

	if err := e.limiter.Wait(ctx); err != nil {
		result.Error = fmt.Sprintf("下单限速等待中断: %v", err)
		return result
	}

	logger.Info("🔄 开始执行交易: %s %s 数量=%.8f 名义金额=%.2f USD 价格=%.4f",
		d.Action, symbol, quantity, notional, price)

	order, err := e.exchange.PlaceOrder(ctx, &exchange.OrderRequest{
		Symbol:        symbol,
		Side:          exchange.Side(d.Action),
		Type:          exchange.OrderTypeMarket,
		Quantity:      quantity,
		ClientOrderID: fmt.Sprintf("tp-%d", d.Timestamp),
	})
	if err != nil {
		result.Error = fmt.Sprintf("下单失败: %v", err)
		logger.Error("❌ 交易执行失败: %s %s: %v", d.Action, symbol, err)
		return result
	}

	result.Success = true
	result.OrderID = order.OrderID
	if order.ExecutedQty > 0 {
		result.Size = order.ExecutedQty
	}
	if order.Price > 0 {
		result.Price = order.Price
	}
	result.NotionalUSD = result.Size * result.Price

	logger.Info("✅ 交易执行成功: %s %s 订单ID=%d 成交数量=%.8f 成交均价=%.4f",
		d.Action, symbol, order.OrderID, result.Size, result.Price)

	return result
}

// SideLabel 下单方向的中文描述（用于通知消息）
func SideLabel(side string) string {
	switch strings.ToUpper(side) {
	case "BUY":
		return "买入"
	case "SELL":
		return "卖出"
	default:
		return side
	}
}
