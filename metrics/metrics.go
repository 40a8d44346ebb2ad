package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus 指标定义（通过 /metrics 接口暴露）
var (
	// DecisionsTotal 决策处理计数（按最终状态）
	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradepilot_decisions_total",
		Help: "Total number of processed decisions by final status",
	}, []string{"status"})

	// TradesExecutedTotal 成交计数（按方向和币种）
	TradesExecutedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradepilot_trades_executed_total",
		Help: "Total number of executed trades",
	}, []string{"side", "symbol"})

	// DailyTradeCount 当日交易次数
	DailyTradeCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradepilot_daily_trade_count",
		Help: "Number of trades executed today (UTC)",
	})

	// DailyPnLUSD 当日已实现盈亏（USD）
	DailyPnLUSD = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradepilot_daily_pnl_usd",
		Help: "Realized PnL today in USD",
	})

	// TradingHalted 交易停止状态（1=停止）
	TradingHalted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradepilot_trading_halted",
		Help: "Whether trading is halted (1) or not (0)",
	})

	// ExecutionDuration 下单执行耗时
	ExecutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tradepilot_execution_duration_seconds",
		Help:    "Time spent executing a trade order",
		Buckets: prometheus.DefBuckets,
	})

	// DecisionQueueDropped 决策积压替换计数
	DecisionQueueDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradepilot_decision_queue_dropped_total",
		Help: "Number of pending decisions replaced by a newer one",
	})

	// PriceRefreshErrors 行情刷新失败计数
	PriceRefreshErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradepilot_price_refresh_errors_total",
		Help: "Number of failed price refresh attempts",
	})
)
