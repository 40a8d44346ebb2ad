package exchange

import (
	"context"
	"time"
)

// Side 订单方向
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType 订单类型
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
)

// OrderRequest 下单请求
type OrderRequest struct {
	Symbol        string // 交易所交易对标识，如 ETHUSDT
	Side          Side
	Type          OrderType
	Quantity      float64
	ClientOrderID string
}

// Order 订单
type Order struct {
	OrderID       int64
	ClientOrderID string
	Symbol        string
	Side          Side
	Type          OrderType
	Price         float64 // 市价单为成交均价
	Quantity      float64
	ExecutedQty   float64
	Status        OrderStatus
	CreatedAt     time.Time
}

// Account 账户快照
type Account struct {
	TotalWalletBalance float64
	AvailableBalance   float64
}

// IExchange 交易所接口（行情 + 账户 + 下单）
type IExchange interface {
	GetName() string

	// GetLatestPrice 获取交易对最新价格
	GetLatestPrice(ctx context.Context, symbol string) (float64, error)

	// GetAccount 获取账户快照
	GetAccount(ctx context.Context) (*Account, error)

	// PlaceOrder 下单（单次提交，不重试）
	PlaceOrder(ctx context.Context, req *OrderRequest) (*Order, error)

	// GetQuantityDecimals 获取指定交易对的数量精度（小数位数）
	GetQuantityDecimals(symbol string) int

	// FormatSymbol 将基础币种映射为交易所交易对标识（如 ETH -> ETHUSDT）
	FormatSymbol(baseAsset string) string
}
