package exchange

import (
	"context"
	"fmt"

	"tradepilot/config"
	"tradepilot/exchange/binance"
)

// NewExchange 创建交易所实例
func NewExchange(cfg *config.Config) (IExchange, error) {
	switch cfg.App.CurrentExchange {
	case "binance":
		exchangeCfg, exists := cfg.Exchanges["binance"]
		if !exists {
			return nil, fmt.Errorf("binance 配置不存在")
		}
		// 将 ExchangeConfig 转换为 map[string]string
		cfgMap := map[string]string{
			"api_key":    exchangeCfg.APIKey,
			"secret_key": exchangeCfg.SecretKey,
			"testnet":    fmt.Sprintf("%v", exchangeCfg.Testnet),
		}
		adapter, err := binance.NewBinanceAdapter(cfgMap, cfg.Trading.QuoteAsset)
		if err != nil {
			return nil, err
		}
		return &binanceWrapper{adapter: adapter}, nil

	default:
		return nil, fmt.Errorf("不支持的交易所: %s", cfg.App.CurrentExchange)
	}
}

// binanceWrapper 将 binance 包内部类型桥接到 exchange 包类型
type binanceWrapper struct {
	adapter *binance.BinanceAdapter
}

func (w *binanceWrapper) GetName() string {
	return w.adapter.GetName()
}

func (w *binanceWrapper) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	return w.adapter.GetLatestPrice(ctx, symbol)
}

func (w *binanceWrapper) GetAccount(ctx context.Context) (*Account, error) {
	acc, err := w.adapter.GetAccount(ctx)
	if err != nil {
		return nil, err
	}
	return &Account{
		TotalWalletBalance: acc.TotalWalletBalance,
		AvailableBalance:   acc.AvailableBalance,
	}, nil
}

func (w *binanceWrapper) PlaceOrder(ctx context.Context, req *OrderRequest) (*Order, error) {
	order, err := w.adapter.PlaceOrder(ctx, &binance.OrderRequest{
		Symbol:        req.Symbol,
		Side:          binance.Side(req.Side),
		Type:          binance.OrderType(req.Type),
		Quantity:      req.Quantity,
		ClientOrderID: req.ClientOrderID,
	})
	if err != nil {
		return nil, err
	}
	return &Order{
		OrderID:       order.OrderID,
		ClientOrderID: order.ClientOrderID,
		Symbol:        order.Symbol,
		Side:          Side(order.Side),
		Type:          OrderType(order.Type),
		Price:         order.Price,
		Quantity:      order.Quantity,
		ExecutedQty:   order.ExecutedQty,
		Status:        OrderStatus(order.Status),
		CreatedAt:     order.CreatedAt,
	}, nil
}

func (w *binanceWrapper) GetQuantityDecimals(symbol string) int {
	return w.adapter.GetQuantityDecimals(symbol)
}

func (w *binanceWrapper) FormatSymbol(baseAsset string) string {
	return w.adapter.FormatSymbol(baseAsset)
}
