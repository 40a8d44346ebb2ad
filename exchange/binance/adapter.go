package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"tradepilot/logger"

	"github.com/adshao/go-binance/v2/futures"
)

// 为了避免循环导入，在这里定义需要的类型
type Side string
type OrderType string
type OrderStatus string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

type OrderRequest struct {
	Symbol        string
	Side          Side
	Type          OrderType
	Quantity      float64
	ClientOrderID string
}

type Order struct {
	OrderID       int64
	ClientOrderID string
	Symbol        string
	Side          Side
	Type          OrderType
	Price         float64
	Quantity      float64
	ExecutedQty   float64
	Status        OrderStatus
	CreatedAt     time.Time
}

type Account struct {
	TotalWalletBalance float64
	AvailableBalance   float64
}

// symbolInfo 交易对精度信息
type symbolInfo struct {
	priceDecimals    int
	quantityDecimals int
	baseAsset        string
	quoteAsset       string
}

// BinanceAdapter 币安交易所适配器
type BinanceAdapter struct {
	client     *futures.Client
	quoteAsset string // 计价资产，如 USDT
	useTestnet bool   // 是否使用测试网

	// 交易对精度信息（启动时拉取）
	symbolsMu sync.RWMutex
	symbols   map[string]*symbolInfo

	// 速率限制相关
	lastAPICallTime time.Time     // 上次API调用时间
	apiCallMu       sync.Mutex    // API调用互斥锁
	minAPIInterval  time.Duration // 最小API调用间隔
}

// NewBinanceAdapter 创建币安适配器
func NewBinanceAdapter(cfg map[string]string, quoteAsset string) (*BinanceAdapter, error) {
	apiKey := cfg["api_key"]
	secretKey := cfg["secret_key"]
	testnetStr := cfg["testnet"]

	// 解析测试网配置
	useTestnet := false
	if testnetStr == "true" {
		useTestnet = true
		logger.Info("🌐 [Binance] 使用测试网模式")
	}

	// 设置测试网模式（必须在创建客户端之前设置）
	futures.UseTestnet = useTestnet

	if apiKey == "" || secretKey == "" {
		return nil, fmt.Errorf("Binance API 配置不完整")
	}

	if quoteAsset == "" {
		quoteAsset = "USDT"
	}

	client := futures.NewClient(apiKey, secretKey)

	// 同步服务器时间
	client.NewSetServerTimeService().Do(context.Background())

	adapter := &BinanceAdapter{
		client:         client,
		quoteAsset:     quoteAsset,
		useTestnet:     useTestnet,
		symbols:        make(map[string]*symbolInfo),
		minAPIInterval: 200 * time.Millisecond, // 最小API调用间隔200ms，避免触发限流
	}

	// 获取合约信息（价格精度、数量精度等）
	ctxInit, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := adapter.fetchExchangeInfo(ctxInit); err != nil {
		logger.Warn("⚠️ [Binance] 获取合约信息失败: %v，使用默认精度", err)
	}

	return adapter, nil
}

// GetName 获取交易所名称
func (b *BinanceAdapter) GetName() string {
	return "Binance"
}

// FormatSymbol 将基础币种映射为合约交易对（如 ETH -> ETHUSDT）
func (b *BinanceAdapter) FormatSymbol(baseAsset string) string {
	return strings.ToUpper(baseAsset) + b.quoteAsset
}

// fetchExchangeInfo 获取全部合约的精度信息
func (b *BinanceAdapter) fetchExchangeInfo(ctx context.Context) error {
	exchangeInfo, err := b.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return fmt.Errorf("获取交易所信息失败: %w", err)
	}

	b.symbolsMu.Lock()
	defer b.symbolsMu.Unlock()

	for _, symbol := range exchangeInfo.Symbols {
		b.symbols[symbol.Symbol] = &symbolInfo{
			priceDecimals:    symbol.PricePrecision,
			quantityDecimals: symbol.QuantityPrecision,
			baseAsset:        symbol.BaseAsset,
			quoteAsset:       symbol.QuoteAsset,
		}
	}

	logger.Info("ℹ️ [Binance] 已加载 %d 个合约的精度信息", len(b.symbols))
	return nil
}

// GetQuantityDecimals 获取交易对数量精度（小数位数）
func (b *BinanceAdapter) GetQuantityDecimals(symbol string) int {
	b.symbolsMu.RLock()
	defer b.symbolsMu.RUnlock()

	if info, ok := b.symbols[symbol]; ok {
		return info.quantityDecimals
	}
	return 3 // 默认精度
}

// waitForRateLimit 速率限制：确保最小调用间隔
func (b *BinanceAdapter) waitForRateLimit() {
	b.apiCallMu.Lock()
	defer b.apiCallMu.Unlock()

	elapsed := time.Since(b.lastAPICallTime)
	if elapsed < b.minAPIInterval {
		time.Sleep(b.minAPIInterval - elapsed)
	}
	b.lastAPICallTime = time.Now()
}

// GetLatestPrice 获取交易对最新价格
func (b *BinanceAdapter) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	b.waitForRateLimit()

	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("获取价格失败: %w", err)
	}

	if len(prices) == 0 {
		return 0, fmt.Errorf("未找到交易对 %s 的价格", symbol)
	}

	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return 0, fmt.Errorf("解析价格失败: %w", err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("无效的价格: %v", prices[0].Price)
	}

	return price, nil
}

// GetAccount 获取账户快照
func (b *BinanceAdapter) GetAccount(ctx context.Context) (*Account, error) {
	if b.useTestnet {
		logger.Debug("🌐 [Binance] 正在从测试网获取账户信息")
	} else {
		logger.Debug("🌐 [Binance] 正在从主网获取账户信息")
	}

	b.waitForRateLimit()

	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		// 将常见的英文错误转换为友好的中文提示
		errStr := err.Error()
		if strings.Contains(errStr, "Service unavailable from a restricted location") {
			return nil, fmt.Errorf("你的网络连接在限制服务区域，请检查网络或使用代理")
		}
		return nil, err
	}

	// 从合约账户的 Assets 中获取稳定币余额
	availableBalance := 0.0
	totalWalletBalance := 0.0

	for _, asset := range account.Assets {
		if asset.Asset == "USDT" || asset.Asset == "USDC" || asset.Asset == "BUSD" {
			balance, _ := strconv.ParseFloat(asset.WalletBalance, 64)
			available, _ := strconv.ParseFloat(asset.AvailableBalance, 64)

			totalWalletBalance += balance
			availableBalance += available
		}
	}

	return &Account{
		TotalWalletBalance: totalWalletBalance,
		AvailableBalance:   availableBalance,
	}, nil
}

// PlaceOrder 下单（市价单，单次提交）
func (b *BinanceAdapter) PlaceOrder(ctx context.Context, req *OrderRequest) (*Order, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("无效的下单数量: %.8f（数量必须大于0）", req.Quantity)
	}

	qDec := b.GetQuantityDecimals(req.Symbol)
	quantityStr := fmt.Sprintf("%.*f", qDec, req.Quantity)

	// 数量截断后为 0 直接报错，不自动放大（避免超出决策授权的规模）
	q, _ := strconv.ParseFloat(quantityStr, 64)
	if q <= 0 {
		return nil, fmt.Errorf("下单数量 %.8f 在精度 %d 下格式化后为 0", req.Quantity, qDec)
	}

	b.waitForRateLimit()

	orderService := b.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(futures.SideType(req.Side)).
		Type(futures.OrderTypeMarket).
		Quantity(quantityStr)

	if req.ClientOrderID != "" {
		orderService = orderService.NewClientOrderID(req.ClientOrderID)
	}

	resp, err := orderService.Do(ctx)
	if err != nil {
		return nil, err
	}

	avgPrice, _ := strconv.ParseFloat(resp.AvgPrice, 64)
	executedQty, _ := strconv.ParseFloat(resp.ExecutedQuantity, 64)

	return &Order{
		OrderID:       resp.OrderID,
		ClientOrderID: resp.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Type:          req.Type,
		Price:         avgPrice,
		Quantity:      q,
		ExecutedQty:   executedQty,
		Status:        OrderStatus(resp.Status),
		CreatedAt:     time.Now(),
	}, nil
}
