package market

import (
	"sync"
	"time"
)

// Cache 行情/账户快照缓存
//
// 由调度器定期刷新，安全检查和交易执行读取。读到的价格可能滞后
// 一个刷新周期，下单仍以最新缓存价格估算数量。
type Cache struct {
	mu      sync.RWMutex
	prices  map[string]priceEntry
	account accountEntry
}

type priceEntry struct {
	price     float64
	updatedAt time.Time
}

type accountEntry struct {
	balanceUSD float64
	updatedAt  time.Time
}

// NewCache 创建行情缓存
func NewCache() *Cache {
	return &Cache{
		prices: make(map[string]priceEntry),
	}
}

// SetPrice 更新币种价格
func (c *Cache) SetPrice(symbol string, price float64) {
	if price <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.prices[symbol] = priceEntry{price: price, updatedAt: time.Now()}
}

// GetPrice 读取币种价格，无数据时返回 ok=false
func (c *Cache) GetPrice(symbol string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.prices[symbol]
	if !ok || entry.price <= 0 {
		return 0, false
	}
	return entry.price, true
}

// PriceUpdatedAt 价格最近更新时间
func (c *Cache) PriceUpdatedAt(symbol string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.prices[symbol]
	if !ok {
		return time.Time{}, false
	}
	return entry.updatedAt, true
}

// SetAccountBalance 更新账户余额快照
func (c *Cache) SetAccountBalance(balanceUSD float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.account = accountEntry{balanceUSD: balanceUSD, updatedAt: time.Now()}
}

// GetAccountBalance 读取账户余额快照
func (c *Cache) GetAccountBalance() (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.account.updatedAt.IsZero() {
		return 0, false
	}
	return c.account.balanceUSD, true
}
