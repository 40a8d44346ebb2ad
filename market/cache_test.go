package market

import (
	"testing"
)

func TestCachePrice(t *testing.T) {
	cache := NewCache()

	if _, ok := cache.GetPrice("ETHUSDT"); ok {
		t.Fatal("无数据时应返回 ok=false")
	}

	cache.SetPrice("ETHUSDT", 2000)
	price, ok := cache.GetPrice("ETHUSDT")
	if !ok || price != 2000 {
		t.Errorf("GetPrice = %v, %v", price, ok)
	}

	// 非法价格被忽略
	cache.SetPrice("ETHUSDT", 0)
	price, _ = cache.GetPrice("ETHUSDT")
	if price != 2000 {
		t.Errorf("非法价格不应覆盖缓存, 实际 %v", price)
	}

	if _, ok := cache.PriceUpdatedAt("ETHUSDT"); !ok {
		t.Error("应记录更新时间")
	}
}

func TestCacheAccountBalance(t *testing.T) {
	cache := NewCache()

	if _, ok := cache.GetAccountBalance(); ok {
		t.Fatal("无数据时应返回 ok=false")
	}

	cache.SetAccountBalance(1234.5)
	balance, ok := cache.GetAccountBalance()
	if !ok || balance != 1234.5 {
		t.Errorf("GetAccountBalance = %v, %v", balance, ok)
	}
}
