package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"tradepilot/config"
	"tradepilot/database"
	"tradepilot/market"
	"tradepilot/safety"
)

// MockStatusDB 模拟数据库（仅实现状态接口用到的方法）
type MockStatusDB struct {
	database.Database
}

func (m *MockStatusDB) GetLatestHeartbeat(ctx context.Context) (*database.StatusHeartbeat, error) {
	return &database.StatusHeartbeat{
		InstanceID: "test-1",
		Status:     "running",
		CreatedAt:  time.Now().UTC(),
	}, nil
}

func (m *MockStatusDB) GetLatestMarketSnapshot(ctx context.Context, symbol string) (*database.MarketSnapshot, error) {
	return &database.MarketSnapshot{Symbol: symbol, Price: 1999.5}, nil
}

func TestHandleStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	deps := &Deps{
		Config: config.CreateMinimalConfig(),
		State:  safety.NewTradingState(),
		Cache:  market.NewCache(),
		DB:     &MockStatusDB{},
	}

	r := gin.New()
	SetupRoutes(r, deps)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("状态码 = %d, 期望 200", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}

	if _, ok := resp["last_heartbeat"]; !ok {
		t.Error("响应应包含最近心跳")
	}

	prices, ok := resp["prices"].(map[string]interface{})
	if !ok {
		t.Fatal("响应应包含价格")
	}
	// 缓存为空时回退到最近落库的行情快照
	if prices["ETHUSDT"] != 1999.5 {
		t.Errorf("ETHUSDT 价格 = %v, 期望快照价格 1999.5", prices["ETHUSDT"])
	}
}

// 缓存命中时优先使用缓存价格
func TestHandleStatusPrefersCachedPrice(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cache := market.NewCache()
	cache.SetPrice("ETHUSDT", 2100)

	deps := &Deps{
		Config: config.CreateMinimalConfig(),
		State:  safety.NewTradingState(),
		Cache:  cache,
		DB:     &MockStatusDB{},
	}

	r := gin.New()
	SetupRoutes(r, deps)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	r.ServeHTTP(w, req)

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}

	prices := resp["prices"].(map[string]interface{})
	if prices["ETHUSDT"] != float64(2100) {
		t.Errorf("ETHUSDT 价格 = %v, 期望缓存价格 2100", prices["ETHUSDT"])
	}
}
