package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradepilot/database"
	"tradepilot/monitor"
	"tradepilot/storage"
)

// SetupRoutes 注册路由（全部只读，不提供任何修改交易状态的接口）
func SetupRoutes(r *gin.Engine, deps *Deps) {
	r.GET("/health", handleHealth(deps))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/status", handleStatus(deps))
		api.GET("/trades", handleTrades(deps))
		api.GET("/events", handleEvents(deps))
		api.GET("/logs", handleLogs(deps))
		api.GET("/runtime", handleRuntime())
	}
}

// handleHealth 健康检查
func handleHealth(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		dbStatus := "disabled"
		if deps.DB != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
			defer cancel()
			if err := deps.DB.Ping(ctx); err != nil {
				dbStatus = "down"
			} else {
				dbStatus = "up"
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"database": dbStatus,
			"time":     time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// handleStatus 交易状态概览
func handleStatus(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := gin.H{
			"trading_enabled": deps.Config.Trading.Enabled,
			"allowed_symbols": deps.Config.Trading.AllowedSymbols,
			"limits": gin.H{
				"max_position_size_usd": deps.Config.Trading.MaxPositionSizeUSD,
				"max_daily_trades":      deps.Config.Trading.MaxDailyTrades,
				"max_daily_loss_usd":    deps.Config.Trading.MaxDailyLossUSD,
				"min_confidence":        deps.Config.Trading.MinConfidence,
				"cooldown_ms":           deps.Config.Trading.CooldownMs,
			},
		}

		if deps.State != nil {
			resp["state"] = deps.State.Snapshot()
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if deps.Cache != nil {
			prices := gin.H{}
			for _, base := range deps.Config.Trading.AllowedSymbols {
				symbol := base + deps.Config.Trading.QuoteAsset
				if price, ok := deps.Cache.GetPrice(symbol); ok {
					prices[symbol] = price
					continue
				}
				// 缓存未命中（降级模式或刚启动）回退到最近落库的行情快照
				if deps.DB != nil {
					if snap, err := deps.DB.GetLatestMarketSnapshot(ctx, symbol); err == nil {
						prices[symbol] = snap.Price
					}
				}
			}
			resp["prices"] = prices

			if balance, ok := deps.Cache.GetAccountBalance(); ok {
				resp["balance_usd"] = balance
			}
		}

		if deps.DB != nil {
			if hb, err := deps.DB.GetLatestHeartbeat(ctx); err == nil {
				resp["last_heartbeat"] = hb
			}
		}

		c.JSON(http.StatusOK, resp)
	}
}

// handleTrades 查询交易审计记录
func handleTrades(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.DB == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "数据库未启用"})
			return
		}

		filter := &database.TradeLogFilter{
			Symbol: c.Query("symbol"),
			Action: c.Query("action"),
			Status: c.Query("status"),
			Limit:  parseIntQuery(c, "limit", 100),
			Offset: parseIntQuery(c, "offset", 0),
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		logs, err := deps.DB.GetTradeLogs(ctx, filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"trades": logs, "count": len(logs)})
	}
}

// handleEvents 查询事件记录
func handleEvents(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.DB == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "数据库未启用"})
			return
		}

		filter := &database.EventFilter{
			Type:     c.Query("type"),
			Severity: c.Query("severity"),
			Symbol:   c.Query("symbol"),
			Limit:    parseIntQuery(c, "limit", 100),
			Offset:   parseIntQuery(c, "offset", 0),
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		events, err := deps.DB.GetEvents(ctx, filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
	}
}

// handleLogs 查询应用日志
func handleLogs(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.LogStore == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "日志存储未启用"})
			return
		}

		params := storage.LogQueryParams{
			Level:   c.Query("level"),
			Keyword: c.Query("keyword"),
			Limit:   parseIntQuery(c, "limit", 100),
			Offset:  parseIntQuery(c, "offset", 0),
		}

		logs, total, err := deps.LogStore.GetLogs(params)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"logs": logs, "total": total})
	}
}

// handleRuntime Go 运行时统计（调试用）
func handleRuntime() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, monitor.GetGoRuntimeStats())
	}
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	v := c.Query(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
