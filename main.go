package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"tradepilot/config"
	"tradepilot/database"
	"tradepilot/event"
	"tradepilot/exchange"
	"tradepilot/executor"
	"tradepilot/lock"
	"tradepilot/logger"
	"tradepilot/market"
	"tradepilot/metrics"
	"tradepilot/monitor"
	"tradepilot/notify"
	"tradepilot/processor"
	"tradepilot/safety"
	"tradepilot/scheduler"
	"tradepilot/storage"
	"tradepilot/utils"
	"tradepilot/web"
)

// Version 版本号
var Version = "1.2.0"

// 全局日志存储实例（用于 Web API 日志查询和清理任务）
var globalLogStorage *storage.LogStorage

func main() {
	// 检查版本参数
	if len(os.Args) > 1 && (os.Args[1] == "-version" || os.Args[1] == "--version") {
		fmt.Printf("TradePilot Decision Executor\n")
		fmt.Printf("Version: %s\n", Version)
		os.Exit(0)
	}

	// 解析调试参数（-debug / --debug）
	debugMode := false
	filteredArgs := []string{os.Args[0]}
	for _, arg := range os.Args[1:] {
		switch arg {
		case "-debug", "--debug":
			debugMode = true
		default:
			filteredArgs = append(filteredArgs, arg)
		}
	}
	os.Args = filteredArgs

	// 1. 最早初始化日志存储（在配置加载之前，使用默认路径）
	logStoragePath := "./data/tradepilot_logs.db"
	if err := os.MkdirAll("./data", 0755); err != nil {
		log.Printf("[WARN] 创建数据目录失败: %v", err)
	}

	logStorage, err := storage.NewLogStorage(logStoragePath)
	if err != nil {
		log.Printf("[WARN] 初始化日志存储失败: %v，将继续运行但不保存日志到数据库", err)
		logStorage = nil
	} else {
		globalLogStorage = logStorage
		logger.InitLogStorage(func(level, message string) {
			if logStorage != nil {
				logStorage.WriteLog(level, message)
			}
		})
	}

	logger.Info("🚀 TradePilot 决策执行系统启动...")
	logger.Info("📦 版本号: %s", Version)

	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	// 配置文件缺失时降级到最小化配置（交易默认关闭）
	var cfg *config.Config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		logger.Info("ℹ️ 配置文件不存在，使用最小化配置（交易默认关闭）")
		cfg = config.CreateMinimalConfig()
		cfg.ApplyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			logger.Fatal("❌ 最小化配置验证失败: %v", err)
		}

		if err := config.SaveConfig(cfg, configPath); err != nil {
			logger.Warn("⚠️ 保存最小化配置失败: %v，将继续运行", err)
		} else {
			logger.Info("✅ 已创建最小化配置文件: %s", configPath)
		}
	} else {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			logger.Fatal("❌ 加载配置失败: %v", err)
		}
	}

	if err := utils.SetLocation(cfg.System.Timezone); err != nil {
		logger.Warn("⚠️ 加载时区 %s 失败: %v，将使用 UTC", cfg.System.Timezone, err)
		utils.SetLocation("UTC")
	}
	logger.SetLocation(utils.GlobalLocation)

	if debugMode {
		cfg.System.LogLevel = "debug"
	}
	logLevel := logger.ParseLogLevel(cfg.System.LogLevel)
	logger.SetLevel(logLevel)
	logger.Info("日志级别设置为: %s", logLevel.String())

	// 定期清理旧日志
	if globalLogStorage != nil && cfg.System.LogRetentionDays > 0 {
		retentionDays := cfg.System.LogRetentionDays
		go func() {
			ticker := time.NewTicker(24 * time.Hour)
			defer ticker.Stop()
			for range ticker.C {
				logger.Info("🧹 开始定期清理日志...")
				if err := globalLogStorage.CleanOldLogs(retentionDays); err != nil {
					logger.Warn("⚠️ 清理日志失败: %v", err)
					continue
				}
				if err := globalLogStorage.Vacuum(); err != nil {
					logger.Warn("⚠️ 日志数据库优化失败: %v", err)
				}
			}
		}()
	}

	logger.Info("✅ 配置加载成功: 交易启用=%v, 允许币种=%v, 交易所=%s",
		cfg.Trading.Enabled, cfg.Trading.AllowedSymbols, cfg.App.CurrentExchange)
	if !cfg.HasExchangeCredentials() {
		logger.Warn("⚠️ 交易所凭据未配置，系统将以只验证不执行的模式运行")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 事件总线 & 通知
	logger.Info("🔧 正在初始化事件总线...")
	eventBus := event.NewEventBus(1000)
	notifier := notify.NewNotificationService(cfg)

	// 数据库（失败降级为 nil，不退出）
	var db database.Database
	dbConfig := &database.Config{
		Type:            cfg.Database.Type,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
		LogLevel:        cfg.Database.LogLevel,
	}
	db, err = database.NewDatabase(dbConfig)
	if err != nil {
		logger.Warn("⚠️ 初始化数据库失败: %v (将继续运行，但不保存数据)", err)
		db = nil
	} else {
		defer db.Close()
		logger.Info("✅ 数据库已初始化 (类型: %s)", cfg.Database.Type)
	}

	// 审计日志异步存储
	logger.Info("🔧 正在初始化存储服务...")
	storageService := storage.NewStorageService(cfg, db, ctx)
	storageService.Start()

	// 事件中心（落库 + 通知）
	var eventCenter *event.EventCenter
	if db != nil {
		eventCenter = event.NewEventCenter(db, eventBus, notifier, &event.EventCenterConfig{
			Enabled:         true,
			CleanupInterval: 24,
			RetentionDays:   cfg.System.LogRetentionDays,
		})
		if err := eventCenter.Start(); err != nil {
			logger.Warn("⚠️ 启动事件中心失败: %v", err)
		}
	} else {
		logger.Warn("⚠️ 数据库未初始化，事件中心将不可用")
	}

	// 分布式锁（多实例模式）
	var distributedLock lock.DistributedLock
	if cfg.DistributedLock.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.DistributedLock.Redis.Addr,
			Password: cfg.DistributedLock.Redis.Password,
			DB:       cfg.DistributedLock.Redis.DB,
			PoolSize: cfg.DistributedLock.Redis.PoolSize,
		})
		redisLock := lock.NewRedisLock(redisClient, cfg.DistributedLock.Prefix)

		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisLock.Ping(pingCtx); err != nil {
			logger.Warn("⚠️ Redis 分布式锁连接失败: %v，降级为单机模式", err)
			redisLock.Close()
			distributedLock = lock.NewNopLock()
		} else {
			distributedLock = redisLock
			logger.Info("✅ 分布式锁已启用 (实例: %s)", cfg.Instance.ID)
		}
		pingCancel()
	} else {
		distributedLock = lock.NewNopLock()
		logger.Info("ℹ️ 分布式锁未启用（单机模式）")
	}
	defer distributedLock.Close()

	// 交易所（失败降级为 nil：决策照常验证和记录，执行路径被安全检查拦截）
	var ex exchange.IExchange
	ex, err = exchange.NewExchange(cfg)
	if err != nil {
		logger.Warn("⚠️ 初始化交易所失败: %v (降级模式：不提供行情和执行)", err)
		ex = nil
	} else {
		logger.Info("✅ 交易所已初始化: %s", ex.GetName())
	}

	// 行情缓存 & 交易状态
	priceCache := market.NewCache()
	state := safety.NewTradingState()
	policy := safety.NewSafetyPolicy(cfg.HasExchangeCredentials)

	// 交易执行器 & 决策处理器
	exec := executor.NewTradeExecutor(ex, priceCache, distributedLock, cfg)
	proc := processor.NewDecisionProcessor(cfg, state, policy, exec, eventBus, storageService)
	go proc.Run(ctx)

	// 决策来源
	var decisionSource processor.DecisionSource
	switch cfg.DecisionSource.Type {
	case "redis":
		redisSource := processor.NewRedisDecisionSource(cfg)
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisSource.Ping(pingCtx); err != nil {
			logger.Warn("⚠️ 决策来源 Redis 连接失败: %v，订阅仍会持续重试", err)
		}
		pingCancel()

		if err := redisSource.Start(ctx, proc.Submit); err != nil {
			logger.Warn("⚠️ 启动决策订阅失败: %v", err)
		} else {
			decisionSource = redisSource
		}
	case "none":
		logger.Info("ℹ️ 决策来源未配置，仅接受进程内决策")
	default:
		logger.Warn("⚠️ 未知的决策来源类型: %s", cfg.DecisionSource.Type)
	}

	// 调度器：每日重置 + 行情刷新 + 状态心跳
	schedRunner := scheduler.NewScheduleRunner(cfg, state, ex, priceCache, db, eventBus)
	schedRunner.Start(ctx)

	// 系统资源看门狗
	watchdog := monitor.NewWatchdog(cfg, db, eventBus)
	watchdog.Start(ctx)

	// Prometheus 指标采集
	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector(state, cfg)
		go collector.Start(ctx)
	}

	// 配置文件热监听（目前只热生效日志级别，其他改动需重启）
	configWatcher, err := config.NewConfigWatcher(configPath)
	if err != nil {
		logger.Warn("⚠️ 初始化配置监听失败: %v", err)
	} else {
		configWatcher.Start(ctx)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case newCfg, ok := <-configWatcher.GetUpdateChan():
					if !ok {
						return
					}
					newLevel := logger.ParseLogLevel(newCfg.System.LogLevel)
					if newLevel != logger.GetLevel() {
						logger.SetLevel(newLevel)
						logger.Info("🔄 日志级别已热更新为: %s", newLevel.String())
					}
					logger.Info("ℹ️ 配置文件已变更，其余改动将在重启后生效")
				case err, ok := <-configWatcher.GetErrorChan():
					if !ok {
						return
					}
					logger.Warn("⚠️ 配置监听错误: %v", err)
				}
			}
		}()
	}

	// Web 服务（只读状态接口 + /metrics）
	webServer := web.NewWebServer(&web.Deps{
		Config:   cfg,
		State:    state,
		Cache:    priceCache,
		DB:       db,
		LogStore: globalLogStorage,
	})
	if webServer != nil {
		if err := webServer.Start(ctx); err != nil {
			logger.Error("❌ 启动Web服务器失败: %v", err)
		}
	} else {
		logger.Info("ℹ️ Web 服务未启用（配置中 web.enabled=false）")
	}

	eventBus.Publish(&event.Event{
		Type: event.EventTypeSystemStart,
		Data: map[string]interface{}{
			"version":         Version,
			"trading_enabled": cfg.Trading.Enabled,
		},
	})
	logger.Info("✅ 系统启动完成")

	// 等待退出信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("🛑 收到信号 %v，开始优雅关闭...", sig)

	eventBus.Publish(&event.Event{
		Type: event.EventTypeSystemStop,
		Data: map[string]interface{}{"signal": sig.String()},
	})

	// 关闭顺序：先停决策来源，再停处理器（等待进行中的交易执行完），
	// 然后是调度器和各后台服务，最后刷新存储和日志。
	if decisionSource != nil {
		if err := decisionSource.Stop(); err != nil {
			logger.Warn("⚠️ 停止决策来源失败: %v", err)
		}
	}

	cancel()
	proc.WaitDone()

	schedRunner.Stop()
	schedRunner.WriteHeartbeat(context.Background(), "stopping")

	watchdog.Stop()

	if configWatcher != nil {
		configWatcher.Stop()
	}

	if eventCenter != nil {
		eventCenter.Stop()
	}

	webServer.Stop()

	storageService.Stop()
	eventBus.Close()

	if globalLogStorage != nil {
		globalLogStorage.Close()
	}
	logger.Close()

	log.Printf("[INFO] 系统已退出")
}
