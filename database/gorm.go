package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormDatabase GORM 数据库实现
type GormDatabase struct {
	db *gorm.DB
}

// DBConfig 数据库配置
type DBConfig struct {
	Type            string        // sqlite, postgres, mysql
	DSN             string        // 数据源名称
	MaxOpenConns    int           // 最大打开连接数
	MaxIdleConns    int           // 最大空闲连接数
	ConnMaxLifetime time.Duration // 连接最大生命周期
	LogLevel        string        // 日志级别: silent, error, warn, info
}

// NewGormDatabase 创建 GORM 数据库实例
func NewGormDatabase(config *DBConfig) (*GormDatabase, error) {
	var dialector gorm.Dialector

	switch config.Type {
	case "sqlite":
		dialector = sqlite.Open(config.DSN)
	case "postgres", "postgresql":
		dialector = postgres.Open(config.DSN)
	case "mysql":
		dialector = mysql.Open(config.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}

	// 日志级别
	logLevel := logger.Silent
	switch config.LogLevel {
	case "error":
		logLevel = logger.Error
	case "warn":
		logLevel = logger.Warn
	case "info":
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// 配置连接池
	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	// 自动迁移
	if err := db.AutoMigrate(
		&TradeLog{},
		&EventRecord{},
		&StatusHeartbeat{},
		&MarketSnapshot{},
		&SystemMetric{},
	); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	return &GormDatabase{db: db}, nil
}

// SaveTradeLog 保存交易审计日志
func (g *GormDatabase) SaveTradeLog(ctx context.Context, entry *TradeLog) error {
	return g.db.WithContext(ctx).Create(entry).Error
}

// BatchSaveTradeLogs 批量保存交易审计日志
func (g *GormDatabase) BatchSaveTradeLogs(ctx context.Context, entries []*TradeLog) error {
	if len(entries) == 0 {
		return nil
	}
	return g.db.WithContext(ctx).CreateInBatches(entries, 100).Error
}

// GetTradeLogs 获取交易审计日志
func (g *GormDatabase) GetTradeLogs(ctx context.Context, filter *TradeLogFilter) ([]*TradeLog, error) {
	query := g.db.WithContext(ctx).Model(&TradeLog{})

	if filter.Symbol != "" {
		query = query.Where("symbol = ?", filter.Symbol)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.StartTime != nil {
		query = query.Where("created_at >= ?", filter.StartTime)
	}
	if filter.EndTime != nil {
		query = query.Where("created_at <= ?", filter.EndTime)
	}

	query = query.Order("created_at DESC")

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var entries []*TradeLog
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}

	return entries, nil
}

// CleanupOldTradeLogs 清理旧的交易审计日志
func (g *GormDatabase) CleanupOldTradeLogs(ctx context.Context, keepDays int) error {
	cutoffDate := time.Now().AddDate(0, 0, -keepDays)
	return g.db.WithContext(ctx).
		Where("created_at < ?", cutoffDate).
		Delete(&TradeLog{}).Error
}

// SaveEvent 保存事件记录
func (g *GormDatabase) SaveEvent(ctx context.Context, event *EventRecord) error {
	return g.db.WithContext(ctx).Create(event).Error
}

// GetEvents 获取事件记录
func (g *GormDatabase) GetEvents(ctx context.Context, filter *EventFilter) ([]*EventRecord, error) {
	query := g.db.WithContext(ctx).Model(&EventRecord{})

	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.Symbol != "" {
		query = query.Where("symbol = ?", filter.Symbol)
	}
	if filter.StartTime != nil {
		query = query.Where("created_at >= ?", filter.StartTime)
	}
	if filter.EndTime != nil {
		query = query.Where("created_at <= ?", filter.EndTime)
	}

	query = query.Order("created_at DESC")

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var events []*EventRecord
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}

	return events, nil
}

// CleanupOldEvents 清理旧事件
func (g *GormDatabase) CleanupOldEvents(ctx context.Context, keepDays int) error {
	cutoffDate := time.Now().AddDate(0, 0, -keepDays)
	return g.db.WithContext(ctx).
		Where("created_at < ?", cutoffDate).
		Delete(&EventRecord{}).Error
}

// SaveHeartbeat 保存状态心跳
func (g *GormDatabase) SaveHeartbeat(ctx context.Context, hb *StatusHeartbeat) error {
	return g.db.WithContext(ctx).Create(hb).Error
}

// GetLatestHeartbeat 获取最新状态心跳
func (g *GormDatabase) GetLatestHeartbeat(ctx context.Context) (*StatusHeartbeat, error) {
	var hb StatusHeartbeat
	if err := g.db.WithContext(ctx).Order("created_at DESC").First(&hb).Error; err != nil {
		return nil, err
	}
	return &hb, nil
}

// SaveMarketSnapshot 保存行情快照
func (g *GormDatabase) SaveMarketSnapshot(ctx context.Context, snap *MarketSnapshot) error {
	return g.db.WithContext(ctx).Create(snap).Error
}

// GetLatestMarketSnapshot 获取指定币种最新行情快照
func (g *GormDatabase) GetLatestMarketSnapshot(ctx context.Context, symbol string) (*MarketSnapshot, error) {
	var snap MarketSnapshot
	if err := g.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("created_at DESC").
		First(&snap).Error; err != nil {
		return nil, err
	}
	return &snap, nil
}

// SaveSystemMetric 保存系统资源采样
func (g *GormDatabase) SaveSystemMetric(ctx context.Context, metric *SystemMetric) error {
	return g.db.WithContext(ctx).Create(metric).Error
}

// Ping 健康检查
func (g *GormDatabase) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭连接
func (g *GormDatabase) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
