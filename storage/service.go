package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tradepilot/config"
	"tradepilot/database"
	"tradepilot/logger"
)

// StorageService 交易审计日志异步存储服务
//
// 写入完全异步：队列满时丢弃并告警，数据库写入失败时降级到
// JSONL 文件。审计日志的丢失不影响交易主流程。
type StorageService struct {
	db           database.Database
	cfg          *config.Config
	entryCh      chan *database.TradeLog
	buffer       []*database.TradeLog
	mu           sync.Mutex
	ctx          context.Context
	cancel       context.CancelFunc
	fallbackPath string
	stopped      bool
	stopMu       sync.Mutex
}

// NewStorageService 创建存储服务（db 为 nil 时所有写入为空操作）
func NewStorageService(cfg *config.Config, db database.Database, ctx context.Context) *StorageService {
	if !cfg.Storage.Enabled || db == nil {
		return &StorageService{}
	}

	ctx, cancel := context.WithCancel(ctx)

	return &StorageService{
		db:           db,
		cfg:          cfg,
		entryCh:      make(chan *database.TradeLog, cfg.Storage.BufferSize),
		buffer:       make([]*database.TradeLog, 0, cfg.Storage.BatchSize),
		ctx:          ctx,
		cancel:       cancel,
		fallbackPath: cfg.Storage.FallbackPath,
	}
}

// Start 启动存储服务
func (ss *StorageService) Start() {
	if ss.db == nil {
		return
	}

	go ss.processEntries()
	logger.Info("✅ 存储服务已启动 (缓冲区: %d, 批量: %d)", ss.cfg.Storage.BufferSize, ss.cfg.Storage.BatchSize)
}

// Stop 停止存储服务（刷新缓冲区后返回）
func (ss *StorageService) Stop() {
	ss.stopMu.Lock()
	if ss.stopped {
		ss.stopMu.Unlock()
		return
	}
	ss.stopped = true
	ss.stopMu.Unlock()

	if ss.cancel != nil {
		ss.cancel()
	}

	// 等待 processEntries 协程处理完队列中的条目
	time.Sleep(100 * time.Millisecond)

	ss.flush()
}

// Save 保存审计记录（完全异步，不阻塞）
func (ss *StorageService) Save(entry *database.TradeLog) {
	if ss.db == nil || entry == nil {
		return
	}

	ss.stopMu.Lock()
	stopped := ss.stopped
	ss.stopMu.Unlock()

	if stopped {
		return
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	select {
	case ss.entryCh <- entry:
		// 成功加入队列
	default:
		// Channel 满了，记录警告但不阻塞
		logger.Warn("⚠️ 存储队列已满，丢弃审计记录: %s %s", entry.Action, entry.Status)
	}
}

// processEntries 处理写入（在独立 goroutine 中运行）
func (ss *StorageService) processEntries() {
	flushInterval := time.Duration(ss.cfg.Storage.FlushInterval) * time.Second
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ss.ctx.Done():
			ss.flush()
			return

		case entry := <-ss.entryCh:
			ss.mu.Lock()
			ss.buffer = append(ss.buffer, entry)
			bufferSize := len(ss.buffer)
			ss.mu.Unlock()

			if bufferSize >= ss.cfg.Storage.BatchSize {
				ss.flush()
			}

		case <-ticker.C:
			ss.flush()
		}
	}
}

// flush 刷新缓冲区到数据库
func (ss *StorageService) flush() {
	ss.mu.Lock()
	if len(ss.buffer) == 0 {
		ss.mu.Unlock()
		return
	}

	entries := make([]*database.TradeLog, len(ss.buffer))
	copy(entries, ss.buffer)
	ss.buffer = ss.buffer[:0]
	ss.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := ss.db.BatchSaveTradeLogs(ctx, entries); err != nil {
		logger.Error("❌ 审计记录写入失败: %v", err)
		// 保底方案：写入 JSONL 文件
		ss.fallbackToFile(entries)
	}
}

// fallbackToFile 保底方案：逐行 JSON 追加写入
func (ss *StorageService) fallbackToFile(entries []*database.TradeLog) {
	dataDir := filepath.Dir(ss.fallbackPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		logger.Error("❌ 创建降级目录失败: %v", err)
		return
	}

	file, err := os.OpenFile(ss.fallbackPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logger.Error("❌ 打开降级文件失败: %v", err)
		return
	}
	defer file.Close()

	for _, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		line := fmt.Sprintf("%s %s\n", time.Now().Format(time.RFC3339), string(data))
		file.WriteString(line)
	}
}
