package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"tradepilot/utils"
)

// LogStorage 应用日志存储（原生 SQLite，与业务数据库分离）
type LogStorage struct {
	db     *sql.DB
	mu     sync.RWMutex
	logCh  chan *logEntry
	closed bool
}

// logEntry 日志条目
type logEntry struct {
	level     string
	message   string
	timestamp time.Time
}

// LogQueryParams 日志查询参数
type LogQueryParams struct {
	StartTime time.Time
	EndTime   time.Time
	Level     string
	Keyword   string
	Limit     int
	Offset    int
}

// LogRecord 日志记录
type LogRecord struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// NewLogStorage 创建日志存储
func NewLogStorage(path string) (*LogStorage, error) {
	// 使用 WAL 模式提高并发性能
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("打开日志数据库失败: %w", err)
	}

	// SQLite 并发限制
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ls := &LogStorage{
		db:    db,
		logCh: make(chan *logEntry, 500),
	}

	if err := ls.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("创建日志表失败: %w", err)
	}

	// 启动异步写入协程
	go ls.processLogs()

	return ls, nil
}

// createTable 创建日志表
func (ls *LogStorage) createTable() error {
	sql := `
	CREATE TABLE IF NOT EXISTS logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_logs_level ON logs(level);
	`

	_, err := ls.db.Exec(sql)
	return err
}

// WriteLog 写入日志（异步，不阻塞）
func (ls *LogStorage) WriteLog(level, message string) {
	if ls.closed {
		return
	}

	entry := &logEntry{
		level:     level,
		message:   message,
		timestamp: utils.NowUTC(),
	}

	select {
	case ls.logCh <- entry:
		// 成功加入队列
	default:
		// Channel 满了，丢弃消息（避免阻塞）
	}
}

// processLogs 处理日志写入（在独立 goroutine 中运行）
func (ls *LogStorage) processLogs() {
	buffer := make([]*logEntry, 0, 100)
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	flush := func() {
		if len(buffer) == 0 {
			return
		}

		ls.mu.Lock()
		err := ls.batchInsert(buffer)
		ls.mu.Unlock()

		if err != nil {
			// 写入失败，静默处理（不影响主程序）
		}

		buffer = buffer[:0]
	}

	for {
		select {
		case entry, ok := <-ls.logCh:
			if !ok {
				// Channel 已关闭，刷新缓冲区后退出
				flush()
				return
			}
			buffer = append(buffer, entry)
			if len(buffer) >= 100 {
				flush()
			}

		case <-ticker.C:
			flush()
		}
	}
}

// batchInsert 批量插入日志
func (ls *LogStorage) batchInsert(entries []*logEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := ls.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO logs (timestamp, level, message)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, entry := range entries {
		if _, err := stmt.Exec(entry.timestamp, entry.level, entry.message); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetLogs 查询日志
func (ls *LogStorage) GetLogs(params LogQueryParams) ([]*LogRecord, int, error) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	where := []string{"1=1"}
	args := []interface{}{}

	if !params.StartTime.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, params.StartTime)
	}

	if !params.EndTime.IsZero() {
		where = append(where, "timestamp <= ?")
		args = append(args, params.EndTime)
	}

	if params.Level != "" {
		where = append(where, "level = ?")
		args = append(args, params.Level)
	}

	if params.Keyword != "" {
		where = append(where, "message LIKE ?")
		args = append(args, "%"+params.Keyword+"%")
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM logs WHERE %s", whereClause)
	err := ls.db.QueryRow(countSQL, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("查询日志总数失败: %w", err)
	}

	if params.Limit <= 0 {
		params.Limit = 100
	}
	if params.Limit > 1000 {
		params.Limit = 1000
	}

	querySQL := fmt.Sprintf(`
		SELECT id, timestamp, level, message
		FROM logs
		WHERE %s
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`, whereClause)

	args = append(args, params.Limit, params.Offset)

	rows, err := ls.db.Query(querySQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("查询日志失败: %w", err)
	}
	defer rows.Close()

	var logs []*LogRecord
	for rows.Next() {
		var log LogRecord
		err := rows.Scan(&log.ID, &log.Timestamp, &log.Level, &log.Message)
		if err != nil {
			continue
		}
		logs = append(logs, &log)
	}

	return logs, total, nil
}

// CleanOldLogs 清理超过指定天数的日志
func (ls *LogStorage) CleanOldLogs(days int) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	cutoffTime := time.Now().AddDate(0, 0, -days)
	_, err := ls.db.Exec(`
		DELETE FROM logs
		WHERE timestamp < ?
	`, cutoffTime)
	return err
}

// Vacuum 优化 SQLite 数据库（回收空间）
func (ls *LogStorage) Vacuum() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	_, err := ls.db.Exec("VACUUM")
	return err
}

// Close 关闭日志存储
func (ls *LogStorage) Close() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.closed {
		return nil
	}

	ls.closed = true
	close(ls.logCh)

	// 等待 processLogs 协程完成
	time.Sleep(100 * time.Millisecond)

	return ls.db.Close()
}
