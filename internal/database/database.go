package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iabetor/voxlay/internal/logger"
	_ "modernc.org/sqlite"
)

// DB 是统一的 SQLite 数据库连接。
// 时长缓存与导出记录共享同一个数据库文件。
type DB struct {
	*sql.DB
	path string
}

// Open 打开或创建数据库，并执行迁移。
// dbPath 为空时使用 ~/.voxlay/voxlay.db。
func Open(dbPath string) (*DB, error) {
	if dbPath == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			dbPath = filepath.Join(home, ".voxlay", "voxlay.db")
		} else {
			dbPath = "./voxlay.db"
		}
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("创建数据库目录失败: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	// WAL 模式：探测与导出可能同时写入
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("设置 WAL 模式失败: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=3000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("设置 busy_timeout 失败: %w", err)
	}

	d := &DB{DB: db, path: dbPath}
	if err := d.Migrate(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Infof("[database] 数据库已打开: %s", dbPath)
	return d, nil
}

// Path 返回数据库文件路径。
func (db *DB) Path() string {
	return db.path
}

// Migrate 运行数据库迁移。
func (db *DB) Migrate() error {
	migrations := []string{
		// 媒体时长缓存，以路径 + 大小 + 修改时间判定是否失效
		`CREATE TABLE IF NOT EXISTS probe_cache (
			path TEXT PRIMARY KEY,
			size INTEGER NOT NULL,
			mod_time INTEGER NOT NULL,
			duration REAL NOT NULL,
			probed_at INTEGER NOT NULL DEFAULT 0
		)`,
		// 导出记录，时间为 Unix 毫秒
		`CREATE TABLE IF NOT EXISTS exports (
			id TEXT PRIMARY KEY,
			video_path TEXT NOT NULL,
			output_path TEXT NOT NULL,
			track_count INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			error TEXT DEFAULT '',
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL DEFAULT 0
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("数据库迁移失败: %w", err)
		}
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_exports_started_at ON exports(started_at)`); err != nil {
		logger.Warnf("[database] 创建索引失败: %v", err)
	}

	logger.Debugf("[database] 数据库迁移完成")
	return nil
}

// Close 关闭数据库连接。
func (db *DB) Close() error {
	if db.DB != nil {
		return db.DB.Close()
	}
	return nil
}
