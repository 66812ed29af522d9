package probe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/iabetor/voxlay/internal/database"
	"github.com/iabetor/voxlay/internal/logger"
)

// Cache 把探测结果持久化到 probe_cache 表。
// 以路径、文件大小和修改时间为键，文件变化后自动失效；失败结果不缓存。
type Cache struct {
	db    *database.DB
	inner Prober
}

// NewCache 创建带缓存的探测器。
func NewCache(db *database.DB, inner Prober) *Cache {
	return &Cache{db: db, inner: inner}
}

func (c *Cache) Probe(ctx context.Context, path string) (float64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("读取文件信息失败: %w", err)
	}
	size := info.Size()
	mtime := info.ModTime().UnixNano()

	var d float64
	err = c.db.QueryRowContext(ctx,
		`SELECT duration FROM probe_cache WHERE path = ? AND size = ? AND mod_time = ?`,
		path, size, mtime,
	).Scan(&d)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		logger.Warnf("[probe] 查询缓存失败: %v", err)
	}

	d, err = c.inner.Probe(ctx, path)
	if err != nil {
		return 0, err
	}

	if _, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO probe_cache (path, size, mod_time, duration, probed_at) VALUES (?, ?, ?, ?, ?)`,
		path, size, mtime, d, time.Now().Unix(),
	); err != nil {
		logger.Warnf("[probe] 写入缓存失败: %v", err)
	}
	return d, nil
}

// Forget 删除某个路径的缓存。
func (c *Cache) Forget(path string) error {
	if _, err := c.db.Exec(`DELETE FROM probe_cache WHERE path = ?`, path); err != nil {
		return fmt.Errorf("删除缓存失败: %w", err)
	}
	return nil
}

// NewDefault 组装默认探测链：缓存 → go-mp3 → ffprobe。db 为 nil 时跳过缓存。
func NewDefault(db *database.DB, ffprobeBinary string) Prober {
	chain := Chain{MP3{}, NewFFprobe(ffprobeBinary)}
	if db == nil {
		return chain
	}
	return NewCache(db, chain)
}
