package export

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iabetor/voxlay/internal/database"
)

const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Record 是一条导出历史。
type Record struct {
	ID         string
	VideoPath  string
	OutputPath string
	TrackCount int
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time // 未结束时为零值
}

// History 把导出记录保存在 exports 表中。
type History struct {
	db *database.DB
}

// NewHistory 创建导出历史存储。
func NewHistory(db *database.DB) *History {
	return &History{db: db}
}

// Begin 记录一次导出开始。
func (h *History) Begin(id, videoPath, outputPath string, trackCount int) error {
	_, err := h.db.Exec(
		`INSERT INTO exports (id, video_path, output_path, track_count, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, videoPath, outputPath, trackCount, StatusRunning, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("写入导出记录失败: %w", err)
	}
	return nil
}

// Finish 记录导出结果，exportErr 为 nil 表示成功。
func (h *History) Finish(id string, exportErr error) error {
	status, msg := StatusDone, ""
	if exportErr != nil {
		status, msg = StatusFailed, exportErr.Error()
	}
	res, err := h.db.Exec(
		`UPDATE exports SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, msg, time.Now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("更新导出记录失败: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("导出记录 %s 不存在", id)
	}
	return nil
}

// Get 查询单条记录。
func (h *History) Get(id string) (*Record, error) {
	row := h.db.QueryRow(
		`SELECT id, video_path, output_path, track_count, status, error, started_at, finished_at FROM exports WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("导出记录 %s 不存在", id)
	}
	return r, err
}

// Recent 按开始时间倒序返回最近 limit 条记录。
func (h *History) Recent(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.Query(
		`SELECT id, video_path, output_path, track_count, status, error, started_at, finished_at
		 FROM exports ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询导出记录失败: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	var (
		r                 Record
		errMsg            sql.NullString
		started, finished int64
	)
	if err := s.Scan(&r.ID, &r.VideoPath, &r.OutputPath, &r.TrackCount, &r.Status, &errMsg, &started, &finished); err != nil {
		return nil, err
	}
	r.Error = errMsg.String
	r.StartedAt = time.UnixMilli(started)
	if finished > 0 {
		r.FinishedAt = time.UnixMilli(finished)
	}
	return &r, nil
}
