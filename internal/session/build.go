package session

import (
	"fmt"
	"os"

	"github.com/iabetor/voxlay/internal/clock"
	"github.com/iabetor/voxlay/internal/config"
	"github.com/iabetor/voxlay/internal/database"
	"github.com/iabetor/voxlay/internal/export"
	"github.com/iabetor/voxlay/internal/logger"
	"github.com/iabetor/voxlay/internal/playback"
	"github.com/iabetor/voxlay/internal/probe"
	"github.com/iabetor/voxlay/internal/render"
	"github.com/iabetor/voxlay/internal/tts"
)

// NewFromConfig 按配置组装会话：ffplay 渲染、配置的合成引擎、
// 带 SQLite 缓存的时长探测和记录历史的导出执行器。
// c 为 nil 时使用墙钟。db 可为 nil，此时不缓存探测结果也不记录导出历史。
func NewFromConfig(cfg *config.Config, db *database.DB, c clock.Clock) (*Session, error) {
	engine, err := tts.NewEngine(cfg.TTS)
	if err != nil {
		return nil, fmt.Errorf("创建合成引擎失败: %w", err)
	}

	dir := cfg.SynthesisDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建解说目录失败: %w", err)
	}

	var history *export.History
	if db != nil {
		history = export.NewHistory(db)
	}
	if c == nil {
		c = clock.NewWall(0)
	}

	logger.Infof("[session] 合成引擎: %s, 渲染器: %s", cfg.TTS.Engine, cfg.Tools.FFplay)

	return New(Deps{
		Clock:     c,
		Renderer:  render.NewManager(cfg.Tools.FFplay, nil),
		Synth:     tts.NewSynthesizer(engine, dir),
		Prober:    probe.NewDefault(db, cfg.Tools.FFprobe),
		Runner:    export.NewRunner(cfg.Tools.FFmpeg, history),
		FFmpeg:    cfg.Tools.FFmpeg,
		ExportExt: cfg.Export.Extension,
		Playback: playback.Options{
			SkipTick:      cfg.Playback.SkipInterval(),
			SkipStep:      cfg.Playback.SkipStep,
			JumpSeconds:   cfg.Playback.JumpSeconds,
			WatchInterval: cfg.Playback.WatchInterval(),
		},
	}), nil
}
