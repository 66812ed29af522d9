// Package probe 探测音视频文件时长。
//
// 默认探测链依次尝试 SQLite 缓存、go-mp3 原生解码（仅 .mp3）和 ffprobe，
// 全部失败时返回 ErrUnknownDuration，调用方显示占位符而不是中止操作。
package probe

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrUnknownDuration 无法确定时长。
	ErrUnknownDuration = errors.New("无法确定时长")
	// ErrUnsupported 当前探测器不处理该文件，探测链会继续尝试下一个。
	ErrUnsupported = errors.New("不支持的文件类型")
)

// Prober 返回文件时长（秒）。
type Prober interface {
	Probe(ctx context.Context, path string) (float64, error)
}

// Chain 按顺序尝试多个探测器，返回第一个成功的结果。
type Chain []Prober

func (c Chain) Probe(ctx context.Context, path string) (float64, error) {
	var lastErr error
	for _, p := range c {
		d, err := p.Probe(ctx, path)
		if err == nil {
			return d, nil
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if !errors.Is(err, ErrUnsupported) {
			lastErr = err
		}
	}
	if lastErr == nil {
		return 0, fmt.Errorf("%s: %w", path, ErrUnknownDuration)
	}
	return 0, fmt.Errorf("%s: %v: %w", path, lastErr, ErrUnknownDuration)
}

// Duration 是 Probe 的便捷形式：失败时返回 ok=false。
func Duration(ctx context.Context, p Prober, path string) (float64, bool) {
	if p == nil || path == "" {
		return 0, false
	}
	d, err := p.Probe(ctx, path)
	if err != nil {
		return 0, false
	}
	return d, true
}

// Format 把时长格式化为 m:ss.mmm，未知时返回 "????"。
func Format(seconds float64, ok bool) string {
	if !ok || seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "????"
	}
	ms := int64(math.Round(seconds * 1000))
	return fmt.Sprintf("%d:%02d.%03d", ms/60000, (ms/1000)%60, ms%1000)
}

func validDuration(d float64) bool {
	return d >= 0 && !math.IsNaN(d) && !math.IsInf(d, 0)
}
