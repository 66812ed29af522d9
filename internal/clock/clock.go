// Package clock 定义主时钟接口，并提供一个不依赖视频解码的墙钟实现。
package clock

import (
	"fmt"
	"sync"
	"time"
)

// Clock 是视频播放器暴露的主时钟。位置与总时长均以秒为单位。
type Clock interface {
	Position() float64
	IsPlaying() bool
	Play()
	Pause()
	Stop()
	Seek(seconds float64)
	TotalDuration() float64
}

// Muter 由可静音的时钟实现（快进/快退和拖动进度条时静音视频原声）。
type Muter interface {
	SetMuted(muted bool)
}

// Wall 用单调时钟推进播放位置。
type Wall struct {
	mu        sync.Mutex
	total     float64
	base      float64
	startedAt time.Time
	playing   bool
	muted     bool
	now       func() time.Time
}

// NewWall 创建总时长为 total 秒的墙钟，初始暂停于 0。
func NewWall(total float64) *Wall {
	return &Wall{total: total, now: time.Now}
}

// SetNow 替换时间源，仅用于测试。
func (w *Wall) SetNow(now func() time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.playing {
		w.base = w.positionLocked()
		w.startedAt = now()
	}
	w.now = now
}

// Position 返回当前位置，不超过总时长。
func (w *Wall) Position() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.positionLocked()
}

func (w *Wall) positionLocked() float64 {
	pos := w.base
	if w.playing {
		pos += w.now().Sub(w.startedAt).Seconds()
	}
	if w.total > 0 && pos > w.total {
		pos = w.total
	}
	return pos
}

func (w *Wall) IsPlaying() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.playing
}

func (w *Wall) Play() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.playing {
		return
	}
	w.startedAt = w.now()
	w.playing = true
}

func (w *Wall) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.playing {
		return
	}
	w.base = w.positionLocked()
	w.playing = false
}

// Stop 暂停并回到 0。
func (w *Wall) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.playing = false
	w.base = 0
}

// Seek 跳转到 seconds，结果钳位到 [0, total]。
func (w *Wall) Seek(seconds float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if seconds < 0 {
		seconds = 0
	}
	if w.total > 0 && seconds > w.total {
		seconds = w.total
	}
	w.base = seconds
	w.startedAt = w.now()
}

func (w *Wall) TotalDuration() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.total
}

// SetTotalDuration 在视频时长探测完成后更新总时长。
func (w *Wall) SetTotalDuration(total float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.total = total
}

func (w *Wall) SetMuted(muted bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.muted = muted
}

// Muted 报告视频原声是否被静音。
func (w *Wall) Muted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.muted
}

// Format 把秒数格式化为 HH:MM:SS，负数按 0 处理。
func Format(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total%3600/60, total%60)
}
