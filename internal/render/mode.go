// Package render 管理叠加音轨的外部播放进程（每个叠加音轨至多一个存活进程）。
package render

import (
	"fmt"
	"time"
)

// ModeKind 区分两种启动方式。
type ModeKind int

const (
	// ScheduledStart 延迟一段时间后从头播放。
	ScheduledStart ModeKind = iota
	// InlineSeek 立即启动并跳过音频开头的若干秒。
	InlineSeek
)

func (k ModeKind) String() string {
	if k == InlineSeek {
		return "InlineSeek"
	}
	return "ScheduledStart"
}

// Mode 描述一次播放请求的时间关系，Seconds 恒 >= 0。
type Mode struct {
	Kind    ModeKind
	Seconds float64
}

// Scheduled 返回延迟 delay 秒后开始播放的模式。
func Scheduled(delay float64) Mode {
	if delay < 0 {
		delay = 0
	}
	return Mode{Kind: ScheduledStart, Seconds: delay}
}

// Seek 返回从音频第 s 秒开始立即播放的模式。
func Seek(s float64) Mode {
	if s < 0 {
		s = 0
	}
	return Mode{Kind: InlineSeek, Seconds: s}
}

// ForDelta 根据 offset-position 计算播放模式：
// 非负时延迟启动，负数时立即启动并 seek 到 -delta。
func ForDelta(delta float64) Mode {
	if delta >= 0 {
		return Scheduled(delta)
	}
	return Seek(-delta)
}

// Delay 返回启动前需要等待的时长，InlineSeek 恒为 0。
func (m Mode) Delay() time.Duration {
	if m.Kind != ScheduledStart {
		return 0
	}
	return time.Duration(m.Seconds * float64(time.Second))
}

func (m Mode) String() string {
	return fmt.Sprintf("%s(%.3f)", m.Kind, m.Seconds)
}
