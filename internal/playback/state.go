package playback

import (
	"sync"

	"github.com/iabetor/voxlay/internal/logger"
)

// State 表示预览播放的当前状态。
type State int

const (
	// StateIdle 没有叠加音轨在播放（暂停、停止或尚未开始）。
	StateIdle State = iota
	// StatePlaying 主时钟在走，叠加音轨已按偏移调度。
	StatePlaying
	// StateSkipping 快进/快退中，叠加音轨静音。
	StateSkipping
)

var stateNames = [...]string{
	"Idle",
	"Playing",
	"Skipping",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// StateMachine 管理线程安全的状态转换。
type StateMachine struct {
	mu       sync.RWMutex
	current  State
	onChange func(from, to State)
}

// NewStateMachine 创建一个初始状态为 Idle 的状态机。
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
	}
}

// SetOnChange 注册状态变化时的回调函数。
func (sm *StateMachine) SetOnChange(fn func(from, to State)) {
	sm.mu.Lock()
	sm.onChange = fn
	sm.mu.Unlock()
}

// Current 返回当前状态。
func (sm *StateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// Transition 尝试切换状态。只有合法的转换才会生效：
//
//	Idle     → Playing   （开始播放）
//	Idle     → Skipping  （暂停时快进/快退）
//	Playing  → Skipping  （播放中快进/快退）
//	Skipping → Playing   （停止快进且时钟仍在播放）
//
// 任何状态都可以转换到 Idle（暂停、停止、播放到结尾）。
func (sm *StateMachine) Transition(to State) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !validTransition(sm.current, to) {
		logger.Debugf("[playback] 非法转换 %s → %s", sm.current, to)
		return false
	}

	from := sm.current
	sm.current = to
	if from != to {
		logger.Debugf("[playback] %s → %s", from, to)
		if sm.onChange != nil {
			sm.onChange(from, to)
		}
	}
	return true
}

// ForceIdle 无条件重置状态为 Idle。
func (sm *StateMachine) ForceIdle() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	from := sm.current
	sm.current = StateIdle
	if from != StateIdle {
		logger.Debugf("[playback] 强制重置 %s → Idle", from)
		if sm.onChange != nil {
			sm.onChange(from, StateIdle)
		}
	}
}

// validTransition 检查状态转换是否合法。
func validTransition(from, to State) bool {
	if to == StateIdle {
		return true
	}
	switch from {
	case StateIdle:
		return to == StatePlaying || to == StateSkipping
	case StatePlaying:
		return to == StateSkipping
	case StateSkipping:
		return to == StatePlaying
	}
	return false
}
