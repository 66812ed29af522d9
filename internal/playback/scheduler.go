// Package playback 让叠加音轨跟随主时钟播放、暂停、跳转和快进/快退。
package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iabetor/voxlay/internal/clock"
	"github.com/iabetor/voxlay/internal/logger"
	"github.com/iabetor/voxlay/internal/overlay"
	"github.com/iabetor/voxlay/internal/render"
)

// ErrSkipping 快进/快退期间不创建播放进程。
var ErrSkipping = errors.New("快进/快退中，无法试听")

// Spawner 创建和终止叠加音轨的播放进程，*render.Manager 实现了该接口。
type Spawner interface {
	Spawn(overlayID int, src string, volume float64, mode render.Mode) (*render.Handle, error)
	KillOverlay(overlayID int)
	KillAll()
}

// Source 提供当前的叠加音轨列表（通常是 *overlay.Registry）。
type Source interface {
	List() []overlay.Overlay
}

// Options 调度器参数。
type Options struct {
	SkipTick      time.Duration // 快进/快退每次推进的间隔
	SkipStep      float64       // 快进/快退每次推进的秒数
	JumpSeconds   float64       // 前后跳转的秒数
	WatchInterval time.Duration // 播放中检查是否到达结尾的间隔
}

func (o *Options) setDefaults() {
	if o.SkipTick <= 0 {
		o.SkipTick = 100 * time.Millisecond
	}
	if o.SkipStep <= 0 {
		o.SkipStep = 1
	}
	if o.JumpSeconds <= 0 {
		o.JumpSeconds = 10
	}
	if o.WatchInterval <= 0 {
		o.WatchInterval = 200 * time.Millisecond
	}
}

// Scheduler 把主时钟的状态变化翻译为播放进程的创建与终止。
// 所有公开方法都在 mu 下串行执行；后台 goroutine 在 mu 下检查自己的 ctx
// 后才动作，因此取消函数无需等待 goroutine 退出。
type Scheduler struct {
	mu      sync.Mutex
	clock   clock.Clock
	source  Source
	spawner Spawner
	state   *StateMachine
	opts    Options

	skipCancel  context.CancelFunc
	watchCancel context.CancelFunc
	positions   chan float64
	closed      bool
}

// NewScheduler 创建调度器。
func NewScheduler(c clock.Clock, source Source, spawner Spawner, opts Options) *Scheduler {
	opts.setDefaults()
	return &Scheduler{
		clock:     c,
		source:    source,
		spawner:   spawner,
		state:     NewStateMachine(),
		opts:      opts,
		positions: make(chan float64, 1),
	}
}

// State 返回当前状态。
func (s *Scheduler) State() State {
	return s.state.Current()
}

// SetOnChange 注册状态变化回调。
func (s *Scheduler) SetOnChange(fn func(from, to State)) {
	s.state.SetOnChange(fn)
}

// Positions 返回位置更新通道。只保留最新值，慢消费者会丢失中间位置。
func (s *Scheduler) Positions() <-chan float64 {
	return s.positions
}

// Play 启动主时钟并按当前位置调度所有参与预览的叠加音轨。
func (s *Scheduler) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopSkipLocked()
	s.setMutedLocked(false)
	s.clock.Play()
	s.startAudioLocked()
}

// Pause 暂停主时钟并终止所有播放进程。
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopSkipLocked()
	s.setMutedLocked(false)
	s.haltLocked()
	s.clock.Pause()
	s.publishLocked(s.clock.Position())
}

// TogglePlay 播放中则暂停，否则开始播放。
func (s *Scheduler) TogglePlay() {
	if s.clock.IsPlaying() && s.State() != StateSkipping {
		s.Pause()
		return
	}
	s.Play()
}

// Stop 终止所有播放进程，停止主时钟并回到 0。
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	s.stopSkipLocked()
	s.setMutedLocked(false)
	s.haltLocked()
	s.clock.Stop()
	s.clock.Seek(0)
	s.publishLocked(0)
}

// BeginSeek 在拖动进度条开始时调用：终止播放进程并静音，直到 Seek。
func (s *Scheduler) BeginSeek() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopSkipLocked()
	s.stopWatchLocked()
	s.spawner.KillAll()
	s.setMutedLocked(true)
}

// Seek 跳转到 seconds。若主时钟仍在播放，按新位置重新调度。
func (s *Scheduler) Seek(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seekLocked(seconds)
}

// Jump 相对当前位置跳转 delta 秒（结果钳位到 [0, total]）。
func (s *Scheduler) Jump(delta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seekLocked(s.clock.Position() + delta)
}

// JumpForward 前进 JumpSeconds 秒。
func (s *Scheduler) JumpForward() { s.Jump(s.opts.JumpSeconds) }

// JumpBackward 后退 JumpSeconds 秒。
func (s *Scheduler) JumpBackward() { s.Jump(-s.opts.JumpSeconds) }

func (s *Scheduler) seekLocked(seconds float64) {
	s.stopSkipLocked()
	s.setMutedLocked(false)
	s.spawner.KillAll()

	s.clock.Seek(s.clampLocked(seconds))
	s.publishLocked(s.clock.Position())

	if s.clock.IsPlaying() {
		s.startAudioLocked()
		return
	}
	s.stopWatchLocked()
	s.state.Transition(StateIdle)
}

// Resync 在叠加音轨被编辑后重新调度；非播放状态下无操作。
func (s *Scheduler) Resync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Current() == StatePlaying && s.clock.IsPlaying() {
		s.startAudioLocked()
	}
}

// Audition 从头试听单个叠加音轨，不改变主时钟。快进/快退期间返回 ErrSkipping。
func (s *Scheduler) Audition(overlayID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Current() == StateSkipping {
		return ErrSkipping
	}
	for _, o := range s.source.List() {
		if o.ID != overlayID {
			continue
		}
		_, err := s.spawner.Spawn(o.ID, o.Source(), o.VolumeFraction(), render.Seek(0))
		return err
	}
	return overlay.ErrNotFound
}

// Detach 在调度锁内终止 overlayID 的播放进程并执行 mutate（删除或关闭预览）。
// 持有同一把锁的 Play/Seek/Resync 因此不会在 mutate 之后再为它创建进程。
func (s *Scheduler) Detach(overlayID int, mutate func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.spawner.KillOverlay(overlayID)
	if mutate == nil {
		return nil
	}
	return mutate()
}

// FastForward 切换快进。
func (s *Scheduler) FastForward() { s.StartSkip(s.opts.SkipStep) }

// Rewind 切换快退。
func (s *Scheduler) Rewind() { s.StartSkip(-s.opts.SkipStep) }

// StartSkip 以 step 秒/tick 开始快进（正数）或快退（负数）。
// 正在快进/快退时再次调用等同于 StopSkip。
func (s *Scheduler) StartSkip(step float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.skipCancel != nil {
		s.endSkipLocked()
		return
	}
	if step == 0 {
		return
	}

	s.stopWatchLocked()
	s.spawner.KillAll()
	s.setMutedLocked(true)
	s.state.Transition(StateSkipping)

	ctx, cancel := context.WithCancel(context.Background())
	s.skipCancel = cancel
	go s.skipLoop(ctx, step)
	logger.Debugf("[playback] 开始跳跃播放 step=%.1fs", step)
}

// StopSkip 结束快进/快退；主时钟仍在播放则恢复叠加音轨。
func (s *Scheduler) StopSkip() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.skipCancel != nil {
		s.endSkipLocked()
	}
}

func (s *Scheduler) endSkipLocked() {
	s.stopSkipLocked()
	s.setMutedLocked(false)
	if s.clock.IsPlaying() {
		s.startAudioLocked()
		return
	}
	s.state.Transition(StateIdle)
}

func (s *Scheduler) skipLoop(ctx context.Context, step float64) {
	ticker := time.NewTicker(s.opts.SkipTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		if ctx.Err() != nil {
			s.mu.Unlock()
			return
		}
		// 总时长未知时只有 0 是边界，快进会一直持续到再次切换
		total := s.clock.TotalDuration()
		next := s.clock.Position() + step
		if next <= 0 || (total > 0 && next >= total) {
			s.clock.Seek(s.clampLocked(next))
			s.publishLocked(s.clock.Position())
			logger.Debugf("[playback] 跳跃播放到达边界，停止")
			s.stopLocked()
			s.mu.Unlock()
			return
		}
		s.clock.Seek(next)
		s.publishLocked(s.clock.Position())
		s.mu.Unlock()
	}
}

func (s *Scheduler) watchLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.WatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		if ctx.Err() != nil {
			s.mu.Unlock()
			return
		}
		pos := s.clock.Position()
		s.publishLocked(pos)
		if total := s.clock.TotalDuration(); total > 0 && pos >= total {
			logger.Infof("[playback] 已播放到结尾 (%.1fs)", total)
			s.stopLocked()
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
	}
}

// startAudioLocked 终止现有进程并按当前位置重新调度，然后进入 Playing。
func (s *Scheduler) startAudioLocked() {
	s.spawner.KillAll()

	pos := s.clock.Position()
	spawned := 0
	for _, o := range s.source.List() {
		if !o.Preview || o.Source() == "" {
			continue
		}
		mode := render.ForDelta(o.StartOffset - pos)
		if _, err := s.spawner.Spawn(o.ID, o.Source(), o.VolumeFraction(), mode); err != nil {
			logger.Warnf("[playback] %s 播放失败: %v", o.Name(), err)
			continue
		}
		spawned++
	}

	if s.state.Current() != StatePlaying {
		s.state.Transition(StatePlaying)
	}
	s.startWatchLocked()
	logger.Debugf("[playback] 在 %.3fs 处调度了 %d 个叠加音轨", pos, spawned)
}

func (s *Scheduler) startWatchLocked() {
	s.stopWatchLocked()
	ctx, cancel := context.WithCancel(context.Background())
	s.watchCancel = cancel
	go s.watchLoop(ctx)
}

func (s *Scheduler) stopWatchLocked() {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
}

func (s *Scheduler) stopSkipLocked() {
	if s.skipCancel != nil {
		s.skipCancel()
		s.skipCancel = nil
	}
}

// haltLocked 终止所有进程与后台任务并回到 Idle。
func (s *Scheduler) haltLocked() {
	s.stopWatchLocked()
	s.spawner.KillAll()
	s.state.ForceIdle()
}

func (s *Scheduler) setMutedLocked(muted bool) {
	if m, ok := s.clock.(clock.Muter); ok {
		m.SetMuted(muted)
	}
}

func (s *Scheduler) clampLocked(pos float64) float64 {
	if pos < 0 {
		return 0
	}
	if total := s.clock.TotalDuration(); total > 0 && pos > total {
		return total
	}
	return pos
}

func (s *Scheduler) publishLocked(pos float64) {
	if s.closed {
		return
	}
	select {
	case s.positions <- pos:
		return
	default:
	}
	select {
	case <-s.positions:
	default:
	}
	select {
	case s.positions <- pos:
	default:
	}
}

// Close 终止所有进程和后台任务，并关闭位置通道。
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.stopSkipLocked()
	s.haltLocked()
	s.closed = true
	close(s.positions)
}
