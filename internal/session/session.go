// Package session 持有一个工程的全部运行时状态：叠加音轨注册表、
// 预览调度器、播放进程、语音合成与导出。应用启动时显式创建，退出时 Close。
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/iabetor/voxlay/internal/clock"
	"github.com/iabetor/voxlay/internal/export"
	"github.com/iabetor/voxlay/internal/logger"
	"github.com/iabetor/voxlay/internal/overlay"
	"github.com/iabetor/voxlay/internal/playback"
	"github.com/iabetor/voxlay/internal/probe"
	"github.com/iabetor/voxlay/internal/tts"
)

var (
	// ErrVideoMissing 工程引用的视频文件不存在或不可读，加载中止。
	ErrVideoMissing = errors.New("视频文件不存在")
	// ErrNotCommentary 操作只适用于解说。
	ErrNotCommentary = errors.New("该叠加音轨不是解说")
	// ErrNoAudio 解说尚未生成音频。
	ErrNoAudio = errors.New("解说尚未生成音频")
)

// totalSetter 由可以更新总时长的时钟实现（如 clock.Wall）。
type totalSetter interface {
	SetTotalDuration(total float64)
}

// Deps 是 Session 的外部依赖。
type Deps struct {
	Clock     clock.Clock
	Renderer  playback.Spawner
	Synth     *tts.Synthesizer
	Prober    probe.Prober
	Runner    *export.Runner
	FFmpeg    string
	ExportExt string
	Playback  playback.Options
}

// Session 串行化所有编辑操作；合成与探测在后台完成后回写注册表。
type Session struct {
	mu        sync.Mutex
	deps      Deps
	registry  *overlay.Registry
	scheduler *playback.Scheduler

	videoPath  string
	generation int // 每次加载工程递增，旧的后台结果据此丢弃

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New 创建空会话。
func New(deps Deps) *Session {
	reg := overlay.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		deps:      deps,
		registry:  reg,
		scheduler: playback.NewScheduler(deps.Clock, reg, deps.Renderer, deps.Playback),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Playback 返回预览调度器。
func (s *Session) Playback() *playback.Scheduler {
	return s.scheduler
}

// VideoPath 返回当前视频路径，可能为空。
func (s *Session) VideoPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videoPath
}

// Overlays 返回当前叠加音轨的有序副本。
func (s *Session) Overlays() []overlay.Overlay {
	return s.registry.List()
}

// Overlay 返回单个叠加音轨。
func (s *Session) Overlay(id int) (overlay.Overlay, bool) {
	return s.registry.Get(id)
}

// SetVideo 切换视频：停止预览并探测总时长。
func (s *Session) SetVideo(ctx context.Context, path string) error {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("%s: %w", path, ErrVideoMissing)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scheduler.Stop()
	s.videoPath = path
	s.updateTotalLocked(ctx)
	return nil
}

func (s *Session) updateTotalLocked(ctx context.Context) {
	ts, ok := s.deps.Clock.(totalSetter)
	if !ok {
		return
	}
	d, known := probe.Duration(ctx, s.deps.Prober, s.videoPath)
	if !known {
		if s.videoPath != "" {
			logger.Warnf("[session] 无法获取视频时长: %s", s.videoPath)
		}
		d = 0
	}
	ts.SetTotalDuration(d)
}

// AddCommentary 添加解说并在后台合成。
func (s *Session) AddCommentary(text string, voice overlay.Voice) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.registry.Add(overlay.NewCommentary(text, voice))
	if err != nil {
		return 0, err
	}
	s.synthesizeLocked(id, text, voice)
	return id, nil
}

// AddFile 添加外部音频文件并在后台探测时长。
func (s *Session) AddFile(path string) (int, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("添加音频文件失败: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.registry.Add(overlay.NewFileTrack(path))
	if err != nil {
		return 0, err
	}
	s.probeLocked(id, path)
	return id, nil
}

// Remove 先终止该叠加音轨的播放进程与合成任务，再从注册表删除。
func (s *Session) Remove(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deps.Synth.Cancel(id)
	return s.scheduler.Detach(id, func() error {
		return s.registry.Remove(id)
	})
}

// SetText 修改解说文本并重新合成。
func (s *Session) SetText(id int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.registry.Update(id, func(o *overlay.Overlay) error {
		if !o.IsCommentary() {
			return ErrNotCommentary
		}
		o.Text = text
		return nil
	})
	if err != nil {
		return err
	}
	s.synthesizeLocked(id, o.Text, o.Voice)
	return nil
}

// SetVoice 修改解说音色/音高并重新合成。
func (s *Session) SetVoice(id int, voice overlay.Voice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.registry.Update(id, func(o *overlay.Overlay) error {
		if !o.IsCommentary() {
			return ErrNotCommentary
		}
		o.Voice = voice
		return nil
	})
	if err != nil {
		return err
	}
	s.synthesizeLocked(id, o.Text, o.Voice)
	return nil
}

// SetOffset 修改起始偏移（秒）。播放中会按新偏移重新调度。
func (s *Session) SetOffset(id int, offset float64) error {
	return s.edit(id, func(o *overlay.Overlay) error {
		o.StartOffset = offset
		return nil
	})
}

// SetVolume 修改音量百分比。
func (s *Session) SetVolume(id int, volume int) error {
	return s.edit(id, func(o *overlay.Overlay) error {
		o.Volume = volume
		return nil
	})
}

// SetPreview 设置是否参与预览。
func (s *Session) SetPreview(id int, preview bool) error {
	mutate := func(o *overlay.Overlay) error {
		o.Preview = preview
		return nil
	}
	if preview {
		return s.edit(id, mutate)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler.Detach(id, func() error {
		_, err := s.registry.Update(id, mutate)
		return err
	})
}

func (s *Session) edit(id int, mutate func(*overlay.Overlay) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.registry.Update(id, mutate); err != nil {
		return err
	}
	s.scheduler.Resync()
	return nil
}

// Audition 从头试听单个叠加音轨。
func (s *Session) Audition(id int) error {
	return s.scheduler.Audition(id)
}

// ExceedingVideo 返回结束时间超过视频总长的叠加音轨。
func (s *Session) ExceedingVideo() []overlay.Overlay {
	total := s.deps.Clock.TotalDuration()
	var out []overlay.Overlay
	for _, o := range s.registry.List() {
		if o.ExceedsVideo(total) {
			out = append(out, o)
		}
	}
	return out
}

// synthesizeLocked 提交合成任务（会取消同一解说之前的任务），完成后回写路径与时长。
func (s *Session) synthesizeLocked(id int, text string, voice overlay.Voice) {
	if text == "" {
		s.deps.Synth.Cancel(id)
		return
	}
	job := s.deps.Synth.Submit(id, text, voice)
	gen := s.generation

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-job.Done():
		case <-s.ctx.Done():
			job.Cancel()
			<-job.Done()
		}
		if job.Err() != nil {
			return
		}

		d, known := probe.Duration(s.ctx, s.deps.Prober, job.Path())
		s.apply(gen, id, func(o *overlay.Overlay) error {
			// 文本或音色已被再次修改时，等待更新的任务回写
			if o.Text != job.Text || o.Voice != job.Voice {
				return errStale
			}
			o.SourcePath = job.Path()
			o.Duration, o.DurationKnown = d, known
			return nil
		})
	}()
}

func (s *Session) probeLocked(id int, path string) {
	gen := s.generation

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		d, known := probe.Duration(s.ctx, s.deps.Prober, path)
		if !known {
			logger.Warnf("[session] 无法获取时长: %s", path)
			return
		}
		s.apply(gen, id, func(o *overlay.Overlay) error {
			if o.SourcePath != path {
				return errStale
			}
			o.Duration, o.DurationKnown = d, true
			return nil
		})
	}()
}

var errStale = errors.New("stale result")

// apply 在工程未被替换时回写后台结果。
func (s *Session) apply(gen, id int, mutate func(*overlay.Overlay) error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || s.ctx.Err() != nil {
		return
	}
	o, err := s.registry.Update(id, mutate)
	switch {
	case err == nil:
		logger.Debugf("[session] %s 时长 %s", o.Name(), probe.Format(o.Duration, o.DurationKnown))
		if total := s.deps.Clock.TotalDuration(); o.ExceedsVideo(total) {
			logger.Warnf("[session] %s 在视频结束后仍在播放", o.Name())
		}
	case errors.Is(err, errStale), errors.Is(err, overlay.ErrNotFound):
	default:
		logger.Warnf("[session] 更新 overlay %d 失败: %v", id, err)
	}
}

// Load 读取工程文件并整体替换当前状态。
// 格式错误的行被跳过并返回；视频文件缺失或首行无效时中止且不改变当前状态。
func (s *Session) Load(ctx context.Context, path string) ([]*overlay.ParseError, error) {
	p, skipped, err := overlay.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if p.VideoPath != "" {
		if _, err := os.Stat(p.VideoPath); err != nil {
			return skipped, fmt.Errorf("%s: %w", p.VideoPath, ErrVideoMissing)
		}
	}
	for _, pe := range skipped {
		logger.Warnf("[session] 跳过 %s: %s", path, pe)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.scheduler.Stop()
	s.deps.Renderer.KillAll()
	s.deps.Synth.CancelAll()
	s.generation++

	s.videoPath = p.VideoPath
	s.registry.Replace(p.Overlays)
	s.updateTotalLocked(ctx)

	for _, o := range s.registry.List() {
		if o.IsCommentary() {
			s.synthesizeLocked(o.ID, o.Text, o.Voice)
		} else {
			s.probeLocked(o.ID, o.SourcePath)
		}
	}

	logger.Infof("[session] 已加载工程 %s: %d 个叠加音轨，跳过 %d 行", path, s.registry.Len(), len(skipped))
	return skipped, nil
}

// Save 把当前工程写入文件。
func (s *Session) Save(path string) error {
	s.mu.Lock()
	video := s.videoPath
	s.mu.Unlock()
	return overlay.WriteFile(path, video, s.registry.List())
}

// Export 编译并启动导出。
func (s *Session) Export(ctx context.Context, outputPath string) (*export.Job, error) {
	s.mu.Lock()
	video := s.videoPath
	s.mu.Unlock()

	spec, err := export.Compile(video, s.registry.List(), outputPath, s.deps.ExportExt)
	if err != nil {
		return nil, err
	}
	return s.deps.Runner.Start(ctx, spec), nil
}

// SaveCommentary 把解说的合成音频另存为 mp3。
func (s *Session) SaveCommentary(ctx context.Context, id int, dst string) (string, error) {
	o, ok := s.registry.Get(id)
	if !ok {
		return "", fmt.Errorf("overlay %d: %w", id, overlay.ErrNotFound)
	}
	if !o.IsCommentary() {
		return "", ErrNotCommentary
	}
	if o.SourcePath == "" {
		return "", ErrNoAudio
	}
	return export.ConvertCommentary(ctx, s.deps.FFmpeg, o.SourcePath, dst)
}

// Wait 等待所有后台合成与探测结束。
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close 终止所有播放进程与后台任务。
func (s *Session) Close() {
	s.cancel()
	s.scheduler.Close()
	s.deps.Renderer.KillAll()
	s.deps.Synth.CancelAll()
	s.wg.Wait()
}
