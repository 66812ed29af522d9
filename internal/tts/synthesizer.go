package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/iabetor/voxlay/internal/logger"
	"github.com/iabetor/voxlay/internal/overlay"
)

var (
	// ErrEmptyText 解说文本为空，无需合成。
	ErrEmptyText = errors.New("解说文本为空")
	// ErrSuperseded 同一解说提交了更新的合成任务。
	ErrSuperseded = errors.New("合成任务已被新的请求取代")
)

// Job 是一次异步合成。Done 关闭后 Err 和 Path 才有效。
type Job struct {
	OverlayID int
	Text      string
	Voice     overlay.Voice

	path   string
	err    error
	cancel context.CancelFunc
	done   chan struct{}
}

// Done 在合成结束（成功、失败或取消）后关闭。
func (j *Job) Done() <-chan struct{} { return j.done }

// Err 返回合成结果，需在 Done 之后调用。
func (j *Job) Err() error {
	<-j.done
	return j.err
}

// Path 返回生成的音频路径，失败时为空。
func (j *Job) Path() string {
	<-j.done
	return j.path
}

// Cancel 取消合成。
func (j *Job) Cancel() { j.cancel() }

// Synthesizer 为解说调度合成任务，同一解说同时只有一个任务在跑。
type Synthesizer struct {
	engine Engine
	dir    string

	mu   sync.Mutex
	jobs map[int]*Job
	wg   sync.WaitGroup
}

// NewSynthesizer 创建合成协调器，音频输出到 dir。
func NewSynthesizer(engine Engine, dir string) *Synthesizer {
	return &Synthesizer{
		engine: engine,
		dir:    dir,
		jobs:   make(map[int]*Job),
	}
}

// OutputPath 返回解说 id 的最终音频路径。
func (s *Synthesizer) OutputPath(id int) string {
	return filepath.Join(s.dir, fmt.Sprintf("commentary%d%s", id, s.engine.Ext()))
}

// Submit 提交合成任务，先取消同一解说仍在进行的任务。
func (s *Synthesizer) Submit(id int, text string, voice overlay.Voice) *Job {
	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		OverlayID: id,
		Text:      text,
		Voice:     voice,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	s.mu.Lock()
	if old := s.jobs[id]; old != nil {
		old.cancel()
	}
	s.jobs[id] = job
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(ctx, job)
	return job
}

func (s *Synthesizer) run(ctx context.Context, job *Job) {
	defer s.wg.Done()
	defer close(job.done)
	defer job.cancel()

	job.err = s.synthesize(ctx, job)

	s.mu.Lock()
	if s.jobs[job.OverlayID] == job {
		delete(s.jobs, job.OverlayID)
	}
	s.mu.Unlock()

	switch {
	case job.err == nil:
		logger.Infof("[tts] 解说 %d 合成完成: %s", job.OverlayID, job.path)
	case errors.Is(job.err, context.Canceled), errors.Is(job.err, ErrSuperseded), errors.Is(job.err, ErrEmptyText):
		logger.Debugf("[tts] 解说 %d 合成未产生输出: %v", job.OverlayID, job.err)
	default:
		logger.Warnf("[tts] 解说 %d 合成失败: %v", job.OverlayID, job.err)
	}
}

func (s *Synthesizer) synthesize(ctx context.Context, job *Job) error {
	if job.Text == "" {
		return ErrEmptyText
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("[tts] 创建输出目录失败: %w", err)
	}

	tmp := filepath.Join(s.dir, fmt.Sprintf("commentary%d-%s%s", job.OverlayID, uuid.NewString()[:8], s.engine.Ext()))
	err := s.engine.Synthesize(ctx, job.Text, job.Voice, tmp)
	if ctx.Err() != nil {
		os.Remove(tmp)
		return ctx.Err()
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}

	// 在锁内确认仍是最新任务再改名，避免旧结果覆盖新结果。
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.jobs[job.OverlayID] != job {
		os.Remove(tmp)
		return ErrSuperseded
	}
	final := s.OutputPath(job.OverlayID)
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("[tts] 保存合成结果失败: %w", err)
	}
	job.path = final
	return nil
}

// Cancel 取消指定解说的合成任务。
func (s *Synthesizer) Cancel(id int) {
	s.mu.Lock()
	job := s.jobs[id]
	delete(s.jobs, id)
	s.mu.Unlock()

	if job != nil {
		job.cancel()
	}
}

// CancelAll 取消所有进行中的合成任务。
func (s *Synthesizer) CancelAll() {
	s.mu.Lock()
	jobs := s.jobs
	s.jobs = make(map[int]*Job)
	s.mu.Unlock()

	for _, job := range jobs {
		job.cancel()
	}
}

// Pending 返回进行中的任务数量。
func (s *Synthesizer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Wait 等待所有任务的 goroutine 退出。
func (s *Synthesizer) Wait() {
	s.wg.Wait()
}
