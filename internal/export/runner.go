package export

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/iabetor/voxlay/internal/logger"
)

// EventKind 导出进度事件类型。
type EventKind int

const (
	EventProcessing EventKind = iota
	EventMerging
	EventDone
	EventFailed
)

// Event 是一条导出进度。
type Event struct {
	Kind  EventKind
	Track string
	Err   error
}

func (e Event) String() string {
	switch e.Kind {
	case EventProcessing:
		return "processing overlay " + e.Track
	case EventMerging:
		return "merging"
	case EventDone:
		return "done"
	}
	return fmt.Sprintf("failed: %v", e.Err)
}

// Runner 在后台执行合并命令，并可选地记录导出历史。
type Runner struct {
	binary  string
	history *History
}

// NewRunner 创建执行器。history 为 nil 时不记录。
func NewRunner(binary string, history *History) *Runner {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Runner{binary: binary, history: history}
}

// Job 是一次进行中的导出。
type Job struct {
	ID   string
	Spec *CommandSpec

	events chan Event
	done   chan struct{}
	cancel context.CancelFunc

	once sync.Once
	err  error
}

// Events 返回进度事件通道，导出结束后关闭。
// 通道有足够缓冲，不读取也不会阻塞导出。
func (j *Job) Events() <-chan Event { return j.events }

// Done 在导出结束后关闭。
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait 等待导出结束并返回结果。
func (j *Job) Wait() error {
	<-j.done
	return j.err
}

// Cancel 终止导出进程。
func (j *Job) Cancel() { j.cancel() }

// Start 启动导出并立即返回。
func (r *Runner) Start(ctx context.Context, spec *CommandSpec) *Job {
	ctx, cancel := context.WithCancel(ctx)
	job := &Job{
		ID:     uuid.NewString(),
		Spec:   spec,
		events: make(chan Event, len(spec.Considered)+2),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go r.run(ctx, job)
	return job
}

// Run 同步执行导出。
func (r *Runner) Run(ctx context.Context, spec *CommandSpec) error {
	return r.Start(ctx, spec).Wait()
}

func (r *Runner) run(ctx context.Context, job *Job) {
	defer close(job.done)
	defer close(job.events)
	defer job.cancel()

	spec := job.Spec
	tracks := spec.Tracks()
	if r.history != nil {
		if err := r.history.Begin(job.ID, spec.VideoPath, spec.OutputPath, len(tracks)); err != nil {
			logger.Warnf("[export] 记录导出历史失败: %v", err)
		}
	}

	logger.Infof("[export] %s: %d 个叠加音轨 → %s", job.ID[:8], len(tracks), spec.OutputPath)
	for _, name := range spec.Considered {
		job.events <- Event{Kind: EventProcessing, Track: name}
	}
	job.events <- Event{Kind: EventMerging}
	logger.Debugf("[export] %s %s", r.binary, spec)

	job.err = run(ctx, r.binary, spec.Args())
	if job.err != nil {
		logger.Errorf("[export] %s 失败: %v", job.ID[:8], job.err)
		job.events <- Event{Kind: EventFailed, Err: job.err}
	} else {
		logger.Infof("[export] %s 完成: %s", job.ID[:8], spec.OutputPath)
		job.events <- Event{Kind: EventDone}
	}

	if r.history != nil {
		if err := r.history.Finish(job.ID, job.err); err != nil {
			logger.Warnf("[export] 更新导出历史失败: %v", err)
		}
	}
}
