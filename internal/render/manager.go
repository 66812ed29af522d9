package render

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iabetor/voxlay/internal/logger"
)

// ErrSpawn 播放进程无法创建（源文件缺失或进程启动失败）。
var ErrSpawn = errors.New("无法启动播放进程")

// Handle 对应某个叠加音轨的一次播放请求。
// Kill 返回前 Live() 即变为 false，之后到达的进程退出事件不会影响更新的 Handle。
type Handle struct {
	ID        string
	OverlayID int
	Mode      Mode
	Source    string

	mu   sync.Mutex
	live bool
	proc Process
	stop chan struct{}
	done chan struct{}
}

// Live 报告 Handle 是否仍处于等待或播放中。
func (h *Handle) Live() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.live
}

// Done 在后台 goroutine 完全退出后关闭。
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// halt 幂等地标记为不存活并终止进程，不持有 Manager 锁。
func (h *Handle) halt() {
	h.mu.Lock()
	if !h.live {
		h.mu.Unlock()
		return
	}
	h.live = false
	proc := h.proc
	close(h.stop)
	h.mu.Unlock()

	if proc != nil {
		if err := proc.Kill(); err != nil {
			logger.Debugf("[render] 终止 overlay %d 进程: %v", h.OverlayID, err)
		}
	}
}

// Manager 维护 overlay ID 到存活 Handle 的映射。
type Manager struct {
	mu      sync.Mutex
	handles map[int]*Handle
	binary  string
	starter Starter
	wg      sync.WaitGroup
}

// NewManager 创建进程管理器。starter 为 nil 时使用 ExecStarter。
func NewManager(binary string, starter Starter) *Manager {
	if binary == "" {
		binary = "ffplay"
	}
	if starter == nil {
		starter = ExecStarter{}
	}
	return &Manager{
		handles: make(map[int]*Handle),
		binary:  binary,
		starter: starter,
	}
}

// Spawn 为 overlayID 创建新的播放请求并立即返回。
// 同一 overlay 已有的 Handle 会先被终止。
func (m *Manager) Spawn(overlayID int, src string, volume float64, mode Mode) (*Handle, error) {
	if src == "" {
		return nil, fmt.Errorf("overlay %d: 音频路径为空: %w", overlayID, ErrSpawn)
	}
	if _, err := os.Stat(src); err != nil {
		return nil, fmt.Errorf("overlay %d: %v: %w", overlayID, err, ErrSpawn)
	}

	h := &Handle{
		ID:        uuid.NewString(),
		OverlayID: overlayID,
		Mode:      mode,
		Source:    src,
		live:      true,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	args := RendererArgs(src, volume, mode)

	m.mu.Lock()
	if old := m.handles[overlayID]; old != nil {
		old.halt()
	}
	m.handles[overlayID] = h
	m.wg.Add(1)
	m.mu.Unlock()

	logger.Debugf("[render] overlay %d 播放请求 %s: %s", overlayID, h.ID[:8], mode)
	go m.run(h, args)
	return h, nil
}

func (m *Manager) run(h *Handle, args []string) {
	defer m.wg.Done()
	defer close(h.done)
	defer m.release(h)

	if d := h.Mode.Delay(); d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-h.stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	h.mu.Lock()
	if !h.live {
		h.mu.Unlock()
		return
	}
	proc, err := m.starter.Start(m.binary, args)
	if err != nil {
		h.live = false
		h.mu.Unlock()
		logger.Warnf("[render] overlay %d: %v", h.OverlayID, fmt.Errorf("%v: %w", err, ErrSpawn))
		return
	}
	h.proc = proc
	h.mu.Unlock()

	err = proc.Wait()

	h.mu.Lock()
	natural := h.live
	h.live = false
	h.mu.Unlock()

	if natural && err != nil {
		logger.Warnf("[render] overlay %d 播放进程异常退出: %v", h.OverlayID, err)
	}
}

// release 仅在表中仍是同一个 Handle 时才移除。
func (m *Manager) release(h *Handle) {
	m.mu.Lock()
	if m.handles[h.OverlayID] == h {
		delete(m.handles, h.OverlayID)
	}
	m.mu.Unlock()
}

// Kill 终止 Handle，可重复调用。
func (m *Manager) Kill(h *Handle) {
	if h == nil {
		return
	}
	h.halt()
	m.release(h)
}

// KillOverlay 终止指定 overlay 的存活 Handle（若有）。
func (m *Manager) KillOverlay(overlayID int) {
	m.mu.Lock()
	h := m.handles[overlayID]
	delete(m.handles, overlayID)
	m.mu.Unlock()

	if h != nil {
		h.halt()
	}
}

// KillAll 终止所有 Handle。
func (m *Manager) KillAll() {
	m.mu.Lock()
	handles := make([]*Handle, 0, len(m.handles))
	for id, h := range m.handles {
		handles = append(handles, h)
		delete(m.handles, id)
	}
	m.mu.Unlock()

	for _, h := range handles {
		h.halt()
	}
	if len(handles) > 0 {
		logger.Debugf("[render] 已终止 %d 个播放进程", len(handles))
	}
}

// Live 报告 overlay 是否有存活的 Handle。
func (m *Manager) Live(overlayID int) bool {
	m.mu.Lock()
	h := m.handles[overlayID]
	m.mu.Unlock()
	return h != nil && h.Live()
}

// LiveCount 返回存活 Handle 数量。
func (m *Manager) LiveCount() int {
	m.mu.Lock()
	handles := make([]*Handle, 0, len(m.handles))
	for _, h := range m.handles {
		handles = append(handles, h)
	}
	m.mu.Unlock()

	n := 0
	for _, h := range handles {
		if h.Live() {
			n++
		}
	}
	return n
}

// Wait 等待所有后台 goroutine 退出，通常在 KillAll 之后调用。
func (m *Manager) Wait() {
	m.wg.Wait()
}
