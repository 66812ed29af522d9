package render

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// Process 是一个已启动的播放进程。
type Process interface {
	Wait() error
	Kill() error
}

// Starter 启动外部播放进程。测试中可替换为假实现。
type Starter interface {
	Start(name string, args []string) (Process, error)
}

// ExecStarter 通过 os/exec 启动真实进程。
type ExecStarter struct{}

// Start 启动进程但不等待其结束。
func (ExecStarter) Start(name string, args []string) (Process, error) {
	cmd := exec.Command(name, args...)
	p := &execProcess{cmd: cmd}
	cmd.Stderr = &p.stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("启动 %s 失败: %w", name, err)
	}
	return p, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stderr bytes.Buffer
}

func (p *execProcess) Wait() error {
	if err := p.cmd.Wait(); err != nil {
		if msg := strings.TrimSpace(p.stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

// RendererArgs 构造 ffplay 参数（不含可执行文件名）。
// volume 取值 [0,1]；InlineSeek 模式追加 -ss。
func RendererArgs(src string, volume float64, mode Mode) []string {
	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}
	args := []string{
		"-nodisp", "-autoexit",
		"-loglevel", "quiet",
		"-af", fmt.Sprintf("volume=%.2f", volume),
	}
	if mode.Kind == InlineSeek && mode.Seconds > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", mode.Seconds))
	}
	return append(args, src)
}
