package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// maxStderrLines 失败时保留的 stderr 行数。
const maxStderrLines = 20

// Failure 是 ffmpeg 非零退出或无法启动时的错误。
type Failure struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (f *Failure) Error() string {
	if f.Stderr == "" {
		return fmt.Sprintf("ffmpeg 执行失败 (exit %d): %v", f.ExitCode, f.Err)
	}
	return fmt.Sprintf("ffmpeg 执行失败 (exit %d): %s", f.ExitCode, f.Stderr)
}

func (f *Failure) Unwrap() error { return f.Err }

// run 执行一次 ffmpeg 并在失败时返回带 stderr 尾部的 *Failure。
func run(ctx context.Context, binary string, args []string) error {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.WaitDelay = 2 * time.Second

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &Failure{ExitCode: code, Stderr: tail(stderr.String(), maxStderrLines), Err: err}
	}
	return nil
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
