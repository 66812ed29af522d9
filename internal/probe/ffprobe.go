package probe

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// FFprobe 通过 ffprobe 读取容器时长。
type FFprobe struct {
	Binary string
}

// NewFFprobe 创建 ffprobe 探测器，binary 为空时从 PATH 查找。
func NewFFprobe(binary string) *FFprobe {
	if binary == "" {
		binary = "ffprobe"
	}
	return &FFprobe{Binary: binary}
}

func (f *FFprobe) Probe(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	cmd := exec.CommandContext(ctx, f.Binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe 失败: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	text := strings.TrimSpace(string(output))
	d, err := strconv.ParseFloat(text, 64)
	if err != nil || !validDuration(d) {
		return 0, fmt.Errorf("ffprobe 返回无效时长 %q: %w", text, ErrUnknownDuration)
	}
	return d, nil
}
