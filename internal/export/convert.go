package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/iabetor/voxlay/internal/logger"
)

// ConvertCommentary 把合成的解说音频转存为 mp3，返回实际写入的路径。
func ConvertCommentary(ctx context.Context, binary, src, dst string) (string, error) {
	if src == "" {
		return "", errors.New("解说尚未生成音频")
	}
	if dst == "" {
		return "", ErrNoOutput
	}
	if binary == "" {
		binary = "ffmpeg"
	}
	dst = EnsureExt(dst, ".mp3")

	if err := run(ctx, binary, []string{"-hide_banner", "-nostdin", "-y", "-i", src, dst}); err != nil {
		return "", fmt.Errorf("转存解说失败: %w", err)
	}
	logger.Infof("[export] 解说已保存: %s", dst)
	return dst, nil
}
