package probe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/go-mp3"
)

// MP3 用 go-mp3 扫描帧计算时长，不依赖外部进程。
type MP3 struct{}

// Probe 只处理 .mp3 文件，其他扩展名返回 ErrUnsupported。
func (MP3) Probe(ctx context.Context, path string) (float64, error) {
	if !strings.EqualFold(filepath.Ext(path), ".mp3") {
		return 0, ErrUnsupported
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("打开 %s 失败: %w", path, err)
	}
	defer f.Close()

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return 0, fmt.Errorf("MP3 解码失败: %w", err)
	}

	// go-mp3 输出固定为 16-bit 双声道，每帧 4 字节。
	length := decoder.Length()
	rate := decoder.SampleRate()
	if length < 0 || rate <= 0 {
		return 0, fmt.Errorf("MP3 长度未知: %w", ErrUnknownDuration)
	}
	return float64(length) / float64(4*rate), nil
}
