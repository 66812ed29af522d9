package tts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/iabetor/voxlay/internal/logger"
	"github.com/iabetor/voxlay/internal/overlay"
)

// sayVoices 把语音风格映射到 macOS 内置音色。
var sayVoices = map[overlay.VoiceStyle]string{
	overlay.VoiceRobotic:  "Fred",
	overlay.VoiceBritish:  "Daniel",
	overlay.VoiceRegional: "Karen",
}

// sayPitch 返回 say 内联命令 [[pbas N]] 的基频。
func sayPitch(p overlay.Pitch) int {
	switch p {
	case overlay.PitchLow:
		return 30
	case overlay.PitchHigh:
		return 70
	}
	return 0
}

// SayEngine 使用 macOS 内置 say 命令实现语音合成，作为离线备用方案。
// 仅在 macOS 上可用。
type SayEngine struct{}

// NewSayEngine 创建 macOS say TTS 引擎。
func NewSayEngine() *SayEngine {
	return &SayEngine{}
}

func (s *SayEngine) Ext() string { return ".aiff" }

// Synthesize 使用 say -o 直接输出 AIFF 文件，ffplay/ffmpeg 均可读取。
func (s *SayEngine) Synthesize(ctx context.Context, text string, voice overlay.Voice, outPath string) error {
	logger.Debugf("[tts] say: 正在合成 %d 个字符", len([]rune(text)))

	if p := sayPitch(voice.Pitch); p > 0 {
		text = fmt.Sprintf("[[pbas %d]] %s", p, text)
	}
	args := []string{"-o", outPath}
	if v := sayVoices[voice.Style]; v != "" {
		args = append(args, "-v", v)
	}
	args = append(args, text)

	cmd := exec.CommandContext(ctx, "say", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("[tts] say 执行失败: %w, stderr: %s", err, stderr.String())
	}
	return nil
}
