package tts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/iabetor/voxlay/internal/logger"
	"github.com/iabetor/voxlay/internal/overlay"
)

// festivalVoices 把语音风格映射到 Festival 的 diphone 音色。
var festivalVoices = map[overlay.VoiceStyle]string{
	overlay.VoiceRobotic:  "voice_kal_diphone",
	overlay.VoiceBritish:  "voice_rab_diphone",
	overlay.VoiceRegional: "voice_akl_nz_jdt_diphone",
}

// festivalPitch 返回 DuffInt 语调的起止基频。
func festivalPitch(p overlay.Pitch) int {
	switch p {
	case overlay.PitchLow:
		return 50
	case overlay.PitchHigh:
		return 300
	}
	return 100
}

// Text2WaveEngine 调用 Festival 的 text2wave 命令输出 WAV。
type Text2WaveEngine struct {
	binary string
}

// NewText2WaveEngine 创建 text2wave 引擎，binary 为空时从 PATH 查找。
func NewText2WaveEngine(binary string) *Text2WaveEngine {
	if binary == "" {
		binary = "text2wave"
	}
	return &Text2WaveEngine{binary: binary}
}

func (e *Text2WaveEngine) Ext() string { return ".wav" }

// SchemeScript 生成传给 text2wave -eval 的 Scheme 脚本。
// Normal 音高只选择音色，Low/High 额外切换到 DuffInt 语调模型。
func SchemeScript(voice overlay.Voice) string {
	name, ok := festivalVoices[voice.Style]
	if !ok {
		name = festivalVoices[overlay.VoiceRobotic]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "(%s)\n", name)
	if voice.Pitch == overlay.PitchLow || voice.Pitch == overlay.PitchHigh {
		f0 := festivalPitch(voice.Pitch)
		fmt.Fprintf(&b, "(set! duffint_params '((start %d) (end %d)))\n", f0, f0)
		b.WriteString("(Parameter.set 'Int_Method 'DuffInt)\n")
		b.WriteString("(Parameter.set 'Int_Target_Method Int_Targets_Default)\n")
	}
	return b.String()
}

// Synthesize 写出文本与脚本的临时文件后执行 text2wave -o outPath。
func (e *Text2WaveEngine) Synthesize(ctx context.Context, text string, voice overlay.Voice, outPath string) error {
	logger.Debugf("[tts] text2wave: 正在合成 %d 个字符，音色=%s", len([]rune(text)), voice)

	textPath := outPath + ".txt"
	scmPath := outPath + ".scm"
	defer os.Remove(textPath)
	defer os.Remove(scmPath)

	if err := os.WriteFile(textPath, []byte(text), 0644); err != nil {
		return fmt.Errorf("[tts] text2wave: 写入文本失败: %w", err)
	}
	if err := os.WriteFile(scmPath, []byte(SchemeScript(voice)), 0644); err != nil {
		return fmt.Errorf("[tts] text2wave: 写入脚本失败: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.binary, "-o", outPath, textPath, "-eval", scmPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("[tts] text2wave 执行失败: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
