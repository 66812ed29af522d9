package tts

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/pp-group/edge-tts-go/biz/service/tts/edge"

	"github.com/iabetor/voxlay/internal/logger"
	"github.com/iabetor/voxlay/internal/overlay"
)

// EdgeVoices 语音风格到 Edge 神经网络音色的映射。
type EdgeVoices map[overlay.VoiceStyle]string

const defaultEdgeVoice = "en-US-GuyNeural"

// EdgeEngine 使用微软 Edge TTS 实现语音合成，直接保存返回的 MP3。
// Edge 音色自带语调，Pitch 不参与合成。
type EdgeEngine struct {
	voices EdgeVoices
}

// NewEdgeEngine 创建 Edge TTS 引擎。
func NewEdgeEngine(voices EdgeVoices) *EdgeEngine {
	return &EdgeEngine{voices: voices}
}

func (e *EdgeEngine) Ext() string { return ".mp3" }

func (e *EdgeEngine) voiceName(style overlay.VoiceStyle) string {
	if v := e.voices[style]; v != "" {
		return v
	}
	return defaultEdgeVoice
}

func (e *EdgeEngine) Synthesize(ctx context.Context, text string, voice overlay.Voice, outPath string) error {
	name := e.voiceName(voice.Style)
	logger.Debugf("[tts] edge-tts: 正在合成 %d 个字符，语音=%s", len([]rune(text)), name)

	comm, err := edge.NewCommunicate(text, edge.WithVoice(name))
	if err != nil {
		return fmt.Errorf("[tts] edge-tts 创建实例失败: %w", err)
	}

	ch, err := comm.Stream()
	if err != nil {
		return fmt.Errorf("[tts] edge-tts 开始流式合成失败: %w", err)
	}

	var mp3Buf bytes.Buffer
	for msg := range ch {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		// Stream() 返回的 map 中，type=="audio" 的条目包含音频数据
		if msgType, ok := msg["type"].(string); ok && msgType == "audio" {
			if data, ok := msg["data"].([]byte); ok {
				mp3Buf.Write(data)
			}
		}
	}

	if mp3Buf.Len() == 0 {
		return fmt.Errorf("[tts] edge-tts: 未收到音频数据")
	}
	logger.Debugf("[tts] edge-tts: 收到 %d 字节 MP3 数据", mp3Buf.Len())

	if err := os.WriteFile(outPath, mp3Buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("[tts] edge-tts: 写入文件失败: %w", err)
	}
	return nil
}
