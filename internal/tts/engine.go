package tts

import (
	"context"
	"fmt"

	"github.com/iabetor/voxlay/internal/config"
	"github.com/iabetor/voxlay/internal/overlay"
)

// Engine 定义语音合成后端接口。
type Engine interface {
	// Synthesize 将文本按 voice 合成为音频并写入 outPath。
	// 调用方负责 outPath 的扩展名与 Ext() 一致。
	Synthesize(ctx context.Context, text string, voice overlay.Voice, outPath string) error
	// Ext 返回输出文件扩展名（含点）。
	Ext() string
}

// NewEngine 根据配置创建合成引擎。
func NewEngine(cfg config.TTSConfig) (Engine, error) {
	switch cfg.Engine {
	case "", "text2wave":
		return NewText2WaveEngine(cfg.Text2Wave.Binary), nil
	case "say":
		return NewSayEngine(), nil
	case "edge":
		return NewEdgeEngine(EdgeVoices{
			overlay.VoiceRobotic:  cfg.Edge.Robotic,
			overlay.VoiceBritish:  cfg.Edge.British,
			overlay.VoiceRegional: cfg.Edge.Regional,
		}), nil
	case "tencent":
		return NewTencentEngine(TencentConfig{
			SecretID:  cfg.Tencent.SecretID,
			SecretKey: cfg.Tencent.SecretKey,
			Region:    cfg.Tencent.Region,
			VoiceTypes: map[overlay.VoiceStyle]int64{
				overlay.VoiceRobotic:  cfg.Tencent.Robotic,
				overlay.VoiceBritish:  cfg.Tencent.British,
				overlay.VoiceRegional: cfg.Tencent.Regional,
			},
		})
	}
	return nil, fmt.Errorf("[tts] 不支持的合成引擎: %s", cfg.Engine)
}
