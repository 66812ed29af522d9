package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/google/uuid"
	tts "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/tts/v20190823"

	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"

	"github.com/iabetor/voxlay/internal/logger"
	"github.com/iabetor/voxlay/internal/overlay"
)

// defaultTencentVoice 英文男声 WeJack。
const defaultTencentVoice int64 = 1050

// TencentEngine 使用腾讯云 TTS 实现语音合成。
type TencentEngine struct {
	client     *tts.Client
	voiceTypes map[overlay.VoiceStyle]int64
}

// TencentConfig 腾讯云 TTS 配置。
type TencentConfig struct {
	SecretID   string
	SecretKey  string
	Region     string
	VoiceTypes map[overlay.VoiceStyle]int64
}

// NewTencentEngine 创建腾讯云 TTS 引擎。
func NewTencentEngine(cfg TencentConfig) (*TencentEngine, error) {
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("[tts] 腾讯云 TTS 需要 SecretID 和 SecretKey")
	}
	if cfg.Region == "" {
		cfg.Region = "ap-guangzhou"
	}

	credential := common.NewCredential(cfg.SecretID, cfg.SecretKey)
	cpf := profile.NewClientProfile()
	cpf.HttpProfile.Endpoint = "tts.tencentcloudapi.com"

	client, err := tts.NewClient(credential, cfg.Region, cpf)
	if err != nil {
		return nil, fmt.Errorf("[tts] 创建腾讯云 TTS 客户端失败: %w", err)
	}

	logger.Infof("[tts] 腾讯云 TTS 引擎已初始化 (region=%s)", cfg.Region)

	return &TencentEngine{
		client:     client,
		voiceTypes: cfg.VoiceTypes,
	}, nil
}

func (e *TencentEngine) Ext() string { return ".mp3" }

// tencentPitch 腾讯云没有音高参数，用语速近似：低音高放慢，高音高加快。
func tencentPitch(p overlay.Pitch) float64 {
	switch p {
	case overlay.PitchLow:
		return -1
	case overlay.PitchHigh:
		return 1
	}
	return 0
}

func (e *TencentEngine) voiceType(style overlay.VoiceStyle) int64 {
	if v := e.voiceTypes[style]; v != 0 {
		return v
	}
	return defaultTencentVoice
}

// Synthesize 调用 TextToVoice 并把 Base64 MP3 写入 outPath。
func (e *TencentEngine) Synthesize(ctx context.Context, text string, voice overlay.Voice, outPath string) error {
	voiceType := e.voiceType(voice.Style)
	logger.Debugf("[tts] 腾讯云 TTS: 正在合成 %d 个字符，音色=%d", len([]rune(text)), voiceType)

	request := tts.NewTextToVoiceRequest()
	request.Text = common.StringPtr(text)
	request.SessionId = common.StringPtr(uuid.NewString())
	request.VoiceType = common.Int64Ptr(voiceType)
	request.PrimaryLanguage = common.Int64Ptr(2)
	request.Codec = common.StringPtr("mp3")
	request.Speed = common.Float64Ptr(tencentPitch(voice.Pitch))
	request.Volume = common.Float64Ptr(5.0)

	response, err := e.client.TextToVoiceWithContext(ctx, request)
	if err != nil {
		return fmt.Errorf("[tts] 腾讯云 TTS 合成失败: %w", err)
	}
	if response.Response == nil || response.Response.Audio == nil {
		return fmt.Errorf("[tts] 腾讯云 TTS: 未返回音频数据")
	}

	mp3Data, err := base64.StdEncoding.DecodeString(*response.Response.Audio)
	if err != nil {
		return fmt.Errorf("[tts] Base64 解码失败: %w", err)
	}
	logger.Debugf("[tts] 腾讯云 TTS: 收到 %d 字节 MP3 数据", len(mp3Data))

	if err := os.WriteFile(outPath, mp3Data, 0644); err != nil {
		return fmt.Errorf("[tts] 腾讯云 TTS: 写入文件失败: %w", err)
	}
	return nil
}
