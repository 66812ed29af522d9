package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是 voxlay 的顶层配置结构。
type Config struct {
	DataDir  string         `yaml:"data_dir"`
	Tools    ToolsConfig    `yaml:"tools"`
	Playback PlaybackConfig `yaml:"playback"`
	TTS      TTSConfig      `yaml:"tts"`
	Export   ExportConfig   `yaml:"export"`
	Log      LogConfig      `yaml:"log"`
}

// ToolsConfig 外部媒体工具路径。
type ToolsConfig struct {
	FFmpeg  string `yaml:"ffmpeg"`
	FFprobe string `yaml:"ffprobe"`
	FFplay  string `yaml:"ffplay"`
}

// PlaybackConfig 预览播放相关参数。
type PlaybackConfig struct {
	// SkipTickMs 快进/快退时每次步进的间隔（毫秒）。
	SkipTickMs int `yaml:"skip_tick_ms"`
	// SkipStep 快进/快退每次步进的秒数（取正值，方向由操作决定）。
	SkipStep float64 `yaml:"skip_step"`
	// JumpSeconds 单次跳转（前进/后退按钮）的秒数。
	JumpSeconds float64 `yaml:"jump_seconds"`
	// WatchMs 播放中检测是否到达视频末尾的间隔（毫秒）。
	WatchMs int `yaml:"watch_ms"`
}

// SkipInterval 返回快进步进间隔。
func (p PlaybackConfig) SkipInterval() time.Duration {
	return time.Duration(p.SkipTickMs) * time.Millisecond
}

// WatchInterval 返回末尾检测间隔。
func (p PlaybackConfig) WatchInterval() time.Duration {
	return time.Duration(p.WatchMs) * time.Millisecond
}

// TTSConfig 语音合成配置。
type TTSConfig struct {
	Engine    string          `yaml:"engine"` // text2wave, edge, tencent
	Text2Wave Text2WaveConfig `yaml:"text2wave"`
	Edge      EdgeConfig      `yaml:"edge"`
	Tencent   TencentConfig   `yaml:"tencent"`
}

// Text2WaveConfig Festival text2wave 配置。
type Text2WaveConfig struct {
	Binary string `yaml:"binary"`
}

// EdgeConfig Edge TTS 配置，按语音风格选择音色。
type EdgeConfig struct {
	Robotic  string `yaml:"robotic"`
	British  string `yaml:"british"`
	Regional string `yaml:"regional"`
}

// TencentConfig 腾讯云 TTS 配置。
type TencentConfig struct {
	SecretID  string `yaml:"secret_id"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	Robotic   int64  `yaml:"robotic"`
	British   int64  `yaml:"british"`
	Regional  int64  `yaml:"regional"`
}

// ExportConfig 导出配置。
type ExportConfig struct {
	// Extension 导出文件强制使用的扩展名。
	Extension string `yaml:"extension"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default 返回全部使用默认值的配置。
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// Load 读取 YAML 配置文件并返回 Config。
// 支持 ${VAR_NAME} 形式的环境变量展开。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}

	expanded := os.Expand(string(data), os.Getenv)

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}

	setDefaults(cfg)
	return cfg, nil
}

// DatabasePath 返回 SQLite 数据库文件路径。
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "voxlay.db")
}

// SynthesisDir 返回合成语音文件的存放目录。
func (c *Config) SynthesisDir() string {
	return filepath.Join(c.DataDir, "commentary")
}

// setDefaults 为未设置的配置项填充默认值。
func setDefaults(cfg *Config) {
	if cfg.Tools.FFmpeg == "" {
		cfg.Tools.FFmpeg = "ffmpeg"
	}
	if cfg.Tools.FFprobe == "" {
		cfg.Tools.FFprobe = "ffprobe"
	}
	if cfg.Tools.FFplay == "" {
		cfg.Tools.FFplay = "ffplay"
	}
	if cfg.Playback.SkipTickMs == 0 {
		cfg.Playback.SkipTickMs = 100
	}
	if cfg.Playback.SkipStep == 0 {
		cfg.Playback.SkipStep = 1
	}
	if cfg.Playback.JumpSeconds == 0 {
		cfg.Playback.JumpSeconds = 10
	}
	if cfg.Playback.WatchMs == 0 {
		cfg.Playback.WatchMs = 200
	}
	if cfg.TTS.Engine == "" {
		cfg.TTS.Engine = "text2wave"
	}
	if cfg.TTS.Text2Wave.Binary == "" {
		cfg.TTS.Text2Wave.Binary = "text2wave"
	}
	if cfg.TTS.Edge.Robotic == "" {
		cfg.TTS.Edge.Robotic = "en-US-GuyNeural"
	}
	if cfg.TTS.Edge.British == "" {
		cfg.TTS.Edge.British = "en-GB-RyanNeural"
	}
	if cfg.TTS.Edge.Regional == "" {
		cfg.TTS.Edge.Regional = "en-NZ-MitchellNeural"
	}
	if cfg.TTS.Tencent.Region == "" {
		cfg.TTS.Tencent.Region = "ap-guangzhou"
	}
	if cfg.Export.Extension == "" {
		cfg.Export.Extension = ".mp4"
	} else if !strings.HasPrefix(cfg.Export.Extension, ".") {
		cfg.Export.Extension = "." + cfg.Export.Extension
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if cfg.DataDir == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			cfg.DataDir = filepath.Join(home, ".voxlay")
		} else {
			cfg.DataDir = "./.voxlay-data"
		}
	} else if strings.HasPrefix(cfg.DataDir, "~/") {
		// Go 不会自动展开 ~
		home, _ := os.UserHomeDir()
		if home != "" {
			cfg.DataDir = home + cfg.DataDir[1:]
		}
	}

	cfg.TTS.Tencent.SecretID = strings.TrimSpace(cfg.TTS.Tencent.SecretID)
	cfg.TTS.Tencent.SecretKey = strings.TrimSpace(cfg.TTS.Tencent.SecretKey)
}
