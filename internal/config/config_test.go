package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSetDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	checks := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"Tools.FFmpeg", cfg.Tools.FFmpeg, "ffmpeg"},
		{"Tools.FFprobe", cfg.Tools.FFprobe, "ffprobe"},
		{"Tools.FFplay", cfg.Tools.FFplay, "ffplay"},
		{"Playback.SkipTickMs", cfg.Playback.SkipTickMs, 100},
		{"Playback.SkipStep", cfg.Playback.SkipStep, 1.0},
		{"Playback.JumpSeconds", cfg.Playback.JumpSeconds, 10.0},
		{"Playback.WatchMs", cfg.Playback.WatchMs, 200},
		{"TTS.Engine", cfg.TTS.Engine, "text2wave"},
		{"TTS.Text2Wave.Binary", cfg.TTS.Text2Wave.Binary, "text2wave"},
		{"TTS.Edge.British", cfg.TTS.Edge.British, "en-GB-RyanNeural"},
		{"Export.Extension", cfg.Export.Extension, ".mp4"},
		{"Log.Level", cfg.Log.Level, "info"},
	}

	for _, c := range checks {
		switch want := c.want.(type) {
		case int:
			if c.got.(int) != want {
				t.Errorf("%s: got %v, want %v", c.name, c.got, want)
			}
		case float64:
			if c.got.(float64) != want {
				t.Errorf("%s: got %v, want %v", c.name, c.got, want)
			}
		case string:
			if c.got.(string) != want {
				t.Errorf("%s: got %v, want %v", c.name, c.got, want)
			}
		}
	}

	if cfg.DataDir == "" {
		t.Error("DataDir should have a default")
	}
}

func TestSetDefaults_DoesNotOverride(t *testing.T) {
	cfg := &Config{
		DataDir:  "/srv/voxlay",
		Tools:    ToolsConfig{FFmpeg: "/opt/ffmpeg", FFplay: "/opt/ffplay"},
		Playback: PlaybackConfig{SkipTickMs: 50, SkipStep: 2, JumpSeconds: 5},
		TTS:      TTSConfig{Engine: "edge"},
		Log:      LogConfig{Level: "debug"},
	}
	setDefaults(cfg)

	if cfg.DataDir != "/srv/voxlay" {
		t.Errorf("DataDir should not be overridden: got %s", cfg.DataDir)
	}
	if cfg.Tools.FFmpeg != "/opt/ffmpeg" {
		t.Errorf("FFmpeg should not be overridden: got %s", cfg.Tools.FFmpeg)
	}
	if cfg.Tools.FFplay != "/opt/ffplay" {
		t.Errorf("FFplay should not be overridden: got %s", cfg.Tools.FFplay)
	}
	if cfg.Playback.SkipTickMs != 50 {
		t.Errorf("SkipTickMs should not be overridden: got %d", cfg.Playback.SkipTickMs)
	}
	if cfg.Playback.SkipStep != 2 {
		t.Errorf("SkipStep should not be overridden: got %v", cfg.Playback.SkipStep)
	}
	if cfg.TTS.Engine != "edge" {
		t.Errorf("TTS.Engine should not be overridden: got %s", cfg.TTS.Engine)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level should not be overridden: got %s", cfg.Log.Level)
	}
}

func TestSetDefaults_ExtensionGetsDot(t *testing.T) {
	cfg := &Config{Export: ExportConfig{Extension: "mkv"}}
	setDefaults(cfg)
	if cfg.Export.Extension != ".mkv" {
		t.Errorf("expected .mkv, got %q", cfg.Export.Extension)
	}
}

func TestSetDefaults_ExpandsHomeInDataDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		t.Skip("no home directory")
	}
	cfg := &Config{DataDir: "~/voxlay-test"}
	setDefaults(cfg)
	if !strings.HasPrefix(cfg.DataDir, home) {
		t.Errorf("expected DataDir under %s, got %s", home, cfg.DataDir)
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	yamlContent := `
data_dir: /tmp/voxlay
tools:
  ffplay: /usr/local/bin/ffplay
playback:
  skip_tick_ms: 250
  jump_seconds: 15
tts:
  engine: tencent
  tencent:
    secret_id: id
    secret_key: key
    british: 101050
log:
  level: debug
`
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(tmpFile, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Tools.FFplay != "/usr/local/bin/ffplay" {
		t.Errorf("Tools.FFplay: got %q", cfg.Tools.FFplay)
	}
	if cfg.Playback.SkipInterval() != 250*time.Millisecond {
		t.Errorf("SkipInterval: got %v, want 250ms", cfg.Playback.SkipInterval())
	}
	if cfg.Playback.JumpSeconds != 15 {
		t.Errorf("JumpSeconds: got %v, want 15", cfg.Playback.JumpSeconds)
	}
	if cfg.TTS.Tencent.British != 101050 {
		t.Errorf("TTS.Tencent.British: got %d", cfg.TTS.Tencent.British)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level: got %q, want %q", cfg.Log.Level, "debug")
	}
	// Defaults should be applied for unset fields
	if cfg.Tools.FFmpeg != "ffmpeg" {
		t.Errorf("Tools.FFmpeg should default to ffmpeg, got %q", cfg.Tools.FFmpeg)
	}
	if cfg.DatabasePath() != filepath.Join("/tmp/voxlay", "voxlay.db") {
		t.Errorf("DatabasePath: got %q", cfg.DatabasePath())
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_TENCENT_KEY", "secret-from-env")

	yamlContent := `
tts:
  tencent:
    secret_key: "  ${TEST_TENCENT_KEY}  "
`
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(tmpFile, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.TTS.Tencent.SecretKey != "secret-from-env" {
		t.Errorf("expected expanded and trimmed key, got %q", cfg.TTS.Tencent.SecretKey)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}
}
