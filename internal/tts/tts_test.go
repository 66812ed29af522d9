package tts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iabetor/voxlay/internal/config"
	"github.com/iabetor/voxlay/internal/overlay"
)

// mockEngine 把文本写入输出文件；block 非 nil 时在写入前等待
// （blockOn 非空时只阻塞该文本）。
type mockEngine struct {
	mu      sync.Mutex
	calls   int
	block   chan struct{}
	blockOn string
	err     error
}

func (m *mockEngine) Ext() string { return ".wav" }

func (m *mockEngine) Synthesize(ctx context.Context, text string, voice overlay.Voice, outPath string) error {
	m.mu.Lock()
	m.calls++
	block := m.block
	if m.blockOn != "" && text != m.blockOn {
		block = nil
	}
	err := m.err
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}
	return os.WriteFile(outPath, []byte(text), 0644)
}

func waitJob(t *testing.T, j *Job) {
	t.Helper()
	select {
	case <-j.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("job did not finish")
	}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestSynthesizer_Submit(t *testing.T) {
	dir := t.TempDir()
	s := NewSynthesizer(&mockEngine{}, dir)

	job := s.Submit(3, "hello there", overlay.Voice{})
	waitJob(t, job)

	if err := job.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join(dir, "commentary3.wav")
	if job.Path() != want {
		t.Errorf("expected path %s, got %s", want, job.Path())
	}
	data, _ := os.ReadFile(want)
	if string(data) != "hello there" {
		t.Errorf("unexpected content %q", data)
	}
	if names := listDir(t, dir); len(names) != 1 {
		t.Errorf("temp files should be renamed away, dir=%v", names)
	}
	if s.Pending() != 0 {
		t.Errorf("expected no pending jobs, got %d", s.Pending())
	}
}

func TestSynthesizer_ResubmitCancelsInFlight(t *testing.T) {
	dir := t.TempDir()
	eng := &mockEngine{block: make(chan struct{}), blockOn: "old text"}
	s := NewSynthesizer(eng, dir)

	first := s.Submit(1, "old text", overlay.Voice{})
	second := s.Submit(1, "new text", overlay.Voice{})

	waitJob(t, first)
	waitJob(t, second)

	if !errors.Is(first.Err(), context.Canceled) {
		t.Errorf("first job should be cancelled, got %v", first.Err())
	}
	if first.Path() != "" {
		t.Error("cancelled job must not report a path")
	}
	if second.Err() != nil {
		t.Fatalf("second job failed: %v", second.Err())
	}
	data, _ := os.ReadFile(second.Path())
	if string(data) != "new text" {
		t.Errorf("final audio should come from the newest request, got %q", data)
	}
	s.Wait()
	if names := listDir(t, dir); len(names) != 1 {
		t.Errorf("expected only the final file, got %v", names)
	}
}

func TestSynthesizer_EngineError(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("festival crashed")
	s := NewSynthesizer(&mockEngine{err: boom}, dir)

	job := s.Submit(0, "text", overlay.Voice{})
	waitJob(t, job)

	if !errors.Is(job.Err(), boom) {
		t.Errorf("expected engine error, got %v", job.Err())
	}
	if _, err := os.Stat(s.OutputPath(0)); !os.IsNotExist(err) {
		t.Error("failed synthesis must not create the output file")
	}
}

func TestSynthesizer_EmptyText(t *testing.T) {
	eng := &mockEngine{}
	s := NewSynthesizer(eng, t.TempDir())

	job := s.Submit(0, "", overlay.Voice{})
	if !errors.Is(job.Err(), ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", job.Err())
	}
	if eng.calls != 0 {
		t.Error("engine must not be called for empty text")
	}
}

func TestSynthesizer_CancelAll(t *testing.T) {
	eng := &mockEngine{block: make(chan struct{})}
	s := NewSynthesizer(eng, t.TempDir())

	jobs := []*Job{
		s.Submit(0, "a", overlay.Voice{}),
		s.Submit(1, "b", overlay.Voice{}),
	}
	s.CancelAll()
	for _, j := range jobs {
		waitJob(t, j)
		if !errors.Is(j.Err(), context.Canceled) {
			t.Errorf("job %d: expected cancellation, got %v", j.OverlayID, j.Err())
		}
	}

	j := s.Submit(2, "c", overlay.Voice{})
	s.Cancel(2)
	waitJob(t, j)
	if !errors.Is(j.Err(), context.Canceled) {
		t.Errorf("Cancel(id) should cancel, got %v", j.Err())
	}
}

func TestSchemeScript(t *testing.T) {
	tests := []struct {
		voice    overlay.Voice
		contains []string
		excludes []string
	}{
		{
			overlay.Voice{Style: overlay.VoiceRobotic, Pitch: overlay.PitchNormal},
			[]string{"(voice_kal_diphone)"},
			[]string{"DuffInt"},
		},
		{
			overlay.Voice{Style: overlay.VoiceBritish, Pitch: overlay.PitchHigh},
			[]string{"(voice_rab_diphone)", "(start 300) (end 300)", "'Int_Method 'DuffInt"},
			nil,
		},
		{
			overlay.Voice{Style: overlay.VoiceRegional, Pitch: overlay.PitchLow},
			[]string{"(voice_akl_nz_jdt_diphone)", "(start 50) (end 50)"},
			nil,
		},
	}
	for _, tt := range tests {
		got := SchemeScript(tt.voice)
		for _, s := range tt.contains {
			if !strings.Contains(got, s) {
				t.Errorf("%s: script missing %q:\n%s", tt.voice, s, got)
			}
		}
		for _, s := range tt.excludes {
			if strings.Contains(got, s) {
				t.Errorf("%s: script should not contain %q", tt.voice, s)
			}
		}
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "text2wave")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestText2WaveEngine_Synthesize(t *testing.T) {
	// 参数顺序: -o out text -eval scm；把文本复制到输出以便校验
	bin := writeScript(t, `cp "$3" "$2"`)
	e := NewText2WaveEngine(bin)

	out := filepath.Join(t.TempDir(), "c0.wav")
	if err := e.Synthesize(context.Background(), "good evening", overlay.Voice{}, out); err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	data, _ := os.ReadFile(out)
	if string(data) != "good evening" {
		t.Errorf("unexpected output %q", data)
	}
	for _, ext := range []string{".txt", ".scm"} {
		if _, err := os.Stat(out + ext); !os.IsNotExist(err) {
			t.Errorf("%s helper file should be removed", ext)
		}
	}
}

func TestText2WaveEngine_Failure(t *testing.T) {
	bin := writeScript(t, `echo "no voice" >&2; exit 3`)
	e := NewText2WaveEngine(bin)

	err := e.Synthesize(context.Background(), "x", overlay.Voice{}, filepath.Join(t.TempDir(), "o.wav"))
	if err == nil || !strings.Contains(err.Error(), "no voice") {
		t.Errorf("expected error with stderr, got %v", err)
	}
}

func TestNewEngine(t *testing.T) {
	e, err := NewEngine(config.TTSConfig{Engine: "text2wave"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*Text2WaveEngine); !ok || e.Ext() != ".wav" {
		t.Errorf("expected text2wave engine, got %T", e)
	}

	e, err = NewEngine(config.TTSConfig{Engine: "edge", Edge: config.EdgeConfig{British: "en-GB-RyanNeural"}})
	if err != nil {
		t.Fatal(err)
	}
	edgeEngine, ok := e.(*EdgeEngine)
	if !ok || e.Ext() != ".mp3" {
		t.Fatalf("expected edge engine, got %T", e)
	}
	if edgeEngine.voiceName(overlay.VoiceBritish) != "en-GB-RyanNeural" {
		t.Error("british voice not mapped")
	}
	if edgeEngine.voiceName(overlay.VoiceRegional) != defaultEdgeVoice {
		t.Error("missing voice should fall back to default")
	}

	if _, err := NewEngine(config.TTSConfig{Engine: "tencent"}); err == nil {
		t.Error("tencent without credentials should fail")
	}
	if _, err := NewEngine(config.TTSConfig{Engine: "espeak"}); err == nil {
		t.Error("unknown engine should fail")
	}
	if e, _ := NewEngine(config.TTSConfig{Engine: "say"}); e.Ext() != ".aiff" {
		t.Error("say engine should write aiff")
	}
}
