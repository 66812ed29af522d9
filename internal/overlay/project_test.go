package overlay

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSerialize_Format(t *testing.T) {
	c := NewCommentary("hello world", Voice{Style: VoiceBritish})
	c.ID = 0
	c.StartOffset = 10
	c.Volume = 80
	f := NewFileTrack("/music/bg.mp3")
	f.ID = 1
	f.StartOffset = 2.5
	f.Volume = 100

	got := Serialize("/videos/clip.avi", []Overlay{c, f})
	want := "/videos/clip.avi\n" +
		"C\t0\thello world\t10\t80\n" +
		"F\t/music/bg.mp3\t2.5\t100\n"
	if got != want {
		t.Errorf("Serialize mismatch\ngot:  %q\nwant: %q", got, want)
	}
}

func TestSerialize_EmptyVideo(t *testing.T) {
	got := Serialize("", nil)
	if got != "\n" {
		t.Errorf("expected single empty line, got %q", got)
	}
}

func TestRoundTrip(t *testing.T) {
	r := NewRegistry()
	r.Add(NewCommentary("first", Voice{}))
	id, _ := r.Add(NewFileTrack("/audio/track one.wav"))
	r.Update(id, func(o *Overlay) error {
		o.StartOffset = 3.25
		o.Volume = 35
		o.Preview = false
		o.Duration = 9
		o.DurationKnown = true
		return nil
	})
	r.Add(NewCommentary("", Voice{}))
	r.Remove(0)
	r.Add(NewCommentary("第三条解说", Voice{}))

	text := r.Serialize("/v.mp4")
	p, skipped, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(skipped) != 0 {
		t.Fatalf("unexpected parse errors: %v", skipped)
	}
	if p.VideoPath != "/v.mp4" {
		t.Errorf("VideoPath: got %q", p.VideoPath)
	}

	loaded := NewRegistry()
	loaded.Replace(p.Overlays)

	orig := r.List()
	got := loaded.List()
	if len(got) != len(orig) {
		t.Fatalf("expected %d overlays, got %d", len(orig), len(got))
	}
	for i := range orig {
		a, b := orig[i], got[i]
		if a.Kind != b.Kind || a.StartOffset != b.StartOffset || a.Volume != b.Volume {
			t.Errorf("overlay %d mismatch: %+v vs %+v", i, a, b)
		}
		if a.IsCommentary() && a.Text != b.Text {
			t.Errorf("overlay %d text: %q vs %q", i, a.Text, b.Text)
		}
		if !a.IsCommentary() && a.SourcePath != b.SourcePath {
			t.Errorf("overlay %d path: %q vs %q", i, a.SourcePath, b.SourcePath)
		}
		if a.IsCommentary() && a.ID != b.ID {
			t.Errorf("commentary %d should keep its position id, %d vs %d", i, a.ID, b.ID)
		}
	}
}

func TestParse_SkipsMalformedLines(t *testing.T) {
	text := strings.Join([]string{
		"/v.mp4",
		"C\t0\tok\t1.0\t100",
		"X\tbogus",
		"C\t1\tmissing volume\t2.0",
		"F\t/a.wav\tnot-a-number\t50",
		"F\t/a.wav\t-3\t50",
		"F\t/b.wav\t4\t101",
		"",
		"F\t/c.wav\t5.0\t60",
	}, "\n")

	p, skipped, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(p.Overlays) != 2 {
		t.Fatalf("expected 2 valid overlays, got %d", len(p.Overlays))
	}
	if len(skipped) != 5 {
		t.Fatalf("expected 5 skipped lines, got %d: %v", len(skipped), skipped)
	}
	wantLines := []int{3, 4, 5, 6, 7}
	for i, pe := range skipped {
		if pe.Line != wantLines[i] {
			t.Errorf("skipped[%d]: expected line %d, got %d", i, wantLines[i], pe.Line)
		}
	}
	if p.Overlays[0].StartOffset != 1 || p.Overlays[1].SourcePath != "/c.wav" {
		t.Errorf("unexpected overlays: %+v", p.Overlays)
	}
}

func TestParse_JavaStyleNumbers(t *testing.T) {
	p, _, err := Parse("\nC\t3\thi\t10.0\t100\n")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if p.VideoPath != "" {
		t.Errorf("expected empty video path, got %q", p.VideoPath)
	}
	if len(p.Overlays) != 1 || p.Overlays[0].StartOffset != 10 || p.Overlays[0].ID != 3 {
		t.Errorf("unexpected overlays: %+v", p.Overlays)
	}
	if !p.Overlays[0].Preview {
		t.Error("loaded overlays should default to preview enabled")
	}
}

func TestParse_BadHeader(t *testing.T) {
	for _, text := range []string{"", "C\t0\ttext\t0\t100\n"} {
		if _, _, err := Parse(text); !errors.Is(err, ErrBadHeader) {
			t.Errorf("Parse(%q): expected ErrBadHeader, got %v", text, err)
		}
	}
}

func TestParse_CRLF(t *testing.T) {
	p, skipped, err := Parse("/v.mp4\r\nF\t/a.wav\t0\t100\r\n")
	if err != nil || len(skipped) != 0 {
		t.Fatalf("Parse failed: %v %v", err, skipped)
	}
	if p.VideoPath != "/v.mp4" || p.Overlays[0].Volume != 100 {
		t.Errorf("CR should be stripped: %+v", p)
	}
}

func TestReadWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.vox")
	f := NewFileTrack("/a.wav")
	if err := WriteFile(path, "/v.mp4", []Overlay{f}); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	p, _, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(p.Overlays) != 1 {
		t.Errorf("expected 1 overlay, got %d", len(p.Overlays))
	}

	if _, _, err := ReadFile(filepath.Join(t.TempDir(), "missing")); err == nil || errors.Is(err, ErrBadHeader) {
		t.Errorf("expected IO error for missing file, got %v", err)
	}
	_ = os.Remove(path)
}

func TestOverlay_Helpers(t *testing.T) {
	o := NewFileTrack("/dir/song.mp3")
	o.Volume = 25
	if o.VolumeFraction() != 0.25 {
		t.Errorf("VolumeFraction: got %v", o.VolumeFraction())
	}
	if o.Name() != "song.mp3" {
		t.Errorf("Name: got %q", o.Name())
	}

	c := NewCommentary("x", Voice{})
	c.ID = 7
	if c.Name() != "commentary7" {
		t.Errorf("Name for unsynthesized commentary: got %q", c.Name())
	}

	c.StartOffset = 50
	if c.ExceedsVideo(55) {
		t.Error("unknown duration should never exceed")
	}
	c.Duration, c.DurationKnown = 10, true
	if !c.ExceedsVideo(55) {
		t.Error("50+10 should exceed a 55s video")
	}
}

func TestParseVoice(t *testing.T) {
	s, err := ParseVoiceStyle("british")
	if err != nil || s != VoiceBritish {
		t.Errorf("ParseVoiceStyle: got %v, %v", s, err)
	}
	if _, err := ParseVoiceStyle("opera"); err == nil {
		t.Error("expected error for unknown style")
	}
	p, err := ParsePitch("HIGH")
	if err != nil || p != PitchHigh {
		t.Errorf("ParsePitch: got %v, %v", p, err)
	}
	if VoiceStyle(9).String() != "Unknown" || Pitch(-1).String() != "Unknown" {
		t.Error("out-of-range values should stringify as Unknown")
	}
}
