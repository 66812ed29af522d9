package clock

import (
	"sync"
	"testing"
	"time"
)

type fakeTime struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeTime) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeTime) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestWall(total float64) (*Wall, *fakeTime) {
	ft := &fakeTime{now: time.Unix(1000, 0)}
	w := NewWall(total)
	w.SetNow(ft.Now)
	return w, ft
}

func TestWall_PlayAdvances(t *testing.T) {
	w, ft := newTestWall(60)

	if w.IsPlaying() || w.Position() != 0 {
		t.Fatal("new clock should be paused at 0")
	}
	w.Play()
	ft.Advance(2500 * time.Millisecond)
	if got := w.Position(); got != 2.5 {
		t.Errorf("expected 2.5, got %v", got)
	}

	w.Pause()
	ft.Advance(10 * time.Second)
	if got := w.Position(); got != 2.5 {
		t.Errorf("paused clock must not advance, got %v", got)
	}
}

func TestWall_SeekWhilePlaying(t *testing.T) {
	w, ft := newTestWall(60)
	w.Play()
	ft.Advance(3 * time.Second)

	w.Seek(15)
	if got := w.Position(); got != 15 {
		t.Errorf("expected 15 right after seek, got %v", got)
	}
	ft.Advance(time.Second)
	if got := w.Position(); got != 16 {
		t.Errorf("expected 16, got %v", got)
	}
}

func TestWall_Clamping(t *testing.T) {
	w, ft := newTestWall(10)

	w.Seek(-4)
	if w.Position() != 0 {
		t.Errorf("seek below zero should clamp, got %v", w.Position())
	}
	w.Seek(99)
	if w.Position() != 10 {
		t.Errorf("seek past end should clamp, got %v", w.Position())
	}

	w.Seek(8)
	w.Play()
	ft.Advance(5 * time.Second)
	if w.Position() != 10 {
		t.Errorf("position must not exceed total, got %v", w.Position())
	}
}

func TestWall_Stop(t *testing.T) {
	w, ft := newTestWall(60)
	w.Play()
	ft.Advance(7 * time.Second)
	w.Stop()

	if w.IsPlaying() || w.Position() != 0 {
		t.Errorf("Stop should pause at 0, playing=%v pos=%v", w.IsPlaying(), w.Position())
	}
}

func TestWall_TotalAndMute(t *testing.T) {
	w := NewWall(0)
	w.SetTotalDuration(42)
	if w.TotalDuration() != 42 {
		t.Errorf("expected 42, got %v", w.TotalDuration())
	}

	var _ Muter = w
	w.SetMuted(true)
	if !w.Muted() {
		t.Error("expected muted")
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "00:00:00"},
		{59.9, "00:00:59"},
		{61, "00:01:01"},
		{3725.5, "01:02:05"},
		{-3, "00:00:00"},
	}
	for _, tt := range tests {
		if got := Format(tt.in); got != tt.want {
			t.Errorf("Format(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
