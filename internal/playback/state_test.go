package playback

import "testing"

func TestNewStateMachine_InitialStateIsIdle(t *testing.T) {
	sm := NewStateMachine()
	if sm.Current() != StateIdle {
		t.Fatalf("expected initial state Idle, got %s", sm.Current())
	}
}

func TestStateMachine_ValidTransitions(t *testing.T) {
	tests := []struct {
		from, to State
	}{
		{StateIdle, StatePlaying},
		{StateIdle, StateSkipping},
		{StatePlaying, StateSkipping},
		{StateSkipping, StatePlaying},
		{StatePlaying, StateIdle},
		{StateSkipping, StateIdle},
	}

	for _, tt := range tests {
		sm := NewStateMachine()
		advanceTo(t, sm, tt.from)

		if !sm.Transition(tt.to) {
			t.Errorf("transition %s → %s should be valid", tt.from, tt.to)
		}
		if sm.Current() != tt.to {
			t.Errorf("expected state %s, got %s", tt.to, sm.Current())
		}
	}
}

func TestStateMachine_InvalidTransitions(t *testing.T) {
	tests := []struct {
		from, to State
	}{
		{StatePlaying, StatePlaying},
		{StateSkipping, StateSkipping},
	}

	for _, tt := range tests {
		sm := NewStateMachine()
		advanceTo(t, sm, tt.from)

		if sm.Transition(tt.to) {
			t.Errorf("transition %s → %s should be invalid", tt.from, tt.to)
		}
		if sm.Current() != tt.from {
			t.Errorf("state should remain %s after invalid transition, got %s", tt.from, sm.Current())
		}
	}
}

func TestStateMachine_ForceIdle(t *testing.T) {
	for _, s := range []State{StateIdle, StatePlaying, StateSkipping} {
		sm := NewStateMachine()
		advanceTo(t, sm, s)

		sm.ForceIdle()
		if sm.Current() != StateIdle {
			t.Errorf("ForceIdle from %s: expected Idle, got %s", s, sm.Current())
		}
	}
}

func TestStateMachine_OnChangeCallback(t *testing.T) {
	sm := NewStateMachine()

	var calledFrom, calledTo State
	callCount := 0
	sm.SetOnChange(func(from, to State) {
		calledFrom = from
		calledTo = to
		callCount++
	})

	sm.Transition(StatePlaying)
	if callCount != 1 {
		t.Fatalf("expected onChange called once, got %d", callCount)
	}
	if calledFrom != StateIdle || calledTo != StatePlaying {
		t.Errorf("expected callback with Idle→Playing, got %s→%s", calledFrom, calledTo)
	}

	// Idle → Idle 合法但不触发回调
	sm.Transition(StateIdle)
	sm.Transition(StateIdle)
	if callCount != 2 {
		t.Errorf("expected 2 callbacks, got %d", callCount)
	}
}

func TestStateMachine_ForceIdleNoCallbackWhenAlreadyIdle(t *testing.T) {
	sm := NewStateMachine()

	callCount := 0
	sm.SetOnChange(func(from, to State) {
		callCount++
	})

	sm.ForceIdle()
	if callCount != 0 {
		t.Errorf("expected no onChange when ForceIdle from Idle, got %d calls", callCount)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateIdle, "Idle"},
		{StatePlaying, "Playing"},
		{StateSkipping, "Skipping"},
		{State(99), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func advanceTo(t *testing.T, sm *StateMachine, target State) {
	t.Helper()
	if target == StateIdle {
		return
	}
	if !sm.Transition(target) {
		t.Fatalf("failed to advance to %s", target)
	}
}
