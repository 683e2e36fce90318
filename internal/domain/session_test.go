package domain

import "testing"

func TestSessionState(t *testing.T) {
	s := &Session{Code: "1234", A: NewParticipant("Ann", 1)}

	if got := s.State(2); got != StateOpen {
		t.Errorf("Expected %s, got %s", StateOpen, got)
	}

	b := NewParticipant("Bob", 2)
	s.B = &b
	if got := s.State(2); got != StatePaired {
		t.Errorf("Expected %s, got %s", StatePaired, got)
	}

	s.A.CurrentIndex = 2
	if got := s.State(2); got != StatePaired {
		t.Errorf("Expected %s with one side complete, got %s", StatePaired, got)
	}

	s.B.CurrentIndex = 2
	if got := s.State(2); got != StateReady {
		t.Errorf("Expected %s, got %s", StateReady, got)
	}
}

func TestNewParticipantDefaultName(t *testing.T) {
	if p := NewParticipant("   ", 1); p.Name != DefaultName {
		t.Errorf("Expected placeholder name, got %q", p.Name)
	}
	if p := NewParticipant(" Ann ", 1); p.Name != "Ann" {
		t.Errorf("Expected trimmed name, got %q", p.Name)
	}
}

func TestSessionCloneIsDeep(t *testing.T) {
	b := NewParticipant("Bob", 2)
	s := &Session{Code: "1234", A: NewParticipant("Ann", 1), B: &b}
	s.A.Answers[0] = SingleAnswer(1)

	c := s.Clone()
	c.A.Answers[0] = SingleAnswer(0)
	c.B.Name = "Eve"

	if s.A.Answers[0].Index() != 1 {
		t.Error("Clone shares the answers map")
	}
	if s.B.Name != "Bob" {
		t.Error("Clone shares slot B")
	}
}

func TestSlotOf(t *testing.T) {
	b := NewParticipant("Bob", 20)
	s := &Session{A: NewParticipant("Ann", 10), B: &b}

	if slot, ok := s.SlotOf(20); !ok || slot != SlotB {
		t.Errorf("Expected slot b, got %q %v", slot, ok)
	}
	if _, ok := s.SlotOf(30); ok {
		t.Error("Expected unknown chat to have no slot")
	}
}
