package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultName replaces an empty participant name
const DefaultName = "Без имени"

// Slot identifies a participant position inside a session
type Slot string

const (
	SlotA Slot = "a" // initiator, owns the code
	SlotB Slot = "b" // joiner
)

// ParseSlot validates a slot coming from callback data or URLs
func ParseSlot(raw string) (Slot, error) {
	switch Slot(raw) {
	case SlotA, SlotB:
		return Slot(raw), nil
	default:
		return "", fmt.Errorf("unknown slot %q", raw)
	}
}

// Other returns the partner's slot
func (s Slot) Other() Slot {
	if s == SlotA {
		return SlotB
	}
	return SlotA
}

// SessionState is the derived lifecycle of a session
type SessionState string

const (
	StateOpen   SessionState = "open"   // only the initiator is present
	StatePaired SessionState = "paired" // both present, not both complete
	StateReady  SessionState = "ready"  // both complete
)

// Participant holds one slot's name, chat and recorded answers
type Participant struct {
	Name         string
	ChatID       int64
	Answers      map[int]Answer
	CurrentIndex int
}

// NewParticipant trims the name and applies the placeholder
func NewParticipant(name string, chatID int64) Participant {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}
	return Participant{
		Name:    name,
		ChatID:  chatID,
		Answers: make(map[int]Answer),
	}
}

// Completed reports whether every question of a set of size total was answered
func (p Participant) Completed(total int) bool {
	return p.CurrentIndex >= total
}

// Clone returns a deep copy of the participant
func (p Participant) Clone() Participant {
	out := p
	out.Answers = make(map[int]Answer, len(p.Answers))
	for idx, a := range p.Answers {
		out.Answers[idx] = a.Clone()
	}
	return out
}

// Session represents one pairing between an initiator and an optional joiner
type Session struct {
	Code      string
	A         Participant
	B         *Participant
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Participant returns the participant occupying slot, if any
func (s *Session) Participant(slot Slot) (*Participant, bool) {
	switch slot {
	case SlotA:
		return &s.A, true
	case SlotB:
		return s.B, s.B != nil
	default:
		return nil, false
	}
}

// SlotOf finds which slot a chat occupies
func (s *Session) SlotOf(chatID int64) (Slot, bool) {
	if s.A.ChatID == chatID {
		return SlotA, true
	}
	if s.B != nil && s.B.ChatID == chatID {
		return SlotB, true
	}
	return "", false
}

// State derives the lifecycle state for a question set of size total
func (s *Session) State(total int) SessionState {
	if s.B == nil {
		return StateOpen
	}
	if s.A.Completed(total) && s.B.Completed(total) {
		return StateReady
	}
	return StatePaired
}

// Clone returns a deep copy so callers never share a store's instance
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.A = s.A.Clone()
	if s.B != nil {
		b := s.B.Clone()
		out.B = &b
	}
	return &out
}

// SessionStore persists sessions keyed by pairing code.
// Every mutating call is durable before it returns.
type SessionStore interface {
	// Create issues a fresh code and stores a session holding only the initiator.
	Create(ctx context.Context, initiator Participant) (*Session, error)

	// Join fills slot B. Returns ErrNotFound or ErrAlreadyJoined.
	Join(ctx context.Context, code string, joiner Participant) (*Session, error)

	// RecordAnswer stores answer at questionIndex and advances the slot, but only
	// if the slot's current index still equals questionIndex. A mismatch returns a
	// *ValidationError wrapping ErrStaleIndex and changes nothing.
	RecordAnswer(ctx context.Context, code string, slot Slot, questionIndex int, answer Answer) (*Session, error)

	// Get returns the session or ErrNotFound.
	Get(ctx context.Context, code string) (*Session, error)

	// DeleteIdle removes sessions not updated since before.
	DeleteIdle(ctx context.Context, before time.Time) (int, error)

	Close() error
}
