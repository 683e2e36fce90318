// Package memory keeps sessions and chat state in process memory.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/glebk/match-quiz/internal/domain"
	"github.com/glebk/match-quiz/internal/pairing"
)

// SessionStore implements domain.SessionStore with a mutex-guarded map.
// Sessions go in and come out as clones, so no caller can mutate stored state.
type SessionStore struct {
	mu        sync.Mutex
	sessions  map[string]*domain.Session
	generator pairing.Generator
	now       func() time.Time
}

// NewSessionStore creates an empty store issuing codes with generator
func NewSessionStore(generator pairing.Generator) *SessionStore {
	return &SessionStore{
		sessions:  make(map[string]*domain.Session),
		generator: generator,
		now:       time.Now,
	}
}

// codes exposes the session map as a pairing.CodeSet
type codes map[string]*domain.Session

func (c codes) Has(code string) bool {
	_, ok := c[code]
	return ok
}

func (c codes) Len() int {
	return len(c)
}

// Create issues a code and stores a session holding only the initiator
func (s *SessionStore) Create(ctx context.Context, initiator domain.Participant) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := s.generator.Generate(codes(s.sessions))
	if err != nil {
		return nil, fmt.Errorf("failed to issue code: %w", err)
	}

	now := s.now()
	session := &domain.Session{
		Code:      code,
		A:         initiator.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	session.A.CurrentIndex = 0
	s.sessions[code] = session

	return session.Clone(), nil
}

// Join fills slot B of an existing session
func (s *SessionStore) Join(ctx context.Context, code string, joiner domain.Participant) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if session.B != nil {
		return nil, domain.ErrAlreadyJoined
	}

	b := joiner.Clone()
	b.CurrentIndex = 0
	session.B = &b
	session.UpdatedAt = s.now()

	return session.Clone(), nil
}

// RecordAnswer applies the answer only if the slot is still at questionIndex
func (s *SessionStore) RecordAnswer(ctx context.Context, code string, slot domain.Slot, questionIndex int, answer domain.Answer) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[code]
	if !ok {
		return nil, domain.ErrNotFound
	}

	p, ok := session.Participant(slot)
	if !ok {
		return nil, fmt.Errorf("slot %s: %w", slot, domain.ErrNotFound)
	}

	if p.CurrentIndex != questionIndex {
		return nil, &domain.ValidationError{
			QuestionIndex: questionIndex,
			Reason:        fmt.Sprintf("slot is at question %d", p.CurrentIndex),
			Err:           domain.ErrStaleIndex,
		}
	}

	if p.Answers == nil {
		p.Answers = make(map[int]domain.Answer)
	}
	p.Answers[questionIndex] = answer.Clone()
	p.CurrentIndex = questionIndex + 1
	session.UpdatedAt = s.now()

	return session.Clone(), nil
}

// Get returns a copy of the session
func (s *SessionStore) Get(ctx context.Context, code string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return session.Clone(), nil
}

// DeleteIdle drops sessions not updated since before
func (s *SessionStore) DeleteIdle(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for code, session := range s.sessions {
		if session.UpdatedAt.Before(before) {
			delete(s.sessions, code)
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op
func (s *SessionStore) Close() error {
	return nil
}
