// Package filestore keeps each session in its own CBOR file under a data directory.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/glebk/match-quiz/internal/codec"
	"github.com/glebk/match-quiz/internal/domain"
	"github.com/glebk/match-quiz/internal/pairing"
)

const fileExt = ".cbor"

type participantRecord struct {
	Name         string                `cbor:"name"`
	ChatID       int64                 `cbor:"chat_id"`
	CurrentIndex int                   `cbor:"current_index"`
	Answers      map[int]domain.Answer `cbor:"answers"`
}

type sessionRecord struct {
	Code      string             `cbor:"code"`
	A         participantRecord  `cbor:"a"`
	B         *participantRecord `cbor:"b,omitempty"`
	CreatedAt int64              `cbor:"created_at"`
	UpdatedAt int64              `cbor:"updated_at"`
}

// SessionStore implements domain.SessionStore on the filesystem.
// Writes go to a temp file that is renamed over the session file.
type SessionStore struct {
	dir       string
	generator pairing.Generator

	createMu sync.Mutex
	locksMu  sync.Mutex
	locks    map[string]*codeLock
}

// codeLock serialises access to one session file. The entry lives in the
// map only while someone holds or waits for it.
type codeLock struct {
	mu   sync.Mutex
	refs int
}

// NewSessionStore creates the data directory if needed
func NewSessionStore(dir string, generator pairing.Generator) (*SessionStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &SessionStore{
		dir:       dir,
		generator: generator,
		locks:     make(map[string]*codeLock),
	}, nil
}

func (s *SessionStore) lock(code string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[code]
	if !ok {
		l = &codeLock{}
		s.locks[code] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, code)
		}
		s.locksMu.Unlock()
	}
}

// validCode accepts plain decimal codes only; anything else never touches the filesystem
func validCode(code string) bool {
	return code != "" && pairing.Valid(code, len(code))
}

func (s *SessionStore) path(code string) string {
	return filepath.Join(s.dir, code+fileExt)
}

// Create issues a code not used by any session file and writes the session
func (s *SessionStore) Create(ctx context.Context, initiator domain.Participant) (*domain.Session, error) {
	s.createMu.Lock()
	defer s.createMu.Unlock()

	existing, err := s.codes()
	if err != nil {
		return nil, err
	}

	code, err := s.generator.Generate(existing)
	if err != nil {
		return nil, fmt.Errorf("failed to issue code: %w", err)
	}

	unlock := s.lock(code)
	defer unlock()

	now := time.Now()
	a := initiator.Clone()
	a.CurrentIndex = 0
	session := &domain.Session{
		Code:      code,
		A:         a,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.write(session); err != nil {
		return nil, err
	}
	return session.Clone(), nil
}

// Join fills slot B
func (s *SessionStore) Join(ctx context.Context, code string, joiner domain.Participant) (*domain.Session, error) {
	return s.update(code, func(session *domain.Session) error {
		if session.B != nil {
			return domain.ErrAlreadyJoined
		}
		b := joiner.Clone()
		b.CurrentIndex = 0
		session.B = &b
		return nil
	})
}

// RecordAnswer applies the answer only if the slot is still at questionIndex
func (s *SessionStore) RecordAnswer(ctx context.Context, code string, slot domain.Slot, questionIndex int, answer domain.Answer) (*domain.Session, error) {
	return s.update(code, func(session *domain.Session) error {
		p, ok := session.Participant(slot)
		if !ok {
			return fmt.Errorf("slot %s: %w", slot, domain.ErrNotFound)
		}
		if p.CurrentIndex != questionIndex {
			return &domain.ValidationError{
				QuestionIndex: questionIndex,
				Reason:        fmt.Sprintf("slot is at question %d", p.CurrentIndex),
				Err:           domain.ErrStaleIndex,
			}
		}
		p.Answers[questionIndex] = answer.Clone()
		p.CurrentIndex = questionIndex + 1
		return nil
	})
}

// Get reads the session file
func (s *SessionStore) Get(ctx context.Context, code string) (*domain.Session, error) {
	if !validCode(code) {
		return nil, domain.ErrNotFound
	}

	unlock := s.lock(code)
	defer unlock()

	return s.read(code)
}

// DeleteIdle removes session files not updated since before
func (s *SessionStore) DeleteIdle(ctx context.Context, before time.Time) (int, error) {
	existing, err := s.codes()
	if err != nil {
		return 0, err
	}

	removed := 0
	for code := range existing {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		unlock := s.lock(code)
		session, err := s.read(code)
		if err == nil && session.UpdatedAt.Before(before) {
			err = os.Remove(s.path(code))
			if err == nil {
				removed++
			}
		}
		unlock()

		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return removed, fmt.Errorf("failed to expire session %s: %w", code, err)
		}
	}

	return removed, nil
}

// Close is a no-op
func (s *SessionStore) Close() error {
	return nil
}

// update is the read-modify-write primitive; fn's error aborts without writing
func (s *SessionStore) update(code string, fn func(*domain.Session) error) (*domain.Session, error) {
	if !validCode(code) {
		return nil, domain.ErrNotFound
	}

	unlock := s.lock(code)
	defer unlock()

	session, err := s.read(code)
	if err != nil {
		return nil, err
	}

	if err := fn(session); err != nil {
		return nil, err
	}
	session.UpdatedAt = time.Now()

	if err := s.write(session); err != nil {
		return nil, err
	}
	return session.Clone(), nil
}

func (s *SessionStore) codes() (pairing.Codes, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	codes := pairing.Codes{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		if code := strings.TrimSuffix(name, fileExt); validCode(code) {
			codes[code] = struct{}{}
		}
	}
	return codes, nil
}

func (s *SessionStore) read(code string) (*domain.Session, error) {
	data, err := os.ReadFile(s.path(code))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", code, err)
	}

	var rec sessionRecord
	if err := codec.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", code, err)
	}

	session := &domain.Session{
		Code:      rec.Code,
		A:         rec.A.participant(),
		CreatedAt: time.Unix(0, rec.CreatedAt),
		UpdatedAt: time.Unix(0, rec.UpdatedAt),
	}
	if rec.B != nil {
		b := rec.B.participant()
		session.B = &b
	}
	return session, nil
}

func (s *SessionStore) write(session *domain.Session) error {
	rec := sessionRecord{
		Code:      session.Code,
		A:         newParticipantRecord(session.A),
		CreatedAt: session.CreatedAt.UnixNano(),
		UpdatedAt: session.UpdatedAt.UnixNano(),
	}
	if session.B != nil {
		b := newParticipantRecord(*session.B)
		rec.B = &b
	}

	data, err := codec.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", session.Code, err)
	}

	tmp, err := os.CreateTemp(s.dir, session.Code+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write session %s: %w", session.Code, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync session %s: %w", session.Code, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close session %s: %w", session.Code, err)
	}

	if err := os.Rename(tmpName, s.path(session.Code)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace session %s: %w", session.Code, err)
	}
	return nil
}

func newParticipantRecord(p domain.Participant) participantRecord {
	c := p.Clone()
	return participantRecord{
		Name:         c.Name,
		ChatID:       c.ChatID,
		CurrentIndex: c.CurrentIndex,
		Answers:      c.Answers,
	}
}

func (r participantRecord) participant() domain.Participant {
	answers := r.Answers
	if answers == nil {
		answers = make(map[int]domain.Answer)
	}
	return domain.Participant{
		Name:         r.Name,
		ChatID:       r.ChatID,
		CurrentIndex: r.CurrentIndex,
		Answers:      answers,
	}
}
