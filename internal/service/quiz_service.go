package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/glebk/match-quiz/internal/domain"
	"github.com/glebk/match-quiz/internal/matching"
	"github.com/glebk/match-quiz/internal/notify"
	"github.com/glebk/match-quiz/internal/pairing"
	"github.com/glebk/match-quiz/internal/progress"
)

// QuizService handles business logic for paired quiz sessions
type QuizService struct {
	store     domain.SessionStore
	questions *domain.QuestionSet
	notifier  notify.Notifier
	logger    *slog.Logger

	codeDigits int
	chats      domain.ChatStateRepository
}

// Option configures a QuizService
type Option func(*QuizService)

// WithCodeDigits sets the code width; codes of any other shape are not found
func WithCodeDigits(digits int) Option {
	return func(s *QuizService) {
		s.codeDigits = digits
	}
}

// WithChatStates lets ExpireIdle drop conversation states left pointing at expired sessions
func WithChatStates(chats domain.ChatStateRepository) Option {
	return func(s *QuizService) {
		s.chats = chats
	}
}

// SubmitResult describes the state after an accepted answer
type SubmitResult struct {
	Session *domain.Session
	Answer  domain.Answer

	// Next is the following question; HasNext is false once the slot is complete
	Next    domain.Question
	HasNext bool

	// BecameReady is true only for the write that completed the session
	BecameReady bool
	Report      *matching.Report
}

// NewQuizService creates a new QuizService
func NewQuizService(store domain.SessionStore, questions *domain.QuestionSet, notifier notify.Notifier, logger *slog.Logger, opts ...Option) *QuizService {
	if notifier == nil {
		notifier = notify.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &QuizService{
		store:      store,
		questions:  questions,
		notifier:   notifier,
		logger:     logger,
		codeDigits: pairing.DefaultDigits,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetNotifier replaces the notifier once the transport exists
func (s *QuizService) SetNotifier(n notify.Notifier) {
	if n == nil {
		n = notify.Discard
	}
	s.notifier = n
}

// Questions returns the question set every session walks through
func (s *QuizService) Questions() *domain.QuestionSet {
	return s.questions
}

// StartSession creates a session for the initiator and returns it with its code
func (s *QuizService) StartSession(ctx context.Context, name string, chatID int64) (*domain.Session, error) {
	session, err := s.store.Create(ctx, domain.NewParticipant(name, chatID))
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info("session started", "code", session.Code, "chat_id", chatID)
	return session, nil
}

// JoinSession puts the joiner into slot B of the session behind code
func (s *QuizService) JoinSession(ctx context.Context, code string, name string, chatID int64) (*domain.Session, error) {
	if err := s.checkCode(code); err != nil {
		return nil, err
	}

	session, err := s.store.Join(ctx, code, domain.NewParticipant(name, chatID))
	if err != nil {
		return nil, fmt.Errorf("failed to join session %s: %w", code, err)
	}

	s.logger.Info("session joined", "code", code, "chat_id", chatID)

	// Tell the initiator, unless it is the same chat playing both roles
	if session.A.ChatID != chatID {
		s.send(ctx, session.A.ChatID, notify.Notification{
			Kind:    notify.KindJoined,
			Code:    code,
			Slot:    domain.SlotA,
			Partner: session.B.Name,
		})
	}

	return session, nil
}

// SessionExists reports whether code resolves to a session
func (s *QuizService) SessionExists(ctx context.Context, code string) (bool, error) {
	if !pairing.Valid(code, s.codeDigits) {
		return false, nil
	}

	_, err := s.store.Get(ctx, code)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check session %s: %w", code, err)
	}
	return true, nil
}

// GetSession returns the session behind code
func (s *QuizService) GetSession(ctx context.Context, code string) (*domain.Session, error) {
	if err := s.checkCode(code); err != nil {
		return nil, err
	}

	session, err := s.store.Get(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", code, err)
	}
	return session, nil
}

// CurrentPrompt returns the question slot should answer next.
// The boolean is false when the slot has answered everything.
func (s *QuizService) CurrentPrompt(ctx context.Context, code string, slot domain.Slot) (domain.Question, bool, error) {
	session, err := s.GetSession(ctx, code)
	if err != nil {
		return domain.Question{}, false, err
	}

	p, ok := session.Participant(slot)
	if !ok {
		return domain.Question{}, false, fmt.Errorf("session %s slot %s: %w", code, slot, domain.ErrNotFound)
	}

	q, ok := progress.Next(*p, s.questions)
	return q, ok, nil
}

// SubmitAnswer validates raw against the slot's current question and records it.
// When the write completes the session both participants receive the report.
func (s *QuizService) SubmitAnswer(ctx context.Context, code string, slot domain.Slot, questionIndex int, raw progress.RawAnswer) (*SubmitResult, error) {
	session, err := s.GetSession(ctx, code)
	if err != nil {
		return nil, err
	}

	p, ok := session.Participant(slot)
	if !ok {
		return nil, fmt.Errorf("session %s slot %s: %w", code, slot, domain.ErrNotFound)
	}

	_, answer, err := progress.Submit(*p, s.questions, questionIndex, raw)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.RecordAnswer(ctx, code, slot, questionIndex, answer)
	if err != nil {
		if domain.IsValidation(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to record answer: %w", err)
	}

	result := &SubmitResult{
		Session: updated,
		Answer:  answer,
	}

	current, _ := updated.Participant(slot)
	result.Next, result.HasNext = progress.Next(*current, s.questions)

	total := s.questions.Len()
	if !result.HasNext && updated.State(total) == domain.StateReady {
		report, err := matching.Compute(updated, s.questions)
		if err != nil {
			return nil, fmt.Errorf("failed to compute report: %w", err)
		}
		result.BecameReady = true
		result.Report = report

		s.logger.Info("session ready", "code", code, "matches", report.Matches, "total", report.Total, "percent", report.Percent)
		s.notifyReport(ctx, updated, report)
	}

	return result, nil
}

// GetReport computes the report of a session where both participants finished
func (s *QuizService) GetReport(ctx context.Context, code string) (*matching.Report, error) {
	session, err := s.GetSession(ctx, code)
	if err != nil {
		return nil, err
	}

	report, err := matching.Compute(session, s.questions)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// ExpireIdle deletes sessions untouched for longer than ttl, then the idle
// chat states that no longer point at a live session
func (s *QuizService) ExpireIdle(ctx context.Context, ttl time.Duration) (int, error) {
	before := time.Now().Add(-ttl)

	removed, err := s.store.DeleteIdle(ctx, before)
	if err != nil {
		return removed, fmt.Errorf("failed to expire sessions: %w", err)
	}
	if removed > 0 {
		s.logger.Info("expired idle sessions", "count", removed, "ttl", ttl)
	}

	if s.chats != nil {
		forgotten, err := s.expireChats(ctx, before)
		if err != nil {
			return removed, fmt.Errorf("failed to expire chat states: %w", err)
		}
		if forgotten > 0 {
			s.logger.Info("expired idle chat states", "count", forgotten)
		}
	}

	return removed, nil
}

func (s *QuizService) expireChats(ctx context.Context, before time.Time) (int, error) {
	idle, err := s.chats.ListIdle(ctx, before)
	if err != nil {
		return 0, err
	}

	forgotten := 0
	for _, state := range idle {
		if state.Code != "" {
			exists, err := s.SessionExists(ctx, state.Code)
			if err != nil {
				return forgotten, err
			}
			if exists {
				continue
			}
		}

		if err := s.chats.Delete(ctx, state.ChatID); err != nil {
			return forgotten, err
		}
		forgotten++
	}
	return forgotten, nil
}

// RunExpiry calls ExpireIdle every interval until ctx is done
func (s *QuizService) RunExpiry(ctx context.Context, ttl, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ExpireIdle(ctx, ttl); err != nil && ctx.Err() == nil {
				s.logger.Error("error expiring sessions", "error", err)
			}
		}
	}
}

// notifyReport sends the report to both chats; a chat that played both roles gets it once
func (s *QuizService) notifyReport(ctx context.Context, session *domain.Session, report *matching.Report) {
	s.send(ctx, session.A.ChatID, notify.Notification{
		Kind:   notify.KindReport,
		Code:   session.Code,
		Slot:   domain.SlotA,
		Report: report,
	})

	if session.B.ChatID != session.A.ChatID {
		s.send(ctx, session.B.ChatID, notify.Notification{
			Kind:   notify.KindReport,
			Code:   session.Code,
			Slot:   domain.SlotB,
			Report: report,
		})
	}
}

// checkCode turns codes that could never have been issued into ErrNotFound
func (s *QuizService) checkCode(code string) error {
	if !pairing.Valid(code, s.codeDigits) {
		return fmt.Errorf("malformed code %q: %w", code, domain.ErrNotFound)
	}
	return nil
}

// send is best effort: failures are logged and never reach the caller
func (s *QuizService) send(ctx context.Context, chatID int64, n notify.Notification) {
	if err := s.notifier.Notify(ctx, chatID, n); err != nil {
		s.logger.Warn("error notifying participant", "chat_id", chatID, "kind", n.Kind, "code", n.Code, "error", err)
	}
}
