package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/glebk/match-quiz/internal/codec"
	"github.com/glebk/match-quiz/internal/domain"
	"github.com/glebk/match-quiz/internal/pairing"
)

// SessionRepository implements domain.SessionStore using SQLite
type SessionRepository struct {
	db        *Database
	generator pairing.Generator
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *Database, generator pairing.Generator) *SessionRepository {
	return &SessionRepository{db: db, generator: generator}
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Create issues a fresh code and stores the session with its initiator
func (r *SessionRepository) Create(ctx context.Context, initiator domain.Participant) (*domain.Session, error) {
	const maxCollisions = 3

	var session *domain.Session
	for i := 0; i < maxCollisions; i++ {
		err := withRetry(ctx, "create session", func() error {
			var err error
			session, err = r.createOnce(ctx, initiator)
			return err
		})
		if isUniqueError(err) {
			// Another process inserted the same code between our read and write.
			continue
		}
		if err != nil {
			return nil, err
		}
		return session, nil
	}

	return nil, fmt.Errorf("failed to create session: %w", domain.ErrCodeSpaceExhausted)
}

func (r *SessionRepository) createOnce(ctx context.Context, initiator domain.Participant) (*domain.Session, error) {
	tx, err := r.db.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := r.codes(ctx, tx)
	if err != nil {
		return nil, err
	}

	code, err := r.generator.Generate(existing)
	if err != nil {
		return nil, fmt.Errorf("failed to issue code: %w", err)
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (code, created_at, updated_at) VALUES (?, ?, ?)`,
		code, now.Unix(), now.Unix(),
	); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if err := insertParticipant(ctx, tx, code, domain.SlotA, initiator, now); err != nil {
		return nil, err
	}

	session, err := r.load(ctx, tx, code)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit session: %w", err)
	}

	return session, nil
}

// Join stores the second participant
func (r *SessionRepository) Join(ctx context.Context, code string, joiner domain.Participant) (*domain.Session, error) {
	var session *domain.Session
	err := withRetry(ctx, "join session", func() error {
		var err error
		session, err = r.joinOnce(ctx, code, joiner)
		return err
	})
	return session, err
}

func (r *SessionRepository) joinOnce(ctx context.Context, code string, joiner domain.Participant) (*domain.Session, error) {
	tx, err := r.db.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	if err := touch(ctx, tx, code, now); err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO participants (code, slot, name, chat_id, current_index, joined_at)
		VALUES (?, ?, ?, ?, 0, ?)
		ON CONFLICT(code, slot) DO NOTHING
	`, code, domain.SlotB, joiner.Name, joiner.ChatID, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to join session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, domain.ErrAlreadyJoined
	}

	session, err := r.load(ctx, tx, code)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit join: %w", err)
	}

	return session, nil
}

// RecordAnswer advances the slot from questionIndex to questionIndex+1 and stores the answer.
// The UPDATE's WHERE clause is the compare-and-swap.
func (r *SessionRepository) RecordAnswer(ctx context.Context, code string, slot domain.Slot, questionIndex int, answer domain.Answer) (*domain.Session, error) {
	payload, err := codec.Marshal(answer)
	if err != nil {
		return nil, fmt.Errorf("failed to encode answer: %w", err)
	}

	var session *domain.Session
	err = withRetry(ctx, "record answer", func() error {
		var err error
		session, err = r.recordOnce(ctx, code, slot, questionIndex, payload)
		return err
	})
	return session, err
}

func (r *SessionRepository) recordOnce(ctx context.Context, code string, slot domain.Slot, questionIndex int, payload []byte) (*domain.Session, error) {
	tx, err := r.db.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE participants
		SET current_index = ?
		WHERE code = ? AND slot = ? AND current_index = ?
	`, questionIndex+1, code, slot, questionIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to advance progress: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		var current int
		err := tx.QueryRowContext(ctx,
			`SELECT current_index FROM participants WHERE code = ? AND slot = ?`,
			code, slot,
		).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read progress: %w", err)
		}
		return nil, &domain.ValidationError{
			QuestionIndex: questionIndex,
			Reason:        fmt.Sprintf("slot is at question %d", current),
			Err:           domain.ErrStaleIndex,
		}
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO answers (code, slot, question_index, answer, answered_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(code, slot, question_index) DO UPDATE SET answer = excluded.answer, answered_at = excluded.answered_at
	`, code, slot, questionIndex, payload, now.Unix()); err != nil {
		return nil, fmt.Errorf("failed to store answer: %w", err)
	}

	if err := touch(ctx, tx, code, now); err != nil {
		return nil, err
	}

	session, err := r.load(ctx, tx, code)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit answer: %w", err)
	}

	return session, nil
}

// Get retrieves a session with both participants and their answers
func (r *SessionRepository) Get(ctx context.Context, code string) (*domain.Session, error) {
	return r.load(ctx, r.db.GetDB(), code)
}

// DeleteIdle removes sessions whose last update is older than before
func (r *SessionRepository) DeleteIdle(ctx context.Context, before time.Time) (int, error) {
	var removed int64
	err := withRetry(ctx, "delete idle sessions", func() error {
		result, err := r.db.GetDB().ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, before.Unix())
		if err != nil {
			return fmt.Errorf("failed to delete idle sessions: %w", err)
		}
		removed, err = result.RowsAffected()
		return err
	})
	return int(removed), err
}

// Close closes the database
func (r *SessionRepository) Close() error {
	return r.db.Close()
}

func (r *SessionRepository) codes(ctx context.Context, q querier) (pairing.Codes, error) {
	rows, err := q.QueryContext(ctx, `SELECT code FROM sessions`)
	if err != nil {
		return nil, fmt.Errorf("failed to list codes: %w", err)
	}
	defer rows.Close()

	codes := pairing.Codes{}
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan code: %w", err)
		}
		codes[code] = struct{}{}
	}

	return codes, rows.Err()
}

func (r *SessionRepository) load(ctx context.Context, q querier, code string) (*domain.Session, error) {
	session := &domain.Session{Code: code}
	var createdAt, updatedAt int64

	err := q.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM sessions WHERE code = ?`, code,
	).Scan(&createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	session.CreatedAt = time.Unix(createdAt, 0)
	session.UpdatedAt = time.Unix(updatedAt, 0)

	rows, err := q.QueryContext(ctx, `
		SELECT slot, name, chat_id, current_index
		FROM participants
		WHERE code = ?
	`, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}

	foundA := false
	for rows.Next() {
		var slot domain.Slot
		p := domain.Participant{Answers: make(map[int]domain.Answer)}

		if err := rows.Scan(&slot, &p.Name, &p.ChatID, &p.CurrentIndex); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}

		switch slot {
		case domain.SlotA:
			session.A = p
			foundA = true
		case domain.SlotB:
			session.B = &p
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}
	if !foundA {
		return nil, fmt.Errorf("session %s has no initiator: %w", code, domain.ErrNotFound)
	}

	answerRows, err := q.QueryContext(ctx, `
		SELECT slot, question_index, answer
		FROM answers
		WHERE code = ?
		ORDER BY slot, question_index
	`, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get answers: %w", err)
	}
	defer answerRows.Close()

	for answerRows.Next() {
		var slot domain.Slot
		var idx int
		var payload []byte

		if err := answerRows.Scan(&slot, &idx, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan answer: %w", err)
		}

		var answer domain.Answer
		if err := codec.Unmarshal(payload, &answer); err != nil {
			return nil, fmt.Errorf("failed to decode answer %s/%s/%d: %w", code, slot, idx, err)
		}

		if p, ok := session.Participant(slot); ok {
			p.Answers[idx] = answer
		}
	}

	if err := answerRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate answers: %w", err)
	}

	return session, nil
}

func insertParticipant(ctx context.Context, tx *sql.Tx, code string, slot domain.Slot, p domain.Participant, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO participants (code, slot, name, chat_id, current_index, joined_at)
		VALUES (?, ?, ?, ?, 0, ?)
	`, code, slot, p.Name, p.ChatID, now.Unix())
	if err != nil {
		return fmt.Errorf("failed to add participant: %w", err)
	}
	return nil
}

// touch bumps updated_at and reports ErrNotFound for an unknown code
func touch(ctx context.Context, tx *sql.Tx, code string, now time.Time) error {
	result, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE code = ?`, now.Unix(), code)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
