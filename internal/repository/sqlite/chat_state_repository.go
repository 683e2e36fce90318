package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/glebk/match-quiz/internal/domain"
)

// ChatStateRepository implements domain.ChatStateRepository using SQLite
type ChatStateRepository struct {
	db *Database
}

// NewChatStateRepository creates a new ChatStateRepository
func NewChatStateRepository(db *Database) *ChatStateRepository {
	return &ChatStateRepository{db: db}
}

// Get retrieves a chat's conversation state, or nil if the chat is unknown
func (r *ChatStateRepository) Get(ctx context.Context, chatID int64) (*domain.ChatState, error) {
	query := `
		SELECT chat_id, step, slot, code, updated_at
		FROM chat_states
		WHERE chat_id = ?
	`

	state := &domain.ChatState{}
	var updatedAt int64

	err := r.db.GetDB().QueryRowContext(ctx, query, chatID).Scan(
		&state.ChatID,
		&state.Step,
		&state.Slot,
		&state.Code,
		&updatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat state: %w", err)
	}

	state.UpdatedAt = time.Unix(updatedAt, 0)

	return state, nil
}

// Save creates or updates a chat's conversation state
func (r *ChatStateRepository) Save(ctx context.Context, state *domain.ChatState) error {
	query := `
		INSERT INTO chat_states (chat_id, step, slot, code, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			step = excluded.step,
			slot = excluded.slot,
			code = excluded.code,
			updated_at = excluded.updated_at
	`

	now := time.Now()
	err := withRetry(ctx, "save chat state", func() error {
		_, err := r.db.GetDB().ExecContext(ctx, query,
			state.ChatID,
			state.Step,
			state.Slot,
			state.Code,
			now.Unix(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save chat state: %w", err)
	}

	state.UpdatedAt = now

	return nil
}

// Delete removes a chat's conversation state
func (r *ChatStateRepository) Delete(ctx context.Context, chatID int64) error {
	_, err := r.db.GetDB().ExecContext(ctx, `DELETE FROM chat_states WHERE chat_id = ?`, chatID)
	if err != nil {
		return fmt.Errorf("failed to delete chat state: %w", err)
	}
	return nil
}

// ListIdle returns chat states last saved before the cutoff
func (r *ChatStateRepository) ListIdle(ctx context.Context, before time.Time) ([]domain.ChatState, error) {
	query := `
		SELECT chat_id, step, slot, code, updated_at
		FROM chat_states
		WHERE updated_at < ?
	`

	rows, err := r.db.GetDB().QueryContext(ctx, query, before.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to list idle chat states: %w", err)
	}
	defer rows.Close()

	var states []domain.ChatState
	for rows.Next() {
		var state domain.ChatState
		var updatedAt int64
		if err := rows.Scan(&state.ChatID, &state.Step, &state.Slot, &state.Code, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat state: %w", err)
		}
		state.UpdatedAt = time.Unix(updatedAt, 0)
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list idle chat states: %w", err)
	}

	return states, nil
}
