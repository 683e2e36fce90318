package memory

import (
	"context"
	"sync"
	"time"

	"github.com/glebk/match-quiz/internal/domain"
)

// ChatStateRepository implements domain.ChatStateRepository in memory
type ChatStateRepository struct {
	mu     sync.RWMutex
	states map[int64]domain.ChatState
}

// NewChatStateRepository creates an empty repository
func NewChatStateRepository() *ChatStateRepository {
	return &ChatStateRepository{states: make(map[int64]domain.ChatState)}
}

// Get returns the chat's state, or nil if the chat is unknown
func (r *ChatStateRepository) Get(ctx context.Context, chatID int64) (*domain.ChatState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.states[chatID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

// Save creates or replaces the chat's state
func (r *ChatStateRepository) Save(ctx context.Context, state *domain.ChatState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state.UpdatedAt = time.Now()
	r.states[state.ChatID] = *state
	return nil
}

// Delete forgets the chat
func (r *ChatStateRepository) Delete(ctx context.Context, chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.states, chatID)
	return nil
}

// ListIdle returns the states saved before the cutoff
func (r *ChatStateRepository) ListIdle(ctx context.Context, before time.Time) ([]domain.ChatState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var idle []domain.ChatState
	for _, state := range r.states {
		if state.UpdatedAt.Before(before) {
			idle = append(idle, state)
		}
	}
	return idle, nil
}
