package domain

import (
	"context"
	"time"
)

// ChatStep is where a chat is in the bot conversation
type ChatStep string

const (
	StepIdle      ChatStep = "idle"
	StepChoosing  ChatStep = "choosing"   // picked nothing yet
	StepAwaitCode ChatStep = "await_code" // second participant types the code
	StepAwaitName ChatStep = "await_name"
	StepQuiz      ChatStep = "quiz"
)

// ChatState is the transport's explicit conversation state for one chat
type ChatState struct {
	ChatID    int64
	Step      ChatStep
	Slot      Slot // SlotA for the first participant, SlotB for the second
	Code      string
	UpdatedAt time.Time
}

// ChatStateRepository stores conversation state per chat
type ChatStateRepository interface {
	Get(ctx context.Context, chatID int64) (*ChatState, error)
	Save(ctx context.Context, state *ChatState) error
	Delete(ctx context.Context, chatID int64) error
	// ListIdle returns states last saved before the cutoff
	ListIdle(ctx context.Context, before time.Time) ([]ChatState, error)
}
