// Package notify defines how the quiz service reaches participants.
package notify

import (
	"context"
	"sync"

	"github.com/glebk/match-quiz/internal/domain"
	"github.com/glebk/match-quiz/internal/matching"
)

// Kind tells the transport what to render
type Kind string

const (
	KindPrompt  Kind = "prompt"  // ask Question
	KindJoined  Kind = "joined"  // Partner entered the code
	KindWaiting Kind = "waiting" // participant finished, partner has not
	KindReport  Kind = "report"  // both finished, Report is set
)

// Notification is a transport-neutral message for one chat
type Notification struct {
	Kind     Kind
	Code     string
	Slot     domain.Slot
	Partner  string
	Question domain.Question
	Report   *matching.Report
}

// Notifier delivers notifications to a chat
type Notifier interface {
	Notify(ctx context.Context, chatID int64, n Notification) error
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, chatID int64, n Notification) error

// Notify implements Notifier
func (f NotifierFunc) Notify(ctx context.Context, chatID int64, n Notification) error {
	return f(ctx, chatID, n)
}

// Discard drops every notification
var Discard Notifier = NotifierFunc(func(context.Context, int64, Notification) error {
	return nil
})

// Delivery is one notification captured by a Recorder
type Delivery struct {
	ChatID       int64
	Notification Notification
}

// Recorder keeps every notification it receives
type Recorder struct {
	mu         sync.Mutex
	deliveries []Delivery
}

// Notify implements Notifier
func (r *Recorder) Notify(ctx context.Context, chatID int64, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, Delivery{ChatID: chatID, Notification: n})
	return nil
}

// Deliveries returns a snapshot of what was recorded
func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Delivery, len(r.deliveries))
	copy(out, r.deliveries)
	return out
}

// Of returns the recorded notifications of kind for chatID
func (r *Recorder) Of(chatID int64, kind Kind) []Notification {
	var out []Notification
	for _, d := range r.Deliveries() {
		if d.ChatID == chatID && d.Notification.Kind == kind {
			out = append(out, d.Notification)
		}
	}
	return out
}
