package bot

import (
	"context"
	"fmt"

	"github.com/glebk/match-quiz/internal/domain"
	"github.com/glebk/match-quiz/internal/notify"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notify implements notify.Notifier by rendering n as a Telegram message
func (b *Bot) Notify(ctx context.Context, chatID int64, n notify.Notification) error {
	var msg tgbotapi.MessageConfig

	switch n.Kind {
	case notify.KindPrompt:
		msg = tgbotapi.NewMessage(chatID, questionText(n.Question, b.service.Questions().Len()))
		msg.ReplyMarkup = questionKeyboard(n.Code, n.Slot, n.Question)
	case notify.KindJoined:
		msg = tgbotapi.NewMessage(chatID, joinedText(n.Partner))
	case notify.KindWaiting:
		msg = tgbotapi.NewMessage(chatID, waitingText)
	case notify.KindReport:
		if n.Report == nil {
			return fmt.Errorf("report notification for %s has no report", n.Code)
		}
		msg = tgbotapi.NewMessage(chatID, reportText(n.Report))
	default:
		return fmt.Errorf("unknown notification kind %q", n.Kind)
	}

	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send %s to chat %d: %w", n.Kind, chatID, err)
	}
	return nil
}

// prompt sends q with its answer keyboard, logging failures
func (b *Bot) prompt(ctx context.Context, chatID int64, code string, slot domain.Slot, q domain.Question) {
	err := b.Notify(ctx, chatID, notify.Notification{
		Kind:     notify.KindPrompt,
		Code:     code,
		Slot:     slot,
		Question: q,
	})
	if err != nil {
		b.logger.Error("error sending question", "chat_id", chatID, "code", code, "question", q.Index, "error", err)
	}
}

// waiting tells a finished participant the partner is still answering
func (b *Bot) waiting(ctx context.Context, chatID int64, code string, slot domain.Slot) {
	err := b.Notify(ctx, chatID, notify.Notification{
		Kind: notify.KindWaiting,
		Code: code,
		Slot: slot,
	})
	if err != nil {
		b.logger.Error("error sending waiting message", "chat_id", chatID, "code", code, "error", err)
	}
}
