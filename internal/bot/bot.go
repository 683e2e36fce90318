package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/glebk/match-quiz/internal/config"
	"github.com/glebk/match-quiz/internal/domain"
	"github.com/glebk/match-quiz/internal/service"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sender is the part of *tgbotapi.BotAPI the handlers use
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot represents the Telegram bot
type Bot struct {
	api      sender
	client   *tgbotapi.BotAPI
	service  *service.QuizService
	chats    domain.ChatStateRepository
	config   *config.Config
	username string
	logger   *slog.Logger

	// handlers tracks in-flight updates so shutdown can wait for them
	handlers sync.WaitGroup
}

// New creates a new Bot instance
func New(token string, svc *service.QuizService, chats domain.ChatStateRepository, cfg *config.Config, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info("authorized on account", "username", api.Self.UserName)

	b := newBot(api, api.Self.UserName, svc, chats, cfg, logger)
	b.client = api
	return b, nil
}

func newBot(api sender, username string, svc *service.QuizService, chats domain.ChatStateRepository, cfg *config.Config, logger *slog.Logger) *Bot {
	return &Bot{
		api:      api,
		service:  svc,
		chats:    chats,
		config:   cfg,
		username: username,
		logger:   logger,
	}
}

// Start polls Telegram for updates until ctx is done
func (b *Bot) Start(ctx context.Context) error {
	if b.client == nil {
		return fmt.Errorf("polling needs a telegram client")
	}

	// A leftover webhook makes getUpdates fail
	if _, err := b.client.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.client.GetUpdatesChan(u)
	defer b.client.StopReceivingUpdates()

	// Handlers finish their work even after ctx is cancelled
	handlerCtx := context.WithoutCancel(ctx)
	defer b.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.dispatch(handlerCtx, update)
		}
	}
}

// dispatch handles update on its own goroutine and tracks it for Wait
func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	b.handlers.Add(1)
	go func() {
		defer b.handlers.Done()
		b.HandleUpdate(ctx, update)
	}()
}

// Wait blocks until every dispatched update has been handled
func (b *Bot) Wait() {
	b.handlers.Wait()
}

// SetWebhook tells Telegram to post updates to url, dropping anything queued
func (b *Bot) SetWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	wh.DropPendingUpdates = true

	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}

	b.logger.Info("webhook set", "url", url)
	return nil
}

// DeleteWebhook switches Telegram back to getUpdates delivery
func (b *Bot) DeleteWebhook() error {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return nil
}

// HandleUpdate dispatches a single update; safe to call from many goroutines
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic handling update", "update_id", update.UpdateID, "panic", r)
		}
	}()

	if update.Message != nil {
		b.handleMessage(ctx, update.Message)
	} else if update.CallbackQuery != nil {
		b.handleCallbackQuery(ctx, update.CallbackQuery)
	}
}

// DeepLink is the t.me link that opens the bot and joins code
func (b *Bot) DeepLink(code string) string {
	if b.username == "" {
		return ""
	}
	return fmt.Sprintf("https://t.me/%s?start=%s%s", b.username, joinPayloadPrefix, code)
}

// sendMessage sends an HTML text message
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("error sending message", "chat_id", chatID, "error", err)
	}
}

// answerCallback answers a callback query
func (b *Bot) answerCallback(callbackID string, text string) {
	callback := tgbotapi.NewCallback(callbackID, text)
	if _, err := b.api.Request(callback); err != nil {
		b.logger.Error("error answering callback", "error", err)
	}
}

// removeKeyboard strips the inline keyboard from an answered message
func (b *Bot) removeKeyboard(chatID int64, messageID int) {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	})
	if _, err := b.api.Request(edit); err != nil {
		b.logger.Warn("error removing keyboard", "chat_id", chatID, "error", err)
	}
}
