package bot

import (
	"context"
	"errors"
	"strings"

	"github.com/glebk/match-quiz/internal/domain"
	"github.com/glebk/match-quiz/internal/pairing"
	"github.com/glebk/match-quiz/internal/progress"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// handleMessage handles incoming messages
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.Chat == nil {
		return
	}

	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	state, err := b.chatState(ctx, message.Chat.ID)
	if err != nil {
		b.logger.Error("error loading chat state", "chat_id", message.Chat.ID, "error", err)
		b.sendMessage(message.Chat.ID, somethingBad)
		return
	}

	switch state.Step {
	case domain.StepAwaitCode:
		b.handleCodeInput(ctx, message, state)
	case domain.StepAwaitName:
		b.handleNameInput(ctx, message, state)
	case domain.StepChoosing:
		b.sendRoleChoice(message.Chat.ID)
	case domain.StepQuiz:
		b.sendMessage(message.Chat.ID, useButtons)
	default:
		b.sendMessage(message.Chat.ID, pressStart)
	}
}

// handleCommand handles bot commands
func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(ctx, message)
	case "status":
		b.handleStatus(ctx, message)
	case "result":
		b.handleResult(ctx, message)
	case "help":
		b.sendMessage(message.Chat.ID, helpText)
	default:
		b.sendMessage(message.Chat.ID, "Неизвестная команда. Используйте /help чтобы узнать больше")
	}
}

// handleStart resets the conversation. A join_<code> payload skips the role choice.
func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	if payload := strings.TrimSpace(message.CommandArguments()); strings.HasPrefix(payload, joinPayloadPrefix) {
		code, ok := pairing.Normalize(strings.TrimPrefix(payload, joinPayloadPrefix), b.config.CodeDigits)
		if ok {
			b.acceptCode(ctx, chatID, code)
			return
		}
	}

	b.saveState(ctx, &domain.ChatState{ChatID: chatID, Step: domain.StepChoosing})
	b.sendRoleChoice(chatID)
}

func (b *Bot) sendRoleChoice(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, greetingText)
	msg.ReplyMarkup = roleKeyboard()
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("error sending start message", "chat_id", chatID, "error", err)
	}
}

// handleRole stores the picked role and asks for the next input
func (b *Bot) handleRole(ctx context.Context, query *tgbotapi.CallbackQuery, role string) {
	chatID := query.Message.Chat.ID
	b.removeKeyboard(chatID, query.Message.MessageID)

	switch role {
	case roleFirst:
		b.saveState(ctx, &domain.ChatState{ChatID: chatID, Step: domain.StepAwaitName, Slot: domain.SlotA})
		b.sendMessage(chatID, askNameFirst)
	case roleSecond:
		b.saveState(ctx, &domain.ChatState{ChatID: chatID, Step: domain.StepAwaitCode, Slot: domain.SlotB})
		b.sendMessage(chatID, askCodeText(b.config.CodeDigits))
	default:
		b.answerCallback(query.ID, "Неизвестная роль")
		return
	}
	b.answerCallback(query.ID, "")
}

func (b *Bot) handleCodeInput(ctx context.Context, message *tgbotapi.Message, state *domain.ChatState) {
	code, ok := pairing.Normalize(message.Text, b.config.CodeDigits)
	if !ok {
		b.sendMessage(message.Chat.ID, badCodeText(b.config.CodeDigits))
		return
	}
	b.acceptCode(ctx, message.Chat.ID, code)
}

// acceptCode checks the code and moves the chat on to the name step
func (b *Bot) acceptCode(ctx context.Context, chatID int64, code string) {
	exists, err := b.service.SessionExists(ctx, code)
	if err != nil {
		b.logger.Error("error checking code", "code", code, "error", err)
		b.sendMessage(chatID, somethingBad)
		return
	}
	if !exists {
		b.saveState(ctx, &domain.ChatState{ChatID: chatID, Step: domain.StepAwaitCode, Slot: domain.SlotB})
		b.sendMessage(chatID, sessionGone)
		return
	}

	b.saveState(ctx, &domain.ChatState{ChatID: chatID, Step: domain.StepAwaitName, Slot: domain.SlotB, Code: code})
	b.sendMessage(chatID, askNameSecond)
}

// handleNameInput creates or joins the session; the code is issued only now
func (b *Bot) handleNameInput(ctx context.Context, message *tgbotapi.Message, state *domain.ChatState) {
	chatID := message.Chat.ID
	name := strings.TrimSpace(message.Text)

	if state.Slot == domain.SlotB {
		session, err := b.service.JoinSession(ctx, state.Code, name, chatID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			b.saveState(ctx, &domain.ChatState{ChatID: chatID, Step: domain.StepIdle})
			b.sendMessage(chatID, sessionGone)
			return
		case errors.Is(err, domain.ErrAlreadyJoined):
			b.saveState(ctx, &domain.ChatState{ChatID: chatID, Step: domain.StepIdle})
			b.sendMessage(chatID, sessionFull)
			return
		case err != nil:
			b.logger.Error("error joining session", "code", state.Code, "error", err)
			b.sendMessage(chatID, somethingBad)
			return
		}

		b.saveState(ctx, &domain.ChatState{ChatID: chatID, Step: domain.StepQuiz, Slot: domain.SlotB, Code: session.Code})
		b.sendMessage(chatID, codeAcceptedText(session.Code))
		b.promptCurrent(ctx, chatID, session.Code, domain.SlotB)
		return
	}

	session, err := b.service.StartSession(ctx, name, chatID)
	if err != nil {
		if errors.Is(err, domain.ErrCodeSpaceExhausted) {
			b.sendMessage(chatID, codesBusy)
		} else {
			b.sendMessage(chatID, somethingBad)
		}
		b.logger.Error("error starting session", "chat_id", chatID, "error", err)
		return
	}

	b.saveState(ctx, &domain.ChatState{ChatID: chatID, Step: domain.StepQuiz, Slot: domain.SlotA, Code: session.Code})
	b.sendMessage(chatID, codeIssuedText(session.Code))
	b.sendQRCode(chatID, session.Code)
	b.promptCurrent(ctx, chatID, session.Code, domain.SlotA)
}

// promptCurrent sends whatever the slot should see now: a question or the waiting note
func (b *Bot) promptCurrent(ctx context.Context, chatID int64, code string, slot domain.Slot) {
	q, ok, err := b.service.CurrentPrompt(ctx, code, slot)
	if err != nil {
		b.logger.Error("error loading question", "code", code, "slot", slot, "error", err)
		b.sendMessage(chatID, sessionGone)
		return
	}
	if !ok {
		b.waiting(ctx, chatID, code, slot)
		return
	}
	b.prompt(ctx, chatID, code, slot, q)
}

// handleStatus shows both participants' progress
func (b *Bot) handleStatus(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	code, ok := b.activeCode(ctx, chatID)
	if !ok {
		b.sendMessage(chatID, "📭 Ты сейчас не в паре. "+pressStart)
		return
	}

	session, err := b.service.GetSession(ctx, code)
	if errors.Is(err, domain.ErrNotFound) {
		b.sendMessage(chatID, sessionGone)
		return
	}
	if err != nil {
		b.logger.Error("error getting session", "code", code, "error", err)
		b.sendMessage(chatID, somethingBad)
		return
	}

	b.sendMessage(chatID, statusText(session, b.service.Questions().Len()))
}

// handleResult sends the report when both participants have finished
func (b *Bot) handleResult(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	code, ok := b.activeCode(ctx, chatID)
	if !ok {
		b.sendMessage(chatID, "📭 Сначала пройди тест. "+pressStart)
		return
	}

	report, err := b.service.GetReport(ctx, code)
	switch {
	case errors.Is(err, domain.ErrNotReady):
		b.sendMessage(chatID, "⏳ Результат будет, когда вы оба ответите на все вопросы")
	case errors.Is(err, domain.ErrNotFound):
		b.sendMessage(chatID, sessionGone)
	case err != nil:
		b.logger.Error("error computing report", "code", code, "error", err)
		b.sendMessage(chatID, somethingBad)
	default:
		b.sendMessage(chatID, reportText(report))
	}
}

// handleCallbackQuery handles button callbacks
func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if query.Message == nil || query.Message.Chat == nil {
		b.answerCallback(query.ID, "")
		return
	}

	if role, ok := strings.CutPrefix(query.Data, actionRole+":"); ok {
		b.handleRole(ctx, query, role)
		return
	}

	data, err := parseAnswerData(query.Data)
	if err != nil {
		b.logger.Warn("bad callback data", "data", query.Data, "error", err)
		b.answerCallback(query.ID, "Invalid response")
		return
	}

	chatID := query.Message.Chat.ID
	if !b.ownsSlot(ctx, query, data) {
		return
	}

	switch data.Action {
	case actionToggle:
		markup := toggleOption(query.Message.ReplyMarkup, query.Data)
		edit := tgbotapi.NewEditMessageReplyMarkup(chatID, query.Message.MessageID, markup)
		if _, err := b.api.Request(edit); err != nil {
			b.logger.Warn("error updating selection", "chat_id", chatID, "error", err)
		}
		b.answerCallback(query.ID, "")
	case actionAnswer:
		b.submit(ctx, query, data, progress.RawAnswer{data.Option})
	case actionDone:
		b.submit(ctx, query, data, selectedOptions(query.Message.ReplyMarkup))
	}
}

// ownsSlot rejects callbacks for a slot the chat does not occupy
func (b *Bot) ownsSlot(ctx context.Context, query *tgbotapi.CallbackQuery, data answerData) bool {
	chatID := query.Message.Chat.ID

	session, err := b.service.GetSession(ctx, data.Code)
	if errors.Is(err, domain.ErrNotFound) {
		b.removeKeyboard(chatID, query.Message.MessageID)
		b.answerCallback(query.ID, "")
		b.sendMessage(chatID, sessionGone)
		return false
	}
	if err != nil {
		b.logger.Error("error getting session", "code", data.Code, "error", err)
		b.answerCallback(query.ID, "❌")
		return false
	}

	p, ok := session.Participant(data.Slot)
	if !ok || p.ChatID != chatID {
		b.answerCallback(query.ID, notYourTurn)
		return false
	}
	return true
}

// submit records the answer and moves the chat to the next question
func (b *Bot) submit(ctx context.Context, query *tgbotapi.CallbackQuery, data answerData, raw progress.RawAnswer) {
	chatID := query.Message.Chat.ID

	result, err := b.service.SubmitAnswer(ctx, data.Code, data.Slot, data.Question, raw)
	switch {
	case errors.Is(err, domain.ErrStaleIndex):
		b.removeKeyboard(chatID, query.Message.MessageID)
		b.answerCallback(query.ID, alreadyDone)
		return
	case domain.IsValidation(err):
		b.answerCallback(query.ID, pickOne)
		return
	case errors.Is(err, domain.ErrNotFound):
		b.removeKeyboard(chatID, query.Message.MessageID)
		b.answerCallback(query.ID, "")
		b.sendMessage(chatID, sessionGone)
		return
	case err != nil:
		b.logger.Error("error recording answer", "code", data.Code, "slot", data.Slot, "question", data.Question, "error", err)
		b.answerCallback(query.ID, "❌ Ошибка записи ответа")
		return
	}

	b.removeKeyboard(chatID, query.Message.MessageID)
	b.answerCallback(query.ID, "✅")

	switch {
	case result.HasNext:
		b.prompt(ctx, chatID, data.Code, data.Slot, result.Next)
	case !result.BecameReady:
		b.waiting(ctx, chatID, data.Code, data.Slot)
	}
}

// chatState returns the stored state, or an idle state for unknown chats
func (b *Bot) chatState(ctx context.Context, chatID int64) (*domain.ChatState, error) {
	state, err := b.chats.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = &domain.ChatState{ChatID: chatID, Step: domain.StepIdle}
	}
	return state, nil
}

// activeCode is the code of the session the chat last entered
func (b *Bot) activeCode(ctx context.Context, chatID int64) (string, bool) {
	state, err := b.chatState(ctx, chatID)
	if err != nil {
		b.logger.Error("error loading chat state", "chat_id", chatID, "error", err)
		return "", false
	}
	if state.Step != domain.StepQuiz || state.Code == "" {
		return "", false
	}
	return state.Code, true
}

func (b *Bot) saveState(ctx context.Context, state *domain.ChatState) {
	if err := b.chats.Save(ctx, state); err != nil {
		b.logger.Error("error saving chat state", "chat_id", state.ChatID, "error", err)
	}
}
