package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/glebk/match-quiz/internal/domain"
	"github.com/glebk/match-quiz/internal/progress"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback data prefixes
const (
	actionRole   = "role"
	actionAnswer = "ans"  // ans:<code>:<slot>:<question>:<option>
	actionToggle = "tog"  // tog:<code>:<slot>:<question>:<option>:<0|1>
	actionDone   = "done" // done:<code>:<slot>:<question>

	roleFirst  = "first"
	roleSecond = "second"

	selectedMark      = "✅ "
	joinPayloadPrefix = "join_"
)

// answerData is a decoded answer, toggle or done callback
type answerData struct {
	Action   string
	Code     string
	Slot     domain.Slot
	Question int
	Option   int
	Selected bool // toggle buttons only
}

func parseAnswerData(data string) (answerData, error) {
	parts := strings.Split(data, ":")
	if len(parts) < 4 {
		return answerData{}, fmt.Errorf("malformed callback data %q", data)
	}

	out := answerData{Action: parts[0], Code: parts[1]}

	slot, err := domain.ParseSlot(parts[2])
	if err != nil {
		return answerData{}, err
	}
	out.Slot = slot

	if out.Question, err = strconv.Atoi(parts[3]); err != nil {
		return answerData{}, fmt.Errorf("bad question index in %q: %w", data, err)
	}

	switch out.Action {
	case actionDone:
		if len(parts) != 4 {
			return answerData{}, fmt.Errorf("malformed callback data %q", data)
		}
	case actionAnswer:
		if len(parts) != 5 {
			return answerData{}, fmt.Errorf("malformed callback data %q", data)
		}
		if out.Option, err = strconv.Atoi(parts[4]); err != nil {
			return answerData{}, fmt.Errorf("bad option index in %q: %w", data, err)
		}
	case actionToggle:
		if len(parts) != 6 {
			return answerData{}, fmt.Errorf("malformed callback data %q", data)
		}
		if out.Option, err = strconv.Atoi(parts[4]); err != nil {
			return answerData{}, fmt.Errorf("bad option index in %q: %w", data, err)
		}
		switch parts[5] {
		case "0":
		case "1":
			out.Selected = true
		default:
			return answerData{}, fmt.Errorf("bad selection flag in %q", data)
		}
	default:
		return answerData{}, fmt.Errorf("unknown action %q", out.Action)
	}

	return out, nil
}

func roleKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎯 Пройти как первый", actionRole+":"+roleFirst),
			tgbotapi.NewInlineKeyboardButtonData("💞 Пройти как второй", actionRole+":"+roleSecond),
		),
	)
}

// questionKeyboard puts one option per row. Multi-select options toggle and
// a final row submits the selection.
func questionKeyboard(code string, slot domain.Slot, q domain.Question) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(q.Options)+1)
	for i, opt := range q.Options {
		data := fmt.Sprintf("%s:%s:%s:%d:%d", actionAnswer, code, slot, q.Index, i)
		if q.Type == domain.QuestionMulti {
			data = toggleData(code, slot, q.Index, i, false)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(opt, data)))
	}

	if q.Type == domain.QuestionMulti {
		data := fmt.Sprintf("%s:%s:%s:%d", actionDone, code, slot, q.Index)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("➡️ Готово", data)))
	}

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func toggleData(code string, slot domain.Slot, question, option int, selected bool) string {
	flag := 0
	if selected {
		flag = 1
	}
	return fmt.Sprintf("%s:%s:%s:%d:%d:%d", actionToggle, code, slot, question, option, flag)
}

// toggleOption returns a copy of markup with the button carrying data flipped.
// The selection lives in the callback data; the mark on the label only shows it.
func toggleOption(markup *tgbotapi.InlineKeyboardMarkup, data string) tgbotapi.InlineKeyboardMarkup {
	out := tgbotapi.InlineKeyboardMarkup{}
	if markup == nil {
		return out
	}

	d, err := parseAnswerData(data)
	if err != nil || d.Action != actionToggle {
		return *markup
	}
	flipped := toggleData(d.Code, d.Slot, d.Question, d.Option, !d.Selected)

	out.InlineKeyboard = make([][]tgbotapi.InlineKeyboardButton, len(markup.InlineKeyboard))
	for i, row := range markup.InlineKeyboard {
		out.InlineKeyboard[i] = make([]tgbotapi.InlineKeyboardButton, len(row))
		copy(out.InlineKeyboard[i], row)

		for j, btn := range out.InlineKeyboard[i] {
			if btn.CallbackData == nil || *btn.CallbackData != data {
				continue
			}
			if d.Selected {
				btn.Text = strings.TrimPrefix(btn.Text, selectedMark)
			} else {
				btn.Text = selectedMark + btn.Text
			}
			btn.CallbackData = &flipped
			out.InlineKeyboard[i][j] = btn
		}
	}
	return out
}

// selectedOptions reads the selected toggle buttons back into option indices
func selectedOptions(markup *tgbotapi.InlineKeyboardMarkup) progress.RawAnswer {
	raw := progress.RawAnswer{}
	if markup == nil {
		return raw
	}

	for _, row := range markup.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData == nil {
				continue
			}
			d, err := parseAnswerData(*btn.CallbackData)
			if err != nil || d.Action != actionToggle || !d.Selected {
				continue
			}
			raw = append(raw, d.Option)
		}
	}
	return raw
}
