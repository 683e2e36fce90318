package bot

import (
	"fmt"
	"html"
	"strings"

	"github.com/glebk/match-quiz/internal/domain"
	"github.com/glebk/match-quiz/internal/matching"
)

// reportMismatchLimit caps the "where you differ" list
const reportMismatchLimit = 5

var questionEmojis = []string{"🌞", "☕", "🍀", "💫", "🎯", "❤️", "💭", "🌸", "🔥", "🎵", "✨", "🌈", "📚", "🎁", "🌹", "🌙", "🍷", "🤍", "💬", "🌻"}

const (
	greetingText  = "Привет! 🥰 Это тест совпадений. Один из вас проходит первым, другой вторым. Кто ты?"
	askNameFirst  = "💬 Введи своё имя:"
	askNameSecond = "💬 Как тебя зовут?"
	waitingText   = "👌 Готово! Ждём второго участника…"
	useButtons    = "Отвечай кнопками под вопросом 👆"
	pressStart    = "Нажми /start, чтобы начать 🙂"
	sessionGone   = "😔 Пара с таким кодом не найдена или уже устарела. Начни заново: /start"
	sessionFull   = "⛔️ К этому коду уже присоединился второй участник. Попроси новый код или начни заново: /start"
	codesBusy     = "😔 Сейчас все коды заняты. Попробуй чуть позже"
	somethingBad  = "❌ Что-то пошло не так. Попробуй ещё раз"
	notYourTurn   = "Это не твой вопрос"
	alreadyDone   = "Этот вопрос уже пройден"
	pickOne       = "Выбери хотя бы один вариант"
)

const helpText = `<b>Тест совпадений: помощь</b>

<b>Команды:</b>
/start - Начать заново и выбрать роль
/status - Показать прогресс пары
/result - Показать результат, когда оба закончили
/help - Показать помощь

<b>Как это работает:</b>
1. Первый участник вводит имя и получает код пары (и QR-код)
2. Второй выбирает «Пройти как второй» и вводит код, или просто сканирует QR
3. Каждый отвечает на вопросы кнопками
4. Когда оба закончат, бот пришлёт обоим процент совпадений и где ответы разошлись`

func emojify(text string, idx int) string {
	return questionEmojis[idx%len(questionEmojis)] + " " + text
}

func digitsWord(n int) string {
	if d := n % 10; d >= 2 && d <= 4 {
		return "цифры"
	}
	return "цифр"
}

func askCodeText(digits int) string {
	return fmt.Sprintf("🔢 Введи код пары (%d %s):", digits, digitsWord(digits))
}

func badCodeText(digits int) string {
	return fmt.Sprintf("Код должен состоять из %d цифр. Попробуй снова 🙂", digits)
}

func codeIssuedText(code string) string {
	return fmt.Sprintf("🔐 Твой код: <b>%s</b>\nПередай его второму участнику 💌", code)
}

func codeAcceptedText(code string) string {
	return fmt.Sprintf("✅ Код принят: <b>%s</b>", code)
}

func joinedText(partner string) string {
	return fmt.Sprintf("💞 <b>%s</b> ввёл(а) твой код и уже отвечает!", html.EscapeString(partner))
}

func questionText(q domain.Question, total int) string {
	var sb strings.Builder
	sb.WriteString("<b>" + html.EscapeString(emojify(q.Text, q.Index)) + "</b>\n")
	sb.WriteString(fmt.Sprintf("<i>Вопрос %d из %d</i>", q.Index+1, total))
	if q.Type == domain.QuestionMulti {
		sb.WriteString("\n<i>Можно выбрать несколько вариантов, потом нажми «Готово»</i>")
	}
	return sb.String()
}

// summaryFor picks the closing line for a match percentage
func summaryFor(percent int) string {
	switch {
	case percent >= 90:
		return "💞 У вас редкое совпадение! Похоже, между вами настоящая эмоциональная близость: вы чувствуете друг друга с полуслова 🌈"
	case percent >= 70:
		return "💫 Между вами очень тёплая связь. Вы хорошо понимаете друг друга, просто иногда смотрите на вещи с разных сторон ❤️"
	case percent >= 50:
		return "🌷 Есть основа для близости: у вас много общего, но и пространство для роста 🤝"
	case percent >= 30:
		return "🌧 Похоже, вы по-разному воспринимаете эмоции и ситуации. Это не плохо, просто вам важно чаще говорить о своих чувствах 💬"
	default:
		return "💔 Совпадений немного, но, возможно, вы просто разные, и в этом ваша сила. Иногда контрасты создают самую яркую химию ⚡"
	}
}

func reportText(r *matching.Report) string {
	nameA := html.EscapeString(r.NameA)
	nameB := html.EscapeString(r.NameB)

	lines := []string{
		fmt.Sprintf("💞 <b>%s</b> + <b>%s</b>", nameA, nameB),
		fmt.Sprintf("Совпадений: <b>%d</b> из %d (<b>%d%%</b>)", r.Matches, r.Total, r.Percent),
		"",
		summaryFor(r.Percent),
	}

	if bad := r.Mismatches(reportMismatchLimit); len(bad) > 0 {
		lines = append(lines, "", "🔍 Где не совпало:")
		for _, p := range bad {
			lines = append(lines, fmt.Sprintf("• <b>%s</b>\n  ▫️ %s: %s\n  ▫️ %s: %s",
				html.EscapeString(p.Question),
				nameA, html.EscapeString(p.A),
				nameB, html.EscapeString(p.B),
			))
		}
	}

	return strings.Join(lines, "\n")
}

func participantStatus(p *domain.Participant, total int) string {
	if p.Completed(total) {
		return fmt.Sprintf("<b>%s</b>: всё ответил(а) ✅", html.EscapeString(p.Name))
	}
	return fmt.Sprintf("<b>%s</b>: вопрос %d из %d", html.EscapeString(p.Name), p.CurrentIndex+1, total)
}

func statusText(s *domain.Session, total int) string {
	lines := []string{fmt.Sprintf("📊 <b>Пара %s</b>", s.Code)}

	lines = append(lines, participantStatus(&s.A, total))
	if s.B == nil {
		lines = append(lines, "Второй участник ещё не ввёл код ⏳")
	} else {
		lines = append(lines, participantStatus(s.B, total))
	}

	if s.State(total) == domain.StateReady {
		lines = append(lines, "", "Оба закончили! Результат: /result")
	}
	return strings.Join(lines, "\n")
}
