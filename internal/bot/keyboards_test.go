package bot

import (
	"reflect"
	"strings"
	"testing"

	"github.com/glebk/match-quiz/internal/domain"
	"github.com/glebk/match-quiz/internal/matching"
	"github.com/glebk/match-quiz/internal/progress"
)

func TestParseAnswerData(t *testing.T) {
	tests := []struct {
		data    string
		want    answerData
		wantErr bool
	}{
		{data: "ans:0420:a:3:1", want: answerData{Action: actionAnswer, Code: "0420", Slot: domain.SlotA, Question: 3, Option: 1}},
		{data: "tog:0420:b:1:2:0", want: answerData{Action: actionToggle, Code: "0420", Slot: domain.SlotB, Question: 1, Option: 2}},
		{data: "tog:0420:b:1:2:1", want: answerData{Action: actionToggle, Code: "0420", Slot: domain.SlotB, Question: 1, Option: 2, Selected: true}},
		{data: "tog:0420:b:1:2", wantErr: true},
		{data: "tog:0420:b:1:2:yes", wantErr: true},
		{data: "done:0420:b:1", want: answerData{Action: actionDone, Code: "0420", Slot: domain.SlotB, Question: 1}},
		{data: "ans:0420:c:3:1", wantErr: true},
		{data: "ans:0420:a:x:1", wantErr: true},
		{data: "ans:0420:a:3", wantErr: true},
		{data: "done:0420:a:1:2", wantErr: true},
		{data: "vote:0420:a:1:2", wantErr: true},
		{data: "garbage", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseAnswerData(tt.data)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseAnswerData(%q): expected error", tt.data)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseAnswerData(%q): %v", tt.data, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseAnswerData(%q) = %+v, want %+v", tt.data, got, tt.want)
		}
	}
}

func TestToggleAndSelect(t *testing.T) {
	q := domain.Question{Index: 1, Text: "Pick", Type: domain.QuestionMulti, Options: []string{"P", "Q", "R"}}
	kb := questionKeyboard("0420", domain.SlotA, q)

	if len(kb.InlineKeyboard) != 4 {
		t.Fatalf("Expected 3 options and a done row, got %d rows", len(kb.InlineKeyboard))
	}

	if got := selectedOptions(&kb); len(got) != 0 || got == nil {
		t.Errorf("Expected empty non-nil selection, got %#v", got)
	}

	kb = toggleOption(&kb, "tog:0420:a:1:2:0")
	kb = toggleOption(&kb, "tog:0420:a:1:0:0")
	if got := selectedOptions(&kb); !reflect.DeepEqual(got, progress.RawAnswer{0, 2}) {
		t.Errorf("Expected {0,2}, got %v", got)
	}
	if !strings.HasPrefix(kb.InlineKeyboard[2][0].Text, selectedMark) {
		t.Errorf("Expected R marked, got %q", kb.InlineKeyboard[2][0].Text)
	}

	kb = toggleOption(&kb, "tog:0420:a:1:2:1")
	if got := selectedOptions(&kb); !reflect.DeepEqual(got, progress.RawAnswer{0}) {
		t.Errorf("Expected {0} after untoggle, got %v", got)
	}
	if kb.InlineKeyboard[2][0].Text != "R" {
		t.Errorf("Expected mark removed, got %q", kb.InlineKeyboard[2][0].Text)
	}
}

func TestToggleDoesNotMutateInput(t *testing.T) {
	q := domain.Question{Index: 0, Text: "Pick", Type: domain.QuestionMulti, Options: []string{"P", "Q"}}
	kb := questionKeyboard("0420", domain.SlotB, q)

	_ = toggleOption(&kb, "tog:0420:b:0:0:0")
	if kb.InlineKeyboard[0][0].Text != "P" {
		t.Errorf("Expected original keyboard untouched, got %q", kb.InlineKeyboard[0][0].Text)
	}
}

func TestSelectionIgnoresLabelText(t *testing.T) {
	q := domain.Question{Index: 0, Text: "Pick", Type: domain.QuestionMulti, Options: []string{selectedMark + "Yes", "No"}}
	kb := questionKeyboard("0420", domain.SlotA, q)

	if got := selectedOptions(&kb); len(got) != 0 {
		t.Errorf("Expected nothing selected for a marked label, got %v", got)
	}

	kb = toggleOption(&kb, "tog:0420:a:0:0:0")
	if got := selectedOptions(&kb); !reflect.DeepEqual(got, progress.RawAnswer{0}) {
		t.Errorf("Expected {0}, got %v", got)
	}

	kb = toggleOption(&kb, "tog:0420:a:0:0:1")
	if got := selectedOptions(&kb); len(got) != 0 {
		t.Errorf("Expected empty selection after untoggle, got %v", got)
	}
	if kb.InlineKeyboard[0][0].Text != selectedMark+"Yes" {
		t.Errorf("Expected original label back, got %q", kb.InlineKeyboard[0][0].Text)
	}
}

func TestSingleKeyboard(t *testing.T) {
	q := domain.Question{Index: 0, Text: "Pick", Type: domain.QuestionSingle, Options: []string{"X", "Y"}}
	kb := questionKeyboard("0420", domain.SlotA, q)

	if len(kb.InlineKeyboard) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(kb.InlineKeyboard))
	}
	if got := *kb.InlineKeyboard[1][0].CallbackData; got != "ans:0420:a:0:1" {
		t.Errorf("Unexpected callback data %q", got)
	}
}

func TestSummaryTiers(t *testing.T) {
	tests := []struct {
		percent int
		prefix  string
	}{
		{100, "💞"},
		{90, "💞"},
		{89, "💫"},
		{70, "💫"},
		{50, "🌷"},
		{30, "🌧"},
		{29, "💔"},
		{0, "💔"},
	}

	for _, tt := range tests {
		if got := summaryFor(tt.percent); !strings.HasPrefix(got, tt.prefix) {
			t.Errorf("summaryFor(%d) = %q, want prefix %q", tt.percent, got, tt.prefix)
		}
	}
}

func TestReportTextLimitsMismatches(t *testing.T) {
	r := &matching.Report{NameA: "A<b>", NameB: "B", Total: 7}
	for i := 0; i < 7; i++ {
		r.Pairs = append(r.Pairs, matching.Pair{QuestionIndex: i, Question: "Q", A: "x", B: "y"})
	}

	text := reportText(r)
	if n := strings.Count(text, "• "); n != reportMismatchLimit {
		t.Errorf("Expected %d mismatches listed, got %d", reportMismatchLimit, n)
	}
	if strings.Contains(text, "A<b>") {
		t.Error("Expected names to be escaped")
	}
}

func TestDigitsWord(t *testing.T) {
	if digitsWord(4) != "цифры" || digitsWord(5) != "цифр" || digitsWord(6) != "цифр" {
		t.Error("Unexpected plural forms")
	}
}
