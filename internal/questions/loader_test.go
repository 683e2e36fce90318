package questions

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/encoding/charmap"

	"github.com/glebk/match-quiz/internal/domain"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func requireLoadError(t *testing.T, err error) *domain.LoadError {
	t.Helper()
	var lerr *domain.LoadError
	if !errors.As(err, &lerr) {
		t.Fatalf("Expected *LoadError, got %v", err)
	}
	return lerr
}

func TestLoadCSVSemicolonWithBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte(
		"Вопрос;Варианты;Тип\n"+
			"Чай или кофе?;Чай | Кофе;single\n"+
			"Вопрос;Варианты;Тип\n"+
			";A|B;single\n"+
			"Без вариантов;;single\n"+
			"Что взять в поход?;Палатка, Гитара, Котелок;множественный\n")...)
	path := writeFile(t, "questions.csv", data)

	set, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if set.Len() != 2 {
		t.Fatalf("Expected 2 questions, got %d", set.Len())
	}

	q0, _ := set.At(0)
	if q0.Text != "Чай или кофе?" || q0.Type != domain.QuestionSingle {
		t.Errorf("Unexpected first question: %+v", q0)
	}
	if len(q0.Options) != 2 || q0.Options[1] != "Кофе" {
		t.Errorf("Unexpected options: %v", q0.Options)
	}

	q1, _ := set.At(1)
	if q1.Index != 1 || q1.Type != domain.QuestionMulti || len(q1.Options) != 3 {
		t.Errorf("Unexpected second question: %+v", q1)
	}
}

func TestLoadCSVComma(t *testing.T) {
	path := writeFile(t, "questions.csv", []byte(
		"question,options,type\n"+
			"Morning or night?,\"Morning|Night\",\n"+
			"Pick snacks,\"Chips; Nuts; Fruit\",multi\n"))

	set, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if set.Len() != 2 {
		t.Fatalf("Expected 2 questions, got %d", set.Len())
	}

	q0, _ := set.At(0)
	if q0.Type != domain.QuestionSingle {
		t.Errorf("Expected empty type to mean single, got %s", q0.Type)
	}
	q1, _ := set.At(1)
	if len(q1.Options) != 3 || q1.Options[2] != "Fruit" {
		t.Errorf("Unexpected options: %v", q1.Options)
	}
}

func TestLoadCSVWindows1251(t *testing.T) {
	text := "вопрос;варианты ответов\nКошки или собаки?;Кошки|Собаки\n"
	encoded, err := charmap.Windows1251.NewEncoder().String(text)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	path := writeFile(t, "questions.csv", []byte(encoded))

	set, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	q, _ := set.At(0)
	if q.Text != "Кошки или собаки?" || q.Options[0] != "Кошки" {
		t.Errorf("Unexpected question: %+v", q)
	}
}

func TestLoadCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no question column", "title;options\nA;B|C\n"},
		{"only header", "question;options\n"},
		{"unknown type", "question;options;type\nA;B|C;ranking\n"},
		{"empty file", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "questions.csv", []byte(tt.data))
			_, err := Load(path)
			lerr := requireLoadError(t, err)
			if lerr.Path != path {
				t.Errorf("Expected path %q, got %q", path, lerr.Path)
			}
		})
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "questions.json", []byte(`[
		// warm-up
		{"question": "Sea or mountains?", "options": ["Sea", "Mountains"]},
		{"question": "Weekend plans", "type": "multi", "options": ["Cinema", "Hike", "Sleep",],},
	]`))

	set, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if set.Len() != 2 {
		t.Fatalf("Expected 2 questions, got %d", set.Len())
	}
	q1, _ := set.At(1)
	if q1.Type != domain.QuestionMulti || len(q1.Options) != 3 {
		t.Errorf("Unexpected question: %+v", q1)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "questions.yaml", []byte(`
- question: Sea or mountains?
  options: [Sea, Mountains]
- question: Weekend plans
  type: несколько
  options:
    - Cinema
    - Hike
`))

	set, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	q1, _ := set.At(1)
	if q1.Type != domain.QuestionMulti || q1.Options[1] != "Hike" {
		t.Errorf("Unexpected question: %+v", q1)
	}
}

func TestLoadFailures(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.csv"))
		lerr := requireLoadError(t, err)
		if !errors.Is(lerr, os.ErrNotExist) {
			t.Errorf("Expected wrapped not-exist error, got %v", lerr.Err)
		}
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := writeFile(t, "questions.txt", []byte("hello"))
		_, err := Load(path)
		requireLoadError(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		path := writeFile(t, "questions.json", []byte(`{"question": 1}`))
		_, err := Load(path)
		requireLoadError(t, err)
	})

	t.Run("empty yaml list", func(t *testing.T) {
		path := writeFile(t, "questions.yml", []byte("[]\n"))
		_, err := Load(path)
		requireLoadError(t, err)
	})
}

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		text string
		want rune
	}{
		{"a;b;c\n", ';'},
		{"a,b,c\n", ','},
		{"\"a;b\",c\n", ','},
		{"abc\n", ';'},
		{"\n\nq,o\n", ','},
	}

	for _, tt := range tests {
		if got := sniffDelimiter(tt.text); got != tt.want {
			t.Errorf("sniffDelimiter(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
