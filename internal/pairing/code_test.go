package pairing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/glebk/match-quiz/internal/domain"
)

func TestGenerateFixedWidth(t *testing.T) {
	g := NewGenerator(6)

	for i := 0; i < 200; i++ {
		code, err := g.Generate(Codes{})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("Expected 6 digits, got %q", code)
		}
		if _, ok := Normalize(code, 6); !ok {
			t.Fatalf("Expected only digits, got %q", code)
		}
	}
}

func TestGenerateAvoidsExisting(t *testing.T) {
	g := Generator{Digits: 1, MaxAttempts: 1000}

	existing := Codes{}
	for i := 0; i < 9; i++ {
		existing[fmt.Sprintf("%d", i)] = struct{}{}
	}

	code, err := g.Generate(existing)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if code != "9" {
		t.Errorf("Expected the only free code 9, got %q", code)
	}
}

func TestGenerateExhausted(t *testing.T) {
	g := NewGenerator(4)

	existing := Codes{}
	for i := 0; i < 10000; i++ {
		existing[fmt.Sprintf("%04d", i)] = struct{}{}
	}

	_, err := g.Generate(existing)
	if !errors.Is(err, domain.ErrCodeSpaceExhausted) {
		t.Errorf("Expected ErrCodeSpaceExhausted, got %v", err)
	}
}

type allTaken struct{}

func (allTaken) Has(string) bool { return true }

func TestGenerateGivesUpAfterMaxAttempts(t *testing.T) {
	g := Generator{Digits: 4, MaxAttempts: 5}

	_, err := g.Generate(allTaken{})
	if !errors.Is(err, domain.ErrCodeSpaceExhausted) {
		t.Errorf("Expected ErrCodeSpaceExhausted, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		code  string
		ok    bool
	}{
		{"1234", "1234", true},
		{" 12-34 ", "1234", true},
		{"код 0042", "0042", true},
		{"123", "123", false},
		{"12345", "12345", false},
	}

	for _, tt := range tests {
		code, ok := Normalize(tt.input, 4)
		if code != tt.code || ok != tt.ok {
			t.Errorf("Normalize(%q): expected (%q, %v), got (%q, %v)", tt.input, tt.code, tt.ok, code, ok)
		}
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"0042", true},
		{"9999", true},
		{"042", false},
		{"00420", false},
		{"../1", false},
		{"12/4", false},
		{"１２３４", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := Valid(tt.code, 4); got != tt.want {
			t.Errorf("Valid(%q, 4): expected %v, got %v", tt.code, tt.want, got)
		}
	}

	if !NewGenerator(6).Valid("123456") || NewGenerator(6).Valid("1234") {
		t.Error("Expected generator width to decide validity")
	}
}
