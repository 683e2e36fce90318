package domain

import (
	"fmt"
	"strings"
)

// QuestionType defines how many options a participant may pick
type QuestionType string

const (
	QuestionSingle QuestionType = "single"
	QuestionMulti  QuestionType = "multi"
)

// ParseQuestionType maps the type column of a question file to a QuestionType.
// An empty value means single-select.
func ParseQuestionType(raw string) (QuestionType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "single", "одиночный", "один":
		return QuestionSingle, nil
	case "multi", "multiple", "множественный", "несколько":
		return QuestionMulti, nil
	default:
		return "", fmt.Errorf("unknown question type %q", raw)
	}
}

// Question is one immutable entry of a QuestionSet
type Question struct {
	Index   int
	Text    string
	Type    QuestionType
	Options []string
}

// HasOption reports whether idx addresses one of the question's options
func (q Question) HasOption(idx int) bool {
	return idx >= 0 && idx < len(q.Options)
}

// QuestionSet is the ordered, validated list of questions every session walks through
type QuestionSet struct {
	questions []Question
}

// NewQuestionSet validates questions and assigns contiguous indices starting at 0.
func NewQuestionSet(questions []Question) (*QuestionSet, error) {
	if len(questions) == 0 {
		return nil, &LoadError{Reason: "question set is empty"}
	}

	out := make([]Question, 0, len(questions))
	for i, q := range questions {
		text := strings.TrimSpace(q.Text)
		if text == "" {
			return nil, &LoadError{Reason: fmt.Sprintf("question %d has no text", i)}
		}
		if len(q.Options) == 0 {
			return nil, &LoadError{Reason: fmt.Sprintf("question %d %q has no options", i, text)}
		}

		options := make([]string, len(q.Options))
		for j, opt := range q.Options {
			opt = strings.TrimSpace(opt)
			if opt == "" {
				return nil, &LoadError{Reason: fmt.Sprintf("question %d option %d is empty", i, j)}
			}
			options[j] = opt
		}

		qtype := q.Type
		if qtype == "" {
			qtype = QuestionSingle
		}
		if qtype != QuestionSingle && qtype != QuestionMulti {
			return nil, &LoadError{Reason: fmt.Sprintf("question %d has unknown type %q", i, qtype)}
		}

		out = append(out, Question{
			Index:   i,
			Text:    text,
			Type:    qtype,
			Options: options,
		})
	}

	return &QuestionSet{questions: out}, nil
}

// Len returns the number of questions
func (s *QuestionSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.questions)
}

// At returns the question at index i
func (s *QuestionSet) At(i int) (Question, bool) {
	if s == nil || i < 0 || i >= len(s.questions) {
		return Question{}, false
	}
	return s.questions[i], true
}

// All returns a copy of the questions in order
func (s *QuestionSet) All() []Question {
	out := make([]Question, s.Len())
	if s != nil {
		copy(out, s.questions)
	}
	return out
}
