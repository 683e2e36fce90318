package domain

import (
	"slices"
	"strings"
)

// Answer is a validated selection for one question.
// Single answers hold exactly one option index, multi answers hold a sorted set.
type Answer struct {
	Type    QuestionType `cbor:"type"`
	Options []int        `cbor:"options"`
}

// SingleAnswer builds a single-select answer
func SingleAnswer(idx int) Answer {
	return Answer{Type: QuestionSingle, Options: []int{idx}}
}

// MultiAnswer builds a multi-select answer; order and duplicates are ignored
func MultiAnswer(indices ...int) Answer {
	set := slices.Clone(indices)
	slices.Sort(set)
	return Answer{Type: QuestionMulti, Options: slices.Compact(set)}
}

// Index returns the chosen option of a single answer, or -1
func (a Answer) Index() int {
	if a.Type != QuestionSingle || len(a.Options) != 1 {
		return -1
	}
	return a.Options[0]
}

// IsZero reports whether the answer carries nothing
func (a Answer) IsZero() bool {
	return a.Type == "" && len(a.Options) == 0
}

// Equal compares answers with the rule of their question type
func (a Answer) Equal(other Answer) bool {
	if a.Type != other.Type || a.IsZero() || other.IsZero() {
		return false
	}

	switch a.Type {
	case QuestionSingle:
		return a.Index() >= 0 && a.Index() == other.Index()
	case QuestionMulti:
		return slices.Equal(MultiAnswer(a.Options...).Options, MultiAnswer(other.Options...).Options)
	default:
		return false
	}
}

// Render returns the labels of the chosen options joined with sep.
// Indices outside the question's options render as nothing.
func (a Answer) Render(q Question, sep string) string {
	labels := make([]string, 0, len(a.Options))
	for _, idx := range a.Options {
		if q.HasOption(idx) {
			labels = append(labels, q.Options[idx])
		}
	}
	return strings.Join(labels, sep)
}

// Clone returns a copy that shares no memory with a
func (a Answer) Clone() Answer {
	return Answer{Type: a.Type, Options: slices.Clone(a.Options)}
}
