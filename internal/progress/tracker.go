// Package progress moves a single participant forward through a question set.
// Everything here is pure: inputs are never mutated, nothing touches storage.
package progress

import (
	"github.com/glebk/match-quiz/internal/domain"
)

// RawAnswer is the untyped list of option indices a transport collected
type RawAnswer []int

// Next returns the question the participant should answer next.
// The boolean is false once every question has been answered.
func Next(p domain.Participant, qs *domain.QuestionSet) (domain.Question, bool) {
	if p.Completed(qs.Len()) {
		return domain.Question{}, false
	}
	return qs.At(p.CurrentIndex)
}

// Validate turns raw into a typed answer for question q
func Validate(q domain.Question, raw RawAnswer) (domain.Answer, error) {
	switch q.Type {
	case domain.QuestionSingle:
		if len(raw) != 1 {
			return domain.Answer{}, &domain.ValidationError{QuestionIndex: q.Index, Reason: "single-select question needs exactly one option"}
		}
		if !q.HasOption(raw[0]) {
			return domain.Answer{}, &domain.ValidationError{QuestionIndex: q.Index, Reason: "option out of range"}
		}
		return domain.SingleAnswer(raw[0]), nil

	case domain.QuestionMulti:
		if raw == nil {
			return domain.Answer{}, &domain.ValidationError{QuestionIndex: q.Index, Reason: "multi-select answer is missing"}
		}
		if len(raw) == 0 {
			return domain.Answer{}, &domain.ValidationError{QuestionIndex: q.Index, Reason: "multi-select question needs at least one option"}
		}
		for _, idx := range raw {
			if !q.HasOption(idx) {
				return domain.Answer{}, &domain.ValidationError{QuestionIndex: q.Index, Reason: "option out of range"}
			}
		}
		return domain.MultiAnswer(raw...), nil

	default:
		return domain.Answer{}, &domain.ValidationError{QuestionIndex: q.Index, Reason: "unknown question type"}
	}
}

// Submit records raw as the answer to questionIndex and advances the participant.
// Only the current question can be answered: skipping ahead and revisiting
// earlier questions both fail with a *domain.ValidationError.
func Submit(p domain.Participant, qs *domain.QuestionSet, questionIndex int, raw RawAnswer) (domain.Participant, domain.Answer, error) {
	if questionIndex != p.CurrentIndex {
		return p, domain.Answer{}, &domain.ValidationError{
			QuestionIndex: questionIndex,
			Reason:        "not the current question",
			Err:           domain.ErrStaleIndex,
		}
	}

	q, ok := qs.At(questionIndex)
	if !ok {
		return p, domain.Answer{}, &domain.ValidationError{QuestionIndex: questionIndex, Reason: "no such question"}
	}

	answer, err := Validate(q, raw)
	if err != nil {
		return p, domain.Answer{}, err
	}

	next := p.Clone()
	next.Answers[questionIndex] = answer
	next.CurrentIndex = questionIndex + 1

	return next, answer, nil
}
