// Package matching compares two completed participants question by question.
package matching

import (
	"fmt"

	"github.com/glebk/match-quiz/internal/domain"
)

// LabelSeparator joins the labels of multi-select answers
const LabelSeparator = ", "

// Pair is the outcome for one question
type Pair struct {
	QuestionIndex int    `json:"question_index"`
	Question      string `json:"question"`
	A             string `json:"a"`
	B             string `json:"b"`
	Matched       bool   `json:"matched"`
}

// Report is the aggregate agreement between both participants
type Report struct {
	Code    string `json:"code"`
	NameA   string `json:"name_a"`
	NameB   string `json:"name_b"`
	Total   int    `json:"total"`
	Matches int    `json:"matches"`
	Percent int    `json:"percent"`
	Pairs   []Pair `json:"pairs"`
}

// Compute builds the report for a session whose participants both finished.
// It reads nothing but its arguments, so repeated calls agree.
func Compute(s *domain.Session, qs *domain.QuestionSet) (*Report, error) {
	if s == nil {
		return nil, domain.ErrNotFound
	}

	total := qs.Len()
	if s.State(total) != domain.StateReady {
		return nil, fmt.Errorf("session %s: %w", s.Code, domain.ErrNotReady)
	}

	report := &Report{
		Code:  s.Code,
		NameA: s.A.Name,
		NameB: s.B.Name,
		Total: total,
		Pairs: make([]Pair, 0, total),
	}

	for i := 0; i < total; i++ {
		q, _ := qs.At(i)

		a, okA := s.A.Answers[i]
		b, okB := s.B.Answers[i]

		matched := okA && okB && a.Equal(b)
		if matched {
			report.Matches++
		}

		report.Pairs = append(report.Pairs, Pair{
			QuestionIndex: i,
			Question:      q.Text,
			A:             a.Render(q, LabelSeparator),
			B:             b.Render(q, LabelSeparator),
			Matched:       matched,
		})
	}

	report.Percent = Percent(report.Matches, total)

	return report, nil
}

// Percent returns round-half-up(100*matches/total); total below 1 counts as 1
func Percent(matches, total int) int {
	if total < 1 {
		total = 1
	}
	return (200*matches + total) / (2 * total)
}

// Mismatches returns up to limit unmatched pairs in question order; limit <= 0 means all
func (r *Report) Mismatches(limit int) []Pair {
	var out []Pair
	for _, p := range r.Pairs {
		if p.Matched {
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, p)
	}
	return out
}
