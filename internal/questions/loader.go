// Package questions reads the question set from CSV, JSON or YAML files.
package questions

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebk/match-quiz/internal/domain"
)

// entry is the file-level shape shared by the JSON and YAML formats
type entry struct {
	Question string   `json:"question" yaml:"question"`
	Type     string   `json:"type" yaml:"type"`
	Options  []string `json:"options" yaml:"options"`
}

// Load reads path and builds a validated question set.
// Every failure is a *domain.LoadError.
func Load(path string) (*domain.QuestionSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.LoadError{Path: path, Reason: "cannot read file", Err: err}
	}

	var questions []domain.Question
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		questions, err = parseCSV(data)
	case ".json", ".jsonc":
		questions, err = parseJSON(data)
	case ".yaml", ".yml":
		questions, err = parseYAML(data)
	default:
		return nil, &domain.LoadError{Path: path, Reason: fmt.Sprintf("unsupported file extension %q", ext)}
	}
	if err != nil {
		return nil, withPath(err, path)
	}

	set, err := domain.NewQuestionSet(questions)
	if err != nil {
		return nil, withPath(err, path)
	}
	return set, nil
}

func withPath(err error, path string) error {
	var lerr *domain.LoadError
	if errors.As(err, &lerr) {
		if lerr.Path == "" {
			lerr.Path = path
		}
		return lerr
	}
	return &domain.LoadError{Path: path, Err: err}
}

func fromEntries(entries []entry) ([]domain.Question, error) {
	out := make([]domain.Question, 0, len(entries))
	for i, e := range entries {
		qtype, err := domain.ParseQuestionType(e.Type)
		if err != nil {
			return nil, &domain.LoadError{Reason: fmt.Sprintf("question %d", i), Err: err}
		}
		out = append(out, domain.Question{
			Text:    e.Question,
			Type:    qtype,
			Options: e.Options,
		})
	}
	return out, nil
}
