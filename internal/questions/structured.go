package questions

import (
	"encoding/json"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/glebk/match-quiz/internal/domain"
)

// parseJSON accepts JSON with comments and trailing commas
func parseJSON(data []byte) ([]domain.Question, error) {
	var entries []entry
	if err := json.Unmarshal(jsonc.ToJSON(data), &entries); err != nil {
		return nil, &domain.LoadError{Reason: "malformed JSON", Err: err}
	}
	return fromEntries(entries)
}

func parseYAML(data []byte) ([]domain.Question, error) {
	var entries []entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, &domain.LoadError{Reason: "malformed YAML", Err: err}
	}
	return fromEntries(entries)
}
