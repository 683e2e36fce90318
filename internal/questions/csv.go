package questions

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/glebk/match-quiz/internal/domain"
)

var (
	utf8BOM = []byte{0xEF, 0xBB, 0xBF}

	optionSeparator = regexp.MustCompile(`\s*[|;,]\s*`)

	questionHeaders = []string{"question", "вопрос"}
	optionsHeaders  = []string{"options", "варианты", "варианты ответов"}
	typeHeaders     = []string{"type", "тип"}
)

// decodeText returns the file as UTF-8, trying UTF-8 with BOM, plain UTF-8
// and finally Windows-1251.
func decodeText(data []byte) (string, error) {
	if bytes.HasPrefix(data, utf8BOM) {
		data = data[len(utf8BOM):]
	}
	if utf8.Valid(data) {
		return string(data), nil
	}

	decoded, err := charmap.Windows1251.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("file is neither UTF-8 nor Windows-1251: %w", err)
	}
	return string(decoded), nil
}

// sniffDelimiter picks ';' or ',' by counting unquoted occurrences in the
// first non-empty line. Ties go to ';'.
func sniffDelimiter(text string) rune {
	var line string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			line = l
			break
		}
	}

	semicolons, commas := 0, 0
	quoted := false
	for _, r := range line {
		switch r {
		case '"':
			quoted = !quoted
		case ';':
			if !quoted {
				semicolons++
			}
		case ',':
			if !quoted {
				commas++
			}
		}
	}

	if commas > semicolons {
		return ','
	}
	return ';'
}

func columnIndex(header []string, candidates []string) int {
	for _, c := range candidates {
		for i, h := range header {
			if h == c {
				return i
			}
		}
	}
	return -1
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isHeaderValue(s string, candidates []string) bool {
	s = strings.ToLower(s)
	for _, c := range candidates {
		if s == c {
			return true
		}
	}
	return false
}

func parseCSV(data []byte) ([]domain.Question, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, &domain.LoadError{Reason: "unknown encoding", Err: err}
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = sniffDelimiter(text)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, &domain.LoadError{Reason: "malformed CSV", Err: err}
	}
	if len(rows) == 0 {
		return nil, &domain.LoadError{Reason: "file is empty"}
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}

	qi := columnIndex(header, questionHeaders)
	oi := columnIndex(header, optionsHeaders)
	ti := columnIndex(header, typeHeaders)
	if qi < 0 || oi < 0 {
		return nil, &domain.LoadError{Reason: fmt.Sprintf("header %q lacks question or options column", rows[0])}
	}

	var out []domain.Question
	for n, row := range rows[1:] {
		text := field(row, qi)
		if text == "" || isHeaderValue(text, questionHeaders) {
			continue
		}

		var options []string
		for _, opt := range optionSeparator.Split(field(row, oi), -1) {
			if opt = strings.TrimSpace(opt); opt != "" {
				options = append(options, opt)
			}
		}
		if len(options) == 0 {
			continue
		}

		qtype, err := domain.ParseQuestionType(field(row, ti))
		if err != nil {
			return nil, &domain.LoadError{Reason: fmt.Sprintf("row %d", n+2), Err: err}
		}

		out = append(out, domain.Question{
			Text:    text,
			Type:    qtype,
			Options: options,
		})
	}

	return out, nil
}
