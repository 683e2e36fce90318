// Package pairing issues the short numeric codes that join two participants.
package pairing

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/glebk/match-quiz/internal/domain"
)

const (
	DefaultDigits      = 4
	DefaultMaxAttempts = 100
)

// CodeSet answers whether a code is already taken
type CodeSet interface {
	Has(code string) bool
}

// Codes is a map-backed CodeSet
type Codes map[string]struct{}

// Has implements CodeSet
func (c Codes) Has(code string) bool {
	_, ok := c[code]
	return ok
}

// Len returns the number of codes in the set
func (c Codes) Len() int {
	return len(c)
}

// Generator draws fixed-width decimal codes uniformly at random
type Generator struct {
	Digits      int
	MaxAttempts int
}

// NewGenerator returns a generator for codes of the given width
func NewGenerator(digits int) Generator {
	return Generator{Digits: digits, MaxAttempts: DefaultMaxAttempts}
}

func (g Generator) digits() int {
	if g.Digits <= 0 {
		return DefaultDigits
	}
	return g.Digits
}

// Space returns how many distinct codes exist
func (g Generator) Space() int64 {
	space := int64(1)
	for i := 0; i < g.digits(); i++ {
		space *= 10
	}
	return space
}

// Generate returns a code not present in existing. It fails with
// domain.ErrCodeSpaceExhausted instead of looping forever.
func (g Generator) Generate(existing CodeSet) (string, error) {
	space := g.Space()

	if counted, ok := existing.(interface{ Len() int }); ok && int64(counted.Len()) >= space {
		return "", fmt.Errorf("all %d codes of width %d are in use: %w", space, g.digits(), domain.ErrCodeSpaceExhausted)
	}

	attempts := g.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	limit := big.NewInt(space)
	for i := 0; i < attempts; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to read random code: %w", err)
		}

		code := fmt.Sprintf("%0*d", g.digits(), n.Int64())
		if existing == nil || !existing.Has(code) {
			return code, nil
		}
	}

	return "", fmt.Errorf("no free code after %d attempts: %w", attempts, domain.ErrCodeSpaceExhausted)
}

// Valid reports whether code is exactly digits decimal digits.
// Codes are used as storage keys and file names, so nothing else is accepted.
func Valid(code string, digits int) bool {
	if len(code) != digits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// Valid reports whether code has this generator's width
func (g Generator) Valid(code string) bool {
	return Valid(code, g.digits())
}

// Normalize strips everything but digits from user input and checks the width
func Normalize(input string, digits int) (string, bool) {
	var b strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	code := b.String()
	return code, len(code) == digits
}
