package classical

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"cypherify/internal/textstats"
)

// NoKey is the key of keyless encodings.
type NoKey struct {
	family Family
}

func (k NoKey) Family() Family { return k.family }
func (k NoKey) String() string { return "" }

// A1Z26 writes each letter as its position in the alphabet, 0 for a space.
type A1Z26 struct {
	base
}

// NewA1Z26 returns the A1Z26 encoding.
func NewA1Z26(s Settings) *A1Z26 {
	return &A1Z26{base: newBase(s)}
}

func (m *A1Z26) Family() Family { return FamilyA1Z26 }

func (m *A1Z26) KeySpace() KeySpace {
	return KeySpace{Description: "no key (encoding)"}
}

func (m *A1Z26) ParseKey(string) (Key, error) {
	return NoKey{family: FamilyA1Z26}, nil
}

// Encrypt joins letter positions with '-'. Spaces become 0; anything else
// is dropped.
func (m *A1Z26) Encrypt(plaintext string, _ Key) (string, error) {
	var parts []string
	for _, r := range plaintext {
		if i, ok := m.alphabet.Index(r); ok {
			parts = append(parts, strconv.Itoa(i+1))
		} else if r == ' ' {
			parts = append(parts, "0")
		}
	}
	return strings.Join(parts, "-"), nil
}

// Decrypt accepts numbers separated by '-', ',' or whitespace.
func (m *A1Z26) Decrypt(ciphertext string, _ Key) (string, error) {
	fields := strings.FieldsFunc(ciphertext, a1z26Separator)
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: no numbers found", ErrInvalidInput)
	}
	var b strings.Builder
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		switch {
		case err != nil:
			return "", fmt.Errorf("%w: %q is not a number", ErrInvalidInput, f)
		case n == 0:
			b.WriteRune(' ')
		case n >= 1 && n <= m.size():
			b.WriteRune(m.alphabet.Letter(n - 1))
		default:
			return "", fmt.Errorf("%w: %d is outside 1..%d", ErrInvalidInput, n, m.size())
		}
	}
	return b.String(), nil
}

func a1z26Separator(r rune) bool {
	return r == '-' || r == ',' || unicode.IsSpace(r)
}

// Recover decodes inputs made only of numbers and separators.
func (m *A1Z26) Recover(ctx context.Context, text *textstats.Text) ([]CandidateResult, error) {
	original := text.Original()
	onlyNumbers := strings.IndexFunc(original, func(r rune) bool {
		return !unicode.IsDigit(r) && !a1z26Separator(r)
	}) < 0
	if !onlyNumbers || !strings.ContainsFunc(original, unicode.IsDigit) {
		return nil, nil
	}
	plaintext, err := m.Decrypt(original, nil)
	if err != nil {
		return nil, nil
	}
	c := m.encoded(FamilyA1Z26, NoKey{family: FamilyA1Z26}, plaintext, countSymbols(original),
		"Input consists only of numbers and separators",
		fmt.Sprintf("Numbers 1..%d map to letters A..%c, 0 to a space", m.size(), m.alphabet.Letter(m.size()-1)))
	return []CandidateResult{c}, nil
}
