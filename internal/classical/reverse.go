package classical

import (
	"context"
	"slices"

	"cypherify/internal/textstats"
)

// Reverse writes the text back to front. It is its own inverse.
type Reverse struct {
	base
}

// NewReverse returns the reversal transform.
func NewReverse(s Settings) *Reverse {
	return &Reverse{base: newBase(s)}
}

func (m *Reverse) Family() Family { return FamilyReverse }

func (m *Reverse) KeySpace() KeySpace {
	return KeySpace{Description: "no key (reversal)"}
}

func (m *Reverse) ParseKey(string) (Key, error) {
	return NoKey{family: FamilyReverse}, nil
}

func (m *Reverse) Encrypt(plaintext string, _ Key) (string, error) {
	return reverseString(plaintext), nil
}

func (m *Reverse) Decrypt(ciphertext string, _ Key) (string, error) {
	return reverseString(ciphertext), nil
}

// Recover reads the text backwards.
func (m *Reverse) Recover(ctx context.Context, text *textstats.Text) ([]CandidateResult, error) {
	key := NoKey{family: FamilyReverse}
	if text.Len() == 0 {
		return m.empty(FamilyReverse, text, key), nil
	}
	plain := slices.Clone(text.Letters())
	slices.Reverse(plain)
	c := m.candidate(FamilyReverse, key, plain, reverseString(text.Original()), 0,
		"Letter frequencies are untouched by reversal; only the order changes",
		"Read the text from the last character to the first")
	return []CandidateResult{c}, nil
}

func reverseString(s string) string {
	r := []rune(s)
	slices.Reverse(r)
	return string(r)
}
