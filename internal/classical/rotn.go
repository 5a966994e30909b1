package classical

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"cypherify/internal/textstats"
)

// The ROT-N family rotates every printable ASCII character except space.
const (
	rotFirst = '!'
	rotLast  = '~'
	rotSize  = rotLast - rotFirst + 1
)

// RotKey is the rotation amount over the printable ASCII range.
type RotKey int

func (k RotKey) Family() Family { return FamilyRotN }
func (k RotKey) String() string { return strconv.Itoa(int(k)) }

// RotN is the ROT47-style rotation cipher.
type RotN struct {
	base
}

// NewRotN returns the ROT-N model.
func NewRotN(s Settings) *RotN {
	return &RotN{base: newBase(s)}
}

func (m *RotN) Family() Family { return FamilyRotN }

func (m *RotN) KeySpace() KeySpace {
	return KeySpace{
		Description: fmt.Sprintf("rotation 0..%d over printable ASCII", rotSize-1),
		Log:         math.Log(rotSize),
	}
}

func (m *RotN) ParseKey(s string) (Key, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: rotation %q must be a number", ErrInvalidKey, s)
	}
	return RotKey(mod(n, rotSize)), nil
}

func (m *RotN) Encrypt(plaintext string, key Key) (string, error) {
	k, err := keyAs[RotKey](key, FamilyRotN)
	if err != nil {
		return "", err
	}
	return rotate(plaintext, int(k)), nil
}

func (m *RotN) Decrypt(ciphertext string, key Key) (string, error) {
	k, err := keyAs[RotKey](key, FamilyRotN)
	if err != nil {
		return "", err
	}
	return rotate(ciphertext, -int(k)), nil
}

// Recover tries every rotation. Inputs without rotatable characters have
// no candidates.
func (m *RotN) Recover(ctx context.Context, text *textstats.Text) ([]CandidateResult, error) {
	original := text.Original()
	if !strings.ContainsFunc(original, rotatable) {
		return nil, nil
	}
	ks := m.KeySpace().Log
	cands := make([]CandidateResult, 0, rotSize)
	for k := 0; k < rotSize; k++ {
		plaintext := rotate(original, -k)
		plain := textstats.Normalize(plaintext, m.alphabet)
		step := fmt.Sprintf("Rotation %d: move every printable character %d places back", k, k)
		if k == 47 {
			step += "; this is ROT47"
		}
		a := m.scorer.AssessPrintable(plain.Letters(), plaintext, ks)
		cands = append(cands, m.assessed(FamilyRotN, RotKey(k), a, plaintext, step))
	}
	return m.truncate(cands), nil
}

func rotatable(r rune) bool {
	return r >= rotFirst && r <= rotLast
}

func rotate(s string, k int) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if rotatable(r) {
			r = rotFirst + rune(mod(int(r-rotFirst)+k, rotSize))
		}
		b.WriteRune(r)
	}
	return b.String()
}
