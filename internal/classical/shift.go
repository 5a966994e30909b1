package classical

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"cypherify/internal/textstats"
)

// ShiftKey is the number of places each letter moves forward.
type ShiftKey int

func (k ShiftKey) Family() Family { return FamilyShift }
func (k ShiftKey) String() string { return strconv.Itoa(int(k)) }

// Shift is the Caesar cipher.
type Shift struct {
	base
}

// NewShift returns the shift model.
func NewShift(s Settings) *Shift {
	return &Shift{base: newBase(s)}
}

func (m *Shift) Family() Family { return FamilyShift }

func (m *Shift) KeySpace() KeySpace {
	return KeySpace{
		Description: fmt.Sprintf("shift amount 0..%d", m.size()-1),
		Log:         math.Log(float64(m.size())),
	}
}

// ParseKey accepts a number or a single letter (A=0).
func (m *Shift) ParseKey(s string) (Key, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return ShiftKey(mod(n, m.size())), nil
	}
	if r := []rune(s); len(r) == 1 {
		if i, ok := m.alphabet.Index(r[0]); ok {
			return ShiftKey(i), nil
		}
	}
	return nil, fmt.Errorf("%w: shift key %q must be a number or a letter", ErrInvalidKey, s)
}

func (m *Shift) Encrypt(plaintext string, key Key) (string, error) {
	k, err := keyAs[ShiftKey](key, FamilyShift)
	if err != nil {
		return "", err
	}
	return m.apply(textstats.Normalize(plaintext, m.alphabet), int(k)), nil
}

func (m *Shift) Decrypt(ciphertext string, key Key) (string, error) {
	k, err := keyAs[ShiftKey](key, FamilyShift)
	if err != nil {
		return "", err
	}
	return m.apply(textstats.Normalize(ciphertext, m.alphabet), -int(k)), nil
}

func (m *Shift) apply(t *textstats.Text, k int) string {
	return t.Restore(shiftAll(t.Letters(), k, m.size()))
}

// Recover decrypts under every shift and ranks the results.
func (m *Shift) Recover(ctx context.Context, text *textstats.Text) ([]CandidateResult, error) {
	if text.Len() == 0 {
		return m.empty(FamilyShift, text, ShiftKey(0)), nil
	}
	n := m.size()
	ks := m.KeySpace().Log
	profile := textstats.ProfileOf(text.Letters(), n)
	cands := make([]CandidateResult, 0, n)
	for k := 0; k < n; k++ {
		plain := shiftAll(text.Letters(), -k, n)
		step := fmt.Sprintf("Shift %d: move every letter %d places back (chi-squared %.2f)",
			k, k, textstats.ShiftedChiSquared(profile, m.settings.Model.Unigram(), k))
		if k == 13 && n == 26 {
			step += "; this is ROT13"
		}
		cands = append(cands, m.candidate(FamilyShift, ShiftKey(k), plain, text.Restore(plain), ks, step))
	}
	return m.truncate(cands), nil
}

func shiftAll(letters []int, k, n int) []int {
	out := make([]int, len(letters))
	for i, l := range letters {
		out[i] = mod(l+k, n)
	}
	return out
}
