package classical

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"

	"cypherify/internal/textstats"
)

// AffineKey encrypts letter x as (A*x + B) mod m.
type AffineKey struct {
	A, B int
	inv  int
	m    int
}

// NewAffineKey validates a and b for an alphabet of size m. The multiplier
// must be coprime with m.
func NewAffineKey(a, b, m int) (AffineKey, error) {
	a, b = mod(a, m), mod(b, m)
	inv, ok := modInverse(a, m)
	if !ok {
		return AffineKey{}, fmt.Errorf("%w: a=%d shares a factor with %d", ErrNonInvertibleKey, a, m)
	}
	return AffineKey{A: a, B: b, inv: inv, m: m}, nil
}

func (k AffineKey) Family() Family { return FamilyAffine }
func (k AffineKey) String() string { return fmt.Sprintf("a=%d,b=%d", k.A, k.B) }

// Inverse returns the multiplicative inverse of A.
func (k AffineKey) Inverse() int { return k.inv }

// Affine is the affine cipher.
type Affine struct {
	base
	keys []AffineKey
}

// NewAffine returns the affine model with every valid key precomputed.
func NewAffine(s Settings) *Affine {
	m := &Affine{base: newBase(s)}
	n := m.size()
	for a := 1; a < n; a++ {
		for b := 0; b < n; b++ {
			if k, err := NewAffineKey(a, b, n); err == nil {
				m.keys = append(m.keys, k)
			}
		}
	}
	return m
}

func (m *Affine) Family() Family { return FamilyAffine }

func (m *Affine) KeySpace() KeySpace {
	return KeySpace{
		Description: fmt.Sprintf("%d pairs (a, b) with a coprime to %d", len(m.keys), m.size()),
		Log:         math.Log(float64(len(m.keys))),
	}
}

var affineKeyPattern = regexp.MustCompile(`^\s*(?:a\s*=\s*)?(-?\d+)\s*[, ;]\s*(?:b\s*=\s*)?(-?\d+)\s*$`)

// ParseKey accepts "a,b", "a b" or "a=5,b=8".
func (m *Affine) ParseKey(s string) (Key, error) {
	match := affineKeyPattern.FindStringSubmatch(s)
	if match == nil {
		return nil, fmt.Errorf("%w: affine key %q must look like \"a,b\"", ErrInvalidKey, s)
	}
	a, _ := strconv.Atoi(match[1])
	b, _ := strconv.Atoi(match[2])
	return NewAffineKey(a, b, m.size())
}

func (m *Affine) Encrypt(plaintext string, key Key) (string, error) {
	k, err := m.checkKey(key)
	if err != nil {
		return "", err
	}
	t := textstats.Normalize(plaintext, m.alphabet)
	out := make([]int, t.Len())
	for i, x := range t.Letters() {
		out[i] = mod(k.A*x+k.B, k.m)
	}
	return t.Restore(out), nil
}

func (m *Affine) Decrypt(ciphertext string, key Key) (string, error) {
	k, err := m.checkKey(key)
	if err != nil {
		return "", err
	}
	t := textstats.Normalize(ciphertext, m.alphabet)
	return t.Restore(affineDecrypt(t.Letters(), k)), nil
}

func (m *Affine) checkKey(key Key) (AffineKey, error) {
	k, err := keyAs[AffineKey](key, FamilyAffine)
	if err != nil {
		return k, err
	}
	if k.m != m.size() {
		return NewAffineKey(k.A, k.B, m.size())
	}
	return k, nil
}

// Recover decrypts under every valid (a, b) pair.
func (m *Affine) Recover(ctx context.Context, text *textstats.Text) ([]CandidateResult, error) {
	if text.Len() == 0 {
		return m.empty(FamilyAffine, text, nil), nil
	}
	ks := m.KeySpace().Log
	cands := make([]CandidateResult, 0, len(m.keys))
	for _, k := range m.keys {
		plain := affineDecrypt(text.Letters(), k)
		step := fmt.Sprintf("Affine a=%d, b=%d: decrypt each letter as %d*(y-%d) mod %d", k.A, k.B, k.inv, k.B, k.m)
		if k.A == 1 {
			step += "; with a=1 this is a plain shift"
		}
		cands = append(cands, m.candidate(FamilyAffine, k, plain, text.Restore(plain), ks, step))
	}
	return m.truncate(cands), nil
}

func affineDecrypt(letters []int, k AffineKey) []int {
	out := make([]int, len(letters))
	for i, y := range letters {
		out[i] = mod(k.inv*(y-k.B), k.m)
	}
	return out
}

func modInverse(a, m int) (int, bool) {
	t, newT := 0, 1
	r, newR := m, mod(a, m)
	for newR != 0 {
		q := r / newR
		t, newT = newT, t-q*newT
		r, newR = newR, r-q*newR
	}
	if r != 1 {
		return 0, false
	}
	return mod(t, m), true
}
