// Package textstats provides the statistical primitives used by cypherify:
// alphabet handling, text normalization, letter frequency profiles, the
// reference language model and plausibility scoring.
//
// Everything in this package is pure and safe for concurrent use once
// constructed. The reference model is built exactly once and is read-only
// afterwards.
package textstats

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"
)

// DefaultLetters is the 26-letter Latin alphabet.
const DefaultLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// ErrInvalidAlphabet is returned for empty or duplicate-letter alphabets.
var ErrInvalidAlphabet = errors.New("textstats: invalid alphabet")

// Alphabet is an ordered set of uppercase letters. Lookups are case-folded.
type Alphabet struct {
	letters []rune
	index   map[rune]int
}

// NewAlphabet builds an alphabet from the given letters.
func NewAlphabet(letters string) (*Alphabet, error) {
	a := &Alphabet{index: make(map[rune]int)}
	for _, r := range strings.ToUpper(letters) {
		if !unicode.IsLetter(r) {
			return nil, fmt.Errorf("%w: %q is not a letter", ErrInvalidAlphabet, r)
		}
		if _, dup := a.index[r]; dup {
			return nil, fmt.Errorf("%w: duplicate letter %q", ErrInvalidAlphabet, r)
		}
		a.index[r] = len(a.letters)
		a.letters = append(a.letters, r)
	}
	if len(a.letters) < 2 {
		return nil, fmt.Errorf("%w: need at least two letters", ErrInvalidAlphabet)
	}
	return a, nil
}

var (
	defaultAlphabet     *Alphabet
	defaultAlphabetOnce sync.Once
)

// Latin returns the shared 26-letter alphabet.
func Latin() *Alphabet {
	defaultAlphabetOnce.Do(func() {
		a, err := NewAlphabet(DefaultLetters)
		if err != nil {
			panic(err)
		}
		defaultAlphabet = a
	})
	return defaultAlphabet
}

// Size returns the number of letters.
func (a *Alphabet) Size() int {
	return len(a.letters)
}

// Index returns the position of r in the alphabet, ignoring case.
func (a *Alphabet) Index(r rune) (int, bool) {
	i, ok := a.index[unicode.ToUpper(r)]
	return i, ok
}

// Letter returns the uppercase letter at position i.
func (a *Alphabet) Letter(i int) rune {
	return a.letters[i]
}

// Encode maps every alphabet letter of s to its index, dropping the rest.
func (a *Alphabet) Encode(s string) []int {
	out := make([]int, 0, len(s))
	for _, r := range s {
		if i, ok := a.Index(r); ok {
			out = append(out, i)
		}
	}
	return out
}

// Decode renders letter indices as an uppercase string.
func (a *Alphabet) Decode(idx []int) string {
	var b strings.Builder
	b.Grow(len(idx))
	for _, i := range idx {
		b.WriteRune(a.letters[i])
	}
	return b.String()
}

// String returns the letters in order.
func (a *Alphabet) String() string {
	return string(a.letters)
}
