package textstats

import (
	"strings"
	"unicode"
)

// Text is a normalized view of an input string. It keeps the original runes
// so that a transformed letter sequence can be laid back into the original
// casing, spacing and punctuation.
type Text struct {
	original []rune
	alphabet *Alphabet
	letters  []int
	// positions[i] is the rune offset of the i-th letter in original.
	positions []int
}

// Normalize splits s into its alphabet letters and everything else.
func Normalize(s string, a *Alphabet) *Text {
	if a == nil {
		a = Latin()
	}
	t := &Text{original: []rune(s), alphabet: a}
	for pos, r := range t.original {
		if i, ok := a.Index(r); ok {
			t.letters = append(t.letters, i)
			t.positions = append(t.positions, pos)
		}
	}
	return t
}

// Original returns the input string unchanged.
func (t *Text) Original() string {
	return string(t.original)
}

// Alphabet returns the alphabet used to normalize the text.
func (t *Text) Alphabet() *Alphabet {
	return t.alphabet
}

// Letters returns the letter indices in reading order. Callers must not
// modify the returned slice.
func (t *Text) Letters() []int {
	return t.letters
}

// Len returns the number of alphabet letters.
func (t *Text) Len() int {
	return len(t.letters)
}

// Upper returns the letters only, uppercased, without separators.
func (t *Text) Upper() string {
	return t.alphabet.Decode(t.letters)
}

// Restore lays letters over the original text: each letter position takes
// the next value from letters, keeping the original case, while every
// non-letter rune is copied through. Missing values leave the original
// letter in place and surplus values are ignored.
func (t *Text) Restore(letters []int) string {
	out := make([]rune, len(t.original))
	copy(out, t.original)
	for i, pos := range t.positions {
		if i >= len(letters) {
			break
		}
		r := t.alphabet.Letter(letters[i])
		if unicode.IsLower(t.original[pos]) {
			r = unicode.ToLower(r)
		}
		out[pos] = r
	}
	return string(out)
}

// Words splits s into maximal runs of letters, uppercased.
func Words(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	for i, f := range fields {
		fields[i] = strings.ToUpper(f)
	}
	return fields
}
