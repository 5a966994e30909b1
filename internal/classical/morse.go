package classical

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"cypherify/internal/textstats"
)

var morseTable = map[rune]string{
	'A': ".-", 'B': "-...", 'C': "-.-.", 'D': "-..", 'E': ".", 'F': "..-.",
	'G': "--.", 'H': "....", 'I': "..", 'J': ".---", 'K': "-.-", 'L': ".-..",
	'M': "--", 'N': "-.", 'O': "---", 'P': ".--.", 'Q': "--.-", 'R': ".-.",
	'S': "...", 'T': "-", 'U': "..-", 'V': "...-", 'W': ".--", 'X': "-..-",
	'Y': "-.--", 'Z': "--..",
	'0': "-----", '1': ".----", '2': "..---", '3': "...--", '4': "....-",
	'5': ".....", '6': "-....", '7': "--...", '8': "---..", '9': "----.",
	'.': ".-.-.-", ',': "--..--", '?': "..--..", '!': "-.-.--",
}

var morseReverse = func() map[string]rune {
	m := make(map[string]rune, len(morseTable))
	for r, code := range morseTable {
		m[code] = r
	}
	return m
}()

// Morse is International Morse code: symbols separated by spaces, words
// by '/'.
type Morse struct {
	base
}

// NewMorse returns the Morse encoding.
func NewMorse(s Settings) *Morse {
	return &Morse{base: newBase(s)}
}

func (m *Morse) Family() Family { return FamilyMorse }

func (m *Morse) KeySpace() KeySpace {
	return KeySpace{Description: "no key (encoding)"}
}

func (m *Morse) ParseKey(string) (Key, error) {
	return NoKey{family: FamilyMorse}, nil
}

// Encrypt encodes every character with a Morse symbol; others are dropped.
func (m *Morse) Encrypt(plaintext string, _ Key) (string, error) {
	var parts []string
	for _, r := range strings.ToUpper(plaintext) {
		if r == ' ' {
			parts = append(parts, "/")
		} else if code, ok := morseTable[r]; ok {
			parts = append(parts, code)
		}
	}
	return strings.Join(parts, " "), nil
}

func (m *Morse) Decrypt(ciphertext string, _ Key) (string, error) {
	fields := strings.Fields(strings.ReplaceAll(ciphertext, "/", " / "))
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: no Morse symbols found", ErrInvalidInput)
	}
	var b strings.Builder
	for _, f := range fields {
		if f == "/" {
			b.WriteRune(' ')
			continue
		}
		r, ok := morseReverse[f]
		if !ok {
			return "", fmt.Errorf("%w: unknown Morse symbol %q", ErrInvalidInput, f)
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}

func morseRune(r rune) bool {
	return r == '.' || r == '-' || r == '/' || unicode.IsSpace(r)
}

// Recover decodes inputs made only of dots, dashes, slashes and spaces.
func (m *Morse) Recover(ctx context.Context, text *textstats.Text) ([]CandidateResult, error) {
	original := text.Original()
	if strings.IndexFunc(original, func(r rune) bool { return !morseRune(r) }) >= 0 ||
		!strings.ContainsAny(original, ".-") {
		return nil, nil
	}
	plaintext, err := m.Decrypt(original, nil)
	if err != nil {
		return nil, nil
	}
	c := m.encoded(FamilyMorse, NoKey{family: FamilyMorse}, plaintext, countSymbols(original),
		"Input consists only of dots, dashes and separators",
		"Each space-separated symbol decodes to one character; '/' marks a word break")
	return []CandidateResult{c}, nil
}
