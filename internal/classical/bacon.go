package classical

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"cypherify/internal/textstats"
)

// baconLetters is Bacon's 24-letter alphabet in code order. I also
// stands for J and U for V.
const baconLetters = "ABCDEFGHIKLMNOPQRSTUWXYZ"

const baconGroup = 5

// BaconKey selects the two symbols a Bacon encoding is written with.
type BaconKey struct {
	Zero, One rune
}

// The symbol pairs in use.
var (
	BaconAB     = BaconKey{Zero: 'A', One: 'B'}
	BaconBinary = BaconKey{Zero: '0', One: '1'}
)

func (k BaconKey) Family() Family { return FamilyBacon }
func (k BaconKey) String() string { return string([]rune{k.Zero, k.One}) }

// Bacon writes each letter as a group of five binary symbols.
type Bacon struct {
	base
}

// NewBacon returns the Bacon encoding.
func NewBacon(s Settings) *Bacon {
	return &Bacon{base: newBase(s)}
}

func (m *Bacon) Family() Family { return FamilyBacon }

func (m *Bacon) KeySpace() KeySpace {
	return KeySpace{Description: "no key (encoding); symbols A/B or 0/1"}
}

// ParseKey accepts the output symbols: "AB" (the default) or "01".
func (m *Bacon) ParseKey(s string) (Key, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "/", "")) {
	case "", "AB":
		return BaconAB, nil
	case "01", "BINARY":
		return BaconBinary, nil
	}
	return nil, fmt.Errorf("%w: Bacon symbols %q must be AB or 01", ErrInvalidKey, s)
}

// Encrypt encodes letters; a space becomes '/' and anything else is
// dropped. J is written as I and V as U.
func (m *Bacon) Encrypt(plaintext string, key Key) (string, error) {
	k := BaconAB
	if key != nil {
		var err error
		if k, err = keyAs[BaconKey](key, FamilyBacon); err != nil {
			return "", err
		}
	}
	var parts []string
	for _, r := range strings.ToUpper(plaintext) {
		switch r {
		case ' ':
			parts = append(parts, "/")
			continue
		case 'J':
			r = 'I'
		case 'V':
			r = 'U'
		}
		i := strings.IndexRune(baconLetters, r)
		if i < 0 {
			continue
		}
		code := make([]rune, baconGroup)
		for bit := range code {
			code[bit] = k.Zero
			if i&(1<<(baconGroup-1-bit)) != 0 {
				code[bit] = k.One
			}
		}
		parts = append(parts, string(code))
	}
	return strings.Join(parts, " "), nil
}

// Decrypt reads groups of five symbols in either notation; whitespace is
// ignored and '/' marks a word break. The key is not needed.
func (m *Bacon) Decrypt(ciphertext string, _ Key) (string, error) {
	plaintext, _, err := decodeBacon(ciphertext)
	return plaintext, err
}

func decodeBacon(s string) (string, BaconKey, error) {
	var (
		b       strings.Builder
		k       BaconKey
		value   int
		n       int
		symbols int
	)
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			continue
		case r == '/':
			if n != 0 {
				return "", k, fmt.Errorf("%w: word break inside a group", ErrInvalidInput)
			}
			b.WriteRune(' ')
			continue
		}
		bit, pair, ok := baconSymbol(r)
		if !ok {
			return "", k, fmt.Errorf("%w: %q is not a Bacon symbol", ErrInvalidInput, r)
		}
		if symbols == 0 {
			k = pair
		} else if pair != k {
			return "", k, fmt.Errorf("%w: mixed A/B and 0/1 symbols", ErrInvalidInput)
		}
		symbols++
		value = value<<1 | bit
		n++
		if n == baconGroup {
			if value >= len(baconLetters) {
				return "", k, fmt.Errorf("%w: group %d has no letter", ErrInvalidInput, symbols/baconGroup)
			}
			b.WriteByte(baconLetters[value])
			value, n = 0, 0
		}
	}
	switch {
	case symbols == 0:
		return "", k, fmt.Errorf("%w: no Bacon symbols found", ErrInvalidInput)
	case n != 0:
		return "", k, fmt.Errorf("%w: %d symbols do not form groups of %d", ErrInvalidInput, symbols, baconGroup)
	}
	return b.String(), k, nil
}

func baconSymbol(r rune) (bit int, pair BaconKey, ok bool) {
	switch unicode.ToUpper(r) {
	case 'A':
		return 0, BaconAB, true
	case 'B':
		return 1, BaconAB, true
	case '0':
		return 0, BaconBinary, true
	case '1':
		return 1, BaconBinary, true
	}
	return 0, BaconKey{}, false
}

// Recover decodes inputs made only of Bacon symbols, spaces and '/'.
func (m *Bacon) Recover(ctx context.Context, text *textstats.Text) ([]CandidateResult, error) {
	original := text.Original()
	plaintext, k, err := decodeBacon(original)
	if err != nil {
		return nil, nil
	}
	c := m.encoded(FamilyBacon, k, plaintext, countSymbols(original),
		fmt.Sprintf("Input consists only of the symbols %c and %c in groups of %d", k.Zero, k.One, baconGroup),
		"Each group is a binary number indexing the 24-letter alphabet (I=J, U=V); '/' marks a word break")
	return []CandidateResult{c}, nil
}
