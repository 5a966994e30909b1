// Package sample produces practice inputs: short English passages for the
// classical ciphers and letter-encoded stream cipher output that a
// classical analysis should refuse to explain.
package sample

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20"

	"cypherify/internal/textstats"
)

//go:embed passages.txt
var passageData string

var passages = strings.Split(strings.TrimSpace(passageData), "\n")

// ErrNoPassage is returned for an out-of-range passage index.
var ErrNoPassage = errors.New("sample: no such passage")

// Passages returns the number of built-in passages.
func Passages() int {
	return len(passages)
}

// Passage returns built-in passage i.
func Passage(i int) (string, error) {
	if i < 0 || i >= len(passages) {
		return "", fmt.Errorf("%w: %d (have %d)", ErrNoPassage, i, len(passages))
	}
	return passages[i], nil
}

// keystream returns n bytes of ChaCha20 keystream under a key derived from
// seed.
func keystream(seed string, n int) ([]byte, error) {
	key := blake2b.Sum256([]byte(seed))
	c, err := chacha20.NewUnauthenticatedCipher(key[:], make([]byte, chacha20.NonceSize))
	if err != nil {
		return nil, fmt.Errorf("sample: %w", err)
	}
	out := make([]byte, n)
	c.XORKeyStream(out, out)
	return out, nil
}

// ModernLetters returns n letters of ChaCha20 keystream derived from seed,
// mapped uniformly onto the alphabet (nil selects A-Z). The result has the
// flat letter statistics of modern cipher output.
func ModernLetters(seed string, n int, a *textstats.Alphabet) (string, error) {
	if n < 0 {
		return "", fmt.Errorf("sample: negative length %d", n)
	}
	if a == nil {
		a = textstats.Latin()
	}
	size := a.Size()
	if size > 256 {
		return "", fmt.Errorf("sample: alphabet of %d letters is too large", size)
	}
	// Bytes at or above limit would bias the low letters.
	limit := 256 - 256%size

	out := make([]rune, 0, n)
	for buf := 2*n + 64; len(out) < n; buf *= 2 {
		ks, err := keystream(seed, buf)
		if err != nil {
			return "", err
		}
		out = out[:0]
		for _, x := range ks {
			if int(x) >= limit {
				continue
			}
			out = append(out, a.Letter(int(x)%size))
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

// ModernEncrypt encrypts plaintext with ChaCha20 under a key derived from
// passphrase and renders the ciphertext bytes as pairs of letters
// (high nibble, low nibble; A-P).
func ModernEncrypt(plaintext, passphrase string) (string, error) {
	ks, err := keystream(passphrase, len(plaintext))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.Grow(2 * len(plaintext))
	for i := 0; i < len(plaintext); i++ {
		x := plaintext[i] ^ ks[i]
		b.WriteByte('A' + x>>4)
		b.WriteByte('A' + x&0x0f)
	}
	return b.String(), nil
}

// ModernDecrypt reverses ModernEncrypt.
func ModernDecrypt(ciphertext, passphrase string) (string, error) {
	if len(ciphertext)%2 != 0 {
		return "", fmt.Errorf("sample: ciphertext has odd length %d", len(ciphertext))
	}
	raw := make([]byte, len(ciphertext)/2)
	for i := range raw {
		hi, lo := ciphertext[2*i]-'A', ciphertext[2*i+1]-'A'
		if hi > 15 || lo > 15 {
			return "", fmt.Errorf("sample: invalid character at %d", 2*i)
		}
		raw[i] = hi<<4 | lo
	}
	ks, err := keystream(passphrase, len(raw))
	if err != nil {
		return "", err
	}
	for i := range raw {
		raw[i] ^= ks[i]
	}
	return string(raw), nil
}
