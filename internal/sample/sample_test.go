package sample

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cypherify/internal/textstats"
)

func TestPassages(t *testing.T) {
	require.Greater(t, Passages(), 3)
	for i := 0; i < Passages(); i++ {
		p, err := Passage(i)
		require.NoError(t, err)
		assert.Greater(t, len(textstats.Latin().Encode(p)), 50, "passage %d", i)
	}
	_, err := Passage(Passages())
	assert.True(t, errors.Is(err, ErrNoPassage))
}

func TestModernLetters(t *testing.T) {
	got, err := ModernLetters("cypherify", 16, nil)
	require.NoError(t, err)
	assert.Equal(t, "EGDOZBLGRUTSMCZC", got)

	again, _ := ModernLetters("cypherify", 16, nil)
	assert.Equal(t, got, again)

	long, err := ModernLetters("cypherify", 64, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(long, got))

	other, _ := ModernLetters("modern", 16, nil)
	assert.NotEqual(t, got, other)

	empty, err := ModernLetters("x", 0, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestModernLettersAreFlat(t *testing.T) {
	s, err := ModernLetters("flat", 5000, nil)
	require.NoError(t, err)
	p := textstats.Analyze(s)
	assert.InDelta(t, 1.0/26, textstats.IndexOfCoincidence(p), 0.003)
}

func TestModernEncryptRoundTrip(t *testing.T) {
	ct, err := ModernEncrypt("Attack at dawn!", "secret")
	require.NoError(t, err)
	assert.Len(t, ct, 30)
	assert.Equal(t, strings.Trim(ct, "ABCDEFGHIJKLMNOP"), "")

	pt, err := ModernDecrypt(ct, "secret")
	require.NoError(t, err)
	assert.Equal(t, "Attack at dawn!", pt)

	_, err = ModernDecrypt("ABC", "secret")
	assert.Error(t, err)
	_, err = ModernDecrypt("ZZ", "secret")
	assert.Error(t, err)
}
