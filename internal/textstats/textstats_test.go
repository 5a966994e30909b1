package textstats

import (
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadHeldout(t *testing.T) []int {
	t.Helper()
	data, err := os.ReadFile("testdata/heldout.txt")
	require.NoError(t, err)
	return Latin().Encode(string(data))
}

func shiftLetters(letters []int, k int) []int {
	out := make([]int, len(letters))
	for i, l := range letters {
		out[i] = (l + k) % 26
	}
	return out
}

func TestNewAlphabet(t *testing.T) {
	tests := []struct {
		name    string
		letters string
		wantErr bool
	}{
		{"latin", DefaultLetters, false},
		{"lowercase folded", "abc", false},
		{"duplicate", "ABCA", true},
		{"digit", "AB1", true},
		{"too short", "A", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewAlphabet(tt.letters)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAlphabet)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.letters), a.Size())
		})
	}
}

func TestNormalizeRestore(t *testing.T) {
	text := Normalize("Hello, World! 42", nil)

	assert.Equal(t, 10, text.Len())
	assert.Equal(t, "HELLOWORLD", text.Upper())
	assert.Equal(t, "Hello, World! 42", text.Restore(text.Letters()))

	shifted := shiftLetters(text.Letters(), 3)
	assert.Equal(t, "Khoor, Zruog! 42", text.Restore(shifted))
}

func TestNormalizeEmpty(t *testing.T) {
	text := Normalize("123 !?", nil)
	assert.Equal(t, 0, text.Len())
	assert.Equal(t, "123 !?", text.Restore(nil))
}

func TestIndexOfCoincidence(t *testing.T) {
	english := ProfileOf(loadHeldout(t), 26)
	ic := IndexOfCoincidence(english)
	assert.InDelta(t, English().ExpectedIC(), ic, 0.008)

	flat := make([]int, 0, 26*20)
	for i := 0; i < 20; i++ {
		for l := 0; l < 26; l++ {
			flat = append(flat, l)
		}
	}
	assert.Less(t, IndexOfCoincidence(ProfileOf(flat, 26)), 0.04)

	assert.Equal(t, 0.0, IndexOfCoincidence(Analyze("a")))
	assert.Equal(t, 0.0, IndexOfCoincidence(Analyze("")))
}

func TestChiSquared(t *testing.T) {
	letters := loadHeldout(t)
	ref := English().Unigram()

	plain := ChiSquared(ProfileOf(letters, 26), ref)
	shifted := ChiSquared(ProfileOf(shiftLetters(letters, 7), 26), ref)
	assert.Less(t, plain, shifted)

	// Undoing the shift through ShiftedChiSquared matches the plain score.
	assert.InDelta(t, plain, ShiftedChiSquared(ProfileOf(shiftLetters(letters, 7), 26), ref, 7), 1e-9)

	empty := Analyze("")
	assert.True(t, empty.Degenerate())
	assert.Equal(t, 0.0, ChiSquared(empty, ref))
}

func TestEntropy(t *testing.T) {
	assert.Equal(t, 0.0, Entropy(Analyze("aaaa")))
	assert.InDelta(t, math.Log2(26), Entropy(Analyze(DefaultLetters)), 1e-9)
}

func TestEnglishModel(t *testing.T) {
	m := English()
	assert.Same(t, m, English())
	assert.True(t, m.IsWord("hello"))
	assert.True(t, m.IsWord("WORLD"))
	assert.False(t, m.IsWord("XQZV"))

	var sum float64
	for _, p := range m.Unigram() {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.InDelta(t, 1.0/26, m.RandomIC(), 1e-12)
}

func TestLanguageEvidence(t *testing.T) {
	s := NewScorer(nil, DefaultScoreOptions())
	letters := loadHeldout(t)

	plain := s.LanguageEvidence(letters) / float64(len(letters))
	shifted := s.LanguageEvidence(shiftLetters(letters, 3)) / float64(len(letters))

	assert.Greater(t, plain, 0.3)
	assert.Less(t, shifted, 0.0)
	assert.Greater(t, s.TrigramFitness(letters), s.TrigramFitness(shiftLetters(letters, 3)))
}

func TestAssess(t *testing.T) {
	s := NewScorer(nil, DefaultScoreOptions())
	ks := math.Log(26)

	t.Run("hello world", func(t *testing.T) {
		text := Normalize("Hello World", nil)
		a := s.Assess(text.Letters(), text.Original(), ks)
		assert.Equal(t, 2, a.WordsRecognized)
		assert.Greater(t, a.Confidence, 0.9)
		assert.False(t, a.Capped)
	})

	t.Run("gibberish", func(t *testing.T) {
		text := Normalize("Ebiil Tloia", nil)
		a := s.Assess(text.Letters(), text.Original(), ks)
		assert.Less(t, a.Confidence, 0.3)
	})

	t.Run("short text capped", func(t *testing.T) {
		text := Normalize("the end", nil)
		a := s.Assess(text.Letters(), text.Original(), ks)
		assert.True(t, a.Capped)
		assert.LessOrEqual(t, a.Confidence, 0.25*6/10)
	})

	t.Run("no letters", func(t *testing.T) {
		a := s.Assess(nil, "12345", ks)
		assert.Equal(t, 0.0, a.Confidence)
		assert.False(t, math.IsInf(a.Score, 0))
	})
}

func TestAssessEncoded(t *testing.T) {
	s := NewScorer(nil, DefaultScoreOptions())
	text := Normalize("HELLO WORLD", nil)

	plain := s.Assess(text.Letters(), text.Original(), 0)
	enc := s.AssessEncoded(text.Letters(), text.Original(), 50)
	assert.InDelta(t, 40*math.Log(26), enc.EncodingEvidence, 1e-9)
	assert.InDelta(t, plain.Score+enc.EncodingEvidence, enc.Score, 1e-9)

	short := s.AssessEncoded(text.Letters(), text.Original(), 5)
	assert.Zero(t, short.EncodingEvidence)
}

func TestLogitLogistic(t *testing.T) {
	for _, p := range []float64{0.01, 0.3, 0.5, 0.99} {
		assert.InDelta(t, p, Logistic(Logit(p)), 1e-12)
	}
}

func TestSymbolEvidence(t *testing.T) {
	assert.Equal(t, 0.0, SymbolEvidence("Hello World"))
	assert.InDelta(t, 2*punctuationEvidence, SymbolEvidence("Hello, World!"), 1e-12)
	assert.InDelta(t, digitEvidence+symbolEvidence, SymbolEvidence("a1=b"), 1e-12)

	s := NewScorer(nil, DefaultScoreOptions())
	text := Normalize("AMB6=EDAN>D@G;E9", nil)
	plain := s.Assess(text.Letters(), text.Original(), math.Log(94))
	printable := s.AssessPrintable(text.Letters(), text.Original(), math.Log(94))
	assert.Less(t, printable.Score, plain.Score-20)
	assert.Less(t, printable.Confidence, 0.01)
}
