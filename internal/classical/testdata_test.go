package classical

import (
	"math/rand"
	"os"
	"testing"

	"cypherify/internal/textstats"
)

// TestDataGenerator produces reproducible plaintexts and keys.
type TestDataGenerator struct {
	rng    *rand.Rand
	source []rune
	// positions of alphabet letters within source
	letterPos []int
}

// NewTestDataGenerator creates a generator with a seed over the held-out
// English sample in testdata.
func NewTestDataGenerator(t *testing.T, seed int64) *TestDataGenerator {
	t.Helper()
	data, err := os.ReadFile("testdata/plaintext.txt")
	if err != nil {
		t.Fatalf("read plaintext sample: %v", err)
	}
	g := &TestDataGenerator{
		rng:    rand.New(rand.NewSource(seed)),
		source: []rune(string(data)),
	}
	for i, r := range g.source {
		if _, ok := textstats.Latin().Index(r); ok {
			g.letterPos = append(g.letterPos, i)
		}
	}
	return g
}

// Plaintext returns a passage of the sample holding exactly n letters,
// with its spacing and punctuation.
func (g *TestDataGenerator) Plaintext(n int) string {
	start := g.rng.Intn(len(g.letterPos) - n + 1)
	from := g.letterPos[start]
	to := g.letterPos[start+n-1] + 1
	return string(g.source[from:to])
}

// Keyword returns a random keyword of the given length whose minimal
// period is the full length.
func (g *TestDataGenerator) Keyword(length int) string {
	for {
		shifts := make([]int, length)
		for i := range shifts {
			shifts[i] = g.rng.Intn(26)
		}
		if len(minimalPeriod(shifts)) == length {
			return textstats.Latin().Decode(shifts)
		}
	}
}

// CipherAlphabet returns a random permutation of the Latin alphabet.
func (g *TestDataGenerator) CipherAlphabet() string {
	perm := g.rng.Perm(26)
	return textstats.Latin().Decode(perm)
}

// Letters returns n uniformly random uppercase letters.
func (g *TestDataGenerator) Letters(n int) string {
	out := make([]int, n)
	for i := range out {
		out[i] = g.rng.Intn(26)
	}
	return textstats.Latin().Decode(out)
}

// Intn exposes the generator's integer source.
func (g *TestDataGenerator) Intn(n int) int {
	return g.rng.Intn(n)
}
