package classical

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"cypherify/internal/textstats"
)

// SubstitutionKey maps every plaintext letter to a ciphertext letter.
type SubstitutionKey struct {
	cipher  []int // cipher[p] = c
	letters string
}

// NewSubstitutionKey parses a cipher alphabet: the i-th letter is the
// encryption of the i-th alphabet letter.
func NewSubstitutionKey(cipherAlphabet string, a *textstats.Alphabet) (SubstitutionKey, error) {
	idx := a.Encode(cipherAlphabet)
	if len(idx) != a.Size() || len([]rune(cipherAlphabet)) != a.Size() {
		return SubstitutionKey{}, fmt.Errorf("%w: cipher alphabet must have exactly %d letters", ErrInvalidKey, a.Size())
	}
	seen := make([]bool, a.Size())
	for _, c := range idx {
		if seen[c] {
			return SubstitutionKey{}, fmt.Errorf("%w: letter %c repeats in cipher alphabet", ErrInvalidKey, a.Letter(c))
		}
		seen[c] = true
	}
	return SubstitutionKey{cipher: idx, letters: a.Decode(idx)}, nil
}

func keyFromDecryption(dec []int, a *textstats.Alphabet) SubstitutionKey {
	cipher := make([]int, len(dec))
	for c, p := range dec {
		cipher[p] = c
	}
	return SubstitutionKey{cipher: cipher, letters: a.Decode(cipher)}
}

func (k SubstitutionKey) Family() Family { return FamilySubstitution }
func (k SubstitutionKey) String() string { return k.letters }

func (k SubstitutionKey) decryption() []int {
	dec := make([]int, len(k.cipher))
	for p, c := range k.cipher {
		dec[c] = p
	}
	return dec
}

// SearchResult is the outcome of one annealing search.
type SearchResult struct {
	Key            SubstitutionKey
	Fitness        float64
	InitialFitness float64
	Iterations     int
	Converged      bool
}

// Substitution is the monoalphabetic substitution cipher.
type Substitution struct {
	base
}

// NewSubstitution returns the substitution model.
func NewSubstitution(s Settings) *Substitution {
	return &Substitution{base: newBase(s)}
}

func (m *Substitution) Family() Family { return FamilySubstitution }

func (m *Substitution) KeySpace() KeySpace {
	return KeySpace{
		Description: fmt.Sprintf("permutations of the %d-letter alphabet", m.size()),
		Log:         logFactorial(m.size()),
	}
}

func (m *Substitution) ParseKey(s string) (Key, error) {
	return NewSubstitutionKey(s, m.alphabet)
}

func (m *Substitution) Encrypt(plaintext string, key Key) (string, error) {
	k, err := keyAs[SubstitutionKey](key, FamilySubstitution)
	if err != nil {
		return "", err
	}
	return m.mapText(plaintext, k.cipher), nil
}

func (m *Substitution) Decrypt(ciphertext string, key Key) (string, error) {
	k, err := keyAs[SubstitutionKey](key, FamilySubstitution)
	if err != nil {
		return "", err
	}
	return m.mapText(ciphertext, k.decryption()), nil
}

func (m *Substitution) mapText(s string, mapping []int) string {
	t := textstats.Normalize(s, m.alphabet)
	return t.Restore(substitute(t.Letters(), mapping))
}

func substitute(letters, mapping []int) []int {
	out := make([]int, len(letters))
	for i, l := range letters {
		out[i] = mapping[l]
	}
	return out
}

// Recover runs the annealing search with the configured seed.
func (m *Substitution) Recover(ctx context.Context, text *textstats.Text) ([]CandidateResult, error) {
	return m.RecoverWithRand(ctx, text, rand.New(rand.NewSource(m.settings.Substitution.Seed)))
}

// RecoverWithRand runs the annealing search drawing from rng. The same
// ciphertext, generator state and budget always give the same key.
func (m *Substitution) RecoverWithRand(ctx context.Context, text *textstats.Text, rng *rand.Rand) ([]CandidateResult, error) {
	if text.Len() == 0 {
		return m.empty(FamilySubstitution, text, nil), nil
	}
	start := time.Now()
	res := m.Search(ctx, text.Letters(), rng)
	ks := m.KeySpace().Log
	letters := text.Letters()

	plain := substitute(letters, res.Key.decryption())
	steps := []string{
		"Initial key: map ciphertext letters to English letters by frequency rank",
		fmt.Sprintf("Annealing search: %d iterations in %s, trigram fitness %.1f -> %.1f",
			res.Iterations, time.Since(start).Round(time.Millisecond), res.InitialFitness, res.Fitness),
		fmt.Sprintf("Cipher alphabet %s", res.Key),
	}
	if !res.Converged {
		steps = append(steps, "Search stopped at its iteration or time budget before converging; this is the best key found so far")
	}
	best := m.candidate(FamilySubstitution, res.Key, plain, text.Restore(plain), ks, steps...)
	best.Converged = res.Converged

	initKey := keyFromDecryption(m.initialKey(letters), m.alphabet)
	initPlain := substitute(letters, initKey.decryption())
	initial := m.candidate(FamilySubstitution, initKey, initPlain, text.Restore(initPlain), ks,
		"Frequency-rank mapping without search")
	if initial.KeyText == best.KeyText {
		return []CandidateResult{best}, nil
	}
	return m.truncate([]CandidateResult{best, initial}), nil
}

type trigramCount struct {
	a, b, c int
	n       float64
}

// Search anneals over decryption keys, scoring with trigram log-probability.
func (m *Substitution) Search(ctx context.Context, letters []int, rng *rand.Rand) SearchResult {
	opts := m.settings.Substitution
	if opts.TimeBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.TimeBudget)
		defer cancel()
	}
	n := m.size()
	tris := m.trigrams(letters)
	fitness := func(dec []int) float64 {
		var f float64
		for _, t := range tris {
			f += t.n * m.settings.Model.LogTrigram(dec[t.a], dec[t.b], dec[t.c])
		}
		return f
	}

	dec := m.initialKey(letters)
	best := append([]int(nil), dec...)
	bestFit := fitness(dec)
	res := SearchResult{InitialFitness: bestFit, Converged: true}

	scale := math.Max(float64(len(letters))/100, 1)
	restarts := max(opts.Restarts, 1)

search:
	for r := 0; r < restarts; r++ {
		if r > 0 {
			copy(dec, best)
			for s := 0; s < 8; s++ {
				i, j := rng.Intn(n), rng.Intn(n)
				dec[i], dec[j] = dec[j], dec[i]
			}
		}
		current := fitness(dec)
		temp := opts.InitialTemperature * scale
		stale := 0
		stopped := false
		for it := 0; it < opts.Iterations; it++ {
			if it&255 == 0 && ctx.Err() != nil {
				res.Converged = false
				break search
			}
			res.Iterations++
			i := rng.Intn(n)
			j := rng.Intn(n - 1)
			if j >= i {
				j++
			}
			dec[i], dec[j] = dec[j], dec[i]
			next := fitness(dec)
			delta := next - current
			if delta > 0 || (temp > 0 && rng.Float64() < math.Exp(delta/temp)) {
				current = next
				if delta > 0 {
					stale = 0
				} else {
					stale++
				}
			} else {
				dec[i], dec[j] = dec[j], dec[i]
				stale++
			}
			if current > bestFit {
				bestFit = current
				copy(best, dec)
			}
			temp *= opts.Cooling
			if opts.Patience > 0 && stale >= opts.Patience {
				stopped = true
				break
			}
		}
		if !stopped {
			res.Converged = false
		}
	}

	res.Key = keyFromDecryption(best, m.alphabet)
	res.Fitness = bestFit
	return res
}

// initialKey maps the i-th most frequent ciphertext letter to the i-th
// most frequent reference letter.
func (m *Substitution) initialKey(letters []int) []int {
	n := m.size()
	counts := textstats.ProfileOf(letters, n).Counts
	uni := m.settings.Model.Unigram()

	cipherRank := make([]int, n)
	plainRank := make([]int, n)
	for i := range cipherRank {
		cipherRank[i], plainRank[i] = i, i
	}
	sort.SliceStable(cipherRank, func(i, j int) bool { return counts[cipherRank[i]] > counts[cipherRank[j]] })
	sort.SliceStable(plainRank, func(i, j int) bool { return uni[plainRank[i]] > uni[plainRank[j]] })

	dec := make([]int, n)
	for i := range cipherRank {
		dec[cipherRank[i]] = plainRank[i]
	}
	return dec
}

// trigrams lists the distinct ciphertext trigrams with their counts in a
// fixed order so fitness sums are reproducible.
func (m *Substitution) trigrams(letters []int) []trigramCount {
	n := m.size()
	counts := make(map[int]float64)
	for i := 0; i+2 < len(letters); i++ {
		counts[(letters[i]*n+letters[i+1])*n+letters[i+2]]++
	}
	codes := make([]int, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	out := make([]trigramCount, len(codes))
	for i, code := range codes {
		out[i] = trigramCount{a: code / (n * n), b: code / n % n, c: code % n, n: counts[code]}
	}
	return out
}
