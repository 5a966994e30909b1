package classical

import (
	"context"
	"fmt"
	"math"

	"cypherify/internal/textstats"
)

// VigenereKey is a keyword; each letter is a shift applied in rotation.
type VigenereKey struct {
	Keyword string
	shifts  []int
}

// NewVigenereKey builds a key from the alphabet letters of keyword.
func NewVigenereKey(keyword string, a *textstats.Alphabet) (VigenereKey, error) {
	shifts := a.Encode(keyword)
	if len(shifts) == 0 {
		return VigenereKey{}, fmt.Errorf("%w: keyword %q has no letters", ErrInvalidKey, keyword)
	}
	return VigenereKey{Keyword: a.Decode(shifts), shifts: shifts}, nil
}

func (k VigenereKey) Family() Family { return FamilyVigenere }
func (k VigenereKey) String() string { return k.Keyword }

// Shifts returns the per-position shifts.
func (k VigenereKey) Shifts() []int { return k.shifts }

// LengthScore is the average column index of coincidence for one
// candidate keyword length.
type LengthScore struct {
	Length int     `json:"length"`
	AvgIC  float64 `json:"avg_ic"`
}

// Vigenere is the repeating-keyword polyalphabetic cipher.
type Vigenere struct {
	base
}

// NewVigenere returns the Vigenère model.
func NewVigenere(s Settings) *Vigenere {
	return &Vigenere{base: newBase(s)}
}

func (m *Vigenere) Family() Family { return FamilyVigenere }

func (m *Vigenere) KeySpace() KeySpace {
	return KeySpace{
		Description: fmt.Sprintf("keywords of length 1..%d", m.settings.Vigenere.MaxKeyLength),
		Log:         float64(m.settings.Vigenere.MaxKeyLength) * math.Log(float64(m.size())),
	}
}

func (m *Vigenere) ParseKey(s string) (Key, error) {
	return NewVigenereKey(s, m.alphabet)
}

func (m *Vigenere) Encrypt(plaintext string, key Key) (string, error) {
	return m.transform(plaintext, key, 1)
}

func (m *Vigenere) Decrypt(ciphertext string, key Key) (string, error) {
	return m.transform(ciphertext, key, -1)
}

func (m *Vigenere) transform(s string, key Key, dir int) (string, error) {
	k, err := keyAs[VigenereKey](key, FamilyVigenere)
	if err != nil {
		return "", err
	}
	t := textstats.Normalize(s, m.alphabet)
	return t.Restore(applyKeyword(t.Letters(), k.shifts, dir, m.size())), nil
}

func applyKeyword(letters, shifts []int, dir, n int) []int {
	out := make([]int, len(letters))
	for i, l := range letters {
		out[i] = mod(l+dir*shifts[i%len(shifts)], n)
	}
	return out
}

// EstimateKeyLength returns the average column IC for every length the
// text supports, in length order.
func (m *Vigenere) EstimateKeyLength(letters []int) []LengthScore {
	opts := m.settings.Vigenere
	limit := opts.MaxKeyLength
	if opts.MinColumnLetters > 0 {
		limit = min(limit, len(letters)/opts.MinColumnLetters)
	}
	limit = max(limit, 1)

	scores := make([]LengthScore, 0, limit)
	for l := 1; l <= limit; l++ {
		var sum float64
		for c := 0; c < l; c++ {
			sum += textstats.IndexOfCoincidence(textstats.ProfileOf(column(letters, l, c), m.size()))
		}
		scores = append(scores, LengthScore{Length: l, AvgIC: sum / float64(l)})
	}
	return scores
}

// Recover estimates the keyword length, solves every column as a shift and
// refines the keyword against the bigram model. Every length within the IC
// epsilon of the best is tried and the best penalised result wins.
func (m *Vigenere) Recover(ctx context.Context, text *textstats.Text) ([]CandidateResult, error) {
	if text.Len() == 0 {
		return m.empty(FamilyVigenere, text, nil), nil
	}
	letters := text.Letters()
	scores := m.EstimateKeyLength(letters)

	best := scores[0]
	for _, s := range scores[1:] {
		if s.AvgIC > best.AvgIC {
			best = s
		}
	}
	lengthStep := fmt.Sprintf("Keyword length estimation over 1..%d: best length %d with average column IC %.4f (English %.4f, random %.4f)",
		len(scores), best.Length, best.AvgIC, m.settings.Model.ExpectedIC(), m.settings.Model.RandomIC())

	seen := make(map[string]bool)
	var cands []CandidateResult
	for _, s := range scores {
		if s.AvgIC < best.AvgIC-m.settings.Vigenere.ICEpsilon {
			continue
		}
		if err := ctx.Err(); err != nil {
			break
		}
		shifts, steps := m.solveLength(letters, s.Length)
		shifts = minimalPeriod(shifts)
		key := VigenereKey{Keyword: m.alphabet.Decode(shifts), shifts: shifts}
		if seen[key.Keyword] {
			continue
		}
		seen[key.Keyword] = true

		plain := applyKeyword(letters, shifts, -1, m.size())
		// Penalise the keyword actually used plus the choice of length.
		ks := float64(len(shifts))*math.Log(float64(m.size())) + math.Log(float64(len(scores)))
		steps = append([]string{lengthStep, fmt.Sprintf("Trying length %d (average IC %.4f)", s.Length, s.AvgIC)}, steps...)
		steps = append(steps, fmt.Sprintf("Keyword %q", key.Keyword))
		cands = append(cands, m.candidate(FamilyVigenere, key, plain, text.Restore(plain), ks, steps...))
	}
	return m.truncate(cands), nil
}

// solveLength picks each column's shift by chi-squared, then runs
// coordinate sweeps that maximise bigram evidence of the whole text.
func (m *Vigenere) solveLength(letters []int, length int) ([]int, []string) {
	n := m.size()
	ref := m.settings.Model.Unigram()
	shifts := make([]int, length)
	steps := make([]string, 0, length+1)
	for c := 0; c < length; c++ {
		p := textstats.ProfileOf(column(letters, length, c), n)
		bestChi := math.Inf(1)
		for k := 0; k < n; k++ {
			if chi := textstats.ShiftedChiSquared(p, ref, k); chi < bestChi {
				bestChi, shifts[c] = chi, k
			}
		}
		steps = append(steps, fmt.Sprintf("Column %d: shift %d (%c), chi-squared %.2f",
			c+1, shifts[c], m.alphabet.Letter(shifts[c]), bestChi))
	}

	current := m.scorer.LanguageEvidence(applyKeyword(letters, shifts, -1, n))
	changed := 0
	for pass := 0; pass < m.settings.Vigenere.RefinePasses; pass++ {
		improved := false
		for c := 0; c < length; c++ {
			orig := shifts[c]
			bestK, bestE := orig, current
			for k := 0; k < n; k++ {
				if k == orig {
					continue
				}
				shifts[c] = k
				if e := m.scorer.LanguageEvidence(applyKeyword(letters, shifts, -1, n)); e > bestE {
					bestK, bestE = k, e
				}
			}
			shifts[c] = bestK
			if bestK != orig {
				current = bestE
				improved = true
				changed++
			}
		}
		if !improved {
			break
		}
	}
	if changed > 0 {
		steps = append(steps, fmt.Sprintf("Bigram refinement changed %d column shift(s)", changed))
	}
	return shifts, steps
}

func column(letters []int, length, c int) []int {
	out := make([]int, 0, len(letters)/length+1)
	for i := c; i < len(letters); i += length {
		out = append(out, letters[i])
	}
	return out
}

// minimalPeriod reduces a repeating keyword such as KEYKEY to KEY.
func minimalPeriod(shifts []int) []int {
	n := len(shifts)
	for p := 1; p < n; p++ {
		if n%p != 0 {
			continue
		}
		repeats := true
		for i := p; i < n; i++ {
			if shifts[i] != shifts[i%p] {
				repeats = false
				break
			}
		}
		if repeats {
			return shifts[:p]
		}
	}
	return shifts
}

