package classical

import (
	"fmt"
	"math"
	"time"
	"unicode"

	"cypherify/internal/textstats"
)

// VigenereOptions tunes the keyword search.
type VigenereOptions struct {
	MaxKeyLength     int
	MinColumnLetters int
	ICEpsilon        float64
	RefinePasses     int
}

// SubstitutionOptions tunes the annealing search.
type SubstitutionOptions struct {
	Iterations         int
	Restarts           int
	Patience           int
	InitialTemperature float64
	Cooling            float64
	Seed               int64
	TimeBudget         time.Duration
}

// RailFenceOptions bounds the rail counts tried during recovery.
type RailFenceOptions struct {
	MinRails int
	MaxRails int
}

// Settings is the shared configuration of all cipher models.
type Settings struct {
	Model         *textstats.LanguageModel
	Score         textstats.ScoreOptions
	MaxCandidates int
	Vigenere      VigenereOptions
	Substitution  SubstitutionOptions
	RailFence     RailFenceOptions
}

// DefaultSettings returns settings tuned for English text.
func DefaultSettings() Settings {
	return Settings{
		Model:         textstats.English(),
		Score:         textstats.DefaultScoreOptions(),
		MaxCandidates: 10,
		Vigenere: VigenereOptions{
			MaxKeyLength:     20,
			MinColumnLetters: 6,
			ICEpsilon:        0.01,
			RefinePasses:     3,
		},
		Substitution: SubstitutionOptions{
			Iterations:         20000,
			Restarts:           4,
			Patience:           3000,
			InitialTemperature: 1.0,
			Cooling:            0.9995,
			Seed:               1,
			TimeBudget:         5 * time.Second,
		},
		RailFence: RailFenceOptions{MinRails: 2, MaxRails: 10},
	}
}

// base carries what every model needs to score candidates.
type base struct {
	settings Settings
	scorer   *textstats.Scorer
	alphabet *textstats.Alphabet
}

func newBase(s Settings) base {
	if s.Model == nil {
		s.Model = textstats.English()
	}
	if s.MaxCandidates <= 0 {
		s.MaxCandidates = 10
	}
	return base{
		settings: s,
		scorer:   textstats.NewScorer(s.Model, s.Score),
		alphabet: s.Model.Alphabet(),
	}
}

func (b base) size() int {
	return b.alphabet.Size()
}

// candidate assesses plain (letter indices of the decryption) rendered as
// plaintext and assembles a result.
func (b base) candidate(f Family, key Key, plain []int, plaintext string, keySpaceLog float64, steps ...string) CandidateResult {
	return b.assessed(f, key, b.scorer.Assess(plain, plaintext, keySpaceLog), plaintext, steps...)
}

func (b base) assessed(f Family, key Key, a textstats.Assessment, plaintext string, steps ...string) CandidateResult {
	c := CandidateResult{
		Family:     f,
		Key:        key,
		Plaintext:  plaintext,
		Confidence: a.Confidence,
		Score:      a.Score,
		Converged:  true,
		Assessment: a,
		Steps:      steps,
	}
	if key != nil {
		c.KeyText = key.String()
	}
	c.Steps = append(c.Steps, describeAssessment(a))
	return c
}

// encoded assesses the decoding of an encoding whose input held symbols
// non-space characters.
func (b base) encoded(f Family, key Key, plaintext string, symbols int, steps ...string) CandidateResult {
	plain := textstats.Normalize(plaintext, b.alphabet)
	return b.assessed(f, key, b.scorer.AssessEncoded(plain.Letters(), plaintext, symbols), plaintext, steps...)
}

// countSymbols counts the non-space characters of s.
func countSymbols(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// empty is the result for texts without a single letter: the input is
// returned unchanged with zero confidence.
func (b base) empty(f Family, text *textstats.Text, key Key) []CandidateResult {
	c := b.candidate(f, key, nil, text.Original(), 0,
		"No letters of the alphabet found; nothing to analyse.")
	return []CandidateResult{c}
}

func (b base) truncate(cands []CandidateResult) []CandidateResult {
	Rank(cands)
	if len(cands) > b.settings.MaxCandidates {
		cands = cands[:b.settings.MaxCandidates]
	}
	return cands
}

func describeAssessment(a textstats.Assessment) string {
	s := fmt.Sprintf("Language evidence %+.2f nats over %d letters, %d/%d words recognised, chi-squared %.2f; key-space penalty %.2f nats; confidence %.3f",
		a.LanguageEvidence, a.Letters, a.WordsRecognized, a.WordsTotal, a.ChiSquared, a.KeySpaceLog, a.Confidence)
	if a.SymbolEvidence != 0 {
		s += fmt.Sprintf("; unusual symbols %+.2f nats", a.SymbolEvidence)
	}
	if a.EncodingEvidence != 0 {
		s += fmt.Sprintf("; encoding %+.2f nats", a.EncodingEvidence)
	}
	if a.Capped {
		s += " (capped: too few letters for reliable statistics)"
	}
	return s
}

// logFactorial returns ln(n!).
func logFactorial(n int) float64 {
	v, _ := math.Lgamma(float64(n + 1))
	return v
}

func mod(a, m int) int {
	a %= m
	if a < 0 {
		a += m
	}
	return a
}
