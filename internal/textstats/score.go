package textstats

import (
	"math"
	"strings"
	"unicode"
)

// ScoreOptions tunes plausibility scoring.
type ScoreOptions struct {
	// WordBonus is the evidence, in nats, credited per letter of every
	// lexicon word found in a candidate plaintext.
	WordBonus float64
	// MinWordLength is the shortest token eligible for the word bonus.
	MinWordLength int
	// Skepticism is the prior log-odds against any single candidate being
	// the true plaintext, before key-space correction. It includes the
	// choice among the letter families a classifier searches.
	Skepticism float64
	// MinLetters is the letter count below which confidence is capped.
	MinLetters int
	// ShortTextCap is the confidence ceiling just below MinLetters. The
	// ceiling falls linearly to zero with the letter count.
	ShortTextCap float64
}

// DefaultScoreOptions returns the standard scoring parameters.
func DefaultScoreOptions() ScoreOptions {
	return ScoreOptions{
		WordBonus:     0.5,
		MinWordLength: 2,
		Skepticism:    5.0,
		MinLetters:    10,
		ShortTextCap:  0.25,
	}
}

// Assessment is the scored plausibility of one candidate plaintext.
type Assessment struct {
	Letters          int     `json:"letters"`
	LanguageEvidence float64 `json:"language_evidence"`
	WordEvidence     float64 `json:"word_evidence"`
	SymbolEvidence   float64 `json:"symbol_evidence,omitempty"`
	EncodingEvidence float64 `json:"encoding_evidence,omitempty"`
	WordsRecognized  int     `json:"words_recognized"`
	WordsTotal       int     `json:"words_total"`
	ChiSquared       float64 `json:"chi_squared"`
	KeySpaceLog      float64 `json:"key_space_log"`
	Score            float64 `json:"score"`
	Confidence       float64 `json:"confidence"`
	Capped           bool    `json:"capped"`
}

// Evidence is the total log-likelihood ratio before key-space correction.
func (a Assessment) Evidence() float64 {
	return a.LanguageEvidence + a.WordEvidence + a.SymbolEvidence + a.EncodingEvidence
}

// Scorer rates candidate plaintexts against a language model.
type Scorer struct {
	model *LanguageModel
	opts  ScoreOptions
}

// NewScorer creates a scorer. A nil model selects English.
func NewScorer(m *LanguageModel, opts ScoreOptions) *Scorer {
	if m == nil {
		m = English()
	}
	if opts.MinWordLength <= 0 {
		opts.MinWordLength = 2
	}
	return &Scorer{model: m, opts: opts}
}

// Model returns the scorer's language model.
func (s *Scorer) Model() *LanguageModel {
	return s.model
}

// Options returns the scoring parameters.
func (s *Scorer) Options() ScoreOptions {
	return s.opts
}

// LanguageEvidence is the log-likelihood ratio, in nats, of the letter
// sequence under the bigram model against uniformly random letters.
func (s *Scorer) LanguageEvidence(letters []int) float64 {
	if len(letters) == 0 {
		return 0
	}
	logN := math.Log(float64(s.model.alphabet.Size()))
	e := s.model.LogUnigram(letters[0]) + logN
	for i := 1; i < len(letters); i++ {
		e += s.model.LogConditional(letters[i-1], letters[i]) + logN
	}
	return e
}

// TrigramFitness is the summed trigram log-probability of the sequence.
// Higher is more language-like.
func (s *Scorer) TrigramFitness(letters []int) float64 {
	var f float64
	for i := 0; i+2 < len(letters); i++ {
		f += s.model.LogTrigram(letters[i], letters[i+1], letters[i+2])
	}
	return f
}

// WordEvidence credits the lexicon words found in plaintext.
func (s *Scorer) WordEvidence(plaintext string) (evidence float64, recognized, total int) {
	for _, w := range Words(plaintext) {
		total++
		if len(w) < s.opts.MinWordLength || !s.model.IsWord(w) {
			continue
		}
		recognized++
		evidence += s.opts.WordBonus * float64(len(w))
	}
	return evidence, recognized, total
}

// Assess scores a candidate plaintext, given as letter indices plus its
// formatted rendering, found in a key space of exp(keySpaceLog) keys.
func (s *Scorer) Assess(letters []int, plaintext string, keySpaceLog float64) Assessment {
	a := Assessment{
		Letters:          len(letters),
		LanguageEvidence: s.LanguageEvidence(letters),
		KeySpaceLog:      keySpaceLog,
		ChiSquared:       ChiSquared(ProfileOf(letters, s.model.alphabet.Size()), s.model.unigram),
	}
	a.WordEvidence, a.WordsRecognized, a.WordsTotal = s.WordEvidence(plaintext)
	s.finish(&a)
	return a
}

// AssessPrintable is Assess for families whose output ranges over all
// printable characters rather than letters alone. Symbols a prose text
// rarely contains count against the candidate.
func (s *Scorer) AssessPrintable(letters []int, plaintext string, keySpaceLog float64) Assessment {
	a := s.Assess(letters, plaintext, keySpaceLog)
	a.SymbolEvidence = SymbolEvidence(plaintext)
	s.finish(&a)
	return a
}

// AssessEncoded is Assess for encodings that spell each plaintext letter
// with several ciphertext symbols. Against uniformly random letters every
// symbol costs ln|alphabet|, so a plaintext shorter than its ciphertext
// earns the difference.
func (s *Scorer) AssessEncoded(letters []int, plaintext string, symbols int) Assessment {
	a := s.Assess(letters, plaintext, 0)
	if extra := symbols - len(letters); extra > 0 {
		a.EncodingEvidence = float64(extra) * math.Log(float64(s.model.alphabet.Size()))
	}
	s.finish(&a)
	return a
}

func (s *Scorer) finish(a *Assessment) {
	a.Score = a.Evidence() - a.KeySpaceLog - s.opts.Skepticism
	a.Confidence = Logistic(a.Score)
	a.Capped = false

	if s.opts.MinLetters > 0 && a.Letters < s.opts.MinLetters {
		limit := s.opts.ShortTextCap * float64(a.Letters) / float64(s.opts.MinLetters)
		if a.Confidence > limit {
			a.Confidence = limit
			a.Score = Logit(limit)
			a.Capped = true
		}
	}
}

// Log-likelihood ratios, in nats, of one non-letter character in prose
// against a uniformly random printable character.
const (
	punctuationEvidence = -1.7
	digitEvidence       = -2.4
	symbolEvidence      = -4.7
)

// SymbolEvidence scores the non-letter, non-space characters of s.
func SymbolEvidence(s string) float64 {
	var e float64
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsSpace(r):
		case strings.ContainsRune(".,'\"!?;:-()", r):
			e += punctuationEvidence
		case unicode.IsDigit(r):
			e += digitEvidence
		default:
			e += symbolEvidence
		}
	}
	return e
}

// Logistic maps log-odds to a probability.
func Logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Logit maps a probability to log-odds, clamped away from infinity.
func Logit(p float64) float64 {
	const eps = 1e-12
	p = math.Min(math.Max(p, eps), 1-eps)
	return math.Log(p / (1 - p))
}
