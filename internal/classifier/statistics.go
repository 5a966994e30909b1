package classifier

import (
	"fmt"
	"math"

	"cypherify/internal/classical"
	"cypherify/internal/textstats"
)

// Statistics are the family-independent measurements of the input.
type Statistics struct {
	Characters int `json:"characters"`
	Letters    int `json:"letters"`

	IndexOfCoincidence float64 `json:"index_of_coincidence"`
	ExpectedIC         float64 `json:"expected_ic"`
	RandomIC           float64 `json:"random_ic"`
	// Entropy is in bits per letter; MaxEntropy is log2 of the alphabet size.
	Entropy    float64 `json:"entropy"`
	MaxEntropy float64 `json:"max_entropy"`
	ChiSquared float64 `json:"chi_squared"`
	// Evidence is the language log-likelihood ratio of the input itself,
	// in nats per letter.
	Evidence float64 `json:"evidence_per_letter"`

	Profile textstats.FrequencyProfile `json:"profile"`
}

func (c *Classifier) statistics(text *textstats.Text) Statistics {
	m := c.scorer.Model()
	letters := text.Letters()
	p := textstats.ProfileOf(letters, m.Alphabet().Size())

	s := Statistics{
		Characters:         len([]rune(text.Original())),
		Letters:            len(letters),
		IndexOfCoincidence: textstats.IndexOfCoincidence(p),
		ExpectedIC:         m.ExpectedIC(),
		RandomIC:           m.RandomIC(),
		Entropy:            textstats.Entropy(p),
		MaxEntropy:         math.Log2(float64(m.Alphabet().Size())),
		Profile:            p,
	}
	if !p.Degenerate() {
		s.ChiSquared = textstats.ChiSquared(p, m.Unigram())
		s.Evidence = c.scorer.LanguageEvidence(letters) / float64(len(letters))
	}
	return s
}

// ICPosition places the measured IC between random (0) and the language
// (1).
func (s Statistics) ICPosition() float64 {
	span := s.ExpectedIC - s.RandomIC
	if span <= 0 {
		return 0
	}
	return (s.IndexOfCoincidence - s.RandomIC) / span
}

func (s Statistics) describe() string {
	if s.Letters == 0 {
		return fmt.Sprintf("Input has %d characters and no letters of the alphabet.", s.Characters)
	}
	return fmt.Sprintf(
		"Input has %d letters: index of coincidence %.4f (language %.4f, random %.4f), entropy %.2f of %.2f bits, chi-squared %.1f against the reference frequencies.",
		s.Letters, s.IndexOfCoincidence, s.ExpectedIC, s.RandomIC, s.Entropy, s.MaxEntropy, s.ChiSquared)
}

// Unclassified explains why no family was accepted.
type Unclassified struct {
	Label      string     `json:"label"`
	Reason     string     `json:"reason"`
	Statistics Statistics `json:"statistics"`
	// BestFamily and BestConfidence describe the strongest rejected
	// family, if any family applied.
	BestFamily     *classical.Family `json:"best_family,omitempty"`
	BestConfidence float64           `json:"best_confidence"`
	Threshold      float64           `json:"threshold"`
}

func (c *Classifier) unclassified(stats Statistics, best []classical.CandidateResult) Unclassified {
	u := Unclassified{
		Label:      c.opts.UnclassifiedLabel,
		Statistics: stats,
		Threshold:  c.opts.ConfidenceThreshold,
	}
	if len(best) > 0 {
		f := best[0].Family
		u.BestFamily = &f
		u.BestConfidence = best[0].Confidence
	}

	rejected := "no family applied"
	if u.BestFamily != nil {
		rejected = fmt.Sprintf("the best family (%s) reached only %.3f", *u.BestFamily, u.BestConfidence)
	}

	minLetters := c.scorer.Options().MinLetters
	switch {
	case stats.Letters == 0:
		u.Reason = fmt.Sprintf("Unclassified: the input contains no letters to analyse and %s.", rejected)
	case stats.Letters < minLetters:
		u.Reason = fmt.Sprintf("Unclassified: only %d letters (fewer than %d), too few for reliable statistics; %s.",
			stats.Letters, minLetters, rejected)
	case stats.ICPosition() < 0.35:
		u.Reason = fmt.Sprintf("Unclassified: letter frequencies are nearly flat (IC %.4f, random %.4f) and %s below the %.2f threshold. This is what modern cipher output or a long polyalphabetic key looks like.",
			stats.IndexOfCoincidence, stats.RandomIC, rejected, c.opts.ConfidenceThreshold)
	default:
		u.Reason = fmt.Sprintf("Unclassified: the frequencies resemble a monoalphabetic text (IC %.4f) but %s below the %.2f threshold; no candidate decryption reads as the reference language.",
			stats.IndexOfCoincidence, rejected, c.opts.ConfidenceThreshold)
	}
	return u
}

// candidate renders the verdict as a ranked result. It carries no key and
// no plaintext; its confidence is the complement of the best family's.
func (u Unclassified) candidate() classical.CandidateResult {
	return classical.CandidateResult{
		Family:     classical.FamilyUnclassified,
		Confidence: 1 - u.BestConfidence,
		Score:      textstats.Logit(1 - u.BestConfidence),
		Converged:  true,
		Steps:      []string{u.Label, u.Reason},
	}
}
