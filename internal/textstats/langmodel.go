package textstats

import (
	_ "embed"
	"fmt"
	"math"
	"strings"
	"sync"
)

//go:embed data/corpus.txt
var englishCorpus string

//go:embed data/lexicon.txt
var englishLexicon string

// englishUnigram is the standard English letter frequency table, in percent.
var englishUnigram = []float64{
	8.17, 1.29, 2.78, 4.25, 12.70, 2.23, 2.02, 6.09, 6.97, 0.15, 0.77, 4.03, 2.41,
	6.75, 7.51, 1.93, 0.10, 5.99, 6.33, 9.06, 2.76, 0.98, 2.36, 0.15, 1.97, 0.07,
}

// Interpolation weight of corpus n-gram counts against the independent
// unigram product.
const ngramLambda = 0.8

// LanguageModel is a reference model of a natural language: unigram, bigram
// and trigram probabilities plus a word list. It is immutable.
type LanguageModel struct {
	Name string

	alphabet   *Alphabet
	unigram    []float64
	logUnigram []float64
	logCond    []float64 // log P(b | a), indexed a*n+b
	logTrigram []float64 // log P(abc), indexed (a*n+b)*n+c
	lexicon    map[string]struct{}
	expectedIC float64
}

// NewLanguageModel builds a model from a unigram table (any positive scale),
// a training corpus for the n-gram tables, and a word list.
func NewLanguageModel(name string, a *Alphabet, unigram []float64, corpus string, words []string) (*LanguageModel, error) {
	n := a.Size()
	if len(unigram) != n {
		return nil, fmt.Errorf("textstats: unigram table has %d entries, alphabet has %d", len(unigram), n)
	}
	var sum float64
	for _, f := range unigram {
		if f <= 0 {
			return nil, fmt.Errorf("textstats: unigram frequencies must be positive")
		}
		sum += f
	}

	m := &LanguageModel{
		Name:       name,
		alphabet:   a,
		unigram:    make([]float64, n),
		logUnigram: make([]float64, n),
		logCond:    make([]float64, n*n),
		logTrigram: make([]float64, n*n*n),
		lexicon:    make(map[string]struct{}, len(words)),
	}
	for i, f := range unigram {
		m.unigram[i] = f / sum
		m.logUnigram[i] = math.Log(m.unigram[i])
		m.expectedIC += m.unigram[i] * m.unigram[i]
	}

	letters := a.Encode(corpus)
	bi := make([]float64, n*n)
	tri := make([]float64, n*n*n)
	for i := 0; i+1 < len(letters); i++ {
		bi[letters[i]*n+letters[i+1]]++
		if i+2 < len(letters) {
			tri[(letters[i]*n+letters[i+1])*n+letters[i+2]]++
		}
	}
	biTotal := math.Max(float64(len(letters)-1), 1)
	triTotal := math.Max(float64(len(letters)-2), 1)

	joint := make([]float64, n*n)
	for x := 0; x < n; x++ {
		var row float64
		for y := 0; y < n; y++ {
			p := ngramLambda*bi[x*n+y]/biTotal + (1-ngramLambda)*m.unigram[x]*m.unigram[y]
			joint[x*n+y] = p
			row += p
		}
		for y := 0; y < n; y++ {
			m.logCond[x*n+y] = math.Log(joint[x*n+y] / row)
		}
	}
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			for z := 0; z < n; z++ {
				k := (x*n+y)*n + z
				p := ngramLambda*tri[k]/triTotal + (1-ngramLambda)*joint[x*n+y]*m.unigram[z]
				m.logTrigram[k] = math.Log(p)
			}
		}
	}

	for _, w := range words {
		w = strings.ToUpper(strings.TrimSpace(w))
		if w != "" {
			m.lexicon[w] = struct{}{}
		}
	}
	return m, nil
}

// CorpusUnigram derives add-one smoothed letter counts from a corpus, for
// use as the unigram table of a custom model.
func CorpusUnigram(a *Alphabet, corpus string) []float64 {
	out := make([]float64, a.Size())
	for i := range out {
		out[i] = 1
	}
	for _, l := range a.Encode(corpus) {
		out[l]++
	}
	return out
}

// EnglishUnigram returns a copy of the English letter frequency table.
func EnglishUnigram() []float64 {
	return append([]float64(nil), englishUnigram...)
}

var (
	english     *LanguageModel
	englishOnce sync.Once
)

// English returns the built-in English reference model.
func English() *LanguageModel {
	englishOnce.Do(func() {
		m, err := NewLanguageModel("english", Latin(), englishUnigram, englishCorpus, strings.Fields(englishLexicon))
		if err != nil {
			panic(err)
		}
		english = m
	})
	return english
}

// Alphabet returns the model's alphabet.
func (m *LanguageModel) Alphabet() *Alphabet {
	return m.alphabet
}

// Unigram returns the letter probabilities. Callers must not modify it.
func (m *LanguageModel) Unigram() []float64 {
	return m.unigram
}

// ExpectedIC is the index of coincidence of text drawn from the model.
func (m *LanguageModel) ExpectedIC() float64 {
	return m.expectedIC
}

// RandomIC is the index of coincidence of uniformly random letters.
func (m *LanguageModel) RandomIC() float64 {
	return 1 / float64(m.alphabet.Size())
}

// LogUnigram returns log P(a).
func (m *LanguageModel) LogUnigram(a int) float64 {
	return m.logUnigram[a]
}

// LogConditional returns log P(b | a).
func (m *LanguageModel) LogConditional(a, b int) float64 {
	return m.logCond[a*m.alphabet.Size()+b]
}

// LogTrigram returns log P(abc).
func (m *LanguageModel) LogTrigram(a, b, c int) float64 {
	n := m.alphabet.Size()
	return m.logTrigram[(a*n+b)*n+c]
}

// IsWord reports whether w (any case) is in the lexicon.
func (m *LanguageModel) IsWord(w string) bool {
	_, ok := m.lexicon[strings.ToUpper(w)]
	return ok
}

// LexiconSize returns the number of known words.
func (m *LanguageModel) LexiconSize() int {
	return len(m.lexicon)
}
