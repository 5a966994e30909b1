package textstats

import "math"

// FrequencyProfile holds per-letter counts for a text.
type FrequencyProfile struct {
	Counts []int `json:"counts"`
	Total  int   `json:"total"`
}

// ProfileOf counts letter indices over an alphabet of the given size.
func ProfileOf(letters []int, size int) FrequencyProfile {
	p := FrequencyProfile{Counts: make([]int, size)}
	for _, l := range letters {
		p.Counts[l]++
	}
	p.Total = len(letters)
	return p
}

// Analyze returns the profile of the Latin letters in s.
func Analyze(s string) FrequencyProfile {
	return ProfileOf(Latin().Encode(s), Latin().Size())
}

// Degenerate reports whether the profile has no letters at all.
func (p FrequencyProfile) Degenerate() bool {
	return p.Total == 0
}

// Probability returns the relative frequency of letter i, or 0 for an
// empty profile.
func (p FrequencyProfile) Probability(i int) float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Counts[i]) / float64(p.Total)
}

// IndexOfCoincidence is the probability that two letters drawn without
// replacement are equal. Texts shorter than two letters yield 0.
func IndexOfCoincidence(p FrequencyProfile) float64 {
	if p.Total < 2 {
		return 0
	}
	var sum float64
	for _, n := range p.Counts {
		sum += float64(n) * float64(n-1)
	}
	return sum / (float64(p.Total) * float64(p.Total-1))
}

// ChiSquared measures how far the observed counts are from the expected
// distribution. Lower means closer. Empty profiles yield 0.
func ChiSquared(p FrequencyProfile, expected []float64) float64 {
	return chiSquaredCounts(p.Counts, p.Total, expected, 0)
}

// ShiftedChiSquared is ChiSquared for the counts after subtracting shift
// from every letter, without materializing the shifted text.
func ShiftedChiSquared(p FrequencyProfile, expected []float64, shift int) float64 {
	return chiSquaredCounts(p.Counts, p.Total, expected, shift)
}

func chiSquaredCounts(counts []int, total int, expected []float64, shift int) float64 {
	if total == 0 {
		return 0
	}
	n := len(counts)
	var chi float64
	for plain := 0; plain < n; plain++ {
		observed := float64(counts[(plain+shift)%n])
		e := expected[plain] * float64(total)
		if e <= 0 {
			continue
		}
		d := observed - e
		chi += d * d / e
	}
	return chi
}

// Entropy returns the Shannon entropy of the profile in bits per letter.
func Entropy(p FrequencyProfile) float64 {
	if p.Total == 0 {
		return 0
	}
	var h float64
	for _, n := range p.Counts {
		if n == 0 {
			continue
		}
		q := float64(n) / float64(p.Total)
		h -= q * math.Log2(q)
	}
	return h
}
