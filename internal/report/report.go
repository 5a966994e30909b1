// Package report renders analysis results as text reports and as
// schema-checked JSON documents.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"cypherify/internal/classical"
	"cypherify/internal/classifier"
	"cypherify/internal/password"
	"cypherify/internal/store"
)

const ruleWidth = 72

func rule(w io.Writer, c string) {
	fmt.Fprintln(w, strings.Repeat(c, ruleWidth))
}

func section(w io.Writer, title string) {
	rule(w, "-")
	fmt.Fprintln(w, title)
	rule(w, "-")
	fmt.Fprintln(w)
}

func banner(w io.Writer, title string) {
	rule(w, "=")
	pad := (ruleWidth - len(title)) / 2
	if pad < 0 {
		pad = 0
	}
	fmt.Fprintln(w, strings.Repeat(" ", pad)+title)
	rule(w, "=")
	fmt.Fprintln(w)
}

// PrintReport writes a formatted classification report to w.
func PrintReport(w io.Writer, res *classifier.Result) {
	if res == nil {
		fmt.Fprintln(w, "No classification data available")
		return
	}

	banner(w, "CIPHER CLASSIFICATION REPORT")

	fmt.Fprintf(w, "Request:        %s\n", res.RequestID)
	fmt.Fprintf(w, "Input:          %q\n", Truncate(res.Input, 56))
	s := res.Statistics
	fmt.Fprintf(w, "Letters:        %d of %d characters\n", s.Letters, s.Characters)
	fmt.Fprintf(w, "Duration:       %s\n", FormatDuration(res.Duration))
	fmt.Fprintln(w)

	section(w, "STATISTICS")
	if s.Letters == 0 {
		fmt.Fprintln(w, "No letters to measure.")
		fmt.Fprintln(w)
	} else {
		fmt.Fprintf(w, "Index of Coincidence:     %.4f  %s\n",
			s.IndexOfCoincidence, FormatMetricBar(s.IndexOfCoincidence, s.RandomIC, s.ExpectedIC, 20))
		fmt.Fprintf(w, "  -> %s\n\n", interpretIC(s.ICPosition()))

		fmt.Fprintf(w, "Entropy:                  %.3f bits  %s\n",
			s.Entropy, FormatMetricBar(s.Entropy, 0, s.MaxEntropy, 20))
		fmt.Fprintf(w, "  -> %s\n\n", interpretEntropy(s.Entropy, s.MaxEntropy))

		fmt.Fprintf(w, "Chi-Squared:              %.1f\n", s.ChiSquared)
		fmt.Fprintf(w, "Language Evidence:        %+.3f nats/letter\n", s.Evidence)
		fmt.Fprintf(w, "  -> %s\n\n", interpretEvidence(s.Evidence))
	}

	section(w, "RANKED CANDIDATES")
	for i, c := range res.Candidates {
		fmt.Fprintf(w, "%d. %-14s %-20s %.3f  %s\n", i+1, c.Family, keyLabel(c), c.Confidence,
			FormatMetricBar(c.Confidence, 0, 1, 20))
		if c.Family != classical.FamilyUnclassified {
			fmt.Fprintf(w, "   %s\n", Truncate(c.Plaintext, 66))
		}
		if !c.Converged {
			fmt.Fprintln(w, "   (search stopped before converging)")
		}
	}
	fmt.Fprintln(w)

	section(w, "EXPLANATION")
	for i, step := range res.Steps {
		fmt.Fprintf(w, "%d. %s\n", i+1, step)
	}
	fmt.Fprintln(w)

	rule(w, "=")
	if res.Unclassified != nil {
		fmt.Fprintf(w, "VERDICT: %s\n", res.Unclassified.Label)
	} else {
		top := res.Top()
		fmt.Fprintf(w, "VERDICT: %s %s (confidence %.3f)\n", top.Family, keyLabel(top), top.Confidence)
	}
	rule(w, "=")
}

// PrintTransform writes the result of a keyed transform.
func PrintTransform(w io.Writer, res *classifier.TransformResult) {
	if res == nil {
		fmt.Fprintln(w, "No transform data available")
		return
	}
	fmt.Fprintf(w, "Family:    %s\n", res.Family)
	fmt.Fprintf(w, "Direction: %s\n", res.Direction)
	if res.Key != "" {
		fmt.Fprintf(w, "Key:       %s\n", res.Key)
	}
	fmt.Fprintf(w, "Output:    %s\n", res.Output)
}

// PrintPasswordReport writes a formatted password estimate to w.
func PrintPasswordReport(w io.Writer, est *password.Estimate) {
	if est == nil {
		fmt.Fprintln(w, "No estimate available")
		return
	}

	banner(w, "PASSWORD STRENGTH ESTIMATE")

	p := est.Policy
	fmt.Fprintf(w, "Length:         %d characters\n", p.Length)
	fmt.Fprintf(w, "Classes:        %s (%d symbols)\n", classList(p), est.CharsetSize)
	fmt.Fprintf(w, "Combinations:   %s\n", est.SearchSpace.String())
	fmt.Fprintf(w, "Entropy:        %.1f bits  %s\n", est.Entropy, FormatMetricBar(est.Entropy, 0, 128, 20))
	fmt.Fprintf(w, "Attack Rate:    %.3g guesses/second\n", est.GuessesPerSecond)
	fmt.Fprintf(w, "Time to Crack:  %s\n", est.Human)
	if est.Saturated {
		fmt.Fprintln(w, "                (beyond the largest representable duration)")
	}
	fmt.Fprintln(w)

	if len(est.Recommendations) > 0 {
		section(w, "RECOMMENDATIONS")
		for i, r := range est.Recommendations {
			fmt.Fprintf(w, "%d. %s\n", i+1, r)
		}
		fmt.Fprintln(w)
	}

	rule(w, "=")
	fmt.Fprintf(w, "RATING: %s\n", strings.ToUpper(est.Rating.String()))
	fmt.Fprintln(w, est.Note)
	rule(w, "=")
}

// PrintPINReport writes a formatted PIN analysis to w.
func PrintPINReport(w io.Writer, a *password.PINAnalysis) {
	if a == nil {
		fmt.Fprintln(w, "No analysis available")
		return
	}

	banner(w, "PIN ATTACK ESTIMATE")

	fmt.Fprintf(w, "Digits:         %d (%d possible PINs)\n", a.Digits, a.SearchSpace)
	fmt.Fprintf(w, "Attack:         %s\n", a.Attack)
	fmt.Fprintf(w, "Attempts:       %d  %s\n", a.Attempts,
		FormatMetricBar(float64(a.Attempts), 0, float64(a.SearchSpace), 20))
	if a.Common() {
		fmt.Fprintf(w, "Common PIN:     yes, rank %d\n", a.CommonRank)
	} else {
		fmt.Fprintln(w, "Common PIN:     no")
	}
	fmt.Fprintf(w, "Time to Crack:  %s\n", a.Human)
	fmt.Fprintln(w)

	section(w, "EXPLANATION")
	for i, step := range a.Steps {
		fmt.Fprintf(w, "%d. %s\n", i+1, step)
	}
	fmt.Fprintln(w)

	rule(w, "=")
	fmt.Fprintf(w, "RATING: %s\n", strings.ToUpper(a.Rating.String()))
	rule(w, "=")
}

// PrintHistory writes stored records as a table, newest first.
func PrintHistory(w io.Writer, records []store.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No history recorded")
		return
	}
	fmt.Fprintf(w, "%-36s  %-19s  %-9s  %-13s  %-10s  %s\n", "ID", "WHEN", "KIND", "FAMILY", "CONFIDENCE", "INPUT")
	for _, r := range records {
		conf := "-"
		if r.Kind == store.KindClassify {
			conf = fmt.Sprintf("%.3f", r.Confidence)
		}
		family := r.Family
		if family == "" {
			family = "-"
		}
		fmt.Fprintf(w, "%-36s  %-19s  %-9s  %-13s  %-10s  %s\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Kind, family, conf, Truncate(r.Preview, 32))
	}
}

// PrintFamilies lists the supported families and their key spaces.
func PrintFamilies(w io.Writer, families []classifier.FamilyInfo) {
	for _, f := range families {
		fmt.Fprintf(w, "%-14s ln|K| = %7.2f  %s\n", f.Family, f.KeySpace.Log, f.KeySpace.Description)
	}
}

// FormatDuration produces a short human-readable duration.
func FormatDuration(d time.Duration) string {
	switch {
	case d < 0:
		return "0s"
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return d.Round(time.Millisecond).String()
	}
}

// FormatMetricBar produces ASCII progress bar for metric visualization.
func FormatMetricBar(value, min, max float64, width int) string {
	if width <= 0 {
		return ""
	}
	if max <= min {
		return strings.Repeat("-", width)
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	filled := int(normalized * float64(width))
	bar := strings.Repeat("#", filled) + strings.Repeat("-", width-filled)
	return "[" + bar + "]"
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

func keyLabel(c classical.CandidateResult) string {
	if c.KeyText == "" {
		return ""
	}
	return "key " + c.KeyText
}

func classList(p password.Policy) string {
	var names []string
	if p.Lowercase {
		names = append(names, "lowercase")
	}
	if p.Uppercase {
		names = append(names, "uppercase")
	}
	if p.Digits {
		names = append(names, "digits")
	}
	if p.Symbols {
		names = append(names, "symbols")
	}
	return strings.Join(names, ", ")
}

func interpretIC(pos float64) string {
	switch {
	case pos > 0.8:
		return "Language-like: a monoalphabetic cipher or a transposition preserves letter frequencies"
	case pos > 0.35:
		return "Between language and random: typical of a short-key polyalphabetic cipher"
	default:
		return "Nearly flat: a long-key polyalphabetic cipher or modern cipher output"
	}
}

func interpretEntropy(bits, max float64) string {
	if max <= 0 {
		return "No alphabet"
	}
	switch r := bits / max; {
	case r > 0.97:
		return "Close to maximal: letters are almost uniformly distributed"
	case r > 0.85:
		return "Typical of natural language or a simple substitution"
	default:
		return "Low: few distinct letters dominate"
	}
}

func interpretEvidence(nats float64) string {
	switch {
	case nats > 1.0:
		return "The input already reads as the reference language"
	case nats > 0:
		return "Some language structure survives in the raw input"
	default:
		return "The raw input does not read as the reference language"
	}
}
