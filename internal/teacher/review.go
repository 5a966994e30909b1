package teacher

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"cypherify/internal/classical"
)

// maxReviewCandidates bounds how many candidates are shown to the model.
const maxReviewCandidates = 10

const reviewPrompt = `You are an expert at recognising natural English text among candidate cipher decryptions.`

// Review is the teacher's second opinion on a ranked candidate list.
type Review struct {
	// Best is the 0-based index of the chosen candidate.
	Best       int    `json:"best"`
	Confidence string `json:"confidence"`
	Reasoning  string `json:"reasoning"`
	// Candidate is the chosen entry among the reviewed candidates.
	Candidate classical.CandidateResult `json:"candidate"`
}

// ReviewCandidates asks which candidate decryption reads as English. The
// answer is advisory; it never changes a classification.
func (c *Client) ReviewCandidates(ctx context.Context, cands []classical.CandidateResult) (*Review, error) {
	if !c.Enabled() {
		return nil, ErrTeacherDisabled
	}
	var shown []classical.CandidateResult
	for _, cand := range cands {
		if cand.Family == classical.FamilyUnclassified {
			continue
		}
		shown = append(shown, cand)
		if len(shown) == maxReviewCandidates {
			break
		}
	}
	if len(shown) == 0 {
		return nil, fmt.Errorf("teacher: no candidates to review")
	}

	var b strings.Builder
	b.WriteString("Identify which of these decryption attempts is most likely correct English text.\n\n")
	for i, cand := range shown {
		text := []rune(cand.Plaintext)
		if len(text) > 100 {
			text = text[:100]
		}
		fmt.Fprintf(&b, "%d. %s key %s: %s\n", i+1, cand.Family, cand.KeyText, string(text))
	}
	b.WriteString("\nAnswer in exactly this format:\nBEST_MATCH: [number]\nCONFIDENCE: [high/medium/low]\nREASONING: [one sentence]\n")

	resp, err := c.complete(ctx, []Message{
		{Role: RoleSystem, Content: reviewPrompt},
		{Role: RoleUser, Content: b.String()},
	}, 200, 0.3)
	if err != nil {
		return nil, err
	}
	r := parseReview(resp.text, len(shown))
	r.Candidate = shown[r.Best]
	return r, nil
}

// parseReview reads the BEST_MATCH / CONFIDENCE / REASONING lines. Missing
// or malformed fields fall back to the first candidate at medium
// confidence.
func parseReview(answer string, n int) *Review {
	r := &Review{Best: 1, Confidence: "medium", Reasoning: "analysis complete"}
	for _, line := range strings.Split(answer, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "BEST_MATCH:"):
			digits := strings.Map(func(r rune) rune {
				if r >= '0' && r <= '9' {
					return r
				}
				return -1
			}, line)
			if v, err := strconv.Atoi(digits); err == nil {
				r.Best = v
			}
		case strings.HasPrefix(line, "CONFIDENCE:"):
			switch v := strings.ToLower(line); {
			case strings.Contains(v, "high"):
				r.Confidence = "high"
			case strings.Contains(v, "low"):
				r.Confidence = "low"
			}
		case strings.HasPrefix(line, "REASONING:"):
			r.Reasoning = strings.TrimSpace(strings.TrimPrefix(line, "REASONING:"))
		}
	}
	r.Best = min(max(r.Best, 1), n) - 1
	return r
}
