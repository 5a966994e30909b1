// Package classifier identifies which classical cipher family most likely
// produced a ciphertext. Every family's key search runs concurrently; the
// best candidate of each family is ranked against the others, and when none
// is convincing the input is reported as unclassified together with the
// statistics that led to that verdict.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"cypherify/internal/classical"
	"cypherify/internal/config"
	"cypherify/internal/logging"
	"cypherify/internal/metrics"
	"cypherify/internal/textstats"
	"cypherify/internal/tracing"
)

// ErrInputTooLarge is returned when the input exceeds Options.MaxInput.
var ErrInputTooLarge = errors.New("classifier: input too large")

// Options tunes ranking and the unclassified fallback.
type Options struct {
	// ConfidenceThreshold is the confidence the best family must reach
	// for the input to be classified.
	ConfidenceThreshold float64
	UnclassifiedLabel   string
	// TopN is the number of ranked candidates returned.
	TopN int
	// PerFamily is the number of candidates kept in each family report.
	PerFamily int
	// Timeout bounds a whole classification. Zero means no limit beyond
	// the caller's context.
	Timeout time.Duration
	// MaxInput is the largest accepted input in bytes. Zero means no limit.
	MaxInput int
}

// DefaultOptions returns the standard classifier options.
func DefaultOptions() Options {
	return Options{
		ConfidenceThreshold: 0.3,
		UnclassifiedLabel:   config.DefaultUnclassifiedLabel,
		TopN:                5,
		PerFamily:           3,
		Timeout:             30 * time.Second,
	}
}

// Classifier ranks cipher families for a ciphertext.
type Classifier struct {
	registry *classical.Registry
	scorer   *textstats.Scorer
	opts     Options
	logger   *logging.Logger
	metrics  *metrics.CypherifyMetrics
}

// New creates a classifier over every family built from settings. A nil
// logger selects the default logger; nil metrics are allowed.
func New(settings classical.Settings, opts Options, logger *logging.Logger, m *metrics.CypherifyMetrics) *Classifier {
	if settings.Model == nil {
		settings.Model = textstats.English()
	}
	if opts.TopN <= 0 {
		opts.TopN = 1
	}
	if opts.PerFamily <= 0 {
		opts.PerFamily = 1
	}
	if opts.UnclassifiedLabel == "" {
		opts.UnclassifiedLabel = config.DefaultUnclassifiedLabel
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Classifier{
		registry: classical.NewRegistry(settings),
		scorer:   textstats.NewScorer(settings.Model, settings.Score),
		opts:     opts,
		logger:   logger.WithComponent("classifier"),
		metrics:  m,
	}
}

// NewFromConfig builds a classifier from the application configuration.
func NewFromConfig(cfg *config.Config, logger *logging.Logger, m *metrics.CypherifyMetrics) (*Classifier, error) {
	settings, err := cfg.ClassicalSettings()
	if err != nil {
		return nil, err
	}
	return New(settings, Options{
		ConfidenceThreshold: cfg.Classifier.ConfidenceThreshold,
		UnclassifiedLabel:   cfg.Classifier.UnclassifiedLabel,
		TopN:                cfg.Classifier.TopN,
		PerFamily:           3,
		Timeout:             time.Duration(cfg.Classifier.TimeoutSec) * time.Second,
		MaxInput:            cfg.Server.MaxInputBytes,
	}, logger, m), nil
}

// Options returns the classifier options.
func (c *Classifier) Options() Options {
	return c.opts
}

// Registry returns the family models.
func (c *Classifier) Registry() *classical.Registry {
	return c.registry
}

// FamilyInfo describes one supported family.
type FamilyInfo struct {
	Family   classical.Family   `json:"family"`
	KeySpace classical.KeySpace `json:"key_space"`
}

// Families lists the supported families in simplicity order.
func (c *Classifier) Families() []FamilyInfo {
	models := c.registry.Models()
	out := make([]FamilyInfo, len(models))
	for i, m := range models {
		out[i] = FamilyInfo{Family: m.Family(), KeySpace: m.KeySpace()}
	}
	return out
}

// FamilyReport is the outcome of one family's key search.
type FamilyReport struct {
	Family     classical.Family            `json:"family"`
	Candidates []classical.CandidateResult `json:"candidates"`
	Duration   time.Duration               `json:"duration_ns"`
	Error      string                      `json:"error,omitempty"`
}

// Best returns the family's top candidate.
func (r FamilyReport) Best() (classical.CandidateResult, bool) {
	if len(r.Candidates) == 0 {
		return classical.CandidateResult{}, false
	}
	return r.Candidates[0], true
}

// Result is the ranked answer to one classification request.
type Result struct {
	RequestID  string     `json:"request_id"`
	Input      string     `json:"input"`
	Statistics Statistics `json:"statistics"`
	// Candidates holds the best candidate of each applicable family,
	// best-first. When the input is unclassified the first entry is the
	// unclassified pseudo-result.
	Candidates   []classical.CandidateResult `json:"candidates"`
	Unclassified *Unclassified               `json:"unclassified,omitempty"`
	Families     []FamilyReport              `json:"families"`
	Steps        []string                    `json:"steps"`
	Duration     time.Duration               `json:"duration_ns"`
}

// Top returns the top-ranked result.
func (r *Result) Top() classical.CandidateResult {
	return r.Candidates[0]
}

// Classified reports whether a cipher family was accepted.
func (r *Result) Classified() bool {
	return r.Unclassified == nil
}

// Classify ranks every family for input. It never fails on well-formed
// input: when no family is convincing, the top result is the unclassified
// pseudo-family. A context deadline stops in-flight searches, which then
// report their best candidate so far.
func (c *Classifier) Classify(ctx context.Context, input string) (*Result, error) {
	if c.opts.MaxInput > 0 && len(input) > c.opts.MaxInput {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrInputTooLarge, len(input), c.opts.MaxInput)
	}

	reqID := logging.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = logging.NewRequestID()
		ctx = logging.ContextWithRequestID(ctx, reqID)
	}
	log := c.logger.WithContext(ctx)

	ctx, span := tracing.StartSpan(ctx, "classify", tracing.WithAttributes(
		tracing.Attr("request_id", reqID),
		tracing.Attr("input_bytes", len(input)),
	))
	defer span.End()

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	text := textstats.Normalize(input, c.scorer.Model().Alphabet())
	stats := c.statistics(text)

	res := &Result{
		RequestID:  reqID,
		Input:      input,
		Statistics: stats,
	}
	res.Steps = append(res.Steps, stats.describe())

	res.Families = c.search(ctx, text)

	var best []classical.CandidateResult
	for _, fr := range res.Families {
		if b, ok := fr.Best(); ok {
			best = append(best, b)
		}
		res.Steps = append(res.Steps, verdict(fr))
	}
	classical.Rank(best)

	if len(best) == 0 || best[0].Confidence < c.opts.ConfidenceThreshold {
		u := c.unclassified(stats, best)
		res.Unclassified = &u
		// The verdict takes one of the TopN slots.
		runnersUp := best[:min(len(best), c.opts.TopN-1)]
		res.Candidates = append([]classical.CandidateResult{u.candidate()}, runnersUp...)
		res.Steps = append(res.Steps, u.Reason)
	} else {
		best = best[:min(len(best), c.opts.TopN)]
		res.Candidates = best
		res.Steps = append(res.Steps, fmt.Sprintf(
			"Ranked %d families; %s wins with confidence %.3f (threshold %.2f).",
			len(best), best[0].Family, best[0].Confidence, c.opts.ConfidenceThreshold))
	}
	res.Duration = time.Since(start)

	c.record(res)
	top := res.Top()
	span.SetAttributes(
		tracing.Attr("letters", stats.Letters),
		tracing.Attr("family", top.Family.String()),
		tracing.Attr("confidence", top.Confidence),
		tracing.Attr("classified", res.Classified()),
	)
	log.Info("classified",
		"letters", stats.Letters,
		"family", top.Family.String(),
		"key", top.KeyText,
		"confidence", top.Confidence,
		"duration", res.Duration,
	)
	return res, nil
}

// search runs every family concurrently. A failing family is reported in
// its FamilyReport and does not affect the others.
func (c *Classifier) search(ctx context.Context, text *textstats.Text) []FamilyReport {
	models := c.registry.Models()
	reports := make([]FamilyReport, len(models))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, m := range models {
		g.Go(func() error {
			fctx, span := tracing.StartSpan(ctx, "classify.family",
				tracing.WithAttributes(tracing.Attr("family", m.Family().String())))
			defer span.End()

			start := time.Now()
			cands, err := m.Recover(fctx, text)
			r := FamilyReport{Family: m.Family(), Duration: time.Since(start)}
			if err != nil {
				r.Error = err.Error()
				span.RecordError(err)
				c.logger.WithContext(ctx).Warn("family search failed", "family", m.Family().String(), "error", err)
			}
			if len(cands) > c.opts.PerFamily {
				cands = cands[:c.opts.PerFamily]
			}
			r.Candidates = cands
			reports[i] = r
			if b, ok := r.Best(); ok {
				span.SetAttributes(
					tracing.Attr("key", b.KeyText),
					tracing.Attr("score", b.Score),
					tracing.Attr("converged", b.Converged),
				)
			}
			if c.metrics != nil {
				c.metrics.FamilyDuration(m.Family().String()).ObserveDuration(r.Duration)
			}
			return nil
		})
	}
	g.Wait()
	return reports
}

func verdict(fr FamilyReport) string {
	if fr.Error != "" {
		return fmt.Sprintf("%s: search failed: %s", fr.Family, fr.Error)
	}
	b, ok := fr.Best()
	if !ok {
		return fmt.Sprintf("%s: not applicable to this input", fr.Family)
	}
	s := fmt.Sprintf("%s: best key %s gives %q (confidence %.3f)", fr.Family, keyOrNone(b), preview(b.Plaintext), b.Confidence)
	if !b.Converged {
		s += "; search stopped before converging"
	}
	return s
}

func keyOrNone(c classical.CandidateResult) string {
	if c.KeyText == "" {
		return "(none)"
	}
	return c.KeyText
}

func preview(s string) string {
	const max = 48
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}

func (c *Classifier) record(res *Result) {
	if c.metrics == nil {
		return
	}
	c.metrics.ClassificationsTotal.Inc()
	c.metrics.ClassifyDuration.ObserveDuration(res.Duration)
	if res.Unclassified != nil {
		c.metrics.UnclassifiedTotal.Inc()
	}
	c.metrics.FamilyWins.WithLabel(res.Top().Family.String()).Inc()
}
