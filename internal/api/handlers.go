package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"cypherify/internal/classical"
	"cypherify/internal/classifier"
	"cypherify/internal/password"
	"cypherify/internal/report"
	"cypherify/internal/store"
	"cypherify/internal/teacher"
)

var errBadRequest = errors.New("api: bad request")

const historyHeader = "X-History-ID"

func bind(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// respond saves doc to history when a store is open and writes it.
func (s *Server) respond(c *gin.Context, doc *report.Document, input string) {
	data, err := doc.Marshal()
	if err != nil {
		s.fail(c, err)
		return
	}
	if id := s.remember(c.Request.Context(), doc, input); id != "" {
		c.Header(historyHeader, id)
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// remember stores doc in the history. Failures are logged; the analysis
// itself has already succeeded.
func (s *Server) remember(ctx context.Context, doc *report.Document, input string) string {
	if s.deps.Store == nil {
		return ""
	}
	log := s.logger.WithContext(ctx)
	rec, err := doc.Record(input)
	if err == nil {
		err = s.deps.Store.Save(ctx, rec)
	}
	if err != nil {
		log.Warn("history not saved", "kind", string(doc.Kind), "error", err)
		return ""
	}
	if n, err := s.deps.Store.Count(ctx); err == nil {
		s.deps.Metrics.HistoryRecords.Set(n)
	}
	return rec.ID
}

func (s *Server) families(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"families": s.deps.Classifier.Families()})
}

func (s *Server) schema(c *gin.Context) {
	c.Data(http.StatusOK, "application/schema+json", report.Schema())
}

type classifyRequest struct {
	Text string `json:"text"`
}

// checkInput applies the server's input limit. The classifier carries its
// own limit when built from configuration; this covers every route.
func (s *Server) checkInput(text string) error {
	if limit := s.cfg.MaxInputBytes; limit > 0 && len(text) > limit {
		return fmt.Errorf("%w: %d bytes (limit %d)", classifier.ErrInputTooLarge, len(text), limit)
	}
	return nil
}

func (s *Server) classify(c *gin.Context) {
	var req classifyRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	if err := s.checkInput(req.Text); err != nil {
		s.fail(c, err)
		return
	}
	res, err := s.deps.Classifier.Classify(c.Request.Context(), req.Text)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, report.NewClassificationDocument(res), req.Text)
}

type transformRequest struct {
	Family    string `json:"family" binding:"required"`
	Direction string `json:"direction" binding:"required"`
	Text      string `json:"text"`
	Key       string `json:"key"`
}

func (s *Server) transform(c *gin.Context) {
	var req transformRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	if err := s.checkInput(req.Text); err != nil {
		s.fail(c, err)
		return
	}
	dir, err := classifier.ParseDirection(req.Direction)
	if err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	res, err := s.deps.Classifier.Transform(req.Family, dir, req.Text, req.Key)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, report.NewTransformDocument(res), req.Text)
}

type passwordRequest struct {
	Password string           `json:"password"`
	Policy   *password.Policy `json:"policy"`
	// GuessesPerSecond overrides the configured attacker rate.
	GuessesPerSecond float64 `json:"guesses_per_second"`
}

func (s *Server) estimator(rate float64) (*password.Estimator, error) {
	if rate == 0 {
		return s.deps.Estimator, nil
	}
	return password.NewEstimator(rate)
}

func (s *Server) password(c *gin.Context) {
	var req passwordRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	e, err := s.estimator(req.GuessesPerSecond)
	if err != nil {
		s.fail(c, err)
		return
	}

	var est *password.Estimate
	switch {
	case req.Policy != nil && req.Password != "":
		err = fmt.Errorf("%w: give either a password or a policy", errBadRequest)
	case req.Policy != nil:
		est, err = e.Estimate(*req.Policy)
	default:
		est, err = e.EstimatePassword(req.Password)
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	s.deps.Metrics.PasswordEstimates.Inc()
	s.respond(c, report.NewPasswordDocument(est), "")
}

type pinRequest struct {
	PIN              string  `json:"pin" binding:"required"`
	Attack           string  `json:"attack"`
	GuessesPerSecond float64 `json:"guesses_per_second"`
}

func (s *Server) pin(c *gin.Context) {
	var req pinRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	attack, err := password.ParseAttack(req.Attack)
	if err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	e, err := s.estimator(req.GuessesPerSecond)
	if err != nil {
		s.fail(c, err)
		return
	}
	a, err := e.AnalyzePIN(req.PIN, attack)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.deps.Metrics.PasswordEstimates.Inc()
	s.respond(c, report.NewPINDocument(a), "")
}

func (s *Server) listHistory(c *gin.Context) {
	if s.deps.Store == nil {
		s.fail(c, errHistoryDisabled)
		return
	}
	f := store.Filter{
		Kind:   store.Kind(c.Query("kind")),
		Family: c.Query("family"),
	}
	if f.Kind != "" && !f.Kind.Valid() {
		s.fail(c, fmt.Errorf("%w: unknown kind %q", errBadRequest, f.Kind))
		return
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.fail(c, fmt.Errorf("%w: limit must be a positive integer", errBadRequest))
			return
		}
		f.Limit = n
	}
	if v := c.Query("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.fail(c, fmt.Errorf("%w: before must be RFC 3339", errBadRequest))
			return
		}
		f.Before = t
	}

	records, err := s.deps.Store.List(c.Request.Context(), f)
	if err != nil {
		s.fail(c, err)
		return
	}
	if records == nil {
		records = []store.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (s *Server) historyStats(c *gin.Context) {
	if s.deps.Store == nil {
		s.fail(c, errHistoryDisabled)
		return
	}
	st, err := s.deps.Store.Stats(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) getHistory(c *gin.Context) {
	if s.deps.Store == nil {
		s.fail(c, errHistoryDisabled)
		return
	}
	rec, err := s.deps.Store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) deleteHistory(c *gin.Context) {
	if s.deps.Store == nil {
		s.fail(c, errHistoryDisabled)
		return
	}
	if err := s.deps.Store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) teacherStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"enabled": s.deps.Teacher.Enabled(),
		"model":   s.deps.Teacher.Model(),
	})
}

func (s *Server) ask(c *gin.Context) {
	var q teacher.Question
	if err := bind(c, &q); err != nil {
		s.fail(c, err)
		return
	}
	s.deps.Metrics.TeacherQuestions.Inc()
	ans, err := s.deps.Teacher.Ask(c.Request.Context(), q)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ans)
}

type hintRequest struct {
	Family    string `json:"family" binding:"required"`
	Direction string `json:"direction"`
}

func (s *Server) hint(c *gin.Context) {
	var req hintRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	if _, err := classical.ParseFamily(req.Family); err != nil {
		s.fail(c, err)
		return
	}
	dir := classifier.Decrypt
	if req.Direction != "" {
		d, err := classifier.ParseDirection(req.Direction)
		if err != nil {
			s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		dir = d
	}
	s.deps.Metrics.TeacherQuestions.Inc()
	ans, err := s.deps.Teacher.Hint(c.Request.Context(), req.Family, dir.String())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ans)
}

type reviewResponse struct {
	Classification *classifier.Result `json:"classification"`
	Review         *teacher.Review    `json:"review"`
}

// review classifies the text and asks the teacher for a second opinion on
// the ranked candidates. The classification itself is unchanged.
func (s *Server) review(c *gin.Context) {
	var req classifyRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	if !s.deps.Teacher.Enabled() {
		s.fail(c, teacher.ErrTeacherDisabled)
		return
	}
	if err := s.checkInput(req.Text); err != nil {
		s.fail(c, err)
		return
	}
	res, err := s.deps.Classifier.Classify(c.Request.Context(), req.Text)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.deps.Metrics.TeacherQuestions.Inc()
	rv, err := s.deps.Teacher.ReviewCandidates(c.Request.Context(), res.Candidates)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reviewResponse{Classification: res, Review: rv})
}
