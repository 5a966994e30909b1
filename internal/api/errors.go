package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cypherify/internal/classical"
	"cypherify/internal/classifier"
	"cypherify/internal/logging"
	"cypherify/internal/password"
	"cypherify/internal/store"
	"cypherify/internal/teacher"
)

// errHistoryDisabled is returned by history routes when no store is open.
var errHistoryDisabled = errors.New("api: history is disabled")

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	var apiErr *teacher.APIError
	switch {
	case errors.As(err, &maxBytes), errors.Is(err, classifier.ErrInputTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, classical.ErrUnsupportedFamily),
		errors.Is(err, classical.ErrInvalidKey),
		errors.Is(err, classical.ErrNonInvertibleKey),
		errors.Is(err, classical.ErrInvalidInput),
		errors.Is(err, password.ErrInvalidPolicy),
		errors.Is(err, password.ErrInvalidRate),
		errors.Is(err, password.ErrInvalidPIN),
		errors.Is(err, teacher.ErrEmptyQuestion),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, teacher.ErrTeacherDisabled), errors.Is(err, errHistoryDisabled):
		return http.StatusServiceUnavailable
	case errors.As(err, &apiErr), errors.Is(err, teacher.ErrNoAnswer):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error with the matching status. Server errors
// are counted and their detail is kept out of the response.
func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.deps.Metrics.ErrorsTotal.Inc()
		s.logger.WithContext(c.Request.Context()).Error("request failed", "error", err)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, errorResponse{
		Error:     msg,
		RequestID: logging.RequestIDFromContext(c.Request.Context()),
	})
}
