package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"cypherify/internal/textstats"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Unwrap lets errors.Is match ErrInvalidConfig.
func (e ValidationErrors) Unwrap() error {
	return ErrInvalidConfig
}

// Fields returns the names of the offending fields.
func (e ValidationErrors) Fields() []string {
	out := make([]string, len(e))
	for i, err := range e {
		out[i] = err.Field
	}
	return out
}

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateAnalysis(&c.Analysis)...)
	errs = append(errs, validateVigenere(&c.Vigenere)...)
	errs = append(errs, validateSubstitution(&c.Substitution)...)
	errs = append(errs, validateRailFence(&c.RailFence)...)
	errs = append(errs, validateClassifier(&c.Classifier)...)
	errs = append(errs, validatePassword(&c.Password)...)
	errs = append(errs, validateTeacher(&c.Teacher)...)
	errs = append(errs, validateStorage(&c.Storage)...)
	errs = append(errs, validateServer(&c.Server)...)
	errs = append(errs, validateLogging(&c.Logging)...)
	errs = append(errs, validateTracing(&c.Tracing)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateAnalysis(a *AnalysisConfig) ValidationErrors {
	var errs ValidationErrors

	size := len(textstats.DefaultLetters)
	if a.Alphabet != "" {
		alphabet, err := textstats.NewAlphabet(a.Alphabet)
		if err != nil {
			errs = append(errs, ValidationError{Field: "analysis.alphabet", Message: err.Error()})
		} else {
			size = alphabet.Size()
		}
	}

	if len(a.Unigram) > 0 {
		if len(a.Unigram) != size {
			errs = append(errs, ValidationError{
				Field:   "analysis.unigram",
				Message: fmt.Sprintf("has %d entries, alphabet has %d letters", len(a.Unigram), size),
			})
		}
		for _, f := range a.Unigram {
			if f <= 0 {
				errs = append(errs, ValidationError{Field: "analysis.unigram", Message: "frequencies must be positive"})
				break
			}
		}
	}

	if a.Language != "" && !strings.EqualFold(a.Language, "english") && a.CorpusPath == "" {
		errs = append(errs, ValidationError{
			Field:   "analysis.corpus_path",
			Message: fmt.Sprintf("language %q has no built-in model", a.Language),
		})
	}

	if a.MinLetters < 1 {
		errs = append(errs, *RangeError("analysis.min_letters", 1, "∞"))
	}
	if a.ShortTextCap < 0 || a.ShortTextCap > 1 {
		errs = append(errs, *RangeError("analysis.short_text_cap", 0, 1))
	}
	if a.WordBonus < 0 {
		errs = append(errs, ValidationError{Field: "analysis.word_bonus", Message: "cannot be negative"})
	}
	if a.MinWordLength < 1 {
		errs = append(errs, *RangeError("analysis.min_word_length", 1, "∞"))
	}
	if a.Skepticism < 0 {
		errs = append(errs, ValidationError{Field: "analysis.skepticism", Message: "cannot be negative"})
	}

	return errs
}

func validateVigenere(v *VigenereConfig) ValidationErrors {
	var errs ValidationErrors
	if v.MaxKeyLength < 1 || v.MaxKeyLength > 100 {
		errs = append(errs, *RangeError("vigenere.max_key_length", 1, 100))
	}
	if v.MinColumnLetters < 1 {
		errs = append(errs, *RangeError("vigenere.min_column_letters", 1, "∞"))
	}
	if v.ICEpsilon < 0 {
		errs = append(errs, ValidationError{Field: "vigenere.ic_epsilon", Message: "cannot be negative"})
	}
	if v.RefinePasses < 0 {
		errs = append(errs, ValidationError{Field: "vigenere.refine_passes", Message: "cannot be negative"})
	}
	return errs
}

func validateSubstitution(s *SubstitutionConfig) ValidationErrors {
	var errs ValidationErrors
	if s.Iterations < 1 {
		errs = append(errs, ValidationError{
			Field:   "substitution.iterations",
			Message: "iteration budget must be at least 1",
		})
	}
	if s.Restarts < 0 {
		errs = append(errs, ValidationError{Field: "substitution.restarts", Message: "cannot be negative"})
	}
	if s.Patience < 1 {
		errs = append(errs, ValidationError{Field: "substitution.patience", Message: "must be at least 1"})
	}
	if s.InitialTemperature < 0 {
		errs = append(errs, ValidationError{Field: "substitution.initial_temperature", Message: "cannot be negative"})
	}
	if s.Cooling <= 0 || s.Cooling > 1 {
		errs = append(errs, *RangeError("substitution.cooling", "0 (exclusive)", 1))
	}
	if s.TimeBudgetMs < 0 {
		errs = append(errs, ValidationError{Field: "substitution.time_budget_ms", Message: "cannot be negative"})
	}
	return errs
}

func validateRailFence(r *RailFenceConfig) ValidationErrors {
	var errs ValidationErrors
	if r.MinRails < 2 {
		errs = append(errs, *RangeError("rail_fence.min_rails", 2, "max_rails"))
	}
	if r.MaxRails < r.MinRails {
		errs = append(errs, ValidationError{Field: "rail_fence.max_rails", Message: "must not be less than min_rails"})
	}
	return errs
}

func validateClassifier(c *ClassifierConfig) ValidationErrors {
	var errs ValidationErrors
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		errs = append(errs, *RangeError("classifier.confidence_threshold", 0, 1))
	}
	if strings.TrimSpace(c.UnclassifiedLabel) == "" {
		errs = append(errs, *RequiredFieldError("classifier.unclassified_label"))
	}
	if c.TopN < 1 {
		errs = append(errs, ValidationError{Field: "classifier.top_n", Message: "must be at least 1"})
	}
	if c.MaxCandidates < 1 {
		errs = append(errs, ValidationError{Field: "classifier.max_candidates", Message: "must be at least 1"})
	}
	if c.TimeoutSec < 0 {
		errs = append(errs, ValidationError{Field: "classifier.timeout_sec", Message: "cannot be negative"})
	}
	return errs
}

func validatePassword(p *PasswordConfig) ValidationErrors {
	var errs ValidationErrors
	if p.GuessesPerSecond <= 0 {
		errs = append(errs, ValidationError{Field: "password.guesses_per_second", Message: "must be positive"})
	}
	// bcrypt.MinCost and bcrypt.MaxCost
	if p.BcryptCost < 4 || p.BcryptCost > 31 {
		errs = append(errs, *RangeError("password.bcrypt_cost", 4, 31))
	}
	return errs
}

func validateTeacher(t *TeacherConfig) ValidationErrors {
	var errs ValidationErrors
	if t.Endpoint != "" && !isValidURL(t.Endpoint) {
		errs = append(errs, ValidationError{
			Field:   "teacher.endpoint",
			Message: fmt.Sprintf("invalid URL: %s", t.Endpoint),
		})
	}
	if t.HistoryWindow < 0 {
		errs = append(errs, ValidationError{Field: "teacher.history_window", Message: "cannot be negative"})
	}
	if t.MaxTokens < 1 {
		errs = append(errs, ValidationError{Field: "teacher.max_tokens", Message: "must be at least 1"})
	}
	if t.Temperature < 0 || t.Temperature > 2 {
		errs = append(errs, *RangeError("teacher.temperature", 0, 2))
	}
	if t.TimeoutSec < 1 {
		errs = append(errs, ValidationError{Field: "teacher.timeout_sec", Message: "must be at least 1"})
	}
	return errs
}

func validateStorage(s *StorageConfig) ValidationErrors {
	if s.Enabled && s.Path == "" {
		return ValidationErrors{*RequiredFieldError("storage.path")}
	}
	return nil
}

func validateServer(s *ServerConfig) ValidationErrors {
	var errs ValidationErrors
	if s.Addr == "" {
		errs = append(errs, *RequiredFieldError("server.addr"))
	}
	for _, origin := range s.CORSOrigins {
		if origin != "*" && !isValidURL(origin) {
			errs = append(errs, ValidationError{
				Field:   "server.cors_origins",
				Message: fmt.Sprintf("invalid origin: %s", origin),
			})
		}
	}
	if s.ReadTimeoutSec < 0 || s.WriteTimeoutSec < 0 {
		errs = append(errs, ValidationError{Field: "server.timeouts", Message: "cannot be negative"})
	}
	if s.MaxInputBytes < 1 {
		errs = append(errs, ValidationError{Field: "server.max_input_bytes", Message: "must be at least 1"})
	}
	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr", "discard":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "file path is required when output is 'file'",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both, discard)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}
	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}

	return errs
}

func validateTracing(t *TracingConfig) ValidationErrors {
	if t.SampleRatio < 0 || t.SampleRatio > 1 {
		return ValidationErrors{*RangeError("tracing.sample_ratio", 0, 1)}
	}
	return nil
}

func isValidURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// RequiredFieldError creates a validation error for a required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}
