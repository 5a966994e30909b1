// Package config handles configuration loading and validation for cypherify.
//
// Configuration is stored in TOML format by default at:
//   - macOS: ~/Library/Application Support/cypherify/config.toml
//   - Linux: ~/.config/cypherify/config.toml
//   - Windows: %APPDATA%\cypherify\config.toml
//
// JSON and YAML are accepted as well, chosen by file extension.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"cypherify/internal/classical"
	"cypherify/internal/logging"
	"cypherify/internal/textstats"
)

// Version is the current configuration schema version.
const Version = 1

// DefaultUnclassifiedLabel names the pseudo-family reported when no
// classical family explains the input.
const DefaultUnclassifiedLabel = "unclassified: likely non-classical cipher"

// Config is the complete cypherify configuration.
type Config struct {
	Version int `toml:"version" json:"version" yaml:"version"`

	Analysis     AnalysisConfig     `toml:"analysis" json:"analysis" yaml:"analysis"`
	Vigenere     VigenereConfig     `toml:"vigenere" json:"vigenere" yaml:"vigenere"`
	Substitution SubstitutionConfig `toml:"substitution" json:"substitution" yaml:"substitution"`
	RailFence    RailFenceConfig    `toml:"rail_fence" json:"rail_fence" yaml:"rail_fence"`
	Classifier   ClassifierConfig   `toml:"classifier" json:"classifier" yaml:"classifier"`
	Password     PasswordConfig     `toml:"password" json:"password" yaml:"password"`
	Teacher      TeacherConfig      `toml:"teacher" json:"teacher" yaml:"teacher"`
	Storage      StorageConfig      `toml:"storage" json:"storage" yaml:"storage"`
	Server       ServerConfig       `toml:"server" json:"server" yaml:"server"`
	Logging      LoggingConfig      `toml:"logging" json:"logging" yaml:"logging"`
	Tracing      TracingConfig      `toml:"tracing" json:"tracing" yaml:"tracing"`

	mu sync.RWMutex
}

// AnalysisConfig configures the reference language model and scoring.
type AnalysisConfig struct {
	// Alphabet is the ordered set of letters analysed. Empty means A-Z.
	Alphabet string `toml:"alphabet" json:"alphabet" yaml:"alphabet"`

	// Language names the reference model. Only "english" is built in; any
	// other name requires CorpusPath.
	Language string `toml:"language" json:"language" yaml:"language"`

	// CorpusPath and LexiconPath replace the embedded training text and
	// word list.
	CorpusPath  string `toml:"corpus_path" json:"corpus_path" yaml:"corpus_path"`
	LexiconPath string `toml:"lexicon_path" json:"lexicon_path" yaml:"lexicon_path"`

	// Unigram overrides the letter frequency table, one entry per letter.
	Unigram []float64 `toml:"unigram" json:"unigram,omitempty" yaml:"unigram,omitempty"`

	MinLetters    int     `toml:"min_letters" json:"min_letters" yaml:"min_letters"`
	ShortTextCap  float64 `toml:"short_text_cap" json:"short_text_cap" yaml:"short_text_cap"`
	WordBonus     float64 `toml:"word_bonus" json:"word_bonus" yaml:"word_bonus"`
	MinWordLength int     `toml:"min_word_length" json:"min_word_length" yaml:"min_word_length"`
	Skepticism    float64 `toml:"skepticism" json:"skepticism" yaml:"skepticism"`
}

// VigenereConfig configures the keyword search.
type VigenereConfig struct {
	MaxKeyLength     int     `toml:"max_key_length" json:"max_key_length" yaml:"max_key_length"`
	MinColumnLetters int     `toml:"min_column_letters" json:"min_column_letters" yaml:"min_column_letters"`
	ICEpsilon        float64 `toml:"ic_epsilon" json:"ic_epsilon" yaml:"ic_epsilon"`
	RefinePasses     int     `toml:"refine_passes" json:"refine_passes" yaml:"refine_passes"`
}

// SubstitutionConfig configures the annealing search.
type SubstitutionConfig struct {
	Iterations         int     `toml:"iterations" json:"iterations" yaml:"iterations"`
	Restarts           int     `toml:"restarts" json:"restarts" yaml:"restarts"`
	Patience           int     `toml:"patience" json:"patience" yaml:"patience"`
	InitialTemperature float64 `toml:"initial_temperature" json:"initial_temperature" yaml:"initial_temperature"`
	Cooling            float64 `toml:"cooling" json:"cooling" yaml:"cooling"`
	Seed               int64   `toml:"seed" json:"seed" yaml:"seed"`
	TimeBudgetMs       int     `toml:"time_budget_ms" json:"time_budget_ms" yaml:"time_budget_ms"`
}

// RailFenceConfig bounds the rail counts tried.
type RailFenceConfig struct {
	MinRails int `toml:"min_rails" json:"min_rails" yaml:"min_rails"`
	MaxRails int `toml:"max_rails" json:"max_rails" yaml:"max_rails"`
}

// ClassifierConfig configures family ranking.
type ClassifierConfig struct {
	ConfidenceThreshold float64 `toml:"confidence_threshold" json:"confidence_threshold" yaml:"confidence_threshold"`
	UnclassifiedLabel   string  `toml:"unclassified_label" json:"unclassified_label" yaml:"unclassified_label"`

	// TopN is the number of ranked candidates returned.
	TopN int `toml:"top_n" json:"top_n" yaml:"top_n"`

	// MaxCandidates caps the candidates kept per family.
	MaxCandidates int `toml:"max_candidates" json:"max_candidates" yaml:"max_candidates"`

	TimeoutSec int `toml:"timeout_sec" json:"timeout_sec" yaml:"timeout_sec"`
}

// PasswordConfig configures the strength estimator.
type PasswordConfig struct {
	// GuessesPerSecond is the reference attacker rate.
	GuessesPerSecond float64 `toml:"guesses_per_second" json:"guesses_per_second" yaml:"guesses_per_second"`

	// BcryptCost is the work factor used when calibrating a slow-hash rate.
	BcryptCost int `toml:"bcrypt_cost" json:"bcrypt_cost" yaml:"bcrypt_cost"`
}

// TeacherConfig configures the conversational helper.
type TeacherConfig struct {
	Endpoint string `toml:"endpoint" json:"endpoint" yaml:"endpoint"`
	Model    string `toml:"model" json:"model" yaml:"model"`

	// APIKey is normally supplied through CYPHERIFY_TEACHER_API_KEY or a
	// .env file rather than written to disk.
	APIKey string `toml:"api_key" json:"-" yaml:"-"`

	HistoryWindow int     `toml:"history_window" json:"history_window" yaml:"history_window"`
	MaxTokens     int     `toml:"max_tokens" json:"max_tokens" yaml:"max_tokens"`
	Temperature   float64 `toml:"temperature" json:"temperature" yaml:"temperature"`
	TimeoutSec    int     `toml:"timeout_sec" json:"timeout_sec" yaml:"timeout_sec"`
}

// StorageConfig configures the analysis history database.
type StorageConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Path    string `toml:"path" json:"path" yaml:"path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string   `toml:"addr" json:"addr" yaml:"addr"`
	CORSOrigins     []string `toml:"cors_origins" json:"cors_origins" yaml:"cors_origins"`
	ReadTimeoutSec  int      `toml:"read_timeout_sec" json:"read_timeout_sec" yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `toml:"write_timeout_sec" json:"write_timeout_sec" yaml:"write_timeout_sec"`
	MaxInputBytes   int      `toml:"max_input_bytes" json:"max_input_bytes" yaml:"max_input_bytes"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level      string `toml:"level" json:"level" yaml:"level"`
	Format     string `toml:"format" json:"format" yaml:"format"`
	Output     string `toml:"output" json:"output" yaml:"output"`
	FilePath   string `toml:"file_path" json:"file_path" yaml:"file_path"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `toml:"compress" json:"compress" yaml:"compress"`
}

// TracingConfig configures span export. Spans are written as JSON lines.
type TracingConfig struct {
	Enabled     bool    `toml:"enabled" json:"enabled" yaml:"enabled"`
	SampleRatio float64 `toml:"sample_ratio" json:"sample_ratio" yaml:"sample_ratio"`
	// FilePath receives the spans; empty means standard error.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := PlatformDataDir()
	score := textstats.DefaultScoreOptions()
	settings := classical.DefaultSettings()

	return &Config{
		Version: Version,
		Analysis: AnalysisConfig{
			Alphabet:      textstats.DefaultLetters,
			Language:      "english",
			MinLetters:    score.MinLetters,
			ShortTextCap:  score.ShortTextCap,
			WordBonus:     score.WordBonus,
			MinWordLength: score.MinWordLength,
			Skepticism:    score.Skepticism,
		},
		Vigenere: VigenereConfig{
			MaxKeyLength:     settings.Vigenere.MaxKeyLength,
			MinColumnLetters: settings.Vigenere.MinColumnLetters,
			ICEpsilon:        settings.Vigenere.ICEpsilon,
			RefinePasses:     settings.Vigenere.RefinePasses,
		},
		Substitution: SubstitutionConfig{
			Iterations:         settings.Substitution.Iterations,
			Restarts:           settings.Substitution.Restarts,
			Patience:           settings.Substitution.Patience,
			InitialTemperature: settings.Substitution.InitialTemperature,
			Cooling:            settings.Substitution.Cooling,
			Seed:               settings.Substitution.Seed,
			TimeBudgetMs:       int(settings.Substitution.TimeBudget / time.Millisecond),
		},
		RailFence: RailFenceConfig{
			MinRails: settings.RailFence.MinRails,
			MaxRails: settings.RailFence.MaxRails,
		},
		Classifier: ClassifierConfig{
			ConfidenceThreshold: 0.3,
			UnclassifiedLabel:   DefaultUnclassifiedLabel,
			TopN:                5,
			MaxCandidates:       settings.MaxCandidates,
			TimeoutSec:          30,
		},
		Password: PasswordConfig{
			GuessesPerSecond: 1e10, // a modern GPU against a fast hash
			BcryptCost:       10,
		},
		Teacher: TeacherConfig{
			Endpoint:      "https://api.openai.com/v1/chat/completions",
			Model:         "gpt-4o-mini",
			HistoryWindow: 6,
			MaxTokens:     512,
			Temperature:   0.7,
			TimeoutSec:    30,
		},
		Storage: StorageConfig{
			Enabled: true,
			Path:    filepath.Join(dir, "history.db"),
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:8080",
			CORSOrigins:     []string{"http://localhost:3000"},
			ReadTimeoutSec:  15,
			WriteTimeoutSec: 60,
			MaxInputBytes:   64 << 10,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(PlatformLogDir(), "cypherify.log"),
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Tracing: TracingConfig{
			SampleRatio: 1,
			FilePath:    filepath.Join(PlatformLogDir(), "traces.jsonl"),
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates the directories the configured files live in.
func (c *Config) EnsureDirectories() error {
	dirs := []string{}
	if c.Storage.Enabled {
		dirs = append(dirs, filepath.Dir(c.Storage.Path))
	}
	if c.Logging.Output == "file" || c.Logging.Output == "both" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}
	if c.Tracing.Enabled && c.Tracing.FilePath != "" {
		dirs = append(dirs, filepath.Dir(c.Tracing.FilePath))
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with CYPHERIFY_ and use underscores.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv("CYPHERIFY_ALPHABET"); v != "" {
		c.Analysis.Alphabet = v
	}
	if v := os.Getenv("CYPHERIFY_CORPUS_PATH"); v != "" {
		c.Analysis.CorpusPath = v
	}
	if v := os.Getenv("CYPHERIFY_LEXICON_PATH"); v != "" {
		c.Analysis.LexiconPath = v
	}
	if v, ok := envInt64("CYPHERIFY_SEED"); ok {
		c.Substitution.Seed = v
	}
	if v, ok := envInt64("CYPHERIFY_ITERATIONS"); ok {
		c.Substitution.Iterations = int(v)
	}
	if v, ok := envFloat("CYPHERIFY_CONFIDENCE_THRESHOLD"); ok {
		c.Classifier.ConfidenceThreshold = v
	}
	if v, ok := envFloat("CYPHERIFY_GUESSES_PER_SECOND"); ok {
		c.Password.GuessesPerSecond = v
	}

	// Teacher credentials come from the environment.
	if v := os.Getenv("CYPHERIFY_TEACHER_API_KEY"); v != "" {
		c.Teacher.APIKey = v
	} else if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.Teacher.APIKey == "" {
		c.Teacher.APIKey = v
	}
	if v := os.Getenv("CYPHERIFY_TEACHER_ENDPOINT"); v != "" {
		c.Teacher.Endpoint = v
	}
	if v := os.Getenv("CYPHERIFY_TEACHER_MODEL"); v != "" {
		c.Teacher.Model = v
	}

	if v := os.Getenv("CYPHERIFY_DB_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("CYPHERIFY_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("CYPHERIFY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CYPHERIFY_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("CYPHERIFY_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv("CYPHERIFY_TRACE_PATH"); v != "" {
		c.Tracing.Enabled = true
		c.Tracing.FilePath = v
	}
}

func envInt64(name string) (int64, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	return n, err == nil
}

func envFloat(name string) (float64, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	return f, err == nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := &Config{
		Version:      c.Version,
		Analysis:     c.Analysis,
		Vigenere:     c.Vigenere,
		Substitution: c.Substitution,
		RailFence:    c.RailFence,
		Classifier:   c.Classifier,
		Password:     c.Password,
		Teacher:      c.Teacher,
		Storage:      c.Storage,
		Server:       c.Server,
		Logging:      c.Logging,
		Tracing:      c.Tracing,
	}
	clone.Analysis.Unigram = append([]float64(nil), c.Analysis.Unigram...)
	clone.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	return clone
}

// LanguageModel builds the reference model the analysis section describes.
// The default English configuration returns the shared built-in model.
func (c *Config) LanguageModel() (*textstats.LanguageModel, error) {
	a := c.Analysis
	builtin := (a.Alphabet == "" || a.Alphabet == textstats.DefaultLetters) &&
		a.CorpusPath == "" && a.LexiconPath == "" && len(a.Unigram) == 0
	if builtin {
		if a.Language != "" && !strings.EqualFold(a.Language, "english") {
			return nil, fmt.Errorf("config: language %q has no built-in model; set analysis.corpus_path", a.Language)
		}
		return textstats.English(), nil
	}

	alphabet := textstats.Latin()
	if a.Alphabet != "" {
		var err error
		if alphabet, err = textstats.NewAlphabet(a.Alphabet); err != nil {
			return nil, fmt.Errorf("config: analysis.alphabet: %w", err)
		}
	}
	if a.CorpusPath == "" {
		return nil, fmt.Errorf("config: a custom alphabet or unigram table requires analysis.corpus_path")
	}
	corpus, err := os.ReadFile(a.CorpusPath)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	var words []string
	if a.LexiconPath != "" {
		data, err := os.ReadFile(a.LexiconPath)
		if err != nil {
			return nil, fmt.Errorf("read lexicon: %w", err)
		}
		words = strings.Fields(string(data))
	}

	unigram := a.Unigram
	switch {
	case len(unigram) > 0:
	case alphabet.String() == textstats.DefaultLetters && strings.EqualFold(a.Language, "english"):
		unigram = textstats.EnglishUnigram()
	default:
		unigram = textstats.CorpusUnigram(alphabet, string(corpus))
	}

	name := a.Language
	if name == "" {
		name = "custom"
	}
	return textstats.NewLanguageModel(name, alphabet, unigram, string(corpus), words)
}

// ClassicalSettings converts the analysis, search and classifier sections
// into cipher model settings.
func (c *Config) ClassicalSettings() (classical.Settings, error) {
	model, err := c.LanguageModel()
	if err != nil {
		return classical.Settings{}, err
	}
	return classical.Settings{
		Model: model,
		Score: textstats.ScoreOptions{
			WordBonus:     c.Analysis.WordBonus,
			MinWordLength: c.Analysis.MinWordLength,
			Skepticism:    c.Analysis.Skepticism,
			MinLetters:    c.Analysis.MinLetters,
			ShortTextCap:  c.Analysis.ShortTextCap,
		},
		MaxCandidates: c.Classifier.MaxCandidates,
		Vigenere: classical.VigenereOptions{
			MaxKeyLength:     c.Vigenere.MaxKeyLength,
			MinColumnLetters: c.Vigenere.MinColumnLetters,
			ICEpsilon:        c.Vigenere.ICEpsilon,
			RefinePasses:     c.Vigenere.RefinePasses,
		},
		Substitution: classical.SubstitutionOptions{
			Iterations:         c.Substitution.Iterations,
			Restarts:           c.Substitution.Restarts,
			Patience:           c.Substitution.Patience,
			InitialTemperature: c.Substitution.InitialTemperature,
			Cooling:            c.Substitution.Cooling,
			Seed:               c.Substitution.Seed,
			TimeBudget:         time.Duration(c.Substitution.TimeBudgetMs) * time.Millisecond,
		},
		RailFence: classical.RailFenceOptions{
			MinRails: c.RailFence.MinRails,
			MaxRails: c.RailFence.MaxRails,
		},
	}, nil
}

// LoggingOptions converts the logging section into a logger configuration.
func (c *Config) LoggingOptions() (*logging.Config, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(c.Logging.Format)
	if err != nil {
		return nil, err
	}
	out := logging.DefaultConfig()
	out.Level = level
	out.Format = format
	out.Output = c.Logging.Output
	out.Rotation = logging.RotationPolicy{
		Path:       c.Logging.FilePath,
		MaxSizeMB:  int64(c.Logging.MaxSizeMB),
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
		Compress:   c.Logging.Compress,
	}
	return out, nil
}

// EncodeConfig renders the configuration in the format named by ext
// (".toml", ".json", ".yaml" or ".yml"); anything else selects TOML. The
// teacher API key is never included.
func EncodeConfig(cfg *Config, ext string) ([]byte, error) {
	cfg = cfg.Clone()
	cfg.Teacher.APIKey = ""

	var (
		data []byte
		err  error
	)
	switch ext {
	case ".json":
		data, err = json.MarshalIndent(cfg, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		var b strings.Builder
		err = toml.NewEncoder(&b).Encode(cfg)
		data = []byte(b.String())
	}
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

// SaveConfig writes the configuration to path in the format implied by its
// extension. TOML is used when the extension is unknown.
func SaveConfig(cfg *Config, path string) error {
	data, err := EncodeConfig(cfg, filepath.Ext(path))
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
