// cypherify detects and breaks classical ciphers, performs keyed
// transforms, and estimates password strength.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"cypherify/internal/classifier"
	"cypherify/internal/config"
	"cypherify/internal/logging"
	"cypherify/internal/metrics"
	"cypherify/internal/password"
	"cypherify/internal/report"
	"cypherify/internal/store"
	"cypherify/internal/teacher"
	"cypherify/internal/tracing"
)

// app holds the components shared by every command.
type app struct {
	configPath string
	envFile    string
	logLevel   string
	jsonOut    bool
	noHistory  bool

	cfg        *config.Config
	logger     *logging.Logger
	metrics    *metrics.CypherifyMetrics
	classifier *classifier.Classifier
	estimator  *password.Estimator
	teacher    *teacher.Client
	store      *store.Store
	tracer     *tracing.Tracer
}

func main() {
	if err := newRootCommand(&app{}).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "cypherify",
		Short: "Classical cipher detection and password strength estimation",
		Long: `cypherify identifies which classical cipher most likely produced a
ciphertext, recovers the key, and explains how it decided. It also performs
keyed encryption and decryption and estimates how long a password or PIN
would resist a brute-force attack.

Examples:
  cypherify classify "Khoor Zruog"
  cypherify encrypt --family vigenere --key LEMON "attack at dawn"
  cypherify password --lower --upper --digits --length 12
  cypherify pin 1234 --attack dictionary
  cypherify serve`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "path to config file (default: first config.{toml,json,yaml} found)")
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file with teacher credentials; missing files are ignored")
	pf.StringVar(&a.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	pf.BoolVar(&a.jsonOut, "json", false, "write a schema-checked JSON document instead of a text report")
	pf.BoolVar(&a.noHistory, "no-history", false, "do not record this analysis in the history database")

	root.AddCommand(
		newClassifyCommand(a),
		newTransformCommand(a, classifier.Encrypt),
		newTransformCommand(a, classifier.Decrypt),
		newFamiliesCommand(a),
		newSampleCommand(a),
		newPasswordCommand(a),
		newPINCommand(a),
		newHistoryCommand(a),
		newAskCommand(a),
		newServeCommand(a),
		newConfigCommand(a),
	)
	return root
}

// setup loads the environment file and configuration and builds the shared
// components. The history store is opened on first use.
func (a *app) setup() error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", a.envFile, err)
		}
	}

	if a.configPath == "" {
		a.configPath = config.FindConfigFile()
	}
	if a.configPath == "" {
		a.configPath = config.ConfigPath()
	}
	cfg, err := config.NewLoader(a.configPath).Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	a.cfg = cfg

	logOpts, err := cfg.LoggingOptions()
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if a.logger, err = logging.New(logOpts); err != nil {
		return err
	}
	logging.SetDefault(a.logger)

	if cfg.Tracing.Enabled {
		if err := a.startTracing(); err != nil {
			return err
		}
	}

	a.metrics = metrics.NewCypherifyMetrics(metrics.NewRegistry("cypherify"))
	if a.classifier, err = classifier.NewFromConfig(cfg, a.logger, a.metrics); err != nil {
		return err
	}
	if a.estimator, err = password.NewEstimator(cfg.Password.GuessesPerSecond); err != nil {
		return err
	}
	a.teacher = teacher.New(teacher.OptionsFromConfig(cfg.Teacher), a.logger)
	return nil
}

// startTracing installs a process-wide tracer that appends spans to
// tracing.file_path, or standard error when the path is empty.
func (a *app) startTracing() error {
	var (
		exp *tracing.WriterExporter
		err error
	)
	if path := a.cfg.Tracing.FilePath; path != "" {
		if exp, err = tracing.NewFileExporter(path); err != nil {
			return err
		}
	} else {
		exp = tracing.NewWriterExporter(os.Stderr)
	}
	a.tracer, err = tracing.NewTracer(tracing.Config{
		ServiceName: "cypherify",
		Exporter:    exp,
		Sampler:     tracing.NewRatioSampler(a.cfg.Tracing.SampleRatio),
	})
	if err != nil {
		return err
	}
	tracing.SetTracer(a.tracer)
	return nil
}

func (a *app) close() error {
	var errs []error
	if a.tracer != nil {
		tracing.SetTracer(nil)
		errs = append(errs, a.tracer.Shutdown())
		a.tracer = nil
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
		a.store = nil
	}
	if a.logger != nil {
		errs = append(errs, a.logger.Close())
	}
	return errors.Join(errs...)
}

// history opens the history database. It returns nil when history is
// disabled by configuration or flag.
func (a *app) history() (*store.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	if !a.cfg.Storage.Enabled || a.noHistory {
		return nil, nil
	}
	if err := a.cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	s, err := store.Open(a.cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	a.store = s
	return s, nil
}

// remember records doc in the history. A failure is logged and does not
// fail the command.
func (a *app) remember(ctx context.Context, doc *report.Document, input string) {
	s, err := a.history()
	if err == nil && s != nil {
		var rec *store.Record
		if rec, err = doc.Record(input); err == nil {
			err = s.Save(ctx, rec)
		}
	}
	if err != nil {
		a.logger.Warn("history not saved", "kind", string(doc.Kind), "error", err)
	}
}

// output writes doc as JSON or renders it with the text printer.
func (a *app) output(w io.Writer, doc *report.Document, text func(io.Writer)) error {
	if a.jsonOut {
		return report.WriteJSON(w, doc)
	}
	text(w)
	return nil
}

// readInput returns the positional arguments joined by spaces, the named
// file, or piped standard input, in that order of preference.
func readInput(cmd *cobra.Command, args []string, file string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", file, err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok {
		if stat, err := f.Stat(); err != nil || stat.Mode()&os.ModeCharDevice != 0 {
			return "", errors.New("no input: pass text as arguments, use --file, or pipe it on stdin")
		}
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}
