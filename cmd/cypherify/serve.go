package main

import (
	"context"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cypherify/internal/api"
	"cypherify/internal/classifier"
	"cypherify/internal/config"
	"cypherify/internal/health"
	"cypherify/internal/logging"
)

// maxHeapBytes is where the memory check reports degraded.
const maxHeapBytes = 1 << 30

func newServeCommand(a *app) *cobra.Command {
	var (
		addr  string
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP JSON API",
		Long: `Serve exposes classification, keyed transforms, password and PIN
estimates, history and the teacher over HTTP:

  POST /api/v1/classify          {"text": "..."}
  POST /api/v1/transform         {"family", "direction", "text", "key"}
  POST /api/v1/password          {"password"} or {"policy": {...}}
  POST /api/v1/pin               {"pin", "attack"}
  GET  /api/v1/history           ?kind=&family=&limit=&before=
  POST /api/v1/teacher/ask       {"question", "cipher_context", "history"}
  GET  /health, /health/live, /health/ready, /metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg := a.cfg.Server
			if addr != "" {
				cfg.Addr = addr
			}

			st, err := a.history()
			if err != nil {
				return err
			}

			checker, err := a.healthChecker(st != nil)
			if err != nil {
				return err
			}

			srv, err := api.New(cfg, api.Deps{
				Classifier: a.classifier,
				Estimator:  a.estimator,
				Store:      st,
				Teacher:    a.teacher,
				Health:     checker,
				Metrics:    a.metrics,
				Logger:     a.logger,
			})
			if err != nil {
				return err
			}

			if watch {
				loader := config.NewLoader(a.configPath)
				if _, err := loader.Load(); err != nil {
					return err
				}
				loader.OnChange(func(prev, next *config.Config) {
					a.applyReload(prev, next)
				})
				if err := loader.Watch(); err != nil {
					a.logger.Warn("config watch unavailable", "error", err)
				} else {
					defer loader.Close()
					go a.logWatchErrors(ctx, loader)
				}
			}

			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr)")
	cmd.Flags().BoolVar(&watch, "watch-config", true, "reload the configuration file when it changes; only logging.level applies without a restart")
	return cmd
}

// healthChecker registers the server's component checks. The classifier
// self-test uses its own instance so health checks do not count as requests.
func (a *app) healthChecker(withStore bool) (*health.Checker, error) {
	c := health.NewChecker()

	if withStore {
		c.RegisterFunc("history", true, health.DatabaseCheck(a.store.Ping))
	}
	model, err := a.cfg.LanguageModel()
	if err != nil {
		return nil, err
	}
	c.RegisterFunc("language_model", true, health.LanguageModelCheck(model))

	selfTest, err := classifier.NewFromConfig(a.cfg, a.logger, nil)
	if err != nil {
		return nil, err
	}
	c.Register(&health.Component{
		Name:     "classifier",
		Critical: true,
		Check:    health.ClassifierCheck(selfTest),
		Timeout:  a.classifier.Options().Timeout + 5*time.Second,
	})
	c.RegisterFunc("corpus", false, health.FileExistsCheck(a.cfg.Analysis.CorpusPath))
	c.RegisterFunc("memory", false, health.MemoryCheck(maxHeapBytes))
	c.RegisterFunc("teacher", false, health.OptionalFeatureCheck(a.teacher.Enabled))
	return c, nil
}

// applyReload takes the new log level immediately. Other sections are
// fixed when the server starts.
func (a *app) applyReload(prev, next *config.Config) {
	changed := config.ChangedSections(prev, next)
	if len(changed) == 0 {
		return
	}
	if next.Logging.Level != prev.Logging.Level {
		if level, err := logging.ParseLevel(next.Logging.Level); err == nil {
			a.logger.SetLevel(level)
		}
	}
	a.logger.Info("configuration changed", "sections", changed)
	if slices.ContainsFunc(changed, func(s string) bool { return s != "logging" }) {
		a.logger.Warn("restart to apply configuration changes", "path", a.configPath)
	}
}

func (a *app) logWatchErrors(ctx context.Context, l *config.Loader) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-l.Errors():
			a.logger.Warn("config reload failed", "error", err)
		}
	}
}
