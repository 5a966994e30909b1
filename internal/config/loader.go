package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader reads the configuration file and, once Watch is called, reloads
// it when the file changes on disk. Subscribers see the previous and the
// new configuration; an edit that fails validation is reported on Errors
// and the previous configuration stays in effect.
type Loader struct {
	path string

	mu          sync.RWMutex
	current     *Config
	subscribers []func(prev, next *Config)

	watcher  *fsnotify.Watcher
	ctx      context.Context
	stop     context.CancelFunc
	errs     chan error
	debounce time.Duration
}

// NewLoader returns a loader for path, or the default location when path
// is empty.
func NewLoader(path string) *Loader {
	if path == "" {
		path = ConfigPath()
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Loader{
		path:     path,
		errs:     make(chan error, 1),
		ctx:      ctx,
		stop:     stop,
		debounce: 100 * time.Millisecond,
	}
}

// Path returns the configuration file path.
func (l *Loader) Path() string {
	return l.path
}

// Load reads the file, applies CYPHERIFY_* environment overrides and
// validates the result. A missing file yields the defaults.
func (l *Loader) Load() (*Config, error) {
	cfg, err := l.read()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()
	return cfg, nil
}

func (l *Loader) read() (*Config, error) {
	cfg, err := loadConfigFromFile(l.path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

// Config returns the configuration most recently loaded.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange subscribes fn to successful reloads.
func (l *Loader) OnChange(fn func(prev, next *Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscribers = append(l.subscribers, fn)
}

// Errors delivers watch and reload failures. Failures are dropped while
// an earlier one is still unread.
func (l *Loader) Errors() <-chan error {
	return l.errs
}

// Reload re-reads the file now and notifies subscribers.
func (l *Loader) Reload() error {
	next, err := l.read()
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}

	l.mu.Lock()
	prev := l.current
	l.current = next
	subs := slices.Clone(l.subscribers)
	l.mu.Unlock()

	for _, fn := range subs {
		fn(prev, next)
	}
	return nil
}

// Watch starts reloading the file when it changes. The directory is
// watched because editors usually replace the file rather than write it.
func (l *Loader) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(l.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch directory: %w", err)
	}
	l.watcher = w
	go l.watch()
	return nil
}

func (l *Loader) watch() {
	name := filepath.Base(l.path)
	var pending *time.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case <-l.ctx.Done():
			return
		case ev, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			// Bursts of events from one save collapse into one reload.
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(l.debounce, func() {
				if err := l.Reload(); err != nil {
					l.fail(err)
				}
			})
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.fail(err)
		}
	}
}

func (l *Loader) fail(err error) {
	select {
	case l.errs <- err:
	default:
	}
}

// Close stops watching.
func (l *Loader) Close() error {
	l.stop()
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}

// ChangedSections names the top-level sections that differ between prev
// and next, in file order.
func ChangedSections(prev, next *Config) []string {
	if prev == nil || next == nil {
		return nil
	}
	a, b := prev.Clone(), next.Clone()
	sections := []struct {
		name string
		a, b any
	}{
		{"analysis", a.Analysis, b.Analysis},
		{"vigenere", a.Vigenere, b.Vigenere},
		{"substitution", a.Substitution, b.Substitution},
		{"rail_fence", a.RailFence, b.RailFence},
		{"classifier", a.Classifier, b.Classifier},
		{"password", a.Password, b.Password},
		{"teacher", a.Teacher, b.Teacher},
		{"storage", a.Storage, b.Storage},
		{"server", a.Server, b.Server},
		{"logging", a.Logging, b.Logging},
		{"tracing", a.Tracing, b.Tracing},
	}
	var changed []string
	for _, s := range sections {
		if !reflect.DeepEqual(s.a, s.b) {
			changed = append(changed, s.name)
		}
	}
	return changed
}

// loadConfigFromFile reads and parses a config file based on its extension.
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()

	switch filepath.Ext(path) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if err := autoDetectAndParse(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	return cfg, nil
}

// autoDetectAndParse attempts to parse the config in multiple formats.
func autoDetectAndParse(data []byte, cfg *Config) error {
	if _, err := toml.Decode(string(data), cfg); err == nil {
		return nil
	}
	if err := json.Unmarshal(data, cfg); err == nil {
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err == nil {
		return nil
	}
	return fmt.Errorf("unable to parse config file (tried TOML, JSON, YAML)")
}

// LoadOrCreate loads the configuration from the specified path,
// creating a default configuration file if it doesn't exist.
func LoadOrCreate(path string) (*Config, bool, error) {
	if path == "" {
		path = ConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.ApplyEnvOverrides()
		if err := SaveConfig(cfg, path); err != nil {
			return nil, false, fmt.Errorf("create default config: %w", err)
		}
		return cfg, true, nil
	}

	cfg, err := NewLoader(path).Load()
	if err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}
