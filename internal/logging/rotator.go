package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// RotationPolicy controls when the log file is rotated and how many old
// files are kept.
type RotationPolicy struct {
	Path       string
	MaxSizeMB  int64
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// FileRotator is an io.Writer that rotates its file by size.
type FileRotator struct {
	policy RotationPolicy
	mu     sync.Mutex
	file   *os.File
	size   int64
	now    func() time.Time
}

// NewFileRotator opens (or creates) the log file named by the policy.
func NewFileRotator(p RotationPolicy) (*FileRotator, error) {
	if p.Path == "" {
		return nil, fmt.Errorf("log file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	r := &FileRotator{policy: p, now: time.Now}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FileRotator) open() error {
	f, err := os.OpenFile(r.policy.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	r.file = f
	r.size = info.Size()
	return nil
}

// Write implements io.Writer.
func (r *FileRotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		if err := r.open(); err != nil {
			return 0, err
		}
	}
	limit := r.policy.MaxSizeMB * 1024 * 1024
	if limit > 0 && r.size > 0 && r.size+int64(len(p)) > limit {
		if err := r.rotateLocked(); err != nil {
			return 0, fmt.Errorf("rotate log: %w", err)
		}
	}
	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// Rotate forces a rotation.
func (r *FileRotator) Rotate() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rotateLocked()
}

func (r *FileRotator) rotateLocked() error {
	if r.file != nil {
		if err := r.file.Close(); err != nil {
			return fmt.Errorf("close log file: %w", err)
		}
		r.file = nil
	}

	backup := r.backupName(r.now())
	if err := os.Rename(r.policy.Path, backup); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rename log file: %w", err)
	}
	if r.policy.Compress {
		if err := gzipFile(backup); err != nil {
			return err
		}
	}
	if err := r.open(); err != nil {
		return err
	}
	r.prune()
	return nil
}

func (r *FileRotator) backupName(t time.Time) string {
	ext := filepath.Ext(r.policy.Path)
	stem := strings.TrimSuffix(r.policy.Path, ext)
	return fmt.Sprintf("%s-%s%s", stem, t.Format("20060102-150405.000"), ext)
}

// Backups lists rotated files, oldest first.
func (r *FileRotator) Backups() ([]string, error) {
	ext := filepath.Ext(r.policy.Path)
	stem := strings.TrimSuffix(r.policy.Path, ext)
	matches, err := filepath.Glob(stem + "-*" + ext + "*")
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func (r *FileRotator) prune() {
	backups, err := r.Backups()
	if err != nil {
		return
	}
	if r.policy.MaxBackups > 0 && len(backups) > r.policy.MaxBackups {
		for _, old := range backups[:len(backups)-r.policy.MaxBackups] {
			os.Remove(old)
		}
		backups = backups[len(backups)-r.policy.MaxBackups:]
	}
	if r.policy.MaxAgeDays <= 0 {
		return
	}
	cutoff := r.now().AddDate(0, 0, -r.policy.MaxAgeDays)
	for _, b := range backups {
		if info, err := os.Stat(b); err == nil && info.ModTime().Before(cutoff) {
			os.Remove(b)
		}
	}
}

func gzipFile(path string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open rotated log: %w", err)
	}
	defer in.Close()

	out, err := os.Create(path + ".gz")
	if err != nil {
		return fmt.Errorf("create compressed log: %w", err)
	}
	gz := gzip.NewWriter(out)
	gz.Name = filepath.Base(path)
	if _, err := io.Copy(gz, in); err != nil {
		gz.Close()
		out.Close()
		os.Remove(path + ".gz")
		return fmt.Errorf("compress log: %w", err)
	}
	if err := gz.Close(); err != nil {
		out.Close()
		os.Remove(path + ".gz")
		return fmt.Errorf("compress log: %w", err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

// Close closes the underlying file.
func (r *FileRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
