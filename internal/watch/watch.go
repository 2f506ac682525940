// SPDX-License-Identifier: MPL-2.0

// Package watch re-runs an audit when its inputs change on disk.
//
// Roots are the files and directories named on the command line. Events on
// a file root, or on a matching file under a directory root, are collected
// until the debounce window closes; the callback then fires once with the
// full set of changed paths.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 300 * time.Millisecond

// defaultIgnores are root-relative patterns that never trigger a re-run.
var defaultIgnores = []string{
	"**/.git/**",
	"**/.terraform/**",
	"**/vendor/**",
	"**/node_modules/**",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/.DS_Store",
}

var (
	// ErrInvalidWatchConfig is the sentinel error wrapped by InvalidWatchConfigError.
	ErrInvalidWatchConfig = errors.New("invalid watch config")
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("watcher already running")
)

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Roots are files or directories. A file root need not exist yet;
		// its parent directory is watched instead.
		Roots []string

		// Ignore holds extra doublestar patterns, matched against paths
		// relative to their directory root.
		Ignore []string

		// Match filters files under directory roots; nil accepts all.
		Match func(path string) bool

		// Debounce is the quiet period before OnChange fires.
		Debounce time.Duration

		// OnChange receives the sorted changed paths. Errors are logged.
		OnChange func(ctx context.Context, changed []string) error

		Logger *log.Logger
	}

	// InvalidWatchConfigError is returned when a Config has invalid fields.
	InvalidWatchConfigError struct {
		FieldErrors []error
	}

	// Watcher monitors the roots of one audit. Run must be called once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		ignores  []string
		files    map[string]struct{}
		dirs     []string
		watched  map[string]struct{}
		logger   *log.Logger
		debounce time.Duration
		started  atomic.Bool
	}
)

// Error implements the error interface for InvalidWatchConfigError.
func (e *InvalidWatchConfigError) Error() string {
	return fmt.Sprintf("invalid watch config: %d field error(s): %v", len(e.FieldErrors), errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidWatchConfig for errors.Is() compatibility.
func (e *InvalidWatchConfigError) Unwrap() error { return ErrInvalidWatchConfig }

// Validate checks roots and ignore patterns.
func (c Config) Validate() error {
	var errs []error
	if len(c.Roots) == 0 {
		errs = append(errs, errors.New("at least one root is required"))
	}
	for _, r := range c.Roots {
		if strings.TrimSpace(r) == "" {
			errs = append(errs, errors.New("root must not be empty"))
		}
	}
	for _, pat := range c.Ignore {
		if pat == "" || !doublestar.ValidatePattern(pat) {
			errs = append(errs, fmt.Errorf("ignore pattern %q is not a valid glob", pat))
		}
	}
	if c.Debounce < 0 {
		errs = append(errs, fmt.Errorf("debounce %s is negative", c.Debounce))
	}
	if len(errs) > 0 {
		return &InvalidWatchConfigError{FieldErrors: errs}
	}
	return nil
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string { return slices.Clone(defaultIgnores) }

// New registers every root with fsnotify.
func New(cfg Config) (*Watcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	debounce := cfg.Debounce
	if debounce == 0 {
		debounce = defaultDebounce
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		ignores:  append(DefaultIgnores(), cfg.Ignore...),
		files:    make(map[string]struct{}),
		watched:  make(map[string]struct{}),
		logger:   logger,
		debounce: debounce,
	}

	for _, root := range cfg.Roots {
		if err := w.addRoot(filepath.Clean(root)); err != nil {
			if closeErr := fsw.Close(); closeErr != nil {
				logger.Warn("close watcher after init failure", "err", closeErr)
			}
			return nil, err
		}
	}
	return w, nil
}

// Run blocks until ctx is cancelled. A callback that is still running when
// the next window closes is not overlapped; the pending set is retried
// after another debounce period.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		busy    atomic.Bool
	)

	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !busy.CompareAndSwap(false, true) {
			w.logger.Debug("previous audit still running, deferring")
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer busy.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		if w.cfg.OnChange == nil {
			return
		}
		if err := w.cfg.OnChange(ctx, changed); err != nil {
			w.logger.Error("re-audit failed", "err", err)
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("close watcher", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: event channel closed")
			}
			name := filepath.Clean(evt.Name)
			if evt.Has(fsnotify.Create) && w.addNewDir(name) {
				continue
			}
			if !w.relevant(name) {
				continue
			}

			mu.Lock()
			pending[name] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: error channel closed")
			}
			if exhausted(err) {
				return fmt.Errorf("watch: %w", err)
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

// addRoot watches a directory tree, or the parent directory of a file.
func (w *Watcher) addRoot(root string) error {
	info, err := os.Stat(root)
	if err == nil && info.IsDir() {
		w.dirs = append(w.dirs, root)
		return w.addTree(root)
	}
	w.files[root] = struct{}{}
	return w.add(filepath.Dir(root))
}

func (w *Watcher) addTree(root string) error {
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			w.logger.Warn("not watching inaccessible path", "path", p, "err", walkErr)
			return nil //nolint:nilerr // unreadable directories are skipped
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && w.ignoredUnder(root, p+string(filepath.Separator)) {
			return filepath.SkipDir
		}
		return w.add(p)
	})
	if err != nil {
		return fmt.Errorf("watch: walk %s: %w", root, err)
	}
	return nil
}

func (w *Watcher) add(dir string) error {
	if _, ok := w.watched[dir]; ok {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("watch: add %s: %w", dir, err)
	}
	w.watched[dir] = struct{}{}
	return nil
}

// addNewDir extends a directory root to a directory created after start.
// It reports whether name was a directory.
func (w *Watcher) addNewDir(name string) bool {
	info, err := os.Stat(name)
	if err != nil || !info.IsDir() {
		return false
	}
	root, ok := w.rootOf(name)
	if !ok || w.ignoredUnder(root, name+string(filepath.Separator)) {
		return true
	}
	if err := w.addTree(name); err != nil {
		w.logger.Warn("watch new directory", "path", name, "err", err)
	}
	return true
}

func (w *Watcher) relevant(name string) bool {
	if _, ok := w.files[name]; ok {
		return true
	}
	root, ok := w.rootOf(name)
	if !ok || w.ignoredUnder(root, name) {
		return false
	}
	return w.cfg.Match == nil || w.cfg.Match(name)
}

// rootOf returns the directory root containing name.
func (w *Watcher) rootOf(name string) (string, bool) {
	for _, root := range w.dirs {
		rel, err := filepath.Rel(root, name)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return root, true
	}
	return "", false
}

// ignoredUnder matches name, relative to root, against the ignore patterns.
// A trailing separator marks a directory.
func (w *Watcher) ignoredUnder(root, name string) bool {
	rel, err := filepath.Rel(root, name)
	if err != nil {
		return false
	}
	candidates := []string{filepath.ToSlash(rel)}
	if strings.HasSuffix(name, string(filepath.Separator)) {
		candidates = append(candidates, candidates[0]+"/")
	}
	for _, pat := range w.ignores {
		for _, c := range candidates {
			if ok, _ := doublestar.Match(pat, c); ok {
				return true
			}
		}
	}
	return false
}
