// Package watch observes files on disk. FileWatcher reports debounced
// batches of changed paths; ConfigReloader reapplies the configuration
// file whenever it changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrRunning is returned by Watch when the watcher is already running.
var ErrRunning = errors.New("watcher already running")

// Config contains configuration for a FileWatcher.
type Config struct {
	// Paths are the files and directories to watch. Directories are
	// watched recursively.
	Paths []string

	// Debounce is the quiet period after the last event before the
	// changed paths are reported.
	// Default: 100ms
	Debounce time.Duration

	// Extensions limits events to files with these extensions. Empty means
	// every file.
	Extensions []string

	// SkipHidden ignores files and directories starting with a dot.
	// Default: true
	SkipHidden bool
}

// DefaultConfig returns the default watcher configuration.
func DefaultConfig() Config {
	return Config{
		Debounce:   100 * time.Millisecond,
		SkipHidden: true,
	}
}

// FileWatcher watches files and directories for changes.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	config   Config
	debounce *Debouncer
	logger   *slog.Logger

	// files holds explicitly watched files. Their parent directory is
	// watched so that editors replacing the file are still seen.
	files map[string]bool
	dirs  map[string]bool

	mu      sync.Mutex
	running bool
}

// NewFileWatcher creates a watcher for cfg.Paths. Every path must exist.
func NewFileWatcher(cfg Config, logger *slog.Logger) (*FileWatcher, error) {
	if len(cfg.Paths) == 0 {
		return nil, errors.New("no paths to watch")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultConfig().Debounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	fw := &FileWatcher{
		watcher:  w,
		config:   cfg,
		debounce: NewDebouncer(cfg.Debounce),
		logger:   logger.With("component", "watch"),
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
	}

	for _, p := range cfg.Paths {
		if err := fw.add(p); err != nil {
			w.Close()
			return nil, err
		}
	}
	return fw, nil
}

// Files returns the regular files currently matched under the watched
// paths, sorted.
func (fw *FileWatcher) Files() ([]string, error) {
	var out []string
	for _, p := range fw.config.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, abs)
			continue
		}
		err = filepath.WalkDir(abs, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != abs && fw.hidden(path) {
					return filepath.SkipDir
				}
				return nil
			}
			if fw.matches(path) {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// Watch blocks until ctx is done, calling onChange with each debounced
// batch of changed paths. Batches are delivered one at a time.
func (fw *FileWatcher) Watch(ctx context.Context, onChange func(paths []string)) error {
	fw.mu.Lock()
	if fw.running {
		fw.mu.Unlock()
		return ErrRunning
	}
	fw.running = true
	fw.mu.Unlock()

	defer func() {
		fw.debounce.Stop()
		fw.watcher.Close()

		fw.mu.Lock()
		fw.running = false
		fw.mu.Unlock()
	}()

	fw.logger.Info("file watcher started",
		"paths", fw.config.Paths,
		"debounce_ms", fw.config.Debounce.Milliseconds(),
	)

	var deliver sync.Mutex
	for {
		select {
		case <-ctx.Done():
			fw.logger.Info("file watcher stopped")
			return nil

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}

			path := filepath.Clean(event.Name)
			if event.Has(fsnotify.Create) && fw.dirs[filepath.Dir(path)] && !fw.files[path] {
				if info, err := os.Stat(path); err == nil && info.IsDir() && !fw.hidden(path) {
					if err := fw.addDir(path); err != nil {
						fw.logger.Warn("failed to watch new directory", "path", path, "error", err)
					}
					continue
				}
			}
			if !fw.relevant(event) {
				continue
			}

			fw.logger.Debug("file event", "path", path, "op", event.Op.String())
			fw.debounce.Trigger(path, func(paths []string) {
				deliver.Lock()
				defer deliver.Unlock()
				onChange(paths)
			})

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			fw.logger.Error("file watcher error", "error", err)
		}
	}
}

func (fw *FileWatcher) add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	if info.IsDir() {
		return fw.addDir(abs)
	}

	fw.files[abs] = true
	dir := filepath.Dir(abs)
	if err := fw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return nil
}

func (fw *FileWatcher) addDir(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && fw.hidden(path) {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", path, err)
		}
		fw.dirs[path] = true
		fw.logger.Debug("watching directory", "path", path)
		return nil
	})
}

// relevant reports whether event concerns a watched file. Events in the
// parent directory of an explicitly watched file only count for that file.
func (fw *FileWatcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	path := filepath.Clean(event.Name)
	if fw.files[path] {
		return true
	}
	if !fw.dirs[filepath.Dir(path)] {
		return false
	}
	return fw.matches(path)
}

func (fw *FileWatcher) matches(path string) bool {
	if fw.hidden(path) {
		return false
	}
	base := filepath.Base(path)
	if strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") || strings.HasPrefix(base, "#") {
		return false
	}
	if len(fw.config.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range fw.config.Extensions {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

func (fw *FileWatcher) hidden(path string) bool {
	return fw.config.SkipHidden && strings.HasPrefix(filepath.Base(path), ".")
}
