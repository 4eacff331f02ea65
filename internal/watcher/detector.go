package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/j-veylop/claude-usage-monitor/internal/logger"
)

// DefaultDelay is the quiet period used when none is configured.
const DefaultDelay = 500 * time.Millisecond

// Detector watches a directory tree and calls onChange after a burst of
// relevant writes settles.
type Detector struct {
	root     string
	suffix   string
	onChange func() error
	debounce *Debouncer

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
	closed  bool
}

// NewDetector creates a detector for files under root ending in suffix.
// A non-positive delay selects DefaultDelay.
func NewDetector(root, suffix string, delay time.Duration, onChange func() error) *Detector {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Detector{
		root:     root,
		suffix:   suffix,
		onChange: onChange,
		debounce: NewDebouncer(delay),
	}
}

// Start begins observing. A missing root is logged and leaves the detector
// idle; only failure to create the OS watcher is returned.
func (d *Detector) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return errors.New("detector closed")
	}
	if d.watcher != nil {
		return nil
	}

	// WalkDir and fsnotify both need the real directory, not a link to it.
	root, err := filepath.EvalSymlinks(d.root)
	if err != nil {
		logger.Warn("log root not found, change detection idle", "root", d.root)
		return nil
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		logger.Warn("log root not found, change detection idle", "root", d.root)
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	d.watcher = w
	d.done = make(chan struct{})

	if err := d.addTree(root); err != nil {
		logger.Warn("partial watch of log root", "root", d.root, "error", err)
	}

	go d.loop(w, d.done)
	logger.Info("change detection started", "root", root, "debounce", d.debounce.delay)
	return nil
}

// Active reports whether the detector is observing the filesystem.
func (d *Detector) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.watcher != nil
}

// Close stops observation and cancels any pending trigger.
func (d *Detector) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	w, done := d.watcher, d.done
	d.watcher = nil
	d.mu.Unlock()

	d.debounce.Stop()
	if w == nil {
		return nil
	}

	err := w.Close()
	<-done
	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (d *Detector) loop(w *fsnotify.Watcher, done chan struct{}) {
	defer close(done)

	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			d.handle(w, event)

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Error("file watcher error", "error", err)
		}
	}
}

func (d *Detector) handle(w *fsnotify.Watcher, event fsnotify.Event) {
	// New project directories must be watched before their first fragment lands.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			found, err := d.addTreeTo(w, event.Name)
			if err != nil {
				logger.Debug("failed to watch new directory", "path", event.Name, "error", err)
			}
			// Fragments written before the watch was added produce no event of their own.
			if found {
				d.debounce.Trigger(d.fire)
			}
			return
		}
	}

	if !d.qualifies(event) {
		return
	}

	logger.Debug("log fragment changed", "path", event.Name, "op", event.Op.String())
	d.debounce.Trigger(d.fire)
}

// qualifies reports whether event is a create or write of a fragment.
func (d *Detector) qualifies(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	return strings.HasSuffix(event.Name, d.suffix)
}

func (d *Detector) fire() {
	if err := d.onChange(); err != nil {
		logger.Error("change-triggered refresh failed", "error", err)
	}
}

func (d *Detector) addTree(dir string) error {
	_, err := d.addTreeTo(d.watcher, dir)
	return err
}

// addTreeTo watches dir and every directory below it. It reports whether
// any fragment already exists in the tree.
func (d *Detector) addTreeTo(w *fsnotify.Watcher, dir string) (bool, error) {
	var (
		errs  []error
		found bool
	)
	walkErr := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, err)
			if entry != nil && entry.IsDir() && path != dir {
				return fs.SkipDir
			}
			return nil
		}
		if !entry.IsDir() {
			if strings.HasSuffix(entry.Name(), d.suffix) {
				found = true
			}
			return nil
		}
		if err := w.Add(path); err != nil {
			errs = append(errs, fmt.Errorf("failed to watch directory %q: %w", path, err))
			return nil
		}
		logger.Debug("watching directory", "path", path)
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}
	return found, errors.Join(errs...)
}
