// Package watch reports input tables created or modified in a directory.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// Op is the kind of change reported by an Event.
type Op string

const (
	OpCreate Op = "create"
	OpWrite  Op = "write"
)

// Event is a debounced change of a file matching the watched pattern.
type Event struct {
	Path string
	Op   Op
	Time time.Time
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s", e.Op, e.Path)
}

type config struct {
	pattern  string
	ignore   []string
	debounce time.Duration
	logger   *slog.Logger
}

// Option configures a watcher.
type Option func(*config)

// WithPattern sets the glob, relative to the watched directory, that files
// must match. Defaults to every file.
func WithPattern(pattern string) Option {
	return func(c *config) {
		c.pattern = pattern
	}
}

// WithIgnore adds globs of files never reported.
func WithIgnore(patterns ...string) Option {
	return func(c *config) {
		c.ignore = append(c.ignore, patterns...)
	}
}

// WithDebounce sets how long a path must be quiet before it is reported.
func WithDebounce(d time.Duration) Option {
	return func(c *config) {
		c.debounce = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func newConfig(opts []Option) (*config, error) {
	c := &config{
		pattern:  "**",
		ignore:   []string{"**/.*", "**/cpm-tmp-*"},
		debounce: 100 * time.Millisecond,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, p := range append([]string{c.pattern}, c.ignore...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob pattern %q", p)
		}
	}
	return c, nil
}

// match reports whether rel, a slash separated path, should be reported.
func (c *config) match(rel string) bool {
	for _, p := range c.ignore {
		if ok, _ := doublestar.Match(p, rel); ok {
			return false
		}
	}
	ok, _ := doublestar.Match(c.pattern, rel)
	return ok
}

// Worker is a lifecycle worker running one fsnotify watcher.
type Worker struct {
	*worker.BaseWorker
	dir       string
	cfg       *config
	events    chan<- Event
	watcher   *fsnotify.Watcher
	debouncer *debouncer
	cancel    context.CancelFunc
}

// NewWorker creates a worker reporting changes under dir to events.
func NewWorker(dir string, events chan<- Event, opts ...Option) (*Worker, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	return &Worker{
		BaseWorker: worker.NewBaseWorker("table-watcher"),
		dir:        dir,
		cfg:        cfg,
		events:     events,
	}, nil
}

func (w *Worker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := addRecursive(watcher, w.dir); err != nil {
		_ = watcher.Close()
		return err
	}
	w.watcher = watcher
	w.debouncer = newDebouncer(w.cfg.debounce)

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *Worker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}
	return w.BaseWorker.Stop(ctx)
}

func (w *Worker) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
			"dir":               w.dir,
			"pattern":           w.cfg.pattern,
		}
	})
}

func addRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Worker) run(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("watcher panic: %v", recovered)
			if w.cfg.logger.Enabled(ctx, slog.LevelDebug) {
				w.cfg.logger.Error("watcher panic", "error", err, "stack", string(debug.Stack()))
			} else {
				w.cfg.logger.Error("watcher panic", "error", err)
			}
		}
	}()
	defer w.watcher.Close()

	err = w.loop(ctx)
	w.debouncer.stopAndWait(5 * time.Second)
	return err
}

func (w *Worker) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			w.handle(ctx, event)

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.cfg.logger.Error("fsnotify error", "error", wErr)
		}
	}
}

func (w *Worker) handle(ctx context.Context, event fsnotify.Event) {
	w.cfg.logger.Debug("event received", "name", event.Name, "op", event.Op.String())

	var op Op
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpWrite
	default:
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if op == OpCreate && !strings.HasPrefix(info.Name(), ".") {
			if err := addRecursive(w.watcher, event.Name); err != nil {
				w.cfg.logger.Warn("unable to watch new directory", "path", event.Name, "error", err)
			}
		}
		return
	}

	rel, err := filepath.Rel(w.dir, event.Name)
	if err != nil || !w.cfg.match(filepath.ToSlash(rel)) {
		return
	}

	w.debouncer.add(Event{Path: event.Name, Op: op, Time: time.Now()}, func(e Event) {
		defer func() {
			// the events channel may be closed while stopping
			_ = recover()
		}()
		select {
		case w.events <- e:
		case <-ctx.Done():
		}
	})
}
