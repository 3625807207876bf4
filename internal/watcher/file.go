package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher watches one file, using fsnotify when it can and polling
// otherwise. Events are debounced.
type FileWatcher struct {
	path   string
	opts   Options
	logger *slog.Logger

	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	events    chan FileEvent
	errors    chan error

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewFileWatcher creates a watcher for path. The file need not exist yet,
// but its directory must once Start is called.
func NewFileWatcher(path string, opts Options) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve absolute path: %w", err)
	}
	opts = opts.WithDefaults()

	w := &FileWatcher{
		path:      filepath.Clean(abs),
		opts:      opts,
		logger:    slog.Default(),
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan FileEvent, 4),
		errors:    make(chan error, 4),
		stopCh:    make(chan struct{}),
	}

	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			w.fsWatcher = fsw
		} else {
			w.logger.Warn("fsnotify unavailable, polling instead",
				slog.String("path", w.path),
				slog.String("error", err.Error()))
		}
	}

	go w.forward()
	return w, nil
}

// Kind reports "fsnotify" or "polling".
func (w *FileWatcher) Kind() string {
	if w.fsWatcher != nil {
		return "fsnotify"
	}
	return "polling"
}

// Path returns the watched file.
func (w *FileWatcher) Path() string { return w.path }

// Start watches until ctx is done or Stop is called. It blocks.
func (w *FileWatcher) Start(ctx context.Context) error {
	if w.fsWatcher == nil {
		NewPollingWatcher(w.path, w.opts.PollInterval).Run(ctx, w.stopCh, w.debouncer.Add)
		_ = w.Stop()
		return ctx.Err()
	}

	if err := w.fsWatcher.Add(filepath.Dir(w.path)); err != nil {
		_ = w.Stop()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

func (w *FileWatcher) handle(ev fsnotify.Event) {
	if filepath.Clean(ev.Name) != w.path {
		return
	}

	var op Operation
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
	case ev.Has(fsnotify.Write):
		op = OpModify
	case ev.Has(fsnotify.Remove):
		op = OpDelete
	case ev.Has(fsnotify.Rename):
		op = OpRename
	default:
		return
	}

	w.debouncer.Add(FileEvent{Path: w.path, Operation: op, Timestamp: time.Now()})
}

// forward flattens debounced batches onto Events and closes it when the
// debouncer stops.
func (w *FileWatcher) forward() {
	defer close(w.events)
	for batch := range w.debouncer.Output() {
		for _, ev := range batch {
			select {
			case w.events <- ev:
			default:
				w.logger.Warn("watcher event dropped",
					slog.String("path", ev.Path),
					slog.String("op", ev.Operation.String()))
			}
		}
	}
}

// Events returns debounced changes. Closed after Stop.
func (w *FileWatcher) Events() <-chan FileEvent { return w.events }

// Errors returns non-fatal watcher errors. Never closed.
func (w *FileWatcher) Errors() <-chan error { return w.errors }

// Stop releases the watcher. Safe to call multiple times.
func (w *FileWatcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.debouncer.Stop()
		if w.fsWatcher != nil {
			err = w.fsWatcher.Close()
		}
	})
	return err
}
