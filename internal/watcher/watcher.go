// Package watcher reloads the review rules when review.toml changes on disk.
package watcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 250 * time.Millisecond

var (
	ErrFileRemoved    = errors.New("watched file was removed")
	ErrAlreadyStarted = errors.New("watcher already started")
)

type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	}
	return "unknown"
}

type Option func(*FileWatcher)

// WithDebounce collapses bursts of events, as editors and atomic renames
// produce, into one callback.
func WithDebounce(d time.Duration) Option {
	return func(w *FileWatcher) {
		w.debounce = d
	}
}

func WithOnChange(fn func(path string, event EventType)) Option {
	return func(w *FileWatcher) {
		w.onChange = fn
	}
}

func WithOnError(fn func(error)) Option {
	return func(w *FileWatcher) {
		w.onError = fn
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *FileWatcher) {
		w.logger = logger
	}
}

// FileWatcher watches a single file through its parent directory so that
// replace-by-rename saves are seen.
type FileWatcher struct {
	path     string
	debounce time.Duration
	onChange func(path string, event EventType)
	onError  func(error)
	logger   *slog.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
	timer   *time.Timer
	pending EventType
}

func New(path string, opts ...Option) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &FileWatcher{
		path:     abs,
		debounce: DefaultDebounce,
		onChange: func(string, EventType) {},
		onError:  func(error) {},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *FileWatcher) Path() string {
	return w.path
}

// Start begins watching until ctx is cancelled or Stop is called.
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fsw != nil {
		return ErrAlreadyStarted
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	w.fsw = fsw
	w.cancel = cancel
	w.done = make(chan struct{})

	go w.loop(ctx, fsw, w.done)

	w.logger.Info("watching file", "path", w.path)
	return nil
}

// Stop ends the watch and waits for the event loop to exit. Pending
// debounced callbacks are dropped.
func (w *FileWatcher) Stop() error {
	w.mu.Lock()
	fsw, cancel, done := w.fsw, w.cancel, w.done
	w.fsw, w.cancel, w.done = nil, nil, nil
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	if fsw == nil {
		return nil
	}
	cancel()
	err := fsw.Close()
	<-done
	return err
}

func (w *FileWatcher) loop(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	target := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != target {
				continue
			}
			switch {
			case ev.Op&fsnotify.Remove != 0:
				w.onError(ErrFileRemoved)
				w.schedule(EventDelete)
			case ev.Op&fsnotify.Create != 0:
				w.schedule(EventCreate)
			case ev.Op&(fsnotify.Write|fsnotify.Rename) != 0:
				w.schedule(EventModify)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

// schedule restarts the debounce timer. The last event type in a burst wins,
// except that a create is not downgraded to a modify.
func (w *FileWatcher) schedule(ev EventType) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fsw == nil {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
		if !(w.pending == EventCreate && ev == EventModify) {
			w.pending = ev
		}
	} else {
		w.pending = ev
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *FileWatcher) fire() {
	w.mu.Lock()
	if w.fsw == nil {
		w.mu.Unlock()
		return
	}
	ev := w.pending
	w.timer = nil
	w.mu.Unlock()

	w.logger.Debug("file changed", "path", w.path, "event", ev.String())
	w.onChange(w.path, ev)
}
