// Package watch reports changes to a record source file.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDelay is how long the watcher waits for a burst of events to settle.
const DefaultDelay = 500 * time.Millisecond

// ChangeFunc is called after the watched file changed.
type ChangeFunc func(ctx context.Context, event fsnotify.Event) error

// Watcher watches one file. The parent directory is watched rather than the
// file itself so that editors and atomic writers that replace the file by
// rename keep being seen.
type Watcher struct {
	path    string
	delay   time.Duration
	logger  zerolog.Logger
	watcher *fsnotify.Watcher
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDelay sets the debounce delay.
func WithDelay(d time.Duration) Option {
	return func(w *Watcher) {
		w.delay = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// New creates a watcher for path. The file itself need not exist yet, but
// its directory must.
func New(path string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	w := &Watcher{
		path:   abs,
		delay:  DefaultDelay,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	w.watcher = watcher

	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Run delivers debounced change notifications to fn until ctx is done.
// fn runs on the caller's goroutine; an error from it is logged and
// watching continues.
func (w *Watcher) Run(ctx context.Context, fn ChangeFunc) error {
	w.logger.Info().Str("path", w.path).Msg("Started watching source file")

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending fsnotify.Event
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Source file changed")

			// Debounce
			pending = event
			if timer == nil {
				timer = time.NewTimer(w.delay)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.delay)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := fn(ctx, pending); err != nil {
				w.logger.Error().Err(err).Str("path", w.path).Msg("Failed to handle source change")
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
