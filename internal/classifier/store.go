package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/fsnotify/fsnotify"
)

// Store holds the bundle currently used for inference.
type Store struct {
	dir     string
	log     *slog.Logger
	current atomic.Pointer[Bundle]

	reloadDelay time.Duration
	debounce    time.Duration
}

// NewStore creates a store for the bundle directory dir. It starts empty.
func NewStore(dir string, log *slog.Logger) *Store {
	return &Store{
		dir:         dir,
		log:         log.With("bundle_dir", dir),
		reloadDelay: 200 * time.Millisecond,
		debounce:    250 * time.Millisecond,
	}
}

// Current returns the loaded bundle, or nil when no model is available.
func (s *Store) Current() *Bundle {
	return s.current.Load()
}

// Set replaces the current bundle.
func (s *Store) Set(b *Bundle) {
	s.current.Store(b)
}

// Load reads the bundle from disk. On failure the store holds no model.
func (s *Store) Load() error {
	b, err := Load(s.dir)
	if err != nil {
		s.current.Store(nil)
		s.log.Error("model bundle unavailable", "error", err)
		return err
	}
	s.current.Store(b)
	s.log.Info("model bundle loaded", "classes", b.Manifest.Classes, "accuracy", b.Manifest.Metrics.Accuracy)
	return nil
}

// reload retries a few times, since a writer may be between renames. A bundle
// that still fails to load leaves the previous one in place.
func (s *Store) reload(ctx context.Context) {
	var b *Bundle
	err := retry.Do(
		func() error {
			var err error
			b, err = Load(s.dir)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(s.reloadDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		s.log.Warn("bundle reload failed, keeping current model", "error", err, "has_model", s.Current() != nil)
		return
	}
	s.current.Store(b)
	s.log.Info("model bundle reloaded", "classes", b.Manifest.Classes, "created_at", b.Manifest.CreatedAt)
}

// Watch reloads the bundle whenever files in its directory change. It blocks
// until ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(s.dir); err != nil {
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if strings.HasPrefix(filepath.Base(ev.Name), ".tmp-") {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove) {
				timer.Reset(s.debounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("bundle watcher error", "error", err)
		case <-timer.C:
			s.reload(ctx)
		}
	}
}
