package corpus

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Aman-CERP/linesearch/internal/watcher"
)

// Watch reloads the corpus whenever the file changes, until ctx is done.
// It is meant for stores without reread-on-query. A removed file is logged
// and the current snapshot kept; the next change after it reappears
// triggers a reload.
func (s *Store) Watch(ctx context.Context, opts watcher.Options) error {
	w, err := watcher.NewFileWatcher(s.path, opts)
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	startErr := make(chan error, 1)
	go func() { startErr <- w.Start(ctx) }()

	s.logger.Info("watching corpus",
		slog.String("path", s.path),
		slog.String("kind", w.Kind()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-startErr:
			if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		case err := <-w.Errors():
			s.logger.Warn("corpus watcher error", slog.String("error", err.Error()))
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			if ev.Operation.Gone() {
				s.logger.Warn("corpus file removed, keeping current snapshot",
					slog.String("path", s.path),
					slog.String("op", ev.Operation.String()))
				continue
			}
			if snap, err := s.Reload(ctx); err == nil {
				s.logger.Info("corpus reloaded",
					slog.Uint64("version", snap.Version),
					slog.Int("lines", len(snap.Lines)))
			}
		}
	}
}
