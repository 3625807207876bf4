// Package corpus owns the in-memory copy of the corpus file and the
// indexes derived from it. Loads publish a new Snapshot with a single
// atomic pointer swap; readers keep whatever snapshot they already hold.
package corpus

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	lserrors "github.com/Aman-CERP/linesearch/internal/errors"
	"github.com/Aman-CERP/linesearch/internal/index"
)

// Options configures a Store.
type Options struct {
	// Path is the absolute path of the corpus file.
	Path string
	// RereadOnQuery reloads the file before every Ensure.
	RereadOnQuery bool
	// MaxIndexes bounds how many mode indexes a snapshot keeps.
	// Zero keeps one per mode.
	MaxIndexes int
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Store holds the current corpus snapshot.
type Store struct {
	path      string
	reread    bool
	cacheSize int
	logger    *slog.Logger
	readFile  func(string) ([]byte, error)

	current  atomic.Pointer[Snapshot]
	reloadMu sync.Mutex
	version  atomic.Uint64
}

// New creates a Store. Nothing is read until the first Ensure or Reload.
func New(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, lserrors.ConfigError("corpus path is required", nil)
	}
	cacheSize := opts.MaxIndexes
	if cacheSize <= 0 {
		cacheSize = len(index.Modes)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:      opts.Path,
		reread:    opts.RereadOnQuery,
		cacheSize: cacheSize,
		logger:    logger,
		readFile:  os.ReadFile,
	}, nil
}

// Path returns the corpus file path.
func (s *Store) Path() string { return s.path }

// RereadOnQuery reports whether every Ensure reloads the file.
func (s *Store) RereadOnQuery() bool { return s.reread }

// Current returns the published snapshot, or nil before the first load.
func (s *Store) Current() *Snapshot { return s.current.Load() }

// Ensure returns an index for mode together with the snapshot it belongs to.
//
// With reread-on-query the file is loaded again first and a failure is
// returned to the caller; the previously published snapshot stays current.
// Otherwise the current snapshot is reused and the file is only read if
// nothing has been loaded yet.
func (s *Store) Ensure(ctx context.Context, mode index.Mode) (index.Index, *Snapshot, error) {
	var (
		snap *Snapshot
		err  error
	)
	if s.reread {
		snap, err = s.Reload(ctx)
	} else {
		snap, err = s.loadOnce(ctx)
	}
	if err != nil {
		return nil, nil, err
	}
	return snap.Index(mode), snap, nil
}

// Warm loads the corpus if needed and builds the index for mode, so the
// first query does not pay for it.
func (s *Store) Warm(ctx context.Context, mode index.Mode) (*Snapshot, error) {
	snap, err := s.loadOnce(ctx)
	if err != nil {
		return nil, err
	}
	snap.Index(mode)
	return snap, nil
}

// Reload reads the file and publishes a new snapshot. Reloads run one at a
// time; readers are never blocked.
func (s *Store) Reload(ctx context.Context) (*Snapshot, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	return s.load(ctx)
}

func (s *Store) loadOnce(ctx context.Context) (*Snapshot, error) {
	if snap := s.current.Load(); snap != nil {
		return snap, nil
	}

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if snap := s.current.Load(); snap != nil {
		return snap, nil
	}
	return s.load(ctx)
}

// load must be called with reloadMu held.
func (s *Store) load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	data, err := s.readFile(s.path)
	if err != nil {
		loadErr := classifyReadError(s.path, err)
		s.logger.Error("corpus load failed",
			slog.String("path", s.path),
			slog.String("code", lserrors.GetCode(loadErr)),
			slog.String("error", err.Error()))
		return nil, loadErr
	}

	snap := newSnapshot(s.version.Add(1), s.path, splitLines(data), s.cacheSize)
	s.current.Store(snap)

	s.logger.Debug("corpus loaded",
		slog.String("path", s.path),
		slog.Uint64("version", snap.Version),
		slog.Int("lines", len(snap.Lines)),
		slog.Duration("duration", time.Since(start)))
	return snap, nil
}

func classifyReadError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return lserrors.New(lserrors.ErrCodeCorpusNotFound,
			"Corpus file not found", err).WithDetail("path", path)
	}
	return lserrors.New(lserrors.ErrCodeCorpusUnreadable,
		"Corpus file unreadable", err).WithDetail("path", path)
}
