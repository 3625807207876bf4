package logstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 10 * time.Millisecond

// JSONStore keeps all entries as one JSON array in a file. Each append
// rewrites the file through a temp file and rename, under an in-process
// mutex and a cross-process flock on <path>.lock.
type JSONStore struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

var _ Store = (*JSONStore)(nil)

// NewJSONStore opens the store at path, creating the file holding an
// empty array if it does not exist.
func NewJSONStore(path string) (*JSONStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	s := &JSONStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		err := s.withLock(context.Background(), func() error {
			if _, err := os.Stat(path); err == nil {
				return nil
			}
			return s.writeAll(nil)
		})
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Create appends e to the array.
func (s *JSONStore) Create(ctx context.Context, e *Entry) error {
	if !e.Completed() {
		return ErrEntryIncomplete
	}
	return s.withLock(ctx, func() error {
		entries, err := s.readAll()
		if err != nil {
			return err
		}
		return s.writeAll(append(entries, *e))
	})
}

// ReadAll returns every entry. The rename in Create means a reader sees
// either the old or the new array, never a partial one.
func (s *JSONStore) ReadAll(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.readAll()
}

// Close is a no-op; the lock file is left for other processes.
func (s *JSONStore) Close() error { return nil }

func (s *JSONStore) withLock(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire log lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to acquire log lock: %s", s.lock.Path())
	}
	defer func() { _ = s.lock.Unlock() }()

	return fn()
}

func (s *JSONStore) readAll() ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read logs: %w", err)
	}
	if len(data) == 0 {
		return []Entry{}, nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse logs %s: %w", s.path, err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

func (s *JSONStore) writeAll(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode logs: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp log file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write logs: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write logs: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace logs: %w", err)
	}
	return nil
}
