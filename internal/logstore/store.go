// Package logstore persists query log entries. Three backends share the
// Store interface: a JSON array file (the original on-disk format), SQLite
// and Badger.
package logstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Store appends and lists log entries. Appends are serialized; ReadAll
// returns entries in append order and only ever sees complete writes.
type Store interface {
	// Create persists a completed entry.
	Create(ctx context.Context, e *Entry) error
	// ReadAll returns every entry in append order.
	ReadAll(ctx context.Context) ([]Entry, error)
	// Close releases the backend.
	Close() error
}

// Backend names a Store implementation.
type Backend string

const (
	// BackendJSON keeps a JSON array in one file (default).
	BackendJSON Backend = "json"
	// BackendSQLite uses a single-connection SQLite database in WAL mode.
	BackendSQLite Backend = "sqlite"
	// BackendBadger uses a Badger key-value directory.
	BackendBadger Backend = "badger"
)

// Backends lists the valid backend names.
var Backends = []Backend{BackendJSON, BackendSQLite, BackendBadger}

// ParseBackend validates a backend name. Empty means BackendJSON.
func ParseBackend(name string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(name))); b {
	case "":
		return BackendJSON, nil
	case BackendJSON, BackendSQLite, BackendBadger:
		return b, nil
	default:
		return "", fmt.Errorf("unknown log backend: %s (valid options: json, sqlite, badger)", name)
	}
}

// Options selects and configures a backend.
type Options struct {
	Backend Backend
	// Path is the JSON file, SQLite database file or Badger directory.
	// SQLite and Badger run in memory when Path is empty.
	Path   string
	Logger *slog.Logger
}

// Open creates the Store described by opts.
func Open(opts Options) (Store, error) {
	backend, err := ParseBackend(string(opts.Backend))
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch backend {
	case BackendSQLite:
		return NewSQLiteStore(opts.Path)
	case BackendBadger:
		return NewBadgerStore(opts.Path, opts.Path == "", logger)
	default:
		if opts.Path == "" {
			return nil, errors.New("json log backend requires a path")
		}
		return NewJSONStore(opts.Path)
	}
}

// Retryable reports whether a failed Create may succeed if tried again.
// Misuse of the entry and cancellation are final.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrEntryCompleted), errors.Is(err, ErrEntryIncomplete):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	default:
		return true
	}
}
