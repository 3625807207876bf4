package logstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

const (
	badgerKeyPrefix    = "log:"
	badgerSequenceKey  = "seq:log"
	badgerSeqBandwidth = 100
)

// BadgerStore keeps entries under "log:<big-endian seq>" so a prefix scan
// returns them in append order.
type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence
	mu  sync.Mutex
}

var _ Store = (*BadgerStore)(nil)

// badgerLogger routes badger's logging through slog.
type badgerLogger struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (l *badgerLogger) Errorf(msg string, args ...any) {
	l.logger.Error(fmt.Sprintf(msg, args...))
}

func (l *badgerLogger) Warningf(msg string, args ...any) {
	l.logger.Warn(fmt.Sprintf(msg, args...))
}

// Infof is demoted to debug; badger is chatty at info.
func (l *badgerLogger) Infof(msg string, args ...any) {
	l.logger.Debug(fmt.Sprintf(msg, args...))
}

func (l *badgerLogger) Debugf(msg string, args ...any) {
	l.logger.Debug(fmt.Sprintf(msg, args...))
}

// NewBadgerStore opens the Badger directory dir, or an in-memory database.
func NewBadgerStore(dir string, inMemory bool, logger *slog.Logger) (*BadgerStore, error) {
	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create badger directory: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts.Logger = &badgerLogger{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	seq, err := db.GetSequence([]byte(badgerSequenceKey), badgerSeqBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to get log sequence: %w", err)
	}

	return &BadgerStore{db: db, seq: seq}, nil
}

// Create stores e under the next sequence number.
func (s *BadgerStore) Create(ctx context.Context, e *Entry) error {
	if !e.Completed() {
		return ErrEntryIncomplete
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode log entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("failed to allocate log key: %w", err)
	}
	key := make([]byte, len(badgerKeyPrefix)+8)
	copy(key, badgerKeyPrefix)
	binary.BigEndian.PutUint64(key[len(badgerKeyPrefix):], n)

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// ReadAll scans the log prefix in key order.
func (s *BadgerStore) ReadAll(ctx context.Context) ([]Entry, error) {
	entries := []Entry{}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			PrefetchValues: true,
			PrefetchSize:   100,
			Prefix:         []byte(badgerKeyPrefix),
		})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var e Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return fmt.Errorf("failed to decode log entry: %w", err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Close releases the sequence lease and closes the database.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.seq.Release(); err != nil {
		_ = s.db.Close()
		return err
	}
	return s.db.Close()
}
