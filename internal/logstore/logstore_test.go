package logstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/linesearch/internal/logging"
)

func completed(t *testing.T, query string, status Status) *Entry {
	t.Helper()
	e := NewEntry(query, "127.0.0.1")
	require.NoError(t, e.Complete(status, 1500*time.Microsecond, ""))
	return e
}

func TestTruncateQuery(t *testing.T) {
	t.Run("ascii 1100 bytes", func(t *testing.T) {
		got := TruncateQuery(strings.Repeat("a", 1100), MaxQueryBytes)
		assert.Len(t, got, 1024)
	})

	t.Run("four byte code points", func(t *testing.T) {
		q := strings.Repeat("🙂", 300) // 1200 bytes
		got := TruncateQuery(q, MaxQueryBytes)
		assert.LessOrEqual(t, len(got), MaxQueryBytes)
		assert.True(t, utf8.ValidString(got))
		assert.Equal(t, 256, utf8.RuneCountInString(got))
	})

	t.Run("offset multibyte boundary", func(t *testing.T) {
		q := "ab" + strings.Repeat("日", 400) // 2 + 1200 bytes
		got := TruncateQuery(q, MaxQueryBytes)
		assert.True(t, utf8.ValidString(got))
		assert.Equal(t, 2+3*340, len(got))
	})

	t.Run("short untouched", func(t *testing.T) {
		assert.Equal(t, "banana", TruncateQuery("banana", MaxQueryBytes))
	})

	t.Run("invalid utf8 replaced", func(t *testing.T) {
		got := TruncateQuery("ab\xffcd", MaxQueryBytes)
		assert.Equal(t, "ab�cd", got)
	})
}

func TestEntry_CompleteOnce(t *testing.T) {
	e := NewEntry("banana", "10.0.0.7")
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Completed())

	require.NoError(t, e.Complete(StatusFound, 2*time.Millisecond, ""))
	assert.True(t, e.Completed())
	assert.Equal(t, StatusFound, e.Status)
	assert.InDelta(t, 0.002, e.ExecutionTime, 1e-9)
	assert.Equal(t, time.UTC, e.Timestamp.Location())

	err := e.Complete(StatusError, time.Second, "late")
	assert.ErrorIs(t, err, ErrEntryCompleted)
	assert.Equal(t, StatusFound, e.Status)
	assert.Empty(t, e.Error)
}

func TestEntry_JSONFields(t *testing.T) {
	e := completed(t, "kiwi", StatusNotFound)
	data, err := json.Marshal(e)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, key := range []string{"id", "query", "requesting_ip", "execution_time", "timestamp", "status"} {
		assert.Contains(t, m, key)
	}
	assert.NotContains(t, m, "error")
	assert.Equal(t, "NOT_FOUND", m["status"])
}

func TestStatus_Valid(t *testing.T) {
	assert.True(t, StatusFound.Valid())
	assert.True(t, StatusError.Valid())
	assert.False(t, Status("success").Valid())
}

func TestParseBackend(t *testing.T) {
	b, err := ParseBackend("")
	require.NoError(t, err)
	assert.Equal(t, BackendJSON, b)

	b, err = ParseBackend(" SQLite ")
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, b)

	_, err = ParseBackend("postgres")
	assert.Error(t, err)
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(nil))
	assert.False(t, Retryable(ErrEntryIncomplete))
	assert.False(t, Retryable(fmt.Errorf("wrap: %w", context.Canceled)))
	assert.True(t, Retryable(fmt.Errorf("database is locked")))
}

// backends opens every Store implementation on fresh storage.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	stores := map[string]Store{}

	js, err := Open(Options{Backend: BackendJSON, Path: filepath.Join(dir, "logs.json")})
	require.NoError(t, err)
	stores["json"] = js

	mem, err := Open(Options{Backend: BackendSQLite})
	require.NoError(t, err)
	stores["sqlite-memory"] = mem

	file, err := Open(Options{Backend: BackendSQLite, Path: filepath.Join(dir, "logs.db")})
	require.NoError(t, err)
	stores["sqlite-file"] = file

	bm, err := Open(Options{Backend: BackendBadger, Logger: logging.Discard()})
	require.NoError(t, err)
	stores["badger-memory"] = bm

	for _, s := range stores {
		s := s
		t.Cleanup(func() { _ = s.Close() })
	}
	return stores
}

func TestStore_CreateThenReadAll(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			empty, err := s.ReadAll(ctx)
			require.NoError(t, err)
			assert.Empty(t, empty)

			first := completed(t, "banana", StatusFound)
			second := completed(t, "kiwi", StatusNotFound)
			third := NewEntry("", "127.0.0.1")
			require.NoError(t, third.Complete(StatusError, 0, "Corpus file not found"))

			for _, e := range []*Entry{first, second, third} {
				require.NoError(t, s.Create(ctx, e))
			}

			got, err := s.ReadAll(ctx)
			require.NoError(t, err)
			require.Len(t, got, 3)

			assert.Equal(t, first.ID, got[0].ID)
			assert.Equal(t, "banana", got[0].Query)
			assert.Equal(t, StatusFound, got[0].Status)
			assert.Equal(t, "127.0.0.1", got[0].RequestingIP)
			assert.InDelta(t, first.ExecutionTime, got[0].ExecutionTime, 1e-12)
			assert.True(t, first.Timestamp.Equal(got[0].Timestamp))

			assert.Equal(t, second.ID, got[1].ID)
			assert.Equal(t, StatusNotFound, got[1].Status)

			assert.Equal(t, StatusError, got[2].Status)
			assert.Equal(t, "Corpus file not found", got[2].Error)
		})
	}
}

func TestStore_RejectsIncompleteEntry(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Create(context.Background(), NewEntry("x", "127.0.0.1"))
			assert.ErrorIs(t, err, ErrEntryIncomplete)
		})
	}
}

func TestStore_ConcurrentCreatesKeepEveryEntry(t *testing.T) {
	const n = 40
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			var wg sync.WaitGroup
			errs := make(chan error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					e := NewEntry(fmt.Sprintf("q-%d", i), "127.0.0.1")
					if err := e.Complete(StatusNotFound, time.Microsecond, ""); err != nil {
						errs <- err
						return
					}
					errs <- s.Create(ctx, e)
				}(i)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			got, err := s.ReadAll(ctx)
			require.NoError(t, err)
			require.Len(t, got, n)

			ids := make(map[string]struct{}, n)
			for _, e := range got {
				ids[e.ID] = struct{}{}
			}
			assert.Len(t, ids, n, "ids must be pairwise unique")
		})
	}
}

func TestJSONStore_FileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "logs.json")
	s, err := NewJSONStore(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	require.NoError(t, s.Create(context.Background(), completed(t, "apple", StatusFound)))

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	var raw []map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 1)
	assert.Equal(t, "apple", raw[0]["query"])

	// No temp files left behind.
	matches, err := filepath.Glob(path + ".*.tmp")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestJSONStore_SharedFileAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs.json")
	a, err := NewJSONStore(path)
	require.NoError(t, err)
	b, err := NewJSONStore(path)
	require.NoError(t, err)

	require.NoError(t, a.Create(context.Background(), completed(t, "one", StatusFound)))
	require.NoError(t, b.Create(context.Background(), completed(t, "two", StatusFound)))

	got, err := a.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestJSONStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s, err := NewJSONStore(path)
	require.NoError(t, err)

	_, err = s.ReadAll(context.Background())
	assert.Error(t, err)
	assert.Error(t, s.Create(context.Background(), completed(t, "x", StatusFound)))
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "badger")
	s, err := NewBadgerStore(dir, false, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, s.Create(context.Background(), completed(t, "first", StatusFound)))
	require.NoError(t, s.Close())

	s, err = NewBadgerStore(dir, false, logging.Discard())
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Create(context.Background(), completed(t, "second", StatusFound)))

	got, err := s.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Query)
	assert.Equal(t, "second", got[1].Query)
}

func TestOpen_JSONRequiresPath(t *testing.T) {
	_, err := Open(Options{Backend: BackendJSON})
	assert.Error(t, err)
}
