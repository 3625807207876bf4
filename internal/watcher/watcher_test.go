package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer_SingleEvent_PassesThrough(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "/srv/words.txt", Operation: OpModify})

	select {
	case batch := <-d.Output():
		require.Len(t, batch, 1)
		assert.Equal(t, OpModify, batch[0].Operation)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for debounced event")
	}
}

func TestDebouncer_Coalescing(t *testing.T) {
	tests := []struct {
		name string
		ops  []Operation
		want []Operation
	}{
		{"modify burst", []Operation{OpModify, OpModify, OpModify}, []Operation{OpModify}},
		{"create then modify", []Operation{OpCreate, OpModify}, []Operation{OpCreate}},
		{"create then delete", []Operation{OpCreate, OpDelete}, nil},
		{"delete then create", []Operation{OpDelete, OpCreate}, []Operation{OpModify}},
		{"modify then delete", []Operation{OpModify, OpDelete}, []Operation{OpDelete}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDebouncer(30 * time.Millisecond)
			defer d.Stop()

			for _, op := range tt.ops {
				d.Add(FileEvent{Path: "words.txt", Operation: op})
			}

			select {
			case batch := <-d.Output():
				require.NotNil(t, tt.want, "expected no batch, got %v", batch)
				require.Len(t, batch, len(tt.want))
				assert.Equal(t, tt.want[0], batch[0].Operation)
			case <-time.After(200 * time.Millisecond):
				assert.Nil(t, tt.want, "timeout waiting for batch")
			}
		})
	}
}

func TestDebouncer_StopClosesOutput(t *testing.T) {
	d := NewDebouncer(time.Hour)
	d.Add(FileEvent{Path: "a", Operation: OpModify})
	d.Stop()
	d.Stop()

	_, ok := <-d.Output()
	assert.False(t, ok)

	// Add after stop is ignored.
	d.Add(FileEvent{Path: "a", Operation: OpModify})
}

func TestOperation_String(t *testing.T) {
	assert.Equal(t, "CREATE", OpCreate.String())
	assert.Equal(t, "RENAME", OpRename.String())
	assert.Equal(t, "UNKNOWN", Operation(99).String())
	assert.True(t, OpDelete.Gone())
	assert.True(t, OpRename.Gone())
	assert.False(t, OpModify.Gone())
}

func TestOptions_WithDefaults(t *testing.T) {
	opts := Options{}.WithDefaults()
	assert.Equal(t, DefaultOptions().DebounceWindow, opts.DebounceWindow)
	assert.Equal(t, DefaultOptions().PollInterval, opts.PollInterval)

	custom := Options{DebounceWindow: time.Second}.WithDefaults()
	assert.Equal(t, time.Second, custom.DebounceWindow)
}

func waitEvent(t *testing.T, w *FileWatcher) FileEvent {
	t.Helper()
	select {
	case ev, ok := <-w.Events():
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for file event")
		return FileEvent{}
	}
}

func startWatcher(t *testing.T, path string, opts Options) *FileWatcher {
	t.Helper()
	w, err := NewFileWatcher(path, opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Let the watch register before the test touches the file.
	time.Sleep(50 * time.Millisecond)
	return w
}

func TestFileWatcher_Polling_DetectsModify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	require.NoError(t, os.WriteFile(path, []byte("apple\n"), 0o644))

	w := startWatcher(t, path, Options{
		DebounceWindow: 20 * time.Millisecond,
		PollInterval:   20 * time.Millisecond,
		ForcePolling:   true,
	})
	assert.Equal(t, "polling", w.Kind())

	require.NoError(t, os.WriteFile(path, []byte("apple\nbanana\n"), 0o644))

	ev := waitEvent(t, w)
	assert.Equal(t, w.Path(), ev.Path)
	assert.Equal(t, OpModify, ev.Operation)
}

func TestFileWatcher_Fsnotify_DetectsWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "words.txt")
	require.NoError(t, os.WriteFile(path, []byte("apple\n"), 0o644))

	w := startWatcher(t, path, Options{DebounceWindow: 20 * time.Millisecond})
	if w.Kind() != "fsnotify" {
		t.Skip("fsnotify unavailable")
	}

	// Changes to siblings are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("apple\nkiwi\n"), 0o644))

	ev := waitEvent(t, w)
	assert.Equal(t, w.Path(), ev.Path)
	assert.False(t, ev.Operation.Gone())
}

func TestFileWatcher_Fsnotify_AtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "words.txt")
	require.NoError(t, os.WriteFile(path, []byte("apple\n"), 0o644))

	w := startWatcher(t, path, Options{DebounceWindow: 20 * time.Millisecond})
	if w.Kind() != "fsnotify" {
		t.Skip("fsnotify unavailable")
	}

	tmp := filepath.Join(dir, "words.txt.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("cherry\n"), 0o644))
	require.NoError(t, os.Rename(tmp, path))

	ev := waitEvent(t, w)
	assert.False(t, ev.Operation.Gone())
}

func TestFileWatcher_StopClosesEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	w, err := NewFileWatcher(path, Options{ForcePolling: true})
	require.NoError(t, err)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	select {
	case _, ok := <-w.Events():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("events channel not closed")
	}
}
