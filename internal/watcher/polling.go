package watcher

import (
	"context"
	"os"
	"time"
)

// PollingWatcher detects changes to one file by comparing its size and
// modification time on every tick. Used when fsnotify is unavailable.
type PollingWatcher struct {
	path     string
	interval time.Duration
	last     fileState
}

type fileState struct {
	exists  bool
	modTime time.Time
	size    int64
}

// NewPollingWatcher creates a polling watcher for path.
func NewPollingWatcher(path string, interval time.Duration) *PollingWatcher {
	return &PollingWatcher{path: path, interval: interval}
}

// Run polls until ctx is done or stop is closed, passing each detected
// change to emit. The state at call time is the baseline.
func (p *PollingWatcher) Run(ctx context.Context, stop <-chan struct{}, emit func(FileEvent)) {
	p.last = p.stat()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if op, changed := p.check(); changed {
				emit(FileEvent{Path: p.path, Operation: op, Timestamp: time.Now()})
			}
		}
	}
}

func (p *PollingWatcher) check() (Operation, bool) {
	cur := p.stat()
	prev := p.last
	p.last = cur

	switch {
	case !prev.exists && cur.exists:
		return OpCreate, true
	case prev.exists && !cur.exists:
		return OpDelete, true
	case cur.exists && (cur.size != prev.size || !cur.modTime.Equal(prev.modTime)):
		return OpModify, true
	default:
		return 0, false
	}
}

func (p *PollingWatcher) stat() fileState {
	info, err := os.Stat(p.path)
	if err != nil {
		return fileState{}
	}
	return fileState{exists: true, modTime: info.ModTime(), size: info.Size()}
}
