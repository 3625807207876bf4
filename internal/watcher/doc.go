// Package watcher reports changes to a single file.
//
// fsnotify is used when available. The parent directory is watched rather
// than the file itself so that editors which save by writing a temp file
// and renaming it over the original are still seen. When fsnotify cannot
// be set up (network mounts, some container volumes) the watcher polls the
// file's size and modification time instead.
//
// Bursts of events are debounced into one:
//
//	w, err := watcher.NewFileWatcher("/srv/corpus/words.txt", watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	go func() { _ = w.Start(ctx) }()
//	defer w.Stop()
//
//	for ev := range w.Events() {
//	    // reload
//	}
package watcher
