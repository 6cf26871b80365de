// Package fswatcher wraps fsnotify for the single purpose the gateway needs
// it: watching config.yaml so internal/config.Watch can reload the whole
// configuration without a restart. No entry point in this repository calls
// config.Watch.
package fswatcher

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Event mirrors the subset of fsnotify.Event callers care about.
type Event struct {
	Name string
	Op   fsnotify.Op
}

// Watcher watches a single file for writes and renames (the pattern most
// editors and ConfigMap mounts use when replacing a file in place).
type Watcher struct {
	fsw  *fsnotify.Watcher
	path string
	C    chan Event
}

// New starts watching path's parent directory (editors often replace a file
// via rename rather than an in-place write, which only a directory watch
// reliably observes) and filters events down to that single file.
func New(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{fsw: fsw, path: filepath.Clean(path), C: make(chan Event, 1)}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				close(w.C)
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			select {
			case w.C <- Event{Name: ev.Name, Op: ev.Op}:
			default:
				// A reload is already pending; drop the duplicate signal.
			}
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
