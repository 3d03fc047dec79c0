// control/filewatcher.go
// Author: momentics <momentics@gmail.com>
//
// Hot-reload of the server's JSON config file via fsnotify, so
// content-buffer-size and friends can be tuned without a restart.
// Existing connections keep whatever buffer size they were allocated
// with; only new connections observe the updated value.

package control

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher watches a single JSON config file and pushes its
// contents into a ConfigStore on every write or create event. Events
// are not coalesced: a tool that emits several events for one save
// causes one reload per event.
type FileWatcher struct {
	path   string
	store  *ConfigStore
	fsw    *fsnotify.Watcher
	done   chan struct{}
	closed chan struct{}
}

// NewFileWatcher starts watching path and applying its JSON object
// contents to store immediately, then on every subsequent write or
// create event. Returns an error if path cannot be read once up front
// or the platform watcher cannot be created.
func NewFileWatcher(path string, store *ConfigStore) (*FileWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("control: new fsnotify watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("control: watch %s: %w", path, err)
	}

	w := &FileWatcher{
		path:   path,
		store:  store,
		fsw:    fsw,
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}

	if err := w.reload(); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.run()
	return w, nil
}

func (w *FileWatcher) run() {
	defer close(w.closed)
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			_ = w.reload()
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *FileWatcher) reload() error {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return fmt.Errorf("control: read %s: %w", w.path, err)
	}
	var cfg map[string]any
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("control: parse %s: %w", w.path, err)
	}
	w.store.SetConfig(cfg)
	return nil
}

// Close stops the watcher goroutine and releases the underlying
// platform watcher.
func (w *FileWatcher) Close() error {
	close(w.done)
	err := w.fsw.Close()
	<-w.closed
	return err
}
