package mode

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"parley/internal/logging"
)

// Watcher hot-reloads edited mode policy files into a registry. New
// sessions pick up the reloaded policy; running sessions are unaffected
// because a policy is immutable per session.
type Watcher struct {
	registry *Registry
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewWatcher starts watching dir for policy file changes.
func NewWatcher(dir string, registry *Registry) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w := &Watcher{
		registry: registry,
		watcher:  fsw,
		done:     make(chan struct{}),
	}
	go w.run()
	logging.Get(logging.CategoryBoot).Info("Watching mode policies in %s", dir)
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !isPolicyFile(filepath.Base(event.Name)) {
				continue
			}
			p, err := LoadPolicy(event.Name)
			if err != nil {
				logging.Get(logging.CategoryBoot).Warn("Mode reload failed for %s: %v", event.Name, err)
				continue
			}
			w.registry.Put(p)
			logging.Get(logging.CategoryBoot).Info("Mode policy reloaded: %s", p.ID)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryBoot).Warn("Mode watcher error: %v", err)
		}
	}
}

// Close stops watching and waits for the watch loop to exit.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
