package lexicon

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the pinyin backend when its dictionary or model file
// changes on disk, so a dictionary update does not require restarting the
// host's input method.
type Watcher struct {
	backend   *Pinyin
	fsWatcher *fsnotify.Watcher
	settle    time.Duration
	done      chan struct{}
}

// NewWatcher starts watching the directories containing the backend's
// resolved dictionary and model paths.
func NewWatcher(backend *Pinyin) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		backend:   backend,
		fsWatcher: fsWatcher,
		settle:    200 * time.Millisecond,
		done:      make(chan struct{}),
	}

	dict, model := backend.resolvePaths()
	dirs := map[string]struct{}{}
	for _, path := range []string{dict, model} {
		if path == "" {
			continue
		}
		dirs[filepath.Dir(path)] = struct{}{}
	}
	for dir := range dirs {
		// Watch the directory, not the file: editors and package managers
		// replace dictionary files by rename.
		if err := fsWatcher.Add(dir); err != nil {
			fsWatcher.Close()
			return nil, err
		}
	}

	go w.loop(dict, model)
	return w, nil
}

func (w *Watcher) loop(dict, model string) {
	var pending *time.Timer
	var pendingC <-chan time.Time

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Name != dict && event.Name != model {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Let the writer finish before reloading.
			if pending == nil {
				pending = time.NewTimer(w.settle)
				pendingC = pending.C
			} else {
				pending.Reset(w.settle)
			}
		case <-pendingC:
			pending = nil
			pendingC = nil
			w.backend.reload()
		case _, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsWatcher.Close()
}
